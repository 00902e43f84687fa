package domain

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestBackendError_Error(t *testing.T) {
	err := &BackendError{Op: "insert", Statement: "INSERT ...", Err: errors.New("UNIQUE constraint failed")}
	expected := "backend insert: UNIQUE constraint failed"
	if got := err.Error(); got != expected {
		t.Errorf("Error() = %q, want %q", got, expected)
	}
}

func TestChainFailure_Unwrap(t *testing.T) {
	inner := &BackendError{Op: "query", Err: ErrBackendUnavailable}
	err := NewChainFailure("async", inner)

	var be *BackendError
	if !errors.As(err, &be) {
		t.Fatal("expected BackendError to survive chain wrapping")
	}
	if !errors.Is(err, ErrBackendUnavailable) {
		t.Error("expected ErrBackendUnavailable in chain")
	}

	var cf *ChainFailure
	if !errors.As(err, &cf) || cf.Stage != "async" {
		t.Errorf("expected chain failure for stage async, got %v", err)
	}
}

func TestNewChainFailure_KeepsInnermostStage(t *testing.T) {
	inner := NewChainFailure("dispatch", errors.New("boom"))
	outer := NewChainFailure("forwarder", fmt.Errorf("relay: %w", inner))

	var cf *ChainFailure
	if !errors.As(outer, &cf) {
		t.Fatal("expected ChainFailure")
	}
	if cf.Stage != "dispatch" {
		t.Errorf("Stage = %q, want dispatch", cf.Stage)
	}
}

func TestNewChainFailure_Nil(t *testing.T) {
	if err := NewChainFailure("any", nil); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected ErrorKind
	}{
		{name: "nil", err: nil, expected: ""},
		{name: "backend", err: &BackendError{Op: "query", Err: errors.New("x")}, expected: ErrorKindBackend},
		{name: "backend inside chain", err: NewChainFailure("hop", &BackendError{Op: "query", Err: errors.New("x")}), expected: ErrorKindBackend},
		{name: "type mismatch", err: &TypeMismatchError{Policy: PolicySQLTrim, Got: "int"}, expected: ErrorKindTypeMismatch},
		{name: "config", err: &ConfigError{Field: "target", Reason: "x"}, expected: ErrorKindInvalidConfig},
		{name: "chain timeout", err: NewChainFailure("async", context.DeadlineExceeded), expected: ErrorKindChain},
		{name: "plain", err: errors.New("plain"), expected: ErrorKindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.expected {
				t.Errorf("KindOf() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestIsTimeout(t *testing.T) {
	if !IsTimeout(NewChainFailure("async", context.DeadlineExceeded)) {
		t.Error("expected deadline inside chain failure to be a timeout")
	}
	if IsTimeout(errors.New("other")) {
		t.Error("expected plain error not to be a timeout")
	}
}
