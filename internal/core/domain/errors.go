package domain

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind represents the category of a pipeline failure.
type ErrorKind string

const (
	// ErrorKindBackend indicates a command sink execution failure: connection,
	// constraint or syntax.
	ErrorKindBackend ErrorKind = "backend"

	// ErrorKindTypeMismatch indicates a non-string value reached a sanitizer
	// that assumes strings. It is never fatal.
	ErrorKindTypeMismatch ErrorKind = "type_mismatch"

	// ErrorKindChain indicates a hop or sink failure propagated up the chain.
	ErrorKindChain ErrorKind = "chain"

	// ErrorKindInvalidConfig indicates a rejected dispatch configuration.
	ErrorKindInvalidConfig ErrorKind = "invalid_config"

	// ErrorKindUnknown covers anything outside the taxonomy.
	ErrorKindUnknown ErrorKind = "unknown"
)

// ErrBackendUnavailable is returned when no backend handle could be acquired.
var ErrBackendUnavailable = errors.New("backend unavailable")

// BackendError wraps a failure reported by the data-access backend.
type BackendError struct {
	// Op is the sink operation that issued the statement.
	Op string
	// Statement is the command text, when one was built.
	Statement string
	Err       error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("backend %s: %v", e.Op, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

// TypeMismatchError reports that a sanitizer received a non-string value and
// returned it unchanged.
type TypeMismatchError struct {
	Policy PolicyID
	Got    string
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("policy %s: expected string, got %s (passed through unchanged)", e.Policy, e.Got)
}

// ChainFailure wraps a failure raised by a hop or a sink with the name of the
// stage that raised it. The wrapped error is preserved for errors.As.
type ChainFailure struct {
	Stage string
	Err   error
}

func (e *ChainFailure) Error() string {
	return fmt.Sprintf("chain stage %s: %v", e.Stage, e.Err)
}

func (e *ChainFailure) Unwrap() error { return e.Err }

// ConfigError reports an invalid dispatch configuration.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid dispatch config %s: %s", e.Field, e.Reason)
}

// NewChainFailure wraps err for stage. An existing ChainFailure is returned
// as is so the innermost stage name survives.
func NewChainFailure(stage string, err error) error {
	if err == nil {
		return nil
	}
	var cf *ChainFailure
	if errors.As(err, &cf) {
		return err
	}
	return &ChainFailure{Stage: stage, Err: err}
}

// KindOf classifies err. The most specific kind wins: a backend error
// carried inside a chain failure is reported as backend.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var be *BackendError
	if errors.As(err, &be) {
		return ErrorKindBackend
	}
	var tm *TypeMismatchError
	if errors.As(err, &tm) {
		return ErrorKindTypeMismatch
	}
	var ce *ConfigError
	if errors.As(err, &ce) {
		return ErrorKindInvalidConfig
	}
	var cf *ChainFailure
	if errors.As(err, &cf) {
		return ErrorKindChain
	}
	return ErrorKindUnknown
}

// IsTimeout reports whether err was caused by a deadline or cancellation.
func IsTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}
