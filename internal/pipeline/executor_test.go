package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/tjfontaine/taintpath/internal/core/domain"
	"github.com/tjfontaine/taintpath/internal/pkg/config"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// mockHop is a test helper that records calls and returns configured results.
type mockHop struct {
	name   string
	err    error
	mutate bool
	log    *[]string
	calls  []domain.Value
}

func (h *mockHop) Name() string { return h.name }

func (h *mockHop) Forward(_ context.Context, v domain.Value) (domain.Value, error) {
	h.calls = append(h.calls, v)
	if h.log != nil {
		*h.log = append(*h.log, h.name)
	}
	if h.err != nil {
		return domain.Value{}, h.err
	}
	if h.mutate {
		return v.With("changed", domain.AppliedPolicy{Policy: domain.PolicySQLTrim}), nil
	}
	return v, nil
}

func TestChain_Empty(t *testing.T) {
	c := NewChain(ChainConfig{})
	in := domain.Tainted("x")

	out, err := c.Forward(context.Background(), in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !out.Equal(in) {
		t.Error("expected same value when no hops")
	}
}

func TestAsyncHop_PreservesValue(t *testing.T) {
	hop := NewAsyncHop("async", time.Millisecond)
	in := domain.Tainted("a;b")

	out, err := hop.Forward(context.Background(), in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.String() != "a;b" || !out.Equal(in) {
		t.Errorf("Forward() = %+v, want %+v", out, in)
	}
	if !out.TaintedFor(domain.FamilySQL) {
		t.Error("taint lost across suspension")
	}
}

func TestAsyncHop_ZeroDelay(t *testing.T) {
	out, err := NewAsyncHop("async", 0).Forward(context.Background(), domain.Tainted("z"))
	if err != nil || out.String() != "z" {
		t.Errorf("Forward() = %v, %v", out, err)
	}
}

func TestAsyncHop_Timeout(t *testing.T) {
	hop := NewAsyncHop("async", time.Hour)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()

	_, err := hop.Forward(ctx, domain.Tainted("x"))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestChain_OrderedExecution(t *testing.T) {
	var order []string
	first := &mockHop{name: "first", log: &order}
	second := &mockHop{name: "second", log: &order}
	third := &mockHop{name: "third", log: &order}

	// Configured out of order.
	c := NewChain(ChainConfig{
		Hops: []HopConfig{
			{Name: "third", Order: 3, Hop: third},
			{Name: "first", Order: 1, Hop: first},
			{Name: "second", Order: 2, Hop: second},
		},
	})

	if _, err := c.Forward(context.Background(), domain.Tainted("v")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(order) != 3 || order[0] != "first" || order[1] != "second" || order[2] != "third" {
		t.Errorf("expected [first second third], got %v", order)
	}
	if names := c.Names(); names[0] != "first" || c.Len() != 3 {
		t.Errorf("Names() = %v", names)
	}
}

func TestChain_ForwardThroughAsync(t *testing.T) {
	c, err := NewForwardChainFromConfig(config.PipelineConfig{AsyncDelay: "1ms"}, nil)
	if err != nil {
		t.Fatalf("NewForwardChainFromConfig() error = %v", err)
	}

	out, err := c.Forward(context.Background(), domain.Tainted("a;b"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.String() != "a;b" {
		t.Errorf("Forward() = %q, want %q", out.String(), "a;b")
	}
	if names := c.Names(); len(names) != 2 || names[0] != HopForwarder || names[1] != HopAsync {
		t.Errorf("Names() = %v", names)
	}
}

func TestChain_ErrorPropagation(t *testing.T) {
	backendErr := &domain.BackendError{Op: "query", Err: domain.ErrBackendUnavailable}
	failing := &mockHop{name: "failing", err: backendErr}
	after := &mockHop{name: "after"}

	c := NewChain(ChainConfig{
		Hops: []HopConfig{
			{Name: "failing", Order: 1, Hop: failing},
			{Name: "after", Order: 2, Hop: after},
		},
	})

	_, err := c.Forward(context.Background(), domain.Tainted("x"))

	var cf *domain.ChainFailure
	if !errors.As(err, &cf) {
		t.Fatalf("expected ChainFailure, got %v", err)
	}
	if cf.Stage != "failing" {
		t.Errorf("Stage = %q, want failing", cf.Stage)
	}
	var be *domain.BackendError
	if !errors.As(err, &be) {
		t.Error("original error not preserved")
	}
	if len(after.calls) != 0 {
		t.Error("hops after a failure must not run")
	}
}

func TestChain_RejectsMutation(t *testing.T) {
	c := NewChain(ChainConfig{
		Hops: []HopConfig{{Name: "sneaky", Order: 1, Hop: &mockHop{name: "sneaky", mutate: true}}},
	})

	_, err := c.Forward(context.Background(), domain.Tainted("x"))
	var me *MutationError
	if !errors.As(err, &me) {
		t.Fatalf("expected MutationError, got %v", err)
	}
	if domain.KindOf(err) != domain.ErrorKindChain {
		t.Errorf("KindOf() = %q", domain.KindOf(err))
	}
}

func TestChain_TimeoutIsChainFailure(t *testing.T) {
	c := NewChain(ChainConfig{
		Hops: []HopConfig{{Name: "async", Order: 1, Hop: NewAsyncHop("async", time.Hour)}},
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()

	_, err := c.Forward(ctx, domain.Tainted("x"))
	var cf *domain.ChainFailure
	if !errors.As(err, &cf) || cf.Stage != "async" {
		t.Fatalf("expected ChainFailure from async, got %v", err)
	}
	if !domain.IsTimeout(err) {
		t.Errorf("IsTimeout() = false for %v", err)
	}
}

func TestChain_CancelledBeforeStart(t *testing.T) {
	hop := &mockHop{name: "never"}
	c := NewChain(ChainConfig{Hops: []HopConfig{{Name: "never", Hop: hop}}})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Forward(ctx, domain.Tainted("x"))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if len(hop.calls) != 0 {
		t.Error("hop ran after cancellation")
	}
}

func TestChain_RunWrapsTerminalError(t *testing.T) {
	c := NewDirectChain(nil)
	boom := &domain.BackendError{Op: "insert", Err: errors.New("UNIQUE constraint failed")}

	_, err := c.Run(context.Background(), domain.Tainted("x"), "dispatch", func(context.Context, domain.Value) (domain.SinkResult, error) {
		return domain.SinkResult{}, boom
	})

	var cf *domain.ChainFailure
	if !errors.As(err, &cf) || cf.Stage != "dispatch" {
		t.Fatalf("expected ChainFailure from dispatch, got %v", err)
	}
	if domain.KindOf(err) != domain.ErrorKindBackend {
		t.Errorf("KindOf() = %q", domain.KindOf(err))
	}
}

func TestChain_AsHop(t *testing.T) {
	inner := NewChain(ChainConfig{Hops: []HopConfig{{Name: "a", Hop: NewRelay("a")}}})
	outer := NewChain(ChainConfig{Hops: []HopConfig{{Name: "inner", Hop: inner.AsHop("inner")}}})

	out, err := outer.Forward(context.Background(), domain.Tainted("n"))
	if err != nil || out.String() != "n" {
		t.Errorf("Forward() = %v, %v", out, err)
	}
}

func TestNewForwardChainFromConfig_InvalidDelay(t *testing.T) {
	for _, d := range []string{"soon", "-1s"} {
		if _, err := NewForwardChainFromConfig(config.PipelineConfig{AsyncDelay: d}, nil); err == nil {
			t.Errorf("expected error for %q", d)
		}
	}
}
