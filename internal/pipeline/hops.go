package pipeline

import (
	"context"
	"time"

	"github.com/tjfontaine/taintpath/internal/core/domain"
	"github.com/tjfontaine/taintpath/internal/pkg/future"
)

// Relay is a synchronous pass-through hop.
type Relay struct {
	name string
}

// NewRelay creates a synchronous hop.
func NewRelay(name string) *Relay {
	return &Relay{name: name}
}

func (r *Relay) Name() string { return r.name }

func (r *Relay) Forward(_ context.Context, v domain.Value) (domain.Value, error) {
	return v, nil
}

// AsyncHop crosses an asynchronous boundary: the value is handed to a
// scheduled continuation and the hop suspends until it resumes.
type AsyncHop struct {
	name  string
	delay time.Duration
}

// NewAsyncHop creates a hop whose continuation runs after delay. A zero
// delay still suspends.
func NewAsyncHop(name string, delay time.Duration) *AsyncHop {
	return &AsyncHop{name: name, delay: delay}
}

func (a *AsyncHop) Name() string { return a.name }

// Forward schedules the continuation and waits for it. If ctx ends first the
// continuation is stopped and the context error is returned.
func (a *AsyncHop) Forward(ctx context.Context, v domain.Value) (domain.Value, error) {
	resumed := future.New[domain.Value]()
	timer := time.AfterFunc(a.delay, func() {
		resumed.Resolve(v, nil)
	})

	out, err := resumed.Await(ctx)
	if err != nil {
		timer.Stop()
		return domain.Value{}, err
	}
	return out, nil
}
