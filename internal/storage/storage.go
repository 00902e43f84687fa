// Package storage holds the process-wide pending backend handle.
package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/tjfontaine/taintpath/internal/core/domain"
	"github.com/tjfontaine/taintpath/internal/core/ports"
	"github.com/tjfontaine/taintpath/internal/pkg/future"
)

// Pending is a ports.Backend whose underlying store is still being opened.
// Sinks may be constructed and called before the open completes; every
// Acquire waits on the same shared future.
type Pending struct {
	dialect string
	store   *future.Future[ports.Backend]
}

var _ ports.Backend = (*Pending)(nil)

// Open starts opening the backend on its own goroutine and returns
// immediately.
func Open(dialect string, open func() (ports.Backend, error)) *Pending {
	return &Pending{dialect: dialect, store: future.Go(open)}
}

// Resolved wraps an already-open backend.
func Resolved(b ports.Backend) *Pending {
	return &Pending{dialect: b.Dialect(), store: future.Ready(b)}
}

// Acquire waits for the backend and acquires a session from it.
func (p *Pending) Acquire(ctx context.Context) (ports.Session, error) {
	b, err := p.Await(ctx)
	if err != nil {
		return nil, err
	}
	return b.Acquire(ctx)
}

// Await blocks until the backend is open. A failed open is reported as
// domain.ErrBackendUnavailable to every caller.
func (p *Pending) Await(ctx context.Context) (ports.Backend, error) {
	b, err := p.store.Await(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrBackendUnavailable, err)
	}
	return b, nil
}

// Dialect returns the dialect the backend is being opened with.
func (p *Pending) Dialect() string {
	return p.dialect
}

// Close waits for the open to finish and closes the backend if it supports
// closing.
func (p *Pending) Close(ctx context.Context) error {
	b, err := p.store.Await(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		return nil
	}
	if c, ok := b.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
