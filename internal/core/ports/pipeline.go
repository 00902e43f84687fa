// Package ports defines the core interfaces of the propagation pipeline.
// This file contains the hop and sink interfaces.
package ports

import (
	"context"

	"github.com/tjfontaine/taintpath/internal/core/domain"
)

// Hop relays a value one stage further along the chain. Hops are pure
// pass-through: they may suspend but never transform or sanitize.
type Hop interface {
	// Name returns the unique identifier for this hop.
	Name() string
	// Forward relays the value, possibly after a suspension point.
	Forward(ctx context.Context, v domain.Value) (domain.Value, error)
}

// CommandSink simulates executing data-access commands against the backend.
type CommandSink interface {
	// ExecuteUnsafe interpolates the value into the predicate template.
	ExecuteUnsafe(ctx context.Context, p domain.Predicate, v domain.Value) (domain.SinkResult, error)
	// ExecuteParameterized binds the value as a parameter.
	ExecuteParameterized(ctx context.Context, v domain.Value) (domain.SinkResult, error)
	// Insert interpolates every field value into an insert command.
	Insert(ctx context.Context, fields []Field) (domain.SinkResult, error)
	// Delete interpolates the identifier into a delete command.
	Delete(ctx context.Context, id domain.Value) (domain.SinkResult, error)
}

// Field is a named column value for Insert.
type Field struct {
	Column string
	Value  domain.Value
}

// RenderSink simulates producing markup from a value.
type RenderSink interface {
	// RenderUnsafe embeds the value without escaping.
	RenderUnsafe(ctx context.Context, v domain.Value) domain.SinkResult
	// RenderSafe embeds a value that is expected to be escaped already.
	RenderSafe(ctx context.Context, v domain.Value) domain.SinkResult
}

// SinkObserver is notified of every sink invocation before it runs.
type SinkObserver interface {
	ObserveSink(ctx context.Context, sink domain.SinkID, v domain.Value)
}

// SinkObserverFunc adapts a function to SinkObserver.
type SinkObserverFunc func(ctx context.Context, sink domain.SinkID, v domain.Value)

func (f SinkObserverFunc) ObserveSink(ctx context.Context, sink domain.SinkID, v domain.Value) {
	f(ctx, sink, v)
}
