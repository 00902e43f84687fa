package ports

import (
	"context"

	"github.com/tjfontaine/taintpath/internal/core/domain"
)

// Backend is the injected handle to the data-access store. It is opened once
// at process start and shared by every command sink.
type Backend interface {
	// Acquire obtains a session scoped to a single sink call. The caller must
	// Close it when the call returns.
	Acquire(ctx context.Context) (Session, error)

	// Dialect returns the placeholder dialect name ("sqlite", "postgres", "mysql").
	Dialect() string
}

// Session is a dedicated backend connection used for one sink call.
type Session interface {
	// Query runs a statement that returns rows.
	Query(ctx context.Context, query string, args ...any) ([]domain.Record, error)

	// Exec runs a statement that returns no rows.
	Exec(ctx context.Context, query string, args ...any) (domain.ExecResult, error)

	// Close releases the session back to the backend.
	Close() error
}
