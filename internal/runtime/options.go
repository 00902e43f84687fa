package runtime

import (
	"fmt"
	"log/slog"

	"github.com/tjfontaine/taintpath/internal/core/ports"
	"github.com/tjfontaine/taintpath/internal/pkg/config"
	"github.com/tjfontaine/taintpath/internal/storage"
)

// Option is a functional option for configuring an App.
type Option func(*App) error

// WithConfig sets the loaded configuration. It is required.
func WithConfig(cfg *config.Config) Option {
	return func(a *App) error {
		if cfg == nil {
			return fmt.Errorf("config must not be nil")
		}
		a.cfg = cfg
		return nil
	}
}

// WithConfigFile loads configuration from path, then the environment.
func WithConfigFile(path string) Option {
	return func(a *App) error {
		cfg, err := config.LoadFile(path)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		a.cfg = cfg
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *App) error {
		a.logger = logger
		return nil
	}
}

// WithBackend uses an already-open backend instead of opening one from the
// storage configuration. The App does not seed it.
func WithBackend(b ports.Backend) Option {
	return func(a *App) error {
		if b == nil {
			return fmt.Errorf("backend must not be nil")
		}
		a.backend = storage.Resolved(b)
		return nil
	}
}

// WithObserver registers an observer notified of every sink invocation.
func WithObserver(o ports.SinkObserver) Option {
	return func(a *App) error {
		a.observer = o
		return nil
	}
}
