// Package runtime assembles the pipeline, its sinks and the HTTP boundary
// into a runnable App and manages its lifecycle.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tjfontaine/taintpath/internal/core/ports"
	"github.com/tjfontaine/taintpath/internal/dispatch"
	"github.com/tjfontaine/taintpath/internal/pipeline"
	"github.com/tjfontaine/taintpath/internal/pkg/config"
	"github.com/tjfontaine/taintpath/internal/reachability"
	"github.com/tjfontaine/taintpath/internal/scenario"
	"github.com/tjfontaine/taintpath/internal/server"
	"github.com/tjfontaine/taintpath/internal/sink/command"
	"github.com/tjfontaine/taintpath/internal/sink/render"
	"github.com/tjfontaine/taintpath/internal/storage"
	"github.com/tjfontaine/taintpath/internal/storage/sqldb"
)

const shutdownTimeout = 10 * time.Second

// App owns the backend handle, the entry operations and the HTTP server.
type App struct {
	cfg      *config.Config
	logger   *slog.Logger
	backend  *storage.Pending
	observer ports.SinkObserver

	service *scenario.Service
	server  *server.Server
	report  reachability.Report
}

// New builds an App. The backend starts opening in the background; requests
// that arrive before it is ready wait on it.
func New(opts ...Option) (*App, error) {
	a := &App{logger: slog.Default()}

	for _, opt := range opts {
		if err := opt(a); err != nil {
			return nil, fmt.Errorf("apply option: %w", err)
		}
	}

	if a.cfg == nil {
		return nil, errors.New("config required (use WithConfig or WithConfigFile)")
	}
	if a.backend == nil {
		a.backend = openBackend(a.cfg.Storage, a.logger)
	}

	cmdOpts := []command.Option{command.WithLogger(a.logger)}
	renderOpts := []render.Option{render.WithLogger(a.logger)}
	if a.observer != nil {
		cmdOpts = append(cmdOpts, command.WithObserver(a.observer))
		renderOpts = append(renderOpts, render.WithObserver(a.observer))
	}
	cmd := command.New(a.backend, cmdOpts...)
	rnd := render.New(renderOpts...)

	forward, err := pipeline.NewForwardChainFromConfig(a.cfg.Pipeline, a.logger)
	if err != nil {
		return nil, fmt.Errorf("build forward chain: %w", err)
	}

	a.service = scenario.New(scenario.Config{
		Dispatcher: dispatch.New(cmd, rnd, a.logger),
		Command:    cmd,
		Render:     rnd,
		Forward:    forward,
		Direct:     pipeline.NewDirectChain(a.logger),
		Logger:     a.logger,
	})

	a.server = server.New(server.Options{
		Port:           a.cfg.Server.Port,
		RequestTimeout: a.cfg.Server.Timeout(),
		Logger:         a.logger,
		ServiceName:    a.cfg.Telemetry.ServiceName,
	})
	// Admin routes are deliberately left unmounted.
	server.RegisterUserRoutes(a.server.Router, server.NewHandlers(a.service))

	a.report, err = reachability.Analyze(a.server.Router, scenario.Catalog)
	if err != nil {
		return nil, fmt.Errorf("analyze routes: %w", err)
	}
	a.logReport()

	return a, nil
}

// openBackend opens and seeds the configured store behind a pending handle.
func openBackend(cfg config.StorageConfig, logger *slog.Logger) *storage.Pending {
	users := make([]sqldb.User, 0, len(cfg.SeedUsers))
	for _, u := range cfg.SeedUsers {
		users = append(users, sqldb.User{Username: u.Username, Email: u.Email})
	}

	return storage.Open(cfg.Driver, func() (ports.Backend, error) {
		store, err := sqldb.New(sqldb.Config{Driver: cfg.Driver, DSN: cfg.DSN, Logger: logger})
		if err != nil {
			logger.Error("failed to open backend",
				slog.String("driver", cfg.Driver),
				slog.String("error", err.Error()))
			return nil, err
		}
		if err := store.Seed(context.Background(), users); err != nil {
			store.Close()
			logger.Error("failed to seed backend", slog.String("error", err.Error()))
			return nil, err
		}
		logger.Info("backend ready",
			slog.String("driver", cfg.Driver),
			slog.Int("seed_users", len(users)))
		return store, nil
	})
}

func (a *App) logReport() {
	unreachable := make([]string, 0, len(a.report.UnreachableSinks))
	for _, id := range a.report.UnreachableSinks {
		unreachable = append(unreachable, string(id))
	}
	a.logger.Info("route table analyzed",
		slog.Int("routes", len(a.report.Routes)),
		slog.Int("reachable_sinks", len(a.report.ReachableSinks)),
		slog.Any("unreachable_sinks", unreachable),
		slog.Any("unreachable_operations", a.report.UnreachableOperations))
}

// Handler returns the composed HTTP handler.
func (a *App) Handler() http.Handler {
	return a.server.Router
}

// Service returns the entry operations.
func (a *App) Service() *scenario.Service {
	return a.service
}

// Report returns the reachability of every catalogued sink from the
// mounted route table.
func (a *App) Report() reachability.Report {
	return a.report
}

// Run serves HTTP until ctx is done or the server fails, then shuts the
// server down and closes the backend.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(a.server.Start)
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
		defer cancel()
		return a.Shutdown(shutdownCtx)
	})

	a.logger.Info("app started", slog.Int("port", a.cfg.Server.Port))
	return g.Wait()
}

// Shutdown stops the server, waiting for in-flight requests, then closes the
// backend.
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down")

	if err := a.server.Shutdown(ctx); err != nil {
		a.logger.Error("failed to shutdown server", slog.String("error", err.Error()))
		return err
	}
	if err := a.backend.Close(ctx); err != nil {
		a.logger.Error("failed to close backend", slog.String("error", err.Error()))
	}

	a.logger.Info("shutdown complete")
	return nil
}
