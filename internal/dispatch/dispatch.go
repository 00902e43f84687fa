// Package dispatch routes a value to exactly one sink.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/tjfontaine/taintpath/internal/core/domain"
	"github.com/tjfontaine/taintpath/internal/core/ports"
)

var tracer = otel.Tracer("github.com/tjfontaine/taintpath/internal/dispatch")

// Dispatcher selects a sink from a validated DispatchConfig.
type Dispatcher struct {
	command ports.CommandSink
	render  ports.RenderSink
	logger  *slog.Logger
}

// New creates a dispatcher over the given sinks.
func New(command ports.CommandSink, render ports.RenderSink, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{command: command, render: render, logger: logger}
}

// Dispatch routes v according to cfg. A nil cfg selects the unsafe default:
// a non-empty value goes to the unsafe equality command and an empty value
// produces an empty result without touching any sink.
func (d *Dispatcher) Dispatch(ctx context.Context, v domain.Value, cfg *domain.DispatchConfig) (domain.SinkResult, error) {
	ctx, span := tracer.Start(ctx, "dispatch")
	defer span.End()
	span.SetAttributes(attribute.Bool("taint.tainted", v.Tainted))

	if cfg == nil {
		span.SetAttributes(attribute.String("dispatch.route", "default"))
		return d.unsafeCommand(ctx, v, domain.PredicateEquals)
	}

	span.SetAttributes(
		attribute.String("dispatch.target", string(cfg.Target())),
		attribute.String("dispatch.safety", string(cfg.Safety())),
	)

	switch cfg.Target() {
	case domain.TargetCommand:
		if cfg.Safety() == domain.SafetySafe {
			return d.command.ExecuteParameterized(ctx, v)
		}
		return d.unsafeCommand(ctx, v, cfg.Predicate())
	case domain.TargetRender:
		switch cfg.HTMLMode() {
		case domain.HTMLModeBad:
			return d.render.RenderUnsafe(ctx, v), nil
		case domain.HTMLModeSafe:
			return d.render.RenderSafe(ctx, v), nil
		}
	}

	// Unreachable for configs built by NewDispatchConfig.
	return domain.SinkResult{}, &domain.ConfigError{
		Field:  "target",
		Reason: fmt.Sprintf("no sink for %s/%s/%q", cfg.Target(), cfg.Safety(), cfg.HTMLMode()),
	}
}

func (d *Dispatcher) unsafeCommand(ctx context.Context, v domain.Value, p domain.Predicate) (domain.SinkResult, error) {
	if v.IsEmpty() {
		d.logger.DebugContext(ctx, "empty value, no sink selected")
		return domain.SinkResult{}, nil
	}
	return d.command.ExecuteUnsafe(ctx, p, v)
}
