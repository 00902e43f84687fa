// Package render simulates markup production from pipeline values.
package render

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/tjfontaine/taintpath/internal/core/domain"
	"github.com/tjfontaine/taintpath/internal/core/ports"
)

const (
	commentTemplate = `<div class="comment">%s</div>`
	frameTemplate   = `<div>%s</div>`
)

var tracer = otel.Tracer("github.com/tjfontaine/taintpath/internal/sink/render")

// Sink implements ports.RenderSink.
type Sink struct {
	logger   *slog.Logger
	observer ports.SinkObserver
}

// Option configures a Sink.
type Option func(*Sink)

// WithLogger sets the logger used for render records.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Sink) { s.logger = logger }
}

// WithObserver registers an observer notified before every render.
func WithObserver(o ports.SinkObserver) Option {
	return func(s *Sink) { s.observer = o }
}

// New creates a render sink.
func New(opts ...Option) *Sink {
	s := &Sink{logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RenderUnsafe embeds the value into the comment template without escaping.
func (s *Sink) RenderUnsafe(ctx context.Context, v domain.Value) domain.SinkResult {
	exposure := domain.ExposureSafe
	if v.TaintedFor(domain.FamilyHTML) {
		exposure = domain.ExposureVulnerable
	}
	return s.render(ctx, domain.SinkRenderUnsafe, v, exposure)
}

// RenderSafe embeds a value that must already have passed html-escape. It
// performs no escaping itself; a value that skipped the escape is reported
// as vulnerable but rendered all the same.
func (s *Sink) RenderSafe(ctx context.Context, v domain.Value) domain.SinkResult {
	exposure := domain.ExposureSafe
	if v.Tainted && !v.Passed(domain.PolicyHTMLEscape) {
		exposure = domain.ExposureVulnerable
	}
	return s.render(ctx, domain.SinkRenderSafe, v, exposure)
}

func (s *Sink) render(ctx context.Context, id domain.SinkID, v domain.Value, exposure domain.Exposure) domain.SinkResult {
	ctx, span := tracer.Start(ctx, "sink."+string(id))
	defer span.End()
	span.SetAttributes(
		attribute.Bool("taint.tainted", v.TaintedFor(domain.FamilyHTML)),
		attribute.String("sink.exposure", string(exposure)),
	)

	if s.observer != nil {
		s.observer.ObserveSink(ctx, id, v)
	}

	markup := fmt.Sprintf(commentTemplate, v.String())
	s.logger.DebugContext(ctx, "rendering markup",
		slog.String("sink", string(id)),
		slog.String("exposure", string(exposure)),
		slog.Int("bytes", len(markup)),
	)

	return domain.SinkResult{
		Sink:     id,
		Exposure: exposure,
		Markup:   markup,
	}
}

// Frame wraps already-produced markup, or a raw value, in the outer response
// container. It embeds its argument verbatim.
func Frame(inner string) string {
	return fmt.Sprintf(frameTemplate, inner)
}

var _ ports.RenderSink = (*Sink)(nil)
