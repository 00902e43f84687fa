// Package scenario wires the entry operations. Each operation fixes one
// reproducible path from an untrusted input through an optional sanitizer
// and a hop chain to a sink.
package scenario

import (
	"context"
	"errors"
	"log/slog"

	"github.com/tjfontaine/taintpath/internal/core/domain"
	"github.com/tjfontaine/taintpath/internal/core/ports"
	"github.com/tjfontaine/taintpath/internal/dispatch"
	"github.com/tjfontaine/taintpath/internal/pipeline"
	"github.com/tjfontaine/taintpath/internal/sanitize"
	"github.com/tjfontaine/taintpath/internal/sink/render"
)

var (
	commandSafe = domain.MustDispatchConfig(domain.TargetCommand, domain.SafetySafe)
	renderBad   = domain.MustDispatchConfig(domain.TargetRender, domain.SafetyUnsafe, domain.WithHTMLMode(domain.HTMLModeBad))
	renderSafe  = domain.MustDispatchConfig(domain.TargetRender, domain.SafetySafe, domain.WithHTMLMode(domain.HTMLModeSafe))
)

// Outcome is what an entry operation hands back to the boundary layer.
type Outcome struct {
	Operation string
	// Result is the terminal sink's result.
	Result domain.SinkResult
	// Markup is the framed response of render operations.
	Markup string
	// Exposure is the worst exposure of anything the operation emitted.
	Exposure domain.Exposure
}

// Config holds the collaborators of a Service.
type Config struct {
	Dispatcher *dispatch.Dispatcher
	Command    ports.CommandSink
	Render     ports.RenderSink
	// Forward is the long chain used by fetch-by-name.
	Forward *pipeline.Chain
	// Direct is the hop-less chain used by every other dispatched operation.
	Direct *pipeline.Chain
	Logger *slog.Logger
}

// Service implements the entry operations.
type Service struct {
	dispatcher *dispatch.Dispatcher
	command    ports.CommandSink
	render     ports.RenderSink
	forward    *pipeline.Chain
	direct     *pipeline.Chain
	logger     *slog.Logger
}

// New creates a Service.
func New(cfg Config) *Service {
	s := &Service{
		dispatcher: cfg.Dispatcher,
		command:    cfg.Command,
		render:     cfg.Render,
		forward:    cfg.Forward,
		direct:     cfg.Direct,
		logger:     cfg.Logger,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.direct == nil {
		s.direct = pipeline.NewDirectChain(s.logger)
	}
	if s.forward == nil {
		s.forward = s.direct
	}
	return s
}

// FetchByName looks a user up through the long chain with the default
// dispatch. A quote-stripped copy is computed and dropped; the raw value is
// what travels.
func (s *Service) FetchByName(ctx context.Context, username domain.Value) (Outcome, error) {
	_ = s.sanitize(ctx, domain.PolicySQLNaiveQuoteStrip, username)

	res, err := s.forward.Run(ctx, username, "dispatch", func(ctx context.Context, v domain.Value) (domain.SinkResult, error) {
		return s.dispatcher.Dispatch(ctx, v, nil)
	})
	if err != nil {
		return Outcome{}, err
	}
	return s.outcome(OpFetchByName, res), nil
}

// SearchByTerm trims the term and binds it through the parameterized sink.
func (s *Service) SearchByTerm(ctx context.Context, term domain.Value) (Outcome, error) {
	clean := s.sanitize(ctx, domain.PolicySQLTrim, term)

	res, err := s.direct.Run(ctx, clean, "dispatch", func(ctx context.Context, v domain.Value) (domain.SinkResult, error) {
		return s.dispatcher.Dispatch(ctx, v, commandSafe)
	})
	if err != nil {
		return Outcome{}, err
	}
	return s.outcome(OpSearchByTerm, res), nil
}

// CreateUser inserts the raw fields through the unsafe insert sink.
func (s *Service) CreateUser(ctx context.Context, username, email domain.Value) (Outcome, error) {
	res, err := s.command.Insert(ctx, []ports.Field{
		{Column: "username", Value: username},
		{Column: "email", Value: email},
	})
	if err != nil {
		return Outcome{}, domain.NewChainFailure(string(domain.SinkCommandInsert), err)
	}
	return s.outcome(OpCreateUser, res), nil
}

// CommentBad strips script blocks naively, dispatches to the unescaped
// render sink and then frames the stripped comment itself.
func (s *Service) CommentBad(ctx context.Context, comment domain.Value) (Outcome, error) {
	bad := s.sanitize(ctx, domain.PolicyHTMLNaiveScriptStrip, comment)

	res, err := s.direct.Run(ctx, bad, "dispatch", func(ctx context.Context, v domain.Value) (domain.SinkResult, error) {
		return s.dispatcher.Dispatch(ctx, v, renderBad)
	})
	if err != nil {
		return Outcome{}, err
	}
	return s.framed(OpCommentBad, res, bad.String(), bad), nil
}

// CommentBadDirect calls the unescaped render sink without the dispatcher
// and frames the sink's markup.
func (s *Service) CommentBadDirect(ctx context.Context, comment domain.Value) (Outcome, error) {
	bad := s.sanitize(ctx, domain.PolicyHTMLNaiveScriptStrip, comment)

	res := s.render.RenderUnsafe(ctx, bad)
	return s.framed(OpCommentBadDirect, res, res.Markup, bad), nil
}

// CommentGood escapes the comment and renders it through the safe sink.
func (s *Service) CommentGood(ctx context.Context, comment domain.Value) (Outcome, error) {
	clean := s.sanitize(ctx, domain.PolicyHTMLEscape, comment)

	res, err := s.direct.Run(ctx, clean, "dispatch", func(ctx context.Context, v domain.Value) (domain.SinkResult, error) {
		return s.dispatcher.Dispatch(ctx, v, renderSafe)
	})
	if err != nil {
		return Outcome{}, err
	}
	return s.framed(OpCommentGood, res, clean.String(), clean), nil
}

// DeadDelete quote-strips the id and deletes through the unsafe delete sink.
// Only the administrative routes call it, and they are never mounted.
func (s *Service) DeadDelete(ctx context.Context, id domain.Value) (Outcome, error) {
	cleaned := s.sanitize(ctx, domain.PolicySQLNaiveQuoteStrip, id)

	res, err := s.command.Delete(ctx, cleaned)
	if err != nil {
		return Outcome{}, domain.NewChainFailure(string(domain.SinkCommandDelete), err)
	}
	return s.outcome(OpDeadDelete, res), nil
}

// sanitize applies a policy. A type mismatch is not fatal: the value goes on
// unchanged.
func (s *Service) sanitize(ctx context.Context, id domain.PolicyID, v domain.Value) domain.Value {
	out, err := sanitize.Apply(id, v)
	var tm *domain.TypeMismatchError
	if errors.As(err, &tm) {
		s.logger.DebugContext(ctx, "sanitizer bypassed",
			slog.String("policy", string(id)),
			slog.String("got", tm.Got),
		)
	}
	return out
}

func (s *Service) outcome(op string, res domain.SinkResult) Outcome {
	exp := res.Exposure
	if exp == "" {
		exp = domain.ExposureSafe
	}
	return Outcome{Operation: op, Result: res, Exposure: exp}
}

// framed wraps inner in the response frame. The frame embeds verbatim, so it
// is vulnerable whenever raw is still tainted for markup.
func (s *Service) framed(op string, res domain.SinkResult, inner string, raw domain.Value) Outcome {
	o := s.outcome(op, res)
	o.Markup = render.Frame(inner)
	if raw.TaintedFor(domain.FamilyHTML) {
		o.Exposure = domain.ExposureVulnerable
	}
	return o
}
