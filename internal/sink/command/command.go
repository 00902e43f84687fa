// Package command simulates data-access commands against the shared backend.
package command

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tjfontaine/taintpath/internal/core/domain"
	"github.com/tjfontaine/taintpath/internal/core/ports"
	"github.com/tjfontaine/taintpath/internal/storage/dialect"
)

const (
	equalsTemplate        = `SELECT * FROM users WHERE username = '%s'`
	containsTemplate      = `SELECT * FROM users WHERE username LIKE '%%%s%%'`
	parameterizedTemplate = `SELECT * FROM users WHERE username = ?`
	insertTemplate        = `INSERT INTO users (%s) VALUES (%s)`
	deleteTemplate        = `DELETE FROM users WHERE id = '%s'`
)

var tracer = otel.Tracer("github.com/tjfontaine/taintpath/internal/sink/command")

// Sink implements ports.CommandSink over an injected backend.
type Sink struct {
	backend  ports.Backend
	logger   *slog.Logger
	observer ports.SinkObserver
}

// Option configures a Sink.
type Option func(*Sink)

// WithLogger sets the logger used for command records.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Sink) { s.logger = logger }
}

// WithObserver registers an observer notified before every command.
func WithObserver(o ports.SinkObserver) Option {
	return func(s *Sink) { s.observer = o }
}

// New creates a command sink. The backend handle is owned by the caller.
func New(backend ports.Backend, opts ...Option) *Sink {
	s := &Sink{backend: backend, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ExecuteUnsafe interpolates v into the predicate template and runs it.
// The sink performs no validation of its own.
func (s *Sink) ExecuteUnsafe(ctx context.Context, p domain.Predicate, v domain.Value) (domain.SinkResult, error) {
	id, tmpl := domain.SinkCommandUnsafeEquals, equalsTemplate
	if p == domain.PredicateContains {
		id, tmpl = domain.SinkCommandUnsafeContains, containsTemplate
	}
	stmt := fmt.Sprintf(tmpl, v.String())
	return s.query(ctx, id, exposure(v), stmt, nil, v)
}

// ExecuteParameterized binds v as a parameter. It is safe whatever the taint.
func (s *Sink) ExecuteParameterized(ctx context.Context, v domain.Value) (domain.SinkResult, error) {
	stmt := s.dialect().Rebind(parameterizedTemplate)
	return s.query(ctx, domain.SinkCommandParameterized, domain.ExposureSafe, stmt, []any{v.String()}, v)
}

// Insert interpolates every field value into an insert command and reports
// the new row id.
func (s *Sink) Insert(ctx context.Context, fields []ports.Field) (domain.SinkResult, error) {
	id := domain.SinkCommandInsert
	ctx = context.WithoutCancel(ctx)

	cols := make([]string, len(fields))
	vals := make([]string, len(fields))
	exp := domain.ExposureSafe
	var observed domain.Value
	for i, f := range fields {
		cols[i] = f.Column
		vals[i] = "'" + f.Value.String() + "'"
		if i == 0 {
			observed = f.Value
		}
		if exposure(f.Value) == domain.ExposureVulnerable && exp == domain.ExposureSafe {
			exp = domain.ExposureVulnerable
			observed = f.Value
		}
	}
	stmt := fmt.Sprintf(insertTemplate, strings.Join(cols, ", "), strings.Join(vals, ", "))

	returning := s.dialect().SupportsReturning()
	if returning {
		stmt += " RETURNING id"
	}

	ctx, span := s.start(ctx, id, exp)
	defer span.End()
	s.observe(ctx, id, observed)

	res := domain.SinkResult{Sink: id, Exposure: exp, Statement: stmt}
	sess, err := s.backend.Acquire(ctx)
	if err != nil {
		return res, s.fail(span, "insert", stmt, err)
	}
	defer sess.Close()

	if returning {
		records, err := sess.Query(ctx, stmt)
		if err != nil {
			return res, s.fail(span, "insert", stmt, err)
		}
		if len(records) > 0 {
			res.InsertedID = toInt64(records[0]["id"])
		}
	} else {
		out, err := sess.Exec(ctx, stmt)
		if err != nil {
			return res, s.fail(span, "insert", stmt, err)
		}
		res.InsertedID = out.LastInsertID
	}

	s.log(ctx, id, exp, stmt)
	return res, nil
}

// Delete interpolates the identifier into a delete command.
func (s *Sink) Delete(ctx context.Context, idv domain.Value) (domain.SinkResult, error) {
	id := domain.SinkCommandDelete
	ctx = context.WithoutCancel(ctx)
	exp := exposure(idv)
	stmt := fmt.Sprintf(deleteTemplate, idv.String())

	ctx, span := s.start(ctx, id, exp)
	defer span.End()
	s.observe(ctx, id, idv)

	res := domain.SinkResult{Sink: id, Exposure: exp, Statement: stmt}
	sess, err := s.backend.Acquire(ctx)
	if err != nil {
		return res, s.fail(span, "delete", stmt, err)
	}
	defer sess.Close()

	if _, err := sess.Exec(ctx, stmt); err != nil {
		return res, s.fail(span, "delete", stmt, err)
	}

	s.log(ctx, id, exp, stmt)
	return res, nil
}

// query runs a row-returning statement. Issued commands are detached from
// the caller's cancellation so an abandoned request cannot interrupt them.
func (s *Sink) query(ctx context.Context, id domain.SinkID, exp domain.Exposure, stmt string, args []any, v domain.Value) (domain.SinkResult, error) {
	ctx = context.WithoutCancel(ctx)
	ctx, span := s.start(ctx, id, exp)
	defer span.End()
	s.observe(ctx, id, v)

	res := domain.SinkResult{Sink: id, Exposure: exp, Statement: stmt, Args: args}
	sess, err := s.backend.Acquire(ctx)
	if err != nil {
		return res, s.fail(span, "query", stmt, err)
	}
	defer sess.Close()

	records, err := sess.Query(ctx, stmt, args...)
	if err != nil {
		return res, s.fail(span, "query", stmt, err)
	}
	res.Records = records

	s.log(ctx, id, exp, stmt, slog.Int("records", len(records)))
	return res, nil
}

func (s *Sink) start(ctx context.Context, id domain.SinkID, exp domain.Exposure) (context.Context, trace.Span) {
	ctx, span := tracer.Start(ctx, "sink."+string(id))
	span.SetAttributes(attribute.String("sink.exposure", string(exp)))
	return ctx, span
}

func (s *Sink) observe(ctx context.Context, id domain.SinkID, v domain.Value) {
	if s.observer != nil {
		s.observer.ObserveSink(ctx, id, v)
	}
}

func (s *Sink) fail(span trace.Span, op, stmt string, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, op+" failed")
	return &domain.BackendError{Op: op, Statement: stmt, Err: err}
}

func (s *Sink) log(ctx context.Context, id domain.SinkID, exp domain.Exposure, stmt string, attrs ...slog.Attr) {
	attrs = append([]slog.Attr{
		slog.String("sink", string(id)),
		slog.String("exposure", string(exp)),
		slog.String("statement", stmt),
	}, attrs...)
	s.logger.LogAttrs(ctx, slog.LevelDebug, "executed command", attrs...)
}

// dialect resolves the backend's placeholder dialect, falling back to sqlite.
func (s *Sink) dialect() dialect.Dialect {
	d, err := dialect.FromDriverName(s.backend.Dialect())
	if err != nil {
		d, _ = dialect.New(dialect.SQLite)
	}
	return d
}

func exposure(v domain.Value) domain.Exposure {
	if v.TaintedFor(domain.FamilySQL) {
		return domain.ExposureVulnerable
	}
	return domain.ExposureSafe
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int32:
		return int64(n)
	case int:
		return int64(n)
	case float64:
		return int64(n)
	case string:
		out, _ := strconv.ParseInt(n, 10, 64)
		return out
	default:
		return 0
	}
}

var _ ports.CommandSink = (*Sink)(nil)
