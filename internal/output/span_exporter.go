package output

import (
	"context"
	"time"

	"github.com/mrzor/trec/internal/attributes"
	"github.com/mrzor/trec/internal/record"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// SpanExporter emits records as spans on a tracer.
type SpanExporter struct {
	tracer    trace.Tracer
	session   trace.SpanContext
	evaluator *attributes.Evaluator
	logger    *zap.Logger
}

// NewSpanExporter creates an exporter parenting every span under session.
// evaluator may be nil.
func NewSpanExporter(tracer trace.Tracer, session trace.SpanContext, evaluator *attributes.Evaluator, logger *zap.Logger) *SpanExporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SpanExporter{
		tracer:    tracer,
		session:   session,
		evaluator: evaluator,
		logger:    logger,
	}
}

// Export emits a session span named after the package version, with one
// execve child span per record. It returns the number of execve spans.
func (e *SpanExporter) Export(ctx context.Context, pkg, version string, records []*record.TraceRecord) int {
	ctx = trace.ContextWithRemoteSpanContext(ctx, e.session)

	sessionOpts := []trace.SpanStartOption{
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("trec.package", pkg),
			attribute.String("trec.version", version),
			attribute.Int("trec.records", len(records)),
		),
	}
	if len(records) > 0 {
		sessionOpts = append(sessionOpts, trace.WithTimestamp(records[0].FirstSeen))
	}
	ctx, session := e.tracer.Start(ctx, "trec.record", sessionOpts...)

	var latest time.Time
	for _, r := range records {
		e.exportRecord(ctx, r)
		if r.LastSeen.After(latest) {
			latest = r.LastSeen
		}
	}

	if latest.IsZero() {
		session.End()
	} else {
		session.End(trace.WithTimestamp(latest))
	}

	e.logger.Debug("exported spans", zap.Int("count", len(records)))
	return len(records)
}

func (e *SpanExporter) exportRecord(ctx context.Context, r *record.TraceRecord) {
	_, span := e.tracer.Start(ctx, "execve",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithTimestamp(r.FirstSeen),
	)

	decoded := r.Decoded()
	span.SetAttributes(
		semconv.ProcessExecutablePath(r.ResolvedCallee()),
		semconv.ProcessCommandArgs(r.Args...),
		attribute.String("process.parent.command", r.Caller),
		attribute.String("process.working_directory", r.WorkingDir()),
		attribute.Int("process.argc", len(r.Args)),
		attribute.Int("process.envc", len(r.Envs)),
		attribute.Int64("trec.identity", int64(r.Identity)), //nolint:gosec // Bit-for-bit reinterpretation
		attribute.Bool("trec.fail_arg", decoded.FailArg),
		attribute.Bool("trec.fail_env", decoded.FailEnv),
		attribute.Bool("trec.fail_path", decoded.FailPath),
		attribute.Bool("trec.incomplete_args", decoded.IncompleteArgs),
		attribute.Bool("trec.incomplete_envs", decoded.IncompleteEnvs),
	)

	if custom := e.evaluator.Evaluate(r); len(custom) > 0 {
		span.SetAttributes(custom...)
	}

	if decoded.AnyFailure() {
		span.SetStatus(codes.Error, "capture failed in kernel")
	} else {
		span.SetStatus(codes.Ok, "")
	}

	span.End(trace.WithTimestamp(r.LastSeen))
}
