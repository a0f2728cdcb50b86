package observe

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationScope = "github.com/MrWong99/mockmate"

// StartSpan starts a span on the globally registered tracer provider.
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return otel.Tracer(instrumentationScope).Start(ctx, name, opts...)
}

// SessionAttrs describes an interview session for its root span.
type SessionAttrs struct {
	ID    string
	Role  string
	Model string
}

// StartSessionSpan starts the span covering one interview session, from the
// first dial attempt until teardown.
func StartSessionSpan(ctx context.Context, a SessionAttrs) (context.Context, trace.Span) {
	return StartSpan(ctx, "interview.session",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("interview.session_id", a.ID),
			attribute.String("interview.role", a.Role),
			attribute.String("live.model", a.Model),
		),
	)
}

// EndSpan ends span, marking it failed when err is non-nil.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// CorrelationID is the hex trace ID of the span in ctx, or "".
func CorrelationID(ctx context.Context) string {
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return ""
}

// WithTrace adds trace_id and span_id attributes to l when ctx carries a
// span.
func WithTrace(ctx context.Context, l *slog.Logger) *slog.Logger {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return l
	}
	return l.With(
		slog.String("trace_id", sc.TraceID().String()),
		slog.String("span_id", sc.SpanID().String()),
	)
}
