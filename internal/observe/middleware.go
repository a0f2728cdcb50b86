package observe

import (
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.39.0"
	"go.opentelemetry.io/otel/trace"
)

// CorrelationHeader carries the trace ID of a side-server response.
const CorrelationHeader = "X-Correlation-ID"

// pollRoutes are hit by probes and scrapers; their access logs go to debug.
var pollRoutes = map[string]bool{
	"GET /healthz": true,
	"GET /readyz":  true,
	"GET /metrics": true,
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (w *responseWriter) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *responseWriter) Write(p []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.ResponseWriter.Write(p)
}

// Middleware wraps the side server's mux. Each request runs in a server span
// continuing any incoming W3C trace context, gets the trace ID echoed in
// [CorrelationHeader], and is recorded in the HTTP duration histogram under
// its matched route pattern so unknown paths do not explode label
// cardinality. A nil log uses [slog.Default].
func Middleware(m *Metrics, log *slog.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = slog.Default()
	}
	prop := propagation.TraceContext{}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ctx := prop.Extract(r.Context(), propagation.HeaderCarrier(r.Header))
			ctx, span := StartSpan(ctx, "sideserver "+r.Method,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					semconv.HTTPRequestMethodKey.String(r.Method),
					semconv.URLPath(r.URL.Path),
				),
			)
			defer span.End()

			traceID := CorrelationID(ctx)
			if traceID != "" {
				w.Header().Set(CorrelationHeader, traceID)
			}
			prop.Inject(ctx, propagation.HeaderCarrier(w.Header()))

			rw := &responseWriter{ResponseWriter: w}
			r = r.WithContext(ctx)
			next.ServeHTTP(rw, r)
			if rw.status == 0 {
				rw.status = http.StatusOK
			}

			// r.Pattern is set by ServeMux on the request it was handed.
			route := r.Pattern
			if route == "" {
				route = "unmatched"
			}
			span.SetName("sideserver " + route)
			span.SetAttributes(
				semconv.HTTPRoute(route),
				semconv.HTTPResponseStatusCode(rw.status),
			)

			elapsed := time.Since(start)
			if m != nil {
				m.HTTPRequestDuration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(
					attribute.String("method", r.Method),
					attribute.String("route", route),
					attribute.Int("status", rw.status),
				))
			}

			level := slog.LevelInfo
			if pollRoutes[route] {
				level = slog.LevelDebug
			}
			log.LogAttrs(ctx, level, "side server request",
				slog.String("trace_id", traceID),
				slog.String("route", route),
				slog.String("path", r.URL.Path),
				slog.Int("status", rw.status),
				slog.Duration("elapsed", elapsed),
			)
		})
	}
}
