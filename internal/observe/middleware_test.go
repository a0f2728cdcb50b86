package observe

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// sideServer mounts a few routes behind Middleware and installs an in-memory
// span exporter as the global tracer provider.
func sideServer(t *testing.T, log *slog.Logger) (http.Handler, *Metrics, func() metricdata.ResourceMetrics, *tracetest.InMemoryExporter) {
	t.Helper()
	m, reader := newTestMetrics(t)

	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	mux.HandleFunc("GET /session", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Seen-Trace", CorrelationID(r.Context()))
		w.WriteHeader(http.StatusOK)
	})
	return Middleware(m, log)(mux), m, func() metricdata.ResourceMetrics { return collect(t, reader) }, exp
}

func serve(h http.Handler, path string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestMiddleware_CorrelationHeaderMatchesHandlerTrace(t *testing.T) {
	h, _, _, _ := sideServer(t, nil)
	rec := serve(h, "/session", nil)

	id := rec.Header().Get(CorrelationHeader)
	if len(id) != 32 {
		t.Fatalf("%s = %q, want a 32-char trace ID", CorrelationHeader, id)
	}
	if seen := rec.Header().Get("X-Seen-Trace"); seen != id {
		t.Errorf("handler saw trace %q, response carries %q", seen, id)
	}
}

func TestMiddleware_ContinuesIncomingTrace(t *testing.T) {
	h, _, _, _ := sideServer(t, nil)
	const traceID = "4bf92f3577b34da6a3ce929d0e0e4736"
	rec := serve(h, "/session", http.Header{
		"Traceparent": {"00-" + traceID + "-00f067aa0ba902b7-01"},
	})
	if got := rec.Header().Get(CorrelationHeader); got != traceID {
		t.Errorf("%s = %q, want %q", CorrelationHeader, got, traceID)
	}
	if got := rec.Header().Get("Traceparent"); !strings.Contains(got, traceID) {
		t.Errorf("response traceparent = %q, want it to carry %s", got, traceID)
	}
}

func TestMiddleware_SpanNamedByRoute(t *testing.T) {
	h, _, _, exp := sideServer(t, nil)
	serve(h, "/readyz", nil)
	serve(h, "/no-such-page", nil)

	spans := exp.GetSpans()
	if len(spans) != 2 {
		t.Fatalf("spans = %d, want 2", len(spans))
	}
	if spans[0].Name != "sideserver GET /readyz" {
		t.Errorf("span name = %q", spans[0].Name)
	}
	if spans[1].Name != "sideserver unmatched" {
		t.Errorf("span name = %q", spans[1].Name)
	}
	var status int64
	for _, kv := range spans[0].Attributes {
		if kv.Key == "http.response.status_code" {
			status = kv.Value.AsInt64()
		}
	}
	if status != http.StatusServiceUnavailable {
		t.Errorf("status attribute = %d, want 503", status)
	}
}

func TestMiddleware_RecordsDurationByRoute(t *testing.T) {
	h, _, rm, _ := sideServer(t, nil)
	serve(h, "/healthz", nil)
	serve(h, "/healthz", nil)
	serve(h, "/random-1", nil)
	serve(h, "/random-2", nil)

	met := findMetric(rm(), "mockmate.http.request.duration")
	if met == nil {
		t.Fatal("duration histogram not recorded")
	}
	counts := map[string]uint64{}
	for _, dp := range met.Data.(metricdata.Histogram[float64]).DataPoints {
		route, _ := dp.Attributes.Value("route")
		counts[route.AsString()] += dp.Count
	}
	if counts["GET /healthz"] != 2 || counts["unmatched"] != 2 || len(counts) != 2 {
		t.Errorf("counts by route = %v", counts)
	}
}

func TestMiddleware_ImplicitOKStatus(t *testing.T) {
	h, _, rm, _ := sideServer(t, nil)
	serve(h, "/healthz", nil)

	met := findMetric(rm(), "mockmate.http.request.duration")
	if met == nil {
		t.Fatal("duration histogram not recorded")
	}
	status, _ := met.Data.(metricdata.Histogram[float64]).DataPoints[0].Attributes.Value("status")
	if status.AsInt64() != http.StatusOK {
		t.Errorf("status = %d, want 200 for a handler that only writes a body", status.AsInt64())
	}
}

func TestMiddleware_PollRoutesLogAtDebug(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	h, _, _, _ := sideServer(t, log)

	serve(h, "/healthz", nil)
	if buf.Len() != 0 {
		t.Errorf("probe request logged at info: %s", buf.String())
	}
	serve(h, "/session", nil)
	if !strings.Contains(buf.String(), `route="GET /session"`) {
		t.Errorf("session request not logged: %s", buf.String())
	}
}
