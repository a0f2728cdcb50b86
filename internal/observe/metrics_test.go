package observe

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

// total sums an int64 sum instrument over the data points whose attributes
// include all of attrs.
func total(t *testing.T, rm metricdata.ResourceMetrics, name string, attrs ...attribute.KeyValue) int64 {
	t.Helper()
	met := findMetric(rm, name)
	if met == nil {
		t.Fatalf("metric %q not recorded", name)
	}
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("metric %q is %T, want an int64 sum", name, met.Data)
	}
	var n int64
points:
	for _, dp := range sum.DataPoints {
		for _, want := range attrs {
			if got, ok := dp.Attributes.Value(want.Key); !ok || got != want.Value {
				continue points
			}
		}
		n += dp.Value
	}
	return n
}

func TestNewMetrics_Histograms(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.HandshakeDuration.Record(ctx, 0.4)
	m.SegmentDuration.Record(ctx, 1.2)
	m.SegmentDuration.Record(ctx, 0.8)
	m.RecordFeedback(ctx, "analyzer", 7.5)

	rm := collect(t, reader)
	for name, want := range map[string]uint64{
		"mockmate.session.handshake.duration": 1,
		"mockmate.playback.segment.duration":  2,
		"mockmate.feedback.duration":          1,
	} {
		met := findMetric(rm, name)
		if met == nil {
			t.Errorf("%s not recorded", name)
			continue
		}
		hist := met.Data.(metricdata.Histogram[float64])
		if got := hist.DataPoints[0].Count; got != want {
			t.Errorf("%s count = %d, want %d", name, got, want)
		}
		if met.Unit != "s" {
			t.Errorf("%s unit = %q, want s", name, met.Unit)
		}
	}

	fb := findMetric(rm, "mockmate.feedback.duration").Data.(metricdata.Histogram[float64]).DataPoints[0]
	if len(fb.Bounds) != len(latencyBuckets) {
		t.Errorf("feedback buckets = %v, want %v", fb.Bounds, latencyBuckets)
	}
	if gen, _ := fb.Attributes.Value("generator"); gen.AsString() != "analyzer" {
		t.Errorf("generator = %q", gen.AsString())
	}
}

func TestNewMetrics_CaptureAndPlaybackCounters(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.CapturedBlocks.Add(ctx, 50)
	m.SentPackets.Add(ctx, 48)
	m.SendErrors.Add(ctx, 2)
	m.CallbackFaults.Add(ctx, 1)
	m.DecodedSegments.Add(ctx, 12)
	m.Interrupts.Add(ctx, 3)

	rm := collect(t, reader)
	for name, want := range map[string]int64{
		"mockmate.capture.blocks":      50,
		"mockmate.capture.sent":        48,
		"mockmate.capture.send_errors": 2,
		"mockmate.capture.faults":      1,
		"mockmate.playback.segments":   12,
		"mockmate.playback.interrupts": 3,
	} {
		if got := total(t, rm, name); got != want {
			t.Errorf("%s = %d, want %d", name, got, want)
		}
	}
}

func TestRecordHelpers(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordDecodeFailure(ctx, "base64")
	m.RecordDecodeFailure(ctx, "base64")
	m.RecordDecodeFailure(ctx, "invalid_audio")
	m.RecordTransportError(ctx, "server", true)
	m.RecordTransportError(ctx, "server", false)
	m.RecordTransportError(ctx, "read", false)
	m.RecordProviderRequest(ctx, "openai", "ok")
	m.RecordProviderRequest(ctx, "openai", "error")
	m.RecordProviderRequest(ctx, "ollama", "ok")

	rm := collect(t, reader)
	tests := []struct {
		metric string
		attrs  []attribute.KeyValue
		want   int64
	}{
		{"mockmate.playback.decode_failures", []attribute.KeyValue{attribute.String("reason", "base64")}, 2},
		{"mockmate.playback.decode_failures", []attribute.KeyValue{attribute.String("reason", "invalid_audio")}, 1},
		{"mockmate.transport.errors", []attribute.KeyValue{attribute.Bool("benign", false)}, 2},
		{"mockmate.transport.errors", []attribute.KeyValue{attribute.String("kind", "server"), attribute.Bool("benign", true)}, 1},
		{"mockmate.provider.requests", []attribute.KeyValue{attribute.String("status", "ok")}, 2},
		{"mockmate.provider.requests", []attribute.KeyValue{attribute.String("provider", "openai")}, 2},
	}
	for _, tt := range tests {
		if got := total(t, rm, tt.metric, tt.attrs...); got != tt.want {
			t.Errorf("%s%v = %d, want %d", tt.metric, tt.attrs, got, tt.want)
		}
	}
}

func TestNewMetrics_Gauges(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.ActiveSessions.Add(ctx, 1)
	m.ActiveSources.Add(ctx, 3)
	m.ActiveSources.Add(ctx, -2)

	rm := collect(t, reader)
	if got := total(t, rm, "mockmate.active_sessions"); got != 1 {
		t.Errorf("active sessions = %d, want 1", got)
	}
	if got := total(t, rm, "mockmate.playback.active_sources"); got != 1 {
		t.Errorf("active sources = %d, want 1", got)
	}
}

func TestDefaultMetrics_Singleton(t *testing.T) {
	if DefaultMetrics() != DefaultMetrics() {
		t.Error("DefaultMetrics returned different instances")
	}
}
