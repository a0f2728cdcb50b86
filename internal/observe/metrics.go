// Package observe provides application-wide observability primitives for
// mockmate: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all mockmate metrics.
const meterName = "github.com/MrWong99/mockmate"

// Metrics holds all OpenTelemetry metric instruments for the application.
// The instruments are safe for concurrent use.
type Metrics struct {
	// --- Latency histograms ---

	// HandshakeDuration tracks the time from dial to the provider accepting
	// the session setup.
	HandshakeDuration metric.Float64Histogram

	// FeedbackDuration tracks end-of-interview feedback generation latency.
	// Use with attribute: attribute.String("generator", ...)
	FeedbackDuration metric.Float64Histogram

	// SegmentDuration tracks the playback length of each scheduled segment.
	SegmentDuration metric.Float64Histogram

	// --- Capture counters ---

	// CapturedBlocks counts every block delivered by the input device.
	CapturedBlocks metric.Int64Counter

	// SentPackets counts PCM packets handed to the outbound channel.
	SentPackets metric.Int64Counter

	// SendErrors counts packets that could not be sent.
	SendErrors metric.Int64Counter

	// CallbackFaults counts panics recovered in the capture callback.
	CallbackFaults metric.Int64Counter

	// --- Playback counters ---

	// DecodedSegments counts inbound audio payloads decoded and scheduled.
	DecodedSegments metric.Int64Counter

	// DecodeFailures counts inbound audio payloads that were dropped. Use
	// with attribute: attribute.String("reason", ...)
	DecodeFailures metric.Int64Counter

	// Interrupts counts barge-in interruptions of model speech.
	Interrupts metric.Int64Counter

	// --- Error counters ---

	// TransportErrors counts live transport errors. Use with attributes:
	//   attribute.String("kind", ...), attribute.Bool("benign", ...)
	TransportErrors metric.Int64Counter

	// ProviderRequests counts feedback provider calls. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("status", ...)
	ProviderRequests metric.Int64Counter

	// --- Gauges ---

	// ActiveSessions tracks the number of open interview sessions.
	ActiveSessions metric.Int64UpDownCounter

	// ActiveSources tracks the number of scheduled playback segments that
	// have not yet ended.
	ActiveSources metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks side server requests. Use with attributes:
	//   attribute.String("method", ...), attribute.String("route", ...),
	//   attribute.Int("status", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets are histogram boundaries in seconds, spanning a fast
// handshake up to a slow feedback call.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30,
}

// instruments creates instruments on one meter and collects the first error
// of each, so NewMetrics can report them all at once.
type instruments struct {
	meter metric.Meter
	errs  []error
}

func (in *instruments) histogram(name, desc string, buckets ...float64) metric.Float64Histogram {
	opts := []metric.Float64HistogramOption{metric.WithDescription(desc), metric.WithUnit("s")}
	if len(buckets) > 0 {
		opts = append(opts, metric.WithExplicitBucketBoundaries(buckets...))
	}
	h, err := in.meter.Float64Histogram(name, opts...)
	in.note(name, err)
	return h
}

func (in *instruments) counter(name, desc string) metric.Int64Counter {
	c, err := in.meter.Int64Counter(name, metric.WithDescription(desc))
	in.note(name, err)
	return c
}

func (in *instruments) gauge(name, desc string) metric.Int64UpDownCounter {
	g, err := in.meter.Int64UpDownCounter(name, metric.WithDescription(desc))
	in.note(name, err)
	return g
}

func (in *instruments) note(name string, err error) {
	if err != nil {
		in.errs = append(in.errs, fmt.Errorf("%s: %w", name, err))
	}
}

// NewMetrics creates every instrument on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	in := &instruments{meter: mp.Meter(meterName)}
	m := &Metrics{
		HandshakeDuration: in.histogram("mockmate.session.handshake.duration",
			"Time from dial until the provider accepted the session.", latencyBuckets...),
		FeedbackDuration: in.histogram("mockmate.feedback.duration",
			"Latency of interview feedback generation.", latencyBuckets...),
		SegmentDuration: in.histogram("mockmate.playback.segment.duration",
			"Playback length of scheduled model speech segments.", latencyBuckets...),

		CapturedBlocks: in.counter("mockmate.capture.blocks", "Microphone blocks delivered by the input device."),
		SentPackets:    in.counter("mockmate.capture.sent", "PCM packets handed to the live session."),
		SendErrors:     in.counter("mockmate.capture.send_errors", "PCM packets that could not be sent."),
		CallbackFaults: in.counter("mockmate.capture.faults", "Panics recovered in the capture callback."),

		DecodedSegments: in.counter("mockmate.playback.segments", "Inbound audio segments decoded and scheduled."),
		DecodeFailures:  in.counter("mockmate.playback.decode_failures", "Inbound audio payloads dropped, by reason."),
		Interrupts:      in.counter("mockmate.playback.interrupts", "Barge-in interruptions of model speech."),

		TransportErrors:  in.counter("mockmate.transport.errors", "Live transport errors by kind."),
		ProviderRequests: in.counter("mockmate.provider.requests", "Feedback provider requests by provider and status."),

		ActiveSessions: in.gauge("mockmate.active_sessions", "Open interview sessions."),
		ActiveSources:  in.gauge("mockmate.playback.active_sources", "Scheduled playback segments not yet ended."),

		HTTPRequestDuration: in.histogram("mockmate.http.request.duration", "Side server request latency by route."),
	}
	if len(in.errs) > 0 {
		return nil, fmt.Errorf("observe: create instruments: %w", errors.Join(in.errs...))
	}
	return m, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// RecordProviderRequest records a feedback provider request counter
// increment with the standard attribute set.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, status string) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("status", status),
		),
	)
}

// RecordDecodeFailure records a dropped inbound audio payload.
func (m *Metrics) RecordDecodeFailure(ctx context.Context, reason string) {
	m.DecodeFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

// RecordTransportError records a live transport error. Benign errors are
// counted but do not end the session.
func (m *Metrics) RecordTransportError(ctx context.Context, kind string, benign bool) {
	m.TransportErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("kind", kind),
			attribute.Bool("benign", benign),
		),
	)
}

// RecordFeedback records one feedback generation with its latency.
func (m *Metrics) RecordFeedback(ctx context.Context, generator string, seconds float64) {
	m.FeedbackDuration.Record(ctx, seconds, metric.WithAttributes(attribute.String("generator", generator)))
}
