// Package observe provides application-wide observability primitives:
// OpenTelemetry metrics and the SDK provider wiring that exposes them.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all metrics.
const meterName = "github.com/herowayua/livevoice"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Capture pipeline ---

	// CaptureFrames counts encoded microphone frames handed to the session.
	CaptureFrames metric.Int64Counter

	// CaptureDropped counts frames discarded because the session could not
	// keep up with the microphone.
	CaptureDropped metric.Int64Counter

	// --- Playback pipeline ---

	// PlaybackScheduled counts audio chunks queued for playback.
	PlaybackScheduled metric.Int64Counter

	// PlaybackInterrupts counts barge-in events that flushed the playback
	// queue.
	PlaybackInterrupts metric.Int64Counter

	// --- Session lifecycle ---

	// ActiveSessions tracks the number of live voice sessions.
	ActiveSessions metric.Int64UpDownCounter

	// SessionDuration tracks how long sessions last from connect to
	// teardown.
	SessionDuration metric.Float64Histogram

	// SessionErrors counts sessions that ended with an error. Use with
	// attribute.String("kind", ...).
	SessionErrors metric.Int64Counter

	// --- Analysis ---

	// AnalysisDuration tracks feedback generation latency including
	// retries.
	AnalysisDuration metric.Float64Histogram

	// AnalysisErrors counts feedback requests that failed permanently.
	AnalysisErrors metric.Int64Counter
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// both sub-second pipeline work and multi-minute session lifetimes.
var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 300, 900,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Counters.
	if met.CaptureFrames, err = m.Int64Counter("livevoice.capture.frames",
		metric.WithDescription("Total encoded microphone frames sent to the session."),
	); err != nil {
		return nil, err
	}
	if met.CaptureDropped, err = m.Int64Counter("livevoice.capture.dropped",
		metric.WithDescription("Total microphone frames discarded under backpressure."),
	); err != nil {
		return nil, err
	}
	if met.PlaybackScheduled, err = m.Int64Counter("livevoice.playback.scheduled",
		metric.WithDescription("Total audio chunks queued for playback."),
	); err != nil {
		return nil, err
	}
	if met.PlaybackInterrupts, err = m.Int64Counter("livevoice.playback.interrupts",
		metric.WithDescription("Total barge-in events that flushed queued playback."),
	); err != nil {
		return nil, err
	}
	if met.SessionErrors, err = m.Int64Counter("livevoice.session.errors",
		metric.WithDescription("Total sessions terminated by an error, by kind."),
	); err != nil {
		return nil, err
	}
	if met.AnalysisErrors, err = m.Int64Counter("livevoice.analysis.errors",
		metric.WithDescription("Total feedback requests that failed permanently."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveSessions, err = m.Int64UpDownCounter("livevoice.active_sessions",
		metric.WithDescription("Number of live voice sessions."),
	); err != nil {
		return nil, err
	}

	// Histograms.
	if met.SessionDuration, err = m.Float64Histogram("livevoice.session.duration",
		metric.WithDescription("Session lifetime from connect to teardown."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.AnalysisDuration, err = m.Float64Histogram("livevoice.analysis.duration",
		metric.WithDescription("Feedback generation latency including retries."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	return met, nil
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

// RecordSessionError records a session error counter increment with the
// standard attribute set.
func (m *Metrics) RecordSessionError(ctx context.Context, kind string) {
	m.SessionErrors.Add(ctx, 1,
		metric.WithAttributes(attribute.String("kind", kind)),
	)
}
