// Package observe provides the observability primitives for mouthpiece:
// OpenTelemetry metrics and tracing, with a Prometheus bridge for scraping.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A package-level
// default [Metrics] instance ([DefaultMetrics]) is bound to the global
// provider; tests should use [NewMetrics] with their own
// [metric.MeterProvider] to avoid cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all mouthpiece metrics.
const meterName = "github.com/linuxmatters/mouthpiece"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use.
type Metrics struct {
	// --- Latency histograms ---

	// CleanDuration tracks one run of the cleaning chain.
	CleanDuration metric.Float64Histogram

	// LipSyncDuration tracks one text+audio to viseme analysis.
	LipSyncDuration metric.Float64Histogram

	// --- Counters ---

	// CleanFailOpen counts cleaning runs that returned their input unchanged
	// after an error or panic.
	CleanFailOpen metric.Int64Counter

	// LipSyncFallbacks counts degraded lip-sync analyses. Use with attribute:
	//   attribute.String("reason", ...)
	LipSyncFallbacks metric.Int64Counter

	// RealtimeFrames counts audio chunks consumed by the realtime processor.
	RealtimeFrames metric.Int64Counter

	// RealtimeDropped counts chunks rejected because the input queue was full.
	RealtimeDropped metric.Int64Counter

	// SynthChunks counts synthesized text chunks in long-form synthesis.
	SynthChunks metric.Int64Counter

	// --- Gauges ---

	// RealtimeQueueDepth tracks chunks waiting in the realtime input queue.
	RealtimeQueueDepth metric.Int64UpDownCounter
}

// latencyBuckets defines histogram bucket boundaries (in seconds) for
// offline processing of clips from a fraction of a second to several minutes.
var latencyBuckets = []float64{
	0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.CleanDuration, err = m.Float64Histogram("mouthpiece.clean.duration",
		metric.WithDescription("Duration of one cleaning chain run."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.LipSyncDuration, err = m.Float64Histogram("mouthpiece.lipsync.duration",
		metric.WithDescription("Duration of one lip-sync analysis."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.CleanFailOpen, err = m.Int64Counter("mouthpiece.clean.failopen",
		metric.WithDescription("Cleaning runs that returned the original audio after a failure."),
	); err != nil {
		return nil, err
	}
	if met.LipSyncFallbacks, err = m.Int64Counter("mouthpiece.lipsync.fallbacks",
		metric.WithDescription("Degraded lip-sync analyses by reason."),
	); err != nil {
		return nil, err
	}
	if met.RealtimeFrames, err = m.Int64Counter("mouthpiece.realtime.frames",
		metric.WithDescription("Audio chunks processed by the realtime analyser."),
	); err != nil {
		return nil, err
	}
	if met.RealtimeDropped, err = m.Int64Counter("mouthpiece.realtime.dropped",
		metric.WithDescription("Audio chunks dropped because the realtime queue was full."),
	); err != nil {
		return nil, err
	}
	if met.SynthChunks, err = m.Int64Counter("mouthpiece.synth.chunks",
		metric.WithDescription("Text chunks synthesized by long-form synthesis."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.RealtimeQueueDepth, err = m.Int64UpDownCounter("mouthpiece.realtime.queue_depth",
		metric.WithDescription("Audio chunks waiting in the realtime input queue."),
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
//
// The global provider delegates to whatever provider [InitProvider] later
// installs, so instruments created before initialisation still export.
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

// RecordLipSyncFallback records a degraded lip-sync analysis with its reason.
func (m *Metrics) RecordLipSyncFallback(ctx context.Context, reason string) {
	m.LipSyncFallbacks.Add(ctx, 1,
		metric.WithAttributes(attribute.String("reason", reason)),
	)
}
