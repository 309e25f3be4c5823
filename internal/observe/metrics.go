// Package observe provides OpenTelemetry metrics and tracing for facewave.
//
// Metrics are exported through a Prometheus bridge set up by [InitProvider]
// and scraped from /metrics. Tests should build their own [Metrics] with
// [NewMetrics] and a manual reader rather than use [DefaultMetrics].
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/teslashibe/facewave"

// Metrics holds all metric instruments for the service.
type Metrics struct {
	// PipelineDuration tracks capture-to-contours latency.
	PipelineDuration metric.Float64Histogram

	// Detections counts per-image detector outcomes. Attribute: status.
	Detections metric.Int64Counter

	// ClampedFactors counts retarget scale factors that hit a clamp bound.
	// Attribute: factor.
	ClampedFactors metric.Int64Counter

	// StyleSelections counts style synthesis by mode. Attribute: mode.
	StyleSelections metric.Int64Counter

	// ActiveSessions tracks running animation sessions.
	ActiveSessions metric.Int64UpDownCounter

	// TickDuration tracks time spent computing one animation frame.
	TickDuration metric.Float64Histogram

	// HTTPRequestDuration tracks request latency. Attributes: method, path, status.
	HTTPRequestDuration metric.Float64Histogram
}

var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// Frame ticks are far below a millisecond for a 29-region head.
var tickBuckets = []float64{
	0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.0167,
}

// NewMetrics creates every instrument from mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.PipelineDuration, err = m.Float64Histogram("facewave.pipeline.duration",
		metric.WithDescription("Latency of building a contour set from captured images."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TickDuration, err = m.Float64Histogram("facewave.animator.tick.duration",
		metric.WithDescription("Time spent computing one animation frame."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(tickBuckets...),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("facewave.http.request.duration",
		metric.WithDescription("HTTP request latency by method, path, and status."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	if met.Detections, err = m.Int64Counter("facewave.detections",
		metric.WithDescription("Per-image landmark detection outcomes by status."),
	); err != nil {
		return nil, err
	}
	if met.ClampedFactors, err = m.Int64Counter("facewave.retarget.clamped",
		metric.WithDescription("Retarget scale factors that were clamped, by factor name."),
	); err != nil {
		return nil, err
	}
	if met.StyleSelections, err = m.Int64Counter("facewave.style.selections",
		metric.WithDescription("Hair style synthesis by mode."),
	); err != nil {
		return nil, err
	}

	if met.ActiveSessions, err = m.Int64UpDownCounter("facewave.active_sessions",
		metric.WithDescription("Number of running animation sessions."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level Metrics built on the global
// meter provider. Panics if instrument creation fails.
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

// RecordDetection increments the detection counter for one image.
func (m *Metrics) RecordDetection(ctx context.Context, status string) {
	m.Detections.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

// RecordClamp increments the clamp counter for one factor.
func (m *Metrics) RecordClamp(ctx context.Context, factor string) {
	m.ClampedFactors.Add(ctx, 1, metric.WithAttributes(attribute.String("factor", factor)))
}

// RecordStyle increments the style selection counter.
func (m *Metrics) RecordStyle(ctx context.Context, mode string) {
	m.StyleSelections.Add(ctx, 1, metric.WithAttributes(attribute.String("mode", mode)))
}
