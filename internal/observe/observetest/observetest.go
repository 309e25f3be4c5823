// Package observetest builds metrics backed by a manual reader for tests.
package observetest

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/teslashibe/facewave/internal/observe"
)

// Reader collects metrics recorded through the Metrics returned by New.
type Reader struct {
	t      testing.TB
	reader *sdkmetric.ManualReader
}

// New returns fresh instruments and a reader over them.
func New(t testing.TB) (*observe.Metrics, *Reader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, &Reader{t: t, reader: reader}
}

func (r *Reader) find(name string) *metricdata.Metrics {
	r.t.Helper()
	var rm metricdata.ResourceMetrics
	if err := r.reader.Collect(context.Background(), &rm); err != nil {
		r.t.Fatalf("Collect: %v", err)
	}
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

// Sum returns the value of the int64 sum data point of name whose
// attribute key equals value, or 0 when absent.
func (r *Reader) Sum(name, key, value string) int64 {
	r.t.Helper()
	met := r.find(name)
	if met == nil {
		return 0
	}
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok {
		r.t.Fatalf("metric %q is not an int64 sum", name)
	}
	for _, dp := range sum.DataPoints {
		if v, ok := dp.Attributes.Value(attribute.Key(key)); ok && v.AsString() == value {
			return dp.Value
		}
	}
	return 0
}

// Total returns the int64 sum of name over all attribute sets.
func (r *Reader) Total(name string) int64 {
	r.t.Helper()
	met := r.find(name)
	if met == nil {
		return 0
	}
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok {
		r.t.Fatalf("metric %q is not an int64 sum", name)
	}
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

// Count returns how many values were recorded into the histogram name.
func (r *Reader) Count(name string) uint64 {
	r.t.Helper()
	met := r.find(name)
	if met == nil {
		return 0
	}
	hist, ok := met.Data.(metricdata.Histogram[float64])
	if !ok {
		r.t.Fatalf("metric %q is not a float64 histogram", name)
	}
	var n uint64
	for _, dp := range hist.DataPoints {
		n += dp.Count
	}
	return n
}
