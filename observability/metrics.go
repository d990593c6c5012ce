package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/miosa/osa-scroller/scroller"
)

const (
	metricPasses      = "scroller.passes"
	metricBound       = "scroller.slots.bound"
	metricReleased    = "scroller.slots.released"
	metricSlotsUsed   = "scroller.slots.used"
	metricSlotsAlloc  = "scroller.slots.allocated"
	metricWindow      = "scroller.window.size"
	metricMeasured    = "scroller.measurements"
	metricStale       = "scroller.measurements.stale"
	metricUnmeasured  = "scroller.items.unmeasured"
	attrSkipped       = "skipped"
	attrContinuous    = "continuous"
	attrScrollerLabel = "scroller"
)

// metricBuilder accumulates instrument creation errors so a batch of
// instruments needs a single error check.
type metricBuilder struct {
	meter metric.Meter
	err   error
}

func (b *metricBuilder) counter(name, desc, unit string) metric.Int64Counter {
	c, err := b.meter.Int64Counter(name, metric.WithDescription(desc), metric.WithUnit(unit))
	b.setErr(name, err)
	return c
}

func (b *metricBuilder) gauge(name, desc, unit string) metric.Int64Gauge {
	g, err := b.meter.Int64Gauge(name, metric.WithDescription(desc), metric.WithUnit(unit))
	b.setErr(name, err)
	return g
}

func (b *metricBuilder) histogram(name, desc, unit string, bounds ...float64) metric.Int64Histogram {
	opts := []metric.Int64HistogramOption{metric.WithDescription(desc), metric.WithUnit(unit)}
	if len(bounds) > 0 {
		opts = append(opts, metric.WithExplicitBucketBoundaries(bounds...))
	}
	h, err := b.meter.Int64Histogram(name, opts...)
	b.setErr(name, err)
	return h
}

func (b *metricBuilder) setErr(name string, err error) {
	if err != nil && b.err == nil {
		b.err = fmt.Errorf("create %s: %w", name, err)
	}
}

// ScrollerMetrics exports windowing passes and measurements as OTel
// instruments. It implements scroller.Recorder.
type ScrollerMetrics struct {
	attrs metric.MeasurementOption

	passes     metric.Int64Counter
	bound      metric.Int64Counter
	released   metric.Int64Counter
	used       metric.Int64Gauge
	allocated  metric.Int64Gauge
	window     metric.Int64Histogram
	measured   metric.Int64Counter
	stale      metric.Int64Counter
	unmeasured metric.Int64Gauge
}

var _ scroller.Recorder = (*ScrollerMetrics)(nil)

// NewScrollerMetrics creates the instruments. name labels every data point
// so several scrollers can share a meter.
func NewScrollerMetrics(mt metric.Meter, name string) (*ScrollerMetrics, error) {
	b := &metricBuilder{meter: mt}
	m := &ScrollerMetrics{
		attrs:      metric.WithAttributes(attribute.String(attrScrollerLabel, name)),
		passes:     b.counter(metricPasses, "Windowing passes", "{pass}"),
		bound:      b.counter(metricBound, "Slots bound to a new item", "{slot}"),
		released:   b.counter(metricReleased, "Slots released to the free pool", "{slot}"),
		used:       b.gauge(metricSlotsUsed, "Slots rendering an item", "{slot}"),
		allocated:  b.gauge(metricSlotsAlloc, "Slots ever allocated", "{slot}"),
		window:     b.histogram(metricWindow, "Items in the rendered window", "{item}", 8, 16, 32, 64, 128, 256, 512, 1000),
		measured:   b.counter(metricMeasured, "Committed size measurements", "{measurement}"),
		stale:      b.counter(metricStale, "Measurements dropped as stale", "{measurement}"),
		unmeasured: b.gauge(metricUnmeasured, "Bound items without a valid size", "{item}"),
	}
	if b.err != nil {
		return nil, b.err
	}
	return m, nil
}

// RecordPass records one windowing pass.
func (m *ScrollerMetrics) RecordPass(s scroller.PassStats) {
	ctx := context.Background()
	m.passes.Add(ctx, 1, m.attrs, metric.WithAttributes(
		attribute.Bool(attrSkipped, s.Skipped),
		attribute.Bool(attrContinuous, s.Continuous),
	))
	if s.Skipped {
		return
	}
	m.bound.Add(ctx, int64(s.Bound), m.attrs)
	m.released.Add(ctx, int64(s.Released), m.attrs)
	m.used.Record(ctx, int64(s.Used), m.attrs)
	m.allocated.Record(ctx, int64(s.Allocated), m.attrs)
	m.window.Record(ctx, int64(s.Window), m.attrs)
}

// RecordMeasure records the measurements of one flush.
func (m *ScrollerMetrics) RecordMeasure(s scroller.MeasureStats) {
	ctx := context.Background()
	m.measured.Add(ctx, int64(s.Committed), m.attrs)
	m.stale.Add(ctx, int64(s.Stale), m.attrs)
	m.unmeasured.Record(ctx, int64(s.Unmeasured), m.attrs)
}
