package domain

import (
	"github.com/google/btree"
)

// Metric is a derived statistic emitted as its own CSV.
type Metric string

const (
	MetricCallRate    Metric = "call-rate"
	MetricPctLat      Metric = "pct-lat"
	MetricAvgLat      Metric = "avg-lat"
	MetricMinLat      Metric = "min-lat"
	MetricMaxLat      Metric = "max-lat"
	MetricMBpsRead    Metric = "MBps-read"
	MetricMBpsWritten Metric = "MBps-written"
)

// OpMetrics are the per-FOP metrics, in output order.
var OpMetrics = []Metric{MetricPctLat, MetricAvgLat, MetricMinLat, MetricMaxLat, MetricCallRate}

// ThroughputMetrics are the per-entity byte rate metrics.
var ThroughputMetrics = []Metric{MetricMBpsWritten, MetricMBpsRead}

// Title is the chart caption used for the metric.
func (m Metric) Title() string {
	switch m {
	case MetricCallRate:
		return "FOP call rates"
	case MetricPctLat:
		return "percentage latency by FOP"
	case MetricAvgLat:
		return "average latency by FOP (usec)"
	case MetricMinLat:
		return "minimum latency by FOP (usec)"
	case MetricMaxLat:
		return "maximum latency by FOP (usec)"
	case MetricMBpsRead:
		return "MB/sec read"
	case MetricMBpsWritten:
		return "MB/sec written"
	}
	return string(m)
}

// Fillable reports whether a missing sample may be written as zero when gap
// filling is on. Latencies are never invented.
func (m Metric) Fillable() bool {
	switch m {
	case MetricCallRate, MetricPctLat, MetricMBpsRead, MetricMBpsWritten:
		return true
	}
	return false
}

// SeriesKey identifies one column of one metric for one entity.
type SeriesKey struct {
	Entity Entity
	Metric Metric
	Column string
}

// Point is one value of a series at a sample.
type Point struct {
	Index  int
	TimeMs int64
	Value  float64
}

// TimeSeries keeps points ordered by sample index, one per sample.
type TimeSeries struct {
	Key    SeriesKey
	points *btree.BTreeG[Point]
}

func NewTimeSeries(key SeriesKey) *TimeSeries {
	return &TimeSeries{
		Key:    key,
		points: btree.NewG(8, func(a, b Point) bool { return a.Index < b.Index }),
	}
}

// Put stores p, replacing any point already held for p.Index.
func (ts *TimeSeries) Put(p Point) {
	ts.points.ReplaceOrInsert(p)
}

// At returns the point for a sample index.
func (ts *TimeSeries) At(index int) (Point, bool) {
	return ts.points.Get(Point{Index: index})
}

func (ts *TimeSeries) Len() int {
	return ts.points.Len()
}

// Points returns the points in ascending sample order.
func (ts *TimeSeries) Points() []Point {
	out := make([]Point, 0, ts.points.Len())
	ts.points.Ascend(func(p Point) bool {
		out = append(out, p)
		return true
	})
	return out
}

// Values returns the point values in ascending sample order.
func (ts *TimeSeries) Values() []float64 {
	out := make([]float64, 0, ts.points.Len())
	ts.points.Ascend(func(p Point) bool {
		out = append(out, p.Value)
		return true
	})
	return out
}
