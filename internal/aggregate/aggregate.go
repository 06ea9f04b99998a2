package aggregate

import (
	"math"
	"sort"
	"time"

	"github.com/gvprof/gvprof/config"
	"github.com/gvprof/gvprof/internal/domain"
	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
)

// ErrNoInterval means no sampling interval could be determined.
var ErrNoInterval = errors.New("sampling interval unknown")

const bytesPerMB = 1000000.0

// ThroughputColumn is the column name of the byte rate series.
const ThroughputColumn = "MB/s"

// DefaultVolumeName names the computed rollup when the log never reports
// a volume section.
const DefaultVolumeName = "all"

type Options struct {
	Interval      time.Duration
	Start         time.Time
	TimestampMode string
	FillGaps      bool
	VolumeName    string
}

// Result holds every derived series of a run.
type Result struct {
	Interval time.Duration
	// Indexes lists the sample positions present, ascending.
	Indexes []int
	// Clamped counts report timestamps moved forward to keep time ordered.
	Clamped int

	times    map[int]int64
	series   map[domain.SeriesKey]*domain.TimeSeries
	entities []domain.Entity
	columns  map[entityMetric][]string
}

type entityMetric struct {
	entity domain.Entity
	metric domain.Metric
}

// Aggregate derives the per-entity time series from parsed samples.
func Aggregate(samples []*domain.Sample, opts Options) (*Result, error) {
	if opts.Interval <= 0 {
		return nil, errors.Wrapf(ErrNoInterval, "aggregate: interval %s", opts.Interval)
	}
	res := &Result{
		Interval: opts.Interval,
		times:    make(map[int]int64, len(samples)),
		series:   make(map[domain.SeriesKey]*domain.TimeSeries),
		columns:  make(map[entityMetric][]string),
	}

	ordered := append([]*domain.Sample(nil), samples...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Index < ordered[j].Index })

	volume := volumeEntity(ordered, opts.VolumeName)
	seen := make(map[domain.Entity]bool)
	var prev int64 = math.MinInt64
	for _, s := range ordered {
		ts := res.timestamp(s, opts)
		if ts < prev {
			ts = prev
			res.Clamped++
		}
		prev = ts
		res.times[s.Index] = ts
		res.Indexes = append(res.Indexes, s.Index)

		for _, es := range entitiesOf(s, volume) {
			if !seen[es.Entity] {
				seen[es.Entity] = true
				res.entities = append(res.entities, es.Entity)
			}
			res.addEntity(s.Index, ts, es)
		}
	}

	if opts.FillGaps {
		res.fillGaps()
	}
	res.sortEntities()
	for k, cols := range res.columns {
		sort.Strings(cols)
		res.columns[k] = cols
	}
	return res, nil
}

// timestamp picks the report time when there is one, otherwise the
// position of the sample on the interval grid.
func (r *Result) timestamp(s *domain.Sample, opts Options) int64 {
	step := opts.Interval.Milliseconds()
	if opts.TimestampMode == config.TimestampRelative {
		return int64(s.Index) * step
	}
	if !s.Time.IsZero() {
		return s.Time.UnixMilli()
	}
	var base int64
	if !opts.Start.IsZero() {
		base = opts.Start.UnixMilli()
	}
	return base + int64(s.Index)*step
}

// volumeEntity names the rollup after the first reported volume section.
func volumeEntity(samples []*domain.Sample, name string) domain.Entity {
	for _, s := range samples {
		if vols := s.OfKind(domain.KindVolume); len(vols) > 0 {
			return vols[0].Entity
		}
	}
	if name == "" {
		name = DefaultVolumeName
	}
	return domain.Entity{Name: name, Kind: domain.KindVolume}
}

// entitiesOf returns the stats to emit for a sample: the clients and
// bricks as reported, plus one volume rollup when there are bricks. A
// reported volume section wins over the computed one.
func entitiesOf(s *domain.Sample, volume domain.Entity) []*domain.EntityStats {
	var out []*domain.EntityStats
	bricks := s.OfKind(domain.KindBrick)
	if vols := s.OfKind(domain.KindVolume); len(vols) > 0 {
		v := *vols[0]
		v.Entity = volume
		out = append(out, &v)
	} else if len(bricks) > 0 {
		out = append(out, Rollup(volume, bricks))
	}
	out = append(out, bricks...)
	out = append(out, s.OfKind(domain.KindClient)...)
	return out
}

func (r *Result) addEntity(index int, ts int64, es *domain.EntityStats) {
	secs := r.Interval.Seconds()
	total := es.TotalLatency()
	for op, rec := range es.Ops {
		col := op.String()
		pct := 0.0
		if total > 0 {
			pct = 100 * rec.TotalLatency() / total
		}
		avg := rec.AvgLat
		if rec.Calls == 0 {
			avg = 0
		}
		r.put(es.Entity, domain.MetricCallRate, col, index, ts, float64(rec.Calls)/secs)
		r.put(es.Entity, domain.MetricPctLat, col, index, ts, pct)
		r.put(es.Entity, domain.MetricAvgLat, col, index, ts, avg)
		if rec.HasBounds() {
			r.put(es.Entity, domain.MetricMinLat, col, index, ts, rec.MinLat)
			r.put(es.Entity, domain.MetricMaxLat, col, index, ts, rec.MaxLat)
		} else {
			// the column exists even when every sample leaves it blank
			r.column(es.Entity, domain.MetricMinLat, col)
			r.column(es.Entity, domain.MetricMaxLat, col)
		}
	}
	if es.HasBytes {
		r.put(es.Entity, domain.MetricMBpsRead, ThroughputColumn, index, ts, float64(es.BytesRead)/secs/bytesPerMB)
		r.put(es.Entity, domain.MetricMBpsWritten, ThroughputColumn, index, ts, float64(es.BytesWritten)/secs/bytesPerMB)
	}
}

func (r *Result) column(e domain.Entity, m domain.Metric, col string) domain.SeriesKey {
	key := domain.SeriesKey{Entity: e, Metric: m, Column: col}
	if _, ok := r.series[key]; !ok {
		r.series[key] = domain.NewTimeSeries(key)
		em := entityMetric{e, m}
		r.columns[em] = append(r.columns[em], col)
	}
	return key
}

func (r *Result) put(e domain.Entity, m domain.Metric, col string, index int, ts int64, v float64) {
	key := r.column(e, m, col)
	r.series[key].Put(domain.Point{Index: index, TimeMs: ts, Value: v})
}

// fillGaps writes zeros into count-like series at every sample they miss.
func (r *Result) fillGaps() {
	for key, ts := range r.series {
		if !key.Metric.Fillable() {
			continue
		}
		for _, idx := range r.Indexes {
			if _, ok := ts.At(idx); !ok {
				ts.Put(domain.Point{Index: idx, TimeMs: r.times[idx]})
			}
		}
	}
}

var kindOrder = map[domain.EntityKind]int{
	domain.KindVolume: 0,
	domain.KindBrick:  1,
	domain.KindClient: 2,
}

func (r *Result) sortEntities() {
	sort.SliceStable(r.entities, func(i, j int) bool {
		a, b := r.entities[i], r.entities[j]
		if kindOrder[a.Kind] != kindOrder[b.Kind] {
			return kindOrder[a.Kind] < kindOrder[b.Kind]
		}
		return a.Name < b.Name
	})
}

// Entities returns every entity with data: volume, then bricks, then
// clients, each group sorted by name.
func (r *Result) Entities() []domain.Entity {
	return append([]domain.Entity(nil), r.entities...)
}

// Columns returns the sorted column names of a metric for an entity.
func (r *Result) Columns(e domain.Entity, m domain.Metric) []string {
	return r.columns[entityMetric{e, m}]
}

// Series returns the series for a key, or nil.
func (r *Result) Series(e domain.Entity, m domain.Metric, col string) *domain.TimeSeries {
	return r.series[domain.SeriesKey{Entity: e, Metric: m, Column: col}]
}

// TimeMs returns the timestamp assigned to a sample index.
func (r *Result) TimeMs(index int) int64 {
	return r.times[index]
}

// HasThroughput reports whether any entity carries byte counts.
func (r *Result) HasThroughput() bool {
	for _, e := range r.entities {
		if len(r.Columns(e, domain.MetricMBpsRead)) > 0 {
			return true
		}
	}
	return false
}

// Ops returns the names of every operation seen in the run, sorted.
func (r *Result) Ops() []string {
	seen := make(map[string]bool)
	var out []string
	for em, cols := range r.columns {
		if em.metric != domain.MetricCallRate {
			continue
		}
		for _, c := range cols {
			if !seen[c] {
				seen[c] = true
				out = append(out, c)
			}
		}
	}
	sort.Strings(out)
	return out
}

// InferInterval estimates the sampling interval from the report timestamps
// as the median gap per sample step. It fails when fewer than two samples
// carry a time.
func InferInterval(samples []*domain.Sample) (time.Duration, error) {
	var gaps stats.Float64Data
	var last *domain.Sample
	for _, s := range samples {
		if s.Time.IsZero() {
			continue
		}
		if last != nil && s.Index > last.Index {
			gap := s.Time.Sub(last.Time).Seconds() / float64(s.Index-last.Index)
			if gap > 0 {
				gaps = append(gaps, gap)
			}
		}
		last = s
	}
	if len(gaps) == 0 {
		return 0, errors.Wrap(ErrNoInterval, "fewer than two timestamped samples")
	}
	median, err := gaps.Median()
	if err != nil {
		return 0, errors.Wrap(err, "median sample gap")
	}
	secs := math.Round(median)
	if secs < 1 {
		return 0, errors.Wrapf(ErrNoInterval, "median sample gap %.3fs", median)
	}
	return time.Duration(secs) * time.Second, nil
}
