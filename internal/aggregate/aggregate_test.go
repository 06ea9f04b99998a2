package aggregate

import (
	"testing"
	"time"

	"github.com/gvprof/gvprof/config"
	"github.com/gvprof/gvprof/internal/domain"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	brick0 = domain.Entity{Name: "h1:/b0", Kind: domain.KindBrick}
	brick1 = domain.Entity{Name: "h2:/b1", Kind: domain.KindBrick}
	vol    = domain.Entity{Name: DefaultVolumeName, Kind: domain.KindVolume}
)

func entityStats(e domain.Entity, recs ...domain.OperationRecord) *domain.EntityStats {
	es := domain.NewEntityStats(e)
	for _, r := range recs {
		es.Add(r)
	}
	return es
}

func sample(index int, entities ...*domain.EntityStats) *domain.Sample {
	return &domain.Sample{Index: index, Entities: entities}
}

func write(calls int64, avg, min, max float64) domain.OperationRecord {
	return domain.OperationRecord{Op: domain.OpWrite, Calls: calls, AvgLat: avg, MinLat: min, MaxLat: max}
}

func read(calls int64, avg, min, max float64) domain.OperationRecord {
	return domain.OperationRecord{Op: domain.OpRead, Calls: calls, AvgLat: avg, MinLat: min, MaxLat: max}
}

func defaultOpts() Options {
	return Options{
		Interval:      60 * time.Second,
		Start:         time.UnixMilli(1445467828000),
		TimestampMode: config.TimestampEpoch,
	}
}

func TestCallRatePerSample(t *testing.T) {
	samples := []*domain.Sample{
		sample(0, entityStats(brick0, write(10, 100, 50, 200))),
		sample(1, entityStats(brick0, write(20, 100, 50, 200))),
	}
	res, err := Aggregate(samples, defaultOpts())
	require.NoError(t, err)

	rates := res.Series(brick0, domain.MetricCallRate, "WRITE").Values()
	require.Len(t, rates, 2)
	assert.InDelta(t, 0.1667, rates[0], 1e-4)
	assert.InDelta(t, 0.3333, rates[1], 1e-4)

	assert.Equal(t, int64(1445467828000), res.TimeMs(0))
	assert.Equal(t, int64(1445467888000), res.TimeMs(1))
}

func TestPctLatencySumsToHundred(t *testing.T) {
	samples := []*domain.Sample{
		sample(0, entityStats(brick0, write(10, 100, 50, 200), read(30, 10, 1, 20))),
		sample(1, entityStats(brick0, write(0, 0, 0, 0), read(0, 0, 0, 0))),
	}
	res, err := Aggregate(samples, defaultOpts())
	require.NoError(t, err)

	for _, idx := range res.Indexes {
		total := 0.0
		for _, col := range res.Columns(brick0, domain.MetricPctLat) {
			p, ok := res.Series(brick0, domain.MetricPctLat, col).At(idx)
			require.True(t, ok)
			assert.GreaterOrEqual(t, p.Value, 0.0)
			total += p.Value
		}
		if idx == 0 {
			assert.InDelta(t, 100, total, 0.5)
		} else {
			assert.Zero(t, total)
		}
	}

	// no calls: min and max stay blank, avg reads zero
	_, ok := res.Series(brick0, domain.MetricMinLat, "WRITE").At(1)
	assert.False(t, ok)
	avg, ok := res.Series(brick0, domain.MetricAvgLat, "WRITE").At(1)
	require.True(t, ok)
	assert.Zero(t, avg.Value)
}

func TestComputedVolumeRollup(t *testing.T) {
	s := sample(0,
		entityStats(brick0, write(10, 200, 100, 300)),
		entityStats(brick1, write(30, 100, 20, 400), read(0, 0, 0, 0)),
	)
	s.Entities[0].BytesWritten, s.Entities[0].HasBytes = 6000000, true
	s.Entities[1].BytesWritten, s.Entities[1].HasBytes = 12000000, true

	res, err := Aggregate([]*domain.Sample{s}, defaultOpts())
	require.NoError(t, err)
	assert.Equal(t, []domain.Entity{vol, brick0, brick1}, res.Entities())

	at := func(m domain.Metric, col string) float64 {
		p, ok := res.Series(vol, m, col).At(0)
		require.True(t, ok, "%s %s", m, col)
		return p.Value
	}
	assert.InDelta(t, 40.0/60, at(domain.MetricCallRate, "WRITE"), 1e-9)
	assert.InDelta(t, 125, at(domain.MetricAvgLat, "WRITE"), 1e-9)
	assert.Equal(t, 20.0, at(domain.MetricMinLat, "WRITE"))
	assert.Equal(t, 400.0, at(domain.MetricMaxLat, "WRITE"))
	assert.InDelta(t, 0.3, at(domain.MetricMBpsWritten, ThroughputColumn), 1e-9)

	// READ had no calls on any brick
	_, ok := res.Series(vol, domain.MetricMinLat, "READ").At(0)
	assert.False(t, ok)
	assert.Contains(t, res.Columns(vol, domain.MetricMinLat), "READ")
}

func TestReportedVolumeWins(t *testing.T) {
	reported := entityStats(domain.Entity{Name: "gv0", Kind: domain.KindVolume}, write(99, 1, 1, 1))
	s := sample(0, reported, entityStats(brick0, write(10, 200, 100, 300)))

	res, err := Aggregate([]*domain.Sample{s}, defaultOpts())
	require.NoError(t, err)

	gv0 := domain.Entity{Name: "gv0", Kind: domain.KindVolume}
	p, ok := res.Series(gv0, domain.MetricCallRate, "WRITE").At(0)
	require.True(t, ok)
	assert.InDelta(t, 99.0/60, p.Value, 1e-9)
	assert.Nil(t, res.Series(vol, domain.MetricCallRate, "WRITE"))
}

func TestEntityGapsAndFill(t *testing.T) {
	samples := []*domain.Sample{
		sample(0, entityStats(brick0, write(10, 1, 1, 1)), entityStats(brick1, write(10, 1, 1, 1))),
		sample(1, entityStats(brick0, write(10, 1, 1, 1))),
		sample(2, entityStats(brick0, write(10, 1, 1, 1)), entityStats(brick1, write(10, 1, 1, 1))),
	}

	res, err := Aggregate(samples, defaultOpts())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Series(brick1, domain.MetricCallRate, "WRITE").Len())

	opts := defaultOpts()
	opts.FillGaps = true
	res, err = Aggregate(samples, opts)
	require.NoError(t, err)

	rates := res.Series(brick1, domain.MetricCallRate, "WRITE")
	require.Equal(t, 3, rates.Len())
	p, _ := rates.At(1)
	assert.Zero(t, p.Value)
	assert.Equal(t, res.TimeMs(1), p.TimeMs)
	assert.Equal(t, 2, res.Series(brick1, domain.MetricAvgLat, "WRITE").Len(), "latencies are never filled")
}

func TestTimestampsNeverDecrease(t *testing.T) {
	base := time.Date(2015, 10, 21, 22, 50, 28, 0, time.UTC)
	samples := []*domain.Sample{
		sample(0, entityStats(brick0, write(1, 1, 1, 1))),
		sample(1, entityStats(brick0, write(1, 1, 1, 1))),
		sample(2, entityStats(brick0, write(1, 1, 1, 1))),
	}
	samples[0].Time = base
	samples[1].Time = base.Add(-time.Minute)
	samples[2].Time = base.Add(2 * time.Minute)

	res, err := Aggregate(samples, defaultOpts())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Clamped)

	points := res.Series(brick0, domain.MetricCallRate, "WRITE").Points()
	require.Len(t, points, len(samples))
	for i := 1; i < len(points); i++ {
		assert.GreaterOrEqual(t, points[i].TimeMs, points[i-1].TimeMs)
	}
}

func TestRelativeTimestamps(t *testing.T) {
	opts := defaultOpts()
	opts.TimestampMode = config.TimestampRelative
	res, err := Aggregate([]*domain.Sample{
		sample(0, entityStats(brick0, write(1, 1, 1, 1))),
		sample(3, entityStats(brick0, write(1, 1, 1, 1))),
	}, opts)
	require.NoError(t, err)
	assert.Equal(t, int64(0), res.TimeMs(0))
	assert.Equal(t, int64(180000), res.TimeMs(3))
}

func TestAggregateNeedsInterval(t *testing.T) {
	_, err := Aggregate(nil, Options{})
	assert.True(t, errors.Is(err, ErrNoInterval))
}

func TestInferInterval(t *testing.T) {
	base := time.Date(2015, 10, 21, 22, 50, 28, 0, time.UTC)
	samples := []*domain.Sample{
		{Index: 0, Time: base},
		{Index: 1, Time: base.Add(61 * time.Second)},
		{Index: 2, Time: base.Add(120 * time.Second)},
		// a skipped block in between still counts as two steps
		{Index: 4, Time: base.Add(240 * time.Second)},
	}
	iv, err := InferInterval(samples)
	require.NoError(t, err)
	assert.Equal(t, 60*time.Second, iv)

	_, err = InferInterval([]*domain.Sample{{Index: 0}, {Index: 1}})
	assert.True(t, errors.Is(err, ErrNoInterval))
}

func TestSummarize(t *testing.T) {
	samples := []*domain.Sample{
		sample(0, entityStats(brick0, write(60, 100, 50, 200))),
		sample(1, entityStats(brick0, write(0, 0, 0, 0))),
		sample(2, entityStats(brick0, write(120, 300, 50, 900))),
	}
	res, err := Aggregate(samples, defaultOpts())
	require.NoError(t, err)

	rows := Summarize(res)
	var found *SummaryRow
	for i := range rows {
		if rows[i].Entity == brick0.Name && rows[i].Op == "WRITE" {
			found = &rows[i]
		}
	}
	require.NotNil(t, found)
	assert.Equal(t, 2, found.ActiveSamples)
	assert.EqualValues(t, 180, found.TotalCalls)
	assert.InDelta(t, 1.0, found.MeanCallRate, 1e-9)
	assert.InDelta(t, 2.0, found.PeakCallRate, 1e-9)
	assert.InDelta(t, 200, found.MeanAvgLat, 1e-9)
	assert.InDelta(t, 200, found.P95AvgLat, 1e-9)
}
