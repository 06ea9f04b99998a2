package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOpTypeCaseInsensitive(t *testing.T) {
	op, ok := ParseOpType("write")
	require.True(t, ok)
	assert.Equal(t, OpWrite, op)

	op, ok = ParseOpType(" Copy_File_Range ")
	require.True(t, ok)
	assert.Equal(t, OpCopyFileRange, op)

	op, ok = ParseOpType("FOOBAR")
	assert.False(t, ok)
	assert.Equal(t, OpUnknown, op)

	// the bucket name itself is not a real operation
	_, ok = ParseOpType("unknown")
	assert.False(t, ok)
}

func TestOpTableIsComplete(t *testing.T) {
	seen := map[string]bool{}
	for _, op := range AllOps() {
		info := op.Info()
		require.NotEmpty(t, info.Name, "op %d", op)
		require.NotEmpty(t, info.Description, info.Name)
		require.False(t, seen[info.Name], "duplicate %s", info.Name)
		seen[info.Name] = true
	}
	assert.Equal(t, OpUnknown, AllOps()[len(AllOps())-1])
	assert.Equal(t, "UNKNOWN", OpType(250).String())
}

func TestRecordMergeWeightsByCalls(t *testing.T) {
	a := OperationRecord{Op: OpWrite, Calls: 10, AvgLat: 200, MinLat: 50, MaxLat: 400}
	b := OperationRecord{Op: OpWrite, Calls: 30, AvgLat: 100, MinLat: 20, MaxLat: 300}
	a.Merge(&b)

	assert.EqualValues(t, 40, a.Calls)
	assert.InDelta(t, 125.0, a.AvgLat, 1e-9)
	assert.Equal(t, 20.0, a.MinLat)
	assert.Equal(t, 400.0, a.MaxLat)
}

func TestRecordMergeIgnoresIdleBounds(t *testing.T) {
	a := OperationRecord{Op: OpRead}
	b := OperationRecord{Op: OpRead, Calls: 2, AvgLat: 10, MinLat: 5, MaxLat: 15}
	a.Merge(&b)
	assert.Equal(t, 5.0, a.MinLat)
	assert.Equal(t, 15.0, a.MaxLat)

	idle := OperationRecord{Op: OpRead, MinLat: 0, MaxLat: 0}
	a.Merge(&idle)
	assert.Equal(t, 5.0, a.MinLat)
	assert.EqualValues(t, 2, a.Calls)
}

func TestRecordCheck(t *testing.T) {
	ok := OperationRecord{Calls: 1, AvgLat: 10, MinLat: 5, MaxLat: 20}
	assert.Empty(t, ok.Check())

	bad := OperationRecord{Calls: 1, AvgLat: 30, MinLat: 5, MaxLat: 20}
	assert.Len(t, bad.Check(), 1)

	idle := OperationRecord{Calls: 0, AvgLat: 0, MinLat: 9, MaxLat: 0}
	assert.Empty(t, idle.Check())
}

func TestEntityStatsAddMergesDuplicates(t *testing.T) {
	es := NewEntityStats(Entity{Name: "b0", Kind: KindBrick})
	assert.False(t, es.Add(OperationRecord{Op: OpUnknown, RawNames: []string{"FOO"}, Calls: 1, AvgLat: 10}))
	assert.True(t, es.Add(OperationRecord{Op: OpUnknown, RawNames: []string{"BAR"}, Calls: 1, AvgLat: 30}))

	rec := es.Ops[OpUnknown]
	assert.EqualValues(t, 2, rec.Calls)
	assert.Equal(t, []string{"FOO", "BAR"}, rec.RawNames)
	assert.InDelta(t, 40.0, es.TotalLatency(), 1e-9)
}

func TestTimeSeriesOrdersByIndex(t *testing.T) {
	ts := NewTimeSeries(SeriesKey{Metric: MetricCallRate, Column: "WRITE"})
	ts.Put(Point{Index: 2, Value: 3})
	ts.Put(Point{Index: 0, Value: 1})
	ts.Put(Point{Index: 1, Value: 2})
	ts.Put(Point{Index: 1, Value: 5})

	assert.Equal(t, 3, ts.Len())
	assert.Equal(t, []float64{1, 5, 3}, ts.Values())

	p, ok := ts.At(2)
	require.True(t, ok)
	assert.Equal(t, 3.0, p.Value)

	_, ok = ts.At(7)
	assert.False(t, ok)
}
