package aggregate

import (
	"github.com/gvprof/gvprof/internal/domain"
	"github.com/montanaflynn/stats"
)

// Rollup folds the brick stats of one sample into a volume-wide entity.
// Calls and bytes are summed, the average latency is weighted by calls and
// min/max only look at bricks that saw calls.
func Rollup(volume domain.Entity, bricks []*domain.EntityStats) *domain.EntityStats {
	out := domain.NewEntityStats(volume)

	type acc struct {
		calls    stats.Float64Data
		weighted stats.Float64Data
		mins     stats.Float64Data
		maxs     stats.Float64Data
		raw      []string
		flagged  bool
	}
	perOp := make(map[domain.OpType]*acc)
	var read, written stats.Float64Data

	for _, b := range bricks {
		if b.HasBytes {
			out.HasBytes = true
			read = append(read, float64(b.BytesRead))
			written = append(written, float64(b.BytesWritten))
		}
		for op, rec := range b.Ops {
			a, ok := perOp[op]
			if !ok {
				a = &acc{}
				perOp[op] = a
			}
			a.calls = append(a.calls, float64(rec.Calls))
			a.weighted = append(a.weighted, rec.TotalLatency())
			if rec.HasBounds() {
				a.mins = append(a.mins, rec.MinLat)
				a.maxs = append(a.maxs, rec.MaxLat)
			}
			a.raw = append(a.raw, rec.RawNames...)
			a.flagged = a.flagged || rec.Flagged
		}
	}

	out.BytesRead = int64(sum(read))
	out.BytesWritten = int64(sum(written))
	for op, a := range perOp {
		rec := &domain.OperationRecord{Op: op, Flagged: a.flagged}
		calls := sum(a.calls)
		rec.Calls = int64(calls)
		if calls > 0 {
			rec.AvgLat = sum(a.weighted) / calls
		}
		if len(a.mins) > 0 {
			rec.MinLat, _ = a.mins.Min()
			rec.MaxLat, _ = a.maxs.Max()
		}
		seen := make(map[string]bool, len(a.raw))
		for _, n := range a.raw {
			if !seen[n] {
				seen[n] = true
				rec.RawNames = append(rec.RawNames, n)
			}
		}
		out.Ops[op] = rec
	}
	return out
}

// sum is stats.Sum with the empty-input error mapped to zero.
func sum(data stats.Float64Data) float64 {
	if len(data) == 0 {
		return 0
	}
	s, err := data.Sum()
	if err != nil {
		return 0
	}
	return s
}
