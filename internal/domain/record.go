package domain

import (
	"fmt"
	"sort"
	"time"
)

type EntityKind string

const (
	KindVolume EntityKind = "volume"
	KindBrick  EntityKind = "brick"
	KindClient EntityKind = "client"
)

// Entity is the thing a block of statistics is reported for.
type Entity struct {
	Name string     `json:"name"`
	Kind EntityKind `json:"kind"`
}

func (e Entity) String() string {
	return string(e.Kind) + ":" + e.Name
}

// latencyTolerance absorbs the two-decimal rounding of reported latencies
// when checking max >= avg >= min.
const latencyTolerance = 0.01

// OperationRecord is one row of FOP statistics for an entity in a sample.
// Latencies are in microseconds.
type OperationRecord struct {
	Op       OpType
	RawNames []string
	Calls    int64
	AvgLat   float64
	MinLat   float64
	MaxLat   float64
	// Flagged is set when a field failed to parse and was replaced by 0.
	Flagged bool
}

// TotalLatency is the time spent in this FOP, calls times average latency.
func (r *OperationRecord) TotalLatency() float64 {
	return float64(r.Calls) * r.AvgLat
}

// HasBounds reports whether min and max latency carry information.
func (r *OperationRecord) HasBounds() bool {
	return r.Calls > 0
}

// Merge folds o into r. Calls add up, the average becomes the call-weighted
// mean and min/max widen over records that actually saw calls.
func (r *OperationRecord) Merge(o *OperationRecord) {
	total := r.Calls + o.Calls
	switch {
	case total == 0:
		r.AvgLat = 0
	default:
		r.AvgLat = (r.TotalLatency() + o.TotalLatency()) / float64(total)
	}
	if o.Calls > 0 {
		if r.Calls > 0 {
			r.MinLat = min(r.MinLat, o.MinLat)
			r.MaxLat = max(r.MaxLat, o.MaxLat)
		} else {
			r.MinLat, r.MaxLat = o.MinLat, o.MaxLat
		}
	}
	r.Calls = total
	r.Flagged = r.Flagged || o.Flagged
	r.RawNames = appendUnique(r.RawNames, o.RawNames...)
}

// Check returns the invariant violations of r, if any.
func (r *OperationRecord) Check() []string {
	var problems []string
	if r.Calls < 0 {
		problems = append(problems, fmt.Sprintf("negative call count %d", r.Calls))
	}
	if r.AvgLat < 0 || r.MinLat < 0 || r.MaxLat < 0 {
		problems = append(problems, "negative latency")
	}
	if r.HasBounds() {
		if r.MaxLat+latencyTolerance < r.AvgLat {
			problems = append(problems, fmt.Sprintf("max latency %.2f below avg %.2f", r.MaxLat, r.AvgLat))
		}
		if r.AvgLat+latencyTolerance < r.MinLat {
			problems = append(problems, fmt.Sprintf("avg latency %.2f below min %.2f", r.AvgLat, r.MinLat))
		}
	}
	return problems
}

// EntityStats groups the records one entity reported within one sample.
type EntityStats struct {
	Entity       Entity
	Ops          map[OpType]*OperationRecord
	BytesRead    int64
	BytesWritten int64
	HasBytes     bool
	// Duration is the interval length reported by the profiler, 0 if absent.
	Duration int
}

func NewEntityStats(e Entity) *EntityStats {
	return &EntityStats{Entity: e, Ops: make(map[OpType]*OperationRecord)}
}

// Add stores rec, merging it into an existing record of the same type.
// It reports whether a record of that type was already present.
func (s *EntityStats) Add(rec OperationRecord) bool {
	if cur, ok := s.Ops[rec.Op]; ok {
		cur.Merge(&rec)
		return true
	}
	s.Ops[rec.Op] = &rec
	return false
}

// TotalLatency sums calls*avg over every operation of the entity.
func (s *EntityStats) TotalLatency() float64 {
	var total float64
	for _, r := range s.Ops {
		total += r.TotalLatency()
	}
	return total
}

// SortedOps returns the operation types present, ordered by name.
func (s *EntityStats) SortedOps() []OpType {
	ops := make([]OpType, 0, len(s.Ops))
	for op := range s.Ops {
		ops = append(ops, op)
	}
	sort.Slice(ops, func(i, j int) bool { return ops[i].String() < ops[j].String() })
	return ops
}

// Sample is one snapshot of profile output.
type Sample struct {
	Index int
	// Time is the timestamp printed in the report; zero when there is none.
	Time     time.Time
	Partial  bool
	Entities []*EntityStats
}

// Find returns the stats of the named entity, or nil.
func (s *Sample) Find(e Entity) *EntityStats {
	for _, es := range s.Entities {
		if es.Entity == e {
			return es
		}
	}
	return nil
}

// OfKind returns the entities of the given kind in report order.
func (s *Sample) OfKind(kind EntityKind) []*EntityStats {
	var out []*EntityStats
	for _, es := range s.Entities {
		if es.Entity.Kind == kind {
			out = append(out, es)
		}
	}
	return out
}

func appendUnique(dst []string, names ...string) []string {
	for _, n := range names {
		found := false
		for _, d := range dst {
			if d == n {
				found = true
				break
			}
		}
		if !found {
			dst = append(dst, n)
		}
	}
	return dst
}
