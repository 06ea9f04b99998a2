package profile

import (
	"go.uber.org/zap"
)

// DiagKind classifies recoverable problems found while parsing.
type DiagKind string

const (
	DiagUnknownOp    DiagKind = "unknown_op"
	DiagBadNumber    DiagKind = "bad_number"
	DiagBadTimestamp DiagKind = "bad_timestamp"
	DiagDuplicateOp  DiagKind = "duplicate_op"
	DiagInvariant    DiagKind = "invariant"
	DiagStrayLines   DiagKind = "stray_lines"
	DiagPartialBlock DiagKind = "partial_block"
	DiagSkippedBlock DiagKind = "skipped_block"
	DiagDuration     DiagKind = "duration_mismatch"
)

var diagMessages = map[DiagKind]string{
	DiagUnknownOp:    "unrecognised operation name, counted under UNKNOWN",
	DiagBadNumber:    "numeric field did not parse, treated as zero",
	DiagBadTimestamp: "sample timestamp did not parse, using position",
	DiagDuplicateOp:  "operation reported twice for one entity, merged",
	DiagInvariant:    "record violates latency or count invariants",
	DiagStrayLines:   "lines before the first sample marker were ignored",
	DiagPartialBlock: "trailing sample is incomplete",
	DiagSkippedBlock: "sample skipped because it could not be parsed",
	DiagDuration:     "reported sample duration deviates from the sampling interval",
}

// Diagnostic is an aggregated warning: one per kind and key, however often
// it occurred.
type Diagnostic struct {
	Kind  DiagKind `json:"kind"`
	Key   string   `json:"key"`
	Count int      `json:"count"`
	First string   `json:"first"`
}

func (d Diagnostic) Message() string {
	return diagMessages[d.Kind]
}

type diagKey struct {
	kind DiagKind
	key  string
}

// Diagnostics accumulates warnings over a parse run so that each distinct
// problem is reported once.
type Diagnostics struct {
	entries map[diagKey]*Diagnostic
	order   []diagKey
}

func NewDiagnostics() *Diagnostics {
	return &Diagnostics{entries: make(map[diagKey]*Diagnostic)}
}

// Add records one occurrence. where names the first location seen.
func (d *Diagnostics) Add(kind DiagKind, key, where string) {
	k := diagKey{kind, key}
	if e, ok := d.entries[k]; ok {
		e.Count++
		return
	}
	d.entries[k] = &Diagnostic{Kind: kind, Key: key, Count: 1, First: where}
	d.order = append(d.order, k)
}

// Entries returns the diagnostics in first-seen order.
func (d *Diagnostics) Entries() []Diagnostic {
	out := make([]Diagnostic, 0, len(d.order))
	for _, k := range d.order {
		out = append(out, *d.entries[k])
	}
	return out
}

// Count returns how many distinct keys of kind were recorded.
func (d *Diagnostics) Count(kind DiagKind) int {
	n := 0
	for _, k := range d.order {
		if k.kind == kind {
			n++
		}
	}
	return n
}

// Log emits one warning per distinct diagnostic.
func (d *Diagnostics) Log(logger *zap.Logger) {
	for _, e := range d.Entries() {
		logger.Warn(e.Message(),
			zap.String("namespace", "profile"),
			zap.String("kind", string(e.Kind)),
			zap.String("key", e.Key),
			zap.Int("occurrences", e.Count),
			zap.String("first", e.First),
		)
	}
}
