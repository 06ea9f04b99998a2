package emitter

import (
	"os"
	"path/filepath"

	"github.com/gvprof/gvprof/internal/aggregate"
	"github.com/gvprof/gvprof/internal/domain"
	"github.com/gvprof/gvprof/internal/profile"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
)

const metaFile = "profile.json"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Meta describes the run in profile.json. It carries no wall-clock time
// so that reruns produce identical output.
type Meta struct {
	Log             string               `json:"log"`
	Format          string               `json:"format"`
	IntervalSeconds float64              `json:"interval_seconds"`
	StartMs         int64                `json:"start_ms,omitempty"`
	TimestampMode   string               `json:"timestamp_mode"`
	Blocks          int                  `json:"blocks"`
	Samples         int                  `json:"samples"`
	Skipped         int                  `json:"skipped"`
	Entities        []domain.Entity      `json:"entities"`
	Ops             []string             `json:"ops"`
	Files           []string             `json:"files"`
	Diagnostics     []profile.Diagnostic `json:"diagnostics"`
}

func (m *Meta) fill(res *aggregate.Result) {
	m.IntervalSeconds = res.Interval.Seconds()
	m.Samples = len(res.Indexes)
	m.Entities = res.Entities()
	m.Ops = res.Ops()
	if m.Diagnostics == nil {
		m.Diagnostics = []profile.Diagnostic{}
	}
}

func writeMeta(dir string, m Meta) error {
	raw, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode run metadata")
	}
	path := filepath.Join(dir, metaFile)
	if err := os.WriteFile(path, append(raw, '\n'), 0o644); err != nil {
		return errors.Wrapf(err, "write %s", path)
	}
	return nil
}
