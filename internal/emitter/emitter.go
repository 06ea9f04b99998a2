package emitter

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/gvprof/gvprof/config"
	"github.com/gvprof/gvprof/internal/aggregate"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// DirSuffix is appended to the log path to name the output directory.
const DirSuffix = "_csvdir"

type Options struct {
	Format          string
	TimestampColumn bool
	StaticDir       string
	// Outputs names the artefacts to write, see the config.Output constants.
	Outputs []string
}

func (o Options) enabled(name string) bool {
	for _, out := range o.Outputs {
		if out == name {
			return true
		}
	}
	return false
}

// Report lists what a run wrote.
type Report struct {
	Dir   string
	HTML  string
	Files []string
}

// URL is the browser address of the dashboard, empty when none was written.
func (r *Report) URL() string {
	if r.HTML == "" {
		return ""
	}
	return "file://" + filepath.ToSlash(r.HTML)
}

// OutDir returns the output directory that belongs to a log file.
func OutDir(logPath string) string {
	return logPath + DirSuffix
}

// Write recreates the output directory of logPath and fills it. When
// writing fails the directory is removed again.
func Write(logPath string, res *aggregate.Result, meta Meta, opts Options) (*Report, error) {
	dir, err := filepath.Abs(OutDir(logPath))
	if err != nil {
		return nil, errors.Wrapf(err, "resolve %s", OutDir(logPath))
	}
	if err := os.RemoveAll(dir); err != nil {
		return nil, errors.Wrapf(err, "remove %s", dir)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create %s", dir)
	}

	report, err := Emit(dir, res, meta, opts)
	if err != nil {
		if rmErr := os.RemoveAll(dir); rmErr != nil {
			zap.L().Error("could not remove incomplete output",
				zap.String("namespace", "emitter"), zap.String("dir", dir), zap.Error(rmErr))
		}
		return nil, err
	}
	return report, nil
}

// Emit writes every enabled artefact into an existing directory.
func Emit(dir string, res *aggregate.Result, meta Meta, opts Options) (*Report, error) {
	report := &Report{Dir: dir}
	tables := BuildTables(res, opts.TimestampColumn)

	if opts.enabled(config.OutputCSV) {
		if err := writeTables(dir, tables); err != nil {
			return nil, err
		}
		for _, t := range tables {
			report.Files = append(report.Files, t.FileName())
		}
	}
	if opts.enabled(config.OutputHTML) {
		path, err := writeHTML(dir, opts.Format, tables)
		if err != nil {
			return nil, err
		}
		report.HTML = path
		report.Files = append(report.Files, filepath.Base(path))
		linkStatic(dir, opts.StaticDir)
	}

	var rows []aggregate.SummaryRow
	if opts.enabled(config.OutputSummary) || opts.enabled(config.OutputProm) {
		rows = aggregate.Summarize(res)
	}
	if opts.enabled(config.OutputSummary) {
		if err := writeSummary(dir, rows); err != nil {
			return nil, err
		}
		report.Files = append(report.Files, summaryFile)
	}
	if opts.enabled(config.OutputXLSX) {
		if err := writeWorkbook(dir, tables); err != nil {
			return nil, err
		}
		report.Files = append(report.Files, workbookFile)
	}
	if opts.enabled(config.OutputProm) {
		if err := writeProm(dir, len(res.Indexes), rows); err != nil {
			return nil, err
		}
		report.Files = append(report.Files, promFile)
	}
	if opts.enabled(config.OutputJSON) {
		report.Files = append(report.Files, metaFile)
		sort.Strings(report.Files)
		meta.Format = opts.Format
		meta.Files = report.Files
		meta.fill(res)
		if err := writeMeta(dir, meta); err != nil {
			return nil, err
		}
	}
	sort.Strings(report.Files)
	return report, nil
}
