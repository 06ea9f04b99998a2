package emitter

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"runtime"

	"github.com/gocarina/gocsv"
	"github.com/gvprof/gvprof/internal/aggregate"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// writeTables writes each table to its own file, several at a time.
func writeTables(dir string, tables []Table) error {
	var g errgroup.Group
	g.SetLimit(runtime.NumCPU())
	for _, t := range tables {
		t := t
		g.Go(func() error {
			return writeTable(dir, t)
		})
	}
	return g.Wait()
}

func writeTable(dir string, t Table) error {
	path := filepath.Join(dir, t.FileName())
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	defer f.Close()

	w := gocsv.NewSafeCSVWriter(csv.NewWriter(f))
	if err := w.Write(t.Header); err != nil {
		return errors.Wrapf(err, "write %s", path)
	}
	for _, row := range t.Rows {
		if err := w.Write(row); err != nil {
			return errors.Wrapf(err, "write %s", path)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return errors.Wrapf(err, "flush %s", path)
	}
	return f.Close()
}

const summaryFile = "summary.csv"

func writeSummary(dir string, rows []aggregate.SummaryRow) error {
	path := filepath.Join(dir, summaryFile)
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	defer f.Close()
	if rows == nil {
		rows = []aggregate.SummaryRow{}
	}
	if err := gocsv.MarshalFile(&rows, f); err != nil {
		return errors.Wrapf(err, "write %s", path)
	}
	return f.Close()
}
