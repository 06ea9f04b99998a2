package emitter

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/360EntSecGroup-Skylar/excelize"
	"github.com/gvprof/gvprof/config"
	"github.com/gvprof/gvprof/internal/aggregate"
	"github.com/gvprof/gvprof/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allOutputs = []string{
	config.OutputCSV, config.OutputHTML, config.OutputSummary,
	config.OutputXLSX, config.OutputJSON, config.OutputProm,
}

func clientResult(t *testing.T) *aggregate.Result {
	t.Helper()
	es := domain.NewEntityStats(domain.Entity{Name: "mnt", Kind: domain.KindClient})
	es.Add(domain.OperationRecord{Op: domain.OpWrite, Calls: 10, AvgLat: 200, MinLat: 100, MaxLat: 300})
	es.Add(domain.OperationRecord{Op: domain.OpLookup})
	es.BytesRead, es.BytesWritten, es.HasBytes = 1000000, 3000000, true

	res, err := aggregate.Aggregate([]*domain.Sample{{Index: 0, Entities: []*domain.EntityStats{es}}}, aggregate.Options{
		Interval:      time.Minute,
		Start:         time.UnixMilli(1445467828000),
		TimestampMode: config.TimestampEpoch,
	})
	require.NoError(t, err)
	return res
}

func serverResult(t *testing.T) *aggregate.Result {
	t.Helper()
	b0 := domain.NewEntityStats(domain.Entity{Name: "h1:/b0", Kind: domain.KindBrick})
	b0.Add(domain.OperationRecord{Op: domain.OpWrite, Calls: 10, AvgLat: 200, MinLat: 100, MaxLat: 300})
	b0.BytesWritten, b0.HasBytes = 6000000, true
	b1 := domain.NewEntityStats(domain.Entity{Name: "h2:/b1", Kind: domain.KindBrick})
	b1.Add(domain.OperationRecord{Op: domain.OpWrite, Calls: 30, AvgLat: 100, MinLat: 20, MaxLat: 400})
	b1.BytesWritten, b1.HasBytes = 12000000, true

	res, err := aggregate.Aggregate([]*domain.Sample{{Index: 0, Entities: []*domain.EntityStats{b0, b1}}}, aggregate.Options{
		Interval:      time.Minute,
		TimestampMode: config.TimestampRelative,
	})
	require.NoError(t, err)
	return res
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(raw)
}

func TestWriteClientRun(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "client.log")
	report, err := Write(logPath, clientResult(t), Meta{Log: "client.log"}, Options{
		Format:          config.FormatClient,
		TimestampColumn: true,
		StaticDir:       "static",
		Outputs:         allOutputs,
	})
	require.NoError(t, err)

	dir := logPath + DirSuffix
	assert.Equal(t, dir, report.Dir)
	assert.Equal(t, []string{
		"MBps-read.csv", "MBps-written.csv", "avg-lat.csv", "call-rate.csv",
		"gvp-client-graphs.html", "max-lat.csv", "min-lat.csv", "pct-lat.csv",
		"profile.json", "profile.prom", "profile.xlsx", "summary.csv",
	}, report.Files)

	assert.Equal(t, "timestamp_ms,LOOKUP,WRITE\n1445467828000,0.000,0.167\n", readFile(t, filepath.Join(dir, "call-rate.csv")))
	assert.Equal(t, "timestamp_ms,LOOKUP,WRITE\n1445467828000,0.00,100.00\n", readFile(t, filepath.Join(dir, "pct-lat.csv")))
	assert.Equal(t, "timestamp_ms,LOOKUP,WRITE\n1445467828000,,100\n", readFile(t, filepath.Join(dir, "min-lat.csv")))
	assert.Equal(t, "timestamp_ms,MB/s\n1445467828000,0.017\n", readFile(t, filepath.Join(dir, "MBps-read.csv")))
	assert.Equal(t, "timestamp_ms,MB/s\n1445467828000,0.050\n", readFile(t, filepath.Join(dir, "MBps-written.csv")))

	page := readFile(t, report.HTML)
	assert.Contains(t, page, `constructChart("lineChart", 1, "MBps-written", 0.00);`)
	assert.Contains(t, page, `constructChart("lineChart", 3, "call-rate", 0.00);`)
	assert.Contains(t, page, "application activity on one client")
	assert.NotContains(t, page, "{{")
	assert.True(t, strings.HasPrefix(report.URL(), "file:///"))

	fi, err := os.Lstat(filepath.Join(dir, "static"))
	require.NoError(t, err)
	assert.NotZero(t, fi.Mode()&os.ModeSymlink)
	target, err := os.Readlink(filepath.Join(dir, "static"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("..", "static"), target)

	prom := readFile(t, filepath.Join(dir, promFile))
	assert.Contains(t, prom, `gvprof_op_calls{entity="mnt",kind="client",op="WRITE"} 10`)
	assert.Contains(t, prom, "gvprof_samples 1")

	summary := readFile(t, filepath.Join(dir, summaryFile))
	assert.True(t, strings.HasPrefix(summary, "entity,kind,op,active_samples,total_calls,"))

	var meta Meta
	require.NoError(t, json.Unmarshal([]byte(readFile(t, filepath.Join(dir, metaFile))), &meta))
	assert.Equal(t, config.FormatClient, meta.Format)
	assert.Equal(t, 60.0, meta.IntervalSeconds)
	assert.Equal(t, []string{"LOOKUP", "WRITE"}, meta.Ops)
	assert.Equal(t, report.Files, meta.Files)

	book, err := excelize.OpenFile(filepath.Join(dir, workbookFile))
	require.NoError(t, err)
	assert.Equal(t, "timestamp_ms", book.GetCellValue("call-rate", "A1"))
	assert.Equal(t, "0.167", book.GetCellValue("call-rate", "C2"))
}

func TestWriteIsRepeatable(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "client.log")
	opts := Options{Format: config.FormatClient, TimestampColumn: true, StaticDir: "static", Outputs: allOutputs}

	_, err := Write(logPath, clientResult(t), Meta{}, opts)
	require.NoError(t, err)
	dir := logPath + DirSuffix
	first := map[string]string{}
	for _, name := range []string{"call-rate.csv", "pct-lat.csv", "MBps-read.csv", "gvp-client-graphs.html", metaFile, summaryFile, workbookFile} {
		first[name] = readFile(t, filepath.Join(dir, name))
	}

	// stale files from an earlier run must not survive
	require.NoError(t, os.WriteFile(filepath.Join(dir, "stale.csv"), []byte("x"), 0o644))

	_, err = Write(logPath, clientResult(t), Meta{}, opts)
	require.NoError(t, err)
	for name, want := range first {
		assert.Equal(t, want, readFile(t, filepath.Join(dir, name)), name)
	}
	assert.NoFileExists(t, filepath.Join(dir, "stale.csv"))
}

func TestTimestampColumnOff(t *testing.T) {
	tables := BuildTables(clientResult(t), false)
	for _, tb := range tables {
		assert.NotContains(t, tb.Header, TimestampHeader, tb.Name)
		for _, row := range tb.Rows {
			assert.Len(t, row, len(tb.Header))
		}
	}
}

func TestServerTableNames(t *testing.T) {
	tables := BuildTables(serverResult(t), true)
	byName := map[string]Table{}
	var names []string
	for _, tb := range tables {
		byName[tb.Name] = tb
		names = append(names, tb.Name)
	}
	assert.Equal(t, "MBps-written", names[0])
	assert.Equal(t, "MBps-read", names[1])
	assert.Contains(t, names, "vol_all_call-rate")
	assert.Contains(t, names, "brick_h1_b0_call-rate")
	assert.Contains(t, names, "brick_h2_b1_max-lat")

	mbps := byName["MBps-written"]
	assert.Equal(t, []string{TimestampHeader, "volume:all", "brick:h1:/b0", "brick:h2:/b1"}, mbps.Header)
	assert.Equal(t, [][]string{{"0", "0.300", "0.100", "0.200"}}, mbps.Rows)

	assert.Equal(t, [][]string{{"0", "125"}}, byName["vol_all_avg-lat"].Rows)
	assert.Equal(t, "gvp-graphs.html", HTMLName(config.FormatServer))
}

func TestWriteSkipsDisabledOutputs(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "server.log")
	report, err := Write(logPath, serverResult(t), Meta{}, Options{
		Format:  config.FormatServer,
		Outputs: []string{config.OutputCSV},
	})
	require.NoError(t, err)
	assert.Empty(t, report.URL())
	for _, f := range report.Files {
		assert.True(t, strings.HasSuffix(f, ".csv"), f)
	}
	assert.NoFileExists(t, filepath.Join(report.Dir, "gvp-graphs.html"))
}

func TestSummaryGauges(t *testing.T) {
	res := serverResult(t)
	reg := prometheus.NewRegistry()
	g := newSummaryGauges(reg)
	g.observe(len(res.Indexes), aggregate.Summarize(res))

	assert.Equal(t, 1.0, testutil.ToFloat64(g.samples))
	assert.Equal(t, 40.0, testutil.ToFloat64(g.calls.WithLabelValues("all", "volume", "WRITE")))
	assert.InDelta(t, 0.5, testutil.ToFloat64(g.meanRate.WithLabelValues("h2:/b1", "brick", "WRITE")), 1e-9)
	assert.Equal(t, 125.0, testutil.ToFloat64(g.meanLat.WithLabelValues("all", "volume", "WRITE")))
}

func TestWorkbookBytesAreStable(t *testing.T) {
	tables := BuildTables(serverResult(t), true)
	var first []byte
	var dir string
	for i := 0; i < 5; i++ {
		dir = t.TempDir()
		require.NoError(t, writeWorkbook(dir, tables))
		raw := []byte(readFile(t, filepath.Join(dir, workbookFile)))
		if first == nil {
			first = raw
			continue
		}
		assert.Equal(t, first, raw, "write %d", i+1)
	}

	zr, err := zip.NewReader(bytes.NewReader(first), int64(len(first)))
	require.NoError(t, err)
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	assert.True(t, sort.StringsAreSorted(names), names)
	assert.Equal(t, "[Content_Types].xml", names[0])

	book, err := excelize.OpenFile(filepath.Join(dir, workbookFile))
	require.NoError(t, err)
	assert.Equal(t, "MBps-written", book.GetSheetName(1))
	assert.Equal(t, "0.3", book.GetCellValue("MBps-written", "B2"))
}

func TestSheetNames(t *testing.T) {
	used := map[string]bool{}
	long := strings.Repeat("x", 40) + "_call-rate"
	a := sheetName(long, used)
	b := sheetName(long, used)
	assert.Len(t, a, maxSheetNameLen)
	assert.LessOrEqual(t, len(b), maxSheetNameLen)
	assert.NotEqual(t, a, b)
	assert.Equal(t, "call-rate", sheetName("call-rate", used))
}
