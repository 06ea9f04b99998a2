package emitter

import (
	"fmt"
	"regexp"

	"github.com/gvprof/gvprof/internal/aggregate"
	"github.com/gvprof/gvprof/internal/domain"
)

// TimestampHeader is the leading column the pbench charts key on.
const TimestampHeader = "timestamp_ms"

// chartMetrics is the order op metric charts appear in.
var chartMetrics = []domain.Metric{
	domain.MetricCallRate,
	domain.MetricPctLat,
	domain.MetricAvgLat,
	domain.MetricMinLat,
	domain.MetricMaxLat,
}

// Table is one CSV file worth of rows.
type Table struct {
	// Name is the file name without the .csv suffix.
	Name   string
	Title  string
	Header []string
	Rows   [][]string
}

func (t Table) FileName() string {
	return t.Name + ".csv"
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// safeName turns an entity name such as host:/bricks/b0 into a file name
// fragment.
func safeName(name string) string {
	return unsafeChars.ReplaceAllString(name, "_")
}

func kindPrefix(k domain.EntityKind) string {
	if k == domain.KindVolume {
		return "vol"
	}
	return string(k)
}

// BuildTables lays out every CSV of a run: the two throughput tables
// first, then each entity's op metrics. A run with a single client keeps
// the plain metric file names.
func BuildTables(res *aggregate.Result, timestampColumn bool) []Table {
	entities := res.Entities()
	single := len(entities) == 1 && entities[0].Kind == domain.KindClient

	var tables []Table
	if res.HasThroughput() {
		for _, m := range []domain.Metric{domain.MetricMBpsWritten, domain.MetricMBpsRead} {
			tables = append(tables, throughputTable(res, m, single, timestampColumn))
		}
	}
	for _, e := range entities {
		for _, m := range chartMetrics {
			cols := res.Columns(e, m)
			if len(cols) == 0 {
				continue
			}
			name := string(m)
			title := m.Title()
			if !single {
				name = fmt.Sprintf("%s_%s_%s", kindPrefix(e.Kind), safeName(e.Name), m)
				title = fmt.Sprintf("%s %s: %s", e.Kind, e.Name, m.Title())
			}
			t := Table{Name: name, Title: title}
			var series []*domain.TimeSeries
			for _, c := range cols {
				series = append(series, res.Series(e, m, c))
			}
			t.Header, t.Rows = layout(res, m, cols, series, timestampColumn)
			tables = append(tables, t)
		}
	}
	return tables
}

func throughputTable(res *aggregate.Result, m domain.Metric, single, timestampColumn bool) Table {
	var cols []string
	var series []*domain.TimeSeries
	for _, e := range res.Entities() {
		s := res.Series(e, m, aggregate.ThroughputColumn)
		if s == nil {
			continue
		}
		col := e.String()
		if single {
			col = aggregate.ThroughputColumn
		}
		cols = append(cols, col)
		series = append(series, s)
	}
	t := Table{Name: string(m), Title: m.Title()}
	t.Header, t.Rows = layout(res, m, cols, series, timestampColumn)
	return t
}

// layout writes one row per sample; a cell is blank when its series has
// no point for that sample.
func layout(res *aggregate.Result, m domain.Metric, cols []string, series []*domain.TimeSeries, timestampColumn bool) ([]string, [][]string) {
	var header []string
	if timestampColumn {
		header = append(header, TimestampHeader)
	}
	header = append(header, cols...)

	rows := make([][]string, 0, len(res.Indexes))
	for _, idx := range res.Indexes {
		row := make([]string, 0, len(header))
		if timestampColumn {
			row = append(row, fmt.Sprintf("%d", res.TimeMs(idx)))
		}
		for _, s := range series {
			p, ok := s.At(idx)
			if !ok {
				row = append(row, "")
				continue
			}
			row = append(row, formatValue(m, p.Value))
		}
		rows = append(rows, row)
	}
	return header, rows
}

func formatValue(m domain.Metric, v float64) string {
	switch m {
	case domain.MetricPctLat:
		return fmt.Sprintf("%.2f", v)
	case domain.MetricAvgLat, domain.MetricMinLat, domain.MetricMaxLat:
		return fmt.Sprintf("%.0f", v)
	default:
		return fmt.Sprintf("%.3f", v)
	}
}
