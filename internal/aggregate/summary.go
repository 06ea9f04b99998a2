package aggregate

import (
	"math"

	"github.com/gvprof/gvprof/internal/domain"
	"github.com/montanaflynn/stats"
)

// SummaryRow condenses one operation of one entity over the whole run.
type SummaryRow struct {
	Entity        string  `csv:"entity" json:"entity"`
	Kind          string  `csv:"kind" json:"kind"`
	Op            string  `csv:"op" json:"op"`
	ActiveSamples int     `csv:"active_samples" json:"active_samples"`
	TotalCalls    int64   `csv:"total_calls" json:"total_calls"`
	MeanCallRate  float64 `csv:"mean_call_rate" json:"mean_call_rate"`
	PeakCallRate  float64 `csv:"peak_call_rate" json:"peak_call_rate"`
	MeanAvgLat    float64 `csv:"mean_avg_lat_us" json:"mean_avg_lat_us"`
	P95AvgLat     float64 `csv:"p95_avg_lat_us" json:"p95_avg_lat_us"`
}

// Summarize returns one row per (entity, operation) in entity then
// column order. Latency figures only cover samples in which the
// operation was called.
func Summarize(res *Result) []SummaryRow {
	secs := res.Interval.Seconds()
	var rows []SummaryRow
	for _, e := range res.Entities() {
		for _, col := range res.Columns(e, domain.MetricCallRate) {
			rates := res.Series(e, domain.MetricCallRate, col)
			lats := res.Series(e, domain.MetricAvgLat, col)

			var rateData, latData stats.Float64Data
			active := 0
			for _, p := range rates.Points() {
				rateData = append(rateData, p.Value)
				if p.Value <= 0 {
					continue
				}
				active++
				if lats == nil {
					continue
				}
				if lp, ok := lats.At(p.Index); ok {
					latData = append(latData, lp.Value)
				}
			}

			row := SummaryRow{
				Entity:        e.Name,
				Kind:          string(e.Kind),
				Op:            col,
				ActiveSamples: active,
				TotalCalls:    int64(math.Round(sum(rateData) * secs)),
			}
			row.MeanCallRate = orZero(rateData.Mean())
			row.PeakCallRate = orZero(rateData.Max())
			if len(latData) > 0 {
				row.MeanAvgLat = orZero(latData.Mean())
				row.P95AvgLat = orZero(latData.Percentile(95))
			}
			rows = append(rows, row)
		}
	}
	return rows
}

func orZero(v float64, err error) float64 {
	if err != nil || math.IsNaN(v) {
		return 0
	}
	return v
}
