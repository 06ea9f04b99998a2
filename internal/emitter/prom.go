package emitter

import (
	"path/filepath"

	"github.com/gvprof/gvprof/internal/aggregate"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

const promFile = "profile.prom"

var summaryLabels = []string{"entity", "kind", "op"}

// summaryGauges exposes the run summary in node_exporter textfile form.
type summaryGauges struct {
	samples  prometheus.Gauge
	calls    *prometheus.GaugeVec
	meanRate *prometheus.GaugeVec
	peakRate *prometheus.GaugeVec
	meanLat  *prometheus.GaugeVec
	p95Lat   *prometheus.GaugeVec
}

func newSummaryGauges(reg prometheus.Registerer) *summaryGauges {
	vec := func(name, help string) *prometheus.GaugeVec {
		return prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "gvprof",
			Name:      name,
			Help:      help,
		}, summaryLabels)
	}
	g := &summaryGauges{
		samples: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "gvprof",
			Name:      "samples",
			Help:      "Profile samples aggregated.",
		}),
		calls:    vec("op_calls", "FOP calls over the whole run."),
		meanRate: vec("op_mean_call_rate", "Mean FOP calls per second."),
		peakRate: vec("op_peak_call_rate", "Highest per-sample FOP calls per second."),
		meanLat:  vec("op_mean_latency_microseconds", "Mean of the per-sample average latency."),
		p95Lat:   vec("op_p95_latency_microseconds", "95th percentile of the per-sample average latency."),
	}
	reg.MustRegister(g.samples, g.calls, g.meanRate, g.peakRate, g.meanLat, g.p95Lat)
	return g
}

func (g *summaryGauges) observe(samples int, rows []aggregate.SummaryRow) {
	g.samples.Set(float64(samples))
	for _, r := range rows {
		lv := []string{r.Entity, r.Kind, r.Op}
		g.calls.WithLabelValues(lv...).Set(float64(r.TotalCalls))
		g.meanRate.WithLabelValues(lv...).Set(r.MeanCallRate)
		g.peakRate.WithLabelValues(lv...).Set(r.PeakCallRate)
		g.meanLat.WithLabelValues(lv...).Set(r.MeanAvgLat)
		g.p95Lat.WithLabelValues(lv...).Set(r.P95AvgLat)
	}
}

func writeProm(dir string, samples int, rows []aggregate.SummaryRow) error {
	reg := prometheus.NewRegistry()
	newSummaryGauges(reg).observe(samples, rows)
	path := filepath.Join(dir, promFile)
	if err := prometheus.WriteToTextfile(path, reg); err != nil {
		return errors.Wrapf(err, "write %s", path)
	}
	return nil
}
