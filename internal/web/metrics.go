package web

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Run outcomes used as the "outcome" label.
const (
	outcomeSuccess    = "success"
	outcomeInvalid    = "invalid"
	outcomeFormat     = "format_error"
	outcomeDecryption = "decryption_error"
	outcomeRender     = "render_error"
	outcomeError      = "error"
)

// Metrics holds the collectors exposed on /metrics.
type Metrics struct {
	registry *prometheus.Registry
	runs     *prometheus.CounterVec
	rows     prometheus.Counter
	duration prometheus.Histogram
}

// NewMetrics registers the processor collectors on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "payequity",
			Name:      "runs_total",
			Help:      "Processing runs by outcome.",
		}, []string{"outcome"}),
		rows: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "payequity",
			Name:      "rows_processed_total",
			Help:      "Data rows read from uploaded registers.",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "payequity",
			Name:      "run_duration_seconds",
			Help:      "Duration of processing runs.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
	}

	m.registry.MustRegister(
		m.runs,
		m.rows,
		m.duration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// observe records one finished run.
func (m *Metrics) observe(outcome string, rows int, elapsed time.Duration) {
	m.runs.WithLabelValues(outcome).Inc()
	m.rows.Add(float64(rows))
	m.duration.Observe(elapsed.Seconds())
}
