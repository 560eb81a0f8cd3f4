package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Run outcomes used as the status label.
const (
	StatusSuccess  = "success"
	StatusRejected = "rejected"
	StatusFailed   = "failed"
)

// Metrics holds the Prometheus collectors of the service.
type Metrics struct {
	// Registry owns every collector below and backs the /metrics endpoint.
	Registry *prometheus.Registry

	runs           *prometheus.CounterVec
	runDuration    prometheus.Histogram
	transactions   prometheus.Histogram
	rings          *prometheus.CounterVec
	flagged        prometheus.Counter
	exports        *prometheus.CounterVec
	exportDuration prometheus.Histogram
	httpRequests   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
}

// NewMetrics registers the collectors in a private registry, so repeated
// construction in tests never collides.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		runs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ringtrace_detection_runs_total",
				Help: "Detection runs by outcome.",
			},
			[]string{"status"},
		),
		runDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "ringtrace_detection_duration_seconds",
			Help:    "Wall time of successful detection runs.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 14),
		}),
		transactions: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "ringtrace_detection_transactions",
			Help:    "Transactions per detection run.",
			Buckets: prometheus.ExponentialBuckets(10, 4, 8),
		}),
		rings: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ringtrace_fraud_rings_total",
				Help: "Fraud rings reported, by pattern type.",
			},
			[]string{"pattern_type"},
		),
		flagged: factory.NewCounter(prometheus.CounterOpts{
			Name: "ringtrace_suspicious_accounts_total",
			Help: "Accounts flagged with a positive suspicion score.",
		}),
		exports: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ringtrace_graph_exports_total",
				Help: "Graph exports of detection runs by outcome.",
			},
			[]string{"status"},
		),
		exportDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "ringtrace_graph_export_duration_seconds",
			Help:    "Duration of graph exports.",
			Buckets: prometheus.DefBuckets,
		}),
		httpRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ringtrace_http_requests_total",
				Help: "HTTP requests by route and status code.",
			},
			[]string{"route", "code"},
		),
		httpDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ringtrace_http_request_duration_seconds",
				Help:    "HTTP request latency by route.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
	}
}

// RecordRun counts a run outcome and, for successful runs, its size and duration.
func (m *Metrics) RecordRun(status string, transactions int, d time.Duration) {
	m.runs.WithLabelValues(status).Inc()
	if status != StatusSuccess {
		return
	}
	m.runDuration.Observe(d.Seconds())
	m.transactions.Observe(float64(transactions))
}

// RecordFindings counts the rings per pattern type and the flagged accounts of a run.
func (m *Metrics) RecordFindings(ringsByPattern map[string]int, flagged int) {
	for pattern, n := range ringsByPattern {
		m.rings.WithLabelValues(pattern).Add(float64(n))
	}
	m.flagged.Add(float64(flagged))
}

// RecordExport counts a graph export outcome.
func (m *Metrics) RecordExport(status string, d time.Duration) {
	m.exports.WithLabelValues(status).Inc()
	m.exportDuration.Observe(d.Seconds())
}

// RecordHTTP records one served request.
func (m *Metrics) RecordHTTP(route, code string, d time.Duration) {
	m.httpRequests.WithLabelValues(route, code).Inc()
	m.httpDuration.WithLabelValues(route).Observe(d.Seconds())
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}
