package api

import (
	"net/http"
	"time"

	"logsentry/internal/schema"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the upload service's Prometheus collectors. Each Metrics has
// its own registry so several servers can run in one process.
type Metrics struct {
	registry *prometheus.Registry

	uploads   *prometheus.CounterVec
	failures  *prometheus.CounterVec
	rows      prometheus.Counter
	anomalies *prometheus.CounterVec
	published prometheus.Counter
	duration  prometheus.Histogram
}

// Failure reasons recorded by the upload handler.
const (
	reasonMissingFile    = "missing_file"
	reasonUnsupported    = "unsupported_type"
	reasonTooLarge       = "too_large"
	reasonParse          = "parse_error"
	reasonEmpty          = "empty_input"
	reasonInternal       = "internal"
	reasonPublish        = "publish"
	reasonPublishDropped = "publish_dropped"
)

// NewMetrics registers the service collectors plus the Go runtime and
// process collectors on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "logsentry",
			Name:      "uploads_total",
			Help:      "Log files analyzed, by input format.",
		}, []string{"format"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "logsentry",
			Name:      "upload_failures_total",
			Help:      "Uploads rejected or failed, by reason.",
		}, []string{"reason"}),
		rows: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "logsentry",
			Name:      "rows_total",
			Help:      "Normalized rows across all analyzed files.",
		}),
		anomalies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "logsentry",
			Name:      "anomalies_total",
			Help:      "Anomalies reported, by kind.",
		}, []string{"kind"}),
		published: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "logsentry",
			Name:      "reports_published_total",
			Help:      "Reports forwarded to the anomaly publisher.",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "logsentry",
			Name:      "analysis_duration_seconds",
			Help:      "Time spent analyzing one uploaded file.",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	m.registry.MustRegister(
		m.uploads,
		m.failures,
		m.rows,
		m.anomalies,
		m.published,
		m.duration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// RateLimitCounter reports requests let through and rejected by a limiter.
type RateLimitCounter interface {
	Allowed() uint64
	Limited() uint64
}

// RegisterRateLimiter exposes rl's counters on the registry.
func (m *Metrics) RegisterRateLimiter(rl RateLimitCounter) {
	m.registry.MustRegister(
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: "logsentry",
			Name:      "ratelimit_allowed_total",
			Help:      "Requests admitted by the rate limiter.",
		}, func() float64 { return float64(rl.Allowed()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: "logsentry",
			Name:      "ratelimit_limited_total",
			Help:      "Requests rejected by the rate limiter.",
		}, func() float64 { return float64(rl.Limited()) }),
	)
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) observeReport(report *schema.Report, elapsed time.Duration) {
	m.uploads.WithLabelValues(report.Format).Inc()
	m.rows.Add(float64(len(report.Rows)))
	m.anomalies.WithLabelValues(string(schema.AnomalyRecord)).Add(float64(report.CountByKind(schema.AnomalyRecord)))
	m.anomalies.WithLabelValues(string(schema.AnomalySequence)).Add(float64(report.CountByKind(schema.AnomalySequence)))
	m.duration.Observe(elapsed.Seconds())
}

func (m *Metrics) observeFailure(reason string) {
	m.failures.WithLabelValues(reason).Inc()
}
