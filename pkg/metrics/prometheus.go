package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Run outcomes used as the status label of pipeline_runs_total.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// Manager owns the pipeline metrics and the registry they live in.
// A nil or disabled Manager ignores every call.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	constLabels      map[string]string
	registry         *prometheus.Registry

	runs           *prometheus.CounterVec
	stageDuration  *prometheus.HistogramVec
	rows           *prometheus.GaugeVec
	upstreamErrors *prometheus.CounterVec

	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// NewManager creates a metrics manager. Without WithPrometheusRegistry a
// fresh registry carrying the Go and process collectors is used.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "pvf",
		subsystem:        "",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		constLabels:      make(map[string]string),
	}

	for _, opt := range opts {
		opt(m)
	}

	if m.registry == nil {
		m.registry = prometheus.NewRegistry()
		m.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)
	labels := prometheus.Labels(m.constLabels)

	m.runs = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        "pipeline_runs_total",
			Help:        "Total number of pipeline runs by outcome",
			ConstLabels: labels,
		},
		[]string{"status"},
	)

	m.stageDuration = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        "pipeline_stage_duration_seconds",
			Help:        "Duration of each pipeline stage in seconds",
			Buckets:     m.histogramBuckets,
			ConstLabels: labels,
		},
		[]string{"stage"},
	)

	m.rows = auto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        "pipeline_rows",
			Help:        "Row count produced by each stage in the last run",
			ConstLabels: labels,
		},
		[]string{"stage"},
	)

	m.upstreamErrors = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        "upstream_errors_total",
			Help:        "Total number of failed calls to the telemetry store or weather providers",
			ConstLabels: labels,
		},
		[]string{"source"},
	)

	m.httpRequests = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        "http_requests_total",
			Help:        "Total number of HTTP requests by route, method and status",
			ConstLabels: labels,
		},
		[]string{"route", "method", "status_code"},
	)

	m.httpRequestDuration = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        "http_request_duration_seconds",
			Help:        "HTTP request duration in seconds",
			Buckets:     m.histogramBuckets,
			ConstLabels: labels,
		},
		[]string{"route", "method"},
	)
}

func (m *Manager) active() bool {
	return m != nil && m.enabled
}

// RecordRun counts one finished pipeline run.
func (m *Manager) RecordRun(status string) {
	if m.active() {
		m.runs.WithLabelValues(status).Inc()
	}
}

// ObserveStage records how long a stage took.
func (m *Manager) ObserveStage(stage string, d time.Duration) {
	if m.active() {
		m.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
	}
}

// SetRows records the row count a stage produced.
func (m *Manager) SetRows(stage string, n int) {
	if m.active() {
		m.rows.WithLabelValues(stage).Set(float64(n))
	}
}

// RecordUpstreamError counts a failed upstream call.
func (m *Manager) RecordUpstreamError(source string) {
	if m.active() {
		m.upstreamErrors.WithLabelValues(source).Inc()
	}
}

// RecordHTTPRequest counts one served request and its latency.
func (m *Manager) RecordHTTPRequest(route, method, statusCode string, d time.Duration) {
	if m.active() {
		m.httpRequests.WithLabelValues(route, method, statusCode).Inc()
		m.httpRequestDuration.WithLabelValues(route, method).Observe(d.Seconds())
	}
}

// Registry returns the registry the metrics are registered on.
func (m *Manager) Registry() *prometheus.Registry {
	return m.registry
}

// Push sends the current state of the registry to a Pushgateway.
func (m *Manager) Push(ctx context.Context, url, job string) error {
	if !m.active() || url == "" {
		return nil
	}
	if err := push.New(url, job).Gatherer(m.registry).PushContext(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrPushFailed, err)
	}
	return nil
}
