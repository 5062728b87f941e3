package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the HTTP and board metrics. All record methods are safe on a nil receiver.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Board metrics
	TanksCreated     prometheus.Counter
	ProcessesDerived prometheus.Counter
	BOMRowsUnmatched prometheus.Counter
	BOMParseFailures prometheus.Counter
	StatusChanges    *prometheus.CounterVec
	ProgressUpdates  prometheus.Counter
	TanksCompleted   prometheus.Counter
	FinalQCBooked    prometheus.Counter
	ReportsGenerated *prometheus.CounterVec
}

// New creates a Metrics instance on its own registry.
func New(namespace string) *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{registry: registry}

	m.HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	m.HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration in seconds",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
	}, []string{"method", "path"})

	m.HTTPRequestsInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "http_requests_in_flight",
		Help:      "Number of HTTP requests currently being processed",
	})

	m.TanksCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "tanks_created_total",
		Help:      "Tanks created from a BOM submission",
	})

	m.ProcessesDerived = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "processes_derived_total",
		Help:      "Process cards derived from BOM rows",
	})

	m.BOMRowsUnmatched = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "bom_rows_unmatched_total",
		Help:      "SFG rows with no requirements entry",
	})

	m.BOMParseFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "bom_parse_failures_total",
		Help:      "BOM uploads that could not be read",
	})

	m.StatusChanges = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "process_status_changes_total",
		Help:      "Process status changes by target status",
	}, []string{"status"})

	m.ProgressUpdates = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "process_progress_updates_total",
		Help:      "Accepted progress updates",
	})

	m.TanksCompleted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "tanks_completed_total",
		Help:      "Times a tank had every process completed",
	})

	m.FinalQCBooked = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "final_qc_booked_total",
		Help:      "Final QC bookings",
	})

	m.ReportsGenerated = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reports_generated_total",
		Help:      "Reports served by type and format",
	}, []string{"type", "format"})

	registry.MustRegister(
		m.HTTPRequestsTotal, m.HTTPRequestDuration, m.HTTPRequestsInFlight,
		m.TanksCreated, m.ProcessesDerived, m.BOMRowsUnmatched, m.BOMParseFailures,
		m.StatusChanges, m.ProgressUpdates, m.TanksCompleted, m.FinalQCBooked,
		m.ReportsGenerated,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

func (m *Metrics) IncrementInFlight() {
	if m != nil {
		m.HTTPRequestsInFlight.Inc()
	}
}

func (m *Metrics) DecrementInFlight() {
	if m != nil {
		m.HTTPRequestsInFlight.Dec()
	}
}

// RecordTankCreated counts one submission and its derivation outcome.
func (m *Metrics) RecordTankCreated(derived, unmatched int) {
	if m == nil {
		return
	}
	m.TanksCreated.Inc()
	m.RecordDerivation(derived, unmatched)
}

func (m *Metrics) RecordDerivation(derived, unmatched int) {
	if m == nil {
		return
	}
	m.ProcessesDerived.Add(float64(derived))
	m.BOMRowsUnmatched.Add(float64(unmatched))
}

func (m *Metrics) RecordParseFailure() {
	if m != nil {
		m.BOMParseFailures.Inc()
	}
}

func (m *Metrics) RecordStatusChange(status string) {
	if m != nil {
		m.StatusChanges.WithLabelValues(status).Inc()
	}
}

func (m *Metrics) RecordProgressUpdate() {
	if m != nil {
		m.ProgressUpdates.Inc()
	}
}

func (m *Metrics) RecordTankCompleted() {
	if m != nil {
		m.TanksCompleted.Inc()
	}
}

func (m *Metrics) RecordFinalQC() {
	if m != nil {
		m.FinalQCBooked.Inc()
	}
}

func (m *Metrics) RecordReport(reportType, format string) {
	if m != nil {
		m.ReportsGenerated.WithLabelValues(reportType, format).Inc()
	}
}
