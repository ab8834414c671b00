package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus counters and gauges for the contest portal.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry                 *prometheus.Registry
	requestsTotal            prometheus.Counter
	errorsTotal              prometheus.Counter
	routeRequests            *prometheus.CounterVec
	routeDuration            *prometheus.HistogramVec
	submissionsRecordedTotal prometheus.Counter
	submissionsDeletedTotal  prometheus.Counter
	uploadBytesTotal         prometheus.Counter
	uploadFailuresTotal      prometheus.Counter
	orphanedObjectsTotal     prometheus.Counter
	notificationsFailedTotal prometheus.Counter
	submissions              prometheus.Gauge
}

// New creates and registers Prometheus metrics for the portal.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		requestsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "contest_requests_total",
			Help: "Total number of HTTP requests received",
		}),
		errorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "contest_errors_total",
			Help: "Total number of HTTP responses with error status (4xx or 5xx)",
		}),
		routeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "contest_route_requests_total",
			Help: "HTTP requests by route pattern and status code",
		}, []string{"route", "code"}),
		routeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "contest_route_duration_seconds",
			Help:    "HTTP handler latency by route pattern",
			Buckets: []float64{.005, .025, .1, .5, 2, 10, 60},
		}, []string{"route"}),
		submissionsRecordedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "contest_submissions_recorded_total",
			Help: "Total number of submissions written to the store",
		}),
		submissionsDeletedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "contest_submissions_deleted_total",
			Help: "Total number of submissions deleted",
		}),
		uploadBytesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "contest_upload_bytes_total",
			Help: "Total number of video bytes written to object storage",
		}),
		uploadFailuresTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "contest_upload_failures_total",
			Help: "Total number of failed video uploads",
		}),
		orphanedObjectsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "contest_orphaned_objects_total",
			Help: "Uploaded objects left without a submission record",
		}),
		notificationsFailedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "contest_notifications_failed_total",
			Help: "Total number of new-submission relays that failed",
		}),
		submissions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "contest_submissions",
			Help: "Number of submissions currently stored",
		}),
	}

	registry.MustRegister(
		m.requestsTotal,
		m.errorsTotal,
		m.routeRequests,
		m.routeDuration,
		m.submissionsRecordedTotal,
		m.submissionsDeletedTotal,
		m.uploadBytesTotal,
		m.uploadFailuresTotal,
		m.orphanedObjectsTotal,
		m.notificationsFailedTotal,
		m.submissions,
	)

	return m
}

// ObserveRequest records one finished request. Statuses of 400 and above
// also count as errors.
func (m *Metrics) ObserveRequest(route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requestsTotal.Inc()
	if status >= http.StatusBadRequest {
		m.errorsTotal.Inc()
	}
	m.routeRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	m.routeDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}

func (m *Metrics) IncSubmissionsRecorded() {
	if m != nil {
		m.submissionsRecordedTotal.Inc()
	}
}

func (m *Metrics) IncSubmissionsDeleted() {
	if m != nil {
		m.submissionsDeletedTotal.Inc()
	}
}

// AddUploadBytes adds n transferred bytes.
func (m *Metrics) AddUploadBytes(n int64) {
	if m != nil && n > 0 {
		m.uploadBytesTotal.Add(float64(n))
	}
}

func (m *Metrics) IncUploadFailures() {
	if m != nil {
		m.uploadFailuresTotal.Inc()
	}
}

func (m *Metrics) IncOrphanedObjects() {
	if m != nil {
		m.orphanedObjectsTotal.Inc()
	}
}

func (m *Metrics) IncNotificationsFailed() {
	if m != nil {
		m.notificationsFailedTotal.Inc()
	}
}

// SetSubmissions sets the stored submissions gauge.
func (m *Metrics) SetSubmissions(n int) {
	if m != nil {
		m.submissions.Set(float64(n))
	}
}

// Registry exposes the underlying registry (tests read values from it).
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an http.Handler that serves Prometheus metrics.
// updateGauges is called before each scrape to refresh gauge values.
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}
