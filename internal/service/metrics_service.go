package service

import (
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels shared by the domain counters.
const (
	outcomeCreated  = "created"
	outcomeExisting = "existing"
	outcomeSkipped  = "skipped"
	outcomeFailed   = "failed"
)

// MetricsService owns the Prometheus registry for HTTP, cache and domain counters.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLookups    *prometheus.CounterVec
	cacheLatency    prometheus.Histogram

	scheduleConflicts prometheus.Counter
	enrollments       *prometheus.CounterVec
	enrollmentsEnded  prometheus.Counter
	rosters           *prometheus.CounterVec
	rosterItems       prometheus.Counter
	charges           *prometheus.CounterVec
	billedAmount      prometheus.Counter
}

// NewMetricsService registers the collectors on a private registry.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	m := &MetricsService{
		registry: registry,
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cache_lookups_total",
			Help: "Cache lookups by result",
		}, []string{"result"}),
		cacheLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cache_latency_seconds",
			Help:    "Latency for cache operations",
			Buckets: prometheus.DefBuckets,
		}),
		scheduleConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gym_schedule_conflicts_total",
			Help: "Offering writes rejected because the instructor was already booked",
		}),
		enrollments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gym_enrollments_total",
			Help: "Enrollment attempts by result",
		}, []string{"result"}),
		enrollmentsEnded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gym_enrollments_ended_total",
			Help: "Enrollments ended",
		}),
		rosters: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gym_rosters_total",
			Help: "Roster materialisations by result",
		}, []string{"result"}),
		rosterItems: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gym_roster_items_added_total",
			Help: "Attendance items created by roster creation or synchronisation",
		}),
		charges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gym_monthly_charges_total",
			Help: "Monthly charges by result",
		}, []string{"result"}),
		billedAmount: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gym_billed_amount_total",
			Help: "Sum of charge amounts created by billing runs",
		}),
	}

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(
		m.requestDuration, m.requestTotal, m.cacheLookups, m.cacheLatency,
		m.scheduleConflicts, m.enrollments, m.enrollmentsEnded, m.rosters, m.rosterItems,
		m.charges, m.billedAmount, goroutines,
	)
	m.handler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	return m
}

// Registry exposes the underlying registry.
func (m *MetricsService) Registry() *prometheus.Registry {
	return m.registry
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := strconv.Itoa(status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordCacheOperation records a cache lookup.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheLookups.WithLabelValues("hit").Inc()
		return
	}
	m.cacheLookups.WithLabelValues("miss").Inc()
}

// RecordScheduleConflict counts a rejected offering write.
func (m *MetricsService) RecordScheduleConflict() {
	if m == nil {
		return
	}
	m.scheduleConflicts.Inc()
}

// RecordEnrollment counts an enrollment attempt by result.
func (m *MetricsService) RecordEnrollment(result string) {
	if m == nil {
		return
	}
	m.enrollments.WithLabelValues(result).Inc()
}

// RecordEnrollmentEnded counts an ended enrollment.
func (m *MetricsService) RecordEnrollmentEnded() {
	if m == nil {
		return
	}
	m.enrollmentsEnded.Inc()
}

// RecordRosters adds roster outcomes and created items.
func (m *MetricsService) RecordRosters(created, existing, skipped, items int) {
	if m == nil {
		return
	}
	m.rosters.WithLabelValues(outcomeCreated).Add(float64(created))
	m.rosters.WithLabelValues(outcomeExisting).Add(float64(existing))
	m.rosters.WithLabelValues(outcomeSkipped).Add(float64(skipped))
	m.rosterItems.Add(float64(items))
}

// RecordBillingRun adds charge outcomes and the billed total.
func (m *MetricsService) RecordBillingRun(created, skipped, failed int, amount float64) {
	if m == nil {
		return
	}
	m.charges.WithLabelValues(outcomeCreated).Add(float64(created))
	m.charges.WithLabelValues(outcomeSkipped).Add(float64(skipped))
	m.charges.WithLabelValues(outcomeFailed).Add(float64(failed))
	if amount > 0 {
		m.billedAmount.Add(amount)
	}
}
