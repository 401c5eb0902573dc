package service

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsService exposes the application's Prometheus collectors. One
// instance is shared across middleware and services.
type MetricsService struct {
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	logins          *prometheus.CounterVec
	enrollments     prometheus.Counter
	payments        *prometheus.CounterVec
	accessDenials   *prometheus.CounterVec
	activeSessions  prometheus.GaugeFunc
	catalogCacheHit *prometheus.CounterVec
}

// NewMetricsService registers the collectors on the provided registerer.
// Pass a SessionRegistry to export the live admin session count.
func NewMetricsService(reg prometheus.Registerer, registry *SessionRegistry) *MetricsService {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	s := &MetricsService{
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "coursebay_http_requests_total",
			Help: "HTTP requests by method, path and status.",
		}, []string{"method", "path", "status"}),
		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "coursebay_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),
		logins: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "coursebay_logins_total",
			Help: "Login attempts by outcome.",
		}, []string{"outcome"}),
		enrollments: factory.NewCounter(prometheus.CounterOpts{
			Name: "coursebay_enrollments_total",
			Help: "Enrollments created.",
		}),
		payments: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "coursebay_payments_total",
			Help: "Payment settlements by outcome.",
		}, []string{"outcome"}),
		accessDenials: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "coursebay_access_denials_total",
			Help: "Entitlement denials by reason.",
		}, []string{"reason"}),
		catalogCacheHit: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "coursebay_catalog_cache_total",
			Help: "Catalog cache lookups by result.",
		}, []string{"result"}),
	}

	if registry != nil {
		s.activeSessions = factory.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "coursebay_admin_sessions_active",
			Help: "Live admin sessions in the registry.",
		}, func() float64 {
			return float64(len(registry.Active()))
		})
	}
	return s
}

// ObserveRequest records one handled HTTP request.
func (s *MetricsService) ObserveRequest(method, path string, status int, elapsed time.Duration) {
	s.httpRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	s.httpDuration.WithLabelValues(method, path).Observe(elapsed.Seconds())
}

// RecordLogin counts a login attempt by outcome.
func (s *MetricsService) RecordLogin(success bool) {
	outcome := "failure"
	if success {
		outcome = "success"
	}
	s.logins.WithLabelValues(outcome).Inc()
}

// RecordEnrollment counts a created enrollment.
func (s *MetricsService) RecordEnrollment() {
	s.enrollments.Inc()
}

// RecordPayment counts a payment settlement.
func (s *MetricsService) RecordPayment(outcome string) {
	s.payments.WithLabelValues(outcome).Inc()
}

// RecordDenial counts an entitlement denial.
func (s *MetricsService) RecordDenial(reason AccessReason) {
	s.accessDenials.WithLabelValues(string(reason)).Inc()
}

// RecordCatalogCache counts a catalog cache lookup.
func (s *MetricsService) RecordCatalogCache(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	s.catalogCacheHit.WithLabelValues(result).Inc()
}
