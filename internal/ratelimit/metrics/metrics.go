package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	AuthFailures  *prometheus.CounterVec
	AuthLockouts  *prometheus.CounterVec
	AuthRejected  *prometheus.CounterVec
	StaleRecycled prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		AuthFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "digitalbank_ratelimit_auth_failures_recorded_total",
			Help: "Total number of auth failures recorded for lockout",
		}, []string{"scope"}),
		AuthLockouts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "digitalbank_ratelimit_auth_lockouts_total",
			Help: "Total number of lockouts applied",
		}, []string{"scope"}),
		AuthRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "digitalbank_ratelimit_auth_rejected_total",
			Help: "Attempts rejected because the key was locked",
		}, []string{"scope"}),
		StaleRecycled: factory.NewCounter(prometheus.CounterOpts{
			Name: "digitalbank_ratelimit_auth_stale_records_deleted_total",
			Help: "Lockout records removed by the cleanup sweep",
		}),
	}
}

func (m *Metrics) IncrementAuthFailures(scope string) {
	m.AuthFailures.WithLabelValues(scope).Inc()
}

func (m *Metrics) IncrementAuthLockouts(scope string) {
	m.AuthLockouts.WithLabelValues(scope).Inc()
}

func (m *Metrics) IncrementAuthRejected(scope string) {
	m.AuthRejected.WithLabelValues(scope).Inc()
}

func (m *Metrics) AddStaleDeleted(n int) {
	m.StaleRecycled.Add(float64(n))
}

// RequestMetrics counts per-IP request limit outcomes.
type RequestMetrics struct {
	RequestsRejected *prometheus.CounterVec
	StoreErrors      prometheus.Counter
}

func NewRequestMetrics(reg prometheus.Registerer) *RequestMetrics {
	factory := promauto.With(reg)
	return &RequestMetrics{
		RequestsRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "digitalbank_ratelimit_requests_rejected_total",
			Help: "Requests rejected by the per-IP request limit",
		}, []string{"endpoint_class"}),
		StoreErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "digitalbank_ratelimit_store_errors_total",
			Help: "Request limit checks that failed open because the bucket store errored",
		}),
	}
}

func (m *RequestMetrics) IncrementRejected(class string) {
	m.RequestsRejected.WithLabelValues(class).Inc()
}

func (m *RequestMetrics) IncrementStoreErrors() {
	m.StoreErrors.Inc()
}
