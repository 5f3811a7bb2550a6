package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics for the session manager.
type Metrics struct {
	AuthOutcomes  *prometheus.CounterVec
	VerifyLatency prometheus.Histogram
	VerifyFailed  *prometheus.CounterVec
	Revocations   prometheus.Counter
	Elevations    *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		AuthOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "digitalbank_session_authentications_total",
			Help: "Authentication attempts by outcome",
		}, []string{"outcome"}),
		VerifyLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "digitalbank_session_verify_duration_ms",
			Help:    "Latency of session token verification in milliseconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25},
		}),
		VerifyFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "digitalbank_session_verify_failures_total",
			Help: "Rejected session tokens by error code",
		}, []string{"code"}),
		Revocations: factory.NewCounter(prometheus.CounterOpts{
			Name: "digitalbank_session_revocations_total",
			Help: "Sessions invalidated",
		}),
		Elevations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "digitalbank_session_elevations_total",
			Help: "Sessions elevated by target MFA level",
		}, []string{"level"}),
	}
}

func (m *Metrics) IncrementAuth(outcome string) {
	m.AuthOutcomes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveVerify(start time.Time) {
	m.VerifyLatency.Observe(float64(time.Since(start).Microseconds()) / 1000.0)
}

func (m *Metrics) IncrementVerifyFailed(code string) {
	m.VerifyFailed.WithLabelValues(code).Inc()
}

func (m *Metrics) IncrementRevocations() {
	m.Revocations.Inc()
}

func (m *Metrics) IncrementElevations(level string) {
	m.Elevations.WithLabelValues(level).Inc()
}
