package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics for the MFA challenge flow.
type Metrics struct {
	Enrollments   prometheus.Counter
	Challenges    prometheus.Counter
	Verifications *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Enrollments: factory.NewCounter(prometheus.CounterOpts{
			Name: "digitalbank_mfa_enrollments_total",
			Help: "TOTP factors enrolled",
		}),
		Challenges: factory.NewCounter(prometheus.CounterOpts{
			Name: "digitalbank_mfa_challenges_total",
			Help: "MFA challenges issued",
		}),
		Verifications: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "digitalbank_mfa_verifications_total",
			Help: "MFA code verifications by outcome",
		}, []string{"outcome"}),
	}
}

func (m *Metrics) IncrementVerification(outcome string) {
	if m == nil {
		return
	}
	m.Verifications.WithLabelValues(outcome).Inc()
}
