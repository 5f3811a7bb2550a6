package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for authorization decisions taken at the
// ledger boundary.
type Metrics struct {
	// Decisions by resource, action, effect and rule
	Decisions *prometheus.CounterVec

	// End-to-end latency of guarded operations (resolve owner, decide, store)
	OperationLatency *prometheus.HistogramVec
}

// New registers the decision metrics with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Decisions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "digitalbank_policy_decisions_total",
			Help: "Authorization decisions by resource, action, effect and rule",
		}, []string{"resource", "action", "effect", "rule"}),

		OperationLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "digitalbank_ledger_operation_duration_seconds",
			Help:    "Duration of guarded ledger operations",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"operation"}),
	}
}

// IncrementDecision records one decision.
func (m *Metrics) IncrementDecision(resource, action, effect, rule string) {
	if m != nil {
		m.Decisions.WithLabelValues(resource, action, effect, rule).Inc()
	}
}

// ObserveOperation records the duration of a guarded operation.
func (m *Metrics) ObserveOperation(operation string, d time.Duration) {
	if m != nil {
		m.OperationLatency.WithLabelValues(operation).Observe(d.Seconds())
	}
}
