package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics for the audit recorder and its outbox relay.
type Metrics struct {
	EntriesRecorded  *prometheus.CounterVec
	PersistFailures  prometheus.Counter
	PersistDuration  prometheus.Histogram
	RelayPublished   prometheus.Counter
	RelayFailures    prometheus.Counter
	RelayBatchLength prometheus.Histogram
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		EntriesRecorded: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "digitalbank_audit_entries_recorded_total",
			Help: "Audit entries persisted by target type",
		}, []string{"target_type"}),
		PersistFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "digitalbank_audit_persist_failures_total",
			Help: "Audit appends that failed; each one aborted its privileged write",
		}),
		PersistDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "digitalbank_audit_persist_duration_seconds",
			Help:    "Latency of synchronous audit appends",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}),
		RelayPublished: factory.NewCounter(prometheus.CounterOpts{
			Name: "digitalbank_audit_relay_published_total",
			Help: "Outbox records published to the event stream",
		}),
		RelayFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "digitalbank_audit_relay_failures_total",
			Help: "Relay batches that failed and will be retried",
		}),
		RelayBatchLength: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "digitalbank_audit_relay_batch_size",
			Help:    "Number of outbox records per relay batch",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		}),
	}
}
