// Package relay publishes committed audit entries from the outbox to Kafka.
//
// Entries reach the outbox in the same transaction as the write they
// describe, so the relay only ever sees committed history. Delivery is at
// least once: a batch is marked published only after the broker acknowledged
// every record, and consumers deduplicate on the record key plus entry id.
package relay

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"digitalbank/internal/audit"
	"digitalbank/internal/audit/metrics"
)

const (
	DefaultBatchSize = 100
	DefaultInterval  = time.Second
)

// Producer is the subset of *kgo.Client the relay needs.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

// Outbox hands out batches of unpublished records.
type Outbox interface {
	Process(ctx context.Context, limit int, publish func(context.Context, []audit.OutboxRecord) error) (int, error)
}

type Relay struct {
	outbox    Outbox
	producer  Producer
	topic     string
	batchSize int
	interval  time.Duration
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

type Option func(*Relay)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Relay) { r.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Relay) { r.metrics = m }
}

func WithBatchSize(n int) Option {
	return func(r *Relay) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

func WithInterval(d time.Duration) Option {
	return func(r *Relay) {
		if d > 0 {
			r.interval = d
		}
	}
}

func New(outbox Outbox, producer Producer, topic string, opts ...Option) (*Relay, error) {
	if outbox == nil {
		return nil, errors.New("outbox is required")
	}
	if producer == nil {
		return nil, errors.New("producer is required")
	}
	if topic == "" {
		return nil, errors.New("topic is required")
	}
	r := &Relay{
		outbox:    outbox,
		producer:  producer,
		topic:     topic,
		batchSize: DefaultBatchSize,
		interval:  DefaultInterval,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// RunOnce publishes at most one batch and returns how many records it sent.
func (r *Relay) RunOnce(ctx context.Context) (int, error) {
	n, err := r.outbox.Process(ctx, r.batchSize, r.publish)
	if err != nil {
		if r.metrics != nil {
			r.metrics.RelayFailures.Inc()
		}
		return 0, err
	}
	if r.metrics != nil && n > 0 {
		r.metrics.RelayPublished.Add(float64(n))
		r.metrics.RelayBatchLength.Observe(float64(n))
	}
	return n, nil
}

func (r *Relay) publish(ctx context.Context, batch []audit.OutboxRecord) error {
	records := make([]*kgo.Record, 0, len(batch))
	for _, rec := range batch {
		records = append(records, &kgo.Record{
			Topic:     r.topic,
			Key:       []byte(rec.Key),
			Value:     rec.Payload,
			Timestamp: rec.CreatedAt,
			Headers: []kgo.RecordHeader{
				{Key: "audit_entry_id", Value: []byte(rec.ID.String())},
			},
		})
	}
	return r.producer.ProduceSync(ctx, records...).FirstErr()
}

// Run drains the outbox until ctx is cancelled. Full batches are followed
// immediately by the next one; otherwise the relay waits for the interval.
func (r *Relay) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "audit relay started", "topic", r.topic, "batch_size", r.batchSize)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		n, err := r.RunOnce(ctx)
		if err != nil && ctx.Err() == nil {
			r.logger.ErrorContext(ctx, "audit relay batch failed", "error", err)
		}
		if err == nil && n == r.batchSize {
			continue
		}
		select {
		case <-ctx.Done():
			r.logger.InfoContext(ctx, "audit relay stopped")
			return nil
		case <-ticker.C:
		}
	}
}
