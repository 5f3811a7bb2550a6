package relay

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"digitalbank/internal/audit"
	"digitalbank/internal/audit/metrics"
	"digitalbank/internal/audit/store/memory"
	"digitalbank/internal/identity"
	id "digitalbank/pkg/domain"
)

type fakeProducer struct {
	records []*kgo.Record
	err     error
}

func (p *fakeProducer) ProduceSync(_ context.Context, rs ...*kgo.Record) kgo.ProduceResults {
	results := make(kgo.ProduceResults, 0, len(rs))
	for _, r := range rs {
		if p.err == nil {
			p.records = append(p.records, r)
		}
		results = append(results, kgo.ProduceResult{Record: r, Err: p.err})
	}
	return results
}

func seed(t *testing.T, store *memory.InMemoryStore, n int) {
	t.Helper()
	actor := id.NewPrincipalID()
	for i := range n {
		require.NoError(t, store.Append(context.Background(), &audit.Entry{
			ID:         id.NewAuditEntryID(),
			ActorID:    actor,
			ActorRole:  identity.RoleAdmin,
			Action:     "transaction.flag",
			TargetType: "transaction",
			Target:     "T1",
			Timestamp:  time.Date(2026, 3, 2, 10, 0, i, 0, time.UTC),
		}))
	}
}

func TestNewValidates(t *testing.T) {
	store := memory.NewInMemoryStore()
	_, err := New(nil, &fakeProducer{}, "audit")
	require.Error(t, err)
	_, err = New(store, nil, "audit")
	require.Error(t, err)
	_, err = New(store, &fakeProducer{}, "")
	require.Error(t, err)
}

func TestRunOncePublishesBatch(t *testing.T) {
	store := memory.NewInMemoryStore()
	seed(t, store, 3)
	producer := &fakeProducer{}
	m := metrics.New(prometheus.NewRegistry())
	r, err := New(store, producer, "digitalbank.audit", WithBatchSize(2), WithMetrics(m))
	require.NoError(t, err)

	n, err := r.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, producer.records, 2)
	assert.Equal(t, "digitalbank.audit", producer.records[0].Topic)
	assert.Equal(t, "audit_entry_id", producer.records[0].Headers[0].Key)
	assert.Equal(t, 1, store.Pending())
	assert.Equal(t, 2.0, testutil.ToFloat64(m.RelayPublished))

	n, err = r.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Zero(t, store.Pending())
}

func TestRunOnceKeepsRecordsOnBrokerFailure(t *testing.T) {
	store := memory.NewInMemoryStore()
	seed(t, store, 2)
	m := metrics.New(prometheus.NewRegistry())
	r, err := New(store, &fakeProducer{err: errors.New("not enough replicas")}, "digitalbank.audit", WithMetrics(m))
	require.NoError(t, err)

	_, err = r.RunOnce(context.Background())
	require.Error(t, err)
	assert.Equal(t, 2, store.Pending())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RelayFailures))
}

func TestRunStopsOnCancel(t *testing.T) {
	store := memory.NewInMemoryStore()
	seed(t, store, 1)
	producer := &fakeProducer{}
	r, err := New(store, producer, "digitalbank.audit", WithInterval(10*time.Millisecond))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	require.Eventually(t, func() bool { return store.Pending() == 0 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("relay did not stop")
	}
	assert.Len(t, producer.records, 1)
}
