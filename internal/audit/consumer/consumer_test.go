package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kgo"

	"digitalbank/internal/audit"
	"digitalbank/internal/identity"
	id "digitalbank/pkg/domain"
)

type fakeFetcher struct {
	batches []kgo.Fetches
}

func (f *fakeFetcher) PollFetches(ctx context.Context) kgo.Fetches {
	if len(f.batches) == 0 {
		<-ctx.Done()
		return kgo.NewErrFetch(ctx.Err())
	}
	next := f.batches[0]
	f.batches = f.batches[1:]
	return next
}

func fetchOf(records ...*kgo.Record) kgo.Fetches {
	return kgo.Fetches{{Topics: []kgo.FetchTopic{{
		Topic:      "digitalbank.audit",
		Partitions: []kgo.FetchPartition{{Partition: 0, Records: records}},
	}}}}
}

type ConsumerSuite struct {
	suite.Suite
	ctx    context.Context
	cancel context.CancelFunc
	logger *slog.Logger
}

func TestConsumerSuite(t *testing.T) {
	suite.Run(t, new(ConsumerSuite))
}

func (s *ConsumerSuite) SetupTest() {
	s.ctx, s.cancel = context.WithTimeout(context.Background(), 5*time.Second)
	s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
}

func (s *ConsumerSuite) TearDownTest() {
	s.cancel()
}

func (s *ConsumerSuite) record(e audit.Entry) *kgo.Record {
	payload, err := json.Marshal(e)
	s.Require().NoError(err)
	return &kgo.Record{
		Topic:   "digitalbank.audit",
		Key:     []byte(e.ActorID.String()),
		Value:   payload,
		Headers: []kgo.RecordHeader{{Key: entryIDHeader, Value: []byte(e.ID.String())}},
	}
}

func (s *ConsumerSuite) entry(action string) audit.Entry {
	return audit.Entry{
		ID:         id.NewAuditEntryID(),
		ActorID:    id.NewPrincipalID(),
		ActorRole:  identity.RoleAdmin,
		Action:     action,
		TargetType: "account",
		Target:     "FR7630001007941234567890185",
		Timestamp:  time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
	}
}

func (s *ConsumerSuite) collect(f *fakeFetcher, stopAfter int) []audit.Entry {
	c, err := New(f, WithLogger(s.logger))
	s.Require().NoError(err)

	var got []audit.Entry
	err = c.Run(s.ctx, HandlerFunc(func(_ context.Context, e *audit.Entry) error {
		got = append(got, *e)
		if len(got) == stopAfter {
			return ErrStop
		}
		return nil
	}))
	s.Require().NoError(err)
	return got
}

func (s *ConsumerSuite) TestDeliversEntriesInOrder() {
	first, second := s.entry("update_account"), s.entry("flag_transaction")
	got := s.collect(&fakeFetcher{batches: []kgo.Fetches{
		fetchOf(s.record(first)),
		fetchOf(s.record(second)),
	}}, 2)

	s.Require().Len(got, 2)
	s.Equal(first.ID, got[0].ID)
	s.Equal(identity.RoleAdmin, got[0].ActorRole)
	s.Equal("flag_transaction", got[1].Action)
}

func (s *ConsumerSuite) TestDropsRedeliveredEntries() {
	e := s.entry("update_account")
	other := s.entry("update_customer")
	got := s.collect(&fakeFetcher{batches: []kgo.Fetches{
		fetchOf(s.record(e), s.record(e)),
		fetchOf(s.record(e), s.record(other)),
	}}, 2)

	s.Require().Len(got, 2)
	s.Equal(e.ID, got[0].ID)
	s.Equal(other.ID, got[1].ID)
}

func (s *ConsumerSuite) TestSkipsUndecodableRecords() {
	good := s.entry("update_account")
	mismatched := s.record(s.entry("update_account"))
	mismatched.Headers = []kgo.RecordHeader{{Key: entryIDHeader, Value: []byte(id.NewAuditEntryID().String())}}

	got := s.collect(&fakeFetcher{batches: []kgo.Fetches{
		fetchOf(&kgo.Record{Value: []byte("not json")}, mismatched, s.record(good)),
	}}, 1)

	s.Require().Len(got, 1)
	s.Equal(good.ID, got[0].ID)
}

func (s *ConsumerSuite) TestHandlerErrorStopsRun() {
	c, err := New(&fakeFetcher{batches: []kgo.Fetches{fetchOf(s.record(s.entry("update_account")))}})
	s.Require().NoError(err)

	boom := errors.New("sink unavailable")
	err = c.Run(s.ctx, HandlerFunc(func(context.Context, *audit.Entry) error { return boom }))
	s.ErrorIs(err, boom)
}

func (s *ConsumerSuite) TestCancelledContextEndsRun() {
	c, err := New(&fakeFetcher{})
	s.Require().NoError(err)

	ctx, cancel := context.WithCancel(s.ctx)
	cancel()
	s.NoError(c.Run(ctx, HandlerFunc(func(context.Context, *audit.Entry) error { return nil })))
}

func (s *ConsumerSuite) TestSeenCapacityResets() {
	c, err := New(&fakeFetcher{}, WithSeenCapacity(2))
	s.Require().NoError(err)

	a, b, d := id.NewAuditEntryID(), id.NewAuditEntryID(), id.NewAuditEntryID()
	s.False(c.duplicate(a))
	s.False(c.duplicate(b))
	s.True(c.duplicate(a))
	s.False(c.duplicate(d))
	s.False(c.duplicate(a), "filter starts over once full")
}
