package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"digitalbank/internal/audit"
)

// InMemoryStore keeps audit entries and their outbox records in memory.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries []*audit.Entry
	outbox  []audit.OutboxRecord
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Append(_ context.Context, e *audit.Entry) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal audit entry: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *e
	s.entries = append(s.entries, &cp)
	s.outbox = append(s.outbox, audit.OutboxRecord{
		ID:        uuid.UUID(e.ID),
		Key:       e.ActorID.String(),
		Payload:   payload,
		CreatedAt: e.Timestamp,
	})
	return nil
}

// List returns matching entries, newest first.
func (s *InMemoryStore) List(_ context.Context, f audit.Filter) ([]*audit.Entry, error) {
	f = f.Normalize()

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*audit.Entry
	for i := len(s.entries) - 1; i >= 0; i-- {
		if f.Matches(s.entries[i]) {
			cp := *s.entries[i]
			out = append(out, &cp)
		}
	}
	slices.SortStableFunc(out, func(a, b *audit.Entry) int {
		return b.Timestamp.Compare(a.Timestamp)
	})
	if len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

// Count returns the number of stored entries.
func (s *InMemoryStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Process hands up to limit pending outbox records to publish and drops them
// once publish succeeds.
func (s *InMemoryStore) Process(ctx context.Context, limit int, publish func(context.Context, []audit.OutboxRecord) error) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := min(limit, len(s.outbox))
	if n == 0 {
		return 0, nil
	}
	batch := slices.Clone(s.outbox[:n])
	if err := publish(ctx, batch); err != nil {
		return 0, err
	}
	s.outbox = slices.Delete(s.outbox, 0, n)
	return n, nil
}

// Pending returns the number of unpublished outbox records.
func (s *InMemoryStore) Pending() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.outbox)
}

// PurgePublishedBefore is a no-op: published records are dropped immediately.
func (s *InMemoryStore) PurgePublishedBefore(context.Context, time.Time) (int, error) {
	return 0, nil
}
