package authlockout

import (
	"context"
	"sync"
	"time"

	"digitalbank/internal/ratelimit/models"
)

// InMemoryAuthLockoutStore keeps lockout records in process memory. Suitable
// for single-instance deployments and tests.
type InMemoryAuthLockoutStore struct {
	mu      sync.Mutex
	records map[string]*models.AuthLockout
}

func New() *InMemoryAuthLockoutStore {
	return &InMemoryAuthLockoutStore{
		records: make(map[string]*models.AuthLockout),
	}
}

// Get returns a copy of the record, or nil when none exists.
func (s *InMemoryAuthLockoutStore) Get(_ context.Context, identifier string) (*models.AuthLockout, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[identifier]
	if !ok {
		return nil, nil
	}
	cp := *record
	return &cp, nil
}

// RecordFailure counts one failure under the store lock and returns the
// updated record.
func (s *InMemoryAuthLockoutStore) RecordFailure(_ context.Context, identifier string, now, cutoff time.Time) (*models.AuthLockout, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[identifier]
	if !ok {
		var err error
		record, err = models.NewAuthLockout(identifier, now)
		if err != nil {
			return nil, err
		}
		s.records[identifier] = record
	}
	record.RecordFailureAt(now, cutoff)
	cp := *record
	return &cp, nil
}

// ApplyLock locks identifier until until and resets its window.
func (s *InMemoryAuthLockoutStore) ApplyLock(_ context.Context, identifier string, until, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[identifier]
	if !ok {
		var err error
		record, err = models.NewAuthLockout(identifier, now)
		if err != nil {
			return err
		}
		s.records[identifier] = record
	}
	record.ApplyLock(until.Sub(now), now)
	return nil
}

func (s *InMemoryAuthLockoutStore) Clear(_ context.Context, identifier string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, identifier)
	return nil
}

// DeleteStale drops records whose lock and window both ended before cutoff.
func (s *InMemoryAuthLockoutStore) DeleteStale(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, record := range s.records {
		if record.IsLockedAt(cutoff) || !record.LastFailureAt.Before(cutoff) {
			continue
		}
		delete(s.records, key)
		removed++
	}
	return removed, nil
}
