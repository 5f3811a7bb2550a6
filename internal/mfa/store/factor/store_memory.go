// Package factor stores MFA factors and their TOTP secrets.
package factor

import (
	"context"
	"slices"
	"sync"
	"time"

	"digitalbank/internal/mfa/models"
	id "digitalbank/pkg/domain"
	"digitalbank/pkg/platform/sentinel"
)

type InMemoryFactorStore struct {
	mu      sync.RWMutex
	factors map[id.FactorID]*models.Factor
}

func NewInMemory() *InMemoryFactorStore {
	return &InMemoryFactorStore{factors: make(map[id.FactorID]*models.Factor)}
}

// Enroll stores f and drops the principal's pending unverified factors. It
// fails with ErrConflict when the principal already has a verified factor.
func (s *InMemoryFactorStore) Enroll(_ context.Context, f *models.Factor) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for fid, existing := range s.factors {
		if existing.PrincipalID != f.PrincipalID {
			continue
		}
		if existing.IsVerified() {
			return sentinel.ErrConflict
		}
		delete(s.factors, fid)
	}
	cp := *f
	s.factors[f.ID] = &cp
	return nil
}

func (s *InMemoryFactorStore) FindByID(_ context.Context, factorID id.FactorID) (*models.Factor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, ok := s.factors[factorID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *f
	return &cp, nil
}

// ListByPrincipal returns the principal's factors, oldest first.
func (s *InMemoryFactorStore) ListByPrincipal(_ context.Context, principalID id.PrincipalID) ([]*models.Factor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Factor
	for _, f := range s.factors {
		if f.PrincipalID == principalID {
			cp := *f
			out = append(out, &cp)
		}
	}
	slices.SortFunc(out, func(a, b *models.Factor) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return out, nil
}

func (s *InMemoryFactorStore) HasVerified(_ context.Context, principalID id.PrincipalID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, f := range s.factors {
		if f.PrincipalID == principalID && f.IsVerified() {
			return true, nil
		}
	}
	return false, nil
}

// MarkVerified records an accepted code at TOTP counter step and marks the
// factor verified. A step at or below the last accepted one is a replay and
// fails with ErrAlreadyUsed.
func (s *InMemoryFactorStore) MarkVerified(_ context.Context, factorID id.FactorID, step uint64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.factors[factorID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if step <= f.LastUsedStep {
		return sentinel.ErrAlreadyUsed
	}
	f.LastUsedStep = step
	f.Status = models.FactorStatusVerified
	if f.VerifiedAt == nil {
		t := at
		f.VerifiedAt = &t
	}
	return nil
}
