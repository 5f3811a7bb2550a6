// Package challenge stores pending MFA challenges. Consume is the only way a
// challenge leaves the store, and it succeeds at most once per challenge.
package challenge

import (
	"context"
	"sync"
	"time"

	"digitalbank/internal/mfa/models"
	id "digitalbank/pkg/domain"
	"digitalbank/pkg/platform/sentinel"
)

type InMemoryChallengeStore struct {
	mu         sync.Mutex
	challenges map[id.ChallengeID]*models.Challenge
}

func NewInMemory() *InMemoryChallengeStore {
	return &InMemoryChallengeStore{challenges: make(map[id.ChallengeID]*models.Challenge)}
}

func (s *InMemoryChallengeStore) Create(_ context.Context, c *models.Challenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.challenges[c.ID]; exists {
		return sentinel.ErrConflict
	}
	cp := *c
	s.challenges[c.ID] = &cp
	return nil
}

func (s *InMemoryChallengeStore) Get(_ context.Context, challengeID id.ChallengeID) (*models.Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.challenges[challengeID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

// Consume removes and returns the challenge. A second call for the same id
// returns ErrNotFound.
func (s *InMemoryChallengeStore) Consume(_ context.Context, challengeID id.ChallengeID) (*models.Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.challenges[challengeID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	delete(s.challenges, challengeID)
	return c, nil
}

// PurgeExpired drops challenges whose deadline has passed.
func (s *InMemoryChallengeStore) PurgeExpired(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int
	for cid, c := range s.challenges {
		if c.IsExpiredAt(now) {
			delete(s.challenges, cid)
			n++
		}
	}
	return n, nil
}
