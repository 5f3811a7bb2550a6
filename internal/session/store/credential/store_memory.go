// Package credential stores principal secrets for password authentication.
package credential

import (
	"context"
	"strings"
	"sync"
	"time"

	"digitalbank/internal/session/models"
	id "digitalbank/pkg/domain"
	"digitalbank/pkg/platform/sentinel"
)

// InMemoryCredentialStore keeps credentials in process memory, keyed by
// normalized email.
type InMemoryCredentialStore struct {
	mu      sync.RWMutex
	byEmail map[string]*models.Credential
}

func NewInMemory() *InMemoryCredentialStore {
	return &InMemoryCredentialStore{byEmail: make(map[string]*models.Credential)}
}

// NormalizeEmail lower-cases and trims an email for lookups.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Save inserts or replaces a credential. A different principal already
// holding the email is a conflict.
func (s *InMemoryCredentialStore) Save(_ context.Context, c *models.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := NormalizeEmail(c.Email)
	if existing, ok := s.byEmail[key]; ok && existing.PrincipalID != c.PrincipalID {
		return sentinel.ErrConflict
	}
	cp := *c
	cp.Email = key
	s.byEmail[key] = &cp
	return nil
}

func (s *InMemoryCredentialStore) FindByEmail(_ context.Context, email string) (*models.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.byEmail[NormalizeEmail(email)]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *InMemoryCredentialStore) RecordLogin(_ context.Context, principalID id.PrincipalID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.byEmail {
		if c.PrincipalID == principalID {
			t := at
			c.LastLoginAt = &t
			return nil
		}
	}
	return sentinel.ErrNotFound
}
