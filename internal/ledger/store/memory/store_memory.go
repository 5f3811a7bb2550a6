// Package memory is an in-process ledger store. Units of work are serialized
// and roll back by restoring a snapshot taken when they started. Reads and
// writes made outside a unit of work wait for the open one to finish, so they
// never observe state that a rollback later discards.
package memory

import (
	"context"
	"maps"
	"slices"
	"strings"
	"sync"

	"digitalbank/internal/ledger/models"
	id "digitalbank/pkg/domain"
	"digitalbank/pkg/platform/sentinel"
)

type txKey struct{}

type InMemoryStore struct {
	txMu sync.Mutex

	mu           sync.RWMutex
	customers    map[id.PrincipalID]*models.CustomerProfile
	accounts     map[id.AccountID]*models.Account
	transactions map[id.TransactionID]*models.Transaction
}

func New() *InMemoryStore {
	return &InMemoryStore{
		customers:    make(map[id.PrincipalID]*models.CustomerProfile),
		accounts:     make(map[id.AccountID]*models.Account),
		transactions: make(map[id.TransactionID]*models.Transaction),
	}
}

type snapshot struct {
	customers    map[id.PrincipalID]*models.CustomerProfile
	accounts     map[id.AccountID]*models.Account
	transactions map[id.TransactionID]*models.Transaction
}

// RunInTx runs fn and restores the previous state if it fails. A unit of work
// already open in ctx is joined.
func (s *InMemoryStore) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	snap := snapshot{
		customers:    maps.Clone(s.customers),
		accounts:     maps.Clone(s.accounts),
		transactions: maps.Clone(s.transactions),
	}
	s.mu.RUnlock()

	if err := fn(context.WithValue(ctx, txKey{}, struct{}{})); err != nil {
		s.mu.Lock()
		s.customers, s.accounts, s.transactions = snap.customers, snap.accounts, snap.transactions
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *InMemoryStore) CreateCustomer(ctx context.Context, c *models.CustomerProfile) error {
	defer s.serialize(ctx)()
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.customers[c.ID]; exists {
		return sentinel.ErrConflict
	}
	cp := *c
	s.customers[c.ID] = &cp
	return nil
}

func (s *InMemoryStore) GetCustomer(ctx context.Context, customerID id.PrincipalID) (*models.CustomerProfile, error) {
	defer s.serialize(ctx)()
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.customers[customerID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

// GetCustomerForUpdate reads the profile. Inside RunInTx the unit of work
// already excludes every other one.
func (s *InMemoryStore) GetCustomerForUpdate(ctx context.Context, customerID id.PrincipalID) (*models.CustomerProfile, error) {
	return s.GetCustomer(ctx, customerID)
}

// UpdateCustomer replaces the stored profile. Stored values are never mutated
// in place so snapshots stay intact.
func (s *InMemoryStore) UpdateCustomer(ctx context.Context, c *models.CustomerProfile) error {
	defer s.serialize(ctx)()
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.customers[c.ID]; !ok {
		return sentinel.ErrNotFound
	}
	cp := *c
	s.customers[c.ID] = &cp
	return nil
}

func (s *InMemoryStore) CreateAccount(ctx context.Context, a *models.Account) error {
	defer s.serialize(ctx)()
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.accounts[a.ID]; exists {
		return sentinel.ErrConflict
	}
	for _, existing := range s.accounts {
		if existing.Number == a.Number {
			return sentinel.ErrConflict
		}
	}
	cp := *a
	s.accounts[a.ID] = &cp
	return nil
}

func (s *InMemoryStore) GetAccount(ctx context.Context, accountID id.AccountID) (*models.Account, error) {
	defer s.serialize(ctx)()
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[accountID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *InMemoryStore) GetAccountForUpdate(ctx context.Context, accountID id.AccountID) (*models.Account, error) {
	return s.GetAccount(ctx, accountID)
}

func (s *InMemoryStore) ListAccounts(ctx context.Context, owner id.PrincipalID, limit int) ([]*models.Account, error) {
	defer s.serialize(ctx)()
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Account
	for _, a := range s.accounts {
		if owner.IsNil() || a.OwnerID == owner {
			cp := *a
			out = append(out, &cp)
		}
	}
	slices.SortFunc(out, func(a, b *models.Account) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.Number, b.Number)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *InMemoryStore) UpdateAccount(ctx context.Context, a *models.Account) error {
	defer s.serialize(ctx)()
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[a.ID]; !ok {
		return sentinel.ErrNotFound
	}
	cp := *a
	s.accounts[a.ID] = &cp
	return nil
}

func (s *InMemoryStore) CreateTransaction(ctx context.Context, t *models.Transaction) error {
	defer s.serialize(ctx)()
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[t.AccountID]; !ok {
		return sentinel.ErrNotFound
	}
	if _, exists := s.transactions[t.ID]; exists {
		return sentinel.ErrConflict
	}
	cp := *t
	s.transactions[t.ID] = &cp
	return nil
}

func (s *InMemoryStore) GetTransaction(ctx context.Context, transactionID id.TransactionID) (*models.Transaction, error) {
	defer s.serialize(ctx)()
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.transactions[transactionID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (s *InMemoryStore) GetTransactionForUpdate(ctx context.Context, transactionID id.TransactionID) (*models.Transaction, error) {
	return s.GetTransaction(ctx, transactionID)
}

func (s *InMemoryStore) ListTransactions(ctx context.Context, f models.TransactionFilter) ([]*models.Transaction, error) {
	defer s.serialize(ctx)()
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Transaction
	for _, t := range s.transactions {
		if !f.AccountID.IsNil() && t.AccountID != f.AccountID {
			continue
		}
		if !f.OwnerID.IsNil() {
			a, ok := s.accounts[t.AccountID]
			if !ok || a.OwnerID != f.OwnerID {
				continue
			}
		}
		cp := *t
		out = append(out, &cp)
	}
	slices.SortFunc(out, func(a, b *models.Transaction) int {
		if c := b.Timestamp.Compare(a.Timestamp); c != 0 {
			return c
		}
		return strings.Compare(a.ID.String(), b.ID.String())
	})
	limit := models.ClampLimit(f.Limit)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *InMemoryStore) UpdateTransaction(ctx context.Context, t *models.Transaction) error {
	defer s.serialize(ctx)()
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.transactions[t.ID]; !ok {
		return sentinel.ErrNotFound
	}
	cp := *t
	s.transactions[t.ID] = &cp
	return nil
}

// serialize orders a read or write outside a unit of work after any open one,
// so a rollback never discards a write and no read sees a discarded one.
func (s *InMemoryStore) serialize(ctx context.Context) func() {
	if ctx.Value(txKey{}) != nil {
		return func() {}
	}
	s.txMu.Lock()
	return s.txMu.Unlock
}
