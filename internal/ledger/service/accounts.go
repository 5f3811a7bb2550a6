package service

import (
	"context"

	"digitalbank/internal/audit"
	"digitalbank/internal/identity"
	"digitalbank/internal/ledger/models"
	"digitalbank/internal/policy"
	id "digitalbank/pkg/domain"
	dErrors "digitalbank/pkg/domain-errors"
	"digitalbank/pkg/requestcontext"
)

var errAccountNotFound = dErrors.New(dErrors.CodeNotFound, "account not found")

// ListAccounts returns the accounts p may see: all of them for staff, their
// own for a customer, none for anonymous callers.
func (s *Service) ListAccounts(ctx context.Context, p identity.Principal, limit int) ([]*models.Account, error) {
	ctx, done := s.observe(ctx, "ListAccounts")
	defer done()

	owner, ok := s.scope(ctx, p, policy.ResourceAccount)
	if !ok {
		return []*models.Account{}, nil
	}
	accounts, err := s.store.ListAccounts(ctx, owner, models.ClampLimit(limit))
	if err != nil {
		return nil, storeError(err, errAccountNotFound)
	}
	if accounts == nil {
		accounts = []*models.Account{}
	}
	return accounts, nil
}

// scope returns the owner filter for a collection read. ok is false when p
// may see no row at all.
func (s *Service) scope(ctx context.Context, p identity.Principal, resource policy.ResourceType) (id.PrincipalID, bool) {
	if policy.SeesAll(p, resource) {
		s.decide(ctx, p, policy.ActionRead, resource, id.PrincipalID{})
		return id.PrincipalID{}, true
	}
	if !s.decide(ctx, p, policy.ActionRead, resource, p.ID).Allowed() {
		return id.PrincipalID{}, false
	}
	return p.ID, true
}

// GetAccount returns one account, or NotFound when p may not read it.
func (s *Service) GetAccount(ctx context.Context, p identity.Principal, accountID id.AccountID) (*models.Account, error) {
	ctx, done := s.observe(ctx, "GetAccount")
	defer done()

	account, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		return nil, storeError(err, errAccountNotFound)
	}
	if !s.decide(ctx, p, policy.ActionRead, policy.ResourceAccount, account.OwnerID).Allowed() {
		return nil, errAccountNotFound
	}
	return account, nil
}

// UpdateAccount changes an account's status or balance. Every account write
// is audited in the same unit of work. Balance adjustments are reserved to
// administrators.
func (s *Service) UpdateAccount(ctx context.Context, p identity.Principal, accountID id.AccountID, u models.AccountUpdate) (*models.Account, error) {
	ctx, done := s.observe(ctx, "UpdateAccount")
	defer done()

	if err := u.Validate(); err != nil {
		return nil, err
	}

	var (
		updated models.Account
		detail  string
	)
	err := s.commit(ctx, p, policy.ResourceAccount, func(ctx context.Context) (audit.Target, error) {
		account, err := s.store.GetAccountForUpdate(ctx, accountID)
		if err != nil {
			return audit.Target{}, storeError(err, errAccountNotFound)
		}
		if !s.decide(ctx, p, policy.ActionWrite, policy.ResourceAccount, account.OwnerID).Allowed() {
			return audit.Target{}, denied(p, policy.ActionWrite, policy.ResourceAccount, account.OwnerID, errAccountNotFound)
		}
		if u.Balance != nil && p.Role != identity.RoleAdmin {
			return audit.Target{}, dErrors.New(dErrors.CodePermissionDenied, "only administrators can adjust balances")
		}

		updated = *account
		detail = u.Apply(&updated)
		updated.UpdatedAt = requestcontext.Now(ctx).UTC()
		if err := s.store.UpdateAccount(ctx, &updated); err != nil {
			return audit.Target{}, err
		}
		return audit.Target{Type: string(policy.ResourceAccount), ID: accountID.String(), Detail: detail}, nil
	})
	if err != nil {
		return nil, storeError(err, errAccountNotFound)
	}

	s.logAudit(ctx, "account_updated",
		"principal_id", p.ID.String(),
		"account_id", accountID.String(),
		"detail", detail,
	)
	return &updated, nil
}
