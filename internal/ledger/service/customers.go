package service

import (
	"context"

	"digitalbank/internal/audit"
	"digitalbank/internal/identity"
	"digitalbank/internal/ledger/models"
	"digitalbank/internal/policy"
	id "digitalbank/pkg/domain"
	dErrors "digitalbank/pkg/domain-errors"
)

var errCustomerNotFound = dErrors.New(dErrors.CodeNotFound, "customer not found")

func (s *Service) GetCustomer(ctx context.Context, p identity.Principal, customerID id.PrincipalID) (*models.CustomerProfile, error) {
	ctx, done := s.observe(ctx, "GetCustomer")
	defer done()

	// A profile is owned by the customer it describes, so the decision can
	// be taken before touching the store.
	if !s.decide(ctx, p, policy.ActionRead, policy.ResourceCustomerProfile, customerID).Allowed() {
		return nil, errCustomerNotFound
	}
	c, err := s.store.GetCustomer(ctx, customerID)
	if err != nil {
		return nil, storeError(err, errCustomerNotFound)
	}
	return c, nil
}

// UpdateCustomer changes contact fields. Administrator edits are audited.
func (s *Service) UpdateCustomer(ctx context.Context, p identity.Principal, customerID id.PrincipalID, u models.CustomerUpdate) (*models.CustomerProfile, error) {
	ctx, done := s.observe(ctx, "UpdateCustomer")
	defer done()

	if err := u.Validate(); err != nil {
		return nil, err
	}
	if !s.decide(ctx, p, policy.ActionWrite, policy.ResourceCustomerProfile, customerID).Allowed() {
		return nil, denied(p, policy.ActionWrite, policy.ResourceCustomerProfile, customerID, errCustomerNotFound)
	}

	var updated models.CustomerProfile
	err := s.commit(ctx, p, policy.ResourceCustomerProfile, func(ctx context.Context) (audit.Target, error) {
		c, err := s.store.GetCustomerForUpdate(ctx, customerID)
		if err != nil {
			return audit.Target{}, err
		}
		updated = *c
		u.Apply(&updated)
		if err := s.store.UpdateCustomer(ctx, &updated); err != nil {
			return audit.Target{}, err
		}
		return audit.Target{Type: string(policy.ResourceCustomerProfile), ID: customerID.String(), Detail: "contact"}, nil
	})
	if err != nil {
		return nil, storeError(err, errCustomerNotFound)
	}
	return &updated, nil
}

// ListAuditLog returns audit entries to administrators. Everyone else gets
// an empty list, the same answer a row-scoped query would give them.
func (s *Service) ListAuditLog(ctx context.Context, p identity.Principal, f audit.Filter) ([]*audit.Entry, error) {
	ctx, done := s.observe(ctx, "ListAuditLog")
	defer done()

	if !s.decide(ctx, p, policy.ActionRead, policy.ResourceAuditLog, id.PrincipalID{}).Allowed() {
		return []*audit.Entry{}, nil
	}
	entries, err := s.recorder.List(ctx, p, f)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodePermissionDenied) {
			return []*audit.Entry{}, nil
		}
		return nil, err
	}
	if entries == nil {
		entries = []*audit.Entry{}
	}
	return entries, nil
}
