package service

import (
	"context"
	"strconv"
	"strings"

	"digitalbank/internal/audit"
	"digitalbank/internal/identity"
	"digitalbank/internal/ledger/models"
	"digitalbank/internal/policy"
	id "digitalbank/pkg/domain"
	dErrors "digitalbank/pkg/domain-errors"
	"digitalbank/pkg/requestcontext"
)

var errTransactionNotFound = dErrors.New(dErrors.CodeNotFound, "transaction not found")

// TransactionQuery narrows ListTransactions. A nil AccountID lists across all
// accounts p may see.
type TransactionQuery struct {
	AccountID id.AccountID
	Limit     int
}

// ListTransactions returns the transactions p may see, newest first.
func (s *Service) ListTransactions(ctx context.Context, p identity.Principal, q TransactionQuery) ([]*models.Transaction, error) {
	ctx, done := s.observe(ctx, "ListTransactions")
	defer done()

	filter := models.TransactionFilter{AccountID: q.AccountID, Limit: q.Limit}
	if !q.AccountID.IsNil() {
		account, err := s.store.GetAccount(ctx, q.AccountID)
		if err != nil {
			return nil, storeError(err, errAccountNotFound)
		}
		// Transactions inherit the owner of their account.
		if !s.decide(ctx, p, policy.ActionRead, policy.ResourceTransaction, account.OwnerID).Allowed() {
			return nil, errAccountNotFound
		}
	} else {
		owner, ok := s.scope(ctx, p, policy.ResourceTransaction)
		if !ok {
			return []*models.Transaction{}, nil
		}
		filter.OwnerID = owner
	}

	txs, err := s.store.ListTransactions(ctx, filter)
	if err != nil {
		return nil, storeError(err, errTransactionNotFound)
	}
	if txs == nil {
		txs = []*models.Transaction{}
	}
	return txs, nil
}

// owned loads a transaction together with the owner of its account. Inside a
// unit of work that will write the transaction back, forUpdate locks it.
func (s *Service) owned(ctx context.Context, transactionID id.TransactionID, forUpdate bool) (*models.Transaction, id.PrincipalID, error) {
	lookup := s.store.GetTransaction
	if forUpdate {
		lookup = s.store.GetTransactionForUpdate
	}
	t, err := lookup(ctx, transactionID)
	if err != nil {
		return nil, id.PrincipalID{}, storeError(err, errTransactionNotFound)
	}
	account, err := s.store.GetAccount(ctx, t.AccountID)
	if err != nil {
		return nil, id.PrincipalID{}, storeError(err, errTransactionNotFound)
	}
	return t, account.OwnerID, nil
}

func (s *Service) GetTransaction(ctx context.Context, p identity.Principal, transactionID id.TransactionID) (*models.Transaction, error) {
	ctx, done := s.observe(ctx, "GetTransaction")
	defer done()

	t, owner, err := s.owned(ctx, transactionID, false)
	if err != nil {
		return nil, err
	}
	if !s.decide(ctx, p, policy.ActionRead, policy.ResourceTransaction, owner).Allowed() {
		return nil, errTransactionNotFound
	}
	return t, nil
}

// FlagTransaction sets or clears the fraud flag. Only administrators may
// change it; the change is audited.
func (s *Service) FlagTransaction(ctx context.Context, p identity.Principal, transactionID id.TransactionID, flagged bool) (*models.Transaction, error) {
	ctx, done := s.observe(ctx, "FlagTransaction")
	defer done()

	var updated models.Transaction
	err := s.commit(ctx, p, policy.ResourceTransaction, func(ctx context.Context) (audit.Target, error) {
		t, owner, err := s.owned(ctx, transactionID, true)
		if err != nil {
			return audit.Target{}, err
		}
		if !s.decide(ctx, p, policy.ActionWrite, policy.ResourceTransaction, owner).Allowed() {
			return audit.Target{}, denied(p, policy.ActionWrite, policy.ResourceTransaction, owner, errTransactionNotFound)
		}
		if p.Role != identity.RoleAdmin {
			return audit.Target{}, dErrors.New(dErrors.CodePermissionDenied, "only administrators can flag transactions")
		}

		updated = *t
		updated.FraudFlag = flagged
		if err := s.store.UpdateTransaction(ctx, &updated); err != nil {
			return audit.Target{}, err
		}
		return audit.Target{
			Type:   string(policy.ResourceTransaction),
			ID:     transactionID.String(),
			Detail: "fraud_flag=" + strconv.FormatBool(flagged),
		}, nil
	})
	if err != nil {
		return nil, storeError(err, errTransactionNotFound)
	}

	s.logAudit(ctx, "transaction_flagged",
		"principal_id", p.ID.String(),
		"transaction_id", transactionID.String(),
		"fraud_flag", flagged,
	)
	return &updated, nil
}

// CreateTransaction records a transaction on an account p may write to. The
// account must be active and use the same currency.
func (s *Service) CreateTransaction(ctx context.Context, p identity.Principal, n models.NewTransaction) (*models.Transaction, error) {
	ctx, done := s.observe(ctx, "CreateTransaction")
	defer done()

	if err := n.Validate(); err != nil {
		return nil, err
	}
	var t *models.Transaction
	err := s.commit(ctx, p, policy.ResourceTransaction, func(ctx context.Context) (audit.Target, error) {
		// The account row stays locked so a concurrent freeze cannot slip in
		// between the status check and the insert.
		account, err := s.store.GetAccountForUpdate(ctx, n.AccountID)
		if err != nil {
			return audit.Target{}, storeError(err, errAccountNotFound)
		}
		if !s.decide(ctx, p, policy.ActionWrite, policy.ResourceTransaction, account.OwnerID).Allowed() {
			return audit.Target{}, denied(p, policy.ActionWrite, policy.ResourceTransaction, account.OwnerID, errAccountNotFound)
		}
		if account.Status != models.AccountStatusActive {
			return audit.Target{}, dErrors.New(dErrors.CodeConflict, "account is not active")
		}
		if !strings.EqualFold(account.Currency, n.Currency) {
			return audit.Target{}, dErrors.New(dErrors.CodeBadRequest, "currency does not match the account")
		}

		t = &models.Transaction{
			ID:        id.NewTransactionID(),
			AccountID: account.ID,
			Amount:    n.Amount,
			Currency:  account.Currency,
			Merchant:  n.Merchant,
			Category:  n.Category,
			Status:    models.TransactionStatusCompleted,
			Timestamp: requestcontext.Now(ctx).UTC(),
		}
		if err := s.store.CreateTransaction(ctx, t); err != nil {
			return audit.Target{}, err
		}
		return audit.Target{
			Type:   string(policy.ResourceTransaction),
			ID:     t.ID.String(),
			Detail: "account=" + account.ID.String(),
		}, nil
	})
	if err != nil {
		return nil, storeError(err, errAccountNotFound)
	}
	return t, nil
}
