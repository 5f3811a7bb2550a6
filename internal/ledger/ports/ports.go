// Package ports defines the storage interface of the ledger gateway.
package ports

import (
	"context"

	"digitalbank/internal/ledger/models"
	id "digitalbank/pkg/domain"
)

// Store is the relational collaborator holding customers, accounts and
// transactions. Lookups return sentinel.ErrNotFound for missing rows.
//
// The ForUpdate lookups are meant for use inside RunInTx: they lock the row
// until the unit of work ends, so a read-modify-write cannot lose a
// concurrent change.
type Store interface {
	// RunInTx runs fn as one unit of work. Writes made by fn, including audit
	// appends that join the context, commit or roll back together.
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error

	CreateCustomer(ctx context.Context, c *models.CustomerProfile) error
	GetCustomer(ctx context.Context, customerID id.PrincipalID) (*models.CustomerProfile, error)
	GetCustomerForUpdate(ctx context.Context, customerID id.PrincipalID) (*models.CustomerProfile, error)
	UpdateCustomer(ctx context.Context, c *models.CustomerProfile) error

	CreateAccount(ctx context.Context, a *models.Account) error
	GetAccount(ctx context.Context, accountID id.AccountID) (*models.Account, error)
	GetAccountForUpdate(ctx context.Context, accountID id.AccountID) (*models.Account, error)
	// ListAccounts returns accounts of owner, or all accounts for the nil owner.
	ListAccounts(ctx context.Context, owner id.PrincipalID, limit int) ([]*models.Account, error)
	UpdateAccount(ctx context.Context, a *models.Account) error

	CreateTransaction(ctx context.Context, t *models.Transaction) error
	GetTransaction(ctx context.Context, transactionID id.TransactionID) (*models.Transaction, error)
	GetTransactionForUpdate(ctx context.Context, transactionID id.TransactionID) (*models.Transaction, error)
	// ListTransactions returns matching transactions, newest first.
	ListTransactions(ctx context.Context, f models.TransactionFilter) ([]*models.Transaction, error)
	UpdateTransaction(ctx context.Context, t *models.Transaction) error
}
