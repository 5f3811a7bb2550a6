// Package postgres is the ledger store backed by PostgreSQL via lib/pq.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"digitalbank/internal/ledger/models"
	id "digitalbank/pkg/domain"
	"digitalbank/pkg/platform/sentinel"
	"digitalbank/pkg/platform/tx"
)

const uniqueViolation = "23505"
const foreignKeyViolation = "23503"

// forUpdate is appended to single-row lookups made inside a unit of work
// that will write the row back.
const forUpdate = ` FOR UPDATE`

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// RunInTx opens a transaction and carries it in ctx, so audit appends made by
// fn commit with the ledger write.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return tx.Run(ctx, s.db, fn)
}

func mapWriteError(err error, what string) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case uniqueViolation:
			return sentinel.ErrConflict
		case foreignKeyViolation:
			return sentinel.ErrNotFound
		}
	}
	return fmt.Errorf("%s: %w", what, err)
}

func checkAffected(result sql.Result, what string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func parseUUID(raw string) (uuid.UUID, error) {
	u, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("parse id %q: %w", raw, err)
	}
	return u, nil
}

// Customers

const customerColumns = `id, email, first_name, last_name, phone, city, status, last_login, created_at`

func (s *Store) CreateCustomer(ctx context.Context, c *models.CustomerProfile) error {
	_, err := tx.Exec(ctx, s.db).ExecContext(ctx, `
		INSERT INTO customers (`+customerColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, c.ID.String(), c.Email, c.FirstName, c.LastName, c.Phone, c.City, string(c.Status), c.LastLogin, c.CreatedAt)
	if err != nil {
		return mapWriteError(err, "insert customer")
	}
	return nil
}

func (s *Store) GetCustomer(ctx context.Context, customerID id.PrincipalID) (*models.CustomerProfile, error) {
	return s.findCustomer(ctx, customerID, "")
}

// GetCustomerForUpdate locks the profile row until the open transaction ends.
func (s *Store) GetCustomerForUpdate(ctx context.Context, customerID id.PrincipalID) (*models.CustomerProfile, error) {
	return s.findCustomer(ctx, customerID, forUpdate)
}

func (s *Store) findCustomer(ctx context.Context, customerID id.PrincipalID, lock string) (*models.CustomerProfile, error) {
	row := tx.Exec(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+customerColumns+` FROM customers WHERE id = $1`+lock, customerID.String())

	var (
		c         models.CustomerProfile
		rawID     string
		status    string
		lastLogin sql.NullTime
	)
	err := row.Scan(&rawID, &c.Email, &c.FirstName, &c.LastName, &c.Phone, &c.City, &status, &lastLogin, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find customer: %w", err)
	}
	u, err := parseUUID(rawID)
	if err != nil {
		return nil, err
	}
	c.ID = id.PrincipalID(u)
	c.Status = models.CustomerStatus(status)
	c.CreatedAt = c.CreatedAt.UTC()
	if lastLogin.Valid {
		t := lastLogin.Time.UTC()
		c.LastLogin = &t
	}
	return &c, nil
}

func (s *Store) UpdateCustomer(ctx context.Context, c *models.CustomerProfile) error {
	result, err := tx.Exec(ctx, s.db).ExecContext(ctx, `
		UPDATE customers
		SET first_name = $2, last_name = $3, phone = $4, city = $5, status = $6
		WHERE id = $1
	`, c.ID.String(), c.FirstName, c.LastName, c.Phone, c.City, string(c.Status))
	if err != nil {
		return fmt.Errorf("update customer: %w", err)
	}
	return checkAffected(result, "update customer")
}

// Accounts

const accountColumns = `id, customer_id, account_number, account_type, balance, currency, status, created_at, updated_at`

func scanAccount(row rowScanner) (*models.Account, error) {
	var (
		a                   models.Account
		rawID, rawOwner     string
		accountType, status string
	)
	if err := row.Scan(&rawID, &rawOwner, &a.Number, &accountType, &a.Balance, &a.Currency, &status, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	accountUUID, err := parseUUID(rawID)
	if err != nil {
		return nil, err
	}
	ownerUUID, err := parseUUID(rawOwner)
	if err != nil {
		return nil, err
	}
	a.ID = id.AccountID(accountUUID)
	a.OwnerID = id.PrincipalID(ownerUUID)
	a.Type = models.AccountType(accountType)
	a.Status = models.AccountStatus(status)
	a.CreatedAt = a.CreatedAt.UTC()
	a.UpdatedAt = a.UpdatedAt.UTC()
	return &a, nil
}

func (s *Store) CreateAccount(ctx context.Context, a *models.Account) error {
	_, err := tx.Exec(ctx, s.db).ExecContext(ctx, `
		INSERT INTO accounts (`+accountColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, a.ID.String(), a.OwnerID.String(), a.Number, string(a.Type), a.Balance, a.Currency, string(a.Status), a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return mapWriteError(err, "insert account")
	}
	return nil
}

func (s *Store) GetAccount(ctx context.Context, accountID id.AccountID) (*models.Account, error) {
	return s.findAccount(ctx, accountID, "")
}

// GetAccountForUpdate locks the account row until the open transaction ends.
func (s *Store) GetAccountForUpdate(ctx context.Context, accountID id.AccountID) (*models.Account, error) {
	return s.findAccount(ctx, accountID, forUpdate)
}

func (s *Store) findAccount(ctx context.Context, accountID id.AccountID, lock string) (*models.Account, error) {
	row := tx.Exec(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1`+lock, accountID.String())
	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find account: %w", err)
	}
	return a, nil
}

func (s *Store) ListAccounts(ctx context.Context, owner id.PrincipalID, limit int) ([]*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts`
	args := []any{}
	if !owner.IsNil() {
		query += ` WHERE customer_id = $1`
		args = append(args, owner.String())
	}
	args = append(args, limit)
	query += fmt.Sprintf(` ORDER BY created_at, account_number LIMIT $%d`, len(args))

	rows, err := tx.Exec(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var out []*models.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate accounts: %w", err)
	}
	return out, nil
}

func (s *Store) UpdateAccount(ctx context.Context, a *models.Account) error {
	result, err := tx.Exec(ctx, s.db).ExecContext(ctx, `
		UPDATE accounts SET balance = $2, status = $3, updated_at = $4 WHERE id = $1
	`, a.ID.String(), a.Balance, string(a.Status), a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update account: %w", err)
	}
	return checkAffected(result, "update account")
}

// Transactions

const transactionColumns = `t.id, t.account_id, t.amount, t.currency, t.merchant, t.category, t.status, t.timestamp, t.fraud_flag`

func scanTransaction(row rowScanner) (*models.Transaction, error) {
	var (
		t                 models.Transaction
		rawID, rawAccount string
		status            string
	)
	if err := row.Scan(&rawID, &rawAccount, &t.Amount, &t.Currency, &t.Merchant, &t.Category, &status, &t.Timestamp, &t.FraudFlag); err != nil {
		return nil, err
	}
	txUUID, err := parseUUID(rawID)
	if err != nil {
		return nil, err
	}
	accountUUID, err := parseUUID(rawAccount)
	if err != nil {
		return nil, err
	}
	t.ID = id.TransactionID(txUUID)
	t.AccountID = id.AccountID(accountUUID)
	t.Status = models.TransactionStatus(status)
	t.Timestamp = t.Timestamp.UTC()
	return &t, nil
}

func (s *Store) CreateTransaction(ctx context.Context, t *models.Transaction) error {
	_, err := tx.Exec(ctx, s.db).ExecContext(ctx, `
		INSERT INTO transactions (id, account_id, amount, currency, merchant, category, status, timestamp, fraud_flag)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, t.ID.String(), t.AccountID.String(), t.Amount, t.Currency, t.Merchant, t.Category, string(t.Status), t.Timestamp, t.FraudFlag)
	if err != nil {
		return mapWriteError(err, "insert transaction")
	}
	return nil
}

func (s *Store) GetTransaction(ctx context.Context, transactionID id.TransactionID) (*models.Transaction, error) {
	return s.findTransaction(ctx, transactionID, "")
}

// GetTransactionForUpdate locks the transaction row until the open
// transaction ends.
func (s *Store) GetTransactionForUpdate(ctx context.Context, transactionID id.TransactionID) (*models.Transaction, error) {
	return s.findTransaction(ctx, transactionID, forUpdate)
}

func (s *Store) findTransaction(ctx context.Context, transactionID id.TransactionID, lock string) (*models.Transaction, error) {
	row := tx.Exec(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions t WHERE t.id = $1`+lock, transactionID.String())
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find transaction: %w", err)
	}
	return t, nil
}

// ListTransactions joins accounts so owner scoping happens in the query.
func (s *Store) ListTransactions(ctx context.Context, f models.TransactionFilter) ([]*models.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions t JOIN accounts a ON a.id = t.account_id WHERE TRUE`
	var args []any
	if !f.OwnerID.IsNil() {
		args = append(args, f.OwnerID.String())
		query += fmt.Sprintf(` AND a.customer_id = $%d`, len(args))
	}
	if !f.AccountID.IsNil() {
		args = append(args, f.AccountID.String())
		query += fmt.Sprintf(` AND t.account_id = $%d`, len(args))
	}
	args = append(args, models.ClampLimit(f.Limit))
	query += fmt.Sprintf(` ORDER BY t.timestamp DESC, t.id LIMIT $%d`, len(args))

	rows, err := tx.Exec(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []*models.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return out, nil
}

func (s *Store) UpdateTransaction(ctx context.Context, t *models.Transaction) error {
	result, err := tx.Exec(ctx, s.db).ExecContext(ctx, `
		UPDATE transactions SET status = $2, fraud_flag = $3 WHERE id = $1
	`, t.ID.String(), string(t.Status), t.FraudFlag)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	return checkAffected(result, "update transaction")
}
