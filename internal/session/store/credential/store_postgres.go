package credential

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"digitalbank/internal/identity"
	"digitalbank/internal/session/models"
	id "digitalbank/pkg/domain"
	"digitalbank/pkg/platform/sentinel"
	"digitalbank/pkg/platform/tx"
)

const uniqueViolation = "23505"

// PostgresStore reads credentials from the principals table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Save upserts a credential by principal ID.
func (s *PostgresStore) Save(ctx context.Context, c *models.Credential) error {
	query := `
		INSERT INTO principals (id, email, password_hash, role, disabled, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			email = EXCLUDED.email,
			password_hash = EXCLUDED.password_hash,
			role = EXCLUDED.role,
			disabled = EXCLUDED.disabled
	`
	_, err := tx.Exec(ctx, s.db).ExecContext(ctx, query,
		c.PrincipalID.String(), NormalizeEmail(c.Email), c.PasswordHash, string(c.Role), c.Disabled, c.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("save credential: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByEmail(ctx context.Context, email string) (*models.Credential, error) {
	query := `
		SELECT id, email, password_hash, role, disabled, last_login_at, created_at
		FROM principals
		WHERE email = $1
	`
	var (
		c         models.Credential
		rawID     string
		role      string
		lastLogin sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, query, NormalizeEmail(email)).Scan(
		&rawID, &c.Email, &c.PasswordHash, &role, &c.Disabled, &lastLogin, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find credential: %w", err)
	}
	if c.PrincipalID, err = id.ParsePrincipalID(rawID); err != nil {
		return nil, fmt.Errorf("find credential: %w", err)
	}
	if c.Role, err = identity.ParseRole(role); err != nil {
		return nil, fmt.Errorf("find credential: %w", err)
	}
	if lastLogin.Valid {
		t := lastLogin.Time
		c.LastLoginAt = &t
	}
	return &c, nil
}

// RecordLogin stamps last_login_at on the principal and, for customers, on
// the customer profile, in one transaction.
func (s *PostgresStore) RecordLogin(ctx context.Context, principalID id.PrincipalID, at time.Time) error {
	return tx.Run(ctx, s.db, func(ctx context.Context) error {
		exec := tx.Exec(ctx, s.db)
		result, err := exec.ExecContext(ctx,
			`UPDATE principals SET last_login_at = $2 WHERE id = $1`, principalID.String(), at)
		if err != nil {
			return fmt.Errorf("record login: %w", err)
		}
		if rows, err := result.RowsAffected(); err == nil && rows == 0 {
			return sentinel.ErrNotFound
		}
		if _, err := exec.ExecContext(ctx,
			`UPDATE customers SET last_login = $2 WHERE id = $1`, principalID.String(), at); err != nil {
			return fmt.Errorf("record customer login: %w", err)
		}
		return nil
	})
}
