package factor

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"digitalbank/internal/mfa/models"
	id "digitalbank/pkg/domain"
	"digitalbank/pkg/platform/sentinel"
	"digitalbank/pkg/platform/tx"
)

// PostgresFactorStore persists factors in mfa_factors.
type PostgresFactorStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresFactorStore {
	return &PostgresFactorStore{db: db}
}

const factorColumns = `id, principal_id, type, secret, status, created_at, verified_at, last_used_step`

func (s *PostgresFactorStore) Enroll(ctx context.Context, f *models.Factor) error {
	return tx.Run(ctx, s.db, func(ctx context.Context) error {
		exec := tx.Exec(ctx, s.db)

		// Lock the principal's rows so concurrent enrollments serialize.
		var verified int
		err := exec.QueryRowContext(ctx, `
			SELECT COUNT(*) FROM (
				SELECT 1 FROM mfa_factors
				WHERE principal_id = $1 AND status = 'verified'
				FOR UPDATE
			) v
		`, f.PrincipalID.String()).Scan(&verified)
		if err != nil {
			return fmt.Errorf("check verified factors: %w", err)
		}
		if verified > 0 {
			return sentinel.ErrConflict
		}

		if _, err := exec.ExecContext(ctx,
			`DELETE FROM mfa_factors WHERE principal_id = $1 AND status = 'unverified'`,
			f.PrincipalID.String(),
		); err != nil {
			return fmt.Errorf("delete pending factors: %w", err)
		}

		_, err = exec.ExecContext(ctx, `
			INSERT INTO mfa_factors (`+factorColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`,
			f.ID.String(), f.PrincipalID.String(), string(f.Type), f.Secret,
			string(f.Status), f.CreatedAt, f.VerifiedAt, int64(f.LastUsedStep),
		)
		if err != nil {
			return fmt.Errorf("insert factor: %w", err)
		}
		return nil
	})
}

func (s *PostgresFactorStore) FindByID(ctx context.Context, factorID id.FactorID) (*models.Factor, error) {
	row := tx.Exec(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+factorColumns+` FROM mfa_factors WHERE id = $1`, factorID.String())
	f, err := scanFactor(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find factor: %w", err)
	}
	return f, nil
}

func (s *PostgresFactorStore) ListByPrincipal(ctx context.Context, principalID id.PrincipalID) ([]*models.Factor, error) {
	rows, err := tx.Exec(ctx, s.db).QueryContext(ctx,
		`SELECT `+factorColumns+` FROM mfa_factors WHERE principal_id = $1 ORDER BY created_at`,
		principalID.String())
	if err != nil {
		return nil, fmt.Errorf("list factors: %w", err)
	}
	defer rows.Close()

	var out []*models.Factor
	for rows.Next() {
		f, err := scanFactor(rows)
		if err != nil {
			return nil, fmt.Errorf("scan factor: %w", err)
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate factors: %w", err)
	}
	return out, nil
}

func (s *PostgresFactorStore) HasVerified(ctx context.Context, principalID id.PrincipalID) (bool, error) {
	var exists bool
	err := tx.Exec(ctx, s.db).QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM mfa_factors WHERE principal_id = $1 AND status = 'verified')`,
		principalID.String()).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check verified factor: %w", err)
	}
	return exists, nil
}

func (s *PostgresFactorStore) MarkVerified(ctx context.Context, factorID id.FactorID, step uint64, at time.Time) error {
	return tx.Run(ctx, s.db, func(ctx context.Context) error {
		exec := tx.Exec(ctx, s.db)
		result, err := exec.ExecContext(ctx, `
			UPDATE mfa_factors
			SET status = 'verified',
			    verified_at = COALESCE(verified_at, $3),
			    last_used_step = $2
			WHERE id = $1 AND last_used_step < $2
		`, factorID.String(), int64(step), at)
		if err != nil {
			return fmt.Errorf("mark factor verified: %w", err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("mark factor verified: %w", err)
		}
		if n > 0 {
			return nil
		}

		var exists bool
		if err := exec.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM mfa_factors WHERE id = $1)`, factorID.String(),
		).Scan(&exists); err != nil {
			return fmt.Errorf("check factor: %w", err)
		}
		if !exists {
			return sentinel.ErrNotFound
		}
		return sentinel.ErrAlreadyUsed
	})
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFactor(row rowScanner) (*models.Factor, error) {
	var (
		f                   models.Factor
		rawID, rawPrincipal string
		factorType, status  string
		verifiedAt          sql.NullTime
		lastUsedStep        int64
	)
	if err := row.Scan(&rawID, &rawPrincipal, &factorType, &f.Secret, &status, &f.CreatedAt, &verifiedAt, &lastUsedStep); err != nil {
		return nil, err
	}
	factorUUID, err := uuid.Parse(rawID)
	if err != nil {
		return nil, fmt.Errorf("parse factor id: %w", err)
	}
	principalUUID, err := uuid.Parse(rawPrincipal)
	if err != nil {
		return nil, fmt.Errorf("parse principal id: %w", err)
	}
	f.ID = id.FactorID(factorUUID)
	f.PrincipalID = id.PrincipalID(principalUUID)
	f.Type = models.FactorType(factorType)
	f.Status = models.FactorStatus(status)
	f.CreatedAt = f.CreatedAt.UTC()
	if verifiedAt.Valid {
		t := verifiedAt.Time.UTC()
		f.VerifiedAt = &t
	}
	f.LastUsedStep = uint64(lastUsedStep)
	return &f, nil
}
