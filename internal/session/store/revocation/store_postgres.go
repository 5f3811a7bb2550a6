package revocation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	id "digitalbank/pkg/domain"
)

// PostgresRevocationList persists revoked session IDs in PostgreSQL.
type PostgresRevocationList struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresRevocationList {
	return &PostgresRevocationList{db: db}
}

func (l *PostgresRevocationList) Revoke(ctx context.Context, sessionID id.SessionID, until, now time.Time) error {
	if !until.After(now) {
		return nil
	}
	query := `
		INSERT INTO session_revocations (session_id, revoked_until, revoked_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (session_id) DO UPDATE SET
			revoked_until = GREATEST(session_revocations.revoked_until, EXCLUDED.revoked_until)
	`
	if _, err := l.db.ExecContext(ctx, query, sessionID.String(), until, now); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

func (l *PostgresRevocationList) IsRevoked(ctx context.Context, sessionID id.SessionID, now time.Time) (bool, error) {
	var until time.Time
	err := l.db.QueryRowContext(ctx,
		`SELECT revoked_until FROM session_revocations WHERE session_id = $1`,
		sessionID.String(),
	).Scan(&until)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check session revocation: %w", err)
	}
	return now.Before(until), nil
}

func (l *PostgresRevocationList) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	result, err := l.db.ExecContext(ctx, `DELETE FROM session_revocations WHERE revoked_until <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("purge session revocations: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge rows affected: %w", err)
	}
	return int(rows), nil
}
