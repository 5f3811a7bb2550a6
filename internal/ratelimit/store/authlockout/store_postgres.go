package authlockout

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"digitalbank/internal/ratelimit/models"
)

// PostgresStore persists auth lockout records in PostgreSQL.
// This store is pure I/O: the window length and thresholds are passed in by
// the service.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed auth lockout store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const lockoutColumns = `identifier, failure_count, window_start, locked_until, last_failure_at`

func (s *PostgresStore) Get(ctx context.Context, identifier string) (*models.AuthLockout, error) {
	query := `SELECT ` + lockoutColumns + ` FROM auth_lockouts WHERE identifier = $1`
	record, err := scanAuthLockout(s.db.QueryRowContext(ctx, query, identifier))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get auth lockout: %w", err)
	}
	return record, nil
}

// RecordFailure atomically increments the window counter, restarting the
// window when it began before cutoff. A single upsert keeps concurrent
// failures from slipping past the threshold.
func (s *PostgresStore) RecordFailure(ctx context.Context, identifier string, now, cutoff time.Time) (*models.AuthLockout, error) {
	query := `
		INSERT INTO auth_lockouts (identifier, failure_count, window_start, locked_until, last_failure_at)
		VALUES ($1, 1, $2, NULL, $2)
		ON CONFLICT (identifier) DO UPDATE SET
			failure_count = CASE
				WHEN auth_lockouts.window_start < $3 OR auth_lockouts.failure_count = 0 THEN 1
				ELSE auth_lockouts.failure_count + 1
			END,
			window_start = CASE
				WHEN auth_lockouts.window_start < $3 OR auth_lockouts.failure_count = 0 THEN $2
				ELSE auth_lockouts.window_start
			END,
			last_failure_at = $2
		RETURNING ` + lockoutColumns
	record, err := scanAuthLockout(s.db.QueryRowContext(ctx, query, identifier, now, cutoff))
	if err != nil {
		return nil, fmt.Errorf("record auth failure: %w", err)
	}
	return record, nil
}

func (s *PostgresStore) ApplyLock(ctx context.Context, identifier string, until, now time.Time) error {
	query := `
		INSERT INTO auth_lockouts (identifier, failure_count, window_start, locked_until, last_failure_at)
		VALUES ($1, 0, $3, $2, $3)
		ON CONFLICT (identifier) DO UPDATE SET
			failure_count = 0,
			window_start = $3,
			locked_until = $2
	`
	if _, err := s.db.ExecContext(ctx, query, identifier, until, now); err != nil {
		return fmt.Errorf("apply auth lock: %w", err)
	}
	return nil
}

func (s *PostgresStore) Clear(ctx context.Context, identifier string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM auth_lockouts WHERE identifier = $1`, identifier)
	if err != nil {
		return fmt.Errorf("clear auth lockout: %w", err)
	}
	return nil
}

// DeleteStale drops records whose lock and window both ended before cutoff.
func (s *PostgresStore) DeleteStale(ctx context.Context, cutoff time.Time) (int, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM auth_lockouts
		WHERE last_failure_at < $1
		  AND (locked_until IS NULL OR locked_until <= $1)
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete stale auth lockouts: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete stale rows affected: %w", err)
	}
	return int(rows), nil
}

type authLockoutRow interface {
	Scan(dest ...any) error
}

func scanAuthLockout(row authLockoutRow) (*models.AuthLockout, error) {
	var record models.AuthLockout
	var lockedUntil sql.NullTime
	if err := row.Scan(&record.Identifier, &record.FailureCount, &record.WindowStart, &lockedUntil, &record.LastFailureAt); err != nil {
		return nil, err
	}
	if lockedUntil.Valid {
		t := lockedUntil.Time
		record.LockedUntil = &t
	}
	return &record, nil
}
