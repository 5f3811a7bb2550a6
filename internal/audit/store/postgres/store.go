package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"digitalbank/internal/audit"
	"digitalbank/internal/identity"
	id "digitalbank/pkg/domain"
	"digitalbank/pkg/platform/tx"
)

// Store implements audit.Store with the transactional outbox pattern: the
// audit_logs row and its audit_outbox row are written in the same transaction
// as the privileged change that triggered them.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Append writes the entry and its outbox record, joining the transaction in
// ctx or opening one.
func (s *Store) Append(ctx context.Context, e *audit.Entry) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal audit entry: %w", err)
	}

	return tx.Run(ctx, s.db, func(ctx context.Context) error {
		exec := tx.Exec(ctx, s.db)
		_, err := exec.ExecContext(ctx, `
			INSERT INTO audit_logs (id, actor_id, actor_role, action, target_type, target, detail, request_id, timestamp)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`,
			e.ID.String(), e.ActorID.String(), string(e.ActorRole), e.Action,
			e.TargetType, e.Target, e.Detail, e.RequestID, e.Timestamp,
		)
		if err != nil {
			return fmt.Errorf("insert audit log: %w", err)
		}

		_, err = exec.ExecContext(ctx, `
			INSERT INTO audit_outbox (id, aggregate_id, payload, created_at)
			VALUES ($1, $2, $3, $4)
		`, e.ID.String(), e.ActorID.String(), string(payload), e.Timestamp)
		if err != nil {
			return fmt.Errorf("insert audit outbox: %w", err)
		}
		return nil
	})
}

// List returns matching entries, newest first.
func (s *Store) List(ctx context.Context, f audit.Filter) ([]*audit.Entry, error) {
	f = f.Normalize()

	var (
		where []string
		args  []any
	)
	if !f.ActorID.IsNil() {
		args = append(args, f.ActorID.String())
		where = append(where, fmt.Sprintf("actor_id = $%d", len(args)))
	}
	if f.Target != "" {
		args = append(args, f.Target)
		where = append(where, fmt.Sprintf("target = $%d", len(args)))
	}
	if !f.Since.IsZero() {
		args = append(args, f.Since)
		where = append(where, fmt.Sprintf("timestamp >= $%d", len(args)))
	}
	query := `SELECT id, actor_id, actor_role, action, target_type, target, detail, request_id, timestamp FROM audit_logs`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	args = append(args, f.Limit)
	query += fmt.Sprintf(" ORDER BY timestamp DESC, id LIMIT $%d", len(args))

	rows, err := tx.Exec(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit logs: %w", err)
	}
	defer rows.Close()

	var entries []*audit.Entry
	for rows.Next() {
		var (
			e                     audit.Entry
			rawID, rawActor, role string
		)
		if err := rows.Scan(&rawID, &rawActor, &role, &e.Action, &e.TargetType, &e.Target, &e.Detail, &e.RequestID, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan audit log: %w", err)
		}
		entryID, err := uuid.Parse(rawID)
		if err != nil {
			return nil, fmt.Errorf("scan audit log id: %w", err)
		}
		e.ID = id.AuditEntryID(entryID)
		if e.ActorID, err = id.ParsePrincipalID(rawActor); err != nil {
			return nil, fmt.Errorf("scan audit log actor: %w", err)
		}
		e.ActorRole = identity.Role(role)
		e.Timestamp = e.Timestamp.UTC()
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit logs: %w", err)
	}
	return entries, nil
}

// Process locks up to limit unpublished outbox rows, hands them to publish
// and marks them published when publish succeeds. Rows locked by another
// relay instance are skipped.
func (s *Store) Process(ctx context.Context, limit int, publish func(context.Context, []audit.OutboxRecord) error) (int, error) {
	var processed int
	err := tx.Run(ctx, s.db, func(ctx context.Context) error {
		exec := tx.Exec(ctx, s.db)
		rows, err := exec.QueryContext(ctx, `
			SELECT id, aggregate_id, payload, created_at
			FROM audit_outbox
			WHERE published_at IS NULL
			ORDER BY created_at, id
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		`, limit)
		if err != nil {
			return fmt.Errorf("select audit outbox: %w", err)
		}

		var (
			batch []audit.OutboxRecord
			ids   []string
		)
		for rows.Next() {
			var r audit.OutboxRecord
			if err := rows.Scan(&r.ID, &r.Key, &r.Payload, &r.CreatedAt); err != nil {
				rows.Close()
				return fmt.Errorf("scan audit outbox: %w", err)
			}
			batch = append(batch, r)
			ids = append(ids, r.ID.String())
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return fmt.Errorf("iterate audit outbox: %w", err)
		}
		if len(batch) == 0 {
			return nil
		}

		if err := publish(ctx, batch); err != nil {
			return err
		}
		if _, err := exec.ExecContext(ctx,
			`UPDATE audit_outbox SET published_at = $2 WHERE id = ANY($1::uuid[])`,
			pq.Array(ids), time.Now().UTC(),
		); err != nil {
			return fmt.Errorf("mark audit outbox published: %w", err)
		}
		processed = len(batch)
		return nil
	})
	return processed, err
}

// PurgePublishedBefore deletes outbox rows published before cutoff. The
// audit_logs rows are never touched.
func (s *Store) PurgePublishedBefore(ctx context.Context, cutoff time.Time) (int, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM audit_outbox WHERE published_at IS NOT NULL AND published_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge audit outbox: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge rows affected: %w", err)
	}
	return int(rows), nil
}
