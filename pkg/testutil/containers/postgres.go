//go:build integration

package containers

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"testing"

	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"digitalbank/internal/platform/postgres"
)

// PostgresContainer is a migrated PostgreSQL instance.
type PostgresContainer struct {
	Container *tcpostgres.PostgresContainer
	URL       string
	DB        *sql.DB
}

func startPostgres(ctx context.Context) (*PostgresContainer, error) {
	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("digitalbank"),
		tcpostgres.WithUsername("digitalbank"),
		tcpostgres.WithPassword("digitalbank"),
		tcpostgres.BasicWaitStrategies(),
	)
	if err != nil {
		return nil, err
	}

	url, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = testcontainers.TerminateContainer(container)
		return nil, err
	}

	db, err := postgres.Open(ctx, postgres.Config{URL: url, MaxOpenConns: 10, MaxIdleConns: 2})
	if err != nil {
		_ = testcontainers.TerminateContainer(container)
		return nil, err
	}
	if err := postgres.Migrate(ctx, db, slog.New(slog.NewTextHandler(io.Discard, nil))); err != nil {
		_ = db.Close()
		_ = testcontainers.TerminateContainer(container)
		return nil, err
	}

	return &PostgresContainer{Container: container, URL: url, DB: db}, nil
}

// Postgres returns the shared, migrated PostgreSQL container.
func Postgres(t *testing.T) *PostgresContainer {
	t.Helper()
	return get(t, &manager.postgres, startPostgres)
}

// Truncate empties the given tables. audit_logs is append-only and can only
// be cleared with TRUNCATE, which the trigger does not cover.
func (p *PostgresContainer) Truncate(ctx context.Context, tables ...string) error {
	for _, table := range tables {
		if _, err := p.DB.ExecContext(ctx, "TRUNCATE TABLE "+table+" CASCADE"); err != nil {
			return err
		}
	}
	return nil
}
