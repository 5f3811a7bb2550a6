package cmd

import (
	"context"
	"database/sql"
	"strconv"

	"github.com/spf13/cobra"

	"digitalbank/internal/platform/config"
	"digitalbank/internal/platform/postgres"
)

var migrateCmd = &cobra.Command{
	Use:     "migrate",
	Aliases: []string{"migrations"},
	Short:   "Manage the PostgreSQL schema",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDatabase(cmd.Context(), func(ctx context.Context, db *sql.DB) error {
			if err := postgres.Migrate(ctx, db, cliLogger); err != nil {
				return err
			}
			return printVersion(ctx, db)
		})
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back the most recent migration",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDatabase(cmd.Context(), func(ctx context.Context, db *sql.DB) error {
			if err := postgres.Rollback(ctx, db, cliLogger); err != nil {
				return err
			}
			return printVersion(ctx, db)
		})
	},
}

var migrateVersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the current schema version",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDatabase(cmd.Context(), printVersion)
	},
}

func init() {
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd, migrateVersionCmd)
	rootCmd.AddCommand(migrateCmd)
}

func withDatabase(ctx context.Context, fn func(context.Context, *sql.DB) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := requireDatabase(cfg); err != nil {
		return err
	}
	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	return fn(ctx, db)
}

func openDatabase(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	return postgres.Open(ctx, postgres.Config{
		URL:          cfg.Database.URL,
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
	})
}

func printVersion(ctx context.Context, db *sql.DB) error {
	version, err := postgres.Version(ctx, db, cliLogger)
	if err != nil {
		return err
	}
	return formatter.Print(map[string]int64{"version": version},
		[]string{"SCHEMA VERSION"},
		[][]string{{strconv.FormatInt(version, 10)}},
	)
}
