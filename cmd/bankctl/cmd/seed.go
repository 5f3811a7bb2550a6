package cmd

import (
	"context"
	"database/sql"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"digitalbank/internal/identity"
	ledgerPostgres "digitalbank/internal/ledger/store/postgres"
	"digitalbank/internal/platform/config"
	"digitalbank/internal/platform/postgres"
	"digitalbank/internal/seed"
	"digitalbank/internal/session/store/credential"
)

var seedMigrate bool

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load the demo population",
	Long: `Create the demo customers, analyst and admin with their accounts and
transactions. Passwords come from the conformance credentials when set,
otherwise the demo default is used. Running seed twice is harmless.

Examples:
  bankctl seed
  bankctl seed --migrate -o json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := requireDatabase(cfg); err != nil {
			return err
		}
		ctx := cmd.Context()
		db, err := openDatabase(ctx, cfg)
		if err != nil {
			return err
		}
		defer db.Close()
		return runSeed(ctx, db, cfg)
	},
}

func init() {
	seedCmd.Flags().BoolVar(&seedMigrate, "migrate", false, "apply pending migrations first")
	rootCmd.AddCommand(seedCmd)
}

func runSeed(ctx context.Context, db *sql.DB, cfg config.Config) error {
	if seedMigrate {
		if err := postgres.Migrate(ctx, db, cliLogger); err != nil {
			return err
		}
	}
	people := seed.Population(overrides(cfg.Conformance))
	res, err := seed.Run(ctx, credential.NewPostgres(db), ledgerPostgres.New(db), people, time.Now().UTC(), cliLogger)
	if err != nil {
		return err
	}
	return formatter.Print(res,
		[]string{"PRINCIPALS", "CUSTOMERS", "ACCOUNTS", "TRANSACTIONS"},
		[][]string{{
			strconv.Itoa(res.Principals),
			strconv.Itoa(res.Customers),
			strconv.Itoa(res.Accounts),
			strconv.Itoa(res.Transactions),
		}},
	)
}

func overrides(c config.Conformance) map[identity.Role]seed.Person {
	return map[identity.Role]seed.Person{
		identity.RoleCustomer: {Email: c.Customer.Email, Password: c.Customer.Password},
		identity.RoleAnalyst:  {Email: c.Analyst.Email, Password: c.Analyst.Password},
		identity.RoleAdmin:    {Email: c.Admin.Email, Password: c.Admin.Password},
	}
}
