package cmd

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"digitalbank/internal/conformance"
	"digitalbank/internal/identity"
	"digitalbank/internal/platform/config"
)

var (
	conformanceURL     string
	conformanceTimeout time.Duration
)

var conformanceCmd = &cobra.Command{
	Use:   "conformance",
	Short: "Check role based access against a running service",
	Long: `Sign in as each configured role and check what it can see and change:
anonymous callers see nothing, customers only their own accounts,
analysts everything read-only, admins everything including audit logs.

Examples:
  bankctl conformance --url http://localhost:8080
  bankctl conformance -o json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.FromEnv()
		if err != nil {
			return err
		}
		if missing := cfg.MissingConformance(); len(missing) > 0 {
			return fmt.Errorf("missing %s (see bankctl check-env)", strings.Join(missing, ", "))
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), conformanceTimeout)
		defer cancel()

		runner := conformance.New(conformanceURL, &http.Client{Timeout: 10 * time.Second})
		rep, err := runner.Run(ctx, subjectsFrom(cfg.Conformance))
		if err != nil {
			return err
		}

		rows := make([][]string, 0, len(rep.Checks))
		for _, c := range rep.Checks {
			result := "PASS"
			if !c.Passed {
				result = "FAIL"
			}
			rows = append(rows, []string{c.Role, c.Name, result, c.Detail})
		}
		if err := formatter.Print(rep, []string{"ROLE", "CHECK", "RESULT", "DETAIL"}, rows); err != nil {
			return err
		}
		return exitCode(rep.Failed())
	},
}

func init() {
	conformanceCmd.Flags().StringVar(&conformanceURL, "url", "http://localhost:8080", "base URL of the service")
	conformanceCmd.Flags().DurationVar(&conformanceTimeout, "timeout", time.Minute, "overall time limit")
	rootCmd.AddCommand(conformanceCmd)
}

func subjectsFrom(c config.Conformance) []conformance.Subject {
	return []conformance.Subject{
		{Role: identity.RoleCustomer, Email: c.Customer.Email, Password: c.Customer.Password},
		{Role: identity.RoleAnalyst, Email: c.Analyst.Email, Password: c.Analyst.Password},
		{Role: identity.RoleAdmin, Email: c.Admin.Email, Password: c.Admin.Password},
	}
}
