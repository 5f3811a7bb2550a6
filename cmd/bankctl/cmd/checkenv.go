package cmd

import (
	"github.com/spf13/cobra"

	"digitalbank/internal/platform/config"
)

type envCheck struct {
	Name   string `json:"name" yaml:"name"`
	Status string `json:"status" yaml:"status"`
	Detail string `json:"detail,omitempty" yaml:"detail,omitempty"`
}

var checkEnvCmd = &cobra.Command{
	Use:   "check-env",
	Short: "Verify the environment is complete",
	Long: `Validate the service configuration and report which conformance
credentials are missing.

Examples:
  bankctl check-env
  bankctl check-env --env-file .env.staging`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.FromEnv()
		var checks []envCheck
		if err == nil {
			err = cfg.Validate()
		}
		if err != nil {
			checks = append(checks, envCheck{Name: "configuration", Status: "invalid", Detail: err.Error()})
		} else {
			checks = append(checks, envCheck{Name: "configuration", Status: "ok"})
		}
		for _, name := range cfg.MissingConformance() {
			checks = append(checks, envCheck{Name: name, Status: "missing"})
		}

		rows := make([][]string, 0, len(checks))
		failed := 0
		for _, c := range checks {
			rows = append(rows, []string{c.Name, c.Status, c.Detail})
			if c.Status != "ok" {
				failed++
			}
		}
		if err := formatter.Print(checks, []string{"NAME", "STATUS", "DETAIL"}, rows); err != nil {
			return err
		}
		if failed == 0 {
			formatter.PrintLine("Env looks OK.")
		}
		return exitCode(failed)
	},
}

func init() {
	rootCmd.AddCommand(checkEnvCmd)
}
