// Package cmd implements the bankctl administration commands.
package cmd

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"digitalbank/internal/platform/config"
	"digitalbank/internal/platform/logger"
)

var (
	// Version is set at build time
	Version = "dev"

	outputFmt string
	envFile   string
	logLevel  string

	formatter *Formatter
	cliLogger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "bankctl",
	Short: "DigitalBank administration CLI",
	Long: `bankctl manages a DigitalBank deployment: database migrations, the demo
population and checks of the environment and of role based access.

Configuration is read from the environment. A .env file in the working
directory is loaded first; use --env-file to point at another one.`,
	Version:      Version,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if envFile != "" {
			if err := godotenv.Load(envFile); err != nil {
				return fmt.Errorf("load %s: %w", envFile, err)
			}
		}
		format, err := ParseFormat(outputFmt)
		if err != nil {
			return err
		}
		formatter = NewFormatter(format, cmd.OutOrStdout())
		cliLogger = logger.NewWithWriter(cmd.ErrOrStderr(), logLevel)
		return nil
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&outputFmt, "output", "o", "table", "output format: table, json, yaml")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "dotenv file to load before reading the environment")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
}

// loadConfig reads and validates the configuration for commands that talk
// to backends.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, fmt.Errorf("configuration: %w", err)
	}
	return cfg, nil
}

func requireDatabase(cfg config.Config) error {
	if cfg.Database.URL == "" {
		return errors.New("DATABASE_URL is not set")
	}
	return nil
}

func exitCode(failed int) error {
	if failed > 0 {
		return fmt.Errorf("%d check(s) failed", failed)
	}
	return nil
}
