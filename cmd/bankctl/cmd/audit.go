package cmd

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"digitalbank/internal/audit"
	auditConsumer "digitalbank/internal/audit/consumer"
	"digitalbank/internal/platform/config"
	"digitalbank/internal/platform/kafka"
)

var (
	tailFromStart bool
	tailLimit     int
	tailGroup     string
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Inspect the audit stream",
}

var auditTailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Print audit entries as the relay publishes them",
	Long: `Read the audit topic (AUDIT_TOPIC on KAFKA_BROKERS) and print each entry
once. Runs until interrupted unless --limit is set.

Examples:
  bankctl audit tail --from-start --limit 20
  bankctl audit tail -o json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.FromEnv()
		if err != nil {
			return err
		}
		brokers := kafka.ParseBrokers(cfg.Kafka.Brokers)
		if len(brokers) == 0 {
			return errors.New("KAFKA_BROKERS is not set")
		}

		client, err := kafka.NewConsumer(kafka.ConsumerConfig{
			Brokers:   brokers,
			ClientID:  "bankctl",
			Topic:     cfg.Kafka.AuditTopic,
			Group:     tailGroup,
			FromStart: tailFromStart,
		})
		if err != nil {
			return err
		}
		defer client.Close()

		c, err := auditConsumer.New(client, auditConsumer.WithLogger(cliLogger))
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return tailAudit(ctx, c, tailLimit)
	},
}

func init() {
	auditTailCmd.Flags().BoolVar(&tailFromStart, "from-start", false, "start at the oldest retained entry")
	auditTailCmd.Flags().IntVar(&tailLimit, "limit", 0, "stop after this many entries (0 follows forever)")
	auditTailCmd.Flags().StringVar(&tailGroup, "group", "", "consumer group that commits offsets")
	auditCmd.AddCommand(auditTailCmd)
	rootCmd.AddCommand(auditCmd)
}

type entryConsumer interface {
	Run(ctx context.Context, h auditConsumer.Handler) error
}

func tailAudit(ctx context.Context, c entryConsumer, limit int) error {
	seen := 0
	return c.Run(ctx, auditConsumer.HandlerFunc(func(_ context.Context, e *audit.Entry) error {
		if err := formatter.PrintRecord(e, []string{
			e.Timestamp.Format(time.RFC3339),
			string(e.ActorRole),
			e.ActorID.String(),
			e.Action,
			e.TargetType + ":" + e.Target,
		}); err != nil {
			return err
		}
		seen++
		if limit > 0 && seen >= limit {
			return auditConsumer.ErrStop
		}
		return nil
	}))
}
