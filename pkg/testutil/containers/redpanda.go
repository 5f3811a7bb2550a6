//go:build integration

package containers

import (
	"context"
	"testing"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/redpanda"
)

// RedpandaContainer is a Kafka compatible broker.
type RedpandaContainer struct {
	Container *redpanda.Container
	Broker    string
}

func startRedpanda(ctx context.Context) (*RedpandaContainer, error) {
	container, err := redpanda.Run(ctx, "docker.redpanda.com/redpandadata/redpanda:v24.2.7",
		redpanda.WithAutoCreateTopics(),
	)
	if err != nil {
		return nil, err
	}
	broker, err := container.KafkaSeedBroker(ctx)
	if err != nil {
		_ = testcontainers.TerminateContainer(container)
		return nil, err
	}
	return &RedpandaContainer{Container: container, Broker: broker}, nil
}

// Redpanda returns the shared broker container.
func Redpanda(t *testing.T) *RedpandaContainer {
	t.Helper()
	return get(t, &manager.redpanda, startRedpanda)
}
