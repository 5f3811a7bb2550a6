//go:build integration

// Package containers starts the backing services integration tests run
// against. Each container is started once per test binary and shared across
// suites; Ryuk removes it when the process exits.
package containers

import (
	"context"
	"sync"
	"testing"
	"time"
)

const startTimeout = 2 * time.Minute

type lazy[T any] struct {
	once sync.Once
	val  *T
	err  error
}

var manager struct {
	postgres lazy[PostgresContainer]
	redis    lazy[RedisContainer]
	redpanda lazy[RedpandaContainer]
}

func get[T any](t *testing.T, l *lazy[T], start func(context.Context) (*T, error)) *T {
	t.Helper()
	l.once.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), startTimeout)
		defer cancel()
		l.val, l.err = start(ctx)
	})
	if l.err != nil {
		t.Fatalf("start container: %v", l.err)
	}
	return l.val
}
