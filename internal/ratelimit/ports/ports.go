// Package ports defines the storage interfaces of the ratelimit module.
package ports

import (
	"context"
	"time"

	"digitalbank/internal/ratelimit/models"
)

// AuthLockoutStore manages authentication failure tracking and lockouts.
// Implementations are pure I/O; thresholds come from the service.
type AuthLockoutStore interface {
	// Get returns the record for identifier, or nil when none exists.
	Get(ctx context.Context, identifier string) (*models.AuthLockout, error)

	// RecordFailure atomically counts one failure. A window that started
	// before cutoff is restarted at now.
	RecordFailure(ctx context.Context, identifier string, now, cutoff time.Time) (*models.AuthLockout, error)

	// ApplyLock locks identifier until until.
	ApplyLock(ctx context.Context, identifier string, until, now time.Time) error

	// Clear removes the record for identifier.
	Clear(ctx context.Context, identifier string) error

	// DeleteStale removes records with no active lock and no failure since cutoff.
	DeleteStale(ctx context.Context, cutoff time.Time) (int, error)
}

// BucketStore counts requests per key over a sliding window.
type BucketStore interface {
	// Allow records one request at now when fewer than limit requests fall
	// inside the window ending at now.
	Allow(ctx context.Context, key string, limit int, window time.Duration, now time.Time) (*models.RateLimitResult, error)

	// Reset forgets every request recorded for key.
	Reset(ctx context.Context, key string) error
}
