package revocation

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	id "digitalbank/pkg/domain"
)

const revokedSessionKeyPrefix = "revoked:session:"

// RedisRevocationList shares revocations across instances. Keys expire with
// the session, so Redis does the cleanup.
type RedisRevocationList struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *RedisRevocationList {
	return &RedisRevocationList{client: client}
}

// Revoke stores a marker whose TTL ends at until. The GT flag keeps a later
// deadline when two revocations race.
func (l *RedisRevocationList) Revoke(ctx context.Context, sessionID id.SessionID, until, now time.Time) error {
	ttl := until.Sub(now)
	if ttl <= 0 {
		return nil
	}
	key := revokedSessionKeyPrefix + sessionID.String()

	pipe := l.client.TxPipeline()
	pipe.SetNX(ctx, key, until.UTC().Format(time.RFC3339), ttl)
	pipe.ExpireGT(ctx, key, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

func (l *RedisRevocationList) IsRevoked(ctx context.Context, sessionID id.SessionID, _ time.Time) (bool, error) {
	n, err := l.client.Exists(ctx, revokedSessionKeyPrefix+sessionID.String()).Result()
	if err != nil {
		return false, fmt.Errorf("check session revocation: %w", err)
	}
	return n > 0, nil
}

// PurgeExpired is a no-op: Redis expires keys itself.
func (l *RedisRevocationList) PurgeExpired(context.Context, time.Time) (int, error) {
	return 0, nil
}
