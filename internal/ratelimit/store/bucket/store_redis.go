package bucket

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"digitalbank/internal/ratelimit/models"
)

const redisKeyPrefix = "ratelimit:"

// RedisBucketStore keeps each window in a sorted set scored by request time
// in milliseconds, so every replica shares one budget per client.
type RedisBucketStore struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *RedisBucketStore {
	return &RedisBucketStore{client: client}
}

// Allow adds the request optimistically and removes it again when the set
// ends up over the limit.
func (s *RedisBucketStore) Allow(ctx context.Context, key string, limit int, window time.Duration, now time.Time) (*models.RateLimitResult, error) {
	rkey := redisKeyPrefix + key
	member := strconv.FormatInt(now.UnixNano(), 10) + ":" + uuid.NewString()
	cutoff := now.Add(-window).UnixMilli()

	var (
		card   *redis.IntCmd
		oldest *redis.ZSliceCmd
	)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRemRangeByScore(ctx, rkey, "-inf", strconv.FormatInt(cutoff, 10))
		pipe.ZAdd(ctx, rkey, redis.Z{Score: float64(now.UnixMilli()), Member: member})
		card = pipe.ZCard(ctx, rkey)
		oldest = pipe.ZRangeWithScores(ctx, rkey, 0, 0)
		pipe.PExpire(ctx, rkey, window)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("redis rate limit: %w", err)
	}

	resetAt := now.Add(window)
	if zs := oldest.Val(); len(zs) > 0 {
		resetAt = time.UnixMilli(int64(zs[0].Score)).Add(window)
	}

	count := int(card.Val())
	if count > limit {
		if err := s.client.ZRem(ctx, rkey, member).Err(); err != nil {
			return nil, fmt.Errorf("redis rate limit rollback: %w", err)
		}
		return &models.RateLimitResult{
			Allowed:    false,
			Limit:      limit,
			Remaining:  0,
			ResetAt:    resetAt,
			RetryAfter: retryAfter(resetAt, now),
		}, nil
	}
	return &models.RateLimitResult{
		Allowed:   true,
		Limit:     limit,
		Remaining: limit - count,
		ResetAt:   resetAt,
	}, nil
}

func (s *RedisBucketStore) Reset(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, redisKeyPrefix+key).Err(); err != nil {
		return fmt.Errorf("redis rate limit reset: %w", err)
	}
	return nil
}
