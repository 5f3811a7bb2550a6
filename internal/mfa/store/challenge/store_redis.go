package challenge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"digitalbank/internal/mfa/models"
	id "digitalbank/pkg/domain"
	"digitalbank/pkg/platform/sentinel"
)

const challengeKeyPrefix = "mfa:challenge:"

// RedisChallengeStore keeps challenges as JSON values that expire with the
// challenge. GETDEL makes Consume atomic across instances.
type RedisChallengeStore struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *RedisChallengeStore {
	return &RedisChallengeStore{client: client}
}

func (s *RedisChallengeStore) Create(ctx context.Context, c *models.Challenge) error {
	ttl := c.ExpiresAt.Sub(c.CreatedAt)
	if ttl <= 0 {
		return fmt.Errorf("challenge %s already expired", c.ID)
	}
	payload, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal challenge: %w", err)
	}
	ok, err := s.client.SetNX(ctx, challengeKeyPrefix+c.ID.String(), payload, ttl).Result()
	if err != nil {
		return fmt.Errorf("store challenge: %w", err)
	}
	if !ok {
		return sentinel.ErrConflict
	}
	return nil
}

func (s *RedisChallengeStore) Get(ctx context.Context, challengeID id.ChallengeID) (*models.Challenge, error) {
	raw, err := s.client.Get(ctx, challengeKeyPrefix+challengeID.String()).Bytes()
	return decode(raw, err)
}

func (s *RedisChallengeStore) Consume(ctx context.Context, challengeID id.ChallengeID) (*models.Challenge, error) {
	raw, err := s.client.GetDel(ctx, challengeKeyPrefix+challengeID.String()).Bytes()
	return decode(raw, err)
}

// PurgeExpired is a no-op: Redis expires keys itself.
func (s *RedisChallengeStore) PurgeExpired(context.Context, time.Time) (int, error) {
	return 0, nil
}

func decode(raw []byte, err error) (*models.Challenge, error) {
	if errors.Is(err, redis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load challenge: %w", err)
	}
	var c models.Challenge
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("decode challenge: %w", err)
	}
	return &c, nil
}
