//go:build integration

package bucket

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"digitalbank/pkg/testutil/containers"
)

type RedisBucketStoreSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *RedisBucketStore
	ctx   context.Context
	now   time.Time
}

func TestRedisBucketStoreSuite(t *testing.T) {
	suite.Run(t, new(RedisBucketStoreSuite))
}

func (s *RedisBucketStoreSuite) SetupSuite() {
	s.redis = containers.Redis(s.T())
	s.store = NewRedis(s.redis.Client)
	s.ctx = context.Background()
}

func (s *RedisBucketStoreSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(s.ctx))
	s.now = time.Now().Truncate(time.Millisecond)
}

func (s *RedisBucketStoreSuite) TestAllowUpToLimit() {
	for i := range testLimit {
		result, err := s.store.Allow(s.ctx, "ip:read:limit", testLimit, testWindow, s.now.Add(time.Duration(i)*time.Millisecond))
		s.Require().NoError(err)
		s.True(result.Allowed)
		s.Equal(testLimit-i-1, result.Remaining)
	}

	result, err := s.store.Allow(s.ctx, "ip:read:limit", testLimit, testWindow, s.now.Add(time.Second))
	s.Require().NoError(err)
	s.False(result.Allowed)
	s.Equal(s.now.Add(testWindow), result.ResetAt)
	s.Equal(59, result.RetryAfter)

	card, err := s.redis.Client.ZCard(s.ctx, redisKeyPrefix+"ip:read:limit").Result()
	s.Require().NoError(err)
	s.Equal(int64(testLimit), card, "denied request is rolled back")
}

func (s *RedisBucketStoreSuite) TestWindowSlides() {
	for range testLimit {
		_, err := s.store.Allow(s.ctx, "ip:auth:slide", testLimit, testWindow, s.now)
		s.Require().NoError(err)
	}

	result, err := s.store.Allow(s.ctx, "ip:auth:slide", testLimit, testWindow, s.now.Add(testWindow+time.Millisecond))
	s.Require().NoError(err)
	s.True(result.Allowed)
	s.Equal(testLimit-1, result.Remaining)
}

func (s *RedisBucketStoreSuite) TestReset() {
	for range testLimit {
		_, err := s.store.Allow(s.ctx, "ip:write:reset", testLimit, testWindow, s.now)
		s.Require().NoError(err)
	}
	s.Require().NoError(s.store.Reset(s.ctx, "ip:write:reset"))

	result, err := s.store.Allow(s.ctx, "ip:write:reset", testLimit, testWindow, s.now)
	s.Require().NoError(err)
	s.True(result.Allowed)
}
