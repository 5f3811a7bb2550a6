package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestChallengeExpiresExactlyAtDeadline(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	c := &Challenge{CreatedAt: now, ExpiresAt: now.Add(DefaultChallengeTTL)}

	assert.False(t, c.IsExpiredAt(now))
	assert.False(t, c.IsExpiredAt(c.ExpiresAt.Add(-time.Nanosecond)))
	assert.True(t, c.IsExpiredAt(c.ExpiresAt))
	assert.True(t, c.IsExpiredAt(c.ExpiresAt.Add(time.Second)))
}

func TestFactorStates(t *testing.T) {
	f := &Factor{Status: FactorStatusUnverified}
	assert.False(t, f.IsVerified())
	assert.True(t, f.CanChallenge())

	f.Status = FactorStatusVerified
	assert.True(t, f.IsVerified())
	assert.True(t, f.CanChallenge())

	f.Status = "revoked"
	assert.False(t, f.CanChallenge())
}
