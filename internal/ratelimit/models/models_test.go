package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthLockout_Window(t *testing.T) {
	cfg := DefaultAuthLockoutConfig()
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	record, err := NewAuthLockout("login:jean.dupont@email.fr", start)
	require.NoError(t, err)

	for i := range 4 {
		now := start.Add(time.Duration(i) * time.Minute)
		record.RecordFailureAt(now, cfg.WindowCutoff(now))
	}
	assert.Equal(t, 4, record.FailureCount)
	assert.False(t, record.IsAttemptLimitReached(cfg.AttemptsPerWindow))

	t.Run("failures outside the window start a new one", func(t *testing.T) {
		late := start.Add(20 * time.Minute)
		r := *record
		r.RecordFailureAt(late, cfg.WindowCutoff(late))
		assert.Equal(t, 1, r.FailureCount)
		assert.Equal(t, late, r.WindowStart)
	})

	t.Run("lock holds until its deadline", func(t *testing.T) {
		r := *record
		r.ApplyLock(cfg.LockDuration, start)
		assert.True(t, r.IsLockedAt(start.Add(14*time.Minute)))
		assert.False(t, r.IsLockedAt(start.Add(cfg.LockDuration)))
		assert.Zero(t, r.FailureCount)
	})
}

func TestNewAuthLockoutKey(t *testing.T) {
	k := NewAuthLockoutKey(ScopeLogin, "  Jean.Dupont@Email.fr ")
	assert.Equal(t, "login:jean.dupont@email.fr", k.String())
	assert.Equal(t, "mfa:a_b", NewAuthLockoutKey(ScopeMFA, "a:b").String())
}

func TestRequestKey(t *testing.T) {
	assert.Equal(t, "ip:auth:203.0.113.7", RequestKey("203.0.113.7", ClassAuth))
	assert.Equal(t, "ip:read:2001_db8__1", RequestKey("2001:db8::1", ClassRead))
}
