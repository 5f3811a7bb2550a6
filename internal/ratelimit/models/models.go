package models

import (
	"time"

	dErrors "digitalbank/pkg/domain-errors"
)

// AuthLockout tracks failed authentication attempts for one key.
type AuthLockout struct {
	Identifier    string     `json:"identifier"`    // scope + normalized identifier
	FailureCount  int        `json:"failure_count"` // failures in the current window
	WindowStart   time.Time  `json:"window_start"`
	LockedUntil   *time.Time `json:"locked_until,omitempty"`
	LastFailureAt time.Time  `json:"last_failure_at"`
}

// NewAuthLockout creates an empty AuthLockout.
func NewAuthLockout(identifier string, now time.Time) (*AuthLockout, error) {
	if identifier == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "identifier cannot be empty")
	}
	return &AuthLockout{
		Identifier:  identifier,
		WindowStart: now,
	}, nil
}

// IsLockedAt reports whether the key is locked at now.
func (l *AuthLockout) IsLockedAt(now time.Time) bool {
	return l != nil && l.LockedUntil != nil && now.Before(*l.LockedUntil)
}

// IsAttemptLimitReached reports whether the window's failures reached limit.
func (l *AuthLockout) IsAttemptLimitReached(limit int) bool {
	return l != nil && l.FailureCount >= limit
}

// RecordFailureAt counts one failure, opening a new window when the current
// one started before cutoff.
func (l *AuthLockout) RecordFailureAt(now, cutoff time.Time) {
	if l.WindowStart.Before(cutoff) || l.FailureCount == 0 {
		l.WindowStart = now
		l.FailureCount = 0
	}
	l.FailureCount++
	l.LastFailureAt = now
}

// ApplyLock locks the key until now+d and resets the window counter.
func (l *AuthLockout) ApplyLock(d time.Duration, now time.Time) {
	until := now.Add(d)
	l.LockedUntil = &until
	l.FailureCount = 0
	l.WindowStart = now
}

// AuthLockoutConfig holds the lockout thresholds.
type AuthLockoutConfig struct {
	AttemptsPerWindow int
	WindowDuration    time.Duration
	LockDuration      time.Duration
}

// DefaultAuthLockoutConfig is 5 failures within 15 minutes, locked for 15 minutes.
func DefaultAuthLockoutConfig() AuthLockoutConfig {
	return AuthLockoutConfig{
		AttemptsPerWindow: 5,
		WindowDuration:    15 * time.Minute,
		LockDuration:      15 * time.Minute,
	}
}

// WindowCutoff returns the earliest window start still counted at now.
func (c AuthLockoutConfig) WindowCutoff(now time.Time) time.Time {
	return now.Add(-c.WindowDuration)
}
