// Package authlockout throttles repeated authentication failures: password
// logins keyed by email and MFA code attempts keyed by principal.
package authlockout

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"digitalbank/internal/ratelimit/metrics"
	"digitalbank/internal/ratelimit/models"
	"digitalbank/internal/ratelimit/observability"
	"digitalbank/internal/ratelimit/ports"
	dErrors "digitalbank/pkg/domain-errors"
	"digitalbank/pkg/requestcontext"
)

type Service struct {
	store   ports.AuthLockoutStore
	logger  *slog.Logger
	metrics *metrics.Metrics
	config  models.AuthLockoutConfig
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithConfig(cfg models.AuthLockoutConfig) Option {
	return func(s *Service) {
		if cfg.AttemptsPerWindow > 0 {
			s.config.AttemptsPerWindow = cfg.AttemptsPerWindow
		}
		if cfg.WindowDuration > 0 {
			s.config.WindowDuration = cfg.WindowDuration
		}
		if cfg.LockDuration > 0 {
			s.config.LockDuration = cfg.LockDuration
		}
	}
}

func New(store ports.AuthLockoutStore, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("auth lockout store is required")
	}
	svc := &Service{
		store:  store,
		config: models.DefaultAuthLockoutConfig(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Check returns a RateLimited error while the key is locked or its window is
// exhausted. A store failure surfaces as UpstreamUnavailable so a broken store
// never lets attempts through.
func (s *Service) Check(ctx context.Context, scope, identifier string) error {
	key := models.NewAuthLockoutKey(scope, identifier).String()
	record, err := s.store.Get(ctx, key)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeUpstreamUnavailable, "lockout store unavailable")
	}
	if record == nil {
		return nil
	}

	now := requestcontext.Now(ctx)
	if record.IsLockedAt(now) {
		s.rejected(ctx, scope, key, record.LockedUntil)
		return dErrors.New(dErrors.CodeRateLimited, "too many attempts, try again later")
	}
	if !record.WindowStart.Before(s.config.WindowCutoff(now)) && record.IsAttemptLimitReached(s.config.AttemptsPerWindow) {
		s.rejected(ctx, scope, key, nil)
		return dErrors.New(dErrors.CodeRateLimited, "too many attempts, try again later")
	}
	return nil
}

// RecordFailure counts a failed attempt and locks the key once the window's
// limit is reached.
func (s *Service) RecordFailure(ctx context.Context, scope, identifier string) error {
	key := models.NewAuthLockoutKey(scope, identifier).String()
	now := requestcontext.Now(ctx)

	record, err := s.store.RecordFailure(ctx, key, now, s.config.WindowCutoff(now))
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeUpstreamUnavailable, "failed to record auth failure")
	}
	if s.metrics != nil {
		s.metrics.IncrementAuthFailures(scope)
	}

	if !record.IsAttemptLimitReached(s.config.AttemptsPerWindow) {
		return nil
	}

	until := now.Add(s.config.LockDuration)
	if err := s.store.ApplyLock(ctx, key, until, now); err != nil {
		return dErrors.Wrap(err, dErrors.CodeUpstreamUnavailable, "failed to apply auth lock")
	}
	if s.metrics != nil {
		s.metrics.IncrementAuthLockouts(scope)
	}
	observability.LogSecurity(ctx, s.logger, "auth_lockout_triggered",
		"identifier", key,
		"failure_count", record.FailureCount,
		"locked_until", until,
	)
	return nil
}

// Clear resets the key after a successful attempt.
func (s *Service) Clear(ctx context.Context, scope, identifier string) error {
	key := models.NewAuthLockoutKey(scope, identifier).String()
	if err := s.store.Clear(ctx, key); err != nil {
		return dErrors.Wrap(err, dErrors.CodeUpstreamUnavailable, "failed to clear auth failures")
	}
	return nil
}

// Sweep deletes records that no longer influence any decision.
func (s *Service) Sweep(ctx context.Context) (int, error) {
	now := requestcontext.Now(ctx)
	cutoff := s.config.WindowCutoff(now)
	if lockCutoff := now.Add(-s.config.LockDuration); lockCutoff.Before(cutoff) {
		cutoff = lockCutoff
	}
	removed, err := s.store.DeleteStale(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if s.metrics != nil && removed > 0 {
		s.metrics.AddStaleDeleted(removed)
	}
	return removed, nil
}

// RunSweeper calls Sweep every interval until ctx is cancelled.
func (s *Service) RunSweeper(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil && s.logger != nil {
				s.logger.ErrorContext(ctx, "auth lockout sweep failed", "error", err)
			}
		}
	}
}

func (s *Service) rejected(ctx context.Context, scope, key string, lockedUntil *time.Time) {
	if s.metrics != nil {
		s.metrics.IncrementAuthRejected(scope)
	}
	attrs := []any{"identifier", key}
	if lockedUntil != nil {
		attrs = append(attrs, "locked_until", *lockedUntil)
	}
	observability.LogSecurity(ctx, s.logger, "auth_attempt_rejected", attrs...)
}
