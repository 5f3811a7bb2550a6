// Package requestlimit enforces per-client-IP request budgets by endpoint class.
package requestlimit

import (
	"context"
	"errors"
	"log/slog"

	"digitalbank/internal/ratelimit/metrics"
	"digitalbank/internal/ratelimit/models"
	"digitalbank/internal/ratelimit/observability"
	"digitalbank/internal/ratelimit/ports"
	dErrors "digitalbank/pkg/domain-errors"
	"digitalbank/pkg/requestcontext"
)

// missingConfigRetryAfter is the Retry-After sent for a class with no budget.
const missingConfigRetryAfter = 60

type Service struct {
	buckets ports.BucketStore
	limits  models.RequestLimits
	logger  *slog.Logger
	metrics *metrics.RequestMetrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.RequestMetrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithLimits overrides the budget of each class present in limits. Entries
// with a non-positive request count or window are ignored.
func WithLimits(limits models.RequestLimits) Option {
	return func(s *Service) {
		for class, l := range limits {
			if l.Requests > 0 && l.Window > 0 {
				s.limits[class] = l
			}
		}
	}
}

func New(buckets ports.BucketStore, opts ...Option) (*Service, error) {
	if buckets == nil {
		return nil, errors.New("bucket store is required")
	}
	svc := &Service{
		buckets: buckets,
		limits:  models.DefaultRequestLimits(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// CheckIP counts one request from ip against the budget of class. A class
// without a configured budget is denied.
func (s *Service) CheckIP(ctx context.Context, ip string, class models.EndpointClass) (*models.RateLimitResult, error) {
	now := requestcontext.Now(ctx)
	limit, ok := s.limits[class]
	if !ok {
		observability.LogSecurity(ctx, s.logger, "rate_limit_config_missing",
			"endpoint_class", class,
		)
		return &models.RateLimitResult{
			Allowed:    false,
			ResetAt:    now,
			RetryAfter: missingConfigRetryAfter,
		}, nil
	}

	result, err := s.buckets.Allow(ctx, models.RequestKey(ip, class), limit.Requests, limit.Window, now)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUpstreamUnavailable, "failed to check rate limit")
	}
	if !result.Allowed {
		if s.metrics != nil {
			s.metrics.IncrementRejected(string(class))
		}
		observability.LogSecurity(ctx, s.logger, "ip_rate_limit_exceeded",
			"endpoint_class", class,
			"limit", limit.Requests,
			"window_seconds", int(limit.Window.Seconds()),
		)
	}
	return result, nil
}
