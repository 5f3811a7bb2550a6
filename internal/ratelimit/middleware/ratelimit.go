// Package middleware applies per-IP request limits to chi routes.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"digitalbank/internal/ratelimit/metrics"
	"digitalbank/internal/ratelimit/models"
	dErrors "digitalbank/pkg/domain-errors"
	"digitalbank/pkg/platform/httputil"
	"digitalbank/pkg/requestcontext"
)

type RateLimiter interface {
	CheckIP(ctx context.Context, ip string, class models.EndpointClass) (*models.RateLimitResult, error)
}

type Middleware struct {
	limiter  RateLimiter
	logger   *slog.Logger
	metrics  *metrics.RequestMetrics
	disabled bool
}

type Option func(*Middleware)

// WithDisabled turns every limit into a pass-through.
func WithDisabled(disabled bool) Option {
	return func(m *Middleware) {
		m.disabled = disabled
	}
}

func WithMetrics(rm *metrics.RequestMetrics) Option {
	return func(m *Middleware) {
		m.metrics = rm
	}
}

func New(limiter RateLimiter, logger *slog.Logger, opts ...Option) *Middleware {
	m := &Middleware{
		limiter: limiter,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.disabled {
		logger.Info("rate limiting disabled")
	}
	return m
}

// RateLimit limits requests by client IP for class. A failing bucket store
// lets the request through; the auth lockout still guards credentials.
func (m *Middleware) RateLimit(class models.EndpointClass) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if m.disabled {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			result, err := m.limiter.CheckIP(ctx, requestcontext.ClientIP(ctx), class)
			if err != nil {
				m.logger.ErrorContext(ctx, "failed to check request limit",
					"error", err,
					"request_id", requestcontext.RequestID(ctx),
				)
				if m.metrics != nil {
					m.metrics.IncrementStoreErrors()
				}
				next.ServeHTTP(w, r)
				return
			}

			addRateLimitHeaders(w, result)
			if !result.Allowed {
				w.Header().Set("Retry-After", strconv.Itoa(result.RetryAfter))
				httputil.WriteError(w, dErrors.New(dErrors.CodeRateLimited, "too many requests, try again later"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func addRateLimitHeaders(w http.ResponseWriter, result *models.RateLimitResult) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
}
