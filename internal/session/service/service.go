// Package service is the session manager: it authenticates principals, issues
// signed session tokens, verifies them on every request, revokes them on
// sign-out and raises their assurance level after MFA.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"digitalbank/internal/identity"
	"digitalbank/internal/session/metrics"
	"digitalbank/internal/session/models"
	id "digitalbank/pkg/domain"
	"digitalbank/pkg/requestcontext"
)

// CredentialStore looks up principal secrets.
type CredentialStore interface {
	FindByEmail(ctx context.Context, email string) (*models.Credential, error)
	RecordLogin(ctx context.Context, principalID id.PrincipalID, at time.Time) error
}

// RevocationList remembers invalidated sessions until they expire.
type RevocationList interface {
	Revoke(ctx context.Context, sessionID id.SessionID, until, now time.Time) error
	IsRevoked(ctx context.Context, sessionID id.SessionID, now time.Time) (bool, error)
}

// TokenCodec signs and parses session tokens.
type TokenCodec interface {
	Sign(c identity.Claims) (string, identity.Claims, error)
	Parse(token string, now time.Time) (identity.Claims, error)
}

// FactorChecker reports whether a principal has completed MFA enrollment.
type FactorChecker interface {
	HasVerifiedFactor(ctx context.Context, principalID id.PrincipalID) (bool, error)
}

// Lockout throttles repeated login failures.
type Lockout interface {
	Check(ctx context.Context, scope, identifier string) error
	RecordFailure(ctx context.Context, scope, identifier string) error
	Clear(ctx context.Context, scope, identifier string) error
}

// Service is the session manager.
type Service struct {
	credentials CredentialStore
	revocations RevocationList
	tokens      TokenCodec
	factors     FactorChecker
	lockout     Lockout
	logger      *slog.Logger
	metrics     *metrics.Metrics
	tracer      trace.Tracer
	ttl         time.Duration
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

func WithFactorChecker(f FactorChecker) Option {
	return func(s *Service) {
		s.factors = f
	}
}

func WithLockout(l Lockout) Option {
	return func(s *Service) {
		s.lockout = l
	}
}

// WithSessionTTL overrides the 24h session lifetime.
func WithSessionTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

func New(credentials CredentialStore, revocations RevocationList, tokens TokenCodec, opts ...Option) (*Service, error) {
	if credentials == nil {
		return nil, errors.New("credential store is required")
	}
	if revocations == nil {
		return nil, errors.New("revocation list is required")
	}
	if tokens == nil {
		return nil, errors.New("token codec is required")
	}
	s := &Service{
		credentials: credentials,
		revocations: revocations,
		tokens:      tokens,
		logger:      slog.Default(),
		tracer:      otel.Tracer("digitalbank/session"),
		ttl:         models.DefaultSessionTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// now returns the request time at the token's one-second resolution so that
// issued sessions and their parsed claims compare equal.
func now(ctx context.Context) time.Time {
	return requestcontext.Now(ctx).UTC().Truncate(time.Second)
}

// mint signs a token for p and returns the resulting session.
func (s *Service) mint(p identity.Principal, sessionID id.SessionID, issuedAt, expiresAt time.Time) (*models.Session, error) {
	signed, claims, err := s.tokens.Sign(identity.Claims{
		SessionID: sessionID,
		Principal: p,
		IssuedAt:  issuedAt,
		ExpiresAt: expiresAt,
	})
	if err != nil {
		return nil, err
	}
	return models.FromClaims(claims, signed), nil
}

func (s *Service) logAudit(ctx context.Context, event string, attributes ...any) {
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	args := append(attributes, "event", event, "log_type", "audit")
	s.logger.InfoContext(ctx, event, args...)
}

func (s *Service) authFailure(ctx context.Context, reason string, attributes ...any) {
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	args := append(attributes, "reason", reason, "log_type", "security")
	s.logger.WarnContext(ctx, "authentication failed", args...)
	if s.metrics != nil {
		s.metrics.IncrementAuth(reason)
	}
}
