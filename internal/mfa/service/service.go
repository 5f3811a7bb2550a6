// Package service implements the TOTP challenge flow: a principal enrolls a
// factor, asks for a challenge and answers it with a code from an
// authenticator app. A correct answer verifies the factor and elevates the
// caller's session.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"digitalbank/internal/identity"
	"digitalbank/internal/mfa/metrics"
	"digitalbank/internal/mfa/models"
	sessionModels "digitalbank/internal/session/models"
	id "digitalbank/pkg/domain"
	"digitalbank/pkg/requestcontext"
)

// FactorStore persists factors and their secrets.
type FactorStore interface {
	Enroll(ctx context.Context, f *models.Factor) error
	FindByID(ctx context.Context, factorID id.FactorID) (*models.Factor, error)
	ListByPrincipal(ctx context.Context, principalID id.PrincipalID) ([]*models.Factor, error)
	HasVerified(ctx context.Context, principalID id.PrincipalID) (bool, error)
	MarkVerified(ctx context.Context, factorID id.FactorID, step uint64, at time.Time) error
}

// ChallengeStore holds pending challenges until they are consumed.
type ChallengeStore interface {
	Create(ctx context.Context, c *models.Challenge) error
	Get(ctx context.Context, challengeID id.ChallengeID) (*models.Challenge, error)
	Consume(ctx context.Context, challengeID id.ChallengeID) (*models.Challenge, error)
}

// SessionElevator raises the assurance level of a session.
type SessionElevator interface {
	Elevate(ctx context.Context, session *sessionModels.Session, level identity.MFALevel) (*sessionModels.Session, error)
}

// Lockout throttles repeated wrong codes.
type Lockout interface {
	Check(ctx context.Context, scope, identifier string) error
	RecordFailure(ctx context.Context, scope, identifier string) error
	Clear(ctx context.Context, scope, identifier string) error
}

const defaultIssuer = "DigitalBank"

type Service struct {
	factors      FactorStore
	challenges   ChallengeStore
	sessions     SessionElevator
	lockout      Lockout
	logger       *slog.Logger
	metrics      *metrics.Metrics
	tracer       trace.Tracer
	issuer       string
	challengeTTL time.Duration
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

func WithLockout(l Lockout) Option {
	return func(s *Service) {
		s.lockout = l
	}
}

// WithIssuer sets the issuer shown in authenticator apps.
func WithIssuer(issuer string) Option {
	return func(s *Service) {
		if issuer != "" {
			s.issuer = issuer
		}
	}
}

func WithChallengeTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.challengeTTL = ttl
		}
	}
}

func New(factors FactorStore, challenges ChallengeStore, sessions SessionElevator, opts ...Option) (*Service, error) {
	if factors == nil {
		return nil, errors.New("factor store is required")
	}
	if challenges == nil {
		return nil, errors.New("challenge store is required")
	}
	if sessions == nil {
		return nil, errors.New("session elevator is required")
	}
	s := &Service{
		factors:      factors,
		challenges:   challenges,
		sessions:     sessions,
		logger:       slog.Default(),
		tracer:       otel.Tracer("digitalbank/mfa"),
		issuer:       defaultIssuer,
		challengeTTL: models.DefaultChallengeTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Service) logAudit(ctx context.Context, event string, attributes ...any) {
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	args := append(attributes, "event", event, "log_type", "audit")
	s.logger.InfoContext(ctx, event, args...)
}

func (s *Service) verifyFailure(ctx context.Context, outcome string, attributes ...any) {
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	args := append(attributes, "outcome", outcome, "log_type", "security")
	s.logger.WarnContext(ctx, "mfa verification failed", args...)
	s.metrics.IncrementVerification(outcome)
}
