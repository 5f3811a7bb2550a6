package service

import (
	"context"
	"errors"
	"strings"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/crypto/bcrypt"

	"digitalbank/internal/identity"
	"digitalbank/internal/ratelimit/models"
	sessionmodels "digitalbank/internal/session/models"
	id "digitalbank/pkg/domain"
	dErrors "digitalbank/pkg/domain-errors"
	"digitalbank/pkg/platform/middleware/device"
	"digitalbank/pkg/platform/sentinel"
)

// errInvalidCredentials is returned for every credential failure so callers
// cannot learn whether the email exists.
var errInvalidCredentials = dErrors.New(dErrors.CodeInvalidCredentials, "invalid email or password")

// dummyHash is compared against when the email is unknown, so both paths pay
// for one bcrypt comparison.
var dummyHash = sync.OnceValue(func() []byte {
	h, err := bcrypt.GenerateFromPassword([]byte("digitalbank-timing-equalizer"), bcrypt.DefaultCost)
	if err != nil {
		panic(err)
	}
	return h
})

// Authenticate checks email and secret and mints a 24h session bound to the
// principal's current role.
func (s *Service) Authenticate(ctx context.Context, email, secret string) (*sessionmodels.Session, error) {
	ctx, span := s.tracer.Start(ctx, "session.Authenticate")
	defer span.End()

	session, err := s.authenticate(ctx, strings.ToLower(strings.TrimSpace(email)), secret)
	if err != nil {
		span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
		return nil, err
	}
	span.SetAttributes(
		attribute.String("session.id", session.ID.String()),
		attribute.String("principal.role", string(session.Principal.Role)),
	)
	return session, nil
}

func (s *Service) authenticate(ctx context.Context, email, secret string) (*sessionmodels.Session, error) {
	if s.lockout != nil {
		if err := s.lockout.Check(ctx, models.ScopeLogin, email); err != nil {
			if dErrors.HasCode(err, dErrors.CodeRateLimited) {
				s.authFailure(ctx, "locked_out", "email", email)
			}
			return nil, err
		}
	}

	cred, err := s.credentials.FindByEmail(ctx, email)
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		_ = bcrypt.CompareHashAndPassword(dummyHash(), []byte(secret))
		return nil, s.rejectLogin(ctx, email, "unknown_email")
	case err != nil:
		return nil, dErrors.Wrap(err, dErrors.CodeUpstreamUnavailable, "credential store unavailable")
	}

	if bcrypt.CompareHashAndPassword(cred.PasswordHash, []byte(secret)) != nil {
		return nil, s.rejectLogin(ctx, email, "password_mismatch")
	}
	if cred.Disabled {
		return nil, s.rejectLogin(ctx, email, "principal_disabled")
	}

	level := identity.MFALevelNone
	if s.factors != nil {
		enrolled, err := s.factors.HasVerifiedFactor(ctx, cred.PrincipalID)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeUpstreamUnavailable, "factor store unavailable")
		}
		if enrolled {
			level = identity.MFALevelEnrolled
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUpstreamUnavailable, "authentication cancelled")
	}

	issuedAt := now(ctx)
	if err := s.credentials.RecordLogin(ctx, cred.PrincipalID, issuedAt); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUpstreamUnavailable, "failed to record login")
	}

	session, err := s.mint(identity.Principal{
		ID:       cred.PrincipalID,
		Email:    cred.Email,
		Role:     cred.Role,
		MFALevel: level,
	}, id.NewSessionID(), issuedAt, issuedAt.Add(s.ttl))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue session")
	}

	if s.lockout != nil {
		if err := s.lockout.Clear(ctx, models.ScopeLogin, email); err != nil {
			s.logger.WarnContext(ctx, "failed to clear login failures", "error", err)
		}
	}
	if s.metrics != nil {
		s.metrics.IncrementAuth("success")
	}
	s.logAudit(ctx, "session_created",
		"principal_id", session.Principal.ID.String(),
		"session_id", session.ID.String(),
		"role", string(session.Principal.Role),
		"mfa_level", string(session.Principal.MFALevel),
		"device", device.GetDeviceName(ctx),
		"device_fingerprint", device.GetDeviceFingerprint(ctx),
	)
	return session, nil
}

func (s *Service) rejectLogin(ctx context.Context, email, reason string) error {
	s.authFailure(ctx, reason, "email", email)
	if s.lockout != nil {
		if err := s.lockout.RecordFailure(ctx, models.ScopeLogin, email); err != nil {
			s.logger.ErrorContext(ctx, "failed to record login failure", "error", err)
		}
	}
	return errInvalidCredentials
}
