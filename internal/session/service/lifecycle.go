package service

import (
	"context"
	"time"

	"digitalbank/internal/identity"
	"digitalbank/internal/session/models"
	dErrors "digitalbank/pkg/domain-errors"
	"digitalbank/pkg/requestcontext"
)

// Verify decodes and checks a bearer token. It fails with TokenExpired from
// the expiry instant on, TokenInvalid for a bad signature, structure, key
// version or a revoked session, and UpstreamUnavailable when the revocation
// list cannot be consulted. Verify never mutates state.
func (s *Service) Verify(ctx context.Context, token string) (identity.Claims, error) {
	start := time.Now()
	claims, err := s.verify(ctx, token)
	if s.metrics != nil {
		s.metrics.ObserveVerify(start)
		if err != nil {
			s.metrics.IncrementVerifyFailed(string(dErrors.CodeOf(err)))
		}
	}
	return claims, err
}

func (s *Service) verify(ctx context.Context, token string) (identity.Claims, error) {
	if token == "" {
		return identity.Claims{}, dErrors.New(dErrors.CodeTokenInvalid, "missing token")
	}
	at := requestcontext.Now(ctx)
	claims, err := s.tokens.Parse(token, at)
	if err != nil {
		return identity.Claims{}, err
	}

	revoked, err := s.revocations.IsRevoked(ctx, claims.SessionID, at)
	if err != nil {
		return identity.Claims{}, dErrors.Wrap(err, dErrors.CodeUpstreamUnavailable, "revocation list unavailable")
	}
	if revoked {
		return identity.Claims{}, dErrors.New(dErrors.CodeTokenInvalid, "session has been revoked")
	}
	return claims, nil
}

// Invalidate revokes the session until its natural expiry. Invalidating an
// already revoked or expired session succeeds.
func (s *Service) Invalidate(ctx context.Context, session *models.Session) error {
	if session == nil || session.ID.IsNil() {
		return dErrors.New(dErrors.CodeBadRequest, "session is required")
	}
	at := requestcontext.Now(ctx)
	if err := s.revocations.Revoke(ctx, session.ID, session.ExpiresAt, at); err != nil {
		s.logger.ErrorContext(ctx, "failed to revoke session", "error", err, "session_id", session.ID.String())
		return dErrors.Wrap(err, dErrors.CodeUpstreamUnavailable, "failed to revoke session")
	}
	if s.metrics != nil {
		s.metrics.IncrementRevocations()
	}
	s.logAudit(ctx, "session_revoked",
		"principal_id", session.Principal.ID.String(),
		"session_id", session.ID.String(),
	)
	return nil
}

// Elevate returns a new token for the same session carrying a higher MFA
// level. The expiry is unchanged. Asking for the current level returns the
// session as is; asking for a lower one is rejected.
func (s *Service) Elevate(ctx context.Context, session *models.Session, level identity.MFALevel) (*models.Session, error) {
	if session == nil || session.ID.IsNil() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "session is required")
	}
	if !level.IsValid() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "invalid mfa level")
	}
	current := session.Principal.MFALevel
	if current.Exceeds(level) {
		return nil, dErrors.New(dErrors.CodeBadRequest, "mfa level cannot be lowered")
	}

	at := requestcontext.Now(ctx)
	if session.IsExpiredAt(at) {
		return nil, dErrors.New(dErrors.CodeTokenExpired, "token has expired")
	}
	revoked, err := s.revocations.IsRevoked(ctx, session.ID, at)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUpstreamUnavailable, "revocation list unavailable")
	}
	if revoked {
		return nil, dErrors.New(dErrors.CodeTokenInvalid, "session has been revoked")
	}
	if level == current {
		cp := *session
		return &cp, nil
	}

	principal := session.Principal
	principal.MFALevel = level
	elevated, err := s.mint(principal, session.ID, session.IssuedAt, session.ExpiresAt)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue session")
	}
	if s.metrics != nil {
		s.metrics.IncrementElevations(string(level))
	}
	s.logAudit(ctx, "session_elevated",
		"principal_id", principal.ID.String(),
		"session_id", session.ID.String(),
		"from", string(current),
		"to", string(level),
	)
	return elevated, nil
}
