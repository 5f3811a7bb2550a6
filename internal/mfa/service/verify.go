package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"digitalbank/internal/identity"
	"digitalbank/internal/mfa/models"
	rlModels "digitalbank/internal/ratelimit/models"
	sessionModels "digitalbank/internal/session/models"
	id "digitalbank/pkg/domain"
	dErrors "digitalbank/pkg/domain-errors"
	"digitalbank/pkg/platform/sentinel"
	"digitalbank/pkg/requestcontext"
)

var errChallengeExpired = dErrors.New(dErrors.CodeChallengeExpired, "challenge expired or already used")

// VerifyCode answers a challenge. On success the challenge is consumed, the
// factor becomes verified and the returned session carries the verified
// level. A wrong code leaves the challenge usable until the lockout trips.
func (s *Service) VerifyCode(ctx context.Context, session *sessionModels.Session, challengeID id.ChallengeID, code string) (*sessionModels.Session, error) {
	ctx, span := s.tracer.Start(ctx, "mfa.VerifyCode")
	defer span.End()

	elevated, err := s.verifyCode(ctx, session, challengeID, code)
	if err != nil {
		span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
		return nil, err
	}
	span.SetAttributes(attribute.String("session_id", elevated.ID.String()))
	return elevated, nil
}

func (s *Service) verifyCode(ctx context.Context, session *sessionModels.Session, challengeID id.ChallengeID, code string) (*sessionModels.Session, error) {
	if session == nil || session.Principal.IsAnonymous() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	now := requestcontext.Now(ctx).UTC()
	principalID := session.Principal.ID

	if s.lockout != nil {
		if err := s.lockout.Check(ctx, rlModels.ScopeMFA, principalID.String()); err != nil {
			s.verifyFailure(ctx, "locked", "principal_id", principalID.String())
			return nil, err
		}
	}

	challenge, err := s.challenges.Get(ctx, challengeID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			s.verifyFailure(ctx, "challenge_unknown", "challenge_id", challengeID.String())
			return nil, errChallengeExpired
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUpstreamUnavailable, "challenge store unavailable")
	}
	if challenge.PrincipalID != principalID {
		s.verifyFailure(ctx, "challenge_foreign", "challenge_id", challengeID.String(), "principal_id", principalID.String())
		return nil, errChallengeExpired
	}
	if challenge.IsExpiredAt(now) {
		s.verifyFailure(ctx, "challenge_expired", "challenge_id", challengeID.String())
		return nil, errChallengeExpired
	}

	factor, err := s.factors.FindByID(ctx, challenge.FactorID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeFactorNotFound, "mfa factor not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUpstreamUnavailable, "factor store unavailable")
	}
	if factor.PrincipalID != principalID {
		return nil, dErrors.New(dErrors.CodeFactorNotFound, "mfa factor not found")
	}

	step, ok := matchStep(factor.Secret, code, now)
	if !ok || step <= factor.LastUsedStep {
		s.recordCodeFailure(ctx, principalID)
		s.verifyFailure(ctx, "code_mismatch", "challenge_id", challengeID.String(), "principal_id", principalID.String())
		return nil, dErrors.New(dErrors.CodeCodeMismatch, "verification code is incorrect")
	}

	// The step is claimed before the challenge is consumed: a code that lost
	// a race for its step is a mismatch and must leave the challenge usable.
	if err := s.factors.MarkVerified(ctx, factor.ID, step, now); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			s.recordCodeFailure(ctx, principalID)
			s.verifyFailure(ctx, "code_replayed", "factor_id", factor.ID.String())
			return nil, dErrors.New(dErrors.CodeCodeMismatch, "verification code is incorrect")
		}
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeFactorNotFound, "mfa factor not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUpstreamUnavailable, "factor store unavailable")
	}

	if _, err := s.challenges.Consume(ctx, challengeID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			s.verifyFailure(ctx, "challenge_replayed", "challenge_id", challengeID.String())
			return nil, errChallengeExpired
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUpstreamUnavailable, "challenge store unavailable")
	}

	if s.lockout != nil {
		if err := s.lockout.Clear(ctx, rlModels.ScopeMFA, principalID.String()); err != nil {
			s.logger.WarnContext(ctx, "failed to clear mfa lockout", "principal_id", principalID.String(), "error", err)
		}
	}

	// Elevation is the last step so an abandoned call never yields a
	// half-elevated session.
	if err := ctx.Err(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUpstreamUnavailable, "verification cancelled")
	}
	elevated, err := s.sessions.Elevate(ctx, session, identity.MFALevelVerified)
	if err != nil {
		return nil, err
	}

	s.metrics.IncrementVerification("success")
	s.logAudit(ctx, "mfa_verified",
		"principal_id", principalID.String(),
		"factor_id", factor.ID.String(),
		"challenge_id", challengeID.String(),
		"session_id", elevated.ID.String(),
	)
	return elevated, nil
}

func (s *Service) recordCodeFailure(ctx context.Context, principalID id.PrincipalID) {
	if s.lockout == nil {
		return
	}
	if err := s.lockout.RecordFailure(ctx, rlModels.ScopeMFA, principalID.String()); err != nil {
		s.logger.WarnContext(ctx, "failed to record mfa failure", "principal_id", principalID.String(), "error", err)
	}
}

// matchStep checks code against the steps within the allowed skew of now and
// returns the TOTP counter of the step it matched.
func matchStep(secret, code string, now time.Time) (uint64, bool) {
	if len(code) != otp.DigitsSix.Length() {
		return 0, false
	}
	opts := totp.ValidateOpts{
		Period:    models.TOTPPeriod,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	}
	for offset := -models.TOTPSkew; offset <= models.TOTPSkew; offset++ {
		at := now.Add(time.Duration(offset*models.TOTPPeriod) * time.Second)
		expected, err := totp.GenerateCodeCustom(secret, at, opts)
		if err != nil {
			return 0, false
		}
		if subtle.ConstantTimeCompare([]byte(expected), []byte(code)) == 1 {
			return uint64(at.Unix()) / models.TOTPPeriod, true
		}
	}
	return 0, false
}
