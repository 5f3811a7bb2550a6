package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	qrcode "github.com/skip2/go-qrcode"

	"digitalbank/internal/identity"
	"digitalbank/internal/mfa/models"
	id "digitalbank/pkg/domain"
	dErrors "digitalbank/pkg/domain-errors"
	"digitalbank/pkg/platform/sentinel"
	"digitalbank/pkg/requestcontext"
)

const qrCodeSize = 256

// Enroll creates an unverified TOTP factor for p, replacing any earlier
// unverified one. A principal with a verified factor cannot enroll again.
func (s *Service) Enroll(ctx context.Context, p identity.Principal) (*models.Enrollment, error) {
	if p.IsAnonymous() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}

	verified, err := s.factors.HasVerified(ctx, p.ID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUpstreamUnavailable, "factor store unavailable")
	}
	if verified {
		return nil, dErrors.New(dErrors.CodeConflict, "a verified factor is already enrolled")
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.issuer,
		AccountName: p.Email,
		Period:      models.TOTPPeriod,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate totp secret")
	}
	qr, err := qrDataURL(key.URL())
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to render qr code")
	}

	factor := &models.Factor{
		ID:          id.NewFactorID(),
		PrincipalID: p.ID,
		Type:        models.FactorTypeTOTP,
		Secret:      key.Secret(),
		Status:      models.FactorStatusUnverified,
		CreatedAt:   requestcontext.Now(ctx).UTC(),
	}
	if err := s.factors.Enroll(ctx, factor); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "a verified factor is already enrolled")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUpstreamUnavailable, "factor store unavailable")
	}

	if s.metrics != nil {
		s.metrics.Enrollments.Inc()
	}
	s.logAudit(ctx, "mfa_enrolled",
		"principal_id", p.ID.String(),
		"factor_id", factor.ID.String(),
	)
	return &models.Enrollment{
		FactorID: factor.ID,
		Type:     factor.Type,
		Secret:   factor.Secret,
		URI:      key.URL(),
		QRCode:   qr,
	}, nil
}

func qrDataURL(uri string) (string, error) {
	png, err := qrcode.Encode(uri, qrcode.Medium, qrCodeSize)
	if err != nil {
		return "", fmt.Errorf("encode qr code: %w", err)
	}
	var b bytes.Buffer
	b.WriteString("data:image/png;base64,")
	b.WriteString(base64.StdEncoding.EncodeToString(png))
	return b.String(), nil
}

// ListFactors returns p's factors. Secrets are never serialized.
func (s *Service) ListFactors(ctx context.Context, p identity.Principal) ([]*models.Factor, error) {
	if p.IsAnonymous() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	factors, err := s.factors.ListByPrincipal(ctx, p.ID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUpstreamUnavailable, "factor store unavailable")
	}
	return factors, nil
}

// HasVerifiedFactor reports whether principalID completed enrollment. The
// session manager uses it to stamp new sessions as enrolled.
func (s *Service) HasVerifiedFactor(ctx context.Context, principalID id.PrincipalID) (bool, error) {
	ok, err := s.factors.HasVerified(ctx, principalID)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeUpstreamUnavailable, "factor store unavailable")
	}
	return ok, nil
}

// Challenge opens a time-boxed challenge against one of p's factors.
func (s *Service) Challenge(ctx context.Context, p identity.Principal, factorID id.FactorID) (*models.Challenge, error) {
	if p.IsAnonymous() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}

	factor, err := s.factors.FindByID(ctx, factorID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeFactorNotFound, "mfa factor not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUpstreamUnavailable, "factor store unavailable")
	}
	if factor.PrincipalID != p.ID || !factor.CanChallenge() {
		return nil, dErrors.New(dErrors.CodeFactorNotFound, "mfa factor not found")
	}

	now := requestcontext.Now(ctx).UTC()
	challenge := &models.Challenge{
		ID:          id.NewChallengeID(),
		FactorID:    factor.ID,
		PrincipalID: p.ID,
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.challengeTTL),
	}
	if err := s.challenges.Create(ctx, challenge); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUpstreamUnavailable, "challenge store unavailable")
	}

	if s.metrics != nil {
		s.metrics.Challenges.Inc()
	}
	s.logAudit(ctx, "mfa_challenge_created",
		"principal_id", p.ID.String(),
		"factor_id", factor.ID.String(),
		"challenge_id", challenge.ID.String(),
	)
	return challenge, nil
}
