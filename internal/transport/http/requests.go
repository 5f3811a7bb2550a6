package httptransport

import (
	"strings"
	"time"

	"github.com/asaskevich/govalidator"

	"digitalbank/internal/identity"
	sessionModels "digitalbank/internal/session/models"
	id "digitalbank/pkg/domain"
	dErrors "digitalbank/pkg/domain-errors"
)

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r *LoginRequest) Normalize() {
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
}

// Validate rejects malformed input before any credential lookup. A well-formed
// but unknown email still fails later as invalid_credentials.
func (r LoginRequest) Validate() error {
	if !govalidator.StringLength(r.Email, "3", "255") || !govalidator.IsEmail(r.Email) {
		return dErrors.New(dErrors.CodeBadRequest, "invalid email")
	}
	if r.Password == "" || len(r.Password) > 1024 {
		return dErrors.New(dErrors.CodeBadRequest, "invalid password")
	}
	return nil
}

type VerifyRequest struct {
	Token string `json:"token"`
}

type ChallengeRequest struct {
	FactorID id.FactorID `json:"factor_id"`
}

func (r ChallengeRequest) Validate() error {
	if r.FactorID.IsNil() {
		return dErrors.New(dErrors.CodeBadRequest, "factor_id is required")
	}
	return nil
}

type VerifyCodeRequest struct {
	ChallengeID id.ChallengeID `json:"challenge_id"`
	Code        string         `json:"code"`
}

func (r VerifyCodeRequest) Validate() error {
	if r.ChallengeID.IsNil() {
		return dErrors.New(dErrors.CodeBadRequest, "challenge_id is required")
	}
	if strings.TrimSpace(r.Code) == "" {
		return dErrors.New(dErrors.CodeBadRequest, "code is required")
	}
	return nil
}

type FlagRequest struct {
	FraudFlag *bool `json:"fraud_flag"`
}

func (r FlagRequest) Validate() error {
	if r.FraudFlag == nil {
		return dErrors.New(dErrors.CodeBadRequest, "fraud_flag is required")
	}
	return nil
}

// SessionResponse is returned by login and MFA verification.
type SessionResponse struct {
	SessionID  string             `json:"session_id"`
	Token      string             `json:"token"`
	TokenType  string             `json:"token_type"`
	IssuedAt   time.Time          `json:"issued_at"`
	ExpiresAt  time.Time          `json:"expires_at"`
	KeyVersion int                `json:"signing_key_version"`
	Principal  identity.Principal `json:"principal"`
}

func toSessionResponse(s *sessionModels.Session) SessionResponse {
	return SessionResponse{
		SessionID:  s.ID.String(),
		Token:      s.Token,
		TokenType:  "Bearer",
		IssuedAt:   s.IssuedAt,
		ExpiresAt:  s.ExpiresAt,
		KeyVersion: s.KeyVersion,
		Principal:  s.Principal,
	}
}

// ClaimsResponse is returned by token verification.
type ClaimsResponse struct {
	Valid      bool               `json:"valid"`
	SessionID  string             `json:"session_id"`
	IssuedAt   time.Time          `json:"issued_at"`
	ExpiresAt  time.Time          `json:"expires_at"`
	KeyVersion int                `json:"signing_key_version"`
	Principal  identity.Principal `json:"principal"`
}

func toClaimsResponse(c identity.Claims) ClaimsResponse {
	return ClaimsResponse{
		Valid:      true,
		SessionID:  c.SessionID.String(),
		IssuedAt:   c.IssuedAt,
		ExpiresAt:  c.ExpiresAt,
		KeyVersion: c.KeyVersion,
		Principal:  c.Principal,
	}
}
