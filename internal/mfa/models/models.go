package models

import (
	"time"

	id "digitalbank/pkg/domain"
)

const (
	// DefaultChallengeTTL bounds how long a challenge accepts a code.
	DefaultChallengeTTL = 5 * time.Minute
	// TOTPPeriod is the length of one TOTP step.
	TOTPPeriod = 30
	// TOTPSkew is how many steps either side of now a code may come from.
	TOTPSkew = 1
)

type FactorType string

const FactorTypeTOTP FactorType = "totp"

type FactorStatus string

const (
	FactorStatusUnverified FactorStatus = "unverified"
	FactorStatusVerified   FactorStatus = "verified"
)

// Factor is a second authentication factor owned by one principal.
type Factor struct {
	ID          id.FactorID    `json:"factor_id"`
	PrincipalID id.PrincipalID `json:"principal_id"`
	Type        FactorType     `json:"type"`
	Secret      string         `json:"-"`
	Status      FactorStatus   `json:"status"`
	CreatedAt   time.Time      `json:"created_at"`
	VerifiedAt  *time.Time     `json:"verified_at,omitempty"`
	// LastUsedStep is the TOTP counter of the last accepted code. Codes at or
	// below it are replays.
	LastUsedStep uint64 `json:"-"`
}

func (f *Factor) IsVerified() bool {
	return f.Status == FactorStatusVerified
}

// CanChallenge reports whether f is in a state that accepts challenges.
func (f *Factor) CanChallenge() bool {
	return f.Status == FactorStatusUnverified || f.Status == FactorStatusVerified
}

// Challenge is a single-use, time-boxed request for a code.
type Challenge struct {
	ID          id.ChallengeID `json:"challenge_id"`
	FactorID    id.FactorID    `json:"factor_id"`
	PrincipalID id.PrincipalID `json:"principal_id"`
	CreatedAt   time.Time      `json:"created_at"`
	ExpiresAt   time.Time      `json:"expires_at"`
}

// IsExpiredAt reports whether the challenge no longer accepts codes at now.
func (c *Challenge) IsExpiredAt(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// Enrollment is what a principal needs to register an authenticator app.
// Secret and URI are shown once and never returned again.
type Enrollment struct {
	FactorID id.FactorID `json:"factor_id"`
	Type     FactorType  `json:"type"`
	Secret   string      `json:"secret"`
	URI      string      `json:"otpauth_uri"`
	QRCode   string      `json:"qr_code"`
}
