package models

import (
	"time"

	"digitalbank/internal/identity"
	id "digitalbank/pkg/domain"
)

// DefaultSessionTTL is the lifetime of a session from issue.
const DefaultSessionTTL = 24 * time.Hour

// Session is an issued, signed session. Its claims never change: elevation
// returns a new Session for the same ID.
type Session struct {
	ID         id.SessionID       `json:"session_id"`
	Principal  identity.Principal `json:"principal"`
	IssuedAt   time.Time          `json:"issued_at"`
	ExpiresAt  time.Time          `json:"expires_at"`
	KeyVersion int                `json:"signing_key_version"`
	TokenID    string             `json:"-"`
	Token      string             `json:"token"`
}

// Claims returns the claims the session token carries.
func (s *Session) Claims() identity.Claims {
	return identity.Claims{
		SessionID:  s.ID,
		TokenID:    s.TokenID,
		Principal:  s.Principal,
		IssuedAt:   s.IssuedAt,
		ExpiresAt:  s.ExpiresAt,
		KeyVersion: s.KeyVersion,
	}
}

// FromClaims rebuilds a session value from verified claims and their token.
func FromClaims(c identity.Claims, token string) *Session {
	return &Session{
		ID:         c.SessionID,
		Principal:  c.Principal,
		IssuedAt:   c.IssuedAt,
		ExpiresAt:  c.ExpiresAt,
		KeyVersion: c.KeyVersion,
		TokenID:    c.TokenID,
		Token:      token,
	}
}

// IsExpiredAt reports whether the session is over at now. A session expires
// exactly at ExpiresAt.
func (s *Session) IsExpiredAt(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Credential is the stored secret of a principal, used only by Authenticate.
type Credential struct {
	PrincipalID  id.PrincipalID
	Email        string
	PasswordHash []byte
	Role         identity.Role
	Disabled     bool
	LastLoginAt  *time.Time
	CreatedAt    time.Time
}
