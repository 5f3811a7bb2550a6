// Package identity defines the authenticated principal and the claims a
// verified session token carries. Values here are immutable for the lifetime
// of a session: a role change requires a new session.
package identity

import (
	"context"
	"time"

	id "digitalbank/pkg/domain"
	dErrors "digitalbank/pkg/domain-errors"
)

// Role is the application-level role of a principal.
type Role string

const (
	RoleAnonymous Role = "anonymous"
	RoleCustomer  Role = "customer"
	RoleAnalyst   Role = "analyst"
	RoleAdmin     Role = "admin"
)

// IsValid reports whether r is one of the four known roles.
func (r Role) IsValid() bool {
	switch r {
	case RoleAnonymous, RoleCustomer, RoleAnalyst, RoleAdmin:
		return true
	}
	return false
}

func (r Role) String() string { return string(r) }

// ParseRole validates a role read from a token or a store row. Anonymous is
// never a stored role, so it is rejected here.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.IsValid() || r == RoleAnonymous {
		return "", dErrors.New(dErrors.CodeBadRequest, "invalid role")
	}
	return r, nil
}

// MFALevel is the assurance level of a session.
type MFALevel string

const (
	MFALevelNone     MFALevel = "none"
	MFALevelEnrolled MFALevel = "enrolled"
	MFALevelVerified MFALevel = "verified"
)

func (l MFALevel) rank() int {
	switch l {
	case MFALevelEnrolled:
		return 1
	case MFALevelVerified:
		return 2
	default:
		return 0
	}
}

// IsValid reports whether l is a known level.
func (l MFALevel) IsValid() bool {
	return l == MFALevelNone || l == MFALevelEnrolled || l == MFALevelVerified
}

// Exceeds reports whether l is a strictly higher assurance than other.
func (l MFALevel) Exceeds(other MFALevel) bool {
	return l.rank() > other.rank()
}

func (l MFALevel) String() string { return string(l) }

// ParseMFALevel validates a level read from a token.
func ParseMFALevel(s string) (MFALevel, error) {
	l := MFALevel(s)
	if !l.IsValid() {
		return "", dErrors.New(dErrors.CodeBadRequest, "invalid mfa level")
	}
	return l, nil
}

// Principal is the identity making a request.
type Principal struct {
	ID       id.PrincipalID `json:"id"`
	Email    string         `json:"email"`
	Role     Role           `json:"role"`
	MFALevel MFALevel       `json:"mfa_level"`
}

// Anonymous returns the principal used for requests without a valid token.
func Anonymous() Principal {
	return Principal{Role: RoleAnonymous, MFALevel: MFALevelNone}
}

// IsAnonymous reports whether p carries no authenticated identity.
func (p Principal) IsAnonymous() bool {
	return p.Role == RoleAnonymous || p.Role == "" || p.ID.IsNil()
}

// Claims are the verified attributes decoded from a session token.
type Claims struct {
	SessionID  id.SessionID
	TokenID    string
	Principal  Principal
	IssuedAt   time.Time
	ExpiresAt  time.Time
	KeyVersion int
}

type principalKey struct{}

// WithPrincipal stores the request principal in ctx.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// FromContext returns the request principal, or Anonymous when none was set.
func FromContext(ctx context.Context) Principal {
	if p, ok := ctx.Value(principalKey{}).(Principal); ok {
		return p
	}
	return Anonymous()
}

type claimsKey struct{}

// WithClaims stores verified claims in ctx.
func WithClaims(ctx context.Context, c Claims) context.Context {
	ctx = context.WithValue(ctx, claimsKey{}, c)
	return WithPrincipal(ctx, c.Principal)
}

// ClaimsFromContext returns the verified claims of the request, if any.
func ClaimsFromContext(ctx context.Context) (Claims, bool) {
	c, ok := ctx.Value(claimsKey{}).(Claims)
	return c, ok
}
