package models

import "strings"

// Lockout scopes keep login and MFA failure counters apart for one principal.
const (
	ScopeLogin = "login"
	ScopeMFA   = "mfa"
)

// SanitizeKeySegment escapes delimiter characters in lockout key segments so a
// user-controlled identifier containing ':' cannot collide with another scope.
func SanitizeKeySegment(s string) string {
	return strings.ReplaceAll(s, ":", "_")
}

// AuthLockoutKey identifies one failure counter.
type AuthLockoutKey struct {
	scope      string
	identifier string
}

// NewAuthLockoutKey normalizes identifier (emails are case-insensitive) and
// binds it to a scope.
func NewAuthLockoutKey(scope, identifier string) AuthLockoutKey {
	return AuthLockoutKey{
		scope:      scope,
		identifier: SanitizeKeySegment(strings.ToLower(strings.TrimSpace(identifier))),
	}
}

func (k AuthLockoutKey) String() string {
	return k.scope + ":" + k.identifier
}
