// Package token signs and parses session tokens. Tokens are HS256 JWTs whose
// "kid" header names the signing key version, so secrets can rotate while
// tokens signed with the previous key stay valid until they expire.
package token

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"digitalbank/internal/identity"
	id "digitalbank/pkg/domain"
	dErrors "digitalbank/pkg/domain-errors"
)

const minSecretLength = 32

var errUnknownKey = errors.New("unknown signing key version")

// Key is one versioned HMAC secret.
type Key struct {
	Version int
	Secret  []byte
}

// Keyring holds the current signing key and the keys still accepted for
// verification.
type Keyring struct {
	current Key
	keys    map[int][]byte
}

// NewKeyring validates the keys and builds a ring that signs with current.
func NewKeyring(current Key, previous ...Key) (*Keyring, error) {
	ring := &Keyring{current: current, keys: make(map[int][]byte, 1+len(previous))}
	for _, k := range append([]Key{current}, previous...) {
		if k.Version <= 0 {
			return nil, fmt.Errorf("key version must be positive, got %d", k.Version)
		}
		if len(k.Secret) < minSecretLength {
			return nil, fmt.Errorf("key version %d: secret must be at least %d bytes", k.Version, minSecretLength)
		}
		if _, dup := ring.keys[k.Version]; dup {
			return nil, fmt.Errorf("duplicate key version %d", k.Version)
		}
		ring.keys[k.Version] = k.Secret
	}
	return ring, nil
}

// CurrentVersion is the version new tokens are signed with.
func (r *Keyring) CurrentVersion() int { return r.current.Version }

func (r *Keyring) lookup(version int) ([]byte, bool) {
	secret, ok := r.keys[version]
	return secret, ok
}

// Claims is the JWT payload of a session token.
type Claims struct {
	Email     string `json:"email"`
	Role      string `json:"role"`
	MFALevel  string `json:"mfa_level"`
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// Service signs and parses session tokens.
type Service struct {
	keys   *Keyring
	issuer string
}

func NewService(keys *Keyring, issuer string) *Service {
	return &Service{keys: keys, issuer: issuer}
}

// Sign returns a token for claims, signed with the current key. TokenID and
// KeyVersion are assigned here and returned in the updated claims.
func (s *Service) Sign(c identity.Claims) (string, identity.Claims, error) {
	c.TokenID = uuid.NewString()
	c.KeyVersion = s.keys.CurrentVersion()

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Email:     c.Principal.Email,
		Role:      string(c.Principal.Role),
		MFALevel:  string(c.Principal.MFALevel),
		SessionID: c.SessionID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   c.Principal.ID.String(),
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(c.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(c.ExpiresAt),
			ID:        c.TokenID,
		},
	})
	tok.Header["kid"] = strconv.Itoa(c.KeyVersion)

	signed, err := tok.SignedString(s.keys.current.Secret)
	if err != nil {
		return "", identity.Claims{}, fmt.Errorf("sign session token: %w", err)
	}
	return signed, c, nil
}

// Parse verifies the token's signature and registered claims at now and
// returns its claims. The signature is checked before expiry, so a forged
// token is TokenInvalid even when its exp lies in the past.
func (s *Service) Parse(tokenString string, now time.Time) (identity.Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)

	var version int
	parsed, err := parser.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		v, convErr := strconv.Atoi(kid)
		if convErr != nil {
			return nil, errUnknownKey
		}
		secret, ok := s.keys.lookup(v)
		if !ok {
			return nil, errUnknownKey
		}
		version = v
		return secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return identity.Claims{}, dErrors.New(dErrors.CodeTokenExpired, "token has expired")
		}
		return identity.Claims{}, dErrors.Wrap(err, dErrors.CodeTokenInvalid, "invalid token")
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return identity.Claims{}, dErrors.New(dErrors.CodeTokenInvalid, "invalid token claims")
	}
	return toIdentityClaims(claims, version)
}

func toIdentityClaims(c *Claims, version int) (identity.Claims, error) {
	invalid := func(msg string) (identity.Claims, error) {
		return identity.Claims{}, dErrors.New(dErrors.CodeTokenInvalid, msg)
	}

	principalID, err := id.ParsePrincipalID(c.Subject)
	if err != nil {
		return invalid("invalid token subject")
	}
	sessionID, err := id.ParseSessionID(c.SessionID)
	if err != nil {
		return invalid("invalid token session")
	}
	role, err := identity.ParseRole(c.Role)
	if err != nil {
		return invalid("invalid token role")
	}
	level, err := identity.ParseMFALevel(c.MFALevel)
	if err != nil {
		return invalid("invalid token mfa level")
	}
	if c.IssuedAt == nil || c.ExpiresAt == nil {
		return invalid("invalid token lifetime")
	}

	return identity.Claims{
		SessionID: sessionID,
		TokenID:   c.ID,
		Principal: identity.Principal{
			ID:       principalID,
			Email:    c.Email,
			Role:     role,
			MFALevel: level,
		},
		IssuedAt:   c.IssuedAt.UTC(),
		ExpiresAt:  c.ExpiresAt.UTC(),
		KeyVersion: version,
	}, nil
}
