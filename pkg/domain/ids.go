// Package domain holds the typed identifiers shared across bounded contexts.
//
// Each identifier wraps a UUID in its own named type so that an AccountID can
// never be passed where a PrincipalID is expected.
package domain

import (
	"github.com/google/uuid"

	dErrors "digitalbank/pkg/domain-errors"
)

type (
	PrincipalID   uuid.UUID
	SessionID     uuid.UUID
	AccountID     uuid.UUID
	TransactionID uuid.UUID
	FactorID      uuid.UUID
	ChallengeID   uuid.UUID
	AuditEntryID  uuid.UUID
)

func (id PrincipalID) String() string   { return uuid.UUID(id).String() }
func (id SessionID) String() string     { return uuid.UUID(id).String() }
func (id AccountID) String() string     { return uuid.UUID(id).String() }
func (id TransactionID) String() string { return uuid.UUID(id).String() }
func (id FactorID) String() string      { return uuid.UUID(id).String() }
func (id ChallengeID) String() string   { return uuid.UUID(id).String() }
func (id AuditEntryID) String() string  { return uuid.UUID(id).String() }

func (id PrincipalID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id SessionID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id AccountID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id TransactionID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id FactorID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id ChallengeID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id AuditEntryID) IsNil() bool  { return uuid.UUID(id) == uuid.Nil }

func NewPrincipalID() PrincipalID     { return PrincipalID(uuid.New()) }
func NewSessionID() SessionID         { return SessionID(uuid.New()) }
func NewAccountID() AccountID         { return AccountID(uuid.New()) }
func NewTransactionID() TransactionID { return TransactionID(uuid.New()) }
func NewFactorID() FactorID           { return FactorID(uuid.New()) }
func NewChallengeID() ChallengeID     { return ChallengeID(uuid.New()) }
func NewAuditEntryID() AuditEntryID   { return AuditEntryID(uuid.New()) }

// parseUUID enforces the identifier invariant at trust boundaries:
// non-empty, well-formed and not the nil UUID.
func parseUUID(kind, s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeBadRequest, kind+" is required")
	}
	parsed, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeBadRequest, "invalid "+kind)
	}
	if parsed == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeBadRequest, "invalid "+kind)
	}
	return parsed, nil
}

func ParsePrincipalID(s string) (PrincipalID, error) {
	u, err := parseUUID("principal id", s)
	return PrincipalID(u), err
}

func ParseSessionID(s string) (SessionID, error) {
	u, err := parseUUID("session id", s)
	return SessionID(u), err
}

func ParseAccountID(s string) (AccountID, error) {
	u, err := parseUUID("account id", s)
	return AccountID(u), err
}

func ParseTransactionID(s string) (TransactionID, error) {
	u, err := parseUUID("transaction id", s)
	return TransactionID(u), err
}

func ParseFactorID(s string) (FactorID, error) {
	u, err := parseUUID("factor id", s)
	return FactorID(u), err
}

func ParseChallengeID(s string) (ChallengeID, error) {
	u, err := parseUUID("challenge id", s)
	return ChallengeID(u), err
}
