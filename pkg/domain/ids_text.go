package domain

import "github.com/google/uuid"

// Identifiers marshal as canonical UUID strings. The nil identifier marshals
// as the empty string and an empty string unmarshals to it.

func marshalID(u uuid.UUID) ([]byte, error) {
	if u == uuid.Nil {
		return []byte{}, nil
	}
	return []byte(u.String()), nil
}

func unmarshalID(text []byte) (uuid.UUID, error) {
	if len(text) == 0 {
		return uuid.Nil, nil
	}
	return uuid.ParseBytes(text)
}

func (id PrincipalID) MarshalText() ([]byte, error) { return marshalID(uuid.UUID(id)) }

func (id *PrincipalID) UnmarshalText(text []byte) error {
	u, err := unmarshalID(text)
	if err != nil {
		return err
	}
	*id = PrincipalID(u)
	return nil
}

func (id SessionID) MarshalText() ([]byte, error) { return marshalID(uuid.UUID(id)) }

func (id *SessionID) UnmarshalText(text []byte) error {
	u, err := unmarshalID(text)
	if err != nil {
		return err
	}
	*id = SessionID(u)
	return nil
}

func (id AccountID) MarshalText() ([]byte, error) { return marshalID(uuid.UUID(id)) }

func (id *AccountID) UnmarshalText(text []byte) error {
	u, err := unmarshalID(text)
	if err != nil {
		return err
	}
	*id = AccountID(u)
	return nil
}

func (id TransactionID) MarshalText() ([]byte, error) { return marshalID(uuid.UUID(id)) }

func (id *TransactionID) UnmarshalText(text []byte) error {
	u, err := unmarshalID(text)
	if err != nil {
		return err
	}
	*id = TransactionID(u)
	return nil
}

func (id FactorID) MarshalText() ([]byte, error) { return marshalID(uuid.UUID(id)) }

func (id *FactorID) UnmarshalText(text []byte) error {
	u, err := unmarshalID(text)
	if err != nil {
		return err
	}
	*id = FactorID(u)
	return nil
}

func (id ChallengeID) MarshalText() ([]byte, error) { return marshalID(uuid.UUID(id)) }

func (id *ChallengeID) UnmarshalText(text []byte) error {
	u, err := unmarshalID(text)
	if err != nil {
		return err
	}
	*id = ChallengeID(u)
	return nil
}

func (id AuditEntryID) MarshalText() ([]byte, error) { return marshalID(uuid.UUID(id)) }

func (id *AuditEntryID) UnmarshalText(text []byte) error {
	u, err := unmarshalID(text)
	if err != nil {
		return err
	}
	*id = AuditEntryID(u)
	return nil
}
