package audit

import (
	"context"
	"time"

	"github.com/google/uuid"

	"digitalbank/internal/identity"
	id "digitalbank/pkg/domain"
)

// Entry is one immutable audit log row.
type Entry struct {
	ID         id.AuditEntryID `json:"id"`
	ActorID    id.PrincipalID  `json:"actor_id"`
	ActorRole  identity.Role   `json:"actor_role"`
	Action     string          `json:"action"`
	TargetType string          `json:"target_type"`
	Target     string          `json:"target"`
	Detail     string          `json:"detail,omitempty"`
	RequestID  string          `json:"request_id,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`
}

// Target names the row a privileged action touched.
type Target struct {
	Type   string
	ID     string
	Detail string
}

// Filter narrows List. Zero values mean "no constraint".
type Filter struct {
	ActorID id.PrincipalID
	Target  string
	Since   time.Time
	Limit   int
}

const (
	DefaultListLimit = 100
	MaxListLimit     = 1000
)

// Normalize clamps the limit into [1, MaxListLimit].
func (f Filter) Normalize() Filter {
	switch {
	case f.Limit <= 0:
		f.Limit = DefaultListLimit
	case f.Limit > MaxListLimit:
		f.Limit = MaxListLimit
	}
	return f
}

// Matches reports whether e passes the filter.
func (f Filter) Matches(e *Entry) bool {
	if !f.ActorID.IsNil() && e.ActorID != f.ActorID {
		return false
	}
	if f.Target != "" && e.Target != f.Target {
		return false
	}
	if !f.Since.IsZero() && e.Timestamp.Before(f.Since) {
		return false
	}
	return true
}

// Store persists audit entries. There is deliberately no update or delete.
type Store interface {
	// Append writes e. Implementations join the unit of work carried in ctx.
	Append(ctx context.Context, e *Entry) error
	// List returns entries matching f, newest first.
	List(ctx context.Context, f Filter) ([]*Entry, error)
}

// OutboxRecord is an audit entry waiting to be published to the event stream.
type OutboxRecord struct {
	ID        uuid.UUID
	Key       string
	Payload   []byte
	CreatedAt time.Time
}
