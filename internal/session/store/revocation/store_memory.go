// Package revocation holds the session revocation list. Sessions are
// self-contained signed tokens, so revoking one means remembering its ID until
// the token would have expired anyway.
package revocation

import (
	"context"
	"sync"
	"time"

	id "digitalbank/pkg/domain"
)

// entry is immutable once published; updates swap in a new entry with the
// next epoch.
type entry struct {
	epoch uint64
	until time.Time
}

// InMemoryRevocationList is a per-session, lock-free revocation list. Writers
// for one session race through compare-and-swap; different sessions never
// contend.
type InMemoryRevocationList struct {
	entries sync.Map // id.SessionID -> *entry
}

func NewInMemory() *InMemoryRevocationList {
	return &InMemoryRevocationList{}
}

// Revoke marks sessionID revoked until until. Revoking twice is a no-op unless
// the new deadline is later.
func (l *InMemoryRevocationList) Revoke(_ context.Context, sessionID id.SessionID, until, now time.Time) error {
	if !until.After(now) {
		return nil
	}
	next := &entry{epoch: 1, until: until}
	for {
		current, loaded := l.entries.LoadOrStore(sessionID, next)
		if !loaded {
			return nil
		}
		old := current.(*entry)
		if !until.After(old.until) && old.until.After(now) {
			return nil
		}
		next = &entry{epoch: old.epoch + 1, until: until}
		if l.entries.CompareAndSwap(sessionID, old, next) {
			return nil
		}
	}
}

// IsRevoked reports whether sessionID is revoked at now. Lapsed entries are
// dropped on read.
func (l *InMemoryRevocationList) IsRevoked(_ context.Context, sessionID id.SessionID, now time.Time) (bool, error) {
	current, ok := l.entries.Load(sessionID)
	if !ok {
		return false, nil
	}
	e := current.(*entry)
	if !now.Before(e.until) {
		l.entries.CompareAndDelete(sessionID, e)
		return false, nil
	}
	return true, nil
}

// Epoch returns the number of times sessionID's entry was published, or 0.
func (l *InMemoryRevocationList) Epoch(sessionID id.SessionID) uint64 {
	current, ok := l.entries.Load(sessionID)
	if !ok {
		return 0
	}
	return current.(*entry).epoch
}

// PurgeExpired drops entries whose deadline passed before now.
func (l *InMemoryRevocationList) PurgeExpired(_ context.Context, now time.Time) (int, error) {
	removed := 0
	l.entries.Range(func(key, value any) bool {
		e := value.(*entry)
		if !now.Before(e.until) && l.entries.CompareAndDelete(key, e) {
			removed++
		}
		return true
	})
	return removed, nil
}
