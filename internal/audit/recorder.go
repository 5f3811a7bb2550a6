// Package audit is the append-only record of privileged actions.
//
// Record is synchronous and fail-closed: when the entry cannot be persisted
// the caller gets UpstreamUnavailable and must abort the action it was about
// to commit. Entries of one actor are serialized so their timestamps strictly
// increase; different actors never wait on each other.
package audit

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"digitalbank/internal/audit/metrics"
	"digitalbank/internal/identity"
	"digitalbank/internal/policy"
	id "digitalbank/pkg/domain"
	dErrors "digitalbank/pkg/domain-errors"
	"digitalbank/pkg/requestcontext"
)

// timestampStep is the smallest increment PostgreSQL timestamps keep.
const timestampStep = time.Microsecond

// actorState serializes one actor's appends and remembers its last timestamp.
type actorState struct {
	mu   sync.Mutex
	last time.Time
}

// Recorder appends audit entries.
type Recorder struct {
	store   Store
	logger  *slog.Logger
	metrics *metrics.Metrics
	actors  sync.Map // id.PrincipalID -> *actorState
}

type Option func(*Recorder)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Recorder) {
		r.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Recorder) {
		r.metrics = m
	}
}

func NewRecorder(store Store, opts ...Option) (*Recorder, error) {
	if store == nil {
		return nil, errors.New("audit store is required")
	}
	r := &Recorder{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

func (r *Recorder) actor(actorID id.PrincipalID) *actorState {
	if v, ok := r.actors.Load(actorID); ok {
		return v.(*actorState)
	}
	v, _ := r.actors.LoadOrStore(actorID, &actorState{})
	return v.(*actorState)
}

// Record appends one entry for actor. It runs inside whatever unit of work
// ctx carries, so a failed append rolls back the surrounding write.
func (r *Recorder) Record(ctx context.Context, actor identity.Principal, action string, target Target) (*Entry, error) {
	if actor.IsAnonymous() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "audit actor is required")
	}
	if action == "" || target.Type == "" || target.ID == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "audit action and target are required")
	}

	state := r.actor(actor.ID)
	state.mu.Lock()
	defer state.mu.Unlock()

	ts := requestcontext.Now(ctx).UTC().Truncate(timestampStep)
	if !ts.After(state.last) {
		ts = state.last.Add(timestampStep)
	}

	entry := &Entry{
		ID:         id.NewAuditEntryID(),
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Action:     action,
		TargetType: target.Type,
		Target:     target.ID,
		Detail:     target.Detail,
		RequestID:  requestcontext.RequestID(ctx),
		Timestamp:  ts,
	}

	start := time.Now()
	if err := r.store.Append(ctx, entry); err != nil {
		if r.metrics != nil {
			r.metrics.PersistFailures.Inc()
		}
		r.logger.ErrorContext(ctx, "CRITICAL: audit append failed",
			"actor_id", actor.ID.String(),
			"action", action,
			"target_type", target.Type,
			"target", target.ID,
			"request_id", entry.RequestID,
			"error", err,
		)
		return nil, dErrors.Wrap(err, dErrors.CodeUpstreamUnavailable, "audit store unavailable")
	}
	state.last = ts

	if r.metrics != nil {
		r.metrics.PersistDuration.Observe(time.Since(start).Seconds())
		r.metrics.EntriesRecorded.WithLabelValues(target.Type).Inc()
	}
	return entry, nil
}

// List returns audit entries to an admin. Every other principal is denied.
func (r *Recorder) List(ctx context.Context, p identity.Principal, f Filter) ([]*Entry, error) {
	if d := policy.Decide(p, policy.ActionRead, policy.ResourceAuditLog, id.PrincipalID{}); !d.Allowed() {
		return nil, dErrors.New(dErrors.CodePermissionDenied, "audit log is restricted")
	}
	entries, err := r.store.List(ctx, f.Normalize())
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUpstreamUnavailable, "audit store unavailable")
	}
	return entries, nil
}
