// Package service is the ledger gateway: the only place where policy
// decisions, store access and audit recording meet. Every operation takes the
// verified principal of the request, resolves the owner of the rows it
// touches, asks the policy engine and only then reads or writes.
//
// Denials never reveal whether a row exists. A denied single-row read is
// reported as not found; a denied write is reported as permission denied only
// when the caller could have read the row anyway.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"digitalbank/internal/audit"
	"digitalbank/internal/identity"
	"digitalbank/internal/ledger/ports"
	"digitalbank/internal/policy"
	"digitalbank/internal/policy/metrics"
	id "digitalbank/pkg/domain"
	dErrors "digitalbank/pkg/domain-errors"
	"digitalbank/pkg/platform/sentinel"
	"digitalbank/pkg/requestcontext"
)

// AuditRecorder appends and lists audit entries.
type AuditRecorder interface {
	Record(ctx context.Context, actor identity.Principal, action string, target audit.Target) (*audit.Entry, error)
	List(ctx context.Context, p identity.Principal, f audit.Filter) ([]*audit.Entry, error)
}

type Service struct {
	store    ports.Store
	recorder AuditRecorder
	logger   *slog.Logger
	metrics  *metrics.Metrics
	tracer   trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func New(store ports.Store, recorder AuditRecorder, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("ledger store is required")
	}
	if recorder == nil {
		return nil, errors.New("audit recorder is required")
	}
	s := &Service{
		store:    store,
		recorder: recorder,
		logger:   slog.Default(),
		tracer:   otel.Tracer("digitalbank/ledger"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// observe starts a span and returns the function that ends it and records
// the operation latency.
func (s *Service) observe(ctx context.Context, operation string) (context.Context, func()) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "ledger."+operation)
	return ctx, func() {
		span.End()
		s.metrics.ObserveOperation(operation, time.Since(start))
	}
}

// decide asks the policy engine and records the outcome.
func (s *Service) decide(ctx context.Context, p identity.Principal, action policy.Action, resource policy.ResourceType, owner id.PrincipalID) policy.Decision {
	d := policy.Decide(p, action, resource, owner)
	s.metrics.IncrementDecision(string(resource), string(action), string(d.Effect), string(d.Rule))
	if !d.Allowed() {
		attrs := []any{
			"principal_id", p.ID.String(),
			"role", string(p.Role),
			"action", string(action),
			"resource", string(resource),
			"rule", string(d.Rule),
			"log_type", "security",
		}
		if requestID := requestcontext.RequestID(ctx); requestID != "" {
			attrs = append(attrs, "request_id", requestID)
		}
		s.logger.InfoContext(ctx, "access denied", attrs...)
	}
	return d
}

// denied maps a policy denial to the error the caller sees.
func denied(p identity.Principal, action policy.Action, resource policy.ResourceType, owner id.PrincipalID, notFound error) error {
	if action == policy.ActionWrite && policy.Decide(p, policy.ActionRead, resource, owner).Allowed() {
		return dErrors.New(dErrors.CodePermissionDenied, "not allowed to modify this "+resourceName(resource))
	}
	return notFound
}

func resourceName(r policy.ResourceType) string {
	switch r {
	case policy.ResourceCustomerProfile:
		return "customer"
	case policy.ResourceAuditLog:
		return "audit log"
	}
	return string(r)
}

// storeError translates a store failure. Domain errors pass through.
func storeError(err error, notFound error) error {
	if _, ok := dErrors.As(err); ok {
		return err
	}
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return notFound
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, "conflicting change")
	}
	return dErrors.Wrap(err, dErrors.CodeUpstreamUnavailable, "ledger store unavailable")
}

// commit runs change and, when the policy says so, the audit append in one
// unit of work. change reads the rows it modifies inside that unit with the
// ForUpdate lookups, so concurrent writes to one row apply one after the
// other. A failed append rolls the write back.
func (s *Service) commit(ctx context.Context, p identity.Principal, resource policy.ResourceType, change func(ctx context.Context) (audit.Target, error)) error {
	return s.store.RunInTx(ctx, func(ctx context.Context) error {
		target, err := change(ctx)
		if err != nil {
			return err
		}
		if !policy.AuditRequired(p, policy.ActionWrite, resource) {
			return nil
		}
		_, err = s.recorder.Record(ctx, p, string(policy.ActionWrite), target)
		return err
	})
}

func (s *Service) logAudit(ctx context.Context, event string, attributes ...any) {
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	args := append(attributes, "event", event, "log_type", "audit")
	s.logger.InfoContext(ctx, event, args...)
}
