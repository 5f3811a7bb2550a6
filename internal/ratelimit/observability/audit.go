// Package observability provides security logging helpers for the ratelimit module.
package observability

import (
	"context"
	"log/slog"

	"digitalbank/pkg/requestcontext"
)

// LogSecurity writes a security event to the structured logger, enriched with
// the request ID and client IP. Lockout events are operational signals, not
// entries of the append-only audit log.
func LogSecurity(ctx context.Context, logger *slog.Logger, event string, attrList ...any) {
	if logger == nil {
		return
	}
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attrList = append(attrList, "request_id", requestID)
	}
	if ip := requestcontext.ClientIP(ctx); ip != "" {
		attrList = append(attrList, "client_ip", ip)
	}
	args := append(attrList, "event", event, "log_type", "security")
	logger.WarnContext(ctx, event, args...)
}
