package models

import (
	"time"
)

// EndpointClass groups routes that share one per-client request budget.
type EndpointClass string

const (
	ClassAuth  EndpointClass = "auth"
	ClassRead  EndpointClass = "read"
	ClassWrite EndpointClass = "write"
)

// RequestLimit is a sliding window budget.
type RequestLimit struct {
	Requests int
	Window   time.Duration
}

// RequestLimits maps endpoint classes to budgets. A class without an entry
// is denied.
type RequestLimits map[EndpointClass]RequestLimit

// DefaultRequestLimits allows 20 auth calls, 300 reads and 60 writes per
// client IP and minute.
func DefaultRequestLimits() RequestLimits {
	return RequestLimits{
		ClassAuth:  {Requests: 20, Window: time.Minute},
		ClassRead:  {Requests: 300, Window: time.Minute},
		ClassWrite: {Requests: 60, Window: time.Minute},
	}
}

// RateLimitResult is the outcome of one bucket check.
type RateLimitResult struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter int // seconds
}

// RequestKey names the bucket of one client IP for one endpoint class.
func RequestKey(ip string, class EndpointClass) string {
	return "ip:" + string(class) + ":" + SanitizeKeySegment(ip)
}
