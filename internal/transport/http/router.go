package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"digitalbank/internal/platform/metrics"
	"digitalbank/internal/platform/middleware"
	ratelimit "digitalbank/internal/ratelimit/middleware"
	"digitalbank/internal/ratelimit/models"
	"digitalbank/pkg/platform/httputil"
	"digitalbank/pkg/platform/middleware/auth"
	"digitalbank/pkg/platform/middleware/device"
	"digitalbank/pkg/platform/middleware/request"
)

// RouterConfig carries the collaborators the router needs besides the handler.
type RouterConfig struct {
	Verifier        auth.TokenVerifier
	Metrics         *metrics.Metrics
	Logger          *slog.Logger
	Devices         *device.Service
	RateLimit       *ratelimit.Middleware
	UpstreamTimeout time.Duration
}

// limit returns the per-IP request limit for class, or a pass-through when
// no limiter is configured.
func (cfg RouterConfig) limit(class models.EndpointClass) func(http.Handler) http.Handler {
	if cfg.RateLimit == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return cfg.RateLimit.RateLimit(class)
}

// NewRouter mounts every public endpoint behind the shared middleware chain.
func NewRouter(h *Handler, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(request.Context)
	r.Use(middleware.Recover(cfg.Logger))
	r.Use(middleware.Observe(cfg.Logger, cfg.Metrics))
	if cfg.Devices != nil {
		r.Use(cfg.Devices.Middleware)
	}

	r.Get("/healthz", h.handleHealth)
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.UpstreamBudget(cfg.UpstreamTimeout))
		h.Register(r, cfg)
	})
	return r
}

// Register mounts the auth, MFA and ledger routes.
func (h *Handler) Register(r chi.Router, cfg RouterConfig) {
	r.Group(func(r chi.Router) {
		r.Use(cfg.limit(models.ClassAuth))
		r.Post("/auth/login", h.handleLogin)
		r.Post("/auth/verify", h.handleVerify)
	})

	r.Group(func(r chi.Router) {
		r.Use(auth.Authenticate(cfg.Verifier, cfg.Logger))

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(cfg.Logger))
			r.Use(cfg.limit(models.ClassAuth))
			r.Post("/auth/logout", h.handleLogout)
			r.Post("/auth/mfa/enroll", h.handleEnroll)
			r.Get("/auth/mfa/factors", h.handleListFactors)
			r.Post("/auth/mfa/challenge", h.handleChallenge)
			r.Post("/auth/mfa/verify", h.handleVerifyCode)
		})

		// Data routes accept anonymous callers; the ledger scopes them to nothing.
		r.Group(func(r chi.Router) {
			r.Use(cfg.limit(models.ClassRead))
			r.Get("/accounts", h.handleListAccounts)
			r.Get("/accounts/{id}", h.handleGetAccount)
			r.Get("/accounts/{id}/transactions", h.handleAccountTransactions)
			r.Get("/transactions", h.handleListTransactions)
			r.Get("/transactions/{id}", h.handleGetTransaction)
			r.Get("/customers/{id}", h.handleGetCustomer)
			r.Get("/audit-logs", h.handleListAuditLog)
		})

		r.Group(func(r chi.Router) {
			r.Use(cfg.limit(models.ClassWrite))
			r.Patch("/accounts/{id}", h.handleUpdateAccount)
			r.Post("/transactions", h.handleCreateTransaction)
			r.Patch("/transactions/{id}", h.handleFlagTransaction)
			r.Patch("/customers/{id}", h.handleUpdateCustomer)
		})
	})
}

// handleHealth handles GET /healthz. Each registered dependency gets two
// seconds to answer.
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	deps := make(map[string]string, len(h.checks))
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			h.logger.WarnContext(ctx, "health check failed", "dependency", name, "error", err)
			deps[name] = "unavailable"
			status = http.StatusServiceUnavailable
			continue
		}
		deps[name] = "ok"
	}
	state := "ok"
	if status != http.StatusOK {
		state = "degraded"
	}
	httputil.WriteJSON(w, status, map[string]any{"status": state, "dependencies": deps})
}
