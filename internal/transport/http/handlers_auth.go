package httptransport

import (
	"net/http"

	"digitalbank/internal/identity"
	dErrors "digitalbank/pkg/domain-errors"
	"digitalbank/pkg/platform/httputil"
	"digitalbank/pkg/platform/middleware/auth"
	"digitalbank/pkg/requestcontext"
)

// handleLogin handles POST /auth/login.
func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, err := httputil.DecodeJSON[LoginRequest](r)
	if err != nil {
		h.fail(ctx, w, "login", err)
		return
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		h.fail(ctx, w, "login", err)
		return
	}

	session, err := h.sessions.Authenticate(ctx, req.Email, req.Password)
	if err != nil {
		h.fail(ctx, w, "login", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toSessionResponse(session))
}

// handleVerify handles POST /auth/verify. The token is read from the body,
// falling back to the Authorization header.
func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, err := httputil.DecodeJSON[VerifyRequest](r)
	if err != nil {
		h.fail(ctx, w, "verify", err)
		return
	}
	token := req.Token
	if token == "" {
		token, _ = auth.BearerToken(r)
	}
	if token == "" {
		h.fail(ctx, w, "verify", dErrors.New(dErrors.CodeTokenInvalid, "missing token"))
		return
	}

	claims, err := h.sessions.Verify(ctx, token)
	if err != nil {
		h.fail(ctx, w, "verify", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toClaimsResponse(claims))
}

// handleLogout handles POST /auth/logout for the caller's own session.
func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	session, ok := currentSession(ctx)
	if !ok {
		h.fail(ctx, w, "logout", dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}
	if err := h.sessions.Invalidate(ctx, session); err != nil {
		h.fail(ctx, w, "logout", err)
		return
	}
	h.logger.InfoContext(ctx, "session logged out",
		"principal_id", identity.FromContext(ctx).ID.String(),
		"request_id", requestcontext.RequestID(ctx),
	)
	w.WriteHeader(http.StatusNoContent)
}
