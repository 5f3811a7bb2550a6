package httptransport

import (
	"net/http"

	"digitalbank/internal/identity"
	mfaModels "digitalbank/internal/mfa/models"
	dErrors "digitalbank/pkg/domain-errors"
	"digitalbank/pkg/platform/httputil"
)

// handleEnroll handles POST /auth/mfa/enroll.
func (h *Handler) handleEnroll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	enrollment, err := h.mfa.Enroll(ctx, identity.FromContext(ctx))
	if err != nil {
		h.fail(ctx, w, "mfa_enroll", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, enrollment)
}

// handleListFactors handles GET /auth/mfa/factors.
func (h *Handler) handleListFactors(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	factors, err := h.mfa.ListFactors(ctx, identity.FromContext(ctx))
	if err != nil {
		h.fail(ctx, w, "mfa_list_factors", err)
		return
	}
	if factors == nil {
		factors = []*mfaModels.Factor{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"factors": factors})
}

// handleChallenge handles POST /auth/mfa/challenge.
func (h *Handler) handleChallenge(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, err := httputil.DecodeJSON[ChallengeRequest](r)
	if err == nil {
		err = req.Validate()
	}
	if err != nil {
		h.fail(ctx, w, "mfa_challenge", err)
		return
	}

	challenge, err := h.mfa.Challenge(ctx, identity.FromContext(ctx), req.FactorID)
	if err != nil {
		h.fail(ctx, w, "mfa_challenge", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, challenge)
}

// handleVerifyCode handles POST /auth/mfa/verify and returns the elevated session.
func (h *Handler) handleVerifyCode(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, err := httputil.DecodeJSON[VerifyCodeRequest](r)
	if err == nil {
		err = req.Validate()
	}
	if err != nil {
		h.fail(ctx, w, "mfa_verify", err)
		return
	}
	session, ok := currentSession(ctx)
	if !ok {
		h.fail(ctx, w, "mfa_verify", dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	elevated, err := h.mfa.VerifyCode(ctx, session, req.ChallengeID, req.Code)
	if err != nil {
		h.fail(ctx, w, "mfa_verify", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toSessionResponse(elevated))
}
