package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"digitalbank/internal/audit"
	"digitalbank/internal/identity"
	ledgerModels "digitalbank/internal/ledger/models"
	ledgerService "digitalbank/internal/ledger/service"
	mfaModels "digitalbank/internal/mfa/models"
	sessionModels "digitalbank/internal/session/models"
	id "digitalbank/pkg/domain"
	dErrors "digitalbank/pkg/domain-errors"
	"digitalbank/pkg/platform/httputil"
	"digitalbank/pkg/platform/middleware/auth"
	"digitalbank/pkg/requestcontext"
)

// SessionService is the slice of the session manager the transport calls.
type SessionService interface {
	Authenticate(ctx context.Context, email, secret string) (*sessionModels.Session, error)
	Verify(ctx context.Context, token string) (identity.Claims, error)
	Invalidate(ctx context.Context, session *sessionModels.Session) error
}

// MFAService drives TOTP enrollment and step-up.
type MFAService interface {
	Enroll(ctx context.Context, p identity.Principal) (*mfaModels.Enrollment, error)
	ListFactors(ctx context.Context, p identity.Principal) ([]*mfaModels.Factor, error)
	Challenge(ctx context.Context, p identity.Principal, factorID id.FactorID) (*mfaModels.Challenge, error)
	VerifyCode(ctx context.Context, session *sessionModels.Session, challengeID id.ChallengeID, code string) (*sessionModels.Session, error)
}

// LedgerService is the row-scoped gateway to the bank entities.
type LedgerService interface {
	ListAccounts(ctx context.Context, p identity.Principal, limit int) ([]*ledgerModels.Account, error)
	GetAccount(ctx context.Context, p identity.Principal, accountID id.AccountID) (*ledgerModels.Account, error)
	UpdateAccount(ctx context.Context, p identity.Principal, accountID id.AccountID, u ledgerModels.AccountUpdate) (*ledgerModels.Account, error)
	ListTransactions(ctx context.Context, p identity.Principal, q ledgerService.TransactionQuery) ([]*ledgerModels.Transaction, error)
	GetTransaction(ctx context.Context, p identity.Principal, transactionID id.TransactionID) (*ledgerModels.Transaction, error)
	FlagTransaction(ctx context.Context, p identity.Principal, transactionID id.TransactionID, flagged bool) (*ledgerModels.Transaction, error)
	CreateTransaction(ctx context.Context, p identity.Principal, n ledgerModels.NewTransaction) (*ledgerModels.Transaction, error)
	GetCustomer(ctx context.Context, p identity.Principal, customerID id.PrincipalID) (*ledgerModels.CustomerProfile, error)
	UpdateCustomer(ctx context.Context, p identity.Principal, customerID id.PrincipalID, u ledgerModels.CustomerUpdate) (*ledgerModels.CustomerProfile, error)
	ListAuditLog(ctx context.Context, p identity.Principal, f audit.Filter) ([]*audit.Entry, error)
}

// HealthCheck probes one backing dependency.
type HealthCheck func(ctx context.Context) error

// Handler is the thin HTTP layer. It decodes requests, resolves the principal
// from context and delegates to the services.
type Handler struct {
	sessions SessionService
	mfa      MFAService
	ledger   LedgerService
	logger   *slog.Logger
	checks   map[string]HealthCheck
}

func New(sessions SessionService, mfa MFAService, ledger LedgerService, logger *slog.Logger) *Handler {
	return &Handler{
		sessions: sessions,
		mfa:      mfa,
		ledger:   ledger,
		logger:   logger,
		checks:   map[string]HealthCheck{},
	}
}

// AddHealthCheck registers a dependency probe reported by GET /healthz.
func (h *Handler) AddHealthCheck(name string, check HealthCheck) {
	h.checks[name] = check
}

// currentSession rebuilds the caller's session from the verified claims and
// bearer token placed in context by the auth middleware.
func currentSession(ctx context.Context) (*sessionModels.Session, bool) {
	claims, ok := identity.ClaimsFromContext(ctx)
	if !ok {
		return nil, false
	}
	return sessionModels.FromClaims(claims, auth.GetToken(ctx)), true
}

// fail logs the failure at a level matching its code and writes the envelope.
func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, op string, err error) {
	code := dErrors.CodeOf(err)
	attrs := []any{
		"op", op,
		"code", string(code),
		"error", err,
		"request_id", requestcontext.RequestID(ctx),
	}
	switch code {
	case dErrors.CodeInternal, dErrors.CodeUpstreamUnavailable:
		h.logger.ErrorContext(ctx, "request failed", attrs...)
	default:
		h.logger.WarnContext(ctx, "request rejected", attrs...)
	}
	httputil.WriteError(w, err)
}

func queryLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, dErrors.New(dErrors.CodeBadRequest, "invalid limit")
	}
	return n, nil
}

func queryTime(r *http.Request, key string) (time.Time, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, dErrors.New(dErrors.CodeBadRequest, "invalid "+key)
	}
	return t, nil
}
