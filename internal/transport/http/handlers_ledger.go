package httptransport

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"digitalbank/internal/audit"
	"digitalbank/internal/identity"
	ledgerModels "digitalbank/internal/ledger/models"
	ledgerService "digitalbank/internal/ledger/service"
	id "digitalbank/pkg/domain"
	"digitalbank/pkg/platform/httputil"
)

// handleListAccounts handles GET /accounts.
func (h *Handler) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	limit, err := queryLimit(r)
	if err != nil {
		h.fail(ctx, w, "list_accounts", err)
		return
	}
	accounts, err := h.ledger.ListAccounts(ctx, identity.FromContext(ctx), limit)
	if err != nil {
		h.fail(ctx, w, "list_accounts", err)
		return
	}
	if accounts == nil {
		accounts = []*ledgerModels.Account{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"accounts": accounts})
}

// handleGetAccount handles GET /accounts/{id}.
func (h *Handler) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	accountID, err := id.ParseAccountID(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(ctx, w, "get_account", err)
		return
	}
	account, err := h.ledger.GetAccount(ctx, identity.FromContext(ctx), accountID)
	if err != nil {
		h.fail(ctx, w, "get_account", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, account)
}

// handleUpdateAccount handles PATCH /accounts/{id}.
func (h *Handler) handleUpdateAccount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	accountID, err := id.ParseAccountID(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(ctx, w, "update_account", err)
		return
	}
	update, err := httputil.DecodeJSON[ledgerModels.AccountUpdate](r)
	if err != nil {
		h.fail(ctx, w, "update_account", err)
		return
	}
	account, err := h.ledger.UpdateAccount(ctx, identity.FromContext(ctx), accountID, *update)
	if err != nil {
		h.fail(ctx, w, "update_account", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, account)
}

// handleAccountTransactions handles GET /accounts/{id}/transactions.
func (h *Handler) handleAccountTransactions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	accountID, err := id.ParseAccountID(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(ctx, w, "list_account_transactions", err)
		return
	}
	h.listTransactions(w, r, accountID)
}

// handleListTransactions handles GET /transactions with an optional
// account_id filter.
func (h *Handler) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var accountID id.AccountID
	if raw := r.URL.Query().Get("account_id"); raw != "" {
		parsed, err := id.ParseAccountID(raw)
		if err != nil {
			h.fail(ctx, w, "list_transactions", err)
			return
		}
		accountID = parsed
	}
	h.listTransactions(w, r, accountID)
}

func (h *Handler) listTransactions(w http.ResponseWriter, r *http.Request, accountID id.AccountID) {
	ctx := r.Context()
	limit, err := queryLimit(r)
	if err != nil {
		h.fail(ctx, w, "list_transactions", err)
		return
	}
	txs, err := h.ledger.ListTransactions(ctx, identity.FromContext(ctx), ledgerService.TransactionQuery{
		AccountID: accountID,
		Limit:     limit,
	})
	if err != nil {
		h.fail(ctx, w, "list_transactions", err)
		return
	}
	if txs == nil {
		txs = []*ledgerModels.Transaction{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"transactions": txs})
}

// handleCreateTransaction handles POST /transactions.
func (h *Handler) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, err := httputil.DecodeJSON[ledgerModels.NewTransaction](r)
	if err != nil {
		h.fail(ctx, w, "create_transaction", err)
		return
	}
	created, err := h.ledger.CreateTransaction(ctx, identity.FromContext(ctx), *req)
	if err != nil {
		h.fail(ctx, w, "create_transaction", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, created)
}

// handleGetTransaction handles GET /transactions/{id}.
func (h *Handler) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	txID, err := id.ParseTransactionID(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(ctx, w, "get_transaction", err)
		return
	}
	txn, err := h.ledger.GetTransaction(ctx, identity.FromContext(ctx), txID)
	if err != nil {
		h.fail(ctx, w, "get_transaction", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, txn)
}

// handleFlagTransaction handles PATCH /transactions/{id}.
func (h *Handler) handleFlagTransaction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	txID, err := id.ParseTransactionID(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(ctx, w, "flag_transaction", err)
		return
	}
	req, err := httputil.DecodeJSON[FlagRequest](r)
	if err == nil {
		err = req.Validate()
	}
	if err != nil {
		h.fail(ctx, w, "flag_transaction", err)
		return
	}
	txn, err := h.ledger.FlagTransaction(ctx, identity.FromContext(ctx), txID, *req.FraudFlag)
	if err != nil {
		h.fail(ctx, w, "flag_transaction", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, txn)
}

// handleGetCustomer handles GET /customers/{id}.
func (h *Handler) handleGetCustomer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	customerID, err := id.ParsePrincipalID(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(ctx, w, "get_customer", err)
		return
	}
	customer, err := h.ledger.GetCustomer(ctx, identity.FromContext(ctx), customerID)
	if err != nil {
		h.fail(ctx, w, "get_customer", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, customer)
}

// handleUpdateCustomer handles PATCH /customers/{id}.
func (h *Handler) handleUpdateCustomer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	customerID, err := id.ParsePrincipalID(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(ctx, w, "update_customer", err)
		return
	}
	update, err := httputil.DecodeJSON[ledgerModels.CustomerUpdate](r)
	if err != nil {
		h.fail(ctx, w, "update_customer", err)
		return
	}
	customer, err := h.ledger.UpdateCustomer(ctx, identity.FromContext(ctx), customerID, *update)
	if err != nil {
		h.fail(ctx, w, "update_customer", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, customer)
}

// handleListAuditLog handles GET /audit-logs. Filters: actor_id, target,
// since (RFC 3339) and limit.
func (h *Handler) handleListAuditLog(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var (
		filter audit.Filter
		err    error
	)
	if raw := r.URL.Query().Get("actor_id"); raw != "" {
		if filter.ActorID, err = id.ParsePrincipalID(raw); err != nil {
			h.fail(ctx, w, "list_audit_log", err)
			return
		}
	}
	filter.Target = r.URL.Query().Get("target")
	if filter.Since, err = queryTime(r, "since"); err != nil {
		h.fail(ctx, w, "list_audit_log", err)
		return
	}
	if filter.Limit, err = queryLimit(r); err != nil {
		h.fail(ctx, w, "list_audit_log", err)
		return
	}

	entries, err := h.ledger.ListAuditLog(ctx, identity.FromContext(ctx), filter)
	if err != nil {
		h.fail(ctx, w, "list_audit_log", err)
		return
	}
	if entries == nil {
		entries = []*audit.Entry{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"audit_logs": entries})
}
