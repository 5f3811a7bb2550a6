// Package conformance exercises a running DigitalBank service over HTTP and
// checks that row scoping and write permissions match each role.
package conformance

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"digitalbank/internal/identity"
)

// Subject is a principal the suite signs in as.
type Subject struct {
	Role     identity.Role
	Email    string
	Password string
}

// Check is the outcome of one expectation.
type Check struct {
	Role   string `json:"role" yaml:"role"`
	Name   string `json:"check" yaml:"check"`
	Passed bool   `json:"passed" yaml:"passed"`
	Detail string `json:"detail" yaml:"detail"`
}

type Report struct {
	Checks []Check `json:"checks" yaml:"checks"`
}

// Failed counts the checks that did not pass.
func (r Report) Failed() int {
	n := 0
	for _, c := range r.Checks {
		if !c.Passed {
			n++
		}
	}
	return n
}

// Runner talks to one service instance.
type Runner struct {
	baseURL string
	client  *http.Client
}

func New(baseURL string, client *http.Client) *Runner {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Runner{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

type account struct {
	ID       string `json:"account_id"`
	Customer string `json:"customer_id"`
	Balance  int64  `json:"balance"`
}

type session struct {
	Token     string             `json:"token"`
	Principal identity.Principal `json:"principal"`
}

// Run checks anonymous access first, then every subject in order. Transport
// failures abort the run; unexpected responses are recorded as failed checks.
func (r *Runner) Run(ctx context.Context, subjects []Subject) (Report, error) {
	var rep Report
	if err := r.checkAnonymous(ctx, &rep); err != nil {
		return rep, err
	}
	for _, s := range subjects {
		if err := r.checkSubject(ctx, &rep, s); err != nil {
			return rep, fmt.Errorf("%s: %w", s.Role, err)
		}
	}
	return rep, nil
}

func (r *Runner) checkAnonymous(ctx context.Context, rep *Report) error {
	accounts, status, err := r.listAccounts(ctx, "")
	if err != nil {
		return err
	}
	rep.add("anonymous", "sees no accounts", status == http.StatusOK && len(accounts) == 0,
		fmt.Sprintf("status %d, %d account(s)", status, len(accounts)))
	return nil
}

func (r *Runner) checkSubject(ctx context.Context, rep *Report, s Subject) error {
	role := string(s.Role)
	var sess session
	status, err := r.do(ctx, http.MethodPost, "/auth/login", "", map[string]string{
		"email":    s.Email,
		"password": s.Password,
	}, &sess)
	if err != nil {
		return err
	}
	rep.add(role, "login", status == http.StatusOK, fmt.Sprintf("status %d", status))
	if status != http.StatusOK {
		return nil
	}
	defer func() {
		_, _ = r.do(ctx, http.MethodPost, "/auth/logout", sess.Token, nil, nil)
	}()

	accounts, status, err := r.listAccounts(ctx, sess.Token)
	if err != nil {
		return err
	}
	switch s.Role {
	case identity.RoleCustomer:
		own := true
		for _, a := range accounts {
			if a.Customer != sess.Principal.ID.String() {
				own = false
			}
		}
		rep.add(role, "sees only own accounts", status == http.StatusOK && own && len(accounts) > 0,
			fmt.Sprintf("%d account(s)", len(accounts)))
	default:
		rep.add(role, "sees accounts", status == http.StatusOK && len(accounts) > 0,
			fmt.Sprintf("%d account(s)", len(accounts)))
	}
	if len(accounts) == 0 {
		return nil
	}

	// Writing the current balance back keeps the data unchanged while still
	// going through the write path.
	target := accounts[0]
	status, err = r.do(ctx, http.MethodPatch, "/accounts/"+target.ID, sess.Token,
		map[string]int64{"balance": target.Balance}, nil)
	if err != nil {
		return err
	}
	if s.Role == identity.RoleAdmin {
		rep.add(role, "can update balance", status == http.StatusOK, fmt.Sprintf("status %d", status))
	} else {
		rep.add(role, "cannot update balance", status == http.StatusForbidden, fmt.Sprintf("status %d", status))
	}

	var logs struct {
		Entries []json.RawMessage `json:"audit_logs"`
	}
	status, err = r.do(ctx, http.MethodGet, "/audit-logs", sess.Token, nil, &logs)
	if err != nil {
		return err
	}
	if s.Role == identity.RoleAdmin {
		rep.add(role, "sees audit logs", status == http.StatusOK && len(logs.Entries) > 0,
			fmt.Sprintf("%d entr(ies)", len(logs.Entries)))
	} else {
		rep.add(role, "sees no audit logs", status == http.StatusOK && len(logs.Entries) == 0,
			fmt.Sprintf("%d entr(ies)", len(logs.Entries)))
	}
	return nil
}

func (r *Runner) listAccounts(ctx context.Context, token string) ([]account, int, error) {
	var resp struct {
		Accounts []account `json:"accounts"`
	}
	status, err := r.do(ctx, http.MethodGet, "/accounts", token, nil, &resp)
	return resp.Accounts, status, err
}

// do sends a JSON request and decodes a 2xx body into out when out is set.
func (r *Runner) do(ctx context.Context, method, path, token string, body, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, r.baseURL+path, reader)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, nil
	}
	if out != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode %s %s: %w", method, path, err)
		}
	}
	return resp.StatusCode, nil
}

func (rep *Report) add(role, name string, passed bool, detail string) {
	rep.Checks = append(rep.Checks, Check{Role: role, Name: name, Passed: passed, Detail: detail})
}
