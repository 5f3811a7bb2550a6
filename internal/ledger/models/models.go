// Package models holds the bank entities the ledger gateway guards. Amounts
// are integer minor units (cents) so that no arithmetic ever rounds.
package models

import (
	"time"

	id "digitalbank/pkg/domain"
	dErrors "digitalbank/pkg/domain-errors"
)

type AccountType string

const (
	AccountTypeChecking AccountType = "checking"
	AccountTypeSavings  AccountType = "savings"
	AccountTypeBusiness AccountType = "business"
)

type AccountStatus string

const (
	AccountStatusActive AccountStatus = "active"
	AccountStatusFrozen AccountStatus = "frozen"
	AccountStatusClosed AccountStatus = "closed"
)

func (s AccountStatus) IsValid() bool {
	return s == AccountStatusActive || s == AccountStatusFrozen || s == AccountStatusClosed
}

// Account is owned by exactly one customer.
type Account struct {
	ID        id.AccountID   `json:"account_id"`
	OwnerID   id.PrincipalID `json:"customer_id"`
	Number    string         `json:"account_number"`
	Type      AccountType    `json:"account_type"`
	Balance   int64          `json:"balance"`
	Currency  string         `json:"currency"`
	Status    AccountStatus  `json:"status"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusRejected  TransactionStatus = "rejected"
)

// Transaction belongs to exactly one account; its owner is that account's owner.
type Transaction struct {
	ID        id.TransactionID  `json:"transaction_id"`
	AccountID id.AccountID      `json:"account_id"`
	Amount    int64             `json:"amount"`
	Currency  string            `json:"currency"`
	Merchant  string            `json:"merchant"`
	Category  string            `json:"category"`
	Status    TransactionStatus `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	FraudFlag bool              `json:"fraud_flag"`
}

type CustomerStatus string

const (
	CustomerStatusActive  CustomerStatus = "active"
	CustomerStatusBlocked CustomerStatus = "blocked"
)

// CustomerProfile shares its id with the customer's principal.
type CustomerProfile struct {
	ID        id.PrincipalID `json:"customer_id"`
	Email     string         `json:"email"`
	FirstName string         `json:"first_name"`
	LastName  string         `json:"last_name"`
	Phone     string         `json:"phone,omitempty"`
	City      string         `json:"city,omitempty"`
	Status    CustomerStatus `json:"status"`
	LastLogin *time.Time     `json:"last_login,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// AccountUpdate is a partial account change. Nil fields are left alone.
type AccountUpdate struct {
	Balance *int64         `json:"balance,omitempty"`
	Status  *AccountStatus `json:"status,omitempty"`
}

func (u AccountUpdate) Validate() error {
	if u.Balance == nil && u.Status == nil {
		return dErrors.New(dErrors.CodeBadRequest, "no fields to update")
	}
	if u.Status != nil && !u.Status.IsValid() {
		return dErrors.New(dErrors.CodeBadRequest, "invalid account status")
	}
	return nil
}

// Apply writes the update onto a and returns a description of the change.
func (u AccountUpdate) Apply(a *Account) string {
	var detail string
	if u.Balance != nil {
		a.Balance = *u.Balance
		detail = "balance"
	}
	if u.Status != nil {
		a.Status = *u.Status
		if detail != "" {
			detail += ","
		}
		detail += "status=" + string(*u.Status)
	}
	return detail
}

// CustomerUpdate changes a customer's contact fields.
type CustomerUpdate struct {
	FirstName *string `json:"first_name,omitempty"`
	LastName  *string `json:"last_name,omitempty"`
	Phone     *string `json:"phone,omitempty"`
	City      *string `json:"city,omitempty"`
}

func (u CustomerUpdate) Validate() error {
	if u.FirstName == nil && u.LastName == nil && u.Phone == nil && u.City == nil {
		return dErrors.New(dErrors.CodeBadRequest, "no fields to update")
	}
	if (u.FirstName != nil && *u.FirstName == "") || (u.LastName != nil && *u.LastName == "") {
		return dErrors.New(dErrors.CodeBadRequest, "name cannot be empty")
	}
	return nil
}

func (u CustomerUpdate) Apply(c *CustomerProfile) {
	if u.FirstName != nil {
		c.FirstName = *u.FirstName
	}
	if u.LastName != nil {
		c.LastName = *u.LastName
	}
	if u.Phone != nil {
		c.Phone = *u.Phone
	}
	if u.City != nil {
		c.City = *u.City
	}
}

// NewTransaction is a transaction a principal asks to record on an account.
type NewTransaction struct {
	AccountID id.AccountID `json:"account_id"`
	Amount    int64        `json:"amount"`
	Currency  string       `json:"currency"`
	Merchant  string       `json:"merchant"`
	Category  string       `json:"category"`
}

func (n NewTransaction) Validate() error {
	if n.AccountID.IsNil() {
		return dErrors.New(dErrors.CodeBadRequest, "account id is required")
	}
	if n.Amount == 0 {
		return dErrors.New(dErrors.CodeBadRequest, "amount must not be zero")
	}
	if len(n.Currency) != 3 {
		return dErrors.New(dErrors.CodeBadRequest, "currency must be a 3-letter code")
	}
	if n.Merchant == "" {
		return dErrors.New(dErrors.CodeBadRequest, "merchant is required")
	}
	return nil
}

const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

// ClampLimit maps a requested page size into [1, MaxListLimit].
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultListLimit
	case limit > MaxListLimit:
		return MaxListLimit
	}
	return limit
}

// TransactionFilter scopes a transaction listing. A nil OwnerID means every
// owner; a nil AccountID means every account.
type TransactionFilter struct {
	OwnerID   id.PrincipalID
	AccountID id.AccountID
	Limit     int
}
