// Package seed loads the DigitalBank demo population: two customers with
// accounts and card transactions, one analyst and one admin. Identifiers are
// derived from emails and account numbers, so seeding twice is harmless.
package seed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"digitalbank/internal/identity"
	"digitalbank/internal/ledger/models"
	"digitalbank/internal/ledger/ports"
	sessionModels "digitalbank/internal/session/models"
	id "digitalbank/pkg/domain"
	"digitalbank/pkg/platform/sentinel"
)

// DefaultPassword is used for any demo principal without a configured one.
const DefaultPassword = "SecureTest123!"

var namespace = uuid.MustParse("6f1c2a4e-8b0d-4f5e-9a3c-d1b2c3e4f5a6")

// CredentialSaver persists principal secrets.
type CredentialSaver interface {
	Save(ctx context.Context, c *sessionModels.Credential) error
}

// Person is one demo principal.
type Person struct {
	Email     string
	Password  string
	Role      identity.Role
	FirstName string
	LastName  string
	Phone     string
	City      string
}

type demoAccount struct {
	owner    string
	number   string
	kind     models.AccountType
	balance  int64
	currency string
}

type demoTransaction struct {
	account  string
	amount   int64
	merchant string
	category string
	daysAgo  int
	flagged  bool
}

// Population returns the demo principals. Passwords given in overrides,
// keyed by role, replace DefaultPassword for the first principal of that role.
func Population(overrides map[identity.Role]Person) []Person {
	people := []Person{
		{Email: "jean.dupont@digitalbank.fr", Role: identity.RoleCustomer, FirstName: "Jean", LastName: "Dupont", Phone: "+33612345678", City: "Paris"},
		{Email: "marie.martin@digitalbank.fr", Role: identity.RoleCustomer, FirstName: "Marie", LastName: "Martin", Phone: "+33698765432", City: "Lyon"},
		{Email: "analyst@digitalbank.fr", Role: identity.RoleAnalyst},
		{Email: "admin@digitalbank.fr", Role: identity.RoleAdmin},
	}
	seen := map[identity.Role]bool{}
	for i := range people {
		people[i].Password = DefaultPassword
		if seen[people[i].Role] {
			continue
		}
		seen[people[i].Role] = true
		if o, ok := overrides[people[i].Role]; ok {
			if o.Email != "" {
				people[i].Email = o.Email
			}
			if o.Password != "" {
				people[i].Password = o.Password
			}
		}
	}
	return people
}

var accounts = []demoAccount{
	{owner: "jean.dupont@digitalbank.fr", number: "FR7630001007941234567890185", kind: models.AccountTypeChecking, balance: 542050, currency: "EUR"},
	{owner: "jean.dupont@digitalbank.fr", number: "FR7630004000031234567890143", kind: models.AccountTypeSavings, balance: 1250000, currency: "EUR"},
	{owner: "marie.martin@digitalbank.fr", number: "FR7610107001011234567890129", kind: models.AccountTypeChecking, balance: 318075, currency: "EUR"},
}

var transactions = []demoTransaction{
	{account: "FR7630001007941234567890185", amount: -4250, merchant: "Carrefour", category: "groceries", daysAgo: 1},
	{account: "FR7630001007941234567890185", amount: -1890, merchant: "SNCF", category: "transport", daysAgo: 3},
	{account: "FR7630001007941234567890185", amount: -249900, merchant: "Electro Depot Online", category: "electronics", daysAgo: 4, flagged: true},
	{account: "FR7630004000031234567890143", amount: 50000, merchant: "Virement interne", category: "transfer", daysAgo: 10},
	{account: "FR7610107001011234567890129", amount: -6520, merchant: "Fnac", category: "shopping", daysAgo: 2},
	{account: "FR7610107001011234567890129", amount: 215000, merchant: "Salaire", category: "income", daysAgo: 15},
}

// PrincipalID derives the identifier of a demo principal from its email.
func PrincipalID(email string) id.PrincipalID {
	return id.PrincipalID(uuid.NewSHA1(namespace, []byte("principal:"+email)))
}

func accountID(number string) id.AccountID {
	return id.AccountID(uuid.NewSHA1(namespace, []byte("account:"+number)))
}

func transactionID(account string, i int) id.TransactionID {
	return id.TransactionID(uuid.NewSHA1(namespace, []byte(fmt.Sprintf("transaction:%s:%d", account, i))))
}

// Result counts what a run created.
type Result struct {
	Principals   int
	Customers    int
	Accounts     int
	Transactions int
}

// Run writes the population. Existing ledger rows are left untouched;
// credentials are upserted so passwords follow the current configuration.
func Run(ctx context.Context, creds CredentialSaver, ledger ports.Store, people []Person, now time.Time, logger *slog.Logger) (Result, error) {
	var res Result
	owners := map[string]id.PrincipalID{}

	for _, p := range people {
		hash, err := bcrypt.GenerateFromPassword([]byte(p.Password), bcrypt.DefaultCost)
		if err != nil {
			return res, fmt.Errorf("hash password for %s: %w", p.Email, err)
		}
		pid := PrincipalID(p.Email)
		if err := creds.Save(ctx, &sessionModels.Credential{
			PrincipalID:  pid,
			Email:        p.Email,
			PasswordHash: hash,
			Role:         p.Role,
			CreatedAt:    now,
		}); err != nil {
			return res, fmt.Errorf("save credential %s: %w", p.Email, err)
		}
		res.Principals++

		if p.Role != identity.RoleCustomer {
			continue
		}
		owners[defaultEmail(p)] = pid
		created, err := ignoreConflict(ledger.CreateCustomer(ctx, &models.CustomerProfile{
			ID:        pid,
			Email:     p.Email,
			FirstName: p.FirstName,
			LastName:  p.LastName,
			Phone:     p.Phone,
			City:      p.City,
			Status:    models.CustomerStatusActive,
			CreatedAt: now,
		}))
		if err != nil {
			return res, fmt.Errorf("create customer %s: %w", p.Email, err)
		}
		if created {
			res.Customers++
		}
	}

	for _, a := range accounts {
		owner, ok := owners[a.owner]
		if !ok {
			continue
		}
		created, err := ignoreConflict(ledger.CreateAccount(ctx, &models.Account{
			ID:        accountID(a.number),
			OwnerID:   owner,
			Number:    a.number,
			Type:      a.kind,
			Balance:   a.balance,
			Currency:  a.currency,
			Status:    models.AccountStatusActive,
			CreatedAt: now,
			UpdatedAt: now,
		}))
		if err != nil {
			return res, fmt.Errorf("create account %s: %w", a.number, err)
		}
		if created {
			res.Accounts++
		}
	}

	for i, t := range transactions {
		created, err := ignoreConflict(ledger.CreateTransaction(ctx, &models.Transaction{
			ID:        transactionID(t.account, i),
			AccountID: accountID(t.account),
			Amount:    t.amount,
			Currency:  "EUR",
			Merchant:  t.merchant,
			Category:  t.category,
			Status:    models.TransactionStatusCompleted,
			Timestamp: now.Add(-time.Duration(t.daysAgo) * 24 * time.Hour),
			FraudFlag: t.flagged,
		}))
		if errors.Is(err, sentinel.ErrNotFound) {
			continue
		}
		if err != nil {
			return res, fmt.Errorf("create transaction %d: %w", i, err)
		}
		if created {
			res.Transactions++
		}
	}

	logger.InfoContext(ctx, "demo population seeded",
		"principals", res.Principals,
		"customers", res.Customers,
		"accounts", res.Accounts,
		"transactions", res.Transactions,
	)
	return res, nil
}

// defaultEmail maps a customer back to the built-in email its demo accounts
// are keyed on, so an overridden customer email still owns Jean's accounts.
func defaultEmail(p Person) string {
	for _, d := range Population(nil) {
		if d.Role == p.Role && (d.Email == p.Email || d.FirstName == p.FirstName) {
			return d.Email
		}
	}
	return p.Email
}

func ignoreConflict(err error) (bool, error) {
	if errors.Is(err, sentinel.ErrConflict) {
		return false, nil
	}
	return err == nil, err
}
