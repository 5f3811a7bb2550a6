package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	"digitalbank/internal/audit"
	auditStore "digitalbank/internal/audit/store/memory"
	"digitalbank/internal/identity"
	"digitalbank/internal/ledger/models"
	"digitalbank/internal/ledger/store/memory"
	"digitalbank/internal/policy"
	"digitalbank/internal/policy/metrics"
	id "digitalbank/pkg/domain"
	dErrors "digitalbank/pkg/domain-errors"
	"digitalbank/pkg/requestcontext"
)

// switchableAuditStore fails appends while err is set.
type switchableAuditStore struct {
	*auditStore.InMemoryStore
	err error
}

func (s *switchableAuditStore) Append(ctx context.Context, e *audit.Entry) error {
	if s.err != nil {
		return s.err
	}
	return s.InMemoryStore.Append(ctx, e)
}

// pausingStore holds the first account lookup until release is closed.
type pausingStore struct {
	*memory.InMemoryStore
	once    sync.Once
	reached chan struct{}
	release chan struct{}
}

func (s *pausingStore) pause() {
	s.once.Do(func() {
		close(s.reached)
		<-s.release
	})
}

func (s *pausingStore) GetAccount(ctx context.Context, accountID id.AccountID) (*models.Account, error) {
	s.pause()
	return s.InMemoryStore.GetAccount(ctx, accountID)
}

func (s *pausingStore) GetAccountForUpdate(ctx context.Context, accountID id.AccountID) (*models.Account, error) {
	s.pause()
	return s.InMemoryStore.GetAccountForUpdate(ctx, accountID)
}

type ServiceSuite struct {
	suite.Suite
	store      *memory.InMemoryStore
	auditStore *switchableAuditStore
	metrics    *metrics.Metrics
	svc        *Service
	now        time.Time

	jean, marie, analyst, admin identity.Principal
	a1, a2, a3                  *models.Account
	t1, t2, t3                  *models.Transaction
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.now = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	s.store = memory.New()
	s.auditStore = &switchableAuditStore{InMemoryStore: auditStore.NewInMemoryStore()}
	recorder, err := audit.NewRecorder(s.auditStore)
	s.Require().NoError(err)
	s.metrics = metrics.New(prometheus.NewRegistry())
	svc, err := New(s.store, recorder, WithMetrics(s.metrics))
	s.Require().NoError(err)
	s.svc = svc

	s.jean = s.principal("jean.dupont@email.fr", identity.RoleCustomer)
	s.marie = s.principal("marie.martin@email.fr", identity.RoleCustomer)
	s.analyst = s.principal("analyst@digitalbank.fr", identity.RoleAnalyst)
	s.admin = s.principal("admin@digitalbank.fr", identity.RoleAdmin)

	s.customer(s.jean, "Jean", "Dupont")
	s.customer(s.marie, "Marie", "Martin")
	s.a1 = s.account(s.jean, "FR7630001007941234567890185", models.AccountTypeChecking, 250_000)
	s.a2 = s.account(s.jean, "FR7630001007949876543210185", models.AccountTypeSavings, 1_200_000)
	s.a3 = s.account(s.marie, "FR7630004000031234567890143", models.AccountTypeChecking, 84_050)
	s.t1 = s.transaction(s.a1, -4_599, "Carrefour", "groceries", 0)
	s.t2 = s.transaction(s.a2, 50_000, "Virement", "transfer", time.Minute)
	s.t3 = s.transaction(s.a3, -129_900, "Fnac", "electronics", 2*time.Minute)
}

func (s *ServiceSuite) principal(email string, role identity.Role) identity.Principal {
	return identity.Principal{ID: id.NewPrincipalID(), Email: email, Role: role, MFALevel: identity.MFALevelNone}
}

func (s *ServiceSuite) customer(p identity.Principal, first, last string) {
	s.Require().NoError(s.store.CreateCustomer(context.Background(), &models.CustomerProfile{
		ID: p.ID, Email: p.Email, FirstName: first, LastName: last,
		City: "Paris", Status: models.CustomerStatusActive, CreatedAt: s.now,
	}))
}

func (s *ServiceSuite) account(owner identity.Principal, number string, kind models.AccountType, balance int64) *models.Account {
	a := &models.Account{
		ID: id.NewAccountID(), OwnerID: owner.ID, Number: number, Type: kind,
		Balance: balance, Currency: "EUR", Status: models.AccountStatusActive,
		CreatedAt: s.now, UpdatedAt: s.now,
	}
	s.Require().NoError(s.store.CreateAccount(context.Background(), a))
	return a
}

func (s *ServiceSuite) transaction(a *models.Account, amount int64, merchant, category string, offset time.Duration) *models.Transaction {
	t := &models.Transaction{
		ID: id.NewTransactionID(), AccountID: a.ID, Amount: amount, Currency: "EUR",
		Merchant: merchant, Category: category, Status: models.TransactionStatusCompleted,
		Timestamp: s.now.Add(offset),
	}
	s.Require().NoError(s.store.CreateTransaction(context.Background(), t))
	return t
}

func (s *ServiceSuite) ctx() context.Context {
	return requestcontext.WithTime(context.Background(), s.now.Add(time.Hour))
}

func (s *ServiceSuite) auditCount() int {
	return s.auditStore.Count()
}

func accountIDs(accounts []*models.Account) []id.AccountID {
	out := make([]id.AccountID, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, a.ID)
	}
	return out
}

func (s *ServiceSuite) TestCustomerSeesOnlyOwnAccounts() {
	accounts, err := s.svc.ListAccounts(s.ctx(), s.jean, 0)
	s.Require().NoError(err)
	s.ElementsMatch([]id.AccountID{s.a1.ID, s.a2.ID}, accountIDs(accounts))

	got, err := s.svc.GetAccount(s.ctx(), s.jean, s.a1.ID)
	s.Require().NoError(err)
	s.Equal(s.a1.Number, got.Number)

	_, err = s.svc.GetAccount(s.ctx(), s.jean, s.a3.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	s.Run("a foreign account looks exactly like a missing one", func() {
		_, missing := s.svc.GetAccount(s.ctx(), s.jean, id.NewAccountID())
		_, foreign := s.svc.GetAccount(s.ctx(), s.jean, s.a3.ID)
		s.Equal(missing.Error(), foreign.Error())
	})

	s.Run("writing a foreign account is not found", func() {
		status := models.AccountStatusFrozen
		_, err := s.svc.UpdateAccount(s.ctx(), s.jean, s.a3.ID, models.AccountUpdate{Status: &status})
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("audit log is empty for customers", func() {
		entries, err := s.svc.ListAuditLog(s.ctx(), s.jean, audit.Filter{})
		s.Require().NoError(err)
		s.Empty(entries)
	})

	s.Equal(2.0, testutil.ToFloat64(s.metrics.Decisions.WithLabelValues(
		string(policy.ResourceAccount), string(policy.ActionRead), string(policy.Deny), string(policy.RuleNotOwner))))
}

func (s *ServiceSuite) TestCustomerWritesOwnAccountWithAudit() {
	status := models.AccountStatusFrozen
	updated, err := s.svc.UpdateAccount(s.ctx(), s.jean, s.a1.ID, models.AccountUpdate{Status: &status})
	s.Require().NoError(err)
	s.Equal(models.AccountStatusFrozen, updated.Status)
	s.Equal(1, s.auditCount())

	s.Run("customers cannot adjust balances", func() {
		balance := int64(999_999_999)
		_, err := s.svc.UpdateAccount(s.ctx(), s.jean, s.a1.ID, models.AccountUpdate{Balance: &balance})
		s.True(dErrors.HasCode(err, dErrors.CodePermissionDenied))
		got, err := s.svc.GetAccount(s.ctx(), s.jean, s.a1.ID)
		s.Require().NoError(err)
		s.Equal(s.a1.Balance, got.Balance)
	})
}

func (s *ServiceSuite) TestAdminWriteIsAuditedExactlyOnce() {
	before := s.auditCount()
	balance := int64(542_050)

	updated, err := s.svc.UpdateAccount(s.ctx(), s.admin, s.a3.ID, models.AccountUpdate{Balance: &balance})
	s.Require().NoError(err)
	s.Equal(balance, updated.Balance)
	s.Equal(before+1, s.auditCount())

	entries, err := s.svc.ListAuditLog(s.ctx(), s.admin, audit.Filter{Target: s.a3.ID.String()})
	s.Require().NoError(err)
	s.Require().Len(entries, 1)
	s.Equal(s.admin.ID, entries[0].ActorID)
	s.Equal("write", entries[0].Action)
	s.Equal(s.a3.ID.String(), entries[0].Target)
	s.Equal("account", entries[0].TargetType)
}

func (s *ServiceSuite) TestAuditFailureAbortsWrite() {
	s.auditStore.err = errors.New("connection refused")
	balance := int64(0)

	_, err := s.svc.UpdateAccount(s.ctx(), s.admin, s.a3.ID, models.AccountUpdate{Balance: &balance})
	s.True(dErrors.HasCode(err, dErrors.CodeUpstreamUnavailable))

	got, err := s.svc.GetAccount(s.ctx(), s.admin, s.a3.ID)
	s.Require().NoError(err)
	s.Equal(s.a3.Balance, got.Balance)
	s.Zero(s.auditCount())

	s.Run("flagging rolls back too", func() {
		_, err := s.svc.FlagTransaction(s.ctx(), s.admin, s.t3.ID, true)
		s.True(dErrors.HasCode(err, dErrors.CodeUpstreamUnavailable))
		got, err := s.svc.GetTransaction(s.ctx(), s.admin, s.t3.ID)
		s.Require().NoError(err)
		s.False(got.FraudFlag)
	})
}

func (s *ServiceSuite) TestAnalystIsReadOnly() {
	accounts, err := s.svc.ListAccounts(s.ctx(), s.analyst, 0)
	s.Require().NoError(err)
	s.Len(accounts, 3)

	txs, err := s.svc.ListTransactions(s.ctx(), s.analyst, TransactionQuery{})
	s.Require().NoError(err)
	s.Len(txs, 3)

	status := models.AccountStatusFrozen
	_, err = s.svc.UpdateAccount(s.ctx(), s.analyst, s.a1.ID, models.AccountUpdate{Status: &status})
	s.True(dErrors.HasCode(err, dErrors.CodePermissionDenied))

	_, err = s.svc.FlagTransaction(s.ctx(), s.analyst, s.t1.ID, true)
	s.True(dErrors.HasCode(err, dErrors.CodePermissionDenied))

	entries, err := s.svc.ListAuditLog(s.ctx(), s.analyst, audit.Filter{})
	s.Require().NoError(err)
	s.Empty(entries)
	s.Zero(s.auditCount())
}

func (s *ServiceSuite) TestAnonymousSeesNothing() {
	anon := identity.Anonymous()

	accounts, err := s.svc.ListAccounts(s.ctx(), anon, 0)
	s.Require().NoError(err)
	s.Empty(accounts)

	txs, err := s.svc.ListTransactions(s.ctx(), anon, TransactionQuery{})
	s.Require().NoError(err)
	s.Empty(txs)

	_, err = s.svc.GetAccount(s.ctx(), anon, s.a1.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	_, err = s.svc.GetCustomer(s.ctx(), anon, s.jean.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	status := models.AccountStatusFrozen
	_, err = s.svc.UpdateAccount(s.ctx(), anon, s.a1.ID, models.AccountUpdate{Status: &status})
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestTransactionsInheritAccountOwner() {
	txs, err := s.svc.ListTransactions(s.ctx(), s.jean, TransactionQuery{})
	s.Require().NoError(err)
	s.Require().Len(txs, 2)
	s.Equal(s.t2.ID, txs[0].ID, "newest first")
	s.Equal(s.t1.ID, txs[1].ID)

	byAccount, err := s.svc.ListTransactions(s.ctx(), s.jean, TransactionQuery{AccountID: s.a1.ID})
	s.Require().NoError(err)
	s.Require().Len(byAccount, 1)
	s.Equal(s.t1.ID, byAccount[0].ID)

	_, err = s.svc.ListTransactions(s.ctx(), s.jean, TransactionQuery{AccountID: s.a3.ID})
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	_, err = s.svc.GetTransaction(s.ctx(), s.jean, s.t3.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	got, err := s.svc.GetTransaction(s.ctx(), s.jean, s.t1.ID)
	s.Require().NoError(err)
	s.Equal(s.a1.ID, got.AccountID)
}

func (s *ServiceSuite) TestFraudFlagIsAdminOnly() {
	_, err := s.svc.FlagTransaction(s.ctx(), s.jean, s.t1.ID, true)
	s.True(dErrors.HasCode(err, dErrors.CodePermissionDenied))

	_, err = s.svc.FlagTransaction(s.ctx(), s.jean, s.t3.ID, true)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	flagged, err := s.svc.FlagTransaction(s.ctx(), s.admin, s.t3.ID, true)
	s.Require().NoError(err)
	s.True(flagged.FraudFlag)
	s.Equal(1, s.auditCount())
}

func (s *ServiceSuite) TestCreateTransaction() {
	n := models.NewTransaction{AccountID: s.a1.ID, Amount: -2_350, Currency: "eur", Merchant: "SNCF", Category: "travel"}

	created, err := s.svc.CreateTransaction(s.ctx(), s.jean, n)
	s.Require().NoError(err)
	s.Equal("EUR", created.Currency)
	s.Equal(models.TransactionStatusCompleted, created.Status)
	s.Zero(s.auditCount(), "customer transaction writes are not audited")

	s.Run("foreign account", func() {
		foreign := n
		foreign.AccountID = s.a3.ID
		_, err := s.svc.CreateTransaction(s.ctx(), s.jean, foreign)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("currency mismatch", func() {
		usd := n
		usd.Currency = "USD"
		_, err := s.svc.CreateTransaction(s.ctx(), s.jean, usd)
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	s.Run("frozen account", func() {
		status := models.AccountStatusFrozen
		_, err := s.svc.UpdateAccount(s.ctx(), s.jean, s.a2.ID, models.AccountUpdate{Status: &status})
		s.Require().NoError(err)
		frozen := n
		frozen.AccountID = s.a2.ID
		_, err = s.svc.CreateTransaction(s.ctx(), s.jean, frozen)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("admin writes are audited", func() {
		before := s.auditCount()
		admin := n
		admin.AccountID = s.a3.ID
		_, err := s.svc.CreateTransaction(s.ctx(), s.admin, admin)
		s.Require().NoError(err)
		s.Equal(before+1, s.auditCount())
	})
}

func (s *ServiceSuite) TestCustomerProfiles() {
	got, err := s.svc.GetCustomer(s.ctx(), s.jean, s.jean.ID)
	s.Require().NoError(err)
	s.Equal("Dupont", got.LastName)

	_, err = s.svc.GetCustomer(s.ctx(), s.jean, s.marie.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	city := "Lyon"
	updated, err := s.svc.UpdateCustomer(s.ctx(), s.jean, s.jean.ID, models.CustomerUpdate{City: &city})
	s.Require().NoError(err)
	s.Equal("Lyon", updated.City)
	s.Zero(s.auditCount())

	_, err = s.svc.UpdateCustomer(s.ctx(), s.jean, s.marie.ID, models.CustomerUpdate{City: &city})
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	_, err = s.svc.UpdateCustomer(s.ctx(), s.analyst, s.marie.ID, models.CustomerUpdate{City: &city})
	s.True(dErrors.HasCode(err, dErrors.CodePermissionDenied))

	phone := "+33 6 12 34 56 78"
	_, err = s.svc.UpdateCustomer(s.ctx(), s.admin, s.marie.ID, models.CustomerUpdate{Phone: &phone})
	s.Require().NoError(err)
	s.Equal(1, s.auditCount())

	s.Run("empty update is rejected", func() {
		_, err := s.svc.UpdateCustomer(s.ctx(), s.jean, s.jean.ID, models.CustomerUpdate{})
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	})
}

func (s *ServiceSuite) TestConcurrentPartialUpdatesKeepBothChanges() {
	store := &pausingStore{
		InMemoryStore: s.store,
		reached:       make(chan struct{}),
		release:       make(chan struct{}),
	}
	recorder, err := audit.NewRecorder(s.auditStore)
	s.Require().NoError(err)
	svc, err := New(store, recorder)
	s.Require().NoError(err)

	frozen := models.AccountStatusFrozen
	balance := int64(999)
	var wg sync.WaitGroup
	errs := make(chan error, 2)

	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := svc.UpdateAccount(s.ctx(), s.jean, s.a1.ID, models.AccountUpdate{Status: &frozen})
		errs <- err
	}()
	<-store.reached

	// The freeze is parked after its read; the balance change starts now and
	// must not write back the status it saw before the freeze lands.
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := svc.UpdateAccount(s.ctx(), s.admin, s.a1.ID, models.AccountUpdate{Balance: &balance})
		errs <- err
	}()
	time.Sleep(50 * time.Millisecond)
	close(store.release)
	wg.Wait()
	close(errs)
	for err := range errs {
		s.Require().NoError(err)
	}

	got, err := s.svc.GetAccount(s.ctx(), s.admin, s.a1.ID)
	s.Require().NoError(err)
	s.Equal(models.AccountStatusFrozen, got.Status, "status change lost")
	s.Equal(balance, got.Balance, "balance change lost")
	s.Equal(2, s.auditCount())
}

func (s *ServiceSuite) TestDeniedWriteLeavesNoTrace() {
	balance := int64(1)
	_, err := s.svc.UpdateAccount(s.ctx(), s.jean, s.a3.ID, models.AccountUpdate{Balance: &balance})
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	got, err := s.svc.GetAccount(s.ctx(), s.admin, s.a3.ID)
	s.Require().NoError(err)
	s.Equal(s.a3.Balance, got.Balance)
	s.Zero(s.auditCount())
}
