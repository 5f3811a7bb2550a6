package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"digitalbank/internal/ledger/models"
	id "digitalbank/pkg/domain"
	"digitalbank/pkg/platform/sentinel"
)

func seedAccount(t *testing.T, s *InMemoryStore, owner id.PrincipalID, number string) *models.Account {
	t.Helper()
	a := &models.Account{
		ID: id.NewAccountID(), OwnerID: owner, Number: number,
		Type: models.AccountTypeChecking, Balance: 10_000, Currency: "EUR",
		Status: models.AccountStatusActive, CreatedAt: time.Now(),
	}
	require.NoError(t, s.CreateAccount(context.Background(), a))
	return a
}

func TestRunInTxRollsBackOnError(t *testing.T) {
	s := New()
	ctx := context.Background()
	a := seedAccount(t, s, id.NewPrincipalID(), "FR76-1")

	boom := errors.New("audit down")
	err := s.RunInTx(ctx, func(ctx context.Context) error {
		updated := *a
		updated.Balance = 0
		require.NoError(t, s.UpdateAccount(ctx, &updated))
		require.NoError(t, s.CreateTransaction(ctx, &models.Transaction{ID: id.NewTransactionID(), AccountID: a.ID, Amount: -10_000}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := s.GetAccount(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(10_000), got.Balance)

	txs, err := s.ListTransactions(ctx, models.TransactionFilter{})
	require.NoError(t, err)
	assert.Empty(t, txs)
}

func TestRunInTxCommits(t *testing.T) {
	s := New()
	ctx := context.Background()
	a := seedAccount(t, s, id.NewPrincipalID(), "FR76-1")

	err := s.RunInTx(ctx, func(ctx context.Context) error {
		updated := *a
		updated.Status = models.AccountStatusFrozen
		// Nested units of work join the outer one.
		return s.RunInTx(ctx, func(ctx context.Context) error {
			return s.UpdateAccount(ctx, &updated)
		})
	})
	require.NoError(t, err)

	got, err := s.GetAccount(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AccountStatusFrozen, got.Status)
}

func TestListTransactionsScopesByOwner(t *testing.T) {
	s := New()
	ctx := context.Background()
	jean, marie := id.NewPrincipalID(), id.NewPrincipalID()
	a1 := seedAccount(t, s, jean, "FR76-1")
	a3 := seedAccount(t, s, marie, "FR76-3")
	now := time.Now()
	require.NoError(t, s.CreateTransaction(ctx, &models.Transaction{ID: id.NewTransactionID(), AccountID: a1.ID, Timestamp: now}))
	require.NoError(t, s.CreateTransaction(ctx, &models.Transaction{ID: id.NewTransactionID(), AccountID: a3.ID, Timestamp: now}))

	txs, err := s.ListTransactions(ctx, models.TransactionFilter{OwnerID: jean})
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, a1.ID, txs[0].AccountID)

	err = s.CreateTransaction(ctx, &models.Transaction{ID: id.NewTransactionID(), AccountID: id.NewAccountID()})
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestCreateAccountRejectsDuplicateNumber(t *testing.T) {
	s := New()
	seedAccount(t, s, id.NewPrincipalID(), "FR76-1")
	err := s.CreateAccount(context.Background(), &models.Account{ID: id.NewAccountID(), Number: "FR76-1"})
	assert.ErrorIs(t, err, sentinel.ErrConflict)
}

func TestReadsOutsideUnitOfWorkWaitForRollback(t *testing.T) {
	s := New()
	ctx := context.Background()
	a := seedAccount(t, s, id.NewPrincipalID(), "FR76-1")

	written := make(chan struct{})
	release := make(chan struct{})
	txDone := make(chan error, 1)
	go func() {
		txDone <- s.RunInTx(ctx, func(ctx context.Context) error {
			updated := *a
			updated.Status = models.AccountStatusClosed
			if err := s.UpdateAccount(ctx, &updated); err != nil {
				return err
			}
			close(written)
			<-release
			return errors.New("audit down")
		})
	}()
	<-written

	read := make(chan *models.Account, 1)
	go func() {
		got, err := s.GetAccount(ctx, a.ID)
		assert.NoError(t, err)
		read <- got
	}()

	select {
	case <-read:
		t.Fatal("read returned while a unit of work was open")
	case <-time.After(50 * time.Millisecond):
	}
	close(release)
	require.Error(t, <-txDone)

	got := <-read
	require.NotNil(t, got)
	assert.Equal(t, models.AccountStatusActive, got.Status)
}

func TestForUpdateLookupsInsideUnitOfWork(t *testing.T) {
	s := New()
	ctx := context.Background()
	a := seedAccount(t, s, id.NewPrincipalID(), "FR76-1")

	err := s.RunInTx(ctx, func(ctx context.Context) error {
		got, err := s.GetAccountForUpdate(ctx, a.ID)
		require.NoError(t, err)
		got.Balance = 1
		return s.UpdateAccount(ctx, got)
	})
	require.NoError(t, err)

	got, err := s.GetAccount(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Balance)

	_, err = s.GetTransactionForUpdate(ctx, id.NewTransactionID())
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
	_, err = s.GetCustomerForUpdate(ctx, id.NewPrincipalID())
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}
