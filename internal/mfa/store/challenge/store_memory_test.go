package challenge

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"digitalbank/internal/mfa/models"
	id "digitalbank/pkg/domain"
	"digitalbank/pkg/platform/sentinel"
)

func newChallenge(now time.Time) *models.Challenge {
	return &models.Challenge{
		ID:          id.NewChallengeID(),
		FactorID:    id.NewFactorID(),
		PrincipalID: id.NewPrincipalID(),
		CreatedAt:   now,
		ExpiresAt:   now.Add(models.DefaultChallengeTTL),
	}
}

func TestConsumeSucceedsOnce(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()
	c := newChallenge(time.Now())
	require.NoError(t, store.Create(ctx, c))

	var wins atomic.Int32
	var wg sync.WaitGroup
	for range 20 {
		wg.Go(func() {
			if _, err := store.Consume(ctx, c.ID); err == nil {
				wins.Add(1)
			}
		})
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
	_, err := store.Get(ctx, c.ID)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestCreateRejectsDuplicateID(t *testing.T) {
	store := NewInMemory()
	c := newChallenge(time.Now())
	require.NoError(t, store.Create(context.Background(), c))
	assert.ErrorIs(t, store.Create(context.Background(), c), sentinel.ErrConflict)
}

func TestPurgeExpired(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	old := newChallenge(now.Add(-time.Hour))
	fresh := newChallenge(now)
	require.NoError(t, store.Create(ctx, old))
	require.NoError(t, store.Create(ctx, fresh))

	n, err := store.PurgeExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = store.Get(ctx, fresh.ID)
	assert.NoError(t, err)
}
