package credential

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"digitalbank/internal/identity"
	"digitalbank/internal/session/models"
	id "digitalbank/pkg/domain"
	"digitalbank/pkg/platform/sentinel"
)

func TestInMemoryCredentialStore(t *testing.T) {
	ctx := context.Background()
	store := NewInMemory()
	jean := &models.Credential{
		PrincipalID:  id.NewPrincipalID(),
		Email:        "Jean.Dupont@email.fr",
		PasswordHash: []byte("hash"),
		Role:         identity.RoleCustomer,
	}
	require.NoError(t, store.Save(ctx, jean))

	t.Run("lookup is case-insensitive", func(t *testing.T) {
		found, err := store.FindByEmail(ctx, " jean.dupont@EMAIL.fr")
		require.NoError(t, err)
		assert.Equal(t, jean.PrincipalID, found.PrincipalID)
		assert.Equal(t, "jean.dupont@email.fr", found.Email)
	})

	t.Run("unknown email", func(t *testing.T) {
		_, err := store.FindByEmail(ctx, "nobody@email.fr")
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	t.Run("email taken by another principal", func(t *testing.T) {
		err := store.Save(ctx, &models.Credential{PrincipalID: id.NewPrincipalID(), Email: jean.Email})
		assert.ErrorIs(t, err, sentinel.ErrConflict)
	})

	t.Run("record login", func(t *testing.T) {
		at := time.Date(2026, 5, 1, 7, 0, 0, 0, time.UTC)
		require.NoError(t, store.RecordLogin(ctx, jean.PrincipalID, at))
		found, err := store.FindByEmail(ctx, jean.Email)
		require.NoError(t, err)
		require.NotNil(t, found.LastLoginAt)
		assert.Equal(t, at, *found.LastLoginAt)

		assert.ErrorIs(t, store.RecordLogin(ctx, id.NewPrincipalID(), at), sentinel.ErrNotFound)
	})
}
