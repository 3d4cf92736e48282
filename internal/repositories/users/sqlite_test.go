package users

import (
	"context"
	"errors"
	"testing"

	"github.com/dmitrijs2005/finvault/internal/common"
	"github.com/dmitrijs2005/finvault/internal/models"
	"github.com/dmitrijs2005/finvault/internal/testutil"
	"github.com/stretchr/testify/require"
)

func TestSQLiteRepository_CreateGetList(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	alice, err := repo.Create(ctx, &models.User{Name: "Alice", Color: "#336699", IsDefault: true})
	require.NoError(t, err)
	require.NotEmpty(t, alice.ID)

	_, err = repo.Create(ctx, &models.User{Name: "Bob"})
	require.NoError(t, err)

	got, err := repo.GetByID(ctx, alice.ID)
	require.NoError(t, err)
	require.Equal(t, "Alice", got.Name)
	require.Equal(t, "#336699", got.Color)
	require.True(t, got.IsDefault)
	require.Equal(t, alice.CreatedAt.UnixNano(), got.CreatedAt.UnixNano())

	list, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)

	_, err = repo.GetByID(ctx, "missing")
	require.True(t, errors.Is(err, common.ErrorNotFound))
}

func TestSQLiteRepository_DuplicateID(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	_, err := repo.Create(ctx, &models.User{ID: "u-1", Name: "Alice"})
	require.NoError(t, err)
	_, err = repo.Create(ctx, &models.User{ID: "u-1", Name: "Again"})
	require.Error(t, err)
}
