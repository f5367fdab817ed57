package users

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/liminara/storefront/pkg/db/dbtest"
	"github.com/liminara/storefront/pkg/enums"
)

func TestFindOrCreateByIdentifier(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	ctx := context.Background()

	user, created, err := repo.FindOrCreateByIdentifier(ctx, " shopper@example.com ")
	require.NoError(t, err)
	require.True(t, created)
	require.NotNil(t, user.Email)
	require.Equal(t, "shopper@example.com", *user.Email)
	require.Nil(t, user.Phone)
	require.Equal(t, enums.UserRoleCustomer, user.Role)

	again, created, err := repo.FindOrCreateByIdentifier(ctx, "shopper@example.com")
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, user.ID, again.ID)

	phoneUser, created, err := repo.FindOrCreateByIdentifier(ctx, "+15550001111")
	require.NoError(t, err)
	require.True(t, created)
	require.NotNil(t, phoneUser.Phone)
	require.NotEqual(t, user.ID, phoneUser.ID)
}

func TestUpdateLastLoginAndRole(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	ctx := context.Background()

	user := dbtest.MustCreateUser(t, conn)
	at := time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)
	require.NoError(t, repo.UpdateLastLogin(ctx, user.ID, at))
	require.NoError(t, repo.UpdateRole(ctx, user.ID, enums.UserRoleAgent))

	got, err := repo.FindByID(ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastLoginAt)
	require.True(t, at.Equal(*got.LastLoginAt))
	require.Equal(t, enums.UserRoleAgent, got.Role)

	dto := FromModel(got)
	require.Equal(t, got.ID, dto.ID)
	require.Equal(t, enums.UserRoleAgent, dto.Role)
	require.Nil(t, FromModel(nil))
}
