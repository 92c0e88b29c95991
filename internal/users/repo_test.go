package users

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront/pkg/db"
	"github.com/angelmondragon/storefront/pkg/db/dbtest"
	"github.com/angelmondragon/storefront/pkg/enums"
)

func TestCreateAndFindUser(t *testing.T) {
	repo := NewRepository(dbtest.Open(t))
	ctx := context.Background()

	created, err := repo.Create(ctx, CreateUserDTO{
		Email:        "  Clerk@Example.com ",
		PasswordHash: "hash",
		FirstName:    "Ada",
		LastName:     "Clerk",
		Capabilities: []enums.Capability{enums.CapabilityDeliverOrder, enums.CapabilityViewOrder},
	})
	require.NoError(t, err)
	assert.Equal(t, "clerk@example.com", created.Email)

	found, err := repo.FindByEmail(ctx, "CLERK@example.com")
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)
	assert.ElementsMatch(t, []string{"deliver_order", "view_order"}, []string(found.Capabilities))

	dto := FromModel(found)
	assert.Len(t, dto.Capabilities, 2)
	assert.True(t, dto.IsActive)
}

func TestDuplicateEmailIsUniqueViolation(t *testing.T) {
	repo := NewRepository(dbtest.Open(t))
	ctx := context.Background()

	_, err := repo.Create(ctx, CreateUserDTO{Email: "a@example.com", PasswordHash: "h"})
	require.NoError(t, err)
	_, err = repo.Create(ctx, CreateUserDTO{Email: "A@example.com", PasswordHash: "h"})
	require.Error(t, err)
	assert.True(t, db.IsUniqueViolation(err, ""))
}

func TestUpdateColumns(t *testing.T) {
	repo := NewRepository(dbtest.Open(t))
	ctx := context.Background()
	user, err := repo.Create(ctx, CreateUserDTO{Email: "b@example.com", PasswordHash: "old"})
	require.NoError(t, err)

	at := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, repo.UpdateLastLogin(ctx, user.ID, at))
	require.NoError(t, repo.UpdatePasswordHash(ctx, user.ID, "new"))
	require.NoError(t, repo.SetCapabilities(ctx, user.ID, []string{"view_order"}))

	got, err := repo.FindByID(ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastLoginAt)
	assert.True(t, got.LastLoginAt.Equal(at))
	assert.Equal(t, "new", got.PasswordHash)
	assert.Equal(t, []string{"view_order"}, []string(got.Capabilities))
}
