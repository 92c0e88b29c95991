package product

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront/internal/permissions"
	"github.com/angelmondragon/storefront/pkg/db/dbtest"
	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/angelmondragon/storefront/pkg/pagination"
)

var staff = permissions.NewSubject(uuid.New(), []string{"add_product", "change_product", "delete_product"})

func newTestService(t *testing.T) (Service, *Repository) {
	t.Helper()
	repo := NewRepository(dbtest.Open(t))
	svc, err := NewService(repo)
	require.NoError(t, err)
	return svc, repo
}

func price(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func TestSoftDeleteHidesFromListingButKeepsRecord(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	tea, err := svc.Create(ctx, staff, ProductInput{Name: "Tea", Price: price("4.50")})
	require.NoError(t, err)
	_, err = svc.Create(ctx, staff, ProductInput{Name: "Coffee", Price: price("6.00")})
	require.NoError(t, err)

	deleted, err := svc.SoftDelete(ctx, staff, tea.ID)
	require.NoError(t, err)
	assert.False(t, deleted.InStock)

	list, err := svc.ListInStock(ctx, pagination.Params{})
	require.NoError(t, err)
	require.Len(t, list.Products, 1)
	assert.Equal(t, "Coffee", list.Products[0].Name)

	got, err := svc.Get(ctx, tea.ID)
	require.NoError(t, err)
	assert.Equal(t, "Tea", got.Name)
	assert.False(t, got.InStock)
}

func TestMutationsRequireCapabilities(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	customer := permissions.NewSubject(uuid.New(), nil)

	_, err := svc.Create(ctx, customer, ProductInput{Name: "Tea", Price: price("1")})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))
	assert.Equal(t, permissions.MsgManageProducts, pkgerrors.As(err).Message())

	created, err := svc.Create(ctx, staff, ProductInput{Name: "Tea", Price: price("1")})
	require.NoError(t, err)

	_, err = svc.SoftDelete(ctx, permissions.Anonymous(), created.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	stored, err := repo.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, stored.InStock)

	_, err = svc.Form(ctx, customer, nil)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))
}

func TestCreateValidatesFields(t *testing.T) {
	svc, _ := newTestService(t)
	long := make([]byte, maxNameLen+1)
	for i := range long {
		long[i] = 'x'
	}

	_, err := svc.Create(context.Background(), staff, ProductInput{Name: string(long), Price: price("-1")})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
	fields := typed.Details().(pkgerrors.FieldErrors)
	assert.Contains(t, fields, "name")
	assert.Contains(t, fields, "price")

	_, err = svc.Create(context.Background(), staff, ProductInput{Name: "Tea", Price: price("1.005")})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestUpdateKeepsStockState(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	desc := "  green  "

	created, err := svc.Create(ctx, staff, ProductInput{Name: "Tea", Price: price("2.00")})
	require.NoError(t, err)
	_, err = svc.SoftDelete(ctx, staff, created.ID)
	require.NoError(t, err)

	updated, err := svc.Update(ctx, staff, created.ID, ProductInput{Name: "Green tea", Description: &desc, Price: price("2.50")})
	require.NoError(t, err)
	assert.Equal(t, "Green tea", updated.Name)
	require.NotNil(t, updated.Description)
	assert.Equal(t, "green", *updated.Description)

	got, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.False(t, got.InStock)
	assert.True(t, got.Price.Equal(price("2.50")))

	form, err := svc.Form(ctx, staff, &created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Green tea", form.Name)
}

func TestMissingProductIsNotFound(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.Get(context.Background(), uuid.New())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
	_, err = svc.SoftDelete(context.Background(), staff, uuid.New())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestListInStockPaginatesByName(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	for _, name := range []string{"Delta", "Alpha", "Charlie", "Bravo"} {
		_, err := svc.Create(ctx, staff, ProductInput{Name: name, Price: price("1")})
		require.NoError(t, err)
	}

	first, err := svc.ListInStock(ctx, pagination.Params{Limit: 3})
	require.NoError(t, err)
	require.Len(t, first.Products, 3)
	assert.Equal(t, "Alpha", first.Products[0].Name)
	assert.Equal(t, "Charlie", first.Products[2].Name)
	require.NotEmpty(t, first.NextCursor)

	second, err := svc.ListInStock(ctx, pagination.Params{Limit: 3, Cursor: first.NextCursor})
	require.NoError(t, err)
	require.Len(t, second.Products, 1)
	assert.Equal(t, "Delta", second.Products[0].Name)
	assert.Empty(t, second.NextCursor)

	_, err = svc.ListInStock(ctx, pagination.Params{Cursor: "%%%"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestRepositoryFindByIDs(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	a, err := svc.Create(ctx, staff, ProductInput{Name: "A", Price: price("1")})
	require.NoError(t, err)

	found, err := repo.FindByIDs(ctx, []uuid.UUID{a.ID, uuid.New()})
	require.NoError(t, err)
	assert.Len(t, found, 1)
	assert.Contains(t, found, a.ID)

	empty, err := repo.FindByIDs(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
