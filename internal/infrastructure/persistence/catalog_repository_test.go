package persistence

import (
	"context"
	"errors"
	"testing"

	"github.com/backoffice/saas/internal/domain/catalog"
	"github.com/backoffice/saas/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGormProductRepository(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormProductRepository(db)
	ctx := context.Background()
	tenantID := uuid.New()

	newProduct := func(sku, name string, price string) *catalog.Product {
		p, err := catalog.NewProduct(tenantID, catalog.ProductInput{
			SKU: sku, Name: name, Price: decimal.RequireFromString(price), Currency: "PEN", Stock: 5,
		})
		require.NoError(t, err)
		require.NoError(t, repo.Save(ctx, p))
		return p
	}

	bread := newProduct("PAN-001", "Pan francés", "0.50")
	cake := newProduct("TOR-001", "Torta de chocolate", "45.00")

	t.Run("round-trips decimal prices", func(t *testing.T) {
		found, err := repo.FindByIDForTenant(ctx, tenantID, cake.ID)
		require.NoError(t, err)
		assert.True(t, decimal.RequireFromString("45").Equal(found.Price))
		assert.Equal(t, "TOR-001", found.SKU)
		assert.Empty(t, found.Gallery)
	})

	t.Run("does not leak across tenants", func(t *testing.T) {
		_, err := repo.FindByIDForTenant(ctx, uuid.New(), cake.ID)
		assert.True(t, errors.Is(err, shared.ErrNotFound))
	})

	t.Run("filters by price range and search", func(t *testing.T) {
		minPrice := decimal.RequireFromString("1")
		items, total, err := repo.FindAllForTenant(ctx, tenantID, catalog.ProductQuery{
			MinPrice: &minPrice,
			Filter:   shared.Filter{Page: 1, PageSize: 20},
		})
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		assert.Equal(t, cake.ID, items[0].ID)

		_, total, err = repo.FindAllForTenant(ctx, tenantID, catalog.ProductQuery{
			Filter: shared.Filter{Search: "pan-", Page: 1, PageSize: 20},
		})
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
	})

	t.Run("checks sku uniqueness excluding self", func(t *testing.T) {
		ok, err := repo.ExistsBySKU(ctx, tenantID, "PAN-001", nil)
		require.NoError(t, err)
		assert.True(t, ok)
		ok, err = repo.ExistsBySKU(ctx, tenantID, "PAN-001", &bread.ID)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("counts by status", func(t *testing.T) {
		found, err := repo.FindByIDForTenant(ctx, tenantID, cake.ID)
		require.NoError(t, err)
		require.NoError(t, found.Publish())
		require.NoError(t, repo.Save(ctx, found))

		counts, err := repo.CountByStatus(ctx, tenantID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), counts[catalog.ProductActive])
		assert.Equal(t, int64(1), counts[catalog.ProductDraft])

		active, err := repo.FindActive(ctx, tenantID)
		require.NoError(t, err)
		assert.Len(t, active, 1)
	})

	t.Run("soft delete hides the product", func(t *testing.T) {
		require.NoError(t, repo.Delete(ctx, tenantID, bread.ID))
		_, err := repo.FindByIDForTenant(ctx, tenantID, bread.ID)
		assert.True(t, errors.Is(err, shared.ErrNotFound))

		n, err := repo.CountForTenant(ctx, tenantID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		assert.True(t, errors.Is(repo.Delete(ctx, tenantID, bread.ID), shared.ErrNotFound))
	})
}

func TestGormCategoryRepository(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormCategoryRepository(db)
	ctx := context.Background()
	tenantID := uuid.New()

	root, err := catalog.NewCategory(tenantID, "Panes", "", nil)
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, root))
	child, err := catalog.NewCategory(tenantID, "Integrales", "", root)
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, child))

	t.Run("flat listing is ordered by depth", func(t *testing.T) {
		all, err := repo.FindAllFlat(ctx, tenantID)
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, root.ID, all[0].ID)
		assert.Equal(t, 2, all[1].Depth)
		assert.True(t, all[1].Active)
	})

	t.Run("counts children", func(t *testing.T) {
		n, err := repo.CountChildren(ctx, tenantID, root.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
	})

	t.Run("filters by parent", func(t *testing.T) {
		items, total, err := repo.FindAllForTenant(ctx, tenantID, &root.ID, shared.Filter{Page: 1, PageSize: 10})
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		assert.Equal(t, child.ID, items[0].ID)
	})

	t.Run("deletes", func(t *testing.T) {
		require.NoError(t, repo.Delete(ctx, tenantID, child.ID))
		_, err := repo.FindByIDForTenant(ctx, tenantID, child.ID)
		assert.True(t, errors.Is(err, shared.ErrNotFound))
	})
}
