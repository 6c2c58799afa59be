package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/backoffice/saas/internal/domain/catalog"
	"github.com/backoffice/saas/internal/domain/media"
	"github.com/backoffice/saas/internal/domain/shared"
	"github.com/backoffice/saas/internal/domain/tenant"
	"github.com/backoffice/saas/internal/infrastructure/persistence"
	"github.com/backoffice/saas/internal/infrastructure/persistence/persistencetest"
	"github.com/backoffice/saas/internal/infrastructure/sanitizer"
)

type fixture struct {
	categories *CategoryService
	products   *ProductService
	repos      *persistence.Repositories
	tenant     *tenant.Tenant
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	repos := persistence.NewRepositories(persistencetest.NewDB(t))
	tn, err := tenant.NewTenant("Acme Store", "owner@acme.test", tenant.DefaultSettings())
	require.NoError(t, err)
	require.NoError(t, repos.Tenants.Save(ctx, tn))

	logger := zaptest.NewLogger(t)
	return &fixture{
		categories: NewCategoryService(repos.Categories, repos.Products, repos.Media, logger),
		products: NewProductService(ProductServiceConfig{
			Products:   repos.Products,
			Categories: repos.Categories,
			Tenants:    repos.Tenants,
			Media:      repos.Media,
			Sanitizer:  sanitizer.New(),
			Logger:     logger,
		}),
		repos:  repos,
		tenant: tn,
	}
}

func (f *fixture) category(t *testing.T, name string, parent *uuid.UUID) *CategoryResponse {
	t.Helper()
	c, err := f.categories.Create(context.Background(), f.tenant.ID, CreateCategoryRequest{Name: name, ParentID: parent})
	require.NoError(t, err)
	return c
}

func (f *fixture) product(t *testing.T, sku string) *ProductResponse {
	t.Helper()
	p, err := f.products.Create(context.Background(), f.tenant.ID, CreateProductRequest{
		SKU:   sku,
		Name:  "Product " + sku,
		Price: decimal.NewFromInt(10),
	})
	require.NoError(t, err)
	return p
}

func (f *fixture) mediaItem(t *testing.T, collection, mime string) uuid.UUID {
	t.Helper()
	c, err := media.ResolveCollection(collection)
	require.NoError(t, err)
	m, err := media.NewMedia(media.NewMediaParams{
		TenantID:   f.tenant.ID,
		Collection: c,
		FileName:   "file",
		MimeType:   mime,
		Size:       100,
	})
	require.NoError(t, err)
	require.NoError(t, f.repos.Media.Save(context.Background(), m))
	return m.ID
}

func TestCategoryService_CreateAndSlugs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := f.category(t, "Zapatos de Niño", nil)
	second := f.category(t, "Zapatos de niño", nil)
	assert.Equal(t, "zapatos-de-nino", first.Slug)
	assert.Equal(t, "zapatos-de-nino-2", second.Slug)
	assert.Equal(t, 1, first.Depth)
	assert.True(t, first.Active)

	_, err := f.categories.Create(ctx, f.tenant.ID, CreateCategoryRequest{Name: "Other", Slug: "zapatos-de-nino"})
	assert.Equal(t, shared.CodeAlreadyExists, shared.ErrorCode(err))

	missing := uuid.New()
	_, err = f.categories.Create(ctx, f.tenant.ID, CreateCategoryRequest{Name: "Child", ParentID: &missing})
	assert.Equal(t, shared.CodeInvalidInput, shared.ErrorCode(err))
}

func TestCategoryService_MaxDepth(t *testing.T) {
	f := newFixture(t)
	var parent *uuid.UUID
	for i := 1; i <= catalog.MaxCategoryDepth; i++ {
		c := f.category(t, "Level "+string(rune('A'+i)), parent)
		assert.Equal(t, i, c.Depth)
		id := c.ID
		parent = &id
	}
	_, err := f.categories.Create(context.Background(), f.tenant.ID, CreateCategoryRequest{Name: "Too deep", ParentID: parent})
	assert.Equal(t, shared.CodeInvalidInput, shared.ErrorCode(err))
}

func TestCategoryService_MoveAndTree(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	root := f.category(t, "Root", nil)
	other := f.category(t, "Other", nil)
	child := f.category(t, "Child", &root.ID)
	grandchild := f.category(t, "Grandchild", &child.ID)

	// cycle
	_, err := f.categories.Move(ctx, f.tenant.ID, root.ID, MoveCategoryRequest{ParentID: &grandchild.ID})
	assert.Equal(t, shared.CodeInvalidInput, shared.ErrorCode(err))

	moved, err := f.categories.Move(ctx, f.tenant.ID, child.ID, MoveCategoryRequest{ParentID: &other.ID})
	require.NoError(t, err)
	assert.Equal(t, 2, moved.Depth)

	toRoot, err := f.categories.Move(ctx, f.tenant.ID, child.ID, MoveCategoryRequest{})
	require.NoError(t, err)
	assert.Equal(t, 1, toRoot.Depth)
	assert.Nil(t, toRoot.ParentID)

	gc, err := f.categories.GetByID(ctx, f.tenant.ID, grandchild.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, gc.Depth)

	tree, err := f.categories.GetTree(ctx, f.tenant.ID)
	require.NoError(t, err)
	require.Len(t, tree, 3)
	var childNode *CategoryTreeNode
	for i := range tree {
		if tree[i].ID == child.ID {
			childNode = &tree[i]
		}
	}
	require.NotNil(t, childNode)
	require.Len(t, childNode.Children, 1)
	assert.Equal(t, grandchild.ID, childNode.Children[0].ID)
}

func TestCategoryService_MoveRespectsDepthOfSubtree(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	var chain []*CategoryResponse
	var parent *uuid.UUID
	for i := 0; i < 4; i++ {
		c := f.category(t, "Deep "+string(rune('A'+i)), parent)
		chain = append(chain, c)
		id := c.ID
		parent = &id
	}
	branch := f.category(t, "Branch", nil)
	f.category(t, "Leaf", &branch.ID)

	// branch has height 2; below depth 4 it would reach depth 6
	_, err := f.categories.Move(ctx, f.tenant.ID, branch.ID, MoveCategoryRequest{ParentID: &chain[3].ID})
	assert.Equal(t, shared.CodeInvalidInput, shared.ErrorCode(err))

	_, err = f.categories.Move(ctx, f.tenant.ID, branch.ID, MoveCategoryRequest{ParentID: &chain[2].ID})
	assert.NoError(t, err)
}

func TestCategoryService_DeleteRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	parent := f.category(t, "Parent", nil)
	child := f.category(t, "Child", &parent.ID)

	err := f.categories.Delete(ctx, f.tenant.ID, parent.ID)
	assert.True(t, errors.Is(err, shared.ErrInvalidState))

	_, err = f.products.Create(ctx, f.tenant.ID, CreateProductRequest{
		SKU: "SKU-1", Name: "Shoe", Price: decimal.NewFromInt(5), CategoryID: &child.ID,
	})
	require.NoError(t, err)
	err = f.categories.Delete(ctx, f.tenant.ID, child.ID)
	assert.True(t, errors.Is(err, shared.ErrInvalidState))

	empty := f.category(t, "Empty", nil)
	require.NoError(t, f.categories.Delete(ctx, f.tenant.ID, empty.ID))
	_, err = f.categories.GetByID(ctx, f.tenant.ID, empty.ID)
	assert.True(t, errors.Is(err, shared.ErrNotFound))
}

func TestProductService_Create(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	compare := decimal.RequireFromString("129.90")

	p, err := f.products.Create(ctx, f.tenant.ID, CreateProductRequest{
		SKU:            "tee-001",
		Name:           "Camiseta Básica",
		Description:    `<p>Soft cotton</p><script>alert(1)</script>`,
		Price:          decimal.RequireFromString("99.90"),
		CompareAtPrice: &compare,
		Stock:          5,
	})
	require.NoError(t, err)

	assert.Equal(t, "TEE-001", p.SKU)
	assert.Equal(t, "camiseta-basica", p.Slug)
	assert.Equal(t, "draft", p.Status)
	assert.Equal(t, f.tenant.Settings.Currency, p.Currency)
	assert.Equal(t, "<p>Soft cotton</p>", p.Description)
	assert.Empty(t, p.Gallery)

	_, err = f.products.Create(ctx, f.tenant.ID, CreateProductRequest{SKU: "TEE-001", Name: "Copy", Price: decimal.NewFromInt(1)})
	assert.Equal(t, shared.CodeAlreadyExists, shared.ErrorCode(err))

	_, err = f.products.Create(ctx, f.tenant.ID, CreateProductRequest{
		SKU: "TEE-002", Name: "Bad price", Price: decimal.NewFromInt(10), CompareAtPrice: ptr(decimal.NewFromInt(5)),
	})
	assert.Equal(t, shared.CodeInvalidInput, shared.ErrorCode(err))
}

func TestProductService_Quota(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	limit := f.tenant.Plan().MaxProducts
	require.Positive(t, limit)
	for i := int64(0); i < limit; i++ {
		f.product(t, "Q-"+uuid.NewString()[:8])
	}

	_, err := f.products.Create(ctx, f.tenant.ID, CreateProductRequest{SKU: "ONE-MORE", Name: "One more", Price: decimal.NewFromInt(1)})
	assert.True(t, errors.Is(err, shared.ErrQuotaExceeded))
}

func TestProductService_Lifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "LIFE-1")

	published, err := f.products.Publish(ctx, f.tenant.ID, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "active", published.Status)
	_, err = f.products.Publish(ctx, f.tenant.ID, p.ID)
	assert.True(t, errors.Is(err, shared.ErrInvalidState))

	archived, err := f.products.Archive(ctx, f.tenant.ID, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "archived", archived.Status)

	republished, err := f.products.Publish(ctx, f.tenant.ID, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "active", republished.Status)

	stocked, err := f.products.AdjustStock(ctx, f.tenant.ID, p.ID, AdjustStockRequest{Delta: 7})
	require.NoError(t, err)
	assert.Equal(t, 7, stocked.Stock)
	_, err = f.products.AdjustStock(ctx, f.tenant.ID, p.ID, AdjustStockRequest{Delta: -8})
	assert.Equal(t, shared.CodeInvalidInput, shared.ErrorCode(err))

	require.NoError(t, f.products.Delete(ctx, f.tenant.ID, p.ID))
	_, err = f.products.GetByID(ctx, f.tenant.ID, p.ID)
	assert.True(t, errors.Is(err, shared.ErrNotFound))
}

func TestProductService_Update(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cat := f.category(t, "Shoes", nil)
	p := f.product(t, "UPD-1")
	f.product(t, "UPD-2")

	name := "Renamed product"
	price := decimal.RequireFromString("12.345")
	updated, err := f.products.Update(ctx, f.tenant.ID, p.ID, UpdateProductRequest{
		Name:       &name,
		Price:      &price,
		CategoryID: &cat.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, name, updated.Name)
	assert.True(t, decimal.RequireFromString("12.35").Equal(updated.Price))
	assert.Equal(t, &cat.ID, updated.CategoryID)

	taken := "UPD-2"
	_, err = f.products.Update(ctx, f.tenant.ID, p.ID, UpdateProductRequest{SKU: &taken})
	assert.Equal(t, shared.CodeAlreadyExists, shared.ErrorCode(err))

	cleared, err := f.products.Update(ctx, f.tenant.ID, p.ID, UpdateProductRequest{ClearCategory: true})
	require.NoError(t, err)
	assert.Nil(t, cleared.CategoryID)
}

func TestProductService_ListFilters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cheap := f.product(t, "CHEAP")
	_, err := f.products.Create(ctx, f.tenant.ID, CreateProductRequest{SKU: "PRICEY", Name: "Pricey boots", Price: decimal.NewFromInt(500)})
	require.NoError(t, err)
	_, err = f.products.Publish(ctx, f.tenant.ID, cheap.ID)
	require.NoError(t, err)

	active, total, err := f.products.List(ctx, f.tenant.ID, ProductListFilter{Status: "active"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, cheap.ID, active[0].ID)

	min := decimal.NewFromInt(100)
	expensive, _, err := f.products.List(ctx, f.tenant.ID, ProductListFilter{MinPrice: &min})
	require.NoError(t, err)
	require.Len(t, expensive, 1)
	assert.Equal(t, "PRICEY", expensive[0].SKU)

	found, _, err := f.products.List(ctx, f.tenant.ID, ProductListFilter{Search: "boots"})
	require.NoError(t, err)
	assert.Len(t, found, 1)

	max := decimal.NewFromInt(1)
	_, _, err = f.products.List(ctx, f.tenant.ID, ProductListFilter{MinPrice: &min, MaxPrice: &max})
	assert.Equal(t, shared.CodeInvalidInput, shared.ErrorCode(err))
}

func TestProductService_SetGallery(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "GAL-1")
	img1 := f.mediaItem(t, media.CollectionProducts, media.MimePNG)
	img2 := f.mediaItem(t, media.CollectionProducts, media.MimeJPEG)
	doc := f.mediaItem(t, media.CollectionDocuments, media.MimePDF)

	resp, err := f.products.SetGallery(ctx, f.tenant.ID, p.ID, SetGalleryRequest{MediaIDs: []uuid.UUID{img2, img1, img2}})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{img2, img1}, resp.Gallery)

	_, err = f.products.SetGallery(ctx, f.tenant.ID, p.ID, SetGalleryRequest{MediaIDs: []uuid.UUID{img1, doc}})
	var de *shared.DomainError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, shared.CodeInvalidInput, de.Code)
	assert.Equal(t, []string{doc.String()}, de.Details["invalid_media_ids"])

	_, err = f.products.SetGallery(ctx, f.tenant.ID, p.ID, SetGalleryRequest{MediaIDs: []uuid.UUID{uuid.New()}})
	assert.Equal(t, shared.CodeInvalidInput, shared.ErrorCode(err))

	cleared, err := f.products.SetGallery(ctx, f.tenant.ID, p.ID, SetGalleryRequest{})
	require.NoError(t, err)
	assert.Empty(t, cleared.Gallery)
}

func ptr[T any](v T) *T { return &v }
