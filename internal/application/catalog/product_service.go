package catalog

import (
	"context"
	"errors"

	"github.com/backoffice/saas/internal/domain/catalog"
	"github.com/backoffice/saas/internal/domain/media"
	"github.com/backoffice/saas/internal/domain/shared"
	"github.com/backoffice/saas/internal/domain/tenant"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ProductServiceConfig holds the collaborators of ProductService
type ProductServiceConfig struct {
	Products   catalog.ProductRepository
	Categories catalog.CategoryRepository
	Tenants    TenantReader
	Media      MediaLookup
	Sanitizer  HTMLSanitizer
	Publisher  shared.EventPublisher
	Logger     *zap.Logger
}

// ProductService handles product-related business operations
type ProductService struct {
	productRepo  catalog.ProductRepository
	categoryRepo catalog.CategoryRepository
	tenants      TenantReader
	media        MediaLookup
	sanitizer    HTMLSanitizer
	publisher    shared.EventPublisher
	logger       *zap.Logger
}

// NewProductService creates a new ProductService
func NewProductService(cfg ProductServiceConfig) *ProductService {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProductService{
		productRepo:  cfg.Products,
		categoryRepo: cfg.Categories,
		tenants:      cfg.Tenants,
		media:        cfg.Media,
		sanitizer:    cfg.Sanitizer,
		publisher:    cfg.Publisher,
		logger:       logger,
	}
}

// Create creates a draft product. The tenant's plan caps the number of
// live products.
func (s *ProductService) Create(ctx context.Context, tenantID uuid.UUID, req CreateProductRequest) (*ProductResponse, error) {
	t, err := s.tenants.FindByID(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	count, err := s.productRepo.CountForTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	plan := t.Plan()
	if !tenant.Allows(plan.MaxProducts, count, 1) {
		return nil, shared.QuotaExceeded("plan %s allows at most %d products", plan.Code, plan.MaxProducts).
			WithDetail("limit", plan.MaxProducts).
			WithDetail("used", count)
	}

	currency := req.Currency
	if currency == "" {
		currency = t.Settings.Currency
	}
	if err := s.checkCategory(ctx, tenantID, req.CategoryID); err != nil {
		return nil, err
	}
	product, err := catalog.NewProduct(tenantID, catalog.ProductInput{
		SKU:            req.SKU,
		Name:           req.Name,
		Slug:           req.Slug,
		Description:    s.sanitize(req.Description),
		Price:          req.Price,
		CompareAtPrice: req.CompareAtPrice,
		Currency:       currency,
		Stock:          req.Stock,
		CategoryID:     req.CategoryID,
	})
	if err != nil {
		return nil, err
	}
	if err := s.checkSKU(ctx, product); err != nil {
		return nil, err
	}
	if err := s.assignSlug(ctx, product, req.Slug != ""); err != nil {
		return nil, err
	}
	if len(req.Gallery) > 0 {
		if err := s.applyGallery(ctx, product, req.Gallery); err != nil {
			return nil, err
		}
	}

	if err := s.productRepo.Save(ctx, product); err != nil {
		return nil, err
	}
	s.publish(ctx, product)
	s.logger.Info("Product created",
		zap.String("tenant_id", tenantID.String()),
		zap.String("product_id", product.ID.String()),
		zap.String("sku", product.SKU))
	resp := ToProductResponse(product)
	return &resp, nil
}

func (s *ProductService) sanitize(html string) string {
	if s.sanitizer == nil {
		return html
	}
	return s.sanitizer.Sanitize(html)
}

func (s *ProductService) checkCategory(ctx context.Context, tenantID uuid.UUID, id *uuid.UUID) error {
	if id == nil {
		return nil
	}
	if _, err := s.categoryRepo.FindByIDForTenant(ctx, tenantID, *id); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return shared.InvalidInput("category not found").WithDetail("category_id", id.String())
		}
		return err
	}
	return nil
}

func (s *ProductService) checkSKU(ctx context.Context, p *catalog.Product) error {
	exists, err := s.productRepo.ExistsBySKU(ctx, p.TenantID, p.SKU, &p.ID)
	if err != nil {
		return err
	}
	if exists {
		return shared.NewDomainError(shared.CodeAlreadyExists, "Product with this SKU already exists").
			WithDetail("sku", p.SKU)
	}
	return nil
}

func (s *ProductService) assignSlug(ctx context.Context, p *catalog.Product, explicit bool) error {
	base := p.Slug
	for i := 1; i <= maxSlugAttempts; i++ {
		candidate := shared.SlugCandidate(base, i, 220)
		exists, err := s.productRepo.ExistsBySlug(ctx, p.TenantID, candidate, &p.ID)
		if err != nil {
			return err
		}
		if !exists {
			p.Slug = candidate
			return nil
		}
		if explicit {
			break
		}
	}
	return shared.NewDomainError(shared.CodeAlreadyExists, "Product with this slug already exists").
		WithDetail("slug", base)
}

// GetByID retrieves a product by ID
func (s *ProductService) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*ProductResponse, error) {
	product, err := s.productRepo.FindByIDForTenant(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	resp := ToProductResponse(product)
	return &resp, nil
}

// List retrieves a page of products
func (s *ProductService) List(ctx context.Context, tenantID uuid.UUID, filter ProductListFilter) ([]ProductResponse, int64, error) {
	q, err := filter.toQuery()
	if err != nil {
		return nil, 0, err
	}
	products, total, err := s.productRepo.FindAllForTenant(ctx, tenantID, q)
	if err != nil {
		return nil, 0, err
	}
	return ToProductResponses(products), total, nil
}

// Update updates an existing product
func (s *ProductService) Update(ctx context.Context, tenantID, id uuid.UUID, req UpdateProductRequest) (*ProductResponse, error) {
	product, err := s.productRepo.FindByIDForTenant(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	in := catalog.ProductInput{
		SKU:            product.SKU,
		Name:           product.Name,
		Slug:           product.Slug,
		Description:    product.Description,
		Price:          product.Price,
		CompareAtPrice: product.CompareAtPrice,
		Currency:       product.Currency,
		Stock:          product.Stock,
		CategoryID:     product.CategoryID,
	}
	skuChanged, slugChanged := false, false
	if req.SKU != nil && *req.SKU != in.SKU {
		in.SKU = *req.SKU
		skuChanged = true
	}
	if req.Name != nil {
		in.Name = *req.Name
	}
	if req.Slug != nil && *req.Slug != in.Slug {
		in.Slug = *req.Slug
		slugChanged = true
	}
	if req.Description != nil {
		in.Description = s.sanitize(*req.Description)
	}
	if req.Price != nil {
		in.Price = *req.Price
	}
	if req.ClearCompareAtPrice {
		in.CompareAtPrice = nil
	} else if req.CompareAtPrice != nil {
		in.CompareAtPrice = req.CompareAtPrice
	}
	if req.Currency != nil {
		in.Currency = *req.Currency
	}
	if req.Stock != nil {
		in.Stock = *req.Stock
	}
	if req.ClearCategory {
		in.CategoryID = nil
	} else if req.CategoryID != nil {
		if err := s.checkCategory(ctx, tenantID, req.CategoryID); err != nil {
			return nil, err
		}
		in.CategoryID = req.CategoryID
	}

	if err := product.Update(in); err != nil {
		return nil, err
	}
	if skuChanged {
		if err := s.checkSKU(ctx, product); err != nil {
			return nil, err
		}
	}
	if slugChanged {
		if err := s.assignSlug(ctx, product, true); err != nil {
			return nil, err
		}
	}
	if err := s.productRepo.Save(ctx, product); err != nil {
		return nil, err
	}
	resp := ToProductResponse(product)
	return &resp, nil
}

// Publish makes a draft or archived product active
func (s *ProductService) Publish(ctx context.Context, tenantID, id uuid.UUID) (*ProductResponse, error) {
	return s.mutate(ctx, tenantID, id, (*catalog.Product).Publish)
}

// Archive hides a product
func (s *ProductService) Archive(ctx context.Context, tenantID, id uuid.UUID) (*ProductResponse, error) {
	return s.mutate(ctx, tenantID, id, (*catalog.Product).Archive)
}

// AdjustStock applies a stock delta; the result cannot be negative
func (s *ProductService) AdjustStock(ctx context.Context, tenantID, id uuid.UUID, req AdjustStockRequest) (*ProductResponse, error) {
	resp, err := s.mutate(ctx, tenantID, id, func(p *catalog.Product) error {
		return p.AdjustStock(req.Delta)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("Product stock adjusted",
		zap.String("product_id", id.String()),
		zap.Int("delta", req.Delta),
		zap.Int("stock", resp.Stock),
		zap.String("reason", req.Reason))
	return resp, nil
}

// SetGallery replaces the product images. Every id must be a live image
// of the tenant in the products collection.
func (s *ProductService) SetGallery(ctx context.Context, tenantID, id uuid.UUID, req SetGalleryRequest) (*ProductResponse, error) {
	product, err := s.productRepo.FindByIDForTenant(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if err := s.applyGallery(ctx, product, req.MediaIDs); err != nil {
		return nil, err
	}
	if err := s.productRepo.Save(ctx, product); err != nil {
		return nil, err
	}
	resp := ToProductResponse(product)
	return &resp, nil
}

func (s *ProductService) applyGallery(ctx context.Context, p *catalog.Product, ids []uuid.UUID) error {
	if len(ids) > 0 {
		found, err := s.media.FindByIDs(ctx, p.TenantID, ids)
		if err != nil {
			return err
		}
		usable := make(map[uuid.UUID]bool, len(found))
		for i := range found {
			if found[i].Collection == media.CollectionProducts && found[i].IsImage() {
				usable[found[i].ID] = true
			}
		}
		var invalid []string
		for _, mid := range ids {
			if !usable[mid] {
				invalid = append(invalid, mid.String())
			}
		}
		if len(invalid) > 0 {
			return shared.InvalidInput("gallery items must be images in the %s collection", media.CollectionProducts).
				WithDetail("invalid_media_ids", invalid)
		}
	}
	return p.SetGallery(ids)
}

// Delete soft-deletes a product
func (s *ProductService) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	if err := s.productRepo.Delete(ctx, tenantID, id); err != nil {
		return err
	}
	s.logger.Info("Product deleted",
		zap.String("tenant_id", tenantID.String()),
		zap.String("product_id", id.String()))
	return nil
}

func (s *ProductService) mutate(ctx context.Context, tenantID, id uuid.UUID, fn func(*catalog.Product) error) (*ProductResponse, error) {
	product, err := s.productRepo.FindByIDForTenant(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if err := fn(product); err != nil {
		return nil, err
	}
	if err := s.productRepo.Save(ctx, product); err != nil {
		return nil, err
	}
	s.publish(ctx, product)
	resp := ToProductResponse(product)
	return &resp, nil
}

func (s *ProductService) publish(ctx context.Context, p *catalog.Product) {
	if err := shared.PublishPending(ctx, s.publisher, p); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Warn("Failed to publish product events",
			zap.String("product_id", p.ID.String()),
			zap.Error(err))
	}
}
