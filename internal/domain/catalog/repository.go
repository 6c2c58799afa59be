package catalog

import (
	"context"

	"github.com/backoffice/saas/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CategoryRepository persists categories
type CategoryRepository interface {
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*Category, error)
	FindAllForTenant(ctx context.Context, tenantID uuid.UUID, parentID *uuid.UUID, filter shared.Filter) ([]Category, int64, error)
	// FindAllFlat returns every category of the tenant ordered for tree display
	FindAllFlat(ctx context.Context, tenantID uuid.UUID) ([]Category, error)
	ExistsBySlug(ctx context.Context, tenantID uuid.UUID, slug string, excludeID *uuid.UUID) (bool, error)
	CountChildren(ctx context.Context, tenantID, id uuid.UUID) (int64, error)
	Save(ctx context.Context, c *Category) error
	// SaveTree stores c together with its re-leveled descendants in one transaction
	SaveTree(ctx context.Context, c *Category, descendants []Category) error
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
}

// ProductQuery narrows a product listing
type ProductQuery struct {
	CategoryID *uuid.UUID
	Status     ProductStatus
	MinPrice   *decimal.Decimal
	MaxPrice   *decimal.Decimal
	Filter     shared.Filter
}

// ProductRepository persists products. Deleted products are soft-deleted.
type ProductRepository interface {
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*Product, error)
	FindAllForTenant(ctx context.Context, tenantID uuid.UUID, q ProductQuery) ([]Product, int64, error)
	// FindActive returns published products for sitemaps
	FindActive(ctx context.Context, tenantID uuid.UUID) ([]Product, error)
	ExistsBySKU(ctx context.Context, tenantID uuid.UUID, sku string, excludeID *uuid.UUID) (bool, error)
	ExistsBySlug(ctx context.Context, tenantID uuid.UUID, slug string, excludeID *uuid.UUID) (bool, error)
	CountForTenant(ctx context.Context, tenantID uuid.UUID) (int64, error)
	CountByStatus(ctx context.Context, tenantID uuid.UUID) (map[ProductStatus]int64, error)
	CountByCategory(ctx context.Context, tenantID, categoryID uuid.UUID) (int64, error)
	Save(ctx context.Context, p *Product) error
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
}
