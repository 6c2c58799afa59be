package catalog

import (
	"time"

	"github.com/backoffice/saas/internal/domain/catalog"
	"github.com/backoffice/saas/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CreateCategoryRequest represents a request to create a category
type CreateCategoryRequest struct {
	Name         string     `json:"name" binding:"required,min=1,max=120"`
	Slug         string     `json:"slug" binding:"omitempty,max=140"`
	Description  string     `json:"description" binding:"max=2000"`
	ParentID     *uuid.UUID `json:"parent_id"`
	SortOrder    int        `json:"sort_order" binding:"min=0"`
	Active       *bool      `json:"active"`
	ImageMediaID *uuid.UUID `json:"image_media_id"`
}

// UpdateCategoryRequest represents a request to update a category.
// Omitted fields keep their value.
type UpdateCategoryRequest struct {
	Name         *string    `json:"name" binding:"omitempty,min=1,max=120"`
	Slug         *string    `json:"slug" binding:"omitempty,max=140"`
	Description  *string    `json:"description" binding:"omitempty,max=2000"`
	SortOrder    *int       `json:"sort_order" binding:"omitempty,min=0"`
	Active       *bool      `json:"active"`
	ImageMediaID *uuid.UUID `json:"image_media_id"`
	// ClearImage removes the image; ImageMediaID cannot express that
	ClearImage bool `json:"clear_image"`
}

// MoveCategoryRequest re-parents a category; a nil parent makes it a root
type MoveCategoryRequest struct {
	ParentID *uuid.UUID `json:"parent_id"`
}

// CategoryListFilter represents query parameters for listing categories
type CategoryListFilter struct {
	ParentID *uuid.UUID `form:"parent_id"`
	Search   string     `form:"search"`
	Page     int        `form:"page" binding:"omitempty,min=1"`
	PageSize int        `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderBy  string     `form:"order_by" binding:"omitempty,oneof=name slug sort_order depth created_at updated_at"`
	OrderDir string     `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

func (f CategoryListFilter) toSharedFilter() shared.Filter {
	orderBy, orderDir := f.OrderBy, f.OrderDir
	if orderBy == "" {
		orderBy, orderDir = "sort_order", "asc"
	}
	return shared.Filter{
		Page:     f.Page,
		PageSize: f.PageSize,
		OrderBy:  orderBy,
		OrderDir: orderDir,
		Search:   f.Search,
	}.Normalize()
}

// CategoryResponse represents a category in API responses
type CategoryResponse struct {
	ID           uuid.UUID  `json:"id"`
	TenantID     uuid.UUID  `json:"tenant_id"`
	Name         string     `json:"name"`
	Slug         string     `json:"slug"`
	Description  string     `json:"description,omitempty"`
	ParentID     *uuid.UUID `json:"parent_id,omitempty"`
	Depth        int        `json:"depth"`
	SortOrder    int        `json:"sort_order"`
	Active       bool       `json:"active"`
	ImageMediaID *uuid.UUID `json:"image_media_id,omitempty"`
	Version      int        `json:"version"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// ToCategoryResponse converts a domain category to a response
func ToCategoryResponse(c *catalog.Category) CategoryResponse {
	return CategoryResponse{
		ID:           c.ID,
		TenantID:     c.TenantID,
		Name:         c.Name,
		Slug:         c.Slug,
		Description:  c.Description,
		ParentID:     c.ParentID,
		Depth:        c.Depth,
		SortOrder:    c.SortOrder,
		Active:       c.Active,
		ImageMediaID: c.ImageMediaID,
		Version:      c.Version,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}
}

// CategoryTreeNode is a category with its nested children
type CategoryTreeNode struct {
	CategoryResponse
	Children []CategoryTreeNode `json:"children"`
}

func toTreeNodes(nodes []*catalog.CategoryNode) []CategoryTreeNode {
	out := make([]CategoryTreeNode, len(nodes))
	for i, n := range nodes {
		out[i] = CategoryTreeNode{
			CategoryResponse: ToCategoryResponse(&n.Category),
			Children:         toTreeNodes(n.Children),
		}
	}
	return out
}

// CreateProductRequest represents a request to create a product
type CreateProductRequest struct {
	SKU            string           `json:"sku" binding:"required,min=1,max=64"`
	Name           string           `json:"name" binding:"required,min=1,max=200"`
	Slug           string           `json:"slug" binding:"omitempty,max=220"`
	Description    string           `json:"description" binding:"max=20000"`
	Price          decimal.Decimal  `json:"price"`
	CompareAtPrice *decimal.Decimal `json:"compare_at_price"`
	// Currency defaults to the tenant's settings
	Currency   string      `json:"currency" binding:"omitempty,len=3"`
	Stock      int         `json:"stock" binding:"min=0"`
	CategoryID *uuid.UUID  `json:"category_id"`
	Gallery    []uuid.UUID `json:"gallery" binding:"max=20"`
}

// UpdateProductRequest represents a request to update a product.
// Omitted fields keep their value.
type UpdateProductRequest struct {
	SKU                 *string          `json:"sku" binding:"omitempty,min=1,max=64"`
	Name                *string          `json:"name" binding:"omitempty,min=1,max=200"`
	Slug                *string          `json:"slug" binding:"omitempty,max=220"`
	Description         *string          `json:"description" binding:"omitempty,max=20000"`
	Price               *decimal.Decimal `json:"price"`
	CompareAtPrice      *decimal.Decimal `json:"compare_at_price"`
	ClearCompareAtPrice bool             `json:"clear_compare_at_price"`
	Currency            *string          `json:"currency" binding:"omitempty,len=3"`
	Stock               *int             `json:"stock" binding:"omitempty,min=0"`
	CategoryID          *uuid.UUID       `json:"category_id"`
	ClearCategory       bool             `json:"clear_category"`
}

// AdjustStockRequest adds (or removes, when negative) units of stock
type AdjustStockRequest struct {
	Delta  int    `json:"delta" binding:"required,ne=0"`
	Reason string `json:"reason" binding:"max=255"`
}

// SetGalleryRequest replaces the ordered product images
type SetGalleryRequest struct {
	MediaIDs []uuid.UUID `json:"media_ids" binding:"max=20"`
}

// ProductListFilter represents query parameters for listing products
type ProductListFilter struct {
	Search     string           `form:"search"`
	CategoryID *uuid.UUID       `form:"category_id"`
	Status     string           `form:"status" binding:"omitempty,oneof=draft active archived"`
	MinPrice   *decimal.Decimal `form:"min_price"`
	MaxPrice   *decimal.Decimal `form:"max_price"`
	Page       int              `form:"page" binding:"omitempty,min=1"`
	PageSize   int              `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderBy    string           `form:"order_by" binding:"omitempty,oneof=name sku price stock status created_at updated_at"`
	OrderDir   string           `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

func (f ProductListFilter) toQuery() (catalog.ProductQuery, error) {
	if f.MinPrice != nil && f.MaxPrice != nil && f.MinPrice.GreaterThan(*f.MaxPrice) {
		return catalog.ProductQuery{}, shared.InvalidInput("min_price cannot be greater than max_price")
	}
	return catalog.ProductQuery{
		CategoryID: f.CategoryID,
		Status:     catalog.ProductStatus(f.Status),
		MinPrice:   f.MinPrice,
		MaxPrice:   f.MaxPrice,
		Filter: shared.Filter{
			Page:     f.Page,
			PageSize: f.PageSize,
			OrderBy:  f.OrderBy,
			OrderDir: f.OrderDir,
			Search:   f.Search,
		}.Normalize(),
	}, nil
}

// ProductResponse represents a product in API responses
type ProductResponse struct {
	ID             uuid.UUID        `json:"id"`
	TenantID       uuid.UUID        `json:"tenant_id"`
	SKU            string           `json:"sku"`
	Name           string           `json:"name"`
	Slug           string           `json:"slug"`
	Description    string           `json:"description"`
	Price          decimal.Decimal  `json:"price"`
	CompareAtPrice *decimal.Decimal `json:"compare_at_price,omitempty"`
	Currency       string           `json:"currency"`
	Stock          int              `json:"stock"`
	Status         string           `json:"status"`
	CategoryID     *uuid.UUID       `json:"category_id,omitempty"`
	Gallery        []uuid.UUID      `json:"gallery"`
	Version        int              `json:"version"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// ToProductResponse converts a domain product to a response
func ToProductResponse(p *catalog.Product) ProductResponse {
	gallery := p.Gallery
	if gallery == nil {
		gallery = []uuid.UUID{}
	}
	return ProductResponse{
		ID:             p.ID,
		TenantID:       p.TenantID,
		SKU:            p.SKU,
		Name:           p.Name,
		Slug:           p.Slug,
		Description:    p.Description,
		Price:          p.Price,
		CompareAtPrice: p.CompareAtPrice,
		Currency:       p.Currency,
		Stock:          p.Stock,
		Status:         string(p.Status),
		CategoryID:     p.CategoryID,
		Gallery:        gallery,
		Version:        p.Version,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
}

// ToProductResponses converts a list of products
func ToProductResponses(products []catalog.Product) []ProductResponse {
	out := make([]ProductResponse, len(products))
	for i := range products {
		out[i] = ToProductResponse(&products[i])
	}
	return out
}
