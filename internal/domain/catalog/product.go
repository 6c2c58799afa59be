package catalog

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/backoffice/saas/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProductStatus is the publication state of a product
type ProductStatus string

const (
	ProductDraft    ProductStatus = "draft"
	ProductActive   ProductStatus = "active"
	ProductArchived ProductStatus = "archived"
)

// IsValid reports whether s is a known status
func (s ProductStatus) IsValid() bool {
	switch s {
	case ProductDraft, ProductActive, ProductArchived:
		return true
	}
	return false
}

// MaxGallerySize bounds the number of images on a product
const MaxGallerySize = 20

var skuPattern = regexp.MustCompile(`^[A-Z0-9][A-Z0-9_-]{0,63}$`)

// Product is a sellable item of a tenant
type Product struct {
	shared.TenantAggregateRoot
	SKU            string
	Name           string
	Slug           string
	Description    string
	Price          decimal.Decimal
	CompareAtPrice *decimal.Decimal
	Currency       string
	Stock          int
	Status         ProductStatus
	CategoryID     *uuid.UUID
	Gallery        []uuid.UUID
}

// ProductInput carries the editable product fields
type ProductInput struct {
	SKU            string
	Name           string
	Slug           string
	Description    string
	Price          decimal.Decimal
	CompareAtPrice *decimal.Decimal
	Currency       string
	Stock          int
	CategoryID     *uuid.UUID
}

// NewProduct creates a draft product
func NewProduct(tenantID uuid.UUID, in ProductInput) (*Product, error) {
	p := &Product{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		Status:              ProductDraft,
		Gallery:             []uuid.UUID{},
	}
	if err := p.apply(in); err != nil {
		return nil, err
	}
	p.AddDomainEvent(newProductEvent(EventTypeProductCreated, p))
	return p, nil
}

// Update replaces the editable fields
func (p *Product) Update(in ProductInput) error {
	if err := p.apply(in); err != nil {
		return err
	}
	p.IncrementVersion()
	return nil
}

func (p *Product) apply(in ProductInput) error {
	sku := strings.ToUpper(strings.TrimSpace(in.SKU))
	if !skuPattern.MatchString(sku) {
		return shared.InvalidInput("sku must be 1-64 upper-case letters, digits, '-' or '_'")
	}
	name := strings.TrimSpace(in.Name)
	if name == "" || utf8.RuneCountInString(name) > 200 {
		return shared.InvalidInput("product name must be between 1 and 200 characters")
	}
	slug := in.Slug
	if slug == "" {
		slug = shared.Slugify(name)
	}
	if !shared.IsValidSlug(slug) || len(slug) > 220 {
		return shared.InvalidInput("invalid product slug %q", slug)
	}
	if in.Price.IsNegative() {
		return shared.InvalidInput("price cannot be negative")
	}
	if in.CompareAtPrice != nil && !in.CompareAtPrice.GreaterThan(in.Price) {
		return shared.InvalidInput("compare-at price must be greater than price")
	}
	currency := strings.ToUpper(in.Currency)
	if len(currency) != 3 {
		return shared.InvalidInput("currency must be a 3-letter code")
	}
	if in.Stock < 0 {
		return shared.InvalidInput("stock cannot be negative")
	}

	p.SKU = sku
	p.Name = name
	p.Slug = slug
	p.Description = in.Description
	p.Price = in.Price.Round(2)
	if in.CompareAtPrice != nil {
		v := in.CompareAtPrice.Round(2)
		p.CompareAtPrice = &v
	} else {
		p.CompareAtPrice = nil
	}
	p.Currency = currency
	p.Stock = in.Stock
	p.CategoryID = in.CategoryID
	return nil
}

// Publish makes the product visible
func (p *Product) Publish() error {
	if p.Status == ProductActive {
		return shared.InvalidState("product is already active")
	}
	p.Status = ProductActive
	p.IncrementVersion()
	p.AddDomainEvent(newProductEvent(EventTypeProductPublished, p))
	return nil
}

// Archive hides the product without deleting it
func (p *Product) Archive() error {
	if p.Status == ProductArchived {
		return shared.InvalidState("product is already archived")
	}
	p.Status = ProductArchived
	p.IncrementVersion()
	return nil
}

// AdjustStock applies delta to the stock level
func (p *Product) AdjustStock(delta int) error {
	if p.Stock+delta < 0 {
		return shared.InvalidInput("stock cannot go below zero (have %d, delta %d)", p.Stock, delta)
	}
	p.Stock += delta
	p.IncrementVersion()
	return nil
}

// SetGallery replaces the ordered image list. Duplicates are dropped.
func (p *Product) SetGallery(mediaIDs []uuid.UUID) error {
	seen := make(map[uuid.UUID]bool, len(mediaIDs))
	gallery := make([]uuid.UUID, 0, len(mediaIDs))
	for _, id := range mediaIDs {
		if id == uuid.Nil || seen[id] {
			continue
		}
		seen[id] = true
		gallery = append(gallery, id)
	}
	if len(gallery) > MaxGallerySize {
		return shared.InvalidInput("a product can have at most %d images", MaxGallerySize)
	}
	p.Gallery = gallery
	p.IncrementVersion()
	return nil
}
