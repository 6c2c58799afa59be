package models

import (
	"time"

	"github.com/backoffice/saas/internal/domain/catalog"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CategoryModel is the persistence model for Category
type CategoryModel struct {
	TenantAggregateModel
	Name         string     `gorm:"type:varchar(200);not null"`
	Slug         string     `gorm:"type:varchar(200);not null"`
	Description  string     `gorm:"type:text"`
	ParentID     *uuid.UUID `gorm:"type:uuid;index"`
	Depth        int        `gorm:"not null;default:1"`
	SortOrder    int        `gorm:"not null;default:0"`
	Active       bool       `gorm:"not null"`
	ImageMediaID *uuid.UUID `gorm:"type:uuid"`
}

// TableName returns the table name for GORM
func (CategoryModel) TableName() string { return "categories" }

// CategoryModelFromDomain maps a category to its row
func CategoryModelFromDomain(c *catalog.Category) *CategoryModel {
	m := &CategoryModel{
		Name:         c.Name,
		Slug:         c.Slug,
		Description:  c.Description,
		ParentID:     c.ParentID,
		Depth:        c.Depth,
		SortOrder:    c.SortOrder,
		Active:       c.Active,
		ImageMediaID: c.ImageMediaID,
	}
	m.fromTenantAggregate(c.TenantAggregateRoot)
	return m
}

// ToDomain converts the row to a category
func (m *CategoryModel) ToDomain() *catalog.Category {
	return &catalog.Category{
		TenantAggregateRoot: m.toTenantAggregate(),
		Name:                m.Name,
		Slug:                m.Slug,
		Description:         m.Description,
		ParentID:            m.ParentID,
		Depth:               m.Depth,
		SortOrder:           m.SortOrder,
		Active:              m.Active,
		ImageMediaID:        m.ImageMediaID,
	}
}

// ProductModel is the persistence model for Product
type ProductModel struct {
	TenantAggregateModel
	SKU            string                `gorm:"column:sku;type:varchar(64);not null"`
	Name           string                `gorm:"type:varchar(200);not null"`
	Slug           string                `gorm:"type:varchar(200);not null"`
	Description    string                `gorm:"type:text"`
	Price          decimal.Decimal       `gorm:"type:numeric(18,2);not null"`
	CompareAtPrice *decimal.Decimal      `gorm:"type:numeric(18,2)"`
	Currency       string                `gorm:"type:varchar(3);not null"`
	Stock          int                   `gorm:"not null;default:0"`
	Status         catalog.ProductStatus `gorm:"type:varchar(20);not null;index"`
	CategoryID     *uuid.UUID            `gorm:"type:uuid;index"`
	Gallery        string                `gorm:"type:jsonb;not null;default:'[]'"`
	DeletedAt      *time.Time            `gorm:"index"`
}

// TableName returns the table name for GORM
func (ProductModel) TableName() string { return "products" }

// ProductModelFromDomain maps a product to its row
func ProductModelFromDomain(p *catalog.Product) *ProductModel {
	m := &ProductModel{
		SKU:            p.SKU,
		Name:           p.Name,
		Slug:           p.Slug,
		Description:    p.Description,
		Price:          p.Price,
		CompareAtPrice: p.CompareAtPrice,
		Currency:       p.Currency,
		Stock:          p.Stock,
		Status:         p.Status,
		CategoryID:     p.CategoryID,
		Gallery:        marshalJSON(p.Gallery, "[]"),
	}
	m.fromTenantAggregate(p.TenantAggregateRoot)
	return m
}

// ToDomain converts the row to a product
func (m *ProductModel) ToDomain() (*catalog.Product, error) {
	p := &catalog.Product{
		TenantAggregateRoot: m.toTenantAggregate(),
		SKU:                 m.SKU,
		Name:                m.Name,
		Slug:                m.Slug,
		Description:         m.Description,
		Price:               m.Price,
		CompareAtPrice:      m.CompareAtPrice,
		Currency:            m.Currency,
		Stock:               m.Stock,
		Status:              m.Status,
		CategoryID:          m.CategoryID,
		Gallery:             []uuid.UUID{},
	}
	if err := unmarshalJSON("gallery", m.Gallery, &p.Gallery); err != nil {
		return nil, err
	}
	return p, nil
}
