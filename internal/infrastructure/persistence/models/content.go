package models

import (
	"time"

	"github.com/backoffice/saas/internal/domain/content"
	"github.com/google/uuid"
)

// PageModel is the persistence model for Page
type PageModel struct {
	TenantAggregateModel
	Title        string             `gorm:"type:varchar(200);not null"`
	Slug         string             `gorm:"type:varchar(200);not null"`
	Body         string             `gorm:"type:text"`
	Excerpt      string             `gorm:"type:varchar(300)"`
	Status       content.PageStatus `gorm:"type:varchar(20);not null;index"`
	PublishedAt  *time.Time
	Template     string     `gorm:"type:varchar(40);not null"`
	CoverMediaID *uuid.UUID `gorm:"type:uuid"`
	DeletedAt    *time.Time `gorm:"index"`
}

// TableName returns the table name for GORM
func (PageModel) TableName() string { return "pages" }

// PageModelFromDomain maps a page to its row
func PageModelFromDomain(p *content.Page) *PageModel {
	m := &PageModel{
		Title:        p.Title,
		Slug:         p.Slug,
		Body:         p.Body,
		Excerpt:      p.Excerpt,
		Status:       p.Status,
		PublishedAt:  p.PublishedAt,
		Template:     p.Template,
		CoverMediaID: p.CoverMediaID,
		DeletedAt:    p.DeletedAt,
	}
	m.fromTenantAggregate(p.TenantAggregateRoot)
	return m
}

// ToDomain converts the row to a page
func (m *PageModel) ToDomain() *content.Page {
	return &content.Page{
		TenantAggregateRoot: m.toTenantAggregate(),
		Title:               m.Title,
		Slug:                m.Slug,
		Body:                m.Body,
		Excerpt:             m.Excerpt,
		Status:              m.Status,
		PublishedAt:         m.PublishedAt,
		Template:            m.Template,
		CoverMediaID:        m.CoverMediaID,
		DeletedAt:           m.DeletedAt,
	}
}
