package content

import (
	"time"

	"github.com/backoffice/saas/internal/domain/content"
	"github.com/backoffice/saas/internal/domain/shared"
	"github.com/google/uuid"
)

// PageRequest creates or replaces a page. An empty slug is derived from
// the title; an empty excerpt is derived from the body.
type PageRequest struct {
	Title        string     `json:"title" binding:"required,min=1,max=200"`
	Slug         string     `json:"slug" binding:"omitempty,max=200"`
	Body         string     `json:"body" binding:"max=200000"`
	Excerpt      string     `json:"excerpt" binding:"max=300"`
	Template     string     `json:"template" binding:"omitempty,max=40"`
	CoverMediaID *uuid.UUID `json:"cover_media_id"`
}

func (r PageRequest) toInput() content.PageInput {
	return content.PageInput{
		Title:        r.Title,
		Slug:         r.Slug,
		Body:         r.Body,
		Excerpt:      r.Excerpt,
		Template:     r.Template,
		CoverMediaID: r.CoverMediaID,
	}
}

// PageListFilter represents query parameters for listing pages
type PageListFilter struct {
	Status   string `form:"status" binding:"omitempty,oneof=draft published"`
	Search   string `form:"search"`
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderBy  string `form:"order_by" binding:"omitempty,oneof=title slug status published_at created_at updated_at"`
	OrderDir string `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

func (f PageListFilter) toSharedFilter() shared.Filter {
	return shared.Filter{
		Page:     f.Page,
		PageSize: f.PageSize,
		OrderBy:  f.OrderBy,
		OrderDir: f.OrderDir,
		Search:   f.Search,
	}.Normalize()
}

// PageResponse represents a page in API responses
type PageResponse struct {
	ID           uuid.UUID  `json:"id"`
	TenantID     uuid.UUID  `json:"tenant_id"`
	Title        string     `json:"title"`
	Slug         string     `json:"slug"`
	Body         string     `json:"body"`
	Excerpt      string     `json:"excerpt"`
	Status       string     `json:"status"`
	PublishedAt  *time.Time `json:"published_at,omitempty"`
	Template     string     `json:"template"`
	CoverMediaID *uuid.UUID `json:"cover_media_id,omitempty"`
	Version      int        `json:"version"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// ToPageResponse converts a domain page to a response
func ToPageResponse(p *content.Page) PageResponse {
	return PageResponse{
		ID:           p.ID,
		TenantID:     p.TenantID,
		Title:        p.Title,
		Slug:         p.Slug,
		Body:         p.Body,
		Excerpt:      p.Excerpt,
		Status:       string(p.Status),
		PublishedAt:  p.PublishedAt,
		Template:     p.Template,
		CoverMediaID: p.CoverMediaID,
		Version:      p.Version,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
}

// PublicPageResponse is what visitors see; drafts never reach it
type PublicPageResponse struct {
	Title        string     `json:"title"`
	Slug         string     `json:"slug"`
	Body         string     `json:"body"`
	Excerpt      string     `json:"excerpt"`
	Template     string     `json:"template"`
	CoverMediaID *uuid.UUID `json:"cover_media_id,omitempty"`
	PublishedAt  *time.Time `json:"published_at,omitempty"`
	UpdatedAt    time.Time  `json:"updated_at"`
}
