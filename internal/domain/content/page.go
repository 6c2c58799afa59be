package content

import (
	"context"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/backoffice/saas/internal/domain/shared"
	"github.com/google/uuid"
)

// PageStatus is the publication state of a page
type PageStatus string

const (
	PageDraft     PageStatus = "draft"
	PagePublished PageStatus = "published"
)

const (
	DefaultTemplate = "default"
	maxExcerpt      = 300
)

var (
	templatePattern = regexp.MustCompile(`^[a-z][a-z0-9_-]{0,39}$`)
	tagPattern      = regexp.MustCompile(`<[^>]*>`)
)

// Sanitizer cleans editor HTML before it is stored
type Sanitizer interface {
	Sanitize(html string) string
}

// Page is a block of editor-authored content
type Page struct {
	shared.TenantAggregateRoot
	Title        string
	Slug         string
	Body         string
	Excerpt      string
	Status       PageStatus
	PublishedAt  *time.Time
	Template     string
	CoverMediaID *uuid.UUID
	DeletedAt    *time.Time
}

// PageInput carries the editable page fields
type PageInput struct {
	Title        string
	Slug         string
	Body         string
	Excerpt      string
	Template     string
	CoverMediaID *uuid.UUID
}

// NewPage creates a draft page with a sanitized body
func NewPage(tenantID uuid.UUID, in PageInput, sanitizer Sanitizer) (*Page, error) {
	p := &Page{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		Status:              PageDraft,
	}
	if err := p.apply(in, sanitizer); err != nil {
		return nil, err
	}
	return p, nil
}

// Update replaces the page content
func (p *Page) Update(in PageInput, sanitizer Sanitizer) error {
	if err := p.apply(in, sanitizer); err != nil {
		return err
	}
	p.IncrementVersion()
	return nil
}

func (p *Page) apply(in PageInput, sanitizer Sanitizer) error {
	title := strings.TrimSpace(in.Title)
	if title == "" || utf8.RuneCountInString(title) > 200 {
		return shared.InvalidInput("page title must be between 1 and 200 characters")
	}
	slug := strings.TrimSpace(in.Slug)
	if slug == "" {
		slug = shared.Slugify(title)
	}
	if !shared.IsValidSlug(slug) || len(slug) > 200 {
		return shared.InvalidInput("invalid page slug %q", slug)
	}
	tmpl := in.Template
	if tmpl == "" {
		tmpl = DefaultTemplate
	}
	if !templatePattern.MatchString(tmpl) {
		return shared.InvalidInput("invalid template name %q", tmpl)
	}
	body := in.Body
	if sanitizer != nil {
		body = sanitizer.Sanitize(body)
	}
	excerpt := strings.TrimSpace(in.Excerpt)
	if excerpt == "" {
		excerpt = deriveExcerpt(body)
	}
	if utf8.RuneCountInString(excerpt) > maxExcerpt {
		return shared.InvalidInput("excerpt cannot exceed %d characters", maxExcerpt)
	}

	p.Title = title
	p.Slug = slug
	p.Body = body
	p.Excerpt = excerpt
	p.Template = tmpl
	p.CoverMediaID = in.CoverMediaID
	return nil
}

func deriveExcerpt(body string) string {
	text := strings.Join(strings.Fields(tagPattern.ReplaceAllString(body, " ")), " ")
	if utf8.RuneCountInString(text) <= maxExcerpt {
		return text
	}
	runes := []rune(text)[:maxExcerpt-1]
	return strings.TrimSpace(string(runes)) + "…"
}

// Publish makes the page publicly reachable
func (p *Page) Publish(now time.Time) error {
	if p.Status == PagePublished {
		return shared.InvalidState("page is already published")
	}
	at := now.UTC()
	p.Status = PagePublished
	if p.PublishedAt == nil {
		p.PublishedAt = &at
	}
	p.IncrementVersion()
	return nil
}

// Unpublish returns the page to draft
func (p *Page) Unpublish() error {
	if p.Status != PagePublished {
		return shared.InvalidState("page is not published")
	}
	p.Status = PageDraft
	p.IncrementVersion()
	return nil
}

// IsPublic reports whether visitors may see the page
func (p *Page) IsPublic() bool {
	return p.Status == PagePublished && p.DeletedAt == nil
}

// Repository persists pages; Delete is a soft delete
type Repository interface {
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*Page, error)
	FindBySlug(ctx context.Context, tenantID uuid.UUID, slug string) (*Page, error)
	FindAllForTenant(ctx context.Context, tenantID uuid.UUID, status PageStatus, filter shared.Filter) ([]Page, int64, error)
	FindPublished(ctx context.Context, tenantID uuid.UUID) ([]Page, error)
	ExistsBySlug(ctx context.Context, tenantID uuid.UUID, slug string, excludeID *uuid.UUID) (bool, error)
	Save(ctx context.Context, p *Page) error
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
}
