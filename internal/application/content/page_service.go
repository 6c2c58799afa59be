package content

import (
	"context"
	"errors"
	"time"

	"github.com/backoffice/saas/internal/domain/content"
	"github.com/backoffice/saas/internal/domain/media"
	"github.com/backoffice/saas/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const maxSlugAttempts = 50

// MediaLookup resolves cover images
type MediaLookup interface {
	FindByIDs(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]media.Media, error)
}

// PageService manages editor pages
type PageService struct {
	pageRepo  content.Repository
	media     MediaLookup
	sanitizer content.Sanitizer
	logger    *zap.Logger
	now       func() time.Time
}

// NewPageService creates a new PageService
func NewPageService(pageRepo content.Repository, media MediaLookup, sanitizer content.Sanitizer, logger *zap.Logger) *PageService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PageService{
		pageRepo:  pageRepo,
		media:     media,
		sanitizer: sanitizer,
		logger:    logger,
		now:       time.Now,
	}
}

// Create creates a draft page
func (s *PageService) Create(ctx context.Context, tenantID uuid.UUID, req PageRequest) (*PageResponse, error) {
	if err := s.checkCover(ctx, tenantID, req.CoverMediaID); err != nil {
		return nil, err
	}
	page, err := content.NewPage(tenantID, req.toInput(), s.sanitizer)
	if err != nil {
		return nil, err
	}
	if err := s.assignSlug(ctx, page, req.Slug != ""); err != nil {
		return nil, err
	}
	if err := s.pageRepo.Save(ctx, page); err != nil {
		return nil, err
	}
	s.logger.Info("Page created",
		zap.String("tenant_id", tenantID.String()),
		zap.String("page_id", page.ID.String()),
		zap.String("slug", page.Slug))
	resp := ToPageResponse(page)
	return &resp, nil
}

// Update replaces the content of a page
func (s *PageService) Update(ctx context.Context, tenantID, id uuid.UUID, req PageRequest) (*PageResponse, error) {
	page, err := s.pageRepo.FindByIDForTenant(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if err := s.checkCover(ctx, tenantID, req.CoverMediaID); err != nil {
		return nil, err
	}
	oldSlug := page.Slug
	in := req.toInput()
	if in.Slug == "" {
		in.Slug = oldSlug
	}
	if err := page.Update(in, s.sanitizer); err != nil {
		return nil, err
	}
	if page.Slug != oldSlug {
		if err := s.assignSlug(ctx, page, true); err != nil {
			return nil, err
		}
	}
	if err := s.pageRepo.Save(ctx, page); err != nil {
		return nil, err
	}
	resp := ToPageResponse(page)
	return &resp, nil
}

func (s *PageService) assignSlug(ctx context.Context, p *content.Page, explicit bool) error {
	base := p.Slug
	for i := 1; i <= maxSlugAttempts; i++ {
		candidate := shared.SlugCandidate(base, i, 200)
		exists, err := s.pageRepo.ExistsBySlug(ctx, p.TenantID, candidate, &p.ID)
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
	return shared.NewDomainError(shared.CodeAlreadyExists, "Page with this slug already exists").
		WithDetail("slug", base)
}

func (s *PageService) checkCover(ctx context.Context, tenantID uuid.UUID, id *uuid.UUID) error {
	if id == nil || s.media == nil {
		return nil
	}
	found, err := s.media.FindByIDs(ctx, tenantID, []uuid.UUID{*id})
	if err != nil {
		return err
	}
	if len(found) == 0 || !found[0].IsImage() {
		return shared.InvalidInput("cover media must be an image").WithDetail("cover_media_id", id.String())
	}
	return nil
}

// GetByID retrieves a page by ID
func (s *PageService) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*PageResponse, error) {
	page, err := s.pageRepo.FindByIDForTenant(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	resp := ToPageResponse(page)
	return &resp, nil
}

// GetBySlug retrieves a page of the tenant by slug, in any status
func (s *PageService) GetBySlug(ctx context.Context, tenantID uuid.UUID, slug string) (*PageResponse, error) {
	page, err := s.pageRepo.FindBySlug(ctx, tenantID, slug)
	if err != nil {
		return nil, err
	}
	resp := ToPageResponse(page)
	return &resp, nil
}

// GetPublished retrieves a page for visitors. Drafts are reported as not found.
func (s *PageService) GetPublished(ctx context.Context, tenantID uuid.UUID, slug string) (*PublicPageResponse, error) {
	page, err := s.pageRepo.FindBySlug(ctx, tenantID, slug)
	if err != nil {
		return nil, err
	}
	if !page.IsPublic() {
		return nil, shared.NotFound("page")
	}
	return &PublicPageResponse{
		Title:        page.Title,
		Slug:         page.Slug,
		Body:         page.Body,
		Excerpt:      page.Excerpt,
		Template:     page.Template,
		CoverMediaID: page.CoverMediaID,
		PublishedAt:  page.PublishedAt,
		UpdatedAt:    page.UpdatedAt,
	}, nil
}

// List retrieves a page of pages
func (s *PageService) List(ctx context.Context, tenantID uuid.UUID, filter PageListFilter) ([]PageResponse, int64, error) {
	pages, total, err := s.pageRepo.FindAllForTenant(ctx, tenantID, content.PageStatus(filter.Status), filter.toSharedFilter())
	if err != nil {
		return nil, 0, err
	}
	out := make([]PageResponse, len(pages))
	for i := range pages {
		out[i] = ToPageResponse(&pages[i])
	}
	return out, total, nil
}

// Publish makes a page public
func (s *PageService) Publish(ctx context.Context, tenantID, id uuid.UUID) (*PageResponse, error) {
	return s.mutate(ctx, tenantID, id, func(p *content.Page) error {
		return p.Publish(s.now())
	})
}

// Unpublish returns a page to draft
func (s *PageService) Unpublish(ctx context.Context, tenantID, id uuid.UUID) (*PageResponse, error) {
	return s.mutate(ctx, tenantID, id, (*content.Page).Unpublish)
}

func (s *PageService) mutate(ctx context.Context, tenantID, id uuid.UUID, fn func(*content.Page) error) (*PageResponse, error) {
	page, err := s.pageRepo.FindByIDForTenant(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if err := fn(page); err != nil {
		return nil, err
	}
	if err := s.pageRepo.Save(ctx, page); err != nil {
		return nil, err
	}
	resp := ToPageResponse(page)
	return &resp, nil
}

// Delete soft-deletes a page
func (s *PageService) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	if err := s.pageRepo.Delete(ctx, tenantID, id); err != nil {
		if !errors.Is(err, shared.ErrNotFound) {
			s.logger.Error("Failed to delete page", zap.String("page_id", id.String()), zap.Error(err))
		}
		return err
	}
	s.logger.Info("Page deleted",
		zap.String("tenant_id", tenantID.String()),
		zap.String("page_id", id.String()))
	return nil
}
