package seo

import (
	"context"
	"errors"

	"github.com/backoffice/saas/internal/domain/catalog"
	"github.com/backoffice/saas/internal/domain/content"
	"github.com/backoffice/saas/internal/domain/media"
	"github.com/backoffice/saas/internal/domain/seo"
	"github.com/backoffice/saas/internal/domain/shared"
	"github.com/backoffice/saas/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MediaLookup resolves open graph images
type MediaLookup interface {
	FindByIDs(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]media.Media, error)
}

// SeoServiceConfig holds the collaborators of SeoService
type SeoServiceConfig struct {
	Seo        seo.Repository
	Pages      content.Repository
	Products   catalog.ProductRepository
	Categories catalog.CategoryRepository
	Media      MediaLookup
	Logger     *zap.Logger
}

// SeoService manages search metadata and sitemaps
type SeoService struct {
	seoRepo      seo.Repository
	pageRepo     content.Repository
	productRepo  catalog.ProductRepository
	categoryRepo catalog.CategoryRepository
	media        MediaLookup
	logger       *zap.Logger
}

// NewSeoService creates a new SeoService
func NewSeoService(cfg SeoServiceConfig) *SeoService {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SeoService{
		seoRepo:      cfg.Seo,
		pageRepo:     cfg.Pages,
		productRepo:  cfg.Products,
		categoryRepo: cfg.Categories,
		media:        cfg.Media,
		logger:       logger,
	}
}

// Upsert creates or replaces the metadata of a subject. The subject must
// exist in the tenant.
func (s *SeoService) Upsert(ctx context.Context, tenantID uuid.UUID, req UpsertSeoRequest) (*SeoResponse, error) {
	subject, err := req.toDomain()
	if err != nil {
		return nil, err
	}
	if _, err := s.subjectPublished(ctx, tenantID, subject); err != nil {
		return nil, err
	}
	if err := s.checkOgImage(ctx, tenantID, req.OgImageMediaID); err != nil {
		return nil, err
	}

	meta, err := s.seoRepo.FindBySubject(ctx, tenantID, subject)
	switch {
	case err == nil:
		err = meta.Update(req.toInput())
	case errors.Is(err, shared.ErrNotFound):
		meta, err = seo.NewSeoMeta(tenantID, subject, req.toInput())
	}
	if err != nil {
		return nil, err
	}
	if err := s.seoRepo.Save(ctx, meta); err != nil {
		return nil, err
	}
	s.logger.Info("Seo metadata saved",
		zap.String("tenant_id", tenantID.String()),
		zap.String("subject", subject.String()),
		zap.String("robots", meta.Robots.String()))
	resp := ToSeoResponse(meta)
	return &resp, nil
}

func (s *SeoService) checkOgImage(ctx context.Context, tenantID uuid.UUID, id *uuid.UUID) error {
	if id == nil || s.media == nil {
		return nil
	}
	found, err := s.media.FindByIDs(ctx, tenantID, []uuid.UUID{*id})
	if err != nil {
		return err
	}
	if len(found) == 0 || !found[0].IsImage() {
		return shared.InvalidInput("open graph image must be an image").WithDetail("og_image_media_id", id.String())
	}
	return nil
}

// subjectPublished loads the subject and reports whether visitors can see it
func (s *SeoService) subjectPublished(ctx context.Context, tenantID uuid.UUID, subject seo.Subject) (bool, error) {
	switch subject.Type {
	case seo.SubjectPage:
		p, err := s.pageRepo.FindByIDForTenant(ctx, tenantID, *subject.ID)
		if err != nil {
			return false, err
		}
		return p.IsPublic(), nil
	case seo.SubjectProduct:
		p, err := s.productRepo.FindByIDForTenant(ctx, tenantID, *subject.ID)
		if err != nil {
			return false, err
		}
		return p.Status == catalog.ProductActive, nil
	case seo.SubjectCategory:
		c, err := s.categoryRepo.FindByIDForTenant(ctx, tenantID, *subject.ID)
		if err != nil {
			return false, err
		}
		return c.Active, nil
	default:
		return true, nil
	}
}

// Get retrieves the metadata of a subject
func (s *SeoService) Get(ctx context.Context, tenantID uuid.UUID, ref SubjectRef) (*SeoResponse, error) {
	subject, err := ref.toDomain()
	if err != nil {
		return nil, err
	}
	meta, err := s.seoRepo.FindBySubject(ctx, tenantID, subject)
	if err != nil {
		return nil, err
	}
	resp := ToSeoResponse(meta)
	return &resp, nil
}

// Delete removes the metadata of a subject
func (s *SeoService) Delete(ctx context.Context, tenantID uuid.UUID, ref SubjectRef) error {
	subject, err := ref.toDomain()
	if err != nil {
		return err
	}
	return s.seoRepo.DeleteBySubject(ctx, tenantID, subject)
}

// List retrieves a page of metadata records
func (s *SeoService) List(ctx context.Context, tenantID uuid.UUID, filter SeoListFilter) ([]SeoResponse, int64, error) {
	metas, total, err := s.seoRepo.FindAllForTenant(ctx, tenantID, seo.SubjectType(filter.SubjectType), filter.toSharedFilter())
	if err != nil {
		return nil, 0, err
	}
	out := make([]SeoResponse, len(metas))
	for i := range metas {
		out[i] = ToSeoResponse(&metas[i])
	}
	return out, total, nil
}

// Analyze reports metadata problems of a subject
func (s *SeoService) Analyze(ctx context.Context, tenantID uuid.UUID, ref SubjectRef) (*AnalysisResponse, error) {
	subject, err := ref.toDomain()
	if err != nil {
		return nil, err
	}
	published, err := s.subjectPublished(ctx, tenantID, subject)
	if err != nil {
		return nil, err
	}
	meta, err := s.seoRepo.FindBySubject(ctx, tenantID, subject)
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}
	issues := seo.Analyze(meta, seo.SubjectState{Published: published})
	if issues == nil {
		issues = []seo.Issue{}
	}
	return &AnalysisResponse{
		SubjectType: string(subject.Type),
		SubjectID:   subject.ID,
		Published:   published,
		Score:       score(issues),
		Issues:      issues,
	}, nil
}

func score(issues []seo.Issue) int {
	total := 100
	for _, is := range issues {
		switch is.Severity {
		case seo.SeverityError:
			total -= 25
		case seo.SeverityWarning:
			total -= 10
		case seo.SeverityInfo:
			total -= 3
		}
	}
	if total < 0 {
		return 0
	}
	return total
}

// Sitemap renders the public urlset of a tenant: home, published pages,
// active products and active categories, minus noindex subjects.
func (s *SeoService) Sitemap(ctx context.Context, tenantID uuid.UUID, baseURL string) ([]byte, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "seo", "sitemap")
	defer span.End()

	items := []seo.SitemapItem{{Subject: seo.Subject{Type: seo.SubjectHome}}}

	pages, err := s.pageRepo.FindPublished(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	for i := range pages {
		id := pages[i].ID
		items = append(items, seo.SitemapItem{
			Subject:   seo.Subject{Type: seo.SubjectPage, ID: &id},
			Slug:      pages[i].Slug,
			UpdatedAt: pages[i].UpdatedAt,
		})
	}

	categories, err := s.categoryRepo.FindAllFlat(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	for i := range categories {
		if !categories[i].Active {
			continue
		}
		id := categories[i].ID
		items = append(items, seo.SitemapItem{
			Subject:   seo.Subject{Type: seo.SubjectCategory, ID: &id},
			Slug:      categories[i].Slug,
			UpdatedAt: categories[i].UpdatedAt,
		})
	}

	products, err := s.productRepo.FindActive(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	for i := range products {
		id := products[i].ID
		items = append(items, seo.SitemapItem{
			Subject:   seo.Subject{Type: seo.SubjectProduct, ID: &id},
			Slug:      products[i].Slug,
			UpdatedAt: products[i].UpdatedAt,
		})
	}

	excluded, err := s.seoRepo.FindNoIndex(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	out, err := seo.BuildSitemap(baseURL, items, excluded)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, shared.InvalidInput("%s", err.Error())
	}
	telemetry.SetAttributes(span, "sitemap.candidates", len(items), "sitemap.excluded", len(excluded))
	return out, nil
}
