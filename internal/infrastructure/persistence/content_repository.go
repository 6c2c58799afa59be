package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/backoffice/saas/internal/domain/content"
	"github.com/backoffice/saas/internal/domain/shared"
	"github.com/backoffice/saas/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormPageRepository implements content.Repository
type GormPageRepository struct {
	db *gorm.DB
}

// NewGormPageRepository creates a new GormPageRepository
func NewGormPageRepository(db *gorm.DB) *GormPageRepository {
	return &GormPageRepository{db: db}
}

func (r *GormPageRepository) scoped(ctx context.Context, tenantID uuid.UUID) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.PageModel{}).
		Where("tenant_id = ? AND deleted_at IS NULL", tenantID)
}

// FindByIDForTenant finds a live page
func (r *GormPageRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*content.Page, error) {
	var m models.PageModel
	if err := r.scoped(ctx, tenantID).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, translateNotFound(err, "page")
	}
	return m.ToDomain(), nil
}

// FindBySlug finds a live page by slug
func (r *GormPageRepository) FindBySlug(ctx context.Context, tenantID uuid.UUID, slug string) (*content.Page, error) {
	var m models.PageModel
	if err := r.scoped(ctx, tenantID).Where("slug = ?", slug).First(&m).Error; err != nil {
		return nil, translateNotFound(err, "page")
	}
	return m.ToDomain(), nil
}

// FindAllForTenant lists pages, optionally narrowed to one status
func (r *GormPageRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, status content.PageStatus, filter shared.Filter) ([]content.Page, int64, error) {
	q := r.scoped(ctx, tenantID)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if filter.Search != "" {
		kw := likePattern(filter.Search)
		q = q.Where("LOWER(title) LIKE ? OR LOWER(slug) LIKE ?", kw, kw)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count pages: %w", err)
	}
	var rows []models.PageModel
	if err := paginate(q, filter, PageSortFields).Find(&rows).Error; err != nil {
		return nil, 0, fmt.Errorf("list pages: %w", err)
	}
	return pagesToDomain(rows), total, nil
}

// FindPublished returns every published page
func (r *GormPageRepository) FindPublished(ctx context.Context, tenantID uuid.UUID) ([]content.Page, error) {
	var rows []models.PageModel
	if err := r.scoped(ctx, tenantID).Where("status = ?", content.PagePublished).
		Order("published_at DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list published pages: %w", err)
	}
	return pagesToDomain(rows), nil
}

// ExistsBySlug checks slug uniqueness among live pages
func (r *GormPageRepository) ExistsBySlug(ctx context.Context, tenantID uuid.UUID, slug string, excludeID *uuid.UUID) (bool, error) {
	return existsExcluding(r.scoped(ctx, tenantID).Where("slug = ?", slug), excludeID)
}

// Save inserts or updates a page
func (r *GormPageRepository) Save(ctx context.Context, p *content.Page) error {
	return saveVersioned(ctx, r.db, models.PageModelFromDomain(p))
}

// Delete soft-deletes a page
func (r *GormPageRepository) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	now := time.Now()
	res := r.scoped(ctx, tenantID).Where("id = ?", id).
		Updates(map[string]any{"deleted_at": now, "updated_at": now})
	if res.Error != nil {
		return fmt.Errorf("delete page: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return shared.NotFound("page")
	}
	return nil
}

func pagesToDomain(rows []models.PageModel) []content.Page {
	out := make([]content.Page, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out
}
