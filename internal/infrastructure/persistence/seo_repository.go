package persistence

import (
	"context"
	"fmt"

	"github.com/backoffice/saas/internal/domain/seo"
	"github.com/backoffice/saas/internal/domain/shared"
	"github.com/backoffice/saas/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormSeoRepository implements seo.Repository
type GormSeoRepository struct {
	db *gorm.DB
}

// NewGormSeoRepository creates a new GormSeoRepository
func NewGormSeoRepository(db *gorm.DB) *GormSeoRepository {
	return &GormSeoRepository{db: db}
}

func (r *GormSeoRepository) scoped(ctx context.Context, tenantID uuid.UUID) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.SeoMetaModel{}).Where("tenant_id = ?", tenantID)
}

// FindBySubject loads the metadata attached to one subject
func (r *GormSeoRepository) FindBySubject(ctx context.Context, tenantID uuid.UUID, subject seo.Subject) (*seo.SeoMeta, error) {
	var m models.SeoMetaModel
	if err := r.scoped(ctx, tenantID).
		Where("subject_type = ? AND subject_id = ?", subject.Type, models.SubjectKey(subject)).
		First(&m).Error; err != nil {
		return nil, translateNotFound(err, "seo metadata")
	}
	return m.ToDomain()
}

// FindAllForTenant lists metadata, optionally for one subject type
func (r *GormSeoRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, subjectType seo.SubjectType, filter shared.Filter) ([]seo.SeoMeta, int64, error) {
	q := r.scoped(ctx, tenantID)
	if subjectType != "" {
		q = q.Where("subject_type = ?", subjectType)
	}
	if filter.Search != "" {
		q = q.Where("LOWER(meta_title) LIKE ?", likePattern(filter.Search))
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count seo metadata: %w", err)
	}
	var rows []models.SeoMetaModel
	if err := paginate(q, filter, SeoSortFields).Find(&rows).Error; err != nil {
		return nil, 0, fmt.Errorf("list seo metadata: %w", err)
	}
	out, err := rowsToDomain(rows, (*models.SeoMetaModel).ToDomain)
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// FindNoIndex returns subjects marked noindex, which sitemaps exclude
func (r *GormSeoRepository) FindNoIndex(ctx context.Context, tenantID uuid.UUID) ([]seo.Subject, error) {
	var rows []models.SeoMetaModel
	if err := r.scoped(ctx, tenantID).
		Select("subject_type", "subject_id").
		Where("robots_index = ?", false).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("find noindex subjects: %w", err)
	}
	out := make([]seo.Subject, len(rows))
	for i := range rows {
		out[i] = rows[i].Subject()
	}
	return out, nil
}

// Save inserts or updates metadata
func (r *GormSeoRepository) Save(ctx context.Context, m *seo.SeoMeta) error {
	return saveVersioned(ctx, r.db, models.SeoMetaModelFromDomain(m))
}

// DeleteBySubject removes the metadata of a subject; missing rows are not an error
func (r *GormSeoRepository) DeleteBySubject(ctx context.Context, tenantID uuid.UUID, subject seo.Subject) error {
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND subject_type = ? AND subject_id = ?", tenantID, subject.Type, models.SubjectKey(subject)).
		Delete(&models.SeoMetaModel{}).Error
	if err != nil {
		return fmt.Errorf("delete seo metadata: %w", err)
	}
	return nil
}
