package persistence

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/backoffice/saas/internal/domain/media"
	"github.com/backoffice/saas/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormMediaRepository implements media.Repository
type GormMediaRepository struct {
	db *gorm.DB
}

// NewGormMediaRepository creates a new GormMediaRepository
func NewGormMediaRepository(db *gorm.DB) *GormMediaRepository {
	return &GormMediaRepository{db: db}
}

func (r *GormMediaRepository) scoped(ctx context.Context, tenantID uuid.UUID) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.MediaModel{}).Where("tenant_id = ?", tenantID)
}

// FindByIDForTenant loads one item; trashed rows are hidden unless withTrashed
func (r *GormMediaRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID, withTrashed bool) (*media.Media, error) {
	q := r.scoped(ctx, tenantID).Where("id = ?", id)
	if !withTrashed {
		q = q.Where("deleted_at IS NULL")
	}
	var m models.MediaModel
	if err := q.First(&m).Error; err != nil {
		return nil, translateNotFound(err, "media")
	}
	return m.ToDomain()
}

// FindByIDs returns the live items among ids, in no particular order
func (r *GormMediaRepository) FindByIDs(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]media.Media, error) {
	if len(ids) == 0 {
		return []media.Media{}, nil
	}
	var rows []models.MediaModel
	if err := r.scoped(ctx, tenantID).
		Where("id IN ? AND deleted_at IS NULL", ids).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("find media by ids: %w", err)
	}
	return rowsToDomain(rows, (*models.MediaModel).ToDomain)
}

// List applies the collection, trash, mime and owner filters
func (r *GormMediaRepository) List(ctx context.Context, tenantID uuid.UUID, lq media.ListQuery) ([]media.Media, int64, error) {
	q := r.scoped(ctx, tenantID)
	switch lq.Trashed {
	case media.TrashedOnly:
		q = q.Where("deleted_at IS NOT NULL")
	case media.TrashedWith:
	default:
		q = q.Where("deleted_at IS NULL")
	}
	if lq.Collection != "" {
		q = q.Where("collection = ?", lq.Collection)
	}
	if lq.MimePrefix != "" {
		q = q.Where("mime_type LIKE ?", strings.ToLower(lq.MimePrefix)+"%")
	}
	if lq.ModelType != "" {
		q = q.Where("model_type = ?", lq.ModelType)
	}
	if lq.ModelID != nil {
		q = q.Where("model_id = ?", *lq.ModelID)
	}
	if lq.Filter.Search != "" {
		kw := likePattern(lq.Filter.Search)
		q = q.Where("LOWER(name) LIKE ? OR LOWER(file_name) LIKE ?", kw, kw)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count media: %w", err)
	}
	var rows []models.MediaModel
	if err := paginate(q, lq.Filter, MediaSortFields).Find(&rows).Error; err != nil {
		return nil, 0, fmt.Errorf("list media: %w", err)
	}
	out, err := rowsToDomain(rows, (*models.MediaModel).ToDomain)
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// FindLiveInCollection returns the live items of a collection, oldest first
func (r *GormMediaRepository) FindLiveInCollection(ctx context.Context, tenantID uuid.UUID, collection string) ([]media.Media, error) {
	var rows []models.MediaModel
	if err := r.scoped(ctx, tenantID).
		Where("collection = ? AND deleted_at IS NULL", collection).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("find collection media: %w", err)
	}
	return rowsToDomain(rows, (*models.MediaModel).ToDomain)
}

// FindTrashedBefore returns items trashed before cutoff
func (r *GormMediaRepository) FindTrashedBefore(ctx context.Context, tenantID uuid.UUID, cutoff time.Time, limit int) ([]media.Media, error) {
	var rows []models.MediaModel
	if err := r.scoped(ctx, tenantID).
		Where("deleted_at IS NOT NULL AND deleted_at < ?", cutoff.UTC()).
		Order("deleted_at ASC").Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("find trashed media: %w", err)
	}
	return rowsToDomain(rows, (*models.MediaModel).ToDomain)
}

// Usage counts live and trashed items and sums their bytes
func (r *GormMediaRepository) Usage(ctx context.Context, tenantID uuid.UUID) (media.Usage, error) {
	var row struct {
		LiveCount    int64
		TrashedCount int64
		Bytes        int64
	}
	err := r.scoped(ctx, tenantID).Select(
		"COALESCE(SUM(CASE WHEN deleted_at IS NULL THEN 1 ELSE 0 END), 0) AS live_count, " +
			"COALESCE(SUM(CASE WHEN deleted_at IS NOT NULL THEN 1 ELSE 0 END), 0) AS trashed_count, " +
			"COALESCE(SUM(size), 0) AS bytes",
	).Scan(&row).Error
	if err != nil {
		return media.Usage{}, fmt.Errorf("media usage: %w", err)
	}
	return media.Usage{LiveCount: row.LiveCount, TrashedCount: row.TrashedCount, Bytes: row.Bytes}, nil
}

// Save inserts or updates a media record
func (r *GormMediaRepository) Save(ctx context.Context, m *media.Media) error {
	return saveVersioned(ctx, r.db, models.MediaModelFromDomain(m))
}

// Delete removes the row permanently
func (r *GormMediaRepository) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Where("tenant_id = ? AND id = ?", tenantID, id).Delete(&models.MediaModel{})
	if res.Error != nil {
		return fmt.Errorf("delete media: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return translateNotFound(gorm.ErrRecordNotFound, "media")
	}
	return nil
}
