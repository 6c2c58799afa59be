package persistence

import (
	"context"
	"fmt"
	"strings"

	"github.com/backoffice/saas/internal/domain/shared"
	"github.com/backoffice/saas/internal/domain/tenant"
	"github.com/backoffice/saas/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormTenantRepository implements tenant.Repository using GORM
type GormTenantRepository struct {
	db *gorm.DB
}

// NewGormTenantRepository creates a new GormTenantRepository
func NewGormTenantRepository(db *gorm.DB) *GormTenantRepository {
	return &GormTenantRepository{db: db}
}

// FindByID finds a tenant by its ID
func (r *GormTenantRepository) FindByID(ctx context.Context, id uuid.UUID) (*tenant.Tenant, error) {
	var m models.TenantModel
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		return nil, translateNotFound(err, "tenant")
	}
	return m.ToDomain()
}

// FindBySlug finds a tenant by its unique slug
func (r *GormTenantRepository) FindBySlug(ctx context.Context, slug string) (*tenant.Tenant, error) {
	var m models.TenantModel
	if err := r.db.WithContext(ctx).
		Where("slug = ?", strings.ToLower(strings.TrimSpace(slug))).
		First(&m).Error; err != nil {
		return nil, translateNotFound(err, "tenant")
	}
	return m.ToDomain()
}

// FindAll lists tenants. Search matches name, slug and email; the
// "status" filter narrows by lifecycle state.
func (r *GormTenantRepository) FindAll(ctx context.Context, filter shared.Filter) ([]tenant.Tenant, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.TenantModel{})
	if filter.Search != "" {
		kw := likePattern(filter.Search)
		q = q.Where("LOWER(name) LIKE ? OR LOWER(slug) LIKE ? OR LOWER(email) LIKE ?", kw, kw, kw)
	}
	if status, ok := filter.String("status"); ok {
		q = q.Where("status = ?", status)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count tenants: %w", err)
	}
	var rows []models.TenantModel
	if err := paginate(q, filter, TenantSortFields).Find(&rows).Error; err != nil {
		return nil, 0, fmt.Errorf("list tenants: %w", err)
	}
	out, err := rowsToDomain(rows, (*models.TenantModel).ToDomain)
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// FindIDs returns the ids of all tenants that are not cancelled
func (r *GormTenantRepository) FindIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).Model(&models.TenantModel{}).
		Where("status <> ?", tenant.StatusCancelled).
		Order("created_at").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("list tenant ids: %w", err)
	}
	return ids, nil
}

// ExistsBySlug checks slug uniqueness
func (r *GormTenantRepository) ExistsBySlug(ctx context.Context, slug string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.TenantModel{}).
		Where("slug = ?", slug).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Save inserts or updates a tenant. storage_used_bytes is owned by
// AdjustStorageUsed and is never overwritten on update.
func (r *GormTenantRepository) Save(ctx context.Context, t *tenant.Tenant) error {
	return saveVersioned(ctx, r.db, models.TenantModelFromDomain(t), "storage_used_bytes")
}

// AdjustStorageUsed applies delta atomically. A positive delta that would
// exceed the quota fails with QUOTA_EXCEEDED; the counter never drops below zero.
func (r *GormTenantRepository) AdjustStorageUsed(ctx context.Context, id uuid.UUID, delta int64) error {
	if delta == 0 {
		return nil
	}
	q := r.db.WithContext(ctx).Model(&models.TenantModel{}).Where("id = ?", id)
	if delta > 0 {
		q = q.Where("storage_quota_bytes < 0 OR storage_used_bytes + ? <= storage_quota_bytes", delta)
	}
	res := q.Update("storage_used_bytes",
		gorm.Expr("CASE WHEN storage_used_bytes + ? < 0 THEN 0 ELSE storage_used_bytes + ? END", delta, delta))
	if res.Error != nil {
		return fmt.Errorf("adjust storage: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		return nil
	}
	if _, err := r.FindByID(ctx, id); err != nil {
		return err
	}
	return shared.QuotaExceeded("storage quota exceeded").WithDetail("requested_bytes", delta)
}
