package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/backoffice/saas/internal/domain/catalog"
	"github.com/backoffice/saas/internal/domain/shared"
	"github.com/backoffice/saas/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormCategoryRepository implements catalog.CategoryRepository
type GormCategoryRepository struct {
	db *gorm.DB
}

// NewGormCategoryRepository creates a new GormCategoryRepository
func NewGormCategoryRepository(db *gorm.DB) *GormCategoryRepository {
	return &GormCategoryRepository{db: db}
}

func (r *GormCategoryRepository) scoped(ctx context.Context, tenantID uuid.UUID) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.CategoryModel{}).Where("tenant_id = ?", tenantID)
}

// FindByIDForTenant finds a category within a tenant
func (r *GormCategoryRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*catalog.Category, error) {
	var m models.CategoryModel
	if err := r.scoped(ctx, tenantID).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, translateNotFound(err, "category")
	}
	return m.ToDomain(), nil
}

// FindAllForTenant lists categories; a nil parentID lists every level
func (r *GormCategoryRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, parentID *uuid.UUID, filter shared.Filter) ([]catalog.Category, int64, error) {
	q := r.scoped(ctx, tenantID)
	if parentID != nil {
		q = q.Where("parent_id = ?", *parentID)
	}
	if filter.Search != "" {
		kw := likePattern(filter.Search)
		q = q.Where("LOWER(name) LIKE ? OR LOWER(slug) LIKE ?", kw, kw)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count categories: %w", err)
	}
	var rows []models.CategoryModel
	if err := paginate(q, filter, CategorySortFields).Find(&rows).Error; err != nil {
		return nil, 0, fmt.Errorf("list categories: %w", err)
	}
	return categoriesToDomain(rows), total, nil
}

// FindAllFlat returns every category ordered by depth, sort order and name
func (r *GormCategoryRepository) FindAllFlat(ctx context.Context, tenantID uuid.UUID) ([]catalog.Category, error) {
	var rows []models.CategoryModel
	if err := r.scoped(ctx, tenantID).
		Order("depth ASC").Order("sort_order ASC").Order("name ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list category tree: %w", err)
	}
	return categoriesToDomain(rows), nil
}

// ExistsBySlug checks slug uniqueness within a tenant
func (r *GormCategoryRepository) ExistsBySlug(ctx context.Context, tenantID uuid.UUID, slug string, excludeID *uuid.UUID) (bool, error) {
	return existsExcluding(r.scoped(ctx, tenantID).Where("slug = ?", slug), excludeID)
}

// CountChildren counts direct children
func (r *GormCategoryRepository) CountChildren(ctx context.Context, tenantID, id uuid.UUID) (int64, error) {
	var n int64
	err := r.scoped(ctx, tenantID).Where("parent_id = ?", id).Count(&n).Error
	return n, err
}

// Save inserts or updates a category
func (r *GormCategoryRepository) Save(ctx context.Context, c *catalog.Category) error {
	return saveVersioned(ctx, r.db, models.CategoryModelFromDomain(c))
}

// SaveTree stores c and rewrites the depth of its descendants in one transaction
func (r *GormCategoryRepository) SaveTree(ctx context.Context, c *catalog.Category, descendants []catalog.Category) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := saveVersioned(ctx, tx, models.CategoryModelFromDomain(c)); err != nil {
			return err
		}
		for i := range descendants {
			d := &descendants[i]
			if err := tx.Model(&models.CategoryModel{}).
				Where("tenant_id = ? AND id = ?", d.TenantID, d.ID).
				Updates(map[string]any{"depth": d.Depth, "updated_at": time.Now()}).Error; err != nil {
				return fmt.Errorf("relevel category %s: %w", d.ID, err)
			}
		}
		return nil
	})
}

// Delete removes a category
func (r *GormCategoryRepository) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Where("tenant_id = ? AND id = ?", tenantID, id).Delete(&models.CategoryModel{})
	if res.Error != nil {
		return fmt.Errorf("delete category: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return shared.NotFound("category")
	}
	return nil
}

func categoriesToDomain(rows []models.CategoryModel) []catalog.Category {
	out := make([]catalog.Category, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out
}

// GormProductRepository implements catalog.ProductRepository. Deleted
// products keep their row with deleted_at set.
type GormProductRepository struct {
	db *gorm.DB
}

// NewGormProductRepository creates a new GormProductRepository
func NewGormProductRepository(db *gorm.DB) *GormProductRepository {
	return &GormProductRepository{db: db}
}

func (r *GormProductRepository) scoped(ctx context.Context, tenantID uuid.UUID) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.ProductModel{}).
		Where("tenant_id = ? AND deleted_at IS NULL", tenantID)
}

// FindByIDForTenant finds a live product
func (r *GormProductRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*catalog.Product, error) {
	var m models.ProductModel
	if err := r.scoped(ctx, tenantID).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, translateNotFound(err, "product")
	}
	return m.ToDomain()
}

// FindAllForTenant lists products with category, status and price filters
func (r *GormProductRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, pq catalog.ProductQuery) ([]catalog.Product, int64, error) {
	q := r.scoped(ctx, tenantID)
	if pq.CategoryID != nil {
		q = q.Where("category_id = ?", *pq.CategoryID)
	}
	if pq.Status != "" {
		q = q.Where("status = ?", pq.Status)
	}
	if pq.MinPrice != nil {
		q = q.Where("price >= ?", *pq.MinPrice)
	}
	if pq.MaxPrice != nil {
		q = q.Where("price <= ?", *pq.MaxPrice)
	}
	if pq.Filter.Search != "" {
		kw := likePattern(pq.Filter.Search)
		q = q.Where("LOWER(name) LIKE ? OR LOWER(sku) LIKE ?", kw, kw)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count products: %w", err)
	}
	var rows []models.ProductModel
	if err := paginate(q, pq.Filter, ProductSortFields).Find(&rows).Error; err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	out, err := rowsToDomain(rows, (*models.ProductModel).ToDomain)
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// FindActive returns every active product
func (r *GormProductRepository) FindActive(ctx context.Context, tenantID uuid.UUID) ([]catalog.Product, error) {
	var rows []models.ProductModel
	if err := r.scoped(ctx, tenantID).Where("status = ?", catalog.ProductActive).
		Order("updated_at DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list active products: %w", err)
	}
	return rowsToDomain(rows, (*models.ProductModel).ToDomain)
}

// ExistsBySKU checks SKU uniqueness among live products
func (r *GormProductRepository) ExistsBySKU(ctx context.Context, tenantID uuid.UUID, sku string, excludeID *uuid.UUID) (bool, error) {
	return existsExcluding(r.scoped(ctx, tenantID).Where("sku = ?", sku), excludeID)
}

// ExistsBySlug checks slug uniqueness among live products
func (r *GormProductRepository) ExistsBySlug(ctx context.Context, tenantID uuid.UUID, slug string, excludeID *uuid.UUID) (bool, error) {
	return existsExcluding(r.scoped(ctx, tenantID).Where("slug = ?", slug), excludeID)
}

// CountForTenant counts live products
func (r *GormProductRepository) CountForTenant(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	var n int64
	err := r.scoped(ctx, tenantID).Count(&n).Error
	return n, err
}

// CountByStatus groups live products by status
func (r *GormProductRepository) CountByStatus(ctx context.Context, tenantID uuid.UUID) (map[catalog.ProductStatus]int64, error) {
	var rows []struct {
		Status catalog.ProductStatus
		Count  int64
	}
	if err := r.scoped(ctx, tenantID).
		Select("status, COUNT(*) AS count").Group("status").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("count products by status: %w", err)
	}
	out := make(map[catalog.ProductStatus]int64, len(rows))
	for _, row := range rows {
		out[row.Status] = row.Count
	}
	return out, nil
}

// CountByCategory counts live products assigned to a category
func (r *GormProductRepository) CountByCategory(ctx context.Context, tenantID, categoryID uuid.UUID) (int64, error) {
	var n int64
	err := r.scoped(ctx, tenantID).Where("category_id = ?", categoryID).Count(&n).Error
	return n, err
}

// Save inserts or updates a product. deleted_at is only written by Delete.
func (r *GormProductRepository) Save(ctx context.Context, p *catalog.Product) error {
	return saveVersioned(ctx, r.db, models.ProductModelFromDomain(p), "deleted_at")
}

// Delete soft-deletes a product
func (r *GormProductRepository) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	now := time.Now()
	res := r.scoped(ctx, tenantID).Where("id = ?", id).
		Updates(map[string]any{"deleted_at": now, "updated_at": now})
	if res.Error != nil {
		return fmt.Errorf("delete product: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return shared.NotFound("product")
	}
	return nil
}

func existsExcluding(q *gorm.DB, excludeID *uuid.UUID) (bool, error) {
	if excludeID != nil {
		q = q.Where("id <> ?", *excludeID)
	}
	var n int64
	if err := q.Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}
