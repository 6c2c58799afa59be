package catalog

import (
	"context"
	"errors"

	"github.com/backoffice/saas/internal/domain/catalog"
	"github.com/backoffice/saas/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const maxSlugAttempts = 50

// CategoryService handles category-related business operations
type CategoryService struct {
	categoryRepo catalog.CategoryRepository
	productRepo  catalog.ProductRepository
	media        MediaLookup
	logger       *zap.Logger
}

// NewCategoryService creates a new CategoryService
func NewCategoryService(
	categoryRepo catalog.CategoryRepository,
	productRepo catalog.ProductRepository,
	media MediaLookup,
	logger *zap.Logger,
) *CategoryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CategoryService{
		categoryRepo: categoryRepo,
		productRepo:  productRepo,
		media:        media,
		logger:       logger,
	}
}

// Create creates a new category. A slug derived from the name takes a
// numeric suffix on collision; an explicit slug that is taken is rejected.
func (s *CategoryService) Create(ctx context.Context, tenantID uuid.UUID, req CreateCategoryRequest) (*CategoryResponse, error) {
	var parent *catalog.Category
	if req.ParentID != nil {
		p, err := s.categoryRepo.FindByIDForTenant(ctx, tenantID, *req.ParentID)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return nil, shared.InvalidInput("parent category not found").WithDetail("parent_id", req.ParentID.String())
			}
			return nil, err
		}
		parent = p
	}

	category, err := catalog.NewCategory(tenantID, req.Name, req.Slug, parent)
	if err != nil {
		return nil, err
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	if err := s.checkImage(ctx, tenantID, req.ImageMediaID); err != nil {
		return nil, err
	}
	if err := category.Update(category.Name, category.Slug, req.Description, req.SortOrder, active, req.ImageMediaID); err != nil {
		return nil, err
	}
	if err := s.assignSlug(ctx, category, req.Slug != ""); err != nil {
		return nil, err
	}

	if err := s.categoryRepo.Save(ctx, category); err != nil {
		return nil, err
	}
	s.logger.Info("Category created",
		zap.String("tenant_id", tenantID.String()),
		zap.String("category_id", category.ID.String()),
		zap.Int("depth", category.Depth))
	resp := ToCategoryResponse(category)
	return &resp, nil
}

func (s *CategoryService) assignSlug(ctx context.Context, c *catalog.Category, explicit bool) error {
	base := c.Slug
	for i := 1; i <= maxSlugAttempts; i++ {
		candidate := shared.SlugCandidate(base, i, 140)
		exists, err := s.categoryRepo.ExistsBySlug(ctx, c.TenantID, candidate, &c.ID)
		if err != nil {
			return err
		}
		if !exists {
			c.Slug = candidate
			return nil
		}
		if explicit {
			break
		}
	}
	return shared.NewDomainError(shared.CodeAlreadyExists, "Category with this slug already exists").
		WithDetail("slug", base)
}

func (s *CategoryService) checkImage(ctx context.Context, tenantID uuid.UUID, id *uuid.UUID) error {
	if id == nil || s.media == nil {
		return nil
	}
	found, err := s.media.FindByIDs(ctx, tenantID, []uuid.UUID{*id})
	if err != nil {
		return err
	}
	if len(found) == 0 || !found[0].IsImage() {
		return shared.InvalidInput("image media not found").WithDetail("image_media_id", id.String())
	}
	return nil
}

// GetByID retrieves a category by ID
func (s *CategoryService) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*CategoryResponse, error) {
	category, err := s.categoryRepo.FindByIDForTenant(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	resp := ToCategoryResponse(category)
	return &resp, nil
}

// List retrieves a page of categories, optionally the children of one parent
func (s *CategoryService) List(ctx context.Context, tenantID uuid.UUID, filter CategoryListFilter) ([]CategoryResponse, int64, error) {
	categories, total, err := s.categoryRepo.FindAllForTenant(ctx, tenantID, filter.ParentID, filter.toSharedFilter())
	if err != nil {
		return nil, 0, err
	}
	out := make([]CategoryResponse, len(categories))
	for i := range categories {
		out[i] = ToCategoryResponse(&categories[i])
	}
	return out, total, nil
}

// GetTree retrieves every category as nested nodes
func (s *CategoryService) GetTree(ctx context.Context, tenantID uuid.UUID) ([]CategoryTreeNode, error) {
	categories, err := s.categoryRepo.FindAllFlat(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return toTreeNodes(catalog.BuildTree(categories)), nil
}

// Update updates an existing category
func (s *CategoryService) Update(ctx context.Context, tenantID, id uuid.UUID, req UpdateCategoryRequest) (*CategoryResponse, error) {
	category, err := s.categoryRepo.FindByIDForTenant(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	name, slug, description := category.Name, category.Slug, category.Description
	sortOrder, active, image := category.SortOrder, category.Active, category.ImageMediaID
	slugChanged := false
	if req.Name != nil {
		name = *req.Name
	}
	if req.Slug != nil && *req.Slug != slug {
		slug = *req.Slug
		slugChanged = true
	}
	if req.Description != nil {
		description = *req.Description
	}
	if req.SortOrder != nil {
		sortOrder = *req.SortOrder
	}
	if req.Active != nil {
		active = *req.Active
	}
	if req.ClearImage {
		image = nil
	} else if req.ImageMediaID != nil {
		if err := s.checkImage(ctx, tenantID, req.ImageMediaID); err != nil {
			return nil, err
		}
		image = req.ImageMediaID
	}

	if err := category.Update(name, slug, description, sortOrder, active, image); err != nil {
		return nil, err
	}
	if slugChanged {
		if err := s.assignSlug(ctx, category, true); err != nil {
			return nil, err
		}
	}
	if err := s.categoryRepo.Save(ctx, category); err != nil {
		return nil, err
	}
	resp := ToCategoryResponse(category)
	return &resp, nil
}

// Move re-parents a category. Moving below one of its own descendants or
// past the maximum depth is refused; descendants are re-leveled with it.
func (s *CategoryService) Move(ctx context.Context, tenantID, id uuid.UUID, req MoveCategoryRequest) (*CategoryResponse, error) {
	all, err := s.categoryRepo.FindAllFlat(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]*catalog.Category, len(all))
	children := make(map[uuid.UUID][]uuid.UUID, len(all))
	for i := range all {
		c := &all[i]
		byID[c.ID] = c
		if c.ParentID != nil {
			children[*c.ParentID] = append(children[*c.ParentID], c.ID)
		}
	}
	category, ok := byID[id]
	if !ok {
		return nil, shared.NotFound("category")
	}

	var parent *catalog.Category
	var ancestors []uuid.UUID
	if req.ParentID != nil {
		parent, ok = byID[*req.ParentID]
		if !ok {
			return nil, shared.InvalidInput("parent category not found").WithDetail("parent_id", req.ParentID.String())
		}
		for cur := parent; cur != nil; {
			ancestors = append(ancestors, cur.ID)
			if cur.ParentID == nil || len(ancestors) > len(all) {
				break
			}
			cur = byID[*cur.ParentID]
		}
	}

	descendants := collectDescendants(id, children, byID)
	height := 1
	for _, d := range descendants {
		if h := d.Depth - category.Depth + 1; h > height {
			height = h
		}
	}

	oldDepth := category.Depth
	if err := category.MoveTo(parent, ancestors, height); err != nil {
		return nil, err
	}
	shift := category.Depth - oldDepth
	releveled := make([]catalog.Category, len(descendants))
	for i, d := range descendants {
		releveled[i] = *d
		releveled[i].Depth += shift
	}
	if err := s.categoryRepo.SaveTree(ctx, category, releveled); err != nil {
		return nil, err
	}
	s.logger.Info("Category moved",
		zap.String("tenant_id", tenantID.String()),
		zap.String("category_id", id.String()),
		zap.Int("depth", category.Depth),
		zap.Int("descendants", len(descendants)))
	resp := ToCategoryResponse(category)
	return &resp, nil
}

func collectDescendants(root uuid.UUID, children map[uuid.UUID][]uuid.UUID, byID map[uuid.UUID]*catalog.Category) []*catalog.Category {
	var out []*catalog.Category
	queue := append([]uuid.UUID(nil), children[root]...)
	seen := map[uuid.UUID]bool{root: true}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if seen[id] {
			continue
		}
		seen[id] = true
		if c, ok := byID[id]; ok {
			out = append(out, c)
		}
		queue = append(queue, children[id]...)
	}
	return out
}

// Delete removes a category that has no children and no products
func (s *CategoryService) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	category, err := s.categoryRepo.FindByIDForTenant(ctx, tenantID, id)
	if err != nil {
		return err
	}

	children, err := s.categoryRepo.CountChildren(ctx, tenantID, category.ID)
	if err != nil {
		return err
	}
	if children > 0 {
		return shared.InvalidState("cannot delete a category with subcategories").WithDetail("children", children)
	}

	products, err := s.productRepo.CountByCategory(ctx, tenantID, category.ID)
	if err != nil {
		return err
	}
	if products > 0 {
		return shared.InvalidState("cannot delete a category with products").WithDetail("products", products)
	}

	if err := s.categoryRepo.Delete(ctx, tenantID, id); err != nil {
		return err
	}
	s.logger.Info("Category deleted",
		zap.String("tenant_id", tenantID.String()),
		zap.String("category_id", id.String()))
	return nil
}
