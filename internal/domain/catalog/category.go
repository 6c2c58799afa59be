package catalog

import (
	"strings"
	"unicode/utf8"

	"github.com/backoffice/saas/internal/domain/shared"
	"github.com/google/uuid"
)

// MaxCategoryDepth is the deepest level a category may sit at (root = 1)
const MaxCategoryDepth = 5

// Category groups products in a per-tenant tree
type Category struct {
	shared.TenantAggregateRoot
	Name         string
	Slug         string
	Description  string
	ParentID     *uuid.UUID
	Depth        int
	SortOrder    int
	Active       bool
	ImageMediaID *uuid.UUID
}

// NewCategory creates an active category under parent (nil for a root)
func NewCategory(tenantID uuid.UUID, name, slug string, parent *Category) (*Category, error) {
	c := &Category{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		Active:              true,
		Depth:               1,
	}
	if err := c.rename(name, slug); err != nil {
		return nil, err
	}
	if parent != nil {
		if err := c.placeUnder(parent); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Category) rename(name, slug string) error {
	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) > 120 {
		return shared.InvalidInput("category name must be between 1 and 120 characters")
	}
	if slug == "" {
		slug = shared.Slugify(name)
	}
	if !shared.IsValidSlug(slug) || len(slug) > 140 {
		return shared.InvalidInput("invalid category slug %q", slug)
	}
	c.Name = name
	c.Slug = slug
	return nil
}

func (c *Category) placeUnder(parent *Category) error {
	if parent.TenantID != c.TenantID {
		return shared.InvalidInput("parent category belongs to another tenant")
	}
	if parent.Depth+1 > MaxCategoryDepth {
		return shared.InvalidInput("categories cannot be nested deeper than %d levels", MaxCategoryDepth)
	}
	id := parent.ID
	c.ParentID = &id
	c.Depth = parent.Depth + 1
	return nil
}

// Update changes the descriptive fields
func (c *Category) Update(name, slug, description string, sortOrder int, active bool, imageMediaID *uuid.UUID) error {
	if err := c.rename(name, slug); err != nil {
		return err
	}
	if sortOrder < 0 {
		return shared.InvalidInput("sort order cannot be negative")
	}
	c.Description = strings.TrimSpace(description)
	c.SortOrder = sortOrder
	c.Active = active
	c.ImageMediaID = imageMediaID
	c.IncrementVersion()
	return nil
}

// MoveTo re-parents the category. ancestors lists the ids from the new
// parent up to its root; subtreeHeight is how many levels hang below c
// including c itself.
func (c *Category) MoveTo(parent *Category, ancestors []uuid.UUID, subtreeHeight int) error {
	if parent == nil {
		c.ParentID = nil
		c.Depth = 1
		c.IncrementVersion()
		return nil
	}
	if parent.ID == c.ID {
		return shared.InvalidInput("a category cannot be its own parent")
	}
	for _, id := range ancestors {
		if id == c.ID {
			return shared.InvalidInput("cannot move a category below its own descendant")
		}
	}
	if subtreeHeight < 1 {
		subtreeHeight = 1
	}
	if parent.Depth+subtreeHeight > MaxCategoryDepth {
		return shared.InvalidInput("move would nest categories deeper than %d levels", MaxCategoryDepth)
	}
	if err := c.placeUnder(parent); err != nil {
		return err
	}
	c.IncrementVersion()
	return nil
}

// CategoryNode is a category with its children, for tree rendering
type CategoryNode struct {
	Category
	Children []*CategoryNode
}

// BuildTree arranges a flat list into root nodes. Orphans whose parent is
// missing from the list are treated as roots.
func BuildTree(categories []Category) []*CategoryNode {
	nodes := make(map[uuid.UUID]*CategoryNode, len(categories))
	for i := range categories {
		nodes[categories[i].ID] = &CategoryNode{Category: categories[i]}
	}
	roots := make([]*CategoryNode, 0)
	for i := range categories {
		n := nodes[categories[i].ID]
		if n.ParentID != nil {
			if parent, ok := nodes[*n.ParentID]; ok {
				parent.Children = append(parent.Children, n)
				continue
			}
		}
		roots = append(roots, n)
	}
	return roots
}
