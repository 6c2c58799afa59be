package catalog

import (
	"context"

	"github.com/backoffice/saas/internal/domain/media"
	"github.com/backoffice/saas/internal/domain/tenant"
	"github.com/google/uuid"
)

// MediaLookup resolves library items referenced by categories and products
type MediaLookup interface {
	// FindByIDs returns the non-trashed items among ids
	FindByIDs(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]media.Media, error)
}

// TenantReader loads the tenant whose plan limits apply
type TenantReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*tenant.Tenant, error)
}

// HTMLSanitizer cleans editor HTML before it is stored
type HTMLSanitizer interface {
	Sanitize(html string) string
}
