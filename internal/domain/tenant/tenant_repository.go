package tenant

import (
	"context"

	"github.com/backoffice/saas/internal/domain/shared"
	"github.com/google/uuid"
)

// Repository persists tenants
type Repository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Tenant, error)
	FindBySlug(ctx context.Context, slug string) (*Tenant, error)
	FindAll(ctx context.Context, filter shared.Filter) ([]Tenant, int64, error)
	// FindIDs returns the IDs of tenants that are not cancelled
	FindIDs(ctx context.Context) ([]uuid.UUID, error)
	ExistsBySlug(ctx context.Context, slug string) (bool, error)
	// Save inserts or updates the tenant, failing with CONCURRENCY_CONFLICT
	// when the stored version moved.
	Save(ctx context.Context, t *Tenant) error
	// AdjustStorageUsed applies delta to storage_used_bytes atomically,
	// never going below zero.
	AdjustStorageUsed(ctx context.Context, id uuid.UUID, delta int64) error
}
