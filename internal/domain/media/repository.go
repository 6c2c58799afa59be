package media

import (
	"context"
	"time"

	"github.com/backoffice/saas/internal/domain/shared"
	"github.com/google/uuid"
)

// TrashedScope selects soft-deleted rows
type TrashedScope string

const (
	TrashedWithout TrashedScope = "without"
	TrashedWith    TrashedScope = "with"
	TrashedOnly    TrashedScope = "only"
)

// ParseTrashedScope defaults to TrashedWithout
func ParseTrashedScope(s string) (TrashedScope, error) {
	switch TrashedScope(s) {
	case "", TrashedWithout:
		return TrashedWithout, nil
	case TrashedWith, TrashedOnly:
		return TrashedScope(s), nil
	}
	return "", shared.InvalidInput("trashed must be without, with or only")
}

// ListQuery narrows a media listing
type ListQuery struct {
	Collection string
	Trashed    TrashedScope
	MimePrefix string
	ModelType  string
	ModelID    *uuid.UUID
	Filter     shared.Filter
}

// Usage summarizes a tenant's library
type Usage struct {
	LiveCount    int64
	TrashedCount int64
	Bytes        int64
}

// Repository persists media records
type Repository interface {
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID, withTrashed bool) (*Media, error)
	// FindByIDs returns the non-trashed items among ids
	FindByIDs(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]Media, error)
	List(ctx context.Context, tenantID uuid.UUID, q ListQuery) ([]Media, int64, error)
	FindLiveInCollection(ctx context.Context, tenantID uuid.UUID, collection string) ([]Media, error)
	FindTrashedBefore(ctx context.Context, tenantID uuid.UUID, cutoff time.Time, limit int) ([]Media, error)
	Usage(ctx context.Context, tenantID uuid.UUID) (Usage, error)
	Save(ctx context.Context, m *Media) error
	// Delete removes the row permanently
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
}
