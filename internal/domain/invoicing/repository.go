package invoicing

import (
	"context"
	"time"

	"github.com/backoffice/saas/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Query narrows an invoice listing
type Query struct {
	Status Status
	From   *time.Time
	To     *time.Time
	Filter shared.Filter
}

// Revenue is an amount in one currency
type Revenue struct {
	Currency string
	Total    decimal.Decimal
}

// Repository persists invoices
type Repository interface {
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*Invoice, error)
	FindAllForTenant(ctx context.Context, tenantID uuid.UUID, q Query) ([]Invoice, int64, error)
	Save(ctx context.Context, inv *Invoice) error
	// IssueWithNextNumber locks the tenant and its series counter, then calls
	// issue with the next number and the count of invoices numbered at or
	// after since. The invoice is persisted in the same transaction.
	IssueWithNextNumber(ctx context.Context, inv *Invoice, since time.Time, issue func(number, issuedSince int64) error) error
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
	// CountIssuedSince counts invoices that received a number at or after since
	CountIssuedSince(ctx context.Context, tenantID uuid.UUID, since time.Time) (int64, error)
	RevenueSince(ctx context.Context, tenantID uuid.UUID, since time.Time) ([]Revenue, error)
}
