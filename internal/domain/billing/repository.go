package billing

import (
	"context"
	"time"

	"github.com/backoffice/saas/internal/domain/shared"
	"github.com/google/uuid"
)

// PaymentRepository persists payments
type PaymentRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Payment, error)
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*Payment, error)
	FindByOrderNumber(ctx context.Context, orderNumber string) (*Payment, error)
	FindByGatewayTransaction(ctx context.Context, gateway GatewayType, transactionID string) (*Payment, error)
	FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]Payment, int64, error)
	// FindPendingBefore returns pending payments created before cutoff
	FindPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]Payment, error)
	// FindLatestForTenant returns the most recent payment, or ErrNotFound
	FindLatestForTenant(ctx context.Context, tenantID uuid.UUID) (*Payment, error)
	Save(ctx context.Context, p *Payment) error
}

// SubscriptionRepository persists subscriptions
type SubscriptionRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Subscription, error)
	// FindCurrentForTenant returns the live subscription, falling back to
	// the newest pending one, or ErrNotFound.
	FindCurrentForTenant(ctx context.Context, tenantID uuid.UUID) (*Subscription, error)
	FindLiveForTenant(ctx context.Context, tenantID uuid.UUID) ([]Subscription, error)
	// FindPendingForTenant returns the newest pending subscription, or ErrNotFound
	FindPendingForTenant(ctx context.Context, tenantID uuid.UUID) (*Subscription, error)
	// FindDueForExpiry returns live subscriptions whose period ended before now
	FindDueForExpiry(ctx context.Context, now time.Time, limit int) ([]Subscription, error)
	Save(ctx context.Context, s *Subscription) error
}

// WebhookEventRepository persists the webhook inbox
type WebhookEventRepository interface {
	Save(ctx context.Context, w *WebhookEvent) error
	FindByID(ctx context.Context, id uuid.UUID) (*WebhookEvent, error)
	FindAll(ctx context.Context, gateway GatewayType, status WebhookStatus, filter shared.Filter) ([]WebhookEvent, int64, error)
}
