package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/backoffice/saas/internal/domain/billing"
	"github.com/backoffice/saas/internal/domain/shared"
	"github.com/backoffice/saas/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormPaymentRepository implements billing.PaymentRepository
type GormPaymentRepository struct {
	db *gorm.DB
}

// NewGormPaymentRepository creates a new GormPaymentRepository
func NewGormPaymentRepository(db *gorm.DB) *GormPaymentRepository {
	return &GormPaymentRepository{db: db}
}

func (r *GormPaymentRepository) first(ctx context.Context, query string, args ...any) (*billing.Payment, error) {
	var m models.PaymentModel
	if err := r.db.WithContext(ctx).Where(query, args...).First(&m).Error; err != nil {
		return nil, translateNotFound(err, "payment")
	}
	return m.ToDomain(), nil
}

// FindByID looks a payment up without tenant scoping (webhooks)
func (r *GormPaymentRepository) FindByID(ctx context.Context, id uuid.UUID) (*billing.Payment, error) {
	return r.first(ctx, "id = ?", id)
}

// FindByIDForTenant looks a payment up within a tenant
func (r *GormPaymentRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*billing.Payment, error) {
	return r.first(ctx, "tenant_id = ? AND id = ?", tenantID, id)
}

// FindByOrderNumber resolves the client transaction id sent to the gateway
func (r *GormPaymentRepository) FindByOrderNumber(ctx context.Context, orderNumber string) (*billing.Payment, error) {
	return r.first(ctx, "order_number = ?", orderNumber)
}

// FindByGatewayTransaction resolves the gateway-side id
func (r *GormPaymentRepository) FindByGatewayTransaction(ctx context.Context, gateway billing.GatewayType, transactionID string) (*billing.Payment, error) {
	return r.first(ctx, "gateway = ? AND gateway_transaction_id = ?", gateway, transactionID)
}

// FindAllForTenant lists payments; "status" and "gateway" filters apply
func (r *GormPaymentRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]billing.Payment, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.PaymentModel{}).Where("tenant_id = ?", tenantID)
	if status, ok := filter.String("status"); ok {
		q = q.Where("status = ?", status)
	}
	if gw, ok := filter.String("gateway"); ok {
		q = q.Where("gateway = ?", gw)
	}
	if filter.Search != "" {
		q = q.Where("LOWER(order_number) LIKE ?", likePattern(filter.Search))
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count payments: %w", err)
	}
	var rows []models.PaymentModel
	if err := paginate(q, filter, PaymentSortFields).Find(&rows).Error; err != nil {
		return nil, 0, fmt.Errorf("list payments: %w", err)
	}
	return paymentsToDomain(rows), total, nil
}

// FindPendingBefore returns pending payments created before cutoff, oldest first
func (r *GormPaymentRepository) FindPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]billing.Payment, error) {
	var rows []models.PaymentModel
	err := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", billing.PaymentStatusPending, cutoff.UTC()).
		Order("created_at ASC").Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("find pending payments: %w", err)
	}
	return paymentsToDomain(rows), nil
}

// FindLatestForTenant returns the newest payment of the tenant
func (r *GormPaymentRepository) FindLatestForTenant(ctx context.Context, tenantID uuid.UUID) (*billing.Payment, error) {
	var m models.PaymentModel
	if err := r.db.WithContext(ctx).Where("tenant_id = ?", tenantID).
		Order("created_at DESC").First(&m).Error; err != nil {
		return nil, translateNotFound(err, "payment")
	}
	return m.ToDomain(), nil
}

// Save inserts or updates a payment
func (r *GormPaymentRepository) Save(ctx context.Context, p *billing.Payment) error {
	return saveVersioned(ctx, r.db, models.PaymentModelFromDomain(p))
}

func paymentsToDomain(rows []models.PaymentModel) []billing.Payment {
	out := make([]billing.Payment, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out
}

// GormSubscriptionRepository implements billing.SubscriptionRepository
type GormSubscriptionRepository struct {
	db *gorm.DB
}

// NewGormSubscriptionRepository creates a new GormSubscriptionRepository
func NewGormSubscriptionRepository(db *gorm.DB) *GormSubscriptionRepository {
	return &GormSubscriptionRepository{db: db}
}

var liveSubscriptionStatuses = []billing.SubscriptionStatus{billing.SubscriptionActive, billing.SubscriptionPastDue}

// FindByID finds a subscription by id
func (r *GormSubscriptionRepository) FindByID(ctx context.Context, id uuid.UUID) (*billing.Subscription, error) {
	var m models.SubscriptionModel
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		return nil, translateNotFound(err, "subscription")
	}
	return m.ToDomain(), nil
}

// FindCurrentForTenant returns the live subscription with the latest period
// end, else the newest pending one.
func (r *GormSubscriptionRepository) FindCurrentForTenant(ctx context.Context, tenantID uuid.UUID) (*billing.Subscription, error) {
	var m models.SubscriptionModel
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND status IN ?", tenantID, liveSubscriptionStatuses).
		Order("current_period_end DESC").First(&m).Error
	if err == nil {
		return m.ToDomain(), nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, fmt.Errorf("find live subscription: %w", err)
	}
	return r.FindPendingForTenant(ctx, tenantID)
}

// FindPendingForTenant returns the newest pending subscription
func (r *GormSubscriptionRepository) FindPendingForTenant(ctx context.Context, tenantID uuid.UUID) (*billing.Subscription, error) {
	var m models.SubscriptionModel
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND status = ?", tenantID, billing.SubscriptionPending).
		Order("created_at DESC").First(&m).Error
	if err != nil {
		return nil, translateNotFound(err, "subscription")
	}
	return m.ToDomain(), nil
}

// FindLiveForTenant returns active and past-due subscriptions
func (r *GormSubscriptionRepository) FindLiveForTenant(ctx context.Context, tenantID uuid.UUID) ([]billing.Subscription, error) {
	var rows []models.SubscriptionModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND status IN ?", tenantID, liveSubscriptionStatuses).
		Order("created_at").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("find live subscriptions: %w", err)
	}
	return subscriptionsToDomain(rows), nil
}

// FindDueForExpiry returns live subscriptions whose period ended before now
func (r *GormSubscriptionRepository) FindDueForExpiry(ctx context.Context, now time.Time, limit int) ([]billing.Subscription, error) {
	var rows []models.SubscriptionModel
	if err := r.db.WithContext(ctx).
		Where("status IN ? AND current_period_end < ?", liveSubscriptionStatuses, now.UTC()).
		Order("current_period_end ASC").Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("find due subscriptions: %w", err)
	}
	return subscriptionsToDomain(rows), nil
}

// Save inserts or updates a subscription
func (r *GormSubscriptionRepository) Save(ctx context.Context, s *billing.Subscription) error {
	return saveVersioned(ctx, r.db, models.SubscriptionModelFromDomain(s))
}

func subscriptionsToDomain(rows []models.SubscriptionModel) []billing.Subscription {
	out := make([]billing.Subscription, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out
}

// GormWebhookEventRepository implements billing.WebhookEventRepository
type GormWebhookEventRepository struct {
	db *gorm.DB
}

// NewGormWebhookEventRepository creates a new GormWebhookEventRepository
func NewGormWebhookEventRepository(db *gorm.DB) *GormWebhookEventRepository {
	return &GormWebhookEventRepository{db: db}
}

// Save upserts an inbox record
func (r *GormWebhookEventRepository) Save(ctx context.Context, w *billing.WebhookEvent) error {
	if err := r.db.WithContext(ctx).Save(models.WebhookEventModelFromDomain(w)).Error; err != nil {
		return fmt.Errorf("save webhook event: %w", err)
	}
	return nil
}

// FindByID loads an inbox record
func (r *GormWebhookEventRepository) FindByID(ctx context.Context, id uuid.UUID) (*billing.WebhookEvent, error) {
	var m models.WebhookEventModel
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		return nil, translateNotFound(err, "webhook event")
	}
	return m.ToDomain()
}

// FindAll lists inbox records; empty gateway or status match everything
func (r *GormWebhookEventRepository) FindAll(ctx context.Context, gateway billing.GatewayType, status billing.WebhookStatus, filter shared.Filter) ([]billing.WebhookEvent, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.WebhookEventModel{})
	if gateway != "" {
		q = q.Where("gateway = ?", gateway)
	}
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count webhook events: %w", err)
	}
	var rows []models.WebhookEventModel
	if err := paginate(q, filter, WebhookSortFields).Find(&rows).Error; err != nil {
		return nil, 0, fmt.Errorf("list webhook events: %w", err)
	}
	out, err := rowsToDomain(rows, (*models.WebhookEventModel).ToDomain)
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}
