package dashboard

import (
	"context"
	"errors"
	"time"

	"github.com/backoffice/saas/internal/domain/billing"
	"github.com/backoffice/saas/internal/domain/catalog"
	"github.com/backoffice/saas/internal/domain/invoicing"
	"github.com/backoffice/saas/internal/domain/media"
	"github.com/backoffice/saas/internal/domain/shared"
	"github.com/backoffice/saas/internal/domain/tenant"
	"github.com/backoffice/saas/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Ports are the read sides of the repositories the summary aggregates over.
type (
	TenantReader interface {
		FindByID(ctx context.Context, id uuid.UUID) (*tenant.Tenant, error)
	}
	MediaUsage interface {
		Usage(ctx context.Context, tenantID uuid.UUID) (media.Usage, error)
	}
	ProductCounter interface {
		CountByStatus(ctx context.Context, tenantID uuid.UUID) (map[catalog.ProductStatus]int64, error)
	}
	InvoiceStats interface {
		CountIssuedSince(ctx context.Context, tenantID uuid.UUID, since time.Time) (int64, error)
		RevenueSince(ctx context.Context, tenantID uuid.UUID, since time.Time) ([]invoicing.Revenue, error)
	}
	SubscriptionReader interface {
		FindCurrentForTenant(ctx context.Context, tenantID uuid.UUID) (*billing.Subscription, error)
	}
	PaymentReader interface {
		FindLatestForTenant(ctx context.Context, tenantID uuid.UUID) (*billing.Payment, error)
	}
)

// ServiceConfig holds the collaborators of Service
type ServiceConfig struct {
	Tenants       TenantReader
	Media         MediaUsage
	Products      ProductCounter
	Invoices      InvoiceStats
	Subscriptions SubscriptionReader
	Payments      PaymentReader
	Logger        *zap.Logger
}

// Service builds the tenant dashboard summary
type Service struct {
	cfg    ServiceConfig
	logger *zap.Logger
	now    func() time.Time
}

// NewService creates a new dashboard Service
func NewService(cfg ServiceConfig) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{cfg: cfg, logger: logger, now: time.Now}
}

// Summary aggregates the current state of a tenant. Missing subscriptions
// and payments leave their sections empty.
func (s *Service) Summary(ctx context.Context, tenantID uuid.UUID) (*Summary, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "dashboard", "summary")
	defer span.End()

	t, err := s.cfg.Tenants.FindByID(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	plan := t.Plan()
	out := &Summary{
		TenantID:    t.ID,
		PlanCode:    string(plan.Code),
		PlanName:    plan.Name,
		Status:      string(t.Status),
		GeneratedAt: now,
	}

	usage, err := s.cfg.Media.Usage(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	quota := t.StorageQuotaBytes
	if quota <= 0 {
		quota = plan.MaxStorageBytes
	}
	out.Media = MediaSummary{
		Count:        usage.LiveCount,
		TrashedCount: usage.TrashedCount,
		BytesUsed:    usage.Bytes,
		QuotaBytes:   quota,
		UsedPercent:  percent(usage.Bytes, quota),
	}

	byStatus, err := s.cfg.Products.CountByStatus(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	out.Products = ProductSummary{
		Draft:    byStatus[catalog.ProductDraft],
		Active:   byStatus[catalog.ProductActive],
		Archived: byStatus[catalog.ProductArchived],
		Limit:    plan.MaxProducts,
	}
	out.Products.Total = out.Products.Draft + out.Products.Active + out.Products.Archived

	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	issued, err := s.cfg.Invoices.CountIssuedSince(ctx, tenantID, monthStart)
	if err != nil {
		return nil, err
	}
	revenue, err := s.cfg.Invoices.RevenueSince(ctx, tenantID, monthStart)
	if err != nil {
		return nil, err
	}
	out.Invoices = InvoiceSummary{
		PeriodStart:     monthStart,
		IssuedThisMonth: issued,
		MonthlyLimit:    plan.MaxInvoicesPerMonth,
		Revenue:         make([]RevenueLine, len(revenue)),
	}
	for i, r := range revenue {
		out.Invoices.Revenue[i] = RevenueLine{Currency: r.Currency, Total: r.Total.StringFixed(2)}
	}

	sub, err := s.cfg.Subscriptions.FindCurrentForTenant(ctx, tenantID)
	switch {
	case err == nil:
		out.Subscription = &SubscriptionSummary{
			ID:            sub.ID,
			PlanCode:      string(sub.PlanCode),
			Status:        string(sub.Status),
			PeriodEnd:     sub.CurrentPeriodEnd,
			DaysRemaining: sub.DaysRemaining(now),
			CancelAtEnd:   sub.CancelAtPeriodEnd,
		}
	case !errors.Is(err, shared.ErrNotFound):
		return nil, err
	}

	last, err := s.cfg.Payments.FindLatestForTenant(ctx, tenantID)
	switch {
	case err == nil:
		out.LastPayment = &PaymentSummary{
			ID:          last.ID,
			OrderNumber: last.OrderNumber,
			Gateway:     string(last.Gateway),
			Status:      string(last.Status),
			Amount:      last.Amount.StringFixed(2),
			Currency:    last.Currency,
			PaidAt:      last.PaidAt,
			CreatedAt:   last.CreatedAt,
		}
	case !errors.Is(err, shared.ErrNotFound):
		return nil, err
	}

	s.logger.Debug("Dashboard summary built",
		zap.String("tenant_id", tenantID.String()),
		zap.Int64("products", out.Products.Total),
		zap.Int64("invoices_issued", issued))
	return out, nil
}

func percent(used, quota int64) float64 {
	if quota <= 0 {
		return 0
	}
	p := float64(used) * 100 / float64(quota)
	return float64(int64(p*100)) / 100
}
