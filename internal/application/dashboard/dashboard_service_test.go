package dashboard

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/backoffice/saas/internal/domain/billing"
	"github.com/backoffice/saas/internal/domain/catalog"
	"github.com/backoffice/saas/internal/domain/invoicing"
	"github.com/backoffice/saas/internal/domain/media"
	"github.com/backoffice/saas/internal/domain/tenant"
	"github.com/backoffice/saas/internal/infrastructure/persistence"
	"github.com/backoffice/saas/internal/infrastructure/persistence/persistencetest"
)

func newService(t *testing.T) (*Service, *persistence.Repositories, *tenant.Tenant) {
	t.Helper()
	repos := persistence.NewRepositories(persistencetest.NewDB(t))
	tn, err := tenant.NewTenant("Acme Store", "owner@acme.test", tenant.DefaultSettings())
	require.NoError(t, err)
	require.NoError(t, repos.Tenants.Save(context.Background(), tn))
	svc := NewService(ServiceConfig{
		Tenants:       repos.Tenants,
		Media:         repos.Media,
		Products:      repos.Products,
		Invoices:      repos.Invoices,
		Subscriptions: repos.Subscriptions,
		Payments:      repos.Payments,
		Logger:        zaptest.NewLogger(t),
	})
	return svc, repos, tn
}

func TestService_SummaryOfEmptyTenant(t *testing.T) {
	svc, _, tn := newService(t)

	sum, err := svc.Summary(context.Background(), tn.ID)
	require.NoError(t, err)
	assert.Equal(t, tn.ID, sum.TenantID)
	assert.Equal(t, "free", sum.PlanCode)
	assert.Zero(t, sum.Media.Count)
	assert.Zero(t, sum.Products.Total)
	assert.Equal(t, int64(25), sum.Products.Limit)
	assert.Equal(t, int64(20), sum.Invoices.MonthlyLimit)
	assert.Empty(t, sum.Invoices.Revenue)
	assert.Nil(t, sum.Subscription)
	assert.Nil(t, sum.LastPayment)
}

func TestService_SummaryAggregates(t *testing.T) {
	svc, repos, tn := newService(t)
	ctx := context.Background()
	now := time.Now().UTC()

	collection, err := media.ResolveCollection("products")
	require.NoError(t, err)
	for _, size := range []int64{1000, 3000} {
		m, err := media.NewMedia(media.NewMediaParams{
			TenantID:   tn.ID,
			Collection: collection,
			FileName:   "foto.jpg",
			MimeType:   "image/jpeg",
			Size:       size,
		})
		require.NoError(t, err)
		require.NoError(t, repos.Media.Save(ctx, m))
	}

	for i, sku := range []string{"A-1", "A-2", "A-3"} {
		p, err := catalog.NewProduct(tn.ID, catalog.ProductInput{
			SKU:      sku,
			Name:     "Producto " + sku,
			Price:    decimal.NewFromInt(10),
			Currency: "PEN",
		})
		require.NoError(t, err)
		if i > 0 {
			require.NoError(t, p.Publish())
		}
		require.NoError(t, repos.Products.Save(ctx, p))
	}

	line, err := invoicing.NewLine(nil, "Servicio", decimal.NewFromInt(2), decimal.NewFromInt(50), decimal.RequireFromString("0.18"))
	require.NoError(t, err)
	inv, err := invoicing.NewDraft(tn.ID, invoicing.DraftInput{
		Series:   "F001",
		Currency: "PEN",
		Customer: invoicing.Customer{Name: "Comercial Lima SAC", DocumentType: invoicing.DocRUC, DocumentNumber: "20512345678"},
		Lines:    []invoicing.Line{line},
	})
	require.NoError(t, err)
	require.NoError(t, repos.Invoices.IssueWithNextNumber(ctx, inv, time.Time{}, func(n, _ int64) error {
		return inv.Issue(n, now)
	}))

	plan, ok := tenant.LookupPlan(tenant.PlanBasic)
	require.True(t, ok)
	sub, err := billing.NewSubscription(tn.ID, plan, billing.GatewayCulqi, "PEN")
	require.NoError(t, err)
	require.NoError(t, sub.Activate(now))
	require.NoError(t, repos.Subscriptions.Save(ctx, sub))

	pay, err := billing.NewPayment(tn.ID, &sub.ID, billing.GatewayCulqi, sub.Amount, "PEN", "Basic plan")
	require.NoError(t, err)
	require.NoError(t, repos.Payments.Save(ctx, pay))

	sum, err := svc.Summary(ctx, tn.ID)
	require.NoError(t, err)

	assert.Equal(t, int64(2), sum.Media.Count)
	assert.Equal(t, int64(4000), sum.Media.BytesUsed)
	assert.Positive(t, sum.Media.QuotaBytes)

	assert.Equal(t, ProductSummary{Total: 3, Draft: 1, Active: 2, Archived: 0, Limit: 25}, sum.Products)

	assert.Equal(t, int64(1), sum.Invoices.IssuedThisMonth)
	require.Len(t, sum.Invoices.Revenue, 1)
	assert.Equal(t, RevenueLine{Currency: "PEN", Total: "118.00"}, sum.Invoices.Revenue[0])

	require.NotNil(t, sum.Subscription)
	assert.Equal(t, "active", sum.Subscription.Status)
	assert.InDelta(t, 29, sum.Subscription.DaysRemaining, 2)

	require.NotNil(t, sum.LastPayment)
	assert.Equal(t, pay.OrderNumber, sum.LastPayment.OrderNumber)
	assert.Equal(t, string(billing.PaymentStatusPending), sum.LastPayment.Status)
}

func TestPercent(t *testing.T) {
	assert.Equal(t, 0.0, percent(10, 0))
	assert.Equal(t, 25.0, percent(25, 100))
	assert.Equal(t, 33.33, percent(1, 3))
}
