package persistence

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/backoffice/saas/internal/domain/billing"
	"github.com/backoffice/saas/internal/domain/shared"
	"github.com/backoffice/saas/internal/domain/tenant"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestPayment(t *testing.T, tenantID uuid.UUID, gw billing.GatewayType) *billing.Payment {
	t.Helper()
	p, err := billing.NewPayment(tenantID, nil, gw, decimal.RequireFromString("49.90"), "PEN", "Plan Pro")
	require.NoError(t, err)
	return p
}

func TestGormPaymentRepository(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormPaymentRepository(db)
	ctx := context.Background()
	tenantID := uuid.New()

	p := newTestPayment(t, tenantID, billing.GatewayMercadoPago)
	require.NoError(t, repo.Save(ctx, p))

	t.Run("resolves by order number and gateway id", func(t *testing.T) {
		found, err := repo.FindByOrderNumber(ctx, p.OrderNumber)
		require.NoError(t, err)
		assert.True(t, decimal.RequireFromString("49.90").Equal(found.Amount))

		found.AttachGatewayResult("pref-123", "https://mp.test/checkout", "")
		require.NoError(t, repo.Save(ctx, found))

		byTx, err := repo.FindByGatewayTransaction(ctx, billing.GatewayMercadoPago, "pref-123")
		require.NoError(t, err)
		assert.Equal(t, p.ID, byTx.ID)

		_, err = repo.FindByGatewayTransaction(ctx, billing.GatewayCulqi, "pref-123")
		assert.True(t, errors.Is(err, shared.ErrNotFound))
	})

	t.Run("duplicate order number is ALREADY_EXISTS", func(t *testing.T) {
		dup := newTestPayment(t, tenantID, billing.GatewayCulqi)
		dup.OrderNumber = p.OrderNumber
		err := repo.Save(ctx, dup)
		assert.True(t, errors.Is(err, shared.ErrAlreadyExists))
	})

	t.Run("stale pending payments", func(t *testing.T) {
		old := newTestPayment(t, tenantID, billing.GatewayCulqi)
		old.CreatedAt = time.Now().UTC().Add(-2 * time.Hour)
		require.NoError(t, repo.Save(ctx, old))

		stale, err := repo.FindPendingBefore(ctx, time.Now().UTC().Add(-time.Hour), 10)
		require.NoError(t, err)
		require.Len(t, stale, 1)
		assert.Equal(t, old.ID, stale[0].ID)
	})

	t.Run("lists with gateway filter", func(t *testing.T) {
		filter := shared.Filter{Page: 1, PageSize: 10}.With("gateway", string(billing.GatewayCulqi))
		_, total, err := repo.FindAllForTenant(ctx, tenantID, filter)
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
	})
}

func TestGormSubscriptionRepository_FindCurrentForTenant(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormSubscriptionRepository(db)
	ctx := context.Background()
	tenantID := uuid.New()
	pro, ok := tenant.LookupPlan(tenant.PlanPro)
	require.True(t, ok)

	pending, err := billing.NewSubscription(tenantID, pro, billing.GatewayCulqi, "PEN")
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, pending))

	current, err := repo.FindCurrentForTenant(ctx, tenantID)
	require.NoError(t, err)
	assert.Equal(t, pending.ID, current.ID)

	active, err := billing.NewSubscription(tenantID, pro, billing.GatewayCulqi, "PEN")
	require.NoError(t, err)
	require.NoError(t, active.Activate(time.Now().UTC().AddDate(0, -2, 0)))
	require.NoError(t, repo.Save(ctx, active))

	current, err = repo.FindCurrentForTenant(ctx, tenantID)
	require.NoError(t, err)
	assert.Equal(t, active.ID, current.ID, "live subscriptions win over pending ones")

	due, err := repo.FindDueForExpiry(ctx, time.Now().UTC(), 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, active.ID, due[0].ID)

	_, err = repo.FindCurrentForTenant(ctx, uuid.New())
	assert.True(t, errors.Is(err, shared.ErrNotFound))
}

func TestGormWebhookEventRepository(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormWebhookEventRepository(db)
	ctx := context.Background()

	w := billing.NewWebhookEvent(billing.GatewayCulqi, billing.WebhookRequest{
		Headers: map[string]string{"x-culqi-signature": "abc", "authorization": "secret"},
		Body:    []byte(`{"id":"evt_1"}`),
	})
	require.NoError(t, repo.Save(ctx, w))
	w.MarkIgnored("unknown payment")
	require.NoError(t, repo.Save(ctx, w))

	found, err := repo.FindByID(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, billing.WebhookIgnored, found.Status)
	assert.Equal(t, "abc", found.Headers["x-culqi-signature"])
	assert.NotContains(t, found.Headers, "authorization")

	items, total, err := repo.FindAll(ctx, billing.GatewayCulqi, billing.WebhookIgnored, shared.Filter{Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Len(t, items, 1)
}

// setupMockDB wires GORM to sqlmock with the postgres dialect
func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = mockDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	}), &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)
	return db, mock
}

func TestSaveVersioned_ConflictWithPostgresDialect(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewGormPaymentRepository(db)
	p := newTestPayment(t, uuid.New(), billing.GatewayCulqi)
	p.IncrementVersion()

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "payments" SET`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT count(*) FROM "payments"`)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	err := repo.Save(context.Background(), p)
	assert.True(t, errors.Is(err, shared.ErrConcurrencyConflict))
	assert.NoError(t, mock.ExpectationsWereMet())
}
