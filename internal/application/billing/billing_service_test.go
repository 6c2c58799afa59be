package billing

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap/zaptest"

	"github.com/backoffice/saas/internal/domain/billing"
	"github.com/backoffice/saas/internal/domain/billing/mocks"
	"github.com/backoffice/saas/internal/domain/shared"
	"github.com/backoffice/saas/internal/domain/tenant"
	"github.com/backoffice/saas/internal/infrastructure/cache"
	"github.com/backoffice/saas/internal/infrastructure/persistence"
	"github.com/backoffice/saas/internal/infrastructure/persistence/persistencetest"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []shared.DomainEvent
}

func (p *recordingPublisher) Publish(_ context.Context, events ...shared.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
	return nil
}

func (p *recordingPublisher) count(eventType string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if e.EventType() == eventType {
			n++
		}
	}
	return n
}

type fixture struct {
	svc     *BillingService
	repos   *persistence.Repositories
	gateway *mocks.MockPaymentGateway
	pub     *recordingPublisher
	tenant  *tenant.Tenant
}

func newFixture(t *testing.T, gwType billing.GatewayType) *fixture {
	t.Helper()
	ctx := context.Background()
	repos := persistence.NewRepositories(persistencetest.NewDB(t))

	ctrl := gomock.NewController(t)
	gw := mocks.NewMockPaymentGateway(ctrl)
	gw.EXPECT().Type().Return(gwType).AnyTimes()

	idem := cache.NewInMemoryIdempotencyStore(time.Minute)
	t.Cleanup(func() { _ = idem.Close() })

	tn, err := tenant.NewTenant("Acme Store", "owner@acme.test", tenant.DefaultSettings())
	require.NoError(t, err)
	require.NoError(t, repos.Tenants.Save(ctx, tn))

	pub := &recordingPublisher{}
	svc := NewBillingService(BillingServiceConfig{
		Payments:      repos.Payments,
		Subscriptions: repos.Subscriptions,
		Webhooks:      repos.Webhooks,
		Tenants:       repos.Tenants,
		Gateways:      map[billing.GatewayType]billing.PaymentGateway{gwType: gw},
		Idempotency:   idem,
		Publisher:     pub,
		Logger:        zaptest.NewLogger(t),
		Options: Options{
			NotifyBaseURL: "https://api.example.test/api/v1/",
			ReturnURL:     "https://app.example.test/billing/return",
		},
	})
	return &fixture{svc: svc, repos: repos, gateway: gw, pub: pub, tenant: tn}
}

// checkoutPending starts a basic plan checkout that the gateway leaves pending
func (f *fixture) checkoutPending(t *testing.T, txID string) *CheckoutResponse {
	t.Helper()
	f.gateway.EXPECT().CreatePayment(gomock.Any(), gomock.Any()).
		Return(&billing.CreatePaymentResult{
			GatewayTransactionID: txID,
			PaymentURL:           "https://pay.example.test/" + txID,
			Status:               billing.PaymentStatusPending,
			RawStatus:            "pending",
		}, nil)
	resp, err := f.svc.Checkout(context.Background(), f.tenant.ID, CheckoutRequest{
		PlanCode: "basic",
		Gateway:  "culqi",
	})
	require.NoError(t, err)
	return resp
}

func (f *fixture) reloadTenant(t *testing.T) *tenant.Tenant {
	t.Helper()
	tn, err := f.repos.Tenants.FindByID(context.Background(), f.tenant.ID)
	require.NoError(t, err)
	return tn
}

func TestBillingService_Checkout(t *testing.T) {
	t.Run("synchronous charge activates the plan", func(t *testing.T) {
		f := newFixture(t, billing.GatewayCulqi)
		f.gateway.EXPECT().CreatePayment(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, req *billing.CreatePaymentRequest) (*billing.CreatePaymentResult, error) {
				assert.Equal(t, "PEN", req.Currency)
				assert.True(t, decimal.NewFromInt(109).Equal(req.Amount))
				assert.Equal(t, "tok_visa", req.CardToken)
				assert.Equal(t, "owner@acme.test", req.PayerEmail)
				assert.Equal(t, "https://api.example.test/api/v1/webhooks/culqi", req.NotifyURL)
				assert.Equal(t, f.tenant.ID.String(), req.Metadata["tenant_id"])
				return &billing.CreatePaymentResult{
					GatewayTransactionID: "chr_1",
					Status:               billing.PaymentStatusPaid,
					RawStatus:            "captured",
				}, nil
			})

		resp, err := f.svc.Checkout(context.Background(), f.tenant.ID, CheckoutRequest{
			PlanCode:  "basic",
			Gateway:   "CULQI",
			CardToken: "tok_visa",
		})
		require.NoError(t, err)

		assert.Equal(t, "PAID", resp.Payment.Status)
		assert.Equal(t, "chr_1", resp.Payment.GatewayTransactionID)
		assert.Equal(t, "active", resp.Subscription.Status)
		require.NotNil(t, resp.Subscription.CurrentPeriodEnd)
		assert.Empty(t, resp.PaymentURL)

		tn := f.reloadTenant(t)
		assert.Equal(t, tenant.PlanBasic, tn.PlanCode)
		assert.Equal(t, tenant.StatusActive, tn.Status)
		require.NotNil(t, tn.PlanExpiresAt)
		assert.WithinDuration(t, *resp.Subscription.CurrentPeriodEnd, *tn.PlanExpiresAt, time.Second)

		assert.Equal(t, 1, f.pub.count(billing.EventTypePaymentSucceeded))
		assert.Equal(t, 1, f.pub.count(billing.EventTypeSubscriptionActivated))
	})

	t.Run("redirect checkout returns the payment url and reuses the pending subscription", func(t *testing.T) {
		f := newFixture(t, billing.GatewayCulqi)

		first := f.checkoutPending(t, "tx-1")
		assert.Equal(t, "PENDING", first.Payment.Status)
		assert.Equal(t, "https://pay.example.test/tx-1", first.PaymentURL)
		assert.Equal(t, "pending", first.Subscription.Status)

		second := f.checkoutPending(t, "tx-2")
		assert.Equal(t, first.Subscription.ID, second.Subscription.ID)
		assert.NotEqual(t, first.Payment.OrderNumber, second.Payment.OrderNumber)
	})

	t.Run("rejects invalid plans and gateways", func(t *testing.T) {
		f := newFixture(t, billing.GatewayCulqi)
		ctx := context.Background()

		_, err := f.svc.Checkout(ctx, f.tenant.ID, CheckoutRequest{PlanCode: "free", Gateway: "culqi"})
		assert.True(t, errors.Is(err, shared.ErrInvalidInput))

		_, err = f.svc.Checkout(ctx, f.tenant.ID, CheckoutRequest{PlanCode: "platinum", Gateway: "culqi"})
		assert.True(t, errors.Is(err, shared.ErrInvalidInput))

		_, err = f.svc.Checkout(ctx, f.tenant.ID, CheckoutRequest{PlanCode: "basic", Gateway: "stripe"})
		assert.True(t, errors.Is(err, shared.ErrInvalidInput))

		_, err = f.svc.Checkout(ctx, f.tenant.ID, CheckoutRequest{PlanCode: "basic", Gateway: "payphone"})
		assert.True(t, errors.Is(err, shared.ErrInvalidInput))
	})

	t.Run("gateway failure records a failed payment", func(t *testing.T) {
		f := newFixture(t, billing.GatewayCulqi)
		f.gateway.EXPECT().CreatePayment(gomock.Any(), gomock.Any()).
			Return(nil, billing.ErrGatewayRequestFailed)

		_, err := f.svc.Checkout(context.Background(), f.tenant.ID, CheckoutRequest{PlanCode: "basic", Gateway: "culqi"})
		require.Error(t, err)
		assert.Equal(t, shared.CodeGatewayError, shared.ErrorCode(err))
		assert.True(t, errors.Is(err, billing.ErrGatewayRequestFailed))

		payments, total, err := f.svc.ListPayments(context.Background(), f.tenant.ID, PaymentListFilter{})
		require.NoError(t, err)
		require.EqualValues(t, 1, total)
		assert.Equal(t, "FAILED", payments[0].Status)
	})
}

func TestBillingService_ProcessWebhook(t *testing.T) {
	ctx := context.Background()

	t.Run("paid notification settles the payment once", func(t *testing.T) {
		f := newFixture(t, billing.GatewayCulqi)
		checkout := f.checkoutPending(t, "chr_9")

		notice := &billing.WebhookNotification{
			EventID:              "evt_1",
			EventType:            "charge.succeeded",
			GatewayTransactionID: "chr_9",
			Status:               billing.PaymentStatusPaid,
		}
		f.gateway.EXPECT().ParseWebhook(gomock.Any(), gomock.Any()).Return(notice, nil).Times(2)
		req := billing.WebhookRequest{Body: []byte(`{"id":"evt_1"}`)}

		res, err := f.svc.ProcessWebhook(ctx, "culqi", req)
		require.NoError(t, err)
		assert.True(t, res.Accepted)
		assert.False(t, res.AlreadyProcessed)
		assert.Equal(t, "PAID", res.Status)
		assert.Equal(t, string(billing.TransitionApplied), res.Transition)
		require.NotNil(t, res.PaymentID)
		assert.Equal(t, checkout.Payment.ID, *res.PaymentID)

		replay, err := f.svc.ProcessWebhook(ctx, "culqi", req)
		require.NoError(t, err)
		assert.True(t, replay.Accepted)
		assert.True(t, replay.AlreadyProcessed)

		assert.Equal(t, 1, f.pub.count(billing.EventTypePaymentSucceeded))
		assert.Equal(t, tenant.PlanBasic, f.reloadTenant(t).PlanCode)

		events, total, err := f.svc.ListWebhookEvents(ctx, WebhookEventFilter{Gateway: "CULQI"})
		require.NoError(t, err)
		assert.EqualValues(t, 2, total)
		statuses := []string{events[0].Status, events[1].Status}
		assert.ElementsMatch(t, []string{"processed", "ignored"}, statuses)
	})

	t.Run("invalid signature is rejected and recorded", func(t *testing.T) {
		f := newFixture(t, billing.GatewayCulqi)
		f.gateway.EXPECT().ParseWebhook(gomock.Any(), gomock.Any()).
			Return(nil, billing.ErrGatewayInvalidCallback)

		_, err := f.svc.ProcessWebhook(ctx, "culqi", billing.WebhookRequest{Body: []byte(`{}`)})
		require.Error(t, err)
		assert.True(t, errors.Is(err, shared.ErrInvalidSignature))

		events, _, err := f.svc.ListWebhookEvents(ctx, WebhookEventFilter{Status: "failed"})
		require.NoError(t, err)
		assert.Len(t, events, 1)
	})

	t.Run("unknown gateway is not found", func(t *testing.T) {
		f := newFixture(t, billing.GatewayCulqi)
		_, err := f.svc.ProcessWebhook(ctx, "mercadopago", billing.WebhookRequest{})
		assert.True(t, errors.Is(err, shared.ErrNotFound))
	})

	t.Run("notification for an unknown payment is acknowledged", func(t *testing.T) {
		f := newFixture(t, billing.GatewayCulqi)
		f.gateway.EXPECT().ParseWebhook(gomock.Any(), gomock.Any()).Return(&billing.WebhookNotification{
			EventID:              "evt_2",
			GatewayTransactionID: "chr_unknown",
			Status:               billing.PaymentStatusPaid,
		}, nil)

		res, err := f.svc.ProcessWebhook(ctx, "culqi", billing.WebhookRequest{Body: []byte(`{}`)})
		require.NoError(t, err)
		assert.True(t, res.Accepted)
		assert.Nil(t, res.PaymentID)
		assert.Equal(t, "payment not found", res.Message)
	})

	t.Run("notification without status is resolved through a gateway query", func(t *testing.T) {
		f := newFixture(t, billing.GatewayCulqi)
		checkout := f.checkoutPending(t, "")
		paidAt := time.Now().UTC().Add(-time.Minute)

		f.gateway.EXPECT().ParseWebhook(gomock.Any(), gomock.Any()).Return(&billing.WebhookNotification{
			EventID:              "evt_3",
			EventType:            "payment.updated",
			GatewayTransactionID: "mp-77",
			NeedsQuery:           true,
		}, nil)
		f.gateway.EXPECT().QueryPayment(gomock.Any(), &billing.QueryPaymentRequest{GatewayTransactionID: "mp-77"}).
			Return(&billing.QueryPaymentResult{
				GatewayTransactionID: "mp-77",
				OrderNumber:          checkout.Payment.OrderNumber,
				Status:               billing.PaymentStatusPaid,
				PaidAmount:           checkout.Payment.Amount,
				PaidAt:               &paidAt,
				RawStatus:            "approved",
			}, nil)

		res, err := f.svc.ProcessWebhook(ctx, "culqi", billing.WebhookRequest{Body: []byte(`{}`)})
		require.NoError(t, err)
		assert.Equal(t, "PAID", res.Status)

		p, err := f.svc.GetPayment(ctx, f.tenant.ID, checkout.Payment.ID)
		require.NoError(t, err)
		assert.Equal(t, "mp-77", p.GatewayTransactionID)
		assert.Equal(t, "approved", p.LastGatewayStatus)
		require.NotNil(t, p.PaidAt)
		assert.WithinDuration(t, paidAt, *p.PaidAt, time.Second)
	})

	t.Run("status regression is ignored", func(t *testing.T) {
		f := newFixture(t, billing.GatewayCulqi)
		f.checkoutPending(t, "chr_5")

		gomock.InOrder(
			f.gateway.EXPECT().ParseWebhook(gomock.Any(), gomock.Any()).Return(&billing.WebhookNotification{
				EventID: "evt_paid", GatewayTransactionID: "chr_5", Status: billing.PaymentStatusPaid,
			}, nil),
			f.gateway.EXPECT().ParseWebhook(gomock.Any(), gomock.Any()).Return(&billing.WebhookNotification{
				EventID: "evt_late", GatewayTransactionID: "chr_5", Status: billing.PaymentStatusFailed,
			}, nil),
		)

		_, err := f.svc.ProcessWebhook(ctx, "culqi", billing.WebhookRequest{})
		require.NoError(t, err)
		res, err := f.svc.ProcessWebhook(ctx, "culqi", billing.WebhookRequest{})
		require.NoError(t, err)
		assert.Equal(t, "PAID", res.Status)
		assert.Equal(t, string(billing.TransitionIgnored), res.Transition)
		assert.Equal(t, 0, f.pub.count(billing.EventTypePaymentFailed))
	})

	t.Run("pending query result leaves the event id open", func(t *testing.T) {
		f := newFixture(t, billing.GatewayCulqi)
		f.checkoutPending(t, "4711")

		notice := &billing.WebhookNotification{EventID: "payphone:4711", GatewayTransactionID: "4711", NeedsQuery: true}
		f.gateway.EXPECT().ParseWebhook(gomock.Any(), gomock.Any()).Return(notice, nil).Times(3)
		gomock.InOrder(
			f.gateway.EXPECT().QueryPayment(gomock.Any(), gomock.Any()).Return(&billing.QueryPaymentResult{
				GatewayTransactionID: "4711",
				Status:               billing.PaymentStatusPending,
				RawStatus:            "Pending",
			}, nil),
			f.gateway.EXPECT().QueryPayment(gomock.Any(), gomock.Any()).Return(&billing.QueryPaymentResult{
				GatewayTransactionID: "4711",
				Status:               billing.PaymentStatusPaid,
				RawStatus:            "Approved",
			}, nil),
		)

		res, err := f.svc.ProcessWebhook(ctx, "culqi", billing.WebhookRequest{})
		require.NoError(t, err)
		assert.Equal(t, "PENDING", res.Status)

		res, err = f.svc.ProcessWebhook(ctx, "culqi", billing.WebhookRequest{})
		require.NoError(t, err)
		assert.False(t, res.AlreadyProcessed, "the later notification is not a duplicate")
		assert.Equal(t, "PAID", res.Status)
		assert.Equal(t, 1, f.pub.count(billing.EventTypePaymentSucceeded))

		res, err = f.svc.ProcessWebhook(ctx, "culqi", billing.WebhookRequest{})
		require.NoError(t, err)
		assert.True(t, res.AlreadyProcessed, "a settled transaction keeps its key")
	})

	t.Run("processing error releases the idempotency key", func(t *testing.T) {
		f := newFixture(t, billing.GatewayCulqi)
		f.checkoutPending(t, "chr_7")

		notice := &billing.WebhookNotification{EventID: "evt_retry", GatewayTransactionID: "chr_7", NeedsQuery: true}
		f.gateway.EXPECT().ParseWebhook(gomock.Any(), gomock.Any()).Return(notice, nil).Times(2)
		gomock.InOrder(
			f.gateway.EXPECT().QueryPayment(gomock.Any(), gomock.Any()).Return(nil, billing.ErrGatewayRequestFailed),
			f.gateway.EXPECT().QueryPayment(gomock.Any(), gomock.Any()).Return(&billing.QueryPaymentResult{
				GatewayTransactionID: "chr_7",
				Status:               billing.PaymentStatusFailed,
				FailureReason:        "card declined",
			}, nil),
		)

		_, err := f.svc.ProcessWebhook(ctx, "culqi", billing.WebhookRequest{})
		require.Error(t, err)
		assert.Equal(t, shared.CodeGatewayError, shared.ErrorCode(err))

		res, err := f.svc.ProcessWebhook(ctx, "culqi", billing.WebhookRequest{})
		require.NoError(t, err)
		assert.False(t, res.AlreadyProcessed)
		assert.Equal(t, "FAILED", res.Status)
		assert.Equal(t, 1, f.pub.count(billing.EventTypePaymentFailed))
	})
}

func TestBillingService_RefundPayment(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, billing.GatewayCulqi)
	f.gateway.EXPECT().CreatePayment(gomock.Any(), gomock.Any()).Return(&billing.CreatePaymentResult{
		GatewayTransactionID: "chr_r",
		Status:               billing.PaymentStatusPaid,
	}, nil)
	checkout, err := f.svc.Checkout(ctx, f.tenant.ID, CheckoutRequest{PlanCode: "basic", Gateway: "culqi", CardToken: "tok"})
	require.NoError(t, err)
	paymentID := checkout.Payment.ID

	f.gateway.EXPECT().Refund(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req *billing.RefundRequest) (*billing.RefundResult, error) {
			assert.Equal(t, "chr_r", req.GatewayTransactionID)
			assert.True(t, decimal.NewFromInt(109).Equal(req.PaymentAmount))
			return &billing.RefundResult{RefundID: "ref_1"}, nil
		}).Times(2)

	partial := decimal.NewFromInt(9)
	resp, err := f.svc.RefundPayment(ctx, f.tenant.ID, paymentID, RefundPaymentRequest{Amount: &partial})
	require.NoError(t, err)
	assert.Equal(t, "PARTIAL_REFUNDED", resp.Status)
	assert.True(t, decimal.NewFromInt(100).Equal(resp.RefundableAmount))

	tooMuch := decimal.NewFromInt(500)
	_, err = f.svc.RefundPayment(ctx, f.tenant.ID, paymentID, RefundPaymentRequest{Amount: &tooMuch})
	assert.True(t, errors.Is(err, shared.ErrInvalidInput))

	resp, err = f.svc.RefundPayment(ctx, f.tenant.ID, paymentID, RefundPaymentRequest{})
	require.NoError(t, err)
	assert.Equal(t, "REFUNDED", resp.Status)
	assert.True(t, resp.RefundableAmount.IsZero())
	assert.Equal(t, 2, f.pub.count(billing.EventTypePaymentRefunded))

	_, err = f.svc.RefundPayment(ctx, f.tenant.ID, paymentID, RefundPaymentRequest{})
	assert.True(t, errors.Is(err, shared.ErrInvalidState))
}

func TestBillingService_ReconcilePendingPayments(t *testing.T) {
	ctx := context.Background()

	t.Run("applies the gateway status", func(t *testing.T) {
		f := newFixture(t, billing.GatewayCulqi)
		f.checkoutPending(t, "chr_q")
		f.svc.now = func() time.Time { return time.Now().Add(time.Hour) }

		f.gateway.EXPECT().QueryPayment(gomock.Any(), gomock.Any()).Return(&billing.QueryPaymentResult{
			GatewayTransactionID: "chr_q",
			Status:               billing.PaymentStatusPaid,
		}, nil)

		res, err := f.svc.ReconcilePendingPayments(ctx, 15*time.Minute)
		require.NoError(t, err)
		assert.Equal(t, &ReconcileResult{Checked: 1, Updated: 1}, res)
		assert.Equal(t, tenant.PlanBasic, f.reloadTenant(t).PlanCode)
	})

	t.Run("expires payments pending for too long", func(t *testing.T) {
		f := newFixture(t, billing.GatewayCulqi)
		checkout := f.checkoutPending(t, "chr_old")
		f.svc.now = func() time.Time { return time.Now().Add(25 * time.Hour) }

		f.gateway.EXPECT().QueryPayment(gomock.Any(), gomock.Any()).Return(&billing.QueryPaymentResult{
			GatewayTransactionID: "chr_old",
			Status:               billing.PaymentStatusPending,
		}, nil)

		res, err := f.svc.ReconcilePendingPayments(ctx, 15*time.Minute)
		require.NoError(t, err)
		assert.Equal(t, &ReconcileResult{Checked: 1, Expired: 1}, res)

		p, err := f.svc.GetPayment(ctx, f.tenant.ID, checkout.Payment.ID)
		require.NoError(t, err)
		assert.Equal(t, "EXPIRED", p.Status)
	})

	t.Run("skips recent payments", func(t *testing.T) {
		f := newFixture(t, billing.GatewayCulqi)
		f.checkoutPending(t, "chr_new")

		res, err := f.svc.ReconcilePendingPayments(ctx, 15*time.Minute)
		require.NoError(t, err)
		assert.Zero(t, res.Checked)
	})
}

func TestBillingService_SubscriptionLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, billing.GatewayCulqi)
	f.gateway.EXPECT().CreatePayment(gomock.Any(), gomock.Any()).Return(&billing.CreatePaymentResult{
		GatewayTransactionID: "chr_s",
		Status:               billing.PaymentStatusPaid,
	}, nil)
	_, err := f.svc.Checkout(ctx, f.tenant.ID, CheckoutRequest{PlanCode: "basic", Gateway: "culqi", CardToken: "tok"})
	require.NoError(t, err)

	sub, err := f.svc.CancelSubscription(ctx, f.tenant.ID, CancelSubscriptionRequest{AtPeriodEnd: true})
	require.NoError(t, err)
	assert.Equal(t, "active", sub.Status)
	assert.True(t, sub.CancelAtPeriodEnd)
	assert.Equal(t, tenant.PlanBasic, f.reloadTenant(t).PlanCode)

	res, err := f.svc.ExpireSubscriptions(ctx, time.Now())
	require.NoError(t, err)
	assert.Zero(t, res.Expired)

	res, err = f.svc.ExpireSubscriptions(ctx, time.Now().AddDate(0, 2, 0))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Expired)
	assert.Equal(t, 1, res.Downgraded)
	assert.Equal(t, tenant.PlanFree, f.reloadTenant(t).PlanCode)
	assert.Equal(t, 1, f.pub.count(billing.EventTypeSubscriptionCancelled))

	_, err = f.svc.GetSubscription(ctx, f.tenant.ID)
	assert.True(t, errors.Is(err, shared.ErrNotFound))
}

func TestBillingService_CancelNowDowngrades(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, billing.GatewayCulqi)
	f.gateway.EXPECT().CreatePayment(gomock.Any(), gomock.Any()).Return(&billing.CreatePaymentResult{
		GatewayTransactionID: "chr_c",
		Status:               billing.PaymentStatusPaid,
	}, nil)
	_, err := f.svc.Checkout(ctx, f.tenant.ID, CheckoutRequest{PlanCode: "pro", Gateway: "culqi", CardToken: "tok"})
	require.NoError(t, err)
	assert.Equal(t, tenant.PlanPro, f.reloadTenant(t).PlanCode)

	sub, err := f.svc.CancelSubscription(ctx, f.tenant.ID, CancelSubscriptionRequest{})
	require.NoError(t, err)
	assert.Equal(t, "cancelled", sub.Status)
	assert.Equal(t, tenant.PlanFree, f.reloadTenant(t).PlanCode)
}
