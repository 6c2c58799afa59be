// Package billing implements plan checkout, gateway webhooks and the
// reconciliation of payments and subscriptions.
package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/backoffice/saas/internal/domain/billing"
	"github.com/backoffice/saas/internal/domain/shared"
	"github.com/backoffice/saas/internal/domain/tenant"
	"github.com/backoffice/saas/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultPendingExpiry  = 24 * time.Hour
	defaultBatchLimit     = 100
	defaultIdempotencyTTL = 7 * 24 * time.Hour
)

// Options tunes the billing service
type Options struct {
	// NotifyBaseURL is the public API base; webhooks are sent to
	// {NotifyBaseURL}/webhooks/{gateway}
	NotifyBaseURL string
	ReturnURL     string
	CancelURL     string
	// PendingExpiry is how long a payment may stay pending before it expires
	PendingExpiry  time.Duration
	BatchLimit     int
	IdempotencyTTL time.Duration
}

// BillingServiceConfig holds the dependencies of BillingService
type BillingServiceConfig struct {
	Payments      billing.PaymentRepository
	Subscriptions billing.SubscriptionRepository
	Webhooks      billing.WebhookEventRepository
	Tenants       tenant.Repository
	Gateways      map[billing.GatewayType]billing.PaymentGateway
	Idempotency   shared.IdempotencyStore
	Publisher     shared.EventPublisher
	Logger        *zap.Logger
	Options       Options
}

// BillingService sells plans through the configured payment gateways
type BillingService struct {
	payments      billing.PaymentRepository
	subscriptions billing.SubscriptionRepository
	webhooks      billing.WebhookEventRepository
	tenants       tenant.Repository
	gateways      map[billing.GatewayType]billing.PaymentGateway
	idempotency   shared.IdempotencyStore
	publisher     shared.EventPublisher
	logger        *zap.Logger
	opts          Options
	now           func() time.Time
}

// NewBillingService creates a new billing service
func NewBillingService(cfg BillingServiceConfig) *BillingService {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	opts := cfg.Options
	if opts.PendingExpiry <= 0 {
		opts.PendingExpiry = defaultPendingExpiry
	}
	if opts.BatchLimit <= 0 {
		opts.BatchLimit = defaultBatchLimit
	}
	if opts.IdempotencyTTL <= 0 {
		opts.IdempotencyTTL = defaultIdempotencyTTL
	}
	opts.NotifyBaseURL = strings.TrimRight(opts.NotifyBaseURL, "/")
	gateways := cfg.Gateways
	if gateways == nil {
		gateways = map[billing.GatewayType]billing.PaymentGateway{}
	}
	return &BillingService{
		payments:      cfg.Payments,
		subscriptions: cfg.Subscriptions,
		webhooks:      cfg.Webhooks,
		tenants:       cfg.Tenants,
		gateways:      gateways,
		idempotency:   cfg.Idempotency,
		publisher:     cfg.Publisher,
		logger:        logger,
		opts:          opts,
		now:           time.Now,
	}
}

// EnabledGateways lists the gateways checkout can use
func (s *BillingService) EnabledGateways() []billing.GatewayType {
	out := make([]billing.GatewayType, 0, len(s.gateways))
	for _, g := range []billing.GatewayType{billing.GatewayCulqi, billing.GatewayMercadoPago, billing.GatewayPayPhone} {
		if _, ok := s.gateways[g]; ok {
			out = append(out, g)
		}
	}
	return out
}

// Checkout creates or reuses a pending subscription for planCode and starts
// a payment for it. Gateways that charge synchronously settle the payment
// before Checkout returns.
func (s *BillingService) Checkout(ctx context.Context, tenantID uuid.UUID, req CheckoutRequest) (_ *CheckoutResponse, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "billing", "checkout",
		telemetry.WithAttribute(telemetry.SpanAttrTenantID, tenantID.String()),
		telemetry.WithAttribute(telemetry.SpanAttrPaymentGateway, req.Gateway))
	defer func() {
		telemetry.RecordError(span, err)
		span.End()
	}()

	plan, ok := tenant.LookupPlan(tenant.PlanCode(strings.ToLower(req.PlanCode)))
	if !ok {
		return nil, shared.InvalidInput("unknown plan %q", req.PlanCode)
	}
	if plan.IsFree() {
		return nil, shared.InvalidInput("the free plan cannot be purchased")
	}
	gwType, ok := billing.ParseGatewayType(req.Gateway)
	if !ok {
		return nil, shared.InvalidInput("unknown gateway %q", req.Gateway)
	}
	gateway, ok := s.gateways[gwType]
	if !ok {
		return nil, shared.InvalidInput("gateway %s is not enabled", gwType).WithDetail("gateway", gwType.String())
	}

	t, err := s.tenants.FindByID(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	currency := strings.ToUpper(req.Currency)
	if currency == "" {
		currency = t.Settings.Currency
	}

	sub, err := s.subscriptionForCheckout(ctx, t, plan, gwType, currency)
	if err != nil {
		return nil, err
	}

	p, err := billing.NewPayment(t.ID, &sub.ID, gwType, sub.Amount, sub.Currency,
		fmt.Sprintf("%s plan - %s", plan.Name, t.Name))
	if err != nil {
		return nil, err
	}
	if err := s.payments.Save(ctx, p); err != nil {
		return nil, err
	}
	telemetry.SetAttributes(span,
		telemetry.SpanAttrPaymentID, p.ID.String(),
		telemetry.SpanAttrOrderNumber, p.OrderNumber)

	email := req.Email
	if email == "" {
		email = t.Email
	}
	returnURL := req.ReturnURL
	if returnURL == "" {
		returnURL = s.opts.ReturnURL
	}
	result, err := gateway.CreatePayment(ctx, &billing.CreatePaymentRequest{
		OrderNumber: p.OrderNumber,
		Amount:      p.Amount,
		Currency:    p.Currency,
		Description: p.Description,
		PayerEmail:  email,
		CardToken:   req.CardToken,
		NotifyURL:   s.notifyURL(gwType),
		ReturnURL:   returnURL,
		CancelURL:   s.opts.CancelURL,
		Metadata: map[string]string{
			"tenant_id":  t.ID.String(),
			"payment_id": p.ID.String(),
		},
	})
	if err != nil {
		s.logger.Error("Gateway rejected payment creation",
			zap.String("gateway", gwType.String()),
			zap.String("order_number", p.OrderNumber),
			zap.Error(err))
		if _, applyErr := s.applyUpdate(ctx, p, billing.GatewayUpdate{
			Status:        billing.PaymentStatusFailed,
			FailureReason: truncate(err.Error(), 500),
		}); applyErr != nil {
			s.logger.Error("Failed to record failed payment", zap.String("payment_id", p.ID.String()), zap.Error(applyErr))
		}
		return nil, gatewayError(gwType, err)
	}

	p.AttachGatewayResult(result.GatewayTransactionID, result.PaymentURL, result.RawStatus)
	if err := s.payments.Save(ctx, p); err != nil {
		return nil, err
	}
	if result.Status != "" && result.Status != billing.PaymentStatusPending {
		if _, err := s.applyUpdate(ctx, p, billing.GatewayUpdate{
			Status:        result.Status,
			FailureReason: result.FailureReason,
		}); err != nil {
			return nil, err
		}
	}

	if refreshed, err := s.subscriptions.FindByID(ctx, sub.ID); err == nil {
		sub = refreshed
	}
	s.logger.Info("Checkout started",
		zap.String("tenant_id", t.ID.String()),
		zap.String("plan", string(plan.Code)),
		zap.String("gateway", gwType.String()),
		zap.String("order_number", p.OrderNumber),
		zap.String("status", string(p.Status)))

	return &CheckoutResponse{
		Payment:      ToPaymentResponse(p),
		Subscription: ToSubscriptionResponse(sub, s.now()),
		PaymentURL:   p.PaymentURL,
	}, nil
}

// subscriptionForCheckout returns the subscription a new payment pays for.
// Paying for the live plan renews it; any other plan goes through a pending
// subscription that is reused across checkout attempts.
func (s *BillingService) subscriptionForCheckout(ctx context.Context, t *tenant.Tenant, plan tenant.Plan, gw billing.GatewayType, currency string) (*billing.Subscription, error) {
	current, err := s.subscriptions.FindCurrentForTenant(ctx, t.ID)
	switch {
	case err == nil:
		if current.Status.IsLive() && current.PlanCode == plan.Code {
			return current, nil
		}
	case !errors.Is(err, shared.ErrNotFound):
		return nil, err
	}

	pending, err := s.subscriptions.FindPendingForTenant(ctx, t.ID)
	switch {
	case err == nil:
		if err := pending.Reprice(plan, gw, currency); err != nil {
			return nil, err
		}
		if err := s.subscriptions.Save(ctx, pending); err != nil {
			return nil, err
		}
		return pending, nil
	case !errors.Is(err, shared.ErrNotFound):
		return nil, err
	}

	sub, err := billing.NewSubscription(t.ID, plan, gw, currency)
	if err != nil {
		return nil, err
	}
	if err := s.subscriptions.Save(ctx, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

// GetPayment returns a payment of the tenant
func (s *BillingService) GetPayment(ctx context.Context, tenantID, paymentID uuid.UUID) (*PaymentResponse, error) {
	p, err := s.payments.FindByIDForTenant(ctx, tenantID, paymentID)
	if err != nil {
		return nil, err
	}
	resp := ToPaymentResponse(p)
	return &resp, nil
}

// ListPayments lists the tenant's payments
func (s *BillingService) ListPayments(ctx context.Context, tenantID uuid.UUID, filter PaymentListFilter) ([]PaymentResponse, int64, error) {
	payments, total, err := s.payments.FindAllForTenant(ctx, tenantID, filter.ToSharedFilter())
	if err != nil {
		return nil, 0, err
	}
	return ToPaymentResponses(payments), total, nil
}

// GetSubscription returns the tenant's live subscription, or the pending
// one when nothing is live
func (s *BillingService) GetSubscription(ctx context.Context, tenantID uuid.UUID) (*SubscriptionResponse, error) {
	sub, err := s.subscriptions.FindCurrentForTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	resp := ToSubscriptionResponse(sub, s.now())
	return &resp, nil
}

// ListWebhookEvents lists the webhook inbox across tenants
func (s *BillingService) ListWebhookEvents(ctx context.Context, filter WebhookEventFilter) ([]WebhookEventResponse, int64, error) {
	f := shared.Filter{
		Page:     filter.Page,
		PageSize: filter.PageSize,
		OrderBy:  filter.OrderBy,
		OrderDir: filter.OrderDir,
	}.Normalize()
	events, total, err := s.webhooks.FindAll(ctx, billing.GatewayType(filter.Gateway), billing.WebhookStatus(filter.Status), f)
	if err != nil {
		return nil, 0, err
	}
	out := make([]WebhookEventResponse, len(events))
	for i := range events {
		out[i] = ToWebhookEventResponse(&events[i])
	}
	return out, total, nil
}

// RefundPayment returns money of a collected payment through its gateway
func (s *BillingService) RefundPayment(ctx context.Context, tenantID, paymentID uuid.UUID, req RefundPaymentRequest) (_ *PaymentResponse, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "billing", "refund",
		telemetry.WithAttribute(telemetry.SpanAttrTenantID, tenantID.String()),
		telemetry.WithAttribute(telemetry.SpanAttrPaymentID, paymentID.String()))
	defer func() {
		telemetry.RecordError(span, err)
		span.End()
	}()

	p, err := s.payments.FindByIDForTenant(ctx, tenantID, paymentID)
	if err != nil {
		return nil, err
	}
	amount := p.RefundableAmount()
	if req.Amount != nil {
		amount = req.Amount.Round(2)
	}
	if err := p.CheckRefund(amount); err != nil {
		return nil, err
	}
	gateway, ok := s.gateways[p.Gateway]
	if !ok {
		return nil, shared.InvalidState("gateway %s is not enabled", p.Gateway)
	}
	if p.GatewayTransactionID == "" {
		return nil, shared.InvalidState("payment has no gateway transaction to refund")
	}

	result, err := gateway.Refund(ctx, &billing.RefundRequest{
		GatewayTransactionID: p.GatewayTransactionID,
		OrderNumber:          p.OrderNumber,
		Amount:               amount,
		PaymentAmount:        p.Amount,
		Currency:             p.Currency,
		Reason:               req.Reason,
	})
	if err != nil {
		s.logger.Error("Gateway refund failed",
			zap.String("payment_id", p.ID.String()),
			zap.String("gateway", p.Gateway.String()),
			zap.Error(err))
		return nil, gatewayError(p.Gateway, err)
	}

	if err := p.RecordRefund(amount); err != nil {
		return nil, err
	}
	if err := s.payments.Save(ctx, p); err != nil {
		return nil, err
	}
	s.publish(ctx, p)

	s.logger.Info("Payment refunded",
		zap.String("payment_id", p.ID.String()),
		zap.String("refund_id", result.RefundID),
		zap.String("amount", amount.StringFixed(2)),
		zap.String("status", string(p.Status)))
	resp := ToPaymentResponse(p)
	return &resp, nil
}

// CancelSubscription stops the tenant's subscription now or at period end.
// Cancelling now downgrades the tenant to the free plan.
func (s *BillingService) CancelSubscription(ctx context.Context, tenantID uuid.UUID, req CancelSubscriptionRequest) (*SubscriptionResponse, error) {
	sub, err := s.subscriptions.FindCurrentForTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if err := sub.Cancel(req.AtPeriodEnd, now); err != nil {
		return nil, err
	}
	if err := s.subscriptions.Save(ctx, sub); err != nil {
		return nil, err
	}
	s.publish(ctx, sub)

	if sub.Status == billing.SubscriptionCancelled {
		if _, err := s.downgradeIfUncovered(ctx, tenantID, now); err != nil {
			return nil, err
		}
	}
	s.logger.Info("Subscription cancelled",
		zap.String("tenant_id", tenantID.String()),
		zap.String("subscription_id", sub.ID.String()),
		zap.Bool("at_period_end", req.AtPeriodEnd))
	resp := ToSubscriptionResponse(sub, now)
	return &resp, nil
}

// applyUpdate folds a gateway report into p, persists it and runs the side
// effects of the new status on the subscription and tenant.
func (s *BillingService) applyUpdate(ctx context.Context, p *billing.Payment, u billing.GatewayUpdate) (billing.Transition, error) {
	prevTx, prevRaw, from := p.GatewayTransactionID, p.LastGatewayStatus, p.Status
	tr := p.ApplyGatewayStatus(u)

	if tr != billing.TransitionApplied {
		if tr == billing.TransitionIgnored {
			s.logger.Warn("Ignoring payment status regression",
				zap.String("payment_id", p.ID.String()),
				zap.String("order_number", p.OrderNumber),
				zap.String("status", string(p.Status)),
				zap.String("reported", string(u.Status)))
		}
		if p.GatewayTransactionID == prevTx && p.LastGatewayStatus == prevRaw {
			return tr, nil
		}
		p.IncrementVersion()
		return tr, s.payments.Save(ctx, p)
	}

	if err := s.payments.Save(ctx, p); err != nil {
		return tr, err
	}
	s.publish(ctx, p)
	s.logger.Info("Payment status changed",
		zap.String("payment_id", p.ID.String()),
		zap.String("order_number", p.OrderNumber),
		zap.String("from", string(from)),
		zap.String("to", string(p.Status)))

	switch p.Status {
	case billing.PaymentStatusPaid:
		return tr, s.activateSubscription(ctx, p)
	case billing.PaymentStatusFailed:
		return tr, s.markPastDue(ctx, p)
	}
	return tr, nil
}

// activateSubscription starts the period paid for by p, moves the tenant
// onto the subscription plan and ends any other live subscription.
func (s *BillingService) activateSubscription(ctx context.Context, p *billing.Payment) error {
	if p.SubscriptionID == nil {
		return nil
	}
	sub, err := s.subscriptions.FindByID(ctx, *p.SubscriptionID)
	if err != nil {
		return err
	}
	paidAt := s.now()
	if p.PaidAt != nil {
		paidAt = *p.PaidAt
	}
	if err := sub.Activate(paidAt); err != nil {
		s.logger.Warn("Payment collected for a subscription that cannot be activated",
			zap.String("payment_id", p.ID.String()),
			zap.String("subscription_id", sub.ID.String()),
			zap.String("status", string(sub.Status)))
		return nil
	}
	if err := s.subscriptions.Save(ctx, sub); err != nil {
		return err
	}
	s.publish(ctx, sub)

	live, err := s.subscriptions.FindLiveForTenant(ctx, p.TenantID)
	if err != nil {
		return err
	}
	for i := range live {
		other := &live[i]
		if other.ID == sub.ID {
			continue
		}
		if err := other.Cancel(false, paidAt); err != nil {
			continue
		}
		if err := s.subscriptions.Save(ctx, other); err != nil {
			return err
		}
		s.publish(ctx, other)
		s.logger.Info("Superseded subscription cancelled",
			zap.String("subscription_id", other.ID.String()),
			zap.String("replaced_by", sub.ID.String()))
	}

	t, err := s.tenants.FindByID(ctx, p.TenantID)
	if err != nil {
		return err
	}
	end := *sub.CurrentPeriodEnd
	if err := t.ChangePlan(sub.PlanCode, &end); err != nil {
		return err
	}
	if t.Status != tenant.StatusActive {
		if err := t.Activate(); err != nil {
			s.logger.Warn("Paid tenant could not be activated",
				zap.String("tenant_id", t.ID.String()),
				zap.String("status", string(t.Status)),
				zap.Error(err))
		}
	}
	if err := s.tenants.Save(ctx, t); err != nil {
		return err
	}
	s.publish(ctx, t)
	return nil
}

func (s *BillingService) markPastDue(ctx context.Context, p *billing.Payment) error {
	if p.SubscriptionID == nil {
		return nil
	}
	sub, err := s.subscriptions.FindByID(ctx, *p.SubscriptionID)
	if err != nil {
		return err
	}
	if !sub.MarkPastDue() {
		return nil
	}
	s.logger.Info("Subscription past due",
		zap.String("subscription_id", sub.ID.String()),
		zap.String("payment_id", p.ID.String()))
	return s.subscriptions.Save(ctx, sub)
}

// downgradeIfUncovered moves the tenant to the free plan unless another
// live subscription still pays for it.
func (s *BillingService) downgradeIfUncovered(ctx context.Context, tenantID uuid.UUID, now time.Time) (bool, error) {
	live, err := s.subscriptions.FindLiveForTenant(ctx, tenantID)
	if err != nil {
		return false, err
	}
	for i := range live {
		if live[i].CurrentPeriodEnd != nil && live[i].CurrentPeriodEnd.After(now) {
			return false, nil
		}
	}
	t, err := s.tenants.FindByID(ctx, tenantID)
	if err != nil {
		return false, err
	}
	if t.PlanCode == tenant.PlanFree {
		return false, nil
	}
	if err := t.ChangePlan(tenant.PlanFree, nil); err != nil {
		return false, err
	}
	if err := s.tenants.Save(ctx, t); err != nil {
		return false, err
	}
	s.publish(ctx, t)
	s.logger.Info("Tenant downgraded to the free plan", zap.String("tenant_id", tenantID.String()))
	return true, nil
}

func (s *BillingService) notifyURL(gw billing.GatewayType) string {
	if s.opts.NotifyBaseURL == "" {
		return ""
	}
	return s.opts.NotifyBaseURL + "/webhooks/" + strings.ToLower(gw.String())
}

func (s *BillingService) publish(ctx context.Context, agg shared.AggregateRoot) {
	if err := shared.PublishPending(ctx, s.publisher, agg); err != nil {
		s.logger.Warn("Failed to publish billing events", zap.Error(err))
	}
}

// gatewayError maps an adapter error to a domain error
func gatewayError(gw billing.GatewayType, err error) error {
	switch {
	case errors.Is(err, billing.ErrPaymentMissingCardToken),
		errors.Is(err, billing.ErrPaymentInvalidAmount),
		errors.Is(err, billing.ErrPaymentInvalidCurrency),
		errors.Is(err, billing.ErrPaymentInvalidOrderNumber),
		errors.Is(err, billing.ErrRefundInvalidAmount):
		return shared.InvalidInput("%v", err).WithCause(err)
	}
	var de *shared.DomainError
	if errors.As(err, &de) {
		return err
	}
	return shared.ErrGateway.WithCause(err).WithDetail("gateway", gw.String())
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
