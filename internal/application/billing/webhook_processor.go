package billing

import (
	"context"
	"errors"
	"fmt"

	"github.com/backoffice/saas/internal/domain/billing"
	"github.com/backoffice/saas/internal/domain/shared"
	"github.com/backoffice/saas/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// ProcessWebhook handles a gateway callback. Every callback is recorded in
// the webhook inbox. Unknown payments are acknowledged so the gateway stops
// retrying, and replays are detected through the idempotency store.
func (s *BillingService) ProcessWebhook(ctx context.Context, gatewayName string, req billing.WebhookRequest) (_ *WebhookResult, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "billing", "process_webhook",
		telemetry.WithAttribute(telemetry.SpanAttrPaymentGateway, gatewayName))
	defer func() {
		telemetry.RecordError(span, err)
		span.End()
	}()

	gwType, ok := billing.ParseGatewayType(gatewayName)
	if !ok {
		return nil, shared.NotFound("payment gateway")
	}
	gateway, ok := s.gateways[gwType]
	if !ok {
		return nil, shared.NotFound("payment gateway")
	}

	record := billing.NewWebhookEvent(gwType, req)
	if err := s.webhooks.Save(ctx, record); err != nil {
		return nil, fmt.Errorf("record webhook: %w", err)
	}

	notification, err := gateway.ParseWebhook(ctx, req)
	if err != nil {
		s.finishRecord(ctx, record, func() { record.MarkFailed(err) })
		if errors.Is(err, billing.ErrGatewayInvalidCallback) {
			s.logger.Warn("Rejected webhook with invalid signature", zap.String("gateway", gwType.String()))
			return nil, shared.ErrInvalidSignature.WithCause(err)
		}
		s.logger.Warn("Rejected malformed webhook", zap.String("gateway", gwType.String()), zap.Error(err))
		return nil, shared.InvalidInput("malformed webhook payload").WithCause(err)
	}
	record.Identify(notification)
	telemetry.SetAttributes(span, "webhook.event_id", notification.EventID, "webhook.event_type", notification.EventType)

	logger := s.logger.With(
		zap.String("gateway", gwType.String()),
		zap.String("event_id", notification.EventID),
		zap.String("event_type", notification.EventType))
	logger.Info("Processing webhook")

	key := ""
	if notification.EventID != "" && s.idempotency != nil {
		key = fmt.Sprintf("webhook:%s:%s", gwType, notification.EventID)
		first, err := s.idempotency.MarkProcessed(ctx, key, s.opts.IdempotencyTTL)
		switch {
		case err != nil:
			logger.Warn("Idempotency check failed, processing anyway", zap.Error(err))
			key = ""
		case !first:
			logger.Info("Webhook already processed")
			s.finishRecord(ctx, record, func() { record.MarkIgnored("duplicate delivery") })
			return &WebhookResult{
				Accepted:         true,
				AlreadyProcessed: true,
				EventID:          notification.EventID,
				Message:          "already processed",
			}, nil
		}
	}

	forget := func() {
		if key == "" {
			return
		}
		if err := s.idempotency.Forget(ctx, key); err != nil {
			logger.Warn("Failed to release idempotency key", zap.Error(err))
		}
	}

	result, err := s.handleNotification(ctx, gateway, notification, record)
	if err != nil {
		forget()
		logger.Error("Webhook processing failed", zap.Error(err))
		s.finishRecord(ctx, record, func() { record.MarkFailed(err) })
		return nil, err
	}
	// a stateless callback reuses its event id for every delivery about the
	// transaction, so one that left the payment pending must not block the next
	if notification.NeedsQuery && result.Status == string(billing.PaymentStatusPending) {
		forget()
	}
	logger.Info("Webhook processed",
		zap.String("status", result.Status),
		zap.String("transition", result.Transition),
		zap.String("message", result.Message))
	return result, nil
}

// handleNotification resolves the payment of n and applies the reported
// status. It closes record on success.
func (s *BillingService) handleNotification(ctx context.Context, gateway billing.PaymentGateway, n *billing.WebhookNotification, record *billing.WebhookEvent) (*WebhookResult, error) {
	p, queried, err := s.resolvePayment(ctx, gateway, n)
	if err != nil {
		return nil, err
	}
	if p == nil {
		s.finishRecord(ctx, record, func() { record.MarkIgnored("payment not found") })
		return &WebhookResult{Accepted: true, EventID: n.EventID, Message: "payment not found"}, nil
	}

	update := billing.GatewayUpdate{
		Status:               n.Status,
		GatewayTransactionID: n.GatewayTransactionID,
		FailureReason:        n.FailureReason,
	}
	if n.Status != "" {
		update.RawStatus = n.EventType
	}
	if n.NeedsQuery {
		if queried == nil {
			queried, err = s.queryPayment(ctx, gateway, p, n.GatewayTransactionID)
			if err != nil {
				return nil, err
			}
		}
		update = s.updateFromQuery(p, queried)
	}

	tr, err := s.applyUpdate(ctx, p, update)
	if err != nil {
		return nil, err
	}
	s.finishRecord(ctx, record, func() { record.MarkProcessed(p) })
	return &WebhookResult{
		Accepted:   true,
		EventID:    n.EventID,
		PaymentID:  &p.ID,
		Status:     string(p.Status),
		Transition: string(tr),
	}, nil
}

// resolvePayment finds the payment a notification is about, by gateway
// transaction id first and order number second. A transaction id we have
// not seen yet is looked up at the gateway, which knows our order number.
// It returns a nil payment when nothing matches.
func (s *BillingService) resolvePayment(ctx context.Context, gateway billing.PaymentGateway, n *billing.WebhookNotification) (*billing.Payment, *billing.QueryPaymentResult, error) {
	gwType := gateway.Type()
	if n.GatewayTransactionID != "" {
		p, err := s.payments.FindByGatewayTransaction(ctx, gwType, n.GatewayTransactionID)
		if err == nil {
			return p, nil, nil
		}
		if !errors.Is(err, shared.ErrNotFound) {
			return nil, nil, err
		}
	}
	if n.OrderNumber != "" {
		p, err := s.findByOrderNumber(ctx, gwType, n.OrderNumber)
		if err != nil || p != nil {
			return p, nil, err
		}
	}
	if !n.NeedsQuery || n.GatewayTransactionID == "" {
		return nil, nil, nil
	}

	q, err := s.queryGateway(ctx, gateway, &billing.QueryPaymentRequest{GatewayTransactionID: n.GatewayTransactionID})
	if err != nil {
		return nil, nil, err
	}
	if q.OrderNumber == "" {
		return nil, nil, nil
	}
	p, err := s.findByOrderNumber(ctx, gwType, q.OrderNumber)
	if err != nil || p == nil {
		return nil, nil, err
	}
	return p, q, nil
}

func (s *BillingService) findByOrderNumber(ctx context.Context, gw billing.GatewayType, orderNumber string) (*billing.Payment, error) {
	p, err := s.payments.FindByOrderNumber(ctx, orderNumber)
	if errors.Is(err, shared.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if p.Gateway != gw {
		s.logger.Warn("Webhook order number belongs to another gateway",
			zap.String("order_number", orderNumber),
			zap.String("gateway", gw.String()),
			zap.String("payment_gateway", p.Gateway.String()))
		return nil, nil
	}
	return p, nil
}

// queryPayment asks the gateway for the authoritative state of p
func (s *BillingService) queryPayment(ctx context.Context, gateway billing.PaymentGateway, p *billing.Payment, transactionID string) (*billing.QueryPaymentResult, error) {
	if transactionID == "" {
		transactionID = p.GatewayTransactionID
	}
	return s.queryGateway(ctx, gateway, &billing.QueryPaymentRequest{
		GatewayTransactionID: transactionID,
		OrderNumber:          p.OrderNumber,
	})
}

func (s *BillingService) queryGateway(ctx context.Context, gateway billing.PaymentGateway, req *billing.QueryPaymentRequest) (*billing.QueryPaymentResult, error) {
	q, err := gateway.QueryPayment(ctx, req)
	if err != nil {
		return nil, gatewayError(gateway.Type(), err)
	}
	return q, nil
}

// updateFromQuery turns a gateway query into an update. A payment reported
// as paid for less than its amount is not settled.
func (s *BillingService) updateFromQuery(p *billing.Payment, q *billing.QueryPaymentResult) billing.GatewayUpdate {
	u := billing.GatewayUpdate{
		Status:               q.Status,
		GatewayTransactionID: q.GatewayTransactionID,
		PaidAt:               q.PaidAt,
		FailureReason:        q.FailureReason,
		RawStatus:            q.RawStatus,
	}
	if q.Status == billing.PaymentStatusPaid && q.PaidAmount.IsPositive() && q.PaidAmount.LessThan(p.Amount) {
		s.logger.Error("Gateway reported a short payment",
			zap.String("payment_id", p.ID.String()),
			zap.String("order_number", p.OrderNumber),
			zap.String("amount", p.Amount.StringFixed(2)),
			zap.String("paid_amount", q.PaidAmount.StringFixed(2)))
		u.Status = ""
	}
	return u
}

// finishRecord applies mark to the inbox record and saves it. A failed save
// is logged only; the outcome of the webhook does not depend on it.
func (s *BillingService) finishRecord(ctx context.Context, record *billing.WebhookEvent, mark func()) {
	mark()
	if err := s.webhooks.Save(ctx, record); err != nil {
		s.logger.Error("Failed to update webhook record",
			zap.String("webhook_id", record.ID.String()),
			zap.Error(err))
	}
}
