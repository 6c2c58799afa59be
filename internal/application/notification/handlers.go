// Package notification turns domain events into transactional email.
package notification

import (
	"context"
	"fmt"

	"github.com/backoffice/saas/internal/domain/billing"
	"github.com/backoffice/saas/internal/domain/invoicing"
	"github.com/backoffice/saas/internal/domain/shared"
	"github.com/backoffice/saas/internal/domain/tenant"
	"github.com/backoffice/saas/internal/infrastructure/notification"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TenantReader loads the tenant an event belongs to
type TenantReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*tenant.Tenant, error)
}

// InvoiceReader loads the issued invoice for its dates
type InvoiceReader interface {
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*invoicing.Invoice, error)
}

// PaymentReader loads the payment behind a billing event
type PaymentReader interface {
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*billing.Payment, error)
}

// SubscriptionReader loads the subscription a payment renewed
type SubscriptionReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*billing.Subscription, error)
}

// InvoiceIssuedHandler emails the customer of a freshly issued invoice
type InvoiceIssuedHandler struct {
	sender   notification.Sender
	tenants  TenantReader
	invoices InvoiceReader
	logger   *zap.Logger
}

// NewInvoiceIssuedHandler creates the handler
func NewInvoiceIssuedHandler(sender notification.Sender, tenants TenantReader, invoices InvoiceReader, logger *zap.Logger) *InvoiceIssuedHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InvoiceIssuedHandler{sender: sender, tenants: tenants, invoices: invoices, logger: logger}
}

// EventTypes returns the handled event types
func (h *InvoiceIssuedHandler) EventTypes() []string {
	return []string{invoicing.EventTypeInvoiceIssued}
}

// Handle sends the email. Invoices without a customer email are skipped.
func (h *InvoiceIssuedHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	e, ok := event.(*invoicing.InvoiceIssuedEvent)
	if !ok {
		return fmt.Errorf("unexpected event type %T", event)
	}
	if e.CustomerEmail == "" {
		return nil
	}
	t, err := h.tenants.FindByID(ctx, e.TenantID())
	if err != nil {
		return err
	}
	data := notification.InvoiceIssuedData{
		TenantName:   t.Name,
		CustomerName: e.CustomerName,
		Number:       e.FullNumber,
		Currency:     e.Currency,
		Total:        e.Total.StringFixed(2),
		IssueDate:    e.OccurredAt().Format("2006-01-02"),
	}
	if inv, err := h.invoices.FindByIDForTenant(ctx, e.TenantID(), e.InvoiceID); err == nil {
		if inv.IssueDate != nil {
			data.IssueDate = inv.IssueDate.Format("2006-01-02")
		}
		if inv.DueDate != nil {
			data.DueDate = inv.DueDate.Format("2006-01-02")
		}
	}
	msg, err := notification.InvoiceIssued(e.CustomerEmail, data)
	if err != nil {
		return err
	}
	msg.TenantID = e.TenantID().String()
	id, err := h.sender.Send(ctx, msg)
	if err != nil {
		return fmt.Errorf("send invoice email: %w", err)
	}
	h.logger.Info("Invoice email sent",
		zap.String("invoice_id", e.InvoiceID.String()),
		zap.String("message_id", id))
	return nil
}

// PaymentHandler emails the tenant contact about payment outcomes
type PaymentHandler struct {
	sender        notification.Sender
	tenants       TenantReader
	payments      PaymentReader
	subscriptions SubscriptionReader
	logger        *zap.Logger
}

// NewPaymentHandler creates the handler
func NewPaymentHandler(sender notification.Sender, tenants TenantReader, payments PaymentReader, subscriptions SubscriptionReader, logger *zap.Logger) *PaymentHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PaymentHandler{sender: sender, tenants: tenants, payments: payments, subscriptions: subscriptions, logger: logger}
}

// EventTypes returns the handled event types
func (h *PaymentHandler) EventTypes() []string {
	return []string{billing.EventTypePaymentSucceeded, billing.EventTypePaymentFailed}
}

// Handle sends a receipt or a failure notice
func (h *PaymentHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	var paymentID uuid.UUID
	switch e := event.(type) {
	case *billing.PaymentSucceededEvent:
		paymentID = e.PaymentID
	case *billing.PaymentFailedEvent:
		paymentID = e.PaymentID
	default:
		return fmt.Errorf("unexpected event type %T", event)
	}

	t, err := h.tenants.FindByID(ctx, event.TenantID())
	if err != nil {
		return err
	}
	if t.Email == "" {
		return nil
	}
	p, err := h.payments.FindByIDForTenant(ctx, event.TenantID(), paymentID)
	if err != nil {
		return err
	}
	data := notification.PaymentData{
		TenantName:  t.Name,
		PlanName:    t.Plan().Name,
		OrderNumber: p.OrderNumber,
		Currency:    p.Currency,
		Amount:      p.Amount.StringFixed(2),
		Reason:      p.FailureReason,
	}
	if p.SubscriptionID != nil && h.subscriptions != nil {
		if sub, err := h.subscriptions.FindByID(ctx, *p.SubscriptionID); err == nil && sub.TenantID == p.TenantID {
			if plan, ok := tenant.LookupPlan(sub.PlanCode); ok {
				data.PlanName = plan.Name
			}
			if sub.CurrentPeriodEnd != nil {
				data.PeriodEnd = sub.CurrentPeriodEnd.Format("2006-01-02")
			}
		}
	}

	var msg notification.Message
	if event.EventType() == billing.EventTypePaymentSucceeded {
		msg, err = notification.PaymentSucceeded(t.Email, data)
	} else {
		msg, err = notification.PaymentFailed(t.Email, data)
	}
	if err != nil {
		return err
	}
	msg.TenantID = t.ID.String()
	id, err := h.sender.Send(ctx, msg)
	if err != nil {
		return fmt.Errorf("send payment email: %w", err)
	}
	h.logger.Info("Payment email sent",
		zap.String("payment_id", p.ID.String()),
		zap.String("event_type", event.EventType()),
		zap.String("message_id", id))
	return nil
}
