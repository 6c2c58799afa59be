package billing

import (
	"github.com/backoffice/saas/internal/domain/shared"
	"github.com/backoffice/saas/internal/domain/tenant"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	AggregateTypePayment      = "Payment"
	AggregateTypeSubscription = "Subscription"
)

const (
	EventTypePaymentSucceeded      = "PaymentSucceeded"
	EventTypePaymentFailed         = "PaymentFailed"
	EventTypePaymentRefunded       = "PaymentRefunded"
	EventTypeSubscriptionActivated = "SubscriptionActivated"
	EventTypeSubscriptionExpired   = "SubscriptionExpired"
	EventTypeSubscriptionCancelled = "SubscriptionCancelled"
)

// PaymentSucceededEvent is published when a payment is collected
type PaymentSucceededEvent struct {
	shared.BaseDomainEvent
	PaymentID      uuid.UUID       `json:"payment_id"`
	SubscriptionID *uuid.UUID      `json:"subscription_id,omitempty"`
	Gateway        GatewayType     `json:"gateway"`
	OrderNumber    string          `json:"order_number"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
}

func NewPaymentSucceededEvent(p *Payment) *PaymentSucceededEvent {
	return &PaymentSucceededEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePaymentSucceeded, AggregateTypePayment, p.ID, p.TenantID),
		PaymentID:       p.ID,
		SubscriptionID:  p.SubscriptionID,
		Gateway:         p.Gateway,
		OrderNumber:     p.OrderNumber,
		Amount:          p.Amount,
		Currency:        p.Currency,
	}
}

// PaymentFailedEvent is published for failed, cancelled and expired payments
type PaymentFailedEvent struct {
	shared.BaseDomainEvent
	PaymentID   uuid.UUID     `json:"payment_id"`
	Gateway     GatewayType   `json:"gateway"`
	OrderNumber string        `json:"order_number"`
	OldStatus   PaymentStatus `json:"old_status"`
	Status      PaymentStatus `json:"status"`
	Reason      string        `json:"reason,omitempty"`
}

func NewPaymentFailedEvent(p *Payment, old PaymentStatus) *PaymentFailedEvent {
	return &PaymentFailedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePaymentFailed, AggregateTypePayment, p.ID, p.TenantID),
		PaymentID:       p.ID,
		Gateway:         p.Gateway,
		OrderNumber:     p.OrderNumber,
		OldStatus:       old,
		Status:          p.Status,
		Reason:          p.FailureReason,
	}
}

// PaymentRefundedEvent is published for each refund
type PaymentRefundedEvent struct {
	shared.BaseDomainEvent
	PaymentID      uuid.UUID       `json:"payment_id"`
	RefundedAmount decimal.Decimal `json:"refunded_amount"`
	TotalRefunded  decimal.Decimal `json:"total_refunded"`
	Status         PaymentStatus   `json:"status"`
}

func NewPaymentRefundedEvent(p *Payment, amount decimal.Decimal) *PaymentRefundedEvent {
	return &PaymentRefundedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePaymentRefunded, AggregateTypePayment, p.ID, p.TenantID),
		PaymentID:       p.ID,
		RefundedAmount:  amount,
		TotalRefunded:   p.RefundedAmount,
		Status:          p.Status,
	}
}

// SubscriptionActivatedEvent is published when a period starts
type SubscriptionActivatedEvent struct {
	shared.BaseDomainEvent
	SubscriptionID uuid.UUID       `json:"subscription_id"`
	Plan           tenant.PlanCode `json:"plan"`
	PeriodEnd      string          `json:"period_end"`
}

func NewSubscriptionActivatedEvent(s *Subscription) *SubscriptionActivatedEvent {
	end := ""
	if s.CurrentPeriodEnd != nil {
		end = s.CurrentPeriodEnd.Format("2006-01-02T15:04:05Z07:00")
	}
	return &SubscriptionActivatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeSubscriptionActivated, AggregateTypeSubscription, s.ID, s.TenantID),
		SubscriptionID:  s.ID,
		Plan:            s.PlanCode,
		PeriodEnd:       end,
	}
}

// SubscriptionEndedEvent is published on expiry or cancellation
type SubscriptionEndedEvent struct {
	shared.BaseDomainEvent
	SubscriptionID uuid.UUID          `json:"subscription_id"`
	Plan           tenant.PlanCode    `json:"plan"`
	Status         SubscriptionStatus `json:"status"`
}

func NewSubscriptionEndedEvent(s *Subscription, eventType string) *SubscriptionEndedEvent {
	return &SubscriptionEndedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(eventType, AggregateTypeSubscription, s.ID, s.TenantID),
		SubscriptionID:  s.ID,
		Plan:            s.PlanCode,
		Status:          s.Status,
	}
}
