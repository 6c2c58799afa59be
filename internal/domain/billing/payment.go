package billing

import (
	"fmt"
	"strings"
	"time"

	"github.com/backoffice/saas/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Payment is a single attempt to collect money through a gateway
type Payment struct {
	shared.TenantAggregateRoot
	SubscriptionID       *uuid.UUID
	Gateway              GatewayType
	OrderNumber          string
	Amount               decimal.Decimal
	Currency             string
	Description          string
	Status               PaymentStatus
	GatewayTransactionID string
	PaymentURL           string
	FailureReason        string
	LastGatewayStatus    string
	PaidAt               *time.Time
	RefundedAmount       decimal.Decimal
}

// NewOrderNumber generates the client transaction id sent to gateways
func NewOrderNumber(at time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("PAY-%s-%s", at.UTC().Format("20060102"), suffix)
}

// NewPayment creates a pending payment
func NewPayment(tenantID uuid.UUID, subscriptionID *uuid.UUID, gateway GatewayType, amount decimal.Decimal, currency, description string) (*Payment, error) {
	if tenantID == uuid.Nil {
		return nil, shared.InvalidInput("tenant id is required")
	}
	if !gateway.IsValid() {
		return nil, shared.InvalidInput("unsupported gateway %q", gateway)
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, shared.InvalidInput("payment amount must be positive")
	}
	currency = strings.ToUpper(currency)
	if len(currency) != 3 {
		return nil, shared.InvalidInput("currency must be a 3-letter code")
	}

	p := &Payment{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		SubscriptionID:      subscriptionID,
		Gateway:             gateway,
		Amount:              amount.Round(2),
		Currency:            currency,
		Description:         description,
		Status:              PaymentStatusPending,
		RefundedAmount:      decimal.Zero,
	}
	p.OrderNumber = NewOrderNumber(p.CreatedAt)
	return p, nil
}

// AttachGatewayResult stores the identifiers returned by CreatePayment
func (p *Payment) AttachGatewayResult(transactionID, paymentURL, rawStatus string) {
	p.GatewayTransactionID = transactionID
	p.PaymentURL = paymentURL
	p.LastGatewayStatus = rawStatus
	p.IncrementVersion()
}

// GatewayUpdate is a status report coming from a gateway
type GatewayUpdate struct {
	Status               PaymentStatus
	GatewayTransactionID string
	PaidAt               *time.Time
	FailureReason        string
	RawStatus            string
}

// ApplyGatewayStatus folds a gateway report into the payment.
// Reporting the current status again is a no-op and transitions the
// state machine does not allow are ignored, so replays and out-of-order
// notifications never corrupt a settled payment.
func (p *Payment) ApplyGatewayStatus(u GatewayUpdate) Transition {
	if u.RawStatus != "" {
		p.LastGatewayStatus = u.RawStatus
	}
	if u.GatewayTransactionID != "" && p.GatewayTransactionID == "" {
		p.GatewayTransactionID = u.GatewayTransactionID
	}
	if u.Status == "" || u.Status == p.Status {
		return TransitionNoop
	}
	if !p.Status.CanTransitionTo(u.Status) {
		return TransitionIgnored
	}

	old := p.Status
	p.Status = u.Status
	switch u.Status {
	case PaymentStatusPaid:
		paidAt := time.Now().UTC()
		if u.PaidAt != nil {
			paidAt = u.PaidAt.UTC()
		}
		p.PaidAt = &paidAt
		p.FailureReason = ""
		p.AddDomainEvent(NewPaymentSucceededEvent(p))
	case PaymentStatusFailed, PaymentStatusCancelled, PaymentStatusExpired:
		p.FailureReason = u.FailureReason
		p.AddDomainEvent(NewPaymentFailedEvent(p, old))
	case PaymentStatusRefunded:
		refunded := p.Amount.Sub(p.RefundedAmount)
		p.RefundedAmount = p.Amount
		p.AddDomainEvent(NewPaymentRefundedEvent(p, refunded))
	case PaymentStatusPartialRefunded:
		// the amount is known only through RecordRefund
	}
	p.IncrementVersion()
	return TransitionApplied
}

// RefundableAmount is what has been collected and not yet returned
func (p *Payment) RefundableAmount() decimal.Decimal {
	if !p.Status.IsSuccess() {
		return decimal.Zero
	}
	return p.Amount.Sub(p.RefundedAmount)
}

// CheckRefund validates a refund of amount before calling the gateway
func (p *Payment) CheckRefund(amount decimal.Decimal) error {
	if !p.Status.IsSuccess() {
		return shared.InvalidState("payment in status %s cannot be refunded", p.Status)
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return shared.InvalidInput("refund amount must be positive")
	}
	if amount.GreaterThan(p.RefundableAmount()) {
		return shared.InvalidInput("refund amount %s exceeds refundable %s", amount.StringFixed(2), p.RefundableAmount().StringFixed(2))
	}
	return nil
}

// RecordRefund registers a refund accepted by the gateway
func (p *Payment) RecordRefund(amount decimal.Decimal) error {
	if err := p.CheckRefund(amount); err != nil {
		return err
	}
	p.RefundedAmount = p.RefundedAmount.Add(amount)
	if p.RefundedAmount.GreaterThanOrEqual(p.Amount) {
		p.Status = PaymentStatusRefunded
	} else {
		p.Status = PaymentStatusPartialRefunded
	}
	p.IncrementVersion()
	p.AddDomainEvent(NewPaymentRefundedEvent(p, amount))
	return nil
}

// IsStale reports whether a pending payment is older than age at now
func (p *Payment) IsStale(now time.Time, age time.Duration) bool {
	return p.Status == PaymentStatusPending && now.Sub(p.CreatedAt) >= age
}
