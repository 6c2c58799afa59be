package models

import (
	"time"

	"github.com/backoffice/saas/internal/domain/billing"
	"github.com/backoffice/saas/internal/domain/tenant"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SubscriptionModel is the persistence model for Subscription
type SubscriptionModel struct {
	TenantAggregateModel
	PlanCode           tenant.PlanCode            `gorm:"type:varchar(20);not null"`
	Gateway            billing.GatewayType        `gorm:"type:varchar(20);not null"`
	Status             billing.SubscriptionStatus `gorm:"type:varchar(20);not null;index"`
	Amount             decimal.Decimal            `gorm:"type:numeric(18,2);not null"`
	Currency           string                     `gorm:"type:varchar(3);not null"`
	CurrentPeriodStart *time.Time
	CurrentPeriodEnd   *time.Time `gorm:"index"`
	CancelAtPeriodEnd  bool       `gorm:"not null;default:false"`
	ExternalReference  string     `gorm:"type:varchar(100)"`
	CancelledAt        *time.Time
}

// TableName returns the table name for GORM
func (SubscriptionModel) TableName() string { return "subscriptions" }

// SubscriptionModelFromDomain maps a subscription to its row
func SubscriptionModelFromDomain(s *billing.Subscription) *SubscriptionModel {
	m := &SubscriptionModel{
		PlanCode:           s.PlanCode,
		Gateway:            s.Gateway,
		Status:             s.Status,
		Amount:             s.Amount,
		Currency:           s.Currency,
		CurrentPeriodStart: s.CurrentPeriodStart,
		CurrentPeriodEnd:   s.CurrentPeriodEnd,
		CancelAtPeriodEnd:  s.CancelAtPeriodEnd,
		ExternalReference:  s.ExternalReference,
		CancelledAt:        s.CancelledAt,
	}
	m.fromTenantAggregate(s.TenantAggregateRoot)
	return m
}

// ToDomain converts the row to a subscription
func (m *SubscriptionModel) ToDomain() *billing.Subscription {
	return &billing.Subscription{
		TenantAggregateRoot: m.toTenantAggregate(),
		PlanCode:            m.PlanCode,
		Gateway:             m.Gateway,
		Status:              m.Status,
		Amount:              m.Amount,
		Currency:            m.Currency,
		CurrentPeriodStart:  m.CurrentPeriodStart,
		CurrentPeriodEnd:    m.CurrentPeriodEnd,
		CancelAtPeriodEnd:   m.CancelAtPeriodEnd,
		ExternalReference:   m.ExternalReference,
		CancelledAt:         m.CancelledAt,
	}
}

// PaymentModel is the persistence model for Payment
type PaymentModel struct {
	TenantAggregateModel
	SubscriptionID       *uuid.UUID            `gorm:"type:uuid;index"`
	Gateway              billing.GatewayType   `gorm:"type:varchar(20);not null"`
	OrderNumber          string                `gorm:"type:varchar(40);not null;uniqueIndex"`
	Amount               decimal.Decimal       `gorm:"type:numeric(18,2);not null"`
	Currency             string                `gorm:"type:varchar(3);not null"`
	Description          string                `gorm:"type:varchar(500)"`
	Status               billing.PaymentStatus `gorm:"type:varchar(20);not null;index"`
	GatewayTransactionID string                `gorm:"type:varchar(100);index"`
	PaymentURL           string                `gorm:"type:text"`
	FailureReason        string                `gorm:"type:varchar(500)"`
	LastGatewayStatus    string                `gorm:"type:varchar(50)"`
	PaidAt               *time.Time
	RefundedAmount       decimal.Decimal `gorm:"type:numeric(18,2);not null;default:0"`
}

// TableName returns the table name for GORM
func (PaymentModel) TableName() string { return "payments" }

// PaymentModelFromDomain maps a payment to its row
func PaymentModelFromDomain(p *billing.Payment) *PaymentModel {
	m := &PaymentModel{
		SubscriptionID:       p.SubscriptionID,
		Gateway:              p.Gateway,
		OrderNumber:          p.OrderNumber,
		Amount:               p.Amount,
		Currency:             p.Currency,
		Description:          p.Description,
		Status:               p.Status,
		GatewayTransactionID: p.GatewayTransactionID,
		PaymentURL:           p.PaymentURL,
		FailureReason:        p.FailureReason,
		LastGatewayStatus:    p.LastGatewayStatus,
		PaidAt:               p.PaidAt,
		RefundedAmount:       p.RefundedAmount,
	}
	m.fromTenantAggregate(p.TenantAggregateRoot)
	return m
}

// ToDomain converts the row to a payment
func (m *PaymentModel) ToDomain() *billing.Payment {
	return &billing.Payment{
		TenantAggregateRoot:  m.toTenantAggregate(),
		SubscriptionID:       m.SubscriptionID,
		Gateway:              m.Gateway,
		OrderNumber:          m.OrderNumber,
		Amount:               m.Amount,
		Currency:             m.Currency,
		Description:          m.Description,
		Status:               m.Status,
		GatewayTransactionID: m.GatewayTransactionID,
		PaymentURL:           m.PaymentURL,
		FailureReason:        m.FailureReason,
		LastGatewayStatus:    m.LastGatewayStatus,
		PaidAt:               m.PaidAt,
		RefundedAmount:       m.RefundedAmount,
	}
}

// WebhookEventModel is the persisted webhook inbox row
type WebhookEventModel struct {
	BaseModel
	Gateway     billing.GatewayType   `gorm:"type:varchar(20);not null;index"`
	EventID     string                `gorm:"type:varchar(200);index"`
	EventType   string                `gorm:"type:varchar(100)"`
	Headers     string                `gorm:"type:jsonb;not null;default:'{}'"`
	Payload     string                `gorm:"type:text"`
	Status      billing.WebhookStatus `gorm:"type:varchar(20);not null;index"`
	Error       string                `gorm:"type:text"`
	Attempts    int                   `gorm:"not null;default:0"`
	TenantID    *uuid.UUID            `gorm:"type:uuid;index"`
	PaymentID   *uuid.UUID            `gorm:"type:uuid;index"`
	ProcessedAt *time.Time
}

// TableName returns the table name for GORM
func (WebhookEventModel) TableName() string { return "webhook_events" }

// WebhookEventModelFromDomain maps an inbox record to its row
func WebhookEventModelFromDomain(w *billing.WebhookEvent) *WebhookEventModel {
	m := &WebhookEventModel{
		Gateway:     w.Gateway,
		EventID:     w.EventID,
		EventType:   w.EventType,
		Headers:     marshalJSON(w.Headers, "{}"),
		Payload:     w.Payload,
		Status:      w.Status,
		Error:       w.Error,
		Attempts:    w.Attempts,
		TenantID:    w.TenantID,
		PaymentID:   w.PaymentID,
		ProcessedAt: w.ProcessedAt,
	}
	m.fromEntity(w.BaseEntity)
	return m
}

// ToDomain converts the row to an inbox record
func (m *WebhookEventModel) ToDomain() (*billing.WebhookEvent, error) {
	w := &billing.WebhookEvent{
		BaseEntity:  m.toEntity(),
		Gateway:     m.Gateway,
		EventID:     m.EventID,
		EventType:   m.EventType,
		Headers:     map[string]string{},
		Payload:     m.Payload,
		Status:      m.Status,
		Error:       m.Error,
		Attempts:    m.Attempts,
		TenantID:    m.TenantID,
		PaymentID:   m.PaymentID,
		ProcessedAt: m.ProcessedAt,
	}
	if err := unmarshalJSON("headers", m.Headers, &w.Headers); err != nil {
		return nil, err
	}
	return w, nil
}
