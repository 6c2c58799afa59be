package billing

import (
	"time"

	"github.com/backoffice/saas/internal/domain/billing"
	"github.com/backoffice/saas/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CheckoutRequest starts a plan purchase
type CheckoutRequest struct {
	PlanCode string `json:"plan_code" binding:"required,oneof=basic pro enterprise"`
	Gateway  string `json:"gateway" binding:"required"`
	// Currency defaults to the tenant's settings
	Currency  string `json:"currency" binding:"omitempty,len=3"`
	CardToken string `json:"card_token"`
	Email     string `json:"email" binding:"omitempty,email"`
	ReturnURL string `json:"return_url" binding:"omitempty,url"`
}

// RefundPaymentRequest refunds part or all of a payment.
// A nil amount refunds everything still refundable.
type RefundPaymentRequest struct {
	Amount *decimal.Decimal `json:"amount"`
	Reason string           `json:"reason" binding:"max=255"`
}

// CancelSubscriptionRequest stops the current subscription
type CancelSubscriptionRequest struct {
	AtPeriodEnd bool `json:"at_period_end"`
}

// PaymentListFilter represents query parameters for listing payments
type PaymentListFilter struct {
	Search   string `form:"search"`
	Status   string `form:"status" binding:"omitempty,oneof=PENDING PAID FAILED CANCELLED EXPIRED REFUNDED PARTIAL_REFUNDED"`
	Gateway  string `form:"gateway" binding:"omitempty,oneof=CULQI MERCADOPAGO PAYPHONE"`
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderBy  string `form:"order_by"`
	OrderDir string `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

// ToSharedFilter converts the query parameters to a repository filter
func (f PaymentListFilter) ToSharedFilter() shared.Filter {
	filter := shared.Filter{
		Page:     f.Page,
		PageSize: f.PageSize,
		OrderBy:  f.OrderBy,
		OrderDir: f.OrderDir,
		Search:   f.Search,
	}.Normalize()
	if f.Status != "" {
		filter.Filters["status"] = f.Status
	}
	if f.Gateway != "" {
		filter.Filters["gateway"] = f.Gateway
	}
	return filter
}

// PaymentResponse represents a payment in API responses
type PaymentResponse struct {
	ID                   uuid.UUID       `json:"id"`
	TenantID             uuid.UUID       `json:"tenant_id"`
	SubscriptionID       *uuid.UUID      `json:"subscription_id,omitempty"`
	Gateway              string          `json:"gateway"`
	OrderNumber          string          `json:"order_number"`
	Amount               decimal.Decimal `json:"amount"`
	Currency             string          `json:"currency"`
	Description          string          `json:"description,omitempty"`
	Status               string          `json:"status"`
	GatewayTransactionID string          `json:"gateway_transaction_id,omitempty"`
	PaymentURL           string          `json:"payment_url,omitempty"`
	FailureReason        string          `json:"failure_reason,omitempty"`
	LastGatewayStatus    string          `json:"last_gateway_status,omitempty"`
	PaidAt               *time.Time      `json:"paid_at,omitempty"`
	RefundedAmount       decimal.Decimal `json:"refunded_amount"`
	RefundableAmount     decimal.Decimal `json:"refundable_amount"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
}

// ToPaymentResponse converts a domain payment to a response
func ToPaymentResponse(p *billing.Payment) PaymentResponse {
	return PaymentResponse{
		ID:                   p.ID,
		TenantID:             p.TenantID,
		SubscriptionID:       p.SubscriptionID,
		Gateway:              p.Gateway.String(),
		OrderNumber:          p.OrderNumber,
		Amount:               p.Amount,
		Currency:             p.Currency,
		Description:          p.Description,
		Status:               string(p.Status),
		GatewayTransactionID: p.GatewayTransactionID,
		PaymentURL:           p.PaymentURL,
		FailureReason:        p.FailureReason,
		LastGatewayStatus:    p.LastGatewayStatus,
		PaidAt:               p.PaidAt,
		RefundedAmount:       p.RefundedAmount,
		RefundableAmount:     p.RefundableAmount(),
		CreatedAt:            p.CreatedAt,
		UpdatedAt:            p.UpdatedAt,
	}
}

// ToPaymentResponses converts a list of payments
func ToPaymentResponses(payments []billing.Payment) []PaymentResponse {
	out := make([]PaymentResponse, len(payments))
	for i := range payments {
		out[i] = ToPaymentResponse(&payments[i])
	}
	return out
}

// SubscriptionResponse represents a subscription in API responses
type SubscriptionResponse struct {
	ID                 uuid.UUID       `json:"id"`
	TenantID           uuid.UUID       `json:"tenant_id"`
	PlanCode           string          `json:"plan_code"`
	Gateway            string          `json:"gateway"`
	Status             string          `json:"status"`
	Amount             decimal.Decimal `json:"amount"`
	Currency           string          `json:"currency"`
	CurrentPeriodStart *time.Time      `json:"current_period_start,omitempty"`
	CurrentPeriodEnd   *time.Time      `json:"current_period_end,omitempty"`
	CancelAtPeriodEnd  bool            `json:"cancel_at_period_end"`
	CancelledAt        *time.Time      `json:"cancelled_at,omitempty"`
	DaysRemaining      int             `json:"days_remaining"`
	CreatedAt          time.Time       `json:"created_at"`
}

// ToSubscriptionResponse converts a domain subscription to a response
func ToSubscriptionResponse(s *billing.Subscription, now time.Time) SubscriptionResponse {
	return SubscriptionResponse{
		ID:                 s.ID,
		TenantID:           s.TenantID,
		PlanCode:           string(s.PlanCode),
		Gateway:            s.Gateway.String(),
		Status:             string(s.Status),
		Amount:             s.Amount,
		Currency:           s.Currency,
		CurrentPeriodStart: s.CurrentPeriodStart,
		CurrentPeriodEnd:   s.CurrentPeriodEnd,
		CancelAtPeriodEnd:  s.CancelAtPeriodEnd,
		CancelledAt:        s.CancelledAt,
		DaysRemaining:      s.DaysRemaining(now),
		CreatedAt:          s.CreatedAt,
	}
}

// CheckoutResponse is returned after a checkout was started
type CheckoutResponse struct {
	Payment      PaymentResponse      `json:"payment"`
	Subscription SubscriptionResponse `json:"subscription"`
	// PaymentURL is where the payer continues; empty when already charged
	PaymentURL string `json:"payment_url,omitempty"`
}

// WebhookResult reports how an inbound webhook was handled
type WebhookResult struct {
	Accepted         bool       `json:"accepted"`
	AlreadyProcessed bool       `json:"already_processed"`
	EventID          string     `json:"event_id,omitempty"`
	PaymentID        *uuid.UUID `json:"payment_id,omitempty"`
	Status           string     `json:"status,omitempty"`
	Transition       string     `json:"transition,omitempty"`
	Message          string     `json:"message,omitempty"`
}

// ReconcileResult summarises a reconciliation run
type ReconcileResult struct {
	Checked int `json:"checked"`
	Updated int `json:"updated"`
	Expired int `json:"expired"`
	Failed  int `json:"failed"`
}

// ExpireResult summarises a subscription expiry run
type ExpireResult struct {
	Expired     int `json:"expired"`
	Downgraded  int `json:"downgraded"`
	Failed      int `json:"failed"`
	StillActive int `json:"still_active"`
}

// WebhookEventFilter represents query parameters for the webhook inbox
type WebhookEventFilter struct {
	Gateway  string `form:"gateway" binding:"omitempty,oneof=CULQI MERCADOPAGO PAYPHONE"`
	Status   string `form:"status" binding:"omitempty,oneof=received processed ignored failed"`
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderBy  string `form:"order_by"`
	OrderDir string `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

// WebhookEventResponse represents an inbox record in API responses
type WebhookEventResponse struct {
	ID          uuid.UUID         `json:"id"`
	Gateway     string            `json:"gateway"`
	EventID     string            `json:"event_id,omitempty"`
	EventType   string            `json:"event_type,omitempty"`
	Status      string            `json:"status"`
	Error       string            `json:"error,omitempty"`
	Attempts    int               `json:"attempts"`
	Headers     map[string]string `json:"headers,omitempty"`
	Payload     string            `json:"payload"`
	TenantID    *uuid.UUID        `json:"tenant_id,omitempty"`
	PaymentID   *uuid.UUID        `json:"payment_id,omitempty"`
	ProcessedAt *time.Time        `json:"processed_at,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}

// ToWebhookEventResponse converts an inbox record to a response
func ToWebhookEventResponse(w *billing.WebhookEvent) WebhookEventResponse {
	return WebhookEventResponse{
		ID:          w.ID,
		Gateway:     w.Gateway.String(),
		EventID:     w.EventID,
		EventType:   w.EventType,
		Status:      string(w.Status),
		Error:       w.Error,
		Attempts:    w.Attempts,
		Headers:     w.Headers,
		Payload:     w.Payload,
		TenantID:    w.TenantID,
		PaymentID:   w.PaymentID,
		ProcessedAt: w.ProcessedAt,
		CreatedAt:   w.CreatedAt,
	}
}
