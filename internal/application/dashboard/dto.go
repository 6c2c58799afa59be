package dashboard

import (
	"time"

	"github.com/google/uuid"
)

// Summary is the dashboard payload of one tenant
type Summary struct {
	TenantID     uuid.UUID            `json:"tenant_id"`
	PlanCode     string               `json:"plan_code"`
	PlanName     string               `json:"plan_name"`
	Status       string               `json:"status"`
	Media        MediaSummary         `json:"media"`
	Products     ProductSummary       `json:"products"`
	Invoices     InvoiceSummary       `json:"invoices"`
	Subscription *SubscriptionSummary `json:"subscription,omitempty"`
	LastPayment  *PaymentSummary      `json:"last_payment,omitempty"`
	GeneratedAt  time.Time            `json:"generated_at"`
}

type MediaSummary struct {
	Count        int64   `json:"count"`
	TrashedCount int64   `json:"trashed_count"`
	BytesUsed    int64   `json:"bytes_used"`
	QuotaBytes   int64   `json:"quota_bytes"`
	UsedPercent  float64 `json:"used_percent"`
}

// ProductSummary counts products per status. Limit is -1 when unlimited.
type ProductSummary struct {
	Total    int64 `json:"total"`
	Draft    int64 `json:"draft"`
	Active   int64 `json:"active"`
	Archived int64 `json:"archived"`
	Limit    int64 `json:"limit"`
}

type InvoiceSummary struct {
	PeriodStart     time.Time     `json:"period_start"`
	IssuedThisMonth int64         `json:"issued_this_month"`
	MonthlyLimit    int64         `json:"monthly_limit"`
	Revenue         []RevenueLine `json:"revenue"`
}

type RevenueLine struct {
	Currency string `json:"currency"`
	Total    string `json:"total"`
}

type SubscriptionSummary struct {
	ID            uuid.UUID  `json:"id"`
	PlanCode      string     `json:"plan_code"`
	Status        string     `json:"status"`
	PeriodEnd     *time.Time `json:"period_end,omitempty"`
	DaysRemaining int        `json:"days_remaining"`
	CancelAtEnd   bool       `json:"cancel_at_period_end"`
}

type PaymentSummary struct {
	ID          uuid.UUID  `json:"id"`
	OrderNumber string     `json:"order_number"`
	Gateway     string     `json:"gateway"`
	Status      string     `json:"status"`
	Amount      string     `json:"amount"`
	Currency    string     `json:"currency"`
	PaidAt      *time.Time `json:"paid_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}
