package invoicing

import (
	"github.com/backoffice/saas/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const AggregateTypeInvoice = "Invoice"

const EventTypeInvoiceIssued = "InvoiceIssued"

// InvoiceIssuedEvent is published when an invoice receives its number
type InvoiceIssuedEvent struct {
	shared.BaseDomainEvent
	InvoiceID     uuid.UUID       `json:"invoice_id"`
	FullNumber    string          `json:"full_number"`
	CustomerName  string          `json:"customer_name"`
	CustomerEmail string          `json:"customer_email,omitempty"`
	Total         decimal.Decimal `json:"total"`
	Currency      string          `json:"currency"`
}

func newInvoiceIssuedEvent(inv *Invoice) *InvoiceIssuedEvent {
	return &InvoiceIssuedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeInvoiceIssued, AggregateTypeInvoice, inv.ID, inv.TenantID),
		InvoiceID:       inv.ID,
		FullNumber:      inv.FullNumber(),
		CustomerName:    inv.Customer.Name,
		CustomerEmail:   inv.Customer.Email,
		Total:           inv.Total,
		Currency:        inv.Currency,
	}
}
