package models

import (
	"time"

	"github.com/backoffice/saas/internal/domain/invoicing"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvoiceModel is the persistence model for Invoice. Customer and lines are
// stored as documents since they are only ever read with the invoice.
type InvoiceModel struct {
	TenantAggregateModel
	Series     string           `gorm:"type:varchar(4);not null"`
	Number     int64            `gorm:"not null;default:0"`
	Customer   string           `gorm:"type:jsonb;not null;default:'{}'"`
	Currency   string           `gorm:"type:varchar(3);not null"`
	IssueDate  *time.Time       `gorm:"index"`
	DueDate    *time.Time
	Lines      string           `gorm:"type:jsonb;not null;default:'[]'"`
	Subtotal   decimal.Decimal  `gorm:"type:numeric(18,2);not null"`
	TaxTotal   decimal.Decimal  `gorm:"type:numeric(18,2);not null"`
	Total      decimal.Decimal  `gorm:"type:numeric(18,2);not null"`
	Status     invoicing.Status `gorm:"type:varchar(20);not null;index"`
	Notes      string           `gorm:"type:text"`
	PaidAt     *time.Time
	VoidedAt   *time.Time
	VoidReason string `gorm:"type:varchar(500)"`
}

// TableName returns the table name for GORM
func (InvoiceModel) TableName() string { return "invoices" }

// InvoiceModelFromDomain maps an invoice to its row
func InvoiceModelFromDomain(inv *invoicing.Invoice) *InvoiceModel {
	m := &InvoiceModel{
		Series:     inv.Series,
		Number:     inv.Number,
		Customer:   marshalJSON(inv.Customer, "{}"),
		Currency:   inv.Currency,
		IssueDate:  inv.IssueDate,
		DueDate:    inv.DueDate,
		Lines:      marshalJSON(inv.Lines, "[]"),
		Subtotal:   inv.Subtotal,
		TaxTotal:   inv.TaxTotal,
		Total:      inv.Total,
		Status:     inv.Status,
		Notes:      inv.Notes,
		PaidAt:     inv.PaidAt,
		VoidedAt:   inv.VoidedAt,
		VoidReason: inv.VoidReason,
	}
	m.fromTenantAggregate(inv.TenantAggregateRoot)
	return m
}

// ToDomain converts the row to an invoice
func (m *InvoiceModel) ToDomain() (*invoicing.Invoice, error) {
	inv := &invoicing.Invoice{
		TenantAggregateRoot: m.toTenantAggregate(),
		Series:              m.Series,
		Number:              m.Number,
		Currency:            m.Currency,
		IssueDate:           m.IssueDate,
		DueDate:             m.DueDate,
		Lines:               []invoicing.Line{},
		Subtotal:            m.Subtotal,
		TaxTotal:            m.TaxTotal,
		Total:               m.Total,
		Status:              m.Status,
		Notes:               m.Notes,
		PaidAt:              m.PaidAt,
		VoidedAt:            m.VoidedAt,
		VoidReason:          m.VoidReason,
	}
	if err := unmarshalJSON("customer", m.Customer, &inv.Customer); err != nil {
		return nil, err
	}
	if err := unmarshalJSON("lines", m.Lines, &inv.Lines); err != nil {
		return nil, err
	}
	return inv, nil
}

// InvoiceSequenceModel holds the last number issued per tenant and series
type InvoiceSequenceModel struct {
	TenantID   uuid.UUID `gorm:"type:uuid;primaryKey"`
	Series     string    `gorm:"type:varchar(4);primaryKey"`
	LastNumber int64     `gorm:"not null;default:0"`
}

// TableName returns the table name for GORM
func (InvoiceSequenceModel) TableName() string { return "invoice_sequences" }
