package invoicing

import (
	"errors"
	"time"

	"github.com/backoffice/saas/internal/domain/invoicing"
	"github.com/backoffice/saas/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CustomerRequest is the invoice recipient
type CustomerRequest struct {
	Name           string `json:"name" binding:"required,min=1,max=200"`
	DocumentType   string `json:"document_type" binding:"omitempty,oneof=DNI RUC CE PASSPORT NONE"`
	DocumentNumber string `json:"document_number" binding:"max=20"`
	Email          string `json:"email" binding:"omitempty,email"`
	Address        string `json:"address" binding:"max=300"`
}

func (c CustomerRequest) toDomain() invoicing.Customer {
	return invoicing.Customer{
		Name:           c.Name,
		DocumentType:   invoicing.DocumentType(c.DocumentType),
		DocumentNumber: c.DocumentNumber,
		Email:          c.Email,
		Address:        c.Address,
	}
}

// LineRequest is one billed item
type LineRequest struct {
	ProductID   *uuid.UUID      `json:"product_id"`
	Description string          `json:"description" binding:"required,max=500"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	TaxRate     decimal.Decimal `json:"tax_rate"`
}

// DraftRequest creates or replaces the content of a draft invoice.
// Lines are the full set; adding or removing one sends the edited list.
type DraftRequest struct {
	Series string `json:"series" binding:"required,len=4"`
	// Currency defaults to the tenant's settings
	Currency string          `json:"currency" binding:"omitempty,len=3"`
	Customer CustomerRequest `json:"customer" binding:"required"`
	DueDate  *time.Time      `json:"due_date"`
	Lines    []LineRequest   `json:"lines" binding:"max=200,dive"`
	Notes    string          `json:"notes" binding:"max=2000"`
}

func (r DraftRequest) toInput(defaultCurrency string) (invoicing.DraftInput, error) {
	lines := make([]invoicing.Line, 0, len(r.Lines))
	for i, l := range r.Lines {
		line, err := invoicing.NewLine(l.ProductID, l.Description, l.Quantity, l.UnitPrice, l.TaxRate)
		if err != nil {
			var de *shared.DomainError
			if errors.As(err, &de) {
				return invoicing.DraftInput{}, de.WithDetail("line", i+1)
			}
			return invoicing.DraftInput{}, err
		}
		lines = append(lines, line)
	}
	currency := r.Currency
	if currency == "" {
		currency = defaultCurrency
	}
	return invoicing.DraftInput{
		Series:   r.Series,
		Customer: r.Customer.toDomain(),
		Currency: currency,
		DueDate:  r.DueDate,
		Lines:    lines,
		Notes:    r.Notes,
	}, nil
}

// VoidRequest cancels an issued invoice
type VoidRequest struct {
	Reason string `json:"reason" binding:"required,min=3,max=500"`
}

// InvoiceListFilter represents query parameters for listing invoices
type InvoiceListFilter struct {
	Status   string     `form:"status" binding:"omitempty,oneof=draft issued paid voided"`
	From     *time.Time `form:"from" time_format:"2006-01-02"`
	To       *time.Time `form:"to" time_format:"2006-01-02"`
	Page     int        `form:"page" binding:"omitempty,min=1"`
	PageSize int        `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderBy  string     `form:"order_by" binding:"omitempty,oneof=number issue_date due_date total status created_at"`
	OrderDir string     `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

func (f InvoiceListFilter) toQuery() (invoicing.Query, error) {
	if f.From != nil && f.To != nil && f.From.After(*f.To) {
		return invoicing.Query{}, shared.InvalidInput("from cannot be after to")
	}
	q := invoicing.Query{
		Status: invoicing.Status(f.Status),
		From:   f.From,
		Filter: shared.Filter{
			Page:     f.Page,
			PageSize: f.PageSize,
			OrderBy:  f.OrderBy,
			OrderDir: f.OrderDir,
		}.Normalize(),
	}
	if f.To != nil {
		// to is inclusive of the whole day
		end := f.To.Add(24*time.Hour - time.Nanosecond)
		q.To = &end
	}
	return q, nil
}

// LineResponse is a priced line in API responses
type LineResponse struct {
	ProductID   *uuid.UUID      `json:"product_id,omitempty"`
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	TaxRate     decimal.Decimal `json:"tax_rate"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	Tax         decimal.Decimal `json:"tax"`
	Total       decimal.Decimal `json:"total"`
}

// InvoiceResponse represents an invoice in API responses
type InvoiceResponse struct {
	ID         uuid.UUID          `json:"id"`
	TenantID   uuid.UUID          `json:"tenant_id"`
	Series     string             `json:"series"`
	Number     int64              `json:"number"`
	FullNumber string             `json:"full_number"`
	Customer   invoicing.Customer `json:"customer"`
	Currency   string             `json:"currency"`
	IssueDate  *time.Time         `json:"issue_date,omitempty"`
	DueDate    *time.Time         `json:"due_date,omitempty"`
	Lines      []LineResponse     `json:"lines"`
	Subtotal   decimal.Decimal    `json:"subtotal"`
	TaxTotal   decimal.Decimal    `json:"tax_total"`
	Total      decimal.Decimal    `json:"total"`
	Status     string             `json:"status"`
	Notes      string             `json:"notes,omitempty"`
	PaidAt     *time.Time         `json:"paid_at,omitempty"`
	VoidedAt   *time.Time         `json:"voided_at,omitempty"`
	VoidReason string             `json:"void_reason,omitempty"`
	Version    int                `json:"version"`
	CreatedAt  time.Time          `json:"created_at"`
	UpdatedAt  time.Time          `json:"updated_at"`
}

// ToInvoiceResponse converts a domain invoice to a response
func ToInvoiceResponse(inv *invoicing.Invoice) InvoiceResponse {
	lines := make([]LineResponse, len(inv.Lines))
	for i, l := range inv.Lines {
		lines[i] = LineResponse(l)
	}
	return InvoiceResponse{
		ID:         inv.ID,
		TenantID:   inv.TenantID,
		Series:     inv.Series,
		Number:     inv.Number,
		FullNumber: inv.FullNumber(),
		Customer:   inv.Customer,
		Currency:   inv.Currency,
		IssueDate:  inv.IssueDate,
		DueDate:    inv.DueDate,
		Lines:      lines,
		Subtotal:   inv.Subtotal,
		TaxTotal:   inv.TaxTotal,
		Total:      inv.Total,
		Status:     string(inv.Status),
		Notes:      inv.Notes,
		PaidAt:     inv.PaidAt,
		VoidedAt:   inv.VoidedAt,
		VoidReason: inv.VoidReason,
		Version:    inv.Version,
		CreatedAt:  inv.CreatedAt,
		UpdatedAt:  inv.UpdatedAt,
	}
}

// ToInvoiceResponses converts a list of invoices
func ToInvoiceResponses(invoices []invoicing.Invoice) []InvoiceResponse {
	out := make([]InvoiceResponse, len(invoices))
	for i := range invoices {
		out[i] = ToInvoiceResponse(&invoices[i])
	}
	return out
}

// Document is a rendered invoice
type Document struct {
	FileName    string
	ContentType string
	Body        []byte
}
