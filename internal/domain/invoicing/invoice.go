package invoicing

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/backoffice/saas/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of an invoice
type Status string

const (
	StatusDraft  Status = "draft"
	StatusIssued Status = "issued"
	StatusPaid   Status = "paid"
	StatusVoided Status = "voided"
)

// DocumentType identifies the customer's tax document
type DocumentType string

const (
	DocDNI      DocumentType = "DNI"
	DocRUC      DocumentType = "RUC"
	DocCE       DocumentType = "CE"
	DocPassport DocumentType = "PASSPORT"
	DocNone     DocumentType = "NONE"
)

var (
	seriesPattern = regexp.MustCompile(`^[A-Z][A-Z0-9]{3}$`)
	dniPattern    = regexp.MustCompile(`^[0-9]{8}$`)
	rucPattern    = regexp.MustCompile(`^(10|15|17|20)[0-9]{9}$`)
	cePattern     = regexp.MustCompile(`^[A-Z0-9]{6,12}$`)
	passPattern   = regexp.MustCompile(`^[A-Z0-9]{5,15}$`)
)

const maxLines = 200

// Customer is who the invoice is addressed to
type Customer struct {
	Name           string       `json:"name"`
	DocumentType   DocumentType `json:"document_type"`
	DocumentNumber string       `json:"document_number"`
	Email          string       `json:"email,omitempty"`
	Address        string       `json:"address,omitempty"`
}

// Validate checks the customer document against its type
func (c Customer) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return shared.InvalidInput("customer name is required")
	}
	num := strings.ToUpper(strings.TrimSpace(c.DocumentNumber))
	var ok bool
	switch c.DocumentType {
	case DocDNI:
		ok = dniPattern.MatchString(num)
	case DocRUC:
		ok = rucPattern.MatchString(num)
	case DocCE:
		ok = cePattern.MatchString(num)
	case DocPassport:
		ok = passPattern.MatchString(num)
	case DocNone, "":
		ok = num == ""
	default:
		return shared.InvalidInput("unknown document type %q", c.DocumentType)
	}
	if !ok {
		return shared.InvalidInput("invalid %s document number %q", c.DocumentType, c.DocumentNumber)
	}
	if c.Email != "" {
		if _, err := mail.ParseAddress(c.Email); err != nil {
			return shared.InvalidInput("invalid customer email")
		}
	}
	return nil
}

// Line is one billed item
type Line struct {
	ProductID   *uuid.UUID      `json:"product_id,omitempty"`
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	TaxRate     decimal.Decimal `json:"tax_rate"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	Tax         decimal.Decimal `json:"tax"`
	Total       decimal.Decimal `json:"total"`
}

// NewLine validates and prices a line. Amounts round half-up to cents.
func NewLine(productID *uuid.UUID, description string, quantity, unitPrice, taxRate decimal.Decimal) (Line, error) {
	description = strings.TrimSpace(description)
	if description == "" || utf8.RuneCountInString(description) > 500 {
		return Line{}, shared.InvalidInput("line description must be between 1 and 500 characters")
	}
	if !quantity.IsPositive() {
		return Line{}, shared.InvalidInput("quantity must be positive")
	}
	if unitPrice.IsNegative() {
		return Line{}, shared.InvalidInput("unit price cannot be negative")
	}
	if taxRate.IsNegative() || taxRate.GreaterThan(decimal.NewFromInt(1)) {
		return Line{}, shared.InvalidInput("tax rate must be between 0 and 1")
	}
	subtotal := quantity.Mul(unitPrice).Round(2)
	tax := subtotal.Mul(taxRate).Round(2)
	return Line{
		ProductID:   productID,
		Description: description,
		Quantity:    quantity,
		UnitPrice:   unitPrice,
		TaxRate:     taxRate,
		Subtotal:    subtotal,
		Tax:         tax,
		Total:       subtotal.Add(tax),
	}, nil
}

// Invoice is a tax document issued by a tenant
type Invoice struct {
	shared.TenantAggregateRoot
	Series     string
	Number     int64
	Customer   Customer
	Currency   string
	IssueDate  *time.Time
	DueDate    *time.Time
	Lines      []Line
	Subtotal   decimal.Decimal
	TaxTotal   decimal.Decimal
	Total      decimal.Decimal
	Status     Status
	Notes      string
	PaidAt     *time.Time
	VoidedAt   *time.Time
	VoidReason string
}

// DraftInput carries the editable fields of a draft
type DraftInput struct {
	Series   string
	Customer Customer
	Currency string
	DueDate  *time.Time
	Lines    []Line
	Notes    string
}

// NewDraft creates a draft invoice
func NewDraft(tenantID uuid.UUID, in DraftInput) (*Invoice, error) {
	inv := &Invoice{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		Status:              StatusDraft,
	}
	if err := inv.apply(in); err != nil {
		return nil, err
	}
	return inv, nil
}

// UpdateDraft replaces the content of a draft
func (inv *Invoice) UpdateDraft(in DraftInput) error {
	if inv.Status != StatusDraft {
		return shared.InvalidState("only draft invoices can be edited")
	}
	if err := inv.apply(in); err != nil {
		return err
	}
	inv.IncrementVersion()
	return nil
}

func (inv *Invoice) apply(in DraftInput) error {
	series := strings.ToUpper(strings.TrimSpace(in.Series))
	if !seriesPattern.MatchString(series) {
		return shared.InvalidInput("series must be a letter followed by 3 letters or digits, e.g. F001")
	}
	currency := strings.ToUpper(in.Currency)
	if len(currency) != 3 {
		return shared.InvalidInput("currency must be a 3-letter code")
	}
	if len(in.Lines) > maxLines {
		return shared.InvalidInput("an invoice can have at most %d lines", maxLines)
	}
	if in.Customer.DocumentType == "" {
		in.Customer.DocumentType = DocNone
	}
	in.Customer.DocumentNumber = strings.ToUpper(strings.TrimSpace(in.Customer.DocumentNumber))
	inv.Series = series
	inv.Customer = in.Customer
	inv.Currency = currency
	inv.DueDate = in.DueDate
	inv.Lines = append([]Line(nil), in.Lines...)
	inv.Notes = in.Notes
	inv.recalculate()
	return nil
}

func (inv *Invoice) recalculate() {
	subtotal, tax := decimal.Zero, decimal.Zero
	for _, l := range inv.Lines {
		subtotal = subtotal.Add(l.Subtotal)
		tax = tax.Add(l.Tax)
	}
	inv.Subtotal = subtotal
	inv.TaxTotal = tax
	inv.Total = subtotal.Add(tax)
}

// Issue assigns the next number and freezes the invoice
func (inv *Invoice) Issue(number int64, at time.Time) error {
	if inv.Status != StatusDraft {
		return shared.InvalidState("invoice is already %s", inv.Status)
	}
	if len(inv.Lines) == 0 {
		return shared.InvalidInput("an invoice needs at least one line")
	}
	if err := inv.Customer.Validate(); err != nil {
		return err
	}
	if number < 1 {
		return shared.InvalidInput("invoice number must be positive")
	}
	if inv.DueDate != nil && inv.DueDate.Before(truncateDay(at)) {
		return shared.InvalidInput("due date is before the issue date")
	}
	issued := at.UTC()
	inv.Number = number
	inv.IssueDate = &issued
	inv.Status = StatusIssued
	inv.IncrementVersion()
	inv.AddDomainEvent(newInvoiceIssuedEvent(inv))
	return nil
}

// MarkPaid records that an issued invoice was settled
func (inv *Invoice) MarkPaid(at time.Time) error {
	if inv.Status != StatusIssued {
		return shared.InvalidState("only issued invoices can be marked paid")
	}
	paid := at.UTC()
	inv.Status = StatusPaid
	inv.PaidAt = &paid
	inv.IncrementVersion()
	return nil
}

// Void cancels an issued, unpaid invoice
func (inv *Invoice) Void(reason string, at time.Time) error {
	if inv.Status != StatusIssued {
		return shared.InvalidState("only issued, unpaid invoices can be voided")
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return shared.InvalidInput("a void reason is required")
	}
	voided := at.UTC()
	inv.Status = StatusVoided
	inv.VoidedAt = &voided
	inv.VoidReason = reason
	inv.IncrementVersion()
	return nil
}

// FullNumber renders the printed identifier, e.g. F001-00000042
func (inv *Invoice) FullNumber() string {
	if inv.Number == 0 {
		return inv.Series + "-DRAFT"
	}
	return fmt.Sprintf("%s-%08d", inv.Series, inv.Number)
}

// QRPayload builds the text encoded in the printed QR code
func (inv *Invoice) QRPayload(issuerTaxID string) string {
	date := ""
	if inv.IssueDate != nil {
		date = inv.IssueDate.Format("2006-01-02")
	}
	return strings.Join([]string{
		issuerTaxID,
		inv.Series,
		fmt.Sprintf("%08d", inv.Number),
		inv.TaxTotal.StringFixed(2),
		inv.Total.StringFixed(2),
		date,
		string(inv.Customer.DocumentType),
		inv.Customer.DocumentNumber,
	}, "|")
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// CheckDeletable allows only drafts to be removed; issued invoices are voided instead
func (inv *Invoice) CheckDeletable() error {
	if inv.Status != StatusDraft {
		return shared.InvalidState("issued invoices cannot be deleted, void them instead")
	}
	return nil
}
