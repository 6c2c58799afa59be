package invoicing

import (
	"context"
	"errors"
	"time"

	"github.com/backoffice/saas/internal/domain/invoicing"
	"github.com/backoffice/saas/internal/domain/shared"
	"github.com/backoffice/saas/internal/domain/tenant"
	"github.com/backoffice/saas/internal/infrastructure/pdf"
	"github.com/backoffice/saas/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TenantReader loads the issuing tenant
type TenantReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*tenant.Tenant, error)
}

// Renderer produces printable invoices
type Renderer interface {
	RenderHTML(inv *invoicing.Invoice, issuer pdf.Issuer) (string, error)
	RenderPDF(ctx context.Context, inv *invoicing.Invoice, issuer pdf.Issuer) ([]byte, error)
}

// InvoiceServiceConfig holds the collaborators of InvoiceService
type InvoiceServiceConfig struct {
	Invoices  invoicing.Repository
	Tenants   TenantReader
	Renderer  Renderer
	Publisher shared.EventPublisher
	Logger    *zap.Logger
	// IssuerTaxID is printed when the tenant has no tax id of its own
	IssuerTaxID string
}

// InvoiceService manages the invoice lifecycle
type InvoiceService struct {
	invoiceRepo invoicing.Repository
	tenants     TenantReader
	renderer    Renderer
	publisher   shared.EventPublisher
	logger      *zap.Logger
	issuerTaxID string
	now         func() time.Time
}

// NewInvoiceService creates a new InvoiceService
func NewInvoiceService(cfg InvoiceServiceConfig) *InvoiceService {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InvoiceService{
		invoiceRepo: cfg.Invoices,
		tenants:     cfg.Tenants,
		renderer:    cfg.Renderer,
		publisher:   cfg.Publisher,
		logger:      logger,
		issuerTaxID: cfg.IssuerTaxID,
		now:         time.Now,
	}
}

// CreateDraft creates an unnumbered invoice
func (s *InvoiceService) CreateDraft(ctx context.Context, tenantID uuid.UUID, req DraftRequest) (*InvoiceResponse, error) {
	t, err := s.tenants.FindByID(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	in, err := req.toInput(t.Settings.Currency)
	if err != nil {
		return nil, err
	}
	inv, err := invoicing.NewDraft(tenantID, in)
	if err != nil {
		return nil, err
	}
	if err := s.invoiceRepo.Save(ctx, inv); err != nil {
		return nil, err
	}
	s.logger.Info("Invoice draft created",
		zap.String("tenant_id", tenantID.String()),
		zap.String("invoice_id", inv.ID.String()),
		zap.Int("lines", len(inv.Lines)))
	resp := ToInvoiceResponse(inv)
	return &resp, nil
}

// UpdateDraft replaces the content of a draft
func (s *InvoiceService) UpdateDraft(ctx context.Context, tenantID, id uuid.UUID, req DraftRequest) (*InvoiceResponse, error) {
	inv, err := s.invoiceRepo.FindByIDForTenant(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	in, err := req.toInput(inv.Currency)
	if err != nil {
		return nil, err
	}
	if err := inv.UpdateDraft(in); err != nil {
		return nil, err
	}
	if err := s.invoiceRepo.Save(ctx, inv); err != nil {
		return nil, err
	}
	resp := ToInvoiceResponse(inv)
	return &resp, nil
}

// GetByID retrieves an invoice by ID
func (s *InvoiceService) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*InvoiceResponse, error) {
	inv, err := s.invoiceRepo.FindByIDForTenant(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	resp := ToInvoiceResponse(inv)
	return &resp, nil
}

// List retrieves a page of invoices
func (s *InvoiceService) List(ctx context.Context, tenantID uuid.UUID, filter InvoiceListFilter) ([]InvoiceResponse, int64, error) {
	q, err := filter.toQuery()
	if err != nil {
		return nil, 0, err
	}
	invoices, total, err := s.invoiceRepo.FindAllForTenant(ctx, tenantID, q)
	if err != nil {
		return nil, 0, err
	}
	return ToInvoiceResponses(invoices), total, nil
}

// Delete removes a draft
func (s *InvoiceService) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	inv, err := s.invoiceRepo.FindByIDForTenant(ctx, tenantID, id)
	if err != nil {
		return err
	}
	if err := inv.CheckDeletable(); err != nil {
		return err
	}
	return s.invoiceRepo.Delete(ctx, tenantID, id)
}

// Issue numbers the invoice. The plan caps how many invoices a tenant may
// issue per calendar month (UTC).
func (s *InvoiceService) Issue(ctx context.Context, tenantID, id uuid.UUID) (*InvoiceResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoicing", "issue")
	defer span.End()

	t, err := s.tenants.FindByID(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	inv, err := s.invoiceRepo.FindByIDForTenant(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if inv.Status != invoicing.StatusDraft {
		return nil, shared.InvalidState("invoice is already %s", inv.Status)
	}

	now := s.now().UTC()
	plan := t.Plan()
	// the count is taken under the tenant lock so concurrent issues cannot
	// both pass at limit-1
	if err := s.invoiceRepo.IssueWithNextNumber(ctx, inv, startOfMonth(now), func(number, used int64) error {
		if !tenant.Allows(plan.MaxInvoicesPerMonth, used, 1) {
			return shared.QuotaExceeded("plan %s allows %d invoices per month", plan.Code, plan.MaxInvoicesPerMonth).
				WithDetail("limit", plan.MaxInvoicesPerMonth).
				WithDetail("used", used)
		}
		return inv.Issue(number, now)
	}); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.SetAttributes(span, "invoice.id", inv.ID.String(), "invoice.number", inv.FullNumber())

	if err := shared.PublishPending(ctx, s.publisher, inv); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Warn("Failed to publish invoice events",
			zap.String("invoice_id", inv.ID.String()),
			zap.Error(err))
	}
	s.logger.Info("Invoice issued",
		zap.String("tenant_id", tenantID.String()),
		zap.String("invoice_id", inv.ID.String()),
		zap.String("number", inv.FullNumber()),
		zap.String("total", inv.Total.StringFixed(2)))
	resp := ToInvoiceResponse(inv)
	return &resp, nil
}

// MarkPaid records payment of an issued invoice
func (s *InvoiceService) MarkPaid(ctx context.Context, tenantID, id uuid.UUID) (*InvoiceResponse, error) {
	return s.mutate(ctx, tenantID, id, func(inv *invoicing.Invoice) error {
		return inv.MarkPaid(s.now())
	})
}

// Void cancels an issued invoice. Paid invoices cannot be voided.
func (s *InvoiceService) Void(ctx context.Context, tenantID, id uuid.UUID, req VoidRequest) (*InvoiceResponse, error) {
	resp, err := s.mutate(ctx, tenantID, id, func(inv *invoicing.Invoice) error {
		return inv.Void(req.Reason, s.now())
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("Invoice voided",
		zap.String("tenant_id", tenantID.String()),
		zap.String("number", resp.FullNumber),
		zap.String("reason", resp.VoidReason))
	return resp, nil
}

func (s *InvoiceService) mutate(ctx context.Context, tenantID, id uuid.UUID, fn func(*invoicing.Invoice) error) (*InvoiceResponse, error) {
	inv, err := s.invoiceRepo.FindByIDForTenant(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if err := fn(inv); err != nil {
		return nil, err
	}
	if err := s.invoiceRepo.Save(ctx, inv); err != nil {
		return nil, err
	}
	resp := ToInvoiceResponse(inv)
	return &resp, nil
}

// RenderHTML renders the printable page
func (s *InvoiceService) RenderHTML(ctx context.Context, tenantID, id uuid.UUID) (*Document, error) {
	inv, issuer, err := s.loadForRender(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	html, err := s.renderer.RenderHTML(inv, issuer)
	if err != nil {
		return nil, err
	}
	return &Document{
		FileName:    inv.FullNumber() + ".html",
		ContentType: "text/html; charset=utf-8",
		Body:        []byte(html),
	}, nil
}

// RenderPDF prints the invoice through headless Chrome
func (s *InvoiceService) RenderPDF(ctx context.Context, tenantID, id uuid.UUID) (*Document, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoicing", "render_pdf")
	defer span.End()

	inv, issuer, err := s.loadForRender(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	body, err := s.renderer.RenderPDF(ctx, inv, issuer)
	if err != nil {
		telemetry.RecordError(span, err)
		if errors.Is(err, pdf.ErrPDFDisabled) {
			return nil, shared.InvalidState("pdf rendering is not enabled, use the html endpoint")
		}
		s.logger.Error("Failed to render invoice pdf",
			zap.String("invoice_id", id.String()),
			zap.Error(err))
		return nil, err
	}
	telemetry.SetAttributes(span, "pdf.bytes", len(body))
	return &Document{
		FileName:    inv.FullNumber() + ".pdf",
		ContentType: "application/pdf",
		Body:        body,
	}, nil
}

func (s *InvoiceService) loadForRender(ctx context.Context, tenantID, id uuid.UUID) (*invoicing.Invoice, pdf.Issuer, error) {
	t, err := s.tenants.FindByID(ctx, tenantID)
	if err != nil {
		return nil, pdf.Issuer{}, err
	}
	inv, err := s.invoiceRepo.FindByIDForTenant(ctx, tenantID, id)
	if err != nil {
		return nil, pdf.Issuer{}, err
	}
	return inv, IssuerFor(t, s.issuerTaxID), nil
}

// IssuerFor builds the printed header of a tenant
func IssuerFor(t *tenant.Tenant, fallbackTaxID string) pdf.Issuer {
	name := t.LegalName
	if name == "" {
		name = t.Name
	}
	taxID := t.TaxID
	if taxID == "" {
		taxID = fallbackTaxID
	}
	return pdf.Issuer{Name: name, TaxID: taxID, Email: t.Email}
}

func startOfMonth(t time.Time) time.Time {
	y, m, _ := t.Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
}
