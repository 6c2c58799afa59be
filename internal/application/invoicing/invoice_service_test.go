package invoicing

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/backoffice/saas/internal/domain/invoicing"
	"github.com/backoffice/saas/internal/domain/shared"
	"github.com/backoffice/saas/internal/domain/tenant"
	"github.com/backoffice/saas/internal/infrastructure/pdf"
	"github.com/backoffice/saas/internal/infrastructure/persistence"
	"github.com/backoffice/saas/internal/infrastructure/persistence/persistencetest"
)

type recordingPublisher struct {
	events []shared.DomainEvent
}

func (p *recordingPublisher) Publish(_ context.Context, events ...shared.DomainEvent) error {
	p.events = append(p.events, events...)
	return nil
}

type fakePDF struct {
	*pdf.InvoiceRenderer
	issuer pdf.Issuer
}

func (r *fakePDF) RenderPDF(_ context.Context, inv *invoicing.Invoice, issuer pdf.Issuer) ([]byte, error) {
	r.issuer = issuer
	return []byte("%PDF-1.7 " + inv.FullNumber()), nil
}

type fixture struct {
	svc       *InvoiceService
	repos     *persistence.Repositories
	tenant    *tenant.Tenant
	publisher *recordingPublisher
}

func newFixture(t *testing.T, renderer Renderer) *fixture {
	t.Helper()
	ctx := context.Background()
	repos := persistence.NewRepositories(persistencetest.NewDB(t))
	tn, err := tenant.NewTenant("Acme Store", "owner@acme.test", tenant.DefaultSettings())
	require.NoError(t, err)
	require.NoError(t, tn.Update(tn.Name, tn.Email, "Acme Store SAC", "20601234567", tn.Settings))
	require.NoError(t, repos.Tenants.Save(ctx, tn))

	if renderer == nil {
		renderer = pdf.NewInvoiceRenderer(nil, nil)
	}
	pub := &recordingPublisher{}
	svc := NewInvoiceService(InvoiceServiceConfig{
		Invoices:    repos.Invoices,
		Tenants:     repos.Tenants,
		Renderer:    renderer,
		Publisher:   pub,
		Logger:      zaptest.NewLogger(t),
		IssuerTaxID: "20999999991",
	})
	return &fixture{svc: svc, repos: repos, tenant: tn, publisher: pub}
}

func draftRequest() DraftRequest {
	return DraftRequest{
		Series: "f001",
		Customer: CustomerRequest{
			Name:           "Comercial Lima SAC",
			DocumentType:   "RUC",
			DocumentNumber: "20512345678",
			Email:          "billing@lima.test",
		},
		Lines: []LineRequest{
			{Description: "Plan mensual", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.RequireFromString("100"), TaxRate: decimal.RequireFromString("0.18")},
			{Description: "Soporte", Quantity: decimal.RequireFromString("2.5"), UnitPrice: decimal.RequireFromString("10.01"), TaxRate: decimal.RequireFromString("0.18")},
		},
	}
}

func (f *fixture) draft(t *testing.T) *InvoiceResponse {
	t.Helper()
	inv, err := f.svc.CreateDraft(context.Background(), f.tenant.ID, draftRequest())
	require.NoError(t, err)
	return inv
}

func TestInvoiceService_CreateDraft(t *testing.T) {
	f := newFixture(t, nil)
	inv := f.draft(t)

	assert.Equal(t, "F001", inv.Series)
	assert.Equal(t, "PEN", inv.Currency, "currency defaults to the tenant's")
	assert.Equal(t, "draft", inv.Status)
	assert.Equal(t, "F001-DRAFT", inv.FullNumber)
	// 2.5 x 10.01 = 25.025 rounds half-up to 25.03
	assert.Equal(t, "25.03", inv.Lines[1].Subtotal.StringFixed(2))
	assert.Equal(t, "125.03", inv.Subtotal.StringFixed(2))
	assert.Equal(t, "22.51", inv.TaxTotal.StringFixed(2))
	assert.Equal(t, "147.54", inv.Total.StringFixed(2))

	t.Run("line errors name the line", func(t *testing.T) {
		req := draftRequest()
		req.Lines[1].Quantity = decimal.Zero
		_, err := f.svc.CreateDraft(context.Background(), f.tenant.ID, req)
		require.Error(t, err)
		var de *shared.DomainError
		require.ErrorAs(t, err, &de)
		assert.Equal(t, shared.CodeInvalidInput, de.Code)
		assert.Equal(t, 2, de.Details["line"])
	})
}

func TestInvoiceService_UpdateDraftReplacesLines(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	inv := f.draft(t)

	req := draftRequest()
	req.Lines = req.Lines[:1]
	req.Notes = "Gracias"
	updated, err := f.svc.UpdateDraft(ctx, f.tenant.ID, inv.ID, req)
	require.NoError(t, err)
	assert.Len(t, updated.Lines, 1)
	assert.Equal(t, "118.00", updated.Total.StringFixed(2))
	assert.Equal(t, "Gracias", updated.Notes)

	stored, err := f.svc.GetByID(ctx, f.tenant.ID, inv.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Lines, 1)
}

func TestInvoiceService_IssueLifecycle(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	first := f.draft(t)
	second := f.draft(t)

	issued, err := f.svc.Issue(ctx, f.tenant.ID, first.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), issued.Number)
	assert.Equal(t, "F001-00000001", issued.FullNumber)
	assert.Equal(t, "issued", issued.Status)
	require.NotNil(t, issued.IssueDate)

	next, err := f.svc.Issue(ctx, f.tenant.ID, second.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), next.Number)

	require.Len(t, f.publisher.events, 2)
	ev, ok := f.publisher.events[0].(*invoicing.InvoiceIssuedEvent)
	require.True(t, ok)
	assert.Equal(t, "billing@lima.test", ev.CustomerEmail)
	assert.Equal(t, "F001-00000001", ev.FullNumber)

	_, err = f.svc.Issue(ctx, f.tenant.ID, first.ID)
	assert.Equal(t, shared.CodeInvalidState, shared.ErrorCode(err))

	_, err = f.svc.UpdateDraft(ctx, f.tenant.ID, first.ID, draftRequest())
	assert.Equal(t, shared.CodeInvalidState, shared.ErrorCode(err))

	err = f.svc.Delete(ctx, f.tenant.ID, first.ID)
	assert.Equal(t, shared.CodeInvalidState, shared.ErrorCode(err))

	paid, err := f.svc.MarkPaid(ctx, f.tenant.ID, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "paid", paid.Status)
	assert.NotNil(t, paid.PaidAt)

	_, err = f.svc.Void(ctx, f.tenant.ID, first.ID, VoidRequest{Reason: "duplicated"})
	assert.Equal(t, shared.CodeInvalidState, shared.ErrorCode(err), "paid invoices cannot be voided")

	voided, err := f.svc.Void(ctx, f.tenant.ID, second.ID, VoidRequest{Reason: "wrong customer"})
	require.NoError(t, err)
	assert.Equal(t, "voided", voided.Status)
	assert.Equal(t, "wrong customer", voided.VoidReason)

	_, err = f.svc.MarkPaid(ctx, f.tenant.ID, second.ID)
	assert.Equal(t, shared.CodeInvalidState, shared.ErrorCode(err))
}

func TestInvoiceService_IssueValidatesCustomerDocument(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	req := draftRequest()
	req.Customer.DocumentType = "DNI"
	req.Customer.DocumentNumber = "1234567"
	inv, err := f.svc.CreateDraft(ctx, f.tenant.ID, req)
	require.NoError(t, err, "drafts may hold incomplete customer data")

	_, err = f.svc.Issue(ctx, f.tenant.ID, inv.ID)
	assert.Equal(t, shared.CodeInvalidInput, shared.ErrorCode(err))

	empty := draftRequest()
	empty.Lines = nil
	blank, err := f.svc.CreateDraft(ctx, f.tenant.ID, empty)
	require.NoError(t, err)
	_, err = f.svc.Issue(ctx, f.tenant.ID, blank.ID)
	assert.Equal(t, shared.CodeInvalidInput, shared.ErrorCode(err))

	stored, err := f.svc.GetByID(ctx, f.tenant.ID, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, "draft", stored.Status)
	assert.Zero(t, stored.Number)
}

func TestInvoiceService_MonthlyQuota(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	limit := int(f.tenant.Plan().MaxInvoicesPerMonth)
	require.Positive(t, limit)

	for i := 0; i < limit; i++ {
		inv := f.draft(t)
		_, err := f.svc.Issue(ctx, f.tenant.ID, inv.ID)
		require.NoError(t, err)
	}
	over := f.draft(t)
	_, err := f.svc.Issue(ctx, f.tenant.ID, over.ID)
	require.Error(t, err)
	var de *shared.DomainError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, shared.CodeQuotaExceeded, de.Code)
	assert.Equal(t, int64(limit), de.Details["used"])

	t.Run("the count restarts next month", func(t *testing.T) {
		f.svc.now = func() time.Time { return time.Now().UTC().AddDate(0, 1, 0) }
		_, err := f.svc.Issue(ctx, f.tenant.ID, over.ID)
		assert.NoError(t, err)
	})
}

func TestInvoiceService_ListByStatusAndDate(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	a := f.draft(t)
	f.draft(t)
	_, err := f.svc.Issue(ctx, f.tenant.ID, a.ID)
	require.NoError(t, err)

	drafts, total, err := f.svc.List(ctx, f.tenant.ID, InvoiceListFilter{Status: "draft"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Len(t, drafts, 1)

	today := time.Now().UTC().Truncate(24 * time.Hour)
	issued, total, err := f.svc.List(ctx, f.tenant.ID, InvoiceListFilter{From: &today, To: &today})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, a.ID, issued[0].ID)

	yesterday := today.Add(-24 * time.Hour)
	_, _, err = f.svc.List(ctx, f.tenant.ID, InvoiceListFilter{From: &today, To: &yesterday})
	assert.Equal(t, shared.CodeInvalidInput, shared.ErrorCode(err))

	_, err = f.svc.GetByID(ctx, uuid.New(), a.ID)
	assert.Equal(t, shared.CodeNotFound, shared.ErrorCode(err))
}

func TestInvoiceService_DeleteDraft(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	inv := f.draft(t)

	require.NoError(t, f.svc.Delete(ctx, f.tenant.ID, inv.ID))
	_, err := f.svc.GetByID(ctx, f.tenant.ID, inv.ID)
	assert.Equal(t, shared.CodeNotFound, shared.ErrorCode(err))
}

func TestInvoiceService_Render(t *testing.T) {
	t.Run("html", func(t *testing.T) {
		f := newFixture(t, nil)
		ctx := context.Background()
		inv := f.draft(t)
		_, err := f.svc.Issue(ctx, f.tenant.ID, inv.ID)
		require.NoError(t, err)

		doc, err := f.svc.RenderHTML(ctx, f.tenant.ID, inv.ID)
		require.NoError(t, err)
		assert.Equal(t, "F001-00000001.html", doc.FileName)
		html := string(doc.Body)
		assert.Contains(t, html, "Acme Store SAC")
		assert.Contains(t, html, "RUC 20601234567")
		assert.True(t, strings.Contains(html, "data:image/png;base64,"))
	})

	t.Run("pdf disabled", func(t *testing.T) {
		f := newFixture(t, nil)
		inv := f.draft(t)
		_, err := f.svc.RenderPDF(context.Background(), f.tenant.ID, inv.ID)
		assert.Equal(t, shared.CodeInvalidState, shared.ErrorCode(err))
	})

	t.Run("pdf", func(t *testing.T) {
		renderer := &fakePDF{InvoiceRenderer: pdf.NewInvoiceRenderer(nil, nil)}
		f := newFixture(t, renderer)
		inv := f.draft(t)
		doc, err := f.svc.RenderPDF(context.Background(), f.tenant.ID, inv.ID)
		require.NoError(t, err)
		assert.Equal(t, "application/pdf", doc.ContentType)
		assert.Equal(t, "F001-DRAFT.pdf", doc.FileName)
		assert.Equal(t, "20601234567", renderer.issuer.TaxID)
	})
}

func TestIssuerFor_FallsBackToConfiguredTaxID(t *testing.T) {
	tn, err := tenant.NewTenant("Bodega Norte", "hola@norte.test", tenant.DefaultSettings())
	require.NoError(t, err)
	issuer := IssuerFor(tn, "20999999991")
	assert.Equal(t, "Bodega Norte", issuer.Name)
	assert.Equal(t, "20999999991", issuer.TaxID)
}
