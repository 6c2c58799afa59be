package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"time"

	"github.com/backoffice/saas/internal/domain/invoicing"
	"go.uber.org/zap"
)

// ErrPDFDisabled is returned by RenderPDF when no browser is configured
var ErrPDFDisabled = errors.New("pdf: chrome rendering is disabled")

// Issuer is the tenant printed on the invoice header
type Issuer struct {
	Name    string
	TaxID   string
	Address string
	Email   string
}

type invoiceView struct {
	Issuer     Issuer
	Invoice    *invoicing.Invoice
	Number     string
	StatusNote string
	QRCode     template.URL
}

var invoiceTemplate = template.Must(template.New("invoice").Funcs(template.FuncMap{
	"date": func(t *time.Time) string {
		if t == nil {
			return ""
		}
		return t.Format("2006-01-02")
	},
}).Parse(`<!DOCTYPE html>
<html><head><meta charset="UTF-8"><title>{{.Number}}</title>
<style>
body{font-family:Helvetica,Arial,sans-serif;font-size:12px;color:#222}
header{display:flex;justify-content:space-between;border-bottom:2px solid #333;padding-bottom:8px}
.doc{border:1px solid #333;padding:8px 16px;text-align:center}
table{width:100%;border-collapse:collapse;margin-top:16px}
th,td{border-bottom:1px solid #ddd;padding:4px 6px;text-align:left}
td.num,th.num{text-align:right}
.totals{margin-top:12px;width:40%;margin-left:auto}
.stamp{color:#b00;font-size:18px;font-weight:bold}
footer{margin-top:24px;display:flex;justify-content:space-between;align-items:flex-end}
</style></head>
<body>
<header>
  <div><h2>{{.Issuer.Name}}</h2>{{if .Issuer.TaxID}}<div>RUC {{.Issuer.TaxID}}</div>{{end}}{{if .Issuer.Address}}<div>{{.Issuer.Address}}</div>{{end}}</div>
  <div class="doc"><div>INVOICE</div><strong>{{.Number}}</strong></div>
</header>
{{if .StatusNote}}<p class="stamp">{{.StatusNote}}</p>{{end}}
<section>
  <p><strong>Customer:</strong> {{.Invoice.Customer.Name}}<br>
  {{if ne (print .Invoice.Customer.DocumentType) "NONE"}}{{.Invoice.Customer.DocumentType}} {{.Invoice.Customer.DocumentNumber}}<br>{{end}}
  {{if .Invoice.Customer.Address}}{{.Invoice.Customer.Address}}<br>{{end}}
  <strong>Issue date:</strong> {{if .Invoice.IssueDate}}{{date .Invoice.IssueDate}}{{else}}-{{end}}
  {{if .Invoice.DueDate}}<br><strong>Due date:</strong> {{date .Invoice.DueDate}}{{end}}</p>
</section>
<table>
<thead><tr><th>Description</th><th class="num">Qty</th><th class="num">Unit price</th><th class="num">Tax</th><th class="num">Total</th></tr></thead>
<tbody>
{{range .Invoice.Lines}}<tr><td>{{.Description}}</td><td class="num">{{.Quantity.String}}</td><td class="num">{{.UnitPrice.StringFixed 2}}</td><td class="num">{{.Tax.StringFixed 2}}</td><td class="num">{{.Total.StringFixed 2}}</td></tr>
{{end}}</tbody>
</table>
<table class="totals">
<tr><td>Subtotal</td><td class="num">{{.Invoice.Currency}} {{.Invoice.Subtotal.StringFixed 2}}</td></tr>
<tr><td>Tax</td><td class="num">{{.Invoice.Currency}} {{.Invoice.TaxTotal.StringFixed 2}}</td></tr>
<tr><th>Total</th><th class="num">{{.Invoice.Currency}} {{.Invoice.Total.StringFixed 2}}</th></tr>
</table>
<footer>
  <div>{{if .Invoice.Notes}}<p>{{.Invoice.Notes}}</p>{{end}}</div>
  {{if .QRCode}}<img src="{{.QRCode}}" width="120" height="120" alt="QR">{{end}}
</footer>
</body></html>
`))

// InvoiceRenderer turns invoices into printable documents
type InvoiceRenderer struct {
	chrome *ChromeRenderer
	logger *zap.Logger
}

// NewInvoiceRenderer creates a renderer; a nil chrome disables PDF output
func NewInvoiceRenderer(chrome *ChromeRenderer, logger *zap.Logger) *InvoiceRenderer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InvoiceRenderer{chrome: chrome, logger: logger}
}

// RenderHTML renders the printable page. Drafts carry no QR code.
func (r *InvoiceRenderer) RenderHTML(inv *invoicing.Invoice, issuer Issuer) (string, error) {
	view := invoiceView{Issuer: issuer, Invoice: inv, Number: inv.FullNumber()}
	switch inv.Status {
	case invoicing.StatusDraft:
		view.StatusNote = "DRAFT"
	case invoicing.StatusVoided:
		view.StatusNote = "VOIDED: " + inv.VoidReason
	case invoicing.StatusPaid:
		view.StatusNote = "PAID"
	}
	if inv.Status != invoicing.StatusDraft {
		qr, err := QRDataURI(inv.QRPayload(issuer.TaxID), 240)
		if err != nil {
			return "", err
		}
		view.QRCode = template.URL(qr)
	}
	var buf bytes.Buffer
	if err := invoiceTemplate.Execute(&buf, view); err != nil {
		return "", fmt.Errorf("pdf: render invoice html: %w", err)
	}
	return buf.String(), nil
}

// RenderPDF renders the HTML and prints it
func (r *InvoiceRenderer) RenderPDF(ctx context.Context, inv *invoicing.Invoice, issuer Issuer) ([]byte, error) {
	if r.chrome == nil {
		return nil, ErrPDFDisabled
	}
	html, err := r.RenderHTML(inv, issuer)
	if err != nil {
		return nil, err
	}
	return r.chrome.RenderPDF(ctx, html)
}
