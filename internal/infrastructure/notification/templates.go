package notification

import (
	"bytes"
	"fmt"
	"html/template"
)

// InvoiceIssuedData fills the invoice issued email
type InvoiceIssuedData struct {
	TenantName   string
	CustomerName string
	Number       string
	IssueDate    string
	DueDate      string
	Currency     string
	Total        string
	ViewURL      string
}

// PaymentData fills the payment succeeded and failed emails
type PaymentData struct {
	TenantName  string
	PlanName    string
	OrderNumber string
	Currency    string
	Amount      string
	Reason      string
	PeriodEnd   string
}

var templates = template.Must(template.New("mail").Parse(`
{{define "invoice_issued"}}<p>Hello {{.CustomerName}},</p>
<p>{{.TenantName}} issued invoice <strong>{{.Number}}</strong> on {{.IssueDate}} for <strong>{{.Currency}} {{.Total}}</strong>.</p>
{{if .DueDate}}<p>Payment is due on {{.DueDate}}.</p>{{end}}
{{if .ViewURL}}<p><a href="{{.ViewURL}}">View invoice</a></p>{{end}}{{end}}
{{define "payment_succeeded"}}<p>Thank you. We received {{.Currency}} {{.Amount}} for the {{.PlanName}} plan of {{.TenantName}} (order {{.OrderNumber}}).</p>
{{if .PeriodEnd}}<p>Your subscription is active until {{.PeriodEnd}}.</p>{{end}}{{end}}
{{define "payment_failed"}}<p>The payment {{.OrderNumber}} of {{.Currency}} {{.Amount}} for the {{.PlanName}} plan of {{.TenantName}} did not go through.</p>
{{if .Reason}}<p>Reason: {{.Reason}}</p>{{end}}{{end}}
`))

func render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}

// InvoiceIssued builds the email sent to the invoice customer
func InvoiceIssued(to string, d InvoiceIssuedData) (Message, error) {
	html, err := render("invoice_issued", d)
	if err != nil {
		return Message{}, err
	}
	return Message{
		To:       []string{to},
		Subject:  fmt.Sprintf("Invoice %s from %s", d.Number, d.TenantName),
		HTML:     html,
		Text:     fmt.Sprintf("%s issued invoice %s for %s %s.", d.TenantName, d.Number, d.Currency, d.Total),
		Category: "invoice_issued",
	}, nil
}

// PaymentSucceeded builds the receipt sent to the tenant contact
func PaymentSucceeded(to string, d PaymentData) (Message, error) {
	html, err := render("payment_succeeded", d)
	if err != nil {
		return Message{}, err
	}
	return Message{
		To:       []string{to},
		Subject:  fmt.Sprintf("Payment received: %s plan", d.PlanName),
		HTML:     html,
		Text:     fmt.Sprintf("We received %s %s for order %s.", d.Currency, d.Amount, d.OrderNumber),
		Category: "payment_succeeded",
	}, nil
}

// PaymentFailed builds the notice sent when a payment fails
func PaymentFailed(to string, d PaymentData) (Message, error) {
	html, err := render("payment_failed", d)
	if err != nil {
		return Message{}, err
	}
	return Message{
		To:       []string{to},
		Subject:  fmt.Sprintf("Payment failed: %s plan", d.PlanName),
		HTML:     html,
		Text:     fmt.Sprintf("Payment %s of %s %s failed. %s", d.OrderNumber, d.Currency, d.Amount, d.Reason),
		Category: "payment_failed",
	}, nil
}
