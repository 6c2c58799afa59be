package billing

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrGatewayNotConfigured   = errors.New("payment: gateway not configured")
	ErrGatewayRequestFailed   = errors.New("payment: gateway request failed")
	ErrGatewayInvalidResponse = errors.New("payment: invalid gateway response")
	ErrGatewayInvalidCallback = errors.New("payment: invalid callback signature")
	ErrGatewayMalformedNotice = errors.New("payment: malformed webhook payload")

	ErrPaymentInvalidOrderNumber = errors.New("payment: invalid order number")
	ErrPaymentInvalidAmount      = errors.New("payment: invalid payment amount")
	ErrPaymentInvalidCurrency    = errors.New("payment: invalid currency")
	ErrPaymentMissingCardToken   = errors.New("payment: card token is required")
	ErrPaymentInvalidQuery       = errors.New("payment: need gateway transaction id or order number")
	ErrRefundInvalidAmount       = errors.New("refund: invalid refund amount")
)

// GatewayType identifies a payment provider
type GatewayType string

const (
	GatewayCulqi       GatewayType = "CULQI"
	GatewayMercadoPago GatewayType = "MERCADOPAGO"
	GatewayPayPhone    GatewayType = "PAYPHONE"
)

// ParseGatewayType accepts any casing, e.g. "mercadopago"
func ParseGatewayType(s string) (GatewayType, bool) {
	g := GatewayType(strings.ToUpper(strings.TrimSpace(s)))
	return g, g.IsValid()
}

// IsValid returns true if the gateway is supported
func (g GatewayType) IsValid() bool {
	switch g {
	case GatewayCulqi, GatewayMercadoPago, GatewayPayPhone:
		return true
	default:
		return false
	}
}

func (g GatewayType) String() string {
	return string(g)
}

// CreatePaymentRequest asks a gateway to start collecting a payment
type CreatePaymentRequest struct {
	OrderNumber string
	Amount      decimal.Decimal
	Currency    string
	Description string
	PayerEmail  string
	// CardToken is a tokenized card, required by gateways that charge directly
	CardToken string
	NotifyURL string
	ReturnURL string
	CancelURL string
	Metadata  map[string]string
}

// Validate validates the request fields common to every gateway
func (r *CreatePaymentRequest) Validate() error {
	if r.OrderNumber == "" {
		return ErrPaymentInvalidOrderNumber
	}
	if r.Amount.LessThanOrEqual(decimal.Zero) {
		return ErrPaymentInvalidAmount
	}
	if len(r.Currency) != 3 {
		return ErrPaymentInvalidCurrency
	}
	return nil
}

// CreatePaymentResult is what the gateway returned on creation
type CreatePaymentResult struct {
	GatewayTransactionID string
	// PaymentURL is where the payer completes the payment; empty for direct charges
	PaymentURL    string
	Status        PaymentStatus
	FailureReason string
	RawStatus     string
	Raw           string
}

// QueryPaymentRequest looks up a payment at the gateway
type QueryPaymentRequest struct {
	GatewayTransactionID string
	OrderNumber          string
}

// Validate validates the query
func (r *QueryPaymentRequest) Validate() error {
	if r.GatewayTransactionID == "" && r.OrderNumber == "" {
		return ErrPaymentInvalidQuery
	}
	return nil
}

// QueryPaymentResult is the authoritative state held by the gateway
type QueryPaymentResult struct {
	GatewayTransactionID string
	OrderNumber          string
	Status               PaymentStatus
	PaidAmount           decimal.Decimal
	PaidAt               *time.Time
	FailureReason        string
	RawStatus            string
	Raw                  string
}

// RefundRequest returns money for a collected payment
type RefundRequest struct {
	GatewayTransactionID string
	OrderNumber          string
	Amount               decimal.Decimal
	// PaymentAmount is the original charge, for gateways that only reverse in full
	PaymentAmount decimal.Decimal
	Currency      string
	Reason        string
}

// Validate validates the refund request
func (r *RefundRequest) Validate() error {
	if r.GatewayTransactionID == "" {
		return ErrPaymentInvalidQuery
	}
	if r.Amount.LessThanOrEqual(decimal.Zero) {
		return ErrRefundInvalidAmount
	}
	return nil
}

// RefundResult is the gateway's answer to a refund
type RefundResult struct {
	RefundID string
	Raw      string
}

// WebhookRequest is an inbound callback as received over HTTP
type WebhookRequest struct {
	// Headers are keyed by lower-case header name
	Headers map[string]string
	Query   map[string]string
	Body    []byte
}

// Header returns a header value, ignoring case
func (r WebhookRequest) Header(name string) string {
	return r.Headers[strings.ToLower(name)]
}

// WebhookNotification is the gateway-neutral content of a webhook
type WebhookNotification struct {
	// EventID identifies the notification for deduplication
	EventID              string
	EventType            string
	GatewayTransactionID string
	OrderNumber          string
	// Status is empty when the notification does not carry one
	Status        PaymentStatus
	FailureReason string
	// NeedsQuery asks the caller to fetch the status from the gateway
	NeedsQuery bool
}

//go:generate mockgen -destination=mocks/mock_gateway.go -package=mocks . PaymentGateway

// PaymentGateway is the port every payment provider adapter implements
type PaymentGateway interface {
	Type() GatewayType
	CreatePayment(ctx context.Context, req *CreatePaymentRequest) (*CreatePaymentResult, error)
	QueryPayment(ctx context.Context, req *QueryPaymentRequest) (*QueryPaymentResult, error)
	Refund(ctx context.Context, req *RefundRequest) (*RefundResult, error)
	// ParseWebhook verifies and decodes a callback. It returns
	// ErrGatewayInvalidCallback when the signature does not match.
	ParseWebhook(ctx context.Context, req WebhookRequest) (*WebhookNotification, error)
}
