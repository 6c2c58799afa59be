package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/backoffice/saas/internal/domain/billing"
	infraconfig "github.com/backoffice/saas/internal/infrastructure/config"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	mercadoPagoAPIBaseURL  = "https://api.mercadopago.com"
	mercadoPagoPrefPath    = "/checkout/preferences"
	mercadoPagoPaymentPath = "/v1/payments/%s"
	mercadoPagoSearchPath  = "/v1/payments/search"
	mercadoPagoRefundPath  = "/v1/payments/%s/refunds"
)

var (
	ErrMercadoPagoMissingAccessToken = errors.New("mercadopago: missing access token")

	alphanumeric = regexp.MustCompile(`^[A-Za-z0-9]+$`)
)

// MercadoPagoAdapter collects payments through Checkout Pro preferences
type MercadoPagoAdapter struct {
	webhookSecret string
	sandbox       bool
	client        *apiClient
	logger        *zap.Logger
}

// NewMercadoPagoAdapter creates a new MercadoPago adapter
func NewMercadoPagoAdapter(cfg infraconfig.MercadoPagoConfig, logger *zap.Logger) (*MercadoPagoAdapter, error) {
	if cfg.AccessToken == "" {
		return nil, ErrMercadoPagoMissingAccessToken
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = mercadoPagoAPIBaseURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MercadoPagoAdapter{
		webhookSecret: cfg.WebhookSecret,
		sandbox:       cfg.Sandbox,
		client:        newAPIClient(billing.GatewayMercadoPago, baseURL, map[string]string{"Authorization": "Bearer " + cfg.AccessToken}, logger),
		logger:        logger,
	}, nil
}

// Type returns the gateway type
func (a *MercadoPagoAdapter) Type() billing.GatewayType { return billing.GatewayMercadoPago }

// CreatePayment creates a checkout preference. The payment itself only
// exists once the payer completes the checkout, so no transaction id is
// known yet.
func (a *MercadoPagoAdapter) CreatePayment(ctx context.Context, req *billing.CreatePaymentRequest) (*billing.CreatePaymentResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	title := req.Description
	if title == "" {
		title = req.OrderNumber
	}
	body := mpPreferenceRequest{
		Items: []mpItem{{
			ID:         req.OrderNumber,
			Title:      truncate(title, 256),
			Quantity:   1,
			UnitPrice:  req.Amount.Round(2).InexactFloat64(),
			CurrencyID: strings.ToUpper(req.Currency),
		}},
		ExternalReference: req.OrderNumber,
		NotificationURL:   req.NotifyURL,
		Metadata:          req.Metadata,
	}
	if req.PayerEmail != "" {
		body.Payer = &mpPayer{Email: req.PayerEmail}
	}
	if req.ReturnURL != "" || req.CancelURL != "" {
		body.BackURLs = &mpBackURLs{Success: req.ReturnURL, Pending: req.ReturnURL, Failure: firstNonEmpty(req.CancelURL, req.ReturnURL)}
		if req.ReturnURL != "" {
			body.AutoReturn = "approved"
		}
	}

	var pref mpPreference
	raw, err := a.client.do(ctx, http.MethodPost, mercadoPagoPrefPath, body, &pref)
	if err != nil {
		return nil, err
	}
	paymentURL := pref.InitPoint
	if a.sandbox && pref.SandboxInitPoint != "" {
		paymentURL = pref.SandboxInitPoint
	}
	if paymentURL == "" {
		return nil, fmt.Errorf("%w: mercadopago preference without init_point", billing.ErrGatewayInvalidResponse)
	}
	return &billing.CreatePaymentResult{
		PaymentURL: paymentURL,
		Status:     billing.PaymentStatusPending,
		RawStatus:  "preference:" + pref.ID,
		Raw:        string(raw),
	}, nil
}

// QueryPayment reads the payment by id, or searches by external reference
func (a *MercadoPagoAdapter) QueryPayment(ctx context.Context, req *billing.QueryPaymentRequest) (*billing.QueryPaymentResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	var (
		p   mpPayment
		raw []byte
		err error
	)
	if req.GatewayTransactionID != "" {
		raw, err = a.client.do(ctx, http.MethodGet, fmt.Sprintf(mercadoPagoPaymentPath, url.PathEscape(req.GatewayTransactionID)), nil, &p)
		if err != nil {
			return nil, err
		}
	} else {
		q := url.Values{}
		q.Set("external_reference", req.OrderNumber)
		q.Set("sort", "date_created")
		q.Set("criteria", "desc")
		var found mpSearchResult
		raw, err = a.client.do(ctx, http.MethodGet, mercadoPagoSearchPath+"?"+q.Encode(), nil, &found)
		if err != nil {
			return nil, err
		}
		if len(found.Results) == 0 {
			// checkout not completed yet
			return &billing.QueryPaymentResult{
				OrderNumber: req.OrderNumber,
				Status:      billing.PaymentStatusPending,
				RawStatus:   "not_found",
				Raw:         string(raw),
			}, nil
		}
		p = pickMercadoPagoPayment(found.Results)
	}

	result := &billing.QueryPaymentResult{
		GatewayTransactionID: string(p.ID),
		OrderNumber:          p.ExternalReference,
		Status:               mapMercadoPagoStatus(p.Status, p.TransactionAmountRefunded, p.TransactionAmount),
		RawStatus:            p.Status,
		Raw:                  string(raw),
	}
	if result.Status == billing.PaymentStatusFailed || result.Status == billing.PaymentStatusCancelled {
		result.FailureReason = p.StatusDetail
	}
	if p.DateApproved != "" {
		if t, err := time.Parse(time.RFC3339Nano, p.DateApproved); err == nil {
			t = t.UTC()
			result.PaidAt = &t
		}
		result.PaidAmount = decimal.NewFromFloat(p.TransactionAmount).Round(2)
	}
	return result, nil
}

// pickMercadoPagoPayment prefers an approved attempt over later failures
func pickMercadoPagoPayment(results []mpPayment) mpPayment {
	for _, p := range results {
		if p.Status == "approved" || p.Status == "refunded" {
			return p
		}
	}
	return results[0]
}

// Refund refunds all or part of a payment
func (a *MercadoPagoAdapter) Refund(ctx context.Context, req *billing.RefundRequest) (*billing.RefundResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	idempotencyKey := fmt.Sprintf("refund-%s-%s", req.GatewayTransactionID, req.Amount.StringFixed(2))
	var refund mpRefund
	raw, err := a.client.do(ctx, http.MethodPost,
		fmt.Sprintf(mercadoPagoRefundPath, url.PathEscape(req.GatewayTransactionID)),
		mpRefundRequest{Amount: req.Amount.Round(2).InexactFloat64()}, &refund,
		withHeader("X-Idempotency-Key", idempotencyKey))
	if err != nil {
		return nil, err
	}
	return &billing.RefundResult{RefundID: string(refund.ID), Raw: string(raw)}, nil
}

// ParseWebhook checks the x-signature header over the manifest
// "id:{data.id};request-id:{x-request-id};ts:{ts};". Notifications never
// carry the status, so they always need a query.
func (a *MercadoPagoAdapter) ParseWebhook(_ context.Context, req billing.WebhookRequest) (*billing.WebhookNotification, error) {
	var n mpNotification
	if len(req.Body) > 0 {
		if err := json.Unmarshal(req.Body, &n); err != nil {
			return nil, billing.ErrGatewayMalformedNotice
		}
	}
	dataID := req.Query["data.id"]
	if dataID == "" {
		dataID = req.Query["id"]
	}
	if dataID == "" {
		dataID = string(n.Data.ID)
	}
	eventType := firstNonEmpty(n.Type, n.Topic, req.Query["type"], req.Query["topic"])

	if a.webhookSecret != "" {
		if err := a.verifySignature(req, dataID); err != nil {
			return nil, err
		}
	}

	notification := &billing.WebhookNotification{
		EventType:  firstNonEmpty(n.Action, eventType),
		NeedsQuery: true,
	}
	if eventType == "payment" || eventType == "" {
		if dataID == "" {
			return nil, billing.ErrGatewayMalformedNotice
		}
		notification.GatewayTransactionID = dataID
	}
	notification.EventID = firstNonEmpty(string(n.ID), req.Header("x-request-id"))
	if notification.EventID == "" {
		notification.EventID = fmt.Sprintf("%s:%s:%s", eventType, dataID, n.Action)
	}
	return notification, nil
}

func (a *MercadoPagoAdapter) verifySignature(req billing.WebhookRequest, dataID string) error {
	var ts, v1 string
	for _, part := range strings.Split(req.Header("x-signature"), ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch strings.TrimSpace(k) {
		case "ts":
			ts = strings.TrimSpace(v)
		case "v1":
			v1 = strings.TrimSpace(v)
		}
	}
	if ts == "" || v1 == "" {
		return billing.ErrGatewayInvalidCallback
	}
	return verifyMercadoPagoManifest(a.webhookSecret, dataID, req.Header("x-request-id"), ts, v1)
}

// mercadoPagoManifest builds the signed template; parts that are absent
// from the request are left out as the gateway does.
func mercadoPagoManifest(dataID, requestID, ts string) string {
	var b strings.Builder
	if dataID != "" {
		if alphanumeric.MatchString(dataID) {
			dataID = strings.ToLower(dataID)
		}
		b.WriteString("id:" + dataID + ";")
	}
	if requestID != "" {
		b.WriteString("request-id:" + requestID + ";")
	}
	b.WriteString("ts:" + ts + ";")
	return b.String()
}

func verifyMercadoPagoManifest(secret, dataID, requestID, ts, v1 string) error {
	if !signatureMatches(hmacHex(secret, []byte(mercadoPagoManifest(dataID, requestID, ts))), v1) {
		return billing.ErrGatewayInvalidCallback
	}
	return nil
}

func mapMercadoPagoStatus(status string, refunded, amount float64) billing.PaymentStatus {
	switch status {
	case "approved":
		if refunded > 0 {
			if refunded >= amount {
				return billing.PaymentStatusRefunded
			}
			return billing.PaymentStatusPartialRefunded
		}
		return billing.PaymentStatusPaid
	case "pending", "in_process", "authorized", "in_mediation":
		return billing.PaymentStatusPending
	case "rejected":
		return billing.PaymentStatusFailed
	case "cancelled":
		return billing.PaymentStatusCancelled
	case "refunded", "charged_back":
		return billing.PaymentStatusRefunded
	}
	return billing.PaymentStatusPending
}
