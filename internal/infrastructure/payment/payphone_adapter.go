package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/backoffice/saas/internal/domain/billing"
	infraconfig "github.com/backoffice/saas/internal/infrastructure/config"
	"go.uber.org/zap"
)

const (
	payphoneAPIBaseURL  = "https://pay.payphonetodoesposible.com"
	payphonePreparePath = "/api/button/Prepare"
	payphoneConfirmPath = "/api/button/V2/Confirm"
	payphoneReversePath = "/api/Reverse"

	payphoneStatusCancelled = 2
	payphoneStatusApproved  = 3
)

var ErrPayPhoneMissingToken = errors.New("payphone: missing token")

// PayPhoneAdapter collects payments through the PayPhone payment button
type PayPhoneAdapter struct {
	storeID string
	client  *apiClient
	logger  *zap.Logger
}

// NewPayPhoneAdapter creates a new PayPhone adapter
func NewPayPhoneAdapter(cfg infraconfig.PayPhoneConfig, logger *zap.Logger) (*PayPhoneAdapter, error) {
	if cfg.Token == "" {
		return nil, ErrPayPhoneMissingToken
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = payphoneAPIBaseURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PayPhoneAdapter{
		storeID: cfg.StoreID,
		client:  newAPIClient(billing.GatewayPayPhone, baseURL, map[string]string{"Authorization": "Bearer " + cfg.Token}, logger),
		logger:  logger,
	}, nil
}

// Type returns the gateway type
func (a *PayPhoneAdapter) Type() billing.GatewayType { return billing.GatewayPayPhone }

// CreatePayment prepares a button payment. The amounts are tax free.
func (a *PayPhoneAdapter) CreatePayment(ctx context.Context, req *billing.CreatePaymentRequest) (*billing.CreatePaymentResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	cents := toCents(req.Amount)
	body := payphonePrepareRequest{
		Amount:              cents,
		AmountWithoutTax:    cents,
		Currency:            strings.ToUpper(req.Currency),
		ClientTransactionID: req.OrderNumber,
		StoreID:             a.storeID,
		Reference:           truncate(req.Description, 100),
		Email:               req.PayerEmail,
		ResponseURL:         req.ReturnURL,
		CancellationURL:     req.CancelURL,
	}
	var prepared payphonePrepareResponse
	raw, err := a.client.do(ctx, http.MethodPost, payphonePreparePath, body, &prepared)
	if err != nil {
		return nil, err
	}
	if prepared.PayWithCard == "" {
		return nil, fmt.Errorf("%w: payphone prepare without payWithCard", billing.ErrGatewayInvalidResponse)
	}
	return &billing.CreatePaymentResult{
		PaymentURL: prepared.PayWithCard,
		Status:     billing.PaymentStatusPending,
		RawStatus:  "prepared:" + prepared.PaymentID,
		Raw:        string(raw),
	}, nil
}

// QueryPayment confirms the transaction. Without a transaction id there is
// nothing to confirm yet and the payment stays pending.
func (a *PayPhoneAdapter) QueryPayment(ctx context.Context, req *billing.QueryPaymentRequest) (*billing.QueryPaymentResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.GatewayTransactionID == "" {
		return &billing.QueryPaymentResult{
			OrderNumber: req.OrderNumber,
			Status:      billing.PaymentStatusPending,
			RawStatus:   "unconfirmed",
		}, nil
	}
	var confirmed payphoneConfirmResponse
	raw, err := a.client.do(ctx, http.MethodPost, payphoneConfirmPath,
		payphoneConfirmRequest{ID: req.GatewayTransactionID, ClientTxID: req.OrderNumber}, &confirmed)
	if err != nil {
		return nil, err
	}
	result := &billing.QueryPaymentResult{
		GatewayTransactionID: req.GatewayTransactionID,
		OrderNumber:          firstNonEmpty(confirmed.ClientTransactionID, req.OrderNumber),
		RawStatus:            firstNonEmpty(confirmed.TransactionStatus, strconv.Itoa(confirmed.StatusCode)),
		Raw:                  string(raw),
	}
	if confirmed.TransactionID > 0 {
		result.GatewayTransactionID = strconv.FormatInt(confirmed.TransactionID, 10)
	}
	switch confirmed.StatusCode {
	case payphoneStatusApproved:
		result.Status = billing.PaymentStatusPaid
		result.PaidAmount = fromCents(confirmed.Amount)
		paidAt := parsePayPhoneDate(confirmed.Date)
		result.PaidAt = &paidAt
	case payphoneStatusCancelled:
		result.Status = billing.PaymentStatusCancelled
		result.FailureReason = confirmed.Message
	default:
		result.Status = billing.PaymentStatusPending
	}
	return result, nil
}

func parsePayPhoneDate(s string) time.Time {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Now().UTC()
}

// Refund reverses the whole transaction; partial refunds are not offered
func (a *PayPhoneAdapter) Refund(ctx context.Context, req *billing.RefundRequest) (*billing.RefundResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if !req.PaymentAmount.IsZero() && !req.Amount.Equal(req.PaymentAmount) {
		return nil, billing.ErrRefundInvalidAmount
	}
	raw, err := a.client.do(ctx, http.MethodPost, payphoneReversePath, payphoneReverseRequest{ID: req.GatewayTransactionID}, nil)
	if err != nil {
		return nil, err
	}
	return &billing.RefundResult{RefundID: "reverse:" + req.GatewayTransactionID, Raw: string(raw)}, nil
}

// ParseWebhook reads id and clientTransactionId from the query string or
// the JSON body. Callbacks are unsigned, so the status always comes from a
// confirmation.
func (a *PayPhoneAdapter) ParseWebhook(_ context.Context, req billing.WebhookRequest) (*billing.WebhookNotification, error) {
	cb := payphoneCallback{
		ID:                  jsonID(req.Query["id"]),
		ClientTransactionID: req.Query["clientTransactionId"],
	}
	if cb.ID == "" && len(req.Body) > 0 {
		if err := json.Unmarshal(req.Body, &cb); err != nil {
			return nil, billing.ErrGatewayMalformedNotice
		}
	}
	if cb.ID == "" || cb.ID == "0" {
		return nil, billing.ErrGatewayMalformedNotice
	}
	return &billing.WebhookNotification{
		EventID:              "payphone:" + string(cb.ID),
		EventType:            "transaction",
		GatewayTransactionID: string(cb.ID),
		OrderNumber:          cb.ClientTransactionID,
		NeedsQuery:           true,
	}, nil
}
