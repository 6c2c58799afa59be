package payment

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/backoffice/saas/internal/domain/billing"
	infraconfig "github.com/backoffice/saas/internal/infrastructure/config"
	"go.uber.org/zap"
)

const (
	culqiAPIBaseURL     = "https://api.culqi.com"
	culqiChargesPath    = "/v2/charges"
	culqiChargePath     = "/v2/charges/%s"
	culqiRefundsPath    = "/v2/refunds"
	culqiSignatureHdr   = "x-culqi-signature"
	culqiSuccessOutcome = "venta_exitosa"
)

var ErrCulqiMissingSecretKey = errors.New("culqi: missing secret key")

// CulqiAdapter charges tokenized cards through the Culqi API
type CulqiAdapter struct {
	webhookSecret string
	client        *apiClient
	logger        *zap.Logger
}

// NewCulqiAdapter creates a new Culqi adapter
func NewCulqiAdapter(cfg infraconfig.CulqiConfig, logger *zap.Logger) (*CulqiAdapter, error) {
	if cfg.SecretKey == "" {
		return nil, ErrCulqiMissingSecretKey
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = culqiAPIBaseURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CulqiAdapter{
		webhookSecret: cfg.WebhookSecret,
		client:        newAPIClient(billing.GatewayCulqi, baseURL, map[string]string{"Authorization": "Bearer " + cfg.SecretKey}, logger),
		logger:        logger,
	}, nil
}

// Type returns the gateway type
func (a *CulqiAdapter) Type() billing.GatewayType { return billing.GatewayCulqi }

// CreatePayment charges the card token synchronously
func (a *CulqiAdapter) CreatePayment(ctx context.Context, req *billing.CreatePaymentRequest) (*billing.CreatePaymentResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.CardToken == "" {
		return nil, billing.ErrPaymentMissingCardToken
	}
	metadata := map[string]string{"order_number": req.OrderNumber}
	for k, v := range req.Metadata {
		metadata[k] = v
	}
	body := culqiChargeRequest{
		Amount:       toCents(req.Amount),
		CurrencyCode: strings.ToUpper(req.Currency),
		Email:        req.PayerEmail,
		SourceID:     req.CardToken,
		Description:  truncate(req.Description, 80),
		Capture:      true,
		Metadata:     metadata,
	}

	var charge culqiCharge
	raw, err := a.client.do(ctx, http.MethodPost, culqiChargesPath, body, &charge)
	if err != nil {
		// declined cards come back as 402 with a user facing message
		var httpErr *HTTPError
		if errors.As(err, &httpErr) && (httpErr.StatusCode == http.StatusPaymentRequired || httpErr.StatusCode == http.StatusBadRequest) {
			var ce culqiError
			if jsonErr := json.Unmarshal([]byte(httpErr.Body), &ce); jsonErr == nil && ce.Object == "error" && ce.Type != "authentication_error" {
				return &billing.CreatePaymentResult{
					GatewayTransactionID: ce.ChargeID,
					Status:               billing.PaymentStatusFailed,
					FailureReason:        firstNonEmpty(ce.UserMessage, ce.MerchantMessage, ce.Code),
					RawStatus:            firstNonEmpty(ce.DeclineCode, ce.Code, ce.Type),
					Raw:                  httpErr.Body,
				}, nil
			}
		}
		return nil, err
	}

	status, reason := culqiChargeStatus(&charge)
	return &billing.CreatePaymentResult{
		GatewayTransactionID: charge.ID,
		Status:               status,
		FailureReason:        reason,
		RawStatus:            charge.Outcome.Type,
		Raw:                  string(raw),
	}, nil
}

// QueryPayment reads a charge. Culqi charges can only be looked up by id.
func (a *CulqiAdapter) QueryPayment(ctx context.Context, req *billing.QueryPaymentRequest) (*billing.QueryPaymentResult, error) {
	if req.GatewayTransactionID == "" {
		return nil, billing.ErrPaymentInvalidQuery
	}
	var charge culqiCharge
	raw, err := a.client.do(ctx, http.MethodGet, fmt.Sprintf(culqiChargePath, req.GatewayTransactionID), nil, &charge)
	if err != nil {
		return nil, err
	}
	status, reason := culqiChargeStatus(&charge)
	result := &billing.QueryPaymentResult{
		GatewayTransactionID: charge.ID,
		OrderNumber:          charge.Metadata["order_number"],
		Status:               status,
		FailureReason:        reason,
		RawStatus:            charge.Outcome.Type,
		Raw:                  string(raw),
	}
	if status.IsSuccess() || status == billing.PaymentStatusRefunded {
		result.PaidAmount = fromCents(charge.Amount)
		if ms := firstPositive(charge.CaptureDate, charge.CreationDate); ms > 0 {
			t := time.UnixMilli(ms).UTC()
			result.PaidAt = &t
		}
	}
	return result, nil
}

// Refund returns all or part of a charge
func (a *CulqiAdapter) Refund(ctx context.Context, req *billing.RefundRequest) (*billing.RefundResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	body := culqiRefundRequest{
		Amount:   toCents(req.Amount),
		ChargeID: req.GatewayTransactionID,
		Reason:   "solicitud_comprador",
	}
	var refund culqiRefund
	raw, err := a.client.do(ctx, http.MethodPost, culqiRefundsPath, body, &refund)
	if err != nil {
		return nil, err
	}
	return &billing.RefundResult{RefundID: refund.ID, Raw: string(raw)}, nil
}

// ParseWebhook verifies the X-Culqi-Signature HMAC when a secret is
// configured. Without one, the notification is trusted only after a query.
func (a *CulqiAdapter) ParseWebhook(_ context.Context, req billing.WebhookRequest) (*billing.WebhookNotification, error) {
	needsQuery := false
	if a.webhookSecret != "" {
		if !signatureMatches(hmacHex(a.webhookSecret, req.Body), req.Header(culqiSignatureHdr)) {
			return nil, billing.ErrGatewayInvalidCallback
		}
	} else {
		needsQuery = true
	}

	var event culqiEvent
	if err := json.Unmarshal(req.Body, &event); err != nil || event.Type == "" {
		return nil, billing.ErrGatewayMalformedNotice
	}
	charge, err := decodeCulqiData(event.Data)
	if err != nil {
		return nil, billing.ErrGatewayMalformedNotice
	}

	eventID := event.ID
	if eventID == "" {
		sum := sha256.Sum256(req.Body)
		eventID = hex.EncodeToString(sum[:16])
	}
	n := &billing.WebhookNotification{
		EventID:              eventID,
		EventType:            event.Type,
		GatewayTransactionID: charge.ID,
		OrderNumber:          charge.Metadata["order_number"],
		NeedsQuery:           needsQuery,
	}
	switch event.Type {
	case "charge.creation.succeeded":
		n.Status, n.FailureReason = culqiChargeStatus(charge)
	case "charge.creation.failed":
		n.Status = billing.PaymentStatusFailed
		n.FailureReason = firstNonEmpty(charge.Outcome.UserMessage, charge.Outcome.MerchantMessage)
	default:
		// refunds and other events carry no reliable payment status
		n.NeedsQuery = true
	}
	if strings.HasPrefix(event.Type, "refund.") {
		// refund events carry the refund object; the charge id is in charge_id
		var ref struct {
			ChargeID string `json:"charge_id"`
		}
		if data, err := unwrapCulqiData(event.Data); err == nil && json.Unmarshal(data, &ref) == nil && ref.ChargeID != "" {
			n.GatewayTransactionID = ref.ChargeID
		}
	}
	return n, nil
}

func culqiChargeStatus(c *culqiCharge) (billing.PaymentStatus, string) {
	switch {
	case c.AmountRefunded > 0 && c.AmountRefunded >= c.Amount:
		return billing.PaymentStatusRefunded, ""
	case c.AmountRefunded > 0:
		return billing.PaymentStatusPartialRefunded, ""
	case c.Outcome.Type == culqiSuccessOutcome:
		return billing.PaymentStatusPaid, ""
	}
	return billing.PaymentStatusFailed, firstNonEmpty(c.Outcome.UserMessage, c.Outcome.MerchantMessage, c.Outcome.Type)
}

// unwrapCulqiData accepts the data field either as an object or as a
// JSON-encoded string, since Culqi has sent both.
func unwrapCulqiData(data json.RawMessage) (json.RawMessage, error) {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, err
		}
		return json.RawMessage(s), nil
	}
	return data, nil
}

func decodeCulqiData(data json.RawMessage) (*culqiCharge, error) {
	inner, err := unwrapCulqiData(data)
	if err != nil {
		return nil, err
	}
	var c culqiCharge
	if len(inner) == 0 {
		return &c, nil
	}
	if err := json.Unmarshal(inner, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstPositive(values ...int64) int64 {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}
