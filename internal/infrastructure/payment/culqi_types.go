package payment

import "encoding/json"

type culqiChargeRequest struct {
	Amount       int64             `json:"amount"`
	CurrencyCode string            `json:"currency_code"`
	Email        string            `json:"email"`
	SourceID     string            `json:"source_id"`
	Description  string            `json:"description,omitempty"`
	Capture      bool              `json:"capture"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

type culqiOutcome struct {
	Type            string `json:"type"`
	Code            string `json:"code"`
	MerchantMessage string `json:"merchant_message"`
	UserMessage     string `json:"user_message"`
}

type culqiCharge struct {
	Object         string            `json:"object"`
	ID             string            `json:"id"`
	Amount         int64             `json:"amount"`
	AmountRefunded int64             `json:"amount_refunded"`
	CurrencyCode   string            `json:"currency_code"`
	CreationDate   int64             `json:"creation_date"`
	CaptureDate    int64             `json:"capture_date"`
	Outcome        culqiOutcome      `json:"outcome"`
	Metadata       map[string]string `json:"metadata"`
}

type culqiError struct {
	Object          string `json:"object"`
	Type            string `json:"type"`
	ChargeID        string `json:"charge_id"`
	Code            string `json:"code"`
	DeclineCode     string `json:"decline_code"`
	MerchantMessage string `json:"merchant_message"`
	UserMessage     string `json:"user_message"`
}

type culqiRefundRequest struct {
	Amount   int64  `json:"amount"`
	ChargeID string `json:"charge_id"`
	Reason   string `json:"reason"`
}

type culqiRefund struct {
	ID     string `json:"id"`
	Object string `json:"object"`
}

type culqiEvent struct {
	Object string          `json:"object"`
	ID     string          `json:"id"`
	Type   string          `json:"type"`
	Data   json.RawMessage `json:"data"`
}
