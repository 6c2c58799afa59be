package payment

import (
	"encoding/json"
	"strings"
)

type mpItem struct {
	ID         string  `json:"id,omitempty"`
	Title      string  `json:"title"`
	Quantity   int     `json:"quantity"`
	UnitPrice  float64 `json:"unit_price"`
	CurrencyID string  `json:"currency_id"`
}

type mpBackURLs struct {
	Success string `json:"success,omitempty"`
	Failure string `json:"failure,omitempty"`
	Pending string `json:"pending,omitempty"`
}

type mpPreferenceRequest struct {
	Items             []mpItem          `json:"items"`
	Payer             *mpPayer          `json:"payer,omitempty"`
	ExternalReference string            `json:"external_reference"`
	NotificationURL   string            `json:"notification_url,omitempty"`
	BackURLs          *mpBackURLs       `json:"back_urls,omitempty"`
	AutoReturn        string            `json:"auto_return,omitempty"`
	Metadata          map[string]string `json:"metadata,omitempty"`
}

type mpPayer struct {
	Email string `json:"email,omitempty"`
}

type mpPreference struct {
	ID               string `json:"id"`
	InitPoint        string `json:"init_point"`
	SandboxInitPoint string `json:"sandbox_init_point"`
}

// jsonID decodes ids sent either as numbers or as strings
type jsonID string

func (id *jsonID) UnmarshalJSON(b []byte) error {
	var n json.Number
	if err := json.Unmarshal(b, &n); err == nil {
		*id = jsonID(n.String())
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	*id = jsonID(strings.TrimSpace(s))
	return nil
}

type mpPayment struct {
	ID                        jsonID  `json:"id"`
	Status                    string  `json:"status"`
	StatusDetail              string  `json:"status_detail"`
	ExternalReference         string  `json:"external_reference"`
	TransactionAmount         float64 `json:"transaction_amount"`
	TransactionAmountRefunded float64 `json:"transaction_amount_refunded"`
	CurrencyID                string  `json:"currency_id"`
	DateApproved              string  `json:"date_approved"`
}

type mpSearchResult struct {
	Results []mpPayment `json:"results"`
}

type mpRefundRequest struct {
	Amount float64 `json:"amount"`
}

type mpRefund struct {
	ID     jsonID `json:"id"`
	Status string `json:"status"`
}

type mpNotification struct {
	ID     jsonID `json:"id"`
	Type   string `json:"type"`
	Topic  string `json:"topic"`
	Action string `json:"action"`
	Data   struct {
		ID jsonID `json:"id"`
	} `json:"data"`
}
