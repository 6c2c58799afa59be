package billing

import (
	"time"

	"github.com/backoffice/saas/internal/domain/shared"
	"github.com/google/uuid"
)

// WebhookStatus tracks what happened to an inbound webhook
type WebhookStatus string

const (
	WebhookReceived  WebhookStatus = "received"
	WebhookProcessed WebhookStatus = "processed"
	WebhookIgnored   WebhookStatus = "ignored"
	WebhookFailed    WebhookStatus = "failed"
)

// WebhookEvent is the persisted inbox record of a gateway callback
type WebhookEvent struct {
	shared.BaseEntity
	Gateway     GatewayType
	EventID     string
	EventType   string
	Headers     map[string]string
	Payload     string
	Status      WebhookStatus
	Error       string
	Attempts    int
	TenantID    *uuid.UUID
	PaymentID   *uuid.UUID
	ProcessedAt *time.Time
}

// recordedHeaders are the headers kept for later inspection
var recordedHeaders = []string{
	"content-type", "user-agent", "x-request-id", "x-signature", "x-culqi-signature",
}

// NewWebhookEvent records a callback as received
func NewWebhookEvent(gateway GatewayType, req WebhookRequest) *WebhookEvent {
	headers := make(map[string]string)
	for _, h := range recordedHeaders {
		if v := req.Header(h); v != "" {
			headers[h] = v
		}
	}
	return &WebhookEvent{
		BaseEntity: shared.NewBaseEntity(),
		Gateway:    gateway,
		Headers:    headers,
		Payload:    string(req.Body),
		Status:     WebhookReceived,
		Attempts:   1,
	}
}

// Identify stores the decoded identity of the notification
func (w *WebhookEvent) Identify(n *WebhookNotification) {
	w.EventID = n.EventID
	w.EventType = n.EventType
	w.Touch()
}

// MarkProcessed closes the record as handled for payment
func (w *WebhookEvent) MarkProcessed(p *Payment) {
	w.finish(WebhookProcessed, "")
	w.PaymentID = &p.ID
	w.TenantID = &p.TenantID
}

// MarkIgnored closes the record without effect
func (w *WebhookEvent) MarkIgnored(reason string) {
	w.finish(WebhookIgnored, reason)
}

// MarkFailed closes the record with an error
func (w *WebhookEvent) MarkFailed(err error) {
	w.finish(WebhookFailed, err.Error())
}

func (w *WebhookEvent) finish(status WebhookStatus, msg string) {
	now := time.Now().UTC()
	w.Status = status
	w.Error = msg
	w.ProcessedAt = &now
	w.Touch()
}
