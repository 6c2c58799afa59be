// Package notification sends transactional email.
package notification

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/resend/resend-go/v2"
	"go.uber.org/zap"
)

var ErrNoRecipient = errors.New("notification: message has no recipient")

// Message is a rendered email
type Message struct {
	To      []string
	Subject string
	HTML    string
	Text    string
	// Category is sent as a tag for filtering in the provider dashboard
	Category string
	TenantID string
}

// Validate checks the message
func (m Message) Validate() error {
	if len(m.To) == 0 {
		return ErrNoRecipient
	}
	if strings.TrimSpace(m.Subject) == "" {
		return errors.New("notification: subject is required")
	}
	return nil
}

// Sender delivers messages and returns the provider message id
//
//go:generate mockgen -destination=mocks/mock_sender.go -package=mocks . Sender
type Sender interface {
	Send(ctx context.Context, msg Message) (string, error)
}

// ResendSender sends through the Resend API
type ResendSender struct {
	client *resend.Client
	from   string
	logger *zap.Logger
}

// NewResendSender creates a sender. baseURL overrides the API endpoint and
// is empty outside tests.
func NewResendSender(apiKey, from, baseURL string, logger *zap.Logger) (*ResendSender, error) {
	if apiKey == "" {
		return nil, errors.New("notification: resend api key is required")
	}
	if from == "" {
		return nil, errors.New("notification: from address is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	client := resend.NewClient(apiKey)
	if baseURL != "" {
		u, err := url.Parse(strings.TrimRight(baseURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("notification: invalid base url: %w", err)
		}
		client.BaseURL = u
	}
	return &ResendSender{client: client, from: from, logger: logger}, nil
}

// Send implements Sender
func (s *ResendSender) Send(ctx context.Context, msg Message) (string, error) {
	if err := msg.Validate(); err != nil {
		return "", err
	}
	req := &resend.SendEmailRequest{
		From:    s.from,
		To:      msg.To,
		Subject: msg.Subject,
		Html:    msg.HTML,
		Text:    msg.Text,
		Headers: map[string]string{"X-Entity-Ref-ID": uuid.New().String()},
	}
	if msg.Category != "" {
		req.Tags = append(req.Tags, resend.Tag{Name: "category", Value: msg.Category})
	}
	if msg.TenantID != "" {
		req.Tags = append(req.Tags, resend.Tag{Name: "tenant_id", Value: strings.ReplaceAll(msg.TenantID, "-", "_")})
	}

	sent, err := s.client.Emails.SendWithContext(ctx, req)
	if err != nil {
		s.logger.Error("Failed to send email",
			zap.Strings("to", msg.To),
			zap.String("category", msg.Category),
			zap.Error(err))
		return "", fmt.Errorf("failed to send email: %w", err)
	}
	s.logger.Info("Email sent",
		zap.String("email_id", sent.Id),
		zap.Strings("to", msg.To),
		zap.String("category", msg.Category))
	return sent.Id, nil
}

// LogSender writes messages to the log instead of sending them. It is used
// when no provider key is configured.
type LogSender struct {
	logger *zap.Logger
}

// NewLogSender creates a LogSender
func NewLogSender(logger *zap.Logger) *LogSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSender{logger: logger}
}

// Send implements Sender
func (s *LogSender) Send(_ context.Context, msg Message) (string, error) {
	if err := msg.Validate(); err != nil {
		return "", err
	}
	id := "log-" + uuid.NewString()
	s.logger.Info("Email not sent, no provider configured",
		zap.String("email_id", id),
		zap.Strings("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.String("category", msg.Category))
	return id, nil
}

// NewSender picks Resend when a key is configured
func NewSender(apiKey, from string, logger *zap.Logger) (Sender, error) {
	if apiKey == "" {
		return NewLogSender(logger), nil
	}
	return NewResendSender(apiKey, from, "", logger)
}
