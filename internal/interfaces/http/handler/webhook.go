package handler

import (
	"errors"
	"io"
	"net/http"
	"strings"

	billingapp "github.com/backoffice/saas/internal/application/billing"
	"github.com/backoffice/saas/internal/domain/billing"
	"github.com/backoffice/saas/internal/infrastructure/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const maxWebhookBody = 1 << 20

// WebhookHandler receives gateway notifications. It runs without tenant
// resolution; the payment found in the notification decides the tenant.
type WebhookHandler struct {
	BaseHandler
	billingService *billingapp.BillingService
}

// NewWebhookHandler creates a new WebhookHandler
func NewWebhookHandler(billingService *billingapp.BillingService) *WebhookHandler {
	return &WebhookHandler{billingService: billingService}
}

// Receive godoc
// @Summary      Gateway webhook
// @Tags         webhooks
// @Router       /webhooks/{gateway} [post]
func (h *WebhookHandler) Receive(c *gin.Context) {
	gateway := c.Param("gateway")
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody+1))
	if err != nil {
		h.BadRequest(c, "Could not read webhook body")
		return
	}
	if len(body) > maxWebhookBody {
		h.bindError(c, &http.MaxBytesError{Limit: maxWebhookBody})
		return
	}
	h.process(c, gateway, body)
}

// PayPhoneReturn godoc
// @Summary      PayPhone browser return
// @Description  PayPhone redirects the buyer with ?id=&clientTransactionId=
// @Tags         webhooks
// @Router       /webhooks/payphone/return [get]
func (h *WebhookHandler) PayPhoneReturn(c *gin.Context) {
	h.process(c, "payphone", nil)
}

func (h *WebhookHandler) process(c *gin.Context, gateway string, body []byte) {
	req := billing.WebhookRequest{
		Headers: make(map[string]string, len(c.Request.Header)),
		Query:   make(map[string]string),
		Body:    body,
	}
	for name := range c.Request.Header {
		req.Headers[strings.ToLower(name)] = c.Request.Header.Get(name)
	}
	for key, values := range c.Request.URL.Query() {
		if len(values) > 0 {
			req.Query[key] = values[0]
		}
	}

	result, err := h.billingService.ProcessWebhook(c.Request.Context(), gateway, req)
	if err != nil {
		if !errors.Is(err, billing.ErrGatewayInvalidCallback) {
			logger.FromContext(c.Request.Context()).Warn("Webhook not processed",
				zap.String("gateway", gateway), zap.Error(err))
		}
		h.HandleError(c, err)
		return
	}
	if c.Request.Method == http.MethodGet {
		h.Success(c, result)
		return
	}
	c.JSON(http.StatusOK, webhookAck(gateway))
}

// webhookAck is the body each gateway expects on success
func webhookAck(gateway string) gin.H {
	if gt, ok := billing.ParseGatewayType(gateway); ok && gt == billing.GatewayPayPhone {
		return gin.H{"status": "ok"}
	}
	return gin.H{"received": true}
}
