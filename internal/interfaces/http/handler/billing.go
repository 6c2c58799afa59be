package handler

import (
	billingapp "github.com/backoffice/saas/internal/application/billing"
	"github.com/gin-gonic/gin"
)

// BillingHandler handles checkout, subscriptions and payments of the
// current tenant
type BillingHandler struct {
	BaseHandler
	billingService *billingapp.BillingService
}

// NewBillingHandler creates a new BillingHandler
func NewBillingHandler(billingService *billingapp.BillingService) *BillingHandler {
	return &BillingHandler{billingService: billingService}
}

// Checkout godoc
// @Summary      Start paying for a plan
// @Tags         billing
// @Router       /billing/checkout [post]
func (h *BillingHandler) Checkout(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	var req billingapp.CheckoutRequest
	if !h.bindJSON(c, &req) {
		return
	}
	resp, err := h.billingService.Checkout(c.Request.Context(), tenantID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, resp)
}

// GetSubscription godoc
// @Summary      Current subscription
// @Tags         billing
// @Router       /billing/subscription [get]
func (h *BillingHandler) GetSubscription(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	sub, err := h.billingService.GetSubscription(c.Request.Context(), tenantID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, sub)
}

// CancelSubscription godoc
// @Summary      Cancel the current subscription
// @Tags         billing
// @Router       /billing/subscription/cancel [post]
func (h *BillingHandler) CancelSubscription(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	var req billingapp.CancelSubscriptionRequest
	if c.Request.ContentLength != 0 && !h.bindJSON(c, &req) {
		return
	}
	sub, err := h.billingService.CancelSubscription(c.Request.Context(), tenantID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, sub)
}

// ListPayments godoc
// @Summary      List payments
// @Tags         billing
// @Router       /billing/payments [get]
func (h *BillingHandler) ListPayments(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	var filter billingapp.PaymentListFilter
	if !h.bindQuery(c, &filter) {
		return
	}
	payments, total, err := h.billingService.ListPayments(c.Request.Context(), tenantID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, payments, total, filter.Page, filter.PageSize)
}

// GetPayment godoc
// @Summary      Get a payment
// @Tags         billing
// @Router       /billing/payments/{id} [get]
func (h *BillingHandler) GetPayment(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	p, err := h.billingService.GetPayment(c.Request.Context(), tenantID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, p)
}

// RefundPayment godoc
// @Summary      Refund a paid payment, fully or partially
// @Tags         billing
// @Router       /billing/payments/{id}/refund [post]
func (h *BillingHandler) RefundPayment(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	var req billingapp.RefundPaymentRequest
	if c.Request.ContentLength != 0 && !h.bindJSON(c, &req) {
		return
	}
	p, err := h.billingService.RefundPayment(c.Request.Context(), tenantID, id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, p)
}

// ListWebhookEvents godoc
// @Summary      Inspect the webhook inbox
// @Tags         billing
// @Router       /billing/webhook-events [get]
func (h *BillingHandler) ListWebhookEvents(c *gin.Context) {
	var filter billingapp.WebhookEventFilter
	if !h.bindQuery(c, &filter) {
		return
	}
	events, total, err := h.billingService.ListWebhookEvents(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, events, total, filter.Page, filter.PageSize)
}
