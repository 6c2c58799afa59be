package handler

import (
	"context"
	"net/http"

	invoicingapp "github.com/backoffice/saas/internal/application/invoicing"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// InvoiceHandler handles invoice drafts, issuing and rendering
type InvoiceHandler struct {
	BaseHandler
	invoiceService *invoicingapp.InvoiceService
}

// NewInvoiceHandler creates a new InvoiceHandler
func NewInvoiceHandler(invoiceService *invoicingapp.InvoiceService) *InvoiceHandler {
	return &InvoiceHandler{invoiceService: invoiceService}
}

// Create godoc
// @Summary      Create a draft invoice
// @Tags         invoices
// @Router       /invoices [post]
func (h *InvoiceHandler) Create(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	var req invoicingapp.DraftRequest
	if !h.bindJSON(c, &req) {
		return
	}
	inv, err := h.invoiceService.CreateDraft(c.Request.Context(), tenantID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, inv)
}

// List godoc
// @Summary      List invoices
// @Tags         invoices
// @Router       /invoices [get]
func (h *InvoiceHandler) List(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	var filter invoicingapp.InvoiceListFilter
	if !h.bindQuery(c, &filter) {
		return
	}
	invoices, total, err := h.invoiceService.List(c.Request.Context(), tenantID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, invoices, total, filter.Page, filter.PageSize)
}

// GetByID godoc
// @Router       /invoices/{id} [get]
func (h *InvoiceHandler) GetByID(c *gin.Context) {
	h.withInvoice(c, h.invoiceService.GetByID)
}

// Update godoc
// @Summary      Replace a draft
// @Tags         invoices
// @Router       /invoices/{id} [put]
func (h *InvoiceHandler) Update(c *gin.Context) {
	tenantID, id, ok := h.ids(c)
	if !ok {
		return
	}
	var req invoicingapp.DraftRequest
	if !h.bindJSON(c, &req) {
		return
	}
	inv, err := h.invoiceService.UpdateDraft(c.Request.Context(), tenantID, id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, inv)
}

// Delete godoc
// @Summary      Delete a draft
// @Tags         invoices
// @Router       /invoices/{id} [delete]
func (h *InvoiceHandler) Delete(c *gin.Context) {
	tenantID, id, ok := h.ids(c)
	if !ok {
		return
	}
	if err := h.invoiceService.Delete(c.Request.Context(), tenantID, id); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// Issue godoc
// @Summary      Number and issue a draft
// @Tags         invoices
// @Router       /invoices/{id}/issue [post]
func (h *InvoiceHandler) Issue(c *gin.Context) {
	h.withInvoice(c, h.invoiceService.Issue)
}

// MarkPaid godoc
// @Router       /invoices/{id}/pay [post]
func (h *InvoiceHandler) MarkPaid(c *gin.Context) {
	h.withInvoice(c, h.invoiceService.MarkPaid)
}

// Void godoc
// @Summary      Void an issued invoice
// @Tags         invoices
// @Router       /invoices/{id}/void [post]
func (h *InvoiceHandler) Void(c *gin.Context) {
	tenantID, id, ok := h.ids(c)
	if !ok {
		return
	}
	var req invoicingapp.VoidRequest
	if !h.bindJSON(c, &req) {
		return
	}
	inv, err := h.invoiceService.Void(c.Request.Context(), tenantID, id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, inv)
}

// HTML godoc
// @Summary      Printable HTML
// @Tags         invoices
// @Produce      html
// @Router       /invoices/{id}/html [get]
func (h *InvoiceHandler) HTML(c *gin.Context) {
	h.document(c, "inline", h.invoiceService.RenderHTML)
}

// PDF godoc
// @Summary      PDF rendition
// @Tags         invoices
// @Produce      application/pdf
// @Router       /invoices/{id}/pdf [get]
func (h *InvoiceHandler) PDF(c *gin.Context) {
	h.document(c, "attachment", h.invoiceService.RenderPDF)
}

func (h *InvoiceHandler) document(c *gin.Context, disposition string, render func(context.Context, uuid.UUID, uuid.UUID) (*invoicingapp.Document, error)) {
	tenantID, id, ok := h.ids(c)
	if !ok {
		return
	}
	doc, err := render(c.Request.Context(), tenantID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.Header("Content-Disposition", contentDisposition(disposition, doc.FileName))
	c.Data(http.StatusOK, doc.ContentType, doc.Body)
}

func (h *InvoiceHandler) withInvoice(c *gin.Context, fn func(context.Context, uuid.UUID, uuid.UUID) (*invoicingapp.InvoiceResponse, error)) {
	tenantID, id, ok := h.ids(c)
	if !ok {
		return
	}
	inv, err := fn(c.Request.Context(), tenantID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, inv)
}

func (h *InvoiceHandler) ids(c *gin.Context) (uuid.UUID, uuid.UUID, bool) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}
	return tenantID, id, true
}
