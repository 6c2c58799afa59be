package handler

import (
	"context"

	contentapp "github.com/backoffice/saas/internal/application/content"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// PageHandler handles editor pages of the current tenant
type PageHandler struct {
	BaseHandler
	pageService *contentapp.PageService
}

// NewPageHandler creates a new PageHandler
func NewPageHandler(pageService *contentapp.PageService) *PageHandler {
	return &PageHandler{pageService: pageService}
}

// Create godoc
// @Summary      Create a draft page
// @Tags         pages
// @Router       /pages [post]
func (h *PageHandler) Create(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	var req contentapp.PageRequest
	if !h.bindJSON(c, &req) {
		return
	}
	page, err := h.pageService.Create(c.Request.Context(), tenantID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, page)
}

// List godoc
// @Router       /pages [get]
func (h *PageHandler) List(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	var filter contentapp.PageListFilter
	if !h.bindQuery(c, &filter) {
		return
	}
	pages, total, err := h.pageService.List(c.Request.Context(), tenantID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, pages, total, filter.Page, filter.PageSize)
}

// GetByID godoc
// @Router       /pages/{id} [get]
func (h *PageHandler) GetByID(c *gin.Context) {
	h.withPage(c, h.pageService.GetByID)
}

// Update godoc
// @Router       /pages/{id} [put]
func (h *PageHandler) Update(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	var req contentapp.PageRequest
	if !h.bindJSON(c, &req) {
		return
	}
	page, err := h.pageService.Update(c.Request.Context(), tenantID, id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, page)
}

// Publish godoc
// @Router       /pages/{id}/publish [post]
func (h *PageHandler) Publish(c *gin.Context) {
	h.withPage(c, h.pageService.Publish)
}

// Unpublish godoc
// @Router       /pages/{id}/unpublish [post]
func (h *PageHandler) Unpublish(c *gin.Context) {
	h.withPage(c, h.pageService.Unpublish)
}

// Delete godoc
// @Router       /pages/{id} [delete]
func (h *PageHandler) Delete(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	if err := h.pageService.Delete(c.Request.Context(), tenantID, id); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

func (h *PageHandler) withPage(c *gin.Context, fn func(context.Context, uuid.UUID, uuid.UUID) (*contentapp.PageResponse, error)) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	page, err := fn(c.Request.Context(), tenantID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, page)
}
