package handler

import (
	seoapp "github.com/backoffice/saas/internal/application/seo"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// SeoHandler handles search metadata of pages, products, categories and home
type SeoHandler struct {
	BaseHandler
	seoService *seoapp.SeoService
}

// NewSeoHandler creates a new SeoHandler
func NewSeoHandler(seoService *seoapp.SeoService) *SeoHandler {
	return &SeoHandler{seoService: seoService}
}

// Upsert godoc
// @Summary      Create or replace the metadata of a subject
// @Tags         seo
// @Router       /seo [put]
func (h *SeoHandler) Upsert(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	var req seoapp.UpsertSeoRequest
	if !h.bindJSON(c, &req) {
		return
	}
	meta, err := h.seoService.Upsert(c.Request.Context(), tenantID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, meta)
}

// List godoc
// @Tags         seo
// @Router       /seo [get]
func (h *SeoHandler) List(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	var filter seoapp.SeoListFilter
	if !h.bindQuery(c, &filter) {
		return
	}
	items, total, err := h.seoService.List(c.Request.Context(), tenantID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, items, total, filter.Page, filter.PageSize)
}

// Get godoc
// @Param        subject_type query string true "page, product, category or home"
// @Param        subject_id query string false "uuid, empty for home"
// @Tags         seo
// @Router       /seo/subject [get]
func (h *SeoHandler) Get(c *gin.Context) {
	tenantID, ref, ok := h.subject(c)
	if !ok {
		return
	}
	meta, err := h.seoService.Get(c.Request.Context(), tenantID, ref)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, meta)
}

// Delete godoc
// @Tags         seo
// @Router       /seo/subject [delete]
func (h *SeoHandler) Delete(c *gin.Context) {
	tenantID, ref, ok := h.subject(c)
	if !ok {
		return
	}
	if err := h.seoService.Delete(c.Request.Context(), tenantID, ref); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// Analyze godoc
// @Summary      Score the metadata of a subject
// @Tags         seo
// @Router       /seo/analyze [get]
func (h *SeoHandler) Analyze(c *gin.Context) {
	tenantID, ref, ok := h.subject(c)
	if !ok {
		return
	}
	report, err := h.seoService.Analyze(c.Request.Context(), tenantID, ref)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, report)
}

// subject reads subject_type and subject_id from the query string
func (h *SeoHandler) subject(c *gin.Context) (uuid.UUID, seoapp.SubjectRef, bool) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return uuid.Nil, seoapp.SubjectRef{}, false
	}
	ref := seoapp.SubjectRef{Type: c.Query("subject_type")}
	if ref.Type == "" {
		h.BadRequest(c, "subject_type is required")
		return uuid.Nil, seoapp.SubjectRef{}, false
	}
	if raw := c.Query("subject_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			h.BadRequest(c, "Invalid subject_id format")
			return uuid.Nil, seoapp.SubjectRef{}, false
		}
		ref.ID = &id
	}
	return tenantID, ref, true
}
