package handler

import (
	"context"

	tenantapp "github.com/backoffice/saas/internal/application/tenant"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// TenantHandler handles tenant sign-up and administration
type TenantHandler struct {
	BaseHandler
	tenantService *tenantapp.TenantService
}

// NewTenantHandler creates a new TenantHandler
func NewTenantHandler(tenantService *tenantapp.TenantService) *TenantHandler {
	return &TenantHandler{tenantService: tenantService}
}

// Create godoc
// @Summary      Sign up a tenant
// @Tags         tenants
// @Router       /tenants [post]
func (h *TenantHandler) Create(c *gin.Context) {
	var req tenantapp.CreateTenantRequest
	if !h.bindJSON(c, &req) {
		return
	}
	t, err := h.tenantService.Create(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, t)
}

// List godoc
// @Summary      List tenants
// @Tags         tenants
// @Router       /tenants [get]
func (h *TenantHandler) List(c *gin.Context) {
	var filter tenantapp.TenantListFilter
	if !h.bindQuery(c, &filter) {
		return
	}
	tenants, total, err := h.tenantService.List(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, tenants, total, filter.Page, filter.PageSize)
}

// GetByID godoc
// @Summary      Get a tenant
// @Tags         tenants
// @Router       /tenants/{id} [get]
func (h *TenantHandler) GetByID(c *gin.Context) {
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	t, err := h.tenantService.GetByID(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, t)
}

// Update godoc
// @Summary      Update a tenant
// @Tags         tenants
// @Router       /tenants/{id} [put]
func (h *TenantHandler) Update(c *gin.Context) {
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	var req tenantapp.UpdateTenantRequest
	if !h.bindJSON(c, &req) {
		return
	}
	t, err := h.tenantService.Update(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, t)
}

// ChangePlan godoc
// @Summary      Move a tenant to another plan
// @Tags         tenants
// @Router       /tenants/{id}/plan [put]
func (h *TenantHandler) ChangePlan(c *gin.Context) {
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	var req tenantapp.ChangePlanRequest
	if !h.bindJSON(c, &req) {
		return
	}
	t, err := h.tenantService.ChangePlan(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, t)
}

// Activate godoc
// @Router       /tenants/{id}/activate [post]
func (h *TenantHandler) Activate(c *gin.Context) {
	h.transition(c, h.tenantService.Activate)
}

// Reactivate godoc
// @Router       /tenants/{id}/reactivate [post]
func (h *TenantHandler) Reactivate(c *gin.Context) {
	h.transition(c, h.tenantService.Reactivate)
}

// Suspend godoc
// @Router       /tenants/{id}/suspend [post]
func (h *TenantHandler) Suspend(c *gin.Context) {
	h.transitionWithReason(c, h.tenantService.Suspend)
}

// Cancel godoc
// @Router       /tenants/{id}/cancel [post]
func (h *TenantHandler) Cancel(c *gin.Context) {
	h.transitionWithReason(c, h.tenantService.Cancel)
}

func (h *TenantHandler) transition(c *gin.Context, fn func(context.Context, uuid.UUID) (*tenantapp.TenantResponse, error)) {
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	t, err := fn(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, t)
}

func (h *TenantHandler) transitionWithReason(c *gin.Context, fn func(context.Context, uuid.UUID, string) (*tenantapp.TenantResponse, error)) {
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	var req tenantapp.StatusChangeRequest
	// the body is optional
	if c.Request.ContentLength != 0 && !h.bindJSON(c, &req) {
		return
	}
	t, err := fn(c.Request.Context(), id, req.Reason)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, t)
}

// Plans godoc
// @Summary      List the plan catalogue
// @Tags         tenants
// @Router       /plans [get]
func (h *TenantHandler) Plans(c *gin.Context) {
	h.Success(c, h.tenantService.Plans())
}
