package handler

import (
	"github.com/backoffice/saas/internal/application/dashboard"
	"github.com/gin-gonic/gin"
)

// DashboardHandler serves the tenant summary
type DashboardHandler struct {
	BaseHandler
	service *dashboard.Service
}

// NewDashboardHandler creates a new DashboardHandler
func NewDashboardHandler(service *dashboard.Service) *DashboardHandler {
	return &DashboardHandler{service: service}
}

// Summary godoc
// @Summary      Usage, limits, revenue and subscription state
// @Tags         dashboard
// @Router       /dashboard/summary [get]
func (h *DashboardHandler) Summary(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	summary, err := h.service.Summary(c.Request.Context(), tenantID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, summary)
}
