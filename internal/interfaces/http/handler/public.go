package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	contentapp "github.com/backoffice/saas/internal/application/content"
	seoapp "github.com/backoffice/saas/internal/application/seo"
	"github.com/backoffice/saas/internal/domain/shared"
	"github.com/backoffice/saas/internal/domain/tenant"
	"github.com/gin-gonic/gin"
)

// TenantLookup resolves a tenant by id or slug
type TenantLookup interface {
	Resolve(ctx context.Context, idOrSlug string) (*tenant.Tenant, error)
}

// PublicHandler serves storefront content without tenant headers. The
// tenant comes from the :tenantSlug path segment.
type PublicHandler struct {
	BaseHandler
	tenants       TenantLookup
	pageService   *contentapp.PageService
	seoService    *seoapp.SeoService
	publicBaseURL string
	now           func() time.Time
}

// NewPublicHandler creates a PublicHandler. publicBaseURL may contain a
// {slug} placeholder; otherwise the slug is appended as a path segment.
func NewPublicHandler(tenants TenantLookup, pages *contentapp.PageService, seo *seoapp.SeoService, publicBaseURL string) *PublicHandler {
	return &PublicHandler{
		tenants:       tenants,
		pageService:   pages,
		seoService:    seo,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		now:           time.Now,
	}
}

// Page godoc
// @Summary      A published page with its SEO
// @Tags         public
// @Router       /public/{tenantSlug}/pages/{slug} [get]
func (h *PublicHandler) Page(c *gin.Context) {
	t, ok := h.tenant(c)
	if !ok {
		return
	}
	page, err := h.pageService.GetPublished(c.Request.Context(), t.ID, c.Param("slug"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.Header("Cache-Control", "public, max-age=60")
	h.Success(c, page)
}

// Sitemap godoc
// @Summary      sitemap.xml of the storefront
// @Tags         public
// @Produce      xml
// @Router       /public/{tenantSlug}/sitemap.xml [get]
func (h *PublicHandler) Sitemap(c *gin.Context) {
	t, ok := h.tenant(c)
	if !ok {
		return
	}
	body, err := h.seoService.Sitemap(c.Request.Context(), t.ID, h.siteURL(t.Slug))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.Header("Cache-Control", "public, max-age=300")
	c.Data(http.StatusOK, "application/xml; charset=utf-8", body)
}

// siteURL is the storefront root of a tenant
func (h *PublicHandler) siteURL(slug string) string {
	if strings.Contains(h.publicBaseURL, "{slug}") {
		return strings.ReplaceAll(h.publicBaseURL, "{slug}", slug)
	}
	return h.publicBaseURL + "/" + slug
}

// tenant resolves :tenantSlug. Storefronts of tenants that are not
// operational answer 404.
func (h *PublicHandler) tenant(c *gin.Context) (*tenant.Tenant, bool) {
	t, err := h.tenants.Resolve(c.Request.Context(), c.Param("tenantSlug"))
	if err == nil && !t.IsOperational(h.now()) {
		err = shared.NotFound("tenant")
	}
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			h.NotFound(c, "Site not found")
			return nil, false
		}
		h.HandleError(c, err)
		return nil, false
	}
	return t, true
}
