package middleware

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/backoffice/saas/internal/domain/shared"
	"github.com/backoffice/saas/internal/domain/tenant"
	"github.com/backoffice/saas/internal/infrastructure/logger"
	"github.com/backoffice/saas/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Gin context keys and the header carrying the tenant
const (
	TenantIDKey     = "tenant_id"
	TenantKey       = "tenant"
	TenantHeaderKey = "X-Tenant-ID"
)

// TenantResolver finds a tenant by id or slug
type TenantResolver interface {
	Resolve(ctx context.Context, idOrSlug string) (*tenant.Tenant, error)
}

// TenantConfig holds configuration for the tenant middleware
type TenantConfig struct {
	Resolver TenantResolver
	// BaseDomain enables {slug}.{BaseDomain} resolution when set
	BaseDomain string
	// RequireOperational rejects suspended, cancelled and expired-trial
	// tenants with 403. Billing routes leave it off so tenants can pay.
	RequireOperational bool
	Logger             *zap.Logger
	Now                func() time.Time
}

// Tenant resolves the tenant of the request from the X-Tenant-ID header (id
// or slug), falling back to the subdomain.
func Tenant(cfg TenantConfig) gin.HandlerFunc {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return func(c *gin.Context) {
		ref, method := strings.TrimSpace(c.GetHeader(TenantHeaderKey)), "header"
		if ref == "" && cfg.BaseDomain != "" {
			ref, method = extractTenantFromSubdomain(c.Request.Host, cfg.BaseDomain), "subdomain"
		}
		if ref == "" {
			abortTenant(c, http.StatusBadRequest, dto.ErrCodeTenantRequired, "Tenant identification required")
			return
		}

		t, err := cfg.Resolver.Resolve(c.Request.Context(), ref)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				abortTenant(c, http.StatusNotFound, dto.ErrCodeNotFound, "Tenant not found")
				return
			}
			logger.FromContext(c.Request.Context(), log).Error("Tenant resolution failed",
				zap.String("tenant_ref", ref), zap.Error(err))
			abortTenant(c, http.StatusInternalServerError, dto.ErrCodeInternal, "An unexpected error occurred")
			return
		}
		if cfg.RequireOperational && !t.IsOperational(now()) {
			abortTenant(c, http.StatusForbidden, dto.ErrCodeForbidden, "Tenant is not operational")
			return
		}

		c.Set(TenantIDKey, t.ID)
		c.Set(TenantKey, t)
		c.Request = c.Request.WithContext(logger.WithTenantID(c.Request.Context(), t.ID.String()))
		log.Debug("Tenant identified",
			zap.String("tenant_id", t.ID.String()),
			zap.String("method", method))
		c.Next()
	}
}

// extractTenantFromSubdomain returns "acme" for "acme.example.com" with base
// "example.com". www and the bare base domain yield "".
func extractTenantFromSubdomain(host, baseDomain string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.ToLower(host)
	suffix := "." + strings.ToLower(baseDomain)
	if !strings.HasSuffix(host, suffix) {
		return ""
	}
	sub := strings.TrimSuffix(host, suffix)
	if sub == "" || sub == "www" {
		return ""
	}
	parts := strings.Split(sub, ".")
	return parts[len(parts)-1]
}

func abortTenant(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, dto.NewErrorResponseWithRequestID(code, message, GetRequestID(c)))
}

// GetTenantID returns the tenant id set by Tenant, or uuid.Nil
func GetTenantID(c *gin.Context) uuid.UUID {
	if v, ok := c.Get(TenantIDKey); ok {
		if id, ok := v.(uuid.UUID); ok {
			return id
		}
	}
	return uuid.Nil
}

// GetTenant returns the tenant set by Tenant, or nil
func GetTenant(c *gin.Context) *tenant.Tenant {
	if v, ok := c.Get(TenantKey); ok {
		if t, ok := v.(*tenant.Tenant); ok {
			return t
		}
	}
	return nil
}
