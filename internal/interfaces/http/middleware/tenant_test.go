package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/backoffice/saas/internal/domain/shared"
	"github.com/backoffice/saas/internal/domain/tenant"
	"github.com/backoffice/saas/internal/infrastructure/logger"
)

type fakeResolver struct {
	tenants []*tenant.Tenant
	err     error
}

func (f *fakeResolver) Resolve(_ context.Context, ref string) (*tenant.Tenant, error) {
	if f.err != nil {
		return nil, f.err
	}
	for _, t := range f.tenants {
		if t.ID.String() == ref || t.Slug == ref {
			return t, nil
		}
	}
	return nil, shared.NotFound("tenant")
}

func newTenant(t *testing.T, name string) *tenant.Tenant {
	t.Helper()
	tn, err := tenant.NewTenant(name, "owner@example.com", tenant.DefaultSettings())
	require.NoError(t, err)
	return tn
}

func tenantRouter(cfg TenantConfig) *gin.Engine {
	router := gin.New()
	router.Use(RequestID(), Tenant(cfg))
	router.GET("/test", func(c *gin.Context) {
		if GetTenant(c) == nil || GetTenant(c).ID != GetTenantID(c) {
			c.Status(http.StatusTeapot)
			return
		}
		c.String(http.StatusOK, GetTenantID(c).String()+"|"+logger.GetTenantID(c.Request.Context()))
	})
	return router
}

func TestTenant_ResolvesHeaderAndSubdomain(t *testing.T) {
	acme := newTenant(t, "Acme Store")
	router := tenantRouter(TenantConfig{
		Resolver:           &fakeResolver{tenants: []*tenant.Tenant{acme}},
		BaseDomain:         "backoffice.test",
		RequireOperational: true,
		Logger:             zaptest.NewLogger(t),
	})
	want := acme.ID.String() + "|" + acme.ID.String()

	cases := []struct {
		name   string
		header string
		host   string
	}{
		{"header id", acme.ID.String(), "api.example.com"},
		{"header slug", "acme-store", "api.example.com"},
		{"subdomain", "", "acme-store.backoffice.test"},
		{"subdomain with port", "", "acme-store.backoffice.test:8080"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			req.Host = tc.host
			if tc.header != "" {
				req.Header.Set(TenantHeaderKey, tc.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, want, w.Body.String())
		})
	}
}

func TestTenant_Rejections(t *testing.T) {
	acme := newTenant(t, "Acme Store")
	closed := newTenant(t, "Closed Shop")
	require.NoError(t, closed.Suspend("unpaid"))
	resolver := &fakeResolver{tenants: []*tenant.Tenant{acme, closed}}

	send := func(router *gin.Engine, ref string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		if ref != "" {
			req.Header.Set(TenantHeaderKey, ref)
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	strict := tenantRouter(TenantConfig{Resolver: resolver, RequireOperational: true})
	assert.Equal(t, http.StatusBadRequest, send(strict, "").Code)
	assert.Equal(t, http.StatusNotFound, send(strict, uuid.NewString()).Code)
	w := send(strict, closed.Slug)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "ERR_FORBIDDEN")

	lenient := tenantRouter(TenantConfig{Resolver: resolver})
	assert.Equal(t, http.StatusOK, send(lenient, closed.Slug).Code, "billing routes accept suspended tenants")

	broken := tenantRouter(TenantConfig{Resolver: &fakeResolver{err: errors.New("db down")}})
	assert.Equal(t, http.StatusInternalServerError, send(broken, "acme-store").Code)
}

func TestExtractTenantFromSubdomain(t *testing.T) {
	cases := map[string]string{
		"acme.backoffice.test":      "acme",
		"ACME.backoffice.test:443":  "acme",
		"shop.acme.backoffice.test": "acme",
		"www.backoffice.test":       "",
		"backoffice.test":           "",
		"acme.other.test":           "",
	}
	for host, want := range cases {
		assert.Equal(t, want, extractTenantFromSubdomain(host, "backoffice.test"), host)
	}
}
