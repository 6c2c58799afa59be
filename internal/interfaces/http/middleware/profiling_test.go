package middleware

import (
	"net/http"
	"net/http/httptest"
	"runtime/pprof"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/backoffice/saas/internal/domain/tenant"
	"github.com/backoffice/saas/internal/infrastructure/telemetry"
)

func TestProfiling_Labels(t *testing.T) {
	acme := newTenant(t, "Acme Store")

	var route, method, tenantID string
	router := gin.New()
	router.Use(Tenant(TenantConfig{Resolver: &fakeResolver{tenants: []*tenant.Tenant{acme}}}))
	router.Use(Profiling(DefaultProfilingConfig()))
	router.GET("/products/:id", func(c *gin.Context) {
		ctx := c.Request.Context()
		route, _ = pprof.Label(ctx, telemetry.ProfilingLabelRoute)
		method, _ = pprof.Label(ctx, telemetry.ProfilingLabelMethod)
		tenantID, _ = pprof.Label(ctx, telemetry.ProfilingLabelTenantID)
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/products/42", nil)
	req.Header.Set(TenantHeaderKey, acme.Slug)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "/products/:id", route)
	assert.Equal(t, http.MethodGet, method)
	assert.Equal(t, acme.ID.String(), tenantID)
}

func TestProfiling_SkipsAndDisabled(t *testing.T) {
	cases := []struct {
		name string
		cfg  ProfilingConfig
		path string
	}{
		{"health", DefaultProfilingConfig(), "/health"},
		{"file download", DefaultProfilingConfig(), "/media/files/a/b.png"},
		{"disabled", ProfilingConfig{}, "/products"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			labelled := true
			router := gin.New()
			router.Use(Profiling(tc.cfg))
			router.GET(tc.path, func(c *gin.Context) {
				_, labelled = pprof.Label(c.Request.Context(), telemetry.ProfilingLabelRoute)
				c.Status(http.StatusOK)
			})
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tc.path, nil))
			assert.Equal(t, http.StatusOK, w.Code)
			assert.False(t, labelled)
		})
	}
}
