package router

import (
	"time"

	"github.com/backoffice/saas/internal/infrastructure/config"
	"github.com/backoffice/saas/internal/infrastructure/logger"
	"github.com/backoffice/saas/internal/interfaces/http/handler"
	"github.com/backoffice/saas/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handlers are the endpoints mounted by New. File is nil when objects are
// stored on S3, which serves its own presigned URLs.
type Handlers struct {
	System    *handler.SystemHandler
	Tenant    *handler.TenantHandler
	Billing   *handler.BillingHandler
	Webhook   *handler.WebhookHandler
	Media     *handler.MediaHandler
	File      *handler.FileHandler
	Category  *handler.CategoryHandler
	Product   *handler.ProductHandler
	Invoice   *handler.InvoiceHandler
	Page      *handler.PageHandler
	Seo       *handler.SeoHandler
	Public    *handler.PublicHandler
	Dashboard *handler.DashboardHandler
}

// Config holds what New needs besides the handlers
type Config struct {
	HTTP           config.HTTPConfig
	Tenants        middleware.TenantResolver
	BaseDomain     string
	ServiceName    string
	TracingEnabled bool
	// MediaMaxSize bounds upload bodies; other bodies use HTTP.MaxBodySize
	MediaMaxSize int64
	Logger       *zap.Logger
}

// Engine is the configured gin engine plus the limiters it owns
type Engine struct {
	*gin.Engine
	limiters []*middleware.RateLimiter
}

// Close stops the limiter sweepers
func (e *Engine) Close() {
	for _, l := range e.limiters {
		l.Close()
	}
}

// New builds the gin engine with the middleware chain and every route
func New(cfg Config, h Handlers) (*Engine, error) {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	middleware.SetupValidator()

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		return nil, err
	}
	e := &Engine{Engine: engine}

	tracing := middleware.DefaultTracingConfig()
	tracing.Enabled = cfg.TracingEnabled
	if cfg.ServiceName != "" {
		tracing.ServiceName = cfg.ServiceName
	}
	tracing.SkipPaths = append(tracing.SkipPaths, "/api/v1/health", "/api/v1/health/ready")

	cors := middleware.DefaultCORSConfig()
	cors.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	if len(cfg.HTTP.CORSAllowMethods) > 0 {
		cors.AllowMethods = cfg.HTTP.CORSAllowMethods
	}
	if len(cfg.HTTP.CORSAllowHeaders) > 0 {
		cors.AllowHeaders = cfg.HTTP.CORSAllowHeaders
	}
	cors.AllowCredentials = cfg.HTTP.CORSAllowCredentials

	engine.Use(
		middleware.RequestID(),
		logger.GinMiddleware(log),
		logger.Recovery(log),
		middleware.Tracing(tracing),
		middleware.Secure(middleware.DefaultSecurityConfig()),
		middleware.CORS(cors),
	)
	engine.NoRoute(func(c *gin.Context) {
		new(handler.BaseHandler).NotFound(c, "Route not found")
	})

	bodyLimit := middleware.BodyLimit(positive(cfg.HTTP.MaxBodySize, 1<<20))
	uploadLimit := middleware.BodyLimit(positive(cfg.MediaMaxSize, 10<<20) + 1<<20)

	var tenantLimit, publicLimit, webhookLimit gin.HandlerFunc = passthrough, passthrough, passthrough
	if cfg.HTTP.RateLimitEnabled {
		window := cfg.HTTP.RateLimitWindow
		if window <= 0 {
			window = time.Minute
		}
		tl := middleware.NewRateLimiter(positiveInt(cfg.HTTP.RateLimitRequests, 300), window)
		pl := middleware.NewRateLimiter(positiveInt(cfg.HTTP.RateLimitRequests, 300), window)
		wl := middleware.NewRateLimiter(positiveInt(cfg.HTTP.WebhookRateRequests, 120), window)
		e.limiters = append(e.limiters, tl, pl, wl)
		tenantLimit = middleware.RateLimit(tl)
		publicLimit = middleware.RateLimit(pl)
		webhookLimit = middleware.RateLimitByKey(wl, middleware.WebhookKey)
	}

	tenantCfg := middleware.TenantConfig{
		Resolver:           cfg.Tenants,
		BaseDomain:         cfg.BaseDomain,
		RequireOperational: true,
		Logger:             log,
	}
	operational := middleware.Tenant(tenantCfg)
	tenantCfg.RequireOperational = false
	anyStatus := middleware.Tenant(tenantCfg)
	profiling := middleware.Profiling(middleware.DefaultProfilingConfig())
	tenantChain := func(resolve gin.HandlerFunc) []gin.HandlerFunc {
		return []gin.HandlerFunc{resolve, middleware.SpanAttributes(), profiling, tenantLimit}
	}

	engine.GET("/health", h.System.Health)
	engine.GET("/health/ready", h.System.Ready)

	system := NewDomainGroup("system", "/health")
	system.GET("", h.System.Health)
	system.GET("/ready", h.System.Ready)

	tenants := NewDomainGroup("tenants", "").Use(bodyLimit, middleware.SpanAttributes(), publicLimit)
	tenants.POST("/tenants", h.Tenant.Create)
	tenants.GET("/tenants", h.Tenant.List)
	tenants.GET("/tenants/:id", h.Tenant.GetByID)
	tenants.PUT("/tenants/:id", h.Tenant.Update)
	tenants.PUT("/tenants/:id/plan", h.Tenant.ChangePlan)
	tenants.POST("/tenants/:id/activate", h.Tenant.Activate)
	tenants.POST("/tenants/:id/suspend", h.Tenant.Suspend)
	tenants.POST("/tenants/:id/cancel", h.Tenant.Cancel)
	tenants.POST("/tenants/:id/reactivate", h.Tenant.Reactivate)
	tenants.GET("/plans", h.Tenant.Plans)

	// suspended tenants keep access to billing so they can pay
	billingGroup := NewDomainGroup("billing", "/billing").Use(bodyLimit).Use(tenantChain(anyStatus)...)
	billingGroup.POST("/checkout", h.Billing.Checkout)
	billingGroup.GET("/subscription", h.Billing.GetSubscription)
	billingGroup.POST("/subscription/cancel", h.Billing.CancelSubscription)
	billingGroup.GET("/payments", h.Billing.ListPayments)
	billingGroup.GET("/payments/:id", h.Billing.GetPayment)
	billingGroup.POST("/payments/:id/refund", h.Billing.RefundPayment)

	webhooks := NewDomainGroup("webhooks", "/webhooks").Use(middleware.SpanAttributes())
	webhooks.GET("/events", publicLimit, h.Billing.ListWebhookEvents)
	webhooks.GET("/payphone/return", webhookLimit, h.Webhook.PayPhoneReturn)
	webhooks.POST("/:gateway", webhookLimit, h.Webhook.Receive)

	mediaGroup := NewDomainGroup("media", "/media").Use(tenantChain(operational)...)
	mediaGroup.POST("", uploadLimit, h.Media.Upload)
	mediaGroup.POST("/import", bodyLimit, h.Media.Import)
	mediaGroup.GET("", h.Media.List)
	mediaGroup.GET("/usage", h.Media.Usage)
	mediaGroup.POST("/trash/empty", h.Media.EmptyTrash)
	mediaGroup.GET("/:id", h.Media.Get)
	mediaGroup.PATCH("/:id", bodyLimit, h.Media.Update)
	mediaGroup.DELETE("/:id", h.Media.Delete)
	mediaGroup.POST("/:id/restore", h.Media.Restore)
	mediaGroup.DELETE("/:id/force", h.Media.ForceDelete)
	mediaGroup.POST("/:id/transform", bodyLimit, h.Media.Transform)
	mediaGroup.GET("/:id/url", h.Media.URL)
	mediaGroup.GET("/:id/download", h.Media.Download)

	tenantAPI := NewDomainGroup("tenant-api", "").Use(bodyLimit).Use(tenantChain(operational)...)

	categories := tenantAPI.Group("categories", "/categories")
	categories.POST("", h.Category.Create)
	categories.GET("", h.Category.List)
	categories.GET("/tree", h.Category.Tree)
	categories.GET("/:id", h.Category.GetByID)
	categories.PUT("/:id", h.Category.Update)
	categories.POST("/:id/move", h.Category.Move)
	categories.DELETE("/:id", h.Category.Delete)

	products := tenantAPI.Group("products", "/products")
	products.POST("", h.Product.Create)
	products.GET("", h.Product.List)
	products.GET("/:id", h.Product.GetByID)
	products.PUT("/:id", h.Product.Update)
	products.DELETE("/:id", h.Product.Delete)
	products.POST("/:id/publish", h.Product.Publish)
	products.POST("/:id/archive", h.Product.Archive)
	products.POST("/:id/stock", h.Product.AdjustStock)
	products.PUT("/:id/gallery", h.Product.SetGallery)

	invoices := tenantAPI.Group("invoices", "/invoices")
	invoices.POST("", h.Invoice.Create)
	invoices.GET("", h.Invoice.List)
	invoices.GET("/:id", h.Invoice.GetByID)
	invoices.PUT("/:id", h.Invoice.Update)
	invoices.DELETE("/:id", h.Invoice.Delete)
	invoices.POST("/:id/issue", h.Invoice.Issue)
	invoices.POST("/:id/pay", h.Invoice.MarkPaid)
	invoices.POST("/:id/void", h.Invoice.Void)
	invoices.GET("/:id/pdf", h.Invoice.PDF)
	invoices.GET("/:id/html", h.Invoice.HTML)

	pages := tenantAPI.Group("pages", "/pages")
	pages.POST("", h.Page.Create)
	pages.GET("", h.Page.List)
	pages.GET("/:id", h.Page.GetByID)
	pages.PUT("/:id", h.Page.Update)
	pages.DELETE("/:id", h.Page.Delete)
	pages.POST("/:id/publish", h.Page.Publish)
	pages.POST("/:id/unpublish", h.Page.Unpublish)

	seo := tenantAPI.Group("seo", "/seo")
	seo.PUT("", h.Seo.Upsert)
	seo.GET("", h.Seo.List)
	seo.GET("/subject", h.Seo.Get)
	seo.DELETE("/subject", h.Seo.Delete)
	seo.GET("/analyze", h.Seo.Analyze)

	tenantAPI.GET("/dashboard/summary", h.Dashboard.Summary)

	public := NewDomainGroup("public", "/public/:tenantSlug").Use(middleware.SpanAttributes(), publicLimit)
	public.GET("/pages/:slug", h.Public.Page)
	public.GET("/sitemap.xml", h.Public.Sitemap)

	r := NewRouter(engine).Register(system, tenants, billingGroup, webhooks, mediaGroup, tenantAPI, public)
	if h.File != nil {
		files := NewDomainGroup("files", "/media/files").Use(publicLimit)
		files.GET("/*key", h.File.Serve)
		r.Register(files)
	}
	r.Setup()
	return e, nil
}

func passthrough(c *gin.Context) { c.Next() }

func positive(v, fallback int64) int64 {
	if v > 0 {
		return v
	}
	return fallback
}

func positiveInt(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}
