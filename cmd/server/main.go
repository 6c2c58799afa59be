package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	billingapp "github.com/backoffice/saas/internal/application/billing"
	catalogapp "github.com/backoffice/saas/internal/application/catalog"
	contentapp "github.com/backoffice/saas/internal/application/content"
	"github.com/backoffice/saas/internal/application/dashboard"
	invoicingapp "github.com/backoffice/saas/internal/application/invoicing"
	mediaapp "github.com/backoffice/saas/internal/application/media"
	notificationapp "github.com/backoffice/saas/internal/application/notification"
	seoapp "github.com/backoffice/saas/internal/application/seo"
	tenantapp "github.com/backoffice/saas/internal/application/tenant"
	"github.com/backoffice/saas/internal/infrastructure/cache"
	"github.com/backoffice/saas/internal/infrastructure/config"
	"github.com/backoffice/saas/internal/infrastructure/event"
	"github.com/backoffice/saas/internal/infrastructure/fetcher"
	"github.com/backoffice/saas/internal/infrastructure/imaging"
	"github.com/backoffice/saas/internal/infrastructure/logger"
	"github.com/backoffice/saas/internal/infrastructure/notification"
	"github.com/backoffice/saas/internal/infrastructure/payment"
	"github.com/backoffice/saas/internal/infrastructure/pdf"
	"github.com/backoffice/saas/internal/infrastructure/persistence"
	"github.com/backoffice/saas/internal/infrastructure/sanitizer"
	"github.com/backoffice/saas/internal/infrastructure/scheduler"
	"github.com/backoffice/saas/internal/infrastructure/storage"
	"github.com/backoffice/saas/internal/infrastructure/telemetry"
	"github.com/backoffice/saas/internal/interfaces/http/handler"
	"github.com/backoffice/saas/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

//	@title			Backoffice SaaS API
//	@version		1.0
//	@description	Multi-tenant back office: tenants, billing, media, catalog, invoices and storefront content.

//	@BasePath	/api/v1

//	@securityDefinitions.apikey	TenantHeader
//	@in							header
//	@name						X-Tenant-ID

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() { _ = log.Sync() }()

	if cfg.App.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	log.Info("Starting backoffice",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	rootCtx := context.Background()

	tracerProvider, err := telemetry.NewTracerProvider(rootCtx, cfg.Telemetry, log)
	if err != nil {
		log.Fatal("Failed to initialize tracing", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracerProvider.Shutdown(ctx); err != nil {
			log.Error("Error shutting down tracer provider", zap.Error(err))
		}
	}()

	profiler, err := telemetry.NewProfiler(cfg.Telemetry, log)
	if err != nil {
		log.Fatal("Failed to start profiler", zap.Error(err))
	}
	defer func() {
		if err := profiler.Stop(); err != nil {
			log.Error("Error stopping profiler", zap.Error(err))
		}
	}()
	if profiler.IsEnabled() {
		tracerProvider.EnableSpanProfiles()
	}

	gormLog := logger.NewGormLogger(log, logger.GormLevel(cfg.Log.Level), cfg.Telemetry.DBSlowQueryThresh)
	db, err := persistence.NewDatabase(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	if err := telemetry.RegisterDBTracing(db.DB, telemetry.DBTracingConfig{
		Enabled:         cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
		DBSystem:        "postgresql",
		SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
	}, log); err != nil {
		log.Fatal("Failed to register database tracing", zap.Error(err))
	}
	log.Info("Database connected successfully")

	repos := persistence.NewRepositories(db.DB)

	idempotency, err := cache.NewIdempotencyStore(rootCtx, cfg.Redis, cfg.App.IsProduction(), log)
	if err != nil {
		log.Fatal("Failed to initialize idempotency store", zap.Error(err))
	}
	defer func() { _ = idempotency.Close() }()

	objects, signer, err := storage.New(cfg.Storage, log)
	if err != nil {
		log.Fatal("Failed to initialize object storage", zap.Error(err))
	}

	gateways, err := payment.NewGateways(cfg.Payment, log)
	if err != nil {
		log.Fatal("Failed to initialize payment gateways", zap.Error(err))
	}

	sender, err := notification.NewSender(cfg.Email.ResendAPIKey, cfg.Email.From, log)
	if err != nil {
		log.Fatal("Failed to initialize email sender", zap.Error(err))
	}

	var chrome *pdf.ChromeRenderer
	if cfg.PDF.ChromeEnabled {
		chrome = pdf.NewChromeRenderer(pdf.ChromeConfig{
			RemoteURL: cfg.PDF.RemoteURL,
			Timeout:   cfg.PDF.Timeout,
			NoSandbox: os.Getuid() == 0,
		}, log)
		defer func() { _ = chrome.Close() }()
	}

	// Events are dispatched in-process; email handlers run at most once per event
	eventBus := event.NewInMemoryEventBus(log)
	eventBus.Subscribe(event.NewIdempotentHandler("email.invoice_issued",
		notificationapp.NewInvoiceIssuedHandler(sender, repos.Tenants, repos.Invoices, log), idempotency, log))
	eventBus.Subscribe(event.NewIdempotentHandler("email.payment",
		notificationapp.NewPaymentHandler(sender, repos.Tenants, repos.Payments, repos.Subscriptions, log), idempotency, log))
	if err := eventBus.Start(rootCtx); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}

	html := sanitizer.New()
	tenantService := tenantapp.NewTenantService(repos.Tenants, eventBus, log)
	billingService := billingapp.NewBillingService(billingapp.BillingServiceConfig{
		Payments:      repos.Payments,
		Subscriptions: repos.Subscriptions,
		Webhooks:      repos.Webhooks,
		Tenants:       repos.Tenants,
		Gateways:      gateways,
		Idempotency:   idempotency,
		Publisher:     eventBus,
		Logger:        log,
		Options: billingapp.Options{
			NotifyBaseURL: cfg.Payment.NotifyBaseURL,
			ReturnURL:     cfg.Payment.ReturnURL,
			CancelURL:     cfg.Payment.CancelURL,
			PendingExpiry: cfg.Scheduler.PendingExpiry,
			BatchLimit:    cfg.Scheduler.ReconcileBatchLimit,
		},
	})

	fetchCfg := fetcher.DefaultConfig()
	fetchCfg.MaxSize = cfg.Media.MaxSize
	fetchCfg.Timeout = cfg.Media.FetchTimeout
	fetchCfg.Retries = cfg.Media.FetchRetries
	fetchCfg.MaxRedirects = cfg.Media.FetchMaxRedirects
	fetchCfg.AllowPrivate = cfg.Media.AllowPrivateHosts
	mediaService := mediaapp.NewMediaService(mediaapp.MediaServiceConfig{
		Repo:      repos.Media,
		Storage:   objects,
		Processor: imaging.NewProcessor(0),
		Fetcher:   fetcher.New(fetchCfg, log),
		Quota:     tenantService,
		Tenants:   repos.Tenants,
		Publisher: eventBus,
		Logger:    log,
		Options: mediaapp.Options{
			MaxSize:        cfg.Media.MaxSize,
			ThumbSize:      cfg.Media.ThumbSize,
			URLTTL:         cfg.Storage.URLTTL,
			TrashRetention: cfg.Media.TrashRetention,
		},
	})

	categoryService := catalogapp.NewCategoryService(repos.Categories, repos.Products, repos.Media, log)
	productService := catalogapp.NewProductService(catalogapp.ProductServiceConfig{
		Products:   repos.Products,
		Categories: repos.Categories,
		Tenants:    repos.Tenants,
		Media:      repos.Media,
		Sanitizer:  html,
		Publisher:  eventBus,
		Logger:     log,
	})
	invoiceService := invoicingapp.NewInvoiceService(invoicingapp.InvoiceServiceConfig{
		Invoices:    repos.Invoices,
		Tenants:     repos.Tenants,
		Renderer:    pdf.NewInvoiceRenderer(chrome, log),
		Publisher:   eventBus,
		Logger:      log,
		IssuerTaxID: cfg.PDF.IssuerTaxID,
	})
	pageService := contentapp.NewPageService(repos.Pages, repos.Media, html, log)
	seoService := seoapp.NewSeoService(seoapp.SeoServiceConfig{
		Seo:        repos.Seo,
		Pages:      repos.Pages,
		Products:   repos.Products,
		Categories: repos.Categories,
		Media:      repos.Media,
		Logger:     log,
	})
	dashboardService := dashboard.NewService(dashboard.ServiceConfig{
		Tenants:       repos.Tenants,
		Media:         repos.Media,
		Products:      repos.Products,
		Invoices:      repos.Invoices,
		Subscriptions: repos.Subscriptions,
		Payments:      repos.Payments,
		Logger:        log,
	})

	checks := map[string]handler.HealthCheck{"database": db.Ping}
	if pinger, ok := idempotency.(interface{ Ping(context.Context) error }); ok {
		checks["redis"] = pinger.Ping
	}
	handlers := router.Handlers{
		System:    handler.NewSystemHandler(cfg.App.Name, version, checks),
		Tenant:    handler.NewTenantHandler(tenantService),
		Billing:   handler.NewBillingHandler(billingService),
		Webhook:   handler.NewWebhookHandler(billingService),
		Media:     handler.NewMediaHandler(mediaService),
		Category:  handler.NewCategoryHandler(categoryService),
		Product:   handler.NewProductHandler(productService),
		Invoice:   handler.NewInvoiceHandler(invoiceService),
		Page:      handler.NewPageHandler(pageService),
		Seo:       handler.NewSeoHandler(seoService),
		Public:    handler.NewPublicHandler(tenantService, pageService, seoService, cfg.App.PublicBaseURL),
		Dashboard: handler.NewDashboardHandler(dashboardService),
	}
	if signer != nil {
		handlers.File = handler.NewFileHandler(objects, signer)
	}

	engine, err := router.New(router.Config{
		HTTP:           cfg.HTTP,
		Tenants:        tenantService,
		BaseDomain:     cfg.App.BaseDomain,
		ServiceName:    cfg.Telemetry.ServiceName,
		TracingEnabled: cfg.Telemetry.Enabled,
		MediaMaxSize:   cfg.Media.MaxSize,
		Logger:         log,
	}, handlers)
	if err != nil {
		log.Fatal("Failed to build router", zap.Error(err))
	}
	defer engine.Close()

	var jobs *scheduler.Runner
	if cfg.Scheduler.Enabled {
		jobs = scheduler.NewRunner(scheduler.RunnerConfig{JobTimeout: cfg.Scheduler.JobTimeout}, log)
		registerJobs(jobs, cfg.Scheduler, cfg.Media, billingService, mediaService, log)
		if err := jobs.Start(rootCtx); err != nil {
			log.Fatal("Failed to start scheduler", zap.Error(err))
		}
		log.Info("Scheduler started", zap.Duration("job_timeout", cfg.Scheduler.JobTimeout))
	}

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if jobs != nil {
		if err := jobs.Stop(ctx); err != nil {
			log.Error("Error stopping scheduler", zap.Error(err))
		}
	}
	if err := eventBus.Stop(ctx); err != nil {
		log.Error("Error stopping event bus", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// registerJobs adds the maintenance jobs: payment reconciliation,
// subscription expiry and trash purging
func registerJobs(r *scheduler.Runner, cfg config.SchedulerConfig, mediaCfg config.MediaConfig, billingService *billingapp.BillingService, mediaService *mediaapp.MediaService, log *zap.Logger) {
	jobs := []scheduler.Job{
		{
			Name:     "billing.reconcile_pending",
			Interval: cfg.ReconcileInterval,
			Run: func(ctx context.Context) error {
				res, err := billingService.ReconcilePendingPayments(ctx, cfg.ReconcileOlderThan)
				if err != nil {
					return err
				}
				log.Info("Pending payments reconciled", zap.Any("result", res))
				return nil
			},
		},
		{
			Name:       "billing.expire_subscriptions",
			Interval:   cfg.ExpireInterval,
			RunOnStart: true,
			Run: func(ctx context.Context) error {
				res, err := billingService.ExpireSubscriptions(ctx, time.Now())
				if err != nil {
					return err
				}
				log.Info("Subscriptions expired", zap.Any("result", res))
				return nil
			},
		},
		{
			Name:     "media.empty_trash",
			Interval: cfg.EmptyTrashInterval,
			Run: func(ctx context.Context) error {
				res, err := mediaService.EmptyTrashAll(ctx, mediaCfg.TrashRetention)
				if err != nil {
					return err
				}
				log.Info("Media trash emptied", zap.Any("result", res))
				return nil
			},
		},
	}
	for _, job := range jobs {
		if err := r.Register(job); err != nil {
			log.Fatal("Failed to register job", zap.String("job", job.Name), zap.Error(err))
		}
	}
}
