package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Log       LogConfig
	HTTP      HTTPConfig
	Storage   StorageConfig
	Media     MediaConfig
	Payment   PaymentConfig
	Email     EmailConfig
	PDF       PDFConfig
	Scheduler SchedulerConfig
	Telemetry TelemetryConfig
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name          string
	Env           string
	Port          string
	PublicBaseURL string // base url of the tenant storefronts, used for sitemaps
	BaseDomain    string // tenants resolve from {slug}.{BaseDomain}
}

// IsProduction reports whether the app runs in production
func (a AppConfig) IsProduction() bool { return a.Env == "production" }

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
}

// RedisConfig holds Redis connection settings. An empty host disables Redis.
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// Addr returns host:port
func (r RedisConfig) Addr() string { return fmt.Sprintf("%s:%d", r.Host, r.Port) }

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout          time.Duration
	WriteTimeout         time.Duration
	IdleTimeout          time.Duration
	ShutdownTimeout      time.Duration
	MaxHeaderBytes       int
	MaxBodySize          int64
	RateLimitEnabled     bool
	RateLimitRequests    int
	RateLimitWindow      time.Duration
	WebhookRateRequests  int // per gateway+IP per window
	CORSAllowOrigins     []string
	CORSAllowMethods     []string
	CORSAllowHeaders     []string
	CORSAllowCredentials bool
	TrustedProxies       []string
}

// StorageConfig selects and configures the object storage backend
type StorageConfig struct {
	Driver        string // local or s3
	LocalRoot     string
	PublicBaseURL string // prefix of local file URLs, e.g. https://api.example.com/api/v1
	SigningSecret string
	URLTTL        time.Duration
	S3            S3Config
}

// S3Config holds S3 (or S3-compatible) settings
type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
}

// MediaConfig holds media ingestion limits
type MediaConfig struct {
	MaxSize           int64
	FetchTimeout      time.Duration
	FetchRetries      int
	FetchMaxRedirects int
	AllowPrivateHosts bool
	TrashRetention    time.Duration
	ThumbSize         int
}

// PaymentConfig holds the gateway credentials
type PaymentConfig struct {
	NotifyBaseURL string // public base for webhook urls
	ReturnURL     string
	CancelURL     string
	Culqi         CulqiConfig
	MercadoPago   MercadoPagoConfig
	PayPhone      PayPhoneConfig
}

// CulqiConfig configures the Culqi adapter
type CulqiConfig struct {
	Enabled       bool
	BaseURL       string
	SecretKey     string
	WebhookSecret string
}

// MercadoPagoConfig configures the MercadoPago adapter
type MercadoPagoConfig struct {
	Enabled       bool
	BaseURL       string
	AccessToken   string
	WebhookSecret string
	Sandbox       bool
}

// PayPhoneConfig configures the PayPhone adapter
type PayPhoneConfig struct {
	Enabled bool
	BaseURL string
	Token   string
	StoreID string
}

// EmailConfig holds transactional email settings. An empty key logs instead of sending.
type EmailConfig struct {
	ResendAPIKey string
	From         string
}

// PDFConfig holds headless Chrome settings
type PDFConfig struct {
	ChromeEnabled bool
	RemoteURL     string // ws url of a remote Chrome; empty launches a local one
	Timeout       time.Duration
	IssuerTaxID   string
}

// SchedulerConfig holds the periodic job settings
type SchedulerConfig struct {
	Enabled             bool
	ReconcileInterval   time.Duration
	ReconcileOlderThan  time.Duration
	ExpireInterval      time.Duration
	EmptyTrashInterval  time.Duration
	JobTimeout          time.Duration
	PendingExpiry       time.Duration
	ReconcileBatchLimit int
}

// TelemetryConfig holds OpenTelemetry and profiling configuration
type TelemetryConfig struct {
	Enabled           bool
	CollectorEndpoint string
	SamplingRatio     float64
	ServiceName       string
	Insecure          bool
	DBTraceEnabled    bool
	DBSlowQueryThresh time.Duration
	PyroscopeEnabled  bool
	PyroscopeURL      string
}

const defaultSigningSecret = "change-me-local-signing-secret"

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with BACKOFFICE_ prefix (e.g., BACKOFFICE_DATABASE_PASSWORD)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/backoffice")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("BACKOFFICE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := fromViper(v)
	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
		App: AppConfig{
			Name:          v.GetString("app.name"),
			Env:           v.GetString("app.env"),
			Port:          v.GetString("app.port"),
			PublicBaseURL: v.GetString("app.public_base_url"),
			BaseDomain:    v.GetString("app.base_domain"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:          v.GetDuration("http.read_timeout"),
			WriteTimeout:         v.GetDuration("http.write_timeout"),
			IdleTimeout:          v.GetDuration("http.idle_timeout"),
			ShutdownTimeout:      v.GetDuration("http.shutdown_timeout"),
			MaxHeaderBytes:       v.GetInt("http.max_header_bytes"),
			MaxBodySize:          v.GetInt64("http.max_body_size"),
			RateLimitEnabled:     v.GetBool("http.rate_limit_enabled"),
			RateLimitRequests:    v.GetInt("http.rate_limit_requests"),
			RateLimitWindow:      v.GetDuration("http.rate_limit_window"),
			WebhookRateRequests:  v.GetInt("http.webhook_rate_requests"),
			CORSAllowOrigins:     v.GetStringSlice("http.cors_allow_origins"),
			CORSAllowMethods:     v.GetStringSlice("http.cors_allow_methods"),
			CORSAllowHeaders:     v.GetStringSlice("http.cors_allow_headers"),
			CORSAllowCredentials: v.GetBool("http.cors_allow_credentials"),
			TrustedProxies:       v.GetStringSlice("http.trusted_proxies"),
		},
		Storage: StorageConfig{
			Driver:        v.GetString("storage.driver"),
			LocalRoot:     v.GetString("storage.local_root"),
			PublicBaseURL: v.GetString("storage.public_base_url"),
			SigningSecret: v.GetString("storage.signing_secret"),
			URLTTL:        v.GetDuration("storage.url_ttl"),
			S3: S3Config{
				Bucket:          v.GetString("storage.s3.bucket"),
				Region:          v.GetString("storage.s3.region"),
				Endpoint:        v.GetString("storage.s3.endpoint"),
				AccessKeyID:     v.GetString("storage.s3.access_key_id"),
				SecretAccessKey: v.GetString("storage.s3.secret_access_key"),
				UsePathStyle:    v.GetBool("storage.s3.use_path_style"),
			},
		},
		Media: MediaConfig{
			MaxSize:           v.GetInt64("media.max_size"),
			FetchTimeout:      v.GetDuration("media.fetch_timeout"),
			FetchRetries:      v.GetInt("media.fetch_retries"),
			FetchMaxRedirects: v.GetInt("media.fetch_max_redirects"),
			AllowPrivateHosts: v.GetBool("media.allow_private_hosts"),
			TrashRetention:    v.GetDuration("media.trash_retention"),
			ThumbSize:         v.GetInt("media.thumb_size"),
		},
		Payment: PaymentConfig{
			NotifyBaseURL: v.GetString("payment.notify_base_url"),
			ReturnURL:     v.GetString("payment.return_url"),
			CancelURL:     v.GetString("payment.cancel_url"),
			Culqi: CulqiConfig{
				Enabled:       v.GetBool("payment.culqi.enabled"),
				BaseURL:       v.GetString("payment.culqi.base_url"),
				SecretKey:     v.GetString("payment.culqi.secret_key"),
				WebhookSecret: v.GetString("payment.culqi.webhook_secret"),
			},
			MercadoPago: MercadoPagoConfig{
				Enabled:       v.GetBool("payment.mercadopago.enabled"),
				BaseURL:       v.GetString("payment.mercadopago.base_url"),
				AccessToken:   v.GetString("payment.mercadopago.access_token"),
				WebhookSecret: v.GetString("payment.mercadopago.webhook_secret"),
				Sandbox:       v.GetBool("payment.mercadopago.sandbox"),
			},
			PayPhone: PayPhoneConfig{
				Enabled: v.GetBool("payment.payphone.enabled"),
				BaseURL: v.GetString("payment.payphone.base_url"),
				Token:   v.GetString("payment.payphone.token"),
				StoreID: v.GetString("payment.payphone.store_id"),
			},
		},
		Email: EmailConfig{
			ResendAPIKey: v.GetString("email.resend_api_key"),
			From:         v.GetString("email.from"),
		},
		PDF: PDFConfig{
			ChromeEnabled: v.GetBool("pdf.chrome_enabled"),
			RemoteURL:     v.GetString("pdf.remote_url"),
			Timeout:       v.GetDuration("pdf.timeout"),
			IssuerTaxID:   v.GetString("pdf.issuer_tax_id"),
		},
		Scheduler: SchedulerConfig{
			Enabled:             v.GetBool("scheduler.enabled"),
			ReconcileInterval:   v.GetDuration("scheduler.reconcile_interval"),
			ReconcileOlderThan:  v.GetDuration("scheduler.reconcile_older_than"),
			ExpireInterval:      v.GetDuration("scheduler.expire_interval"),
			EmptyTrashInterval:  v.GetDuration("scheduler.empty_trash_interval"),
			JobTimeout:          v.GetDuration("scheduler.job_timeout"),
			PendingExpiry:       v.GetDuration("scheduler.pending_expiry"),
			ReconcileBatchLimit: v.GetInt("scheduler.reconcile_batch_limit"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			DBTraceEnabled:    v.GetBool("telemetry.db_trace_enabled"),
			DBSlowQueryThresh: v.GetDuration("telemetry.db_slow_query_threshold"),
			PyroscopeEnabled:  v.GetBool("telemetry.pyroscope_enabled"),
			PyroscopeURL:      v.GetString("telemetry.pyroscope_url"),
		},
	}
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "backoffice"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.App.PublicBaseURL == "" {
		cfg.App.PublicBaseURL = "http://localhost:3000"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "backoffice"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Redis.Host != "" && cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}

	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 30 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 60 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.ShutdownTimeout == 0 {
		cfg.HTTP.ShutdownTimeout = 15 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 25 << 20 // 25MB, leaves room for multipart overhead
	}
	if cfg.HTTP.RateLimitRequests == 0 {
		cfg.HTTP.RateLimitRequests = 300
	}
	if cfg.HTTP.RateLimitWindow == 0 {
		cfg.HTTP.RateLimitWindow = time.Minute
	}
	if cfg.HTTP.WebhookRateRequests == 0 {
		cfg.HTTP.WebhookRateRequests = 600
	}
	// No default origins: cross-origin requests are refused until configured.
	if len(cfg.HTTP.CORSAllowMethods) == 0 {
		cfg.HTTP.CORSAllowMethods = []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"}
	}
	if len(cfg.HTTP.CORSAllowHeaders) == 0 {
		cfg.HTTP.CORSAllowHeaders = []string{"Content-Type", "Authorization", "X-Request-ID", "X-Tenant-ID"}
	}

	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = "local"
	}
	if cfg.Storage.LocalRoot == "" {
		cfg.Storage.LocalRoot = "./storage"
	}
	if cfg.Storage.PublicBaseURL == "" {
		cfg.Storage.PublicBaseURL = "http://localhost:" + cfg.App.Port + "/api/v1"
	}
	if cfg.Storage.SigningSecret == "" {
		cfg.Storage.SigningSecret = defaultSigningSecret
	}
	if cfg.Storage.URLTTL == 0 {
		cfg.Storage.URLTTL = 15 * time.Minute
	}
	if cfg.Storage.S3.Region == "" {
		cfg.Storage.S3.Region = "us-east-1"
	}

	if cfg.Media.MaxSize == 0 {
		cfg.Media.MaxSize = 20 << 20 // 20MB
	}
	if cfg.Media.FetchTimeout == 0 {
		cfg.Media.FetchTimeout = 30 * time.Second
	}
	if cfg.Media.FetchRetries == 0 {
		cfg.Media.FetchRetries = 3
	}
	if cfg.Media.FetchMaxRedirects == 0 {
		cfg.Media.FetchMaxRedirects = 5
	}
	if cfg.Media.TrashRetention == 0 {
		cfg.Media.TrashRetention = 30 * 24 * time.Hour
	}
	if cfg.Media.ThumbSize == 0 {
		cfg.Media.ThumbSize = 300
	}

	if cfg.Payment.Culqi.BaseURL == "" {
		cfg.Payment.Culqi.BaseURL = "https://api.culqi.com"
	}
	if cfg.Payment.MercadoPago.BaseURL == "" {
		cfg.Payment.MercadoPago.BaseURL = "https://api.mercadopago.com"
	}
	if cfg.Payment.PayPhone.BaseURL == "" {
		cfg.Payment.PayPhone.BaseURL = "https://pay.payphonetodoesposible.com"
	}
	if cfg.Payment.NotifyBaseURL == "" {
		cfg.Payment.NotifyBaseURL = cfg.Storage.PublicBaseURL
	}

	if cfg.Email.From == "" {
		cfg.Email.From = "Backoffice <no-reply@example.com>"
	}
	if cfg.PDF.Timeout == 0 {
		cfg.PDF.Timeout = 30 * time.Second
	}

	if cfg.Scheduler.ReconcileInterval == 0 {
		cfg.Scheduler.ReconcileInterval = 15 * time.Minute
	}
	if cfg.Scheduler.ReconcileOlderThan == 0 {
		cfg.Scheduler.ReconcileOlderThan = 10 * time.Minute
	}
	if cfg.Scheduler.ExpireInterval == 0 {
		cfg.Scheduler.ExpireInterval = time.Hour
	}
	if cfg.Scheduler.EmptyTrashInterval == 0 {
		cfg.Scheduler.EmptyTrashInterval = 24 * time.Hour
	}
	if cfg.Scheduler.JobTimeout == 0 {
		cfg.Scheduler.JobTimeout = 10 * time.Minute
	}
	if cfg.Scheduler.PendingExpiry == 0 {
		cfg.Scheduler.PendingExpiry = 24 * time.Hour
	}
	if cfg.Scheduler.ReconcileBatchLimit == 0 {
		cfg.Scheduler.ReconcileBatchLimit = 100
	}

	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = cfg.App.Name
	}
	if cfg.Telemetry.DBSlowQueryThresh == 0 {
		cfg.Telemetry.DBSlowQueryThresh = 200 * time.Millisecond
	}
	if cfg.Telemetry.PyroscopeURL == "" {
		cfg.Telemetry.PyroscopeURL = "http://localhost:4040"
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}

	switch c.Storage.Driver {
	case "local":
	case "s3":
		if c.Storage.S3.Bucket == "" {
			return fmt.Errorf("storage.s3.bucket is required when storage.driver is s3")
		}
	default:
		return fmt.Errorf("storage.driver must be local or s3, got %q", c.Storage.Driver)
	}
	if c.Media.MaxSize <= 0 {
		return fmt.Errorf("media.max_size must be positive")
	}
	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}

	if c.App.IsProduction() {
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		if c.Storage.SigningSecret == defaultSigningSecret || len(c.Storage.SigningSecret) < 32 {
			return fmt.Errorf("storage.signing_secret must be set to at least 32 characters in production")
		}
		for _, origin := range c.HTTP.CORSAllowOrigins {
			if origin == "*" {
				return fmt.Errorf("cors_allow_origins cannot be '*' in production (use specific origins)")
			}
		}
		if c.Payment.Culqi.Enabled && c.Payment.Culqi.WebhookSecret == "" {
			return fmt.Errorf("payment.culqi.webhook_secret is required in production")
		}
		if c.Payment.MercadoPago.Enabled && c.Payment.MercadoPago.WebhookSecret == "" {
			return fmt.Errorf("payment.mercadopago.webhook_secret is required in production")
		}
	}
	return nil
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}
