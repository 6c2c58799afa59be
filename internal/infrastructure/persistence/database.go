package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/backoffice/saas/internal/infrastructure/config"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Database holds the database connection and provides methods for database operations
type Database struct {
	DB *gorm.DB
}

// NewDatabase opens a PostgreSQL connection pool. A nil logger silences GORM.
func NewDatabase(cfg *config.DatabaseConfig, logger gormlogger.Interface) (*Database, error) {
	if logger == nil {
		logger = gormlogger.Default.LogMode(gormlogger.Silent)
	}
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger:                 logger,
		SkipDefaultTransaction: true,
		PrepareStmt:            true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Minute)
	sqlDB.SetConnMaxIdleTime(time.Duration(cfg.ConnMaxIdleTime) * time.Minute)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &Database{DB: db}, nil
}

// Close closes the database connection
func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.Close()
}

// Ping checks if the database connection is alive
func (d *Database) Ping(ctx context.Context) error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

// Repositories bundles every GORM repository over one connection
type Repositories struct {
	Tenants       *GormTenantRepository
	Subscriptions *GormSubscriptionRepository
	Payments      *GormPaymentRepository
	Webhooks      *GormWebhookEventRepository
	Media         *GormMediaRepository
	Categories    *GormCategoryRepository
	Products      *GormProductRepository
	Invoices      *GormInvoiceRepository
	Pages         *GormPageRepository
	Seo           *GormSeoRepository
}

// NewRepositories wires all repositories to db
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Tenants:       NewGormTenantRepository(db),
		Subscriptions: NewGormSubscriptionRepository(db),
		Payments:      NewGormPaymentRepository(db),
		Webhooks:      NewGormWebhookEventRepository(db),
		Media:         NewGormMediaRepository(db),
		Categories:    NewGormCategoryRepository(db),
		Products:      NewGormProductRepository(db),
		Invoices:      NewGormInvoiceRepository(db),
		Pages:         NewGormPageRepository(db),
		Seo:           NewGormSeoRepository(db),
	}
}
