package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("loads default values when env vars not set", func(t *testing.T) {
		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "backoffice", cfg.App.Name)
		assert.Equal(t, "development", cfg.App.Env)
		assert.Equal(t, "8080", cfg.App.Port)
		assert.Equal(t, "localhost", cfg.Database.Host)
		assert.Equal(t, 5432, cfg.Database.Port)
		assert.Equal(t, "backoffice", cfg.Database.DBName)
		assert.Equal(t, 25, cfg.Database.MaxOpenConns)
		assert.Equal(t, 5, cfg.Database.MaxIdleConns)
		assert.Empty(t, cfg.Redis.Host)
		assert.Equal(t, "local", cfg.Storage.Driver)
		assert.Equal(t, int64(20<<20), cfg.Media.MaxSize)
		assert.Equal(t, 30*time.Second, cfg.Media.FetchTimeout)
		assert.Equal(t, 3, cfg.Media.FetchRetries)
		assert.Equal(t, 30*24*time.Hour, cfg.Media.TrashRetention)
		assert.Equal(t, 15*time.Minute, cfg.Scheduler.ReconcileInterval)
		assert.Equal(t, time.Hour, cfg.Scheduler.ExpireInterval)
		assert.Equal(t, 24*time.Hour, cfg.Scheduler.EmptyTrashInterval)
		assert.Equal(t, "https://api.mercadopago.com", cfg.Payment.MercadoPago.BaseURL)
		assert.Equal(t, "backoffice", cfg.Telemetry.ServiceName)
	})

	t.Run("loads values from environment variables with BACKOFFICE prefix", func(t *testing.T) {
		t.Setenv("BACKOFFICE_APP_PORT", "9000")
		t.Setenv("BACKOFFICE_DATABASE_HOST", "testdb.local")
		t.Setenv("BACKOFFICE_DATABASE_MAX_OPEN_CONNS", "50")
		t.Setenv("BACKOFFICE_DATABASE_MAX_IDLE_CONNS", "10")
		t.Setenv("BACKOFFICE_REDIS_HOST", "cache.local")
		t.Setenv("BACKOFFICE_STORAGE_DRIVER", "s3")
		t.Setenv("BACKOFFICE_STORAGE_S3_BUCKET", "media-bucket")
		t.Setenv("BACKOFFICE_MEDIA_MAX_SIZE", "1048576")
		t.Setenv("BACKOFFICE_PAYMENT_CULQI_ENABLED", "true")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "9000", cfg.App.Port)
		assert.Equal(t, "testdb.local", cfg.Database.Host)
		assert.Equal(t, 50, cfg.Database.MaxOpenConns)
		assert.Equal(t, 10, cfg.Database.MaxIdleConns)
		assert.Equal(t, "cache.local:6379", cfg.Redis.Addr())
		assert.Equal(t, "media-bucket", cfg.Storage.S3.Bucket)
		assert.Equal(t, int64(1<<20), cfg.Media.MaxSize)
		assert.True(t, cfg.Payment.Culqi.Enabled)
		assert.Equal(t, "http://localhost:9000/api/v1", cfg.Storage.PublicBaseURL)
	})

	t.Run("validates MaxIdleConns cannot exceed MaxOpenConns", func(t *testing.T) {
		t.Setenv("BACKOFFICE_DATABASE_MAX_OPEN_CONNS", "10")
		t.Setenv("BACKOFFICE_DATABASE_MAX_IDLE_CONNS", "20")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cannot exceed")
	})

	t.Run("s3 driver requires a bucket", func(t *testing.T) {
		t.Setenv("BACKOFFICE_STORAGE_DRIVER", "s3")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "storage.s3.bucket")
	})

	t.Run("rejects unknown storage driver", func(t *testing.T) {
		t.Setenv("BACKOFFICE_STORAGE_DRIVER", "ftp")

		_, err := Load()
		require.Error(t, err)
	})

	t.Run("rejects sampling ratio out of range", func(t *testing.T) {
		t.Setenv("BACKOFFICE_TELEMETRY_SAMPLING_RATIO", "1.5")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "sampling_ratio")
	})
}

func TestLoad_ProductionValidation(t *testing.T) {
	setValidProductionBase := func(t *testing.T) {
		t.Setenv("BACKOFFICE_APP_ENV", "production")
		t.Setenv("BACKOFFICE_DATABASE_PASSWORD", "secure-password")
		t.Setenv("BACKOFFICE_DATABASE_SSLMODE", "require")
		t.Setenv("BACKOFFICE_STORAGE_SIGNING_SECRET", "a-very-long-production-signing-secret-value")
	}

	t.Run("passes validation with valid production config", func(t *testing.T) {
		setValidProductionBase(t)

		cfg, err := Load()
		require.NoError(t, err)
		assert.True(t, cfg.App.IsProduction())
	})

	t.Run("requires database.password in production", func(t *testing.T) {
		setValidProductionBase(t)
		t.Setenv("BACKOFFICE_DATABASE_PASSWORD", "")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database.password is required in production")
	})

	t.Run("requires SSL enabled in production", func(t *testing.T) {
		setValidProductionBase(t)
		t.Setenv("BACKOFFICE_DATABASE_SSLMODE", "disable")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database.sslmode cannot be 'disable' in production")
	})

	t.Run("rejects the default signing secret", func(t *testing.T) {
		setValidProductionBase(t)
		t.Setenv("BACKOFFICE_STORAGE_SIGNING_SECRET", "")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "storage.signing_secret")
	})

	t.Run("requires webhook secret for enabled gateways", func(t *testing.T) {
		setValidProductionBase(t)
		t.Setenv("BACKOFFICE_PAYMENT_MERCADOPAGO_ENABLED", "true")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "mercadopago.webhook_secret")
	})
}

func TestDatabaseConfig_DSN(t *testing.T) {
	t.Run("generates valid DSN", func(t *testing.T) {
		cfg := DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "testuser",
			Password: "testpass",
			DBName:   "testdb",
			SSLMode:  "disable",
		}

		dsn := cfg.DSN()
		assert.Contains(t, dsn, "localhost:5432")
		assert.Contains(t, dsn, "testuser")
		assert.Contains(t, dsn, "/testdb")
		assert.Contains(t, dsn, "sslmode=disable")
	})

	t.Run("escapes special characters in password", func(t *testing.T) {
		cfg := DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "user",
			Password: "pass@word#123",
			DBName:   "db",
			SSLMode:  "disable",
		}

		assert.Contains(t, cfg.DSN(), "pass%40word%23123")
	})
}
