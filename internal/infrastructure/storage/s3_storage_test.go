package storage

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/backoffice/saas/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestNewS3ObjectStorage_Validation(t *testing.T) {
	t.Run("nil config returns error", func(t *testing.T) {
		_, err := NewS3ObjectStorage(nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "configuration is required")
	})

	t.Run("missing bucket returns error", func(t *testing.T) {
		_, err := NewS3ObjectStorage(&config.S3Config{AccessKeyID: "k", SecretAccessKey: "s"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "bucket is required")
	})

	t.Run("half of the credentials returns error", func(t *testing.T) {
		_, err := NewS3ObjectStorage(&config.S3Config{Bucket: "b", AccessKeyID: "k"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "must be set together")
	})

	t.Run("valid config creates storage", func(t *testing.T) {
		s, err := NewS3ObjectStorage(&config.S3Config{
			Bucket:          "media",
			AccessKeyID:     "test-key",
			SecretAccessKey: "test-secret",
			Endpoint:        "localhost:9000",
			UsePathStyle:    true,
		})
		require.NoError(t, err)
		assert.Equal(t, "media", s.Bucket())
		assert.Equal(t, 15*time.Minute, s.presignExpiration)
		assert.Equal(t, "s3", string(s.Disk()))
	})
}

func TestS3ObjectStorageOptions(t *testing.T) {
	cfg := &config.S3Config{
		Bucket:          "media",
		AccessKeyID:     "test-key",
		SecretAccessKey: "test-secret",
		Endpoint:        "http://localhost:9000",
	}

	t.Run("WithLogger sets custom logger", func(t *testing.T) {
		logger := zaptest.NewLogger(t)
		s, err := NewS3ObjectStorage(cfg, WithLogger(logger))
		require.NoError(t, err)
		assert.Same(t, logger, s.logger)
	})

	t.Run("WithPresignExpiration sets custom duration", func(t *testing.T) {
		s, err := NewS3ObjectStorage(cfg, WithPresignExpiration(time.Hour))
		require.NoError(t, err)
		assert.Equal(t, time.Hour, s.presignExpiration)
	})
}

func TestS3ObjectStorage_URL(t *testing.T) {
	s, err := NewS3ObjectStorage(&config.S3Config{
		Bucket:          "media",
		AccessKeyID:     "test-key",
		SecretAccessKey: "test-secret",
		Endpoint:        "http://localhost:9000",
		UsePathStyle:    true,
	})
	require.NoError(t, err)

	t.Run("rejects traversal keys", func(t *testing.T) {
		_, _, err := s.URL(context.Background(), "../etc/passwd", time.Minute)
		require.Error(t, err)
	})

	t.Run("presigns a GET url", func(t *testing.T) {
		url, expiresAt, err := s.URL(context.Background(), "tenants/t1/media/default/m1/a.png", 10*time.Minute)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(url, "http://localhost:9000/media/"))
		assert.Contains(t, url, "X-Amz-Signature=")
		assert.Contains(t, url, "X-Amz-Expires=600")
		assert.WithinDuration(t, time.Now().Add(10*time.Minute), expiresAt, 5*time.Second)
	})

	t.Run("uses default expiration when not provided", func(t *testing.T) {
		url, _, err := s.URL(context.Background(), "tenants/t1/a.png", 0)
		require.NoError(t, err)
		assert.Contains(t, url, "X-Amz-Expires=900")
	})
}
