package cache

import (
	"context"
	"fmt"

	"github.com/backoffice/saas/internal/domain/shared"
	infraconfig "github.com/backoffice/saas/internal/infrastructure/config"
	"go.uber.org/zap"
)

// NewIdempotencyStore returns a Redis store when a host is configured and
// reachable. Otherwise it falls back to memory, unless requireRedis is set.
func NewIdempotencyStore(ctx context.Context, cfg infraconfig.RedisConfig, requireRedis bool, logger *zap.Logger) (shared.IdempotencyStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Host == "" {
		if requireRedis {
			return nil, fmt.Errorf("redis host is required")
		}
		logger.Info("Using in-memory idempotency store")
		return NewInMemoryIdempotencyStore(0), nil
	}

	store, err := NewRedisIdempotencyStore(ctx, cfg)
	if err == nil {
		logger.Info("Using Redis idempotency store", zap.String("addr", cfg.Addr()))
		return store, nil
	}
	if requireRedis {
		return nil, err
	}
	logger.Warn("Redis unavailable, falling back to in-memory idempotency store; "+
		"webhooks may be processed twice across instances",
		zap.String("addr", cfg.Addr()),
		zap.Error(err))
	return NewInMemoryIdempotencyStore(0), nil
}
