package shared

import (
	"context"
	"time"
)

// IdempotencyStore remembers processed keys so replays are detected
type IdempotencyStore interface {
	// MarkProcessed records key and returns false if it was already present
	MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// IsProcessed reports whether key is currently recorded
	IsProcessed(ctx context.Context, key string) (bool, error)
	// Forget removes key so the work can be retried
	Forget(ctx context.Context, key string) error
	Close() error
}
