package event

import (
	"context"
	"time"

	"github.com/backoffice/saas/internal/domain/shared"
	"go.uber.org/zap"
)

const defaultHandlerTTL = 24 * time.Hour

var _ shared.EventHandler = (*IdempotentHandler)(nil)

// IdempotentHandler runs the wrapped handler at most once per event id.
// The key is released when the handler fails so a redelivery can retry.
type IdempotentHandler struct {
	name    string
	handler shared.EventHandler
	store   shared.IdempotencyStore
	ttl     time.Duration
	logger  *zap.Logger
}

// NewIdempotentHandler wraps handler; name scopes the keys so two handlers
// may both process the same event
func NewIdempotentHandler(name string, handler shared.EventHandler, store shared.IdempotencyStore, logger *zap.Logger) *IdempotentHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IdempotentHandler{
		name:    name,
		handler: handler,
		store:   store,
		ttl:     defaultHandlerTTL,
		logger:  logger,
	}
}

// EventTypes returns the wrapped handler's event types
func (h *IdempotentHandler) EventTypes() []string {
	return h.handler.EventTypes()
}

// Handle processes the event unless it was already handled
func (h *IdempotentHandler) Handle(ctx context.Context, ev shared.DomainEvent) error {
	key := "event:" + h.name + ":" + ev.EventID().String()

	isNew, err := h.store.MarkProcessed(ctx, key, h.ttl)
	if err != nil {
		// a duplicate is preferable to a dropped event
		h.logger.Warn("Idempotency check failed, handling anyway",
			zap.String("handler", h.name),
			zap.String("event_type", ev.EventType()),
			zap.Error(err))
	} else if !isNew {
		h.logger.Debug("Skipping duplicate event",
			zap.String("handler", h.name),
			zap.String("event_id", ev.EventID().String()))
		return nil
	}

	if err := h.handler.Handle(ctx, ev); err != nil {
		if ferr := h.store.Forget(ctx, key); ferr != nil {
			h.logger.Warn("Failed to release idempotency key", zap.String("key", key), zap.Error(ferr))
		}
		return err
	}
	return nil
}
