package catalog

import (
	"github.com/backoffice/saas/internal/domain/shared"
	"github.com/google/uuid"
)

const AggregateTypeProduct = "Product"

const (
	EventTypeProductCreated   = "ProductCreated"
	EventTypeProductPublished = "ProductPublished"
)

// ProductEvent is published when a product is created or published
type ProductEvent struct {
	shared.BaseDomainEvent
	ProductID uuid.UUID `json:"product_id"`
	SKU       string    `json:"sku"`
	Name      string    `json:"name"`
}

func newProductEvent(eventType string, p *Product) *ProductEvent {
	return &ProductEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(eventType, AggregateTypeProduct, p.ID, p.TenantID),
		ProductID:       p.ID,
		SKU:             p.SKU,
		Name:            p.Name,
	}
}
