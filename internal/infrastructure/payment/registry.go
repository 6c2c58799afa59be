package payment

import (
	"fmt"

	"github.com/backoffice/saas/internal/domain/billing"
	infraconfig "github.com/backoffice/saas/internal/infrastructure/config"
	"go.uber.org/zap"
)

// NewGateways builds the adapters of every enabled gateway
func NewGateways(cfg infraconfig.PaymentConfig, logger *zap.Logger) (map[billing.GatewayType]billing.PaymentGateway, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	gateways := make(map[billing.GatewayType]billing.PaymentGateway)
	if cfg.Culqi.Enabled {
		a, err := NewCulqiAdapter(cfg.Culqi, logger)
		if err != nil {
			return nil, fmt.Errorf("culqi: %w", err)
		}
		gateways[a.Type()] = a
	}
	if cfg.MercadoPago.Enabled {
		a, err := NewMercadoPagoAdapter(cfg.MercadoPago, logger)
		if err != nil {
			return nil, fmt.Errorf("mercadopago: %w", err)
		}
		gateways[a.Type()] = a
	}
	if cfg.PayPhone.Enabled {
		a, err := NewPayPhoneAdapter(cfg.PayPhone, logger)
		if err != nil {
			return nil, fmt.Errorf("payphone: %w", err)
		}
		gateways[a.Type()] = a
	}
	if len(gateways) == 0 {
		logger.Warn("No payment gateway enabled; checkout is unavailable")
	}
	return gateways, nil
}
