// Package billing provides the subscription and payment model of the back-office.
//
// A tenant subscribes to a paid plan through one of the supported gateways
// (Culqi, MercadoPago, PayPhone). Each charge attempt is a Payment whose
// status only moves through the transitions declared in payment_status.go;
// webhooks and reconciliation both funnel gateway reports through
// Payment.ApplyGatewayStatus so that replays are no-ops and regressions are
// ignored.
//
// Key aggregates:
//   - Subscription: plan, billing period and renewal state for a tenant
//   - Payment: one gateway charge and its refunds
//
// Entities:
//   - WebhookEvent: persisted inbox record of every gateway notification
//
// The PaymentGateway port is implemented by infrastructure/payment adapters.
package billing
