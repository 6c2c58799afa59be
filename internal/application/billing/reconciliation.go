package billing

import (
	"context"
	"time"

	"github.com/backoffice/saas/internal/domain/billing"
	"github.com/backoffice/saas/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// ReconcilePendingPayments re-queries pending payments older than olderThan
// and applies what the gateway reports. Payments still pending after the
// configured expiry are marked EXPIRED.
func (s *BillingService) ReconcilePendingPayments(ctx context.Context, olderThan time.Duration) (*ReconcileResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "billing", "reconcile_pending")
	defer span.End()

	now := s.now()
	pending, err := s.payments.FindPendingBefore(ctx, now.Add(-olderThan), s.opts.BatchLimit)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	result := &ReconcileResult{}
	for i := range pending {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		p := &pending[i]
		result.Checked++
		updated, expired, err := s.reconcilePayment(ctx, p, now)
		switch {
		case err != nil:
			result.Failed++
			s.logger.Warn("Failed to reconcile payment",
				zap.String("payment_id", p.ID.String()),
				zap.String("order_number", p.OrderNumber),
				zap.Error(err))
		case expired:
			result.Expired++
		case updated:
			result.Updated++
		}
	}

	telemetry.SetAttributes(span,
		"reconcile.checked", result.Checked,
		"reconcile.updated", result.Updated,
		"reconcile.expired", result.Expired,
		"reconcile.failed", result.Failed)
	if result.Checked > 0 {
		s.logger.Info("Reconciled pending payments",
			zap.Int("checked", result.Checked),
			zap.Int("updated", result.Updated),
			zap.Int("expired", result.Expired),
			zap.Int("failed", result.Failed))
	}
	return result, nil
}

func (s *BillingService) reconcilePayment(ctx context.Context, p *billing.Payment, now time.Time) (updated, expired bool, err error) {
	if gateway, ok := s.gateways[p.Gateway]; ok {
		q, err := s.queryPayment(ctx, gateway, p, "")
		if err != nil {
			s.logger.Debug("Gateway query failed during reconciliation",
				zap.String("payment_id", p.ID.String()),
				zap.Error(err))
		} else {
			tr, err := s.applyUpdate(ctx, p, s.updateFromQuery(p, q))
			if err != nil {
				return false, false, err
			}
			if tr == billing.TransitionApplied {
				return true, false, nil
			}
		}
	}

	if !p.IsStale(now, s.opts.PendingExpiry) {
		return false, false, nil
	}
	tr, err := s.applyUpdate(ctx, p, billing.GatewayUpdate{
		Status:        billing.PaymentStatusExpired,
		FailureReason: "payment was not completed in time",
	})
	if err != nil {
		return false, false, err
	}
	return false, tr == billing.TransitionApplied, nil
}

// ExpireSubscriptions ends live subscriptions whose period is over and
// downgrades tenants left without a paid subscription to the free plan.
func (s *BillingService) ExpireSubscriptions(ctx context.Context, now time.Time) (*ExpireResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "billing", "expire_subscriptions")
	defer span.End()

	due, err := s.subscriptions.FindDueForExpiry(ctx, now, s.opts.BatchLimit)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	result := &ExpireResult{}
	for i := range due {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		sub := &due[i]
		if !sub.Expire(now) {
			continue
		}
		if err := s.subscriptions.Save(ctx, sub); err != nil {
			result.Failed++
			s.logger.Warn("Failed to expire subscription",
				zap.String("subscription_id", sub.ID.String()),
				zap.Error(err))
			continue
		}
		s.publish(ctx, sub)
		result.Expired++

		downgraded, err := s.downgradeIfUncovered(ctx, sub.TenantID, now)
		switch {
		case err != nil:
			result.Failed++
			s.logger.Warn("Failed to downgrade tenant",
				zap.String("tenant_id", sub.TenantID.String()),
				zap.Error(err))
		case downgraded:
			result.Downgraded++
		default:
			result.StillActive++
		}
	}

	if result.Expired > 0 || result.Failed > 0 {
		s.logger.Info("Expired subscriptions",
			zap.Int("expired", result.Expired),
			zap.Int("downgraded", result.Downgraded),
			zap.Int("failed", result.Failed))
	}
	return result, nil
}
