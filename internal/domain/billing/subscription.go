package billing

import (
	"strings"
	"time"

	"github.com/backoffice/saas/internal/domain/shared"
	"github.com/backoffice/saas/internal/domain/tenant"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SubscriptionStatus is the lifecycle state of a subscription
type SubscriptionStatus string

const (
	SubscriptionPending   SubscriptionStatus = "pending"
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionPastDue   SubscriptionStatus = "past_due"
	SubscriptionCancelled SubscriptionStatus = "cancelled"
	SubscriptionExpired   SubscriptionStatus = "expired"
)

// IsLive reports whether the subscription still grants its plan
func (s SubscriptionStatus) IsLive() bool {
	return s == SubscriptionActive || s == SubscriptionPastDue
}

// Subscription binds a tenant to a paid plan for monthly periods
type Subscription struct {
	shared.TenantAggregateRoot
	PlanCode           tenant.PlanCode
	Gateway            GatewayType
	Status             SubscriptionStatus
	Amount             decimal.Decimal
	Currency           string
	CurrentPeriodStart *time.Time
	CurrentPeriodEnd   *time.Time
	CancelAtPeriodEnd  bool
	ExternalReference  string
	CancelledAt        *time.Time
}

// NewSubscription creates a pending subscription awaiting its first payment
func NewSubscription(tenantID uuid.UUID, plan tenant.Plan, gateway GatewayType, currency string) (*Subscription, error) {
	s := &Subscription{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		Status:              SubscriptionPending,
	}
	if err := s.Reprice(plan, gateway, currency); err != nil {
		return nil, err
	}
	return s, nil
}

// Reprice points a pending subscription at another plan, gateway or currency
func (s *Subscription) Reprice(plan tenant.Plan, gateway GatewayType, currency string) error {
	if s.Status != SubscriptionPending {
		return shared.InvalidState("cannot reprice a %s subscription", s.Status)
	}
	if plan.IsFree() {
		return shared.InvalidInput("the free plan does not need a subscription")
	}
	if !gateway.IsValid() {
		return shared.InvalidInput("unsupported gateway %q", gateway)
	}
	currency = strings.ToUpper(currency)
	price, ok := plan.PriceFor(currency)
	if !ok {
		return shared.InvalidInput("plan %s is not sold in %s", plan.Code, currency)
	}
	s.PlanCode = plan.Code
	s.Gateway = gateway
	s.Currency = currency
	s.Amount = price
	s.IncrementVersion()
	return nil
}

// Activate starts or renews the billing period after a successful payment.
// A renewal paid before the current period ends extends from that end.
func (s *Subscription) Activate(paidAt time.Time) error {
	switch s.Status {
	case SubscriptionPending, SubscriptionActive, SubscriptionPastDue, SubscriptionExpired:
	default:
		return shared.InvalidState("cannot activate a %s subscription", s.Status)
	}
	start := paidAt.UTC()
	if s.Status.IsLive() && s.CurrentPeriodEnd != nil && s.CurrentPeriodEnd.After(start) {
		start = *s.CurrentPeriodEnd
	}
	end := start.AddDate(0, 1, 0)
	s.CurrentPeriodStart = &start
	s.CurrentPeriodEnd = &end
	s.Status = SubscriptionActive
	s.CancelAtPeriodEnd = false
	s.IncrementVersion()
	s.AddDomainEvent(NewSubscriptionActivatedEvent(s))
	return nil
}

// MarkPastDue flags an active subscription whose renewal failed
func (s *Subscription) MarkPastDue() bool {
	if s.Status != SubscriptionActive {
		return false
	}
	s.Status = SubscriptionPastDue
	s.IncrementVersion()
	return true
}

// Cancel stops the subscription now or at the end of the current period
func (s *Subscription) Cancel(atPeriodEnd bool, now time.Time) error {
	switch s.Status {
	case SubscriptionCancelled, SubscriptionExpired:
		return shared.InvalidState("subscription is already %s", s.Status)
	}
	if atPeriodEnd && s.Status.IsLive() {
		s.CancelAtPeriodEnd = true
		s.IncrementVersion()
		return nil
	}
	at := now.UTC()
	s.Status = SubscriptionCancelled
	s.CancelledAt = &at
	s.IncrementVersion()
	s.AddDomainEvent(NewSubscriptionEndedEvent(s, EventTypeSubscriptionCancelled))
	return nil
}

// Expire ends a live subscription whose period is over.
// It returns false when the subscription is not due.
func (s *Subscription) Expire(now time.Time) bool {
	if !s.Status.IsLive() || s.CurrentPeriodEnd == nil || s.CurrentPeriodEnd.After(now) {
		return false
	}
	at := now.UTC()
	eventType := EventTypeSubscriptionExpired
	if s.CancelAtPeriodEnd {
		s.Status = SubscriptionCancelled
		s.CancelledAt = &at
		eventType = EventTypeSubscriptionCancelled
	} else {
		s.Status = SubscriptionExpired
	}
	s.IncrementVersion()
	s.AddDomainEvent(NewSubscriptionEndedEvent(s, eventType))
	return true
}

// DaysRemaining returns whole days until the period ends, or 0
func (s *Subscription) DaysRemaining(now time.Time) int {
	if s.CurrentPeriodEnd == nil || !s.CurrentPeriodEnd.After(now) {
		return 0
	}
	return int(s.CurrentPeriodEnd.Sub(now).Hours() / 24)
}
