package tenant

import (
	"github.com/backoffice/saas/internal/domain/shared"
)

const AggregateTypeTenant = "Tenant"

const (
	EventTypeTenantCreated       = "TenantCreated"
	EventTypeTenantStatusChanged = "TenantStatusChanged"
	EventTypeTenantPlanChanged   = "TenantPlanChanged"
)

// TenantCreatedEvent is published when a tenant signs up
type TenantCreatedEvent struct {
	shared.BaseDomainEvent
	Name  string   `json:"name"`
	Slug  string   `json:"slug"`
	Email string   `json:"email"`
	Plan  PlanCode `json:"plan"`
}

func newTenantCreatedEvent(t *Tenant) *TenantCreatedEvent {
	return &TenantCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeTenantCreated, AggregateTypeTenant, t.ID, t.ID),
		Name:            t.Name,
		Slug:            t.Slug,
		Email:           t.Email,
		Plan:            t.PlanCode,
	}
}

// TenantStatusChangedEvent is published on every lifecycle transition
type TenantStatusChangedEvent struct {
	shared.BaseDomainEvent
	OldStatus Status `json:"old_status"`
	NewStatus Status `json:"new_status"`
	Reason    string `json:"reason,omitempty"`
}

func newTenantStatusChangedEvent(t *Tenant, old Status, reason string) *TenantStatusChangedEvent {
	return &TenantStatusChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeTenantStatusChanged, AggregateTypeTenant, t.ID, t.ID),
		OldStatus:       old,
		NewStatus:       t.Status,
		Reason:          reason,
	}
}

// TenantPlanChangedEvent is published when the plan changes
type TenantPlanChangedEvent struct {
	shared.BaseDomainEvent
	OldPlan PlanCode `json:"old_plan"`
	NewPlan PlanCode `json:"new_plan"`
}

func newTenantPlanChangedEvent(t *Tenant, old PlanCode) *TenantPlanChangedEvent {
	return &TenantPlanChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeTenantPlanChanged, AggregateTypeTenant, t.ID, t.ID),
		OldPlan:         old,
		NewPlan:         t.PlanCode,
	}
}
