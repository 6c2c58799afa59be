// Package tenant implements tenant sign-up, lifecycle and plan management.
package tenant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/backoffice/saas/internal/domain/shared"
	"github.com/backoffice/saas/internal/domain/tenant"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const maxSlugAttempts = 20

// TenantService handles tenant management operations
type TenantService struct {
	tenantRepo tenant.Repository
	publisher  shared.EventPublisher
	logger     *zap.Logger
	now        func() time.Time
}

// NewTenantService creates a new tenant service
func NewTenantService(
	tenantRepo tenant.Repository,
	publisher shared.EventPublisher,
	logger *zap.Logger,
) *TenantService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TenantService{
		tenantRepo: tenantRepo,
		publisher:  publisher,
		logger:     logger,
		now:        time.Now,
	}
}

// Create signs up a tenant on a free trial. A slug taken by another tenant
// gets a numeric suffix unless the caller asked for that exact slug.
func (s *TenantService) Create(ctx context.Context, req CreateTenantRequest) (*TenantResponse, error) {
	settings := tenant.DefaultSettings()
	if req.Currency != "" {
		settings.Currency = req.Currency
	}
	if req.Locale != "" {
		settings.Locale = req.Locale
	}
	if req.Timezone != "" {
		settings.Timezone = req.Timezone
	}

	t, err := tenant.NewTenant(req.Name, req.Email, settings)
	if err != nil {
		return nil, err
	}

	if req.Slug != "" {
		if err := t.SetSlug(req.Slug); err != nil {
			return nil, err
		}
		exists, err := s.tenantRepo.ExistsBySlug(ctx, t.Slug)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, shared.NewDomainError(shared.CodeAlreadyExists, "Tenant slug already taken").
				WithDetail("slug", t.Slug)
		}
	} else if err := s.assignFreeSlug(ctx, t); err != nil {
		return nil, err
	}

	if err := s.tenantRepo.Save(ctx, t); err != nil {
		return nil, err
	}
	s.publish(ctx, t)

	s.logger.Info("Tenant created",
		zap.String("tenant_id", t.ID.String()),
		zap.String("slug", t.Slug))
	return ToTenantResponse(t), nil
}

func (s *TenantService) assignFreeSlug(ctx context.Context, t *tenant.Tenant) error {
	base := t.Slug
	for i := 1; i <= maxSlugAttempts; i++ {
		candidate := base
		if i > 1 {
			suffix := fmt.Sprintf("-%d", i)
			candidate = strings.TrimRight(truncateSlug(base, 63-len(suffix)), "-") + suffix
		}
		exists, err := s.tenantRepo.ExistsBySlug(ctx, candidate)
		if err != nil {
			return err
		}
		if !exists {
			if candidate != t.Slug {
				return t.SetSlug(candidate)
			}
			return nil
		}
	}
	return shared.NewDomainError(shared.CodeAlreadyExists, "Could not find a free slug for this name").
		WithDetail("slug", base)
}

func truncateSlug(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// GetByID retrieves a tenant by ID
func (s *TenantService) GetByID(ctx context.Context, id uuid.UUID) (*TenantResponse, error) {
	t, err := s.tenantRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return ToTenantResponse(t), nil
}

// GetBySlug retrieves a tenant by slug
func (s *TenantService) GetBySlug(ctx context.Context, slug string) (*TenantResponse, error) {
	t, err := s.tenantRepo.FindBySlug(ctx, strings.ToLower(slug))
	if err != nil {
		return nil, err
	}
	return ToTenantResponse(t), nil
}

// Resolve returns the domain tenant for request routing
func (s *TenantService) Resolve(ctx context.Context, idOrSlug string) (*tenant.Tenant, error) {
	if id, err := uuid.Parse(idOrSlug); err == nil {
		return s.tenantRepo.FindByID(ctx, id)
	}
	return s.tenantRepo.FindBySlug(ctx, strings.ToLower(idOrSlug))
}

// List retrieves a page of tenants
func (s *TenantService) List(ctx context.Context, filter TenantListFilter) ([]TenantResponse, int64, error) {
	tenants, total, err := s.tenantRepo.FindAll(ctx, filter.ToSharedFilter())
	if err != nil {
		return nil, 0, err
	}
	out := make([]TenantResponse, len(tenants))
	for i := range tenants {
		out[i] = *ToTenantResponse(&tenants[i])
	}
	return out, total, nil
}

// Update applies the non-nil fields of req
func (s *TenantService) Update(ctx context.Context, id uuid.UUID, req UpdateTenantRequest) (*TenantResponse, error) {
	t, err := s.tenantRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	name, email, legalName, taxID := t.Name, t.Email, t.LegalName, t.TaxID
	settings := t.Settings
	if req.Name != nil {
		name = *req.Name
	}
	if req.Email != nil {
		email = *req.Email
	}
	if req.LegalName != nil {
		legalName = *req.LegalName
	}
	if req.TaxID != nil {
		taxID = *req.TaxID
	}
	if req.Currency != nil {
		settings.Currency = *req.Currency
	}
	if req.Locale != nil {
		settings.Locale = *req.Locale
	}
	if req.Timezone != nil {
		settings.Timezone = *req.Timezone
	}
	if err := t.Update(name, email, legalName, taxID, settings); err != nil {
		return nil, err
	}

	if err := s.tenantRepo.Save(ctx, t); err != nil {
		return nil, err
	}
	s.publish(ctx, t)
	s.logger.Info("Tenant updated", zap.String("tenant_id", id.String()))
	return ToTenantResponse(t), nil
}

// ChangePlan moves the tenant to another plan
func (s *TenantService) ChangePlan(ctx context.Context, id uuid.UUID, req ChangePlanRequest) (*TenantResponse, error) {
	return s.mutate(ctx, id, func(t *tenant.Tenant) error {
		return t.ChangePlan(tenant.PlanCode(req.PlanCode), req.ExpiresAt)
	})
}

// Activate moves a trial or suspended tenant to active
func (s *TenantService) Activate(ctx context.Context, id uuid.UUID) (*TenantResponse, error) {
	return s.mutate(ctx, id, func(t *tenant.Tenant) error { return t.Activate() })
}

// Suspend blocks a tenant
func (s *TenantService) Suspend(ctx context.Context, id uuid.UUID, reason string) (*TenantResponse, error) {
	return s.mutate(ctx, id, func(t *tenant.Tenant) error { return t.Suspend(reason) })
}

// Cancel closes a tenant account
func (s *TenantService) Cancel(ctx context.Context, id uuid.UUID, reason string) (*TenantResponse, error) {
	return s.mutate(ctx, id, func(t *tenant.Tenant) error { return t.Cancel(reason) })
}

// Reactivate reopens a cancelled tenant
func (s *TenantService) Reactivate(ctx context.Context, id uuid.UUID) (*TenantResponse, error) {
	return s.mutate(ctx, id, func(t *tenant.Tenant) error { return t.Reactivate() })
}

func (s *TenantService) mutate(ctx context.Context, id uuid.UUID, fn func(*tenant.Tenant) error) (*TenantResponse, error) {
	t, err := s.tenantRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(t); err != nil {
		return nil, err
	}
	if err := s.tenantRepo.Save(ctx, t); err != nil {
		return nil, err
	}
	s.publish(ctx, t)
	return ToTenantResponse(t), nil
}

// ConsumeStorage reserves bytes of the tenant's storage quota
func (s *TenantService) ConsumeStorage(ctx context.Context, id uuid.UUID, bytes int64) error {
	if bytes < 0 {
		return shared.InvalidInput("size cannot be negative")
	}
	return s.tenantRepo.AdjustStorageUsed(ctx, id, bytes)
}

// ReleaseStorage returns bytes to the tenant's quota
func (s *TenantService) ReleaseStorage(ctx context.Context, id uuid.UUID, bytes int64) error {
	if bytes <= 0 {
		return nil
	}
	return s.tenantRepo.AdjustStorageUsed(ctx, id, -bytes)
}

// CheckStorage fails with QUOTA_EXCEEDED when bytes more do not fit
func (s *TenantService) CheckStorage(ctx context.Context, id uuid.UUID, bytes int64) error {
	t, err := s.tenantRepo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	return t.CheckStorage(bytes)
}

// EnsureOperational fails with FORBIDDEN when the tenant may not use the service
func (s *TenantService) EnsureOperational(ctx context.Context, id uuid.UUID) (*tenant.Tenant, error) {
	t, err := s.tenantRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !t.IsOperational(s.now()) {
		return nil, shared.NewDomainError(shared.CodeForbidden, "Tenant is not operational").
			WithDetail("status", string(t.Status))
	}
	return t, nil
}

// Plans lists the plan catalog
func (s *TenantService) Plans() []PlanResponse {
	plans := tenant.Plans()
	out := make([]PlanResponse, len(plans))
	for i, p := range plans {
		out[i] = ToPlanResponse(p)
	}
	return out
}

func (s *TenantService) publish(ctx context.Context, t *tenant.Tenant) {
	if err := shared.PublishPending(ctx, s.publisher, t); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Warn("Failed to publish tenant events",
			zap.String("tenant_id", t.ID.String()),
			zap.Error(err))
	}
}
