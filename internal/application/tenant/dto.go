package tenant

import (
	"time"

	"github.com/backoffice/saas/internal/domain/shared"
	"github.com/backoffice/saas/internal/domain/tenant"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CreateTenantRequest represents a request to sign up a tenant
type CreateTenantRequest struct {
	Name     string `json:"name" binding:"required,min=1,max=200"`
	Email    string `json:"email" binding:"required,email"`
	Slug     string `json:"slug" binding:"omitempty,min=3,max=63"`
	Currency string `json:"currency" binding:"omitempty,len=3"`
	Locale   string `json:"locale" binding:"omitempty,max=20"`
	Timezone string `json:"timezone" binding:"omitempty,max=64"`
}

// UpdateTenantRequest represents a partial tenant update
type UpdateTenantRequest struct {
	Name      *string `json:"name" binding:"omitempty,min=1,max=200"`
	Email     *string `json:"email" binding:"omitempty,email"`
	LegalName *string `json:"legal_name" binding:"omitempty,max=200"`
	TaxID     *string `json:"tax_id" binding:"omitempty,max=15"`
	Currency  *string `json:"currency" binding:"omitempty,len=3"`
	Locale    *string `json:"locale" binding:"omitempty,max=20"`
	Timezone  *string `json:"timezone" binding:"omitempty,max=64"`
}

// ChangePlanRequest moves a tenant to another plan
type ChangePlanRequest struct {
	PlanCode  string     `json:"plan_code" binding:"required,oneof=free basic pro enterprise"`
	ExpiresAt *time.Time `json:"expires_at"`
}

// StatusChangeRequest carries the reason for suspend and cancel
type StatusChangeRequest struct {
	Reason string `json:"reason" binding:"max=500"`
}

// TenantListFilter represents query parameters for listing tenants
type TenantListFilter struct {
	Search   string `form:"search"`
	Status   string `form:"status" binding:"omitempty,oneof=trial active suspended cancelled"`
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderBy  string `form:"order_by"`
	OrderDir string `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

// ToSharedFilter converts the query parameters to a repository filter
func (f TenantListFilter) ToSharedFilter() shared.Filter {
	filter := shared.Filter{
		Page:     f.Page,
		PageSize: f.PageSize,
		OrderBy:  f.OrderBy,
		OrderDir: f.OrderDir,
		Search:   f.Search,
	}.Normalize()
	if f.Status != "" {
		filter.Filters["status"] = f.Status
	}
	return filter
}

// SettingsResponse mirrors tenant.Settings
type SettingsResponse struct {
	Currency string `json:"currency"`
	Locale   string `json:"locale"`
	Timezone string `json:"timezone"`
}

// TenantResponse represents a tenant in API responses
type TenantResponse struct {
	ID                uuid.UUID        `json:"id"`
	Name              string           `json:"name"`
	Slug              string           `json:"slug"`
	Email             string           `json:"email"`
	LegalName         string           `json:"legal_name,omitempty"`
	TaxID             string           `json:"tax_id,omitempty"`
	Status            string           `json:"status"`
	StatusReason      string           `json:"status_reason,omitempty"`
	PlanCode          string           `json:"plan_code"`
	TrialEndsAt       *time.Time       `json:"trial_ends_at,omitempty"`
	PlanExpiresAt     *time.Time       `json:"plan_expires_at,omitempty"`
	Settings          SettingsResponse `json:"settings"`
	StorageQuotaBytes int64            `json:"storage_quota_bytes"`
	StorageUsedBytes  int64            `json:"storage_used_bytes"`
	Operational       bool             `json:"operational"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
	Version           int              `json:"version"`
}

// ToTenantResponse converts a domain tenant
func ToTenantResponse(t *tenant.Tenant) *TenantResponse {
	return &TenantResponse{
		ID:            t.ID,
		Name:          t.Name,
		Slug:          t.Slug,
		Email:         t.Email,
		LegalName:     t.LegalName,
		TaxID:         t.TaxID,
		Status:        string(t.Status),
		StatusReason:  t.StatusReason,
		PlanCode:      string(t.PlanCode),
		TrialEndsAt:   t.TrialEndsAt,
		PlanExpiresAt: t.PlanExpiresAt,
		Settings: SettingsResponse{
			Currency: t.Settings.Currency,
			Locale:   t.Settings.Locale,
			Timezone: t.Settings.Timezone,
		},
		StorageQuotaBytes: t.StorageQuotaBytes,
		StorageUsedBytes:  t.StorageUsedBytes,
		Operational:       t.IsOperational(time.Now()),
		CreatedAt:         t.CreatedAt,
		UpdatedAt:         t.UpdatedAt,
		Version:           t.Version,
	}
}

// PlanResponse represents a plan in API responses
type PlanResponse struct {
	Code                string                     `json:"code"`
	Name                string                     `json:"name"`
	Prices              map[string]decimal.Decimal `json:"prices"`
	MaxStorageBytes     int64                      `json:"max_storage_bytes"`
	MaxProducts         int64                      `json:"max_products"`
	MaxInvoicesPerMonth int64                      `json:"max_invoices_per_month"`
}

// ToPlanResponse converts a plan definition
func ToPlanResponse(p tenant.Plan) PlanResponse {
	return PlanResponse{
		Code:                string(p.Code),
		Name:                p.Name,
		Prices:              p.Prices,
		MaxStorageBytes:     p.MaxStorageBytes,
		MaxProducts:         p.MaxProducts,
		MaxInvoicesPerMonth: p.MaxInvoicesPerMonth,
	}
}
