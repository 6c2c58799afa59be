package models

import (
	"time"

	"github.com/backoffice/saas/internal/domain/tenant"
)

// TenantModel is the persistence model for the Tenant aggregate.
type TenantModel struct {
	AggregateModel
	Name              string          `gorm:"type:varchar(200);not null"`
	Slug              string          `gorm:"type:varchar(63);not null;uniqueIndex"`
	Email             string          `gorm:"type:varchar(200);not null"`
	LegalName         string          `gorm:"type:varchar(200)"`
	TaxID             string          `gorm:"type:varchar(20)"`
	Status            tenant.Status   `gorm:"type:varchar(20);not null;index"`
	PlanCode          tenant.PlanCode `gorm:"type:varchar(20);not null"`
	TrialEndsAt       *time.Time
	PlanExpiresAt     *time.Time
	Settings          string `gorm:"type:jsonb;not null;default:'{}'"`
	StorageQuotaBytes int64  `gorm:"not null;default:0"`
	StorageUsedBytes  int64  `gorm:"not null;default:0"`
	StatusReason      string `gorm:"type:varchar(500)"`
}

// TableName returns the table name for GORM
func (TenantModel) TableName() string { return "tenants" }

// TenantModelFromDomain maps a tenant to its row
func TenantModelFromDomain(t *tenant.Tenant) *TenantModel {
	m := &TenantModel{
		Name:              t.Name,
		Slug:              t.Slug,
		Email:             t.Email,
		LegalName:         t.LegalName,
		TaxID:             t.TaxID,
		Status:            t.Status,
		PlanCode:          t.PlanCode,
		TrialEndsAt:       t.TrialEndsAt,
		PlanExpiresAt:     t.PlanExpiresAt,
		Settings:          marshalJSON(t.Settings, "{}"),
		StorageQuotaBytes: t.StorageQuotaBytes,
		StorageUsedBytes:  t.StorageUsedBytes,
		StatusReason:      t.StatusReason,
	}
	m.fromAggregate(t.BaseAggregateRoot)
	return m
}

// ToDomain converts the row to a tenant
func (m *TenantModel) ToDomain() (*tenant.Tenant, error) {
	t := &tenant.Tenant{
		BaseAggregateRoot: m.toAggregate(),
		Name:              m.Name,
		Slug:              m.Slug,
		Email:             m.Email,
		LegalName:         m.LegalName,
		TaxID:             m.TaxID,
		Status:            m.Status,
		PlanCode:          m.PlanCode,
		TrialEndsAt:       m.TrialEndsAt,
		PlanExpiresAt:     m.PlanExpiresAt,
		StorageQuotaBytes: m.StorageQuotaBytes,
		StorageUsedBytes:  m.StorageUsedBytes,
		StatusReason:      m.StatusReason,
	}
	if err := unmarshalJSON("settings", m.Settings, &t.Settings); err != nil {
		return nil, err
	}
	return t, nil
}
