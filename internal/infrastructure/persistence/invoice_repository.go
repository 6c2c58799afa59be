package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/backoffice/saas/internal/domain/invoicing"
	"github.com/backoffice/saas/internal/domain/shared"
	"github.com/backoffice/saas/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormInvoiceRepository implements invoicing.Repository
type GormInvoiceRepository struct {
	db *gorm.DB
}

// NewGormInvoiceRepository creates a new GormInvoiceRepository
func NewGormInvoiceRepository(db *gorm.DB) *GormInvoiceRepository {
	return &GormInvoiceRepository{db: db}
}

func (r *GormInvoiceRepository) scoped(ctx context.Context, tenantID uuid.UUID) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.InvoiceModel{}).Where("tenant_id = ?", tenantID)
}

// FindByIDForTenant finds an invoice within a tenant
func (r *GormInvoiceRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*invoicing.Invoice, error) {
	var m models.InvoiceModel
	if err := r.scoped(ctx, tenantID).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, translateNotFound(err, "invoice")
	}
	return m.ToDomain()
}

// FindAllForTenant lists invoices filtered by status and issue date range
func (r *GormInvoiceRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, iq invoicing.Query) ([]invoicing.Invoice, int64, error) {
	q := r.scoped(ctx, tenantID)
	if iq.Status != "" {
		q = q.Where("status = ?", iq.Status)
	}
	if iq.From != nil {
		q = q.Where("issue_date >= ?", iq.From.UTC())
	}
	if iq.To != nil {
		q = q.Where("issue_date <= ?", iq.To.UTC())
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count invoices: %w", err)
	}
	var rows []models.InvoiceModel
	if err := paginate(q, iq.Filter, InvoiceSortFields).Find(&rows).Error; err != nil {
		return nil, 0, fmt.Errorf("list invoices: %w", err)
	}
	out, err := rowsToDomain(rows, (*models.InvoiceModel).ToDomain)
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// Save inserts or updates an invoice
func (r *GormInvoiceRepository) Save(ctx context.Context, inv *invoicing.Invoice) error {
	return saveVersioned(ctx, r.db, models.InvoiceModelFromDomain(inv))
}

// IssueWithNextNumber locks the tenant row, then the tenant+series counter
// row. Holding the tenant lock keeps the issued count exact across series
// until the transaction commits.
func (r *GormInvoiceRepository) IssueWithNextNumber(ctx context.Context, inv *invoicing.Invoice, since time.Time, issue func(number, issuedSince int64) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var locked []models.TenantModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id").Where("id = ?", inv.TenantID).Find(&locked).Error; err != nil {
			return fmt.Errorf("lock tenant: %w", err)
		}
		var used int64
		if err := tx.Model(&models.InvoiceModel{}).
			Where("tenant_id = ? AND number > 0 AND issue_date >= ?", inv.TenantID, since.UTC()).
			Count(&used).Error; err != nil {
			return fmt.Errorf("count issued invoices: %w", err)
		}

		seq := models.InvoiceSequenceModel{TenantID: inv.TenantID, Series: inv.Series}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&seq).Error; err != nil {
			return fmt.Errorf("init invoice sequence: %w", err)
		}
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("tenant_id = ? AND series = ?", inv.TenantID, inv.Series).
			First(&seq).Error; err != nil {
			return fmt.Errorf("lock invoice sequence: %w", err)
		}
		next := seq.LastNumber + 1
		if err := issue(next, used); err != nil {
			return err
		}
		if err := tx.Model(&models.InvoiceSequenceModel{}).
			Where("tenant_id = ? AND series = ?", inv.TenantID, inv.Series).
			Update("last_number", next).Error; err != nil {
			return fmt.Errorf("advance invoice sequence: %w", err)
		}
		return saveVersioned(ctx, tx, models.InvoiceModelFromDomain(inv))
	})
}

// Delete removes a draft invoice
func (r *GormInvoiceRepository) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Where("tenant_id = ? AND id = ?", tenantID, id).Delete(&models.InvoiceModel{})
	if res.Error != nil {
		return fmt.Errorf("delete invoice: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return shared.NotFound("invoice")
	}
	return nil
}

// CountIssuedSince counts numbered invoices with an issue date at or after since
func (r *GormInvoiceRepository) CountIssuedSince(ctx context.Context, tenantID uuid.UUID, since time.Time) (int64, error) {
	var n int64
	err := r.scoped(ctx, tenantID).Where("number > 0 AND issue_date >= ?", since.UTC()).Count(&n).Error
	return n, err
}

// RevenueSince sums the totals of issued and paid invoices per currency.
// Voided invoices do not count.
func (r *GormInvoiceRepository) RevenueSince(ctx context.Context, tenantID uuid.UUID, since time.Time) ([]invoicing.Revenue, error) {
	var rows []struct {
		Currency string
		Total    decimal.Decimal
	}
	if err := r.scoped(ctx, tenantID).
		Select("currency, COALESCE(SUM(total), 0) AS total").
		Where("status IN ? AND issue_date >= ?", []invoicing.Status{invoicing.StatusIssued, invoicing.StatusPaid}, since.UTC()).
		Group("currency").Order("currency").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("invoice revenue: %w", err)
	}
	out := make([]invoicing.Revenue, len(rows))
	for i, row := range rows {
		out[i] = invoicing.Revenue{Currency: row.Currency, Total: row.Total}
	}
	return out, nil
}
