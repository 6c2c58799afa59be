package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/backoffice/saas/internal/domain/shared"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ValidateSortOrder normalizes the sort order to ASC or DESC (the default)
func ValidateSortOrder(orderDir string) string {
	if strings.EqualFold(strings.TrimSpace(orderDir), "asc") {
		return "ASC"
	}
	return "DESC"
}

// ValidateSortField returns sortField when whitelisted, else defaultField
func ValidateSortField(sortField string, allowed map[string]bool, defaultField string) string {
	f := strings.TrimSpace(sortField)
	if allowed[f] {
		return f
	}
	return defaultField
}

var (
	TenantSortFields       = sortFields("name", "slug", "status", "plan_code", "trial_ends_at", "plan_expires_at")
	PaymentSortFields      = sortFields("amount", "status", "paid_at", "order_number")
	WebhookSortFields      = sortFields("status", "attempts", "processed_at")
	MediaSortFields        = sortFields("name", "file_name", "size", "mime_type", "order_column", "deleted_at")
	CategorySortFields     = sortFields("name", "slug", "sort_order", "depth")
	ProductSortFields      = sortFields("name", "sku", "price", "stock", "status")
	InvoiceSortFields      = sortFields("number", "issue_date", "due_date", "total", "status")
	PageSortFields         = sortFields("title", "slug", "status", "published_at")
	SeoSortFields          = sortFields("subject_type", "meta_title")
	defaultSortFieldByName = "created_at"
)

func sortFields(extra ...string) map[string]bool {
	m := map[string]bool{"id": true, "created_at": true, "updated_at": true}
	for _, f := range extra {
		m[f] = true
	}
	return m
}

// paginate applies ordering, offset and limit from filter
func paginate(q *gorm.DB, filter shared.Filter, allowed map[string]bool) *gorm.DB {
	f := filter.Normalize()
	field := ValidateSortField(f.OrderBy, allowed, defaultSortFieldByName)
	return q.Order(field + " " + ValidateSortOrder(f.OrderDir)).Offset(f.Offset()).Limit(f.PageSize)
}

// likePattern builds a case-insensitive LIKE argument; % and _ in the input are escaped
func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + strings.ToLower(r.Replace(strings.TrimSpace(s))) + "%"
}

func translateNotFound(err error, resource string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return shared.NotFound(resource)
	}
	return err
}

// versioned is a row carrying an optimistic-lock version
type versioned interface {
	GetID() uuid.UUID
	GetVersion() int
}

// saveVersioned updates row when the stored version is older than the
// in-memory one, inserts it when absent, and reports a concurrency
// conflict otherwise. Aggregates bump their version on every mutation, so
// saving an unmodified aggregate is also reported as a conflict.
func saveVersioned(ctx context.Context, db *gorm.DB, row versioned, omit ...string) error {
	q := db.WithContext(ctx).Model(row).
		Where("id = ? AND version < ?", row.GetID(), row.GetVersion()).
		Select("*").Omit(append([]string{"id", "created_at"}, omit...)...)
	res := q.Updates(row)
	if res.Error != nil {
		return fmt.Errorf("update %T: %w", row, res.Error)
	}
	if res.RowsAffected > 0 {
		return nil
	}

	var count int64
	if err := db.WithContext(ctx).Model(row).Where("id = ?", row.GetID()).Count(&count).Error; err != nil {
		return fmt.Errorf("check %T: %w", row, err)
	}
	if count > 0 {
		return shared.ErrConcurrencyConflict
	}
	if err := db.WithContext(ctx).Create(row).Error; err != nil {
		if isUniqueViolation(err) {
			return shared.ErrAlreadyExists.WithCause(err)
		}
		return fmt.Errorf("insert %T: %w", row, err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "UNIQUE constraint failed")
}

// rowsToDomain converts rows with a decoder that can fail on a corrupt column
func rowsToDomain[M, D any](rows []M, toDomain func(*M) (*D, error)) ([]D, error) {
	out := make([]D, len(rows))
	for i := range rows {
		d, err := toDomain(&rows[i])
		if err != nil {
			return nil, err
		}
		out[i] = *d
	}
	return out, nil
}
