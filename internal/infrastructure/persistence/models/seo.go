package models

import (
	"github.com/backoffice/saas/internal/domain/seo"
	"github.com/google/uuid"
)

// SeoMetaModel is the persistence model for SeoMeta. Home metadata is
// stored with subject_id = uuid.Nil so the (tenant, type, id) key stays unique.
type SeoMetaModel struct {
	TenantAggregateModel
	SubjectType     seo.SubjectType `gorm:"type:varchar(20);not null"`
	SubjectID       uuid.UUID       `gorm:"type:uuid;not null"`
	MetaTitle       string          `gorm:"type:varchar(70)"`
	MetaDescription string          `gorm:"type:varchar(160)"`
	Keywords        string          `gorm:"type:jsonb;not null;default:'[]'"`
	CanonicalURL    string          `gorm:"type:varchar(500)"`
	RobotsIndex     bool            `gorm:"not null"`
	RobotsFollow    bool            `gorm:"not null"`
	OgTitle         string          `gorm:"type:varchar(200)"`
	OgDescription   string          `gorm:"type:varchar(300)"`
	OgImageMediaID  *uuid.UUID      `gorm:"type:uuid"`
}

// TableName returns the table name for GORM
func (SeoMetaModel) TableName() string { return "seo_meta" }

// SubjectKey returns the stored subject id for s
func SubjectKey(s seo.Subject) uuid.UUID {
	if s.ID == nil {
		return uuid.Nil
	}
	return *s.ID
}

// SeoMetaModelFromDomain maps metadata to its row
func SeoMetaModelFromDomain(m *seo.SeoMeta) *SeoMetaModel {
	row := &SeoMetaModel{
		SubjectType:     m.Subject.Type,
		SubjectID:       SubjectKey(m.Subject),
		MetaTitle:       m.MetaTitle,
		MetaDescription: m.MetaDescription,
		Keywords:        marshalJSON(m.Keywords, "[]"),
		CanonicalURL:    m.CanonicalURL,
		RobotsIndex:     m.Robots.Index,
		RobotsFollow:    m.Robots.Follow,
		OgTitle:         m.OgTitle,
		OgDescription:   m.OgDescription,
		OgImageMediaID:  m.OgImageMediaID,
	}
	row.fromTenantAggregate(m.TenantAggregateRoot)
	return row
}

// Subject rebuilds the domain subject
func (row *SeoMetaModel) Subject() seo.Subject {
	s := seo.Subject{Type: row.SubjectType}
	if row.SubjectID != uuid.Nil {
		id := row.SubjectID
		s.ID = &id
	}
	return s
}

// ToDomain converts the row to metadata
func (row *SeoMetaModel) ToDomain() (*seo.SeoMeta, error) {
	m := &seo.SeoMeta{
		TenantAggregateRoot: row.toTenantAggregate(),
		Subject:             row.Subject(),
		MetaTitle:           row.MetaTitle,
		MetaDescription:     row.MetaDescription,
		Keywords:            []string{},
		CanonicalURL:        row.CanonicalURL,
		Robots:              seo.Robots{Index: row.RobotsIndex, Follow: row.RobotsFollow},
		OgTitle:             row.OgTitle,
		OgDescription:       row.OgDescription,
		OgImageMediaID:      row.OgImageMediaID,
	}
	if err := unmarshalJSON("keywords", row.Keywords, &m.Keywords); err != nil {
		return nil, err
	}
	return m, nil
}

// All lists every model for test schema setup
func All() []any {
	return []any{
		&TenantModel{}, &SubscriptionModel{}, &PaymentModel{}, &WebhookEventModel{},
		&MediaModel{}, &CategoryModel{}, &ProductModel{},
		&InvoiceModel{}, &InvoiceSequenceModel{}, &PageModel{}, &SeoMetaModel{},
	}
}
