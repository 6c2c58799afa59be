package models

import (
	"time"

	"github.com/backoffice/saas/internal/domain/media"
	"github.com/google/uuid"
)

// MediaModel is the persistence model for Media
type MediaModel struct {
	TenantAggregateModel
	Collection       string       `gorm:"type:varchar(64);not null;index:idx_media_collection"`
	ModelType        string       `gorm:"type:varchar(50)"`
	ModelID          *uuid.UUID   `gorm:"type:uuid;index"`
	Name             string       `gorm:"type:varchar(255);not null"`
	FileName         string       `gorm:"type:varchar(255);not null"`
	MimeType         string       `gorm:"type:varchar(100);not null;index"`
	Size             int64        `gorm:"not null"`
	Disk             media.Disk   `gorm:"type:varchar(10);not null"`
	StorageKey       string       `gorm:"type:varchar(500);not null"`
	Width            int          `gorm:"not null;default:0"`
	Height           int          `gorm:"not null;default:0"`
	CustomProperties string       `gorm:"type:jsonb;not null;default:'{}'"`
	OrderColumn      int          `gorm:"not null;default:0"`
	Source           media.Source `gorm:"type:varchar(10);not null"`
	SourceURL        string       `gorm:"type:text"`
	Diagnostics      string       `gorm:"type:jsonb"`
	Conversions      string       `gorm:"type:jsonb;not null;default:'{}'"`
	DeletedAt        *time.Time   `gorm:"index"`
}

// TableName returns the table name for GORM
func (MediaModel) TableName() string { return "media" }

// MediaModelFromDomain maps a media item to its row
func MediaModelFromDomain(m *media.Media) *MediaModel {
	row := &MediaModel{
		Collection:       m.Collection,
		ModelType:        m.ModelType,
		ModelID:          m.ModelID,
		Name:             m.Name,
		FileName:         m.FileName,
		MimeType:         m.MimeType,
		Size:             m.Size,
		Disk:             m.Disk,
		StorageKey:       m.StorageKey,
		Width:            m.Width,
		Height:           m.Height,
		CustomProperties: marshalJSON(m.CustomProperties, "{}"),
		OrderColumn:      m.OrderColumn,
		Source:           m.Source,
		SourceURL:        m.SourceURL,
		Conversions:      marshalJSON(m.Conversions, "{}"),
		DeletedAt:        m.DeletedAt,
	}
	if m.Diagnostics != nil {
		row.Diagnostics = marshalJSON(m.Diagnostics, "")
	}
	row.fromTenantAggregate(m.TenantAggregateRoot)
	return row
}

// ToDomain converts the row to a media item
func (row *MediaModel) ToDomain() (*media.Media, error) {
	m := &media.Media{
		TenantAggregateRoot: row.toTenantAggregate(),
		Collection:          row.Collection,
		ModelType:           row.ModelType,
		ModelID:             row.ModelID,
		Name:                row.Name,
		FileName:            row.FileName,
		MimeType:            row.MimeType,
		Size:                row.Size,
		Disk:                row.Disk,
		StorageKey:          row.StorageKey,
		Width:               row.Width,
		Height:              row.Height,
		CustomProperties:    map[string]any{},
		OrderColumn:         row.OrderColumn,
		Source:              row.Source,
		SourceURL:           row.SourceURL,
		Conversions:         map[string]media.Conversion{},
		DeletedAt:           row.DeletedAt,
	}
	if err := unmarshalJSON("custom_properties", row.CustomProperties, &m.CustomProperties); err != nil {
		return nil, err
	}
	if err := unmarshalJSON("conversions", row.Conversions, &m.Conversions); err != nil {
		return nil, err
	}
	if row.Diagnostics != "" {
		m.Diagnostics = &media.FetchDiagnostics{}
		if err := unmarshalJSON("diagnostics", row.Diagnostics, m.Diagnostics); err != nil {
			return nil, err
		}
	}
	return m, nil
}
