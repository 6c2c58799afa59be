package media

import (
	"github.com/backoffice/saas/internal/domain/shared"
	"github.com/google/uuid"
)

const AggregateTypeMedia = "Media"

const (
	EventTypeMediaUploaded    = "MediaUploaded"
	EventTypeMediaTrashed     = "MediaTrashed"
	EventTypeMediaRestored    = "MediaRestored"
	EventTypeMediaDeleted     = "MediaDeleted"
	EventTypeMediaTransformed = "MediaTransformed"
)

// MediaEvent is published for every media lifecycle change
type MediaEvent struct {
	shared.BaseDomainEvent
	MediaID    uuid.UUID `json:"media_id"`
	Collection string    `json:"collection"`
	FileName   string    `json:"file_name"`
	MimeType   string    `json:"mime_type"`
	Bytes      int64     `json:"bytes"`
	Source     Source    `json:"source"`
}

func newMediaEvent(eventType string, m *Media) *MediaEvent {
	return &MediaEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(eventType, AggregateTypeMedia, m.ID, m.TenantID),
		MediaID:         m.ID,
		Collection:      m.Collection,
		FileName:        m.FileName,
		MimeType:        m.MimeType,
		Bytes:           m.TotalBytes(),
		Source:          m.Source,
	}
}

// MediaTransformedEvent is published after an image edit
type MediaTransformedEvent struct {
	MediaEvent
	SourceMediaID uuid.UUID `json:"source_media_id"`
	Operations    []string  `json:"operations"`
	SaveMode      SaveMode  `json:"save_mode"`
}

// MarkTransformed records an edit produced from source
func (m *Media) MarkTransformed(sourceID uuid.UUID, ops []Operation, mode SaveMode) {
	names := make([]string, len(ops))
	for i, op := range ops {
		names[i] = string(op.Type)
	}
	ev := &MediaTransformedEvent{
		MediaEvent:    *newMediaEvent(EventTypeMediaTransformed, m),
		SourceMediaID: sourceID,
		Operations:    names,
		SaveMode:      mode,
	}
	m.AddDomainEvent(ev)
}
