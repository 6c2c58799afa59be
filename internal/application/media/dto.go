package media

import (
	"io"
	"time"

	"github.com/backoffice/saas/internal/domain/media"
	"github.com/backoffice/saas/internal/domain/shared"
	"github.com/google/uuid"
)

// UploadInput is a file received through a multipart upload
type UploadInput struct {
	Collection string
	FileName   string
	Name       string
	Content    io.Reader
	// DeclaredSize is the client-reported size, or -1 when unknown
	DeclaredSize     int64
	CustomProperties map[string]any
	ModelType        string
	ModelID          *uuid.UUID
}

// ImportMediaRequest imports a file from a remote URL
type ImportMediaRequest struct {
	URL              string         `json:"url" binding:"required,url,max=2048"`
	Collection       string         `json:"collection" binding:"omitempty,max=64"`
	Name             string         `json:"name" binding:"max=255"`
	CustomProperties map[string]any `json:"custom_properties"`
	ModelType        string         `json:"model_type" binding:"max=100"`
	ModelID          *uuid.UUID     `json:"model_id"`
}

// UpdateMediaRequest changes editable metadata; omitted fields are kept
type UpdateMediaRequest struct {
	Name             *string        `json:"name" binding:"omitempty,min=1,max=255"`
	CustomProperties map[string]any `json:"custom_properties"`
	OrderColumn      *int           `json:"order_column" binding:"omitempty,min=0"`
}

// TransformMediaRequest applies an edit pipeline to an image
type TransformMediaRequest struct {
	Operations []media.Operation `json:"operations" binding:"required,min=1,max=10"`
	SaveAs     string            `json:"save_as" binding:"omitempty,oneof=new replace"`
}

// MediaListFilter represents query parameters for listing media
type MediaListFilter struct {
	Collection string     `form:"collection" binding:"omitempty,max=64"`
	Trashed    string     `form:"trashed" binding:"omitempty,oneof=without with only"`
	Type       string     `form:"type" binding:"omitempty,max=50"`
	ModelType  string     `form:"model_type"`
	ModelID    *uuid.UUID `form:"model_id"`
	Search     string     `form:"search"`
	Page       int        `form:"page" binding:"omitempty,min=1"`
	PageSize   int        `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderBy    string     `form:"order_by"`
	OrderDir   string     `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

// ToListQuery converts the query parameters to a repository query
func (f MediaListFilter) ToListQuery() (media.ListQuery, error) {
	scope, err := media.ParseTrashedScope(f.Trashed)
	if err != nil {
		return media.ListQuery{}, err
	}
	return media.ListQuery{
		Collection: f.Collection,
		Trashed:    scope,
		MimePrefix: f.Type,
		ModelType:  f.ModelType,
		ModelID:    f.ModelID,
		Filter: shared.Filter{
			Page:     f.Page,
			PageSize: f.PageSize,
			OrderBy:  f.OrderBy,
			OrderDir: f.OrderDir,
			Search:   f.Search,
		}.Normalize(),
	}, nil
}

// ConversionResponse describes a generated rendition
type ConversionResponse struct {
	MimeType string `json:"mime_type"`
	Size     int64  `json:"size"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
}

// MediaResponse represents a media item in API responses
type MediaResponse struct {
	ID               uuid.UUID                     `json:"id"`
	TenantID         uuid.UUID                     `json:"tenant_id"`
	Collection       string                        `json:"collection"`
	ModelType        string                        `json:"model_type,omitempty"`
	ModelID          *uuid.UUID                    `json:"model_id,omitempty"`
	Name             string                        `json:"name"`
	FileName         string                        `json:"file_name"`
	MimeType         string                        `json:"mime_type"`
	Size             int64                         `json:"size"`
	Disk             string                        `json:"disk"`
	Width            int                           `json:"width,omitempty"`
	Height           int                           `json:"height,omitempty"`
	CustomProperties map[string]any                `json:"custom_properties"`
	OrderColumn      int                           `json:"order_column"`
	Source           string                        `json:"source"`
	SourceURL        string                        `json:"source_url,omitempty"`
	Diagnostics      *media.FetchDiagnostics       `json:"diagnostics,omitempty"`
	Conversions      map[string]ConversionResponse `json:"conversions,omitempty"`
	Trashed          bool                          `json:"trashed"`
	DeletedAt        *time.Time                    `json:"deleted_at,omitempty"`
	Version          int                           `json:"version"`
	CreatedAt        time.Time                     `json:"created_at"`
	UpdatedAt        time.Time                     `json:"updated_at"`
}

// ToMediaResponse converts a domain media item to a response
func ToMediaResponse(m *media.Media) MediaResponse {
	resp := MediaResponse{
		ID:               m.ID,
		TenantID:         m.TenantID,
		Collection:       m.Collection,
		ModelType:        m.ModelType,
		ModelID:          m.ModelID,
		Name:             m.Name,
		FileName:         m.FileName,
		MimeType:         m.MimeType,
		Size:             m.Size,
		Disk:             string(m.Disk),
		Width:            m.Width,
		Height:           m.Height,
		CustomProperties: m.CustomProperties,
		OrderColumn:      m.OrderColumn,
		Source:           string(m.Source),
		SourceURL:        m.SourceURL,
		Diagnostics:      m.Diagnostics,
		Trashed:          m.IsTrashed(),
		DeletedAt:        m.DeletedAt,
		Version:          m.Version,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
	if len(m.Conversions) > 0 {
		resp.Conversions = make(map[string]ConversionResponse, len(m.Conversions))
		for name, c := range m.Conversions {
			resp.Conversions[name] = ConversionResponse{MimeType: c.MimeType, Size: c.Size, Width: c.Width, Height: c.Height}
		}
	}
	return resp
}

// ToMediaResponses converts a list of media items
func ToMediaResponses(items []media.Media) []MediaResponse {
	out := make([]MediaResponse, len(items))
	for i := range items {
		out[i] = ToMediaResponse(&items[i])
	}
	return out
}

// URLResponse is a time-limited link to a stored object
type URLResponse struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Download is an open object stream; the caller closes Body
type Download struct {
	Body     io.ReadCloser
	FileName string
	MimeType string
	Size     int64
}

// EmptyTrashResult summarises a trash purge
type EmptyTrashResult struct {
	Tenants int `json:"tenants"`
	Deleted int `json:"deleted"`
	Failed  int `json:"failed"`
}
