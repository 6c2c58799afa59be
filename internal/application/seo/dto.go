package seo

import (
	"time"

	"github.com/backoffice/saas/internal/domain/seo"
	"github.com/backoffice/saas/internal/domain/shared"
	"github.com/google/uuid"
)

// SubjectRef names the described item in requests
type SubjectRef struct {
	Type string     `json:"subject_type" form:"subject_type" binding:"required,oneof=page product category home"`
	ID   *uuid.UUID `json:"subject_id" form:"subject_id"`
}

func (r SubjectRef) toDomain() (seo.Subject, error) {
	t, err := seo.ParseSubjectType(r.Type)
	if err != nil {
		return seo.Subject{}, err
	}
	return seo.NewSubject(t, r.ID)
}

// UpsertSeoRequest replaces the metadata of a subject
type UpsertSeoRequest struct {
	SubjectRef
	MetaTitle       string      `json:"meta_title" binding:"max=70"`
	MetaDescription string      `json:"meta_description" binding:"max=160"`
	Keywords        []string    `json:"keywords" binding:"max=20"`
	CanonicalURL    string      `json:"canonical_url" binding:"omitempty,url"`
	Robots          *seo.Robots `json:"robots"`
	OgTitle         string      `json:"og_title" binding:"max=95"`
	OgDescription   string      `json:"og_description" binding:"max=200"`
	OgImageMediaID  *uuid.UUID  `json:"og_image_media_id"`
}

func (r UpsertSeoRequest) toInput() seo.MetaInput {
	return seo.MetaInput{
		MetaTitle:       r.MetaTitle,
		MetaDescription: r.MetaDescription,
		Keywords:        r.Keywords,
		CanonicalURL:    r.CanonicalURL,
		Robots:          r.Robots,
		OgTitle:         r.OgTitle,
		OgDescription:   r.OgDescription,
		OgImageMediaID:  r.OgImageMediaID,
	}
}

// SeoListFilter represents query parameters for listing metadata
type SeoListFilter struct {
	SubjectType string `form:"subject_type" binding:"omitempty,oneof=page product category home"`
	Page        int    `form:"page" binding:"omitempty,min=1"`
	PageSize    int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderBy     string `form:"order_by" binding:"omitempty,oneof=subject_type meta_title created_at updated_at"`
	OrderDir    string `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

func (f SeoListFilter) toSharedFilter() shared.Filter {
	return shared.Filter{
		Page:     f.Page,
		PageSize: f.PageSize,
		OrderBy:  f.OrderBy,
		OrderDir: f.OrderDir,
	}.Normalize()
}

// SeoResponse represents metadata in API responses
type SeoResponse struct {
	ID              uuid.UUID  `json:"id"`
	TenantID        uuid.UUID  `json:"tenant_id"`
	SubjectType     string     `json:"subject_type"`
	SubjectID       *uuid.UUID `json:"subject_id,omitempty"`
	MetaTitle       string     `json:"meta_title"`
	MetaDescription string     `json:"meta_description"`
	Keywords        []string   `json:"keywords"`
	CanonicalURL    string     `json:"canonical_url,omitempty"`
	Robots          seo.Robots `json:"robots"`
	RobotsContent   string     `json:"robots_content"`
	OgTitle         string     `json:"og_title,omitempty"`
	OgDescription   string     `json:"og_description,omitempty"`
	OgImageMediaID  *uuid.UUID `json:"og_image_media_id,omitempty"`
	Version         int        `json:"version"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// ToSeoResponse converts domain metadata to a response
func ToSeoResponse(m *seo.SeoMeta) SeoResponse {
	keywords := m.Keywords
	if keywords == nil {
		keywords = []string{}
	}
	return SeoResponse{
		ID:              m.ID,
		TenantID:        m.TenantID,
		SubjectType:     string(m.Subject.Type),
		SubjectID:       m.Subject.ID,
		MetaTitle:       m.MetaTitle,
		MetaDescription: m.MetaDescription,
		Keywords:        keywords,
		CanonicalURL:    m.CanonicalURL,
		Robots:          m.Robots,
		RobotsContent:   m.Robots.String(),
		OgTitle:         m.OgTitle,
		OgDescription:   m.OgDescription,
		OgImageMediaID:  m.OgImageMediaID,
		Version:         m.Version,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
}

// AnalysisResponse lists the findings for one subject
type AnalysisResponse struct {
	SubjectType string      `json:"subject_type"`
	SubjectID   *uuid.UUID  `json:"subject_id,omitempty"`
	Published   bool        `json:"published"`
	Score       int         `json:"score"`
	Issues      []seo.Issue `json:"issues"`
}
