package seo

import (
	"context"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/backoffice/saas/internal/domain/shared"
	"github.com/google/uuid"
)

// SubjectType names what a SeoMeta record describes
type SubjectType string

const (
	SubjectPage     SubjectType = "page"
	SubjectProduct  SubjectType = "product"
	SubjectCategory SubjectType = "category"
	SubjectHome     SubjectType = "home"
)

const (
	MaxTitleLength       = 70
	MaxDescriptionLength = 160
	MaxKeywords          = 20
)

// ParseSubjectType validates a subject type string
func ParseSubjectType(s string) (SubjectType, error) {
	switch t := SubjectType(strings.ToLower(strings.TrimSpace(s))); t {
	case SubjectPage, SubjectProduct, SubjectCategory, SubjectHome:
		return t, nil
	}
	return "", shared.InvalidInput("unknown seo subject type %q", s)
}

// Subject identifies the thing being described. ID is nil for home.
type Subject struct {
	Type SubjectType
	ID   *uuid.UUID
}

// NewSubject validates the type/id pairing
func NewSubject(t SubjectType, id *uuid.UUID) (Subject, error) {
	if t == SubjectHome {
		if id != nil && *id != uuid.Nil {
			return Subject{}, shared.InvalidInput("home subject does not take an id")
		}
		return Subject{Type: t}, nil
	}
	if _, err := ParseSubjectType(string(t)); err != nil {
		return Subject{}, err
	}
	if id == nil || *id == uuid.Nil {
		return Subject{}, shared.InvalidInput("%s subject requires an id", t)
	}
	return Subject{Type: t, ID: id}, nil
}

func (s Subject) String() string {
	if s.ID == nil {
		return string(s.Type)
	}
	return string(s.Type) + ":" + s.ID.String()
}

// Robots holds the indexing directives
type Robots struct {
	Index  bool `json:"index"`
	Follow bool `json:"follow"`
}

// DefaultRobots allows indexing and following
func DefaultRobots() Robots { return Robots{Index: true, Follow: true} }

// String renders the meta robots content attribute
func (r Robots) String() string {
	index, follow := "index", "follow"
	if !r.Index {
		index = "noindex"
	}
	if !r.Follow {
		follow = "nofollow"
	}
	return index + "," + follow
}

// SeoMeta carries search and social metadata for one subject
type SeoMeta struct {
	shared.TenantAggregateRoot
	Subject         Subject
	MetaTitle       string
	MetaDescription string
	Keywords        []string
	CanonicalURL    string
	Robots          Robots
	OgTitle         string
	OgDescription   string
	OgImageMediaID  *uuid.UUID
}

// MetaInput is the full set of editable fields for an upsert
type MetaInput struct {
	MetaTitle       string
	MetaDescription string
	Keywords        []string
	CanonicalURL    string
	Robots          *Robots
	OgTitle         string
	OgDescription   string
	OgImageMediaID  *uuid.UUID
}

// NewSeoMeta builds a record for a subject
func NewSeoMeta(tenantID uuid.UUID, subject Subject, in MetaInput) (*SeoMeta, error) {
	m := &SeoMeta{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		Subject:             subject,
		Robots:              DefaultRobots(),
	}
	if err := m.apply(in); err != nil {
		return nil, err
	}
	return m, nil
}

// Update overwrites the record with new values. A nil Robots restores
// index,follow.
func (m *SeoMeta) Update(in MetaInput) error {
	if err := m.apply(in); err != nil {
		return err
	}
	m.IncrementVersion()
	return nil
}

func (m *SeoMeta) apply(in MetaInput) error {
	title := strings.TrimSpace(in.MetaTitle)
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return shared.InvalidInput("meta title cannot exceed %d characters", MaxTitleLength).
			WithDetail("field", "meta_title")
	}
	desc := strings.TrimSpace(in.MetaDescription)
	if utf8.RuneCountInString(desc) > MaxDescriptionLength {
		return shared.InvalidInput("meta description cannot exceed %d characters", MaxDescriptionLength).
			WithDetail("field", "meta_description")
	}
	canonical := strings.TrimSpace(in.CanonicalURL)
	if canonical != "" && !isAbsoluteHTTP(canonical) {
		return shared.InvalidInput("canonical url must be an absolute http(s) url").
			WithDetail("field", "canonical_url")
	}
	keywords := normalizeKeywords(in.Keywords)
	if len(keywords) > MaxKeywords {
		return shared.InvalidInput("at most %d keywords are allowed", MaxKeywords)
	}

	m.MetaTitle = title
	m.MetaDescription = desc
	m.Keywords = keywords
	m.CanonicalURL = canonical
	m.Robots = DefaultRobots()
	if in.Robots != nil {
		m.Robots = *in.Robots
	}
	m.OgTitle = strings.TrimSpace(in.OgTitle)
	m.OgDescription = strings.TrimSpace(in.OgDescription)
	m.OgImageMediaID = in.OgImageMediaID
	return nil
}

func isAbsoluteHTTP(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func normalizeKeywords(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, k := range in {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}

// Repository persists SeoMeta; at most one record exists per tenant subject
type Repository interface {
	FindBySubject(ctx context.Context, tenantID uuid.UUID, subject Subject) (*SeoMeta, error)
	FindAllForTenant(ctx context.Context, tenantID uuid.UUID, subjectType SubjectType, filter shared.Filter) ([]SeoMeta, int64, error)
	FindNoIndex(ctx context.Context, tenantID uuid.UUID) ([]Subject, error)
	Save(ctx context.Context, m *SeoMeta) error
	DeleteBySubject(ctx context.Context, tenantID uuid.UUID, subject Subject) error
}
