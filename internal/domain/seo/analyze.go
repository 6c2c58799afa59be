package seo

import "unicode/utf8"

// Severity of an analysis finding
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Issue is one analysis finding
type Issue struct {
	Code     string   `json:"code"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// SubjectState is what the analyzer needs to know about the described item
type SubjectState struct {
	Published bool
}

// Analyze reports problems with a subject's metadata. meta may be nil.
func Analyze(meta *SeoMeta, state SubjectState) []Issue {
	if meta == nil {
		return []Issue{
			{Code: "meta_missing", Severity: SeverityError, Message: "no seo metadata has been defined"},
		}
	}

	var issues []Issue
	add := func(code string, sev Severity, msg string) {
		issues = append(issues, Issue{Code: code, Severity: sev, Message: msg})
	}

	switch n := utf8.RuneCountInString(meta.MetaTitle); {
	case n == 0:
		add("title_missing", SeverityError, "meta title is empty")
	case n > MaxTitleLength:
		add("title_too_long", SeverityWarning, "meta title is longer than 70 characters")
	case n < 10:
		add("title_too_short", SeverityInfo, "meta title is shorter than 10 characters")
	}

	switch n := utf8.RuneCountInString(meta.MetaDescription); {
	case n == 0:
		add("description_missing", SeverityError, "meta description is empty")
	case n > MaxDescriptionLength:
		add("description_too_long", SeverityWarning, "meta description is longer than 160 characters")
	case n < 50:
		add("description_too_short", SeverityInfo, "meta description is shorter than 50 characters")
	}

	if meta.OgImageMediaID == nil {
		add("og_image_missing", SeverityWarning, "no open graph image is set")
	}
	if meta.CanonicalURL == "" && meta.Subject.Type != SubjectHome {
		add("canonical_missing", SeverityInfo, "no canonical url is set")
	}
	if !meta.Robots.Index && state.Published {
		add("noindex_published", SeverityWarning, "published item is excluded from search engines")
	}
	return issues
}
