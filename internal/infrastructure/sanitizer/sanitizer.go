// Package sanitizer cleans rich-text HTML produced by the page and product
// editors before it is stored.
package sanitizer

import (
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// Policy wraps a bluemonday policy tuned for WYSIWYG output
type Policy struct {
	policy *bluemonday.Policy
}

var classPattern = regexp.MustCompile(`^[a-zA-Z0-9 _-]+$`)

// New builds the editor policy: user-generated content elements, tables,
// figures and image tags without scripts, styles or event handlers.
func New() *Policy {
	p := bluemonday.UGCPolicy()
	p.AllowElements("figure", "figcaption", "section", "article", "header", "footer", "mark", "u", "s")
	p.AllowAttrs("class").Matching(classPattern).Globally()
	p.AllowAttrs("loading").Matching(regexp.MustCompile(`^(lazy|eager)$`)).OnElements("img")
	p.AllowAttrs("target").Matching(regexp.MustCompile(`^_blank$`)).OnElements("a")
	p.AllowURLSchemes("http", "https", "mailto", "tel")
	p.RequireNoFollowOnLinks(false)
	p.RequireNoReferrerOnLinks(true)
	p.AddTargetBlankToFullyQualifiedLinks(false)
	return &Policy{policy: p}
}

// Sanitize returns html with everything outside the policy removed
func (p *Policy) Sanitize(html string) string {
	return strings.TrimSpace(p.policy.Sanitize(html))
}

// PlainText strips every tag, for excerpts and meta descriptions
func PlainText(html string) string {
	text := bluemonday.StrictPolicy().Sanitize(html)
	return strings.Join(strings.Fields(text), " ")
}
