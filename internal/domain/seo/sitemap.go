package seo

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"
)

const sitemapNamespace = "http://www.sitemaps.org/schemas/sitemap/0.9"

// SitemapItem is a candidate URL before noindex filtering
type SitemapItem struct {
	Subject   Subject
	Slug      string
	UpdatedAt time.Time
}

type urlset struct {
	XMLName xml.Name     `xml:"urlset"`
	Xmlns   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

type sitemapURL struct {
	Loc     string `xml:"loc"`
	LastMod string `xml:"lastmod,omitempty"`
}

// PathFor returns the public path of a subject
func PathFor(t SubjectType, slug string) string {
	switch t {
	case SubjectProduct:
		return "/products/" + slug
	case SubjectCategory:
		return "/categories/" + slug
	case SubjectPage:
		return "/" + slug
	default:
		return "/"
	}
}

// BuildSitemap renders the urlset for items, skipping excluded subjects
func BuildSitemap(baseURL string, items []SitemapItem, excluded []Subject) ([]byte, error) {
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || base.Host == "" {
		return nil, fmt.Errorf("invalid sitemap base url %q", baseURL)
	}
	skip := make(map[string]struct{}, len(excluded))
	for _, s := range excluded {
		skip[s.String()] = struct{}{}
	}

	set := urlset{Xmlns: sitemapNamespace}
	for _, it := range items {
		if _, ok := skip[it.Subject.String()]; ok {
			continue
		}
		loc := *base
		loc.Path = path.Join("/", base.Path, PathFor(it.Subject.Type, it.Slug))
		entry := sitemapURL{Loc: loc.String()}
		if !it.UpdatedAt.IsZero() {
			entry.LastMod = it.UpdatedAt.UTC().Format("2006-01-02")
		}
		set.URLs = append(set.URLs, entry)
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(set); err != nil {
		return nil, fmt.Errorf("encode sitemap: %w", err)
	}
	return buf.Bytes(), nil
}
