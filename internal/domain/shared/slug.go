package shared

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	slugInvalid = regexp.MustCompile(`[^a-z0-9]+`)
	slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)
)

// Slugify folds s to lower-case ASCII words joined by '-'.
// "Café Añejo  2024" becomes "cafe-anejo-2024".
func Slugify(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	folded = strings.ToLower(folded)
	folded = slugInvalid.ReplaceAllString(folded, "-")
	return strings.Trim(folded, "-")
}

// IsValidSlug reports whether s is already in slug form
func IsValidSlug(s string) bool {
	return slugPattern.MatchString(s)
}

// SlugCandidate returns base for the first attempt and base-N after that,
// trimmed so the result stays within maxLen bytes.
func SlugCandidate(base string, attempt, maxLen int) string {
	if attempt <= 1 {
		return base
	}
	suffix := fmt.Sprintf("-%d", attempt)
	if len(base) > maxLen-len(suffix) {
		base = base[:maxLen-len(suffix)]
	}
	return strings.TrimRight(base, "-") + suffix
}
