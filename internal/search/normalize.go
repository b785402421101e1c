package search

import (
	"strings"
	"unicode"

	"vodstream/searchservice/internal/domain"
)

// stripSpace removes every whitespace rune. Upstream sites disagree on
// spacing inside titles, so the aggregation key ignores it entirely.
func stripSpace(value string) string {
	var b strings.Builder
	b.Grow(len(value))
	for _, r := range value {
		if unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// normalizeQuery canonicalizes a query for cache fingerprinting: trimmed,
// lowercased, inner whitespace collapsed to single spaces.
func normalizeQuery(query string) string {
	return strings.ToLower(strings.Join(strings.Fields(query), " "))
}

// groupKey identifies a logical title: whitespace-stripped title, year, and
// movie/tv discriminator.
func groupKey(result domain.SearchResult) string {
	year := result.Year
	if strings.TrimSpace(year) == "" {
		year = domain.YearUnknown
	}
	return stripSpace(result.Title) + "-" + year + "-" + result.TypeKey()
}
