package matcher

import (
	"math"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

// Score returns a 0-100 similarity between two titles based on the
// Levenshtein distance of their runes. Identical strings score 100.
func Score(a, b string) int {
	if a == b {
		return 100
	}
	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	longest := max(la, lb)
	if la == 0 || lb == 0 {
		return 0
	}

	dist := levenshtein.ComputeDistance(a, b)
	ratio := 1 - float64(dist)/float64(longest)
	return int(math.Round(100 * ratio))
}

// IsExactMatch reports whether a title should be treated as an exact hit for
// the query: equal after normalization, or containing the query verbatim
// (ignoring case).
func IsExactMatch(query, title string) bool {
	q := strings.TrimSpace(query)
	if q == "" {
		return false
	}
	nq := Normalize(q)
	if nq != "" && nq == Normalize(title) {
		return true
	}
	return strings.Contains(strings.ToLower(stripMarkup(title)), strings.ToLower(q))
}
