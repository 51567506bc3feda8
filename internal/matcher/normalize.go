// Package matcher canonicalizes anime titles and scores how close two titles are.
package matcher

import (
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/cases"
	"golang.org/x/text/width"
)

// Normalize canonicalizes a title for comparison. Markup is stripped and
// entities decoded, then full-width forms are narrowed, the text is case
// folded and lowered, and everything except letters, digits and underscore
// is dropped. Normalize(Normalize(s)) == Normalize(s) for every s.
func Normalize(title string) string {
	text := stripMarkup(title)
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}

	text = width.Fold.String(text)
	// a Caser is stateful so each call gets its own; Fold alone flips
	// Cherokee between cases on every pass
	text = strings.ToLower(cases.Fold().String(text))

	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// stripMarkup returns the text content of an HTML fragment. Titles without
// markup or entities skip the parser.
func stripMarkup(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return s
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return s
	}
	return doc.Text()
}
