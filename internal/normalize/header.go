// Package normalize canonicalizes raw header text and cell values from
// marketplace exports. Every later pipeline stage relies on these primitives.
package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// Header lowercases and trims a header, collapsing every run of whitespace,
// punctuation or underscores into a single underscore and stripping leading
// and trailing underscores. Header(Header(x)) == Header(x).
//
//	Header("Total  Nilai-Pesanan ") == "total_nilai_pesanan"
func Header(s string) string {
	if s == "" {
		return ""
	}
	// NFKC folds full-width and compatibility forms that show up in
	// spreadsheet exports; Caser is stateful so one is built per call.
	s = cases.Lower(language.Und).String(norm.NFKC.String(s))

	var b strings.Builder
	b.Grow(len(s))
	pending := false
	for _, r := range s {
		if isWordRune(r) {
			if pending && b.Len() > 0 {
				b.WriteByte('_')
			}
			pending = false
			b.WriteRune(r)
			continue
		}
		pending = true
	}
	return b.String()
}

// Headers normalizes a header row in place order.
func Headers(raw []string) []string {
	out := make([]string, len(raw))
	for i, h := range raw {
		out[i] = Header(h)
	}
	return out
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r)
}
