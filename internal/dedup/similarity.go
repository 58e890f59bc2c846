// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package dedup clusters near-duplicate records by title similarity and
// merges each cluster into one best-quality record.
package dedup

import (
	"strings"
	"unicode"

	"github.com/pmezard/go-difflib/difflib"
	"golang.org/x/text/unicode/norm"
)

// NormalizeTitle returns the comparison key for a title: NFC-composed,
// lowercased, with everything except letters, digits, underscores and
// whitespace removed, and whitespace runs collapsed to single spaces.
func NormalizeTitle(title string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(norm.NFC.String(title)) {
		if unicode.IsLetter(r) || unicode.IsNumber(r) || r == '_' || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Similarity returns the Ratcliff/Obershelp ratio of a and b in [0, 1],
// compared case-insensitively rune by rune. Either input empty yields 0.
func Similarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	a, b = strings.ToLower(a), strings.ToLower(b)
	if a == b {
		return 1
	}
	// The matching-block search is not order independent; fix the order.
	if b < a {
		a, b = b, a
	}
	return difflib.NewMatcher(runes(a), runes(b)).Ratio()
}

func runes(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}
