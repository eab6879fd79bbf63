// Package textfold provides the accent- and case-insensitive text form used
// to match spoken French against keywords, field labels and month names.
package textfold

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var quotes = strings.NewReplacer("’", "'", "‘", "'", "ʼ", "'", " ", " ")

// Fold case-folds s and strips combining marks, so that "Béton",
// "BETON" and "béton" all fold to "beton". Typographic apostrophes become
// ASCII apostrophes and non-breaking spaces become plain spaces.
//
// Fold is safe for concurrent use; transformers are built per call.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, s)
	if err != nil {
		stripped = s
	}
	return cases.Fold().String(quotes.Replace(stripped))
}

// FoldAll folds every element of ss into a new slice.
func FoldAll(ss []string) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = Fold(s)
	}
	return out
}
