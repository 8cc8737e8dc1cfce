package analyzer

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalize collapses every run of whitespace, newlines included, into a
// single space and trims both ends.
func Normalize(raw string) string {
	return strings.Join(strings.Fields(raw), " ")
}

// Fold lowercases s and strips combining marks so that "FONCIÈRE" and
// "fonciere" compare equal.
func Fold(s string) string {
	// Chains hold state and must not be shared between goroutines.
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(folded)
}
