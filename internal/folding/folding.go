// Package folding implements the accent and case folding used to compare
// user-entered text with stored values ("Échéance" matches "echeance").
package folding

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// ligatures do not decompose under NFD, so they are expanded up front
var ligatures = strings.NewReplacer(
	"æ", "ae", "Æ", "AE",
	"œ", "oe", "Œ", "OE",
	"ß", "ss",
)

// Fold strips diacritics and lower-cases s. Empty input is returned as is.
func Fold(s string) string {
	if s == "" {
		return s
	}
	s = ligatures.Replace(s)

	// transformers and casers keep state, build them per call
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, s)
	if err != nil {
		stripped = s
	}
	return cases.Lower(language.Und).String(stripped)
}

// Value folds v when it is a string and returns any other value unchanged
func Value(v any) any {
	if s, ok := v.(string); ok {
		return Fold(s)
	}
	return v
}

// Equal reports whether a and b are equal once folded
func Equal(a, b string) bool {
	return Fold(a) == Fold(b)
}

// CapitalizeFirst upper-cases the first letter of s and leaves the rest untouched
func CapitalizeFirst(s string) string {
	for i, r := range s {
		return cases.Upper(language.Und).String(string(r)) + s[i+len(string(r)):]
	}
	return s
}
