package shared

import (
	"strings"

	"golang.org/x/text/cases"
)

// NormalizeName trims surrounding whitespace and case-folds name so that
// lookups treat "Rice", " RICE " and "rice" as the same key.
func NormalizeName(name string) string {
	return cases.Fold().String(strings.TrimSpace(name))
}

// SameName reports whether two names are equal under NormalizeName.
func SameName(a, b string) bool {
	return NormalizeName(a) == NormalizeName(b)
}
