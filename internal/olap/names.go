package olap

import (
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// FoldName returns the canonical lookup key for an identifier.
//
// Identifiers are compared case-insensitively after NFC normalization, so
// "[Time].[Année]" typed with a combining accent matches the precomposed
// catalog name.
func FoldName(s string) string {
	return cases.Fold().String(norm.NFC.String(s))
}

// NamesEqual compares two identifiers using FoldName semantics.
func NamesEqual(a, b string) bool {
	if a == b {
		return true
	}
	return FoldName(a) == FoldName(b)
}
