package textutil

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// CollapseWhitespace trims the text and folds internal whitespace runs into
// single spaces.
func CollapseWhitespace(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// NormalizeForComparison canonicalizes text for near-duplicate detection:
// Unicode NFKC normalization, case folding, and whitespace collapsing. OCR
// output frequently mixes full-width and half-width forms of the same glyphs,
// which NFKC folds together.
func NormalizeForComparison(text string) string {
	folded := norm.NFKC.String(text)
	return CollapseWhitespace(strings.ToLower(folded))
}
