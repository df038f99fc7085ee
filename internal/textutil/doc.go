// Package textutil provides text normalization and similarity utilities used
// by the evidence normalizer.
//
// The primary use cases are:
//   - Canonicalizing noisy OCR output before comparison (NFKC normalization,
//     case folding, whitespace collapsing)
//   - Computing normalized Levenshtein similarity for near-duplicate
//     suppression of repeated on-screen text
package textutil
