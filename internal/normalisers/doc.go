// Package normalisers turns source files into clean plain text.
//
// Each file extension maps to one TextExtractor. The Registry picks the
// extractor, runs it and applies domain.CleanText to the result, so extractors
// only need to recover the raw text of their format.
//
// Sidecar metadata files live in the sidecar subpackage.
package normalisers
