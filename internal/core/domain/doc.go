// Package domain defines the core business entities for Sibila.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Document: A legal document (ruling, statute) with metadata
//   - Chunk: A searchable passage within a document
//   - IndexEntry: The persisted unit of the vector index
//   - QueryFilter: Metadata constraints applied before ranking
//   - QueryResult: A ranked passage returned to callers
//
// It also owns the metadata schema, the deterministic chunk identifier
// and the error taxonomy shared by every adapter.
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
