package domain

import "fmt"

// IndexEntry is the persisted unit of the vector index. It is keyed by
// ChunkID and always replaced as a whole.
type IndexEntry struct {
	// ChunkID is the unique key of the entry.
	ChunkID string

	// DocumentID links the entry back to its document.
	DocumentID string

	// Vector is the chunk embedding.
	Vector []float32

	// Model is the identifier of the embedder that produced Vector.
	Model string

	// Metadata is the chunk metadata used for filtering.
	Metadata Metadata

	// Text is the chunk text returned to callers.
	Text string
}

// ModelIdentity is the dimension and embedding model an index is bound to.
type ModelIdentity struct {
	Dimension int
	Model     string
}

// IsZero reports whether no identity has been established yet.
func (m ModelIdentity) IsZero() bool {
	return m.Dimension == 0 && m.Model == ""
}

// String returns "model/dimension".
func (m ModelIdentity) String() string {
	return fmt.Sprintf("%s/%d", m.Model, m.Dimension)
}

// Check verifies that a vector of the given dimension produced by model
// may be stored in or searched against an index bound to m.
func (m ModelIdentity) Check(dimension int, model string) error {
	if m.IsZero() {
		return nil
	}
	if dimension != m.Dimension {
		return fmt.Errorf("%w: vector has %d dimensions, index expects %d",
			ErrDimensionMismatch, dimension, m.Dimension)
	}
	if model != "" && model != m.Model {
		return fmt.Errorf("%w: vector from model %q, index bound to %q",
			ErrDimensionMismatch, model, m.Model)
	}
	return nil
}

// Validate checks the fields every backend requires before an upsert.
func (e IndexEntry) Validate() error {
	if e.ChunkID == "" {
		return fmt.Errorf("%w: entry without chunk id", ErrInvalidArgument)
	}
	if len(e.Vector) == 0 {
		return fmt.Errorf("%w: entry %s has an empty vector", ErrInvalidArgument, e.ChunkID)
	}
	return nil
}

// SearchHit is a scored index entry returned by a vector search.
type SearchHit struct {
	Entry IndexEntry
	Score float64
}
