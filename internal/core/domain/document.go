package domain

import "time"

// Document represents a source document ready for ingestion.
// Content holds the extracted text, already cleaned.
type Document struct {
	// ID is the unique identifier for the document.
	ID string

	// URI is the original location (file path, upload name).
	URI string

	// Title is the human-readable title.
	Title string

	// Content is the full extracted text before chunking.
	Content string

	// Metadata holds normalised scalar attributes (tribunal, fecha, ...).
	Metadata Metadata

	// ChunkIDs lists the chunks produced by the last ingestion.
	ChunkIDs []string

	// CreatedAt is when the document was first ingested.
	CreatedAt time.Time

	// UpdatedAt is when the document was last ingested.
	UpdatedAt time.Time
}

// Chunk represents a searchable passage within a document.
type Chunk struct {
	// ID is the deterministic identifier, see ChunkID.
	ID string

	// DocumentID links to the parent Document.
	DocumentID string

	// Content is the text span of this chunk.
	Content string

	// Position is the sequence index within the document.
	Position int

	// Embedding is the vector representation, set during ingestion.
	Embedding []float32

	// Metadata is a copy of the document metadata plus chunk fields.
	Metadata Metadata
}
