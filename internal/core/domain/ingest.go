package domain

// ChunkFailure describes a chunk that could not be embedded or stored.
type ChunkFailure struct {
	// ChunkID is the identifier of the failed chunk.
	ChunkID string `json:"chunk_id"`

	// Position is the chunk sequence index, usable with IngestChunks.
	Position int `json:"index"`

	// Kind is the machine-readable error kind.
	Kind Kind `json:"kind"`

	// Err is the final error message after retries.
	Err string `json:"error"`
}

// IngestReport summarises the ingestion of one document.
type IngestReport struct {
	// DocumentID is the ingested document.
	DocumentID string `json:"doc_id"`

	// TotalChunks is the number of chunks the document produced.
	TotalChunks int `json:"total_chunks"`

	// Upserted lists the chunk ids written to the index.
	Upserted []string `json:"upserted"`

	// Failed lists chunks that could not be ingested.
	Failed []ChunkFailure `json:"failed,omitempty"`

	// Removed counts stale entries deleted from a previous version.
	Removed int `json:"removed,omitempty"`
}

// FailedPositions returns the sequence indices of failed chunks.
func (r *IngestReport) FailedPositions() []int {
	positions := make([]int, len(r.Failed))
	for i := range r.Failed {
		positions[i] = r.Failed[i].Position
	}
	return positions
}

// FolderSummary aggregates the outcome of a folder ingestion run.
type FolderSummary struct {
	FilesSeen         int            `json:"files_seen"`
	DocumentsIngested int            `json:"documents_ingested"`
	DocumentsSkipped  int            `json:"documents_skipped"`
	ChunksUpserted    int            `json:"chunks_upserted"`
	Failures          []FileFailure  `json:"failures,omitempty"`
	Reports           []IngestReport `json:"-"`
}

// FileFailure records a file that could not be ingested.
type FileFailure struct {
	Path string `json:"path"`
	Kind Kind   `json:"kind"`
	Err  string `json:"error"`
}
