package domain

// QueryOptions configures a semantic query.
type QueryOptions struct {
	// TopK is the maximum number of results. Nil means the configured
	// default; an explicit value must be positive.
	TopK *int

	// Filter restricts the candidate entries before ranking.
	Filter QueryFilter
}

// Limit returns a TopK value for QueryOptions.
func Limit(k int) *int {
	return &k
}

// QueryResult is a ranked passage returned by the query engine.
type QueryResult struct {
	// ChunkID identifies the matched chunk.
	ChunkID string `json:"chunk_id"`

	// DocumentID identifies the document the chunk belongs to.
	DocumentID string `json:"doc_id"`

	// Text is the chunk text.
	Text string `json:"text"`

	// Score is the cosine similarity in [-1, 1].
	Score float64 `json:"score"`

	// Metadata is the chunk metadata.
	Metadata Metadata `json:"metadata"`
}
