package driven

import (
	"context"

	"github.com/custodia-labs/sibila/internal/core/domain"
)

// VectorIndex stores index entries and answers filtered similarity queries.
//
// Implementations must:
//   - replace entries atomically (vector, metadata and text together)
//   - serialise upserts per chunk id without a global lock
//   - never block concurrent searches on each other
//   - wrap storage failures with domain.ErrIndexIO
type VectorIndex interface {
	// Upsert inserts or replaces the entry keyed by entry.ChunkID.
	// The first upsert into an empty index establishes its model identity;
	// later entries with another dimension or model fail with
	// domain.ErrDimensionMismatch.
	Upsert(ctx context.Context, entry domain.IndexEntry) error

	// Delete removes the entry if present. Missing ids are a no-op.
	Delete(ctx context.Context, chunkID string) error

	// DeleteDocument removes every entry of a document and returns the count.
	DeleteDocument(ctx context.Context, documentID string) (int, error)

	// Search scores every entry matching filter by cosine similarity and
	// returns the topK best, descending by score, ties by chunk id ascending.
	// topK <= 0 fails with domain.ErrInvalidArgument.
	Search(ctx context.Context, vector []float32, filter domain.QueryFilter, topK int) ([]domain.SearchHit, error)

	// Count returns the number of stored entries.
	Count(ctx context.Context) (int, error)

	// Identity returns the model identity the index is bound to.
	// A zero identity means the index is still empty.
	Identity(ctx context.Context) (domain.ModelIdentity, error)

	// Close releases resources.
	Close() error
}
