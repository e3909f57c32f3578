package driven

import (
	"context"

	"github.com/custodia-labs/sibila/internal/core/domain"
)

// EmbeddingService generates vector embeddings from text.
//
// Note: This is separate from VectorIndex which stores and searches vectors.
// EmbeddingService generates vectors; VectorIndex stores them.
//
// Implementations translate provider failures into domain errors:
//   - domain.ErrEmbeddingUnavailable when the provider cannot be reached
//   - domain.ErrEmbeddingTimeout when the context deadline expires
//   - domain.ErrEmbeddingRejected for empty or oversized input
//
// A failed call never returns a partial result.
type EmbeddingService interface {
	// Embed generates a vector embedding for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts.
	// The result order matches the input order 1:1.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding vector size (e.g., 384, 1536, 3072).
	Dimensions() int

	// ModelName returns the stable identifier of the embedding model.
	ModelName() string

	// Ping validates the service is reachable by making a lightweight request.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// EmbeddingValidator checks that an embedding configuration can reach
// its provider.
type EmbeddingValidator interface {
	// ValidateEmbedding builds the configured service and pings it.
	ValidateEmbedding(settings *domain.EmbeddingSettings) error
}
