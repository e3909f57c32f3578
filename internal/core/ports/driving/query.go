package driving

import (
	"context"

	"github.com/custodia-labs/sibila/internal/core/domain"
)

// QueryService answers natural-language questions over the index.
type QueryService interface {
	// Query embeds text and returns the best matching passages.
	// Empty text or an explicit TopK <= 0 fail with domain.ErrInvalidArgument.
	// Embedder failures propagate unchanged; no match is an empty slice.
	Query(ctx context.Context, text string, opts domain.QueryOptions) ([]domain.QueryResult, error)
}
