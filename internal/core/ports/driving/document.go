package driving

import (
	"context"

	"github.com/custodia-labs/sibila/internal/core/domain"
)

// DocumentService exposes the document catalogue.
type DocumentService interface {
	// List returns all ingested documents.
	List(ctx context.Context) ([]domain.Document, error)

	// Get retrieves a document by ID.
	Get(ctx context.Context, documentID string) (*domain.Document, error)

	// Delete removes a document and all its index entries.
	Delete(ctx context.Context, documentID string) error

	// Values returns the distinct values of a metadata key
	// (e.g. "category" or "case_id").
	Values(ctx context.Context, key string) ([]string, error)
}
