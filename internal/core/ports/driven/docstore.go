package driven

import (
	"context"

	"github.com/custodia-labs/sibila/internal/core/domain"
)

// DocumentStore is the catalogue of ingested documents.
// The vector index holds the passages; the catalogue keeps whole
// documents, their metadata and the chunk ids produced for them.
type DocumentStore interface {
	// SaveDocument inserts or replaces a document.
	SaveDocument(ctx context.Context, doc *domain.Document) error

	// GetDocument retrieves a document by ID.
	// Returns domain.ErrNotFound if absent.
	GetDocument(ctx context.Context, id string) (*domain.Document, error)

	// DeleteDocument removes a document. Missing ids are a no-op.
	DeleteDocument(ctx context.Context, id string) error

	// ListDocuments returns all documents ordered by ID.
	ListDocuments(ctx context.Context) ([]domain.Document, error)

	// DistinctValues returns the sorted distinct values of a metadata key
	// across all documents (e.g. "category", "case_id").
	DistinctValues(ctx context.Context, key string) ([]string, error)

	// Close releases resources.
	Close() error
}
