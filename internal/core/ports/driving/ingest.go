package driving

import (
	"context"

	"github.com/custodia-labs/sibila/internal/core/domain"
)

// IngestionService makes documents searchable.
type IngestionService interface {
	// Ingest chunks, embeds and upserts a document. It is idempotent.
	// When some chunks fail the report lists them and the error wraps
	// domain.ErrPartialIngest.
	Ingest(ctx context.Context, doc *domain.Document) (*domain.IngestReport, error)

	// IngestChunks re-runs ingestion for the given chunk positions only.
	IngestChunks(ctx context.Context, doc *domain.Document, positions []int) (*domain.IngestReport, error)

	// Remove deletes a document from the index and the catalogue.
	Remove(ctx context.Context, documentID string) error
}

// FolderIngester ingests source files found under a folder.
type FolderIngester interface {
	// IngestFolder scans root once and ingests every supported file.
	IngestFolder(ctx context.Context, root string) (*domain.FolderSummary, error)

	// Watch keeps root in sync with the index until ctx is cancelled.
	// Each processed change is reported through onChange when non-nil.
	Watch(ctx context.Context, root string, onChange func(domain.FileChange, error)) error
}
