package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/custodia-labs/sibila/internal/core/domain"
	"github.com/custodia-labs/sibila/internal/core/ports/driven"
	"github.com/custodia-labs/sibila/internal/core/ports/driving"
)

// Ensure DocumentService implements the interface.
var _ driving.DocumentService = (*DocumentService)(nil)

// DocumentService exposes the catalogue of ingested documents.
type DocumentService struct {
	docStore driven.DocumentStore
	ingester driving.IngestionService
}

// NewDocumentService creates a new document service. Deletion goes
// through the ingester so index entries are removed with the document.
func NewDocumentService(docStore driven.DocumentStore, ingester driving.IngestionService) *DocumentService {
	return &DocumentService{
		docStore: docStore,
		ingester: ingester,
	}
}

// List returns all ingested documents ordered by ID.
func (s *DocumentService) List(ctx context.Context) ([]domain.Document, error) {
	return s.docStore.ListDocuments(ctx)
}

// Get retrieves a document by ID.
func (s *DocumentService) Get(ctx context.Context, documentID string) (*domain.Document, error) {
	documentID = strings.TrimSpace(documentID)
	if documentID == "" {
		return nil, fmt.Errorf("%w: document id is required", domain.ErrInvalidArgument)
	}
	return s.docStore.GetDocument(ctx, documentID)
}

// Delete removes a document and its index entries.
func (s *DocumentService) Delete(ctx context.Context, documentID string) error {
	documentID = strings.TrimSpace(documentID)
	if documentID == "" {
		return fmt.Errorf("%w: document id is required", domain.ErrInvalidArgument)
	}
	return s.ingester.Remove(ctx, documentID)
}

// Values returns the distinct values of a metadata key.
func (s *DocumentService) Values(ctx context.Context, key string) ([]string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, fmt.Errorf("%w: metadata key is required", domain.ErrInvalidArgument)
	}
	values, err := s.docStore.DistinctValues(ctx, key)
	if err != nil {
		return nil, err
	}
	if values == nil {
		values = []string{}
	}
	return values, nil
}
