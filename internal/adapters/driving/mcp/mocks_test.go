package mcp

import (
	"context"
	"fmt"

	"github.com/custodia-labs/sibila/internal/core/domain"
)

// mockQueryService is a mock implementation of driving.QueryService.
type mockQueryService struct {
	results []domain.QueryResult
	err     error

	lastText string
	lastOpts domain.QueryOptions
}

func (m *mockQueryService) Query(_ context.Context, text string, opts domain.QueryOptions) ([]domain.QueryResult, error) {
	m.lastText = text
	m.lastOpts = opts
	return m.results, m.err
}

// mockIngester is a mock implementation of driving.IngestionService.
type mockIngester struct {
	report *domain.IngestReport
	err    error

	last *domain.Document
}

func (m *mockIngester) Ingest(_ context.Context, doc *domain.Document) (*domain.IngestReport, error) {
	m.last = doc
	return m.report, m.err
}

func (m *mockIngester) IngestChunks(ctx context.Context, doc *domain.Document, _ []int) (*domain.IngestReport, error) {
	return m.Ingest(ctx, doc)
}

func (m *mockIngester) Remove(_ context.Context, _ string) error {
	return m.err
}

// mockDocumentService is a mock implementation of driving.DocumentService.
type mockDocumentService struct {
	documents []domain.Document
	err       error
}

func (m *mockDocumentService) List(_ context.Context) ([]domain.Document, error) {
	return m.documents, m.err
}

func (m *mockDocumentService) Get(_ context.Context, id string) (*domain.Document, error) {
	if m.err != nil {
		return nil, m.err
	}
	for i := range m.documents {
		if m.documents[i].ID == id {
			return &m.documents[i], nil
		}
	}
	return nil, fmt.Errorf("document %s: %w", id, domain.ErrNotFound)
}

func (m *mockDocumentService) Delete(_ context.Context, _ string) error {
	return m.err
}

func (m *mockDocumentService) Values(_ context.Context, _ string) ([]string, error) {
	return nil, m.err
}
