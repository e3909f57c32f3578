package tui

import (
	"context"
	"sort"

	"github.com/custodia-labs/sibila/internal/core/domain"
)

// MockQueryService implements driving.QueryService for testing.
type MockQueryService struct {
	Results []domain.QueryResult
	Err     error
}

func (m *MockQueryService) Query(context.Context, string, domain.QueryOptions) ([]domain.QueryResult, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Results, nil
}

// MockDocumentService implements driving.DocumentService for testing.
type MockDocumentService struct {
	Docs map[string]*domain.Document
}

func (m *MockDocumentService) List(context.Context) ([]domain.Document, error) {
	out := make([]domain.Document, 0, len(m.Docs))
	for _, d := range m.Docs {
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MockDocumentService) Get(_ context.Context, id string) (*domain.Document, error) {
	d, ok := m.Docs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return d, nil
}

func (m *MockDocumentService) Delete(_ context.Context, id string) error {
	if _, ok := m.Docs[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.Docs, id)
	return nil
}

func (m *MockDocumentService) Values(context.Context, string) ([]string, error) {
	return nil, nil
}
