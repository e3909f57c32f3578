package http

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/custodia-labs/sibila/internal/core/domain"
)

// mockQueryService implements driving.QueryService.
type mockQueryService struct {
	results []domain.QueryResult
	err     error

	lastText string
	lastOpts domain.QueryOptions
}

func (m *mockQueryService) Query(_ context.Context, text string, opts domain.QueryOptions) ([]domain.QueryResult, error) {
	m.lastText = text
	m.lastOpts = opts
	if m.err != nil {
		return nil, m.err
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: query text is empty", domain.ErrInvalidArgument)
	}
	if opts.TopK != nil && *opts.TopK <= 0 {
		return nil, fmt.Errorf("%w: top_k must be positive", domain.ErrInvalidArgument)
	}
	var out []domain.QueryResult
	for _, r := range m.results {
		if opts.Filter.Matches(r.Metadata) {
			out = append(out, r)
		}
	}
	if out == nil {
		out = []domain.QueryResult{}
	}
	return out, nil
}

// mockIngester implements driving.IngestionService, keeping documents
// in memory.
type mockIngester struct {
	mu   sync.Mutex
	docs map[string]*domain.Document
	err  error
}

func newMockIngester() *mockIngester {
	return &mockIngester{docs: map[string]*domain.Document{}}
}

func (m *mockIngester) Ingest(_ context.Context, doc *domain.Document) (*domain.IngestReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	report := &domain.IngestReport{DocumentID: doc.ID, Upserted: []string{}}
	for i, para := range strings.Split(doc.Content, "\n\n") {
		if strings.TrimSpace(para) == "" {
			continue
		}
		report.TotalChunks++
		if strings.Contains(para, "fail") {
			report.Failed = append(report.Failed, domain.ChunkFailure{Position: i, Kind: domain.KindEmbeddingRejected})
			continue
		}
		report.Upserted = append(report.Upserted, fmt.Sprintf("%s-%d", doc.ID, i))
	}
	stored := *doc
	stored.ChunkIDs = report.Upserted
	m.docs[doc.ID] = &stored
	if len(report.Failed) > 0 {
		return report, fmt.Errorf("%w: %s", domain.ErrPartialIngest, doc.ID)
	}
	return report, nil
}

func (m *mockIngester) IngestChunks(ctx context.Context, doc *domain.Document, _ []int) (*domain.IngestReport, error) {
	return m.Ingest(ctx, doc)
}

func (m *mockIngester) Remove(_ context.Context, documentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[documentID]; !ok {
		return fmt.Errorf("document %s: %w", documentID, domain.ErrNotFound)
	}
	delete(m.docs, documentID)
	return nil
}

// mockDocumentService implements driving.DocumentService over the
// mock ingester's documents.
type mockDocumentService struct {
	ingester *mockIngester
}

func (m *mockDocumentService) List(_ context.Context) ([]domain.Document, error) {
	m.ingester.mu.Lock()
	defer m.ingester.mu.Unlock()
	docs := make([]domain.Document, 0, len(m.ingester.docs))
	for _, d := range m.ingester.docs {
		docs = append(docs, *d)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docs, nil
}

func (m *mockDocumentService) Get(_ context.Context, id string) (*domain.Document, error) {
	m.ingester.mu.Lock()
	defer m.ingester.mu.Unlock()
	doc, ok := m.ingester.docs[id]
	if !ok {
		return nil, fmt.Errorf("document %s: %w", id, domain.ErrNotFound)
	}
	out := *doc
	return &out, nil
}

func (m *mockDocumentService) Delete(ctx context.Context, id string) error {
	return m.ingester.Remove(ctx, id)
}

func (m *mockDocumentService) Values(ctx context.Context, key string) ([]string, error) {
	docs, _ := m.List(ctx)
	seen := map[string]struct{}{}
	for _, d := range docs {
		if v := d.Metadata.String(key); v != "" {
			seen[v] = struct{}{}
		}
	}
	values := make([]string, 0, len(seen))
	for v := range seen {
		values = append(values, v)
	}
	sort.Strings(values)
	return values, nil
}

// mockFolderIngester implements driving.FolderIngester.
type mockFolderIngester struct {
	roots []string
	err   error
}

func (m *mockFolderIngester) IngestFolder(_ context.Context, root string) (*domain.FolderSummary, error) {
	m.roots = append(m.roots, root)
	if m.err != nil {
		return nil, m.err
	}
	return &domain.FolderSummary{FilesSeen: 1, DocumentsIngested: 1, ChunksUpserted: 2}, nil
}

func (m *mockFolderIngester) Watch(_ context.Context, _ string, _ func(domain.FileChange, error)) error {
	return nil
}
