package cli

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sibila/internal/core/domain"
	"github.com/custodia-labs/sibila/internal/core/ports/driving"
)

// mockQueryService records the last query and returns canned results.
type mockQueryService struct {
	results  []domain.QueryResult
	err      error
	lastText string
	lastOpts domain.QueryOptions
}

func (m *mockQueryService) Query(_ context.Context, text string, opts domain.QueryOptions) ([]domain.QueryResult, error) {
	m.lastText = text
	m.lastOpts = opts
	if m.err != nil {
		return nil, m.err
	}
	return m.results, nil
}

// mockIngestionService satisfies driving.IngestionService.
type mockIngestionService struct{}

func (m *mockIngestionService) Ingest(_ context.Context, doc *domain.Document) (*domain.IngestReport, error) {
	return &domain.IngestReport{DocumentID: doc.ID}, nil
}

func (m *mockIngestionService) IngestChunks(
	_ context.Context, doc *domain.Document, _ []int,
) (*domain.IngestReport, error) {
	return &domain.IngestReport{DocumentID: doc.ID}, nil
}

func (m *mockIngestionService) Remove(context.Context, string) error {
	return nil
}

// mockFolderIngester returns a fixed summary and replays changes on Watch.
type mockFolderIngester struct {
	mu       sync.Mutex
	summary  *domain.FolderSummary
	err      error
	changes  []domain.FileChange
	watchErr error
	roots    []string
	watched  []string
}

func (m *mockFolderIngester) IngestFolder(_ context.Context, root string) (*domain.FolderSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.roots = append(m.roots, root)
	if m.err != nil {
		return nil, m.err
	}
	if m.summary == nil {
		return &domain.FolderSummary{FilesSeen: 2, DocumentsIngested: 2, ChunksUpserted: 5}, nil
	}
	return m.summary, nil
}

func (m *mockFolderIngester) Watch(
	_ context.Context, root string, onChange func(domain.FileChange, error),
) error {
	m.mu.Lock()
	m.watched = append(m.watched, root)
	m.mu.Unlock()
	for _, c := range m.changes {
		var err error
		if c.Type == domain.ChangeDeleted && strings.Contains(c.File.Path, "locked") {
			err = domain.ErrIndexIO
		}
		onChange(c, err)
	}
	return m.watchErr
}

// mockDocumentService serves an in-memory catalogue.
type mockDocumentService struct {
	docs   map[string]*domain.Document
	err    error
	values map[string][]string
}

func (m *mockDocumentService) List(context.Context) ([]domain.Document, error) {
	if m.err != nil {
		return nil, m.err
	}
	out := make([]domain.Document, 0, len(m.docs))
	for _, d := range m.docs {
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *mockDocumentService) Get(_ context.Context, id string) (*domain.Document, error) {
	if m.err != nil {
		return nil, m.err
	}
	d, ok := m.docs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return d, nil
}

func (m *mockDocumentService) Delete(_ context.Context, id string) error {
	if m.err != nil {
		return m.err
	}
	if _, ok := m.docs[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.docs, id)
	return nil
}

func (m *mockDocumentService) Values(_ context.Context, key string) ([]string, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.values[key], nil
}

// mockSettingsService keeps settings in memory.
type mockSettingsService struct {
	settings    domain.AppSettings
	setErr      error
	validateErr error
	set         map[string]string
}

func (m *mockSettingsService) Get() (*domain.AppSettings, error) {
	s := m.settings
	return &s, nil
}

func (m *mockSettingsService) Set(key, value string) error {
	if m.setErr != nil {
		return m.setErr
	}
	if m.set == nil {
		m.set = map[string]string{}
	}
	m.set[key] = value
	return nil
}

func (m *mockSettingsService) Keys() []string {
	return []string{"chunking.size", "embedding.api_key", "search.top_k"}
}

func (m *mockSettingsService) Validate() error {
	return m.validateErr
}

// testServices holds the mocks installed by setupTestServices.
type testServices struct {
	query    *mockQueryService
	folder   *mockFolderIngester
	docs     *mockDocumentService
	settings *mockSettingsService
}

var current *testServices

// setupTestServices installs fresh mocks and returns a cleanup function
// that removes them and resets command flags.
func setupTestServices() func() {
	current = &testServices{
		query: &mockQueryService{results: []domain.QueryResult{
			{
				ChunkID:    "civil/sts-1#0",
				DocumentID: "civil/sts-1",
				Text:       "Antecedentes. El despido se declara improcedente.",
				Score:      0.912,
				Metadata: domain.Metadata{
					domain.MetaTribunal:   "TS",
					domain.MetaFecha:      "2021-03-04",
					domain.MetaDocID:      "civil/sts-1",
					domain.MetaChunkIndex: 0,
				},
			},
		}},
		folder: &mockFolderIngester{},
		docs: &mockDocumentService{
			docs: map[string]*domain.Document{
				"civil/sts-1": {
					ID:       "civil/sts-1",
					URI:      "/data/civil/sts-1.txt",
					Title:    "STS 1/2021",
					Content:  "FALLO: se estima el recurso.",
					Metadata: domain.Metadata{domain.MetaTribunal: "TS", domain.MetaCategory: "civil"},
					ChunkIDs: []string{"civil/sts-1#0", "civil/sts-1#1"},
				},
			},
			values: map[string][]string{"category": {"civil", "penal"}},
		},
		settings: &mockSettingsService{settings: domain.DefaultAppSettings()},
	}

	SetServices(&Services{
		Query:     current.query,
		Ingester:  &mockIngestionService{},
		Folder:    current.folder,
		Documents: current.docs,
		Settings:  current.settings,
		FolderFor: func(driving.IngestionService) driving.FolderIngester {
			return current.folder
		},
	})

	return func() {
		SetServices(nil)
		SetBootstrap(nil)
		Close()
		resetFlags()
	}
}

// resetFlags clears flag variables that persist between executions.
func resetFlags() {
	verbose = false
	configDir = ""
	queryTopK = 0
	queryFilters = nil
	queryJSON = false
	ingestWatch = false
	ingestRemote = ""
	ingestToken = ""
	serveAddr = ""
	tuiTopK = 0
	for _, cmd := range []*cobra.Command{queryCmd, tuiCmd} {
		if f := cmd.Flags().Lookup("top-k"); f != nil {
			f.Changed = false
		}
	}
}
