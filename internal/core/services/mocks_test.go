package services

import (
	"context"
	"strings"
	"sync"
	"time"

	memoryindex "github.com/custodia-labs/sibila/internal/adapters/driven/vectorindex/memory"
	"github.com/custodia-labs/sibila/internal/core/domain"
	"github.com/custodia-labs/sibila/internal/core/ports/driven"
)

// mockEmbedder implements driven.EmbeddingService with deterministic
// vectors and programmable failures.
type mockEmbedder struct {
	mu         sync.Mutex
	dims       int
	calls      int
	batchSizes []int

	// fail is consulted on every EmbedBatch call; a non-nil error fails it.
	fail func(call int, texts []string) error

	embedErr error
	delay    time.Duration
}

func newMockEmbedder() *mockEmbedder {
	return &mockEmbedder{dims: 8}
}

func (m *mockEmbedder) vector(text string) []float32 {
	v := make([]float32, m.dims)
	for i, r := range text {
		v[i%m.dims] += float32(r%7) + 1
	}
	return v
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if m.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(m.delay):
		}
	}
	if m.embedErr != nil {
		return nil, m.embedErr
	}
	return m.vector(text), nil
}

func (m *mockEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	m.calls++
	call := m.calls
	m.batchSizes = append(m.batchSizes, len(texts))
	fail := m.fail
	m.mu.Unlock()

	if fail != nil {
		if err := fail(call, texts); err != nil {
			return nil, err
		}
	}
	vectors := make([][]float32, len(texts))
	for i, t := range texts {
		vectors[i] = m.vector(t)
	}
	return vectors, nil
}

func (m *mockEmbedder) Dimensions() int              { return m.dims }
func (m *mockEmbedder) ModelName() string            { return "mock-embed" }
func (m *mockEmbedder) Ping(_ context.Context) error { return nil }
func (m *mockEmbedder) Close() error                 { return nil }

func (m *mockEmbedder) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// failOn fails every batch containing a text with marker.
func failOn(marker string, err error) func(int, []string) error {
	return func(_ int, texts []string) error {
		for _, t := range texts {
			if strings.Contains(t, marker) {
				return err
			}
		}
		return nil
	}
}

// mockPipeline implements driven.PostProcessorPipeline by splitting the
// content into paragraphs.
type mockPipeline struct {
	err error
}

func (m *mockPipeline) Process(_ context.Context, doc *domain.Document) ([]domain.Chunk, error) {
	if m.err != nil {
		return nil, m.err
	}
	var chunks []domain.Chunk
	for _, para := range strings.Split(doc.Content, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		pos := len(chunks)
		meta := doc.Metadata.Clone()
		if meta == nil {
			meta = domain.Metadata{}
		}
		meta[domain.MetaDocID] = doc.ID
		meta[domain.MetaChunkIndex] = int64(pos)
		chunks = append(chunks, domain.Chunk{
			ID:         domain.ChunkID(doc.ID, pos, para),
			DocumentID: doc.ID,
			Content:    para,
			Position:   pos,
			Metadata:   meta,
		})
	}
	return chunks, nil
}

// mockIndex wraps the memory index with injectable failures.
type mockIndex struct {
	*memoryindex.Index
	upsertErr error
	searchErr error
}

func newMockIndex() *mockIndex {
	return &mockIndex{Index: memoryindex.New()}
}

func (m *mockIndex) Upsert(ctx context.Context, entry domain.IndexEntry) error {
	if m.upsertErr != nil {
		return m.upsertErr
	}
	return m.Index.Upsert(ctx, entry)
}

func (m *mockIndex) Search(ctx context.Context, vector []float32, filter domain.QueryFilter, topK int) ([]domain.SearchHit, error) {
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	return m.Index.Search(ctx, vector, filter, topK)
}

// mockExtractor implements driven.TextExtractor from canned texts.
type mockExtractor struct {
	exts  []string
	texts map[string]string
	errs  map[string]error
}

func (m *mockExtractor) Name() string         { return "mock" }
func (m *mockExtractor) Extensions() []string { return m.exts }

func (m *mockExtractor) Extract(_ context.Context, path string) (string, error) {
	if err, ok := m.errs[path]; ok {
		return "", err
	}
	return m.texts[path], nil
}

// mockRegistry implements driven.ExtractorRegistry over one extractor.
type mockRegistry struct {
	extractor *mockExtractor
}

func newMockRegistry(exts ...string) *mockRegistry {
	return &mockRegistry{extractor: &mockExtractor{
		exts:  exts,
		texts: map[string]string{},
		errs:  map[string]error{},
	}}
}

func (m *mockRegistry) Get(ext string) (driven.TextExtractor, bool) {
	for _, e := range m.extractor.exts {
		if e == ext {
			return m.extractor, true
		}
	}
	return nil, false
}

func (m *mockRegistry) Extensions() []string { return m.extractor.exts }

// mockSidecars implements driven.MetadataReader for "<base>.meta.json" files.
type mockSidecars struct {
	mu   sync.Mutex
	meta map[string]map[string]any
	errs map[string]error
}

func newMockSidecars() *mockSidecars {
	return &mockSidecars{meta: map[string]map[string]any{}, errs: map[string]error{}}
}

func (m *mockSidecars) set(path string, meta map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.meta[path] = meta
}

func (m *mockSidecars) Read(_ context.Context, path string) (map[string]any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.errs[path]; ok {
		return nil, err
	}
	return m.meta[path], nil
}

func (m *mockSidecars) IsSidecar(path string) (string, bool) {
	if strings.HasSuffix(path, ".meta.json") {
		return strings.TrimSuffix(path, ".meta.json"), true
	}
	return "", false
}

// mockConnector implements driven.Connector over a fixed file list.
type mockConnector struct {
	files       []domain.SourceFile
	scanErr     error
	validateErr error
	changes     chan domain.FileChange
	closed      bool
}

func (m *mockConnector) Type() string { return "mock" }

func (m *mockConnector) Validate(_ context.Context) error { return m.validateErr }

func (m *mockConnector) Scan(ctx context.Context) (<-chan domain.SourceFile, <-chan error) {
	files := make(chan domain.SourceFile)
	errs := make(chan error, 1)

	go func() {
		defer close(files)
		defer close(errs)

		for _, f := range m.files {
			select {
			case <-ctx.Done():
				return
			case files <- f:
			}
		}
		if m.scanErr != nil {
			errs <- m.scanErr
		}
	}()

	return files, errs
}

func (m *mockConnector) Watch(_ context.Context) (<-chan domain.FileChange, error) {
	return m.changes, nil
}

func (m *mockConnector) Close() error {
	m.closed = true
	return nil
}

// mockIngester implements driving.IngestionService by recording calls.
type mockIngester struct {
	mu        sync.Mutex
	removed   []string
	removeErr error
}

func (m *mockIngester) Ingest(_ context.Context, doc *domain.Document) (*domain.IngestReport, error) {
	return &domain.IngestReport{DocumentID: doc.ID}, nil
}

func (m *mockIngester) IngestChunks(_ context.Context, doc *domain.Document, _ []int) (*domain.IngestReport, error) {
	return &domain.IngestReport{DocumentID: doc.ID}, nil
}

func (m *mockIngester) Remove(_ context.Context, documentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removed = append(m.removed, documentID)
	return m.removeErr
}

// mockValidator implements driven.EmbeddingValidator.
type mockValidator struct {
	err    error
	called bool
}

func (m *mockValidator) ValidateEmbedding(_ *domain.EmbeddingSettings) error {
	m.called = true
	return m.err
}
