package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sibila/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/sibila/internal/core/domain"
	"github.com/custodia-labs/sibila/internal/metrics"
)

type ingestFixture struct {
	pipeline *IngestionPipeline
	embedder *mockEmbedder
	index    *mockIndex
	store    *memory.DocumentStore

	mu     sync.Mutex
	sleeps []time.Duration
}

func newIngestFixture(t *testing.T, settings domain.IngestSettings) *ingestFixture {
	t.Helper()
	f := &ingestFixture{
		embedder: newMockEmbedder(),
		index:    newMockIndex(),
		store:    memory.NewDocumentStore(),
	}
	f.pipeline = NewIngestionPipeline(&mockPipeline{}, f.embedder, f.index, f.store, settings)
	f.pipeline.sleep = func(_ context.Context, d time.Duration) error {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.sleeps = append(f.sleeps, d)
		return nil
	}
	return f
}

func (f *ingestFixture) count(t *testing.T) int {
	t.Helper()
	n, err := f.index.Count(context.Background())
	require.NoError(t, err)
	return n
}

func testDocument(id string, paragraphs ...string) *domain.Document {
	return &domain.Document{
		ID:       id,
		Title:    id + ".txt",
		Content:  strings.Join(paragraphs, "\n\n"),
		Metadata: domain.Metadata{domain.MetaTribunal: "AP Valencia"},
	}
}

func TestNewIngestionPipeline_Defaults(t *testing.T) {
	p := NewIngestionPipeline(&mockPipeline{}, newMockEmbedder(), newMockIndex(), nil, domain.IngestSettings{})

	assert.Equal(t, domain.DefaultAppSettings().Ingest.Workers, p.settings.Workers)
	assert.Equal(t, domain.DefaultAppSettings().Ingest.BatchSize, p.settings.BatchSize)
	assert.Equal(t, domain.DefaultAppSettings().Ingest.MaxAttempts, p.settings.MaxAttempts)
	assert.Equal(t, domain.DefaultAppSettings().Ingest.BaseBackoff, p.settings.BaseBackoff)
	assert.Equal(t, domain.DefaultAppSettings().Ingest.MaxBackoff, p.settings.MaxBackoff)
}

func TestIngestionPipeline_Ingest_Success(t *testing.T) {
	f := newIngestFixture(t, domain.IngestSettings{})
	doc := testDocument("sentencia-1", "Primero.", "Segundo.", "Tercero.")

	report, err := f.pipeline.Ingest(context.Background(), doc)

	require.NoError(t, err)
	assert.Equal(t, "sentencia-1", report.DocumentID)
	assert.Equal(t, 3, report.TotalChunks)
	assert.Len(t, report.Upserted, 3)
	assert.Empty(t, report.Failed)
	assert.Equal(t, 3, f.count(t))

	id, err := f.index.Identity(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.ModelIdentity{Dimension: 8, Model: "mock-embed"}, id)

	saved, err := f.store.GetDocument(context.Background(), "sentencia-1")
	require.NoError(t, err)
	assert.Equal(t, report.Upserted, saved.ChunkIDs)
	assert.Equal(t, "AP Valencia", saved.Metadata.String(domain.MetaTribunal))
	assert.False(t, saved.CreatedAt.IsZero())
}

func TestIngestionPipeline_Ingest_Idempotent(t *testing.T) {
	f := newIngestFixture(t, domain.IngestSettings{})
	doc := testDocument("sentencia-1", "Primero.", "Segundo.")

	first, err := f.pipeline.Ingest(context.Background(), doc)
	require.NoError(t, err)
	second, err := f.pipeline.Ingest(context.Background(), doc)
	require.NoError(t, err)

	assert.Equal(t, first.Upserted, second.Upserted)
	assert.Zero(t, second.Removed)
	assert.Equal(t, 2, f.count(t))
}

func TestIngestionPipeline_Ingest_RemovesStaleChunks(t *testing.T) {
	f := newIngestFixture(t, domain.IngestSettings{})

	_, err := f.pipeline.Ingest(context.Background(), testDocument("s", "Uno.", "Dos.", "Tres."))
	require.NoError(t, err)
	report, err := f.pipeline.Ingest(context.Background(), testDocument("s", "Uno.", "Dos."))
	require.NoError(t, err)

	assert.Equal(t, 1, report.Removed)
	assert.Equal(t, 2, f.count(t))
}

func TestIngestionPipeline_Ingest_KeepsCreatedAt(t *testing.T) {
	f := newIngestFixture(t, domain.IngestSettings{})
	t1 := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	t2 := t1.Add(time.Hour)

	f.pipeline.now = func() time.Time { return t1 }
	_, err := f.pipeline.Ingest(context.Background(), testDocument("s", "Uno."))
	require.NoError(t, err)
	f.pipeline.now = func() time.Time { return t2 }
	_, err = f.pipeline.Ingest(context.Background(), testDocument("s", "Uno.", "Dos."))
	require.NoError(t, err)

	saved, err := f.store.GetDocument(context.Background(), "s")
	require.NoError(t, err)
	assert.True(t, saved.CreatedAt.Equal(t1))
	assert.True(t, saved.UpdatedAt.Equal(t2))
}

func TestIngestionPipeline_Ingest_InvalidDocument(t *testing.T) {
	f := newIngestFixture(t, domain.IngestSettings{})

	tests := []struct {
		name string
		doc  *domain.Document
	}{
		{"nil", nil},
		{"empty id", &domain.Document{Content: "texto"}},
		{"blank id", &domain.Document{ID: "  ", Content: "texto"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report, err := f.pipeline.Ingest(context.Background(), tt.doc)
			assert.ErrorIs(t, err, domain.ErrInvalidArgument)
			assert.Nil(t, report)
		})
	}
	assert.Zero(t, f.embedder.callCount())
}

func TestIngestionPipeline_Ingest_EmptyContent(t *testing.T) {
	f := newIngestFixture(t, domain.IngestSettings{})

	report, err := f.pipeline.Ingest(context.Background(), testDocument("vacio", "   "))

	require.NoError(t, err)
	assert.Zero(t, report.TotalChunks)
	assert.Empty(t, report.Upserted)
	assert.Zero(t, f.count(t))
}

func TestIngestionPipeline_Ingest_ChunkerError(t *testing.T) {
	f := newIngestFixture(t, domain.IngestSettings{})
	f.pipeline.pipeline = &mockPipeline{err: fmt.Errorf("%w: overlap too large", domain.ErrInvalidArgument)}

	_, err := f.pipeline.Ingest(context.Background(), testDocument("s", "Uno."))

	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestIngestionPipeline_Ingest_Batches(t *testing.T) {
	f := newIngestFixture(t, domain.IngestSettings{BatchSize: 2, Workers: 2})

	report, err := f.pipeline.Ingest(context.Background(),
		testDocument("s", "Uno.", "Dos.", "Tres.", "Cuatro.", "Cinco."))

	require.NoError(t, err)
	assert.Len(t, report.Upserted, 5)

	sizes := append([]int(nil), f.embedder.batchSizes...)
	sort.Ints(sizes)
	assert.Equal(t, []int{1, 2, 2}, sizes)
}

func TestIngestionPipeline_Ingest_RetriesTransientFailures(t *testing.T) {
	f := newIngestFixture(t, domain.IngestSettings{
		Workers:     1,
		MaxAttempts: 4,
		BaseBackoff: 100 * time.Millisecond,
		MaxBackoff:  time.Second,
	})
	m := metrics.New()
	f.pipeline.SetMetrics(m)
	f.embedder.fail = func(call int, _ []string) error {
		if call <= 2 {
			return fmt.Errorf("%w: 503", domain.ErrEmbeddingUnavailable)
		}
		return nil
	}

	report, err := f.pipeline.Ingest(context.Background(), testDocument("s", "Uno.", "Dos."))

	require.NoError(t, err)
	assert.Len(t, report.Upserted, 2)
	assert.Equal(t, 3, f.embedder.callCount())
	assert.Equal(t, []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}, f.sleeps)
	assert.InDelta(t, 2, testutil.ToFloat64(m.EmbeddingRetries), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(m.IngestChunks.WithLabelValues(metrics.StatusUpserted)), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(m.IndexEntries), 0)
}

func TestIngestionPipeline_Ingest_BackoffIsCapped(t *testing.T) {
	f := newIngestFixture(t, domain.IngestSettings{
		Workers:     1,
		MaxAttempts: 4,
		BaseBackoff: 100 * time.Millisecond,
		MaxBackoff:  250 * time.Millisecond,
	})
	f.embedder.fail = func(int, []string) error {
		return fmt.Errorf("%w: deadline", domain.ErrEmbeddingTimeout)
	}

	report, err := f.pipeline.Ingest(context.Background(), testDocument("s", "Uno."))

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrPartialIngest)
	assert.ErrorIs(t, err, domain.ErrEmbeddingTimeout)
	require.NotNil(t, report)
	require.Len(t, report.Failed, 1)
	assert.Equal(t, domain.KindEmbeddingTimeout, report.Failed[0].Kind)
	assert.Equal(t, 4, f.embedder.callCount())
	assert.Equal(t, []time.Duration{
		100 * time.Millisecond, 200 * time.Millisecond, 250 * time.Millisecond,
	}, f.sleeps)
	assert.Zero(t, f.count(t))
}

func TestIngestionPipeline_Ingest_IsolatesFailingChunk(t *testing.T) {
	f := newIngestFixture(t, domain.IngestSettings{})
	f.embedder.fail = failOn("malo", fmt.Errorf("%w: input too long", domain.ErrEmbeddingRejected))
	doc := testDocument("s", "Bueno uno.", "Texto malo.", "Bueno dos.")

	report, err := f.pipeline.Ingest(context.Background(), doc)

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrPartialIngest)
	assert.Equal(t, domain.KindEmbeddingRejected, domain.KindOf(err))
	require.NotNil(t, report)
	assert.Equal(t, 3, report.TotalChunks)
	assert.Len(t, report.Upserted, 2)
	require.Len(t, report.Failed, 1)
	assert.Equal(t, 1, report.Failed[0].Position)
	assert.Equal(t, domain.KindEmbeddingRejected, report.Failed[0].Kind)
	assert.Equal(t, []int{1}, report.FailedPositions())
	assert.Equal(t, 2, f.count(t))
	assert.Empty(t, f.sleeps, "permanent failures are not retried")

	saved, err := f.store.GetDocument(context.Background(), "s")
	require.NoError(t, err)
	assert.Len(t, saved.ChunkIDs, 3)
}

func TestIngestionPipeline_IngestChunks_RetriesFailedPositions(t *testing.T) {
	f := newIngestFixture(t, domain.IngestSettings{})
	f.embedder.fail = failOn("malo", domain.ErrEmbeddingRejected)
	doc := testDocument("s", "Bueno uno.", "Texto malo.", "Bueno dos.")

	report, err := f.pipeline.Ingest(context.Background(), doc)
	require.ErrorIs(t, err, domain.ErrPartialIngest)

	f.embedder.mu.Lock()
	f.embedder.fail = nil
	f.embedder.mu.Unlock()
	retry, err := f.pipeline.IngestChunks(context.Background(), doc, report.FailedPositions())

	require.NoError(t, err)
	assert.Equal(t, 3, retry.TotalChunks)
	assert.Len(t, retry.Upserted, 1)
	assert.Equal(t, report.Failed[0].ChunkID, retry.Upserted[0])
	assert.Equal(t, 3, f.count(t))
}

func TestIngestionPipeline_IngestChunks_InvalidPositions(t *testing.T) {
	f := newIngestFixture(t, domain.IngestSettings{})
	doc := testDocument("s", "Uno.", "Dos.")

	for _, positions := range [][]int{nil, {2}, {-1}} {
		_, err := f.pipeline.IngestChunks(context.Background(), doc, positions)
		assert.ErrorIs(t, err, domain.ErrInvalidArgument, "positions %v", positions)
	}
	assert.Zero(t, f.embedder.callCount())
}

func TestIngestionPipeline_Ingest_AbortsOnDimensionMismatch(t *testing.T) {
	f := newIngestFixture(t, domain.IngestSettings{})
	require.NoError(t, f.index.Upsert(context.Background(), domain.IndexEntry{
		ChunkID: "old", DocumentID: "old", Vector: []float32{1, 2, 3}, Model: "other",
	}))

	report, err := f.pipeline.Ingest(context.Background(), testDocument("s", "Uno.", "Dos."))

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
	assert.False(t, errors.Is(err, domain.ErrPartialIngest))
	assert.Nil(t, report)
	assert.Equal(t, 1, f.count(t))

	_, err = f.store.GetDocument(context.Background(), "s")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestIngestionPipeline_Ingest_UpsertFailureIsReported(t *testing.T) {
	f := newIngestFixture(t, domain.IngestSettings{})
	f.index.upsertErr = fmt.Errorf("%w: disk full", domain.ErrIndexIO)

	report, err := f.pipeline.Ingest(context.Background(), testDocument("s", "Uno.", "Dos."))

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrPartialIngest)
	assert.ErrorIs(t, err, domain.ErrIndexIO)
	require.NotNil(t, report)
	assert.Empty(t, report.Upserted)
	require.Len(t, report.Failed, 2)
	for _, failure := range report.Failed {
		assert.Equal(t, domain.KindIndexIO, failure.Kind)
	}
}

func TestIngestionPipeline_Ingest_Cancelled(t *testing.T) {
	f := newIngestFixture(t, domain.IngestSettings{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := f.pipeline.Ingest(ctx, testDocument("s", "Uno."))

	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, report)
	assert.Zero(t, f.count(t))
}

func TestIngestionPipeline_Ingest_WithoutStore(t *testing.T) {
	emb := newMockEmbedder()
	idx := newMockIndex()
	p := NewIngestionPipeline(&mockPipeline{}, emb, idx, nil, domain.IngestSettings{})

	report, err := p.Ingest(context.Background(), testDocument("s", "Uno.", "Dos."))

	require.NoError(t, err)
	assert.Len(t, report.Upserted, 2)
	assert.Zero(t, report.Removed)
}

func TestIngestionPipeline_Remove(t *testing.T) {
	f := newIngestFixture(t, domain.IngestSettings{})
	_, err := f.pipeline.Ingest(context.Background(), testDocument("s", "Uno.", "Dos."))
	require.NoError(t, err)
	_, err = f.pipeline.Ingest(context.Background(), testDocument("otro", "Tres."))
	require.NoError(t, err)

	require.NoError(t, f.pipeline.Remove(context.Background(), "s"))

	assert.Equal(t, 1, f.count(t))
	_, err = f.store.GetDocument(context.Background(), "s")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestIngestionPipeline_Remove_Errors(t *testing.T) {
	f := newIngestFixture(t, domain.IngestSettings{})

	assert.ErrorIs(t, f.pipeline.Remove(context.Background(), "missing"), domain.ErrNotFound)
	assert.ErrorIs(t, f.pipeline.Remove(context.Background(), "  "), domain.ErrInvalidArgument)
}

func TestIngestionPipeline_Remove_CataloguedWithoutChunks(t *testing.T) {
	f := newIngestFixture(t, domain.IngestSettings{})
	_, err := f.pipeline.Ingest(context.Background(), testDocument("vacio", ""))
	require.NoError(t, err)

	assert.NoError(t, f.pipeline.Remove(context.Background(), "vacio"))
}

func TestSleepContext(t *testing.T) {
	assert.NoError(t, sleepContext(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleepContext(ctx, time.Hour), context.Canceled)
}
