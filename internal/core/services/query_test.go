package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sibila/internal/core/domain"
	"github.com/custodia-labs/sibila/internal/metrics"
)

// seedIndex upserts one entry per text using the embedder's vectors.
func seedIndex(t *testing.T, idx *mockIndex, emb *mockEmbedder, texts []string, meta func(i int) domain.Metadata) {
	t.Helper()
	for i, text := range texts {
		m := domain.Metadata{domain.MetaDocID: fmt.Sprintf("doc-%d", i)}
		if meta != nil {
			m = meta(i)
		}
		require.NoError(t, idx.Upsert(context.Background(), domain.IndexEntry{
			ChunkID:    fmt.Sprintf("chunk-%d", i),
			DocumentID: fmt.Sprintf("doc-%d", i),
			Vector:     emb.vector(text),
			Model:      emb.ModelName(),
			Metadata:   m,
			Text:       text,
		}))
	}
}

func corpus(n int) []string {
	texts := make([]string, n)
	for i := range texts {
		texts[i] = fmt.Sprintf("sentencia %d sobre arrendamiento urbano y desahucio %c", i, 'a'+i)
	}
	return texts
}

func TestNewQueryEngine_Defaults(t *testing.T) {
	q := NewQueryEngine(newMockEmbedder(), newMockIndex(), domain.SearchSettings{})

	assert.Equal(t, domain.DefaultTopK, q.settings.TopK)
	assert.Equal(t, domain.DefaultMaxTopK, q.settings.MaxTopK)
	assert.Equal(t, 10*time.Second, q.settings.Timeout)
}

func TestNewQueryEngine_ClampsDefaultToMax(t *testing.T) {
	q := NewQueryEngine(newMockEmbedder(), newMockIndex(), domain.SearchSettings{TopK: 30, MaxTopK: 20})

	assert.Equal(t, 20, q.settings.TopK)
}

func TestQueryEngine_Query_RejectsEmptyText(t *testing.T) {
	q := NewQueryEngine(newMockEmbedder(), newMockIndex(), domain.SearchSettings{})

	for _, text := range []string{"", "   ", "\n\t"} {
		results, err := q.Query(context.Background(), text, domain.QueryOptions{})
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrInvalidArgument)
		assert.Nil(t, results)
	}
}

func TestQueryEngine_Query_RejectsNonPositiveTopK(t *testing.T) {
	emb := newMockEmbedder()
	idx := newMockIndex()
	seedIndex(t, idx, emb, corpus(3), nil)
	q := NewQueryEngine(emb, idx, domain.SearchSettings{})

	for _, k := range []int{0, -1} {
		results, err := q.Query(context.Background(), "desahucio", domain.QueryOptions{TopK: domain.Limit(k)})

		assert.ErrorIs(t, err, domain.ErrInvalidArgument, "top_k=%d", k)
		assert.Nil(t, results)
	}
}

func TestQueryEngine_Query_TopK(t *testing.T) {
	emb := newMockEmbedder()
	idx := newMockIndex()
	seedIndex(t, idx, emb, corpus(10), nil)
	q := NewQueryEngine(emb, idx, domain.SearchSettings{TopK: 3, MaxTopK: 5})

	tests := []struct {
		name string
		topK *int
		want int
	}{
		{"default", nil, 3},
		{"explicit", domain.Limit(2), 2},
		{"clamped", domain.Limit(100), 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results, err := q.Query(context.Background(), "arrendamiento", domain.QueryOptions{TopK: tt.topK})
			require.NoError(t, err)
			assert.Len(t, results, tt.want)
		})
	}
}

func TestQueryEngine_Query_BestMatchFirst(t *testing.T) {
	emb := newMockEmbedder()
	idx := newMockIndex()
	texts := corpus(5)
	seedIndex(t, idx, emb, texts, nil)
	q := NewQueryEngine(emb, idx, domain.SearchSettings{})

	results, err := q.Query(context.Background(), texts[3], domain.QueryOptions{TopK: domain.Limit(5)})

	require.NoError(t, err)
	require.Len(t, results, 5)
	assert.Equal(t, "chunk-3", results[0].ChunkID)
	assert.Equal(t, "doc-3", results[0].DocumentID)
	assert.Equal(t, texts[3], results[0].Text)
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)
	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score)
	}
}

func TestQueryEngine_Query_Filter(t *testing.T) {
	emb := newMockEmbedder()
	idx := newMockIndex()
	seedIndex(t, idx, emb, corpus(6), func(i int) domain.Metadata {
		tribunal := "AP Madrid"
		if i%2 == 0 {
			tribunal = "AP Valencia"
		}
		return domain.Metadata{domain.MetaTribunal: tribunal}
	})
	q := NewQueryEngine(emb, idx, domain.SearchSettings{})

	results, err := q.Query(context.Background(), "arrendamiento", domain.QueryOptions{
		TopK:   domain.Limit(10),
		Filter: domain.QueryFilter{domain.MetaTribunal: {"AP Valencia"}},
	})

	require.NoError(t, err)
	require.Len(t, results, 3)
	for _, r := range results {
		assert.Equal(t, "AP Valencia", r.Metadata.String(domain.MetaTribunal))
	}
}

func TestQueryEngine_Query_NoMatchIsEmpty(t *testing.T) {
	emb := newMockEmbedder()
	idx := newMockIndex()
	seedIndex(t, idx, emb, corpus(3), func(int) domain.Metadata {
		return domain.Metadata{domain.MetaTribunal: "AP Valencia"}
	})
	q := NewQueryEngine(emb, idx, domain.SearchSettings{})

	results, err := q.Query(context.Background(), "arrendamiento", domain.QueryOptions{
		Filter: domain.QueryFilter{domain.MetaTribunal: {"AP Madrid"}},
	})

	require.NoError(t, err)
	assert.NotNil(t, results)
	assert.Empty(t, results)
}

func TestQueryEngine_Query_EmbedderErrorPropagates(t *testing.T) {
	emb := newMockEmbedder()
	emb.embedErr = fmt.Errorf("%w: connection refused", domain.ErrEmbeddingUnavailable)
	q := NewQueryEngine(emb, newMockIndex(), domain.SearchSettings{})

	results, err := q.Query(context.Background(), "desahucio", domain.QueryOptions{})

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
	assert.Equal(t, emb.embedErr, err)
	assert.Nil(t, results)
}

func TestQueryEngine_Query_EmbeddingTimeout(t *testing.T) {
	emb := newMockEmbedder()
	emb.delay = time.Second
	q := NewQueryEngine(emb, newMockIndex(), domain.SearchSettings{Timeout: 20 * time.Millisecond})

	_, err := q.Query(context.Background(), "desahucio", domain.QueryOptions{})

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrEmbeddingTimeout)
	assert.Equal(t, domain.KindEmbeddingTimeout, domain.KindOf(err))
}

func TestQueryEngine_Query_CallerCancellation(t *testing.T) {
	q := NewQueryEngine(newMockEmbedder(), newMockIndex(), domain.SearchSettings{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := q.Query(ctx, "desahucio", domain.QueryOptions{})

	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, errors.Is(err, domain.ErrEmbeddingTimeout))
}

func TestQueryEngine_Query_IndexErrorSurfaces(t *testing.T) {
	idx := newMockIndex()
	idx.searchErr = fmt.Errorf("%w: disk gone", domain.ErrIndexIO)
	q := NewQueryEngine(newMockEmbedder(), idx, domain.SearchSettings{})

	results, err := q.Query(context.Background(), "desahucio", domain.QueryOptions{})

	assert.ErrorIs(t, err, domain.ErrIndexIO)
	assert.Nil(t, results)
}

func TestQueryEngine_Query_DimensionMismatch(t *testing.T) {
	idx := newMockIndex()
	require.NoError(t, idx.Upsert(context.Background(), domain.IndexEntry{
		ChunkID: "c", DocumentID: "d", Vector: []float32{1, 2, 3}, Model: "other",
	}))
	q := NewQueryEngine(newMockEmbedder(), idx, domain.SearchSettings{})

	_, err := q.Query(context.Background(), "desahucio", domain.QueryOptions{})

	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
}

func TestQueryEngine_Query_RecordsMetrics(t *testing.T) {
	m := metrics.New()
	emb := newMockEmbedder()
	idx := newMockIndex()
	seedIndex(t, idx, emb, corpus(2), nil)
	q := NewQueryEngine(emb, idx, domain.SearchSettings{})
	q.SetMetrics(m)

	_, err := q.Query(context.Background(), "arrendamiento", domain.QueryOptions{})
	require.NoError(t, err)
	_, err = q.Query(context.Background(), "", domain.QueryOptions{})
	require.Error(t, err)

	assert.InDelta(t, 1, testutil.ToFloat64(m.QueryTotal.WithLabelValues("ok")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.QueryTotal.WithLabelValues(string(domain.KindInvalidArgument))), 0)
}
