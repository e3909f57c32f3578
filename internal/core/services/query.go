package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/custodia-labs/sibila/internal/core/domain"
	"github.com/custodia-labs/sibila/internal/core/ports/driven"
	"github.com/custodia-labs/sibila/internal/core/ports/driving"
	"github.com/custodia-labs/sibila/internal/logger"
	"github.com/custodia-labs/sibila/internal/metrics"
)

// Ensure QueryEngine implements the interface.
var _ driving.QueryService = (*QueryEngine)(nil)

// QueryEngine answers questions by embedding them and searching the index.
type QueryEngine struct {
	embedder driven.EmbeddingService
	index    driven.VectorIndex
	settings domain.SearchSettings
	metrics  *metrics.Metrics
}

// NewQueryEngine creates a query engine. Zero settings fall back to the
// defaults (top_k 8, max 50, 10s embedding timeout).
func NewQueryEngine(embedder driven.EmbeddingService, index driven.VectorIndex, settings domain.SearchSettings) *QueryEngine {
	defaults := domain.DefaultAppSettings().Search
	if settings.TopK <= 0 {
		settings.TopK = defaults.TopK
	}
	if settings.MaxTopK <= 0 {
		settings.MaxTopK = defaults.MaxTopK
	}
	if settings.TopK > settings.MaxTopK {
		settings.TopK = settings.MaxTopK
	}
	if settings.Timeout <= 0 {
		settings.Timeout = defaults.Timeout
	}
	return &QueryEngine{
		embedder: embedder,
		index:    index,
		settings: settings,
	}
}

// SetMetrics enables query instrumentation.
func (q *QueryEngine) SetMetrics(m *metrics.Metrics) {
	q.metrics = m
}

// Query embeds text and returns the best matching passages.
func (q *QueryEngine) Query(ctx context.Context, text string, opts domain.QueryOptions) ([]domain.QueryResult, error) {
	start := time.Now()
	results, err := q.query(ctx, text, opts)

	kind := "ok"
	if err != nil {
		kind = string(domain.KindOf(err))
	}
	q.metrics.RecordQuery(kind, time.Since(start).Seconds())
	return results, err
}

func (q *QueryEngine) query(ctx context.Context, text string, opts domain.QueryOptions) ([]domain.QueryResult, error) {
	logger.Section("Query")

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: query text is empty", domain.ErrInvalidArgument)
	}
	topK, err := q.resolveTopK(opts.TopK)
	if err != nil {
		return nil, err
	}
	logger.Debug("Query: %q, top_k: %d, filter fields: %v", text, topK, opts.Filter.Fields())

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vector, err := q.embed(ctx, text)
	if err != nil {
		logger.Debug("Query embedding failed: %v", err)
		return nil, err
	}

	hits, err := q.index.Search(ctx, vector, opts.Filter, topK)
	if err != nil {
		logger.Debug("Index search failed: %v", err)
		return nil, err
	}

	results := make([]domain.QueryResult, len(hits))
	for i, hit := range hits {
		results[i] = domain.QueryResult{
			ChunkID:    hit.Entry.ChunkID,
			DocumentID: hit.Entry.DocumentID,
			Text:       hit.Entry.Text,
			Score:      hit.Score,
			Metadata:   hit.Entry.Metadata,
		}
	}
	logger.Debug("Results: %d", len(results))
	return results, nil
}

// resolveTopK applies the default when unset and clamps to the maximum.
func (q *QueryEngine) resolveTopK(requested *int) (int, error) {
	if requested == nil {
		return q.settings.TopK, nil
	}
	switch topK := *requested; {
	case topK <= 0:
		return 0, fmt.Errorf("%w: top_k must be positive, got %d", domain.ErrInvalidArgument, topK)
	case topK > q.settings.MaxTopK:
		logger.Debug("Clamping top_k %d to %d", topK, q.settings.MaxTopK)
		return q.settings.MaxTopK, nil
	default:
		return topK, nil
	}
}

// embed runs the embedder once under the query timeout. Expiry of the
// timeout is reported as ErrEmbeddingTimeout; cancellation of the caller's
// context is returned as is.
func (q *QueryEngine) embed(ctx context.Context, text string) ([]float32, error) {
	embedCtx, cancel := context.WithTimeout(ctx, q.settings.Timeout)
	defer cancel()

	vector, err := q.embedder.Embed(embedCtx, text)
	if err == nil {
		return vector, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if errors.Is(embedCtx.Err(), context.DeadlineExceeded) && !errors.Is(err, domain.ErrEmbeddingTimeout) {
		return nil, fmt.Errorf("%w: no embedding within %s: %w", domain.ErrEmbeddingTimeout, q.settings.Timeout, err)
	}
	return nil, err
}
