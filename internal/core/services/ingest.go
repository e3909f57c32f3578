package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/sibila/internal/core/domain"
	"github.com/custodia-labs/sibila/internal/core/ports/driven"
	"github.com/custodia-labs/sibila/internal/core/ports/driving"
	"github.com/custodia-labs/sibila/internal/logger"
	"github.com/custodia-labs/sibila/internal/metrics"
)

// Ensure IngestionPipeline implements the interface.
var _ driving.IngestionService = (*IngestionPipeline)(nil)

// IngestionPipeline chunks documents, embeds the chunks and upserts them
// into the vector index.
type IngestionPipeline struct {
	pipeline driven.PostProcessorPipeline
	embedder driven.EmbeddingService
	index    driven.VectorIndex
	store    driven.DocumentStore
	settings domain.IngestSettings
	metrics  *metrics.Metrics

	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

// NewIngestionPipeline creates an ingestion pipeline.
// The store is optional; without it stale chunks of a re-ingested
// document are not detected and the catalogue is not updated.
func NewIngestionPipeline(
	pipeline driven.PostProcessorPipeline,
	embedder driven.EmbeddingService,
	index driven.VectorIndex,
	store driven.DocumentStore,
	settings domain.IngestSettings,
) *IngestionPipeline {
	defaults := domain.DefaultAppSettings().Ingest
	if settings.Workers <= 0 {
		settings.Workers = defaults.Workers
	}
	if settings.BatchSize <= 0 {
		settings.BatchSize = defaults.BatchSize
	}
	if settings.MaxAttempts <= 0 {
		settings.MaxAttempts = defaults.MaxAttempts
	}
	if settings.BaseBackoff <= 0 {
		settings.BaseBackoff = defaults.BaseBackoff
	}
	if settings.MaxBackoff <= 0 {
		settings.MaxBackoff = defaults.MaxBackoff
	}

	return &IngestionPipeline{
		pipeline: pipeline,
		embedder: embedder,
		index:    index,
		store:    store,
		settings: settings,
		sleep:    sleepContext,
		now:      time.Now,
	}
}

// SetMetrics enables ingestion instrumentation.
func (p *IngestionPipeline) SetMetrics(m *metrics.Metrics) {
	p.metrics = m
}

// Ingest makes every chunk of doc searchable.
func (p *IngestionPipeline) Ingest(ctx context.Context, doc *domain.Document) (*domain.IngestReport, error) {
	prepared, chunks, err := p.chunk(ctx, doc)
	if err != nil {
		return nil, err
	}
	logger.Debug("Ingesting %s: %d chunks", prepared.ID, len(chunks))

	return p.run(ctx, prepared, chunks, chunks)
}

// IngestChunks re-runs ingestion for the chunks at the given positions.
func (p *IngestionPipeline) IngestChunks(
	ctx context.Context, doc *domain.Document, positions []int,
) (*domain.IngestReport, error) {
	if len(positions) == 0 {
		return nil, fmt.Errorf("%w: no chunk positions given", domain.ErrInvalidArgument)
	}
	prepared, chunks, err := p.chunk(ctx, doc)
	if err != nil {
		return nil, err
	}

	wanted := make(map[int]struct{}, len(positions))
	for _, pos := range positions {
		if pos < 0 || pos >= len(chunks) {
			return nil, fmt.Errorf("%w: chunk index %d out of range [0, %d)",
				domain.ErrInvalidArgument, pos, len(chunks))
		}
		wanted[pos] = struct{}{}
	}
	selected := make([]domain.Chunk, 0, len(wanted))
	for _, c := range chunks {
		if _, ok := wanted[c.Position]; ok {
			selected = append(selected, c)
		}
	}
	logger.Debug("Re-ingesting %s: %d of %d chunks", prepared.ID, len(selected), len(chunks))

	return p.run(ctx, prepared, chunks, selected)
}

// Remove deletes a document from the index and the catalogue.
func (p *IngestionPipeline) Remove(ctx context.Context, documentID string) error {
	documentID = strings.TrimSpace(documentID)
	if documentID == "" {
		return fmt.Errorf("%w: document id is empty", domain.ErrInvalidArgument)
	}

	removed, err := p.index.DeleteDocument(ctx, documentID)
	if err != nil {
		return fmt.Errorf("delete %s from index: %w", documentID, err)
	}
	p.metrics.RecordChunks(metrics.StatusRemoved, removed)

	catalogued := false
	if p.store != nil {
		if _, err := p.store.GetDocument(ctx, documentID); err == nil {
			catalogued = true
		} else if !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		if err := p.store.DeleteDocument(ctx, documentID); err != nil {
			return fmt.Errorf("delete %s from catalogue: %w", documentID, err)
		}
	}

	if removed == 0 && !catalogued {
		return fmt.Errorf("document %s: %w", documentID, domain.ErrNotFound)
	}
	logger.Info("Removed %s (%d entries)", documentID, removed)
	p.refreshCount(ctx)
	return nil
}

// chunk prepares the document and runs the post-processor pipeline.
func (p *IngestionPipeline) chunk(ctx context.Context, doc *domain.Document) (*domain.Document, []domain.Chunk, error) {
	prepared, err := prepareDocument(doc)
	if err != nil {
		return nil, nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	chunks, err := p.pipeline.Process(ctx, prepared)
	if err != nil {
		return nil, nil, fmt.Errorf("chunk %s: %w", prepared.ID, err)
	}
	return prepared, chunks, nil
}

// run embeds and upserts the selected chunks, then records the document
// with all of its chunks in the catalogue.
func (p *IngestionPipeline) run(
	ctx context.Context, doc *domain.Document, all, selected []domain.Chunk,
) (*domain.IngestReport, error) {
	report := &domain.IngestReport{
		DocumentID:  doc.ID,
		TotalChunks: len(all),
		Upserted:    []string{},
	}

	outcomes, err := p.embedAndUpsert(ctx, selected)
	if err != nil {
		return nil, err
	}

	var firstCause error
	for i, c := range selected {
		if outcomes[i] == nil {
			report.Upserted = append(report.Upserted, c.ID)
			continue
		}
		if firstCause == nil {
			firstCause = outcomes[i]
		}
		report.Failed = append(report.Failed, domain.ChunkFailure{
			ChunkID:  c.ID,
			Position: c.Position,
			Kind:     domain.KindOf(outcomes[i]),
			Err:      outcomes[i].Error(),
		})
	}
	p.metrics.RecordChunks(metrics.StatusUpserted, len(report.Upserted))
	p.metrics.RecordChunks(metrics.StatusFailed, len(report.Failed))

	removed, err := p.catalogue(ctx, doc, all)
	if err != nil {
		return report, err
	}
	report.Removed = removed
	p.refreshCount(ctx)

	if len(report.Failed) > 0 {
		logger.Warn("Ingested %s with %d failed chunks", doc.ID, len(report.Failed))
		return report, fmt.Errorf("%w: %s: %d of %d chunks failed: %w",
			domain.ErrPartialIngest, doc.ID, len(report.Failed), len(selected), firstCause)
	}
	logger.Debug("Ingested %s: %d upserted, %d stale removed", doc.ID, len(report.Upserted), removed)
	return report, nil
}

// embedAndUpsert processes chunks in batches on a bounded worker pool.
// It returns one outcome per chunk (nil on success) or an error that
// aborts the whole document.
func (p *IngestionPipeline) embedAndUpsert(ctx context.Context, chunks []domain.Chunk) ([]error, error) {
	outcomes := make([]error, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.settings.Workers)

	for start := 0; start < len(chunks) && gctx.Err() == nil; start += p.settings.BatchSize {
		end := min(start+p.settings.BatchSize, len(chunks))
		batch := chunks[start:end]
		results := outcomes[start:end]
		g.Go(func() error {
			return p.processBatch(gctx, batch, results)
		})
	}

	if err := g.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, err
	}
	return outcomes, nil
}

// processBatch embeds a batch with retries. A batch that keeps failing
// is retried chunk by chunk so failures are isolated.
func (p *IngestionPipeline) processBatch(ctx context.Context, batch []domain.Chunk, results []error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	texts := make([]string, len(batch))
	for i := range batch {
		texts[i] = batch[i].Content
	}

	vectors, err := p.embedWithRetry(ctx, texts)
	if err != nil {
		if isAbort(ctx, err) {
			return err
		}
		if len(batch) == 1 {
			results[0] = err
			return nil
		}
		logger.Debug("Batch of %d failed (%v), retrying chunk by chunk", len(batch), err)
		for i := range batch {
			if err := p.processBatch(ctx, batch[i:i+1], results[i:i+1]); err != nil {
				return err
			}
		}
		return nil
	}

	for i := range batch {
		if err := p.upsert(ctx, batch[i], vectors[i]); err != nil {
			if isAbort(ctx, err) {
				return err
			}
			results[i] = err
		}
	}
	return nil
}

// embedWithRetry retries transient embedder errors with exponential
// backoff. Rejections and other permanent errors return at once.
func (p *IngestionPipeline) embedWithRetry(ctx context.Context, texts []string) ([][]float32, error) {
	delay := p.settings.BaseBackoff
	for attempt := 1; ; attempt++ {
		vectors, err := p.embedder.EmbedBatch(ctx, texts)
		if err == nil && len(vectors) != len(texts) {
			err = fmt.Errorf("%w: %d vectors for %d texts", domain.ErrEmbeddingRejected, len(vectors), len(texts))
		}
		if err == nil {
			return vectors, nil
		}
		if !domain.IsTransient(err) || attempt >= p.settings.MaxAttempts || ctx.Err() != nil {
			return nil, err
		}

		p.metrics.RecordRetry()
		logger.Debug("Embedding attempt %d/%d failed: %v, retrying in %s", attempt, p.settings.MaxAttempts, err, delay)
		if err := p.sleep(ctx, delay); err != nil {
			return nil, err
		}
		delay = min(delay*2, p.settings.MaxBackoff)
	}
}

func (p *IngestionPipeline) upsert(ctx context.Context, c domain.Chunk, vector []float32) error {
	return p.index.Upsert(ctx, domain.IndexEntry{
		ChunkID:    c.ID,
		DocumentID: c.DocumentID,
		Vector:     vector,
		Model:      p.embedder.ModelName(),
		Metadata:   c.Metadata,
		Text:       c.Content,
	})
}

// catalogue saves the document and deletes index entries that belonged
// to its previous version. It returns the number of stale entries removed.
func (p *IngestionPipeline) catalogue(ctx context.Context, doc *domain.Document, chunks []domain.Chunk) (int, error) {
	if p.store == nil {
		return 0, nil
	}

	ids := make([]string, len(chunks))
	current := make(map[string]struct{}, len(chunks))
	for i, c := range chunks {
		ids[i] = c.ID
		current[c.ID] = struct{}{}
	}

	saved := *doc
	removed := 0
	prev, err := p.store.GetDocument(ctx, doc.ID)
	switch {
	case err == nil:
		if saved.CreatedAt.IsZero() {
			saved.CreatedAt = prev.CreatedAt
		}
		for _, id := range prev.ChunkIDs {
			if _, keep := current[id]; keep {
				continue
			}
			if err := p.index.Delete(ctx, id); err != nil {
				return removed, fmt.Errorf("delete stale chunk %s: %w", id, err)
			}
			removed++
		}
	case !errors.Is(err, domain.ErrNotFound):
		return 0, fmt.Errorf("load catalogue entry %s: %w", doc.ID, err)
	}
	p.metrics.RecordChunks(metrics.StatusRemoved, removed)

	saved.ChunkIDs = ids
	now := p.now()
	if saved.CreatedAt.IsZero() {
		saved.CreatedAt = now
	}
	saved.UpdatedAt = now
	if err := p.store.SaveDocument(ctx, &saved); err != nil {
		return removed, fmt.Errorf("save catalogue entry %s: %w", doc.ID, err)
	}
	return removed, nil
}

// refreshCount updates the index size gauge.
func (p *IngestionPipeline) refreshCount(ctx context.Context) {
	if p.metrics == nil {
		return
	}
	if n, err := p.index.Count(ctx); err == nil {
		p.metrics.SetIndexEntries(n)
	}
}

// prepareDocument validates doc and returns a copy with cleaned text and
// normalised metadata.
func prepareDocument(doc *domain.Document) (*domain.Document, error) {
	if doc == nil {
		return nil, fmt.Errorf("%w: document is nil", domain.ErrInvalidArgument)
	}
	prepared := *doc
	prepared.ID = strings.TrimSpace(doc.ID)
	if prepared.ID == "" {
		return nil, fmt.Errorf("%w: document id is empty", domain.ErrInvalidArgument)
	}
	prepared.Content = domain.CleanText(doc.Content)
	prepared.Metadata = domain.NormaliseMetadata(doc.Metadata)
	prepared.ChunkIDs = nil
	return &prepared, nil
}

// isAbort reports errors that stop the whole document: caller
// cancellation, identity mismatches and invalid input.
func isAbort(ctx context.Context, err error) bool {
	return ctx.Err() != nil ||
		errors.Is(err, domain.ErrDimensionMismatch) ||
		errors.Is(err, domain.ErrInvalidArgument)
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
