// Package chromem provides a persistent VectorIndex backed by
// philippgille/chromem-go. chromem stores one file per entry and keeps
// the collection in memory; filtering and ranking happen here so results
// follow the same rules as the other backends.
package chromem

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/philippgille/chromem-go"
	"go.uber.org/zap"

	"github.com/custodia-labs/sibila/internal/adapters/driven/vectorindex"
	"github.com/custodia-labs/sibila/internal/core/domain"
	"github.com/custodia-labs/sibila/internal/core/ports/driven"
	"github.com/custodia-labs/sibila/internal/logger"
)

// Dir is the directory name inside the data directory.
const Dir = "chromem"

// ManifestFile records the model identity next to the chromem files.
const ManifestFile = "manifest.json"

// dbDir holds the chromem collections below Config.Path.
const dbDir = "db"

// DefaultCollection is used when no collection name is configured.
const DefaultCollection = "sibila"

// Reserved chromem metadata keys.
const (
	keyDocument = "_doc"
	keyModel    = "_model"
	keyMeta     = "_meta"
)

var errNoEmbedder = errors.New("chromem: entries must carry precomputed embeddings")

// Ensure Index implements the interface.
var _ driven.VectorIndex = (*Index)(nil)

// Config configures the chromem index.
type Config struct {
	// Path is the directory holding the database and the manifest.
	Path string

	// Collection names the chromem collection.
	Collection string

	// Compress enables gzip compression of the entry files.
	Compress bool
}

type manifest struct {
	Dimension  int    `json:"dimension"`
	Model      string `json:"model"`
	Collection string `json:"collection"`
}

// Index is a VectorIndex stored in a chromem persistent database.
type Index struct {
	db         *chromem.DB
	collection *chromem.Collection
	config     Config
	locks      *vectorindex.KeyLocks
	log        *zap.Logger

	// docMu is held exclusively by deletions so a search never sees the
	// collection shrink between Count and QueryEmbedding.
	docMu sync.RWMutex

	idMu     sync.RWMutex
	identity domain.ModelIdentity
}

// Open opens or creates the chromem index described by cfg.
func Open(cfg Config) (*Index, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("%w: chromem path is required", domain.ErrInvalidArgument)
	}
	if cfg.Collection == "" {
		cfg.Collection = DefaultCollection
	}
	if err := os.MkdirAll(cfg.Path, 0700); err != nil {
		return nil, fmt.Errorf("%w: creating directory %s: %w", domain.ErrIndexIO, cfg.Path, err)
	}

	db, err := chromem.NewPersistentDB(filepath.Join(cfg.Path, dbDir), cfg.Compress)
	if err != nil {
		return nil, fmt.Errorf("%w: opening chromem DB: %w", domain.ErrIndexIO, err)
	}

	collection, err := db.GetOrCreateCollection(cfg.Collection, nil, noEmbedding)
	if err != nil {
		return nil, fmt.Errorf("%w: collection %s: %w", domain.ErrIndexIO, cfg.Collection, err)
	}

	idx := &Index{
		db:         db,
		collection: collection,
		config:     cfg,
		locks:      vectorindex.NewKeyLocks(0),
		log:        logger.Named("vectorindex.chromem"),
	}
	if err := idx.loadManifest(); err != nil {
		return nil, err
	}

	idx.log.Debug("index opened",
		zap.String("path", cfg.Path),
		zap.String("collection", cfg.Collection),
		zap.Int("entries", collection.Count()),
	)
	return idx, nil
}

func noEmbedding(_ context.Context, _ string) ([]float32, error) {
	return nil, errNoEmbedder
}

// Upsert inserts or replaces the entry.
func (idx *Index) Upsert(ctx context.Context, entry domain.IndexEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := entry.Validate(); err != nil {
		return err
	}
	if err := idx.admit(len(entry.Vector), entry.Model); err != nil {
		return err
	}

	metadataJSON, err := json.Marshal(entry.Metadata)
	if err != nil {
		return fmt.Errorf("%w: marshalling metadata of %s: %w", domain.ErrInvalidArgument, entry.ChunkID, err)
	}

	doc := chromem.Document{
		ID: entry.ChunkID,
		Metadata: map[string]string{
			keyDocument: entry.DocumentID,
			keyModel:    entry.Model,
			keyMeta:     string(metadataJSON),
		},
		Embedding: vectorindex.CloneVector(entry.Vector),
		Content:   entry.Text,
	}

	idx.docMu.RLock()
	defer idx.docMu.RUnlock()
	unlock := idx.locks.Lock(entry.ChunkID)
	defer unlock()

	if err := idx.collection.AddDocument(ctx, doc); err != nil {
		return ioErr(ctx, "upsert "+entry.ChunkID, err)
	}
	return nil
}

// Delete removes the entry if present.
func (idx *Index) Delete(ctx context.Context, chunkID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	idx.docMu.Lock()
	defer idx.docMu.Unlock()

	if _, err := idx.collection.GetByID(ctx, chunkID); err != nil {
		return nil
	}
	if err := idx.collection.Delete(ctx, nil, nil, chunkID); err != nil {
		return ioErr(ctx, "delete "+chunkID, err)
	}
	return nil
}

// DeleteDocument removes every entry of the document.
func (idx *Index) DeleteDocument(ctx context.Context, documentID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	idx.docMu.Lock()
	defer idx.docMu.Unlock()

	before := idx.collection.Count()
	if before == 0 {
		return 0, nil
	}
	if err := idx.collection.Delete(ctx, map[string]string{keyDocument: documentID}, nil); err != nil {
		return 0, ioErr(ctx, "delete document "+documentID, err)
	}
	return before - idx.collection.Count(), nil
}

// Search ranks every stored entry and keeps the topK best matching filter.
func (idx *Index) Search(ctx context.Context, vector []float32, filter domain.QueryFilter, topK int) ([]domain.SearchHit, error) {
	if err := vectorindex.CheckSearch(vector, topK); err != nil {
		return nil, err
	}
	id, _ := idx.Identity(ctx)
	if err := id.Check(len(vector), ""); err != nil {
		return nil, err
	}

	idx.docMu.RLock()
	defer idx.docMu.RUnlock()

	n := idx.collection.Count()
	if n == 0 {
		return []domain.SearchHit{}, nil
	}

	results, err := idx.collection.QueryEmbedding(ctx, vectorindex.CloneVector(vector), n, nil, nil)
	if err != nil {
		return nil, ioErr(ctx, "search", err)
	}

	top := vectorindex.NewTopK(topK)
	for _, r := range results {
		entry, err := toEntry(r)
		if err != nil {
			return nil, err
		}
		if !filter.Matches(entry.Metadata) {
			continue
		}
		top.Push(domain.SearchHit{Entry: entry, Score: vectorindex.Cosine(vector, entry.Vector)})
	}
	return top.Results(), nil
}

// Count returns the number of stored entries.
func (idx *Index) Count(_ context.Context) (int, error) {
	return idx.collection.Count(), nil
}

// Identity returns the bound model identity.
func (idx *Index) Identity(_ context.Context) (domain.ModelIdentity, error) {
	idx.idMu.RLock()
	defer idx.idMu.RUnlock()
	return idx.identity, nil
}

// Close is a no-op; chromem writes every change through to disk.
func (idx *Index) Close() error {
	return nil
}

func toEntry(r chromem.Result) (domain.IndexEntry, error) {
	meta := domain.Metadata{}
	if raw := r.Metadata[keyMeta]; raw != "" {
		var bag map[string]any
		if err := json.Unmarshal([]byte(raw), &bag); err != nil {
			return domain.IndexEntry{}, fmt.Errorf("%w: entry %s metadata: %w", domain.ErrIndexIO, r.ID, err)
		}
		meta = domain.NormaliseMetadata(bag)
	}
	return domain.IndexEntry{
		ChunkID:    r.ID,
		DocumentID: r.Metadata[keyDocument],
		Vector:     r.Embedding,
		Model:      r.Metadata[keyModel],
		Metadata:   meta,
		Text:       r.Content,
	}, nil
}

// admit checks the vector against the identity, writing the manifest
// on first use.
func (idx *Index) admit(dimension int, model string) error {
	idx.idMu.RLock()
	id := idx.identity
	idx.idMu.RUnlock()
	if !id.IsZero() {
		return id.Check(dimension, model)
	}

	idx.idMu.Lock()
	defer idx.idMu.Unlock()
	if !idx.identity.IsZero() {
		return idx.identity.Check(dimension, model)
	}

	bound := domain.ModelIdentity{Dimension: dimension, Model: model}
	if err := idx.writeManifest(bound); err != nil {
		return err
	}
	idx.identity = bound
	return nil
}

func (idx *Index) manifestPath() string {
	return filepath.Join(idx.config.Path, ManifestFile)
}

func (idx *Index) loadManifest() error {
	data, err := os.ReadFile(idx.manifestPath())
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: reading manifest: %w", domain.ErrIndexIO, err)
	}

	var m manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("%w: parsing manifest: %w", domain.ErrIndexIO, err)
	}
	idx.identity = domain.ModelIdentity{Dimension: m.Dimension, Model: m.Model}
	return nil
}

func (idx *Index) writeManifest(id domain.ModelIdentity) error {
	data, err := json.MarshalIndent(manifest{
		Dimension:  id.Dimension,
		Model:      id.Model,
		Collection: idx.config.Collection,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encoding manifest: %w", domain.ErrIndexIO, err)
	}

	tmp := idx.manifestPath() + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("%w: writing manifest: %w", domain.ErrIndexIO, err)
	}
	if err := os.Rename(tmp, idx.manifestPath()); err != nil {
		return fmt.Errorf("%w: writing manifest: %w", domain.ErrIndexIO, err)
	}
	return nil
}

func ioErr(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return fmt.Errorf("%w: %s: %w", domain.ErrIndexIO, op, err)
}
