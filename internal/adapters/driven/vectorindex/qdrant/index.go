// Package qdrant provides a VectorIndex backed by a Qdrant server over
// gRPC. Search is approximate (HNSW); filters run server-side on keyword
// payload fields and the returned page is re-ranked with the shared
// tie-break.
package qdrant

import (
	"context"
	"fmt"
	"sync"

	"github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"

	"github.com/custodia-labs/sibila/internal/adapters/driven/vectorindex"
	"github.com/custodia-labs/sibila/internal/core/domain"
	"github.com/custodia-labs/sibila/internal/core/ports/driven"
	"github.com/custodia-labs/sibila/internal/logger"
)

// Defaults for the Qdrant connection.
const (
	DefaultHost       = "localhost"
	DefaultPort       = 6334
	DefaultCollection = "sibila"
)

// tieOverfetch extra points are requested beyond topK so hits tied at
// the cut-off can be re-ranked by chunk id before trimming. Qdrant's
// own order among equal scores is unspecified; ties wider than this
// margin at the boundary may still be resolved by Qdrant.
const tieOverfetch = 16

// Ensure Index implements the interface.
var _ driven.VectorIndex = (*Index)(nil)

// pointsClient is the subset of *qdrant.Client the index uses.
type pointsClient interface {
	CollectionExists(ctx context.Context, collectionName string) (bool, error)
	CreateCollection(ctx context.Context, request *qdrant.CreateCollection) error
	GetCollectionInfo(ctx context.Context, collectionName string) (*qdrant.CollectionInfo, error)
	Upsert(ctx context.Context, request *qdrant.UpsertPoints) (*qdrant.UpdateResult, error)
	Delete(ctx context.Context, request *qdrant.DeletePoints) (*qdrant.UpdateResult, error)
	Query(ctx context.Context, request *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error)
	Count(ctx context.Context, request *qdrant.CountPoints) (uint64, error)
	Scroll(ctx context.Context, request *qdrant.ScrollPoints) ([]*qdrant.RetrievedPoint, error)
	Close() error
}

// Config configures the Qdrant connection.
type Config struct {
	Host       string
	Port       int
	APIKey     string
	UseTLS     bool
	Collection string
}

// Index is a VectorIndex stored in a Qdrant collection.
type Index struct {
	client     pointsClient
	collection string
	locks      *vectorindex.KeyLocks
	log        *zap.Logger

	idMu     sync.RWMutex
	identity domain.ModelIdentity
}

// Open connects to Qdrant and loads the identity of an existing collection.
// The collection itself is created on the first upsert, when the vector
// dimension is known.
func Open(ctx context.Context, cfg Config) (*Index, error) {
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: connecting to qdrant %s:%d: %w", domain.ErrIndexIO, cfg.Host, cfg.Port, err)
	}

	idx, err := newIndex(ctx, client, cfg.Collection)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	return idx, nil
}

func newIndex(ctx context.Context, client pointsClient, collection string) (*Index, error) {
	if collection == "" {
		collection = DefaultCollection
	}
	idx := &Index{
		client:     client,
		collection: collection,
		locks:      vectorindex.NewKeyLocks(0),
		log:        logger.Named("vectorindex.qdrant"),
	}

	identity, err := idx.loadIdentity(ctx)
	if err != nil {
		return nil, err
	}
	idx.identity = identity

	idx.log.Debug("index opened", zap.String("collection", collection), zap.Stringer("identity", identity))
	return idx, nil
}

// loadIdentity reads the dimension from the collection config and the
// model from any stored point.
func (idx *Index) loadIdentity(ctx context.Context) (domain.ModelIdentity, error) {
	exists, err := idx.client.CollectionExists(ctx, idx.collection)
	if err != nil {
		return domain.ModelIdentity{}, ioErr(ctx, "collection exists", err)
	}
	if !exists {
		return domain.ModelIdentity{}, nil
	}

	info, err := idx.client.GetCollectionInfo(ctx, idx.collection)
	if err != nil {
		return domain.ModelIdentity{}, ioErr(ctx, "collection info", err)
	}
	size := info.GetConfig().GetParams().GetVectorsConfig().GetParams().GetSize()

	points, err := idx.client.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: idx.collection,
		Limit:          qdrant.PtrOf(uint32(1)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return domain.ModelIdentity{}, ioErr(ctx, "scroll", err)
	}
	if len(points) == 0 {
		// An empty collection still fixes the dimension.
		return domain.ModelIdentity{Dimension: int(size)}, nil
	}
	return domain.ModelIdentity{
		Dimension: int(size),
		Model:     points[0].GetPayload()[payloadModel].GetStringValue(),
	}, nil
}

// Upsert inserts or replaces the point of the entry.
func (idx *Index) Upsert(ctx context.Context, entry domain.IndexEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := entry.Validate(); err != nil {
		return err
	}
	if err := idx.admit(ctx, len(entry.Vector), entry.Model); err != nil {
		return err
	}

	point, err := buildPoint(entry)
	if err != nil {
		return err
	}

	unlock := idx.locks.Lock(entry.ChunkID)
	defer unlock()

	_, err = idx.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: idx.collection,
		Wait:           qdrant.PtrOf(true),
		Points:         []*qdrant.PointStruct{point},
	})
	if err != nil {
		return ioErr(ctx, "upsert "+entry.ChunkID, err)
	}
	return nil
}

// admit checks the vector against the identity. The first upsert
// creates the collection with the vector dimension.
func (idx *Index) admit(ctx context.Context, dimension int, model string) error {
	idx.idMu.RLock()
	id := idx.identity
	idx.idMu.RUnlock()
	if id.Model != "" {
		return id.Check(dimension, model)
	}

	idx.idMu.Lock()
	defer idx.idMu.Unlock()
	if idx.identity.Dimension == 0 {
		err := idx.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: idx.collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(dimension),
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			return ioErr(ctx, "create collection "+idx.collection, err)
		}
		idx.log.Info("collection created", zap.String("collection", idx.collection), zap.Int("dimension", dimension))
		idx.identity = domain.ModelIdentity{Dimension: dimension, Model: model}
		return nil
	}
	if dimension != idx.identity.Dimension {
		return idx.identity.Check(dimension, model)
	}
	if idx.identity.Model == "" {
		idx.identity.Model = model
	}
	return idx.identity.Check(dimension, model)
}

// Delete removes the point if present.
func (idx *Index) Delete(ctx context.Context, chunkID string) error {
	if !idx.bound() {
		return nil
	}
	unlock := idx.locks.Lock(chunkID)
	defer unlock()

	_, err := idx.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: idx.collection,
		Wait:           qdrant.PtrOf(true),
		Points:         qdrant.NewPointsSelector(qdrant.NewIDUUID(PointID(chunkID))),
	})
	if err != nil {
		return ioErr(ctx, "delete "+chunkID, err)
	}
	return nil
}

// DeleteDocument removes every point of the document.
func (idx *Index) DeleteDocument(ctx context.Context, documentID string) (int, error) {
	if !idx.bound() {
		return 0, nil
	}
	filter := documentFilter(documentID)

	n, err := idx.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: idx.collection,
		Filter:         filter,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, ioErr(ctx, "count document "+documentID, err)
	}
	if n == 0 {
		return 0, nil
	}

	_, err = idx.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: idx.collection,
		Wait:           qdrant.PtrOf(true),
		Points:         qdrant.NewPointsSelectorFilter(filter),
	})
	if err != nil {
		return 0, ioErr(ctx, "delete document "+documentID, err)
	}
	return int(n), nil
}

// Search queries the collection with the filter applied server-side.
func (idx *Index) Search(ctx context.Context, vector []float32, filter domain.QueryFilter, topK int) ([]domain.SearchHit, error) {
	if err := vectorindex.CheckSearch(vector, topK); err != nil {
		return nil, err
	}
	id, _ := idx.Identity(ctx)
	if id.Dimension == 0 {
		return []domain.SearchHit{}, nil
	}
	if err := id.Check(len(vector), ""); err != nil {
		return nil, err
	}

	points, err := idx.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: idx.collection,
		Query:          qdrant.NewQuery(vector...),
		Filter:         buildFilter(filter),
		Limit:          qdrant.PtrOf(uint64(topK + tieOverfetch)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, ioErr(ctx, "search", err)
	}

	hits := make([]domain.SearchHit, 0, len(points))
	for _, p := range points {
		entry, err := entryFromPayload(p.GetPayload())
		if err != nil {
			return nil, err
		}
		hits = append(hits, domain.SearchHit{Entry: entry, Score: float64(p.GetScore())})
	}
	vectorindex.SortHits(hits)
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

// Count returns the number of stored points.
func (idx *Index) Count(ctx context.Context) (int, error) {
	if !idx.bound() {
		return 0, nil
	}
	n, err := idx.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: idx.collection,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, ioErr(ctx, "count", err)
	}
	return int(n), nil
}

// Identity returns the bound model identity.
func (idx *Index) Identity(_ context.Context) (domain.ModelIdentity, error) {
	idx.idMu.RLock()
	defer idx.idMu.RUnlock()
	return idx.identity, nil
}

// Close closes the gRPC connection.
func (idx *Index) Close() error {
	return idx.client.Close()
}

// bound reports whether the collection exists.
func (idx *Index) bound() bool {
	idx.idMu.RLock()
	defer idx.idMu.RUnlock()
	return idx.identity.Dimension != 0
}

func ioErr(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return fmt.Errorf("%w: qdrant %s: %w", domain.ErrIndexIO, op, err)
}
