// Package memory provides an in-process VectorIndex. Entries are kept in
// sharded maps and replaced as immutable values, so searches only take
// shard read locks.
package memory

import (
	"context"
	"hash/fnv"
	"sync"

	"github.com/custodia-labs/sibila/internal/adapters/driven/vectorindex"
	"github.com/custodia-labs/sibila/internal/core/domain"
	"github.com/custodia-labs/sibila/internal/core/ports/driven"
)

// Ensure Index implements the interface.
var _ driven.VectorIndex = (*Index)(nil)

const shardCount = 32

type shard struct {
	mu      sync.RWMutex
	entries map[string]*domain.IndexEntry
}

// Index is a non-persistent VectorIndex.
type Index struct {
	shards [shardCount]*shard

	idMu     sync.RWMutex
	identity domain.ModelIdentity
}

// New creates an empty in-memory index.
func New() *Index {
	idx := &Index{}
	for i := range idx.shards {
		idx.shards[i] = &shard{entries: make(map[string]*domain.IndexEntry)}
	}
	return idx
}

func (idx *Index) shardFor(chunkID string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(chunkID))
	return idx.shards[h.Sum32()%shardCount]
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

	stored := entry
	stored.Vector = vectorindex.CloneVector(entry.Vector)
	stored.Metadata = entry.Metadata.Clone()

	s := idx.shardFor(entry.ChunkID)
	s.mu.Lock()
	s.entries[entry.ChunkID] = &stored
	s.mu.Unlock()
	return nil
}

// admit checks the vector against the identity, binding it on first use.
func (idx *Index) admit(dimension int, model string) error {
	idx.idMu.RLock()
	id := idx.identity
	idx.idMu.RUnlock()
	if !id.IsZero() {
		return id.Check(dimension, model)
	}

	idx.idMu.Lock()
	defer idx.idMu.Unlock()
	if idx.identity.IsZero() {
		idx.identity = domain.ModelIdentity{Dimension: dimension, Model: model}
		return nil
	}
	return idx.identity.Check(dimension, model)
}

// Delete removes the entry if present.
func (idx *Index) Delete(ctx context.Context, chunkID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s := idx.shardFor(chunkID)
	s.mu.Lock()
	delete(s.entries, chunkID)
	s.mu.Unlock()
	return nil
}

// DeleteDocument removes every entry of the document.
func (idx *Index) DeleteDocument(ctx context.Context, documentID string) (int, error) {
	removed := 0
	for _, s := range idx.shards {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		s.mu.Lock()
		for id, e := range s.entries {
			if e.DocumentID == documentID {
				delete(s.entries, id)
				removed++
			}
		}
		s.mu.Unlock()
	}
	return removed, nil
}

// Search scans all shards and keeps the topK best matching entries.
func (idx *Index) Search(ctx context.Context, vector []float32, filter domain.QueryFilter, topK int) ([]domain.SearchHit, error) {
	if err := vectorindex.CheckSearch(vector, topK); err != nil {
		return nil, err
	}
	id, _ := idx.Identity(ctx)
	if err := id.Check(len(vector), ""); err != nil {
		return nil, err
	}

	top := vectorindex.NewTopK(topK)
	for _, s := range idx.shards {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		s.mu.RLock()
		for _, e := range s.entries {
			if !filter.Matches(e.Metadata) {
				continue
			}
			top.Push(domain.SearchHit{Entry: *e, Score: vectorindex.Cosine(vector, e.Vector)})
		}
		s.mu.RUnlock()
	}

	hits := top.Results()
	for i := range hits {
		hits[i].Entry.Metadata = hits[i].Entry.Metadata.Clone()
	}
	return hits, nil
}

// Count returns the number of stored entries.
func (idx *Index) Count(_ context.Context) (int, error) {
	n := 0
	for _, s := range idx.shards {
		s.mu.RLock()
		n += len(s.entries)
		s.mu.RUnlock()
	}
	return n, nil
}

// Identity returns the bound model identity.
func (idx *Index) Identity(_ context.Context) (domain.ModelIdentity, error) {
	idx.idMu.RLock()
	defer idx.idMu.RUnlock()
	return idx.identity, nil
}

// Close is a no-op.
func (idx *Index) Close() error {
	return nil
}
