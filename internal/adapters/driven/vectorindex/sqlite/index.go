// Package sqlite provides the default persistent VectorIndex on top of
// modernc.org/sqlite. Vectors are stored as little-endian float32 blobs
// and searched by a streaming brute-force scan that keeps only the
// current top-k in memory.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	sqlitedb "github.com/custodia-labs/sibila/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/sibila/internal/adapters/driven/vectorindex"
	"github.com/custodia-labs/sibila/internal/adapters/driven/vectorindex/sqlite/migrations"
	"github.com/custodia-labs/sibila/internal/core/domain"
	"github.com/custodia-labs/sibila/internal/core/ports/driven"
	"github.com/custodia-labs/sibila/internal/logger"
)

// IndexFile is the database file name inside the data directory.
const IndexFile = "index.db"

const (
	metaDimension = "dimension"
	metaModel     = "model"
)

// Ensure Index implements the interface.
var _ driven.VectorIndex = (*Index)(nil)

// Index is a VectorIndex persisted in a SQLite database.
type Index struct {
	db    *sql.DB
	path  string
	locks *vectorindex.KeyLocks
	log   *zap.Logger

	idMu     sync.RWMutex
	identity domain.ModelIdentity
}

// Open opens or creates the index in dataDir.
func Open(dataDir string) (*Index, error) {
	return OpenFile(filepath.Join(dataDir, IndexFile))
}

// OpenFile opens or creates the index stored at path.
func OpenFile(path string) (*Index, error) {
	db, err := sqlitedb.OpenDB(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrIndexIO, err)
	}
	if err := sqlitedb.Migrate(db, migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: running migrations: %w", domain.ErrIndexIO, err)
	}

	idx := &Index{
		db:    db,
		path:  path,
		locks: vectorindex.NewKeyLocks(0),
		log:   logger.Named("vectorindex.sqlite"),
	}

	identity, err := idx.loadIdentity(context.Background())
	if err != nil {
		db.Close()
		return nil, err
	}
	idx.identity = identity

	idx.log.Debug("index opened", zap.String("path", path), zap.Stringer("identity", identity))
	return idx, nil
}

// Path returns the database file path.
func (idx *Index) Path() string {
	return idx.path
}

// Upsert inserts or replaces the entry in a single statement.
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

	metadataJSON, err := json.Marshal(entry.Metadata)
	if err != nil {
		return fmt.Errorf("%w: marshalling metadata of %s: %w", domain.ErrInvalidArgument, entry.ChunkID, err)
	}

	unlock := idx.locks.Lock(entry.ChunkID)
	defer unlock()

	_, err = idx.db.ExecContext(ctx, `
		INSERT INTO entries (chunk_id, doc_id, vector, dimension, model, metadata, text, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(chunk_id) DO UPDATE SET
			doc_id = excluded.doc_id,
			vector = excluded.vector,
			dimension = excluded.dimension,
			model = excluded.model,
			metadata = excluded.metadata,
			text = excluded.text,
			updated_at = excluded.updated_at
	`, entry.ChunkID, entry.DocumentID, vectorindex.EncodeVector(entry.Vector), len(entry.Vector),
		entry.Model, string(metadataJSON), entry.Text, time.Now().UnixNano())
	if err != nil {
		return ioErr(ctx, "upsert "+entry.ChunkID, err)
	}
	return nil
}

// Delete removes the entry if present.
func (idx *Index) Delete(ctx context.Context, chunkID string) error {
	unlock := idx.locks.Lock(chunkID)
	defer unlock()

	if _, err := idx.db.ExecContext(ctx, "DELETE FROM entries WHERE chunk_id = ?", chunkID); err != nil {
		return ioErr(ctx, "delete "+chunkID, err)
	}
	return nil
}

// DeleteDocument removes every entry of the document.
func (idx *Index) DeleteDocument(ctx context.Context, documentID string) (int, error) {
	res, err := idx.db.ExecContext(ctx, "DELETE FROM entries WHERE doc_id = ?", documentID)
	if err != nil {
		return 0, ioErr(ctx, "delete document "+documentID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, ioErr(ctx, "delete document "+documentID, err)
	}
	return int(n), nil
}

// Search streams every entry, applies the filter and keeps the topK best.
func (idx *Index) Search(ctx context.Context, vector []float32, filter domain.QueryFilter, topK int) ([]domain.SearchHit, error) {
	if err := vectorindex.CheckSearch(vector, topK); err != nil {
		return nil, err
	}
	id, _ := idx.Identity(ctx)
	if err := id.Check(len(vector), ""); err != nil {
		return nil, err
	}

	rows, err := idx.db.QueryContext(ctx,
		"SELECT chunk_id, doc_id, vector, model, metadata, text FROM entries")
	if err != nil {
		return nil, ioErr(ctx, "search", err)
	}
	defer rows.Close()

	top := vectorindex.NewTopK(topK)
	for rows.Next() {
		var (
			e            domain.IndexEntry
			blob         []byte
			metadataJSON string
		)
		if err := rows.Scan(&e.ChunkID, &e.DocumentID, &blob, &e.Model, &metadataJSON, &e.Text); err != nil {
			return nil, ioErr(ctx, "scan entry", err)
		}

		e.Metadata, err = decodeMetadata(metadataJSON)
		if err != nil {
			return nil, fmt.Errorf("%w: entry %s metadata: %w", domain.ErrIndexIO, e.ChunkID, err)
		}
		if !filter.Matches(e.Metadata) {
			continue
		}

		e.Vector, err = vectorindex.DecodeVector(blob)
		if err != nil {
			return nil, err
		}
		top.Push(domain.SearchHit{Entry: e, Score: vectorindex.Cosine(vector, e.Vector)})
	}
	if err := rows.Err(); err != nil {
		return nil, ioErr(ctx, "search", err)
	}

	return top.Results(), nil
}

// Count returns the number of stored entries.
func (idx *Index) Count(ctx context.Context) (int, error) {
	var n int
	if err := idx.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM entries").Scan(&n); err != nil {
		return 0, ioErr(ctx, "count", err)
	}
	return n, nil
}

// Identity returns the bound model identity.
func (idx *Index) Identity(_ context.Context) (domain.ModelIdentity, error) {
	idx.idMu.RLock()
	defer idx.idMu.RUnlock()
	return idx.identity, nil
}

// Close closes the database.
func (idx *Index) Close() error {
	return idx.db.Close()
}

// admit checks the vector against the identity, recording it in
// index_meta on first use.
func (idx *Index) admit(ctx context.Context, dimension int, model string) error {
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

	_, err := idx.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO index_meta (key, value) VALUES (?, ?), (?, ?)",
		metaDimension, strconv.Itoa(dimension), metaModel, model)
	if err != nil {
		return ioErr(ctx, "record identity", err)
	}

	stored, err := idx.loadIdentity(ctx)
	if err != nil {
		return err
	}
	idx.identity = stored
	return stored.Check(dimension, model)
}

func (idx *Index) loadIdentity(ctx context.Context) (domain.ModelIdentity, error) {
	rows, err := idx.db.QueryContext(ctx, "SELECT key, value FROM index_meta WHERE key IN (?, ?)",
		metaDimension, metaModel)
	if err != nil {
		return domain.ModelIdentity{}, ioErr(ctx, "load identity", err)
	}
	defer rows.Close()

	var id domain.ModelIdentity
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return domain.ModelIdentity{}, ioErr(ctx, "load identity", err)
		}
		switch key {
		case metaDimension:
			id.Dimension, err = strconv.Atoi(value)
			if err != nil {
				return domain.ModelIdentity{}, fmt.Errorf("%w: stored dimension %q", domain.ErrIndexIO, value)
			}
		case metaModel:
			id.Model = value
		}
	}
	if err := rows.Err(); err != nil {
		return domain.ModelIdentity{}, ioErr(ctx, "load identity", err)
	}
	return id, nil
}

func decodeMetadata(raw string) (domain.Metadata, error) {
	if raw == "" {
		return domain.Metadata{}, nil
	}
	var bag map[string]any
	if err := json.Unmarshal([]byte(raw), &bag); err != nil {
		return nil, err
	}
	return domain.NormaliseMetadata(bag), nil
}

// ioErr wraps err with domain.ErrIndexIO unless ctx ended first.
func ioErr(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", domain.ErrIndexIO, op, err)
}
