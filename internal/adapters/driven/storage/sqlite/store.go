package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/custodia-labs/sibila/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/sibila/internal/core/domain"
	"github.com/custodia-labs/sibila/internal/core/ports/driven"
)

// CatalogueFile is the database file name inside the data directory.
const CatalogueFile = "catalogue.db"

// Ensure Store implements the interface.
var _ driven.DocumentStore = (*Store)(nil)

// Store is the SQLite-backed document catalogue.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore opens the catalogue in dataDir.
// If dataDir is empty, defaults to ~/.sibila/data.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".sibila", "data")
	}

	dbPath := filepath.Join(dataDir, CatalogueFile)
	db, err := OpenDB(dbPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrIndexIO, err)
	}

	if err := Migrate(db, migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: running migrations: %w", domain.ErrIndexIO, err)
	}

	return &Store{db: db, path: dbPath}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// SaveDocument inserts or replaces a document and its chunk list.
// The creation time of an existing document is preserved.
func (s *Store) SaveDocument(ctx context.Context, doc *domain.Document) error {
	if doc == nil || doc.ID == "" {
		return fmt.Errorf("%w: document without id", domain.ErrInvalidArgument)
	}

	metadataJSON, err := json.Marshal(doc.Metadata)
	if err != nil {
		return fmt.Errorf("%w: marshalling metadata: %w", domain.ErrInvalidArgument, err)
	}

	now := time.Now()
	created, updated := doc.CreatedAt, doc.UpdatedAt
	if created.IsZero() {
		created = now
	}
	if updated.IsZero() {
		updated = now
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr(ctx, "beginning transaction", err)
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx, `
		INSERT INTO documents (id, uri, title, content, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			uri = excluded.uri,
			title = excluded.title,
			content = excluded.content,
			metadata = excluded.metadata,
			updated_at = excluded.updated_at
	`, doc.ID, doc.URI, doc.Title, doc.Content, string(metadataJSON),
		created.UnixNano(), updated.UnixNano())
	if err != nil {
		return storageErr(ctx, "saving document", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM document_chunks WHERE document_id = ?", doc.ID); err != nil {
		return storageErr(ctx, "clearing chunks", err)
	}

	if len(doc.ChunkIDs) > 0 {
		stmt, err := tx.PrepareContext(ctx,
			"INSERT INTO document_chunks (document_id, position, chunk_id) VALUES (?, ?, ?)")
		if err != nil {
			return storageErr(ctx, "preparing statement", err)
		}
		defer stmt.Close()

		for pos, chunkID := range doc.ChunkIDs {
			if _, err := stmt.ExecContext(ctx, doc.ID, pos, chunkID); err != nil {
				return storageErr(ctx, "saving chunk ids", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return storageErr(ctx, "committing transaction", err)
	}
	return nil
}

// GetDocument retrieves a document by ID.
func (s *Store) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, uri, title, content, metadata, created_at, updated_at
		FROM documents WHERE id = ?
	`, id)

	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("document %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, storageErr(ctx, "scanning document", err)
	}

	chunks, err := s.chunkIDs(ctx, id)
	if err != nil {
		return nil, err
	}
	doc.ChunkIDs = chunks[id]
	return doc, nil
}

// DeleteDocument removes a document. Its chunk list cascades.
func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", id); err != nil {
		return storageErr(ctx, "deleting document", err)
	}
	return nil
}

// ListDocuments returns all documents ordered by ID.
func (s *Store) ListDocuments(ctx context.Context) ([]domain.Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, uri, title, content, metadata, created_at, updated_at
		FROM documents ORDER BY id
	`)
	if err != nil {
		return nil, storageErr(ctx, "querying documents", err)
	}
	defer rows.Close()

	var docs []domain.Document //nolint:prealloc // size unknown from query
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, storageErr(ctx, "scanning document", err)
		}
		docs = append(docs, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(ctx, "iterating documents", err)
	}

	chunks, err := s.chunkIDs(ctx, "")
	if err != nil {
		return nil, err
	}
	for i := range docs {
		docs[i].ChunkIDs = chunks[docs[i].ID]
	}
	return docs, nil
}

// DistinctValues returns the sorted distinct values of a metadata key.
func (s *Store) DistinctValues(ctx context.Context, key string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT metadata FROM documents")
	if err != nil {
		return nil, storageErr(ctx, "querying metadata", err)
	}
	defer rows.Close()

	seen := make(map[string]struct{})
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, storageErr(ctx, "scanning metadata", err)
		}
		meta, err := decodeMetadata(raw)
		if err != nil {
			return nil, storageErr(ctx, "decoding metadata", err)
		}
		vals, _ := meta.Values(key)
		for _, v := range vals {
			seen[v] = struct{}{}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(ctx, "iterating metadata", err)
	}

	values := make([]string, 0, len(seen))
	for v := range seen {
		values = append(values, v)
	}
	sort.Strings(values)
	return values, nil
}

// chunkIDs loads chunk lists grouped by document. An empty documentID
// loads every document.
func (s *Store) chunkIDs(ctx context.Context, documentID string) (map[string][]string, error) {
	query := "SELECT document_id, chunk_id FROM document_chunks ORDER BY document_id, position"
	var args []any
	if documentID != "" {
		query = "SELECT document_id, chunk_id FROM document_chunks WHERE document_id = ? ORDER BY position"
		args = append(args, documentID)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr(ctx, "querying chunk ids", err)
	}
	defer rows.Close()

	out := make(map[string][]string)
	for rows.Next() {
		var docID, chunkID string
		if err := rows.Scan(&docID, &chunkID); err != nil {
			return nil, storageErr(ctx, "scanning chunk id", err)
		}
		out[docID] = append(out[docID], chunkID)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(ctx, "iterating chunk ids", err)
	}
	return out, nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(row scanner) (*domain.Document, error) {
	var doc domain.Document
	var metadataJSON string
	var created, updated int64

	if err := row.Scan(&doc.ID, &doc.URI, &doc.Title, &doc.Content,
		&metadataJSON, &created, &updated); err != nil {
		return nil, err
	}

	meta, err := decodeMetadata(metadataJSON)
	if err != nil {
		return nil, fmt.Errorf("unmarshalling metadata: %w", err)
	}
	doc.Metadata = meta
	doc.CreatedAt = time.Unix(0, created)
	doc.UpdatedAt = time.Unix(0, updated)
	return &doc, nil
}

// decodeMetadata restores typed metadata from its JSON column.
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

// storageErr wraps err with domain.ErrIndexIO unless ctx was cancelled.
func storageErr(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return fmt.Errorf("%w: %s: %w", domain.ErrIndexIO, op, err)
}
