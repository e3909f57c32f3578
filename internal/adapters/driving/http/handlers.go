package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/custodia-labs/sibila/internal/core/domain"
)

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	OK bool `json:"ok"`
}

// QueryRequest is the request body for POST /query.
type QueryRequest struct {
	Query   string         `json:"query" validate:"required"`
	TopK    *int           `json:"top_k"`
	Filters map[string]any `json:"filters"`
}

// QueryResponse is the response body for POST /query.
type QueryResponse struct {
	Results []domain.QueryResult `json:"results"`
}

// IngestItem is one document posted to /ingest.
type IngestItem struct {
	DocID string         `json:"doc_id" validate:"required"`
	Text  string         `json:"text" validate:"required"`
	Meta  map[string]any `json:"meta"`
}

// IngestRequest is the object form of the /ingest body. A bare JSON
// array of items is accepted as well.
type IngestRequest struct {
	Items []IngestItem `json:"items" validate:"required,min=1,dive"`
}

// IngestResponse is the response body for POST /ingest.
type IngestResponse struct {
	IngestedChunks int                   `json:"ingested_chunks"`
	Docs           []string              `json:"docs"`
	Reports        []domain.IngestReport `json:"reports"`
}

// UploadResponse is the response body for POST /upload.
type UploadResponse struct {
	Saved   []string              `json:"saved"`
	Folder  string                `json:"folder"`
	Summary *domain.FolderSummary `json:"summary,omitempty"`
}

// DocumentSummary is one entry of GET /docs.
type DocumentSummary struct {
	DocID     string          `json:"doc_id"`
	Title     string          `json:"title"`
	URI       string          `json:"uri,omitempty"`
	Metadata  domain.Metadata `json:"metadata"`
	Chunks    int             `json:"chunks"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// DocumentResponse is the response body for GET /docs/{id}.
type DocumentResponse struct {
	DocID     string          `json:"doc_id"`
	Title     string          `json:"title"`
	URI       string          `json:"uri,omitempty"`
	Text      string          `json:"text"`
	Metadata  domain.Metadata `json:"metadata"`
	ChunkIDs  []string        `json:"chunk_ids"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// handleHealth returns a simple health check response.
func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{OK: true})
}

// handleQuery runs a semantic query.
func (s *Server) handleQuery(c echo.Context) error {
	var req QueryRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid query request", zap.Error(err))
		return invalid("invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return validationError(err)
	}

	filter, err := domain.ParseFilter(req.Filters)
	if err != nil {
		return err
	}

	results, err := s.services.Query.Query(c.Request().Context(), req.Query, domain.QueryOptions{
		TopK:   req.TopK,
		Filter: filter,
	})
	if err != nil {
		return err
	}
	if results == nil {
		results = []domain.QueryResult{}
	}

	s.logger.Debug("query answered",
		zap.Int("results", len(results)),
		zap.Strings("filters", filter.Fields()),
	)
	return c.JSON(http.StatusOK, QueryResponse{Results: results})
}

// handleIngest ingests documents posted as JSON.
func (s *Server) handleIngest(c echo.Context) error {
	req, err := decodeIngest(c.Request().Body)
	if err != nil {
		return err
	}
	if err := c.Validate(req); err != nil {
		return validationError(err)
	}
	// The whole batch is checked before anything reaches the catalogue.
	for i, item := range req.Items {
		if strings.TrimSpace(item.DocID) == "" {
			return invalid("item %d: doc_id is blank", i)
		}
		if strings.TrimSpace(item.Text) == "" {
			return invalid("item %d (%s): no text to ingest", i, item.DocID)
		}
	}

	ctx := c.Request().Context()
	resp := IngestResponse{Docs: []string{}, Reports: []domain.IngestReport{}}
	for _, item := range req.Items {
		report, err := s.services.Ingester.Ingest(ctx, itemDocument(item))
		if err != nil && !errors.Is(err, domain.ErrPartialIngest) {
			return err
		}
		resp.IngestedChunks += len(report.Upserted)
		resp.Docs = append(resp.Docs, report.DocumentID)
		resp.Reports = append(resp.Reports, *report)
	}

	return c.JSON(http.StatusOK, resp)
}

// decodeIngest accepts either a JSON array of items or {"items": [...]}.
func decodeIngest(body io.Reader) (*IngestRequest, error) {
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, invalid("reading body: %v", err)
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, invalid("empty request body")
	}

	var req IngestRequest
	if raw[0] == '[' {
		err = json.Unmarshal(raw, &req.Items)
	} else {
		err = json.Unmarshal(raw, &req)
	}
	if err != nil {
		return nil, invalid("invalid request body: %v", err)
	}
	return &req, nil
}

// itemDocument converts a posted item into a document.
func itemDocument(item IngestItem) *domain.Document {
	meta := domain.NormaliseMetadata(item.Meta)
	title := meta.String(domain.MetaFilename)
	if title == "" {
		title = item.DocID
	}
	return &domain.Document{
		ID:       item.DocID,
		Title:    title,
		Content:  item.Text,
		Metadata: meta,
	}
}

// handleUpload stores uploaded files and ingests the upload folder.
func (s *Server) handleUpload(c echo.Context) error {
	dir := s.config.UploadDir
	if dir == "" {
		return invalid("uploads are disabled")
	}

	form, err := c.MultipartForm()
	if err != nil {
		return invalid("expected a multipart form: %v", err)
	}
	var files []*multipart.FileHeader
	files = append(files, form.File["files"]...)
	files = append(files, form.File["file"]...)
	if len(files) == 0 {
		return invalid("no files uploaded")
	}

	if err := os.MkdirAll(dir, 0o750); err != nil {
		return err
	}

	saved := make([]string, 0, len(files))
	for _, fh := range files {
		name := filepath.Base(filepath.Clean("/" + fh.Filename))
		if name == "/" || strings.HasPrefix(name, ".") {
			return invalid("invalid file name %q", fh.Filename)
		}
		if err := saveUpload(fh, filepath.Join(dir, name)); err != nil {
			return err
		}
		saved = append(saved, name)
	}
	s.logger.Info("files uploaded", zap.Strings("files", saved), zap.String("folder", dir))

	resp := UploadResponse{Saved: saved, Folder: dir}
	if s.services.Folder != nil {
		summary, err := s.services.Folder.IngestFolder(c.Request().Context(), dir)
		if err != nil {
			return err
		}
		resp.Summary = summary
	}
	return c.JSON(http.StatusOK, resp)
}

func saveUpload(fh *multipart.FileHeader, dst string) error {
	src, err := fh.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, src); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

// handleListDocuments lists the catalogue.
func (s *Server) handleListDocuments(c echo.Context) error {
	docs, err := s.services.Documents.List(c.Request().Context())
	if err != nil {
		return err
	}

	out := make([]DocumentSummary, len(docs))
	for i, doc := range docs {
		out[i] = DocumentSummary{
			DocID:     doc.ID,
			Title:     doc.Title,
			URI:       doc.URI,
			Metadata:  doc.Metadata,
			Chunks:    len(doc.ChunkIDs),
			UpdatedAt: doc.UpdatedAt,
		}
	}
	return c.JSON(http.StatusOK, map[string]any{"docs": out})
}

// documentID returns the unescaped wildcard id of /docs/*.
func documentID(c echo.Context) (string, error) {
	id, err := url.PathUnescape(c.Param("*"))
	if err != nil || strings.TrimSpace(id) == "" {
		return "", invalid("document id is required")
	}
	return id, nil
}

// handleGetDocument returns one document with its text.
func (s *Server) handleGetDocument(c echo.Context) error {
	id, err := documentID(c)
	if err != nil {
		return err
	}
	doc, err := s.services.Documents.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}

	chunkIDs := doc.ChunkIDs
	if chunkIDs == nil {
		chunkIDs = []string{}
	}
	return c.JSON(http.StatusOK, DocumentResponse{
		DocID:     doc.ID,
		Title:     doc.Title,
		URI:       doc.URI,
		Text:      doc.Content,
		Metadata:  doc.Metadata,
		ChunkIDs:  chunkIDs,
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	})
}

// handleDeleteDocument removes a document from the index and the
// catalogue, and its uploaded file if there is one.
func (s *Server) handleDeleteDocument(c echo.Context) error {
	id, err := documentID(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()

	var uri string
	if doc, err := s.services.Documents.Get(ctx, id); err == nil {
		uri = doc.URI
	}
	if err := s.services.Documents.Delete(ctx, id); err != nil {
		return err
	}

	if s.isUpload(uri) {
		if err := os.Remove(uri); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("removing uploaded file", zap.String("path", uri), zap.Error(err))
		}
	}
	return c.JSON(http.StatusOK, map[string]string{"deleted": id})
}

// isUpload reports whether path lies inside the upload folder.
func (s *Server) isUpload(path string) bool {
	if path == "" || s.config.UploadDir == "" {
		return false
	}
	rel, err := filepath.Rel(s.config.UploadDir, path)
	return err == nil && rel != "." && !strings.HasPrefix(rel, "..")
}

// handleCategories lists the distinct document categories.
func (s *Server) handleCategories(c echo.Context) error {
	return s.values(c, domain.MetaCategory, "categories")
}

// handleCases lists the distinct case ids.
func (s *Server) handleCases(c echo.Context) error {
	return s.values(c, domain.MetaCaseID, "cases")
}

func (s *Server) values(c echo.Context, key, field string) error {
	values, err := s.services.Documents.Values(c.Request().Context(), key)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string][]string{field: values})
}
