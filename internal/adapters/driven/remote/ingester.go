// Package remote forwards ingestion to a running sibila HTTP server.
// It lets a folder be scanned on one machine and indexed on another.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/custodia-labs/sibila/internal/core/domain"
	"github.com/custodia-labs/sibila/internal/core/ports/driving"
	"github.com/custodia-labs/sibila/internal/logger"
)

// Ensure Ingester implements the interface.
var _ driving.IngestionService = (*Ingester)(nil)

// Default configuration values.
const (
	DefaultBaseURL = "http://localhost:8000"
	DefaultTimeout = 120 * time.Second
)

// Config holds configuration for the remote ingester.
type Config struct {
	// BaseURL is the server base URL (default: http://localhost:8000).
	BaseURL string

	// Token is sent as a bearer token when set.
	Token string

	// Timeout is the request timeout (default: 120s).
	Timeout time.Duration

	// HTTPClient replaces the default client, mainly for tests.
	HTTPClient *http.Client
}

// Ingester implements driving.IngestionService over POST /ingest and
// DELETE /docs/{id}.
type Ingester struct {
	client  *http.Client
	baseURL string
	token   string
}

type item struct {
	DocID string          `json:"doc_id"`
	Text  string          `json:"text"`
	Meta  domain.Metadata `json:"meta,omitempty"`
}

type ingestResponse struct {
	Reports []domain.IngestReport `json:"reports"`
}

type errorResponse struct {
	Error string      `json:"error"`
	Kind  domain.Kind `json:"kind"`
}

// NewIngester creates a remote ingester.
func NewIngester(cfg Config) *Ingester {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}

	return &Ingester{
		client:  client,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
	}
}

// Ingest posts the document as a one-item list. Servers that only accept
// the {"items": [...]} form answer 4xx, so that form is tried next.
func (r *Ingester) Ingest(ctx context.Context, doc *domain.Document) (*domain.IngestReport, error) {
	if doc == nil || strings.TrimSpace(doc.ID) == "" {
		return nil, fmt.Errorf("%w: document id is required", domain.ErrInvalidArgument)
	}

	items := []item{{DocID: doc.ID, Text: doc.Content, Meta: doc.Metadata}}

	status, body, err := r.post(ctx, items)
	if err != nil {
		return nil, err
	}
	if status >= 400 && status < 500 {
		logger.Debug("remote: %s rejected the list form (%d), retrying with items", r.baseURL, status)
		status, body, err = r.post(ctx, map[string]any{"items": items})
		if err != nil {
			return nil, err
		}
	}
	if status != http.StatusOK {
		return nil, statusError(status, body)
	}

	var resp ingestResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("remote: decode response: %w", err)
	}
	if len(resp.Reports) == 0 {
		return nil, fmt.Errorf("remote: response carries no report for %s", doc.ID)
	}

	report := resp.Reports[0]
	if len(report.Failed) > 0 {
		return &report, fmt.Errorf("%w: %d of %d chunks of %s failed",
			domain.ErrPartialIngest, len(report.Failed), report.TotalChunks, doc.ID)
	}
	return &report, nil
}

// IngestChunks re-sends the whole document; the server rewrites unchanged
// chunks with identical content.
func (r *Ingester) IngestChunks(ctx context.Context, doc *domain.Document, _ []int) (*domain.IngestReport, error) {
	return r.Ingest(ctx, doc)
}

// Remove deletes the document on the server.
func (r *Ingester) Remove(ctx context.Context, documentID string) error {
	endpoint := r.baseURL + "/docs/" + url.PathEscape(documentID)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, http.NoBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	r.authorise(req)

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("remote: delete %s: %w", documentID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return statusError(resp.StatusCode, body)
	}
	return nil
}

func (r *Ingester) post(ctx context.Context, payload any) (int, []byte, error) {
	jsonBody, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/ingest", bytes.NewReader(jsonBody))
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	r.authorise(req)

	resp, err := r.client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("remote: post /ingest: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("remote: read response: %w", err)
	}
	return resp.StatusCode, body, nil
}

func (r *Ingester) authorise(req *http.Request) {
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}
}

// kindErrors maps the error kinds reported by the server back to sentinels.
var kindErrors = map[domain.Kind]error{
	domain.KindInvalidArgument:      domain.ErrInvalidArgument,
	domain.KindNotFound:             domain.ErrNotFound,
	domain.KindEmbeddingUnavailable: domain.ErrEmbeddingUnavailable,
	domain.KindEmbeddingTimeout:     domain.ErrEmbeddingTimeout,
	domain.KindEmbeddingRejected:    domain.ErrEmbeddingRejected,
	domain.KindDimensionMismatch:    domain.ErrDimensionMismatch,
	domain.KindIndexIO:              domain.ErrIndexIO,
}

func statusError(status int, body []byte) error {
	var er errorResponse
	if err := json.Unmarshal(body, &er); err == nil && er.Kind != "" {
		if sentinel, ok := kindErrors[er.Kind]; ok {
			return fmt.Errorf("%w: remote status %d: %s", sentinel, status, er.Error)
		}
		return fmt.Errorf("remote status %d: %s", status, er.Error)
	}

	msg := strings.TrimSpace(string(body))
	if len(msg) > 300 {
		msg = msg[:300]
	}
	return fmt.Errorf("remote status %d: %s", status, msg)
}
