package mcp

import (
	"context"
	"errors"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/sibila/internal/core/domain"
)

// SearchInput is the input schema for the search tool.
type SearchInput struct {
	Query   string         `json:"query" jsonschema:"the question or passage to search for"`
	TopK    *int           `json:"top_k,omitempty" jsonschema:"maximum number of passages to return, positive (default from settings)"`
	Filters map[string]any `json:"filters,omitempty" jsonschema:"metadata filters, e.g. {\"tribunal\": \"TS\"} or {\"materia\": [\"civil\", \"penal\"]}"`
}

// SearchOutput is the output schema for the search tool.
type SearchOutput struct {
	Results []SearchResultOutput `json:"results"`
	Count   int                  `json:"count"`
}

// SearchResultOutput represents a single matched passage.
type SearchResultOutput struct {
	ChunkID    string          `json:"chunk_id"`
	DocumentID string          `json:"doc_id"`
	Text       string          `json:"text"`
	Score      float64         `json:"score"`
	Metadata   domain.Metadata `json:"metadata,omitempty"`
}

// IngestTextInput is the input schema for the ingest_text tool.
type IngestTextInput struct {
	DocID string         `json:"doc_id" jsonschema:"stable identifier of the document"`
	Text  string         `json:"text" jsonschema:"full text of the document"`
	Meta  map[string]any `json:"meta,omitempty" jsonschema:"flat metadata such as ecli, tribunal, fecha or materia"`
}

// IngestTextOutput is the output schema for the ingest_text tool.
type IngestTextOutput struct {
	DocID       string                `json:"doc_id"`
	TotalChunks int                   `json:"total_chunks"`
	Upserted    int                   `json:"upserted"`
	Failed      []domain.ChunkFailure `json:"failed,omitempty"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "search",
		Description: "Semantic search over the ingested court decisions, optionally filtered by metadata",
	}, s.handleSearch)

	if s.ports.Ingester != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "ingest_text",
			Description: "Add or replace a document so it becomes searchable",
		}, s.handleIngestText)
	}
}

// handleSearch handles the search tool invocation.
func (s *Server) handleSearch(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SearchInput,
) (*mcp.CallToolResult, SearchOutput, error) {
	filter, err := domain.ParseFilter(input.Filters)
	if err != nil {
		return nil, SearchOutput{}, err
	}

	results, err := s.ports.Query.Query(ctx, input.Query, domain.QueryOptions{
		TopK:   input.TopK,
		Filter: filter,
	})
	if err != nil {
		return nil, SearchOutput{}, err
	}

	output := SearchOutput{
		Results: make([]SearchResultOutput, len(results)),
		Count:   len(results),
	}
	for i, r := range results {
		output.Results[i] = SearchResultOutput{
			ChunkID:    r.ChunkID,
			DocumentID: r.DocumentID,
			Text:       r.Text,
			Score:      r.Score,
			Metadata:   r.Metadata,
		}
	}

	return nil, output, nil
}

// handleIngestText handles the ingest_text tool invocation. Chunks that
// fail are listed in the output rather than failing the call.
func (s *Server) handleIngestText(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input IngestTextInput,
) (*mcp.CallToolResult, IngestTextOutput, error) {
	id := strings.TrimSpace(input.DocID)
	if id == "" {
		return nil, IngestTextOutput{}, errors.New("doc_id is required")
	}

	meta := domain.NormaliseMetadata(input.Meta)
	title := meta.String(domain.MetaFilename)
	if title == "" {
		title = id
	}

	report, err := s.ports.Ingester.Ingest(ctx, &domain.Document{
		ID:       id,
		Title:    title,
		Content:  input.Text,
		Metadata: meta,
	})
	if err != nil && !errors.Is(err, domain.ErrPartialIngest) {
		return nil, IngestTextOutput{}, err
	}

	return nil, IngestTextOutput{
		DocID:       report.DocumentID,
		TotalChunks: report.TotalChunks,
		Upserted:    len(report.Upserted),
		Failed:      report.Failed,
	}, nil
}
