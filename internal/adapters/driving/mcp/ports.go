package mcp

import (
	"github.com/custodia-labs/sibila/internal/core/ports/driving"
)

// Ports are the services the MCP server drives.
type Ports struct {
	// Query answers semantic searches.
	Query driving.QueryService

	// Ingester adds documents. The ingest_text tool is only offered when set.
	Ingester driving.IngestionService

	// Documents exposes the catalogue as resources.
	Documents driving.DocumentService
}

// Validate reports ErrMissingQueryService when no query service is set.
func (p *Ports) Validate() error {
	if p == nil || p.Query == nil {
		return ErrMissingQueryService
	}
	return nil
}
