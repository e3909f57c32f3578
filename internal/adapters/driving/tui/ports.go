// Package tui provides an interactive terminal user interface for sibila.
// It implements a driving adapter following hexagonal architecture principles.
package tui

import (
	"github.com/custodia-labs/sibila/internal/core/ports/driving"
)

// Ports aggregates the driving ports the TUI uses.
type Ports struct {
	// Query answers natural language questions.
	Query driving.QueryService

	// Documents browses and removes catalogue entries. Optional: without
	// it the documents view reports the service as unavailable.
	Documents driving.DocumentService

	// TopK overrides the number of results per query. Nil uses the
	// configured default.
	TopK *int
}

// Validate ensures the required ports are set.
func (p *Ports) Validate() error {
	if p == nil || p.Query == nil {
		return ErrMissingQueryService
	}
	return nil
}
