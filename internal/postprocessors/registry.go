package postprocessors

import (
	"fmt"
	"slices"
	"strings"

	"github.com/custodia-labs/sibila/internal/core/domain"
	"github.com/custodia-labs/sibila/internal/core/ports/driven"
)

// BuilderFunc builds a processor from its section of chunking settings.
// Values come from TOML or JSON, so integers may arrive as int64 or float64.
type BuilderFunc func(cfg map[string]any) (driven.PostProcessor, error)

// Registry resolves the processor names listed in chunking.processors.
type Registry struct {
	builders map[string]BuilderFunc
}

// NewRegistry creates a registry with no processors.
func NewRegistry() *Registry {
	return &Registry{builders: map[string]BuilderFunc{}}
}

// Register binds name to builder, replacing any earlier binding. Names are
// matched case-insensitively.
func (r *Registry) Register(name string, builder BuilderFunc) {
	r.builders[strings.ToLower(strings.TrimSpace(name))] = builder
}

// Build creates the processor called name. Unknown names are invalid
// settings, not internal errors.
func (r *Registry) Build(name string, cfg map[string]any) (driven.PostProcessor, error) {
	builder, ok := r.builders[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("%w: unknown processor %q (known: %s)",
			domain.ErrInvalidArgument, name, strings.Join(r.Names(), ", "))
	}
	return builder(cfg)
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.builders[strings.ToLower(strings.TrimSpace(name))]
	return ok
}

// Names lists the registered processors in alphabetical order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.builders))
	for name := range r.builders {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
