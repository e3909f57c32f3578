package normalisers

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/custodia-labs/sibila/internal/core/domain"
	"github.com/custodia-labs/sibila/internal/core/ports/driven"
	"github.com/custodia-labs/sibila/internal/normalisers/docx"
	"github.com/custodia-labs/sibila/internal/normalisers/html"
	"github.com/custodia-labs/sibila/internal/normalisers/pdf"
	"github.com/custodia-labs/sibila/internal/normalisers/plaintext"
)

// Ensure Registry implements the interface.
var _ driven.ExtractorRegistry = (*Registry)(nil)

// Registry maps lower-cased file extensions to extractors.
type Registry struct {
	byExt map[string]driven.TextExtractor
}

// NewRegistry creates a registry holding the given extractors. Later
// extractors win when two claim the same extension.
func NewRegistry(extractors ...driven.TextExtractor) *Registry {
	r := &Registry{byExt: make(map[string]driven.TextExtractor)}
	for _, e := range extractors {
		r.Register(e)
	}
	return r
}

// NewDefaultRegistry returns a registry with every built-in extractor.
func NewDefaultRegistry() *Registry {
	return NewRegistry(
		plaintext.New(),
		pdf.New(),
		html.New(),
		docx.New(),
	)
}

// Register adds an extractor for all of its extensions.
func (r *Registry) Register(e driven.TextExtractor) {
	for _, ext := range e.Extensions() {
		r.byExt[strings.ToLower(ext)] = e
	}
}

// Get returns the extractor for ext, which may omit the leading dot.
func (r *Registry) Get(ext string) (driven.TextExtractor, bool) {
	ext = strings.ToLower(ext)
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	e, ok := r.byExt[ext]
	return e, ok
}

// Extensions returns every supported extension, sorted.
func (r *Registry) Extensions() []string {
	exts := make([]string, 0, len(r.byExt))
	for ext := range r.byExt {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Supports reports whether path has a registered extension.
func (r *Registry) Supports(path string) bool {
	_, ok := r.Get(filepath.Ext(path))
	return ok
}

// Extract reads path with the matching extractor and cleans the text.
// Unsupported extensions fail with domain.ErrUnsupportedType.
func (r *Registry) Extract(ctx context.Context, path string) (string, error) {
	e, ok := r.Get(filepath.Ext(path))
	if !ok {
		return "", fmt.Errorf("%w: %s", domain.ErrUnsupportedType, filepath.Ext(path))
	}
	text, err := e.Extract(ctx, path)
	if err != nil {
		return "", fmt.Errorf("%s: %w", e.Name(), err)
	}
	return domain.CleanText(text), nil
}
