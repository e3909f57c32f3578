package driven

import "context"

// TextExtractor turns a source file into plain text.
// Each extractor handles a set of file extensions.
type TextExtractor interface {
	// Name returns the extractor name for logging.
	Name() string

	// Extensions returns the lower-cased extensions handled, including the dot.
	Extensions() []string

	// Extract reads the file and returns its cleaned text.
	// An empty string means the file has no extractable text.
	Extract(ctx context.Context, path string) (string, error)
}

// ExtractorRegistry selects the extractor for a file extension.
type ExtractorRegistry interface {
	// Get returns the extractor for ext, or false if unsupported.
	Get(ext string) (TextExtractor, bool)

	// Extensions returns every supported extension.
	Extensions() []string
}

// MetadataReader loads sidecar metadata for a source file.
type MetadataReader interface {
	// Read returns the raw key-value pairs of the sidecar next to path.
	// It returns (nil, nil) when no sidecar exists and an error when one
	// exists but cannot be parsed.
	Read(ctx context.Context, path string) (map[string]any, error)

	// IsSidecar reports whether path is itself a sidecar file and, if so,
	// returns the candidate base path (without extension) it describes.
	IsSidecar(path string) (string, bool)
}
