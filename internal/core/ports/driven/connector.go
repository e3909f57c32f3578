package driven

import (
	"context"

	"github.com/custodia-labs/sibila/internal/core/domain"
)

// Connector discovers source files under a root folder.
type Connector interface {
	// Type returns the connector type identifier.
	Type() string

	// Validate checks the root exists and is a readable directory.
	Validate(ctx context.Context) error

	// Scan walks the root and emits every candidate file.
	// Both channels are closed when the walk ends.
	Scan(ctx context.Context) (<-chan domain.SourceFile, <-chan error)

	// Watch listens for file changes until ctx is cancelled.
	Watch(ctx context.Context) (<-chan domain.FileChange, error)

	// Close releases resources.
	Close() error
}
