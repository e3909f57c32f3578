// Package sidecar reads structured metadata stored next to a source file.
//
// For a source file "ruling.pdf" the reader looks for "ruling.meta.json",
// "ruling.meta.yaml" and "ruling.meta.yml", in that order. Sidecars hold
// a flat object of key/value pairs.
package sidecar

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/custodia-labs/sibila/internal/core/domain"
	"github.com/custodia-labs/sibila/internal/core/ports/driven"
)

// Ensure Reader implements the interface.
var _ driven.MetadataReader = (*Reader)(nil)

// Suffixes lists sidecar suffixes in lookup order.
var Suffixes = []string{".meta.json", ".meta.yaml", ".meta.yml"}

// Reader loads JSON or YAML sidecars.
type Reader struct{}

// New creates a sidecar reader.
func New() *Reader {
	return &Reader{}
}

// Read returns the sidecar contents for the source file at path, or
// (nil, nil) when none exists.
func (r *Reader) Read(ctx context.Context, path string) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	base := strings.TrimSuffix(path, filepath.Ext(path))
	for _, suffix := range Suffixes {
		candidate := base + suffix
		data, err := os.ReadFile(candidate)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read sidecar %s: %w", candidate, err)
		}
		return Decode(candidate, data)
	}
	return nil, nil
}

// IsSidecar reports whether path is a sidecar and returns the base path
// (without extension) of the source file it describes.
func (r *Reader) IsSidecar(path string) (string, bool) {
	lower := strings.ToLower(path)
	for _, suffix := range Suffixes {
		if strings.HasSuffix(lower, suffix) {
			return path[:len(path)-len(suffix)], true
		}
	}
	return "", false
}

// Decode parses sidecar bytes by the file suffix. The document must be a
// single flat object.
func Decode(name string, data []byte) (map[string]any, error) {
	var out map[string]any
	if strings.HasSuffix(strings.ToLower(name), ".json") {
		dec := json.NewDecoder(bytes.NewReader(data))
		if err := dec.Decode(&out); err != nil {
			return nil, fmt.Errorf("%w: sidecar %s: %v", domain.ErrInvalidArgument, filepath.Base(name), err)
		}
	} else {
		if err := yaml.Unmarshal(data, &out); err != nil {
			return nil, fmt.Errorf("%w: sidecar %s: %v", domain.ErrInvalidArgument, filepath.Base(name), err)
		}
	}
	if out == nil {
		out = map[string]any{}
	}
	for k, v := range out {
		if t, ok := v.(time.Time); ok {
			out[k] = formatTime(t)
		}
	}
	return out, nil
}

func formatTime(t time.Time) string {
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
		return t.Format(time.DateOnly)
	}
	return t.Format(time.RFC3339)
}
