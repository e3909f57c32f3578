package postprocessors

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/custodia-labs/sibila/internal/core/domain"
	"github.com/custodia-labs/sibila/internal/core/ports/driven"
	"github.com/custodia-labs/sibila/internal/postprocessors/chunker"
)

// registryMockProcessor is a simple mock for testing registry functionality.
type registryMockProcessor struct {
	name string
}

func (m *registryMockProcessor) Name() string { return m.name }
func (m *registryMockProcessor) Process(_ context.Context, _ *domain.Document, chunks []domain.Chunk) ([]domain.Chunk, error) {
	return chunks, nil
}

func TestRegistry_Build_Success(t *testing.T) {
	r := NewRegistry()

	r.Register("test", func(cfg map[string]any) (driven.PostProcessor, error) {
		name := "default"
		if n, ok := cfg["name"].(string); ok {
			name = n
		}
		return &registryMockProcessor{name: name}, nil
	})

	proc, err := r.Build("test", map[string]any{"name": "custom"})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if proc.Name() != "custom" {
		t.Errorf("expected name 'custom', got %q", proc.Name())
	}
}

func TestRegistry_Build_UnknownProcessor(t *testing.T) {
	_, err := NewRegistry().Build("unknown", nil)
	if !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestRegistry_Names(t *testing.T) {
	r := NewDefaultRegistry()
	names := r.Names()
	if len(names) != 2 || names[0] != "annotate" || names[1] != "chunker" {
		t.Errorf("unexpected names: %v", names)
	}
	if !r.Has("chunker") || r.Has("nonexistent") {
		t.Error("Has reported wrong membership")
	}
}

func TestBuildChunker_Config(t *testing.T) {
	tests := []struct {
		name        string
		cfg         map[string]any
		wantSize    int
		wantOverlap int
	}{
		{"nil config", nil, chunker.DefaultChunkSize, chunker.DefaultChunkOverlap},
		{"int values", map[string]any{"chunk_size": 800, "overlap": 80}, 800, 80},
		{"toml int64", map[string]any{"chunk_size": int64(600), "overlap": int64(0)}, 600, 0},
		{"json float64", map[string]any{"chunk_size": float64(400)}, 400, chunker.DefaultChunkOverlap},
		{"wrong type ignored", map[string]any{"chunk_size": "big"}, chunker.DefaultChunkSize, chunker.DefaultChunkOverlap},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			proc, err := buildChunker(tt.cfg)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			c := proc.(*chunker.Processor)
			if c.ChunkSize() != tt.wantSize {
				t.Errorf("expected size %d, got %d", tt.wantSize, c.ChunkSize())
			}
			if c.Overlap() != tt.wantOverlap {
				t.Errorf("expected overlap %d, got %d", tt.wantOverlap, c.Overlap())
			}
		})
	}
}

func TestRegistry_NamesAreCaseInsensitive(t *testing.T) {
	r := NewDefaultRegistry()

	if !r.Has(" Chunker ") {
		t.Error("expected Chunker to resolve to the chunker processor")
	}
	proc, err := r.Build("ANNOTATE", nil)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if proc.Name() != "annotate" {
		t.Errorf("expected annotate, got %q", proc.Name())
	}
}

func TestRegistry_Build_UnknownListsKnownNames(t *testing.T) {
	_, err := NewDefaultRegistry().Build("stemmer", nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if want := "known: annotate, chunker"; !strings.Contains(err.Error(), want) {
		t.Errorf("expected %q in %q", want, err.Error())
	}
}
