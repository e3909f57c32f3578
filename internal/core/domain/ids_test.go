package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChunkID(t *testing.T) {
	t.Run("is deterministic", func(t *testing.T) {
		a := ChunkID("doc-1", 0, "El tribunal estima el recurso.")
		b := ChunkID("doc-1", 0, "El tribunal estima el recurso.")

		assert.Equal(t, a, b)
		assert.Len(t, a, 32)
	})

	t.Run("depends on every component", func(t *testing.T) {
		base := ChunkID("doc-1", 0, "text")

		assert.NotEqual(t, base, ChunkID("doc-2", 0, "text"))
		assert.NotEqual(t, base, ChunkID("doc-1", 1, "text"))
		assert.NotEqual(t, base, ChunkID("doc-1", 0, "texto"))
	})

	t.Run("separator prevents ambiguous concatenation", func(t *testing.T) {
		assert.NotEqual(t, ChunkID("doc1", 1, "0x"), ChunkID("doc", 11, "0x"))
	})
}

func TestDocumentIDFromPath(t *testing.T) {
	tests := []struct {
		name string
		root string
		path string
		want string
	}{
		{"top level file", "/data", "/data/sentencia.pdf", "sentencia"},
		{"nested file", "/data", "/data/civil/2021/sts-123.txt", "civil/2021/sts-123"},
		{"outside root", "/data", "/other/auto.txt", "auto"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DocumentIDFromPath(tt.root, tt.path))
		})
	}
}
