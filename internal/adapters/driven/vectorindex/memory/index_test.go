package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sibila/internal/adapters/driven/vectorindex/indextest"
	"github.com/custodia-labs/sibila/internal/core/domain"
	"github.com/custodia-labs/sibila/internal/core/ports/driven"
)

func TestIndex_Suite(t *testing.T) {
	indextest.Run(t, func(t *testing.T) driven.VectorIndex {
		return New()
	})
}

func TestIndex_DoesNotAliasCallerMemory(t *testing.T) {
	idx := New()
	ctx := context.Background()

	vec := []float32{1, 0}
	meta := domain.Metadata{"sala": "civil"}
	require.NoError(t, idx.Upsert(ctx, indextest.Entry("c1", "d", vec, meta)))

	vec[0] = -1
	meta["sala"] = "penal"

	hits, err := idx.Search(ctx, []float32{1, 0}, nil, 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-9)
	assert.Equal(t, "civil", hits[0].Entry.Metadata["sala"])

	hits[0].Entry.Metadata["sala"] = "laboral"
	again, _ := idx.Search(ctx, []float32{1, 0}, nil, 1)
	assert.Equal(t, "civil", again[0].Entry.Metadata["sala"])
}
