package ai

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sibila/internal/adapters/driven/embedding/hashing"
	"github.com/custodia-labs/sibila/internal/adapters/driven/embedding/ratelimit"
	"github.com/custodia-labs/sibila/internal/adapters/driven/storage/memory"
	sqlitestore "github.com/custodia-labs/sibila/internal/adapters/driven/storage/sqlite"
	chromemindex "github.com/custodia-labs/sibila/internal/adapters/driven/vectorindex/chromem"
	memoryindex "github.com/custodia-labs/sibila/internal/adapters/driven/vectorindex/memory"
	sqliteindex "github.com/custodia-labs/sibila/internal/adapters/driven/vectorindex/sqlite"
	"github.com/custodia-labs/sibila/internal/core/domain"
)

func ollamaServer(t *testing.T, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"models":[]}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testSettings(t *testing.T) *domain.AppSettings {
	t.Helper()
	settings := domain.DefaultAppSettings()
	settings.DataDir = t.TempDir()
	return &settings
}

func TestInitResult_Close(t *testing.T) {
	t.Run("close with nil services", func(t *testing.T) {
		result := &InitResult{}
		// Should not panic
		result.Close()
	})
}

func TestCreateEmbeddingService(t *testing.T) {
	tests := []struct {
		name     string
		settings *domain.EmbeddingSettings
		wantErr  bool
		wantDims int
	}{
		{
			name:    "nil settings returns error",
			wantErr: true,
		},
		{
			name:     "unknown provider returns error",
			settings: &domain.EmbeddingSettings{Provider: "anthropic"},
			wantErr:  true,
		},
		{
			name:     "openai without key returns error",
			settings: &domain.EmbeddingSettings{Provider: domain.EmbeddingProviderOpenAI},
			wantErr:  true,
		},
		{
			name:     "hashing provider creates service",
			settings: &domain.EmbeddingSettings{Provider: domain.EmbeddingProviderHashing, Dimensions: 64},
			wantDims: 64,
		},
		{
			name: "ollama provider uses known model dimensions",
			settings: &domain.EmbeddingSettings{
				Provider: domain.EmbeddingProviderOllama,
				Model:    "mxbai-embed-large",
			},
			wantDims: 1024,
		},
		{
			name: "openai provider creates service",
			settings: &domain.EmbeddingSettings{
				Provider: domain.EmbeddingProviderOpenAI,
				APIKey:   "test-key",
				Model:    "text-embedding-3-small",
			},
			wantDims: 1536,
		},
		{
			name: "openai honours explicit dimensions",
			settings: &domain.EmbeddingSettings{
				Provider:   domain.EmbeddingProviderOpenAI,
				APIKey:     "test-key",
				Model:      "text-embedding-3-large",
				Dimensions: 256,
			},
			wantDims: 256,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := CreateEmbeddingService(tt.settings)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, domain.ErrInvalidArgument)
				assert.Nil(t, svc)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, svc)
			assert.Equal(t, tt.wantDims, svc.Dimensions())
		})
	}
}

func TestCreateEmbeddingService_RateLimited(t *testing.T) {
	svc, err := CreateEmbeddingService(&domain.EmbeddingSettings{
		Provider:  domain.EmbeddingProviderHashing,
		RateLimit: 5,
	})
	require.NoError(t, err)

	limited, ok := svc.(*ratelimit.Service)
	require.True(t, ok)
	assert.InDelta(t, 5.0, float64(limited.Limit()), 1e-9)
	assert.Equal(t, hashing.DefaultModel, svc.ModelName())
}

func TestCreateEmbeddingService_NoRateLimitIsUnwrapped(t *testing.T) {
	svc, err := CreateEmbeddingService(&domain.EmbeddingSettings{Provider: domain.EmbeddingProviderHashing})
	require.NoError(t, err)

	_, ok := svc.(*hashing.Embedder)
	assert.True(t, ok)
}

func TestCreateAndValidateEmbeddingService(t *testing.T) {
	t.Run("reachable provider", func(t *testing.T) {
		srv := ollamaServer(t, http.StatusOK)
		svc, err := CreateAndValidateEmbeddingService(&domain.EmbeddingSettings{
			Provider: domain.EmbeddingProviderOllama,
			BaseURL:  srv.URL,
			Model:    "nomic-embed-text",
		})
		require.NoError(t, err)
		assert.Equal(t, 768, svc.Dimensions())
	})

	t.Run("unreachable provider", func(t *testing.T) {
		srv := ollamaServer(t, http.StatusServiceUnavailable)
		svc, err := CreateAndValidateEmbeddingService(&domain.EmbeddingSettings{
			Provider: domain.EmbeddingProviderOllama,
			BaseURL:  srv.URL,
		})
		assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
		assert.Contains(t, err.Error(), "sibila settings set")
		assert.Nil(t, svc)
	})
}

func TestCreateVectorIndex(t *testing.T) {
	ctx := context.Background()

	t.Run("sqlite is the default", func(t *testing.T) {
		settings := testSettings(t)
		idx, err := CreateVectorIndex(ctx, settings)
		require.NoError(t, err)
		defer idx.Close()

		_, ok := idx.(*sqliteindex.Index)
		assert.True(t, ok)
		assert.FileExists(t, filepath.Join(settings.DataDir, sqliteindex.IndexFile))
	})

	t.Run("memory", func(t *testing.T) {
		settings := testSettings(t)
		settings.Index.Backend = domain.IndexBackendMemory
		idx, err := CreateVectorIndex(ctx, settings)
		require.NoError(t, err)

		_, ok := idx.(*memoryindex.Index)
		assert.True(t, ok)
	})

	t.Run("chromem", func(t *testing.T) {
		settings := testSettings(t)
		settings.Index.Backend = domain.IndexBackendChromem
		idx, err := CreateVectorIndex(ctx, settings)
		require.NoError(t, err)
		defer idx.Close()

		_, ok := idx.(*chromemindex.Index)
		assert.True(t, ok)
		_, err = os.Stat(filepath.Join(settings.DataDir, chromemindex.Dir))
		assert.NoError(t, err)
	})

	t.Run("chromem requires data dir", func(t *testing.T) {
		settings := testSettings(t)
		settings.DataDir = ""
		settings.Index.Backend = domain.IndexBackendChromem
		_, err := CreateVectorIndex(ctx, settings)
		assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	})

	t.Run("unknown backend", func(t *testing.T) {
		settings := testSettings(t)
		settings.Index.Backend = "faiss"
		_, err := CreateVectorIndex(ctx, settings)
		assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	})
}

func TestCreateDocumentStore(t *testing.T) {
	settings := testSettings(t)
	store, err := CreateDocumentStore(settings)
	require.NoError(t, err)
	defer store.Close()
	_, ok := store.(*sqlitestore.Store)
	assert.True(t, ok)

	settings.Index.Backend = domain.IndexBackendMemory
	memStore, err := CreateDocumentStore(settings)
	require.NoError(t, err)
	_, ok = memStore.(*memory.DocumentStore)
	assert.True(t, ok)
}

func TestInitialise_Defaults(t *testing.T) {
	settings := testSettings(t)

	result, err := Initialise(context.Background(), settings)
	require.NoError(t, err)
	defer result.Close()

	assert.NotNil(t, result.EmbeddingService)
	assert.NotNil(t, result.VectorIndex)
	assert.NotNil(t, result.DocumentStore)
	assert.Empty(t, result.Warnings)
}

func TestInitialise_UnreachableProviderWarns(t *testing.T) {
	srv := ollamaServer(t, http.StatusServiceUnavailable)
	settings := testSettings(t)
	settings.Index.Backend = domain.IndexBackendMemory
	settings.Embedding = domain.EmbeddingSettings{
		Provider: domain.EmbeddingProviderOllama,
		BaseURL:  srv.URL,
		Model:    "nomic-embed-text",
	}

	result, err := Initialise(context.Background(), settings)
	require.NoError(t, err)
	defer result.Close()

	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "unreachable")
}

func TestInitialise_IdentityMismatchWarns(t *testing.T) {
	settings := testSettings(t)
	ctx := context.Background()

	idx, err := sqliteindex.Open(settings.DataDir)
	require.NoError(t, err)
	require.NoError(t, idx.Upsert(ctx, domain.IndexEntry{
		ChunkID:    "c1",
		DocumentID: "d1",
		Vector:     []float32{1, 0, 0},
		Model:      "other-model",
	}))
	require.NoError(t, idx.Close())

	result, err := Initialise(ctx, settings)
	require.NoError(t, err)
	defer result.Close()

	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "other-model")
}

func TestInitialise_Errors(t *testing.T) {
	_, err := Initialise(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	settings := testSettings(t)
	settings.Embedding.Provider = "unknown"
	_, err = Initialise(context.Background(), settings)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	settings = testSettings(t)
	settings.Index.Backend = "unknown"
	_, err = Initialise(context.Background(), settings)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}
