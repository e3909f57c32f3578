// Package ai builds the embedding service, vector index and document
// catalogue selected by the application settings.
package ai

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/custodia-labs/sibila/internal/adapters/driven/embedding/hashing"
	ollamaembed "github.com/custodia-labs/sibila/internal/adapters/driven/embedding/ollama"
	openaiembed "github.com/custodia-labs/sibila/internal/adapters/driven/embedding/openai"
	"github.com/custodia-labs/sibila/internal/adapters/driven/embedding/ratelimit"
	"github.com/custodia-labs/sibila/internal/adapters/driven/storage/memory"
	sqlitestore "github.com/custodia-labs/sibila/internal/adapters/driven/storage/sqlite"
	chromemindex "github.com/custodia-labs/sibila/internal/adapters/driven/vectorindex/chromem"
	memoryindex "github.com/custodia-labs/sibila/internal/adapters/driven/vectorindex/memory"
	qdrantindex "github.com/custodia-labs/sibila/internal/adapters/driven/vectorindex/qdrant"
	sqliteindex "github.com/custodia-labs/sibila/internal/adapters/driven/vectorindex/sqlite"
	"github.com/custodia-labs/sibila/internal/core/domain"
	"github.com/custodia-labs/sibila/internal/core/ports/driven"
	"github.com/custodia-labs/sibila/internal/logger"
)

// pingTimeout is the maximum time to wait for service connectivity validation.
const pingTimeout = 5 * time.Second

// InitResult contains the adapters built from the settings.
type InitResult struct {
	EmbeddingService driven.EmbeddingService
	VectorIndex      driven.VectorIndex
	DocumentStore    driven.DocumentStore
	Warnings         []string // Non-fatal issues found while starting.
}

// Close releases all resources held by InitResult.
func (r *InitResult) Close() {
	if r.EmbeddingService != nil {
		_ = r.EmbeddingService.Close()
	}
	if r.VectorIndex != nil {
		_ = r.VectorIndex.Close()
	}
	if r.DocumentStore != nil {
		_ = r.DocumentStore.Close()
	}
}

// Initialise builds every adapter. An unreachable embedding provider is
// reported as a warning: ingestion retries transient failures and queries
// surface them per call.
func Initialise(ctx context.Context, settings *domain.AppSettings) (*InitResult, error) {
	if settings == nil {
		return nil, fmt.Errorf("%w: settings are required", domain.ErrInvalidArgument)
	}
	result := &InitResult{}

	svc, err := CreateEmbeddingService(&settings.Embedding)
	if err != nil {
		return nil, err
	}
	result.EmbeddingService = svc

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	if err := svc.Ping(pingCtx); err != nil {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("embedding provider %s unreachable: %v", settings.Embedding.Provider, err))
	}
	cancel()

	index, err := CreateVectorIndex(ctx, settings)
	if err != nil {
		result.Close()
		return nil, err
	}
	result.VectorIndex = index

	if err := checkIdentity(ctx, index, svc); err != nil {
		result.Warnings = append(result.Warnings, err.Error())
	}

	store, err := CreateDocumentStore(settings)
	if err != nil {
		result.Close()
		return nil, err
	}
	result.DocumentStore = store

	for _, w := range result.Warnings {
		logger.Warn("%s", w)
	}
	return result, nil
}

// CreateAndValidateEmbeddingService creates an embedding service and validates connectivity.
// Returns the service if successful, or an error with guidance.
func CreateAndValidateEmbeddingService(settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	svc, err := CreateEmbeddingService(settings)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	if err := svc.Ping(ctx); err != nil {
		_ = svc.Close()
		return nil, fmt.Errorf("%w: service unreachable (%w). Run 'sibila settings set embedding.base_url URL' to fix",
			domain.ErrEmbeddingUnavailable, err)
	}

	return svc, nil
}

// CreateEmbeddingService creates the embedding service for the provider,
// throttled when a rate limit is configured.
func CreateEmbeddingService(settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	if settings == nil {
		return nil, fmt.Errorf("%w: embedding settings are required", domain.ErrInvalidArgument)
	}
	if !settings.IsConfigured() {
		if settings.Provider.RequiresAPIKey() {
			return nil, fmt.Errorf("%w: %s requires embedding.api_key", domain.ErrInvalidArgument, settings.Provider)
		}
		return nil, fmt.Errorf("%w: unsupported embedding provider: %q", domain.ErrInvalidArgument, settings.Provider)
	}

	var (
		svc driven.EmbeddingService
		err error
	)
	switch settings.Provider {
	case domain.EmbeddingProviderHashing:
		svc = hashing.New(settings.Dimensions)

	case domain.EmbeddingProviderOllama:
		svc = createOllamaEmbedding(settings)

	case domain.EmbeddingProviderOpenAI:
		svc, err = createOpenAIEmbedding(settings)
		if err != nil {
			return nil, err
		}
	}

	return ratelimit.Wrap(svc, settings.RateLimit), nil
}

// createOllamaEmbedding creates an Ollama embedding service.
func createOllamaEmbedding(settings *domain.EmbeddingSettings) driven.EmbeddingService {
	dimensions := settings.Dimensions
	if dimensions == 0 {
		dimensions = domain.EmbeddingDimensions()[settings.Model]
	}

	return ollamaembed.NewEmbeddingService(ollamaembed.Config{
		BaseURL:    settings.BaseURL,
		Model:      settings.Model,
		Dimensions: dimensions,
	})
}

// createOpenAIEmbedding creates an OpenAI embedding service.
func createOpenAIEmbedding(settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	dimensions := settings.Dimensions
	if dimensions == 0 {
		dimensions = domain.EmbeddingDimensions()[settings.Model]
	}

	return openaiembed.NewEmbeddingService(openaiembed.Config{
		APIKey:     settings.APIKey,
		BaseURL:    settings.BaseURL,
		Model:      settings.Model,
		Dimensions: dimensions,
	})
}

// CreateVectorIndex opens the configured index backend.
func CreateVectorIndex(ctx context.Context, settings *domain.AppSettings) (driven.VectorIndex, error) {
	switch settings.Index.Backend {
	case domain.IndexBackendSQLite, "":
		return sqliteindex.Open(settings.DataDir)

	case domain.IndexBackendMemory:
		return memoryindex.New(), nil

	case domain.IndexBackendChromem:
		if settings.DataDir == "" {
			return nil, fmt.Errorf("%w: chromem index requires data_dir", domain.ErrInvalidArgument)
		}
		return chromemindex.Open(chromemindex.Config{
			Path:       filepath.Join(settings.DataDir, chromemindex.Dir),
			Collection: settings.Index.Collection,
		})

	case domain.IndexBackendQdrant:
		return qdrantindex.Open(ctx, qdrantindex.Config{
			Host:       settings.Index.QdrantHost,
			Port:       settings.Index.QdrantPort,
			APIKey:     settings.Index.QdrantAPIKey,
			Collection: settings.Index.Collection,
		})

	default:
		return nil, fmt.Errorf("%w: unsupported index backend: %q", domain.ErrInvalidArgument, settings.Index.Backend)
	}
}

// CreateDocumentStore opens the catalogue. The memory index gets a
// memory catalogue so an ephemeral run leaves nothing on disk.
func CreateDocumentStore(settings *domain.AppSettings) (driven.DocumentStore, error) {
	if settings.Index.Backend == domain.IndexBackendMemory {
		return memory.NewDocumentStore(), nil
	}
	return sqlitestore.NewStore(settings.DataDir)
}

// checkIdentity reports an index bound to another model than the
// configured embedder. Queries against it would fail with a mismatch.
func checkIdentity(ctx context.Context, index driven.VectorIndex, svc driven.EmbeddingService) error {
	id, err := index.Identity(ctx)
	if err != nil {
		return err
	}
	if id.IsZero() {
		return nil
	}
	if err := id.Check(svc.Dimensions(), svc.ModelName()); err != nil {
		if errors.Is(err, domain.ErrDimensionMismatch) {
			return fmt.Errorf("index was built with %s, embedder is %s/%d; re-ingest or change embedding settings",
				id, svc.ModelName(), svc.Dimensions())
		}
		return err
	}
	return nil
}
