package domain

import "time"

const unknownDescription = "Unknown"

// EmbeddingProvider identifies the service that produces embeddings.
type EmbeddingProvider string

// Available embedding providers.
const (
	// EmbeddingProviderHashing is the built-in local feature-hashing embedder.
	EmbeddingProviderHashing EmbeddingProvider = "hashing"

	// EmbeddingProviderOllama is a local Ollama instance.
	EmbeddingProviderOllama EmbeddingProvider = "ollama"

	// EmbeddingProviderOpenAI is the OpenAI API or a compatible server.
	EmbeddingProviderOpenAI EmbeddingProvider = "openai"
)

// IsValid returns true if the provider is recognised.
func (p EmbeddingProvider) IsValid() bool {
	switch p {
	case EmbeddingProviderHashing, EmbeddingProviderOllama, EmbeddingProviderOpenAI:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if the provider needs an API key.
func (p EmbeddingProvider) RequiresAPIKey() bool {
	return p == EmbeddingProviderOpenAI
}

// String returns the string representation.
func (p EmbeddingProvider) String() string {
	return string(p)
}

// Description returns a human-readable description of the provider.
func (p EmbeddingProvider) Description() string {
	switch p {
	case EmbeddingProviderHashing:
		return "Hashing (built-in, offline)"
	case EmbeddingProviderOllama:
		return "Ollama (local)"
	case EmbeddingProviderOpenAI:
		return "OpenAI (cloud)"
	default:
		return unknownDescription
	}
}

// IndexBackend identifies the storage engine behind the vector index.
type IndexBackend string

// Available index backends.
const (
	// IndexBackendSQLite stores entries in an embedded SQLite database.
	IndexBackendSQLite IndexBackend = "sqlite"

	// IndexBackendMemory keeps entries in process memory only.
	IndexBackendMemory IndexBackend = "memory"

	// IndexBackendChromem stores entries in an embedded chromem-go database.
	IndexBackendChromem IndexBackend = "chromem"

	// IndexBackendQdrant stores entries in a Qdrant server.
	IndexBackendQdrant IndexBackend = "qdrant"
)

// IsValid returns true if the backend is recognised.
func (b IndexBackend) IsValid() bool {
	switch b {
	case IndexBackendSQLite, IndexBackendMemory, IndexBackendChromem, IndexBackendQdrant:
		return true
	default:
		return false
	}
}

// IsPersistent reports whether entries survive a restart.
func (b IndexBackend) IsPersistent() bool {
	return b != IndexBackendMemory
}

// String returns the string representation.
func (b IndexBackend) String() string {
	return string(b)
}

// ChunkingSettings configures the chunker.
type ChunkingSettings struct {
	// Size is the maximum chunk length in runes.
	Size int

	// Overlap is the number of runes repeated at the start of the next chunk.
	Overlap int

	// Processors is the ordered list of post-processors to run.
	Processors []string
}

// EmbeddingSettings holds embedding provider configuration.
type EmbeddingSettings struct {
	// Provider is the embedding service provider.
	Provider EmbeddingProvider

	// Model is the embedding model name.
	Model string

	// BaseURL is the API endpoint (Ollama, OpenAI-compatible servers).
	BaseURL string

	// APIKey is the API key (OpenAI).
	APIKey string

	// Dimensions is the vector size. Used by the hashing embedder and to
	// request shortened vectors from providers that support it.
	Dimensions int

	// RateLimit caps embedding requests per second. Zero disables it.
	RateLimit float64
}

// IsConfigured returns true if the embedding provider is set up.
func (e EmbeddingSettings) IsConfigured() bool {
	if !e.Provider.IsValid() {
		return false
	}
	if e.Provider.RequiresAPIKey() && e.APIKey == "" {
		return false
	}
	return true
}

// IndexSettings holds vector index configuration.
type IndexSettings struct {
	// Backend selects the storage engine.
	Backend IndexBackend

	// Collection names the chromem or Qdrant collection.
	Collection string

	// QdrantHost is the Qdrant gRPC host.
	QdrantHost string

	// QdrantPort is the Qdrant gRPC port.
	QdrantPort int

	// QdrantAPIKey authenticates against Qdrant Cloud.
	QdrantAPIKey string
}

// IngestSettings controls ingestion concurrency and retries.
type IngestSettings struct {
	// Workers bounds concurrent embedding batches.
	Workers int

	// BatchSize is the number of chunks per embedding request.
	BatchSize int

	// MaxAttempts is the retry limit for transient embedding failures.
	MaxAttempts int

	// BaseBackoff is the first retry delay; later delays double.
	BaseBackoff time.Duration

	// MaxBackoff caps a single retry delay.
	MaxBackoff time.Duration

	// FileWorkers bounds concurrently processed files in folder ingestion.
	FileWorkers int
}

// SearchSettings holds query behaviour configuration.
type SearchSettings struct {
	// TopK is the number of results when the caller does not specify one.
	TopK int

	// MaxTopK clamps caller supplied values.
	MaxTopK int

	// Timeout bounds the query embedding call.
	Timeout time.Duration
}

// ServerSettings configures the HTTP transport.
type ServerSettings struct {
	// Addr is the listen address.
	Addr string
}

// AppSettings holds all application settings.
type AppSettings struct {
	// DataDir holds the index, the catalogue and uploaded files.
	DataDir string

	Chunking  ChunkingSettings
	Embedding EmbeddingSettings
	Index     IndexSettings
	Ingest    IngestSettings
	Search    SearchSettings
	Server    ServerSettings
}

// Defaults used when configuration does not provide a value.
const (
	DefaultChunkSize    = 1500
	DefaultChunkOverlap = 150
	DefaultTopK         = 8
	DefaultMaxTopK      = 50
)

// DefaultAppSettings returns settings with sensible defaults.
// The built-in hashing embedder and the SQLite index work offline.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		Chunking: ChunkingSettings{
			Size:       DefaultChunkSize,
			Overlap:    DefaultChunkOverlap,
			Processors: []string{"chunker", "annotate"},
		},
		Embedding: EmbeddingSettings{
			Provider:   EmbeddingProviderHashing,
			Model:      "hashing-v1",
			Dimensions: 384,
		},
		Index: IndexSettings{
			Backend:    IndexBackendSQLite,
			Collection: "sibila",
			QdrantHost: "localhost",
			QdrantPort: 6334,
		},
		Ingest: IngestSettings{
			Workers:     4,
			BatchSize:   16,
			MaxAttempts: 4,
			BaseBackoff: 200 * time.Millisecond,
			MaxBackoff:  5 * time.Second,
			FileWorkers: 2,
		},
		Search: SearchSettings{
			TopK:    DefaultTopK,
			MaxTopK: DefaultMaxTopK,
			Timeout: 10 * time.Second,
		},
		Server: ServerSettings{
			Addr: ":8000",
		},
	}
}

// AllEmbeddingProviders returns the supported embedding providers.
func AllEmbeddingProviders() []EmbeddingProvider {
	return []EmbeddingProvider{
		EmbeddingProviderHashing,
		EmbeddingProviderOllama,
		EmbeddingProviderOpenAI,
	}
}

// DefaultEmbeddingModels returns default models for each embedding provider.
func DefaultEmbeddingModels() map[EmbeddingProvider]string {
	return map[EmbeddingProvider]string{
		EmbeddingProviderHashing: "hashing-v1",
		EmbeddingProviderOllama:  "nomic-embed-text",
		EmbeddingProviderOpenAI:  "text-embedding-3-small",
	}
}

// EmbeddingDimensions returns the vector dimensions for known models.
func EmbeddingDimensions() map[string]int {
	return map[string]int{
		// Ollama models
		"nomic-embed-text":  768,
		"mxbai-embed-large": 1024,
		"all-minilm":        384,
		// OpenAI models
		"text-embedding-3-small": 1536,
		"text-embedding-3-large": 3072,
		"text-embedding-ada-002": 1536,
	}
}

// PipelineConfig holds post-processor pipeline configuration.
// Uses generic map-based config so new processors can be added
// without modifying this struct.
type PipelineConfig struct {
	// Processors is the ordered list of processor names to run.
	Processors []string

	// ProcessorConfigs holds per-processor configuration as generic maps.
	ProcessorConfigs map[string]map[string]any
}

// GetProcessorConfig returns config for a specific processor, or nil if not set.
func (c *PipelineConfig) GetProcessorConfig(name string) map[string]any {
	if c.ProcessorConfigs == nil {
		return nil
	}
	return c.ProcessorConfigs[name]
}

// PipelineConfig derives the post-processor configuration from chunking settings.
func (c ChunkingSettings) PipelineConfig() PipelineConfig {
	return PipelineConfig{
		Processors: c.Processors,
		ProcessorConfigs: map[string]map[string]any{
			"chunker": {
				"chunk_size": c.Size,
				"overlap":    c.Overlap,
			},
		},
	}
}
