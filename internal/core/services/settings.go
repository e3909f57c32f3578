package services

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/sibila/internal/core/domain"
	"github.com/custodia-labs/sibila/internal/core/ports/driven"
	"github.com/custodia-labs/sibila/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	keyDataDir           = "data_dir"
	keyChunkSize         = "chunking.size"
	keyChunkOverlap      = "chunking.overlap"
	keyChunkProcessors   = "chunking.processors"
	keyEmbedProvider     = "embedding.provider"
	keyEmbedModel        = "embedding.model"
	keyEmbedBaseURL      = "embedding.base_url"
	keyEmbedAPIKey       = "embedding.api_key"
	keyEmbedDimensions   = "embedding.dimensions"
	keyEmbedRateLimit    = "embedding.rate_limit"
	keyIndexBackend      = "index.backend"
	keyIndexCollection   = "index.collection"
	keyIndexQdrantHost   = "index.qdrant_host"
	keyIndexQdrantPort   = "index.qdrant_port"
	keyIndexQdrantAPIKey = "index.qdrant_api_key"
	keyIngestWorkers     = "ingest.workers"
	keyIngestBatchSize   = "ingest.batch_size"
	keyIngestMaxAttempts = "ingest.max_attempts"
	keyIngestFileWorkers = "ingest.file_workers"
	keySearchTopK        = "search.top_k"
	keySearchMaxTopK     = "search.max_top_k"
	keySearchTimeoutMS   = "search.timeout_ms"
	keyServerAddr        = "server.addr"
)

// valueType describes how a setting is parsed from text.
type valueType int

const (
	typeString valueType = iota
	typeInt
	typeFloat
	typeList
	typeProvider
	typeBackend
)

var settingTypes = map[string]valueType{
	keyDataDir:           typeString,
	keyChunkSize:         typeInt,
	keyChunkOverlap:      typeInt,
	keyChunkProcessors:   typeList,
	keyEmbedProvider:     typeProvider,
	keyEmbedModel:        typeString,
	keyEmbedBaseURL:      typeString,
	keyEmbedAPIKey:       typeString,
	keyEmbedDimensions:   typeInt,
	keyEmbedRateLimit:    typeFloat,
	keyIndexBackend:      typeBackend,
	keyIndexCollection:   typeString,
	keyIndexQdrantHost:   typeString,
	keyIndexQdrantPort:   typeInt,
	keyIndexQdrantAPIKey: typeString,
	keyIngestWorkers:     typeInt,
	keyIngestBatchSize:   typeInt,
	keyIngestMaxAttempts: typeInt,
	keyIngestFileWorkers: typeInt,
	keySearchTopK:        typeInt,
	keySearchMaxTopK:     typeInt,
	keySearchTimeoutMS:   typeInt,
	keyServerAddr:        typeString,
}

// SettingsService manages application settings.
type SettingsService struct {
	configStore driven.ConfigStore
	validator   driven.EmbeddingValidator
}

// NewSettingsService creates a new settings service. The validator is
// optional; without it Validate only checks the values themselves.
func NewSettingsService(configStore driven.ConfigStore, validator driven.EmbeddingValidator) *SettingsService {
	return &SettingsService{
		configStore: configStore,
		validator:   validator,
	}
}

// Get retrieves current application settings with defaults applied.
func (s *SettingsService) Get() (*domain.AppSettings, error) {
	defaults := domain.DefaultAppSettings()

	provider := domain.EmbeddingProvider(s.getString(keyEmbedProvider, defaults.Embedding.Provider.String()))
	model := s.getString(keyEmbedModel, domain.DefaultEmbeddingModels()[provider])
	dimensions := s.getInt(keyEmbedDimensions, defaultDimensions(provider, model))

	settings := &domain.AppSettings{
		DataDir: s.getString(keyDataDir, filepath.Join(filepath.Dir(s.configStore.Path()), "data")),
		Chunking: domain.ChunkingSettings{
			Size:       s.getInt(keyChunkSize, defaults.Chunking.Size),
			Overlap:    s.getInt(keyChunkOverlap, defaults.Chunking.Overlap),
			Processors: s.getStrings(keyChunkProcessors, defaults.Chunking.Processors),
		},
		Embedding: domain.EmbeddingSettings{
			Provider:   provider,
			Model:      model,
			BaseURL:    s.configStore.GetString(keyEmbedBaseURL), // No default - adapters pick their own
			APIKey:     s.configStore.GetString(keyEmbedAPIKey),
			Dimensions: dimensions,
			RateLimit:  s.configStore.GetFloat(keyEmbedRateLimit),
		},
		Index: domain.IndexSettings{
			Backend:      domain.IndexBackend(s.getString(keyIndexBackend, defaults.Index.Backend.String())),
			Collection:   s.getString(keyIndexCollection, defaults.Index.Collection),
			QdrantHost:   s.getString(keyIndexQdrantHost, defaults.Index.QdrantHost),
			QdrantPort:   s.getInt(keyIndexQdrantPort, defaults.Index.QdrantPort),
			QdrantAPIKey: s.configStore.GetString(keyIndexQdrantAPIKey),
		},
		Ingest: domain.IngestSettings{
			Workers:     s.getInt(keyIngestWorkers, defaults.Ingest.Workers),
			BatchSize:   s.getInt(keyIngestBatchSize, defaults.Ingest.BatchSize),
			MaxAttempts: s.getInt(keyIngestMaxAttempts, defaults.Ingest.MaxAttempts),
			BaseBackoff: defaults.Ingest.BaseBackoff,
			MaxBackoff:  defaults.Ingest.MaxBackoff,
			FileWorkers: s.getInt(keyIngestFileWorkers, defaults.Ingest.FileWorkers),
		},
		Search: domain.SearchSettings{
			TopK:    s.getInt(keySearchTopK, defaults.Search.TopK),
			MaxTopK: s.getInt(keySearchMaxTopK, defaults.Search.MaxTopK),
			Timeout: time.Duration(s.getInt(keySearchTimeoutMS, int(defaults.Search.Timeout/time.Millisecond))) * time.Millisecond,
		},
		Server: domain.ServerSettings{
			Addr: s.getString(keyServerAddr, defaults.Server.Addr),
		},
	}

	return settings, nil
}

// Set parses value according to the key and stores it.
func (s *SettingsService) Set(key, value string) error {
	typ, ok := settingTypes[key]
	if !ok {
		return fmt.Errorf("%w: unknown setting %q", domain.ErrInvalidArgument, key)
	}
	value = strings.TrimSpace(value)

	var parsed any
	switch typ {
	case typeInt:
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%w: %s must be an integer, got %q", domain.ErrInvalidArgument, key, value)
		}
		if n < 0 {
			return fmt.Errorf("%w: %s must not be negative", domain.ErrInvalidArgument, key)
		}
		parsed = n
	case typeFloat:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("%w: %s must be a number, got %q", domain.ErrInvalidArgument, key, value)
		}
		parsed = f
	case typeList:
		parsed = splitList(value)
	case typeProvider:
		if !domain.EmbeddingProvider(value).IsValid() {
			return fmt.Errorf("%w: invalid embedding provider: %s", domain.ErrInvalidArgument, value)
		}
		parsed = value
	case typeBackend:
		if !domain.IndexBackend(value).IsValid() {
			return fmt.Errorf("%w: invalid index backend: %s", domain.ErrInvalidArgument, value)
		}
		parsed = value
	default:
		parsed = value
	}

	if err := s.configStore.Set(key, parsed); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

// Keys returns every supported setting key in sorted order.
func (s *SettingsService) Keys() []string {
	keys := make([]string, 0, len(settingTypes))
	for k := range settingTypes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Validate checks the settings are usable. When a validator is set the
// embedding provider is also pinged.
func (s *SettingsService) Validate() error {
	settings, err := s.Get()
	if err != nil {
		return err
	}

	var errs []error
	invalid := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{domain.ErrInvalidArgument}, args...)...))
	}

	if !settings.Embedding.Provider.IsValid() {
		invalid("invalid embedding provider: %s", settings.Embedding.Provider)
	} else if !settings.Embedding.IsConfigured() {
		invalid("embedding provider %s requires %s", settings.Embedding.Provider, keyEmbedAPIKey)
	}
	if !settings.Index.Backend.IsValid() {
		invalid("invalid index backend: %s", settings.Index.Backend)
	}
	if settings.Chunking.Size <= 0 {
		invalid("%s must be positive", keyChunkSize)
	}
	if settings.Chunking.Overlap >= settings.Chunking.Size {
		invalid("%s must be smaller than %s", keyChunkOverlap, keyChunkSize)
	}
	if settings.Search.TopK > settings.Search.MaxTopK {
		invalid("%s must not exceed %s", keySearchTopK, keySearchMaxTopK)
	}
	if settings.Ingest.Workers <= 0 || settings.Ingest.BatchSize <= 0 || settings.Ingest.MaxAttempts <= 0 {
		invalid("ingest settings must be positive")
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}

	if s.validator == nil {
		return nil
	}
	return s.validator.ValidateEmbedding(&settings.Embedding)
}

// Helper methods for reading config with defaults.

func (s *SettingsService) getString(key, defaultVal string) string {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getInt(key string, defaultVal int) int {
	val := s.configStore.GetInt(key)
	if val == 0 {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getStrings(key string, defaultVal []string) []string {
	val := s.configStore.GetStringSlice(key)
	if len(val) == 0 {
		return defaultVal
	}
	return val
}

// defaultDimensions returns the vector size of a known model. Unknown
// remote models report their own size, so zero is returned.
func defaultDimensions(provider domain.EmbeddingProvider, model string) int {
	if provider == domain.EmbeddingProviderHashing {
		return domain.DefaultAppSettings().Embedding.Dimensions
	}
	return domain.EmbeddingDimensions()[model]
}

// splitList parses a comma separated list, dropping empty items.
func splitList(value string) []string {
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
