// Sibila is a semantic search engine for legal documents.
//
// Usage:
//
//	sibila ingest ./rulings        # index a folder
//	sibila query "despido improcedente" --filter tribunal=TS
//	sibila serve                   # HTTP API on :8000
//	sibila tui                     # interactive search
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/custodia-labs/sibila/internal/adapters/driven/ai"
	"github.com/custodia-labs/sibila/internal/adapters/driven/config/file"
	"github.com/custodia-labs/sibila/internal/adapters/driving/cli"
	"github.com/custodia-labs/sibila/internal/connectors/filesystem"
	"github.com/custodia-labs/sibila/internal/core/ports/driven"
	"github.com/custodia-labs/sibila/internal/core/ports/driving"
	"github.com/custodia-labs/sibila/internal/core/services"
	"github.com/custodia-labs/sibila/internal/logger"
	"github.com/custodia-labs/sibila/internal/metrics"
	"github.com/custodia-labs/sibila/internal/normalisers"
	"github.com/custodia-labs/sibila/internal/normalisers/sidecar"
	"github.com/custodia-labs/sibila/internal/postprocessors"
)

// Version information (set via ldflags during build)
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	cli.SetVersion(version)
	cli.SetBootstrap(bootstrap)

	err := cli.Execute(ctx)
	stop()
	logger.Sync()
	if err != nil {
		os.Exit(1)
	}
}

// bootstrap wires the adapters into the core services.
func bootstrap(ctx context.Context, configDir string, settingsOnly bool) (*cli.Services, func(), error) {
	if configDir == "" {
		dir, err := file.DefaultDir()
		if err != nil {
			return nil, nil, fmt.Errorf("resolving config dir: %w", err)
		}
		configDir = dir
	}
	if err := file.LoadDotEnv(".env", filepath.Join(configDir, ".env")); err != nil {
		return nil, nil, err
	}

	store, err := file.NewConfigStore(configDir)
	if err != nil {
		return nil, nil, fmt.Errorf("opening config: %w", err)
	}
	settingsService := services.NewSettingsService(store, ai.NewConfigValidator())
	if settingsOnly {
		return &cli.Services{Settings: settingsService}, func() {}, nil
	}

	settings, err := settingsService.Get()
	if err != nil {
		return nil, nil, fmt.Errorf("loading settings: %w", err)
	}

	result, err := ai.Initialise(ctx, settings)
	if err != nil {
		return nil, nil, err
	}

	pipeline, err := postprocessors.FromConfig(postprocessors.NewDefaultRegistry(), settings.Chunking.PipelineConfig())
	if err != nil {
		result.Close()
		return nil, nil, fmt.Errorf("building chunking pipeline: %w", err)
	}

	m := metrics.New()

	ingester := services.NewIngestionPipeline(
		pipeline, result.EmbeddingService, result.VectorIndex, result.DocumentStore, settings.Ingest,
	)
	ingester.SetMetrics(m)

	query := services.NewQueryEngine(result.EmbeddingService, result.VectorIndex, settings.Search)
	query.SetMetrics(m)

	extractors := normalisers.NewDefaultRegistry()
	sidecars := sidecar.New()
	fileWorkers := settings.Ingest.FileWorkers
	folderFor := func(target driving.IngestionService) driving.FolderIngester {
		return services.NewFolderIngester(target, extractors, sidecars, func(root string) driven.Connector {
			return filesystem.New(root)
		}, fileWorkers)
	}

	return &cli.Services{
		Query:     query,
		Ingester:  ingester,
		Folder:    folderFor(ingester),
		Documents: services.NewDocumentService(result.DocumentStore, ingester),
		Settings:  settingsService,
		Metrics:   m,
		FolderFor: folderFor,
		DataDir:   settings.DataDir,
		Addr:      settings.Server.Addr,
	}, result.Close, nil
}
