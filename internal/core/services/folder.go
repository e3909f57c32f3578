package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/sibila/internal/core/domain"
	"github.com/custodia-labs/sibila/internal/core/ports/driven"
	"github.com/custodia-labs/sibila/internal/core/ports/driving"
	"github.com/custodia-labs/sibila/internal/logger"
)

// Ensure FolderIngester implements the interface.
var _ driving.FolderIngester = (*FolderIngester)(nil)

// ConnectorFunc opens a connector for a root folder.
type ConnectorFunc func(root string) driven.Connector

// FolderIngester extracts the files of a folder and feeds them to the
// ingestion service.
type FolderIngester struct {
	ingester   driving.IngestionService
	extractors driven.ExtractorRegistry
	sidecars   driven.MetadataReader
	connect    ConnectorFunc
	workers    int
}

// NewFolderIngester creates a folder ingester. The sidecar reader is
// optional; without it every document only carries its filename.
func NewFolderIngester(
	ingester driving.IngestionService,
	extractors driven.ExtractorRegistry,
	sidecars driven.MetadataReader,
	connect ConnectorFunc,
	workers int,
) *FolderIngester {
	if workers <= 0 {
		workers = domain.DefaultAppSettings().Ingest.FileWorkers
	}
	return &FolderIngester{
		ingester:   ingester,
		extractors: extractors,
		sidecars:   sidecars,
		connect:    connect,
		workers:    workers,
	}
}

// fileOutcome is the result of ingesting one file.
type fileOutcome struct {
	report  *domain.IngestReport
	skipped bool
	err     error
}

// IngestFolder scans root once and ingests every supported file.
func (f *FolderIngester) IngestFolder(ctx context.Context, root string) (*domain.FolderSummary, error) {
	logger.Section("Folder Ingestion")

	conn := f.connect(root)
	defer conn.Close()
	if err := conn.Validate(ctx); err != nil {
		return nil, err
	}

	scanCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	files, errs := conn.Scan(scanCtx)

	summary := &domain.FolderSummary{}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(scanCtx)
	g.SetLimit(f.workers)

	for file := range files {
		if !f.candidate(file.Path) {
			continue
		}
		summary.FilesSeen++
		g.Go(func() error {
			outcome := f.ingestFile(gctx, file)
			mu.Lock()
			defer mu.Unlock()
			record(summary, file, outcome)
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(summary.Failures, func(i, j int) bool { return summary.Failures[i].Path < summary.Failures[j].Path })
	sort.Slice(summary.Reports, func(i, j int) bool { return summary.Reports[i].DocumentID < summary.Reports[j].DocumentID })

	if err := <-errs; err != nil {
		return summary, fmt.Errorf("scan %s: %w", root, err)
	}
	if err := ctx.Err(); err != nil {
		return summary, err
	}

	logger.Info("Folder %s: %d files, %d ingested, %d skipped, %d chunks, %d failures",
		root, summary.FilesSeen, summary.DocumentsIngested, summary.DocumentsSkipped,
		summary.ChunksUpserted, len(summary.Failures))
	return summary, nil
}

// Watch re-ingests changed files and removes deleted ones until ctx is
// cancelled. A sidecar change re-ingests the document it describes.
func (f *FolderIngester) Watch(ctx context.Context, root string, onChange func(domain.FileChange, error)) error {
	conn := f.connect(root)
	defer conn.Close()
	if err := conn.Validate(ctx); err != nil {
		return err
	}

	changes, err := conn.Watch(ctx)
	if err != nil {
		return fmt.Errorf("watch %s: %w", root, err)
	}
	logger.Info("Watching %s", root)

	for {
		select {
		case <-ctx.Done():
			return nil
		case change, ok := <-changes:
			if !ok {
				return nil
			}
			err := f.handleChange(ctx, change)
			if err != nil {
				logger.Warn("%s %s: %v", change.Type, change.File.Path, err)
			}
			if onChange != nil {
				onChange(change, err)
			}
		}
	}
}

// handleChange applies one file change to the index.
func (f *FolderIngester) handleChange(ctx context.Context, change domain.FileChange) error {
	if f.sidecars != nil {
		if base, ok := f.sidecars.IsSidecar(change.File.Path); ok {
			return f.reingestOwners(ctx, change.File, base)
		}
	}
	if !f.candidate(change.File.Path) {
		return nil
	}

	if change.Type == domain.ChangeDeleted {
		err := f.ingester.Remove(ctx, change.File.DocumentID())
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return err
	}

	outcome := f.ingestFile(ctx, change.File)
	if outcome.skipped {
		logger.Warn("%s has no extractable text, skipping", change.File.Path)
	}
	return outcome.err
}

// reingestOwners re-ingests every source file the sidecar at base describes.
func (f *FolderIngester) reingestOwners(ctx context.Context, sidecar domain.SourceFile, base string) error {
	var errs []error
	for _, ext := range f.extractors.Extensions() {
		path := base + ext
		info, err := os.Stat(path)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		owner := domain.SourceFile{Path: path, Root: sidecar.Root, Extension: ext}
		logger.Debug("Sidecar %s changed, re-ingesting %s", sidecar.Path, path)
		if outcome := f.ingestFile(ctx, owner); outcome.err != nil {
			errs = append(errs, outcome.err)
		}
	}
	return errors.Join(errs...)
}

// candidate reports whether path is a supported source file.
func (f *FolderIngester) candidate(path string) bool {
	if f.sidecars != nil {
		if _, ok := f.sidecars.IsSidecar(path); ok {
			return false
		}
	}
	_, ok := f.extractors.Get(strings.ToLower(filepath.Ext(path)))
	return ok
}

// ingestFile extracts one file and ingests it. Files without text are skipped.
func (f *FolderIngester) ingestFile(ctx context.Context, file domain.SourceFile) fileOutcome {
	doc, err := f.buildDocument(ctx, file)
	if err != nil {
		return fileOutcome{err: err}
	}
	if doc == nil {
		return fileOutcome{skipped: true}
	}

	report, err := f.ingester.Ingest(ctx, doc)
	return fileOutcome{report: report, err: err}
}

// buildDocument extracts the text of file and reads its sidecar. It
// returns nil when the file has no extractable text.
func (f *FolderIngester) buildDocument(ctx context.Context, file domain.SourceFile) (*domain.Document, error) {
	extractor, ok := f.extractors.Get(file.Extension)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedType, file.Extension)
	}

	text, err := extractor.Extract(ctx, file.Path)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", file.Path, err)
	}
	text = domain.CleanText(text)
	if text == "" {
		return nil, nil
	}

	name := filepath.Base(file.Path)
	meta := f.readMetadata(ctx, file.Path, name)
	title := meta.String("title")
	if title == "" {
		title = name
	}

	return &domain.Document{
		ID:       file.DocumentID(),
		URI:      file.Path,
		Title:    title,
		Content:  text,
		Metadata: meta,
	}, nil
}

// readMetadata loads the sidecar of path. A missing or malformed sidecar
// yields only the filename.
func (f *FolderIngester) readMetadata(ctx context.Context, path, name string) domain.Metadata {
	raw := map[string]any{}
	if f.sidecars != nil {
		data, err := f.sidecars.Read(ctx, path)
		if err != nil {
			logger.Warn("Ignoring metadata of %s: %v", name, err)
		} else {
			for k, v := range data {
				raw[k] = v
			}
		}
	}

	meta := domain.NormaliseMetadata(raw)
	if meta.String(domain.MetaFilename) == "" {
		meta[domain.MetaFilename] = name
	}
	return meta
}

// record adds the outcome of one file to the summary.
func record(summary *domain.FolderSummary, file domain.SourceFile, outcome fileOutcome) {
	switch {
	case outcome.skipped:
		logger.Warn("%s has no extractable text, skipping", file.Path)
		summary.DocumentsSkipped++
	case outcome.report != nil:
		summary.DocumentsIngested++
		summary.ChunksUpserted += len(outcome.report.Upserted)
		summary.Reports = append(summary.Reports, *outcome.report)
	}
	if outcome.err != nil {
		logger.Warn("Failed to ingest %s: %v", file.Path, outcome.err)
		summary.Failures = append(summary.Failures, domain.FileFailure{
			Path: file.Path,
			Kind: domain.KindOf(outcome.err),
			Err:  outcome.err.Error(),
		})
	}
}
