// Package services implements the driving port interfaces.
// Services contain the core business logic and orchestrate
// calls to driven ports (adapters).
//
//   - QueryEngine: embeds a question and searches the vector index
//   - IngestionPipeline: chunks, embeds and upserts one document
//   - FolderIngester: extracts the files of a folder and watches it
//   - DocumentService: the document catalogue
//   - SettingsService: maps config keys to domain.AppSettings
package services
