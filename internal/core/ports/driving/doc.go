// Package driving defines the interfaces that external actors call INTO core.
//
// These are the "driving" or "primary" ports in hexagonal architecture.
// The CLI, HTTP, MCP and TUI adapters depend on these interfaces; core
// services implement them.
//
//   - QueryService: Semantic search under metadata filters
//   - IngestionService: Makes a single document searchable
//   - FolderIngester: Ingests and watches a folder of source files
//   - DocumentService: Catalogue listing, inspection and deletion
//   - SettingsService: Application settings
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter or driven port implementation
package driving
