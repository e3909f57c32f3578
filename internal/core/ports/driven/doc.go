// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
//   - EmbeddingService: Maps text to vectors (hashing, Ollama, OpenAI)
//   - VectorIndex: Persistent chunk store with filtered similarity search
//   - PostProcessorPipeline: Splits documents into chunks
//   - ConfigStore: Application configuration
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - DocumentStore: Catalogue of ingested documents. Without it, document
//     listing and stale chunk cleanup are disabled.
//   - TextExtractor / MetadataReader: Only needed for folder ingestion.
//   - Connector: Only needed for folder ingestion and watch mode.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter, connector, or normaliser package
package driven
