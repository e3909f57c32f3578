// Package file provides the file-based ConfigStore.
//
// Settings live in ~/.sibila/config.toml as TOML tables and are read back
// as dot-notation keys. SIBILA_* environment variables override file
// values without being persisted; LoadDotEnv seeds them from .env files.
package file
