// Package mcp provides an MCP (Model Context Protocol) server adapter for sibila.
// It lets AI assistants search the legal corpus and add documents to it.
package mcp

import "errors"

// ErrMissingQueryService is returned when the query service is not provided.
var ErrMissingQueryService = errors.New("mcp: query service is required")
