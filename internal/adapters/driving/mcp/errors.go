// Package mcp provides an MCP (Model Context Protocol) server adapter
// for docmoa. It lets AI assistants query the local document corpus
// through the hybrid search façade.
package mcp

import "errors"

// ErrMissingSearchService is returned when the search service is not provided.
var ErrMissingSearchService = errors.New("mcp: search service is required")
