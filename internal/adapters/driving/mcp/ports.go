package mcp

import (
	"github.com/moa-labs/docmoa/internal/core/ports/driven"
	"github.com/moa-labs/docmoa/internal/core/ports/driving"
)

// Ports aggregates all port interfaces required by the MCP server.
// This provides a single injection point for dependency injection.
type Ports struct {
	// Search provides hybrid search capabilities.
	Search driving.SearchService

	// Ingest adds and removes documents. Optional; the ingest tool is
	// not registered when nil.
	Ingest driving.IngestService

	// Documents backs the document resources. Optional.
	Documents driven.DocumentStore
}

// Validate ensures all required ports are set.
// Returns an error if any required port is nil.
func (p *Ports) Validate() error {
	if p.Search == nil {
		return ErrMissingSearchService
	}
	// Ingest and Documents are optional
	return nil
}
