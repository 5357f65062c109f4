package cli

import (
	"context"

	"github.com/moa-labs/docmoa/internal/core/domain"
	"github.com/moa-labs/docmoa/internal/core/ports/driven"
	"github.com/moa-labs/docmoa/internal/core/ports/driving"
)

// mockSearchService is a mock implementation of driving.SearchService.
type mockSearchService struct {
	response  *domain.SearchResponse
	err       error
	stats     domain.SearchStats
	lastQuery string
	lastOpts  domain.SearchOptions
}

func (m *mockSearchService) Search(
	_ context.Context,
	query string,
	opts domain.SearchOptions,
) (*domain.SearchResponse, error) {
	m.lastQuery = query
	m.lastOpts = opts
	if m.err != nil {
		return nil, m.err
	}
	if m.response == nil {
		return &domain.SearchResponse{Results: []domain.FusedResult{}}, nil
	}
	return m.response, nil
}

func (m *mockSearchService) InvalidateCache() {}

func (m *mockSearchService) Stats() domain.SearchStats {
	return m.stats
}

// mockIngestService is a mock implementation of driving.IngestService.
type mockIngestService struct {
	chunks    int
	err       error
	lastDoc   *domain.Document
	deletedID string
}

func (m *mockIngestService) Ingest(_ context.Context, doc *domain.Document) (int, error) {
	m.lastDoc = doc
	if m.err != nil {
		return 0, m.err
	}
	return m.chunks, nil
}

func (m *mockIngestService) Delete(_ context.Context, documentID string) error {
	m.deletedID = documentID
	return m.err
}

// injectServices wires mocks into the command globals so Execute runs
// without touching the real adapters. The returned cleanup restores
// the unwired state.
func injectServices(search driving.SearchService, ingest driving.IngestService, docs driven.DocumentStore) func() {
	searchService = search
	ingestService = ingest
	docStore = docs
	return func() {
		searchService = nil
		ingestService = nil
		docStore = nil
	}
}
