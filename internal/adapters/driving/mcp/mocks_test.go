package mcp

import (
	"context"

	"github.com/moa-labs/docmoa/internal/core/domain"
)

// mockSearchService is a mock implementation of driving.SearchService.
type mockSearchService struct {
	response        *domain.SearchResponse
	err             error
	stats           domain.SearchStats
	lastQuery       string
	lastOpts        domain.SearchOptions
	invalidateCalls int
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

func (m *mockSearchService) InvalidateCache() {
	m.invalidateCalls++
}

func (m *mockSearchService) Stats() domain.SearchStats {
	return m.stats
}

// mockIngestService is a mock implementation of driving.IngestService.
type mockIngestService struct {
	chunks  int
	err     error
	lastDoc *domain.Document
}

func (m *mockIngestService) Ingest(_ context.Context, doc *domain.Document) (int, error) {
	m.lastDoc = doc
	if m.err != nil {
		return 0, m.err
	}
	return m.chunks, nil
}

func (m *mockIngestService) Delete(_ context.Context, _ string) error {
	return m.err
}
