package driven

import (
	"context"

	"github.com/moa-labs/docmoa/internal/core/domain"
)

// LexicalIndex provides full-text search operations.
// Backed by SQLite FTS5 for BM25-style keyword search.
//
// Query normalization (tokenization, stopword and particle handling)
// happens inside the implementation; callers pass raw query text.
type LexicalIndex interface {
	// Index adds or updates a chunk in the search index.
	// Safe to call while queries are in flight.
	Index(ctx context.Context, chunk domain.Chunk) error

	// Delete removes a chunk from the search index.
	Delete(ctx context.Context, chunkID string) error

	// Search performs a keyword search and returns matching chunk IDs
	// ordered by descending relevance. Filters restrict candidates by
	// exact-match metadata fields before ranking.
	Search(ctx context.Context, query string, limit int, filters map[string]any) ([]LexicalHit, error)

	// Close releases resources.
	Close() error
}

// LexicalHit represents a full-text search result.
type LexicalHit struct {
	// ChunkID is the matched chunk.
	ChunkID string

	// Score is the relevance score (BM25-style, higher is better).
	// Only comparable to other lexical scores.
	Score float64
}
