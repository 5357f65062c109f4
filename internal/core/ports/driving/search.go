package driving

import (
	"context"

	"github.com/moa-labs/docmoa/internal/core/domain"
)

// SearchService provides hybrid search capabilities to external actors.
type SearchService interface {
	// Search performs hybrid search across all indexed chunks and
	// returns a fused, ranked result list. A response with Degraded set
	// means one retrieval path failed; an ErrAllPathsFailed error means
	// both did.
	Search(ctx context.Context, query string, opts domain.SearchOptions) (*domain.SearchResponse, error)

	// InvalidateCache drops all cached results. Called by the ingestion
	// pipeline whenever the corpus changes.
	InvalidateCache()

	// Stats reports operational counters for observability.
	Stats() domain.SearchStats
}
