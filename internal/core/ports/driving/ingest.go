package driving

import (
	"context"

	"github.com/moa-labs/docmoa/internal/core/domain"
)

// IngestService manages the document lifecycle: chunking, embedding,
// indexing into both retrieval paths, and cache invalidation.
type IngestService interface {
	// Ingest chunks, embeds and indexes a document. Re-ingesting an
	// existing document purges its old chunks first.
	Ingest(ctx context.Context, doc *domain.Document) (int, error)

	// Delete removes a document and its chunks from the store and from
	// both indices.
	Delete(ctx context.Context, documentID string) error
}
