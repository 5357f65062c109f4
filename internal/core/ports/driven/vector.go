package driven

import "context"

// VectorIndex provides semantic similarity search operations over
// chunk embeddings. The similarity metric is fixed at index creation
// and must match the embedding model's training objective.
//
// The chunk-to-metadata mapping needed for filtering is maintained by
// the implementation; the fusion engine only ever sees chunk IDs.
type VectorIndex interface {
	// Add inserts a vector for the given chunk ID together with the
	// metadata used for filtered search.
	Add(ctx context.Context, chunkID string, embedding []float32, metadata map[string]any) error

	// Delete removes a vector from the index.
	Delete(ctx context.Context, chunkID string) error

	// Search finds the k most similar chunks to the query vector,
	// ordered by descending similarity. Filters restrict candidates
	// by exact-match metadata fields; implementations may over-fetch
	// and post-filter to satisfy the limit.
	Search(ctx context.Context, query []float32, k int, filters map[string]any) ([]VectorHit, error)

	// Len returns the number of indexed vectors.
	Len() int

	// Close releases resources.
	Close() error
}

// VectorHit represents a similarity search result.
type VectorHit struct {
	// ChunkID is the matched chunk.
	ChunkID string

	// Similarity is the cosine similarity score (0-1).
	// Only comparable to other similarity scores.
	Similarity float64
}
