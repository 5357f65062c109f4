// Package vector provides an in-memory exact nearest-neighbour index
// over chunk embeddings. Vectors are L2-normalized on insert so cosine
// similarity reduces to a dot product at query time. The corpus sizes
// docmoa targets (thousands to low tens-of-thousands of chunks) make a
// brute-force scan cheaper than maintaining an ANN structure.
package vector

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/moa-labs/docmoa/internal/core/domain"
	"github.com/moa-labs/docmoa/internal/core/ports/driven"
)

// Ensure Index implements the interface.
var _ driven.VectorIndex = (*Index)(nil)

// DefaultOverfetchFactor is how many times the requested limit the
// filtered search examines before falling back to a full scan. Higher
// values trade latency for filtered recall.
const DefaultOverfetchFactor = 4

// entry is one indexed vector with its filter metadata.
type entry struct {
	chunkID   string
	embedding []float32
	metadata  map[string]any
}

// Index is an in-memory cosine similarity index.
type Index struct {
	mu        sync.RWMutex
	dimension int
	overfetch int
	entries   map[string]*entry
	closed    bool
}

// Option configures the index.
type Option func(*Index)

// WithOverfetchFactor sets the over-fetch factor for filtered searches.
func WithOverfetchFactor(factor int) Option {
	return func(idx *Index) {
		if factor > 0 {
			idx.overfetch = factor
		}
	}
}

// New creates an index for vectors of the given dimension.
// The dimension is fixed for the lifetime of the index; changing the
// embedding model requires a full rebuild.
func New(dimension int, opts ...Option) (*Index, error) {
	if dimension <= 0 {
		return nil, errors.New("vector: dimension must be positive")
	}

	idx := &Index{
		dimension: dimension,
		overfetch: DefaultOverfetchFactor,
		entries:   make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx, nil
}

// Add inserts or replaces the vector for a chunk ID.
// The embedding is normalized in place to unit length.
func (idx *Index) Add(_ context.Context, chunkID string, embedding []float32, metadata map[string]any) error {
	if len(embedding) != idx.dimension {
		return fmt.Errorf("%w: got %d, index dimension %d",
			domain.ErrDimensionMismatch, len(embedding), idx.dimension)
	}

	normalized := normalize(embedding)

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.closed {
		return errors.New("vector: index is closed")
	}

	idx.entries[chunkID] = &entry{
		chunkID:   chunkID,
		embedding: normalized,
		metadata:  metadata,
	}
	return nil
}

// Delete removes a vector from the index. Unknown IDs are a no-op.
func (idx *Index) Delete(_ context.Context, chunkID string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.closed {
		return errors.New("vector: index is closed")
	}

	delete(idx.entries, chunkID)
	return nil
}

// Search returns the k most similar chunks, descending by similarity
// with chunk ID as the deterministic tie-break.
//
// With filters, the top limit*overfetch scored candidates are
// post-filtered first; if that window cannot fill the limit and
// unexamined candidates remain, the scan continues through the rest,
// so enough matching candidates in the corpus always fill the limit.
func (idx *Index) Search(_ context.Context, query []float32, k int, filters map[string]any) ([]driven.VectorHit, error) {
	if len(query) != idx.dimension {
		return nil, fmt.Errorf("%w: got %d, index dimension %d",
			domain.ErrDimensionMismatch, len(query), idx.dimension)
	}
	if k <= 0 {
		return []driven.VectorHit{}, nil
	}

	normalizedQuery := normalize(query)

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if idx.closed {
		return nil, errors.New("vector: index is closed")
	}

	scored := make([]driven.VectorHit, 0, len(idx.entries))
	matches := make(map[string]bool, len(idx.entries))
	for id, e := range idx.entries {
		scored = append(scored, driven.VectorHit{
			ChunkID:    id,
			Similarity: dot(normalizedQuery, e.embedding),
		})
		matches[id] = matchesFilters(e.metadata, filters)
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Similarity != scored[j].Similarity {
			return scored[i].Similarity > scored[j].Similarity
		}
		return scored[i].ChunkID < scored[j].ChunkID
	})

	if len(filters) == 0 {
		if len(scored) > k {
			scored = scored[:k]
		}
		return scored, nil
	}

	window := k * idx.overfetch
	if window > len(scored) {
		window = len(scored)
	}

	hits := make([]driven.VectorHit, 0, k)
	for _, hit := range scored[:window] {
		if matches[hit.ChunkID] {
			hits = append(hits, hit)
			if len(hits) == k {
				return hits, nil
			}
		}
	}
	// Escalate past the over-fetch window so filtering never
	// under-returns while matching candidates remain.
	for _, hit := range scored[window:] {
		if matches[hit.ChunkID] {
			hits = append(hits, hit)
			if len(hits) == k {
				break
			}
		}
	}
	return hits, nil
}

// Len returns the number of indexed vectors.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.entries)
}

// Close releases the index contents.
func (idx *Index) Close() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.entries = nil
	idx.closed = true
	return nil
}

// matchesFilters reports whether metadata satisfies every filter with
// an exact match. Values are compared via fmt to tolerate numeric type
// differences between ingestion and query time.
func matchesFilters(metadata, filters map[string]any) bool {
	for key, want := range filters {
		got, ok := metadata[key]
		if !ok {
			return false
		}
		if fmt.Sprintf("%v", got) != fmt.Sprintf("%v", want) {
			return false
		}
	}
	return true
}

// normalize returns a unit-length copy of the vector.
// Zero vectors are returned as-is.
func normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		out := make([]float32, len(v))
		copy(out, v)
		return out
	}

	norm := float32(math.Sqrt(sum))
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = x / norm
	}
	return out
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
