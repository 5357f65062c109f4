package domain

import "time"

// SourceType identifies which retrieval path produced a hit.
type SourceType string

const (
	// SourceLexical is the full-text (BM25) retrieval path.
	SourceLexical SourceType = "lexical"

	// SourceVector is the embedding similarity retrieval path.
	SourceVector SourceType = "vector"
)

// SearchOptions configures a hybrid search query.
type SearchOptions struct {
	// TopK is the maximum number of fused results to return.
	// Must be positive.
	TopK int

	// Filters restricts candidates by exact-match metadata fields
	// (e.g. file_type). Applied inside each retrieval path before
	// ranking; relative ordering among survivors is unchanged.
	Filters map[string]any

	// Rewrite enables LLM query rewriting before retrieval.
	// Ignored when no LLM service is configured.
	Rewrite bool

	// NoRerank disables the post-fusion reranking stage.
	NoRerank bool

	// NoCache bypasses the result cache for this query.
	NoCache bool
}

// FusedResult is a single hit after Reciprocal Rank Fusion.
// FusionScore is derived from the RRF formula and is only comparable
// to other fusion scores, never to either path's raw score.
type FusedResult struct {
	// ChunkID is the matched chunk.
	ChunkID string

	// DocumentID is the chunk's owning document.
	DocumentID string

	// FusionScore is the combined RRF score.
	FusionScore float64

	// Rank is the final 1-based position in the fused list.
	Rank int

	// Sources lists the retrieval paths that found this chunk.
	Sources []SourceType

	// LexicalScore is the raw relevance score from the lexical path,
	// zero when the chunk was found by the vector path only.
	LexicalScore float64

	// VectorScore is the raw similarity score from the vector path,
	// zero when the chunk was found by the lexical path only.
	VectorScore float64

	// Content is the full chunk text, hydrated from the chunk store.
	Content string

	// Snippet is a short excerpt containing matched query terms.
	Snippet string

	// Metadata is the chunk metadata, hydrated from the chunk store.
	Metadata map[string]any
}

// FoundBy reports whether the result was produced by the given path.
func (r *FusedResult) FoundBy(source SourceType) bool {
	for _, s := range r.Sources {
		if s == source {
			return true
		}
	}
	return false
}

// SourceNames returns the contributing paths as plain strings, for
// display and serialization.
func (r *FusedResult) SourceNames() []string {
	names := make([]string, len(r.Sources))
	for i, s := range r.Sources {
		names[i] = string(s)
	}
	return names
}

// StageTimings records per-stage latency for one query.
type StageTimings struct {
	Embedding time.Duration
	Lexical   time.Duration
	Vector    time.Duration
	Fusion    time.Duration
	Total     time.Duration
}

// SearchStats holds operational counters for the search pipeline.
type SearchStats struct {
	Queries         int64
	DegradedQueries int64
	CacheHits       int64
	CacheMisses     int64
	CacheEntries    int
	LexicalFailures int64
	VectorFailures  int64
}

// SearchResponse is the façade's answer to one query.
type SearchResponse struct {
	// Results is the fused, ranked result list, at most TopK long.
	Results []FusedResult

	// Degraded is true when one retrieval path failed and the results
	// come from the surviving path alone.
	Degraded bool

	// FailedPaths names the paths that errored or timed out.
	FailedPaths []SourceType

	// Insufficient is true when fewer results than the configured
	// minimum were found. The answer orchestrator decides what to do
	// with that; the result list is returned regardless.
	Insufficient bool

	// CacheHit is true when the response was served from the result cache.
	CacheHit bool

	// Timings holds per-stage latencies. Zero for cache hits.
	Timings StageTimings
}
