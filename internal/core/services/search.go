package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/moa-labs/docmoa/internal/core/domain"
	"github.com/moa-labs/docmoa/internal/core/ports/driven"
	"github.com/moa-labs/docmoa/internal/core/ports/driving"
	"github.com/moa-labs/docmoa/internal/logger"
	"github.com/moa-labs/docmoa/internal/textproc"
)

// Ensure SearchService implements the interface.
var _ driving.SearchService = (*SearchService)(nil)

// Stage names reported to the observer hook.
const (
	StageEmbedding = "embedding"
	StageLexical   = "lexical"
	StageVector    = "vector"
	StageFusion    = "fusion"
	StageTotal     = "total"
)

// StageObserver receives per-stage latencies. Optional; used for
// operational visibility, never for control flow.
type StageObserver func(stage string, d time.Duration)

// Config tunes the search pipeline.
type Config struct {
	// RRFK is the RRF smoothing constant (default 60).
	RRFK int

	// LexicalWeight and VectorWeight scale each path's RRF
	// contribution (default 1.0 each).
	LexicalWeight float64
	VectorWeight  float64

	// CandidateFactor is how many times top-k each path fetches, so
	// fusion and reranking see a wider candidate pool (default 2).
	CandidateFactor int

	// PathTimeout bounds each retrieval path independently (default 3s).
	// A timed-out path counts as failed and fusion proceeds degraded.
	PathTimeout time.Duration

	// QueryTimeout bounds the whole query (default 10s).
	QueryTimeout time.Duration

	// CacheSize and CacheTTL configure the result cache.
	CacheSize int
	CacheTTL  time.Duration

	// MinResults is the result count below which the response carries
	// the insufficient-evidence flag (default 1).
	MinResults int

	// VectorOverfetch is the over-fetch factor handed to the vector
	// index for filtered searches. Zero means the index's own default.
	VectorOverfetch int
}

// DefaultConfig returns the default search configuration.
func DefaultConfig() Config {
	return Config{
		RRFK:            DefaultRRFK,
		LexicalWeight:   1.0,
		VectorWeight:    1.0,
		CandidateFactor: 2,
		PathTimeout:     3 * time.Second,
		QueryTimeout:    10 * time.Second,
		CacheSize:       DefaultCacheSize,
		CacheTTL:        DefaultCacheTTL,
		MinResults:      1,
	}
}

func (c *Config) applyDefaults() {
	def := DefaultConfig()
	if c.RRFK <= 0 {
		c.RRFK = def.RRFK
	}
	if c.LexicalWeight <= 0 {
		c.LexicalWeight = def.LexicalWeight
	}
	if c.VectorWeight <= 0 {
		c.VectorWeight = def.VectorWeight
	}
	if c.CandidateFactor <= 0 {
		c.CandidateFactor = def.CandidateFactor
	}
	if c.PathTimeout <= 0 {
		c.PathTimeout = def.PathTimeout
	}
	if c.QueryTimeout <= 0 {
		c.QueryTimeout = def.QueryTimeout
	}
	if c.CacheSize <= 0 {
		c.CacheSize = def.CacheSize
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = def.CacheTTL
	}
	if c.MinResults <= 0 {
		c.MinResults = def.MinResults
	}
}

// SearchService is the hybrid search façade. It owns the
// cache-check, parallel-dispatch, fuse, rerank, cache-store sequence.
type SearchService struct {
	docStore driven.DocumentStore
	lexical  driven.LexicalIndex
	vector   driven.VectorIndex
	embedder driven.EmbeddingService
	llm      driven.LLMService

	fuser    *Fuser
	reranker Reranker
	cache    *ResultCache
	cfg      Config
	observer StageObserver

	queries  atomic.Int64
	degraded atomic.Int64
	lexFails atomic.Int64
	vecFails atomic.Int64
}

// NewSearchService creates the search façade. The embedder, llm and
// reranker are optional (can be nil); without an embedder the vector
// path always counts as failed and search runs lexical-only.
func NewSearchService(
	docStore driven.DocumentStore,
	lexical driven.LexicalIndex,
	vector driven.VectorIndex,
	embedder driven.EmbeddingService,
	llm driven.LLMService,
	cfg Config,
) *SearchService {
	cfg.applyDefaults()

	fuser := NewFuser(cfg.RRFK)
	fuser.SetWeights(cfg.LexicalWeight, cfg.VectorWeight)

	return &SearchService{
		docStore: docStore,
		lexical:  lexical,
		vector:   vector,
		embedder: embedder,
		llm:      llm,
		fuser:    fuser,
		cache:    NewResultCache(cfg.CacheSize, cfg.CacheTTL),
		cfg:      cfg,
	}
}

// SetReranker installs an optional post-fusion reranker.
func (s *SearchService) SetReranker(r Reranker) {
	s.reranker = r
}

// SetObserver installs an optional stage latency observer.
func (s *SearchService) SetObserver(o StageObserver) {
	s.observer = o
}

// pathResult carries one retrieval path's outcome across the join.
type pathResult struct {
	hits []RankedHit
	err  error
}

// Search performs hybrid search across all indexed chunks.
func (s *SearchService) Search(ctx context.Context, query string, opts domain.SearchOptions) (*domain.SearchResponse, error) {
	logger.Section("Search Execution")
	logger.Debug("Query: %q", query)

	started := time.Now()

	if opts.TopK <= 0 {
		return nil, fmt.Errorf("%w: top-k must be positive, got %d", domain.ErrInvalidQuery, opts.TopK)
	}
	if textproc.Normalize(query) == "" {
		return nil, fmt.Errorf("%w: empty query", domain.ErrInvalidQuery)
	}

	s.queries.Add(1)

	// Cache lookup keyed by the user's query before any rewriting, so
	// repeated questions hit regardless of LLM availability.
	sig := Signature(query, opts.TopK, opts.Filters)
	if !opts.NoCache {
		if cached := s.cache.Get(sig); cached != nil {
			logger.Debug("Cache hit: %d results", len(cached))
			return &domain.SearchResponse{
				Results:      cached,
				Insufficient: len(cached) < s.cfg.MinResults,
				CacheHit:     true,
			}, nil
		}
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.QueryTimeout)
	defer cancel()

	searchQuery := s.maybeRewrite(ctx, query, opts)
	internalLimit := opts.TopK * s.cfg.CandidateFactor

	var timings domain.StageTimings
	lexical, vector := s.dispatch(ctx, searchQuery, internalLimit, opts.Filters, &timings)

	if lexical.err != nil && vector.err != nil {
		logger.Warn("Both retrieval paths failed: lexical=%v vector=%v", lexical.err, vector.err)
		return nil, fmt.Errorf("%w (lexical: %v; vector: %v)",
			domain.ErrAllPathsFailed, lexical.err, vector.err)
	}

	response := &domain.SearchResponse{}
	if lexical.err != nil {
		s.lexFails.Add(1)
		response.Degraded = true
		response.FailedPaths = append(response.FailedPaths, domain.SourceLexical)
		logger.Warn("Lexical path failed, fusing vector results only: %v", lexical.err)
	}
	if vector.err != nil {
		s.vecFails.Add(1)
		response.Degraded = true
		response.FailedPaths = append(response.FailedPaths, domain.SourceVector)
		logger.Warn("Vector path failed, fusing lexical results only: %v", vector.err)
	}
	if response.Degraded {
		s.degraded.Add(1)
	}

	fusionStart := time.Now()
	fused := s.fuser.Fuse(lexical.hits, vector.hits, internalLimit)
	timings.Fusion = time.Since(fusionStart)
	logger.Debug("Fusion: %d lexical + %d vector -> %d candidates",
		len(lexical.hits), len(vector.hits), len(fused))

	hydrated, err := s.hydrate(ctx, fused, searchQuery)
	if err != nil {
		return nil, fmt.Errorf("hydrate results: %w", err)
	}

	hydrated = s.maybeRerank(ctx, query, hydrated, opts)

	if len(hydrated) > opts.TopK {
		hydrated = hydrated[:opts.TopK]
	}
	for i := range hydrated {
		hydrated[i].Rank = i + 1
	}

	response.Results = hydrated
	response.Insufficient = len(hydrated) < s.cfg.MinResults

	// Degraded responses are never cached: the next attempt should get
	// a chance at full fusion quality.
	if !opts.NoCache && !response.Degraded {
		s.cache.Put(sig, hydrated)
	}

	timings.Total = time.Since(started)
	response.Timings = timings
	s.observe(timings)

	logger.Info("Search done: %d results, degraded=%t, total=%s",
		len(hydrated), response.Degraded, timings.Total)
	return response, nil
}

// dispatch runs the lexical search and the embed-then-vector-search
// sequence concurrently, each under its own timeout, and joins both
// before returning. Fusion never starts on a partial result list.
func (s *SearchService) dispatch(
	ctx context.Context, query string, limit int, filters map[string]any, timings *domain.StageTimings,
) (lexical, vector pathResult) {
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		start := time.Now()
		lexical = s.searchLexical(ctx, query, limit, filters)
		timings.Lexical = time.Since(start)
	}()

	go func() {
		defer wg.Done()
		vector = s.searchVector(ctx, query, limit, filters, timings)
	}()

	wg.Wait()
	return lexical, vector
}

// searchLexical runs the full-text path under its own timeout.
func (s *SearchService) searchLexical(ctx context.Context, query string, limit int, filters map[string]any) pathResult {
	if s.lexical == nil {
		return pathResult{err: domain.ErrLexicalUnavailable}
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.PathTimeout)
	defer cancel()

	hits, err := s.lexical.Search(ctx, query, limit, filters)
	if err != nil {
		return pathResult{err: fmt.Errorf("lexical search: %w", err)}
	}
	logger.Debug("Lexical search: %d hits", len(hits))

	ranked := make([]RankedHit, len(hits))
	for i, hit := range hits {
		ranked[i] = RankedHit{ChunkID: hit.ChunkID, Score: hit.Score}
	}
	return pathResult{hits: ranked}
}

// searchVector embeds the query and runs the similarity path, each
// step under the shared per-path timeout. An embedding failure fails
// the vector path only.
func (s *SearchService) searchVector(
	ctx context.Context, query string, limit int, filters map[string]any, timings *domain.StageTimings,
) pathResult {
	if s.vector == nil {
		return pathResult{err: domain.ErrVectorIndexUnavailable}
	}
	if s.embedder == nil {
		return pathResult{err: domain.ErrEmbeddingUnavailable}
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.PathTimeout)
	defer cancel()

	embedStart := time.Now()
	embedding, err := s.embedder.Embed(ctx, query)
	timings.Embedding = time.Since(embedStart)
	if err != nil {
		return pathResult{err: fmt.Errorf("query embedding: %w", err)}
	}
	logger.Debug("Query embedding: %d dimensions", len(embedding))

	vectorStart := time.Now()
	hits, err := s.vector.Search(ctx, embedding, limit, filters)
	timings.Vector = time.Since(vectorStart)
	if err != nil {
		return pathResult{err: fmt.Errorf("vector search: %w", err)}
	}
	logger.Debug("Vector search: %d hits", len(hits))

	ranked := make([]RankedHit, len(hits))
	for i, hit := range hits {
		ranked[i] = RankedHit{ChunkID: hit.ChunkID, Score: hit.Similarity}
	}
	return pathResult{hits: ranked}
}

// maybeRewrite runs LLM query rewriting when requested and available.
// Any failure keeps the original query.
func (s *SearchService) maybeRewrite(ctx context.Context, query string, opts domain.SearchOptions) string {
	if !opts.Rewrite || s.llm == nil {
		return query
	}

	rewritten, err := s.llm.RewriteQuery(ctx, query)
	if err != nil || strings.TrimSpace(rewritten) == "" {
		logger.Warn("Query rewrite failed, using original query: %v", err)
		return query
	}

	logger.Info("Query rewritten: %q -> %q", query, rewritten)
	return rewritten
}

// maybeRerank applies the configured reranker to the hydrated candidate
// pool. Rerank failure falls back to the RRF order.
func (s *SearchService) maybeRerank(ctx context.Context, query string, results []domain.FusedResult, opts domain.SearchOptions) []domain.FusedResult {
	if s.reranker == nil || opts.NoRerank || len(results) == 0 {
		return results
	}

	reranked, err := s.reranker.Rerank(ctx, query, results)
	if err != nil || len(reranked) != len(results) {
		logger.Warn("Rerank failed, keeping RRF order: %v", err)
		return results
	}
	return reranked
}

// hydrate attaches chunk content, snippet and metadata to fused
// results. Chunks deleted since indexing are dropped silently.
func (s *SearchService) hydrate(ctx context.Context, results []domain.FusedResult, query string) ([]domain.FusedResult, error) {
	hydrated := make([]domain.FusedResult, 0, len(results))

	for _, result := range results {
		chunk, err := s.docStore.GetChunk(ctx, result.ChunkID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("get chunk %s: %w", result.ChunkID, err)
		}

		result.DocumentID = chunk.DocumentID
		result.Content = chunk.Content
		result.Metadata = chunk.Metadata
		result.Snippet = snippet(chunk.Content, query)
		hydrated = append(hydrated, result)
	}

	return hydrated, nil
}

// InvalidateCache drops all cached results.
func (s *SearchService) InvalidateCache() {
	s.cache.InvalidateAll()
}

// Stats reports operational counters.
func (s *SearchService) Stats() domain.SearchStats {
	return domain.SearchStats{
		Queries:         s.queries.Load(),
		DegradedQueries: s.degraded.Load(),
		CacheHits:       s.cache.Hits(),
		CacheMisses:     s.cache.Misses(),
		CacheEntries:    s.cache.Len(),
		LexicalFailures: s.lexFails.Load(),
		VectorFailures:  s.vecFails.Load(),
	}
}

func (s *SearchService) observe(t domain.StageTimings) {
	if s.observer == nil {
		return
	}
	s.observer(StageEmbedding, t.Embedding)
	s.observer(StageLexical, t.Lexical)
	s.observer(StageVector, t.Vector)
	s.observer(StageFusion, t.Fusion)
	s.observer(StageTotal, t.Total)
}

// snippetLength caps snippet size in runes.
const snippetLength = 200

// snippet returns the first sentence containing a query term, truncated
// to snippetLength. Falls back to the start of the content.
func snippet(content, query string) string {
	terms := strings.Fields(textproc.Normalize(query))
	for i, term := range terms {
		terms[i] = textproc.StripParticle(term)
	}

	for _, sentence := range textproc.SplitSentences(content) {
		lower := strings.ToLower(sentence)
		for _, term := range terms {
			if term != "" && strings.Contains(lower, term) {
				return truncateRunes(sentence, snippetLength)
			}
		}
	}

	return truncateRunes(strings.TrimSpace(content), snippetLength)
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
