package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moa-labs/docmoa/internal/adapters/driven/storage/memory"
	"github.com/moa-labs/docmoa/internal/core/domain"
	"github.com/moa-labs/docmoa/internal/core/ports/driven"
)

// --- Mock implementations ---

// mockLexicalIndex implements driven.LexicalIndex for testing.
type mockLexicalIndex struct {
	mu          sync.Mutex
	hits        []driven.LexicalHit
	searchErr   error
	delay       time.Duration // responds after this long, or ctx.Err() if cancelled first
	calls       int
	lastQuery   string
	lastFilters map[string]any
}

func (m *mockLexicalIndex) Index(_ context.Context, _ domain.Chunk) error { return nil }

func (m *mockLexicalIndex) Delete(_ context.Context, _ string) error { return nil }

func (m *mockLexicalIndex) Search(ctx context.Context, query string, limit int, filters map[string]any) ([]driven.LexicalHit, error) {
	m.mu.Lock()
	m.calls++
	m.lastQuery = query
	m.lastFilters = filters
	delay := m.delay
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	if m.searchErr != nil {
		return nil, m.searchErr
	}
	if limit < len(m.hits) {
		return m.hits[:limit], nil
	}
	return m.hits, nil
}

func (m *mockLexicalIndex) Close() error { return nil }

func (m *mockLexicalIndex) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// mockVectorIndex implements driven.VectorIndex for testing.
type mockVectorIndex struct {
	mu        sync.Mutex
	hits      []driven.VectorHit
	searchErr error
	calls     int
}

func (m *mockVectorIndex) Add(_ context.Context, _ string, _ []float32, _ map[string]any) error {
	return nil
}

func (m *mockVectorIndex) Delete(_ context.Context, _ string) error { return nil }

func (m *mockVectorIndex) Search(_ context.Context, _ []float32, k int, _ map[string]any) ([]driven.VectorHit, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	if m.searchErr != nil {
		return nil, m.searchErr
	}
	if k < len(m.hits) {
		return m.hits[:k], nil
	}
	return m.hits, nil
}

func (m *mockVectorIndex) Len() int { return len(m.hits) }

func (m *mockVectorIndex) Close() error { return nil }

func (m *mockVectorIndex) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// mockEmbeddingService implements driven.EmbeddingService for testing.
type mockEmbeddingService struct {
	embedding []float32
	embedErr  error
}

func (m *mockEmbeddingService) Embed(_ context.Context, _ string) ([]float32, error) {
	if m.embedErr != nil {
		return nil, m.embedErr
	}
	if m.embedding != nil {
		return m.embedding, nil
	}
	return make([]float32, 4), nil
}

func (m *mockEmbeddingService) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	if m.embedErr != nil {
		return nil, m.embedErr
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, 4)
	}
	return out, nil
}

func (m *mockEmbeddingService) Dimensions() int { return 4 }

func (m *mockEmbeddingService) ModelName() string { return "mock-embed" }

func (m *mockEmbeddingService) Ping(_ context.Context) error { return nil }

func (m *mockEmbeddingService) Close() error { return nil }

// mockLLMService implements driven.LLMService for testing.
type mockLLMService struct {
	rewriteResult string
	rewriteErr    error
}

func (m *mockLLMService) RewriteQuery(_ context.Context, query string) (string, error) {
	if m.rewriteErr != nil {
		return "", m.rewriteErr
	}
	if m.rewriteResult != "" {
		return m.rewriteResult, nil
	}
	return query, nil
}

func (m *mockLLMService) ModelName() string { return "mock-llm" }

func (m *mockLLMService) Ping(_ context.Context) error { return nil }

func (m *mockLLMService) Close() error { return nil }

// mockReranker counts invocations and reverses the result order.
type mockReranker struct {
	mu    sync.Mutex
	calls int
}

func (m *mockReranker) Rerank(_ context.Context, _ string, results []domain.FusedResult) ([]domain.FusedResult, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	out := make([]domain.FusedResult, len(results))
	for i := range results {
		out[i] = results[len(results)-1-i]
		out[i].Rank = i + 1
	}
	return out, nil
}

func (m *mockReranker) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// --- Test helpers ---

// setupTestDocStore seeds three chunks from a small Korean corpus.
func setupTestDocStore(t *testing.T) *memory.DocumentStore {
	t.Helper()
	store := memory.NewDocumentStore()
	ctx := context.Background()

	docs := []struct {
		docID   string
		chunkID string
		title   string
		content string
	}{
		{"doc-security", "c1", "보안 정책", "회사 보안 정책 문서입니다. 외부 반출은 금지됩니다."},
		{"doc-procedure", "c2", "연차 신청", "연차 신청 절차 안내. 시스템에서 신청서를 제출하세요."},
		{"doc-vacation", "c3", "휴가 정책", "휴가 정책: 연차는 입사일 기준으로 15일 부여됩니다."},
	}

	for _, d := range docs {
		doc := &domain.Document{ID: d.docID, Title: d.title}
		require.NoError(t, store.SaveDocument(ctx, doc))
		require.NoError(t, store.SaveChunks(ctx, []domain.Chunk{{
			ID:         d.chunkID,
			DocumentID: d.docID,
			Content:    d.content,
			Position:   0,
			Metadata:   map[string]any{"title": d.title},
		}}))
	}

	return store
}

// koreanScenario wires mocks so both paths agree that c3 is the best
// answer: lexical ranks it second, vector ranks it first, and the RRF
// sum puts it ahead of every single-path hit.
func koreanScenario(t *testing.T) (*SearchService, *mockLexicalIndex, *mockVectorIndex) {
	t.Helper()

	lexical := &mockLexicalIndex{hits: []driven.LexicalHit{
		{ChunkID: "c1", Score: 5.1},
		{ChunkID: "c3", Score: 4.2},
	}}
	vector := &mockVectorIndex{hits: []driven.VectorHit{
		{ChunkID: "c3", Similarity: 0.91},
		{ChunkID: "c2", Similarity: 0.83},
	}}

	service := NewSearchService(setupTestDocStore(t), lexical, vector, &mockEmbeddingService{}, nil, Config{})
	return service, lexical, vector
}

// --- Tests ---

func TestSearchService_Search_InvalidTopK(t *testing.T) {
	service, lexical, _ := koreanScenario(t)

	_, err := service.Search(context.Background(), "휴가", domain.SearchOptions{TopK: 0})

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidQuery)
	assert.Zero(t, lexical.callCount())
}

func TestSearchService_Search_EmptyQuery(t *testing.T) {
	service, lexical, vector := koreanScenario(t)

	for _, query := range []string{"", "   \t\n  "} {
		_, err := service.Search(context.Background(), query, domain.SearchOptions{TopK: 5})
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrInvalidQuery)
	}

	// Validation rejects before any path is dispatched.
	assert.Zero(t, lexical.callCount())
	assert.Zero(t, vector.callCount())
}

func TestSearchService_Search_HybridFusion(t *testing.T) {
	service, _, _ := koreanScenario(t)

	resp, err := service.Search(context.Background(), "정책 휴가", domain.SearchOptions{TopK: 2})

	require.NoError(t, err)
	assert.False(t, resp.Degraded)
	assert.False(t, resp.CacheHit)
	require.Len(t, resp.Results, 2)

	// c3 was found by both paths and must outrank either single-path hit.
	assert.Equal(t, "c3", resp.Results[0].ChunkID)
	assert.Equal(t, 1, resp.Results[0].Rank)
	assert.True(t, resp.Results[0].FoundBy(domain.SourceLexical))
	assert.True(t, resp.Results[0].FoundBy(domain.SourceVector))

	assert.Equal(t, "c1", resp.Results[1].ChunkID)
	assert.Equal(t, 2, resp.Results[1].Rank)

	// Hydration attached content and metadata.
	assert.Contains(t, resp.Results[0].Content, "휴가 정책")
	assert.Equal(t, "휴가 정책", resp.Results[0].Metadata["title"])
	assert.NotEmpty(t, resp.Results[0].Snippet)
	assert.Equal(t, "doc-vacation", resp.Results[0].DocumentID)
}

func TestSearchService_Search_CacheHit(t *testing.T) {
	service, lexical, vector := koreanScenario(t)
	ctx := context.Background()
	opts := domain.SearchOptions{TopK: 2}

	first, err := service.Search(ctx, "정책 휴가", opts)
	require.NoError(t, err)
	assert.False(t, first.CacheHit)

	second, err := service.Search(ctx, "정책 휴가", opts)
	require.NoError(t, err)
	assert.True(t, second.CacheHit)
	assert.Equal(t, first.Results, second.Results)

	// The paths ran exactly once; the second answer came from the cache.
	assert.Equal(t, 1, lexical.callCount())
	assert.Equal(t, 1, vector.callCount())

	stats := service.Stats()
	assert.Equal(t, int64(2), stats.Queries)
	assert.Equal(t, int64(1), stats.CacheHits)
}

func TestSearchService_Search_CacheKeyNormalized(t *testing.T) {
	service, lexical, _ := koreanScenario(t)
	ctx := context.Background()
	opts := domain.SearchOptions{TopK: 2}

	_, err := service.Search(ctx, "정책 휴가", opts)
	require.NoError(t, err)

	resp, err := service.Search(ctx, "  정책   휴가  ", opts)
	require.NoError(t, err)

	assert.True(t, resp.CacheHit)
	assert.Equal(t, 1, lexical.callCount())
}

func TestSearchService_Search_NoCacheBypass(t *testing.T) {
	service, lexical, _ := koreanScenario(t)
	ctx := context.Background()
	opts := domain.SearchOptions{TopK: 2, NoCache: true}

	_, err := service.Search(ctx, "정책 휴가", opts)
	require.NoError(t, err)
	resp, err := service.Search(ctx, "정책 휴가", opts)
	require.NoError(t, err)

	assert.False(t, resp.CacheHit)
	assert.Equal(t, 2, lexical.callCount())
}

func TestSearchService_Search_LexicalFailureDegrades(t *testing.T) {
	lexical := &mockLexicalIndex{searchErr: errors.New("fts index corrupted")}
	vector := &mockVectorIndex{hits: []driven.VectorHit{
		{ChunkID: "c3", Similarity: 0.91},
		{ChunkID: "c2", Similarity: 0.83},
	}}
	service := NewSearchService(setupTestDocStore(t), lexical, vector, &mockEmbeddingService{}, nil, Config{})

	resp, err := service.Search(context.Background(), "휴가 정책", domain.SearchOptions{TopK: 5})

	require.NoError(t, err)
	assert.True(t, resp.Degraded)
	assert.Equal(t, []domain.SourceType{domain.SourceLexical}, resp.FailedPaths)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "c3", resp.Results[0].ChunkID)

	stats := service.Stats()
	assert.Equal(t, int64(1), stats.DegradedQueries)
	assert.Equal(t, int64(1), stats.LexicalFailures)
}

func TestSearchService_Search_SlowLexicalPathTimesOut(t *testing.T) {
	lexical := &mockLexicalIndex{
		delay: 2 * time.Second,
		hits:  []driven.LexicalHit{{ChunkID: "c1", Score: 5.1}},
	}
	vector := &mockVectorIndex{hits: []driven.VectorHit{
		{ChunkID: "c3", Similarity: 0.91},
		{ChunkID: "c2", Similarity: 0.83},
	}}
	cfg := Config{PathTimeout: 50 * time.Millisecond}
	service := NewSearchService(setupTestDocStore(t), lexical, vector, &mockEmbeddingService{}, nil, cfg)

	start := time.Now()
	resp, err := service.Search(context.Background(), "휴가 정책", domain.SearchOptions{TopK: 5})
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.True(t, resp.Degraded)
	assert.Equal(t, []domain.SourceType{domain.SourceLexical}, resp.FailedPaths)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "c3", resp.Results[0].ChunkID)

	// The query must return on the path timeout, not wait out the slow index.
	assert.Less(t, elapsed, time.Second)

	stats := service.Stats()
	assert.Equal(t, int64(1), stats.DegradedQueries)
	assert.Equal(t, int64(1), stats.LexicalFailures)
}

func TestSearchService_Search_DegradedNotCached(t *testing.T) {
	lexical := &mockLexicalIndex{searchErr: errors.New("fts index corrupted")}
	vector := &mockVectorIndex{hits: []driven.VectorHit{{ChunkID: "c3", Similarity: 0.91}}}
	service := NewSearchService(setupTestDocStore(t), lexical, vector, &mockEmbeddingService{}, nil, Config{})
	ctx := context.Background()
	opts := domain.SearchOptions{TopK: 5}

	_, err := service.Search(ctx, "휴가", opts)
	require.NoError(t, err)
	resp, err := service.Search(ctx, "휴가", opts)
	require.NoError(t, err)

	// A degraded answer must not be served from the cache.
	assert.False(t, resp.CacheHit)
	assert.Equal(t, 2, vector.callCount())
}

func TestSearchService_Search_VectorFailureDegrades(t *testing.T) {
	lexical := &mockLexicalIndex{hits: []driven.LexicalHit{{ChunkID: "c1", Score: 5.1}}}
	vector := &mockVectorIndex{searchErr: errors.New("index closed")}
	service := NewSearchService(setupTestDocStore(t), lexical, vector, &mockEmbeddingService{}, nil, Config{})

	resp, err := service.Search(context.Background(), "보안", domain.SearchOptions{TopK: 5})

	require.NoError(t, err)
	assert.True(t, resp.Degraded)
	assert.Equal(t, []domain.SourceType{domain.SourceVector}, resp.FailedPaths)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "c1", resp.Results[0].ChunkID)
	assert.Equal(t, int64(1), service.Stats().VectorFailures)
}

func TestSearchService_Search_EmbeddingFailureFailsVectorPathOnly(t *testing.T) {
	lexical := &mockLexicalIndex{hits: []driven.LexicalHit{{ChunkID: "c1", Score: 5.1}}}
	vector := &mockVectorIndex{hits: []driven.VectorHit{{ChunkID: "c3", Similarity: 0.91}}}
	embedder := &mockEmbeddingService{embedErr: errors.New("ollama unreachable")}
	service := NewSearchService(setupTestDocStore(t), lexical, vector, embedder, nil, Config{})

	resp, err := service.Search(context.Background(), "보안", domain.SearchOptions{TopK: 5})

	require.NoError(t, err)
	assert.True(t, resp.Degraded)
	assert.Equal(t, []domain.SourceType{domain.SourceVector}, resp.FailedPaths)
	// The vector index is never queried without a query embedding.
	assert.Zero(t, vector.callCount())
	require.Len(t, resp.Results, 1)
}

func TestSearchService_Search_NilEmbedderDegrades(t *testing.T) {
	lexical := &mockLexicalIndex{hits: []driven.LexicalHit{{ChunkID: "c1", Score: 5.1}}}
	vector := &mockVectorIndex{hits: []driven.VectorHit{{ChunkID: "c3", Similarity: 0.91}}}
	service := NewSearchService(setupTestDocStore(t), lexical, vector, nil, nil, Config{})

	resp, err := service.Search(context.Background(), "보안", domain.SearchOptions{TopK: 5})

	require.NoError(t, err)
	assert.True(t, resp.Degraded)
	assert.Equal(t, []domain.SourceType{domain.SourceVector}, resp.FailedPaths)
}

func TestSearchService_Search_BothPathsFail(t *testing.T) {
	lexical := &mockLexicalIndex{searchErr: errors.New("fts broken")}
	vector := &mockVectorIndex{searchErr: errors.New("index closed")}
	service := NewSearchService(setupTestDocStore(t), lexical, vector, &mockEmbeddingService{}, nil, Config{})

	_, err := service.Search(context.Background(), "휴가", domain.SearchOptions{TopK: 5})

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrAllPathsFailed)
}

func TestSearchService_Search_EmptyCorpus(t *testing.T) {
	lexical := &mockLexicalIndex{}
	vector := &mockVectorIndex{}
	service := NewSearchService(memory.NewDocumentStore(), lexical, vector, &mockEmbeddingService{}, nil, Config{})

	resp, err := service.Search(context.Background(), "아무거나", domain.SearchOptions{TopK: 5})

	require.NoError(t, err)
	assert.Empty(t, resp.Results)
	assert.False(t, resp.Degraded)
	assert.True(t, resp.Insufficient)
}

func TestSearchService_Search_TopKTruncation(t *testing.T) {
	service, _, _ := koreanScenario(t)

	resp, err := service.Search(context.Background(), "정책 휴가", domain.SearchOptions{TopK: 1})

	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "c3", resp.Results[0].ChunkID)
	assert.Equal(t, 1, resp.Results[0].Rank)
}

func TestSearchService_Search_DropsMissingChunks(t *testing.T) {
	lexical := &mockLexicalIndex{hits: []driven.LexicalHit{
		{ChunkID: "ghost", Score: 9.0},
		{ChunkID: "c1", Score: 5.1},
	}}
	vector := &mockVectorIndex{}
	service := NewSearchService(setupTestDocStore(t), lexical, vector, &mockEmbeddingService{}, nil, Config{})

	resp, err := service.Search(context.Background(), "보안", domain.SearchOptions{TopK: 5})

	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "c1", resp.Results[0].ChunkID)
	assert.Equal(t, 1, resp.Results[0].Rank)
}

func TestSearchService_Search_RewriteUsesLLM(t *testing.T) {
	lexical := &mockLexicalIndex{hits: []driven.LexicalHit{{ChunkID: "c3", Score: 4.2}}}
	vector := &mockVectorIndex{}
	llm := &mockLLMService{rewriteResult: "휴가 연차 정책 규정"}
	service := NewSearchService(setupTestDocStore(t), lexical, vector, &mockEmbeddingService{}, llm, Config{})

	_, err := service.Search(context.Background(), "휴가", domain.SearchOptions{TopK: 5, Rewrite: true})

	require.NoError(t, err)
	assert.Equal(t, "휴가 연차 정책 규정", lexical.lastQuery)
}

func TestSearchService_Search_RewriteFailureKeepsOriginal(t *testing.T) {
	lexical := &mockLexicalIndex{hits: []driven.LexicalHit{{ChunkID: "c3", Score: 4.2}}}
	vector := &mockVectorIndex{}
	llm := &mockLLMService{rewriteErr: errors.New("model not loaded")}
	service := NewSearchService(setupTestDocStore(t), lexical, vector, &mockEmbeddingService{}, llm, Config{})

	resp, err := service.Search(context.Background(), "휴가", domain.SearchOptions{TopK: 5, Rewrite: true})

	require.NoError(t, err)
	assert.NotEmpty(t, resp.Results)
	assert.Equal(t, "휴가", lexical.lastQuery)
}

func TestSearchService_Search_FiltersReachBothPaths(t *testing.T) {
	service, lexical, _ := koreanScenario(t)
	filters := map[string]any{"source_type": "wiki"}

	_, err := service.Search(context.Background(), "정책", domain.SearchOptions{TopK: 5, Filters: filters})

	require.NoError(t, err)
	assert.Equal(t, filters, lexical.lastFilters)
}

func TestSearchService_Search_RerankerReorders(t *testing.T) {
	service, _, _ := koreanScenario(t)
	reranker := &mockReranker{}
	service.SetReranker(reranker)

	resp, err := service.Search(context.Background(), "정책 휴가", domain.SearchOptions{TopK: 3})

	require.NoError(t, err)
	assert.Equal(t, 1, reranker.callCount())
	// The reversing reranker demotes c3 from the top spot.
	require.NotEmpty(t, resp.Results)
	assert.NotEqual(t, "c3", resp.Results[0].ChunkID)
	for i := range resp.Results {
		assert.Equal(t, i+1, resp.Results[i].Rank)
	}
}

func TestSearchService_Search_NoRerankOption(t *testing.T) {
	service, _, _ := koreanScenario(t)
	reranker := &mockReranker{}
	service.SetReranker(reranker)

	resp, err := service.Search(context.Background(), "정책 휴가", domain.SearchOptions{TopK: 2, NoRerank: true})

	require.NoError(t, err)
	assert.Zero(t, reranker.callCount())
	assert.Equal(t, "c3", resp.Results[0].ChunkID)
}

func TestSearchService_Search_ObserverSeesAllStages(t *testing.T) {
	service, _, _ := koreanScenario(t)

	var mu sync.Mutex
	stages := make(map[string]int)
	service.SetObserver(func(stage string, _ time.Duration) {
		mu.Lock()
		stages[stage]++
		mu.Unlock()
	})

	_, err := service.Search(context.Background(), "정책 휴가", domain.SearchOptions{TopK: 2})
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	for _, stage := range []string{StageEmbedding, StageLexical, StageVector, StageFusion, StageTotal} {
		assert.Equal(t, 1, stages[stage], "stage %s", stage)
	}
}

func TestSearchService_InvalidateCache(t *testing.T) {
	service, lexical, _ := koreanScenario(t)
	ctx := context.Background()
	opts := domain.SearchOptions{TopK: 2}

	_, err := service.Search(ctx, "정책 휴가", opts)
	require.NoError(t, err)

	service.InvalidateCache()

	resp, err := service.Search(ctx, "정책 휴가", opts)
	require.NoError(t, err)
	assert.False(t, resp.CacheHit)
	assert.Equal(t, 2, lexical.callCount())
}
