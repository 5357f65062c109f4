package mcp

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/moa-labs/docmoa/internal/core/domain"
)

// SearchInput is the input schema for the search tool.
type SearchInput struct {
	Query   string            `json:"query" jsonschema:"the search query to find documents"`
	TopK    int               `json:"top_k,omitempty" jsonschema:"maximum number of results to return (default 10)"`
	Filters map[string]string `json:"filters,omitempty" jsonschema:"metadata filters applied to both search paths, e.g. {\"source_type\": \"wiki\"}"`
	Rewrite bool              `json:"rewrite,omitempty" jsonschema:"rewrite the query with the LLM before searching"`
}

// SearchOutput is the output schema for the search tool.
type SearchOutput struct {
	Results     []SearchResultOutput `json:"results"`
	Count       int                  `json:"count"`
	Degraded    bool                 `json:"degraded"`
	FailedPaths []string             `json:"failed_paths,omitempty"`
	CacheHit    bool                 `json:"cache_hit"`
}

// SearchResultOutput represents a single fused search result.
type SearchResultOutput struct {
	ChunkID     string   `json:"chunk_id"`
	DocumentID  string   `json:"document_id"`
	Title       string   `json:"title,omitempty"`
	FusionScore float64  `json:"fusion_score"`
	Rank        int      `json:"rank"`
	Sources     []string `json:"sources"`
	Snippet     string   `json:"snippet,omitempty"`
	Content     string   `json:"content,omitempty"`
}

// StatsOutput is the output schema for the stats tool.
type StatsOutput struct {
	Queries         int64 `json:"queries"`
	DegradedQueries int64 `json:"degraded_queries"`
	CacheHits       int64 `json:"cache_hits"`
	CacheMisses     int64 `json:"cache_misses"`
	CacheEntries    int   `json:"cache_entries"`
	LexicalFailures int64 `json:"lexical_failures"`
	VectorFailures  int64 `json:"vector_failures"`
}

// IngestInput is the input schema for the ingest tool.
type IngestInput struct {
	Title   string            `json:"title,omitempty" jsonschema:"document title"`
	Content string            `json:"content" jsonschema:"document content to index"`
	URI     string            `json:"uri,omitempty" jsonschema:"source location of the document"`
	Tags    map[string]string `json:"tags,omitempty" jsonschema:"metadata tags attached to every chunk"`
}

// IngestOutput is the output schema for the ingest tool.
type IngestOutput struct {
	DocumentID string `json:"document_id"`
	Chunks     int    `json:"chunks"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "search",
		Description: "Hybrid lexical and semantic search across the indexed document corpus",
	}, s.handleSearch)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "search_stats",
		Description: "Runtime counters for the search service: queries, cache hits, path failures",
	}, s.handleStats)

	if s.ports.Ingest != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "ingest",
			Description: "Add a document to the corpus, chunking and indexing it for search",
		}, s.handleIngest)
	}
}

// handleSearch handles the search tool invocation.
func (s *Server) handleSearch(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SearchInput,
) (*mcp.CallToolResult, SearchOutput, error) {
	topK := input.TopK
	if topK <= 0 {
		topK = 10
	}

	opts := domain.SearchOptions{
		TopK:    topK,
		Rewrite: input.Rewrite,
	}
	if len(input.Filters) > 0 {
		opts.Filters = make(map[string]any, len(input.Filters))
		for k, v := range input.Filters {
			opts.Filters[k] = v
		}
	}

	resp, err := s.ports.Search.Search(ctx, input.Query, opts)
	if err != nil {
		return nil, SearchOutput{}, err
	}

	failed := make([]string, len(resp.FailedPaths))
	for i, p := range resp.FailedPaths {
		failed[i] = string(p)
	}

	output := SearchOutput{
		Results:     make([]SearchResultOutput, len(resp.Results)),
		Count:       len(resp.Results),
		Degraded:    resp.Degraded,
		FailedPaths: failed,
		CacheHit:    resp.CacheHit,
	}

	for i := range resp.Results {
		r := &resp.Results[i]
		output.Results[i] = SearchResultOutput{
			ChunkID:     r.ChunkID,
			DocumentID:  r.DocumentID,
			Title:       titleOf(r.Metadata),
			FusionScore: r.FusionScore,
			Rank:        r.Rank,
			Sources:     r.SourceNames(),
			Snippet:     r.Snippet,
			Content:     r.Content,
		}
	}

	return nil, output, nil
}

// handleStats handles the search_stats tool invocation.
func (s *Server) handleStats(
	_ context.Context,
	_ *mcp.CallToolRequest,
	_ struct{},
) (*mcp.CallToolResult, StatsOutput, error) {
	stats := s.ports.Search.Stats()
	return nil, StatsOutput{
		Queries:         stats.Queries,
		DegradedQueries: stats.DegradedQueries,
		CacheHits:       stats.CacheHits,
		CacheMisses:     stats.CacheMisses,
		CacheEntries:    stats.CacheEntries,
		LexicalFailures: stats.LexicalFailures,
		VectorFailures:  stats.VectorFailures,
	}, nil
}

// handleIngest handles the ingest tool invocation.
func (s *Server) handleIngest(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input IngestInput,
) (*mcp.CallToolResult, IngestOutput, error) {
	now := time.Now()
	doc := &domain.Document{
		ID:        uuid.New().String(),
		Title:     input.Title,
		URI:       input.URI,
		Content:   input.Content,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if len(input.Tags) > 0 {
		doc.Metadata = make(map[string]any, len(input.Tags))
		for k, v := range input.Tags {
			doc.Metadata[k] = v
		}
	}

	chunks, err := s.ports.Ingest.Ingest(ctx, doc)
	if err != nil {
		return nil, IngestOutput{}, err
	}

	return nil, IngestOutput{DocumentID: doc.ID, Chunks: chunks}, nil
}

// titleOf pulls the document title out of chunk metadata when the
// ingestion pipeline recorded one.
func titleOf(metadata map[string]any) string {
	if metadata == nil {
		return ""
	}
	if title, ok := metadata["title"].(string); ok {
		return title
	}
	return ""
}
