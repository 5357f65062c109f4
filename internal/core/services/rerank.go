package services

import (
	"context"
	"sort"

	"github.com/moa-labs/docmoa/internal/core/domain"
	"github.com/moa-labs/docmoa/internal/textproc"
)

// DefaultRerankFusionWeight is the weight given to the fusion score
// when blending with the reranker's own similarity signal.
const DefaultRerankFusionWeight = 0.7

// rerankKeywordLimit caps the number of keywords extracted per text.
const rerankKeywordLimit = 100

// Reranker reorders fused candidates before final truncation. It is a
// composable post-processing step: when absent or failing, the RRF
// order stands untouched.
type Reranker interface {
	// Rerank returns the results in a new order. It must not add or
	// remove results, only reorder them.
	Rerank(ctx context.Context, query string, results []domain.FusedResult) ([]domain.FusedResult, error)
}

// OverlapReranker scores candidates by keyword overlap (Jaccard)
// between the query and the chunk content, blended with the fusion
// score. A cheap heuristic stand-in for a cross-encoder.
type OverlapReranker struct {
	fusionWeight float64
}

// NewOverlapReranker creates a reranker with the given fusion weight.
// Values outside (0, 1] fall back to the default.
func NewOverlapReranker(fusionWeight float64) *OverlapReranker {
	if fusionWeight <= 0 || fusionWeight > 1 {
		fusionWeight = DefaultRerankFusionWeight
	}
	return &OverlapReranker{fusionWeight: fusionWeight}
}

// Rerank reorders results by the blended score, descending. Ties keep
// the incoming (RRF) order, so the reordering is deterministic.
// Content must already be hydrated; results without content score zero
// overlap and fall back to their fusion score alone.
func (r *OverlapReranker) Rerank(_ context.Context, query string, results []domain.FusedResult) ([]domain.FusedResult, error) {
	if len(results) == 0 {
		return results, nil
	}

	queryTokens := keywordSet(query)

	type scored struct {
		result  domain.FusedResult
		score   float64
		rrfRank int
	}

	reranked := make([]scored, len(results))
	for i, result := range results {
		text := result.Content
		if text == "" {
			text = result.Snippet
		}
		sim := jaccard(queryTokens, keywordSet(text))
		reranked[i] = scored{
			result:  result,
			score:   r.fusionWeight*result.FusionScore + (1-r.fusionWeight)*sim,
			rrfRank: i,
		}
	}

	sort.Slice(reranked, func(i, j int) bool {
		if reranked[i].score != reranked[j].score {
			return reranked[i].score > reranked[j].score
		}
		return reranked[i].rrfRank < reranked[j].rrfRank
	})

	out := make([]domain.FusedResult, len(reranked))
	for i, s := range reranked {
		out[i] = s.result
		out[i].Rank = i + 1
	}
	return out, nil
}

func keywordsOf(text string) []string {
	return textproc.Keywords(text, rerankKeywordLimit)
}

func keywordSet(text string) map[string]bool {
	set := make(map[string]bool)
	for _, kw := range keywordsOf(text) {
		set[kw] = true
	}
	return set
}

func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	intersection := 0
	for token := range a {
		if b[token] {
			intersection++
		}
	}

	union := len(a) + len(b) - intersection
	return float64(intersection) / float64(union)
}
