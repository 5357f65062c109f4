package services

import (
	"sort"

	"github.com/moa-labs/docmoa/internal/core/domain"
)

// DefaultRRFK is the standard RRF smoothing constant. k=60 is the
// widely used value; lowering it overweights top-ranked items from
// either path at the cost of ranking stability.
const DefaultRRFK = 60

// RankedHit is one raw result from a single retrieval path, in that
// path's own descending score order. Raw scores from different paths
// are not comparable; fusion only relies on rank.
type RankedHit struct {
	ChunkID string
	Score   float64
}

// Fuser merges two independently ranked result lists with Reciprocal
// Rank Fusion. It is pure and synchronous; degraded-mode composition
// (calling with one empty list) is the façade's concern.
type Fuser struct {
	k             int
	lexicalWeight float64
	vectorWeight  float64
}

// NewFuser creates a fuser with the given smoothing constant.
// k <= 0 falls back to DefaultRRFK. Path weights default to 1.0 so the
// fused score is the canonical sum of 1/(k+rank) contributions.
func NewFuser(k int) *Fuser {
	if k <= 0 {
		k = DefaultRRFK
	}
	return &Fuser{k: k, lexicalWeight: 1.0, vectorWeight: 1.0}
}

// SetWeights overrides the per-path contribution weights.
// Non-positive values are ignored.
func (f *Fuser) SetWeights(lexical, vector float64) {
	if lexical > 0 {
		f.lexicalWeight = lexical
	}
	if vector > 0 {
		f.vectorWeight = vector
	}
}

// K returns the smoothing constant in use.
func (f *Fuser) K() int {
	return f.k
}

// candidate accumulates per-chunk state across both paths.
type candidate struct {
	chunkID  string
	fusion   float64
	lexRank  int // 1-based, 0 when absent from the lexical path
	vecRank  int // 1-based, 0 when absent from the vector path
	lexScore float64
	vecScore float64
}

// Fuse combines the two ranked lists into one list ordered by fusion
// score. Each chunk accumulates weight/(k+rank) from every path it
// appears in; a chunk found by both paths sums both contributions.
//
// Ties are broken deterministically: presence in both paths wins, then
// the better (lower) original rank, then chunk ID ascending.
//
// The output is truncated to topK when topK is positive and holds at
// most the union of both inputs; it is never padded.
func (f *Fuser) Fuse(lexical, vector []RankedHit, topK int) []domain.FusedResult {
	if len(lexical) == 0 && len(vector) == 0 {
		return []domain.FusedResult{}
	}

	candidates := make(map[string]*candidate, len(lexical)+len(vector))

	rank := 0
	for _, hit := range lexical {
		c, ok := candidates[hit.ChunkID]
		if ok && c.lexRank > 0 {
			// Duplicate chunk ID within the lexical list: keep the
			// first (better ranked) occurrence.
			continue
		}
		rank++
		if !ok {
			c = &candidate{chunkID: hit.ChunkID}
			candidates[hit.ChunkID] = c
		}
		c.lexRank = rank
		c.lexScore = hit.Score
		c.fusion += f.lexicalWeight / float64(f.k+rank)
	}

	rank = 0
	for _, hit := range vector {
		c, ok := candidates[hit.ChunkID]
		if ok && c.vecRank > 0 {
			continue
		}
		rank++
		if !ok {
			c = &candidate{chunkID: hit.ChunkID}
			candidates[hit.ChunkID] = c
		}
		c.vecRank = rank
		c.vecScore = hit.Score
		c.fusion += f.vectorWeight / float64(f.k+rank)
	}

	fused := make([]*candidate, 0, len(candidates))
	for _, c := range candidates {
		fused = append(fused, c)
	}

	sort.Slice(fused, func(i, j int) bool {
		a, b := fused[i], fused[j]
		if a.fusion != b.fusion {
			return a.fusion > b.fusion
		}
		aBoth := a.lexRank > 0 && a.vecRank > 0
		bBoth := b.lexRank > 0 && b.vecRank > 0
		if aBoth != bBoth {
			return aBoth
		}
		if ar, br := a.bestRank(), b.bestRank(); ar != br {
			return ar < br
		}
		return a.chunkID < b.chunkID
	})

	if topK > 0 && len(fused) > topK {
		fused = fused[:topK]
	}

	results := make([]domain.FusedResult, len(fused))
	for i, c := range fused {
		sources := make([]domain.SourceType, 0, 2)
		if c.lexRank > 0 {
			sources = append(sources, domain.SourceLexical)
		}
		if c.vecRank > 0 {
			sources = append(sources, domain.SourceVector)
		}
		results[i] = domain.FusedResult{
			ChunkID:      c.chunkID,
			FusionScore:  c.fusion,
			Rank:         i + 1,
			Sources:      sources,
			LexicalScore: c.lexScore,
			VectorScore:  c.vecScore,
		}
	}

	return results
}

// bestRank is the best (lowest) original rank across both paths.
func (c *candidate) bestRank() int {
	switch {
	case c.lexRank == 0:
		return c.vecRank
	case c.vecRank == 0:
		return c.lexRank
	case c.lexRank < c.vecRank:
		return c.lexRank
	default:
		return c.vecRank
	}
}
