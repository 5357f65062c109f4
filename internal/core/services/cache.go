package services

import (
	"crypto/sha256"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/moa-labs/docmoa/internal/core/domain"
	"github.com/moa-labs/docmoa/internal/logger"
	"github.com/moa-labs/docmoa/internal/textproc"
)

// DefaultCacheSize is the default result cache capacity.
const DefaultCacheSize = 1000

// DefaultCacheTTL is the default time-to-live for cached results.
const DefaultCacheTTL = 5 * time.Minute

// cacheEntry is a cached fused result list with expiry.
type cacheEntry struct {
	results   []domain.FusedResult
	expiresAt time.Time
}

// ResultCache memoizes fused search results keyed by a signature of the
// normalized query, top-k and filters. It is strictly an optimization:
// every operation is safe to skip and any failure falls back to full
// recomputation.
//
// Eviction is LRU on capacity plus per-entry TTL. InvalidateAll is the
// coarse corpus-mutation hook; correctness over hit rate.
type ResultCache struct {
	entries *lru.Cache[[32]byte, cacheEntry]
	ttl     time.Duration

	hits   atomic.Int64
	misses atomic.Int64
}

// NewResultCache creates a result cache with the given capacity and TTL.
// Non-positive values fall back to the defaults.
func NewResultCache(size int, ttl time.Duration) *ResultCache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}

	entries, err := lru.New[[32]byte, cacheEntry](size)
	if err != nil {
		// lru.New only fails on size <= 0, which is handled above.
		panic(fmt.Sprintf("result cache: %v", err))
	}

	return &ResultCache{entries: entries, ttl: ttl}
}

// Signature derives the cache key for a query. The query text is
// normalized the same way the lexical path normalizes it, so queries
// differing only in casing or whitespace share an entry. Filters are
// serialized in sorted key order.
func Signature(query string, topK int, filters map[string]any) [32]byte {
	var sb strings.Builder
	sb.WriteString(textproc.Normalize(query))
	fmt.Fprintf(&sb, "|k=%d", topK)

	if len(filters) > 0 {
		keys := make([]string, 0, len(filters))
		for k := range filters {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&sb, "|%s=%v", k, filters[k])
		}
	}

	return sha256.Sum256([]byte(sb.String()))
}

// Get returns the cached results for a signature, or nil on miss.
// Expired entries are evicted on access.
func (c *ResultCache) Get(sig [32]byte) []domain.FusedResult {
	entry, ok := c.entries.Get(sig)
	if !ok {
		c.misses.Add(1)
		return nil
	}

	if time.Now().After(entry.expiresAt) {
		c.entries.Remove(sig)
		c.misses.Add(1)
		return nil
	}

	c.hits.Add(1)

	// Hand out a copy so callers cannot mutate the cached entry.
	out := make([]domain.FusedResult, len(entry.results))
	copy(out, entry.results)
	return out
}

// Put stores fused results under a signature with the cache TTL.
// The slice is copied so later mutation by the caller does not
// reach the cached entry.
func (c *ResultCache) Put(sig [32]byte, results []domain.FusedResult) {
	stored := make([]domain.FusedResult, len(results))
	copy(stored, results)
	c.entries.Add(sig, cacheEntry{
		results:   stored,
		expiresAt: time.Now().Add(c.ttl),
	})
}

// InvalidateAll drops every entry. Called whenever the corpus mutates
// (ingestion completed, document deleted or reprocessed).
func (c *ResultCache) InvalidateAll() {
	logger.Debug("Result cache: invalidating %d entries", c.entries.Len())
	c.entries.Purge()
}

// Len returns the number of live entries.
func (c *ResultCache) Len() int {
	return c.entries.Len()
}

// Hits returns the cumulative hit count.
func (c *ResultCache) Hits() int64 {
	return c.hits.Load()
}

// Misses returns the cumulative miss count.
func (c *ResultCache) Misses() int64 {
	return c.misses.Load()
}
