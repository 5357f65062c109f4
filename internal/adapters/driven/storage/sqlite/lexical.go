package sqlite

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/moa-labs/docmoa/internal/core/domain"
	"github.com/moa-labs/docmoa/internal/core/ports/driven"
	"github.com/moa-labs/docmoa/internal/logger"
	"github.com/moa-labs/docmoa/internal/textproc"
)

// orTermThreshold is the term count above which the MATCH query uses OR
// instead of AND. Long queries matched conjunctively return nothing.
const orTermThreshold = 3

// filterKeyPattern restricts metadata filter keys to identifier-like
// names; keys are interpolated into the json_extract path.
var filterKeyPattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// LexicalIndex returns a LexicalIndex interface backed by this store's
// FTS5 table.
func (s *Store) LexicalIndex() driven.LexicalIndex {
	return &lexicalIndex{store: s}
}

// lexicalIndex implements driven.LexicalIndex over SQLite FTS5.
type lexicalIndex struct {
	store *Store
}

var _ driven.LexicalIndex = (*lexicalIndex)(nil)

// Index adds or updates a chunk in the full-text index. Delete-then-
// insert runs in one transaction so readers never see a partial entry.
func (l *lexicalIndex) Index(ctx context.Context, chunk domain.Chunk) error {
	tx, err := l.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, "DELETE FROM chunks_fts WHERE chunk_id = ?", chunk.ID); err != nil {
		return fmt.Errorf("removing stale entry: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO chunks_fts (content, chunk_id) VALUES (?, ?)",
		chunk.Content, chunk.ID); err != nil {
		return fmt.Errorf("indexing chunk %s: %w", chunk.ID, err)
	}

	return tx.Commit()
}

// Delete removes a chunk from the full-text index.
func (l *lexicalIndex) Delete(ctx context.Context, chunkID string) error {
	if _, err := l.store.db.ExecContext(ctx,
		"DELETE FROM chunks_fts WHERE chunk_id = ?", chunkID); err != nil {
		return fmt.Errorf("deleting chunk %s: %w", chunkID, err)
	}
	return nil
}

// Search performs a ranked full-text search. The raw query is
// normalized here (callers pass user text); metadata filters are
// applied in SQL before ranking so relevance order among survivors is
// preserved. Results are ordered by descending BM25 relevance.
func (l *lexicalIndex) Search(ctx context.Context, query string, limit int, filters map[string]any) ([]driven.LexicalHit, error) {
	matchQuery := buildMatchQuery(query)
	if matchQuery == "" {
		return []driven.LexicalHit{}, nil
	}
	logger.Debug("FTS query: %q", matchQuery)

	var sb strings.Builder
	sb.WriteString(`
		SELECT f.chunk_id, -bm25(chunks_fts) AS score
		FROM chunks_fts f
		JOIN chunks c ON c.id = f.chunk_id
		WHERE chunks_fts MATCH ?`)
	args := []any{matchQuery}

	filterSQL, filterArgs, err := buildFilterClause(filters)
	if err != nil {
		return nil, err
	}
	sb.WriteString(filterSQL)
	args = append(args, filterArgs...)

	sb.WriteString(" ORDER BY bm25(chunks_fts) LIMIT ?")
	args = append(args, limit)

	rows, err := l.store.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("full-text search: %w", err)
	}
	defer rows.Close()

	var hits []driven.LexicalHit
	for rows.Next() {
		var hit driven.LexicalHit
		if err := rows.Scan(&hit.ChunkID, &hit.Score); err != nil {
			return nil, fmt.Errorf("scanning hit: %w", err)
		}
		hits = append(hits, hit)
	}
	return hits, rows.Err()
}

// Close is a no-op; the underlying database is owned by the Store.
func (l *lexicalIndex) Close() error {
	return nil
}

// buildMatchQuery turns raw user text into an FTS5 MATCH expression.
// Terms are normalized (casing, whitespace, Korean particles, FTS
// operator characters) and quoted. Short queries require every term;
// longer ones match any, mirroring how multi-clause questions rarely
// share all terms with a single chunk.
func buildMatchQuery(query string) string {
	cleaned := textproc.CleanQuery(query)
	if cleaned == "" {
		return ""
	}

	words := strings.Split(cleaned, " ")
	quoted := make([]string, 0, len(words))
	for _, word := range words {
		if word == "" {
			continue
		}
		quoted = append(quoted, `"`+word+`"`)
	}
	if len(quoted) == 0 {
		return ""
	}

	operator := " AND "
	if len(quoted) > orTermThreshold {
		operator = " OR "
	}
	return strings.Join(quoted, operator)
}

// buildFilterClause renders metadata filters as json_extract equality
// predicates. Keys are validated; values are bound parameters.
func buildFilterClause(filters map[string]any) (string, []any, error) {
	if len(filters) == 0 {
		return "", nil, nil
	}

	keys := make([]string, 0, len(filters))
	for k := range filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	args := make([]any, 0, len(filters))
	for _, key := range keys {
		if !filterKeyPattern.MatchString(key) {
			return "", nil, fmt.Errorf("%w: invalid filter key %q", domain.ErrInvalidInput, key)
		}
		fmt.Fprintf(&sb, " AND json_extract(c.metadata, '$.%s') = ?", key)
		args = append(args, filters[key])
	}
	return sb.String(), args, nil
}
