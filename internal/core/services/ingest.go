package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/moa-labs/docmoa/internal/chunker"
	"github.com/moa-labs/docmoa/internal/core/domain"
	"github.com/moa-labs/docmoa/internal/core/ports/driven"
	"github.com/moa-labs/docmoa/internal/core/ports/driving"
	"github.com/moa-labs/docmoa/internal/logger"
)

// Ensure IngestService implements the interface.
var _ driving.IngestService = (*IngestService)(nil)

// embedBatchSize is how many chunks are embedded per request.
const embedBatchSize = 16

// embedConcurrency bounds parallel embedding batches.
const embedConcurrency = 4

// CacheInvalidator is the corpus-mutation hook the ingestion pipeline
// calls on the search side. Satisfied by SearchService.
type CacheInvalidator interface {
	InvalidateCache()
}

// IngestService chunks, embeds and indexes documents, and keeps both
// retrieval paths and the result cache consistent with the corpus.
type IngestService struct {
	docStore    driven.DocumentStore
	lexical     driven.LexicalIndex
	vector      driven.VectorIndex
	embedder    driven.EmbeddingService
	chunker     *chunker.Chunker
	invalidator CacheInvalidator
}

// NewIngestService creates an ingest service. The embedder is optional;
// without it chunks are indexed for lexical search only.
func NewIngestService(
	docStore driven.DocumentStore,
	lexical driven.LexicalIndex,
	vector driven.VectorIndex,
	embedder driven.EmbeddingService,
	ck *chunker.Chunker,
	invalidator CacheInvalidator,
) *IngestService {
	if ck == nil {
		ck = chunker.New()
	}
	return &IngestService{
		docStore:    docStore,
		lexical:     lexical,
		vector:      vector,
		embedder:    embedder,
		chunker:     ck,
		invalidator: invalidator,
	}
}

// Ingest chunks, embeds and indexes a document, returning the number of
// chunks created. Re-ingesting purges the document's old chunks from
// the store and both indices before inserting the new ones.
func (s *IngestService) Ingest(ctx context.Context, doc *domain.Document) (int, error) {
	logger.Section("Ingest")
	logger.Debug("Document: %s (%d bytes)", doc.ID, len(doc.Content))

	if doc.ID == "" {
		return 0, fmt.Errorf("%w: document ID is required", domain.ErrInvalidInput)
	}

	if err := s.purge(ctx, doc.ID); err != nil {
		return 0, fmt.Errorf("purge old chunks: %w", err)
	}

	now := time.Now()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now

	chunks := s.chunker.Chunk(doc)
	logger.Debug("Chunked into %d pieces", len(chunks))

	if s.embedder != nil {
		if err := s.embedChunks(ctx, chunks); err != nil {
			return 0, fmt.Errorf("embed chunks: %w", err)
		}
	}

	if err := s.docStore.SaveDocument(ctx, doc); err != nil {
		return 0, fmt.Errorf("save document: %w", err)
	}
	if err := s.docStore.SaveChunks(ctx, chunks); err != nil {
		return 0, fmt.Errorf("save chunks: %w", err)
	}

	for i := range chunks {
		if s.lexical != nil {
			if err := s.lexical.Index(ctx, chunks[i]); err != nil {
				return 0, fmt.Errorf("index chunk %s: %w", chunks[i].ID, err)
			}
		}
		if s.vector != nil && len(chunks[i].Embedding) > 0 {
			if err := s.vector.Add(ctx, chunks[i].ID, chunks[i].Embedding, chunks[i].Metadata); err != nil {
				return 0, fmt.Errorf("add vector %s: %w", chunks[i].ID, err)
			}
		}
	}

	s.invalidate()
	logger.Info("Ingested %s: %d chunks", doc.ID, len(chunks))
	return len(chunks), nil
}

// Delete removes a document and its chunks from the store and both
// indices, and invalidates the result cache.
func (s *IngestService) Delete(ctx context.Context, documentID string) error {
	logger.Section("Delete Document")

	if err := s.purge(ctx, documentID); err != nil {
		return err
	}
	if err := s.docStore.DeleteDocument(ctx, documentID); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("delete document: %w", err)
	}

	s.invalidate()
	logger.Info("Deleted document %s", documentID)
	return nil
}

// purge removes a document's existing chunks from both indices.
func (s *IngestService) purge(ctx context.Context, documentID string) error {
	existing, err := s.docStore.GetChunks(ctx, documentID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return err
	}

	for i := range existing {
		if s.lexical != nil {
			if err := s.lexical.Delete(ctx, existing[i].ID); err != nil {
				return fmt.Errorf("remove chunk %s from lexical index: %w", existing[i].ID, err)
			}
		}
		if s.vector != nil {
			if err := s.vector.Delete(ctx, existing[i].ID); err != nil {
				return fmt.Errorf("remove chunk %s from vector index: %w", existing[i].ID, err)
			}
		}
	}

	if len(existing) > 0 {
		logger.Debug("Purged %d existing chunks for %s", len(existing), documentID)
	}
	return nil
}

// embedChunks computes embeddings in bounded parallel batches.
func (s *IngestService) embedChunks(ctx context.Context, chunks []domain.Chunk) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(embedConcurrency)

	for start := 0; start < len(chunks); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		g.Go(func() error {
			texts := make([]string, len(batch))
			for i := range batch {
				texts[i] = batch[i].Content
			}

			embeddings, err := s.embedder.EmbedBatch(ctx, texts)
			if err != nil {
				return err
			}
			if len(embeddings) != len(batch) {
				return fmt.Errorf("embedding count mismatch: got %d, want %d", len(embeddings), len(batch))
			}

			for i := range batch {
				batch[i].Embedding = embeddings[i]
			}
			return nil
		})
	}

	return g.Wait()
}

func (s *IngestService) invalidate() {
	if s.invalidator != nil {
		s.invalidator.InvalidateCache()
	}
}
