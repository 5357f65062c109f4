// Package chunker provides a fixed-size text chunker with overlap.
package chunker

import (
	"github.com/google/uuid"

	"github.com/moa-labs/docmoa/internal/core/domain"
)

// DefaultChunkSize is the default number of characters per chunk.
const DefaultChunkSize = 1000

// DefaultChunkOverlap is the default number of overlapping characters.
const DefaultChunkOverlap = 200

// Chunker splits document content into fixed-size chunks.
// Sizes are in runes, not bytes, so multi-byte Hangul is never split
// mid-character.
type Chunker struct {
	chunkSize int
	overlap   int
}

// Option configures the chunker.
type Option func(*Chunker)

// WithChunkSize sets the chunk size in characters.
func WithChunkSize(size int) Option {
	return func(c *Chunker) {
		if size > 0 {
			c.chunkSize = size
		}
	}
}

// WithOverlap sets the overlap between chunks in characters.
func WithOverlap(overlap int) Option {
	return func(c *Chunker) {
		if overlap >= 0 {
			c.overlap = overlap
		}
	}
}

// New creates a new chunker with the given options.
func New(opts ...Option) *Chunker {
	c := &Chunker{
		chunkSize: DefaultChunkSize,
		overlap:   DefaultChunkOverlap,
	}

	for _, opt := range opts {
		opt(c)
	}

	// Ensure overlap doesn't exceed chunk size
	if c.overlap >= c.chunkSize {
		c.overlap = c.chunkSize / 4
	}

	return c
}

// Chunk splits the document content into chunks. Each chunk inherits
// the document metadata and gets a fresh unique ID.
func (c *Chunker) Chunk(doc *domain.Document) []domain.Chunk {
	if doc.Content == "" {
		// Empty content produces no chunks
		return nil
	}

	content := []rune(doc.Content)
	contentLen := len(content)

	estimatedChunks := (contentLen / (c.chunkSize - c.overlap)) + 1
	chunks := make([]domain.Chunk, 0, estimatedChunks)

	position := 0
	start := 0

	for start < contentLen {
		end := start + c.chunkSize
		if end > contentLen {
			end = contentLen
		}

		metadata := make(map[string]any, len(doc.Metadata)+1)
		for k, v := range doc.Metadata {
			metadata[k] = v
		}
		if doc.Title != "" {
			metadata["title"] = doc.Title
		}

		chunks = append(chunks, domain.Chunk{
			ID:         uuid.New().String(),
			DocumentID: doc.ID,
			Content:    string(content[start:end]),
			Position:   position,
			Metadata:   metadata,
		})
		position++

		if end == contentLen {
			break
		}
		start += c.chunkSize - c.overlap
	}

	return chunks
}
