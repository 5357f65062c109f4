package domain

import "time"

// Document represents an ingested document with metadata.
// It is the canonical representation after parsing and extraction.
type Document struct {
	// ID is the unique identifier for the document.
	ID string

	// Title is the human-readable title.
	Title string

	// URI is the original location (file path, URL, etc).
	URI string

	// Content is the full text content after extraction.
	// This is the complete document text before chunking.
	Content string

	// Metadata contains arbitrary key-value pairs (file_type,
	// file_name, department, keywords, ...). Values are scalars.
	Metadata map[string]any

	// CreatedAt is when the document was first ingested.
	CreatedAt time.Time

	// UpdatedAt is when the document was last reprocessed.
	UpdatedAt time.Time
}

// Chunk represents a retrievable unit within a document.
// Documents are split into chunks sized for embedding and search.
// Chunks are immutable once created; reprocessing a document purges
// the old chunks before inserting new ones.
type Chunk struct {
	// ID is the unique identifier for the chunk, stable across the corpus.
	ID string

	// DocumentID links to the owning Document.
	DocumentID string

	// Content is the text content of this chunk.
	Content string

	// Position is the ordinal position within the document.
	Position int

	// Embedding is the vector representation for semantic search.
	// Its dimension is fixed for the lifetime of the vector index.
	Embedding []float32

	// Metadata contains chunk-specific key-value pairs, inherited
	// from the document plus chunk-level additions.
	Metadata map[string]any
}
