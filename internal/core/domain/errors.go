package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates an entity already exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidQuery indicates an empty query or non-positive top-k.
	// Rejected before any I/O happens.
	ErrInvalidQuery = errors.New("invalid query")

	// ErrAllPathsFailed indicates both retrieval paths errored or timed
	// out. Distinct from a valid empty result: callers must be able to
	// tell "nothing matched" from "retrieval broke".
	ErrAllPathsFailed = errors.New("all retrieval paths failed")

	// ErrDimensionMismatch indicates an embedding whose dimension does
	// not match the vector index configuration.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrEmbeddingUnavailable indicates the embedding service is not
	// configured. Vector/semantic search is disabled without embeddings.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrLexicalUnavailable indicates the lexical index is not configured.
	// Full-text/keyword search is disabled.
	ErrLexicalUnavailable = errors.New("lexical index unavailable")

	// ErrVectorIndexUnavailable indicates the vector index is not configured.
	// Semantic similarity search is disabled.
	ErrVectorIndexUnavailable = errors.New("vector index unavailable")

	// ErrLLMUnavailable indicates the LLM service is not configured.
	// Features requiring LLM (query rewriting) are disabled.
	ErrLLMUnavailable = errors.New("LLM service unavailable")
)
