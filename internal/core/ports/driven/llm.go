package driven

import "context"

// LLMService provides language-model operations used on the retrieval
// side. This is an optional service - when nil, query rewriting is
// disabled and queries are searched verbatim.
type LLMService interface {
	// RewriteQuery rewrites a user query into a form better suited for
	// retrieval (resolving pronouns, expanding shorthand). On failure
	// callers fall back to the original query.
	RewriteQuery(ctx context.Context, query string) (string, error)

	// ModelName returns the name of the model being used.
	ModelName() string

	// Ping validates the service is reachable.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}
