// Package domain contains the core business entities for docmoa:
// documents, chunks, search options and results, and domain errors.
// It has no dependencies on adapters or infrastructure.
package domain
