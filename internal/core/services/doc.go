// Package services implements the core business logic: the hybrid
// search façade, the RRF fusion engine, the result cache, reranking
// and ingestion. Services depend only on domain types and ports.
package services
