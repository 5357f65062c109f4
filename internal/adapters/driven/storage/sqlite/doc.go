// Package sqlite provides SQLite-backed storage adapters: the document
// store and the FTS5 lexical index share one database file so a chunk
// and its full-text entry live or die together.
package sqlite
