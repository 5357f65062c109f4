package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/moa-labs/docmoa/internal/core/domain"
	"github.com/moa-labs/docmoa/internal/core/ports/driven"
)

// jsonEmpty is the stored representation of absent metadata.
const jsonEmpty = "{}"

// DocumentStore returns a DocumentStore interface backed by this store.
func (s *Store) DocumentStore() driven.DocumentStore {
	return &documentStore{store: s}
}

// documentStore implements driven.DocumentStore.
type documentStore struct {
	store *Store
}

var _ driven.DocumentStore = (*documentStore)(nil)

// SaveDocument stores or updates a document.
func (d *documentStore) SaveDocument(ctx context.Context, doc *domain.Document) error {
	metadataJSON, err := marshalMetadata(doc.Metadata)
	if err != nil {
		return fmt.Errorf("marshalling metadata: %w", err)
	}

	now := time.Now().UTC()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now

	_, err = d.store.db.ExecContext(ctx, `
		INSERT INTO documents (id, title, uri, content, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			uri = excluded.uri,
			content = excluded.content,
			metadata = excluded.metadata,
			updated_at = excluded.updated_at
	`, doc.ID, doc.Title, doc.URI, doc.Content, metadataJSON, doc.CreatedAt, doc.UpdatedAt)

	if err != nil {
		return fmt.Errorf("saving document: %w", err)
	}
	return nil
}

// SaveChunks stores chunks in a single transaction so concurrent
// readers never observe a half-written document.
func (d *documentStore) SaveChunks(ctx context.Context, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	tx, err := d.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, document_id, content, position, embedding, metadata)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			document_id = excluded.document_id,
			content = excluded.content,
			position = excluded.position,
			embedding = excluded.embedding,
			metadata = excluded.metadata
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for i := range chunks {
		metadataJSON, err := marshalMetadata(chunks[i].Metadata)
		if err != nil {
			return fmt.Errorf("marshalling metadata for chunk %s: %w", chunks[i].ID, err)
		}

		embeddingBlob := float32SliceToBytes(chunks[i].Embedding)

		if _, err := stmt.ExecContext(ctx, chunks[i].ID, chunks[i].DocumentID,
			chunks[i].Content, chunks[i].Position, embeddingBlob, metadataJSON); err != nil {
			return fmt.Errorf("saving chunk %s: %w", chunks[i].ID, err)
		}
	}

	return tx.Commit()
}

// GetDocument retrieves a document by ID.
func (d *documentStore) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	row := d.store.db.QueryRowContext(ctx, `
		SELECT id, title, uri, content, metadata, created_at, updated_at
		FROM documents WHERE id = ?
	`, id)

	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("getting document: %w", err)
	}
	return doc, nil
}

// GetChunk retrieves a specific chunk by ID.
func (d *documentStore) GetChunk(ctx context.Context, id string) (*domain.Chunk, error) {
	row := d.store.db.QueryRowContext(ctx, `
		SELECT id, document_id, content, position, embedding, metadata
		FROM chunks WHERE id = ?
	`, id)

	chunk, err := scanChunk(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("getting chunk: %w", err)
	}
	return chunk, nil
}

// GetChunks retrieves all chunks for a document, ordered by position.
func (d *documentStore) GetChunks(ctx context.Context, documentID string) ([]domain.Chunk, error) {
	rows, err := d.store.db.QueryContext(ctx, `
		SELECT id, document_id, content, position, embedding, metadata
		FROM chunks WHERE document_id = ? ORDER BY position
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	return collectChunks(rows)
}

// ListChunks returns every chunk in the corpus, ordered by document and
// position. Used to rebuild the in-memory vector index at startup.
func (d *documentStore) ListChunks(ctx context.Context) ([]domain.Chunk, error) {
	rows, err := d.store.db.QueryContext(ctx, `
		SELECT id, document_id, content, position, embedding, metadata
		FROM chunks ORDER BY document_id, position
	`)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	return collectChunks(rows)
}

// DeleteDocument removes a document; its chunks cascade.
func (d *documentStore) DeleteDocument(ctx context.Context, id string) error {
	result, err := d.store.db.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListDocuments returns all documents ordered by creation time.
func (d *documentStore) ListDocuments(ctx context.Context) ([]domain.Document, error) {
	rows, err := d.store.db.QueryContext(ctx, `
		SELECT id, title, uri, content, metadata, created_at, updated_at
		FROM documents ORDER BY created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	var docs []domain.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		docs = append(docs, *doc)
	}
	return docs, rows.Err()
}

// scanner abstracts sql.Row and sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(row scanner) (*domain.Document, error) {
	var doc domain.Document
	var metadataJSON string
	if err := row.Scan(&doc.ID, &doc.Title, &doc.URI, &doc.Content,
		&metadataJSON, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
		return nil, err
	}
	if err := unmarshalMetadata(metadataJSON, &doc.Metadata); err != nil {
		return nil, err
	}
	return &doc, nil
}

func scanChunk(row scanner) (*domain.Chunk, error) {
	var chunk domain.Chunk
	var embeddingBlob []byte
	var metadataJSON string
	if err := row.Scan(&chunk.ID, &chunk.DocumentID, &chunk.Content,
		&chunk.Position, &embeddingBlob, &metadataJSON); err != nil {
		return nil, err
	}
	chunk.Embedding = bytesToFloat32Slice(embeddingBlob)
	if err := unmarshalMetadata(metadataJSON, &chunk.Metadata); err != nil {
		return nil, err
	}
	return &chunk, nil
}

func collectChunks(rows *sql.Rows) ([]domain.Chunk, error) {
	var chunks []domain.Chunk
	for rows.Next() {
		chunk, err := scanChunk(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		chunks = append(chunks, *chunk)
	}
	return chunks, rows.Err()
}

func marshalMetadata(metadata map[string]any) (string, error) {
	if len(metadata) == 0 {
		return jsonEmpty, nil
	}
	data, err := json.Marshal(metadata)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func unmarshalMetadata(data string, dest *map[string]any) error {
	if data == "" || data == jsonEmpty {
		return nil
	}
	return json.Unmarshal([]byte(data), dest)
}
