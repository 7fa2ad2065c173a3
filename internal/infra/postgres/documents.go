package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/dvloznov/finance-dashboard/internal/documents"
	"github.com/dvloznov/finance-dashboard/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"
)

const documentColumns = `id, user_id, file_name, storage_path, mime_type, size_bytes, status, error_message, chunk_count, created_at, updated_at`

// DocumentRepository implements documents.Repository.
type DocumentRepository struct {
	db DB
}

func NewDocumentRepository(db DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func scanDocument(row pgx.Row) (*domain.Document, error) {
	var d domain.Document
	err := row.Scan(&d.ID, &d.UserID, &d.FileName, &d.StoragePath, &d.MimeType, &d.SizeBytes,
		&d.Status, &d.ErrorMessage, &d.ChunkCount, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *DocumentRepository) CreateDocument(ctx context.Context, d *domain.Document) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.Status == "" {
		d.Status = domain.DocumentPending
	}
	err := r.db.QueryRow(ctx, `
		INSERT INTO documents (id, user_id, file_name, storage_path, mime_type, size_bytes, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`,
		d.ID, d.UserID, d.FileName, d.StoragePath, d.MimeType, d.SizeBytes, d.Status,
	).Scan(&d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return fmt.Errorf("CreateDocument: insert: %w", err)
	}
	return nil
}

func (r *DocumentRepository) GetDocument(ctx context.Context, userID, id string) (*domain.Document, error) {
	d, err := scanDocument(r.db.QueryRow(ctx, `
		SELECT `+documentColumns+`
		FROM documents
		WHERE id = $1 AND user_id = $2`, id, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("GetDocument: %s: %w", id, documents.ErrDocumentNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("GetDocument: %w", err)
	}
	return d, nil
}

func (r *DocumentRepository) ListDocuments(ctx context.Context, userID string) ([]domain.Document, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+documentColumns+`
		FROM documents
		WHERE user_id = $1
		ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("ListDocuments: query: %w", err)
	}
	defer rows.Close()

	out := []domain.Document{}
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("ListDocuments: scan: %w", err)
		}
		out = append(out, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListDocuments: rows: %w", err)
	}
	return out, nil
}

func (r *DocumentRepository) UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, errMsg string, chunkCount int) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE documents
		SET status = $2, error_message = $3, chunk_count = $4, updated_at = now()
		WHERE id = $1`, id, status, errMsg, chunkCount)
	if err != nil {
		return fmt.Errorf("UpdateStatus: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("UpdateStatus: %s: %w", id, documents.ErrDocumentNotFound)
	}
	return nil
}

// DeleteDocument removes the row; chunks go with it through the foreign key.
func (r *DocumentRepository) DeleteDocument(ctx context.Context, userID, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM documents WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("DeleteDocument: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("DeleteDocument: %s: %w", id, documents.ErrDocumentNotFound)
	}
	return nil
}

// InsertChunks copies the batch in with a single COPY.
func (r *DocumentRepository) InsertChunks(ctx context.Context, chunks []domain.DocumentChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	rows := make([][]any, 0, len(chunks))
	for _, c := range chunks {
		id := c.ID
		if id == "" {
			id = uuid.NewString()
		}
		rows = append(rows, []any{id, c.DocumentID, c.UserID, c.ChunkIndex, c.Content, pgvector.NewVector(c.Embedding)})
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("InsertChunks: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.CopyFrom(ctx,
		pgx.Identifier{"document_chunks"},
		[]string{"id", "document_id", "user_id", "chunk_index", "content", "embedding"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("InsertChunks: copy: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("InsertChunks: commit: %w", err)
	}
	return nil
}

func (r *DocumentRepository) DeleteChunks(ctx context.Context, documentID string) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM document_chunks WHERE document_id = $1`, documentID); err != nil {
		return fmt.Errorf("DeleteChunks: %w", err)
	}
	return nil
}

// MatchChunks calls the match_document_chunks function.
func (r *DocumentRepository) MatchChunks(ctx context.Context, p documents.MatchParams) ([]domain.DocumentChunk, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, document_id, user_id, chunk_index, content, similarity
		FROM match_document_chunks(
			query_embedding   => $1,
			match_document_id => $2,
			match_user_id     => $3,
			match_threshold   => $4,
			match_count       => $5)`,
		pgvector.NewVector(p.Embedding), p.DocumentID, p.UserID, p.Threshold, p.Count)
	if err != nil {
		return nil, fmt.Errorf("MatchChunks: query: %w", err)
	}
	defer rows.Close()

	out := []domain.DocumentChunk{}
	for rows.Next() {
		var c domain.DocumentChunk
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.UserID, &c.ChunkIndex, &c.Content, &c.Similarity); err != nil {
			return nil, fmt.Errorf("MatchChunks: scan: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("MatchChunks: rows: %w", err)
	}
	return out, nil
}

func (r *DocumentRepository) ListChunks(ctx context.Context, userID, documentID string, limit int) ([]domain.DocumentChunk, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, document_id, user_id, chunk_index, content
		FROM document_chunks
		WHERE document_id = $1 AND user_id = $2
		ORDER BY chunk_index
		LIMIT $3`, documentID, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("ListChunks: query: %w", err)
	}
	defer rows.Close()

	out := []domain.DocumentChunk{}
	for rows.Next() {
		var c domain.DocumentChunk
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.UserID, &c.ChunkIndex, &c.Content); err != nil {
			return nil, fmt.Errorf("ListChunks: scan: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListChunks: rows: %w", err)
	}
	return out, nil
}

var _ documents.Repository = (*DocumentRepository)(nil)
