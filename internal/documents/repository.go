// Package documents ingests uploaded PDFs into embedded text chunks and answers
// questions grounded in them.
package documents

import (
	"context"
	"errors"

	"github.com/dvloznov/finance-dashboard/internal/domain"
)

var (
	ErrDocumentNotFound = errors.New("document not found")
	ErrNoChunks         = errors.New("no document chunks")
	ErrLocked           = errors.New("document is already being processed")
)

// MatchParams are the arguments of the similarity search.
type MatchParams struct {
	Embedding  []float32
	DocumentID string
	UserID     string
	Threshold  float64
	Count      int
}

// Repository persists documents and their chunks.
type Repository interface {
	CreateDocument(ctx context.Context, d *domain.Document) error
	// GetDocument returns the document only if userID owns it; otherwise an
	// error wrapping ErrDocumentNotFound.
	GetDocument(ctx context.Context, userID, id string) (*domain.Document, error)
	ListDocuments(ctx context.Context, userID string) ([]domain.Document, error)
	UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, errMsg string, chunkCount int) error
	DeleteDocument(ctx context.Context, userID, id string) error

	InsertChunks(ctx context.Context, chunks []domain.DocumentChunk) error
	DeleteChunks(ctx context.Context, documentID string) error
	// MatchChunks runs the similarity search procedure.
	MatchChunks(ctx context.Context, p MatchParams) ([]domain.DocumentChunk, error)
	// ListChunks returns up to limit chunks in chunk order without scoring.
	ListChunks(ctx context.Context, userID, documentID string, limit int) ([]domain.DocumentChunk, error)
}

// Embedder turns texts into vectors, one per input.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Completer produces a completion under a system instruction.
type Completer interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// PageExtractor returns the text of each page of a PDF.
type PageExtractor interface {
	ExtractPages(ctx context.Context, pdf []byte) ([]string, error)
}
