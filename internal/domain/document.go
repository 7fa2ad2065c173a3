package domain

import "time"

// DocumentStatus tracks ingestion progress of an uploaded document.
type DocumentStatus string

const (
	DocumentPending    DocumentStatus = "pending"
	DocumentProcessing DocumentStatus = "processing"
	DocumentReady      DocumentStatus = "ready"
	DocumentFailed     DocumentStatus = "failed"
)

// Document is an uploaded PDF owned by a user.
type Document struct {
	ID           string         `json:"id"`
	UserID       string         `json:"user_id"`
	FileName     string         `json:"file_name"`
	StoragePath  string         `json:"storage_path"`
	MimeType     string         `json:"mime_type"`
	SizeBytes    int64          `json:"size_bytes"`
	Status       DocumentStatus `json:"status"`
	ErrorMessage string         `json:"error_message,omitempty"`
	ChunkCount   int            `json:"chunk_count"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// DocumentChunk is a bounded slice of extracted document text with its embedding.
type DocumentChunk struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"document_id"`
	UserID     string    `json:"user_id"`
	ChunkIndex int       `json:"chunk_index"`
	Content    string    `json:"content"`
	Embedding  []float32 `json:"-"`
	Similarity float64   `json:"similarity,omitempty"`
}
