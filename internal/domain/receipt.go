package domain

import "time"

// Receipt is a file attached to a transaction. SignedURL is generated on read.
type Receipt struct {
	ID              string    `json:"id"`
	UserID          string    `json:"user_id"`
	TransactionID   string    `json:"transaction_id"`
	TransactionName string    `json:"transaction_name,omitempty"`
	FileName        string    `json:"file_name"`
	StoragePath     string    `json:"storage_path"`
	MimeType        string    `json:"mime_type"`
	SizeBytes       int64     `json:"size_bytes"`
	CreatedAt       time.Time `json:"created_at"`
	SignedURL       string    `json:"signed_url,omitempty"`
}
