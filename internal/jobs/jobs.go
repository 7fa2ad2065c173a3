// Package jobs defines asynchronous document processing jobs and the queue
// abstractions that run them.
package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/dvloznov/finance-dashboard/internal/apperr"
)

// DefaultMaxRetries is used when a published job does not set MaxRetries.
const DefaultMaxRetries = 3

var ErrJobNotFound = errors.New("job not found")

// JobType represents the type of job to be executed.
type JobType string

const (
	JobTypeProcessDocument JobType = "process_document"
)

// JobStatus represents the current status of a job.
type JobStatus string

const (
	// JobStatusPending indicates the job is waiting to be processed.
	JobStatusPending JobStatus = "pending"
	// JobStatusRunning indicates the job is currently being processed.
	JobStatusRunning JobStatus = "running"
	// JobStatusCompleted indicates the job completed successfully.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates the job failed and will not be retried.
	JobStatusFailed JobStatus = "failed"
	// JobStatusRetrying indicates the job failed and is scheduled again.
	JobStatusRetrying JobStatus = "retrying"
)

// ProcessDocumentJob re-runs ingestion for a stored document.
type ProcessDocumentJob struct {
	JobID      string `json:"job_id"`
	UserID     string `json:"user_id"`
	DocumentID string `json:"document_id"`

	// FilePath optionally pins the storage path the document must have.
	FilePath string `json:"file_path,omitempty"`

	Status      JobStatus  `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`

	// ChunkCount is set when the job completes.
	ChunkCount int `json:"chunk_count,omitempty"`

	RetryCount int `json:"retry_count"`
	MaxRetries int `json:"max_retries"`
}

// Type returns the job type.
func (j *ProcessDocumentJob) Type() JobType {
	return JobTypeProcessDocument
}

// Publisher enqueues jobs.
type Publisher interface {
	PublishProcessDocument(ctx context.Context, job *ProcessDocumentJob) error
	Close() error
}

// Consumer runs queued jobs.
type Consumer interface {
	// Start begins consuming jobs, calling handler for each.
	Start(ctx context.Context, handler Handler) error

	// Stop stops consuming jobs and waits for in-flight jobs to complete.
	Stop(ctx context.Context) error
}

// Handler processes one job. A returned error schedules a retry unless it is
// marked Permanent or the job is out of retries.
type Handler func(ctx context.Context, job *ProcessDocumentJob) error

// JobStore records job state.
type JobStore interface {
	SaveJob(ctx context.Context, job *ProcessDocumentJob) error
	// GetJob returns an error wrapping ErrJobNotFound for unknown ids.
	GetJob(ctx context.Context, jobID string) (*ProcessDocumentJob, error)
	// ListJobs returns matching jobs, newest first.
	ListJobs(ctx context.Context, filter JobFilter) ([]*ProcessDocumentJob, error)
	UpdateJobStatus(ctx context.Context, jobID string, status JobStatus, errorMsg string) error
}

// JobFilter defines filtering criteria for listing jobs.
type JobFilter struct {
	UserID     string
	DocumentID string
	Status     JobStatus

	Limit  int
	Offset int
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// Ingester runs document ingestion.
type Ingester interface {
	Ingest(ctx context.Context, userID, documentID, filePath string) (chunkCount int, err error)
}

// IngestFunc adapts a function to Ingester.
type IngestFunc func(ctx context.Context, userID, documentID, filePath string) (int, error)

func (f IngestFunc) Ingest(ctx context.Context, userID, documentID, filePath string) (int, error) {
	return f(ctx, userID, documentID, filePath)
}

// IngestHandler returns a Handler that ingests the job's document. Failures
// that a retry cannot fix (missing document, bad input, a concurrent run) are
// permanent; transient ones are retried.
func IngestHandler(ing Ingester) Handler {
	return func(ctx context.Context, job *ProcessDocumentJob) error {
		n, err := ing.Ingest(ctx, job.UserID, job.DocumentID, job.FilePath)
		if err != nil {
			switch apperr.KindOf(err) {
			case apperr.KindNotFound, apperr.KindValidation, apperr.KindConflict, apperr.KindUnauthorized:
				return Permanent(err)
			}
			return err
		}
		job.ChunkCount = n
		return nil
	}
}
