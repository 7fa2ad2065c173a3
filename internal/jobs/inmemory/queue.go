// Package inmemory provides channel-backed implementations of the job queue
// and job store for single-instance deployments and tests.
package inmemory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dvloznov/finance-dashboard/internal/jobs"
	"github.com/dvloznov/finance-dashboard/internal/logger"
	"github.com/google/uuid"
)

var ErrQueueClosed = errors.New("queue is closed")

// Options configures a Queue.
type Options struct {
	// BufferSize is how many jobs can wait before Publish blocks.
	BufferSize int
	// Workers is the number of concurrent handlers.
	Workers int
	// Backoff is multiplied by the retry count to get the retry delay.
	Backoff time.Duration
}

func (o Options) withDefaults() Options {
	if o.BufferSize <= 0 {
		o.BufferSize = 100
	}
	if o.Workers <= 0 {
		o.Workers = 5
	}
	if o.Backoff <= 0 {
		o.Backoff = time.Second
	}
	return o
}

// Queue is an in-memory Publisher and Consumer. It is safe for concurrent use.
type Queue struct {
	opts      Options
	jobChan   chan *jobs.ProcessDocumentJob
	closeChan chan struct{}
	wg        sync.WaitGroup
	mu        sync.RWMutex
	store     jobs.JobStore
	closed    bool
}

// NewQueue creates a queue. store may be nil.
func NewQueue(opts Options, store jobs.JobStore) *Queue {
	opts = opts.withDefaults()
	return &Queue{
		opts:      opts,
		jobChan:   make(chan *jobs.ProcessDocumentJob, opts.BufferSize),
		closeChan: make(chan struct{}),
		store:     store,
	}
}

// PublishProcessDocument fills in defaults, records the job and enqueues it.
func (q *Queue) PublishProcessDocument(ctx context.Context, job *jobs.ProcessDocumentJob) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return ErrQueueClosed
	}

	if job.JobID == "" {
		job.JobID = uuid.NewString()
	}
	if job.Status == "" {
		job.Status = jobs.JobStatusPending
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	if job.MaxRetries == 0 {
		job.MaxRetries = jobs.DefaultMaxRetries
	}

	q.save(ctx, job)

	// The queue owns its copy from here on.
	queued := *job
	select {
	case q.jobChan <- &queued:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-q.closeChan:
		return ErrQueueClosed
	}
}

// Start launches the worker pool.
func (q *Queue) Start(ctx context.Context, handler jobs.Handler) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}

	for i := 0; i < q.opts.Workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, handler)
	}
	return nil
}

func (q *Queue) worker(ctx context.Context, handler jobs.Handler) {
	defer q.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-q.closeChan:
			return
		case job := <-q.jobChan:
			if job == nil {
				return
			}
			q.processJob(ctx, job, handler)
		}
	}
}

// processJob runs one attempt and schedules a retry with linear backoff when
// the handler fails with a retryable error.
func (q *Queue) processJob(ctx context.Context, job *jobs.ProcessDocumentJob, handler jobs.Handler) {
	log := logger.FromContext(ctx).With().
		Str("job_id", job.JobID).
		Str("document_id", job.DocumentID).
		Int("attempt", job.RetryCount+1).
		Logger()

	job.Status = jobs.JobStatusRunning
	now := time.Now().UTC()
	job.StartedAt = &now
	job.CompletedAt = nil
	q.save(ctx, job)

	err := handler(logger.WithContext(ctx, log), job)

	completedAt := time.Now().UTC()
	job.CompletedAt = &completedAt

	if err == nil {
		job.Status = jobs.JobStatusCompleted
		job.Error = ""
		q.save(ctx, job)
		log.Info().Msg("Job completed")
		return
	}

	job.Error = err.Error()
	if jobs.IsPermanent(err) || job.RetryCount >= job.MaxRetries {
		job.Status = jobs.JobStatusFailed
		q.save(ctx, job)
		log.Error().Err(err).Msg("Job failed")
		return
	}

	job.RetryCount++
	job.Status = jobs.JobStatusRetrying
	q.save(ctx, job)

	backoff := time.Duration(job.RetryCount) * q.opts.Backoff
	log.Warn().Err(err).Dur("backoff", backoff).Msg("Job failed, retrying")

	retry := *job
	retry.Status = jobs.JobStatusPending
	retry.StartedAt = nil
	retry.CompletedAt = nil

	time.AfterFunc(backoff, func() {
		if err := q.PublishProcessDocument(context.WithoutCancel(ctx), &retry); err != nil {
			log.Error().Err(err).Msg("Failed to re-enqueue job")
		}
	})
}

func (q *Queue) save(ctx context.Context, job *jobs.ProcessDocumentJob) {
	if q.store == nil {
		return
	}
	if err := q.store.SaveJob(ctx, job); err != nil {
		log := logger.FromContext(ctx)
		log.Warn().Err(err).Str("job_id", job.JobID).Msg("Failed to save job state")
	}
}

// Stop closes the queue and waits for in-flight jobs to complete. Pending
// retries are abandoned.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.closeChan)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close implements jobs.Publisher.
func (q *Queue) Close() error {
	return q.Stop(context.Background())
}

var (
	_ jobs.Publisher = (*Queue)(nil)
	_ jobs.Consumer  = (*Queue)(nil)
)
