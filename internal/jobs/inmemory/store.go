package inmemory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/dvloznov/finance-dashboard/internal/jobs"
)

// Store is an in-memory JobStore. Data is lost on restart.
type Store struct {
	mu   sync.RWMutex
	jobs map[string]*jobs.ProcessDocumentJob
}

func NewStore() *Store {
	return &Store{jobs: make(map[string]*jobs.ProcessDocumentJob)}
}

func (s *Store) SaveJob(_ context.Context, job *jobs.ProcessDocumentJob) error {
	if job.JobID == "" {
		return fmt.Errorf("job ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	jobCopy := *job
	s.jobs[job.JobID] = &jobCopy
	return nil
}

func (s *Store) GetJob(_ context.Context, jobID string) (*jobs.ProcessDocumentJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", jobs.ErrJobNotFound, jobID)
	}
	jobCopy := *job
	return &jobCopy, nil
}

func (s *Store) ListJobs(_ context.Context, filter jobs.JobFilter) ([]*jobs.ProcessDocumentJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := []*jobs.ProcessDocumentJob{}
	for _, job := range s.jobs {
		if filter.UserID != "" && job.UserID != filter.UserID {
			continue
		}
		if filter.DocumentID != "" && job.DocumentID != filter.DocumentID {
			continue
		}
		if filter.Status != "" && job.Status != filter.Status {
			continue
		}
		jobCopy := *job
		result = append(result, &jobCopy)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].JobID < result[j].JobID
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(result) {
			return []*jobs.ProcessDocumentJob{}, nil
		}
		result = result[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(result) {
		result = result[:filter.Limit]
	}
	return result, nil
}

func (s *Store) UpdateJobStatus(_ context.Context, jobID string, status jobs.JobStatus, errorMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return fmt.Errorf("%w: %s", jobs.ErrJobNotFound, jobID)
	}
	job.Status = status
	if errorMsg != "" {
		job.Error = errorMsg
	}
	return nil
}

var _ jobs.JobStore = (*Store)(nil)
