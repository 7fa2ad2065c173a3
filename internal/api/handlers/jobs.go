package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/dvloznov/finance-dashboard/internal/api/middleware"
	"github.com/dvloznov/finance-dashboard/internal/jobs"
	"github.com/dvloznov/finance-dashboard/internal/logger"
)

// JobsHandler handles job-related endpoints.
type JobsHandler struct {
	store jobs.JobStore
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(store jobs.JobStore) *JobsHandler {
	return &JobsHandler{store: store}
}

// GetJob handles GET /api/jobs/{id}. Jobs of other users are reported as
// not found.
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	user, ok := userID(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	jobID := r.PathValue("id")

	job, err := h.store.GetJob(ctx, jobID)
	if err != nil && !errors.Is(err, jobs.ErrJobNotFound) {
		log := logger.FromContext(ctx)
		log.Error().Err(err).Str("job_id", jobID).Msg("Failed to get job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to get job")
		return
	}
	if err != nil || job.UserID != user {
		middleware.WriteError(w, http.StatusNotFound, "Job not found")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, job)
}

// ListJobs handles GET /api/jobs
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	user, ok := userID(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	// Parse query parameters
	query := r.URL.Query()
	filter := jobs.JobFilter{
		UserID:     user,
		DocumentID: query.Get("document_id"),
		Status:     jobs.JobStatus(query.Get("status")),
	}

	if limitStr := query.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = limit
		}
	}

	if offsetStr := query.Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil {
			filter.Offset = offset
		}
	}

	jobsList, err := h.store.ListJobs(ctx, filter)
	if err != nil {
		log := logger.FromContext(ctx)
		log.Error().Err(err).Msg("Failed to list jobs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobsList,
		"count": len(jobsList),
	})
}
