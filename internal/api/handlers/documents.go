package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/dvloznov/finance-dashboard/internal/api/middleware"
	"github.com/dvloznov/finance-dashboard/internal/documents"
	"github.com/dvloznov/finance-dashboard/internal/domain"
	"github.com/dvloznov/finance-dashboard/internal/jobs"
	"github.com/dvloznov/finance-dashboard/internal/logger"
)

// DocumentService manages stored documents.
type DocumentService interface {
	Upload(ctx context.Context, userID string, u documents.Upload) (*domain.Document, error)
	List(ctx context.Context, userID string) ([]domain.Document, error)
	Get(ctx context.Context, userID, id string) (*domain.Document, error)
	Delete(ctx context.Context, userID, id string) error
}

// Ingester runs document ingestion synchronously.
type Ingester interface {
	Ingest(ctx context.Context, userID, documentID, filePath string) (*documents.IngestResult, error)
}

// QuestionAnswerer answers questions about one document.
type QuestionAnswerer interface {
	Answer(ctx context.Context, userID, documentID, question string) (*documents.Answer, error)
}

// DocumentsHandler handles document-related endpoints.
type DocumentsHandler struct {
	service   DocumentService
	ingestor  Ingester
	answerer  QuestionAnswerer
	publisher jobs.Publisher
	missing   []string
}

// NewDocumentsHandler creates a new documents handler. missing lists unset
// configuration; while it is non-empty every document endpoint fails with a
// configuration error and the other arguments may be nil.
func NewDocumentsHandler(service DocumentService, ingestor Ingester, answerer QuestionAnswerer, publisher jobs.Publisher, missing []string) *DocumentsHandler {
	return &DocumentsHandler{
		service:   service,
		ingestor:  ingestor,
		answerer:  answerer,
		publisher: publisher,
		missing:   missing,
	}
}

// configured writes a 500 when required secrets are missing.
func (h *DocumentsHandler) configured(w http.ResponseWriter) bool {
	if len(h.missing) > 0 {
		middleware.WriteError(w, http.StatusInternalServerError,
			"Server configuration error: missing "+strings.Join(h.missing, ", "))
		return false
	}
	return true
}

// Process handles POST /api/documents/process
func (h *DocumentsHandler) Process(w http.ResponseWriter, r *http.Request) {
	user, ok := userID(w, r)
	if !ok || !h.configured(w) {
		return
	}

	var req struct {
		DocumentID string `json:"documentId" validate:"required"`
		FilePath   string `json:"filePath" validate:"required"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		middleware.WriteAppError(w, r, err)
		return
	}

	result, err := h.ingestor.Ingest(r.Context(), user, req.DocumentID, req.FilePath)
	if err != nil {
		middleware.WriteAppError(w, r, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, result)
}

// Query handles POST /api/documents/query
func (h *DocumentsHandler) Query(w http.ResponseWriter, r *http.Request) {
	user, ok := userID(w, r)
	if !ok || !h.configured(w) {
		return
	}

	var req struct {
		Question   string `json:"question" validate:"required,max=2000"`
		DocumentID string `json:"documentId" validate:"required"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		middleware.WriteAppError(w, r, err)
		return
	}

	answer, err := h.answerer.Answer(r.Context(), user, req.DocumentID, strings.TrimSpace(req.Question))
	if err != nil {
		middleware.WriteAppError(w, r, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, answer)
}

// Upload handles POST /api/documents
func (h *DocumentsHandler) Upload(w http.ResponseWriter, r *http.Request) {
	user, ok := userID(w, r)
	if !ok || !h.configured(w) {
		return
	}

	file, err := readFile(w, r, documents.MaxFileSize)
	if err != nil {
		middleware.WriteAppError(w, r, err)
		return
	}

	doc, err := h.service.Upload(r.Context(), user, documents.Upload{
		FileName:    file.Name,
		ContentType: file.ContentType,
		Data:        file.Data,
	})
	if err != nil {
		middleware.WriteAppError(w, r, err)
		return
	}

	log := logger.FromContext(r.Context())
	log.Info().Str("document_id", doc.ID).Int64("bytes", doc.SizeBytes).Msg("Document uploaded")

	middleware.WriteJSON(w, http.StatusCreated, doc)
}

// List handles GET /api/documents
func (h *DocumentsHandler) List(w http.ResponseWriter, r *http.Request) {
	user, ok := userID(w, r)
	if !ok || !h.configured(w) {
		return
	}

	docs, err := h.service.List(r.Context(), user)
	if err != nil {
		middleware.WriteAppError(w, r, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"documents": docs,
		"count":     len(docs),
	})
}

// Get handles GET /api/documents/{id}
func (h *DocumentsHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, ok := userID(w, r)
	if !ok || !h.configured(w) {
		return
	}

	doc, err := h.service.Get(r.Context(), user, r.PathValue("id"))
	if err != nil {
		middleware.WriteAppError(w, r, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, doc)
}

// Delete handles DELETE /api/documents/{id}
func (h *DocumentsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user, ok := userID(w, r)
	if !ok || !h.configured(w) {
		return
	}

	if err := h.service.Delete(r.Context(), user, r.PathValue("id")); err != nil {
		middleware.WriteAppError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Reprocess handles POST /api/documents/{id}/reprocess
func (h *DocumentsHandler) Reprocess(w http.ResponseWriter, r *http.Request) {
	user, ok := userID(w, r)
	if !ok || !h.configured(w) {
		return
	}
	ctx := r.Context()

	doc, err := h.service.Get(ctx, user, r.PathValue("id"))
	if err != nil {
		middleware.WriteAppError(w, r, err)
		return
	}

	job := &jobs.ProcessDocumentJob{
		UserID:     user,
		DocumentID: doc.ID,
		FilePath:   doc.StoragePath,
	}
	if err := h.publisher.PublishProcessDocument(ctx, job); err != nil {
		log := logger.FromContext(ctx)
		log.Error().Err(err).Str("document_id", doc.ID).Msg("Failed to enqueue processing job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue processing job")
		return
	}

	log := logger.FromContext(ctx)
	log.Info().Str("job_id", job.JobID).Str("document_id", doc.ID).Msg("Processing job enqueued")

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id":      job.JobID,
		"document_id": doc.ID,
		"status":      string(job.Status),
	})
}
