package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/dvloznov/finance-dashboard/internal/api/middleware"
	"github.com/dvloznov/finance-dashboard/internal/domain"
	"github.com/dvloznov/finance-dashboard/internal/receipts"
)

// ReceiptService stores and lists receipts.
type ReceiptService interface {
	Upload(ctx context.Context, userID string, u receipts.Upload) (*domain.Receipt, error)
	List(ctx context.Context, userID string, f receipts.Filter) ([]domain.Receipt, error)
}

// ReceiptsHandler handles receipt endpoints.
type ReceiptsHandler struct {
	service ReceiptService
}

func NewReceiptsHandler(service ReceiptService) *ReceiptsHandler {
	return &ReceiptsHandler{service: service}
}

// Upload handles POST /api/transactions/{id}/receipts
func (h *ReceiptsHandler) Upload(w http.ResponseWriter, r *http.Request) {
	user, ok := userID(w, r)
	if !ok {
		return
	}

	file, err := readFile(w, r, receipts.MaxFileSize)
	if err != nil {
		middleware.WriteAppError(w, r, err)
		return
	}

	rec, err := h.service.Upload(r.Context(), user, receipts.Upload{
		TransactionID: r.PathValue("id"),
		FileName:      file.Name,
		ContentType:   file.ContentType,
		Data:          file.Data,
	})
	if err != nil {
		middleware.WriteAppError(w, r, err)
		return
	}

	middleware.WriteJSON(w, http.StatusCreated, rec)
}

// List handles GET /api/receipts
func (h *ReceiptsHandler) List(w http.ResponseWriter, r *http.Request) {
	user, ok := userID(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	filter := receipts.Filter{Query: query.Get("q")}
	if s := query.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		filter.Limit = n
	}

	recs, err := h.service.List(r.Context(), user, filter)
	if err != nil {
		middleware.WriteAppError(w, r, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"receipts": recs,
		"count":    len(recs),
	})
}
