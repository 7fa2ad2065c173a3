package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/dvloznov/finance-dashboard/internal/api/middleware"
	"github.com/dvloznov/finance-dashboard/internal/domain"
)

// ChatService records and answers chat turns.
type ChatService interface {
	Send(ctx context.Context, userID, text string) (*domain.Message, error)
	History(ctx context.Context, userID string, limit int) ([]domain.Message, error)
}

// ChatHandler handles the budget assistant endpoints.
type ChatHandler struct {
	service ChatService
}

func NewChatHandler(service ChatService) *ChatHandler {
	return &ChatHandler{service: service}
}

// Send handles POST /api/chat
func (h *ChatHandler) Send(w http.ResponseWriter, r *http.Request) {
	user, ok := userID(w, r)
	if !ok {
		return
	}

	var req struct {
		Message string `json:"message" validate:"required"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		middleware.WriteAppError(w, r, err)
		return
	}

	reply, err := h.service.Send(r.Context(), user, req.Message)
	if err != nil {
		middleware.WriteAppError(w, r, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, reply)
}

// History handles GET /api/chat/messages
func (h *ChatHandler) History(w http.ResponseWriter, r *http.Request) {
	user, ok := userID(w, r)
	if !ok {
		return
	}

	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = n
	}

	msgs, err := h.service.History(r.Context(), user, limit)
	if err != nil {
		middleware.WriteAppError(w, r, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"messages": msgs,
		"count":    len(msgs),
	})
}
