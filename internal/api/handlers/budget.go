package handlers

import (
	"context"
	"net/http"

	"github.com/dvloznov/finance-dashboard/internal/api/middleware"
	"github.com/dvloznov/finance-dashboard/internal/budget"
	"github.com/dvloznov/finance-dashboard/internal/domain"
	"github.com/shopspring/decimal"
)

// BudgetService applies budget operations.
type BudgetService interface {
	ListCategories(ctx context.Context, userID string) ([]domain.BudgetCategory, error)
	CreateCategory(ctx context.Context, userID, name string, initial decimal.Decimal) (*budget.Result, error)
	UpdateCategoryAmount(ctx context.Context, userID, id string, amount decimal.Decimal) (*budget.Result, error)
	Allocate(ctx context.Context, userID, id string, amount decimal.Decimal) (*budget.Result, error)
	Transfer(ctx context.Context, userID, fromID, toID string, amount decimal.Decimal) (*budget.TransferResult, error)
}

// BudgetHandler handles budget category endpoints.
type BudgetHandler struct {
	service BudgetService
}

func NewBudgetHandler(service BudgetService) *BudgetHandler {
	return &BudgetHandler{service: service}
}

type amountRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// ListCategories handles GET /api/budget/categories
func (h *BudgetHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	user, ok := userID(w, r)
	if !ok {
		return
	}

	cats, err := h.service.ListCategories(r.Context(), user)
	if err != nil {
		middleware.WriteAppError(w, r, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"categories": cats,
		"count":      len(cats),
	})
}

// CreateCategory handles POST /api/budget/categories
func (h *BudgetHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	user, ok := userID(w, r)
	if !ok {
		return
	}

	var req struct {
		Name   string          `json:"name" validate:"required,max=50"`
		Amount decimal.Decimal `json:"amount"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		middleware.WriteAppError(w, r, err)
		return
	}

	res, err := h.service.CreateCategory(r.Context(), user, req.Name, req.Amount)
	if err != nil {
		middleware.WriteAppError(w, r, err)
		return
	}

	middleware.WriteJSON(w, http.StatusCreated, res.Category)
}

// UpdateCategory handles PUT /api/budget/categories/{id}
func (h *BudgetHandler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	user, ok := userID(w, r)
	if !ok {
		return
	}

	var req amountRequest
	if err := decodeJSON(w, r, &req); err != nil {
		middleware.WriteAppError(w, r, err)
		return
	}

	res, err := h.service.UpdateCategoryAmount(r.Context(), user, r.PathValue("id"), req.Amount)
	if err != nil {
		middleware.WriteAppError(w, r, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, res.Category)
}

// Allocate handles POST /api/budget/categories/{id}/allocate
func (h *BudgetHandler) Allocate(w http.ResponseWriter, r *http.Request) {
	user, ok := userID(w, r)
	if !ok {
		return
	}

	var req amountRequest
	if err := decodeJSON(w, r, &req); err != nil {
		middleware.WriteAppError(w, r, err)
		return
	}

	res, err := h.service.Allocate(r.Context(), user, r.PathValue("id"), req.Amount)
	if err != nil {
		middleware.WriteAppError(w, r, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, res.Category)
}

// Transfer handles POST /api/budget/transfer
func (h *BudgetHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	user, ok := userID(w, r)
	if !ok {
		return
	}

	var req struct {
		From   string          `json:"from" validate:"required"`
		To     string          `json:"to" validate:"required"`
		Amount decimal.Decimal `json:"amount"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		middleware.WriteAppError(w, r, err)
		return
	}

	res, err := h.service.Transfer(r.Context(), user, req.From, req.To, req.Amount)
	if err != nil {
		middleware.WriteAppError(w, r, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"from":    res.From,
		"to":      res.To,
		"message": res.Message,
	})
}
