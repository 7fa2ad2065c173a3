package handlers

import (
	"net/http"
	"time"

	"github.com/dvloznov/finance-dashboard/internal/api/middleware"
	"github.com/dvloznov/finance-dashboard/internal/ledger"
)

// LedgerHandler handles account and transaction endpoints.
type LedgerHandler struct {
	repo ledger.Repository
	now  func() time.Time
}

func NewLedgerHandler(repo ledger.Repository) *LedgerHandler {
	return &LedgerHandler{repo: repo, now: time.Now}
}

// ListAccounts handles GET /api/accounts
func (h *LedgerHandler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	user, ok := userID(w, r)
	if !ok {
		return
	}

	accounts, err := h.repo.ListAccounts(r.Context(), user)
	if err != nil {
		middleware.WriteAppError(w, r, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"accounts": accounts,
		"count":    len(accounts),
	})
}

// ListTransactions handles GET /api/transactions. The range defaults to the
// last year.
func (h *LedgerHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	user, ok := userID(w, r)
	if !ok {
		return
	}

	// Parse query parameters
	query := r.URL.Query()
	startDateStr := query.Get("start_date")
	endDateStr := query.Get("end_date")

	var startDate, endDate time.Time
	var err error

	if startDateStr != "" {
		startDate, err = time.Parse("2006-01-02", startDateStr)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid start_date format")
			return
		}
	} else {
		startDate = h.now().AddDate(-1, 0, 0) // 1 year ago
	}

	if endDateStr != "" {
		endDate, err = time.Parse("2006-01-02", endDateStr)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid end_date format")
			return
		}
	} else {
		endDate = h.now()
	}

	if endDate.Before(startDate) {
		middleware.WriteError(w, http.StatusBadRequest, "end_date is before start_date")
		return
	}

	transactions, err := h.repo.ListTransactions(r.Context(), user, ledger.Range{From: startDate, To: endDate})
	if err != nil {
		middleware.WriteAppError(w, r, err)
		return
	}

	// Return array directly for frontend compatibility
	middleware.WriteJSON(w, http.StatusOK, transactions)
}
