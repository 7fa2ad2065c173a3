// Package ledger reads linked accounts and their transactions.
package ledger

import (
	"context"
	"time"

	"github.com/dvloznov/finance-dashboard/internal/domain"
)

// Range bounds a transaction listing by posting date. Zero values mean open.
// To is inclusive.
type Range struct {
	From time.Time
	To   time.Time
}

// Contains reports whether t falls inside the range.
func (r Range) Contains(t time.Time) bool {
	if !r.From.IsZero() && t.Before(r.From) {
		return false
	}
	if !r.To.IsZero() && t.After(r.To) {
		return false
	}
	return true
}

// Repository lists a user's accounts and transactions.
type Repository interface {
	// ListAccounts returns active accounts ordered by institution and name.
	ListAccounts(ctx context.Context, userID string) ([]domain.Account, error)
	// ListTransactions returns transactions newest first.
	ListTransactions(ctx context.Context, userID string, r Range) ([]domain.Transaction, error)
}
