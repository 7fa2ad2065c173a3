package postgres

import (
	"context"
	"fmt"

	"github.com/dvloznov/finance-dashboard/internal/domain"
	"github.com/dvloznov/finance-dashboard/internal/ledger"
)

// LedgerRepository implements ledger.Repository.
type LedgerRepository struct {
	db DB
}

func NewLedgerRepository(db DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

func (r *LedgerRepository) ListAccounts(ctx context.Context, userID string) ([]domain.Account, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, user_id, institution, name, type, masked_number,
		       current_balance, available_balance, currency, active
		FROM accounts
		WHERE user_id = $1 AND active
		ORDER BY institution, name`, userID)
	if err != nil {
		return nil, fmt.Errorf("ListAccounts: query: %w", err)
	}
	defer rows.Close()

	out := []domain.Account{}
	for rows.Next() {
		var a domain.Account
		err := rows.Scan(&a.ID, &a.UserID, &a.Institution, &a.Name, &a.Type, &a.MaskedNumber,
			&a.CurrentBalance, &a.AvailableBalance, &a.Currency, &a.Active)
		if err != nil {
			return nil, fmt.Errorf("ListAccounts: scan: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListAccounts: rows: %w", err)
	}
	return out, nil
}

func (r *LedgerRepository) ListTransactions(ctx context.Context, userID string, rng ledger.Range) ([]domain.Transaction, error) {
	var from, to *string
	if !rng.From.IsZero() {
		s := rng.From.Format("2006-01-02")
		from = &s
	}
	if !rng.To.IsZero() {
		s := rng.To.Format("2006-01-02")
		to = &s
	}

	rows, err := r.db.Query(ctx, `
		SELECT id, user_id, account_id, amount, currency, description, merchant,
		       category, type, date, pending
		FROM transactions
		WHERE user_id = $1
		  AND ($2::date IS NULL OR date >= $2::date)
		  AND ($3::date IS NULL OR date <= $3::date)
		ORDER BY date DESC, id`, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("ListTransactions: query: %w", err)
	}
	defer rows.Close()

	out := []domain.Transaction{}
	for rows.Next() {
		var t domain.Transaction
		err := rows.Scan(&t.ID, &t.UserID, &t.AccountID, &t.Amount, &t.Currency, &t.Description,
			&t.Merchant, &t.Category, &t.Type, &t.Date, &t.Pending)
		if err != nil {
			return nil, fmt.Errorf("ListTransactions: scan: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListTransactions: rows: %w", err)
	}
	return out, nil
}

var _ ledger.Repository = (*LedgerRepository)(nil)
