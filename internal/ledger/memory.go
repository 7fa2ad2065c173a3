package ledger

import (
	"context"
	"sort"
	"sync"

	"github.com/dvloznov/finance-dashboard/internal/domain"
)

// MemoryRepository is an in-memory Repository.
type MemoryRepository struct {
	mu           sync.RWMutex
	accounts     []domain.Account
	transactions []domain.Transaction
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

// Seed adds accounts and transactions.
func (r *MemoryRepository) Seed(accounts []domain.Account, transactions []domain.Transaction) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accounts = append(r.accounts, accounts...)
	r.transactions = append(r.transactions, transactions...)
}

func (r *MemoryRepository) ListAccounts(_ context.Context, userID string) ([]domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []domain.Account{}
	for _, a := range r.accounts {
		if a.UserID == userID && a.Active {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Institution != out[j].Institution {
			return out[i].Institution < out[j].Institution
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (r *MemoryRepository) ListTransactions(_ context.Context, userID string, rng Range) ([]domain.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []domain.Transaction{}
	for _, t := range r.transactions {
		if t.UserID == userID && rng.Contains(t.Date) {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out, nil
}

var _ Repository = (*MemoryRepository)(nil)
