package receipts

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/dvloznov/finance-dashboard/internal/domain"
)

// MemoryRepository keeps receipts and transaction names in memory.
type MemoryRepository struct {
	mu           sync.Mutex
	receipts     []domain.Receipt
	transactions map[string]string // user/transaction -> description
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{transactions: make(map[string]string)}
}

// AddTransaction registers a transaction receipts can be attached to.
func (r *MemoryRepository) AddTransaction(userID, transactionID, description string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transactions[userID+"/"+transactionID] = description
}

func (r *MemoryRepository) TransactionName(_ context.Context, userID, transactionID string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	name, ok := r.transactions[userID+"/"+transactionID]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrTransactionNotFound, transactionID)
	}
	return name, nil
}

func (r *MemoryRepository) Create(_ context.Context, rec *domain.Receipt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.receipts = append(r.receipts, *rec)
	return nil
}

func (r *MemoryRepository) List(_ context.Context, userID string, f Filter) ([]domain.Receipt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	q := strings.ToLower(f.Query)
	var out []domain.Receipt
	for _, rec := range r.receipts {
		if rec.UserID != userID {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(rec.TransactionName), q) {
			continue
		}
		if !f.From.IsZero() && rec.CreatedAt.Before(f.From) {
			continue
		}
		if !f.To.IsZero() && !rec.CreatedAt.Before(f.To) {
			continue
		}
		out = append(out, rec)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

var _ Repository = (*MemoryRepository)(nil)
