package budget

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dvloznov/finance-dashboard/internal/domain"
	"github.com/shopspring/decimal"
)

// MemoryRepository is an in-memory Repository. It is safe for concurrent use.
type MemoryRepository struct {
	mu         sync.Mutex
	categories map[string]map[string]*domain.BudgetCategory // user -> lower(id) -> category
}

// NewMemoryRepository returns an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{categories: make(map[string]map[string]*domain.BudgetCategory)}
}

// Seed inserts categories as-is, replacing entries with the same id.
func (r *MemoryRepository) Seed(cats ...domain.BudgetCategory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range cats {
		c := c
		r.userMap(c.UserID)[strings.ToLower(c.ID)] = &c
	}
}

func (r *MemoryRepository) userMap(userID string) map[string]*domain.BudgetCategory {
	m, ok := r.categories[userID]
	if !ok {
		m = make(map[string]*domain.BudgetCategory)
		r.categories[userID] = m
	}
	return m
}

func (r *MemoryRepository) ListCategories(_ context.Context, userID string) ([]domain.BudgetCategory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]domain.BudgetCategory, 0, len(r.categories[userID]))
	for _, c := range r.categories[userID] {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *MemoryRepository) GetCategory(_ context.Context, userID, id string) (*domain.BudgetCategory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.categories[userID][strings.ToLower(id)]
	if !ok {
		return nil, ErrCategoryNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *MemoryRepository) CreateCategory(_ context.Context, c *domain.BudgetCategory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	m := r.userMap(c.UserID)
	if _, ok := m[strings.ToLower(c.ID)]; ok {
		return ErrCategoryExists
	}
	for _, existing := range m {
		if strings.EqualFold(existing.Name, c.Name) {
			return ErrCategoryExists
		}
	}
	cp := *c
	cp.UpdatedAt = time.Now().UTC()
	m[strings.ToLower(c.ID)] = &cp
	c.UpdatedAt = cp.UpdatedAt
	return nil
}

func (r *MemoryRepository) AddToAllocated(_ context.Context, userID, id string, delta decimal.Decimal) (*domain.BudgetCategory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.categories[userID][strings.ToLower(id)]
	if !ok {
		return nil, ErrCategoryNotFound
	}
	c.Allocated = c.Allocated.Add(delta)
	c.UpdatedAt = time.Now().UTC()
	cp := *c
	return &cp, nil
}

func (r *MemoryRepository) SetAllocated(_ context.Context, userID, id string, amount decimal.Decimal) (*domain.BudgetCategory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.categories[userID][strings.ToLower(id)]
	if !ok {
		return nil, ErrCategoryNotFound
	}
	c.Allocated = amount
	c.UpdatedAt = time.Now().UTC()
	cp := *c
	return &cp, nil
}

func (r *MemoryRepository) Transfer(_ context.Context, userID, fromID, toID string, amount decimal.Decimal) (*domain.BudgetCategory, *domain.BudgetCategory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	from, ok := r.categories[userID][strings.ToLower(fromID)]
	if !ok {
		return nil, nil, ErrCategoryNotFound
	}
	to, ok := r.categories[userID][strings.ToLower(toID)]
	if !ok {
		return nil, nil, ErrCategoryNotFound
	}
	if from.Allocated.LessThan(amount) {
		return nil, nil, ErrInsufficientFunds
	}

	now := time.Now().UTC()
	from.Allocated = from.Allocated.Sub(amount)
	from.UpdatedAt = now
	to.Allocated = to.Allocated.Add(amount)
	to.UpdatedAt = now

	f, t := *from, *to
	return &f, &t, nil
}

var _ Repository = (*MemoryRepository)(nil)
