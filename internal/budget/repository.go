package budget

import (
	"context"

	"github.com/dvloznov/finance-dashboard/internal/domain"
	"github.com/shopspring/decimal"
)

// Repository persists budget categories. Ids are matched case-insensitively.
// Implementations return errors wrapping ErrCategoryNotFound, ErrCategoryExists
// and ErrInsufficientFunds so the service can translate them.
type Repository interface {
	ListCategories(ctx context.Context, userID string) ([]domain.BudgetCategory, error)
	GetCategory(ctx context.Context, userID, id string) (*domain.BudgetCategory, error)
	CreateCategory(ctx context.Context, c *domain.BudgetCategory) error
	AddToAllocated(ctx context.Context, userID, id string, delta decimal.Decimal) (*domain.BudgetCategory, error)
	SetAllocated(ctx context.Context, userID, id string, amount decimal.Decimal) (*domain.BudgetCategory, error)
	// Transfer moves amount from one category's allocation to another's as a
	// single unit. The source must hold at least amount at commit time.
	Transfer(ctx context.Context, userID, fromID, toID string, amount decimal.Decimal) (from, to *domain.BudgetCategory, err error)
}
