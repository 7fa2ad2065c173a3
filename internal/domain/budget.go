package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// BudgetCategory is a named bucket with an allocated (budgeted) and a spent amount.
// Spent is maintained elsewhere and is not reconciled against transactions here.
type BudgetCategory struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	Name      string          `json:"name"`
	Allocated decimal.Decimal `json:"allocated"`
	Spent     decimal.Decimal `json:"spent"`
	Color     string          `json:"color"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Remaining returns allocated minus spent.
func (c BudgetCategory) Remaining() decimal.Decimal {
	return c.Allocated.Sub(c.Spent)
}
