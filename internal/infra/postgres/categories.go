package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dvloznov/finance-dashboard/internal/budget"
	"github.com/dvloznov/finance-dashboard/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const categoryColumns = `user_id, id, name, allocated, spent, color, updated_at`

// CategoryRepository implements budget.Repository.
type CategoryRepository struct {
	db DB
}

func NewCategoryRepository(db DB) *CategoryRepository {
	return &CategoryRepository{db: db}
}

func scanCategory(row pgx.Row) (*domain.BudgetCategory, error) {
	var c domain.BudgetCategory
	if err := row.Scan(&c.UserID, &c.ID, &c.Name, &c.Allocated, &c.Spent, &c.Color, &c.UpdatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *CategoryRepository) ListCategories(ctx context.Context, userID string) ([]domain.BudgetCategory, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+categoryColumns+`
		FROM budget_categories
		WHERE user_id = $1
		ORDER BY name`, userID)
	if err != nil {
		return nil, fmt.Errorf("ListCategories: query: %w", err)
	}
	defer rows.Close()

	out := []domain.BudgetCategory{}
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("ListCategories: scan: %w", err)
		}
		out = append(out, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListCategories: rows: %w", err)
	}
	return out, nil
}

func (r *CategoryRepository) GetCategory(ctx context.Context, userID, id string) (*domain.BudgetCategory, error) {
	c, err := scanCategory(r.db.QueryRow(ctx, `
		SELECT `+categoryColumns+`
		FROM budget_categories
		WHERE user_id = $1 AND id = $2`, userID, strings.ToLower(id)))
	if err != nil {
		return nil, categoryErr("GetCategory", id, err)
	}
	return c, nil
}

func (r *CategoryRepository) CreateCategory(ctx context.Context, c *domain.BudgetCategory) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO budget_categories (user_id, id, name, allocated, spent, color)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING updated_at`,
		c.UserID, strings.ToLower(c.ID), c.Name, c.Allocated, c.Spent, c.Color,
	).Scan(&c.UpdatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("CreateCategory: %w", budget.ErrCategoryExists)
	}
	if err != nil {
		return fmt.Errorf("CreateCategory: insert: %w", err)
	}
	return nil
}

func (r *CategoryRepository) AddToAllocated(ctx context.Context, userID, id string, delta decimal.Decimal) (*domain.BudgetCategory, error) {
	c, err := scanCategory(r.db.QueryRow(ctx, `
		UPDATE budget_categories
		SET allocated = allocated + $3, updated_at = now()
		WHERE user_id = $1 AND id = $2
		RETURNING `+categoryColumns, userID, strings.ToLower(id), delta))
	if err != nil {
		return nil, categoryErr("AddToAllocated", id, err)
	}
	return c, nil
}

func (r *CategoryRepository) SetAllocated(ctx context.Context, userID, id string, amount decimal.Decimal) (*domain.BudgetCategory, error) {
	c, err := scanCategory(r.db.QueryRow(ctx, `
		UPDATE budget_categories
		SET allocated = $3, updated_at = now()
		WHERE user_id = $1 AND id = $2
		RETURNING `+categoryColumns, userID, strings.ToLower(id), amount))
	if err != nil {
		return nil, categoryErr("SetAllocated", id, err)
	}
	return c, nil
}

// Transfer locks both rows in id order, checks the source balance and applies
// both updates in one transaction.
func (r *CategoryRepository) Transfer(ctx context.Context, userID, fromID, toID string, amount decimal.Decimal) (*domain.BudgetCategory, *domain.BudgetCategory, error) {
	fromID, toID = strings.ToLower(fromID), strings.ToLower(toID)

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("Transfer: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, `
		SELECT id, allocated
		FROM budget_categories
		WHERE user_id = $1 AND id IN ($2, $3)
		ORDER BY id
		FOR UPDATE`, userID, fromID, toID)
	if err != nil {
		return nil, nil, fmt.Errorf("Transfer: locking rows: %w", err)
	}
	balances := map[string]decimal.Decimal{}
	for rows.Next() {
		var id string
		var allocated decimal.Decimal
		if err := rows.Scan(&id, &allocated); err != nil {
			rows.Close()
			return nil, nil, fmt.Errorf("Transfer: scan: %w", err)
		}
		balances[id] = allocated
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("Transfer: rows: %w", err)
	}

	available, ok := balances[fromID]
	if !ok {
		return nil, nil, fmt.Errorf("Transfer: %s: %w", fromID, budget.ErrCategoryNotFound)
	}
	if _, ok := balances[toID]; !ok {
		return nil, nil, fmt.Errorf("Transfer: %s: %w", toID, budget.ErrCategoryNotFound)
	}
	if available.LessThan(amount) {
		return nil, nil, fmt.Errorf("Transfer: %w", budget.ErrInsufficientFunds)
	}

	update := `
		UPDATE budget_categories
		SET allocated = allocated + $3, updated_at = now()
		WHERE user_id = $1 AND id = $2
		RETURNING ` + categoryColumns
	from, err := scanCategory(tx.QueryRow(ctx, update, userID, fromID, amount.Neg()))
	if err != nil {
		return nil, nil, fmt.Errorf("Transfer: debit: %w", err)
	}
	to, err := scanCategory(tx.QueryRow(ctx, update, userID, toID, amount))
	if err != nil {
		return nil, nil, fmt.Errorf("Transfer: credit: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("Transfer: commit: %w", err)
	}
	return from, to, nil
}

func categoryErr(op, id string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %s: %w", op, id, budget.ErrCategoryNotFound)
	}
	return fmt.Errorf("%s: %w", op, err)
}

var _ budget.Repository = (*CategoryRepository)(nil)
