// Package budget implements the budget category operations behind the chat
// assistant and the budget API.
package budget

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/dvloznov/finance-dashboard/internal/apperr"
	"github.com/dvloznov/finance-dashboard/internal/domain"
	"github.com/dvloznov/finance-dashboard/internal/logger"
	"github.com/dvloznov/finance-dashboard/internal/realtime"
	"github.com/shopspring/decimal"
)

// Palette is the fixed set of colors assigned to new categories.
var Palette = []string{
	"#4F46E5", "#10B981", "#F59E0B", "#EF4444",
	"#8B5CF6", "#EC4899", "#14B8A6", "#F97316",
}

// Result is the outcome of a single-category mutation.
type Result struct {
	Category *domain.BudgetCategory
	Message  string
}

// TransferResult is the outcome of a transfer.
type TransferResult struct {
	From    *domain.BudgetCategory
	To      *domain.BudgetCategory
	Message string
}

// Service validates and applies budget operations through a Repository.
type Service struct {
	repo     Repository
	notifier realtime.Notifier
	pick     func(n int) int
}

// NewService creates a Service. notifier may be nil.
func NewService(repo Repository, notifier realtime.Notifier) *Service {
	if notifier == nil {
		notifier = realtime.NopNotifier{}
	}
	return &Service{repo: repo, notifier: notifier, pick: rand.IntN}
}

// CategoryID derives a category id from its display name: lowercased, with
// runs of whitespace replaced by a single hyphen.
func CategoryID(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), "-")
}

// ListCategories returns all of the user's categories.
func (s *Service) ListCategories(ctx context.Context, userID string) ([]domain.BudgetCategory, error) {
	cats, err := s.repo.ListCategories(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ListCategories: %w", err)
	}
	return cats, nil
}

// GetCategory returns one category by id.
func (s *Service) GetCategory(ctx context.Context, userID, id string) (*domain.BudgetCategory, error) {
	c, err := s.repo.GetCategory(ctx, userID, id)
	if err != nil {
		return nil, s.translate(err, id)
	}
	return c, nil
}

// Allocate adds amount to the category's allocation.
func (s *Service) Allocate(ctx context.Context, userID, id string, amount decimal.Decimal) (*Result, error) {
	if _, err := s.GetCategory(ctx, userID, id); err != nil {
		return nil, err
	}
	if err := checkAmount(amount, false); err != nil {
		return nil, err
	}

	updated, err := s.repo.AddToAllocated(ctx, userID, id, amount)
	if err != nil {
		return nil, s.translate(err, id)
	}
	s.notify(ctx, userID, updated.ID)

	return &Result{
		Category: updated,
		Message:  fmt.Sprintf("Successfully allocated %s to %s", FormatMoney(amount), updated.Name),
	}, nil
}

// Transfer moves amount of allocation from one category to another.
func (s *Service) Transfer(ctx context.Context, userID, fromID, toID string, amount decimal.Decimal) (*TransferResult, error) {
	from, err := s.GetCategory(ctx, userID, fromID)
	if err != nil {
		return nil, err
	}
	to, err := s.GetCategory(ctx, userID, toID)
	if err != nil {
		return nil, err
	}
	if err := checkAmount(amount, false); err != nil {
		return nil, err
	}
	if strings.EqualFold(from.ID, to.ID) {
		return nil, apperr.Wrap(apperr.KindValidation, ErrSameCategory, "Cannot transfer funds to the same category")
	}
	if from.Allocated.LessThan(amount) {
		return nil, insufficientFunds(from.Name, from.Allocated)
	}

	newFrom, newTo, err := s.repo.Transfer(ctx, userID, from.ID, to.ID, amount)
	if err != nil {
		if errors.Is(err, ErrInsufficientFunds) {
			// Another writer drained the source between the check and the commit.
			return nil, insufficientFunds(from.Name, from.Allocated)
		}
		return nil, s.translate(err, fromID)
	}

	s.notify(ctx, userID, newFrom.ID)
	s.notify(ctx, userID, newTo.ID)

	log := logger.FromContext(ctx)
	log.Info().
		Str("from", newFrom.ID).
		Str("to", newTo.ID).
		Str("amount", amount.String()).
		Msg("Budget transfer committed")

	return &TransferResult{
		From:    newFrom,
		To:      newTo,
		Message: fmt.Sprintf("Successfully transferred %s from %s to %s", FormatMoney(amount), newFrom.Name, newTo.Name),
	}, nil
}

// CreateCategory creates a category named name with an initial allocation.
func (s *Service) CreateCategory(ctx context.Context, userID, name string, initial decimal.Decimal) (*Result, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.Wrap(apperr.KindValidation, ErrEmptyName, "Category name is required")
	}
	if err := checkAmount(initial, true); err != nil {
		return nil, err
	}

	c := &domain.BudgetCategory{
		ID:        CategoryID(name),
		UserID:    userID,
		Name:      name,
		Allocated: initial,
		Spent:     decimal.Zero,
		Color:     Palette[s.pick(len(Palette))],
	}
	if err := s.repo.CreateCategory(ctx, c); err != nil {
		if errors.Is(err, ErrCategoryExists) {
			return nil, apperr.Wrap(apperr.KindConflict, ErrCategoryExists, fmt.Sprintf("Category %q already exists", name))
		}
		return nil, fmt.Errorf("CreateCategory: %w", err)
	}
	s.notifyOp(ctx, userID, c.ID, realtime.OpInsert)

	msg := fmt.Sprintf("Created new category %q", name)
	if initial.IsPositive() {
		msg = fmt.Sprintf("Created new category %q with %s allocated", name, FormatMoney(initial))
	}
	return &Result{Category: c, Message: msg}, nil
}

// UpdateCategoryAmount overwrites the category's allocation. The new amount
// may be below what has already been spent.
func (s *Service) UpdateCategoryAmount(ctx context.Context, userID, id string, amount decimal.Decimal) (*Result, error) {
	if _, err := s.GetCategory(ctx, userID, id); err != nil {
		return nil, err
	}
	if err := checkAmount(amount, false); err != nil {
		return nil, err
	}

	updated, err := s.repo.SetAllocated(ctx, userID, id, amount)
	if err != nil {
		return nil, s.translate(err, id)
	}
	s.notify(ctx, userID, updated.ID)

	return &Result{
		Category: updated,
		Message:  fmt.Sprintf("Updated %s budget to %s", updated.Name, FormatMoney(amount)),
	}, nil
}

func (s *Service) translate(err error, id string) error {
	switch {
	case errors.Is(err, ErrCategoryNotFound):
		return notFound(id)
	case apperr.KindOf(err) != apperr.KindInternal:
		return err
	default:
		return fmt.Errorf("budget repository: %w", err)
	}
}

func (s *Service) notify(ctx context.Context, userID, id string) {
	s.notifyOp(ctx, userID, id, realtime.OpUpdate)
}

func (s *Service) notifyOp(ctx context.Context, userID, id string, op realtime.Op) {
	realtime.Notify(ctx, s.notifier, realtime.Change{
		Table:    realtime.TableBudgetCategories,
		Op:       op,
		RecordID: id,
		UserID:   userID,
	})
}
