package budget

import (
	"errors"
	"fmt"

	"github.com/dvloznov/finance-dashboard/internal/apperr"
	"github.com/shopspring/decimal"
)

var (
	ErrCategoryNotFound  = errors.New("category not found")
	ErrCategoryExists    = errors.New("category already exists")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrEmptyName         = errors.New("empty category name")
	ErrSameCategory      = errors.New("source and destination are the same category")
)

func notFound(id string) error {
	return apperr.Wrap(apperr.KindNotFound, ErrCategoryNotFound, fmt.Sprintf("Category %q not found", id))
}

func invalidAmount(msg string) error {
	return apperr.Wrap(apperr.KindValidation, ErrInvalidAmount, msg)
}

func insufficientFunds(name string, available decimal.Decimal) error {
	return apperr.Wrap(apperr.KindInsufficientFunds, ErrInsufficientFunds,
		fmt.Sprintf("Not enough funds in %s. Available: %s", name, FormatMoney(available)))
}

// checkAmount rejects amounts that are not positive, or that are negative
// when allowZero is set, and amounts finer than a cent.
func checkAmount(amount decimal.Decimal, allowZero bool) error {
	switch {
	case allowZero && amount.IsNegative():
		return invalidAmount("Amount cannot be negative")
	case !allowZero && !amount.IsPositive():
		return invalidAmount("Amount must be greater than zero")
	case !amount.Equal(amount.Truncate(MoneyPlaces)):
		return invalidAmount(fmt.Sprintf("Amount cannot have more than %d decimal places", MoneyPlaces))
	}
	return nil
}
