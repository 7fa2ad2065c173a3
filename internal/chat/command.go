// Package chat turns free-text assistant messages into budget commands and
// executes them.
package chat

import (
	"github.com/dvloznov/finance-dashboard/internal/domain"
	"github.com/shopspring/decimal"
)

// Command is a classified chat message. The set of implementations is closed.
type Command interface {
	// Action is the structured action type the command reports, or "" for
	// commands that only produce text.
	Action() domain.ActionType
	command()
}

// AllocateCommand adds Amount to a category's allocation.
type AllocateCommand struct {
	Category string
	Amount   decimal.Decimal
}

// CreateCategoryCommand creates a category with an optional initial allocation.
type CreateCategoryCommand struct {
	Name   string
	Amount decimal.Decimal
}

// UpdateCategoryCommand overwrites a category's allocation.
type UpdateCategoryCommand struct {
	Category string
	Amount   decimal.Decimal
}

// TransferCommand moves allocation between two categories.
type TransferCommand struct {
	From   string
	To     string
	Amount decimal.Decimal
}

// ShowBudgetCommand lists every category.
type ShowBudgetCommand struct{}

// AnalyzeCommand returns spending insights.
type AnalyzeCommand struct{}

// ReceiptsCommand lists recent receipts.
type ReceiptsCommand struct {
	// Query filters by transaction name.
	Query string
	// Period is one of the Period* constants, or empty.
	Period string
	// Limit is the requested count; zero means the default.
	Limit int
}

// FallbackCommand answers with canned text.
type FallbackCommand struct {
	Reply string
}

func (AllocateCommand) Action() domain.ActionType       { return domain.ActionAllocate }
func (CreateCategoryCommand) Action() domain.ActionType { return domain.ActionCreateCategory }
func (UpdateCategoryCommand) Action() domain.ActionType { return domain.ActionUpdateCategory }
func (TransferCommand) Action() domain.ActionType       { return domain.ActionTransfer }
func (ShowBudgetCommand) Action() domain.ActionType     { return domain.ActionView }
func (AnalyzeCommand) Action() domain.ActionType        { return domain.ActionAnalyze }
func (ReceiptsCommand) Action() domain.ActionType       { return domain.ActionReceipts }
func (FallbackCommand) Action() domain.ActionType       { return "" }

func (AllocateCommand) command()       {}
func (CreateCategoryCommand) command() {}
func (UpdateCategoryCommand) command() {}
func (TransferCommand) command()       {}
func (ShowBudgetCommand) command()     {}
func (AnalyzeCommand) command()        {}
func (ReceiptsCommand) command()       {}
func (FallbackCommand) command()       {}
