package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dvloznov/finance-dashboard/internal/apperr"
	"github.com/dvloznov/finance-dashboard/internal/budget"
	"github.com/dvloznov/finance-dashboard/internal/domain"
	"github.com/dvloznov/finance-dashboard/internal/logger"
	"github.com/dvloznov/finance-dashboard/internal/receipts"
	"github.com/shopspring/decimal"
)

// BudgetService is the part of budget.Service the interpreter drives.
type BudgetService interface {
	ListCategories(ctx context.Context, userID string) ([]domain.BudgetCategory, error)
	Allocate(ctx context.Context, userID, id string, amount decimal.Decimal) (*budget.Result, error)
	Transfer(ctx context.Context, userID, fromID, toID string, amount decimal.Decimal) (*budget.TransferResult, error)
	CreateCategory(ctx context.Context, userID, name string, initial decimal.Decimal) (*budget.Result, error)
	UpdateCategoryAmount(ctx context.Context, userID, id string, amount decimal.Decimal) (*budget.Result, error)
}

// ReceiptLister lists a user's receipts.
type ReceiptLister interface {
	List(ctx context.Context, userID string, f receipts.Filter) ([]domain.Receipt, error)
}

// Execute runs cmd for userID and returns the assistant's reply. Rejected
// operations (unknown category, bad amount, insufficient funds, duplicate
// name) come back as a failed action; only infrastructure failures are errors.
func (in *Interpreter) Execute(ctx context.Context, userID string, cmd Command) (*domain.Message, error) {
	reply := &domain.Message{
		UserID:    userID,
		Role:      domain.RoleAssistant,
		CreatedAt: time.Now().UTC(),
	}

	switch c := cmd.(type) {
	case AllocateCommand:
		res, err := in.budget.Allocate(ctx, userID, c.Category, c.Amount)
		return in.mutation(reply, c.Action(), res, err)

	case CreateCategoryCommand:
		res, err := in.budget.CreateCategory(ctx, userID, c.Name, c.Amount)
		return in.mutation(reply, c.Action(), res, err)

	case UpdateCategoryCommand:
		res, err := in.budget.UpdateCategoryAmount(ctx, userID, c.Category, c.Amount)
		return in.mutation(reply, c.Action(), res, err)

	case TransferCommand:
		res, err := in.budget.Transfer(ctx, userID, c.From, c.To, c.Amount)
		if err != nil {
			return failed(reply, c.Action(), err)
		}
		reply.Content = res.Message
		reply.Action = &domain.ActionResult{
			Type:       c.Action(),
			Success:    true,
			Message:    res.Message,
			Categories: []domain.BudgetCategory{*res.From, *res.To},
		}
		return reply, nil

	case ShowBudgetCommand:
		cats, err := in.budget.ListCategories(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("list categories: %w", err)
		}
		reply.Content = describeBudget(cats)
		reply.Action = &domain.ActionResult{
			Type:       c.Action(),
			Success:    true,
			Message:    reply.Content,
			Categories: cats,
		}
		return reply, nil

	case AnalyzeCommand:
		reply.Content = "Here's an analysis of your finances:"
		reply.Insights = Insights()
		reply.Action = &domain.ActionResult{Type: c.Action(), Success: true, Message: reply.Content}
		return reply, nil

	case ReceiptsCommand:
		return in.listReceipts(ctx, userID, c, reply)

	case FallbackCommand:
		reply.Content = c.Reply
		return reply, nil
	}

	return nil, fmt.Errorf("unsupported command %T", cmd)
}

func (in *Interpreter) mutation(reply *domain.Message, action domain.ActionType, res *budget.Result, err error) (*domain.Message, error) {
	if err != nil {
		return failed(reply, action, err)
	}
	reply.Content = res.Message
	reply.Action = &domain.ActionResult{
		Type:     action,
		Success:  true,
		Message:  res.Message,
		Category: res.Category,
	}
	return reply, nil
}

// failed turns a rejected operation into a failed action.
func failed(reply *domain.Message, action domain.ActionType, err error) (*domain.Message, error) {
	if apperr.KindOf(err) == apperr.KindInternal {
		return nil, err
	}
	msg := apperr.Message(err)
	reply.Content = msg
	reply.Action = &domain.ActionResult{Type: action, Success: false, Message: msg}
	return reply, nil
}

func (in *Interpreter) listReceipts(ctx context.Context, userID string, c ReceiptsCommand, reply *domain.Message) (*domain.Message, error) {
	if in.receipts == nil {
		return failed(reply, c.Action(), apperr.New(apperr.KindConfiguration, "Receipts are not available right now."))
	}

	f := receipts.Filter{Query: c.Query, Limit: c.Limit}
	if from, to, ok := periodRange(c.Period, time.Now()); ok {
		f.From, f.To = from, to
	}
	f = f.Normalize()

	recs, err := in.receipts.List(ctx, userID, f)
	if err != nil {
		return nil, fmt.Errorf("list receipts: %w", err)
	}

	log := logger.FromContext(ctx)
	log.Debug().
		Str("query", c.Query).
		Str("period", c.Period).
		Int("limit", f.Limit).
		Int("found", len(recs)).
		Msg("Receipt lookup")

	reply.Content = describeReceipts(len(recs), c)
	reply.Receipts = recs
	reply.Action = &domain.ActionResult{Type: c.Action(), Success: true, Message: reply.Content}
	return reply, nil
}

func describeBudget(cats []domain.BudgetCategory) string {
	if len(cats) == 0 {
		return "You don't have any budget categories yet. Try \"Create category Groceries with $400\"."
	}
	var b strings.Builder
	b.WriteString("Here's your current budget:")
	for _, c := range cats {
		fmt.Fprintf(&b, "\n• %s: %s allocated, %s spent", c.Name, budget.FormatMoney(c.Allocated), budget.FormatMoney(c.Spent))
	}
	return b.String()
}

func describeReceipts(n int, c ReceiptsCommand) string {
	var scope []string
	if c.Query != "" {
		scope = append(scope, fmt.Sprintf("for %q", c.Query))
	}
	if c.Period != "" {
		scope = append(scope, "from "+c.Period)
	}
	suffix := ""
	if len(scope) > 0 {
		suffix = " " + strings.Join(scope, " ")
	}

	switch n {
	case 0:
		return "I couldn't find any receipts" + suffix + "."
	case 1:
		return "Here is 1 receipt" + suffix + "."
	default:
		return fmt.Sprintf("Here are %d receipts%s.", n, suffix)
	}
}
