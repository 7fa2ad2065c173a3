package domain

import "time"

// MessageRole identifies who authored a chat turn.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// ActionType names the structured operation a chat turn performed.
type ActionType string

const (
	ActionAllocate       ActionType = "allocate"
	ActionTransfer       ActionType = "transfer"
	ActionCreateCategory ActionType = "create_category"
	ActionUpdateCategory ActionType = "update_category"
	ActionView           ActionType = "view"
	ActionAnalyze        ActionType = "analyze"
	ActionReceipts       ActionType = "receipts"
)

// ActionResult is the structured outcome attached to an assistant message.
type ActionResult struct {
	Type       ActionType       `json:"type"`
	Success    bool             `json:"success"`
	Message    string           `json:"message"`
	Category   *BudgetCategory  `json:"category,omitempty"`
	Categories []BudgetCategory `json:"categories,omitempty"`
}

// InsightKind classifies an analysis insight.
type InsightKind string

const (
	InsightSaving     InsightKind = "saving"
	InsightSpending   InsightKind = "spending"
	InsightBudget     InsightKind = "budget"
	InsightSuggestion InsightKind = "suggestion"
)

// Insight is a short piece of financial commentary.
type Insight struct {
	Kind        InsightKind `json:"kind"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
}

// Message is one chat turn.
type Message struct {
	ID        string        `json:"id"`
	UserID    string        `json:"user_id"`
	Role      MessageRole   `json:"role"`
	Content   string        `json:"content"`
	Action    *ActionResult `json:"action,omitempty"`
	Receipts  []Receipt     `json:"receipts,omitempty"`
	Insights  []Insight     `json:"insights,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
}
