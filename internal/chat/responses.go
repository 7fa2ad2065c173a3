package chat

import (
	"regexp"

	"github.com/dvloznov/finance-dashboard/internal/domain"
)

// HelpMessage is the reply to text no rule or canned response recognizes.
const HelpMessage = `I can help you manage your budget. Try:
• "Allocate $500 to housing"
• "Transfer $100 from food to entertainment"
• "Create category Travel with $300"
• "Set budget for groceries to $400"
• "Show my budget"
• "Analyze my spending"
• "Show receipts from last week"`

type cannedResponse struct {
	pattern *regexp.Regexp
	reply   string
}

// cannedResponses is checked in order; the first matching keyword wins.
var cannedResponses = []cannedResponse{
	{
		pattern: regexp.MustCompile(`(?i)\b(hello|hi|hey|good (morning|afternoon|evening))\b`),
		reply:   "Hello! I'm your budget assistant. Ask me to allocate, transfer or review your funds.",
	},
	{
		pattern: regexp.MustCompile(`(?i)\b(thanks|thank you|cheers)\b`),
		reply:   "You're welcome! Let me know if there's anything else I can do for your budget.",
	},
	{
		pattern: regexp.MustCompile(`(?i)\bemergency fund\b`),
		reply:   "A common target for an emergency fund is three to six months of essential expenses. You could create a category for it and allocate to it each month.",
	},
	{
		pattern: regexp.MustCompile(`(?i)\b(save|saving|savings)\b`),
		reply:   "Setting aside a fixed amount as soon as you're paid makes saving automatic. Try creating a Savings category and allocating to it first.",
	},
	{
		pattern: regexp.MustCompile(`(?i)\b(debt|loan|credit card)\b`),
		reply:   "Paying down the highest-interest balance first usually saves the most. Consider a Debt Repayment category so the payments are budgeted.",
	},
	{
		pattern: regexp.MustCompile(`(?i)\b(invest|investing|investment)s?\b`),
		reply:   "Investing is usually best once you have an emergency fund and no high-interest debt. I can help you budget a monthly amount for it.",
	},
	{
		pattern: regexp.MustCompile(`(?i)\bhelp\b`),
		reply:   HelpMessage,
	},
}

func cannedReply(text string) string {
	for _, c := range cannedResponses {
		if c.pattern.MatchString(text) {
			return c.reply
		}
	}
	return HelpMessage
}

// staticInsights are illustrative and not computed from the user's data.
// TODO: derive insights from transactions once product settles what the
// analysis should report.
var staticInsights = []domain.Insight{
	{
		Kind:        domain.InsightSaving,
		Title:       "Savings opportunity",
		Description: "You could save about $120 a month by cutting dining out by a third.",
	},
	{
		Kind:        domain.InsightSpending,
		Title:       "Spending trend",
		Description: "Grocery spending is up 15% compared with last month.",
	},
	{
		Kind:        domain.InsightBudget,
		Title:       "Budget status",
		Description: "You're on track in most categories, but Entertainment is at 90% of its allocation.",
	},
	{
		Kind:        domain.InsightSuggestion,
		Title:       "Suggestion",
		Description: "Consider moving unused Transportation funds into your Savings category.",
	},
}

// Insights returns a copy of the analysis insights.
func Insights() []domain.Insight {
	out := make([]domain.Insight, len(staticInsights))
	copy(out, staticInsights)
	return out
}
