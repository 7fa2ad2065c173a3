package chat

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/dvloznov/finance-dashboard/internal/budget"
)

const amountPattern = `\$?(\d+(?:\.\d+)?)`

var (
	allocateRe = regexp.MustCompile(`(?i)\ballocate\s+` + amountPattern +
		`\s+to\s+(?:the\s+|my\s+)?(.+?)(?:\s+(?:category|budget))?\s*[.!?]*$`)

	createRe = regexp.MustCompile(`(?i)\b(?:create|add|new)\s+(?:a\s+)?(?:new\s+)?category\s+(?:called\s+|named\s+)?["']?([^"'$]+?)["']?` +
		`(?:\s+with\s+` + amountPattern + `(?:\s+allocated)?)?\s*[.!?]*$`)

	updateForRe = regexp.MustCompile(`(?i)\b(?:set|update|change)\s+(?:the\s+|my\s+)?budget\s+for\s+(?:the\s+|my\s+)?(.+?)\s+to\s+` +
		amountPattern + `\s*[.!?]*$`)

	updateSuffixRe = regexp.MustCompile(`(?i)^(?:(?:set|update|change)\s+)?(?:the\s+|my\s+)?([a-z][a-z &'-]*?)\s+(?:budget|allocation)\s+to\s+` +
		amountPattern + `\s*[.!?]*$`)

	transferRe = regexp.MustCompile(`(?i)\b(?:transfer|move)\s+` + amountPattern +
		`\s+from\s+(?:the\s+|my\s+)?(.+?)(?:\s+(?:category|budget))?\s+to\s+(?:the\s+|my\s+)?(.+?)(?:\s+(?:category|budget))?\s*[.!?]*$`)

	thousandsRe = regexp.MustCompile(`(\d),(\d{3})\b`)
)

// rule is one entry of the intent table: the first rule whose match
// succeeds decides the command.
type rule struct {
	intent string
	match  func(text string) (Command, bool)
}

// Interpreter classifies chat text into commands and executes them.
type Interpreter struct {
	rules    []rule
	budget   BudgetService
	receipts ReceiptLister
}

// NewInterpreter creates an Interpreter. receipts may be nil, in which case
// receipt requests are answered with an unavailable message.
func NewInterpreter(budget BudgetService, receipts ReceiptLister) *Interpreter {
	return &Interpreter{rules: defaultRules(), budget: budget, receipts: receipts}
}

// Intents returns the rule names in evaluation order.
func (in *Interpreter) Intents() []string {
	names := make([]string, len(in.rules))
	for i, r := range in.rules {
		names[i] = r.intent
	}
	return names
}

// Classify maps text to exactly one command. Text that matches no rule yields
// a FallbackCommand.
func (in *Interpreter) Classify(text string) Command {
	text = normalize(text)
	for _, r := range in.rules {
		if cmd, ok := r.match(text); ok {
			return cmd
		}
	}
	return FallbackCommand{Reply: cannedReply(text)}
}

func defaultRules() []rule {
	return []rule{
		{intent: "allocate", match: matchAllocate},
		{intent: "create_category", match: matchCreate},
		{intent: "update_category", match: matchUpdate},
		{intent: "transfer", match: matchTransfer},
		{intent: "view", match: matchShow},
		{intent: "analyze", match: matchAnalyze},
		{intent: "receipts", match: matchReceipts},
	}
}

func normalize(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	return thousandsRe.ReplaceAllString(text, "$1$2")
}

func matchAllocate(text string) (Command, bool) {
	m := allocateRe.FindStringSubmatch(text)
	if m == nil {
		return nil, false
	}
	amount, err := budget.ParseAmount(m[1])
	if err != nil {
		return nil, false
	}
	return AllocateCommand{Category: categoryRef(m[2]), Amount: amount}, true
}

func matchCreate(text string) (Command, bool) {
	m := createRe.FindStringSubmatch(text)
	if m == nil {
		return nil, false
	}
	name := titleCase(trimCapture(m[1]))
	if name == "" {
		return nil, false
	}
	cmd := CreateCategoryCommand{Name: name}
	if m[2] != "" {
		amount, err := budget.ParseAmount(m[2])
		if err != nil {
			return nil, false
		}
		cmd.Amount = amount
	}
	return cmd, true
}

// matchUpdate accepts both "set budget for X to $Y" and "X budget to $Y".
func matchUpdate(text string) (Command, bool) {
	for _, re := range []*regexp.Regexp{updateForRe, updateSuffixRe} {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		amount, err := budget.ParseAmount(m[2])
		if err != nil {
			return nil, false
		}
		return UpdateCategoryCommand{Category: categoryRef(m[1]), Amount: amount}, true
	}
	return nil, false
}

func matchTransfer(text string) (Command, bool) {
	m := transferRe.FindStringSubmatch(text)
	if m == nil {
		return nil, false
	}
	amount, err := budget.ParseAmount(m[1])
	if err != nil {
		return nil, false
	}
	return TransferCommand{From: categoryRef(m[2]), To: categoryRef(m[3]), Amount: amount}, true
}

func matchShow(text string) (Command, bool) {
	lower := strings.ToLower(text)
	if strings.Contains(lower, "show") && containsAny(lower, "budget", "category", "categories", "funds") {
		return ShowBudgetCommand{}, true
	}
	return nil, false
}

func matchAnalyze(text string) (Command, bool) {
	lower := strings.ToLower(text)
	if containsAny(lower, "analyze", "analyse", "analysis") &&
		containsAny(lower, "spending", "budget", "finance", "financial", "expense", "money", "saving", "transaction") {
		return AnalyzeCommand{}, true
	}
	return nil, false
}

func matchReceipts(text string) (Command, bool) {
	lower := strings.ToLower(text)
	if !strings.Contains(lower, "receipt") || !containsAny(lower, "show", "view", "get") {
		return nil, false
	}
	return parseReceiptsRequest(lower), true
}

// categoryRef turns a captured category phrase into a category id.
func categoryRef(s string) string {
	return budget.CategoryID(trimCapture(s))
}

func trimCapture(s string) string {
	return strings.TrimSpace(strings.TrimRight(strings.TrimSpace(s), ".!?\"'"))
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + w[size:]
	}
	return strings.Join(words, " ")
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
