package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType is the direction of money movement on an account.
type TransactionType string

const (
	TransactionDebit  TransactionType = "debit"
	TransactionCredit TransactionType = "credit"
)

// Transaction is a single posted or pending movement on a linked account.
type Transaction struct {
	ID          string          `json:"id"`
	UserID      string          `json:"user_id"`
	AccountID   string          `json:"account_id"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Description string          `json:"description"`
	Merchant    string          `json:"merchant,omitempty"`
	Category    string          `json:"category,omitempty"`
	Type        TransactionType `json:"type"`
	Date        time.Time       `json:"date"`
	Pending     bool            `json:"pending"`
}

// AccountType enumerates the kinds of linked accounts.
type AccountType string

const (
	AccountChecking   AccountType = "checking"
	AccountSavings    AccountType = "savings"
	AccountCredit     AccountType = "credit"
	AccountInvestment AccountType = "investment"
	AccountLoan       AccountType = "loan"
)

// Account is a linked institution account.
type Account struct {
	ID               string          `json:"id"`
	UserID           string          `json:"user_id"`
	Institution      string          `json:"institution"`
	Name             string          `json:"name"`
	Type             AccountType     `json:"type"`
	MaskedNumber     string          `json:"masked_number"`
	CurrentBalance   decimal.Decimal `json:"current_balance"`
	AvailableBalance decimal.Decimal `json:"available_balance"`
	Currency         string          `json:"currency"`
	Active           bool            `json:"active"`
}
