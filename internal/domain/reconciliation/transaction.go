package reconciliation

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// AmountSign filters transactions by direction
type AmountSign string

const (
	SignAny    AmountSign = ""
	SignCredit AmountSign = "CREDIT"
	SignDebit  AmountSign = "DEBIT"
)

// IsValid checks if the sign is known
func (s AmountSign) IsValid() bool {
	return s == SignAny || s == SignCredit || s == SignDebit
}

// BankTransaction is a deposit or withdrawal from the operating account
type BankTransaction struct {
	ID          string          `json:"id"`
	Amount      decimal.Decimal `json:"amount"`
	Date        time.Time       `json:"date"`
	Vendor      string          `json:"vendor"`
	Description string          `json:"description,omitempty"`
}

// TransactionSelection narrows the bank transactions compared against a
// statement. Explicit IDs win over every other filter.
type TransactionSelection struct {
	IDs    []string   `json:"ids,omitempty"`
	Vendor string     `json:"vendor,omitempty"`
	From   *time.Time `json:"from,omitempty"`
	To     *time.Time `json:"to,omitempty"`
	Sign   AmountSign `json:"sign,omitempty"`
}

// IsEmpty reports whether the selection filters nothing
func (s TransactionSelection) IsEmpty() bool {
	return len(s.IDs) == 0 && s.Vendor == "" && s.From == nil && s.To == nil && s.Sign == SignAny
}

// Matches reports whether a transaction falls inside the selection.
// From and To are inclusive calendar dates.
func (s TransactionSelection) Matches(tx BankTransaction) bool {
	if len(s.IDs) > 0 {
		for _, id := range s.IDs {
			if id == tx.ID {
				return true
			}
		}
		return false
	}
	if s.Vendor != "" && !strings.EqualFold(strings.TrimSpace(tx.Vendor), strings.TrimSpace(s.Vendor)) {
		return false
	}
	day := truncateDay(tx.Date)
	if s.From != nil && day.Before(truncateDay(*s.From)) {
		return false
	}
	if s.To != nil && day.After(truncateDay(*s.To)) {
		return false
	}
	switch s.Sign {
	case SignCredit:
		return tx.Amount.IsPositive()
	case SignDebit:
		return tx.Amount.IsNegative()
	}
	return true
}

// Filter returns the matching transactions in their original order
func (s TransactionSelection) Filter(txs []BankTransaction) []BankTransaction {
	out := make([]BankTransaction, 0, len(txs))
	for _, tx := range txs {
		if s.Matches(tx) {
			out = append(out, tx)
		}
	}
	return out
}

// Amounts extracts the amounts of a list of transactions
func Amounts(txs []BankTransaction) []decimal.Decimal {
	out := make([]decimal.Decimal, len(txs))
	for i, tx := range txs {
		out[i] = tx.Amount
	}
	return out
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
