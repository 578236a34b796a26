// Package reconciliation matches expected reservation payouts against the
// bank transactions that should have paid them.
package reconciliation

import (
	"github.com/shopspring/decimal"

	"github.com/stayledger/backend/internal/domain/shared/valueobject"
)

// Result compares two selections of amounts. A nil sum means the list was
// empty and there was nothing to compare.
type Result struct {
	SumReservations *decimal.Decimal
	SumTransactions *decimal.Decimal
	GapToReconcile  *decimal.Decimal
	CanReconcile    bool
}

// Reconcile sums payouts and transactions independently and reports whether
// the gap between them rounds to zero cents. An empty list never reconciles.
func Reconcile(payouts, transactions []decimal.Decimal) Result {
	res := Result{
		SumReservations: sum(payouts),
		SumTransactions: sum(transactions),
	}
	if res.SumReservations == nil || res.SumTransactions == nil {
		return res
	}
	gap := res.SumReservations.Sub(*res.SumTransactions)
	res.GapToReconcile = &gap
	res.CanReconcile = gap.RoundBank(valueobject.CentPlaces).IsZero()
	return res
}

func sum(values []decimal.Decimal) *decimal.Decimal {
	if len(values) == 0 {
		return nil
	}
	total := decimal.Sum(decimal.Zero, values...)
	return &total
}

// MoneyResult is a Result expressed in a currency
type MoneyResult struct {
	SumReservations *valueobject.Money `json:"sum_reservations"`
	SumTransactions *valueobject.Money `json:"sum_transactions"`
	GapToReconcile  *valueobject.Money `json:"gap_to_reconcile"`
	CanReconcile    bool               `json:"can_reconcile"`
}

// InCurrency attaches a currency to every present sum
func (r Result) InCurrency(c valueobject.Currency) MoneyResult {
	return MoneyResult{
		SumReservations: toMoney(r.SumReservations, c),
		SumTransactions: toMoney(r.SumTransactions, c),
		GapToReconcile:  toMoney(r.GapToReconcile, c),
		CanReconcile:    r.CanReconcile,
	}
}

func toMoney(d *decimal.Decimal, c valueobject.Currency) *valueobject.Money {
	if d == nil {
		return nil
	}
	m, err := valueobject.NewMoney(*d, c)
	if err != nil {
		return nil
	}
	return &m
}

// Reconciliation outcomes
const (
	OutcomeReconciled   = "reconciled"
	OutcomeUnreconciled = "unreconciled"
	OutcomeEmpty        = "empty"
)

// Outcome classifies the result. Empty means one side had nothing to sum.
func (r Result) Outcome() string {
	switch {
	case r.SumReservations == nil || r.SumTransactions == nil:
		return OutcomeEmpty
	case r.CanReconcile:
		return OutcomeReconciled
	default:
		return OutcomeUnreconciled
	}
}
