package valueobject

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Currency represents a currency code (ISO 4217)
type Currency string

const (
	USD Currency = "USD"
	EUR Currency = "EUR"
	GBP Currency = "GBP"
	CAD Currency = "CAD"
	AUD Currency = "AUD"
	MXN Currency = "MXN"
)

// DefaultCurrency is used when an organization has not configured one
const DefaultCurrency = USD

// CentPlaces is the number of decimal places every stored amount carries
const CentPlaces int32 = 2

// Money is an immutable monetary amount in a single currency
type Money struct {
	amount   decimal.Decimal
	currency Currency
}

// NewMoney creates a new Money with the specified amount and currency
func NewMoney(amount decimal.Decimal, currency Currency) (Money, error) {
	if currency == "" {
		return Money{}, errors.New("currency cannot be empty")
	}
	return Money{
		amount:   amount,
		currency: currency,
	}, nil
}

// NewMoneyFromString creates Money from a string representation
func NewMoneyFromString(amount string, currency Currency) (Money, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return Money{}, fmt.Errorf("invalid amount string: %w", err)
	}
	return NewMoney(d, currency)
}

// MustMoney creates Money from a decimal string and panics on malformed input.
// Intended for constants and tests.
func MustMoney(amount string, currency Currency) Money {
	m, err := NewMoneyFromString(amount, currency)
	if err != nil {
		panic(err)
	}
	return m
}

// Zero returns a zero-value Money in the specified currency
func Zero(currency Currency) Money {
	return Money{amount: decimal.Zero, currency: currency}
}

// Amount returns the decimal amount
func (m Money) Amount() decimal.Decimal {
	return m.amount
}

// Currency returns the currency code
func (m Money) Currency() Currency {
	return m.currency
}

// IsZero returns true if the amount is zero
func (m Money) IsZero() bool {
	return m.amount.IsZero()
}

// IsNegative returns true if the amount is negative
func (m Money) IsNegative() bool {
	return m.amount.IsNegative()
}

// Add returns a new Money with the sum of both amounts
func (m Money) Add(other Money) (Money, error) {
	if m.currency != other.currency {
		return Money{}, fmt.Errorf("cannot add money with different currencies: %s and %s", m.currency, other.currency)
	}
	return Money{
		amount:   m.amount.Add(other.amount),
		currency: m.currency,
	}, nil
}

// MustAdd adds two Money values, panics if currencies don't match
func (m Money) MustAdd(other Money) Money {
	result, err := m.Add(other)
	if err != nil {
		panic(err)
	}
	return result
}

// Subtract returns a new Money with the difference
func (m Money) Subtract(other Money) (Money, error) {
	if m.currency != other.currency {
		return Money{}, fmt.Errorf("cannot subtract money with different currencies: %s and %s", m.currency, other.currency)
	}
	return Money{
		amount:   m.amount.Sub(other.amount),
		currency: m.currency,
	}, nil
}

// MustSubtract subtracts two Money values, panics if currencies don't match
func (m Money) MustSubtract(other Money) Money {
	result, err := m.Subtract(other)
	if err != nil {
		panic(err)
	}
	return result
}

// Negate returns a new Money with the sign reversed
func (m Money) Negate() Money {
	return Money{amount: m.amount.Neg(), currency: m.currency}
}

// RoundCents applies banker's rounding to two decimal places
func (m Money) RoundCents() Money {
	return Money{amount: m.amount.RoundBank(CentPlaces), currency: m.currency}
}

// Equals returns true if both Money values are equal (same amount and currency)
func (m Money) Equals(other Money) bool {
	return m.currency == other.currency && m.amount.Equal(other.amount)
}

// String returns a string representation of the Money
func (m Money) String() string {
	return fmt.Sprintf("%s %s", formatCents(m.amount), m.currency)
}

// StringFixed returns the amount as a string with fixed decimal places
func (m Money) StringFixed(places int32) string {
	return m.amount.StringFixed(places)
}

// SumMoney adds a list of amounts in one currency. ok is false for an
// empty list so callers can distinguish "nothing selected" from zero.
func SumMoney(currency Currency, items []Money) (sum Money, ok bool, err error) {
	if len(items) == 0 {
		return Zero(currency), false, nil
	}
	sum = Zero(currency)
	for _, item := range items {
		sum, err = sum.Add(item)
		if err != nil {
			return Money{}, false, err
		}
	}
	return sum, true, nil
}

// MarshalJSON encodes the amount as a decimal string, never a float
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Amount   string   `json:"amount"`
		Currency Currency `json:"currency"`
	}{
		Amount:   formatCents(m.amount),
		Currency: m.currency,
	})
}

// UnmarshalJSON implements json.Unmarshaler. Amounts finer than a cent are
// rejected; a missing currency falls back to DefaultCurrency.
func (m *Money) UnmarshalJSON(data []byte) error {
	var v struct {
		Amount   decimal.Decimal `json:"amount"`
		Currency Currency        `json:"currency"`
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("invalid money: %w", err)
	}
	if err := requireCents(v.Amount); err != nil {
		return fmt.Errorf("invalid money: %w", err)
	}
	m.amount = v.Amount
	m.currency = v.Currency
	if m.currency == "" {
		m.currency = DefaultCurrency
	}
	return nil
}

// ErrSubCentAmount is returned when decoding an amount that is not a whole
// number of cents
var ErrSubCentAmount = errors.New("amount is finer than a cent")

func requireCents(d decimal.Decimal) error {
	if !d.Equal(d.Round(CentPlaces)) {
		return fmt.Errorf("%w: %s", ErrSubCentAmount, d.String())
	}
	return nil
}

// formatCents renders an amount at cent precision, rounding half-even
func formatCents(d decimal.Decimal) string {
	return d.RoundBank(CentPlaces).StringFixed(CentPlaces)
}

// Value implements driver.Valuer; only the amount is stored
func (m Money) Value() (driver.Value, error) {
	return formatCents(m.amount), nil
}

// Scan implements sql.Scanner. Currency defaults to DefaultCurrency when
// not already set, since columns store the amount only.
func (m *Money) Scan(value any) error {
	if value == nil {
		m.amount = decimal.Zero
		if m.currency == "" {
			m.currency = DefaultCurrency
		}
		return nil
	}

	var amount decimal.Decimal
	if err := amount.Scan(value); err != nil {
		return fmt.Errorf("cannot scan %T into Money: %w", value, err)
	}
	m.amount = amount
	if m.currency == "" {
		m.currency = DefaultCurrency
	}
	return nil
}
