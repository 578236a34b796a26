package valueobject

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Ratio is a fraction in [0,1]. Percentages (0-100) exist only at
// formatting boundaries; see RatioFromPercent and Percent.
type Ratio struct {
	value decimal.Decimal
}

// ZeroRatio is 0%
var ZeroRatio = Ratio{value: decimal.Zero}

// OneRatio is 100%
var OneRatio = Ratio{value: decimal.NewFromInt(1)}

// NewRatio validates that d lies in [0,1]
func NewRatio(d decimal.Decimal) (Ratio, error) {
	r := Ratio{value: d}
	if !r.IsValid() {
		return Ratio{}, fmt.Errorf("ratio %s is outside [0,1]", d.String())
	}
	return r, nil
}

// RatioOf wraps d without validation; call IsValid before using it for money.
func RatioOf(d decimal.Decimal) Ratio {
	return Ratio{value: d}
}

// MustRatio parses a decimal string into a valid ratio or panics
func MustRatio(s string) Ratio {
	r, err := NewRatio(decimal.RequireFromString(s))
	if err != nil {
		panic(err)
	}
	return r
}

// RatioFromPercent converts a 0-100 display percentage into a ratio
func RatioFromPercent(percent decimal.Decimal) (Ratio, error) {
	return NewRatio(percent.Div(hundred))
}

// Decimal returns the underlying fraction
func (r Ratio) Decimal() decimal.Decimal {
	return r.value
}

// Percent returns the ratio as a 0-100 display percentage
func (r Ratio) Percent() decimal.Decimal {
	return r.value.Mul(hundred)
}

// Complement returns 1 - r
func (r Ratio) Complement() Ratio {
	return Ratio{value: decimal.NewFromInt(1).Sub(r.value)}
}

// IsValid reports whether the ratio lies in [0,1]
func (r Ratio) IsValid() bool {
	return !r.value.IsNegative() && r.value.LessThanOrEqual(decimal.NewFromInt(1))
}

// IsZero reports whether the ratio is exactly zero
func (r Ratio) IsZero() bool {
	return r.value.IsZero()
}

// Equal compares two ratios numerically
func (r Ratio) Equal(other Ratio) bool {
	return r.value.Equal(other.value)
}

// GreaterThan compares two ratios numerically
func (r Ratio) GreaterThan(other Ratio) bool {
	return r.value.GreaterThan(other.value)
}

// String returns the fraction as a decimal string
func (r Ratio) String() string {
	return r.value.String()
}

// MarshalJSON encodes the ratio as a decimal string
func (r Ratio) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.value.String())
}

// UnmarshalJSON accepts either a JSON string or number
func (r *Ratio) UnmarshalJSON(data []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(data); err != nil {
		return fmt.Errorf("invalid ratio: %w", err)
	}
	r.value = d
	return nil
}
