package valueobject

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// shareScale is the number of decimal places kept on derived shares
const shareScale int32 = 16

// MonetarySplit is an amount divided between the manager and the owner.
//
// managerAmount + ownerAmount always equals amount to the cent. Shares are
// derived from the amounts and cannot be set directly; a zero amount has
// shares of 0/0.
type MonetarySplit struct {
	amount        decimal.Decimal
	managerAmount decimal.Decimal
	ownerAmount   decimal.Decimal
}

// NewSplit rounds amount to cents (half-even) and divides it at
// managerShare. The owner portion is rounded and the manager takes the
// remainder, so any leftover cent lands on the manager.
func NewSplit(amount decimal.Decimal, managerShare Ratio) MonetarySplit {
	total := amount.RoundBank(CentPlaces)
	owner := total.Mul(managerShare.Complement().Decimal()).RoundBank(CentPlaces)
	return splitFromParts(total, total.Sub(owner), owner)
}

// ManagerOnly attributes the whole amount to the manager. Undivided
// revenue components start out this way.
func ManagerOnly(amount decimal.Decimal) MonetarySplit {
	return NewSplit(amount, OneRatio)
}

// OwnerAbsorbed charges the whole amount to the owner
func OwnerAbsorbed(amount decimal.Decimal) MonetarySplit {
	return NewSplit(amount, ZeroRatio)
}

// SplitFromParts rebuilds a split from already-divided cent amounts, as read
// back from storage. Both parts are rounded to cents.
func SplitFromParts(managerAmount, ownerAmount decimal.Decimal) MonetarySplit {
	m := managerAmount.RoundBank(CentPlaces)
	o := ownerAmount.RoundBank(CentPlaces)
	return splitFromParts(m.Add(o), m, o)
}

func splitFromParts(amount, manager, owner decimal.Decimal) MonetarySplit {
	if !manager.Add(owner).Equal(amount) {
		panic(fmt.Sprintf("monetary split out of balance: manager %s + owner %s != amount %s",
			manager.String(), owner.String(), amount.String()))
	}
	return MonetarySplit{amount: amount, managerAmount: manager, ownerAmount: owner}
}

// Amount returns the total
func (s MonetarySplit) Amount() decimal.Decimal {
	return s.amount
}

// ManagerAmount returns the manager's portion
func (s MonetarySplit) ManagerAmount() decimal.Decimal {
	return s.managerAmount
}

// OwnerAmount returns the owner's portion
func (s MonetarySplit) OwnerAmount() decimal.Decimal {
	return s.ownerAmount
}

// ManagerShare returns managerAmount / amount, or 0 when amount is 0
func (s MonetarySplit) ManagerShare() decimal.Decimal {
	if s.amount.IsZero() {
		return decimal.Zero
	}
	return s.managerAmount.DivRound(s.amount, shareScale)
}

// OwnerShare returns 1 - ManagerShare, or 0 when amount is 0
func (s MonetarySplit) OwnerShare() decimal.Decimal {
	if s.amount.IsZero() {
		return decimal.Zero
	}
	return decimal.NewFromInt(1).Sub(s.ManagerShare())
}

// IsZero reports whether the total is zero
func (s MonetarySplit) IsZero() bool {
	return s.amount.IsZero()
}

// Add sums two splits element-wise
func (s MonetarySplit) Add(other MonetarySplit) MonetarySplit {
	return splitFromParts(
		s.amount.Add(other.amount),
		s.managerAmount.Add(other.managerAmount),
		s.ownerAmount.Add(other.ownerAmount),
	)
}

// Sub subtracts other element-wise
func (s MonetarySplit) Sub(other MonetarySplit) MonetarySplit {
	return splitFromParts(
		s.amount.Sub(other.amount),
		s.managerAmount.Sub(other.managerAmount),
		s.ownerAmount.Sub(other.ownerAmount),
	)
}

// Resplit divides the same total again at a new manager share
func (s MonetarySplit) Resplit(managerShare Ratio) MonetarySplit {
	return NewSplit(s.amount, managerShare)
}

// Equal compares all three amounts
func (s MonetarySplit) Equal(other MonetarySplit) bool {
	return s.amount.Equal(other.amount) &&
		s.managerAmount.Equal(other.managerAmount) &&
		s.ownerAmount.Equal(other.ownerAmount)
}

// String renders the split for logs
func (s MonetarySplit) String() string {
	return fmt.Sprintf("%s (manager %s / owner %s)",
		formatCents(s.amount),
		formatCents(s.managerAmount),
		formatCents(s.ownerAmount))
}

// SumSplits adds any number of splits element-wise
func SumSplits(splits ...MonetarySplit) MonetarySplit {
	total := MonetarySplit{}
	for _, s := range splits {
		total = total.Add(s)
	}
	return total
}

type splitJSON struct {
	Amount        string `json:"amount"`
	ManagerAmount string `json:"manager_amount"`
	OwnerAmount   string `json:"owner_amount"`
	ManagerShare  string `json:"manager_share"`
	OwnerShare    string `json:"owner_share"`
}

// MarshalJSON encodes amounts and shares as decimal strings
func (s MonetarySplit) MarshalJSON() ([]byte, error) {
	return json.Marshal(splitJSON{
		Amount:        formatCents(s.amount),
		ManagerAmount: formatCents(s.managerAmount),
		OwnerAmount:   formatCents(s.ownerAmount),
		ManagerShare:  s.ManagerShare().String(),
		OwnerShare:    s.OwnerShare().String(),
	})
}

// UnmarshalJSON reads the amounts back and re-derives the shares. Encoded
// shares are ignored; amounts finer than a cent and unbalanced payloads
// are rejected.
func (s *MonetarySplit) UnmarshalJSON(data []byte) error {
	var v splitJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("invalid monetary split: %w", err)
	}
	amount, err := parseOptionalDecimal(v.Amount)
	if err != nil {
		return fmt.Errorf("invalid monetary split amount: %w", err)
	}
	manager, err := parseOptionalDecimal(v.ManagerAmount)
	if err != nil {
		return fmt.Errorf("invalid monetary split manager amount: %w", err)
	}
	owner, err := parseOptionalDecimal(v.OwnerAmount)
	if err != nil {
		return fmt.Errorf("invalid monetary split owner amount: %w", err)
	}
	for _, part := range []struct {
		name  string
		value decimal.Decimal
	}{{"amount", amount}, {"manager amount", manager}, {"owner amount", owner}} {
		if err := requireCents(part.value); err != nil {
			return fmt.Errorf("invalid monetary split %s: %w", part.name, err)
		}
	}
	if !manager.Add(owner).Equal(amount) {
		return fmt.Errorf("monetary split out of balance: manager %s + owner %s != amount %s",
			manager.String(), owner.String(), amount.String())
	}
	*s = MonetarySplit{amount: amount, managerAmount: manager, ownerAmount: owner}
	return nil
}

func parseOptionalDecimal(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}
