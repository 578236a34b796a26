package valueobject

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertBalanced(t *testing.T, s MonetarySplit) {
	t.Helper()
	assert.True(t, s.ManagerAmount().Add(s.OwnerAmount()).Equal(s.Amount()),
		"manager %s + owner %s != %s", s.ManagerAmount(), s.OwnerAmount(), s.Amount())
	if s.Amount().IsZero() {
		assert.True(t, s.ManagerShare().IsZero())
		assert.True(t, s.OwnerShare().IsZero())
		return
	}
	assert.True(t, s.ManagerShare().Add(s.OwnerShare()).Equal(decimal.NewFromInt(1)))
}

func TestNewSplit(t *testing.T) {
	t.Run("splits at the manager share", func(t *testing.T) {
		s := NewSplit(d("276"), MustRatio("0.8"))
		assert.True(t, s.Amount().Equal(d("276")))
		assert.True(t, s.ManagerAmount().Equal(d("220.80")))
		assert.True(t, s.OwnerAmount().Equal(d("55.20")))
		assert.True(t, s.ManagerShare().Equal(d("0.8")))
		assert.True(t, s.OwnerShare().Equal(d("0.2")))
		assertBalanced(t, s)
	})

	t.Run("rounds the total half-even to cents", func(t *testing.T) {
		assert.True(t, NewSplit(d("10.125"), OneRatio).Amount().Equal(d("10.12")))
		assert.True(t, NewSplit(d("10.135"), OneRatio).Amount().Equal(d("10.14")))
	})

	t.Run("leftover cent goes to the manager", func(t *testing.T) {
		s := NewSplit(d("0.01"), MustRatio("0.5"))
		assert.True(t, s.ManagerAmount().Equal(d("0.01")))
		assert.True(t, s.OwnerAmount().IsZero())
		assertBalanced(t, s)
	})

	t.Run("uneven thirds stay balanced", func(t *testing.T) {
		s := NewSplit(d("100"), MustRatio("0.3333333333"))
		assertBalanced(t, s)
		assert.True(t, s.OwnerAmount().Equal(d("66.67")))
		assert.True(t, s.ManagerAmount().Equal(d("33.33")))
	})

	t.Run("zero amount has zero shares", func(t *testing.T) {
		s := NewSplit(decimal.Zero, MustRatio("0.8"))
		assert.True(t, s.IsZero())
		assertBalanced(t, s)
	})

	t.Run("negative amounts balance", func(t *testing.T) {
		s := NewSplit(d("-45.55"), MustRatio("0.25"))
		assertBalanced(t, s)
		assert.True(t, s.Amount().Equal(d("-45.55")))
	})
}

func TestManagerOnlyAndOwnerAbsorbed(t *testing.T) {
	m := ManagerOnly(d("24"))
	assert.True(t, m.ManagerAmount().Equal(d("24")))
	assert.True(t, m.OwnerAmount().IsZero())
	assert.True(t, m.ManagerShare().Equal(decimal.NewFromInt(1)))

	o := OwnerAbsorbed(d("24"))
	assert.True(t, o.OwnerAmount().Equal(d("24")))
	assert.True(t, o.ManagerAmount().IsZero())
	assert.True(t, o.OwnerShare().Equal(decimal.NewFromInt(1)))
}

func TestMonetarySplit_Arithmetic(t *testing.T) {
	a := NewSplit(d("100"), MustRatio("0.8"))
	b := NewSplit(d("50"), MustRatio("0.8"))

	t.Run("add is element-wise", func(t *testing.T) {
		sum := a.Add(b)
		assert.True(t, sum.Amount().Equal(d("150")))
		assert.True(t, sum.ManagerAmount().Equal(d("120")))
		assert.True(t, sum.OwnerAmount().Equal(d("30")))
		assertBalanced(t, sum)
	})

	t.Run("shares of a sum are re-derived from amounts", func(t *testing.T) {
		mixed := NewSplit(d("100"), OneRatio).Add(OwnerAbsorbed(d("100")))
		assert.True(t, mixed.ManagerShare().Equal(d("0.5")))
		assert.True(t, mixed.OwnerShare().Equal(d("0.5")))
	})

	t.Run("sub is element-wise", func(t *testing.T) {
		diff := a.Sub(b)
		assert.True(t, diff.Amount().Equal(d("50")))
		assert.True(t, diff.ManagerAmount().Equal(d("40")))
		assertBalanced(t, diff)
	})

	t.Run("sum of nothing is zero", func(t *testing.T) {
		assert.True(t, SumSplits().IsZero())
		assert.True(t, SumSplits(a, b).Equal(a.Add(b)))
	})

	t.Run("resplit keeps the amount", func(t *testing.T) {
		r := a.Resplit(ZeroRatio)
		assert.True(t, r.Amount().Equal(a.Amount()))
		assert.True(t, r.OwnerAmount().Equal(d("100")))
	})
}

func TestSplitFromParts(t *testing.T) {
	s := SplitFromParts(d("220.80"), d("55.20"))
	assert.True(t, s.Amount().Equal(d("276")))
	assertBalanced(t, s)
}

func TestMonetarySplit_JSON(t *testing.T) {
	t.Run("encodes decimal strings", func(t *testing.T) {
		data, err := json.Marshal(NewSplit(d("276"), MustRatio("0.8")))
		require.NoError(t, err)
		assert.JSONEq(t, `{"amount":"276.00","manager_amount":"220.80","owner_amount":"55.20","manager_share":"0.8","owner_share":"0.2"}`, string(data))
	})

	t.Run("decodes and re-derives shares", func(t *testing.T) {
		var s MonetarySplit
		err := json.Unmarshal([]byte(`{"amount":"10.00","manager_amount":"7.50","owner_amount":"2.50","manager_share":"0.1"}`), &s)
		require.NoError(t, err)
		assert.True(t, s.ManagerShare().Equal(d("0.75")))
	})

	t.Run("rejects unbalanced payload", func(t *testing.T) {
		var s MonetarySplit
		err := json.Unmarshal([]byte(`{"amount":"10.00","manager_amount":"7.50","owner_amount":"3.50"}`), &s)
		assert.Error(t, err)
	})

	t.Run("rejects sub-cent amounts", func(t *testing.T) {
		var s MonetarySplit
		err := json.Unmarshal([]byte(`{"amount":"0.01","manager_amount":"0.005","owner_amount":"0.005"}`), &s)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrSubCentAmount)
		assert.True(t, s.IsZero())
	})

	t.Run("accepts trailing zeros", func(t *testing.T) {
		var s MonetarySplit
		err := json.Unmarshal([]byte(`{"amount":"10.000","manager_amount":"7.500","owner_amount":"2.500"}`), &s)
		require.NoError(t, err)
		assertBalanced(t, s)
	})
}
