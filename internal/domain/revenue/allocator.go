package revenue

import (
	"fmt"

	"github.com/stayledger/backend/internal/domain/shared/valueobject"
)

// Allocator divides a decomposed reservation between manager and owner
// according to the listing's business model. Only the manager/owner
// division changes; every amount stays exactly as decomposed.
type Allocator struct{}

// NewAllocator creates an Allocator
func NewAllocator() *Allocator {
	return &Allocator{}
}

// Allocate returns a new ReservationRevenue with the business-model split
// applied. The input is not modified and allocating twice gives the same
// result as allocating once.
func (a *Allocator) Allocate(rev *ReservationRevenue, model BusinessModel) (*ReservationRevenue, error) {
	if rev == nil {
		return nil, invalidInput("revenue is required")
	}
	if err := model.Validate(); err != nil {
		return nil, err
	}

	rules := splitRules{pmc: model.PMCShare, deductions: model.Deductions}

	out := *rev
	out.AccommodationRevenue = rules.accommodation(rev.AccommodationRevenue)
	out.GuestFeeRevenue = rules.guestFees(rev.GuestFeeRevenue)
	out.UnrecognizedFeeTypes = append([]string(nil), rev.UnrecognizedFeeTypes...)
	out.recomputeTotals()
	out.Allocated = true

	mustKeepAmount("gross booking value", rev.GrossBookingValue, out.GrossBookingValue)
	mustKeepAmount("net revenue", rev.NetRevenue, out.NetRevenue)
	mustKeepAmount("total taxes", rev.TotalTaxes, out.TotalTaxes)
	return &out, nil
}

type splitRules struct {
	pmc        valueobject.Ratio
	deductions Deductions
}

// share is the manager share of a deduction line: owner-absorbed lines go
// entirely to the owner, the rest follow pmcShare.
func (r splitRules) share(ownerAbsorbed bool) valueobject.Ratio {
	if ownerAbsorbed {
		return valueobject.ZeroRatio
	}
	return r.pmc
}

func (r splitRules) taxes(lines []TaxLine) []TaxLine {
	if lines == nil {
		return nil
	}
	out := make([]TaxLine, len(lines))
	for i, l := range lines {
		out[i] = l
		out[i].Value = l.Value.Resplit(r.share(r.deductions.Tax(l.Jurisdiction)))
	}
	return out
}

func (r splitRules) accommodation(in AccommodationRevenue) AccommodationRevenue {
	out := in
	out.NetRevenue = in.NetRevenue.Resplit(r.pmc)
	out.Taxes = r.taxes(in.Taxes)
	out.TotalTax = payableTaxTotal(out.Taxes)
	out.CreditCard = in.CreditCard.Resplit(r.share(r.deductions.CreditCardFees))
	out.ChannelCommission = in.ChannelCommission.Resplit(r.share(r.deductions.ChannelFees))
	out.Discount = in.Discount.Resplit(r.share(r.deductions.Discounts))

	out.GrossRevenue = valueobject.SumSplits(out.NetRevenue, out.TotalTax, out.CreditCard, out.ChannelCommission)
	out.RoomRateTotal = out.GrossRevenue.Add(out.Discount)
	out.TaxableRevenue = in.TaxableRevenue.Resplit(valueobject.RatioOf(out.GrossRevenue.ManagerShare()))

	mustKeepAmount("accommodation gross", in.GrossRevenue, out.GrossRevenue)
	mustKeepAmount("room rate", in.RoomRateTotal, out.RoomRateTotal)
	return out
}

func (r splitRules) guestFees(in GuestFeeRevenue) GuestFeeRevenue {
	out := GuestFeeRevenue{Lines: make([]GuestFeeLine, len(in.Lines))}
	for i, l := range in.Lines {
		netShare := r.pmc
		if l.Category == FeeCategoryOther {
			netShare = r.share(r.deductions.OtherGuestFees)
		}
		line := l
		line.Net = l.Net.Resplit(netShare)
		line.Taxes = r.taxes(l.Taxes)
		line.TaxTotal = payableTaxTotal(line.Taxes)
		line.ChannelCommission = l.ChannelCommission.Resplit(r.share(r.deductions.ChannelFees))
		line.CreditCard = l.CreditCard.Resplit(r.share(r.deductions.CreditCardFees))
		line.Gross = valueobject.SumSplits(line.Net, line.TaxTotal, line.ChannelCommission, line.CreditCard)

		mustKeepAmount(fmt.Sprintf("fee %q gross", l.RawType), l.Gross, line.Gross)
		out.Lines[i] = line
	}
	out.summarize()
	return out
}

// mustKeepAmount guards the rule that allocation never changes totals.
// A mismatch means the decomposition itself was inconsistent.
func mustKeepAmount(what string, before, after valueobject.MonetarySplit) {
	if !before.Amount().Equal(after.Amount()) {
		panic(fmt.Sprintf("allocation changed %s from %s to %s",
			what, before.Amount().StringFixed(2), after.Amount().StringFixed(2)))
	}
}
