package revenue

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/stayledger/backend/internal/domain/shared/valueobject"
)

// Decomposer turns raw booking facts into a ReservationRevenue whose splits
// are all attributed to the manager. Allocation happens separately.
type Decomposer struct {
	currency          valueobject.Currency
	discountBeforeTax bool
}

// DecomposerOption configures a Decomposer
type DecomposerOption func(*Decomposer)

// WithCurrency sets the currency payouts are expressed in
func WithCurrency(c valueobject.Currency) DecomposerOption {
	return func(d *Decomposer) {
		d.currency = c
	}
}

// WithDiscountBeforeTax sets the default for listings that do not choose
// whether taxes are computed on discounted revenue.
func WithDiscountBeforeTax(v bool) DecomposerOption {
	return func(d *Decomposer) {
		d.discountBeforeTax = v
	}
}

// NewDecomposer creates a Decomposer
func NewDecomposer(opts ...DecomposerOption) *Decomposer {
	d := &Decomposer{
		currency:          valueobject.DefaultCurrency,
		discountBeforeTax: true,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Decompose computes the revenue components of one reservation.
// It is a pure function of its inputs.
func (d *Decomposer) Decompose(facts RawReservationFacts, model BusinessModel) (*ReservationRevenue, error) {
	if err := facts.validate(); err != nil {
		return nil, err
	}
	if err := model.validateRates(); err != nil {
		return nil, err
	}

	nights := facts.Nights()
	remitted := model.AirbnbRemitsTaxes && facts.Channel == ChannelAirbnb

	var accLines, feeLines []RawFee
	var unknown []string
	for _, fee := range facts.Fees {
		category, known := ParseFeeCategory(fee.Type)
		if !known {
			unknown = append(unknown, fee.Type)
		}
		if category == FeeCategoryAccommodation {
			accLines = append(accLines, fee)
		} else {
			feeLines = append(feeLines, fee)
		}
	}

	acc, err := d.accommodation(facts, model, accLines, nights, remitted)
	if err != nil {
		return nil, err
	}
	fees := d.guestFees(facts, model, feeLines, nights, remitted)

	rev := &ReservationRevenue{
		RevenueID:            RevenueIDFor(facts.ListingID, facts.ReservationID),
		ReservationID:        facts.ReservationID,
		ListingID:            facts.ListingID,
		Channel:              facts.Channel,
		CheckIn:              dateOf(facts.CheckIn),
		CheckOut:             dateOf(facts.CheckOut),
		Nights:               nights,
		AccommodationRevenue: acc,
		GuestFeeRevenue:      fees,
		UnrecognizedFeeTypes: uniqueSorted(unknown),
	}
	rev.recomputeTotals()

	payout := rev.GrossBookingValue.Amount().
		Sub(acc.ChannelCommission.Amount()).Sub(fees.ChannelCommission.Amount()).
		Sub(acc.CreditCard.Amount()).Sub(fees.CreditCard.Amount())
	rev.PayoutAmount, err = valueobject.NewMoney(payout, d.currency)
	if err != nil {
		return nil, invalidInput("reservation %s: %s", facts.ReservationID, err.Error())
	}
	return rev, nil
}

func (d *Decomposer) accommodation(
	facts RawReservationFacts,
	model BusinessModel,
	lines []RawFee,
	nights int,
	remitted bool,
) (AccommodationRevenue, error) {
	nightly := facts.nightlyRates()

	roomRate := decimal.Zero
	for _, r := range nightly {
		roomRate = roomRate.Add(r)
	}
	nonTaxable := decimal.Zero
	for _, l := range lines {
		amount := l.Amount.Mul(decimal.NewFromInt(int64(l.Unit.Quantity(nights, facts.Guests))))
		roomRate = roomRate.Add(amount)
		if !l.Taxable {
			nonTaxable = nonTaxable.Add(amount)
		}
	}
	roomRate = roomRate.RoundBank(valueobject.CentPlaces)

	discount := d.discount(facts, model, nightly).RoundBank(valueobject.CentPlaces)
	if discount.GreaterThan(roomRate) {
		return AccommodationRevenue{}, invalidInput("reservation %s: discount %s exceeds room rate %s",
			facts.ReservationID, discount.StringFixed(2), roomRate.StringFixed(2))
	}
	gross := roomRate.Sub(discount)

	base := gross
	if !model.discountBeforeTax(d.discountBeforeTax) {
		base = roomRate
	}
	base = base.Sub(nonTaxable.RoundBank(valueobject.CentPlaces))
	if base.IsNegative() {
		base = decimal.Zero
	}

	var taxes []TaxLine
	taxed := false
	for _, j := range Jurisdictions {
		rate := model.TaxRates.Rate(j)
		if rate.IsZero() || model.longStayExempt(j, nights) {
			continue
		}
		taxed = true
		taxes = append(taxes, newTaxLine(j, rate, base, remitted))
	}

	taxable := decimal.Zero
	if taxed {
		taxable = base
	}
	taxableRoomRate := decimal.Zero
	if !gross.IsZero() {
		taxableRoomRate = taxable.DivRound(gross, 6)
	}

	totalTax := payableTaxTotal(taxes)
	creditCard := valueobject.ManagerOnly(gross.Mul(model.CreditCardFeeRate.Decimal()))
	commission := valueobject.ManagerOnly(gross.Mul(facts.ChannelCommissionRate.Decimal()))
	net := valueobject.ManagerOnly(gross).Sub(totalTax).Sub(creditCard).Sub(commission)

	return AccommodationRevenue{
		RoomRateTotal:     valueobject.ManagerOnly(roomRate),
		Discount:          valueobject.ManagerOnly(discount),
		TaxableRevenue:    valueobject.ManagerOnly(taxable),
		GrossRevenue:      valueobject.ManagerOnly(gross),
		Taxes:             taxes,
		TotalTax:          totalTax,
		ChannelCommission: commission,
		CreditCard:        creditCard,
		NetRevenue:        net,
		TaxableRoomRate:   taxableRoomRate,
	}, nil
}

// discount prices either the channel's explicit promotion or the best
// matching listing rule for each night. Rules never stack.
func (d *Decomposer) discount(facts RawReservationFacts, model BusinessModel, nightly []decimal.Decimal) decimal.Decimal {
	if facts.DiscountAmount != nil {
		return *facts.DiscountAmount
	}
	total := decimal.Zero
	checkIn := dateOf(facts.CheckIn)
	for i, rate := range nightly {
		night := checkIn.AddDate(0, 0, i)
		best := valueobject.ZeroRatio
		for _, rule := range model.Discounts {
			if rule.appliesTo(night, len(nightly)) && rule.Rate.GreaterThan(best) {
				best = rule.Rate
			}
		}
		total = total.Add(rate.Mul(best.Decimal()))
	}
	return total
}

func (d *Decomposer) guestFees(
	facts RawReservationFacts,
	model BusinessModel,
	fees []RawFee,
	nights int,
	remitted bool,
) GuestFeeRevenue {
	out := GuestFeeRevenue{Lines: make([]GuestFeeLine, 0, len(fees))}
	for _, fee := range fees {
		category, _ := ParseFeeCategory(fee.Type)
		def := model.feeDefinition(category, fee.Type)
		qty := fee.Unit.Quantity(nights, facts.Guests)
		gross := fee.Amount.Mul(decimal.NewFromInt(int64(qty))).RoundBank(valueobject.CentPlaces)

		var taxes []TaxLine
		if fee.Taxable {
			for _, j := range Jurisdictions {
				rate := model.TaxRates.Rate(j)
				if rate.IsZero() || def.Exempt(j) || model.longStayExempt(j, nights) {
					continue
				}
				taxes = append(taxes, newTaxLine(j, rate, gross, remitted))
			}
		}

		commission := valueobject.MonetarySplit{}
		if !fee.CommissionExempt && !def.CommissionExempt {
			commission = valueobject.ManagerOnly(gross.Mul(facts.ChannelCommissionRate.Decimal()))
		}
		creditCard := valueobject.ManagerOnly(gross.Mul(model.CreditCardFeeRate.Decimal()))
		taxTotal := payableTaxTotal(taxes)

		out.Lines = append(out.Lines, GuestFeeLine{
			Category:          category,
			RawType:           fee.Type,
			Unit:              fee.Unit,
			Quantity:          qty,
			UnitAmount:        fee.Amount,
			Taxable:           fee.Taxable,
			Gross:             valueobject.ManagerOnly(gross),
			Taxes:             taxes,
			TaxTotal:          taxTotal,
			ChannelCommission: commission,
			CreditCard:        creditCard,
			Net:               valueobject.ManagerOnly(gross).Sub(taxTotal).Sub(commission).Sub(creditCard),
		})
	}
	out.summarize()
	return out
}

// summarize rebuilds the fee totals from the lines
func (g *GuestFeeRevenue) summarize() {
	g.GuestFeesGross = valueobject.MonetarySplit{}
	g.GuestFeesTaxable = valueobject.MonetarySplit{}
	g.GuestFeesNonTaxable = valueobject.MonetarySplit{}
	g.ChannelCommission = valueobject.MonetarySplit{}
	g.CreditCard = valueobject.MonetarySplit{}
	g.GuestFeesNet = valueobject.MonetarySplit{}
	g.GuestFeesTaxTotals = valueobject.MonetarySplit{}

	taxGroups := make([][]TaxLine, 0, len(g.Lines))
	for _, l := range g.Lines {
		g.GuestFeesGross = g.GuestFeesGross.Add(l.Gross)
		if l.Taxable {
			g.GuestFeesTaxable = g.GuestFeesTaxable.Add(l.Gross)
		} else {
			g.GuestFeesNonTaxable = g.GuestFeesNonTaxable.Add(l.Gross)
		}
		g.ChannelCommission = g.ChannelCommission.Add(l.ChannelCommission)
		g.CreditCard = g.CreditCard.Add(l.CreditCard)
		g.GuestFeesNet = g.GuestFeesNet.Add(l.Net)
		g.GuestFeesTaxTotals = g.GuestFeesTaxTotals.Add(l.TaxTotal)
		taxGroups = append(taxGroups, l.Taxes)
	}
	g.GuestFeesTaxes = mergeTaxLines(taxGroups...)
}

func newTaxLine(j TaxJurisdiction, rate valueobject.Ratio, base decimal.Decimal, remitted bool) TaxLine {
	return TaxLine{
		Description:  j.Description(),
		Jurisdiction: j,
		Rate:         rate,
		Remitted:     remitted,
		Value:        valueobject.ManagerOnly(base.Mul(rate.Decimal())),
	}
}

func uniqueSorted(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
