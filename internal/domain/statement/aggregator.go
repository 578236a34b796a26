package statement

import (
	"sort"

	"github.com/stayledger/backend/internal/domain/revenue"
	"github.com/stayledger/backend/internal/domain/shared"
	"github.com/stayledger/backend/internal/domain/shared/valueobject"
)

// Aggregator builds draft owner statements from allocated reservations
type Aggregator struct {
	currency valueobject.Currency
}

// NewAggregator creates an Aggregator whose payouts are in currency
func NewAggregator(currency valueobject.Currency) *Aggregator {
	if currency == "" {
		currency = valueobject.DefaultCurrency
	}
	return &Aggregator{currency: currency}
}

// Build aggregates one listing's month into a DRAFT statement. Totals are
// element-wise sums of the individual splits, never a re-split of the
// combined amount. Reservations that do not belong to the period are left
// out and listed in Failures.
func (a *Aggregator) Build(
	listingID string,
	month, year int,
	reservations []*revenue.ReservationRevenue,
	expenses []ExpenseLine,
) (*OwnerStatement, error) {
	if listingID == "" {
		return nil, shared.NewDomainError(shared.CodeInvalidRevenueInput, "listing id is required")
	}
	period, err := NewPeriod(year, month)
	if err != nil {
		return nil, err
	}

	stmt := &OwnerStatement{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(StatementIDFor(listingID, period)),
		ListingID:         listingID,
		Period:            period,
		Status:            StatusDraft,
		Currency:          a.currency,
		AccommodationRows: []AccommodationRow{},
		GuestFeeRows:      []GuestFeeRow{},
		Failures:          []ReservationFailure{},
		Expenses:          NewExpenseSummary(expenses),
	}

	included := make([]*revenue.ReservationRevenue, 0, len(reservations))
	for _, rev := range reservations {
		if rev == nil {
			continue
		}
		if f, ok := a.exclude(stmt, rev); ok {
			stmt.Failures = append(stmt.Failures, f)
			continue
		}
		included = append(included, rev)
	}
	sort.SliceStable(included, func(i, j int) bool {
		if !included[i].CheckOut.Equal(included[j].CheckOut) {
			return included[i].CheckOut.Before(included[j].CheckOut)
		}
		return included[i].ReservationID < included[j].ReservationID
	})

	totals := Totals{Payout: valueobject.Zero(a.currency)}
	for _, rev := range included {
		acc, fees := rev.AccommodationRevenue, rev.GuestFeeRevenue
		stmt.AccommodationRows = append(stmt.AccommodationRows, AccommodationRow{
			ReservationID:     rev.ReservationID,
			Channel:           rev.Channel,
			CheckIn:           rev.CheckIn,
			CheckOut:          rev.CheckOut,
			Nights:            rev.Nights,
			RoomRateTotal:     acc.RoomRateTotal,
			Discount:          acc.Discount,
			GrossRevenue:      acc.GrossRevenue,
			Taxes:             acc.TotalTax,
			ChannelCommission: acc.ChannelCommission,
			CreditCard:        acc.CreditCard,
			NetRevenue:        acc.NetRevenue,
			Payout:            rev.PayoutAmount,
		})
		for _, l := range fees.Lines {
			stmt.GuestFeeRows = append(stmt.GuestFeeRows, GuestFeeRow{
				ReservationID:     rev.ReservationID,
				Category:          l.Category,
				RawType:           l.RawType,
				Gross:             l.Gross,
				Taxes:             l.TaxTotal,
				ChannelCommission: l.ChannelCommission,
				CreditCard:        l.CreditCard,
				Net:               l.Net,
			})
		}

		totals.RoomRateTotal = totals.RoomRateTotal.Add(acc.RoomRateTotal)
		totals.Discount = totals.Discount.Add(acc.Discount)
		totals.GrossRevenue = totals.GrossRevenue.Add(acc.GrossRevenue)
		totals.AccommodationTax = totals.AccommodationTax.Add(acc.TotalTax)
		totals.AccommodationNet = totals.AccommodationNet.Add(acc.NetRevenue)
		totals.GuestFeesGross = totals.GuestFeesGross.Add(fees.GuestFeesGross)
		totals.GuestFeesTaxes = totals.GuestFeesTaxes.Add(fees.GuestFeesTaxTotals)
		totals.GuestFeesNet = totals.GuestFeesNet.Add(fees.GuestFeesNet)
		totals.GrossBookingValue = totals.GrossBookingValue.Add(rev.GrossBookingValue)
		totals.TotalTaxes = totals.TotalTaxes.Add(rev.TotalTaxes)
		totals.CreditCard = totals.CreditCard.Add(acc.CreditCard).Add(fees.CreditCard)
		totals.ChannelCommission = totals.ChannelCommission.Add(acc.ChannelCommission).Add(fees.ChannelCommission)
		totals.NetRevenue = totals.NetRevenue.Add(rev.NetRevenue)
		totals.Payout = totals.Payout.MustAdd(rev.PayoutAmount)
	}
	totals.Expenses = stmt.Expenses.Total
	totals.NetIncome = totals.NetRevenue.Sub(totals.Expenses)

	stmt.Totals = totals
	stmt.ReservationCount = len(included)
	return stmt, nil
}

// exclude decides whether a reservation stays off the statement
func (a *Aggregator) exclude(stmt *OwnerStatement, rev *revenue.ReservationRevenue) (ReservationFailure, bool) {
	fail := func(code, msg string) (ReservationFailure, bool) {
		return ReservationFailure{ReservationID: rev.ReservationID, Code: code, Message: msg}, true
	}
	switch {
	case rev.ListingID != stmt.ListingID:
		return fail(shared.CodeInvalidRevenueInput, "reservation belongs to listing "+rev.ListingID)
	case !rev.CheckOutIn(stmt.Period.Start(), stmt.Period.End()):
		return fail(shared.CodeInvalidRevenueInput, "check-out "+rev.CheckOut.Format("2006-01-02")+" is outside "+stmt.Period.String())
	case !rev.Allocated:
		return fail(shared.CodeInvalidBusinessModel, "reservation revenue has not been allocated")
	case rev.PayoutAmount.Currency() != a.currency:
		return fail(shared.CodeInvalidRevenueInput, "payout currency "+string(rev.PayoutAmount.Currency())+" does not match "+string(a.currency))
	}
	return ReservationFailure{}, false
}
