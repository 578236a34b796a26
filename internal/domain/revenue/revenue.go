package revenue

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/stayledger/backend/internal/domain/shared/valueobject"
)

// TaxLine is one jurisdiction's tax on a revenue component.
// Remitted lines were collected and paid by the channel; they are reported
// but never counted in totals, net revenue or payout.
type TaxLine struct {
	Description  string                    `json:"description"`
	Jurisdiction TaxJurisdiction           `json:"jurisdiction"`
	Rate         valueobject.Ratio         `json:"rate"`
	Remitted     bool                      `json:"remitted"`
	Value        valueobject.MonetarySplit `json:"value"`
}

// AccommodationRevenue decomposes the room-rate part of a booking
type AccommodationRevenue struct {
	RoomRateTotal     valueobject.MonetarySplit `json:"room_rate_total"`
	Discount          valueobject.MonetarySplit `json:"discount"`
	TaxableRevenue    valueobject.MonetarySplit `json:"taxable_revenue"`
	GrossRevenue      valueobject.MonetarySplit `json:"gross_revenue"`
	Taxes             []TaxLine                 `json:"taxes"`
	TotalTax          valueobject.MonetarySplit `json:"total_tax"`
	ChannelCommission valueobject.MonetarySplit `json:"channel_commission"`
	CreditCard        valueobject.MonetarySplit `json:"credit_card"`
	NetRevenue        valueobject.MonetarySplit `json:"net_revenue"`
	TaxableRoomRate   decimal.Decimal           `json:"taxable_room_rate"`
}

// GuestFeeLine is a single itemized fee after decomposition
type GuestFeeLine struct {
	Category          FeeCategory               `json:"category"`
	RawType           string                    `json:"raw_type"`
	Unit              FeeUnit                   `json:"unit"`
	Quantity          int                       `json:"quantity"`
	UnitAmount        decimal.Decimal           `json:"unit_amount"`
	Taxable           bool                      `json:"taxable"`
	Gross             valueobject.MonetarySplit `json:"gross"`
	Taxes             []TaxLine                 `json:"taxes"`
	TaxTotal          valueobject.MonetarySplit `json:"tax_total"`
	ChannelCommission valueobject.MonetarySplit `json:"channel_commission"`
	CreditCard        valueobject.MonetarySplit `json:"credit_card"`
	Net               valueobject.MonetarySplit `json:"net"`
}

// GuestFeeRevenue aggregates every non-accommodation fee of a booking
type GuestFeeRevenue struct {
	Lines               []GuestFeeLine            `json:"lines"`
	GuestFeesGross      valueobject.MonetarySplit `json:"guest_fees_gross"`
	GuestFeesTaxable    valueobject.MonetarySplit `json:"guest_fees_taxable"`
	GuestFeesNonTaxable valueobject.MonetarySplit `json:"guest_fees_non_taxable"`
	ChannelCommission   valueobject.MonetarySplit `json:"channel_commission"`
	GuestFeesTaxes      []TaxLine                 `json:"guest_fees_taxes"`
	GuestFeesTaxTotals  valueobject.MonetarySplit `json:"guest_fees_tax_totals"`
	CreditCard          valueobject.MonetarySplit `json:"credit_card"`
	GuestFeesNet        valueobject.MonetarySplit `json:"guest_fees_net"`
}

// ReservationRevenue is the full financial picture of one booking
type ReservationRevenue struct {
	RevenueID     uuid.UUID `json:"revenue_id"`
	ReservationID string    `json:"reservation_id"`
	ListingID     string    `json:"listing_id"`
	Channel       Channel   `json:"channel"`
	CheckIn       time.Time `json:"check_in"`
	CheckOut      time.Time `json:"check_out"`
	Nights        int       `json:"nights"`

	GrossBookingValue valueobject.MonetarySplit `json:"gross_booking_value"`
	NetRevenue        valueobject.MonetarySplit `json:"net_revenue"`
	TotalTaxes        valueobject.MonetarySplit `json:"total_taxes"`
	AllTaxes          []TaxLine                 `json:"all_taxes"`
	PayoutAmount      valueobject.Money         `json:"payout_amount"`

	AccommodationRevenue AccommodationRevenue `json:"accommodation_revenue"`
	GuestFeeRevenue      GuestFeeRevenue      `json:"guest_fee_revenue"`

	// Allocated is set once the business-rule split has been applied
	Allocated            bool     `json:"allocated"`
	UnrecognizedFeeTypes []string `json:"unrecognized_fee_types,omitempty"`
}

// revenueNamespace seeds deterministic revenue ids
var revenueNamespace = uuid.MustParse("5f0d5a9e-8c53-4b7e-9a43-0c1b7d2e6a11")

// RevenueIDFor returns the stable id of a reservation's revenue record
func RevenueIDFor(listingID, reservationID string) uuid.UUID {
	return uuid.NewSHA1(revenueNamespace, []byte(listingID+"/"+reservationID))
}

// CheckOutIn reports whether the stay checks out inside [start, end)
func (r *ReservationRevenue) CheckOutIn(start, end time.Time) bool {
	out := dateOf(r.CheckOut)
	return !out.Before(dateOf(start)) && out.Before(dateOf(end))
}

// recomputeTotals rebuilds the reservation-level figures from its components
func (r *ReservationRevenue) recomputeTotals() {
	acc, fees := r.AccommodationRevenue, r.GuestFeeRevenue
	r.GrossBookingValue = acc.GrossRevenue.Add(fees.GuestFeesGross)
	r.TotalTaxes = acc.TotalTax.Add(fees.GuestFeesTaxTotals)
	r.NetRevenue = acc.NetRevenue.Add(fees.GuestFeesNet)
	r.AllTaxes = mergeTaxLines(acc.Taxes, fees.GuestFeesTaxes)
}

// payableTaxTotal sums the lines the manager is accountable for
func payableTaxTotal(lines []TaxLine) valueobject.MonetarySplit {
	total := valueobject.MonetarySplit{}
	for _, l := range lines {
		if !l.Remitted {
			total = total.Add(l.Value)
		}
	}
	return total
}

// mergeTaxLines folds lines into one per jurisdiction, keeping the order in
// which jurisdictions first appear.
func mergeTaxLines(groups ...[]TaxLine) []TaxLine {
	var merged []TaxLine
	index := make(map[TaxJurisdiction]int)
	for _, lines := range groups {
		for _, l := range lines {
			if i, ok := index[l.Jurisdiction]; ok {
				merged[i].Value = merged[i].Value.Add(l.Value)
				continue
			}
			index[l.Jurisdiction] = len(merged)
			merged = append(merged, l)
		}
	}
	return merged
}
