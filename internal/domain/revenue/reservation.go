package revenue

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/stayledger/backend/internal/domain/shared/valueobject"
)

// RawFee is one itemized charge as the channel reported it
type RawFee struct {
	Type             string          `json:"type"`
	Amount           decimal.Decimal `json:"amount"`
	Unit             FeeUnit         `json:"unit"`
	Taxable          bool            `json:"taxable"`
	CommissionExempt bool            `json:"commission_exempt,omitempty"`
}

// RawReservationFacts is the booking data the decomposer works from
type RawReservationFacts struct {
	ReservationID string    `json:"reservation_id"`
	ListingID     string    `json:"listing_id"`
	Channel       Channel   `json:"channel"`
	CheckIn       time.Time `json:"check_in"`
	CheckOut      time.Time `json:"check_out"`
	Guests        int       `json:"guests"`

	// NightlyRate applies to every night unless NightlyRates lists them
	// one by one.
	NightlyRate  decimal.Decimal   `json:"nightly_rate"`
	NightlyRates []decimal.Decimal `json:"nightly_rates,omitempty"`
	Fees         []RawFee          `json:"fees,omitempty"`

	// DiscountAmount is a promotion the channel already priced in. When
	// set it replaces the listing's discount rules.
	DiscountAmount        *decimal.Decimal  `json:"discount_amount,omitempty"`
	ChannelCommissionRate valueobject.Ratio `json:"channel_commission_rate"`
}

// Nights is the number of calendar nights between check-in and check-out
func (f RawReservationFacts) Nights() int {
	in, out := dateOf(f.CheckIn), dateOf(f.CheckOut)
	return int(out.Sub(in).Hours() / 24)
}

func (f RawReservationFacts) validate() error {
	if f.ReservationID == "" {
		return invalidInput("reservation id is required")
	}
	if f.CheckIn.IsZero() || f.CheckOut.IsZero() {
		return invalidInput("reservation %s: check-in and check-out are required", f.ReservationID)
	}
	if f.Nights() <= 0 {
		return invalidInput("reservation %s: check-out must be after check-in", f.ReservationID)
	}
	if f.Guests < 0 {
		return invalidInput("reservation %s: guest count cannot be negative", f.ReservationID)
	}
	if f.NightlyRate.IsNegative() {
		return invalidInput("reservation %s: nightly rate cannot be negative", f.ReservationID)
	}
	if len(f.NightlyRates) > 0 && len(f.NightlyRates) != f.Nights() {
		return invalidInput("reservation %s: %d nightly rates for a %d-night stay",
			f.ReservationID, len(f.NightlyRates), f.Nights())
	}
	for i, r := range f.NightlyRates {
		if r.IsNegative() {
			return invalidInput("reservation %s: nightly rate %d is negative", f.ReservationID, i)
		}
	}
	if !f.ChannelCommissionRate.IsValid() {
		return invalidInput("reservation %s: channel commission rate %s is outside [0,1]",
			f.ReservationID, f.ChannelCommissionRate)
	}
	if f.DiscountAmount != nil && f.DiscountAmount.IsNegative() {
		return invalidInput("reservation %s: discount cannot be negative", f.ReservationID)
	}
	for _, fee := range f.Fees {
		if fee.Amount.IsNegative() {
			return invalidInput("reservation %s: fee %q has a negative amount", f.ReservationID, fee.Type)
		}
		if !fee.Unit.IsValid() {
			return invalidInput("reservation %s: fee %q has unknown unit %q", f.ReservationID, fee.Type, fee.Unit)
		}
		if fee.Unit.PerPerson() && f.Guests <= 0 {
			return invalidInput("reservation %s: fee %q is charged per person but the stay has no guests",
				f.ReservationID, fee.Type)
		}
	}
	return nil
}

// nightlyRates expands the stay into one rate per night
func (f RawReservationFacts) nightlyRates() []decimal.Decimal {
	if len(f.NightlyRates) > 0 {
		return f.NightlyRates
	}
	rates := make([]decimal.Decimal, f.Nights())
	for i := range rates {
		rates[i] = f.NightlyRate
	}
	return rates
}

// dateOf drops the clock so stays are counted in calendar days
func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
