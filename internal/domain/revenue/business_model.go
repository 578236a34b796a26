package revenue

import (
	"encoding/json"
	"time"

	"github.com/stayledger/backend/internal/domain/shared/valueobject"
)

// Deductions answers, per category, whether the line is charged entirely
// against the owner (true) or shared at the listing's pmcShare (false).
type Deductions struct {
	ChannelFees    bool `json:"channel_fees"`
	CreditCardFees bool `json:"credit_card_fees"`
	Discounts      bool `json:"discounts"`
	MunicipalTaxes bool `json:"municipal_taxes"`
	CountyTaxes    bool `json:"county_taxes"`
	StateTaxes     bool `json:"state_taxes"`
	OtherGuestFees bool `json:"other_guest_fees"`
}

// Tax returns the deduction flag for a jurisdiction
func (d Deductions) Tax(j TaxJurisdiction) bool {
	switch j {
	case TaxMunicipal:
		return d.MunicipalTaxes
	case TaxCounty:
		return d.CountyTaxes
	case TaxState:
		return d.StateTaxes
	default:
		return false
	}
}

// TaxRates holds one rate per jurisdiction
type TaxRates struct {
	Municipal valueobject.Ratio `json:"municipal"`
	County    valueobject.Ratio `json:"county"`
	State     valueobject.Ratio `json:"state"`
}

// Rate returns the configured rate for a jurisdiction
func (r TaxRates) Rate(j TaxJurisdiction) valueobject.Ratio {
	switch j {
	case TaxMunicipal:
		return r.Municipal
	case TaxCounty:
		return r.County
	case TaxState:
		return r.State
	default:
		return valueobject.ZeroRatio
	}
}

// FeeDefinition is the listing's treatment of one fee type
type FeeDefinition struct {
	Type             string            `json:"type"`
	Category         FeeCategory       `json:"category,omitempty"`
	ExemptFrom       []TaxJurisdiction `json:"exempt_from,omitempty"`
	CommissionExempt bool              `json:"commission_exempt"`
}

// Exempt reports whether the fee is excluded from a jurisdiction's tax
func (f FeeDefinition) Exempt(j TaxJurisdiction) bool {
	for _, e := range f.ExemptFrom {
		if e == j {
			return true
		}
	}
	return false
}

// DiscountKind selects how a discount rule matches nights
type DiscountKind string

const (
	DiscountLengthOfStay DiscountKind = "LENGTH_OF_STAY"
	DiscountDateRange    DiscountKind = "DATE_RANGE"
)

// DiscountRule is a percentage off the nightly rate
type DiscountRule struct {
	Kind      DiscountKind      `json:"kind"`
	Rate      valueobject.Ratio `json:"rate"`
	MinNights int               `json:"min_nights,omitempty"`
	StartDate time.Time         `json:"start_date,omitempty"`
	EndDate   time.Time         `json:"end_date,omitempty"`
}

// appliesTo reports whether the rule discounts the given night of a stay
func (r DiscountRule) appliesTo(night time.Time, stayNights int) bool {
	switch r.Kind {
	case DiscountLengthOfStay:
		return stayNights >= r.MinNights
	case DiscountDateRange:
		n := dateOf(night)
		return !n.Before(dateOf(r.StartDate)) && !n.After(dateOf(r.EndDate))
	default:
		return false
	}
}

// BusinessModel is a listing's revenue-sharing configuration
type BusinessModel struct {
	ListingID            string                  `json:"listing_id"`
	PMCShare             valueobject.Ratio       `json:"pmc_share"`
	Deductions           Deductions              `json:"deductions"`
	TaxRates             TaxRates                `json:"tax_rates"`
	LongStayExemptNights map[TaxJurisdiction]int `json:"long_stay_exempt_nights,omitempty"`
	Fees                 []FeeDefinition         `json:"fees,omitempty"`
	Discounts            []DiscountRule          `json:"discounts,omitempty"`
	CreditCardFeeRate    valueobject.Ratio       `json:"credit_card_fee_rate"`
	AirbnbRemitsTaxes    bool                    `json:"airbnb_remits_taxes"`
	// TaxDiscountedRevenue selects whether taxes apply after discounts.
	// nil defers to the engine-wide default.
	TaxDiscountedRevenue *bool `json:"tax_discounted_revenue,omitempty"`
}

// UnmarshalJSON decodes a model and rejects payloads without pmc_share.
// Absent tax rates, fees and discounts mean none apply.
func (m *BusinessModel) UnmarshalJSON(data []byte) error {
	type plain BusinessModel
	aux := struct {
		*plain
		PMCShare *valueobject.Ratio `json:"pmc_share"`
	}{plain: (*plain)(m)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if aux.PMCShare == nil {
		return invalidModel("pmc share is required")
	}
	m.PMCShare = *aux.PMCShare
	return nil
}

// Validate checks every money-affecting field of the model
func (m BusinessModel) Validate() error {
	if !m.PMCShare.IsValid() {
		return invalidModel("pmc share %s is outside [0,1]", m.PMCShare)
	}
	if err := m.validateRates(); err != nil {
		return invalidModel("%s", err.Error())
	}
	return nil
}

// validateRates checks rates consumed while decomposing a reservation
func (m BusinessModel) validateRates() error {
	for _, j := range Jurisdictions {
		if r := m.TaxRates.Rate(j); !r.IsValid() {
			return invalidInput("%s rate %s is outside [0,1]", j.Description(), r)
		}
		if m.LongStayExemptNights[j] < 0 {
			return invalidInput("%s long-stay exemption cannot be negative", j.Description())
		}
	}
	if !m.CreditCardFeeRate.IsValid() {
		return invalidInput("credit card fee rate %s is outside [0,1]", m.CreditCardFeeRate)
	}
	for i, rule := range m.Discounts {
		if !rule.Rate.IsValid() {
			return invalidInput("discount rule %d rate %s is outside [0,1]", i, rule.Rate)
		}
		switch rule.Kind {
		case DiscountLengthOfStay:
			if rule.MinNights <= 0 {
				return invalidInput("discount rule %d needs a positive minimum stay", i)
			}
		case DiscountDateRange:
			if rule.EndDate.Before(rule.StartDate) {
				return invalidInput("discount rule %d ends before it starts", i)
			}
		default:
			return invalidInput("discount rule %d has unknown kind %q", i, rule.Kind)
		}
	}
	for _, f := range m.Fees {
		for _, j := range f.ExemptFrom {
			if !j.IsValid() {
				return invalidInput("fee %q is exempt from unknown jurisdiction %q", f.Type, j)
			}
		}
	}
	return nil
}

// discountBeforeTax resolves the listing override against the engine default
func (m BusinessModel) discountBeforeTax(engineDefault bool) bool {
	if m.TaxDiscountedRevenue != nil {
		return *m.TaxDiscountedRevenue
	}
	return engineDefault
}

// longStayExempt reports whether a jurisdiction waives tax for this stay length
func (m BusinessModel) longStayExempt(j TaxJurisdiction, nights int) bool {
	threshold, ok := m.LongStayExemptNights[j]
	return ok && threshold > 0 && nights >= threshold
}

// feeDefinition finds the listing's treatment of a fee, matching the raw
// type first and the category second.
func (m BusinessModel) feeDefinition(category FeeCategory, rawType string) FeeDefinition {
	for _, f := range m.Fees {
		if f.Type != "" && f.Type == rawType {
			return f
		}
	}
	for _, f := range m.Fees {
		c := f.Category
		if c == "" {
			c, _ = ParseFeeCategory(f.Type)
		}
		if c == category && category != FeeCategoryOther {
			return f
		}
	}
	return FeeDefinition{Type: rawType, Category: category}
}
