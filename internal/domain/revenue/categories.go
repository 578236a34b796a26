package revenue

import (
	"strings"
)

// FeeCategory is the closed set of fee kinds the engine knows how to book.
// Anything unrecognized lands in FeeCategoryOther with its raw type kept.
type FeeCategory string

const (
	FeeCategoryAccommodation FeeCategory = "ACCOMMODATION"
	FeeCategoryCleaning      FeeCategory = "CLEANING"
	FeeCategoryPet           FeeCategory = "PET"
	FeeCategoryExtraGuest    FeeCategory = "EXTRA_GUEST"
	FeeCategoryResort        FeeCategory = "RESORT"
	FeeCategoryLinen         FeeCategory = "LINEN"
	FeeCategoryParking       FeeCategory = "PARKING"
	FeeCategoryCommunity     FeeCategory = "COMMUNITY"
	FeeCategoryOther         FeeCategory = "OTHER"
)

// IsValid checks if the category is a known FeeCategory
func (c FeeCategory) IsValid() bool {
	switch c {
	case FeeCategoryAccommodation, FeeCategoryCleaning, FeeCategoryPet,
		FeeCategoryExtraGuest, FeeCategoryResort, FeeCategoryLinen,
		FeeCategoryParking, FeeCategoryCommunity, FeeCategoryOther:
		return true
	}
	return false
}

// String returns the string representation of FeeCategory
func (c FeeCategory) String() string {
	return string(c)
}

// DisplayName returns a human-readable name for the category
func (c FeeCategory) DisplayName() string {
	switch c {
	case FeeCategoryAccommodation:
		return "Accommodation"
	case FeeCategoryCleaning:
		return "Cleaning fee"
	case FeeCategoryPet:
		return "Pet fee"
	case FeeCategoryExtraGuest:
		return "Extra guest fee"
	case FeeCategoryResort:
		return "Resort fee"
	case FeeCategoryLinen:
		return "Linen fee"
	case FeeCategoryParking:
		return "Parking fee"
	case FeeCategoryCommunity:
		return "Community fee"
	case FeeCategoryOther:
		return "Other fees"
	default:
		return string(c)
	}
}

// feeTypeAliases maps the type strings channels send to known categories
var feeTypeAliases = map[string]FeeCategory{
	"ACCOMMODATION":         FeeCategoryAccommodation,
	"BASE_RATE":             FeeCategoryAccommodation,
	"RENT":                  FeeCategoryAccommodation,
	"ROOM_RATE":             FeeCategoryAccommodation,
	"CLEANING":              FeeCategoryCleaning,
	"CLEANING_FEE":          FeeCategoryCleaning,
	"PASS_THROUGH_CLEANING": FeeCategoryCleaning,
	"PET":                   FeeCategoryPet,
	"PET_FEE":               FeeCategoryPet,
	"EXTRA_GUEST":           FeeCategoryExtraGuest,
	"EXTRA_PERSON":          FeeCategoryExtraGuest,
	"GUESTS_INCLUDED_FEE":   FeeCategoryExtraGuest,
	"RESORT":                FeeCategoryResort,
	"RESORT_FEE":            FeeCategoryResort,
	"LINEN":                 FeeCategoryLinen,
	"LINENS":                FeeCategoryLinen,
	"PARKING":               FeeCategoryParking,
	"COMMUNITY":             FeeCategoryCommunity,
	"COMMUNITY_FEE":         FeeCategoryCommunity,
	"HOA":                   FeeCategoryCommunity,
}

// ParseFeeCategory maps a raw fee type onto the closed category set.
// known is false when the type fell through to FeeCategoryOther.
func ParseFeeCategory(rawType string) (category FeeCategory, known bool) {
	key := strings.ToUpper(strings.TrimSpace(rawType))
	key = strings.NewReplacer(" ", "_", "-", "_").Replace(key)
	if c, ok := feeTypeAliases[key]; ok {
		return c, true
	}
	return FeeCategoryOther, false
}

// FeeUnit describes what a fee amount is charged per
type FeeUnit string

const (
	FeeUnitPerStay           FeeUnit = "PER_STAY"
	FeeUnitPerNight          FeeUnit = "PER_NIGHT"
	FeeUnitPerPerson         FeeUnit = "PER_PERSON"
	FeeUnitPerPersonPerNight FeeUnit = "PER_PERSON_PER_NIGHT"
)

// IsValid checks if the unit is a known FeeUnit
func (u FeeUnit) IsValid() bool {
	switch u {
	case FeeUnitPerStay, FeeUnitPerNight, FeeUnitPerPerson, FeeUnitPerPersonPerNight:
		return true
	}
	return false
}

// String returns the string representation of FeeUnit
func (u FeeUnit) String() string {
	return string(u)
}

// PerPerson reports whether the unit multiplies by guest count
func (u FeeUnit) PerPerson() bool {
	return u == FeeUnitPerPerson || u == FeeUnitPerPersonPerNight
}

// Quantity returns the multiplier applied to the unit amount
func (u FeeUnit) Quantity(nights, guests int) int {
	switch u {
	case FeeUnitPerNight:
		return nights
	case FeeUnitPerPerson:
		return guests
	case FeeUnitPerPersonPerNight:
		return guests * nights
	default:
		return 1
	}
}

// TaxJurisdiction identifies which authority a tax line belongs to
type TaxJurisdiction string

const (
	TaxMunicipal TaxJurisdiction = "MUNICIPAL"
	TaxCounty    TaxJurisdiction = "COUNTY"
	TaxState     TaxJurisdiction = "STATE"
)

// Jurisdictions lists every jurisdiction in reporting order
var Jurisdictions = []TaxJurisdiction{TaxMunicipal, TaxCounty, TaxState}

// IsValid checks if the jurisdiction is known
func (j TaxJurisdiction) IsValid() bool {
	switch j {
	case TaxMunicipal, TaxCounty, TaxState:
		return true
	}
	return false
}

// String returns the string representation of TaxJurisdiction
func (j TaxJurisdiction) String() string {
	return string(j)
}

// Description returns the label printed on tax lines
func (j TaxJurisdiction) Description() string {
	switch j {
	case TaxMunicipal:
		return "Municipal tax"
	case TaxCounty:
		return "County tax"
	case TaxState:
		return "State tax"
	default:
		return string(j)
	}
}

// Channel is the booking source of a reservation
type Channel string

const (
	ChannelAirbnb  Channel = "AIRBNB"
	ChannelVrbo    Channel = "VRBO"
	ChannelBooking Channel = "BOOKING_COM"
	ChannelDirect  Channel = "DIRECT"
	ChannelOther   Channel = "OTHER"
)

// ParseChannel normalizes a channel name; unknown sources map to ChannelOther
func ParseChannel(raw string) Channel {
	switch Channel(strings.ToUpper(strings.TrimSpace(raw))) {
	case ChannelAirbnb:
		return ChannelAirbnb
	case ChannelVrbo, "HOMEAWAY":
		return ChannelVrbo
	case ChannelBooking, "BOOKING", "BOOKINGCOM":
		return ChannelBooking
	case ChannelDirect, "WEBSITE", "MANUAL":
		return ChannelDirect
	default:
		return ChannelOther
	}
}
