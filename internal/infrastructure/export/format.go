// Package export renders owner statements as downloadable documents.
package export

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/stayledger/backend/internal/domain/statement"
	"github.com/stayledger/backend/internal/domain/shared/valueobject"
)

const dateLayout = "2006-01-02"

// totalLine is one labelled row of the statement summary
type totalLine struct {
	label string
	value valueobject.MonetarySplit
}

func summaryLines(t statement.Totals) []totalLine {
	return []totalLine{
		{"Room rate", t.RoomRateTotal},
		{"Discounts", t.Discount},
		{"Gross revenue", t.GrossRevenue},
		{"Accommodation taxes", t.AccommodationTax},
		{"Accommodation net", t.AccommodationNet},
		{"Guest fees", t.GuestFeesGross},
		{"Guest fee taxes", t.GuestFeesTaxes},
		{"Guest fees net", t.GuestFeesNet},
		{"Gross booking value", t.GrossBookingValue},
		{"Total taxes", t.TotalTaxes},
		{"Channel commission", t.ChannelCommission},
		{"Credit card fees", t.CreditCard},
		{"Net revenue", t.NetRevenue},
		{"Expenses", t.Expenses},
		{"Net income", t.NetIncome},
	}
}

func title(s *statement.OwnerStatement) string {
	return fmt.Sprintf("Owner statement %s %s", s.ListingID, s.Period)
}

func cents(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func lockedAt(s *statement.OwnerStatement) string {
	if s.LockedAt == nil {
		return ""
	}
	return s.LockedAt.UTC().Format("2006-01-02 15:04 MST")
}
