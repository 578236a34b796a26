package statement

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/stayledger/backend/internal/domain/shared"
)

// minYear is the earliest statement year accepted
const minYear = 2000

// Period is a statement month
type Period struct {
	Year  int        `json:"year"`
	Month time.Month `json:"month"`
}

// NewPeriod validates a month (1..12) and year
func NewPeriod(year, month int) (Period, error) {
	if month < 1 || month > 12 {
		return Period{}, shared.NewDomainErrorf(shared.CodeInvalidRevenueInput, "month %d is outside 1..12", month)
	}
	if year < minYear {
		return Period{}, shared.NewDomainErrorf(shared.CodeInvalidRevenueInput, "year %d is before %d", year, minYear)
	}
	return Period{Year: year, Month: time.Month(month)}, nil
}

// Start is the first day of the month
func (p Period) Start() time.Time {
	return time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, time.UTC)
}

// End is the first day of the following month
func (p Period) End() time.Time {
	return p.Start().AddDate(0, 1, 0)
}

// String renders the period as yyyy-mm
func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}

// statementNamespace seeds deterministic statement ids
var statementNamespace = uuid.MustParse("b3c9f1d2-47a8-4e5b-8f61-2d9e0a7c4b35")

// StatementIDFor returns the stable id of a listing's statement for a period.
// Draft and locked versions of the same statement share it.
func StatementIDFor(listingID string, p Period) uuid.UUID {
	return uuid.NewSHA1(statementNamespace, []byte(listingID+"/"+p.String()))
}
