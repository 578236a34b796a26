package export

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/stayledger/backend/internal/domain/shared/valueobject"
	"github.com/stayledger/backend/internal/domain/statement"
)

const (
	sheetSummary       = "Summary"
	sheetAccommodation = "Accommodation"
	sheetGuestFees     = "Guest fees"
	sheetExpenses      = "Expenses"
	sheetFailures      = "Failures"

	// builtin "#,##0.00"
	numFmtMoney = 4
)

// XLSX renders a statement as a workbook with one sheet per section
type XLSX struct{}

// NewXLSX creates an XLSX exporter
func NewXLSX() *XLSX {
	return &XLSX{}
}

// Format returns the export format name
func (XLSX) Format() string { return "xlsx" }

// ContentType returns the MIME type of the workbook
func (XLSX) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

// Export writes the workbook
func (x XLSX) Export(s *statement.OwnerStatement) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	w := &sheetWriter{f: f}
	if err := f.SetSheetName("Sheet1", sheetSummary); err != nil {
		return nil, err
	}
	for _, name := range []string{sheetAccommodation, sheetGuestFees, sheetExpenses, sheetFailures} {
		if _, err := f.NewSheet(name); err != nil {
			return nil, err
		}
	}
	money, err := f.NewStyle(&excelize.Style{NumFmt: numFmtMoney})
	if err != nil {
		return nil, err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}
	w.money, w.bold = money, bold

	x.summary(w, s)
	x.accommodation(w, s)
	x.guestFees(w, s)
	x.expenses(w, s)
	x.failures(w, s)
	if w.err != nil {
		return nil, fmt.Errorf("write workbook: %w", w.err)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (XLSX) summary(w *sheetWriter, s *statement.OwnerStatement) {
	w.set(sheetSummary, 1, 1, title(s))
	w.style(sheetSummary, 1, 1, w.bold)
	w.row(sheetSummary, 3, "Listing", s.ListingID)
	w.row(sheetSummary, 4, "Period", s.Period.String())
	w.row(sheetSummary, 5, "Status", string(s.Status))
	w.row(sheetSummary, 6, "Currency", string(s.Currency))
	w.row(sheetSummary, 7, "Reservations", s.ReservationCount)
	w.row(sheetSummary, 8, "Locked at", lockedAt(s))
	w.row(sheetSummary, 9, "Snapshot hash", s.SnapshotHash)

	w.header(sheetSummary, 11, "", "Amount", "Manager", "Owner")
	r := 12
	for _, line := range summaryLines(s.Totals) {
		w.set(sheetSummary, 1, r, line.label)
		w.split(sheetSummary, 2, r, line.value)
		r++
	}
	w.set(sheetSummary, 1, r, "Payout")
	w.amount(sheetSummary, 2, r, s.Totals.Payout.Amount().InexactFloat64())
}

func (XLSX) accommodation(w *sheetWriter, s *statement.OwnerStatement) {
	w.header(sheetAccommodation, 1, "Reservation", "Channel", "Check-in", "Check-out", "Nights",
		"Room rate", "Discount", "Gross revenue", "Taxes", "Commission", "Credit card",
		"Net revenue", "Manager net", "Owner net", "Payout")
	for i, row := range s.AccommodationRows {
		r := i + 2
		w.values(sheetAccommodation, r, row.ReservationID, string(row.Channel),
			row.CheckIn.Format(dateLayout), row.CheckOut.Format(dateLayout), row.Nights)
		for c, v := range []valueobject.MonetarySplit{row.RoomRateTotal, row.Discount, row.GrossRevenue,
			row.Taxes, row.ChannelCommission, row.CreditCard} {
			w.amount(sheetAccommodation, 6+c, r, v.Amount().InexactFloat64())
		}
		w.split(sheetAccommodation, 12, r, row.NetRevenue)
		w.amount(sheetAccommodation, 15, r, row.Payout.Amount().InexactFloat64())
	}
}

func (XLSX) guestFees(w *sheetWriter, s *statement.OwnerStatement) {
	w.header(sheetGuestFees, 1, "Reservation", "Category", "Type", "Gross", "Taxes",
		"Commission", "Credit card", "Net", "Manager net", "Owner net")
	for i, row := range s.GuestFeeRows {
		r := i + 2
		w.values(sheetGuestFees, r, row.ReservationID, row.Category.DisplayName(), row.RawType)
		for c, v := range []valueobject.MonetarySplit{row.Gross, row.Taxes, row.ChannelCommission, row.CreditCard} {
			w.amount(sheetGuestFees, 4+c, r, v.Amount().InexactFloat64())
		}
		w.split(sheetGuestFees, 8, r, row.Net)
	}
}

func (XLSX) expenses(w *sheetWriter, s *statement.OwnerStatement) {
	w.header(sheetExpenses, 1, "Date", "Description", "Category", "Amount", "Manager", "Owner")
	r := 2
	for _, line := range s.Expenses.Lines {
		w.values(sheetExpenses, r, line.Date.Format(dateLayout), line.Description, line.Category)
		w.split(sheetExpenses, 4, r, line.Value)
		r++
	}
	w.set(sheetExpenses, 1, r, "Total")
	w.style(sheetExpenses, 1, r, w.bold)
	w.split(sheetExpenses, 4, r, s.Expenses.Total)
}

func (XLSX) failures(w *sheetWriter, s *statement.OwnerStatement) {
	w.header(sheetFailures, 1, "Reservation", "Code", "Message")
	for i, f := range s.Failures {
		w.values(sheetFailures, i+2, f.ReservationID, f.Code, f.Message)
	}
}

// sheetWriter keeps the first cell error so rendering code stays linear
type sheetWriter struct {
	f           *excelize.File
	money, bold int
	err         error
}

func (w *sheetWriter) set(sheet string, col, row int, v any) {
	if w.err != nil {
		return
	}
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		w.err = err
		return
	}
	w.err = w.f.SetCellValue(sheet, cell, v)
}

func (w *sheetWriter) style(sheet string, col, row, style int) {
	if w.err != nil {
		return
	}
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		w.err = err
		return
	}
	w.err = w.f.SetCellStyle(sheet, cell, cell, style)
}

func (w *sheetWriter) amount(sheet string, col, row int, v float64) {
	w.set(sheet, col, row, v)
	w.style(sheet, col, row, w.money)
}

func (w *sheetWriter) split(sheet string, col, row int, v valueobject.MonetarySplit) {
	w.amount(sheet, col, row, v.Amount().InexactFloat64())
	w.amount(sheet, col+1, row, v.ManagerAmount().InexactFloat64())
	w.amount(sheet, col+2, row, v.OwnerAmount().InexactFloat64())
}

func (w *sheetWriter) values(sheet string, row int, vs ...any) {
	for i, v := range vs {
		w.set(sheet, i+1, row, v)
	}
}

func (w *sheetWriter) row(sheet string, row int, label string, v any) {
	w.set(sheet, 1, row, label)
	w.set(sheet, 2, row, v)
}

func (w *sheetWriter) header(sheet string, row int, labels ...string) {
	for i, l := range labels {
		w.set(sheet, i+1, row, l)
		w.style(sheet, i+1, row, w.bold)
	}
}
