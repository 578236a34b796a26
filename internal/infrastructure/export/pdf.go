package export

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"

	"github.com/stayledger/backend/internal/domain/statement"
)

// PDF renders a printable A4 statement
type PDF struct{}

// NewPDF creates a PDF exporter
func NewPDF() *PDF {
	return &PDF{}
}

// Format returns the export format name
func (PDF) Format() string { return "pdf" }

// ContentType returns the MIME type of the document
func (PDF) ContentType() string { return "application/pdf" }

// Export renders the document
func (PDF) Export(s *statement.OwnerStatement) ([]byte, error) {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetTitle(title(s), false)
	pdf.SetCreator("stayledger", false)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 14)
	pdf.Cell(0, 8, title(s))
	pdf.Ln(10)

	pdf.SetFont("Arial", "", 10)
	for _, line := range []string{
		fmt.Sprintf("Status: %s", s.Status),
		fmt.Sprintf("Currency: %s", s.Currency),
		fmt.Sprintf("Reservations: %d", s.ReservationCount),
	} {
		pdf.Cell(0, 6, line)
		pdf.Ln(5)
	}
	if s.LockedAt != nil {
		pdf.Cell(0, 6, fmt.Sprintf("Locked: %s", lockedAt(s)))
		pdf.Ln(5)
		pdf.SetFont("Courier", "", 8)
		pdf.Cell(0, 6, fmt.Sprintf("Snapshot %s", s.SnapshotHash))
		pdf.Ln(5)
	}
	pdf.Ln(4)

	table(pdf, []float64{60, 35, 35, 35},
		[]string{"", "Amount", "Manager", "Owner"})
	for _, line := range summaryLines(s.Totals) {
		pdf.CellFormat(60, 6, line.label, "1", 0, "L", false, 0, "")
		moneyCells(pdf, 35, cents(line.value.Amount()), cents(line.value.ManagerAmount()), cents(line.value.OwnerAmount()))
		pdf.Ln(-1)
	}
	pdf.SetFont("Arial", "B", 9)
	pdf.CellFormat(60, 6, "Payout", "1", 0, "L", false, 0, "")
	moneyCells(pdf, 35, cents(s.Totals.Payout.Amount()))
	pdf.Ln(10)

	if len(s.AccommodationRows) > 0 {
		table(pdf, []float64{40, 25, 25, 25, 14, 30, 30, 30, 30, 28},
			[]string{"Reservation", "Channel", "Check-in", "Check-out", "Nights", "Gross", "Net", "Manager", "Owner", "Payout"})
		for _, row := range s.AccommodationRows {
			pdf.CellFormat(40, 6, row.ReservationID, "1", 0, "L", false, 0, "")
			pdf.CellFormat(25, 6, string(row.Channel), "1", 0, "L", false, 0, "")
			pdf.CellFormat(25, 6, row.CheckIn.Format(dateLayout), "1", 0, "C", false, 0, "")
			pdf.CellFormat(25, 6, row.CheckOut.Format(dateLayout), "1", 0, "C", false, 0, "")
			pdf.CellFormat(14, 6, fmt.Sprintf("%d", row.Nights), "1", 0, "R", false, 0, "")
			moneyCells(pdf, 30,
				cents(row.GrossRevenue.Amount()),
				cents(row.NetRevenue.Amount()),
				cents(row.NetRevenue.ManagerAmount()),
				cents(row.NetRevenue.OwnerAmount()))
			moneyCells(pdf, 28, cents(row.Payout.Amount()))
			pdf.Ln(-1)
		}
		pdf.Ln(6)
	}

	if len(s.Expenses.Lines) > 0 {
		table(pdf, []float64{25, 90, 40, 30, 30, 30},
			[]string{"Date", "Description", "Category", "Amount", "Manager", "Owner"})
		for _, line := range s.Expenses.Lines {
			pdf.CellFormat(25, 6, line.Date.Format(dateLayout), "1", 0, "C", false, 0, "")
			pdf.CellFormat(90, 6, line.Description, "1", 0, "L", false, 0, "")
			pdf.CellFormat(40, 6, line.Category, "1", 0, "L", false, 0, "")
			moneyCells(pdf, 30, cents(line.Value.Amount()), cents(line.Value.ManagerAmount()), cents(line.Value.OwnerAmount()))
			pdf.Ln(-1)
		}
		pdf.Ln(6)
	}

	if len(s.Failures) > 0 {
		pdf.SetFont("Arial", "B", 10)
		pdf.Cell(0, 6, "Excluded reservations")
		pdf.Ln(6)
		pdf.SetFont("Arial", "", 9)
		for _, f := range s.Failures {
			pdf.MultiCell(0, 5, fmt.Sprintf("%s  %s  %s", f.ReservationID, f.Code, f.Message), "", "L", false)
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func table(pdf *gofpdf.Fpdf, widths []float64, headers []string) {
	pdf.SetFont("Arial", "B", 9)
	for i, h := range headers {
		pdf.CellFormat(widths[i], 6, h, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 9)
}

func moneyCells(pdf *gofpdf.Fpdf, width float64, values ...string) {
	for _, v := range values {
		pdf.CellFormat(width, 6, v, "1", 0, "R", false, 0, "")
	}
}
