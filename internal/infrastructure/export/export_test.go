package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	statementapp "github.com/stayledger/backend/internal/application/statement"
	"github.com/stayledger/backend/internal/domain/revenue"
	"github.com/stayledger/backend/internal/domain/shared/valueobject"
	"github.com/stayledger/backend/internal/domain/statement"
)

var (
	_ statementapp.Exporter = (*XLSX)(nil)
	_ statementapp.Exporter = (*PDF)(nil)
)

func testStatement(t *testing.T, lock bool) *statement.OwnerStatement {
	t.Helper()
	model := revenue.BusinessModel{
		ListingID:  "listing-1",
		PMCShare:   valueobject.MustRatio("0.8"),
		TaxRates:   revenue.TaxRates{Municipal: valueobject.MustRatio("0.08")},
		Deductions: revenue.Deductions{MunicipalTaxes: true},
	}
	facts := revenue.RawReservationFacts{
		ReservationID: "res-1",
		ListingID:     "listing-1",
		Channel:       revenue.ChannelVrbo,
		CheckIn:       time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC),
		CheckOut:      time.Date(2024, time.March, 4, 0, 0, 0, 0, time.UTC),
		Guests:        2,
		NightlyRate:   decimal.NewFromInt(100),
		Fees:          []revenue.RawFee{{Type: "CLEANING", Amount: decimal.NewFromInt(50), Unit: revenue.FeeUnitPerStay}},
	}
	raw, err := revenue.NewDecomposer().Decompose(facts, model)
	require.NoError(t, err)
	rev, err := revenue.NewAllocator().Allocate(raw, model)
	require.NoError(t, err)

	expenses := []statement.ExpenseLine{{
		ID:          "exp-1",
		Date:        time.Date(2024, time.March, 9, 0, 0, 0, 0, time.UTC),
		Description: "Plumber",
		Category:    "Repairs",
		Value:       valueobject.OwnerAbsorbed(decimal.NewFromInt(120)),
	}}
	stmt, err := statement.NewAggregator(valueobject.USD).Build("listing-1", 3, 2024,
		[]*revenue.ReservationRevenue{rev}, expenses)
	require.NoError(t, err)
	stmt.Failures = append(stmt.Failures, statement.ReservationFailure{
		ReservationID: "res-x", Code: "INVALID_REVENUE_INPUT", Message: "check-out before check-in",
	})
	if lock {
		require.NoError(t, stmt.Lock(time.Date(2024, time.April, 2, 9, 30, 0, 0, time.UTC)))
	}
	return stmt
}

func TestXLSX_Export(t *testing.T) {
	stmt := testStatement(t, true)
	x := NewXLSX()
	assert.Equal(t, "xlsx", x.Format())
	assert.Contains(t, x.ContentType(), "spreadsheetml")

	data, err := x.Export(stmt)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{sheetSummary, sheetAccommodation, sheetGuestFees, sheetExpenses, sheetFailures}, f.GetSheetList())

	cell := func(sheet, axis string) string {
		v, err := f.GetCellValue(sheet, axis)
		require.NoError(t, err)
		return v
	}
	assert.Equal(t, "Owner statement listing-1 2024-03", cell(sheetSummary, "A1"))
	assert.Equal(t, "LOCKED", cell(sheetSummary, "B5"))
	assert.Equal(t, stmt.SnapshotHash, cell(sheetSummary, "B9"))

	assert.Equal(t, "res-1", cell(sheetAccommodation, "A2"))
	assert.Equal(t, "VRBO", cell(sheetAccommodation, "B2"))
	assert.Equal(t, "2024-03-04", cell(sheetAccommodation, "D2"))
	assert.Equal(t, "300.00", cell(sheetAccommodation, "F2"))

	assert.Equal(t, "Plumber", cell(sheetExpenses, "B2"))
	assert.Equal(t, "Total", cell(sheetExpenses, "A3"))
	assert.Equal(t, "120.00", cell(sheetExpenses, "F3"))

	assert.Equal(t, "res-x", cell(sheetFailures, "A2"))
}

func TestXLSX_ExportEmptyDraft(t *testing.T) {
	stmt, err := statement.NewAggregator(valueobject.USD).Build("listing-1", 2, 2024, nil, nil)
	require.NoError(t, err)

	data, err := NewXLSX().Export(stmt)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()
	status, err := f.GetCellValue(sheetSummary, "B5")
	require.NoError(t, err)
	assert.Equal(t, "DRAFT", status)
}

func TestPDF_Export(t *testing.T) {
	p := NewPDF()
	assert.Equal(t, "pdf", p.Format())
	assert.Equal(t, "application/pdf", p.ContentType())

	for _, lock := range []bool{false, true} {
		data, err := p.Export(testStatement(t, lock))
		require.NoError(t, err)
		assert.True(t, bytes.HasPrefix(data, []byte("%PDF-")))
		assert.Greater(t, len(data), 1000)
	}
}
