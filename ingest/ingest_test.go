package ingest_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/evaigen/auto-office/ingest"
	"github.com/evaigen/auto-office/reconcile"
)

// =============================================================================
// FIXTURES
// =============================================================================

// writeSheet builds a one-sheet workbook in a temp dir and returns its path.
func writeSheet(t *testing.T, name string, rows [][]any) string {
	f := excelize.NewFile()
	defer f.Close()

	for i := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &rows[i]))
	}

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, f.SaveAs(path))
	return path
}

// =============================================================================
// BATCH READING
// =============================================================================

func TestReadBatch_Shipments(t *testing.T) {
	path := writeSheet(t, "truck_report.xlsx", [][]any{
		{"date", "boxes", "full", "weight", "weight vol", "volume", "marking", "awb",
			"country", "supplier", "truck", "truck balance", "forever balance", "status", "comment"},
		{"2025-03-01", "12", "10,5", "400", "450", "2.4", "FLORA", "123-456",
			"ecuador", "Rosas SA", "truck-1", "", "", "delivered", ""},
	})

	batch, err := ingest.ReadBatch(reconcile.KindShipment, path)
	require.NoError(t, err)
	require.Equal(t, reconcile.KindShipment, batch.Kind)
	require.Len(t, batch.Shipments, 1)

	sh := batch.Shipments[0]
	assert.Equal(t, time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC), sh.Date)
	assert.Equal(t, int64(12), sh.BoxAmount)
	assert.True(t, sh.BoxFull.Equal(decimal.NewFromFloat(10.5)), "comma decimals are accepted")
	assert.Equal(t, "FLORA", sh.Marking)
	assert.Equal(t, "truck-1", sh.TruckName)
}

func TestReadBatch_Forever_SetsSupplier(t *testing.T) {
	path := writeSheet(t, "balance.xlsx", [][]any{
		{"date", "type", "usd", "eur", "rub", "currency", "rate", "awb", "content supplier",
			"marking", "full box", "weight", "volume", "code", "balance currency"},
		{"05.03.2025", "срезка", "100", "0", "0", "usd", "0", "123-456", "",
			"FLORA", "10", "250", "1.2", "1", "usd"},
	})

	batch, err := ingest.ReadBatch(reconcile.KindExpenseForever, path)
	require.NoError(t, err)
	require.Len(t, batch.ExpensesForever, 1)

	e := batch.ExpensesForever[0]
	assert.Equal(t, time.Date(2025, time.March, 5, 0, 0, 0, 0, time.UTC), e.Date, "dotted dates are accepted")
	require.NotNil(t, e.SupplierID)
	assert.Equal(t, reconcile.SupplierForever, *e.SupplierID)
}

func TestReadBatch_FailFast_NamesRowAndField(t *testing.T) {
	// GIVEN: A sheet whose third row carries an unparseable date
	// WHEN: The batch is read
	// THEN: Nothing is returned and the error points at the cell

	path := writeSheet(t, "truck_report.xlsx", [][]any{
		{"header"},
		{"2025-03-01", "1", "1", "1", "1", "1", "FLORA", "123", "", "", "truck-1", "", "", "", ""},
		{"not-a-date", "1", "1", "1", "1", "1", "FLORA", "123", "", "", "truck-1", "", "", "", ""},
	})

	_, err := ingest.ReadBatch(reconcile.KindShipment, path)
	require.Error(t, err)

	var fieldErr *ingest.FieldError
	require.ErrorAs(t, err, &fieldErr)
	assert.Equal(t, 3, fieldErr.Row)
	assert.Equal(t, "shipment_date", fieldErr.Field)
}

func TestBatchFromRows_Sale_RejectsUnknownCurrency(t *testing.T) {
	rows := [][]string{
		{"2025-03-10", "срезка", "FLORA", "10", "", "100", "0", "gbp", "1.2", "250", "123-456", ""},
	}
	_, err := ingest.BatchFromRows(reconcile.KindSale, rows, 1)
	require.Error(t, err)

	var fieldErr *ingest.FieldError
	require.ErrorAs(t, err, &fieldErr)
	assert.Equal(t, "sale_currency", fieldErr.Field)
}

func TestBatchFromRows_Sale_LowercasesCurrency(t *testing.T) {
	rows := [][]string{
		{"2025-03-10", "срезка", "FLORA", "10", "", "100", "0", "USD", "1.2", "250", "123-456", "2"},
	}
	batch, err := ingest.BatchFromRows(reconcile.KindSale, rows, 1)
	require.NoError(t, err)
	require.Len(t, batch.Sales, 1)
	assert.Equal(t, reconcile.CurrencyUSD, batch.Sales[0].Currency)
	require.NotNil(t, batch.Sales[0].SupplierID)
	assert.Equal(t, int64(2), *batch.Sales[0].SupplierID)
}

func TestBatchFromRows_UnknownKind(t *testing.T) {
	// A bad kind is rejected up front, with or without data rows.
	_, err := ingest.BatchFromRows(reconcile.RecordKind("bogus"), nil, 1)
	assert.ErrorIs(t, err, reconcile.ErrUnknownKind)

	_, err = ingest.BatchFromRows(reconcile.RecordKind("bogus"), [][]string{{"2025-03-01"}}, 1)
	assert.ErrorIs(t, err, reconcile.ErrUnknownKind)
}

// =============================================================================
// REFERENCE AND RATES
// =============================================================================

func TestReadReference_SkipsAbsentWorkbooks(t *testing.T) {
	// GIVEN: A starter directory with only the markings workbook
	// WHEN: The reference is read
	// THEN: Markings load and every absent workbook is simply empty

	path := writeSheet(t, ingest.MarkingsFile, [][]any{
		{"marking", "customer", "address"},
		{"FLORA", "Flora Trade", "Moscow"},
		{"KENIA", "", ""},
	})

	ref, err := ingest.ReadReference(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, ref.Markings, 2)
	assert.Equal(t, "FLORA", ref.Markings[0].Name)
	assert.Equal(t, "Flora Trade", ref.Markings[0].CustomerName)
	assert.Empty(t, ref.Customers)
	assert.Empty(t, ref.Suppliers)
}

func TestReadCurrencyRates(t *testing.T) {
	path := writeSheet(t, "usd.xlsx", [][]any{
		{"date", "rate"},
		{"2025-03-10", "90,45"},
		{"2025-03-11", "91.2"},
	})

	rates, err := ingest.ReadCurrencyRates(path, reconcile.CurrencyUSD)
	require.NoError(t, err)
	require.Len(t, rates, 2)
	assert.Equal(t, reconcile.CurrencyUSD, rates[0].Currency)
	assert.True(t, rates[0].Rate.Equal(decimal.NewFromFloat(90.45)))
}

func TestReadCurrencyRates_ZeroRateRejected(t *testing.T) {
	path := writeSheet(t, "usd.xlsx", [][]any{
		{"date", "rate"},
		{"2025-03-10", "0"},
	})

	_, err := ingest.ReadCurrencyRates(path, reconcile.CurrencyUSD)
	var fieldErr *ingest.FieldError
	require.ErrorAs(t, err, &fieldErr)
	assert.Equal(t, "rate", fieldErr.Field)
}

func TestReadCurrencyRates_UnknownCurrency(t *testing.T) {
	_, err := ingest.ReadCurrencyRates("anything.xlsx", "gbp")
	assert.Error(t, err)
}
