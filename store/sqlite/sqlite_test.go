package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evaigen/auto-office/reconcile"
	"github.com/evaigen/auto-office/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newStore(t *testing.T) *sqlite.Store {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func day(d int) time.Time {
	return time.Date(2025, time.March, d, 0, 0, 0, 0, time.UTC)
}

func insertShipment(t *testing.T, store *sqlite.Store, sh reconcile.Shipment) int64 {
	if sh.TruckName == "" {
		sh.TruckName = "truck-1"
	}
	id, err := store.InsertShipment(context.Background(), sh)
	require.NoError(t, err)
	return id
}

func insertCustomer(t *testing.T, store *sqlite.Store, name string) int64 {
	id, err := store.InsertCustomer(context.Background(), reconcile.Customer{Name: name})
	require.NoError(t, err)
	return id
}

func insertForever(t *testing.T, store *sqlite.Store, e reconcile.ExpenseForever) int64 {
	supplier := reconcile.SupplierForever
	if e.SupplierID == nil {
		e.SupplierID = &supplier
	}
	id, err := store.InsertExpenseForever(context.Background(), e)
	require.NoError(t, err)
	return id
}

// =============================================================================
// ROUND TRIPS AND LOOKUPS
// =============================================================================

func TestStore_ShipmentRoundTrip(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	cust := int64(7)
	id := insertShipment(t, store, reconcile.Shipment{
		Date:       day(1),
		BoxAmount:  12,
		BoxFull:    decimal.NewFromFloat(10.5),
		WeightFact: 400,
		WeightVol:  450,
		Volume:     decimal.NewFromFloat(2.4),
		Marking:    "FLORA",
		AWB:        "123-456",
		Country:    "ecuador",
		TruckName:  "truck-1",
		Status:     "delivered",
		CustomerID: &cust,
	})

	sh, err := store.ShipmentByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "FLORA", sh.Marking)
	assert.Equal(t, "123-456", sh.AWB)
	assert.Equal(t, day(1), sh.Date)
	assert.True(t, sh.BoxFull.Equal(decimal.NewFromFloat(10.5)))
	assert.Equal(t, "ecuador", sh.Country)
	require.NotNil(t, sh.CustomerID)
	assert.Equal(t, cust, *sh.CustomerID)
	assert.Nil(t, sh.ExpenseForeverID)
}

func TestStore_ShipmentByID_NotFound(t *testing.T) {
	store := newStore(t)
	_, err := store.ShipmentByID(context.Background(), 42)
	assert.ErrorIs(t, err, reconcile.ErrNotFound)
}

func TestStore_MarkingByName_NotFound(t *testing.T) {
	store := newStore(t)
	_, err := store.MarkingByName(context.Background(), "NOPE")
	assert.ErrorIs(t, err, reconcile.ErrNotFound)
}

func TestStore_InsertMarking_DuplicateNameRejected(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	_, err := store.InsertMarking(ctx, reconcile.Marking{Name: "FLORA"})
	require.NoError(t, err)
	_, err = store.InsertMarking(ctx, reconcile.Marking{Name: "FLORA"})
	assert.Error(t, err)
}

func TestStore_CustomerRoundTrip_KeepsRateCard(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	id, err := store.InsertCustomer(ctx, reconcile.Customer{
		Name:    "Flora Trade",
		Address: "Moscow",
		Rates: reconcile.RateCard{
			EqKg:            decimal.NewFromFloat(2.5),
			HollPallet:      120,
			DollarTransRate: 5,
		},
	})
	require.NoError(t, err)

	c, err := store.CustomerByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Flora Trade", c.Name)
	assert.Equal(t, "Moscow", c.Address)
	assert.True(t, c.Rates.EqKg.Equal(decimal.NewFromFloat(2.5)))
	assert.Equal(t, int64(120), c.Rates.HollPallet)
	assert.Equal(t, int64(5), c.Rates.DollarTransRate)
}

func TestStore_UpsertCurrencyRate_OverwritesSameDay(t *testing.T) {
	// GIVEN: A daily rate already stored
	// WHEN: The same currency and day arrive again with a new value
	// THEN: A sale priced on that day sees the newer rate

	store := newStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertCurrencyRate(ctx, reconcile.CurrencyRate{
		Currency: reconcile.CurrencyUSD, Date: day(10), Rate: decimal.NewFromInt(80),
	}))
	require.NoError(t, store.UpsertCurrencyRate(ctx, reconcile.CurrencyRate{
		Currency: reconcile.CurrencyUSD, Date: day(10), Rate: decimal.NewFromInt(90),
	}))

	supplier := reconcile.SupplierForever
	_, err := store.InsertSale(ctx, reconcile.Sale{
		Date: day(10), Type: "срезка", Marking: "M", Currency: reconcile.CurrencyUSD,
		SupplierID: &supplier,
	})
	require.NoError(t, err)

	n, err := store.FillSaleCurrencyRate(ctx, reconcile.CurrencyUSD)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	sales, err := store.ListSales(ctx, 10)
	require.NoError(t, err)
	require.True(t, sales[0].CurrencyRate.Valid)
	assert.True(t, sales[0].CurrencyRate.Decimal.Equal(decimal.NewFromInt(90)))
}

// =============================================================================
// OPERATOR PASS QUERIES
// =============================================================================

func TestStore_NextMissingCustomer_HonorsSkipList(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	first := insertForever(t, store, reconcile.ExpenseForever{
		Date: day(5), AWB: "111", Marking: "A", FullBox: decimal.NewFromInt(1),
	})
	second := insertForever(t, store, reconcile.ExpenseForever{
		Date: day(5), AWB: "222", Marking: "B", FullBox: decimal.NewFromInt(1),
	})

	rec, err := store.NextMissingCustomer(ctx, reconcile.KindExpenseForever, nil)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, first, rec.ID)

	rec, err = store.NextMissingCustomer(ctx, reconcile.KindExpenseForever, []int64{first})
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, second, rec.ID)

	rec, err = store.NextMissingCustomer(ctx, reconcile.KindExpenseForever, []int64{first, second})
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestStore_ShipmentsByMatch_Filters(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	early := insertShipment(t, store, reconcile.Shipment{
		Date: day(1), AWB: "123", Marking: "FLORA", BoxFull: decimal.NewFromInt(5),
	})
	late := insertShipment(t, store, reconcile.Shipment{
		Date: day(20), AWB: "123", Marking: "FLORA", BoxFull: decimal.NewFromInt(5),
	})

	awb := "123"
	cutoff := day(10)

	before, err := store.ShipmentsByMatch(ctx, reconcile.ShipmentFilter{AWB: &awb, DateBefore: &cutoff})
	require.NoError(t, err)
	require.Len(t, before, 1)
	assert.Equal(t, early, before[0].ID)

	after, err := store.ShipmentsByMatch(ctx, reconcile.ShipmentFilter{AWB: &awb, DateAfter: &cutoff})
	require.NoError(t, err)
	require.Len(t, after, 1)
	assert.Equal(t, late, after[0].ID)

	box := decimal.NewFromInt(9)
	none, err := store.ShipmentsByMatch(ctx, reconcile.ShipmentFilter{AWB: &awb, BoxFull: &box})
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = store.ShipmentsByMatch(ctx, reconcile.ShipmentFilter{})
	assert.Error(t, err, "an unconstrained scan is a bug, not a strategy")
}

func TestStore_SetShipmentLink_NeverOverwrites(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	expID := insertForever(t, store, reconcile.ExpenseForever{
		Date: day(5), AWB: "111", Marking: "A", FullBox: decimal.NewFromInt(1),
	})

	require.NoError(t, store.SetShipmentLink(ctx, reconcile.KindExpenseForever, expID, 10))
	require.NoError(t, store.SetShipmentLink(ctx, reconcile.KindExpenseForever, expID, 20))

	expenses, err := store.ListExpensesForever(ctx, 10)
	require.NoError(t, err)
	require.NotNil(t, expenses[0].ShipmentID)
	assert.Equal(t, int64(10), *expenses[0].ShipmentID, "the first resolution wins")
}

func TestStore_SetMarkingCustomer_NeverOverwrites(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	first := insertCustomer(t, store, "Flora Trade")
	second := insertCustomer(t, store, "Rose Import")
	id, err := store.InsertMarking(ctx, reconcile.Marking{Name: "FLORA"})
	require.NoError(t, err)

	require.NoError(t, store.SetMarkingCustomer(ctx, id, first))
	require.NoError(t, store.SetMarkingCustomer(ctx, id, second))

	m, err := store.MarkingByName(ctx, "FLORA")
	require.NoError(t, err)
	require.NotNil(t, m.CustomerID)
	assert.Equal(t, first, *m.CustomerID)
}

func TestStore_LinkCustomerByMarking_FillsOnlyNullLinks(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	custA := insertCustomer(t, store, "Flora Trade")
	custB := insertCustomer(t, store, "Rose Import")
	_, err := store.InsertMarking(ctx, reconcile.Marking{Name: "FLORA", CustomerID: &custA})
	require.NoError(t, err)

	insertForever(t, store, reconcile.ExpenseForever{
		Date: day(5), AWB: "111", Marking: "FLORA", FullBox: decimal.NewFromInt(1),
	})
	insertForever(t, store, reconcile.ExpenseForever{
		Date: day(6), AWB: "222", Marking: "FLORA", FullBox: decimal.NewFromInt(1),
		CustomerID: &custB,
	})

	n, err := store.LinkCustomerByMarking(ctx, reconcile.KindExpenseForever, "FLORA")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	expenses, err := store.ListExpensesForever(ctx, 10)
	require.NoError(t, err)
	for _, e := range expenses {
		require.NotNil(t, e.CustomerID)
		if e.AWB == "222" {
			assert.Equal(t, custB, *e.CustomerID, "an existing link is left alone")
		} else {
			assert.Equal(t, custA, *e.CustomerID)
		}
	}
}

func TestStore_MissingShipmentRecords_ShipmentKindRejected(t *testing.T) {
	store := newStore(t)
	_, err := store.MissingShipmentRecords(context.Background(), reconcile.KindShipment, nil)
	assert.ErrorIs(t, err, reconcile.ErrUnknownKind)
}

func TestStore_UnresolvedCounts(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	cust := int64(1)
	insertShipment(t, store, reconcile.Shipment{Date: day(1), Marking: "A"})
	insertShipment(t, store, reconcile.Shipment{Date: day(2), Marking: "B", CustomerID: &cust})
	insertForever(t, store, reconcile.ExpenseForever{
		Date: day(5), AWB: "111", Marking: "A", FullBox: decimal.NewFromInt(1),
	})

	gaps, err := store.UnresolvedCounts(ctx)
	require.NoError(t, err)

	byKind := make(map[reconcile.RecordKind]sqlite.LinkGap, len(gaps))
	for _, g := range gaps {
		byKind[g.Kind] = g
	}
	assert.Equal(t, int64(1), byKind[reconcile.KindShipment].MissingCustomer)
	assert.Equal(t, int64(1), byKind[reconcile.KindExpenseForever].MissingCustomer)
	assert.Equal(t, int64(1), byKind[reconcile.KindExpenseForever].MissingShipment)
	assert.Equal(t, int64(0), byKind[reconcile.KindSale].MissingCustomer)
}
