package reconcile_test

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evaigen/auto-office/reconcile"
	"github.com/evaigen/auto-office/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestRunner(t *testing.T) (*reconcile.Runner, *sqlite.Store) {
	store := newTestStore(t)
	return &reconcile.Runner{Store: store, Logger: quietLogger()}, store
}

func date(day int) time.Time {
	return time.Date(2025, time.March, day, 0, 0, 0, 0, time.UTC)
}

func seedCustomer(t *testing.T, store *sqlite.Store, name string) int64 {
	id, err := store.InsertCustomer(context.Background(), reconcile.Customer{
		Name: name,
		Rates: reconcile.RateCard{
			ConsKg:          decimal.NewFromFloat(1.2),
			EqKg:            decimal.NewFromFloat(2.5),
			KenKg:           decimal.NewFromFloat(3.1),
			ColKg:           decimal.NewFromFloat(2.8),
			IsrKg:           decimal.NewFromFloat(4.0),
			IsrPallet:       150,
			HollPallet:      120,
			Troll:           80,
			DollarTransRate: 5,
			EuroTransRate:   7,
		},
	})
	require.NoError(t, err)
	return id
}

func seedMarking(t *testing.T, store *sqlite.Store, name, customer string, customerID int64) {
	_, err := store.InsertMarking(context.Background(), reconcile.Marking{
		Name:         name,
		CustomerName: customer,
		CustomerID:   &customerID,
	})
	require.NoError(t, err)
}

func seedShipment(t *testing.T, store *sqlite.Store, sh reconcile.Shipment) int64 {
	if sh.TruckName == "" {
		sh.TruckName = "truck-1"
	}
	id, err := store.InsertShipment(context.Background(), sh)
	require.NoError(t, err)
	return id
}

// =============================================================================
// FOREVER CHAIN
// =============================================================================

func TestForeverChain_CustomerFromMarking(t *testing.T) {
	// GIVEN: A resolved marking alias and an expense carrying that label
	// WHEN: The forever chain runs
	// THEN: The expense gets the customer link and display name, once

	store := newTestStore(t)
	ctx := context.Background()

	custID := seedCustomer(t, store, "Flora Trade")
	seedMarking(t, store, "FLORA", "Flora Trade", custID)

	supplier := reconcile.SupplierForever
	_, err := store.InsertExpenseForever(ctx, reconcile.ExpenseForever{
		Date:       date(5),
		AWB:        "123-456",
		Marking:    "FLORA",
		FullBox:    decimal.NewFromInt(10),
		SupplierID: &supplier,
	})
	require.NoError(t, err)

	counts, err := reconcile.RunChain(ctx, store, reconcile.KindExpenseForever)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts["customer from marking"])
	assert.Equal(t, int64(1), counts["customer display name"])

	expenses, err := store.ListExpensesForever(ctx, 10)
	require.NoError(t, err)
	require.Len(t, expenses, 1)
	require.NotNil(t, expenses[0].CustomerID)
	assert.Equal(t, custID, *expenses[0].CustomerID)
	assert.Equal(t, "Flora Trade", expenses[0].CustomerName)

	// Re-running fills nothing.
	counts, err = reconcile.RunChain(ctx, store, reconcile.KindExpenseForever)
	require.NoError(t, err)
	assert.Equal(t, int64(0), counts["customer from marking"])
	assert.Equal(t, int64(0), counts["customer display name"])
}

func TestForeverChain_ShipmentLinkAndCountry(t *testing.T) {
	// GIVEN: A shipment and an expense sharing awb, marking and full box
	// WHEN: The forever chain runs
	// THEN: The expense links the shipment, the shipment backlinks the
	//       expense, and the country is copied over

	store := newTestStore(t)
	ctx := context.Background()

	shipID := seedShipment(t, store, reconcile.Shipment{
		Date:    date(1),
		AWB:     "123-456",
		Marking: "FLORA",
		BoxFull: decimal.NewFromInt(10),
		Country: "ecuador",
	})

	supplier := reconcile.SupplierForever
	expID, err := store.InsertExpenseForever(ctx, reconcile.ExpenseForever{
		Date:       date(5),
		AWB:        "123-456",
		Marking:    "FLORA",
		FullBox:    decimal.NewFromInt(10),
		SupplierID: &supplier,
	})
	require.NoError(t, err)

	counts, err := reconcile.RunChain(ctx, store, reconcile.KindExpenseForever)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts["shipment by awb, box and marking"])
	assert.Equal(t, int64(0), counts["shipment by awb and marking"], "strict rule already consumed the match")
	assert.Equal(t, int64(1), counts["shipment backlink"])
	assert.Equal(t, int64(1), counts["country from shipment"])

	expenses, err := store.ListExpensesForever(ctx, 10)
	require.NoError(t, err)
	require.NotNil(t, expenses[0].ShipmentID)
	assert.Equal(t, shipID, *expenses[0].ShipmentID)
	assert.Equal(t, "ecuador", expenses[0].Country)

	sh, err := store.ShipmentByID(ctx, shipID)
	require.NoError(t, err)
	require.NotNil(t, sh.ExpenseForeverID)
	assert.Equal(t, expID, *sh.ExpenseForeverID)
}

func TestForeverChain_RelaxedShipmentMatch(t *testing.T) {
	// GIVEN: A shipment matching the expense on awb and marking only
	// WHEN: The forever chain runs
	// THEN: The relaxed rule picks up what the strict rule could not

	store := newTestStore(t)
	ctx := context.Background()

	seedShipment(t, store, reconcile.Shipment{
		Date:    date(1),
		AWB:     "123-456",
		Marking: "FLORA",
		BoxFull: decimal.NewFromInt(12), // box mismatch
	})

	supplier := reconcile.SupplierForever
	_, err := store.InsertExpenseForever(ctx, reconcile.ExpenseForever{
		Date:       date(5),
		AWB:        "123-456",
		Marking:    "FLORA",
		FullBox:    decimal.NewFromInt(10),
		SupplierID: &supplier,
	})
	require.NoError(t, err)

	counts, err := reconcile.RunChain(ctx, store, reconcile.KindExpenseForever)
	require.NoError(t, err)
	assert.Equal(t, int64(0), counts["shipment by awb, box and marking"])
	assert.Equal(t, int64(1), counts["shipment by awb and marking"])
}

// =============================================================================
// IPHANDLERS CHAIN
// =============================================================================

func TestIphandlersChain_ShipmentLinkAndBacklink(t *testing.T) {
	// GIVEN: A pre-cooling expense and a shipment sharing awb and marking
	// WHEN: The iphandlers chain runs
	// THEN: Both directions of the link are filled

	store := newTestStore(t)
	ctx := context.Background()

	shipID := seedShipment(t, store, reconcile.Shipment{
		Date:    date(10),
		AWB:     "777-000",
		Marking: "KENIA",
		BoxFull: decimal.NewFromInt(4),
	})

	supplier := reconcile.SupplierIphandlers
	expID, err := store.InsertExpenseIphandlers(ctx, reconcile.ExpenseIphandlers{
		ETADate:    date(8),
		AWB:        "777-000",
		Marking:    "KENIA",
		FullBox:    decimal.NewFromInt(4),
		Currency:   reconcile.CurrencyEUR,
		SupplierID: &supplier,
	})
	require.NoError(t, err)

	counts, err := reconcile.RunChain(ctx, store, reconcile.KindExpenseIphandlers)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts["shipment by awb and marking"])
	assert.Equal(t, int64(1), counts["shipment backlink"])

	expenses, err := store.ListExpensesIphandlers(ctx, 10)
	require.NoError(t, err)
	require.NotNil(t, expenses[0].ShipmentID)
	assert.Equal(t, shipID, *expenses[0].ShipmentID)

	sh, err := store.ShipmentByID(ctx, shipID)
	require.NoError(t, err)
	require.NotNil(t, sh.ExpenseIphandlersID)
	assert.Equal(t, expID, *sh.ExpenseIphandlersID)
}

// =============================================================================
// SALES CHAIN
// =============================================================================

// seedSalePipeline wires a full resolution path for one sale: customer with
// rate card, resolved marking, shipment with country, matching forever
// expense and a daily usd rate on the sale date.
func seedSalePipeline(t *testing.T, store *sqlite.Store) (custID int64, saleDate time.Time) {
	ctx := context.Background()
	custID = seedCustomer(t, store, "Flora Trade")
	seedMarking(t, store, "FLORA", "Flora Trade", custID)

	seedShipment(t, store, reconcile.Shipment{
		Date:    date(1),
		AWB:     "123-456",
		Marking: "FLORA",
		BoxFull: decimal.NewFromInt(10),
		Country: "ec",
	})

	supplier := reconcile.SupplierForever
	_, err := store.InsertExpenseForever(ctx, reconcile.ExpenseForever{
		Date:       date(5),
		AWB:        "123-456",
		Marking:    "FLORA",
		FullBox:    decimal.NewFromInt(10),
		SupplierID: &supplier,
	})
	require.NoError(t, err)

	saleDate = date(10)
	require.NoError(t, store.UpsertCurrencyRate(ctx, reconcile.CurrencyRate{
		Currency: reconcile.CurrencyUSD,
		Date:     saleDate,
		Rate:     decimal.NewFromInt(90),
	}))
	return custID, saleDate
}

func TestSalesChain_FullResolution(t *testing.T) {
	// GIVEN: A sale whose marking, shipment, expense and daily rate are all
	//        resolvable
	// WHEN: One run ingests the sale
	// THEN: Every link and the ruble total come out filled:
	//       weight 10 * price 2.5 * (rate 90 + markup 5) = 2375

	runner, store := newTestRunner(t)
	ctx := context.Background()
	custID, saleDate := seedSalePipeline(t, store)

	supplier := reconcile.SupplierForever
	summary, err := runner.Run(ctx, reconcile.Batch{
		Kind: reconcile.KindSale,
		Sales: []reconcile.Sale{{
			Date:       saleDate,
			Type:       "срезка розы",
			Marking:    "FLORA",
			FullBox:    decimal.NewFromInt(10),
			Currency:   reconcile.CurrencyUSD,
			Weight:     10,
			AWB:        "123-456",
			SupplierID: &supplier,
		}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Inserted)

	sales, err := store.ListSales(ctx, 10)
	require.NoError(t, err)
	require.Len(t, sales, 1)
	sale := sales[0]

	require.NotNil(t, sale.CustomerID)
	assert.Equal(t, custID, *sale.CustomerID)
	assert.Equal(t, "Flora Trade", sale.CustomerName)
	require.NotNil(t, sale.ShipmentID)
	require.NotNil(t, sale.ExpenseForeverID)
	assert.Nil(t, sale.ExpenseIphandlersID)
	assert.Equal(t, "ec", sale.Country)

	require.True(t, sale.PriceKg.Valid)
	assert.True(t, sale.PriceKg.Decimal.Equal(decimal.NewFromFloat(2.5)), sale.PriceKg.Decimal.String())
	require.True(t, sale.CurrencyRate.Valid)
	assert.True(t, sale.CurrencyRate.Decimal.Equal(decimal.NewFromInt(90)))
	require.True(t, sale.CurrencyMarkup.Valid)
	assert.True(t, sale.CurrencyMarkup.Decimal.Equal(decimal.NewFromInt(5)))
	require.True(t, sale.TotalRUB.Valid)
	assert.True(t, sale.TotalRUB.Decimal.Equal(decimal.NewFromInt(2375)), sale.TotalRUB.Decimal.String())
}

func TestSalesChain_SecondRunChangesNothing(t *testing.T) {
	// GIVEN: A fully resolved sale
	// WHEN: The same batch is imported again
	// THEN: The row is a duplicate and no rule fires

	runner, store := newTestRunner(t)
	ctx := context.Background()
	_, saleDate := seedSalePipeline(t, store)

	supplier := reconcile.SupplierForever
	batch := reconcile.Batch{
		Kind: reconcile.KindSale,
		Sales: []reconcile.Sale{{
			Date:       saleDate,
			Type:       "срезка розы",
			Marking:    "FLORA",
			FullBox:    decimal.NewFromInt(10),
			Currency:   reconcile.CurrencyUSD,
			Weight:     10,
			AWB:        "123-456",
			SupplierID: &supplier,
		}},
	}

	_, err := runner.Run(ctx, batch)
	require.NoError(t, err)
	before, err := store.ListSales(ctx, 10)
	require.NoError(t, err)

	second, err := runner.Run(ctx, batch)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Inserted)
	assert.Equal(t, 1, second.Duplicates)
	assert.Empty(t, second.RuleFills, "all links were already resolved")

	after, err := store.ListSales(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestSalesChain_SupplierGating(t *testing.T) {
	// GIVEN: A sale sourced from the IpHandlers side and a forever expense
	//        matching its key
	// WHEN: The chains run
	// THEN: The forever expense is not linked; the iphandlers one is

	runner, store := newTestRunner(t)
	ctx := context.Background()

	foreverID := reconcile.SupplierForever
	_, err := store.InsertExpenseForever(ctx, reconcile.ExpenseForever{
		Date:       date(5),
		AWB:        "555-111",
		Marking:    "GLOBE",
		FullBox:    decimal.NewFromInt(3),
		SupplierID: &foreverID,
	})
	require.NoError(t, err)

	iphID := reconcile.SupplierIphandlers
	_, err = store.InsertExpenseIphandlers(ctx, reconcile.ExpenseIphandlers{
		ETADate:    date(6),
		AWB:        "555-111",
		Marking:    "GLOBE",
		FullBox:    decimal.NewFromInt(3),
		Currency:   reconcile.CurrencyEUR,
		SupplierID: &iphID,
	})
	require.NoError(t, err)

	_, err = runner.Run(ctx, reconcile.Batch{
		Kind: reconcile.KindSale,
		Sales: []reconcile.Sale{{
			Date:       date(10),
			Type:       "срезка",
			Marking:    "GLOBE",
			FullBox:    decimal.NewFromInt(3),
			Currency:   reconcile.CurrencyEUR,
			AWB:        "555-111",
			SupplierID: &iphID,
		}},
	})
	require.NoError(t, err)

	sales, err := store.ListSales(ctx, 10)
	require.NoError(t, err)
	require.Len(t, sales, 1)
	assert.Nil(t, sales[0].ExpenseForeverID, "wrong supplier must not link")
	require.NotNil(t, sales[0].ExpenseIphandlersID)
}

func TestSalesChain_TrolleyPricing(t *testing.T) {
	// GIVEN: A trolley sale from Holland with a resolved customer and country
	// WHEN: The chains run
	// THEN: The per-trolley price lands in the troll column, not the kg one

	runner, store := newTestRunner(t)
	ctx := context.Background()

	custID := seedCustomer(t, store, "Dutch Blooms")
	seedMarking(t, store, "DUTCH", "Dutch Blooms", custID)
	seedShipment(t, store, reconcile.Shipment{
		Date:    date(1),
		AWB:     "444-222",
		Marking: "DUTCH",
		BoxFull: decimal.NewFromInt(6),
		Country: "nl",
	})
	supplier := reconcile.SupplierForever
	_, err := store.InsertExpenseForever(ctx, reconcile.ExpenseForever{
		Date:       date(3),
		AWB:        "444-222",
		Marking:    "DUTCH",
		FullBox:    decimal.NewFromInt(6),
		SupplierID: &supplier,
	})
	require.NoError(t, err)

	_, err = runner.Run(ctx, reconcile.Batch{
		Kind: reconcile.KindSale,
		Sales: []reconcile.Sale{{
			Date:       date(7),
			Type:       "телеги",
			Marking:    "DUTCH",
			FullBox:    decimal.NewFromInt(6),
			Currency:   reconcile.CurrencyEUR,
			AWB:        "444-222",
			SupplierID: &supplier,
		}},
	})
	require.NoError(t, err)

	sales, err := store.ListSales(ctx, 10)
	require.NoError(t, err)
	require.Len(t, sales, 1)
	require.NotNil(t, sales[0].PriceTroll)
	assert.Equal(t, int64(80), *sales[0].PriceTroll)
	assert.False(t, sales[0].PriceKg.Valid)
	assert.Nil(t, sales[0].PricePallet)
}

func TestSalesChain_CountryCodeMustMatchExactly(t *testing.T) {
	// GIVEN: A resolved sale whose country only shares a prefix with a
	//        pricing-table code
	// WHEN: The chains run
	// THEN: No pricing rule fires and the total stays open

	runner, store := newTestRunner(t)
	ctx := context.Background()

	custID := seedCustomer(t, store, "Flora Trade")
	seedMarking(t, store, "FLORA", "Flora Trade", custID)
	seedShipment(t, store, reconcile.Shipment{
		Date:    date(1),
		AWB:     "123-456",
		Marking: "FLORA",
		BoxFull: decimal.NewFromInt(10),
		Country: "ecuador",
	})
	supplier := reconcile.SupplierForever
	_, err := store.InsertExpenseForever(ctx, reconcile.ExpenseForever{
		Date:       date(5),
		AWB:        "123-456",
		Marking:    "FLORA",
		FullBox:    decimal.NewFromInt(10),
		SupplierID: &supplier,
	})
	require.NoError(t, err)

	summary, err := runner.Run(ctx, reconcile.Batch{
		Kind: reconcile.KindSale,
		Sales: []reconcile.Sale{{
			Date:       date(10),
			Type:       "срезка розы",
			Marking:    "FLORA",
			FullBox:    decimal.NewFromInt(10),
			Currency:   reconcile.CurrencyUSD,
			Weight:     10,
			AWB:        "123-456",
			SupplierID: &supplier,
		}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Inserted)

	sales, err := store.ListSales(ctx, 10)
	require.NoError(t, err)
	require.Len(t, sales, 1)
	assert.Equal(t, "ecuador", sales[0].Country, "the shipment country is copied as is")
	assert.False(t, sales[0].PriceKg.Valid, `"ecuador" is not the code "ec"`)
	assert.False(t, sales[0].TotalRUB.Valid)
}

// =============================================================================
// MARKINGS AND SHIPMENTS CHAINS
// =============================================================================

func TestMarkingsChain_ResolvesByExactCustomerName(t *testing.T) {
	// GIVEN: A customer and an unresolved marking naming it exactly
	// WHEN: The markings chain runs
	// THEN: The alias resolves, and a shipment carrying the label follows

	store := newTestStore(t)
	ctx := context.Background()

	custID := seedCustomer(t, store, "Flora Trade")
	_, err := store.InsertMarking(ctx, reconcile.Marking{
		Name:         "FLORA",
		CustomerName: "Flora Trade",
	})
	require.NoError(t, err)
	seedShipment(t, store, reconcile.Shipment{
		Date:    date(1),
		Marking: "FLORA",
	})

	counts, err := reconcile.RunChain(ctx, store, reconcile.KindMarking)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts["customer by exact name"])

	m, err := store.MarkingByName(ctx, "FLORA")
	require.NoError(t, err)
	require.NotNil(t, m.CustomerID)
	assert.Equal(t, custID, *m.CustomerID)

	counts, err = reconcile.RunChain(ctx, store, reconcile.KindShipment)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts["customer from marking"])
}

func TestChainFor_UnknownKind(t *testing.T) {
	_, err := reconcile.ChainFor(reconcile.RecordKind("bogus"))
	assert.ErrorIs(t, err, reconcile.ErrUnknownKind)
}
