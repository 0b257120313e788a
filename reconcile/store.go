/*
Store interface of the reconciliation engine.

PURPOSE:
  Declares the persistence surface the engine runs against. The engine owns
  WHICH fills happen and in WHAT order; the store owns HOW each fill is
  executed. Every Fill* method is a guarded bulk update: it touches only rows
  whose target link is still null and reports how many rows it changed.

IMPLEMENTATIONS:
  - store/sqlite: production store, used by tests through ":memory:"
*/
package reconcile

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Store is the full persistence surface of the engine.
type Store interface {
	RecordStore
	DedupStore
	RuleStore
	LinkStore
}

// RecordStore inserts records and reads them back by id.
type RecordStore interface {
	InsertShipment(ctx context.Context, s Shipment) (int64, error)
	InsertExpenseForever(ctx context.Context, e ExpenseForever) (int64, error)
	InsertExpenseIphandlers(ctx context.Context, e ExpenseIphandlers) (int64, error)
	InsertSale(ctx context.Context, s Sale) (int64, error)
	InsertMarking(ctx context.Context, m Marking) (int64, error)

	ShipmentByID(ctx context.Context, id int64) (*Shipment, error)
	MarkingByName(ctx context.Context, name string) (*Marking, error)
	CustomerByID(ctx context.Context, id int64) (*Customer, error)

	UpsertCurrencyRate(ctx context.Context, r CurrencyRate) error
}

// DedupStore answers natural-key membership questions.
type DedupStore interface {
	HasShipment(ctx context.Context, k ShipmentKey) (bool, error)
	HasExpenseForever(ctx context.Context, k ExpenseKey) (bool, error)
	HasExpenseIphandlers(ctx context.Context, k ExpenseKey) (bool, error)
	HasSale(ctx context.Context, k ExpenseKey) (bool, error)
	HasMarking(ctx context.Context, name string) (bool, error)
}

// RuleStore executes the deterministic guarded fills. Each method returns
// the number of rows it changed so a run can report per-rule counts.
type RuleStore interface {
	// Forever chain.
	FillForeverCustomerFromMarking(ctx context.Context) (int64, error)
	FillForeverCustomerName(ctx context.Context) (int64, error)
	// FillForeverShipment matches unconsumed shipments; withBox adds the
	// full-box equality to the join.
	FillForeverShipment(ctx context.Context, withBox bool) (int64, error)
	FillShipmentForeverBacklink(ctx context.Context) (int64, error)
	FillForeverCountry(ctx context.Context) (int64, error)
	MarkZeroCargoForever(ctx context.Context) (int64, error)

	// IpHandlers chain.
	FillIphandlersCustomerFromMarking(ctx context.Context) (int64, error)
	FillIphandlersCustomerName(ctx context.Context) (int64, error)
	FillIphandlersShipment(ctx context.Context) (int64, error)
	FillShipmentIphandlersBacklink(ctx context.Context) (int64, error)

	// Sales chain.
	FillSaleCustomerFromMarking(ctx context.Context) (int64, error)
	FillSaleCustomerName(ctx context.Context) (int64, error)
	FillSaleShipmentFromForever(ctx context.Context) (int64, error)
	FillSaleExpenseForever(ctx context.Context) (int64, error)
	FillSaleExpenseIphandlers(ctx context.Context) (int64, error)
	FillSaleCountry(ctx context.Context) (int64, error)
	FillSaleCurrencyMarkup(ctx context.Context, currency string) (int64, error)
	FillSaleCurrencyRate(ctx context.Context, currency string) (int64, error)
	FillSalePrice(ctx context.Context, rule SalePriceRule) (int64, error)
	FillSaleTotal(ctx context.Context, currency string, unit SaleUnit) (int64, error)

	// Shipments and markings chains.
	FillShipmentCustomerFromMarking(ctx context.Context) (int64, error)
	FillMarkingCustomer(ctx context.Context) (int64, error)
}

// LinkStore serves the operator decision loops.
type LinkStore interface {
	// NextMissingCustomer returns the first record of the kind whose
	// customer link is null, ignoring skipped ids. Nil when none remain.
	NextMissingCustomer(ctx context.Context, kind RecordKind, skip []int64) (*Unresolved, error)

	// MissingShipmentRecords returns every record of the kind whose
	// shipment link is null, ignoring skipped ids.
	MissingShipmentRecords(ctx context.Context, kind RecordKind, skip []int64) ([]Unresolved, error)

	// CandidateMarkings lists resolved markings whose name matches.
	CandidateMarkings(ctx context.Context, marking string) ([]Marking, error)

	// AliasForCustomer returns any marking already resolved to the
	// customer, or ErrNotFound when the id is unknown.
	AliasForCustomer(ctx context.Context, customerID int64) (*Marking, error)

	// SetMarkingCustomer fills a null marking link.
	SetMarkingCustomer(ctx context.Context, markingID, customerID int64) error

	// LinkCustomerByMarking propagates resolved marking links onto every
	// record of the kind sharing the marking name. Guarded by null.
	LinkCustomerByMarking(ctx context.Context, kind RecordKind, marking string) (int64, error)

	// ShipmentsByMatch lists candidate shipments for one strategy.
	ShipmentsByMatch(ctx context.Context, f ShipmentFilter) ([]Shipment, error)

	// SetShipmentLink fills a null shipment link on one record.
	SetShipmentLink(ctx context.Context, kind RecordKind, recordID, shipmentID int64) error
}

// ShipmentFilter is the query the shipment pass builds from one strategy.
// Nil fields do not constrain.
type ShipmentFilter struct {
	AWB     *string
	Marking *string
	BoxFull *decimal.Decimal

	// Exactly one of the date bounds is set, per the kind's constraint.
	DateBefore *time.Time
	DateAfter  *time.Time
}
