/*
Package reconcile implements the record reconciliation engine.

PURPOSE:
  This package contains the domain types and algorithms that turn batches of
  already-normalized logistics rows (shipments, balance expenses, pre-cooling
  expenses, sales) into linked rows of one relational store. It decides which
  incoming rows are duplicates, fills missing foreign-key links by ordered
  deterministic rules, and falls back to an operator decision loop when the
  rules cannot resolve a link.

KEY CONCEPTS IN THIS FILE (types.go):
  - RecordKind: tagged enumeration of the record kinds the engine knows
  - Shipment / ExpenseForever / ExpenseIphandlers / Sale / Marking / Customer:
    the persisted record types
  - ExpenseKey / ShipmentKey: natural keys used for deduplication
  - MatchStrategy / DateConstraint: relaxed predicates used by the operator loop

DESIGN PRINCIPLES:
  1. Links are filled at most once: every rule and operator action is guarded
     by "only if still null". A non-nil link is never overwritten.
  2. Behavior is selected through the kind dispatch table, never by comparing
     concrete types.
  3. Money, weights and volumes use decimal.Decimal.

SEE ALSO:
  - dedup.go:  natural-key duplicate filter
  - rules.go:  ordered deterministic link rules per kind
  - linker.go: operator resolution state machine
  - run.go:    batch orchestration
*/
package reconcile

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// RECORD KINDS
// =============================================================================

// RecordKind names one table of the store. The engine dispatches natural
// keys, rule chains and match strategies through this tag.
type RecordKind string

const (
	KindShipment          RecordKind = "shipments"
	KindExpenseForever    RecordKind = "expenses_forever"
	KindExpenseIphandlers RecordKind = "expenses_iphandlers"
	KindSale              RecordKind = "sales"
	KindMarking           RecordKind = "markings"
)

// Supplier identifiers of the two expense sources. Sale-to-expense rules are
// gated by these so a Forever sale never links an IpHandlers expense.
const (
	SupplierForever    int64 = 2
	SupplierIphandlers int64 = 5
)

// Currency codes used by the sale pricing rules.
const (
	CurrencyUSD = "usd"
	CurrencyEUR = "eur"
)

// kindSpec carries the per-kind behavior of the operator passes.
type kindSpec struct {
	// customerPass / shipmentPass mark which operator loops cover this kind.
	customerPass bool
	shipmentPass bool
	// dateConstraint is the direction of the shipment-candidate date filter.
	dateConstraint DateConstraint
}

var kinds = map[RecordKind]kindSpec{
	KindShipment:          {customerPass: true},
	KindExpenseForever:    {customerPass: true, shipmentPass: true, dateConstraint: ShipmentBeforeRecord},
	KindExpenseIphandlers: {customerPass: true, shipmentPass: true, dateConstraint: ShipmentAfterRecord},
	KindSale:              {customerPass: true, shipmentPass: true, dateConstraint: ShipmentBeforeRecord},
	KindMarking:           {},
}

// CustomerPassOrder is the fixed order in which kinds are offered to the
// operator for customer resolution. Shipment-linked kinds go before sales
// because sale rules consume links filled on the expense side first.
var CustomerPassOrder = []RecordKind{
	KindShipment,
	KindExpenseForever,
	KindExpenseIphandlers,
	KindSale,
}

// ShipmentPassOrder is the fixed order for shipment resolution.
var ShipmentPassOrder = []RecordKind{
	KindExpenseForever,
	KindExpenseIphandlers,
	KindSale,
}

// =============================================================================
// RECORDS
// =============================================================================

// RateCard holds the negotiated per-service unit prices of one customer.
// Column names mirror the customers table.
type RateCard struct {
	ConsKg     decimal.Decimal // consolidation, Ecuador, per kg
	EqKg       decimal.Decimal // cut flowers, Ecuador, per kg
	KenKg      decimal.Decimal // cut flowers, Kenya, per kg
	ColKg      decimal.Decimal // cut flowers, Colombia, per kg
	IsrKg      decimal.Decimal // by weight, Israel, per kg
	IsrPallet  int64           // by volume, Israel, per pallet
	HollPallet int64           // cut flowers, Holland, per pallet
	PreecoolKg decimal.Decimal
	PreecoolAWB int64
	FlightKg   decimal.Decimal
	Troll      int64 // trolleys, per piece
	BulbPallet int64
	RusEqFull   int64
	RusElseFull int64
	RusBigBox   int64
	RusSmallBox int64

	DollarTransRate int64
	EuroTransRate   int64
	DollarFlowRate  int64
	EuroFlowRate    int64
	FlowMarkup      decimal.Decimal
	TransMarkup     decimal.Decimal
}

// Customer is the stable identity of a billing party.
type Customer struct {
	ID      int64
	Name    string
	Address string
	Phone   string
	Email   string
	Rates   RateCard
}

func (c Customer) Describe() string {
	return fmt.Sprintf("CUSTOMER\nID: %d,\nName: %s,\nAddress: %s,\nPhone: %s,\nEmail: %s",
		c.ID, c.Name, c.Address, c.Phone, c.Email)
}

// Marking aliases a free-text cargo label to a customer. Once its CustomerID
// is set it is the single source of truth for resolving that label on every
// other table.
type Marking struct {
	ID              int64
	Name            string // the label printed on the cargo, natural key
	CustomerName    string // informal name as supplied by the source
	CustomerAddress string
	CustomerID      *int64
}

func (m Marking) Describe() string {
	return fmt.Sprintf("MARKING\nID: %d,\nCustomer: %s,\nAddress: %s,\nMarking: %s,\nCustomer's ID: %s",
		m.ID, m.CustomerName, m.CustomerAddress, m.Name, formatLink(m.CustomerID))
}

// Shipment is one physical consignment from the truck-report path.
type Shipment struct {
	ID             int64
	Date           time.Time
	BoxAmount      int64
	BoxFull        decimal.Decimal
	WeightFact     int64
	WeightVol      int64
	Volume         decimal.Decimal
	Marking        string
	AWB            string
	Country        string
	Supplier       string
	TruckName      string
	TruckBalance   string
	ForeverBalance string
	Status         string
	Comment        string

	CustomerID          *int64
	ExpenseForeverID    *int64
	ExpenseIphandlersID *int64
	SupplierID          *int64
}

// Key returns the shipment natural key used for deduplication.
func (s Shipment) Key() ShipmentKey {
	return ShipmentKey{
		AWB:       s.AWB,
		Marking:   s.Marking,
		BoxFull:   s.BoxFull,
		TruckName: s.TruckName,
		WeightVol: s.WeightVol,
	}
}

func (s Shipment) Describe() string {
	return fmt.Sprintf("SHIPMENT\nID: %d,\nDate: %s,\nAwb: %s,\nMarking: %s,\nFull boxes: %s,\nCountry: %s,\nTruck name: %s,\nStatus: %s,\nCustomer's ID: %s",
		s.ID, s.Date.Format(time.DateOnly), s.AWB, s.Marking, s.BoxFull, s.Country, s.TruckName, s.Status, formatLink(s.CustomerID))
}

// ExpenseForever is a cost record sourced from the Forever balance ledgers.
type ExpenseForever struct {
	ID              int64
	Date            time.Time
	Type            string
	CustomerName    string // display name, filled by rule
	TotalUSD        decimal.Decimal
	TotalEUR        decimal.Decimal
	TotalRUB        decimal.Decimal
	Country         string // filled by rule from the linked shipment
	Currency        string
	CurrencyRate    decimal.Decimal
	AWB             string
	ContentSupplier string
	Marking         string
	FullBox         decimal.Decimal
	Weight          int64
	Volume          decimal.Decimal
	BalanceCode     int64
	BalanceCurrency string

	CustomerID *int64
	ShipmentID *int64
	SupplierID *int64
}

func (e ExpenseForever) Key() ExpenseKey {
	return ExpenseKey{AWB: e.AWB, Marking: e.Marking, FullBox: e.FullBox, Date: e.Date}
}

func (e ExpenseForever) Describe() string {
	return fmt.Sprintf("EXPENSE FOREVER\nID: %d,\nDate: %s,\nType: %s,\nAwb: %s,\nMarking: %s,\nFull boxes: %s,\nWeight: %d,\nVolume: %s,\nCurrency type: %s,\nCustomer's ID: %s,\nShipment's ID: %s",
		e.ID, e.Date.Format(time.DateOnly), e.Type, e.AWB, e.Marking, e.FullBox, e.Weight, e.Volume, e.Currency, formatLink(e.CustomerID), formatLink(e.ShipmentID))
}

// ExpenseIphandlers is a pre-cooling cost record from the IpHandlers portal.
// Its date semantics differ from the Forever side: ETADate is when the cargo
// is expected, so candidate shipments must depart after it.
type ExpenseIphandlers struct {
	ID           int64
	ETADate      time.Time
	LoadDate     string
	Account      string
	Total        decimal.Decimal
	Country      string
	Currency     string // always eur at the source
	AWB          string
	Marking      string
	Box          int64
	FullBox      decimal.Decimal
	Weight       int64
	CustomerName string

	CustomerID *int64
	ShipmentID *int64
	SupplierID *int64
}

func (e ExpenseIphandlers) Key() ExpenseKey {
	return ExpenseKey{AWB: e.AWB, Marking: e.Marking, FullBox: e.FullBox, Date: e.ETADate}
}

func (e ExpenseIphandlers) Describe() string {
	return fmt.Sprintf("EXPENSE IPHANDLERS\nID: %d,\nETA Date: %s,\nAwb: %s,\nMarking: %s,\nBoxes: %d,\nFull boxes: %s,\nTotal: %s,\nCustomer's ID: %s,\nShipment's ID: %s",
		e.ID, e.ETADate.Format(time.DateOnly), e.AWB, e.Marking, e.Box, e.FullBox, e.Total, formatLink(e.CustomerID), formatLink(e.ShipmentID))
}

// Sale is a billing record derived from an expense.
type Sale struct {
	ID              int64
	Date            time.Time
	Type            string
	Marking         string
	FullBox         decimal.Decimal
	CustomerName    string
	ContentSupplier string
	TotalUSD        decimal.Decimal
	TotalEUR        decimal.Decimal
	TotalRUB        decimal.NullDecimal // computed by rule
	Currency        string
	CurrencyRate    decimal.NullDecimal // filled from the currency table
	Volume          decimal.Decimal
	Country         string
	Weight          int64
	AWB             string
	CurrencyMarkup  decimal.NullDecimal // filled from the customer rate card
	PriceKg         decimal.NullDecimal
	PricePallet     *int64
	PriceTroll      *int64

	CustomerID          *int64
	ShipmentID          *int64
	ExpenseForeverID    *int64
	ExpenseIphandlersID *int64
	SupplierID          *int64
}

func (s Sale) Key() ExpenseKey {
	return ExpenseKey{AWB: s.AWB, Marking: s.Marking, FullBox: s.FullBox, Date: s.Date}
}

func (s Sale) Describe() string {
	return fmt.Sprintf("SALE\nID: %d,\nDate: %s,\nType: %s,\nAwb: %s,\nMarking: %s,\nFull boxes: %s,\nWeight: %d,\nVolume: %s,\nCurrency type: %s,\nCustomer's ID: %s,\nShipment's ID: %s",
		s.ID, s.Date.Format(time.DateOnly), s.Type, s.AWB, s.Marking, s.FullBox, s.Weight, s.Volume, s.Currency, formatLink(s.CustomerID), formatLink(s.ShipmentID))
}

// CurrencyRate is one daily central-bank rate.
type CurrencyRate struct {
	ID       int64
	Currency string // usd or eur
	Date     time.Time
	Rate     decimal.Decimal
}

// Reference records used only by the starter import.

type Company struct {
	ID      int64
	Name    string
	Address string
	Branch  string
}

type Supplier struct {
	ID      int64
	Name    string
	Country string
}

type BoxType struct {
	ID          int64
	Name        string
	PerPallet   int64
	Accountable string
}

type FlowerType struct {
	ID         int64
	Name       string
	Type       string
	Plantation string
}

type Driver struct {
	ID    int64
	Name  string
	Phone string
	Email string
}

type Car struct {
	ID       int64
	Brand    string
	Plate    string
	Year     int64
	Capacity int64
}

// =============================================================================
// NATURAL KEYS
// =============================================================================

// ExpenseKey is the shared natural key of expense and sale records. Two rows
// matching on it are the same logical record regardless of other fields.
type ExpenseKey struct {
	AWB     string
	Marking string
	FullBox decimal.Decimal
	Date    time.Time
}

func (k ExpenseKey) String() string {
	return fmt.Sprintf("awb=%s marking=%s full_box=%s date=%s",
		k.AWB, k.Marking, k.FullBox, k.Date.Format(time.DateOnly))
}

// ShipmentKey is the shipment natural key. Truck name and volumetric weight
// take part because one truck report can repeat (awb, marking, box) triples
// across trucks.
type ShipmentKey struct {
	AWB       string
	Marking   string
	BoxFull   decimal.Decimal
	TruckName string
	WeightVol int64
}

func (k ShipmentKey) String() string {
	return fmt.Sprintf("awb=%s marking=%s box_full=%s truck=%s weight_vol=%d",
		k.AWB, k.Marking, k.BoxFull, k.TruckName, k.WeightVol)
}

// =============================================================================
// MATCH STRATEGIES (operator shipment pass)
// =============================================================================

// DateConstraint is the direction of the date filter applied to every
// shipment candidate.
type DateConstraint int

const (
	// ShipmentBeforeRecord keeps shipments dated before the record's date.
	// Expenses and sales can only refer to cargo that already departed.
	ShipmentBeforeRecord DateConstraint = iota
	// ShipmentAfterRecord keeps shipments dated after the record's date.
	// Pre-cooling happens before departure, so the shipment follows the ETA.
	ShipmentAfterRecord
)

// MatchStrategy is one relaxed predicate for finding shipment candidates.
// The strategies are intentionally overlapping: the same shipment shown by
// several strategies is a stronger cue for the operator, so results are not
// deduplicated across strategies.
type MatchStrategy struct {
	Label     string
	ByAWB     bool
	ByMarking bool
	ByBox     bool
}

// ShipmentStrategies is the declared strategy set of the shipment pass.
var ShipmentStrategies = []MatchStrategy{
	{Label: "Found a match by AWB:", ByAWB: true},
	{Label: "Found a match by marking:", ByMarking: true},
	{Label: "Found a match by AWB and full box:", ByAWB: true, ByBox: true},
	{Label: "Found a match by AWB and marking:", ByAWB: true, ByMarking: true},
	{Label: "Found a match by marking and full box:", ByMarking: true, ByBox: true},
}

// Unresolved is a record surfaced to the operator loop: the identifying
// fields the match strategies need plus a printable detail block.
type Unresolved struct {
	Kind    RecordKind
	ID      int64
	Marking string
	AWB     string
	FullBox decimal.Decimal
	Date    time.Time
	Detail  string
}

func formatLink(id *int64) string {
	if id == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%d", *id)
}
