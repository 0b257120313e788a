/*
Package ingest turns spreadsheet rows into engine records.

PURPOSE:
  The acquisition side of the pipeline drops XLSX batch files (truck reports,
  balance ledgers, portal exports, sales sheets) and reference workbooks into
  a directory. This package parses them, validates each row fail-fast, and
  produces reconcile.Batch values ready for the Runner.

VALIDATION:
  A batch is rejected on the first malformed row, before anything is stored.
  Errors name the row and the field, so the operator can fix the sheet and
  re-import; the dedup filter makes the re-import safe.

SEE ALSO:
  - xlsx.go: the excelize readers feeding the builders in this file
*/
package ingest

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/evaigen/auto-office/reconcile"
)

// FieldError reports one unparseable or missing cell.
type FieldError struct {
	Row   int // 1-based sheet row
	Field string
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("row %d, field %q: %v", e.Row, e.Field, e.Err)
}

func (e *FieldError) Unwrap() error { return e.Err }

var errMissing = fmt.Errorf("required value missing")

// Accepted date layouts, tried in order. The sheets come from several
// sources and not all of them agree on a format.
var dateLayouts = []string{time.DateOnly, "02.01.2006", "2.1.2006", "02/01/2006"}

// rowReader walks one sheet row with positional access and remembers the
// first failure, so builders read straight through without error plumbing
// on every cell.
type rowReader struct {
	cells []string
	row   int
	err   error
}

func newRowReader(row int, cells []string) *rowReader {
	return &rowReader{cells: cells, row: row}
}

func (r *rowReader) fail(field string, err error) {
	if r.err == nil {
		r.err = &FieldError{Row: r.row, Field: field, Err: err}
	}
}

func (r *rowReader) cell(i int) string {
	if i >= len(r.cells) {
		return ""
	}
	return strings.TrimSpace(r.cells[i])
}

func (r *rowReader) text(i int, field string) string {
	return r.cell(i)
}

func (r *rowReader) requiredText(i int, field string) string {
	v := r.cell(i)
	if v == "" {
		r.fail(field, errMissing)
	}
	return v
}

func (r *rowReader) date(i int, field string) time.Time {
	v := r.cell(i)
	if v == "" {
		r.fail(field, errMissing)
		return time.Time{}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t
		}
	}
	r.fail(field, fmt.Errorf("unrecognized date %q", v))
	return time.Time{}
}

func (r *rowReader) decimal(i int, field string) decimal.Decimal {
	v := r.cell(i)
	if v == "" {
		return decimal.Zero
	}
	// Some sheets use the comma decimal separator.
	v = strings.ReplaceAll(v, ",", ".")
	d, err := decimal.NewFromString(v)
	if err != nil {
		r.fail(field, fmt.Errorf("not a number: %q", v))
		return decimal.Zero
	}
	return d
}

func (r *rowReader) integer(i int, field string) int64 {
	v := r.cell(i)
	if v == "" {
		return 0
	}
	// Integer columns sometimes arrive as "12.0".
	if f, err := strconv.ParseFloat(strings.ReplaceAll(v, ",", "."), 64); err == nil {
		return int64(f)
	}
	r.fail(field, fmt.Errorf("not an integer: %q", v))
	return 0
}

func (r *rowReader) optionalID(i int, field string) *int64 {
	v := r.cell(i)
	if v == "" {
		return nil
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		r.fail(field, fmt.Errorf("not an id: %q", v))
		return nil
	}
	return &id
}

// =============================================================================
// ROW BUILDERS
// =============================================================================

// Sheet layouts. Row numbers in errors are 1-based and include the header.

// shipmentRow: date, box_amount, box_full, weight_fact, weight_vol, volume,
// marking, awb, country, supplier, truck_name, truck_balance,
// forever_balance, status, comment
func shipmentRow(row int, cells []string) (reconcile.Shipment, error) {
	r := newRowReader(row, cells)
	s := reconcile.Shipment{
		Date:           r.date(0, "shipment_date"),
		BoxAmount:      r.integer(1, "box_amount"),
		BoxFull:        r.decimal(2, "box_full"),
		WeightFact:     r.integer(3, "weight_fact"),
		WeightVol:      r.integer(4, "weight_vol"),
		Volume:         r.decimal(5, "volume"),
		Marking:        r.requiredText(6, "marking"),
		AWB:            r.text(7, "awb"),
		Country:        r.text(8, "country"),
		Supplier:       r.text(9, "supplier"),
		TruckName:      r.requiredText(10, "truck_name"),
		TruckBalance:   r.text(11, "truck_balance"),
		ForeverBalance: r.text(12, "forever_balance"),
		Status:         r.text(13, "status"),
		Comment:        r.text(14, "comment"),
	}
	return s, r.err
}

// foreverRow: date, type, total_usd, total_eur, total_rub, currency,
// currency_rate, awb, content_supplier, marking, full_box, weight, volume,
// balance_code, balance_currency
func foreverRow(row int, cells []string) (reconcile.ExpenseForever, error) {
	r := newRowReader(row, cells)
	e := reconcile.ExpenseForever{
		Date:            r.date(0, "expense_date"),
		Type:            r.text(1, "expense_type"),
		TotalUSD:        r.decimal(2, "expense_total_usd"),
		TotalEUR:        r.decimal(3, "expense_total_eur"),
		TotalRUB:        r.decimal(4, "expense_total_rub"),
		Currency:        r.text(5, "expense_currency"),
		CurrencyRate:    r.decimal(6, "expense_currency_rate"),
		AWB:             r.text(7, "awb"),
		ContentSupplier: r.text(8, "content_supplier"),
		Marking:         r.text(9, "marking"),
		FullBox:         r.decimal(10, "full_box"),
		Weight:          r.integer(11, "weight"),
		Volume:          r.decimal(12, "volume"),
		BalanceCode:     r.integer(13, "balance_code"),
		BalanceCurrency: r.text(14, "balance_currency"),
	}
	supplier := reconcile.SupplierForever
	e.SupplierID = &supplier
	return e, r.err
}

// iphandlersRow: eta_date, load_date, account, total, awb, marking, box,
// full_box, weight
func iphandlersRow(row int, cells []string) (reconcile.ExpenseIphandlers, error) {
	r := newRowReader(row, cells)
	e := reconcile.ExpenseIphandlers{
		ETADate:  r.date(0, "eta_date"),
		LoadDate: r.text(1, "load_date"),
		Account:  r.text(2, "account"),
		Total:    r.decimal(3, "expense_total"),
		Currency: reconcile.CurrencyEUR, // the portal invoices in euros only
		AWB:      r.requiredText(4, "awb"),
		Marking:  r.requiredText(5, "marking"),
		Box:      r.integer(6, "box"),
		FullBox:  r.decimal(7, "full_box"),
		Weight:   r.integer(8, "weight"),
	}
	supplier := reconcile.SupplierIphandlers
	e.SupplierID = &supplier
	return e, r.err
}

// saleRow: date, type, marking, full_box, content_supplier, total_usd,
// total_eur, currency, volume, weight, awb, supplier_id
func saleRow(row int, cells []string) (reconcile.Sale, error) {
	r := newRowReader(row, cells)
	s := reconcile.Sale{
		Date:            r.date(0, "sale_date"),
		Type:            r.requiredText(1, "sale_type"),
		Marking:         r.requiredText(2, "marking"),
		FullBox:         r.decimal(3, "full_box"),
		ContentSupplier: r.text(4, "content_supplier"),
		TotalUSD:        r.decimal(5, "sale_total_usd"),
		TotalEUR:        r.decimal(6, "sale_total_eur"),
		Currency:        strings.ToLower(r.requiredText(7, "sale_currency")),
		Volume:          r.decimal(8, "volume"),
		Weight:          r.integer(9, "weight"),
		AWB:             r.text(10, "awb"),
		SupplierID:      r.optionalID(11, "supplier_id"),
	}
	if r.err == nil && s.Currency != reconcile.CurrencyUSD && s.Currency != reconcile.CurrencyEUR {
		r.fail("sale_currency", fmt.Errorf("unknown currency %q", s.Currency))
	}
	return s, r.err
}

// markingRow: marking_name, customer, customer_address
func markingRow(row int, cells []string) (reconcile.Marking, error) {
	r := newRowReader(row, cells)
	m := reconcile.Marking{
		Name:            r.requiredText(0, "marking_name"),
		CustomerName:    r.text(1, "marking_customer"),
		CustomerAddress: r.text(2, "marking_customer_address"),
	}
	return m, r.err
}

// customerRow: name, address, phone, email, then the rate card in schema
// order (cons_kg .. trans_markup).
func customerRow(row int, cells []string) (reconcile.Customer, error) {
	r := newRowReader(row, cells)
	c := reconcile.Customer{
		Name:    r.requiredText(0, "customer_name"),
		Address: r.text(1, "customer_address"),
		Phone:   r.text(2, "customer_phone"),
		Email:   r.text(3, "customer_email"),
		Rates: reconcile.RateCard{
			ConsKg:          r.decimal(4, "customer_cons_kg"),
			EqKg:            r.decimal(5, "customer_eq_kg"),
			KenKg:           r.decimal(6, "customer_ken_kg"),
			ColKg:           r.decimal(7, "customer_col_kg"),
			IsrKg:           r.decimal(8, "customer_isr_kg"),
			IsrPallet:       r.integer(9, "customer_isr_pallet"),
			HollPallet:      r.integer(10, "customer_holl_pallet"),
			PreecoolKg:      r.decimal(11, "customer_preecool_kg"),
			PreecoolAWB:     r.integer(12, "customer_preecool_awb"),
			FlightKg:        r.decimal(13, "customer_flight_kg"),
			Troll:           r.integer(14, "customer_troll"),
			BulbPallet:      r.integer(15, "customer_bulb_pallet"),
			RusEqFull:       r.integer(16, "customer_rus_eq_full"),
			RusElseFull:     r.integer(17, "customer_rus_else_full"),
			RusBigBox:       r.integer(18, "customer_rus_big_box"),
			RusSmallBox:     r.integer(19, "customer_rus_small_box"),
			DollarTransRate: r.integer(20, "customer_dollar_trans_rate"),
			EuroTransRate:   r.integer(21, "customer_euro_trans_rate"),
			DollarFlowRate:  r.integer(22, "customer_dollar_flow_rate"),
			EuroFlowRate:    r.integer(23, "customer_euro_flow_rate"),
			FlowMarkup:      r.decimal(24, "customer_flow_markup"),
			TransMarkup:     r.decimal(25, "customer_trans_markup"),
		},
	}
	return c, r.err
}

func companyRow(row int, cells []string) (reconcile.Company, error) {
	r := newRowReader(row, cells)
	c := reconcile.Company{
		Name:    r.requiredText(0, "company_name"),
		Address: r.text(1, "company_address"),
		Branch:  r.text(2, "company_branch"),
	}
	return c, r.err
}

func supplierRow(row int, cells []string) (reconcile.Supplier, error) {
	r := newRowReader(row, cells)
	s := reconcile.Supplier{
		Name:    r.requiredText(0, "supplier_name"),
		Country: r.text(1, "supplier_country"),
	}
	return s, r.err
}

func boxTypeRow(row int, cells []string) (reconcile.BoxType, error) {
	r := newRowReader(row, cells)
	b := reconcile.BoxType{
		Name:        r.requiredText(0, "box_name"),
		PerPallet:   r.integer(1, "box_per_pallet"),
		Accountable: r.text(2, "box_accountable"),
	}
	return b, r.err
}

func flowerTypeRow(row int, cells []string) (reconcile.FlowerType, error) {
	r := newRowReader(row, cells)
	f := reconcile.FlowerType{
		Name:       r.requiredText(0, "flower_name"),
		Type:       r.text(1, "flower_sort"),
		Plantation: r.text(2, "flower_plantation"),
	}
	return f, r.err
}

func driverRow(row int, cells []string) (reconcile.Driver, error) {
	r := newRowReader(row, cells)
	d := reconcile.Driver{
		Name:  r.requiredText(0, "driver_name"),
		Phone: r.text(1, "driver_phone"),
		Email: r.text(2, "driver_email"),
	}
	return d, r.err
}

func carRow(row int, cells []string) (reconcile.Car, error) {
	r := newRowReader(row, cells)
	c := reconcile.Car{
		Brand:    r.text(0, "car_brand"),
		Plate:    r.requiredText(1, "car_plate"),
		Year:     r.integer(2, "car_year"),
		Capacity: r.integer(3, "car_capacity"),
	}
	return c, r.err
}

// rateRow: date, rate
func rateRow(row int, cells []string, currency string) (reconcile.CurrencyRate, error) {
	r := newRowReader(row, cells)
	cr := reconcile.CurrencyRate{
		Currency: currency,
		Date:     r.date(0, "rate_date"),
		Rate:     r.decimal(1, "rate"),
	}
	if r.err == nil && cr.Rate.IsZero() {
		r.fail("rate", errMissing)
	}
	return cr, r.err
}
