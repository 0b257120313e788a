package sqlite

// Deterministic guarded fills.
//
// Every method here is one UPDATE with a correlated subquery and a null guard
// on the target column. Affected-row counts bubble up so each run can report
// what its rules did. The subquery and the EXISTS guard are kept textually
// identical per statement; when changing one, change both.

import (
	"context"
	"fmt"

	"github.com/evaigen/auto-office/reconcile"
)

// =============================================================================
// FOREVER EXPENSES
// =============================================================================

func (s *Store) FillForeverCustomerFromMarking(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.execCount(ctx, `
		UPDATE expenses_forever
		SET customer_id = (
			SELECT m.customer_id FROM markings m
			WHERE m.marking_name = expenses_forever.marking AND m.customer_id IS NOT NULL)
		WHERE customer_id IS NULL
		  AND EXISTS (
			SELECT 1 FROM markings m
			WHERE m.marking_name = expenses_forever.marking AND m.customer_id IS NOT NULL)
	`)
}

func (s *Store) FillForeverCustomerName(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.execCount(ctx, `
		UPDATE expenses_forever
		SET expense_customer = (
			SELECT c.customer_name FROM customers c
			WHERE c.customer_id = expenses_forever.customer_id)
		WHERE expense_customer IS NULL
		  AND customer_id IS NOT NULL
		  AND EXISTS (
			SELECT 1 FROM customers c WHERE c.customer_id = expenses_forever.customer_id)
	`)
}

// FillForeverShipment links each expense to the first unconsumed shipment
// matching on awb and marking; withBox tightens the join with full-box
// equality. The strict form runs before the relaxed one.
func (s *Store) FillForeverShipment(ctx context.Context, withBox bool) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	boxCond := ""
	if withBox {
		boxCond = "AND sh.box_full = expenses_forever.full_box"
	}
	query := fmt.Sprintf(`
		UPDATE expenses_forever
		SET shipment_id = (
			SELECT sh.shipment_id FROM shipments sh
			WHERE sh.expense_forever_id IS NULL
			  AND sh.awb = expenses_forever.awb
			  AND sh.marking = expenses_forever.marking
			  %s
			ORDER BY sh.shipment_id LIMIT 1)
		WHERE shipment_id IS NULL
		  AND EXISTS (
			SELECT 1 FROM shipments sh
			WHERE sh.expense_forever_id IS NULL
			  AND sh.awb = expenses_forever.awb
			  AND sh.marking = expenses_forever.marking
			  %s)
	`, boxCond, boxCond)
	return s.execCount(ctx, query)
}

func (s *Store) FillShipmentForeverBacklink(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.execCount(ctx, `
		UPDATE shipments
		SET expense_forever_id = (
			SELECT e.expense_id FROM expenses_forever e
			WHERE e.shipment_id = shipments.shipment_id
			ORDER BY e.expense_id LIMIT 1)
		WHERE expense_forever_id IS NULL
		  AND EXISTS (
			SELECT 1 FROM expenses_forever e WHERE e.shipment_id = shipments.shipment_id)
	`)
}

func (s *Store) FillForeverCountry(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.execCount(ctx, `
		UPDATE expenses_forever
		SET expense_country = (
			SELECT sh.country FROM shipments sh
			WHERE sh.shipment_id = expenses_forever.shipment_id AND sh.country IS NOT NULL)
		WHERE expense_country IS NULL
		  AND shipment_id IS NOT NULL
		  AND EXISTS (
			SELECT 1 FROM shipments sh
			WHERE sh.shipment_id = expenses_forever.shipment_id AND sh.country IS NOT NULL)
	`)
}

// MarkZeroCargoForever stamps the sentinel links on balance records with no
// cargo (service fees, corrections). They carry no boxes and no volume, so
// no customer or shipment question should ever be asked about them.
func (s *Store) MarkZeroCargoForever(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	customers, err := s.execCount(ctx, `
		UPDATE expenses_forever SET customer_id = 0
		WHERE customer_id IS NULL AND full_box = 0 AND volume = 0
	`)
	if err != nil {
		return customers, err
	}
	shipments, err := s.execCount(ctx, `
		UPDATE expenses_forever SET shipment_id = 0
		WHERE shipment_id IS NULL AND full_box = 0 AND volume = 0
	`)
	return customers + shipments, err
}

// =============================================================================
// IPHANDLERS EXPENSES
// =============================================================================

func (s *Store) FillIphandlersCustomerFromMarking(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.execCount(ctx, `
		UPDATE expenses_iphandlers
		SET customer_id = (
			SELECT m.customer_id FROM markings m
			WHERE m.marking_name = expenses_iphandlers.marking AND m.customer_id IS NOT NULL)
		WHERE customer_id IS NULL
		  AND EXISTS (
			SELECT 1 FROM markings m
			WHERE m.marking_name = expenses_iphandlers.marking AND m.customer_id IS NOT NULL)
	`)
}

func (s *Store) FillIphandlersCustomerName(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.execCount(ctx, `
		UPDATE expenses_iphandlers
		SET expense_customer = (
			SELECT c.customer_name FROM customers c
			WHERE c.customer_id = expenses_iphandlers.customer_id)
		WHERE expense_customer IS NULL
		  AND customer_id IS NOT NULL
		  AND EXISTS (
			SELECT 1 FROM customers c WHERE c.customer_id = expenses_iphandlers.customer_id)
	`)
}

func (s *Store) FillIphandlersShipment(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.execCount(ctx, `
		UPDATE expenses_iphandlers
		SET shipment_id = (
			SELECT sh.shipment_id FROM shipments sh
			WHERE sh.expense_iphandlers_id IS NULL
			  AND sh.awb = expenses_iphandlers.awb
			  AND sh.marking = expenses_iphandlers.marking
			ORDER BY sh.shipment_id LIMIT 1)
		WHERE shipment_id IS NULL
		  AND EXISTS (
			SELECT 1 FROM shipments sh
			WHERE sh.expense_iphandlers_id IS NULL
			  AND sh.awb = expenses_iphandlers.awb
			  AND sh.marking = expenses_iphandlers.marking)
	`)
}

func (s *Store) FillShipmentIphandlersBacklink(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.execCount(ctx, `
		UPDATE shipments
		SET expense_iphandlers_id = (
			SELECT e.expense_id FROM expenses_iphandlers e
			WHERE e.shipment_id = shipments.shipment_id
			ORDER BY e.expense_id LIMIT 1)
		WHERE expense_iphandlers_id IS NULL
		  AND EXISTS (
			SELECT 1 FROM expenses_iphandlers e WHERE e.shipment_id = shipments.shipment_id)
	`)
}

// =============================================================================
// SALES
// =============================================================================

func (s *Store) FillSaleCustomerFromMarking(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.execCount(ctx, `
		UPDATE sales
		SET customer_id = (
			SELECT m.customer_id FROM markings m
			WHERE m.marking_name = sales.marking AND m.customer_id IS NOT NULL)
		WHERE customer_id IS NULL
		  AND EXISTS (
			SELECT 1 FROM markings m
			WHERE m.marking_name = sales.marking AND m.customer_id IS NOT NULL)
	`)
}

func (s *Store) FillSaleCustomerName(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.execCount(ctx, `
		UPDATE sales
		SET sale_customer = (
			SELECT c.customer_name FROM customers c WHERE c.customer_id = sales.customer_id)
		WHERE sale_customer IS NULL
		  AND customer_id IS NOT NULL
		  AND EXISTS (
			SELECT 1 FROM customers c WHERE c.customer_id = sales.customer_id)
	`)
}

// FillSaleShipmentFromForever copies the shipment link already resolved on
// the matching forever expense. Sales are derived from expenses, so the
// expense side resolves first and the sale inherits its answer.
func (s *Store) FillSaleShipmentFromForever(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.execCount(ctx, `
		UPDATE sales
		SET shipment_id = (
			SELECT e.shipment_id FROM expenses_forever e
			WHERE e.awb = sales.awb AND e.full_box = sales.full_box AND e.marking = sales.marking
			  AND e.shipment_id IS NOT NULL
			ORDER BY e.expense_id LIMIT 1)
		WHERE shipment_id IS NULL
		  AND EXISTS (
			SELECT 1 FROM expenses_forever e
			WHERE e.awb = sales.awb AND e.full_box = sales.full_box AND e.marking = sales.marking
			  AND e.shipment_id IS NOT NULL)
	`)
}

func (s *Store) FillSaleExpenseForever(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.execCount(ctx, `
		UPDATE sales
		SET expense_forever_id = (
			SELECT e.expense_id FROM expenses_forever e
			WHERE e.awb = sales.awb AND e.full_box = sales.full_box AND e.marking = sales.marking
			ORDER BY e.expense_id LIMIT 1)
		WHERE expense_forever_id IS NULL
		  AND supplier_id = ?
		  AND EXISTS (
			SELECT 1 FROM expenses_forever e
			WHERE e.awb = sales.awb AND e.full_box = sales.full_box AND e.marking = sales.marking)
	`, reconcile.SupplierForever)
}

func (s *Store) FillSaleExpenseIphandlers(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.execCount(ctx, `
		UPDATE sales
		SET expense_iphandlers_id = (
			SELECT e.expense_id FROM expenses_iphandlers e
			WHERE e.awb = sales.awb AND e.full_box = sales.full_box AND e.marking = sales.marking
			ORDER BY e.expense_id LIMIT 1)
		WHERE expense_iphandlers_id IS NULL
		  AND supplier_id = ?
		  AND EXISTS (
			SELECT 1 FROM expenses_iphandlers e
			WHERE e.awb = sales.awb AND e.full_box = sales.full_box AND e.marking = sales.marking)
	`, reconcile.SupplierIphandlers)
}

func (s *Store) FillSaleCountry(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.execCount(ctx, `
		UPDATE sales
		SET sale_country = (
			SELECT sh.country FROM shipments sh
			WHERE sh.shipment_id = sales.shipment_id AND sh.country IS NOT NULL)
		WHERE sale_country IS NULL
		  AND shipment_id IS NOT NULL
		  AND EXISTS (
			SELECT 1 FROM shipments sh
			WHERE sh.shipment_id = sales.shipment_id AND sh.country IS NOT NULL)
	`)
}

// markupColumns maps a sale currency onto the customer rate-card column
// holding the broker markup for that currency.
var markupColumns = map[string]string{
	reconcile.CurrencyUSD: "customer_dollar_trans_rate",
	reconcile.CurrencyEUR: "customer_euro_trans_rate",
}

func (s *Store) FillSaleCurrencyMarkup(ctx context.Context, currency string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	col, ok := markupColumns[currency]
	if !ok {
		return 0, fmt.Errorf("no markup column for currency %q", currency)
	}
	query := fmt.Sprintf(`
		UPDATE sales
		SET sale_currency_markup = (
			SELECT c.%s FROM customers c WHERE c.customer_id = sales.customer_id)
		WHERE sale_currency_markup IS NULL
		  AND sale_currency = ?
		  AND customer_id IS NOT NULL
		  AND EXISTS (
			SELECT 1 FROM customers c WHERE c.customer_id = sales.customer_id)
	`, col)
	return s.execCount(ctx, query, currency)
}

// Closed sets guarding the column names interpolated by FillSalePrice.
var (
	priceColumns = map[reconcile.PriceColumn]bool{
		reconcile.PriceKg:     true,
		reconcile.PricePallet: true,
		reconcile.PriceTroll:  true,
	}
	rateCardColumns = map[reconcile.RateCardPrice]bool{
		reconcile.RateConsKg:     true,
		reconcile.RateEqKg:       true,
		reconcile.RateKenKg:      true,
		reconcile.RateColKg:      true,
		reconcile.RateIsrKg:      true,
		reconcile.RateIsrPallet:  true,
		reconcile.RateHollPallet: true,
		reconcile.RateTroll:      true,
	}
)

// FillSalePrice copies one rate-card column onto sales matching the rule's
// service-type substring and country prefix. Country codes are ASCII, so
// LIKE matches them case-insensitively; the type stems are matched byte-wise
// with instr, which is what the source data needs.
func (s *Store) FillSalePrice(ctx context.Context, rule reconcile.SalePriceRule) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !priceColumns[rule.Column] || !rateCardColumns[rule.Source] {
		return 0, fmt.Errorf("pricing rule %q names unknown columns", rule.Name)
	}
	query := fmt.Sprintf(`
		UPDATE sales
		SET %s = (
			SELECT c.%s FROM customers c WHERE c.customer_id = sales.customer_id)
		WHERE %s IS NULL
		  AND customer_id IS NOT NULL
		  AND instr(sale_type, ?) > 0
		  AND sale_country = ?
		  AND EXISTS (
			SELECT 1 FROM customers c
			WHERE c.customer_id = sales.customer_id AND c.%s IS NOT NULL)
	`, rule.Column, rule.Source, rule.Column, rule.Source)
	return s.execCount(ctx, query, rule.TypeContains, rule.Country)
}

func (s *Store) FillSaleCurrencyRate(ctx context.Context, currency string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.execCount(ctx, `
		UPDATE sales
		SET sale_currency_rate = (
			SELECT r.rate FROM currency_rates r
			WHERE r.currency = ? AND r.rate_date = sales.sale_date)
		WHERE sale_currency_rate IS NULL
		  AND sale_currency = ?
		  AND EXISTS (
			SELECT 1 FROM currency_rates r
			WHERE r.currency = ? AND r.rate_date = sales.sale_date)
	`, currency, currency, currency)
}

// saleQuantities maps each unit onto its quantity and price columns.
var saleQuantities = map[reconcile.SaleUnit][2]string{
	reconcile.UnitWeight: {"weight", "sale_price_kg"},
	reconcile.UnitVolume: {"volume", "sale_price_pallet"},
	reconcile.UnitBox:    {"full_box", "sale_price_troll"},
}

// FillSaleTotal computes the ruble total for sales of one currency whose
// price for the unit is known: quantity * price * (daily rate + markup).
func (s *Store) FillSaleTotal(ctx context.Context, currency string, unit reconcile.SaleUnit) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cols, ok := saleQuantities[unit]
	if !ok {
		return 0, fmt.Errorf("unknown sale unit %d", unit)
	}
	qty, price := cols[0], cols[1]
	query := fmt.Sprintf(`
		UPDATE sales
		SET sale_total_rub = %s * %s * (sale_currency_rate + sale_currency_markup)
		WHERE sale_total_rub IS NULL
		  AND sale_currency = ?
		  AND %s IS NOT NULL
		  AND sale_currency_rate IS NOT NULL
		  AND sale_currency_markup IS NOT NULL
	`, qty, price, price)
	return s.execCount(ctx, query, currency)
}

// =============================================================================
// SHIPMENTS AND MARKINGS
// =============================================================================

func (s *Store) FillShipmentCustomerFromMarking(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.execCount(ctx, `
		UPDATE shipments
		SET customer_id = (
			SELECT m.customer_id FROM markings m
			WHERE m.marking_name = shipments.marking AND m.customer_id IS NOT NULL)
		WHERE customer_id IS NULL
		  AND EXISTS (
			SELECT 1 FROM markings m
			WHERE m.marking_name = shipments.marking AND m.customer_id IS NOT NULL)
	`)
}

func (s *Store) FillMarkingCustomer(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.execCount(ctx, `
		UPDATE markings
		SET customer_id = (
			SELECT c.customer_id FROM customers c
			WHERE c.customer_name = markings.marking_customer
			ORDER BY c.customer_id LIMIT 1)
		WHERE customer_id IS NULL
		  AND EXISTS (
			SELECT 1 FROM customers c WHERE c.customer_name = markings.marking_customer)
	`)
}
