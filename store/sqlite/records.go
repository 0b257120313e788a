package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/evaigen/auto-office/reconcile"
)

// Column lists shared by the scanners below. Order matters.
const (
	shipmentCols = `shipment_id, shipment_date, box_amount, box_full, weight_fact, weight_vol,
		volume, marking, awb, country, supplier, truck_name, truck_balance, forever_balance,
		status, comment, customer_id, expense_forever_id, expense_iphandlers_id, supplier_id`

	foreverCols = `expense_id, expense_date, expense_type, expense_customer, expense_total_usd,
		expense_total_eur, expense_total_rub, expense_country, expense_currency,
		expense_currency_rate, awb, content_supplier, marking, full_box, weight, volume,
		balance_code, balance_currency, customer_id, shipment_id, supplier_id`

	iphandlersCols = `expense_id, eta_date, load_date, account, expense_total, expense_country,
		expense_currency, awb, marking, box, full_box, weight, expense_customer,
		customer_id, shipment_id, supplier_id`

	saleCols = `sale_id, sale_date, sale_type, marking, full_box, sale_customer, content_supplier,
		sale_total_usd, sale_total_eur, sale_total_rub, sale_currency, sale_currency_rate,
		volume, sale_country, weight, awb, sale_currency_markup, sale_price_kg,
		sale_price_pallet, sale_price_troll, customer_id, shipment_id, expense_forever_id,
		expense_iphandlers_id, supplier_id`

	markingCols = `marking_id, marking_customer, marking_customer_address, marking_name, customer_id`
)

type scanner interface {
	Scan(dest ...any) error
}

// =============================================================================
// INSERTS
// =============================================================================

func (s *Store) InsertShipment(ctx context.Context, sh reconcile.Shipment) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO shipments
		(shipment_date, box_amount, box_full, weight_fact, weight_vol, volume, marking, awb,
		 country, supplier, truck_name, truck_balance, forever_balance, status, comment,
		 customer_id, expense_forever_id, expense_iphandlers_id, supplier_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	res, err := s.db.ExecContext(ctx, query,
		fmtDate(sh.Date), sh.BoxAmount, sh.BoxFull, sh.WeightFact, sh.WeightVol, sh.Volume,
		sh.Marking, sh.AWB, nullString(sh.Country), sh.Supplier, sh.TruckName,
		sh.TruckBalance, sh.ForeverBalance, sh.Status, sh.Comment,
		nullInt(sh.CustomerID), nullInt(sh.ExpenseForeverID), nullInt(sh.ExpenseIphandlersID),
		nullInt(sh.SupplierID),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert shipment: %w", err)
	}
	return res.LastInsertId()
}

func (s *Store) InsertExpenseForever(ctx context.Context, e reconcile.ExpenseForever) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO expenses_forever
		(expense_date, expense_type, expense_customer, expense_total_usd, expense_total_eur,
		 expense_total_rub, expense_country, expense_currency, expense_currency_rate, awb,
		 content_supplier, marking, full_box, weight, volume, balance_code, balance_currency,
		 customer_id, shipment_id, supplier_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	res, err := s.db.ExecContext(ctx, query,
		fmtDate(e.Date), e.Type, nullString(e.CustomerName), e.TotalUSD, e.TotalEUR, e.TotalRUB,
		nullString(e.Country), e.Currency, e.CurrencyRate, e.AWB, e.ContentSupplier,
		e.Marking, e.FullBox, e.Weight, e.Volume, e.BalanceCode, e.BalanceCurrency,
		nullInt(e.CustomerID), nullInt(e.ShipmentID), nullInt(e.SupplierID),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert forever expense: %w", err)
	}
	return res.LastInsertId()
}

func (s *Store) InsertExpenseIphandlers(ctx context.Context, e reconcile.ExpenseIphandlers) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO expenses_iphandlers
		(eta_date, load_date, account, expense_total, expense_country, expense_currency, awb,
		 marking, box, full_box, weight, expense_customer, customer_id, shipment_id, supplier_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	res, err := s.db.ExecContext(ctx, query,
		fmtDate(e.ETADate), e.LoadDate, e.Account, e.Total, nullString(e.Country), e.Currency,
		e.AWB, e.Marking, e.Box, e.FullBox, e.Weight, nullString(e.CustomerName),
		nullInt(e.CustomerID), nullInt(e.ShipmentID), nullInt(e.SupplierID),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert iphandlers expense: %w", err)
	}
	return res.LastInsertId()
}

func (s *Store) InsertSale(ctx context.Context, sale reconcile.Sale) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO sales
		(sale_date, sale_type, marking, full_box, sale_customer, content_supplier,
		 sale_total_usd, sale_total_eur, sale_total_rub, sale_currency, sale_currency_rate,
		 volume, sale_country, weight, awb, sale_currency_markup, sale_price_kg,
		 sale_price_pallet, sale_price_troll, customer_id, shipment_id, expense_forever_id,
		 expense_iphandlers_id, supplier_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	res, err := s.db.ExecContext(ctx, query,
		fmtDate(sale.Date), sale.Type, sale.Marking, sale.FullBox, nullString(sale.CustomerName),
		sale.ContentSupplier, sale.TotalUSD, sale.TotalEUR, sale.TotalRUB, sale.Currency,
		sale.CurrencyRate, sale.Volume, nullString(sale.Country), sale.Weight, sale.AWB,
		sale.CurrencyMarkup, sale.PriceKg, nullInt(sale.PricePallet), nullInt(sale.PriceTroll),
		nullInt(sale.CustomerID), nullInt(sale.ShipmentID), nullInt(sale.ExpenseForeverID),
		nullInt(sale.ExpenseIphandlersID), nullInt(sale.SupplierID),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert sale: %w", err)
	}
	return res.LastInsertId()
}

func (s *Store) InsertMarking(ctx context.Context, m reconcile.Marking) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO markings (marking_customer, marking_customer_address, marking_name, customer_id)
		VALUES (?, ?, ?, ?)
	`
	res, err := s.db.ExecContext(ctx, query,
		m.CustomerName, m.CustomerAddress, m.Name, nullInt(m.CustomerID))
	if err != nil {
		if isUniqueConstraintError(err) {
			// Already aliased, the caller dedups by name first.
			return 0, fmt.Errorf("marking %q already exists: %w", m.Name, err)
		}
		return 0, fmt.Errorf("failed to insert marking: %w", err)
	}
	return res.LastInsertId()
}

// InsertCustomer saves a billing party with its full rate card.
func (s *Store) InsertCustomer(ctx context.Context, c reconcile.Customer) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO customers
		(customer_name, customer_address, customer_phone, customer_email,
		 customer_cons_kg, customer_eq_kg, customer_ken_kg, customer_col_kg, customer_isr_kg,
		 customer_isr_pallet, customer_holl_pallet, customer_preecool_kg, customer_preecool_awb,
		 customer_flight_kg, customer_troll, customer_bulb_pallet, customer_rus_eq_full,
		 customer_rus_else_full, customer_rus_big_box, customer_rus_small_box,
		 customer_dollar_trans_rate, customer_euro_trans_rate, customer_dollar_flow_rate,
		 customer_euro_flow_rate, customer_flow_markup, customer_trans_markup)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	r := c.Rates
	res, err := s.db.ExecContext(ctx, query,
		c.Name, c.Address, c.Phone, c.Email,
		r.ConsKg, r.EqKg, r.KenKg, r.ColKg, r.IsrKg,
		r.IsrPallet, r.HollPallet, r.PreecoolKg, r.PreecoolAWB,
		r.FlightKg, r.Troll, r.BulbPallet, r.RusEqFull,
		r.RusElseFull, r.RusBigBox, r.RusSmallBox,
		r.DollarTransRate, r.EuroTransRate, r.DollarFlowRate,
		r.EuroFlowRate, r.FlowMarkup, r.TransMarkup,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert customer: %w", err)
	}
	return res.LastInsertId()
}

// UpsertCurrencyRate saves one daily rate; re-importing a day overwrites it.
func (s *Store) UpsertCurrencyRate(ctx context.Context, r reconcile.CurrencyRate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO currency_rates (currency, rate_date, rate)
		VALUES (?, ?, ?)
		ON CONFLICT(currency, rate_date) DO UPDATE SET rate = excluded.rate
	`
	_, err := s.db.ExecContext(ctx, query, r.Currency, fmtDate(r.Date), r.Rate)
	return err
}

// =============================================================================
// REFERENCE DATA
// =============================================================================

// Reference inserts ignore duplicates on the name column, so the starter
// import can be replayed.

func (s *Store) InsertCompany(ctx context.Context, c reconcile.Company) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO companies (company_name, company_address, company_branch) VALUES (?, ?, ?)`,
		c.Name, c.Address, c.Branch)
	return err
}

func (s *Store) InsertSupplier(ctx context.Context, sup reconcile.Supplier) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO suppliers (supplier_name, supplier_country) VALUES (?, ?)`,
		sup.Name, sup.Country)
	return err
}

func (s *Store) InsertBoxType(ctx context.Context, b reconcile.BoxType) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO box_type (box_name, box_per_pallet, box_accountable) VALUES (?, ?, ?)`,
		b.Name, b.PerPallet, b.Accountable)
	return err
}

func (s *Store) InsertFlowerType(ctx context.Context, f reconcile.FlowerType) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO flower_type (flower_name, flower_sort, flower_plantation) VALUES (?, ?, ?)`,
		f.Name, f.Type, f.Plantation)
	return err
}

func (s *Store) InsertDriver(ctx context.Context, d reconcile.Driver) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO drivers (driver_name, driver_phone, driver_email) VALUES (?, ?, ?)`,
		d.Name, d.Phone, d.Email)
	return err
}

func (s *Store) InsertCar(ctx context.Context, c reconcile.Car) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO cars (car_brand, car_plate, car_year, car_capacity) VALUES (?, ?, ?, ?)`,
		c.Brand, c.Plate, c.Year, c.Capacity)
	return err
}

// =============================================================================
// DEDUP QUERIES
// =============================================================================

func (s *Store) HasShipment(ctx context.Context, k reconcile.ShipmentKey) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM shipments
		 WHERE awb = ? AND marking = ? AND box_full = ? AND truck_name = ? AND weight_vol = ?`,
		k.AWB, k.Marking, k.BoxFull, k.TruckName, k.WeightVol,
	).Scan(&count)
	return count > 0, err
}

func (s *Store) HasExpenseForever(ctx context.Context, k reconcile.ExpenseKey) (bool, error) {
	return s.hasByExpenseKey(ctx, "expenses_forever", "expense_date", k)
}

func (s *Store) HasExpenseIphandlers(ctx context.Context, k reconcile.ExpenseKey) (bool, error) {
	return s.hasByExpenseKey(ctx, "expenses_iphandlers", "eta_date", k)
}

func (s *Store) HasSale(ctx context.Context, k reconcile.ExpenseKey) (bool, error) {
	return s.hasByExpenseKey(ctx, "sales", "sale_date", k)
}

func (s *Store) hasByExpenseKey(ctx context.Context, table, dateCol string, k reconcile.ExpenseKey) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	query := fmt.Sprintf(
		`SELECT COUNT(*) FROM %s WHERE awb = ? AND marking = ? AND full_box = ? AND %s = ?`,
		table, dateCol)
	err := s.db.QueryRowContext(ctx, query, k.AWB, k.Marking, k.FullBox, fmtDate(k.Date)).Scan(&count)
	return count > 0, err
}

func (s *Store) HasMarking(ctx context.Context, name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM markings WHERE marking_name = ?`, name).Scan(&count)
	return count > 0, err
}

// =============================================================================
// LOOKUPS
// =============================================================================

func (s *Store) ShipmentByID(ctx context.Context, id int64) (*reconcile.Shipment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT `+shipmentCols+` FROM shipments WHERE shipment_id = ?`, id)
	sh, err := scanShipment(row)
	if err == sql.ErrNoRows {
		return nil, reconcile.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sh, nil
}

func (s *Store) MarkingByName(ctx context.Context, name string) (*reconcile.Marking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT `+markingCols+` FROM markings WHERE marking_name = ?`, name)
	m, err := scanMarking(row)
	if err == sql.ErrNoRows {
		return nil, reconcile.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *Store) CustomerByID(ctx context.Context, id int64) (*reconcile.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT customer_id, customer_name, customer_address, customer_phone, customer_email,
		       customer_cons_kg, customer_eq_kg, customer_ken_kg, customer_col_kg,
		       customer_isr_kg, customer_isr_pallet, customer_holl_pallet, customer_preecool_kg,
		       customer_preecool_awb, customer_flight_kg, customer_troll, customer_bulb_pallet,
		       customer_rus_eq_full, customer_rus_else_full, customer_rus_big_box,
		       customer_rus_small_box, customer_dollar_trans_rate, customer_euro_trans_rate,
		       customer_dollar_flow_rate, customer_euro_flow_rate, customer_flow_markup,
		       customer_trans_markup
		FROM customers WHERE customer_id = ?
	`
	var (
		c                      reconcile.Customer
		address, phone, email  sql.NullString
	)
	r := &c.Rates
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&c.ID, &c.Name, &address, &phone, &email,
		&r.ConsKg, &r.EqKg, &r.KenKg, &r.ColKg,
		&r.IsrKg, &r.IsrPallet, &r.HollPallet, &r.PreecoolKg,
		&r.PreecoolAWB, &r.FlightKg, &r.Troll, &r.BulbPallet,
		&r.RusEqFull, &r.RusElseFull, &r.RusBigBox,
		&r.RusSmallBox, &r.DollarTransRate, &r.EuroTransRate,
		&r.DollarFlowRate, &r.EuroFlowRate, &r.FlowMarkup,
		&r.TransMarkup,
	)
	if err == sql.ErrNoRows {
		return nil, reconcile.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	c.Address, c.Phone, c.Email = address.String, phone.String, email.String
	return &c, nil
}

// =============================================================================
// LIST QUERIES (admin surface)
// =============================================================================

func (s *Store) ListCustomers(ctx context.Context) ([]reconcile.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT customer_id, customer_name, customer_address, customer_phone, customer_email
		 FROM customers ORDER BY customer_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var customers []reconcile.Customer
	for rows.Next() {
		var c reconcile.Customer
		var address, phone, email sql.NullString
		if err := rows.Scan(&c.ID, &c.Name, &address, &phone, &email); err != nil {
			return nil, err
		}
		c.Address, c.Phone, c.Email = address.String, phone.String, email.String
		customers = append(customers, c)
	}
	return customers, rows.Err()
}

func (s *Store) ListMarkings(ctx context.Context) ([]reconcile.Marking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+markingCols+` FROM markings ORDER BY marking_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var markings []reconcile.Marking
	for rows.Next() {
		m, err := scanMarking(rows)
		if err != nil {
			return nil, err
		}
		markings = append(markings, m)
	}
	return markings, rows.Err()
}

func (s *Store) ListShipments(ctx context.Context, limit int) ([]reconcile.Shipment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+shipmentCols+` FROM shipments ORDER BY shipment_id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var shipments []reconcile.Shipment
	for rows.Next() {
		sh, err := scanShipment(rows)
		if err != nil {
			return nil, err
		}
		shipments = append(shipments, sh)
	}
	return shipments, rows.Err()
}

func (s *Store) ListExpensesForever(ctx context.Context, limit int) ([]reconcile.ExpenseForever, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+foreverCols+` FROM expenses_forever ORDER BY expense_id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var expenses []reconcile.ExpenseForever
	for rows.Next() {
		e, err := scanExpenseForever(rows)
		if err != nil {
			return nil, err
		}
		expenses = append(expenses, e)
	}
	return expenses, rows.Err()
}

func (s *Store) ListExpensesIphandlers(ctx context.Context, limit int) ([]reconcile.ExpenseIphandlers, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+iphandlersCols+` FROM expenses_iphandlers ORDER BY expense_id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var expenses []reconcile.ExpenseIphandlers
	for rows.Next() {
		e, err := scanExpenseIphandlers(rows)
		if err != nil {
			return nil, err
		}
		expenses = append(expenses, e)
	}
	return expenses, rows.Err()
}

func (s *Store) ListSales(ctx context.Context, limit int) ([]reconcile.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+saleCols+` FROM sales ORDER BY sale_id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sales []reconcile.Sale
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, err
		}
		sales = append(sales, sale)
	}
	return sales, rows.Err()
}

// LinkGap is the unresolved-link tally of one table.
type LinkGap struct {
	Kind            reconcile.RecordKind `json:"kind"`
	MissingCustomer int64                `json:"missing_customer"`
	MissingShipment int64                `json:"missing_shipment"`
}

// UnresolvedCounts reports, per kind, how many records still carry null
// links. The zero-cargo sentinel counts as resolved.
func (s *Store) UnresolvedCounts(ctx context.Context) ([]LinkGap, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var gaps []LinkGap
	for _, kind := range reconcile.CustomerPassOrder {
		t := tables[kind]
		gap := LinkGap{Kind: kind}

		query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE %s IS NULL`, t.name, t.customerCol)
		if err := s.db.QueryRowContext(ctx, query).Scan(&gap.MissingCustomer); err != nil {
			return nil, err
		}
		if t.shipmentCol != "" {
			query = fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE %s IS NULL`, t.name, t.shipmentCol)
			if err := s.db.QueryRowContext(ctx, query).Scan(&gap.MissingShipment); err != nil {
				return nil, err
			}
		}
		gaps = append(gaps, gap)
	}
	return gaps, nil
}

// =============================================================================
// SCANNERS
// =============================================================================

func scanShipment(sc scanner) (reconcile.Shipment, error) {
	var (
		sh                        reconcile.Shipment
		date                      string
		country                   sql.NullString
		customerID, foreverID     sql.NullInt64
		iphandlersID, supplierID  sql.NullInt64
	)
	err := sc.Scan(
		&sh.ID, &date, &sh.BoxAmount, &sh.BoxFull, &sh.WeightFact, &sh.WeightVol,
		&sh.Volume, &sh.Marking, &sh.AWB, &country, &sh.Supplier, &sh.TruckName,
		&sh.TruckBalance, &sh.ForeverBalance, &sh.Status, &sh.Comment,
		&customerID, &foreverID, &iphandlersID, &supplierID,
	)
	if err != nil {
		return sh, err
	}
	sh.Date = parseDate(date)
	sh.Country = country.String
	sh.CustomerID = intPtr(customerID)
	sh.ExpenseForeverID = intPtr(foreverID)
	sh.ExpenseIphandlersID = intPtr(iphandlersID)
	sh.SupplierID = intPtr(supplierID)
	return sh, nil
}

func scanExpenseForever(sc scanner) (reconcile.ExpenseForever, error) {
	var (
		e                                reconcile.ExpenseForever
		date                             string
		customerName, country            sql.NullString
		customerID, shipmentID, supplier sql.NullInt64
	)
	err := sc.Scan(
		&e.ID, &date, &e.Type, &customerName, &e.TotalUSD,
		&e.TotalEUR, &e.TotalRUB, &country, &e.Currency,
		&e.CurrencyRate, &e.AWB, &e.ContentSupplier, &e.Marking, &e.FullBox, &e.Weight,
		&e.Volume, &e.BalanceCode, &e.BalanceCurrency, &customerID, &shipmentID, &supplier,
	)
	if err != nil {
		return e, err
	}
	e.Date = parseDate(date)
	e.CustomerName = customerName.String
	e.Country = country.String
	e.CustomerID = intPtr(customerID)
	e.ShipmentID = intPtr(shipmentID)
	e.SupplierID = intPtr(supplier)
	return e, nil
}

func scanExpenseIphandlers(sc scanner) (reconcile.ExpenseIphandlers, error) {
	var (
		e                                reconcile.ExpenseIphandlers
		eta                              string
		country, customerName            sql.NullString
		customerID, shipmentID, supplier sql.NullInt64
	)
	err := sc.Scan(
		&e.ID, &eta, &e.LoadDate, &e.Account, &e.Total, &country,
		&e.Currency, &e.AWB, &e.Marking, &e.Box, &e.FullBox, &e.Weight, &customerName,
		&customerID, &shipmentID, &supplier,
	)
	if err != nil {
		return e, err
	}
	e.ETADate = parseDate(eta)
	e.Country = country.String
	e.CustomerName = customerName.String
	e.CustomerID = intPtr(customerID)
	e.ShipmentID = intPtr(shipmentID)
	e.SupplierID = intPtr(supplier)
	return e, nil
}

func scanSale(sc scanner) (reconcile.Sale, error) {
	var (
		sale                     reconcile.Sale
		date                     string
		customerName, country    sql.NullString
		pricePallet, priceTroll  sql.NullInt64
		customerID, shipmentID   sql.NullInt64
		foreverID, iphandlersID  sql.NullInt64
		supplierID               sql.NullInt64
	)
	err := sc.Scan(
		&sale.ID, &date, &sale.Type, &sale.Marking, &sale.FullBox, &customerName,
		&sale.ContentSupplier, &sale.TotalUSD, &sale.TotalEUR, &sale.TotalRUB,
		&sale.Currency, &sale.CurrencyRate, &sale.Volume, &country, &sale.Weight,
		&sale.AWB, &sale.CurrencyMarkup, &sale.PriceKg, &pricePallet, &priceTroll,
		&customerID, &shipmentID, &foreverID, &iphandlersID, &supplierID,
	)
	if err != nil {
		return sale, err
	}
	sale.Date = parseDate(date)
	sale.CustomerName = customerName.String
	sale.Country = country.String
	sale.PricePallet = intPtr(pricePallet)
	sale.PriceTroll = intPtr(priceTroll)
	sale.CustomerID = intPtr(customerID)
	sale.ShipmentID = intPtr(shipmentID)
	sale.ExpenseForeverID = intPtr(foreverID)
	sale.ExpenseIphandlersID = intPtr(iphandlersID)
	sale.SupplierID = intPtr(supplierID)
	return sale, nil
}

func scanMarking(sc scanner) (reconcile.Marking, error) {
	var (
		m                      reconcile.Marking
		customer, address      sql.NullString
		customerID             sql.NullInt64
	)
	err := sc.Scan(&m.ID, &customer, &address, &m.Name, &customerID)
	if err != nil {
		return m, err
	}
	m.CustomerName = customer.String
	m.CustomerAddress = address.String
	m.CustomerID = intPtr(customerID)
	return m, nil
}
