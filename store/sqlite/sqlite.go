/*
Package sqlite provides the SQLite-backed implementation of the storage
interfaces of the reconciliation engine.

PURPOSE:
  Implements reconcile.Store (records, dedup, rule fills, operator link
  queries) on SQLite. In production the same patterns apply to PostgreSQL,
  only minor SQL dialect differences.

KEY TABLES:
  shipments:            consignments from the truck reports
  expenses_forever:     costs from the Forever balance ledgers
  expenses_iphandlers:  pre-cooling costs from the IpHandlers portal
  sales:                billing records derived from expenses
  markings:             cargo-label aliases, the customer resolution source
  customers:            billing parties with their rate cards
  currency_rates:       daily central-bank rates
  companies, suppliers, box_type, flower_type, drivers, cars: reference data

LINK FILLS:
  All deterministic fills are single guarded UPDATE statements with
  correlated subqueries. The guard "target IS NULL" makes every fill
  idempotent and means a resolved link is never overwritten.

DATES:
  Calendar dates are stored as YYYY-MM-DD text, so lexicographic comparison
  in SQL matches chronological order.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. In production with PostgreSQL,
  database-level concurrency control handles this instead.

USAGE:
  store, err := sqlite.New("./data/office.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - reconcile/store.go: interface definitions
  - records.go: inserts, lookups, dedup
  - rules.go:   deterministic guarded fills
  - linker.go:  operator pass queries
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/evaigen/auto-office/reconcile"
)

// Store implements reconcile.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS customers (
		customer_id INTEGER PRIMARY KEY AUTOINCREMENT,
		customer_name TEXT NOT NULL,
		customer_address TEXT,
		customer_phone TEXT,
		customer_email TEXT,
		customer_cons_kg NUMERIC,
		customer_eq_kg NUMERIC,
		customer_ken_kg NUMERIC,
		customer_col_kg NUMERIC,
		customer_isr_kg NUMERIC,
		customer_isr_pallet INTEGER,
		customer_holl_pallet INTEGER,
		customer_preecool_kg NUMERIC,
		customer_preecool_awb INTEGER,
		customer_flight_kg NUMERIC,
		customer_troll INTEGER,
		customer_bulb_pallet INTEGER,
		customer_rus_eq_full INTEGER,
		customer_rus_else_full INTEGER,
		customer_rus_big_box INTEGER,
		customer_rus_small_box INTEGER,
		customer_dollar_trans_rate INTEGER,
		customer_euro_trans_rate INTEGER,
		customer_dollar_flow_rate INTEGER,
		customer_euro_flow_rate INTEGER,
		customer_flow_markup NUMERIC,
		customer_trans_markup NUMERIC
	);

	CREATE INDEX IF NOT EXISTS idx_customers_name ON customers(customer_name);

	CREATE TABLE IF NOT EXISTS markings (
		marking_id INTEGER PRIMARY KEY AUTOINCREMENT,
		marking_customer TEXT,
		marking_customer_address TEXT,
		marking_name TEXT NOT NULL,
		customer_id INTEGER REFERENCES customers(customer_id)
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_markings_name ON markings(marking_name);
	CREATE INDEX IF NOT EXISTS idx_markings_customer ON markings(customer_id);

	CREATE TABLE IF NOT EXISTS currency_rates (
		rate_id INTEGER PRIMARY KEY AUTOINCREMENT,
		currency TEXT NOT NULL,
		rate_date TEXT NOT NULL,
		rate NUMERIC NOT NULL,
		UNIQUE(currency, rate_date)
	);

	CREATE TABLE IF NOT EXISTS shipments (
		shipment_id INTEGER PRIMARY KEY AUTOINCREMENT,
		shipment_date TEXT NOT NULL,
		box_amount INTEGER,
		box_full NUMERIC,
		weight_fact INTEGER,
		weight_vol INTEGER,
		volume NUMERIC,
		marking TEXT,
		awb TEXT,
		country TEXT,
		supplier TEXT,
		truck_name TEXT,
		truck_balance TEXT,
		forever_balance TEXT,
		status TEXT,
		comment TEXT,
		customer_id INTEGER,
		expense_forever_id INTEGER,
		expense_iphandlers_id INTEGER,
		supplier_id INTEGER
	);

	-- Natural-key lookup (hot path during ingestion)
	CREATE INDEX IF NOT EXISTS idx_shipments_key
		ON shipments(awb, marking, box_full, truck_name, weight_vol);
	CREATE INDEX IF NOT EXISTS idx_shipments_marking ON shipments(marking);

	CREATE TABLE IF NOT EXISTS expenses_forever (
		expense_id INTEGER PRIMARY KEY AUTOINCREMENT,
		expense_date TEXT NOT NULL,
		expense_type TEXT,
		expense_customer TEXT,
		expense_total_usd NUMERIC,
		expense_total_eur NUMERIC,
		expense_total_rub NUMERIC,
		expense_country TEXT,
		expense_currency TEXT,
		expense_currency_rate NUMERIC,
		awb TEXT,
		content_supplier TEXT,
		marking TEXT,
		full_box NUMERIC,
		weight INTEGER,
		volume NUMERIC,
		balance_code INTEGER,
		balance_currency TEXT,
		customer_id INTEGER,
		shipment_id INTEGER,
		supplier_id INTEGER
	);

	CREATE INDEX IF NOT EXISTS idx_expenses_forever_key
		ON expenses_forever(awb, marking, full_box, expense_date);
	CREATE INDEX IF NOT EXISTS idx_expenses_forever_marking ON expenses_forever(marking);

	CREATE TABLE IF NOT EXISTS expenses_iphandlers (
		expense_id INTEGER PRIMARY KEY AUTOINCREMENT,
		eta_date TEXT NOT NULL,
		load_date TEXT,
		account TEXT,
		expense_total NUMERIC,
		expense_country TEXT,
		expense_currency TEXT,
		awb TEXT,
		marking TEXT,
		box INTEGER,
		full_box NUMERIC,
		weight INTEGER,
		expense_customer TEXT,
		customer_id INTEGER,
		shipment_id INTEGER,
		supplier_id INTEGER
	);

	CREATE INDEX IF NOT EXISTS idx_expenses_iphandlers_key
		ON expenses_iphandlers(awb, marking, full_box, eta_date);

	CREATE TABLE IF NOT EXISTS sales (
		sale_id INTEGER PRIMARY KEY AUTOINCREMENT,
		sale_date TEXT NOT NULL,
		sale_type TEXT,
		marking TEXT,
		full_box NUMERIC,
		sale_customer TEXT,
		content_supplier TEXT,
		sale_total_usd NUMERIC,
		sale_total_eur NUMERIC,
		sale_total_rub NUMERIC,
		sale_currency TEXT,
		sale_currency_rate NUMERIC,
		volume NUMERIC,
		sale_country TEXT,
		weight INTEGER,
		awb TEXT,
		sale_currency_markup NUMERIC,
		sale_price_kg NUMERIC,
		sale_price_pallet INTEGER,
		sale_price_troll INTEGER,
		customer_id INTEGER,
		shipment_id INTEGER,
		expense_forever_id INTEGER,
		expense_iphandlers_id INTEGER,
		supplier_id INTEGER
	);

	CREATE INDEX IF NOT EXISTS idx_sales_key
		ON sales(awb, marking, full_box, sale_date);
	CREATE INDEX IF NOT EXISTS idx_sales_marking ON sales(marking);

	CREATE TABLE IF NOT EXISTS companies (
		company_id INTEGER PRIMARY KEY AUTOINCREMENT,
		company_name TEXT NOT NULL UNIQUE,
		company_address TEXT,
		company_branch TEXT
	);

	CREATE TABLE IF NOT EXISTS suppliers (
		supplier_id INTEGER PRIMARY KEY AUTOINCREMENT,
		supplier_name TEXT NOT NULL UNIQUE,
		supplier_country TEXT
	);

	CREATE TABLE IF NOT EXISTS box_type (
		box_id INTEGER PRIMARY KEY AUTOINCREMENT,
		box_name TEXT NOT NULL UNIQUE,
		box_per_pallet INTEGER,
		box_accountable TEXT
	);

	CREATE TABLE IF NOT EXISTS flower_type (
		flower_id INTEGER PRIMARY KEY AUTOINCREMENT,
		flower_name TEXT NOT NULL UNIQUE,
		flower_sort TEXT,
		flower_plantation TEXT
	);

	CREATE TABLE IF NOT EXISTS drivers (
		driver_id INTEGER PRIMARY KEY AUTOINCREMENT,
		driver_name TEXT NOT NULL UNIQUE,
		driver_phone TEXT,
		driver_email TEXT
	);

	CREATE TABLE IF NOT EXISTS cars (
		car_id INTEGER PRIMARY KEY AUTOINCREMENT,
		car_brand TEXT,
		car_plate TEXT NOT NULL UNIQUE,
		car_year INTEGER,
		car_capacity INTEGER
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// TABLE METADATA
// =============================================================================

// tableInfo maps a record kind onto its table and link columns. The operator
// pass queries and bulk link updates are built from it, so kind dispatch
// never turns into per-table copies of the same SQL.
type tableInfo struct {
	name        string
	idCol       string
	markingCol  string
	dateCol     string
	customerCol string
	shipmentCol string // empty when the kind has no shipment link
}

var tables = map[reconcile.RecordKind]tableInfo{
	reconcile.KindShipment: {
		name: "shipments", idCol: "shipment_id", markingCol: "marking",
		dateCol: "shipment_date", customerCol: "customer_id",
	},
	reconcile.KindExpenseForever: {
		name: "expenses_forever", idCol: "expense_id", markingCol: "marking",
		dateCol: "expense_date", customerCol: "customer_id", shipmentCol: "shipment_id",
	},
	reconcile.KindExpenseIphandlers: {
		name: "expenses_iphandlers", idCol: "expense_id", markingCol: "marking",
		dateCol: "eta_date", customerCol: "customer_id", shipmentCol: "shipment_id",
	},
	reconcile.KindSale: {
		name: "sales", idCol: "sale_id", markingCol: "marking",
		dateCol: "sale_date", customerCol: "customer_id", shipmentCol: "shipment_id",
	},
}

func tableFor(kind reconcile.RecordKind) (tableInfo, error) {
	t, ok := tables[kind]
	if !ok {
		return tableInfo{}, reconcile.ErrUnknownKind
	}
	return t, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func fmtDate(t time.Time) string {
	return t.Format(time.DateOnly)
}

func parseDate(s string) time.Time {
	t, _ := time.Parse(time.DateOnly, s)
	return t
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullInt(i *int64) sql.NullInt64 {
	if i == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *i, Valid: true}
}

func intPtr(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}

// execCount runs one statement and returns its affected-row count.
func (s *Store) execCount(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// placeholders renders "?, ?, ?" for n arguments.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
