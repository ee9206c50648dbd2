/*
Package sqldb provides the SQL-backed implementation of the storage interfaces.

PURPOSE:
  Implements every persistence interface of the service on database/sql.
  The same SQL runs on SQLite (embedded, default) and PostgreSQL
  (hosted); queries are written with '?' placeholders and rebound to
  $n for PostgreSQL.

INTERFACES IMPLEMENTED:
  inventory.TxStore:   Items, vendors, purchases, issues, registers
  report.Source:       Raw purchase/issue rows for the ledger report
  report.OverlayStore: Transaction metadata (signatures, remarks, custom balances)
  settings.Store:      Persisted application settings

KEY TABLES:
  items, vendors                      Catalog
  purchases, purchase_items           Goods received
  stock_issues, stock_issue_items     Goods issued
  transaction_metadata                Report overlay, unique per
                                      (transaction_id, transaction_type, item_id)
  strength_categories, utensils       Registers
  app_settings                        Single settings row

STORAGE FORMATS:
  Decimals are canonical decimal TEXT so both engines round-trip exactly.
  Business dates are YYYY-MM-DD TEXT. Timestamps are fixed-width UTC
  TEXT that sorts lexically.

CONCURRENCY:
  Item stock writes are compare-and-swap on items.version. SQLite is
  opened with a single connection, which serializes writers and keeps
  ":memory:" databases on one connection. PostgreSQL uses the pool.

USAGE:
  store, err := sqldb.New("./data/provisions.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - inventory/store.go: Interface definitions
  - report/source.go: Report interfaces
*/
package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/warp/provision-ledger/inventory"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// timeNow is replaced in tests.
var timeNow = time.Now

// timestampLayout is fixed-width so TEXT ordering matches time ordering.
const timestampLayout = "2006-01-02T15:04:05.000000Z"

type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store implements all storage interfaces on a *sql.DB.
// Inside WithTx the same type runs against the *sql.Tx.
type Store struct {
	db     *sql.DB
	ex     executor
	driver string
	inTx   bool
}

type Options struct {
	MaxOpenConns int
}

// New opens a SQLite store at dbPath. Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	return Open(DriverSQLite, dbPath, Options{})
}

// Open opens and migrates a store for the given driver.
func Open(driver, dsn string, opts Options) (*Store, error) {
	switch driver {
	case DriverSQLite:
		if !strings.Contains(dsn, "?") {
			dsn += "?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000"
		}
	case DriverPostgres:
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if driver == DriverSQLite {
		db.SetMaxOpenConns(1)
	} else if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}

	store := NewWithDB(db, driver)
	if err := store.migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// NewWithDB wraps an existing connection without migrating it.
func NewWithDB(db *sql.DB, driver string) *Store {
	return &Store{db: db, ex: db, driver: driver}
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Driver returns the database driver name.
func (s *Store) Driver() string { return s.driver }

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx executes fn within a database transaction. Nested calls join the
// outer transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store inventory.Store) error) error {
	if s.inTx {
		return fn(s)
	}

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return inventory.Persistence("begin transaction", err)
	}
	defer sqlTx.Rollback()

	txStore := &Store{db: s.db, ex: sqlTx, driver: s.driver, inTx: true}
	if err := fn(txStore); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return inventory.Persistence("commit transaction", err)
	}
	return nil
}

// =============================================================================
// SCHEMA
// =============================================================================

const schema = `
	-- Catalog
	CREATE TABLE IF NOT EXISTS items (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		unit TEXT NOT NULL,
		current_stock TEXT NOT NULL DEFAULT '0',
		rate_per_unit TEXT NOT NULL DEFAULT '0',
		danger_threshold TEXT NOT NULL DEFAULT '30',
		medium_threshold TEXT NOT NULL DEFAULT '60',
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		version INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_items_name ON items(name);

	CREATE TABLE IF NOT EXISTS vendors (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		contact_person TEXT NOT NULL DEFAULT '',
		phone TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL DEFAULT '',
		address TEXT NOT NULL DEFAULT '',
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Purchases
	CREATE TABLE IF NOT EXISTS purchases (
		id TEXT PRIMARY KEY,
		bill_no TEXT NOT NULL,
		vendor_id TEXT NOT NULL REFERENCES vendors(id),
		purchase_date TEXT NOT NULL,
		total_amount TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_purchases_date ON purchases(purchase_date DESC, created_at DESC);

	CREATE TABLE IF NOT EXISTS purchase_items (
		id TEXT PRIMARY KEY,
		purchase_id TEXT NOT NULL REFERENCES purchases(id),
		item_id TEXT NOT NULL REFERENCES items(id),
		quantity TEXT NOT NULL,
		damaged_quantity TEXT NOT NULL DEFAULT '0',
		rate_per_unit TEXT NOT NULL,
		mrp TEXT,
		discount_type TEXT NOT NULL DEFAULT '',
		discount_value TEXT NOT NULL DEFAULT '0',
		total_price TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	-- One line per item per purchase: the report key relies on it
	CREATE UNIQUE INDEX IF NOT EXISTS idx_purchase_items_unique
		ON purchase_items(purchase_id, item_id);
	CREATE INDEX IF NOT EXISTS idx_purchase_items_item ON purchase_items(item_id);

	-- Stock issues
	CREATE TABLE IF NOT EXISTS stock_issues (
		id TEXT PRIMARY KEY,
		issue_date TEXT NOT NULL,
		issue_type TEXT NOT NULL,
		total_value TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS stock_issue_items (
		id TEXT PRIMARY KEY,
		issue_id TEXT NOT NULL REFERENCES stock_issues(id),
		item_id TEXT NOT NULL REFERENCES items(id),
		quantity TEXT NOT NULL,
		rate_per_unit TEXT NOT NULL,
		total_price TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_stock_issue_items_unique
		ON stock_issue_items(issue_id, item_id);
	CREATE INDEX IF NOT EXISTS idx_stock_issue_items_item ON stock_issue_items(item_id);

	-- Report overlay
	CREATE TABLE IF NOT EXISTS transaction_metadata (
		id TEXT PRIMARY KEY,
		transaction_id TEXT NOT NULL,
		transaction_type TEXT NOT NULL,
		item_id TEXT NOT NULL,
		principal_signature TEXT,
		dep_warden_signature TEXT,
		remarks TEXT,
		custom_balance_quantity TEXT,
		custom_balance_amount TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		UNIQUE (transaction_id, transaction_type, item_id)
	);

	-- Registers
	CREATE TABLE IF NOT EXISTS strength_categories (
		id TEXT PRIMARY KEY,
		category_name TEXT NOT NULL,
		student_count INTEGER NOT NULL DEFAULT 0,
		assigned_amount TEXT NOT NULL DEFAULT '0',
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS utensils (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		capacity TEXT NOT NULL DEFAULT '',
		current_quantity INTEGER NOT NULL DEFAULT 0,
		damaged_quantity INTEGER NOT NULL DEFAULT 0,
		replacement_needed INTEGER NOT NULL DEFAULT 0,
		unit TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Settings (single row, id = 1)
	CREATE TABLE IF NOT EXISTS app_settings (
		id INTEGER PRIMARY KEY,
		password_protection BOOLEAN NOT NULL DEFAULT FALSE,
		password_hash TEXT NOT NULL DEFAULT '',
		allow_previous_date_entry BOOLEAN NOT NULL DEFAULT FALSE,
		updated_at TEXT NOT NULL
	);
`

func (s *Store) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// resetOrder lists business tables children first.
var resetOrder = []string{
	"stock_issue_items",
	"purchase_items",
	"transaction_metadata",
	"stock_issues",
	"purchases",
	"utensils",
	"strength_categories",
	"items",
	"vendors",
}

// ResetAll deletes every business row in one transaction. Settings survive.
func (s *Store) ResetAll(ctx context.Context) error {
	return s.WithTx(ctx, func(st inventory.Store) error {
		tx := st.(*Store)
		for _, table := range resetOrder {
			if _, err := tx.exec(ctx, "DELETE FROM "+table); err != nil {
				return inventory.Persistence("delete "+table, err)
			}
		}
		return nil
	})
}

// =============================================================================
// QUERY HELPERS
// =============================================================================

// rebind converts '?' placeholders to $1..$n for PostgreSQL.
func (s *Store) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 16)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *Store) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.ex.ExecContext(ctx, s.rebind(query), args...)
}

func (s *Store) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.ex.QueryContext(ctx, s.rebind(query), args...)
}

func (s *Store) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return s.ex.QueryRowContext(ctx, s.rebind(query), args...)
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		t = timeNow()
	}
	return t.UTC().Format(timestampLayout)
}

func parseTimestamp(s string) time.Time {
	t, err := time.Parse(timestampLayout, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339Nano, s)
	}
	return t
}

func formatDate(t time.Time) string {
	return t.Format(inventory.DateLayout)
}

func parseDate(s string) time.Time {
	t, _ := inventory.ParseDate(s)
	return t
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}
