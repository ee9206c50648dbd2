/*
store.go - Persistence interfaces for the inventory engine

PURPOSE:
  Defines the interface between inventory logic and the database.
  Implementations: store/sqldb (SQLite and PostgreSQL).

KEY INTERFACES:
  ItemStore:     Items, including the version-checked stock write
  VendorStore:   Vendors
  PurchaseStore: Purchase headers with their lines
  IssueStore:    Stock issue headers with their lines
  RegisterStore: Strength categories and utensils
  TxStore:       Store plus atomic multi-table writes

NOT-FOUND CONVENTION:
  Get methods return (nil, nil) when the record doesn't exist. Callers
  turn that into a NotFoundError with the context they have.

STOCK WRITES:
  UpdateItemStock is a compare-and-swap on Item.Version. When the
  stored version differs from expectedVersion nothing is written and
  ErrConflict is returned. SaveItem never touches stock, rate or version
  of an existing item.

SEE ALSO:
  - stock.go: The only caller of UpdateItemStock
  - store/sqldb: Concrete implementation
*/
package inventory

import (
	"context"

	"github.com/shopspring/decimal"
)

// =============================================================================
// STORE - Interfaces for inventory persistence
// =============================================================================

type ItemStore interface {
	GetItem(ctx context.Context, id ItemID) (*Item, error)
	ListItems(ctx context.Context, includeInactive bool) ([]Item, error)

	// SaveItem inserts a new item or updates the metadata of an existing one.
	SaveItem(ctx context.Context, item Item) error

	// UpdateItemStock writes stock and rate when the stored version matches.
	UpdateItemStock(ctx context.Context, id ItemID, stock, rate decimal.Decimal, expectedVersion int64) error
}

type VendorStore interface {
	GetVendor(ctx context.Context, id VendorID) (*Vendor, error)
	ListVendors(ctx context.Context, includeInactive bool) ([]Vendor, error)
	SaveVendor(ctx context.Context, vendor Vendor) error
}

type PurchaseStore interface {
	// InsertPurchase writes the header and all of its lines.
	InsertPurchase(ctx context.Context, p Purchase) error
	GetPurchase(ctx context.Context, id PurchaseID) (*Purchase, error)
	ListPurchases(ctx context.Context, limit int) ([]Purchase, error)
	UpdatePurchaseLine(ctx context.Context, line PurchaseLine) error
	UpdatePurchaseTotal(ctx context.Context, id PurchaseID, total decimal.Decimal) error
}

type IssueStore interface {
	InsertIssue(ctx context.Context, issue StockIssue) error
	GetIssue(ctx context.Context, id IssueID) (*StockIssue, error)
	ListIssues(ctx context.Context, limit int) ([]StockIssue, error)
	UpdateIssueLine(ctx context.Context, line IssueLine) error
	UpdateIssueTotal(ctx context.Context, id IssueID, total decimal.Decimal) error
}

type RegisterStore interface {
	ListStrengthCategories(ctx context.Context) ([]StrengthCategory, error)
	SaveStrengthCategory(ctx context.Context, c StrengthCategory) error
	ListUtensils(ctx context.Context) ([]Utensil, error)
	SaveUtensil(ctx context.Context, u Utensil) error
	// DeleteUtensil returns a NotFoundError when nothing was deleted.
	DeleteUtensil(ctx context.Context, id string) error
}

// Store is the full persistence surface used by the Service.
type Store interface {
	ItemStore
	VendorStore
	PurchaseStore
	IssueStore
	RegisterStore

	// ResetAll deletes every business row, children before parents.
	ResetAll(ctx context.Context) error
}

// =============================================================================
// TRANSACTIONAL STORE - For atomic operations across multiple writes
// =============================================================================

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, transaction is rolled back.
	// If fn returns nil, transaction is committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}
