package report

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/provision-ledger/inventory"
)

// PurchaseRecord is one purchase line joined with its header, item and vendor.
type PurchaseRecord struct {
	PurchaseID      inventory.PurchaseID
	LineID          inventory.LineID
	ItemID          inventory.ItemID
	ItemName        string
	Unit            string
	VendorName      string
	BillNo          string
	Date            time.Time
	Quantity        decimal.Decimal
	DamagedQuantity decimal.Decimal
	RatePerUnit     decimal.Decimal
	TotalPrice      decimal.Decimal
	CreatedAt       time.Time
}

// IssueRecord is one issue line joined with its header and item.
type IssueRecord struct {
	IssueID     inventory.IssueID
	LineID      inventory.LineID
	ItemID      inventory.ItemID
	ItemName    string
	Unit        string
	IssueType   inventory.IssueType
	Date        time.Time
	Quantity    decimal.Decimal
	RatePerUnit decimal.Decimal
	TotalPrice  decimal.Decimal
	CreatedAt   time.Time
}

// Source provides the raw rows the ledger is built from.
type Source interface {
	PurchaseRecords(ctx context.Context) ([]PurchaseRecord, error)
	IssueRecords(ctx context.Context) ([]IssueRecord, error)

	// LatestPurchaseVendor returns the vendor of the item's most recent
	// purchase by purchase date. ok is false when the item was never bought.
	LatestPurchaseVendor(ctx context.Context, itemID inventory.ItemID) (name string, ok bool, err error)
}

// OverlayStore persists Metadata rows.
type OverlayStore interface {
	// UpsertMetadata writes only the fields set in a, creating the row
	// when the key is new.
	UpsertMetadata(ctx context.Context, key Key, a Annotation, now time.Time) error
	// GetMetadata returns (nil, nil) when the key has no overlay row.
	GetMetadata(ctx context.Context, key Key) (*Metadata, error)
	ListMetadata(ctx context.Context) ([]Metadata, error)
}
