/*
Package report builds the per-item transaction ledger.

PURPOSE:
  Purchases and issues are stored as separate header/line tables. The
  ledger report merges both streams into one list of Transactions, each
  keyed by (transaction_id, item_id, transaction_type), joins the
  user-maintained overlay (signatures, remarks, custom balances) onto
  it, and exports the result.

KEY CONCEPTS IN THIS FILE (transaction.go):
  - Key: Identity of a ledger row and of its overlay row
  - Transaction: One purchase line or one issue line, normalized
  - Metadata: Overlay row persisted separately from the source tables

SEE ALSO:
  - normalize.go: Source rows -> Transactions
  - overlay.go: Annotate, the overlay write path
  - view.go: Ledger rows with filters
  - correct.go: Edits to the underlying purchase/issue lines
*/
package report

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/provision-ledger/inventory"
)

// =============================================================================
// KEY
// =============================================================================

type TxType string

const (
	TxPurchase TxType = "purchase"
	TxIssue    TxType = "issue"
)

func (t TxType) Valid() bool { return t == TxPurchase || t == TxIssue }

// Key identifies a ledger row. TransactionID is the purchase or issue
// header id; an item appears at most once per header.
type Key struct {
	TransactionID string           `json:"transaction_id"`
	ItemID        inventory.ItemID `json:"item_id"`
	Type          TxType           `json:"transaction_type"`
}

func (k Key) String() string {
	return string(k.Type) + ":" + k.TransactionID + ":" + string(k.ItemID)
}

// =============================================================================
// TRANSACTION
// =============================================================================

// Transaction is a normalized purchase line or issue line. Exactly one of
// the purchased or issued pairs is non-zero.
type Transaction struct {
	Key
	Date              time.Time
	CreatedAt         time.Time
	ItemName          string
	Unit              string
	VendorName        string
	Reference         string // bill number or issue type
	PurchasedQuantity decimal.Decimal
	PurchasedAmount   decimal.Decimal
	IssuedQuantity    decimal.Decimal
	IssuedAmount      decimal.Decimal
	DamagedQuantity   decimal.Decimal

	// Running balances of the item after this transaction, over its
	// full history.
	BalanceQuantity decimal.Decimal
	BalanceAmount   decimal.Decimal
}

// Amount is the money value moved by the transaction.
func (t Transaction) Amount() decimal.Decimal {
	if t.Type == TxPurchase {
		return t.PurchasedAmount
	}
	return t.IssuedAmount
}

// =============================================================================
// OVERLAY
// =============================================================================

// Metadata is the overlay row for a key. Empty strings mean unset.
type Metadata struct {
	Key
	PrincipalSignature    string
	DepWardenSignature    string
	Remarks               string
	CustomBalanceQuantity decimal.NullDecimal
	CustomBalanceAmount   decimal.NullDecimal
	CreatedAt             time.Time
	UpdatedAt             time.Time
}
