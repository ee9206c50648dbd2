/*
normalize.go - Purchase and issue rows to ledger Transactions

PURPOSE:
  Maps both source streams onto one Transaction shape and computes each
  item's running balance over its whole history:

    balance_quantity += (purchased - damaged) - issued
    balance_amount   += purchased_amount - issued_amount

  in chronological order (business date, then creation time). Balances
  are computed before any report filter so a filtered view still shows
  true balances.

VENDOR ON ISSUES:
  Issues have no vendor. The report shows the vendor of the item's most
  recent purchase (VendorResolver). This is an approximation: it is not
  the vendor whose goods were physically issued. Lookup failures degrade
  to "N/A" and never fail the report.

SEE ALSO:
  - source.go: Raw records
  - view.go: Consumes Normalize output
*/
package report

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/provision-ledger/inventory"
)

// UnknownVendor is shown when no vendor can be attributed.
const UnknownVendor = "N/A"

// =============================================================================
// VENDOR RESOLVER
// =============================================================================

// VendorResolver attributes a vendor to issue rows on a best-effort basis.
type VendorResolver struct {
	source Source
	log    *zap.Logger
}

func NewVendorResolver(source Source, log *zap.Logger) *VendorResolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &VendorResolver{source: source, log: log.Named("vendor-resolver")}
}

// ResolveIssueVendor returns the vendor of the item's latest purchase.
// ok is false when the item was never purchased or the lookup failed.
func (r *VendorResolver) ResolveIssueVendor(ctx context.Context, itemID inventory.ItemID) (string, bool) {
	name, ok, err := r.source.LatestPurchaseVendor(ctx, itemID)
	if err != nil {
		r.log.Warn("vendor lookup failed", zap.String("item_id", string(itemID)), zap.Error(err))
		return "", false
	}
	if !ok || name == "" {
		return "", false
	}
	return name, true
}

// =============================================================================
// NORMALIZER
// =============================================================================

type Normalizer struct {
	source  Source
	vendors *VendorResolver
	log     *zap.Logger
}

func NewNormalizer(source Source, log *zap.Logger) *Normalizer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Normalizer{
		source:  source,
		vendors: NewVendorResolver(source, log),
		log:     log.Named("normalizer"),
	}
}

// Normalize returns every transaction in chronological order with running
// balances filled in.
func (n *Normalizer) Normalize(ctx context.Context) ([]Transaction, error) {
	purchases, err := n.source.PurchaseRecords(ctx)
	if err != nil {
		return nil, inventory.Persistence("load purchase records", err)
	}
	issues, err := n.source.IssueRecords(ctx)
	if err != nil {
		return nil, inventory.Persistence("load issue records", err)
	}

	txs := make([]Transaction, 0, len(purchases)+len(issues))
	for _, p := range purchases {
		txs = append(txs, FromPurchase(p))
	}

	vendorByItem := make(map[inventory.ItemID]string)
	for _, is := range issues {
		vendor, cached := vendorByItem[is.ItemID]
		if !cached {
			name, ok := n.vendors.ResolveIssueVendor(ctx, is.ItemID)
			if !ok {
				name = UnknownVendor
			}
			vendor = name
			vendorByItem[is.ItemID] = vendor
		}
		tx := FromIssue(is)
		tx.VendorName = vendor
		txs = append(txs, tx)
	}

	SortChronological(txs)
	ApplyRunningBalances(txs)
	return txs, nil
}

// FromPurchase maps a purchase record to a Transaction.
func FromPurchase(p PurchaseRecord) Transaction {
	vendor := p.VendorName
	if vendor == "" {
		vendor = UnknownVendor
	}
	return Transaction{
		Key:               Key{TransactionID: string(p.PurchaseID), ItemID: p.ItemID, Type: TxPurchase},
		Date:              p.Date,
		CreatedAt:         p.CreatedAt,
		ItemName:          p.ItemName,
		Unit:              p.Unit,
		VendorName:        vendor,
		Reference:         p.BillNo,
		PurchasedQuantity: p.Quantity,
		PurchasedAmount:   p.TotalPrice,
		DamagedQuantity:   p.DamagedQuantity,
		IssuedQuantity:    decimal.Zero,
		IssuedAmount:      decimal.Zero,
	}
}

// FromIssue maps an issue record to a Transaction without a vendor.
func FromIssue(is IssueRecord) Transaction {
	return Transaction{
		Key:               Key{TransactionID: string(is.IssueID), ItemID: is.ItemID, Type: TxIssue},
		Date:              is.Date,
		CreatedAt:         is.CreatedAt,
		ItemName:          is.ItemName,
		Unit:              is.Unit,
		VendorName:        UnknownVendor,
		Reference:         string(is.IssueType),
		PurchasedQuantity: decimal.Zero,
		PurchasedAmount:   decimal.Zero,
		DamagedQuantity:   decimal.Zero,
		IssuedQuantity:    is.Quantity,
		IssuedAmount:      is.TotalPrice,
	}
}

// SortChronological orders by date, creation time, then key. On a tie,
// purchases come before issues so stock is received before it leaves.
func SortChronological(txs []Transaction) {
	sort.SliceStable(txs, func(i, j int) bool {
		a, b := txs[i], txs[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		if a.Type != b.Type {
			return a.Type == TxPurchase
		}
		return a.Key.String() < b.Key.String()
	})
}

// ApplyRunningBalances fills balances; txs must be chronological.
func ApplyRunningBalances(txs []Transaction) {
	type running struct{ qty, amount decimal.Decimal }
	balances := make(map[inventory.ItemID]running)
	for i := range txs {
		t := &txs[i]
		b := balances[t.ItemID]
		b.qty = b.qty.Add(t.PurchasedQuantity).Sub(t.DamagedQuantity).Sub(t.IssuedQuantity)
		b.amount = b.amount.Add(t.PurchasedAmount).Sub(t.IssuedAmount)
		balances[t.ItemID] = b
		t.BalanceQuantity = b.qty
		t.BalanceAmount = b.amount
	}
}
