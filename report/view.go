/*
view.go - Ledger view builder

PURPOSE:
  Produces the rows of the transaction ledger report:

    1. Normalize all purchases and issues (running balances need the
       full history)
    2. Keep the requested transaction type (purchase, issue or both)
    3. Left-merge overlay rows on the exact key
    4. Custom balances, when set, replace the computed balances
    5. Drop duplicate keys, first occurrence wins
    6. Apply item / vendor / date / amount filters
    7. Sort by transaction date descending and number rows from 1

OVERLAY PRECEDENCE:
  A custom balance stays in force for its row no matter what other
  transactions are recorded later. Only an explicit clear removes it.

SEE ALSO:
  - normalize.go: Transactions and balances
  - overlay.go: Overlay writes
  - export.go: CSV / XLSX rendering of Rows
*/
package report

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/provision-ledger/inventory"
)

// Filter selects ledger rows. Zero values mean "no restriction".
type Filter struct {
	Type       TxType
	ItemName   string // case-insensitive substring
	VendorName string // exact match
	From       *time.Time
	To         *time.Time
	ItemID     inventory.ItemID
	MinAmount  decimal.NullDecimal
	MaxAmount  decimal.NullDecimal
}

func (f Filter) validate() error {
	verr := &inventory.ValidationError{}
	if f.Type != "" && !f.Type.Valid() {
		verr.Add("type", "must be one of: purchase issue")
	}
	if f.From != nil && f.To != nil && f.To.Before(*f.From) {
		verr.Add("to", "must not be before from")
	}
	if f.MinAmount.Valid && f.MinAmount.Decimal.IsNegative() {
		verr.Add("min_amount", "must not be negative")
	}
	if f.MaxAmount.Valid && f.MaxAmount.Decimal.GreaterThan(inventory.MaxAmount) {
		verr.Add("max_amount", "must be at most "+inventory.MaxAmount.String())
	}
	if f.MinAmount.Valid && f.MaxAmount.Valid && f.MaxAmount.Decimal.LessThan(f.MinAmount.Decimal) {
		verr.Add("max_amount", "must not be less than min_amount")
	}
	return verr.OrNil()
}

// Row is one line of the ledger report.
type Row struct {
	SNo int
	Key
	Date              time.Time
	CreatedAt         time.Time
	ItemName          string
	Unit              string
	VendorName        string
	Reference         string
	PurchasedQuantity decimal.Decimal
	PurchasedAmount   decimal.Decimal
	IssuedQuantity    decimal.Decimal
	IssuedAmount      decimal.Decimal

	// Effective balances: custom when set, computed otherwise.
	BalanceQuantity decimal.Decimal
	BalanceAmount   decimal.Decimal

	ComputedBalanceQuantity decimal.Decimal
	ComputedBalanceAmount   decimal.Decimal
	CustomBalanceQuantity   bool
	CustomBalanceAmount     bool

	PrincipalSignature string
	DepWardenSignature string
	Remarks            string
}

// Builder assembles ledger rows from the source tables and the overlay.
type Builder struct {
	normalizer *Normalizer
	overlay    OverlayStore
	log        *zap.Logger
}

func NewBuilder(source Source, overlay OverlayStore, log *zap.Logger) *Builder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Builder{
		normalizer: NewNormalizer(source, log),
		overlay:    overlay,
		log:        log.Named("ledger"),
	}
}

// Build returns the filtered, sorted, numbered ledger.
func (b *Builder) Build(ctx context.Context, f Filter) ([]Row, error) {
	if err := f.validate(); err != nil {
		return nil, err
	}

	txs, err := b.normalizer.Normalize(ctx)
	if err != nil {
		return nil, err
	}
	metas, err := b.overlay.ListMetadata(ctx)
	if err != nil {
		return nil, inventory.Persistence("list transaction metadata", err)
	}

	rows := Merge(FilterType(txs, f.Type), metas)
	rows = Dedupe(rows)
	rows = applyFilter(rows, f)
	SortNewestFirst(rows)
	for i := range rows {
		rows[i].SNo = i + 1
	}

	b.log.Debug("ledger built", zap.Int("transactions", len(txs)), zap.Int("rows", len(rows)))
	return rows, nil
}

// FilterType keeps transactions of type t; empty t keeps all.
func FilterType(txs []Transaction, t TxType) []Transaction {
	if t == "" {
		return txs
	}
	out := make([]Transaction, 0, len(txs))
	for _, tx := range txs {
		if tx.Type == t {
			out = append(out, tx)
		}
	}
	return out
}

// Merge left-joins overlay rows onto transactions by exact key and applies
// custom balance overrides.
func Merge(txs []Transaction, metas []Metadata) []Row {
	byKey := make(map[Key]Metadata, len(metas))
	for _, m := range metas {
		byKey[m.Key] = m
	}

	rows := make([]Row, 0, len(txs))
	for _, t := range txs {
		r := Row{
			Key:                     t.Key,
			Date:                    t.Date,
			CreatedAt:               t.CreatedAt,
			ItemName:                t.ItemName,
			Unit:                    t.Unit,
			VendorName:              t.VendorName,
			Reference:               t.Reference,
			PurchasedQuantity:       t.PurchasedQuantity,
			PurchasedAmount:         t.PurchasedAmount,
			IssuedQuantity:          t.IssuedQuantity,
			IssuedAmount:            t.IssuedAmount,
			BalanceQuantity:         t.BalanceQuantity,
			BalanceAmount:           t.BalanceAmount,
			ComputedBalanceQuantity: t.BalanceQuantity,
			ComputedBalanceAmount:   t.BalanceAmount,
		}
		if m, ok := byKey[t.Key]; ok {
			r.PrincipalSignature = m.PrincipalSignature
			r.DepWardenSignature = m.DepWardenSignature
			r.Remarks = m.Remarks
			if m.CustomBalanceQuantity.Valid {
				r.BalanceQuantity = m.CustomBalanceQuantity.Decimal
				r.CustomBalanceQuantity = true
			}
			if m.CustomBalanceAmount.Valid {
				r.BalanceAmount = m.CustomBalanceAmount.Decimal
				r.CustomBalanceAmount = true
			}
		}
		rows = append(rows, r)
	}
	return rows
}

// Dedupe keeps the first row for every key.
func Dedupe(rows []Row) []Row {
	seen := make(map[Key]bool, len(rows))
	out := rows[:0]
	for _, r := range rows {
		if seen[r.Key] {
			continue
		}
		seen[r.Key] = true
		out = append(out, r)
	}
	return out
}

// SortNewestFirst orders by date, then creation time, both descending.
// It is the reverse of SortChronological on ties.
func SortNewestFirst(rows []Row) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.After(b.Date)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		if a.Key.Type != b.Key.Type {
			return a.Key.Type == TxIssue
		}
		return a.Key.String() < b.Key.String()
	})
}

func applyFilter(rows []Row, f Filter) []Row {
	needle := strings.ToLower(strings.TrimSpace(f.ItemName))
	vendor := strings.TrimSpace(f.VendorName)

	out := rows[:0]
	for _, r := range rows {
		if needle != "" && !strings.Contains(strings.ToLower(r.ItemName), needle) {
			continue
		}
		if vendor != "" && r.VendorName != vendor {
			continue
		}
		if f.ItemID != "" && r.ItemID != f.ItemID {
			continue
		}
		if f.From != nil && r.Date.Before(inventory.DateOf(*f.From, time.UTC)) {
			continue
		}
		if f.To != nil && r.Date.After(inventory.DateOf(*f.To, time.UTC)) {
			continue
		}
		amount := r.PurchasedAmount
		if r.Type == TxIssue {
			amount = r.IssuedAmount
		}
		if f.MinAmount.Valid && amount.LessThan(f.MinAmount.Decimal) {
			continue
		}
		if f.MaxAmount.Valid && amount.GreaterThan(f.MaxAmount.Decimal) {
			continue
		}
		out = append(out, r)
	}
	return out
}
