/*
Package inventory provides the provisioning stock engine.

PURPOSE:
  Items, vendors, purchases, and stock issues for an institutional
  kitchen store. Purchases add stock, issues remove it, and every
  stock change goes through the StockLedger so current_stock is never
  negative.

KEY CONCEPTS IN THIS FILE (types.go):
  - Item: Stocked commodity with current stock, last purchase rate and
    two alert thresholds
  - Vendor: Supplier referenced by purchases
  - Purchase / PurchaseLine: Goods received against a bill
  - StockIssue / IssueLine: Goods handed out (Master or Handloan)
  - Discount: Percentage or flat amount off a purchase line

DESIGN PRINCIPLES:
  1. Precision: All quantities and money use decimal.Decimal
  2. Type Safety: Distinct ID types for items, vendors, headers, lines
  3. One line per item: A purchase or issue lists an item at most once,
     so (header, item, kind) identifies a ledger row

SEE ALSO:
  - stock.go: Stock mutations
  - service.go: Purchase and issue commands
  - classify.go: Stock status thresholds
*/
package inventory

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type ItemID string
type VendorID string
type PurchaseID string
type IssueID string
type LineID string

// DateLayout is the wire and storage format of business dates.
const DateLayout = "2006-01-02"

// ParseDate parses a YYYY-MM-DD business date as UTC midnight.
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, time.UTC)
}

// DateOf truncates t to its calendar day in loc, returned as UTC midnight.
func DateOf(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// =============================================================================
// ITEM
// =============================================================================

// Item is a stocked commodity.
//
// CurrentStock and RatePerUnit change only through the StockLedger.
// Version increments on every stock write and guards concurrent updates.
type Item struct {
	ID              ItemID
	Name            string
	Unit            string
	CurrentStock    decimal.Decimal
	RatePerUnit     decimal.Decimal
	DangerThreshold decimal.Decimal
	MediumThreshold decimal.Decimal
	IsActive        bool
	Version         int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Status classifies the item's current stock against its thresholds.
func (i Item) Status() StockStatus {
	return Classify(i.CurrentStock, i.DangerThreshold, i.MediumThreshold)
}

// FillLevel returns the stock gauge fraction in [0, 1].
func (i Item) FillLevel() decimal.Decimal {
	return FillLevel(i.CurrentStock, i.MediumThreshold)
}

// StockValue is current stock valued at the last purchase rate.
func (i Item) StockValue() decimal.Decimal {
	return i.CurrentStock.Mul(i.RatePerUnit)
}

// =============================================================================
// VENDOR
// =============================================================================

type Vendor struct {
	ID            VendorID
	Name          string
	ContactPerson string
	Phone         string
	Email         string
	Address       string
	IsActive      bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// =============================================================================
// DISCOUNT - Tagged union on purchase lines
// =============================================================================

type DiscountType string

const (
	DiscountNone       DiscountType = ""
	DiscountPercentage DiscountType = "percentage"
	DiscountAmount     DiscountType = "amount"
)

// Discount is either a percentage (0..100) of the gross line value or a
// flat amount subtracted from it.
type Discount struct {
	Type  DiscountType
	Value decimal.Decimal
}

var hundred = decimal.NewFromInt(100)

// Apply returns gross reduced by the discount, never below zero.
func (d Discount) Apply(gross decimal.Decimal) decimal.Decimal {
	var net decimal.Decimal
	switch d.Type {
	case DiscountPercentage:
		net = gross.Sub(gross.Mul(d.Value).Div(hundred))
	case DiscountAmount:
		net = gross.Sub(d.Value)
	default:
		net = gross
	}
	if net.IsNegative() {
		return decimal.Zero
	}
	return net.Round(2)
}

// =============================================================================
// PURCHASE
// =============================================================================

type PurchaseLine struct {
	ID              LineID
	PurchaseID      PurchaseID
	ItemID          ItemID
	Quantity        decimal.Decimal
	DamagedQuantity decimal.Decimal
	RatePerUnit     decimal.Decimal
	MRP             decimal.NullDecimal
	Discount        Discount
	TotalPrice      decimal.Decimal
	CreatedAt       time.Time
}

// EffectiveQuantity is the quantity that enters stock.
func (l PurchaseLine) EffectiveQuantity() decimal.Decimal {
	return l.Quantity.Sub(l.DamagedQuantity)
}

// PurchaseLineTotal is quantity x rate with the discount applied.
func PurchaseLineTotal(quantity, rate decimal.Decimal, d Discount) decimal.Decimal {
	return d.Apply(quantity.Mul(rate))
}

type Purchase struct {
	ID           PurchaseID
	BillNo       string
	VendorID     VendorID
	PurchaseDate time.Time
	TotalAmount  decimal.Decimal
	Lines        []PurchaseLine
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// =============================================================================
// STOCK ISSUE
// =============================================================================

type IssueType string

const (
	IssueMaster   IssueType = "Master"
	IssueHandloan IssueType = "Handloan"
)

type IssueLine struct {
	ID          LineID
	IssueID     IssueID
	ItemID      ItemID
	Quantity    decimal.Decimal
	RatePerUnit decimal.Decimal
	TotalPrice  decimal.Decimal
	CreatedAt   time.Time
}

type StockIssue struct {
	ID         IssueID
	IssueDate  time.Time
	IssueType  IssueType
	TotalValue decimal.Decimal
	Lines      []IssueLine
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// =============================================================================
// PROVISIONING REGISTERS
// =============================================================================

// StrengthCategory is a group of students with a per-head daily allowance.
type StrengthCategory struct {
	ID             string
	CategoryName   string
	StudentCount   int
	AssignedAmount decimal.Decimal
	IsActive       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Utensil is an entry in the kitchen equipment register.
type Utensil struct {
	ID                string
	Name              string
	Capacity          string
	CurrentQuantity   int
	DamagedQuantity   int
	ReplacementNeeded int
	Unit              string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}
