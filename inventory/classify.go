/*
classify.go - Stock status classification

PURPOSE:
  Maps an item's current stock onto danger / warning / sufficient using
  its two thresholds, and computes the gauge fill level shown next to
  each item.

RULES:
  current <= danger            -> danger
  danger < current <= medium   -> warning
  current > medium             -> sufficient

  Ties resolve to the more severe status. For fixed thresholds the
  classification is monotonic in current stock.

SEE ALSO:
  - types.go: Item.Status, Item.FillLevel
  - service.go: Dashboard counts per status
*/
package inventory

import "github.com/shopspring/decimal"

type StockStatus string

const (
	StatusDanger     StockStatus = "danger"
	StatusWarning    StockStatus = "warning"
	StatusSufficient StockStatus = "sufficient"
)

// Severity orders statuses; higher is worse.
func (s StockStatus) Severity() int {
	switch s {
	case StatusDanger:
		return 2
	case StatusWarning:
		return 1
	default:
		return 0
	}
}

// Classify returns the stock status for current against the thresholds.
func Classify(current, danger, medium decimal.Decimal) StockStatus {
	if current.LessThanOrEqual(danger) {
		return StatusDanger
	}
	if current.LessThanOrEqual(medium) {
		return StatusWarning
	}
	return StatusSufficient
}

var two = decimal.NewFromInt(2)

// FillLevel returns min(current / (2 x medium), 1), clamped to [0, 1].
func FillLevel(current, medium decimal.Decimal) decimal.Decimal {
	if !current.IsPositive() {
		return decimal.Zero
	}
	if !medium.IsPositive() {
		return decimal.NewFromInt(1)
	}
	level := current.Div(medium.Mul(two))
	if level.GreaterThan(decimal.NewFromInt(1)) {
		return decimal.NewFromInt(1)
	}
	return level.Round(4)
}
