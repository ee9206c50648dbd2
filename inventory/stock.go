/*
stock.go - Stock ledger with non-negative stock enforcement

PURPOSE:
  The only place where Item.CurrentStock and Item.RatePerUnit change.
  Purchases add (quantity - damaged) and set the rate to the purchase
  rate. Issues subtract quantity and leave the rate alone.

INVARIANT:
  current_stock >= 0 for every item, always.

  An issue for more than the current stock is rejected with
  InsufficientStockError. There is no partial issue.

CONCURRENCY:
  Every write is a compare-and-swap on the item's version:

    read item (version v) -> compute new stock -> UPDATE ... WHERE version = v

  If another writer got there first the update affects no rows, the
  store returns ErrConflict, and the ledger re-reads the item and checks
  the rule again against the fresh stock. Two concurrent issues of 10
  against a stock of 15 therefore end with one success and one
  InsufficientStock, never -5.

REVERSALS:
  Not provided. Mistakes are fixed with report corrections, which move
  stock through Adjust.

SEE ALSO:
  - store.go: ItemStore.UpdateItemStock contract
  - service.go: Runs ledger calls inside WithTx
*/
package inventory

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DefaultMaxRetries bounds the compare-and-swap loop.
const DefaultMaxRetries = 5

// StockLedger applies stock movements to items.
type StockLedger struct {
	Store      ItemStore
	MaxRetries int
	log        *zap.Logger
}

// NewStockLedger creates a ledger over the given item store.
func NewStockLedger(store ItemStore, log *zap.Logger) *StockLedger {
	if log == nil {
		log = zap.NewNop()
	}
	return &StockLedger{Store: store, MaxRetries: DefaultMaxRetries, log: log.Named("stock")}
}

// ApplyPurchaseLine adds quantity - damaged to stock and sets the rate.
func (l *StockLedger) ApplyPurchaseLine(ctx context.Context, itemID ItemID, quantity, damaged, rate decimal.Decimal) (*Item, error) {
	if !quantity.IsPositive() {
		return nil, NewValidationError("quantity", "must be greater than 0")
	}
	if damaged.IsNegative() {
		return nil, NewValidationError("damaged_quantity", "must not be negative")
	}
	if damaged.GreaterThan(quantity) {
		return nil, NewValidationError("damaged_quantity", "cannot exceed quantity")
	}
	if !rate.IsPositive() {
		return nil, NewValidationError("rate_per_unit", "must be greater than 0")
	}

	effective := quantity.Sub(damaged)
	return l.mutate(ctx, itemID, func(item *Item) error {
		if err := requireActive(item); err != nil {
			return err
		}
		item.CurrentStock = item.CurrentStock.Add(effective)
		item.RatePerUnit = rate
		return nil
	})
}

// ApplyIssueLine removes quantity from stock.
func (l *StockLedger) ApplyIssueLine(ctx context.Context, itemID ItemID, quantity decimal.Decimal) (*Item, error) {
	if !quantity.IsPositive() {
		return nil, NewValidationError("quantity", "must be greater than 0")
	}
	return l.mutate(ctx, itemID, func(item *Item) error {
		if err := requireActive(item); err != nil {
			return err
		}
		if quantity.GreaterThan(item.CurrentStock) {
			return &InsufficientStockError{
				ItemID:    item.ID,
				ItemName:  item.Name,
				Available: item.CurrentStock,
				Requested: quantity,
				Shortfall: quantity.Sub(item.CurrentStock),
			}
		}
		item.CurrentStock = item.CurrentStock.Sub(quantity)
		return nil
	})
}

// Adjust moves stock by delta (positive or negative), keeping the rate.
func (l *StockLedger) Adjust(ctx context.Context, itemID ItemID, delta decimal.Decimal) (*Item, error) {
	if delta.IsZero() {
		item, err := l.Store.GetItem(ctx, itemID)
		if err != nil {
			return nil, Persistence("get item", err)
		}
		if item == nil {
			return nil, &NotFoundError{Kind: "item", ID: string(itemID)}
		}
		return item, nil
	}
	return l.mutate(ctx, itemID, func(item *Item) error {
		next := item.CurrentStock.Add(delta)
		if next.IsNegative() {
			return &InsufficientStockError{
				ItemID:    item.ID,
				ItemName:  item.Name,
				Available: item.CurrentStock,
				Requested: delta.Neg(),
				Shortfall: next.Neg(),
			}
		}
		item.CurrentStock = next
		return nil
	})
}

// mutate runs the read / check / compare-and-swap loop.
func (l *StockLedger) mutate(ctx context.Context, itemID ItemID, apply func(*Item) error) (*Item, error) {
	retries := l.MaxRetries
	if retries <= 0 {
		retries = DefaultMaxRetries
	}

	for attempt := 0; attempt <= retries; attempt++ {
		item, err := l.Store.GetItem(ctx, itemID)
		if err != nil {
			return nil, Persistence("get item", err)
		}
		if item == nil {
			return nil, &NotFoundError{Kind: "item", ID: string(itemID)}
		}
		expected := item.Version
		if err := apply(item); err != nil {
			return nil, err
		}

		err = l.Store.UpdateItemStock(ctx, item.ID, item.CurrentStock, item.RatePerUnit, expected)
		if err == nil {
			item.Version = expected + 1
			return item, nil
		}
		if !errors.Is(err, ErrConflict) {
			return nil, Persistence("update item stock", err)
		}
		l.log.Debug("stock version conflict, retrying",
			zap.String("item_id", string(itemID)),
			zap.Int64("version", expected),
			zap.Int("attempt", attempt+1))
	}
	return nil, ErrConflict
}

func requireActive(item *Item) error {
	if !item.IsActive {
		return NewValidationError("item_id", "item "+item.Name+" is inactive")
	}
	return nil
}
