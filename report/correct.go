/*
correct.go - Corrections to purchase and issue lines

PURPOSE:
  Quantity and amount cells of the ledger are not overlay data: editing
  them changes the underlying purchase or issue line. This is a separate
  operation from Annotate.

RULES:
  Quantity correction:
    - the line's rate is kept; total = quantity x rate (purchase
      discounts applied again)
    - item stock moves by the difference (purchases add, issues remove),
      refusing to go below zero
  Amount correction:
    - total = amount; rate = amount / quantity
    - a purchase discount is folded into the new rate and cleared
  Header totals are recomputed. Everything runs in one transaction.

SEE ALSO:
  - overlay.go: Annotate, for signatures/remarks/custom balances
  - inventory/stock.go: StockLedger.Adjust
*/
package report

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/provision-ledger/inventory"
)

type CorrectionField string

const (
	FieldPurchasedQuantity CorrectionField = "purchased_quantity"
	FieldPurchasedAmount   CorrectionField = "purchased_amount"
	FieldIssuedQuantity    CorrectionField = "issued_quantity"
	FieldIssuedAmount      CorrectionField = "issued_amount"
)

func (f CorrectionField) txType() TxType {
	switch f {
	case FieldPurchasedQuantity, FieldPurchasedAmount:
		return TxPurchase
	case FieldIssuedQuantity, FieldIssuedAmount:
		return TxIssue
	}
	return ""
}

func (f CorrectionField) isQuantity() bool {
	return f == FieldPurchasedQuantity || f == FieldIssuedQuantity
}

// Corrector rewrites purchase and issue lines.
type Corrector struct {
	store    inventory.TxStore
	notifier inventory.Notifier
	log      *zap.Logger
}

func NewCorrector(store inventory.TxStore, notifier inventory.Notifier, log *zap.Logger) *Corrector {
	if log == nil {
		log = zap.NewNop()
	}
	return &Corrector{store: store, notifier: notifier, log: log.Named("corrector")}
}

// CorrectTransaction sets field of the line identified by key to value.
func (c *Corrector) CorrectTransaction(ctx context.Context, key Key, field CorrectionField, value decimal.Decimal) error {
	verr := &inventory.ValidationError{}
	validateKey(verr, key)
	switch {
	case field.txType() == "":
		verr.Add("field", "must be one of: purchased_quantity purchased_amount issued_quantity issued_amount")
	case key.Type.Valid() && field.txType() != key.Type:
		verr.Add("field", string(field)+" cannot be set on a "+string(key.Type)+" row")
	}
	limit := inventory.MaxAmount
	if field.isQuantity() {
		limit = inventory.MaxQuantity
	}
	if !value.IsPositive() {
		verr.Add("value", "must be greater than 0")
	} else if value.GreaterThan(limit) {
		verr.Add("value", "must be at most "+limit.String())
	}
	if err := verr.OrNil(); err != nil {
		return err
	}

	err := c.store.WithTx(ctx, func(tx inventory.Store) error {
		if key.Type == TxPurchase {
			return c.correctPurchase(ctx, tx, key, field, value)
		}
		return c.correctIssue(ctx, tx, key, field, value)
	})
	if err != nil {
		c.log.Warn("correction rejected", zap.String("key", key.String()), zap.String("field", string(field)), zap.Error(err))
		return err
	}

	c.log.Info("transaction corrected",
		zap.String("key", key.String()),
		zap.String("field", string(field)),
		zap.String("value", value.String()))
	if c.notifier != nil {
		table := "purchase_items"
		if key.Type == TxIssue {
			table = "stock_issue_items"
		}
		c.notifier.Notify(ctx, table, "update", key.String())
	}
	return nil
}

func (c *Corrector) correctPurchase(ctx context.Context, tx inventory.Store, key Key, field CorrectionField, value decimal.Decimal) error {
	p, err := tx.GetPurchase(ctx, inventory.PurchaseID(key.TransactionID))
	if err != nil {
		return inventory.Persistence("get purchase", err)
	}
	if p == nil {
		return &inventory.NotFoundError{Kind: "purchase", ID: key.TransactionID}
	}
	idx := -1
	for i, l := range p.Lines {
		if l.ItemID == key.ItemID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return &inventory.NotFoundError{Kind: "purchase line", ID: key.String()}
	}
	line := p.Lines[idx]

	switch field {
	case FieldPurchasedQuantity:
		if line.DamagedQuantity.GreaterThan(value) {
			return inventory.NewValidationError("value", "cannot be less than the damaged quantity "+line.DamagedQuantity.String())
		}
		delta := value.Sub(line.Quantity)
		if _, err := inventory.NewStockLedger(tx, c.log).Adjust(ctx, line.ItemID, delta); err != nil {
			return err
		}
		line.Quantity = value
		line.TotalPrice = inventory.PurchaseLineTotal(line.Quantity, line.RatePerUnit, line.Discount)
	case FieldPurchasedAmount:
		line.TotalPrice = value
		line.RatePerUnit = value.Div(line.Quantity).Round(4)
		line.Discount = inventory.Discount{}
	}

	if err := tx.UpdatePurchaseLine(ctx, line); err != nil {
		return inventory.Persistence("update purchase line", err)
	}
	p.Lines[idx] = line
	total := decimal.Zero
	for _, l := range p.Lines {
		total = total.Add(l.TotalPrice)
	}
	return inventory.Persistence("update purchase total", tx.UpdatePurchaseTotal(ctx, p.ID, total))
}

func (c *Corrector) correctIssue(ctx context.Context, tx inventory.Store, key Key, field CorrectionField, value decimal.Decimal) error {
	issue, err := tx.GetIssue(ctx, inventory.IssueID(key.TransactionID))
	if err != nil {
		return inventory.Persistence("get stock issue", err)
	}
	if issue == nil {
		return &inventory.NotFoundError{Kind: "stock issue", ID: key.TransactionID}
	}
	idx := -1
	for i, l := range issue.Lines {
		if l.ItemID == key.ItemID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return &inventory.NotFoundError{Kind: "issue line", ID: key.String()}
	}
	line := issue.Lines[idx]

	switch field {
	case FieldIssuedQuantity:
		delta := line.Quantity.Sub(value)
		if _, err := inventory.NewStockLedger(tx, c.log).Adjust(ctx, line.ItemID, delta); err != nil {
			return err
		}
		line.Quantity = value
		line.TotalPrice = value.Mul(line.RatePerUnit).Round(2)
	case FieldIssuedAmount:
		line.TotalPrice = value
		line.RatePerUnit = value.Div(line.Quantity).Round(4)
	}

	if err := tx.UpdateIssueLine(ctx, line); err != nil {
		return inventory.Persistence("update issue line", err)
	}
	issue.Lines[idx] = line
	total := decimal.Zero
	for _, l := range issue.Lines {
		total = total.Add(l.TotalPrice)
	}
	return inventory.Persistence("update issue total", tx.UpdateIssueTotal(ctx, issue.ID, total))
}
