package report

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/warp/provision-ledger/inventory"
)

// Cell fields accepted by UpdateCell.
const (
	CellPrincipalSignature    = "principal_signature"
	CellDepWardenSignature    = "dep_warden_signature"
	CellRemarks               = "remarks"
	CellCustomBalanceQuantity = "custom_balance_quantity"
	CellCustomBalanceAmount   = "custom_balance_amount"
)

// Editor is the entry point of the ledger grid. It routes a single cell
// edit either to the overlay (Annotate) or to the source line
// (CorrectTransaction).
type Editor struct {
	Overlay   *Overlay
	Corrector *Corrector
}

func NewEditor(overlay *Overlay, corrector *Corrector) *Editor {
	return &Editor{Overlay: overlay, Corrector: corrector}
}

// UpdateCell applies value to field of the row identified by key. An empty
// value clears overlay fields.
func (e *Editor) UpdateCell(ctx context.Context, key Key, field, value string) error {
	value = strings.TrimSpace(value)
	switch field {
	case CellPrincipalSignature:
		_, err := e.Overlay.Annotate(ctx, key, Annotation{PrincipalSignature: &value})
		return err
	case CellDepWardenSignature:
		_, err := e.Overlay.Annotate(ctx, key, Annotation{DepWardenSignature: &value})
		return err
	case CellRemarks:
		_, err := e.Overlay.Annotate(ctx, key, Annotation{Remarks: &value})
		return err
	case CellCustomBalanceQuantity, CellCustomBalanceAmount:
		nd, err := parseNullDecimal(field, value)
		if err != nil {
			return err
		}
		a := Annotation{CustomBalanceQuantity: &nd}
		if field == CellCustomBalanceAmount {
			a = Annotation{CustomBalanceAmount: &nd}
		}
		_, err = e.Overlay.Annotate(ctx, key, a)
		return err
	}

	cf := CorrectionField(field)
	if cf.txType() == "" {
		return inventory.NewValidationError("field", "unknown ledger field "+field)
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return inventory.NewValidationError("value", "must be a number")
	}
	return e.Corrector.CorrectTransaction(ctx, key, cf, d)
}

func parseNullDecimal(field, value string) (decimal.NullDecimal, error) {
	if value == "" {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.NullDecimal{}, inventory.NewValidationError(field, "must be a number")
	}
	return decimal.NewNullDecimal(d), nil
}
