/*
export.go - Ledger export

PURPOSE:
  Renders ledger Rows as CSV or as an XLSX workbook with a fixed column
  set, in the order the rows are given (Build already sorts them).

COLUMNS:
  S.No, Date, Vendor Name, Item Name, Purchased Qty, Purchased Amount,
  Issued Qty, Issued Amount, Balance Qty, Balance Amount,
  Principal Signature, Dep. Warden Signature, Remarks

  Balances are the effective ones (custom when set). Amounts are written
  with two decimals, quantities as stored.
*/
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/warp/provision-ledger/inventory"
)

type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ParseFormat accepts "csv" and "xlsx"; empty means CSV.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatXLSX:
		return FormatXLSX, nil
	}
	return "", inventory.NewValidationError("format", "must be one of: csv xlsx")
}

func (f Format) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}

// Columns is the export header row.
var Columns = []string{
	"S.No", "Date", "Vendor Name", "Item Name",
	"Purchased Qty", "Purchased Amount", "Issued Qty", "Issued Amount",
	"Balance Qty", "Balance Amount",
	"Principal Signature", "Dep. Warden Signature", "Remarks",
}

// SheetName is the worksheet of XLSX exports.
const SheetName = "Ledger"

// Export writes rows to w in the given format.
func Export(w io.Writer, format Format, rows []Row) error {
	switch format {
	case FormatCSV:
		return exportCSV(w, rows)
	case FormatXLSX:
		return exportXLSX(w, rows)
	}
	return inventory.NewValidationError("format", "must be one of: csv xlsx")
}

func record(r Row) []string {
	return []string{
		strconv.Itoa(r.SNo),
		r.Date.Format(inventory.DateLayout),
		r.VendorName,
		r.ItemName,
		r.PurchasedQuantity.String(),
		r.PurchasedAmount.StringFixed(2),
		r.IssuedQuantity.String(),
		r.IssuedAmount.StringFixed(2),
		r.BalanceQuantity.String(),
		r.BalanceAmount.StringFixed(2),
		r.PrincipalSignature,
		r.DepWardenSignature,
		r.Remarks,
	}
}

func exportCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write(record(r)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func exportXLSX(w io.Writer, rows []Row) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return err
	}

	header := make([]any, len(Columns))
	for i, c := range Columns {
		header[i] = c
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return err
	}

	num := func(d decimal.Decimal) float64 { return d.InexactFloat64() }
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := []any{
			r.SNo,
			r.Date.Format(inventory.DateLayout),
			r.VendorName,
			r.ItemName,
			num(r.PurchasedQuantity),
			num(r.PurchasedAmount.Round(2)),
			num(r.IssuedQuantity),
			num(r.IssuedAmount.Round(2)),
			num(r.BalanceQuantity),
			num(r.BalanceAmount.Round(2)),
			r.PrincipalSignature,
			r.DepWardenSignature,
			r.Remarks,
		}
		if err := f.SetSheetRow(SheetName, cell, &values); err != nil {
			return fmt.Errorf("failed to write row %d: %w", r.SNo, err)
		}
	}

	_, err := f.WriteTo(w)
	return err
}
