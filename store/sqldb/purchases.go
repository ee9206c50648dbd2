package sqldb

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/warp/provision-ledger/inventory"
)

// =============================================================================
// PURCHASES (inventory.PurchaseStore)
// =============================================================================

// InsertPurchase writes the header and its lines. Call inside WithTx so the
// stock movements commit with it.
func (s *Store) InsertPurchase(ctx context.Context, p inventory.Purchase) error {
	_, err := s.exec(ctx, `
		INSERT INTO purchases (id, bill_no, vendor_id, purchase_date, total_amount, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, string(p.ID), p.BillNo, string(p.VendorID), formatDate(p.PurchaseDate), p.TotalAmount.String(),
		formatTimestamp(p.CreatedAt), formatTimestamp(p.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert purchase: %w", err)
	}

	for _, l := range p.Lines {
		var mrp sql.NullString
		if l.MRP.Valid {
			mrp = nullString(l.MRP.Decimal.String())
		}
		_, err := s.exec(ctx, `
			INSERT INTO purchase_items
			(id, purchase_id, item_id, quantity, damaged_quantity, rate_per_unit, mrp,
			 discount_type, discount_value, total_price, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, string(l.ID), string(p.ID), string(l.ItemID), l.Quantity.String(), l.DamagedQuantity.String(),
			l.RatePerUnit.String(), mrp, string(l.Discount.Type), l.Discount.Value.String(),
			l.TotalPrice.String(), formatTimestamp(l.CreatedAt))
		if err != nil {
			if isUniqueConstraintError(err) {
				return inventory.NewValidationError("lines", "item "+string(l.ItemID)+" is listed more than once")
			}
			return fmt.Errorf("failed to insert purchase line: %w", err)
		}
	}
	return nil
}

// GetPurchase returns a purchase with its lines. Returns (nil, nil) when missing.
func (s *Store) GetPurchase(ctx context.Context, id inventory.PurchaseID) (*inventory.Purchase, error) {
	p, err := scanPurchase(s.queryRow(ctx, `
		SELECT id, bill_no, vendor_id, purchase_date, total_amount, created_at, updated_at
		FROM purchases WHERE id = ?`, string(id)))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if p.Lines, err = s.purchaseLines(ctx, p.ID); err != nil {
		return nil, err
	}
	return p, nil
}

// ListPurchases returns the latest purchases first, with lines.
func (s *Store) ListPurchases(ctx context.Context, limit int) ([]inventory.Purchase, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.query(ctx, `
		SELECT id, bill_no, vendor_id, purchase_date, total_amount, created_at, updated_at
		FROM purchases
		ORDER BY purchase_date DESC, created_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	var purchases []inventory.Purchase
	for rows.Next() {
		p, err := scanPurchase(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		purchases = append(purchases, *p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range purchases {
		if purchases[i].Lines, err = s.purchaseLines(ctx, purchases[i].ID); err != nil {
			return nil, err
		}
	}
	return purchases, nil
}

// UpdatePurchaseLine rewrites quantity, rate, discount and total of a line.
func (s *Store) UpdatePurchaseLine(ctx context.Context, l inventory.PurchaseLine) error {
	res, err := s.exec(ctx, `
		UPDATE purchase_items
		SET quantity = ?, damaged_quantity = ?, rate_per_unit = ?,
		    discount_type = ?, discount_value = ?, total_price = ?
		WHERE id = ?
	`, l.Quantity.String(), l.DamagedQuantity.String(), l.RatePerUnit.String(),
		string(l.Discount.Type), l.Discount.Value.String(), l.TotalPrice.String(), string(l.ID))
	if err != nil {
		return err
	}
	return requireRow(res, "purchase line", string(l.ID))
}

// UpdatePurchaseTotal sets the header total.
func (s *Store) UpdatePurchaseTotal(ctx context.Context, id inventory.PurchaseID, total decimal.Decimal) error {
	res, err := s.exec(ctx, `UPDATE purchases SET total_amount = ?, updated_at = ? WHERE id = ?`,
		total.String(), formatTimestamp(timeNow()), string(id))
	if err != nil {
		return err
	}
	return requireRow(res, "purchase", string(id))
}

func (s *Store) purchaseLines(ctx context.Context, id inventory.PurchaseID) ([]inventory.PurchaseLine, error) {
	rows, err := s.query(ctx, `
		SELECT id, purchase_id, item_id, quantity, damaged_quantity, rate_per_unit, mrp,
		       discount_type, discount_value, total_price, created_at
		FROM purchase_items WHERE purchase_id = ?
		ORDER BY created_at, id`, string(id))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []inventory.PurchaseLine
	for rows.Next() {
		var l inventory.PurchaseLine
		var lineID, purchaseID, itemID, discountType, createdAt string
		if err := rows.Scan(&lineID, &purchaseID, &itemID, &l.Quantity, &l.DamagedQuantity, &l.RatePerUnit,
			&l.MRP, &discountType, &l.Discount.Value, &l.TotalPrice, &createdAt); err != nil {
			return nil, err
		}
		l.ID = inventory.LineID(lineID)
		l.PurchaseID = inventory.PurchaseID(purchaseID)
		l.ItemID = inventory.ItemID(itemID)
		l.Discount.Type = inventory.DiscountType(discountType)
		l.CreatedAt = parseTimestamp(createdAt)
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func scanPurchase(row rowScanner) (*inventory.Purchase, error) {
	var p inventory.Purchase
	var id, vendorID, date, createdAt, updatedAt string
	if err := row.Scan(&id, &p.BillNo, &vendorID, &date, &p.TotalAmount, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	p.ID = inventory.PurchaseID(id)
	p.VendorID = inventory.VendorID(vendorID)
	p.PurchaseDate = parseDate(date)
	p.CreatedAt = parseTimestamp(createdAt)
	p.UpdatedAt = parseTimestamp(updatedAt)
	return &p, nil
}

func requireRow(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return &inventory.NotFoundError{Kind: kind, ID: id}
	}
	return nil
}
