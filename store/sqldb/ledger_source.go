package sqldb

import (
	"context"
	"database/sql"

	"github.com/warp/provision-ledger/inventory"
	"github.com/warp/provision-ledger/report"
)

// =============================================================================
// LEDGER SOURCE (report.Source)
// =============================================================================

// PurchaseRecords returns every purchase line joined with its header, item
// and vendor. Lines of deactivated items and vendors are included.
func (s *Store) PurchaseRecords(ctx context.Context) ([]report.PurchaseRecord, error) {
	rows, err := s.query(ctx, `
		SELECT pi.purchase_id, pi.id, pi.item_id, i.name, i.unit, COALESCE(v.name, ''),
		       p.bill_no, p.purchase_date, pi.quantity, pi.damaged_quantity,
		       pi.rate_per_unit, pi.total_price, p.created_at
		FROM purchase_items pi
		JOIN purchases p ON p.id = pi.purchase_id
		JOIN items i ON i.id = pi.item_id
		LEFT JOIN vendors v ON v.id = p.vendor_id
		ORDER BY p.purchase_date, p.created_at, pi.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []report.PurchaseRecord
	for rows.Next() {
		var r report.PurchaseRecord
		var purchaseID, lineID, itemID, date, createdAt string
		if err := rows.Scan(&purchaseID, &lineID, &itemID, &r.ItemName, &r.Unit, &r.VendorName,
			&r.BillNo, &date, &r.Quantity, &r.DamagedQuantity,
			&r.RatePerUnit, &r.TotalPrice, &createdAt); err != nil {
			return nil, err
		}
		r.PurchaseID = inventory.PurchaseID(purchaseID)
		r.LineID = inventory.LineID(lineID)
		r.ItemID = inventory.ItemID(itemID)
		r.Date = parseDate(date)
		r.CreatedAt = parseTimestamp(createdAt)
		out = append(out, r)
	}
	return out, rows.Err()
}

// IssueRecords returns every issue line joined with its header and item.
func (s *Store) IssueRecords(ctx context.Context) ([]report.IssueRecord, error) {
	rows, err := s.query(ctx, `
		SELECT si.issue_id, si.id, si.item_id, i.name, i.unit, st.issue_type,
		       st.issue_date, si.quantity, si.rate_per_unit, si.total_price, st.created_at
		FROM stock_issue_items si
		JOIN stock_issues st ON st.id = si.issue_id
		JOIN items i ON i.id = si.item_id
		ORDER BY st.issue_date, st.created_at, si.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []report.IssueRecord
	for rows.Next() {
		var r report.IssueRecord
		var issueID, lineID, itemID, issueType, date, createdAt string
		if err := rows.Scan(&issueID, &lineID, &itemID, &r.ItemName, &r.Unit, &issueType,
			&date, &r.Quantity, &r.RatePerUnit, &r.TotalPrice, &createdAt); err != nil {
			return nil, err
		}
		r.IssueID = inventory.IssueID(issueID)
		r.LineID = inventory.LineID(lineID)
		r.ItemID = inventory.ItemID(itemID)
		r.IssueType = inventory.IssueType(issueType)
		r.Date = parseDate(date)
		r.CreatedAt = parseTimestamp(createdAt)
		out = append(out, r)
	}
	return out, rows.Err()
}

// LatestPurchaseVendor returns the vendor name of the item's most recent
// purchase by purchase date, then creation time.
func (s *Store) LatestPurchaseVendor(ctx context.Context, itemID inventory.ItemID) (string, bool, error) {
	var name string
	err := s.queryRow(ctx, `
		SELECT v.name
		FROM purchase_items pi
		JOIN purchases p ON p.id = pi.purchase_id
		JOIN vendors v ON v.id = p.vendor_id
		WHERE pi.item_id = ?
		ORDER BY p.purchase_date DESC, p.created_at DESC
		LIMIT 1`, string(itemID)).Scan(&name)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return name, true, nil
}
