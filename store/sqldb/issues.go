package sqldb

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/warp/provision-ledger/inventory"
)

// =============================================================================
// STOCK ISSUES (inventory.IssueStore)
// =============================================================================

// InsertIssue writes the header and its lines.
func (s *Store) InsertIssue(ctx context.Context, issue inventory.StockIssue) error {
	_, err := s.exec(ctx, `
		INSERT INTO stock_issues (id, issue_date, issue_type, total_value, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, string(issue.ID), formatDate(issue.IssueDate), string(issue.IssueType), issue.TotalValue.String(),
		formatTimestamp(issue.CreatedAt), formatTimestamp(issue.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert stock issue: %w", err)
	}

	for _, l := range issue.Lines {
		_, err := s.exec(ctx, `
			INSERT INTO stock_issue_items (id, issue_id, item_id, quantity, rate_per_unit, total_price, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, string(l.ID), string(issue.ID), string(l.ItemID), l.Quantity.String(), l.RatePerUnit.String(),
			l.TotalPrice.String(), formatTimestamp(l.CreatedAt))
		if err != nil {
			if isUniqueConstraintError(err) {
				return inventory.NewValidationError("lines", "item "+string(l.ItemID)+" is listed more than once")
			}
			return fmt.Errorf("failed to insert stock issue line: %w", err)
		}
	}
	return nil
}

// GetIssue returns an issue with its lines. Returns (nil, nil) when missing.
func (s *Store) GetIssue(ctx context.Context, id inventory.IssueID) (*inventory.StockIssue, error) {
	issue, err := scanIssue(s.queryRow(ctx, `
		SELECT id, issue_date, issue_type, total_value, created_at, updated_at
		FROM stock_issues WHERE id = ?`, string(id)))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if issue.Lines, err = s.issueLines(ctx, issue.ID); err != nil {
		return nil, err
	}
	return issue, nil
}

// ListIssues returns the latest issues first, with lines.
func (s *Store) ListIssues(ctx context.Context, limit int) ([]inventory.StockIssue, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.query(ctx, `
		SELECT id, issue_date, issue_type, total_value, created_at, updated_at
		FROM stock_issues
		ORDER BY issue_date DESC, created_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	var issues []inventory.StockIssue
	for rows.Next() {
		issue, err := scanIssue(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		issues = append(issues, *issue)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range issues {
		if issues[i].Lines, err = s.issueLines(ctx, issues[i].ID); err != nil {
			return nil, err
		}
	}
	return issues, nil
}

func (s *Store) UpdateIssueLine(ctx context.Context, l inventory.IssueLine) error {
	res, err := s.exec(ctx, `
		UPDATE stock_issue_items SET quantity = ?, rate_per_unit = ?, total_price = ? WHERE id = ?
	`, l.Quantity.String(), l.RatePerUnit.String(), l.TotalPrice.String(), string(l.ID))
	if err != nil {
		return err
	}
	return requireRow(res, "issue line", string(l.ID))
}

func (s *Store) UpdateIssueTotal(ctx context.Context, id inventory.IssueID, total decimal.Decimal) error {
	res, err := s.exec(ctx, `UPDATE stock_issues SET total_value = ?, updated_at = ? WHERE id = ?`,
		total.String(), formatTimestamp(timeNow()), string(id))
	if err != nil {
		return err
	}
	return requireRow(res, "stock issue", string(id))
}

func (s *Store) issueLines(ctx context.Context, id inventory.IssueID) ([]inventory.IssueLine, error) {
	rows, err := s.query(ctx, `
		SELECT id, issue_id, item_id, quantity, rate_per_unit, total_price, created_at
		FROM stock_issue_items WHERE issue_id = ?
		ORDER BY created_at, id`, string(id))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []inventory.IssueLine
	for rows.Next() {
		var l inventory.IssueLine
		var lineID, issueID, itemID, createdAt string
		if err := rows.Scan(&lineID, &issueID, &itemID, &l.Quantity, &l.RatePerUnit, &l.TotalPrice, &createdAt); err != nil {
			return nil, err
		}
		l.ID = inventory.LineID(lineID)
		l.IssueID = inventory.IssueID(issueID)
		l.ItemID = inventory.ItemID(itemID)
		l.CreatedAt = parseTimestamp(createdAt)
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func scanIssue(row rowScanner) (*inventory.StockIssue, error) {
	var issue inventory.StockIssue
	var id, date, issueType, createdAt, updatedAt string
	if err := row.Scan(&id, &date, &issueType, &issue.TotalValue, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	issue.ID = inventory.IssueID(id)
	issue.IssueDate = parseDate(date)
	issue.IssueType = inventory.IssueType(issueType)
	issue.CreatedAt = parseTimestamp(createdAt)
	issue.UpdatedAt = parseTimestamp(updatedAt)
	return &issue, nil
}
