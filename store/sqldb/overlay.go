package sqldb

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/warp/provision-ledger/inventory"
	"github.com/warp/provision-ledger/report"
)

// =============================================================================
// TRANSACTION METADATA (report.OverlayStore)
// =============================================================================

const metadataColumns = `transaction_id, transaction_type, item_id,
	principal_signature, dep_warden_signature, remarks,
	custom_balance_quantity, custom_balance_amount, created_at, updated_at`

// UpsertMetadata inserts or updates the overlay row for key. Only the
// columns present in a are written on conflict; empty strings and invalid
// NullDecimals are stored as NULL.
func (s *Store) UpsertMetadata(ctx context.Context, key report.Key, a report.Annotation, now time.Time) error {
	cols := []string{"id", "transaction_id", "transaction_type", "item_id"}
	args := []any{uuid.NewString(), key.TransactionID, string(key.Type), string(key.ItemID)}
	var updates []string

	setText := func(col string, v *string) {
		if v == nil {
			return
		}
		cols = append(cols, col)
		args = append(args, nullString(*v))
		updates = append(updates, col+" = excluded."+col)
	}
	setDecimal := func(col string, v *decimal.NullDecimal) {
		if v == nil {
			return
		}
		var ns sql.NullString
		if v.Valid {
			ns = nullString(v.Decimal.String())
		}
		cols = append(cols, col)
		args = append(args, ns)
		updates = append(updates, col+" = excluded."+col)
	}
	setText("principal_signature", a.PrincipalSignature)
	setText("dep_warden_signature", a.DepWardenSignature)
	setText("remarks", a.Remarks)
	setDecimal("custom_balance_quantity", a.CustomBalanceQuantity)
	setDecimal("custom_balance_amount", a.CustomBalanceAmount)

	ts := formatTimestamp(now)
	cols = append(cols, "created_at", "updated_at")
	args = append(args, ts, ts)
	updates = append(updates, "updated_at = excluded.updated_at")

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	_, err := s.exec(ctx, `
		INSERT INTO transaction_metadata (`+strings.Join(cols, ", ")+`)
		VALUES (`+placeholders+`)
		ON CONFLICT(transaction_id, transaction_type, item_id) DO UPDATE SET
			`+strings.Join(updates, ", "), args...)
	return err
}

// GetMetadata returns the overlay row for key. Returns (nil, nil) when missing.
func (s *Store) GetMetadata(ctx context.Context, key report.Key) (*report.Metadata, error) {
	m, err := scanMetadata(s.queryRow(ctx, `
		SELECT `+metadataColumns+`
		FROM transaction_metadata
		WHERE transaction_id = ? AND transaction_type = ? AND item_id = ?`,
		key.TransactionID, string(key.Type), string(key.ItemID)))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

// ListMetadata returns every overlay row.
func (s *Store) ListMetadata(ctx context.Context) ([]report.Metadata, error) {
	rows, err := s.query(ctx, `
		SELECT `+metadataColumns+`
		FROM transaction_metadata
		ORDER BY created_at, transaction_id, item_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []report.Metadata
	for rows.Next() {
		m, err := scanMetadata(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

func scanMetadata(row rowScanner) (*report.Metadata, error) {
	var m report.Metadata
	var txType, itemID, createdAt, updatedAt string
	var principal, warden, remarks sql.NullString
	err := row.Scan(&m.TransactionID, &txType, &itemID,
		&principal, &warden, &remarks,
		&m.CustomBalanceQuantity, &m.CustomBalanceAmount, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	m.Type = report.TxType(txType)
	m.ItemID = inventory.ItemID(itemID)
	m.PrincipalSignature = principal.String
	m.DepWardenSignature = warden.String
	m.Remarks = remarks.String
	m.CreatedAt = parseTimestamp(createdAt)
	m.UpdatedAt = parseTimestamp(updatedAt)
	return &m, nil
}
