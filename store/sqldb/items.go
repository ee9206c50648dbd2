package sqldb

import (
	"context"
	"database/sql"

	"github.com/shopspring/decimal"

	"github.com/warp/provision-ledger/inventory"
)

// =============================================================================
// ITEMS (inventory.ItemStore)
// =============================================================================

const itemColumns = `id, name, unit, current_stock, rate_per_unit, danger_threshold,
	medium_threshold, is_active, version, created_at, updated_at`

// SaveItem inserts an item or updates its metadata. Stock, rate and
// version of an existing row are left alone.
func (s *Store) SaveItem(ctx context.Context, item inventory.Item) error {
	query := `
		INSERT INTO items (` + itemColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			unit = excluded.unit,
			danger_threshold = excluded.danger_threshold,
			medium_threshold = excluded.medium_threshold,
			is_active = excluded.is_active,
			updated_at = excluded.updated_at
	`
	version := item.Version
	if version <= 0 {
		version = 1
	}
	_, err := s.exec(ctx, query,
		string(item.ID), item.Name, item.Unit,
		item.CurrentStock.String(), item.RatePerUnit.String(),
		item.DangerThreshold.String(), item.MediumThreshold.String(),
		item.IsActive, version,
		formatTimestamp(item.CreatedAt), formatTimestamp(item.UpdatedAt),
	)
	return err
}

// UpdateItemStock is the compare-and-swap write used by the stock ledger.
func (s *Store) UpdateItemStock(ctx context.Context, id inventory.ItemID, stock, rate decimal.Decimal, expectedVersion int64) error {
	res, err := s.exec(ctx, `
		UPDATE items
		SET current_stock = ?, rate_per_unit = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?
	`, stock.String(), rate.String(), formatTimestamp(timeNow()), string(id), expectedVersion)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return inventory.ErrConflict
	}
	return nil
}

// GetItem retrieves an item by ID. Returns (nil, nil) when missing.
func (s *Store) GetItem(ctx context.Context, id inventory.ItemID) (*inventory.Item, error) {
	row := s.queryRow(ctx, "SELECT "+itemColumns+" FROM items WHERE id = ?", string(id))
	item, err := scanItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return item, nil
}

// ListItems returns items ordered by name.
func (s *Store) ListItems(ctx context.Context, includeInactive bool) ([]inventory.Item, error) {
	query := "SELECT " + itemColumns + " FROM items"
	if !includeInactive {
		query += " WHERE is_active = TRUE"
	}
	query += " ORDER BY name, id"

	rows, err := s.query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []inventory.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (*inventory.Item, error) {
	var it inventory.Item
	var id, createdAt, updatedAt string
	err := row.Scan(&id, &it.Name, &it.Unit, &it.CurrentStock, &it.RatePerUnit,
		&it.DangerThreshold, &it.MediumThreshold, &it.IsActive, &it.Version,
		&createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	it.ID = inventory.ItemID(id)
	it.CreatedAt = parseTimestamp(createdAt)
	it.UpdatedAt = parseTimestamp(updatedAt)
	return &it, nil
}
