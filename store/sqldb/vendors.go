package sqldb

import (
	"context"
	"database/sql"

	"github.com/warp/provision-ledger/inventory"
)

// =============================================================================
// VENDORS (inventory.VendorStore)
// =============================================================================

const vendorColumns = `id, name, contact_person, phone, email, address, is_active, created_at, updated_at`

// SaveVendor inserts or updates a vendor.
func (s *Store) SaveVendor(ctx context.Context, v inventory.Vendor) error {
	query := `
		INSERT INTO vendors (` + vendorColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			contact_person = excluded.contact_person,
			phone = excluded.phone,
			email = excluded.email,
			address = excluded.address,
			is_active = excluded.is_active,
			updated_at = excluded.updated_at
	`
	_, err := s.exec(ctx, query,
		string(v.ID), v.Name, v.ContactPerson, v.Phone, v.Email, v.Address, v.IsActive,
		formatTimestamp(v.CreatedAt), formatTimestamp(v.UpdatedAt),
	)
	return err
}

// GetVendor retrieves a vendor by ID. Returns (nil, nil) when missing.
func (s *Store) GetVendor(ctx context.Context, id inventory.VendorID) (*inventory.Vendor, error) {
	v, err := scanVendor(s.queryRow(ctx, "SELECT "+vendorColumns+" FROM vendors WHERE id = ?", string(id)))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}

// ListVendors returns vendors ordered by name.
func (s *Store) ListVendors(ctx context.Context, includeInactive bool) ([]inventory.Vendor, error) {
	query := "SELECT " + vendorColumns + " FROM vendors"
	if !includeInactive {
		query += " WHERE is_active = TRUE"
	}
	query += " ORDER BY name, id"

	rows, err := s.query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var vendors []inventory.Vendor
	for rows.Next() {
		v, err := scanVendor(rows)
		if err != nil {
			return nil, err
		}
		vendors = append(vendors, *v)
	}
	return vendors, rows.Err()
}

func scanVendor(row rowScanner) (*inventory.Vendor, error) {
	var v inventory.Vendor
	var id, createdAt, updatedAt string
	if err := row.Scan(&id, &v.Name, &v.ContactPerson, &v.Phone, &v.Email, &v.Address,
		&v.IsActive, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	v.ID = inventory.VendorID(id)
	v.CreatedAt = parseTimestamp(createdAt)
	v.UpdatedAt = parseTimestamp(updatedAt)
	return &v, nil
}
