package sqldb

import (
	"context"

	"github.com/warp/provision-ledger/inventory"
)

// =============================================================================
// REGISTERS (inventory.RegisterStore)
// =============================================================================

func (s *Store) SaveStrengthCategory(ctx context.Context, c inventory.StrengthCategory) error {
	_, err := s.exec(ctx, `
		INSERT INTO strength_categories
		(id, category_name, student_count, assigned_amount, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			category_name = excluded.category_name,
			student_count = excluded.student_count,
			assigned_amount = excluded.assigned_amount,
			is_active = excluded.is_active,
			updated_at = excluded.updated_at
	`, c.ID, c.CategoryName, c.StudentCount, c.AssignedAmount.String(), c.IsActive,
		formatTimestamp(c.CreatedAt), formatTimestamp(c.UpdatedAt))
	return err
}

func (s *Store) ListStrengthCategories(ctx context.Context) ([]inventory.StrengthCategory, error) {
	rows, err := s.query(ctx, `
		SELECT id, category_name, student_count, assigned_amount, is_active, created_at, updated_at
		FROM strength_categories ORDER BY category_name, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cats []inventory.StrengthCategory
	for rows.Next() {
		var c inventory.StrengthCategory
		var createdAt, updatedAt string
		if err := rows.Scan(&c.ID, &c.CategoryName, &c.StudentCount, &c.AssignedAmount, &c.IsActive,
			&createdAt, &updatedAt); err != nil {
			return nil, err
		}
		c.CreatedAt = parseTimestamp(createdAt)
		c.UpdatedAt = parseTimestamp(updatedAt)
		cats = append(cats, c)
	}
	return cats, rows.Err()
}

func (s *Store) SaveUtensil(ctx context.Context, u inventory.Utensil) error {
	_, err := s.exec(ctx, `
		INSERT INTO utensils
		(id, name, capacity, current_quantity, damaged_quantity, replacement_needed, unit, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			capacity = excluded.capacity,
			current_quantity = excluded.current_quantity,
			damaged_quantity = excluded.damaged_quantity,
			replacement_needed = excluded.replacement_needed,
			unit = excluded.unit,
			updated_at = excluded.updated_at
	`, u.ID, u.Name, u.Capacity, u.CurrentQuantity, u.DamagedQuantity, u.ReplacementNeeded, u.Unit,
		formatTimestamp(u.CreatedAt), formatTimestamp(u.UpdatedAt))
	return err
}

func (s *Store) ListUtensils(ctx context.Context) ([]inventory.Utensil, error) {
	rows, err := s.query(ctx, `
		SELECT id, name, capacity, current_quantity, damaged_quantity, replacement_needed, unit, created_at, updated_at
		FROM utensils ORDER BY name, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var utensils []inventory.Utensil
	for rows.Next() {
		var u inventory.Utensil
		var createdAt, updatedAt string
		if err := rows.Scan(&u.ID, &u.Name, &u.Capacity, &u.CurrentQuantity, &u.DamagedQuantity,
			&u.ReplacementNeeded, &u.Unit, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		u.CreatedAt = parseTimestamp(createdAt)
		u.UpdatedAt = parseTimestamp(updatedAt)
		utensils = append(utensils, u)
	}
	return utensils, rows.Err()
}

func (s *Store) DeleteUtensil(ctx context.Context, id string) error {
	res, err := s.exec(ctx, "DELETE FROM utensils WHERE id = ?", id)
	if err != nil {
		return err
	}
	return requireRow(res, "utensil", id)
}
