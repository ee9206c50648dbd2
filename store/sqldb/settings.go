package sqldb

import (
	"context"
	"database/sql"

	"github.com/warp/provision-ledger/settings"
)

// =============================================================================
// SETTINGS (settings.Store)
// =============================================================================

// LoadSettings returns the settings row. Returns (nil, nil) when none was saved.
func (s *Store) LoadSettings(ctx context.Context) (*settings.Settings, error) {
	var st settings.Settings
	var updatedAt string
	err := s.queryRow(ctx, `
		SELECT password_protection, password_hash, allow_previous_date_entry, updated_at
		FROM app_settings WHERE id = 1`).Scan(&st.PasswordProtection, &st.PasswordHash,
		&st.AllowPreviousDateEntry, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	st.UpdatedAt = parseTimestamp(updatedAt)
	return &st, nil
}

// SaveSettings upserts the settings row.
func (s *Store) SaveSettings(ctx context.Context, st settings.Settings) error {
	_, err := s.exec(ctx, `
		INSERT INTO app_settings (id, password_protection, password_hash, allow_previous_date_entry, updated_at)
		VALUES (1, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			password_protection = excluded.password_protection,
			password_hash = excluded.password_hash,
			allow_previous_date_entry = excluded.allow_previous_date_entry,
			updated_at = excluded.updated_at
	`, st.PasswordProtection, st.PasswordHash, st.AllowPreviousDateEntry, formatTimestamp(st.UpdatedAt))
	return err
}
