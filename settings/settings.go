/*
Package settings holds the persisted application settings.

PURPOSE:
  Two switches guard the data-entry screens:

    password_protection         Settings changes require a password
    allow_previous_date_entry   Purchases and issues may be back-dated

  The password is stored as a bcrypt hash. Back-dated entry can only be
  toggled while protection is on, and only with the password.

CONCURRENCY:
  Manager keeps the current Settings in memory behind a RWMutex and
  writes through to the Store on every change. Readers
  (AllowPreviousDateEntry) never touch the database.

SEE ALSO:
  - store/sqldb/settings.go: Store implementation (app_settings)
  - inventory/service.go: EntryDatePolicy, satisfied by *Manager
*/
package settings

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// MinPasswordLength is the shortest accepted settings password.
const MinPasswordLength = 4

var (
	ErrProtectionDisabled = errors.New("password protection is not enabled")
	ErrWrongPassword      = errors.New("incorrect password")
	ErrPasswordTooShort   = errors.New("password must be at least 4 characters")
)

type Settings struct {
	PasswordProtection     bool      `json:"password_protection"`
	PasswordHash           string    `json:"-"`
	AllowPreviousDateEntry bool      `json:"allow_previous_date_entry"`
	UpdatedAt              time.Time `json:"updated_at"`
}

// Store persists the single settings row.
type Store interface {
	// LoadSettings returns (nil, nil) when nothing was saved yet.
	LoadSettings(ctx context.Context) (*Settings, error)
	SaveSettings(ctx context.Context, s Settings) error
}

// Manager serves and updates settings.
type Manager struct {
	mu    sync.RWMutex
	cur   Settings
	store Store
	now   func() time.Time
	log   *zap.Logger
}

// Load reads the saved settings, falling back to defaults when the store
// is empty.
func Load(ctx context.Context, store Store, defaults Settings, log *zap.Logger) (*Manager, error) {
	if log == nil {
		log = zap.NewNop()
	}
	saved, err := store.LoadSettings(ctx)
	if err != nil {
		return nil, err
	}
	cur := defaults
	if saved != nil {
		cur = *saved
	}
	return &Manager{cur: cur, store: store, now: time.Now, log: log.Named("settings")}, nil
}

// Snapshot returns a copy of the current settings.
func (m *Manager) Snapshot() Settings {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cur
}

// AllowPreviousDateEntry implements inventory.EntryDatePolicy.
func (m *Manager) AllowPreviousDateEntry() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cur.AllowPreviousDateEntry
}

// EnableProtection sets a new password and turns protection on. When
// protection is already on, the current password is required.
func (m *Manager) EnableProtection(ctx context.Context, current, password string) (Settings, error) {
	if len(password) < MinPasswordLength {
		return Settings{}, ErrPasswordTooShort
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cur.PasswordProtection && !m.checkLocked(current) {
		return Settings{}, ErrWrongPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return Settings{}, err
	}
	next := m.cur
	next.PasswordProtection = true
	next.PasswordHash = string(hash)
	if err := m.saveLocked(ctx, next); err != nil {
		return Settings{}, err
	}
	m.log.Info("password protection enabled")
	return m.cur, nil
}

// DisableProtection turns protection off. Back-dated entry is switched off
// with it.
func (m *Manager) DisableProtection(ctx context.Context, password string) (Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.cur.PasswordProtection {
		return Settings{}, ErrProtectionDisabled
	}
	if !m.checkLocked(password) {
		return Settings{}, ErrWrongPassword
	}
	next := m.cur
	next.PasswordProtection = false
	next.PasswordHash = ""
	next.AllowPreviousDateEntry = false
	if err := m.saveLocked(ctx, next); err != nil {
		return Settings{}, err
	}
	m.log.Info("password protection disabled")
	return m.cur, nil
}

// TogglePreviousDateEntry flips allow_previous_date_entry.
func (m *Manager) TogglePreviousDateEntry(ctx context.Context, password string) (Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.cur.PasswordProtection {
		return Settings{}, ErrProtectionDisabled
	}
	if !m.checkLocked(password) {
		return Settings{}, ErrWrongPassword
	}
	next := m.cur
	next.AllowPreviousDateEntry = !next.AllowPreviousDateEntry
	if err := m.saveLocked(ctx, next); err != nil {
		return Settings{}, err
	}
	m.log.Info("previous date entry toggled", zap.Bool("allowed", next.AllowPreviousDateEntry))
	return m.cur, nil
}

func (m *Manager) checkLocked(password string) bool {
	if m.cur.PasswordHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(m.cur.PasswordHash), []byte(password)) == nil
}

func (m *Manager) saveLocked(ctx context.Context, next Settings) error {
	next.UpdatedAt = m.now().UTC()
	if err := m.store.SaveSettings(ctx, next); err != nil {
		return err
	}
	m.cur = next
	return nil
}
