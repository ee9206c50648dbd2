package settings_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/provision-ledger/settings"
)

type memoryStore struct {
	saved   *settings.Settings
	saves   int
	failErr error
}

func (s *memoryStore) LoadSettings(context.Context) (*settings.Settings, error) {
	if s.saved == nil {
		return nil, nil
	}
	cp := *s.saved
	return &cp, nil
}

func (s *memoryStore) SaveSettings(_ context.Context, st settings.Settings) error {
	if s.failErr != nil {
		return s.failErr
	}
	s.saves++
	s.saved = &st
	return nil
}

func load(t *testing.T, store *memoryStore) *settings.Manager {
	t.Helper()
	m, err := settings.Load(context.Background(), store, settings.Settings{}, nil)
	require.NoError(t, err)
	return m
}

func TestLoad_DefaultsWhenEmpty(t *testing.T) {
	m, err := settings.Load(context.Background(), &memoryStore{}, settings.Settings{AllowPreviousDateEntry: true}, nil)
	require.NoError(t, err)

	assert.True(t, m.AllowPreviousDateEntry())
	assert.False(t, m.Snapshot().PasswordProtection)
}

func TestLoad_SavedWinsOverDefaults(t *testing.T) {
	store := &memoryStore{saved: &settings.Settings{PasswordProtection: true, PasswordHash: "x"}}
	m, err := settings.Load(context.Background(), store, settings.Settings{AllowPreviousDateEntry: true}, nil)
	require.NoError(t, err)

	assert.False(t, m.AllowPreviousDateEntry())
	assert.True(t, m.Snapshot().PasswordProtection)
}

func TestPasswordLifecycle(t *testing.T) {
	store := &memoryStore{}
	m := load(t, store)
	ctx := context.Background()

	// GIVEN: No protection
	// WHEN: Toggling back-dated entry
	_, err := m.TogglePreviousDateEntry(ctx, "1234")
	// THEN: Refused, protection must be on first
	assert.ErrorIs(t, err, settings.ErrProtectionDisabled)

	_, err = m.EnableProtection(ctx, "", "abc")
	assert.ErrorIs(t, err, settings.ErrPasswordTooShort)

	st, err := m.EnableProtection(ctx, "", "warden")
	require.NoError(t, err)
	assert.True(t, st.PasswordProtection)
	assert.NotEqual(t, "warden", store.saved.PasswordHash)
	assert.False(t, st.UpdatedAt.IsZero())

	_, err = m.TogglePreviousDateEntry(ctx, "wrong")
	assert.ErrorIs(t, err, settings.ErrWrongPassword)
	assert.False(t, m.AllowPreviousDateEntry())

	st, err = m.TogglePreviousDateEntry(ctx, "warden")
	require.NoError(t, err)
	assert.True(t, st.AllowPreviousDateEntry)
	assert.True(t, m.AllowPreviousDateEntry())
	assert.True(t, store.saved.AllowPreviousDateEntry)

	// Changing the password needs the current one
	_, err = m.EnableProtection(ctx, "wrong", "matron")
	assert.ErrorIs(t, err, settings.ErrWrongPassword)
	_, err = m.EnableProtection(ctx, "warden", "matron")
	require.NoError(t, err)

	_, err = m.DisableProtection(ctx, "warden")
	assert.ErrorIs(t, err, settings.ErrWrongPassword)

	st, err = m.DisableProtection(ctx, "matron")
	require.NoError(t, err)
	assert.False(t, st.PasswordProtection)
	assert.False(t, st.AllowPreviousDateEntry, "disabling protection also stops back-dated entry")
	assert.Empty(t, store.saved.PasswordHash)

	_, err = m.DisableProtection(ctx, "matron")
	assert.ErrorIs(t, err, settings.ErrProtectionDisabled)
}

func TestSaveFailure_KeepsCurrentSettings(t *testing.T) {
	store := &memoryStore{}
	m := load(t, store)
	store.failErr = errors.New("disk full")

	_, err := m.EnableProtection(context.Background(), "", "warden")

	require.Error(t, err)
	assert.False(t, m.Snapshot().PasswordProtection)
}
