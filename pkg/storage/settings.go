package storage

import "context"

const settingsPrefix = "settings_"

// Settings stores small user preferences as plain entries under a shared key
// prefix. Reads fall back to a caller-provided default, so callers never have
// to distinguish "absent" from "unreadable".
type Settings struct {
	store *Store
}

// NewSettings creates a Settings view over the given store.
func NewSettings(store *Store) *Settings {
	return &Settings{store: store}
}

// SetString persists a string preference.
func (s *Settings) SetString(ctx context.Context, name, value string) error {
	return s.store.Set(ctx, settingsPrefix+name, value)
}

// GetString reads a string preference, returning fallback when it is absent
// or unreadable.
func (s *Settings) GetString(ctx context.Context, name, fallback string) string {
	var value string
	ok, err := s.store.Get(ctx, settingsPrefix+name, &value)
	if err != nil || !ok {
		return fallback
	}
	return value
}

// SetBool persists a boolean preference.
func (s *Settings) SetBool(ctx context.Context, name string, value bool) error {
	return s.store.Set(ctx, settingsPrefix+name, value)
}

// GetBool reads a boolean preference, returning fallback when it is absent or
// unreadable.
func (s *Settings) GetBool(ctx context.Context, name string, fallback bool) bool {
	var value bool
	ok, err := s.store.Get(ctx, settingsPrefix+name, &value)
	if err != nil || !ok {
		return fallback
	}
	return value
}
