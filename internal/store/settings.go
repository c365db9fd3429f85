// ABOUTME: SQLite implementation of SettingsStore
// ABOUTME: Stores the onboarding flag in the settings key-value table

package store

import (
	"context"
	"fmt"
)

// Ensure SQLiteStore implements SettingsStore.
var _ SettingsStore = (*SQLiteStore)(nil)

const onboardingKey = "onboarding_complete"

// HasSeenOnboarding reports whether onboarding was completed. Any read
// failure, including a missing row, counts as not seen so onboarding replays
// instead of the caller failing.
func (s *SQLiteStore) HasSeenOnboarding(ctx context.Context) bool {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, onboardingKey).Scan(&value)
	if err != nil {
		s.logger.Debug("onboarding flag unavailable", "error", err)
		return false
	}
	return value == "1"
}

// MarkOnboardingComplete records that onboarding finished. Safe to call repeatedly.
func (s *SQLiteStore) MarkOnboardingComplete(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (key, value) VALUES (?, '1')
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, onboardingKey)
	if err != nil {
		return fmt.Errorf("marking onboarding complete: %w", err)
	}
	return nil
}
