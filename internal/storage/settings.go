package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// IsEnabled reports whether commandID is enabled. Commands without a
// stored setting are enabled.
func (s *SQLiteStore) IsEnabled(ctx context.Context, commandID string) (bool, error) {
	var enabled int
	err := s.db.QueryRowContext(ctx,
		`SELECT enabled FROM command_settings WHERE command_id = ?`, commandID).Scan(&enabled)
	if errors.Is(err, sql.ErrNoRows) {
		return true, nil
	}
	if err != nil {
		return true, fmt.Errorf("failed to read command setting: %w", err)
	}
	return enabled != 0, nil
}

// SetCommandEnabled stores the enablement of commandID.
func (s *SQLiteStore) SetCommandEnabled(ctx context.Context, commandID string, enabled bool) error {
	if commandID == "" {
		return errors.New("command_id is required")
	}
	v := 0
	if enabled {
		v = 1
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO command_settings (command_id, enabled, updated_at_unix_ms)
		VALUES (?, ?, ?)
		ON CONFLICT(command_id) DO UPDATE SET
			enabled = excluded.enabled,
			updated_at_unix_ms = excluded.updated_at_unix_ms
	`, commandID, v, s.now().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to store command setting: %w", err)
	}
	return nil
}

// CommandSettings returns every stored setting keyed by command id.
func (s *SQLiteStore) CommandSettings(ctx context.Context) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT command_id, enabled FROM command_settings`)
	if err != nil {
		return nil, fmt.Errorf("failed to query command settings: %w", err)
	}
	defer rows.Close()

	settings := make(map[string]bool)
	for rows.Next() {
		var id string
		var enabled int
		if err := rows.Scan(&id, &enabled); err != nil {
			return nil, fmt.Errorf("failed to scan command setting: %w", err)
		}
		settings[id] = enabled != 0
	}
	return settings, rows.Err()
}
