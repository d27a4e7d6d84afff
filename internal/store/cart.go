package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// UpdateCartStatus upserts the single cart status snapshot.
func (s *Store) UpdateCartStatus(ctx context.Context, status CartStatus) error {
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO cart_status (id, online, current_station, mode, battery_level, last_activity, updated_at)
         VALUES (1, ?, ?, ?, ?, ?, ?)
         ON CONFLICT (id) DO UPDATE SET
             online = excluded.online,
             current_station = excluded.current_station,
             mode = excluded.mode,
             battery_level = excluded.battery_level,
             last_activity = excluded.last_activity,
             updated_at = excluded.updated_at`,
		boolToInt(status.Online),
		status.CurrentStation,
		nullableString(status.Mode),
		status.BatteryLevel,
		nullableString(status.LastActivity),
		timestamp(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("update cart status: %w", err)
	}
	return nil
}

// CartStatus returns the latest snapshot, or nil when the cart has never
// reported.
func (s *Store) CartStatus(ctx context.Context) (*CartStatus, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT online, current_station, mode, battery_level, last_activity, updated_at
         FROM cart_status WHERE id = 1`,
	)

	var (
		online       int
		station      int
		mode         sql.NullString
		battery      int
		lastActivity sql.NullString
		updatedRaw   string
	)
	err := row.Scan(&online, &station, &mode, &battery, &lastActivity, &updatedRaw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get cart status: %w", err)
	}

	status := &CartStatus{
		Online:         online != 0,
		CurrentStation: station,
		Mode:           mode.String,
		BatteryLevel:   battery,
		LastActivity:   lastActivity.String,
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		status.UpdatedAt = updated
	}
	return status, nil
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}
