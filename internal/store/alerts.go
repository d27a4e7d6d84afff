package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// AddAlert appends an alert for a record and returns the alert identifier.
func (s *Store) AddAlert(ctx context.Context, recordID int64, level, alertType, message string) (int64, error) {
	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO alert_log (record_id, level, alert_type, message, handled, created_at)
         VALUES (?, ?, ?, ?, 0, ?)`,
		recordID,
		level,
		alertType,
		nullableString(message),
		timestamp(time.Now()),
	)
	if err != nil {
		return 0, fmt.Errorf("add alert: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

// UnhandledAlerts returns open alerts most recent first. A non-positive
// limit returns everything.
func (s *Store) UnhandledAlerts(ctx context.Context, limit int) ([]*Alert, error) {
	query := `SELECT id, record_id, level, alert_type, message, handled, created_at
         FROM alert_log WHERE handled = 0 ORDER BY created_at DESC, id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query alerts: %w", err)
	}
	defer rows.Close()

	var alerts []*Alert
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, alert)
	}
	return alerts, rows.Err()
}

// MarkAlertHandled flags an alert as handled. The boolean reports whether
// the alert existed and was still open.
func (s *Store) MarkAlertHandled(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE alert_log SET handled = 1 WHERE id = ? AND handled = 0`, id)
	if err != nil {
		return false, fmt.Errorf("mark alert handled: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

func scanAlert(scanner interface{ Scan(dest ...any) error }) (*Alert, error) {
	var (
		id         int64
		recordID   sql.NullInt64
		level      string
		alertType  string
		message    sql.NullString
		handled    int
		createdRaw string
	)
	if err := scanner.Scan(&id, &recordID, &level, &alertType, &message, &handled, &createdRaw); err != nil {
		return nil, err
	}

	alert := &Alert{
		ID:        id,
		RecordID:  recordID.Int64,
		Level:     level,
		AlertType: alertType,
		Message:   message.String,
		Handled:   handled != 0,
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		alert.CreatedAt = created
	}
	return alert, nil
}
