package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const queueColumns = "id, task_id, station_id, job_type, params, priority, created_at"

// Enqueue inserts a pending inspection. When taskID is empty a new UUID is
// generated. The task identifier is returned.
func (s *Store) Enqueue(ctx context.Context, taskID string, stationID, jobType int, params string, priority Priority) (string, error) {
	if taskID == "" {
		taskID = uuid.NewString()
	}
	if priority == "" {
		priority = PriorityMedium
	}
	if !priority.Valid() {
		return "", fmt.Errorf("unknown priority %q", priority)
	}

	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO task_queue (task_id, station_id, job_type, params, priority, created_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		taskID,
		stationID,
		jobType,
		nullableString(params),
		string(priority),
		timestamp(time.Now()),
	)
	if err != nil {
		return "", fmt.Errorf("enqueue task: %w", err)
	}
	return taskID, nil
}

// PendingTasks returns queued inspections ordered by priority tier then
// submission time. A non-positive limit returns everything.
func (s *Store) PendingTasks(ctx context.Context, limit int) ([]*QueueEntry, error) {
	query := `SELECT ` + queueColumns + ` FROM task_queue
         ORDER BY CASE priority WHEN 'high' THEN 0 WHEN 'medium' THEN 1 ELSE 2 END, created_at ASC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query pending tasks: %w", err)
	}
	defer rows.Close()

	var entries []*QueueEntry
	for rows.Next() {
		entry, err := scanQueueEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// RemoveTask deletes a queued task by identifier. The boolean reports
// whether a row was actually removed.
func (s *Store) RemoveTask(ctx context.Context, taskID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM task_queue WHERE task_id = ?`, taskID)
	if err != nil {
		return false, fmt.Errorf("remove task: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// ClearQueue removes every pending task and returns the removed count.
func (s *Store) ClearQueue(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM task_queue`)
	if err != nil {
		return 0, fmt.Errorf("clear queue: %w", err)
	}
	return res.RowsAffected()
}

// PurgeStale removes queued tasks older than the cutoff and returns the
// removed count.
func (s *Store) PurgeStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := timestamp(time.Now().Add(-olderThan))
	res, err := s.db.ExecContext(ctx, `DELETE FROM task_queue WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge stale tasks: %w", err)
	}
	return res.RowsAffected()
}

// QueueDepth returns the number of pending tasks.
func (s *Store) QueueDepth(ctx context.Context) (int, error) {
	var depth int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM task_queue`).Scan(&depth); err != nil {
		return 0, fmt.Errorf("queue depth: %w", err)
	}
	return depth, nil
}

func scanQueueEntry(scanner interface{ Scan(dest ...any) error }) (*QueueEntry, error) {
	var (
		id         int64
		taskID     string
		stationID  int
		jobType    int
		params     sql.NullString
		priority   string
		createdRaw string
	)
	if err := scanner.Scan(&id, &taskID, &stationID, &jobType, &params, &priority, &createdRaw); err != nil {
		return nil, err
	}

	entry := &QueueEntry{
		ID:        id,
		TaskID:    taskID,
		StationID: stationID,
		JobType:   jobType,
		Params:    params.String,
		Priority:  Priority(priority),
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		entry.CreatedAt = created
	}
	return entry, nil
}
