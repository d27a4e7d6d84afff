package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const recordColumns = "id, task_id, job_type, station_id, image_path, result_json, status, confidence, processing_seconds, error_message, created_at, updated_at"

// CreateRecord inserts a processing record for a dispatched inspection and
// returns the record identifier.
func (s *Store) CreateRecord(ctx context.Context, taskID string, jobType, stationID int) (int64, error) {
	now := timestamp(time.Now())
	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO task_records (task_id, job_type, station_id, status, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		taskID,
		jobType,
		stationID,
		string(StatusProcessing),
		now,
		now,
	)
	if err != nil {
		return 0, fmt.Errorf("create record: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

// UpdateRecord applies a partial update to a record. The boolean reports
// whether the record existed; a missing id is not an error.
func (s *Store) UpdateRecord(ctx context.Context, recordID int64, update RecordUpdate) (bool, error) {
	assignments := []string{"updated_at = ?"}
	args := []any{timestamp(time.Now())}

	if update.Status != nil {
		if !update.Status.Valid() {
			return false, fmt.Errorf("unknown status %q", *update.Status)
		}
		assignments = append(assignments, "status = ?")
		args = append(args, string(*update.Status))
	}
	if update.ImagePath != nil {
		assignments = append(assignments, "image_path = ?")
		args = append(args, nullableString(*update.ImagePath))
	}
	if update.ResultJSON != nil {
		assignments = append(assignments, "result_json = ?")
		args = append(args, nullableString(*update.ResultJSON))
	}
	if update.Confidence != nil {
		assignments = append(assignments, "confidence = ?")
		args = append(args, *update.Confidence)
	}
	if update.ProcessingSeconds != nil {
		assignments = append(assignments, "processing_seconds = ?")
		args = append(args, *update.ProcessingSeconds)
	}
	if update.ErrorMessage != nil {
		assignments = append(assignments, "error_message = ?")
		args = append(args, nullableString(*update.ErrorMessage))
	}

	args = append(args, recordID)
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE task_records SET `+strings.Join(assignments, ", ")+` WHERE id = ?`,
		args...,
	)
	if err != nil {
		return false, fmt.Errorf("update record: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// RecordByID fetches a record by identifier. Missing records return nil.
func (s *Store) RecordByID(ctx context.Context, recordID int64) (*ResultRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM task_records WHERE id = ?`, recordID)
	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get record: %w", err)
	}
	return record, nil
}

// RecordByTaskID fetches the most recent record for a task identifier.
func (s *Store) RecordByTaskID(ctx context.Context, taskID string) (*ResultRecord, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+recordColumns+` FROM task_records WHERE task_id = ? ORDER BY id DESC LIMIT 1`,
		taskID,
	)
	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get record by task: %w", err)
	}
	return record, nil
}

// Records returns history most recent first, filtered by the zero-skipping
// constraints in filter.
func (s *Store) Records(ctx context.Context, filter RecordFilter) ([]*ResultRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM task_records`
	var (
		clauses []string
		args    []any
	)
	if filter.JobType != 0 {
		clauses = append(clauses, "job_type = ?")
		args = append(args, filter.JobType)
	}
	if filter.StationID != 0 {
		clauses = append(clauses, "station_id = ?")
		args = append(args, filter.StationID)
	}
	if !filter.From.IsZero() {
		clauses = append(clauses, "created_at >= ?")
		args = append(args, timestamp(filter.From))
	}
	if !filter.To.IsZero() {
		clauses = append(clauses, "created_at <= ?")
		args = append(args, timestamp(filter.To))
	}
	if len(clauses) > 0 {
		query += ` WHERE ` + strings.Join(clauses, " AND ")
	}
	query += ` ORDER BY created_at DESC, id DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += ` OFFSET ?`
			args = append(args, filter.Offset)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var records []*ResultRecord
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// LatestForStation returns the most recent record for a station. When
// jobType is non-nil only that inspection type is considered. Missing
// history returns nil.
func (s *Store) LatestForStation(ctx context.Context, stationID int, jobType *int) (*ResultRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM task_records WHERE station_id = ?`
	args := []any{stationID}
	if jobType != nil {
		query += ` AND job_type = ?`
		args = append(args, *jobType)
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT 1`

	row := s.db.QueryRowContext(ctx, query, args...)
	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest for station: %w", err)
	}
	return record, nil
}

// Statistics aggregates record outcomes over the trailing number of days.
func (s *Store) Statistics(ctx context.Context, days int) (Statistics, error) {
	if days <= 0 {
		days = 7
	}
	since := time.Now().Add(-time.Duration(days) * 24 * time.Hour)
	stats := Statistics{
		Since:    since.UTC(),
		ByStatus: make(map[Status]int),
	}

	rows, err := s.db.QueryContext(
		ctx,
		`SELECT status, COUNT(1) FROM task_records WHERE created_at >= ? GROUP BY status`,
		timestamp(since),
	)
	if err != nil {
		return stats, fmt.Errorf("statistics counts: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return stats, err
		}
		stats.ByStatus[Status(status)] = count
		stats.Total += count
	}
	if err := rows.Err(); err != nil {
		return stats, err
	}

	var avgConfidence, avgSeconds sql.NullFloat64
	err = s.db.QueryRowContext(
		ctx,
		`SELECT AVG(confidence), AVG(processing_seconds) FROM task_records
         WHERE created_at >= ? AND status NOT IN (?, ?)`,
		timestamp(since),
		string(StatusProcessing),
		string(StatusFailed),
	).Scan(&avgConfidence, &avgSeconds)
	if err != nil {
		return stats, fmt.Errorf("statistics averages: %w", err)
	}
	stats.AvgConfidence = avgConfidence.Float64
	stats.AvgProcessingSeconds = avgSeconds.Float64
	return stats, nil
}

func scanRecord(scanner interface{ Scan(dest ...any) error }) (*ResultRecord, error) {
	var (
		id           int64
		taskID       string
		jobType      int
		stationID    int
		imagePath    sql.NullString
		resultJSON   sql.NullString
		status       string
		confidence   sql.NullFloat64
		procSeconds  sql.NullFloat64
		errorMessage sql.NullString
		createdRaw   string
		updatedRaw   string
	)
	if err := scanner.Scan(
		&id,
		&taskID,
		&jobType,
		&stationID,
		&imagePath,
		&resultJSON,
		&status,
		&confidence,
		&procSeconds,
		&errorMessage,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	record := &ResultRecord{
		ID:           id,
		TaskID:       taskID,
		JobType:      jobType,
		StationID:    stationID,
		ImagePath:    imagePath.String,
		ResultJSON:   resultJSON.String,
		Status:       Status(status),
		ErrorMessage: errorMessage.String,
	}
	if confidence.Valid {
		v := confidence.Float64
		record.Confidence = &v
	}
	if procSeconds.Valid {
		v := procSeconds.Float64
		record.ProcessingSeconds = &v
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		record.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		record.UpdatedAt = updated
	}
	return record, nil
}
