package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"tablemind/internal/models"
	"tablemind/internal/store"
)

const scheduleColumns = `id, restaurant_id, waiter_id, waiter_name, start_ms, end_ms, type, is_active,
	status, actual_start, actual_end, recurrence_json, rrule, notes, created_at, updated_at`

func scanSchedule(row rowScanner) (*models.Schedule, error) {
	var (
		s                                    models.Schedule
		waiterName, shiftType, recurrenceRaw sql.NullString
		rrule, notes                         sql.NullString
		startMs, endMs, createdAt, updatedAt int64
		actualStart, actualEnd               sql.NullInt64
		status                               string
	)
	err := row.Scan(&s.ID, &s.RestaurantID, &s.WaiterID, &waiterName, &startMs, &endMs, &shiftType, &s.IsActive,
		&status, &actualStart, &actualEnd, &recurrenceRaw, &rrule, &notes, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	s.WaiterName = waiterName.String
	s.Type = models.ShiftType(shiftType.String)
	s.Status = models.ScheduleStatus(status)
	s.StartTime = fromMillis(startMs)
	s.EndTime = fromMillis(endMs)
	s.ActualStart = fromNullMillis(actualStart)
	s.ActualEnd = fromNullMillis(actualEnd)
	s.RRule = rrule.String
	s.Notes = notes.String
	s.CreatedAt = fromMillis(createdAt)
	s.UpdatedAt = fromMillis(updatedAt)
	if recurrenceRaw.Valid && recurrenceRaw.String != "" {
		var rec models.Recurrence
		if err := json.Unmarshal([]byte(recurrenceRaw.String), &rec); err != nil {
			return nil, fmt.Errorf("decode recurrence: %w", err)
		}
		s.Recurrence = &rec
	}
	return &s, nil
}

func encodeRecurrence(r *models.Recurrence) (sql.NullString, error) {
	if r == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(r)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("encode recurrence: %w", err)
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func (db *DB) CreateSchedule(ctx context.Context, s *models.Schedule) error {
	rec, err := encodeRecurrence(s.Recurrence)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO schedules (`+scheduleColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.RestaurantID, s.WaiterID, nullString(s.WaiterName), toMillis(s.StartTime), toMillis(s.EndTime),
		nullString(string(s.Type)), s.IsActive, string(s.Status), toNullMillis(s.ActualStart), toNullMillis(s.ActualEnd),
		rec, nullString(s.RRule), nullString(s.Notes), toMillis(s.CreatedAt), toMillis(s.UpdatedAt))
	if err != nil {
		return fmt.Errorf("create schedule: %w", err)
	}
	return nil
}

func (db *DB) GetSchedule(ctx context.Context, restaurantID, id string) (*models.Schedule, error) {
	row := db.QueryRowContext(ctx, `SELECT `+scheduleColumns+` FROM schedules WHERE id = ? AND restaurant_id = ?`, id, restaurantID)
	s, err := scanSchedule(row)
	if err == sql.ErrNoRows {
		return nil, models.NewNotFound("schedule", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get schedule: %w", err)
	}
	return s, nil
}

func (db *DB) UpdateSchedule(ctx context.Context, s *models.Schedule) error {
	rec, err := encodeRecurrence(s.Recurrence)
	if err != nil {
		return err
	}
	res, err := db.ExecContext(ctx, `
		UPDATE schedules SET
			waiter_id = ?, waiter_name = ?, start_ms = ?, end_ms = ?, type = ?, is_active = ?, status = ?,
			actual_start = ?, actual_end = ?, recurrence_json = ?, rrule = ?, notes = ?, updated_at = ?
		WHERE id = ? AND restaurant_id = ?`,
		s.WaiterID, nullString(s.WaiterName), toMillis(s.StartTime), toMillis(s.EndTime), nullString(string(s.Type)),
		s.IsActive, string(s.Status), toNullMillis(s.ActualStart), toNullMillis(s.ActualEnd),
		rec, nullString(s.RRule), nullString(s.Notes), toMillis(s.UpdatedAt), s.ID, s.RestaurantID)
	if err != nil {
		return fmt.Errorf("update schedule: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update schedule: %w", err)
	}
	if n == 0 {
		return models.NewNotFound("schedule", s.ID)
	}
	return nil
}

func (db *DB) ListSchedules(ctx context.Context, restaurantID string, filter store.ScheduleFilter) ([]models.Schedule, error) {
	where := []string{"restaurant_id = ?"}
	args := []interface{}{restaurantID}

	if filter.WaiterID != nil {
		where = append(where, "waiter_id = ?")
		args = append(args, *filter.WaiterID)
	}
	if filter.From != nil {
		where = append(where, "end_ms > ?")
		args = append(args, toMillis(*filter.From))
	}
	if filter.To != nil {
		where = append(where, "start_ms < ?")
		args = append(args, toMillis(*filter.To))
	}
	if filter.ActiveOnly {
		where = append(where, "is_active = 1", "status != 'cancelled'")
	}

	rows, err := db.QueryContext(ctx, `SELECT `+scheduleColumns+` FROM schedules WHERE `+
		strings.Join(where, " AND ")+` ORDER BY start_ms, id`, args...)
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	defer rows.Close()

	var out []models.Schedule
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan schedule: %w", err)
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

func (db *DB) Ping(ctx context.Context) error {
	return db.PingContext(ctx)
}
