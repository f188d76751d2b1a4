package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"tablemind/internal/models"
	"tablemind/internal/store"
)

const reservationColumns = `id, restaurant_id, customer_name, phone, email, party_size, time_ms,
	duration_minutes, table_id, waiter_id, status, arrived_at, departed_at, bill_amount,
	special_requests, source, archived, archived_at, version, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanReservation(row rowScanner) (*models.Reservation, error) {
	var (
		r                                 models.Reservation
		email, tableID, waiterID          sql.NullString
		specialRequests, source           sql.NullString
		timeMs, createdAt, updatedAt      int64
		arrivedAt, departedAt, archivedAt sql.NullInt64
		status                            string
	)
	err := row.Scan(&r.ID, &r.RestaurantID, &r.CustomerName, &r.Phone, &email, &r.PartySize, &timeMs,
		&r.DurationMinutes, &tableID, &waiterID, &status, &arrivedAt, &departedAt, &r.BillAmount,
		&specialRequests, &source, &r.Archived, &archivedAt, &r.Version, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	r.Email = email.String
	r.TableID = tableID.String
	r.AssignedWaiterID = waiterID.String
	r.SpecialRequests = specialRequests.String
	r.Source = models.ReservationSource(source.String)
	r.Status = models.ReservationStatus(status)
	r.Time = fromMillis(timeMs)
	r.ArrivedAt = fromNullMillis(arrivedAt)
	r.DepartedAt = fromNullMillis(departedAt)
	r.ArchivedAt = fromNullMillis(archivedAt)
	r.CreatedAt = fromMillis(createdAt)
	r.UpdatedAt = fromMillis(updatedAt)
	return &r, nil
}

func (db *DB) CreateReservation(ctx context.Context, r *models.Reservation) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO reservations (`+reservationColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.RestaurantID, r.CustomerName, r.Phone, nullString(r.Email), r.PartySize, toMillis(r.Time),
		r.DurationMinutes, nullString(r.TableID), nullString(r.AssignedWaiterID), string(r.Status),
		toNullMillis(r.ArrivedAt), toNullMillis(r.DepartedAt), r.BillAmount,
		nullString(r.SpecialRequests), nullString(string(r.Source)), r.Archived, toNullMillis(r.ArchivedAt),
		r.Version, toMillis(r.CreatedAt), toMillis(r.UpdatedAt))
	if err != nil {
		return fmt.Errorf("create reservation: %w", err)
	}
	return nil
}

func (db *DB) GetReservation(ctx context.Context, restaurantID, id string) (*models.Reservation, error) {
	row := db.QueryRowContext(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE id = ? AND restaurant_id = ?`, id, restaurantID)
	r, err := scanReservation(row)
	if err == sql.ErrNoRows {
		return nil, models.NewNotFound("reservation", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get reservation: %w", err)
	}
	return r, nil
}

func (db *DB) UpdateReservation(ctx context.Context, r *models.Reservation) error {
	res, err := db.ExecContext(ctx, `
		UPDATE reservations SET
			customer_name = ?, phone = ?, email = ?, party_size = ?, time_ms = ?, duration_minutes = ?,
			table_id = ?, waiter_id = ?, status = ?, arrived_at = ?, departed_at = ?, bill_amount = ?,
			special_requests = ?, source = ?, archived = ?, archived_at = ?, version = ?, updated_at = ?
		WHERE id = ? AND restaurant_id = ?`,
		r.CustomerName, r.Phone, nullString(r.Email), r.PartySize, toMillis(r.Time), r.DurationMinutes,
		nullString(r.TableID), nullString(r.AssignedWaiterID), string(r.Status),
		toNullMillis(r.ArrivedAt), toNullMillis(r.DepartedAt), r.BillAmount,
		nullString(r.SpecialRequests), nullString(string(r.Source)), r.Archived, toNullMillis(r.ArchivedAt),
		r.Version, toMillis(r.UpdatedAt), r.ID, r.RestaurantID)
	if err != nil {
		return fmt.Errorf("update reservation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update reservation: %w", err)
	}
	if n == 0 {
		return models.NewNotFound("reservation", r.ID)
	}
	return nil
}

func (db *DB) ListReservations(ctx context.Context, restaurantID string, filter store.ReservationFilter) ([]models.Reservation, error) {
	where := []string{"restaurant_id = ?"}
	args := []interface{}{restaurantID}

	if filter.TableID != nil {
		where = append(where, "table_id = ?")
		args = append(args, *filter.TableID)
	}
	if filter.WaiterID != nil {
		where = append(where, "waiter_id = ?")
		args = append(args, *filter.WaiterID)
	}
	if filter.Status != nil {
		where = append(where, "status = ?")
		args = append(args, string(*filter.Status))
	}
	if filter.From != nil {
		where = append(where, "time_ms >= ?")
		args = append(args, toMillis(*filter.From))
	}
	if filter.To != nil {
		where = append(where, "time_ms < ?")
		args = append(args, toMillis(*filter.To))
	}
	if filter.ActiveOnly {
		where = append(where, "archived = 0", "status IN ('booked', 'arrived')")
	}

	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE ` +
		strings.Join(where, " AND ") + ` ORDER BY time_ms, id`
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	defer rows.Close()

	var out []models.Reservation
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reservation: %w", err)
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}
