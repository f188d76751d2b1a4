// Package sqlite is the local file-backed store.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
	"github.com/rs/zerolog"

	"tablemind/internal/models"
	"tablemind/internal/store"
)

// DB wraps sql.DB with the scheduling tables.
type DB struct {
	*sql.DB
	path   string
	logger *zerolog.Logger
}

var _ store.Store = (*DB)(nil)

// NewDB opens the database at path and creates tables if they don't exist.
func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	dsn := path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=on"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	instance := &DB{DB: db, path: path, logger: logger}
	if err := instance.createTables(); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logger.Info().Str("path", path).Msg("Database initialized")
	return instance, nil
}

// Path returns the database file location.
func (db *DB) Path() string {
	return db.path
}

// Snapshot writes a consistent copy of the database to dest, which must not exist yet.
func (db *DB) Snapshot(ctx context.Context, dest string) error {
	if _, err := db.ExecContext(ctx, "VACUUM INTO ?", dest); err != nil {
		return fmt.Errorf("vacuum into %s: %w", dest, err)
	}
	return nil
}

func (db *DB) createTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS restaurants (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			capacity INTEGER NOT NULL DEFAULT 0,
			tables_json TEXT NOT NULL DEFAULT '[]',
			waiters_json TEXT NOT NULL DEFAULT '[]',
			settings_json TEXT NOT NULL DEFAULT '{}',
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS reservations (
			id TEXT PRIMARY KEY,
			restaurant_id TEXT NOT NULL,
			customer_name TEXT NOT NULL,
			phone TEXT NOT NULL,
			email TEXT,
			party_size INTEGER NOT NULL,
			time_ms INTEGER NOT NULL,
			duration_minutes INTEGER NOT NULL DEFAULT 0,
			table_id TEXT,
			waiter_id TEXT,
			status TEXT NOT NULL,
			arrived_at INTEGER,
			departed_at INTEGER,
			bill_amount REAL NOT NULL DEFAULT 0,
			special_requests TEXT,
			source TEXT,
			archived BOOLEAN NOT NULL DEFAULT 0,
			archived_at INTEGER,
			version INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS schedules (
			id TEXT PRIMARY KEY,
			restaurant_id TEXT NOT NULL,
			waiter_id TEXT NOT NULL,
			waiter_name TEXT,
			start_ms INTEGER NOT NULL,
			end_ms INTEGER NOT NULL,
			type TEXT,
			is_active BOOLEAN NOT NULL DEFAULT 1,
			status TEXT NOT NULL,
			actual_start INTEGER,
			actual_end INTEGER,
			recurrence_json TEXT,
			rrule TEXT,
			notes TEXT,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_reservations_restaurant_time ON reservations(restaurant_id, time_ms)`,
		`CREATE INDEX IF NOT EXISTS idx_reservations_table ON reservations(restaurant_id, table_id)`,
		`CREATE INDEX IF NOT EXISTS idx_schedules_waiter ON schedules(restaurant_id, waiter_id, start_ms)`,
	}

	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			return fmt.Errorf("exec %q: %w", trimSQL(q), err)
		}
	}
	return nil
}

func trimSQL(q string) string {
	q = strings.Join(strings.Fields(q), " ")
	if len(q) > 60 {
		return q[:60] + "..."
	}
	return q
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func toNullMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func fromNullMillis(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := fromMillis(v.Int64)
	return &t
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func (db *DB) GetRestaurant(ctx context.Context, id string) (*models.Restaurant, error) {
	var (
		r                       models.Restaurant
		tablesJSON, waitersJSON string
		settingsJSON            string
		createdAt, updatedAt    int64
	)
	err := db.QueryRowContext(ctx, `
		SELECT id, name, capacity, tables_json, waiters_json, settings_json, created_at, updated_at
		FROM restaurants WHERE id = ?`, id).
		Scan(&r.ID, &r.Name, &r.Capacity, &tablesJSON, &waitersJSON, &settingsJSON, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, models.NewNotFound("restaurant", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get restaurant: %w", err)
	}
	if err := json.Unmarshal([]byte(tablesJSON), &r.Tables); err != nil {
		return nil, fmt.Errorf("decode tables: %w", err)
	}
	if err := json.Unmarshal([]byte(waitersJSON), &r.Waiters); err != nil {
		return nil, fmt.Errorf("decode waiters: %w", err)
	}
	if err := json.Unmarshal([]byte(settingsJSON), &r.Settings); err != nil {
		return nil, fmt.Errorf("decode settings: %w", err)
	}
	r.CreatedAt = fromMillis(createdAt)
	r.UpdatedAt = fromMillis(updatedAt)
	return &r, nil
}

func (db *DB) SaveRestaurant(ctx context.Context, r *models.Restaurant) error {
	tablesJSON, err := json.Marshal(r.Tables)
	if err != nil {
		return fmt.Errorf("encode tables: %w", err)
	}
	waitersJSON, err := json.Marshal(r.Waiters)
	if err != nil {
		return fmt.Errorf("encode waiters: %w", err)
	}
	settingsJSON, err := json.Marshal(r.Settings)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO restaurants (id, name, capacity, tables_json, waiters_json, settings_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			capacity = excluded.capacity,
			tables_json = excluded.tables_json,
			waiters_json = excluded.waiters_json,
			settings_json = excluded.settings_json,
			updated_at = excluded.updated_at`,
		r.ID, r.Name, r.Capacity, string(tablesJSON), string(waitersJSON), string(settingsJSON),
		toMillis(r.CreatedAt), toMillis(r.UpdatedAt))
	if err != nil {
		return fmt.Errorf("save restaurant: %w", err)
	}
	return nil
}

func (db *DB) ListRestaurants(ctx context.Context) ([]models.Restaurant, error) {
	rows, err := db.QueryContext(ctx, `SELECT id FROM restaurants ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list restaurants: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan restaurant id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}

	out := make([]models.Restaurant, 0, len(ids))
	for _, id := range ids {
		r, err := db.GetRestaurant(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, nil
}
