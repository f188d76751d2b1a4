package sqlite

import (
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tablemind/internal/models"
	"tablemind/internal/store"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	logger := zerolog.New(io.Discard)
	db, err := NewDB(filepath.Join(t.TempDir(), "tablemind.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func datetime(day, hour, min int) time.Time {
	return time.Date(2026, 6, day, hour, min, 0, 0, time.UTC)
}

func TestRestaurantRoundTrip(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	cleaned := datetime(1, 12, 0)
	r := &models.Restaurant{
		ID:       "r1",
		Name:     "Kod Mike",
		Capacity: 40,
		Tables:   []models.Table{{ID: "T1", Seats: 4, CleanedAt: &cleaned}},
		Waiters: []models.Waiter{{
			ID: "w1", Name: "Ana", OnShift: true, ActiveCount: 2,
			Stats: map[string]models.MonthStats{"2026-06": {Reservations: 3, Revenue: 120}},
		}},
		Settings:  models.DefaultSettings(),
		CreatedAt: datetime(1, 9, 0),
		UpdatedAt: datetime(1, 9, 0),
	}
	require.NoError(t, db.SaveRestaurant(ctx, r))

	got, err := db.GetRestaurant(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "Kod Mike", got.Name)
	require.Len(t, got.Waiters, 1)
	assert.Equal(t, 2, got.Waiters[0].ActiveCount)
	assert.Equal(t, 120.0, got.Waiters[0].Stats["2026-06"].Revenue)
	require.NotNil(t, got.Tables[0].CleanedAt)
	assert.True(t, cleaned.Equal(*got.Tables[0].CleanedAt))
	assert.True(t, got.Settings.SmartCleaning)

	r.Waiters[0].OnShift = false
	require.NoError(t, db.SaveRestaurant(ctx, r))
	got, err = db.GetRestaurant(ctx, "r1")
	require.NoError(t, err)
	assert.False(t, got.Waiters[0].OnShift)

	all, err := db.ListRestaurants(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	_, err = db.GetRestaurant(ctx, "missing")
	assert.True(t, models.IsNotFound(err))
}

func TestReservationCRUD(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	mk := func(id, table string, at time.Time, status models.ReservationStatus) *models.Reservation {
		return &models.Reservation{
			ID: id, RestaurantID: "r1", CustomerName: "Guest " + id, Phone: "0601",
			PartySize: 2, Time: at, TableID: table, Status: status, Source: models.SourceManual,
			CreatedAt: at, UpdatedAt: at,
		}
	}

	require.NoError(t, db.CreateReservation(ctx, mk("a", "T1", datetime(2, 19, 0), models.StatusBooked)))
	require.NoError(t, db.CreateReservation(ctx, mk("b", "T2", datetime(2, 18, 0), models.StatusBooked)))
	require.NoError(t, db.CreateReservation(ctx, mk("c", "T1", datetime(3, 19, 0), models.StatusDeparted)))

	got, err := db.GetReservation(ctx, "r1", "a")
	require.NoError(t, err)
	assert.Equal(t, "T1", got.TableID)
	assert.True(t, datetime(2, 19, 0).Equal(got.Time))
	assert.Nil(t, got.ArrivedAt)

	_, err = db.GetReservation(ctx, "other", "a")
	assert.True(t, models.IsNotFound(err))

	arrived := datetime(2, 19, 5)
	got.Status = models.StatusArrived
	got.ArrivedAt = &arrived
	got.AssignedWaiterID = "w1"
	require.NoError(t, db.UpdateReservation(ctx, got))

	got, err = db.GetReservation(ctx, "r1", "a")
	require.NoError(t, err)
	assert.Equal(t, models.StatusArrived, got.Status)
	assert.Equal(t, "w1", got.AssignedWaiterID)
	require.NotNil(t, got.ArrivedAt)

	assert.True(t, models.IsNotFound(db.UpdateReservation(ctx, mk("zzz", "", datetime(2, 1, 0), models.StatusBooked))))

	t.Run("Filters", func(t *testing.T) {
		table := "T1"
		list, err := db.ListReservations(ctx, "r1", store.ReservationFilter{TableID: &table})
		require.NoError(t, err)
		assert.Len(t, list, 2)

		list, err = db.ListReservations(ctx, "r1", store.ReservationFilter{ActiveOnly: true})
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "b", list[0].ID)
		assert.Equal(t, "a", list[1].ID)

		from, to := datetime(2, 18, 30), datetime(3, 0, 0)
		list, err = db.ListReservations(ctx, "r1", store.ReservationFilter{From: &from, To: &to})
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, "a", list[0].ID)

		waiter := "w1"
		list, err = db.ListReservations(ctx, "r1", store.ReservationFilter{WaiterID: &waiter})
		require.NoError(t, err)
		assert.Len(t, list, 1)
	})
}

func TestScheduleCRUD(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	until := datetime(30, 0, 0)
	s := &models.Schedule{
		ID: "s1", RestaurantID: "r1", WaiterID: "w1", WaiterName: "Ana",
		StartTime: datetime(2, 9, 0), EndTime: datetime(2, 17, 0),
		Type: models.ShiftMorning, IsActive: true, Status: models.ScheduleScheduled,
		Recurrence: &models.Recurrence{Frequency: "weekly", DaysOfWeek: []int{1}, Until: &until},
		CreatedAt:  datetime(1, 0, 0), UpdatedAt: datetime(1, 0, 0),
	}
	require.NoError(t, db.CreateSchedule(ctx, s))

	got, err := db.GetSchedule(ctx, "r1", "s1")
	require.NoError(t, err)
	require.NotNil(t, got.Recurrence)
	assert.Equal(t, "weekly", got.Recurrence.Frequency)
	assert.Equal(t, models.ShiftMorning, got.Type)

	got.Cancel(datetime(1, 10, 0))
	require.NoError(t, db.UpdateSchedule(ctx, got))

	waiter := "w1"
	list, err := db.ListSchedules(ctx, "r1", store.ScheduleFilter{WaiterID: &waiter, ActiveOnly: true})
	require.NoError(t, err)
	assert.Empty(t, list)

	list, err = db.ListSchedules(ctx, "r1", store.ScheduleFilter{WaiterID: &waiter})
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = db.GetSchedule(ctx, "r1", "nope")
	assert.True(t, models.IsNotFound(err))
	assert.NoError(t, db.Ping(ctx))
}
