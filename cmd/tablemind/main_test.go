package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tablemind/internal/config"
	"tablemind/internal/models"
	"tablemind/internal/store/memory"
)

func TestOpsRouter(t *testing.T) {
	var storeErr error
	checks := []readinessCheck{{name: "store", check: func(context.Context) error { return storeErr }}}
	h := newOpsRouter(checks, true)

	get := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		return rec
	}

	assert.Equal(t, http.StatusOK, get("/healthz").Code)
	assert.Equal(t, http.StatusOK, get("/readyz").Code)
	assert.Equal(t, http.StatusOK, get("/metrics").Code)

	storeErr = errors.New("down")
	rec := get("/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "store not ready")

	assert.Equal(t, http.StatusNotFound, get("/metrics-nope").Code)
	assert.Equal(t, http.StatusNotFound, newOpsRouterNoMetrics(t, "/metrics"))
}

func newOpsRouterNoMetrics(t *testing.T, path string) int {
	t.Helper()
	rec := httptest.NewRecorder()
	newOpsRouter(nil, false).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec.Code
}

func TestSeedRestaurants(t *testing.T) {
	ctx := context.Background()
	logger := zerolog.New(io.Discard)
	st := memory.New()

	existing := &models.Restaurant{ID: "r1", Name: "Renamed", Waiters: []models.Waiter{{ID: "x", Name: "Kept"}}}
	require.NoError(t, st.SaveRestaurant(ctx, existing))

	seeds := []config.RestaurantSeed{
		{ID: "r1", Name: "Old Town", Waiters: []string{"Ana"}},
		{ID: "r2", Name: "Harbour", Tables: []config.TableSeed{{ID: "T1", Seats: 4}}, Waiters: []string{"Lea", "Ivo"}},
	}
	require.NoError(t, seedRestaurants(ctx, st, seeds, &logger))

	r1, err := st.GetRestaurant(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", r1.Name)

	r2, err := st.GetRestaurant(ctx, "r2")
	require.NoError(t, err)
	require.Len(t, r2.Waiters, 2)
	assert.Equal(t, "r2-w2", r2.Waiters[1].ID)
	assert.True(t, r2.Settings.BackgroundMonitoring)
}

func TestDrift(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	require.NoError(t, st.SaveRestaurant(ctx, &models.Restaurant{
		ID:      "r1",
		Waiters: []models.Waiter{{ID: "w1", ActiveCount: 3}, {ID: "w2", ActiveCount: 1}},
	}))
	require.NoError(t, st.SaveRestaurant(ctx, &models.Restaurant{ID: "r2", Waiters: []models.Waiter{{ID: "v1"}}}))
	require.NoError(t, st.CreateReservation(ctx, &models.Reservation{
		ID: "a", RestaurantID: "r1", PartySize: 2, Time: time.Now().Add(time.Hour),
		Status: models.StatusBooked, AssignedWaiterID: "w2",
	}))

	found, err := drift(ctx, st)
	require.NoError(t, err)
	assert.Equal(t, map[string]map[string]int{"r1": {"w1": -3}}, found)

	// Nothing is written back.
	r1, err := st.GetRestaurant(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, 3, r1.Waiters[0].ActiveCount)
}

func TestNewEngine(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	require.NoError(t, st.SaveRestaurant(ctx, &models.Restaurant{
		ID:       "r1",
		Waiters:  []models.Waiter{{ID: "w1", OnShift: true}, {ID: "w2"}},
		Settings: models.DefaultSettings(),
	}))

	eng := newEngine(&config.Config{}, st, nil, zerolog.New(io.Discard))
	assert.Same(t, eng.reservations.Locks(), eng.shifts.Locks())

	res, err := eng.reservations.Create(ctx, models.ReservationDraft{
		RestaurantID: "r1",
		CustomerName: "Jana",
		Phone:        "+38591000000",
		PartySize:    2,
		Time:         time.Now().Add(2 * time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, "w1", res.AssignedWaiterID)

	result, err := eng.shifts.Handover(ctx, "r1", "w1", "w2")
	require.NoError(t, err)
	assert.Equal(t, []string{res.ID}, result.ReservationIDs)

	r, err := st.GetRestaurant(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, 1, r.Waiter("w2").ActiveCount)
	assert.True(t, r.Waiter("w2").OnShift)
}
