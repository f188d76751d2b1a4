package load

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tablemind/internal/models"
)

func newRestaurant() *models.Restaurant {
	return &models.Restaurant{
		ID: "r1",
		Waiters: []models.Waiter{
			{ID: "w1", Name: "Ana"},
			{ID: "w2", Name: "Marko", ActiveCount: 2},
		},
	}
}

func TestTracker_IncrementDecrement(t *testing.T) {
	r := newRestaurant()
	tr := NewTracker(r)

	require.NoError(t, tr.Increment("w1"))
	require.NoError(t, tr.Increment("w1"))
	assert.Equal(t, 2, r.Waiter("w1").ActiveCount)

	require.NoError(t, tr.Decrement("w1"))
	require.NoError(t, tr.Decrement("w1"))
	require.NoError(t, tr.Decrement("w1"))
	assert.Equal(t, 0, r.Waiter("w1").ActiveCount)

	assert.True(t, models.IsNotFound(tr.Increment("ghost")))
	assert.True(t, models.IsNotFound(tr.Decrement("ghost")))
}

func TestTracker_RecordCompletion(t *testing.T) {
	r := newRestaurant()
	tr := NewTracker(r)

	march := time.Date(2026, 3, 31, 22, 0, 0, 0, time.UTC)
	april := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, tr.RecordCompletion("w1", 100, march))
	require.NoError(t, tr.RecordCompletion("w1", 50.5, march))
	require.NoError(t, tr.RecordCompletion("w1", 20, april))

	stats := r.Waiter("w1").Stats
	assert.Equal(t, models.MonthStats{Reservations: 2, Revenue: 150.5}, stats["2026-03"])
	assert.Equal(t, models.MonthStats{Reservations: 1, Revenue: 20}, stats["2026-04"])
	assert.Equal(t, 0, r.Waiter("w1").ActiveCount)

	assert.True(t, models.IsNotFound(tr.RecordCompletion("ghost", 1, march)))
}

func TestTracker_Reconcile(t *testing.T) {
	r := newRestaurant()
	tr := NewTracker(r)

	reservations := []models.Reservation{
		{ID: "a", RestaurantID: "r1", AssignedWaiterID: "w1", Status: models.StatusBooked},
		{ID: "b", RestaurantID: "r1", AssignedWaiterID: "w1", Status: models.StatusArrived},
		{ID: "c", RestaurantID: "r1", AssignedWaiterID: "w1", Status: models.StatusDeparted},
		{ID: "d", RestaurantID: "r1", AssignedWaiterID: "w2", Status: models.StatusBooked, Archived: true},
		{ID: "e", RestaurantID: "other", AssignedWaiterID: "w2", Status: models.StatusBooked},
	}

	drift := tr.Reconcile(reservations)
	assert.Equal(t, map[string]int{"w1": 2, "w2": -2}, drift)
	assert.Equal(t, 2, r.Waiter("w1").ActiveCount)
	assert.Equal(t, 0, r.Waiter("w2").ActiveCount)

	assert.Empty(t, tr.Reconcile(reservations))
}
