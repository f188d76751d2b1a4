// Package load owns every mutation of a waiter's active count and monthly statistics.
package load

import (
	"time"

	"tablemind/internal/models"
	"tablemind/internal/timewindow"
)

// Tracker mutates the waiters of one restaurant aggregate. Callers hold the restaurant lock.
type Tracker struct {
	restaurant *models.Restaurant
}

func NewTracker(r *models.Restaurant) *Tracker {
	return &Tracker{restaurant: r}
}

func (t *Tracker) waiter(id string) (*models.Waiter, error) {
	w := t.restaurant.Waiter(id)
	if w == nil {
		return nil, models.NewNotFound("waiter", id)
	}
	return w, nil
}

// Increment records a new assignment.
func (t *Tracker) Increment(waiterID string) error {
	w, err := t.waiter(waiterID)
	if err != nil {
		return err
	}
	w.ActiveCount++
	return nil
}

// Decrement releases an assignment. The count never drops below zero, so retried calls are harmless.
func (t *Tracker) Decrement(waiterID string) error {
	w, err := t.waiter(waiterID)
	if err != nil {
		return err
	}
	if w.ActiveCount > 0 {
		w.ActiveCount--
	}
	return nil
}

// RecordCompletion adds one reservation and its bill to the waiter's month bucket for when.
func (t *Tracker) RecordCompletion(waiterID string, billAmount float64, when time.Time) error {
	w, err := t.waiter(waiterID)
	if err != nil {
		return err
	}
	if w.Stats == nil {
		w.Stats = make(map[string]models.MonthStats)
	}
	key := timewindow.MonthKey(when)
	s := w.Stats[key]
	s.Reservations++
	s.Revenue += billAmount
	w.Stats[key] = s
	return nil
}

// Reconcile recomputes every active count from the reservations and reports the waiters that drifted.
func (t *Tracker) Reconcile(reservations []models.Reservation) map[string]int {
	counts := make(map[string]int, len(t.restaurant.Waiters))
	for _, r := range reservations {
		if r.RestaurantID != "" && r.RestaurantID != t.restaurant.ID {
			continue
		}
		if r.CountsTowards(r.AssignedWaiterID) {
			counts[r.AssignedWaiterID]++
		}
	}

	drift := make(map[string]int)
	for i := range t.restaurant.Waiters {
		w := &t.restaurant.Waiters[i]
		if w.ActiveCount != counts[w.ID] {
			drift[w.ID] = counts[w.ID] - w.ActiveCount
			w.ActiveCount = counts[w.ID]
		}
	}
	return drift
}

// Waiters returns a snapshot of the roster for selection.
func (t *Tracker) Waiters() []models.Waiter {
	return append([]models.Waiter(nil), t.restaurant.Waiters...)
}
