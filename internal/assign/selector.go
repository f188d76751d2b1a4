// Package assign picks a waiter for a reservation using a least-loaded heuristic.
package assign

import "tablemind/internal/models"

// SelectWaiter prefers on-shift waiters and falls back to everyone when nobody is on shift.
// The lowest ActiveCount wins; ties go to the earliest entry in the slice.
// It returns false when waiters is empty, which is a normal "leave unassigned" outcome.
func SelectWaiter(waiters []models.Waiter) (models.Waiter, bool) {
	candidates := make([]models.Waiter, 0, len(waiters))
	for _, w := range waiters {
		if w.OnShift {
			candidates = append(candidates, w)
		}
	}
	if len(candidates) == 0 {
		candidates = waiters
	}
	if len(candidates) == 0 {
		return models.Waiter{}, false
	}

	best := candidates[0]
	for _, w := range candidates[1:] {
		if w.ActiveCount < best.ActiveCount {
			best = w
		}
	}
	return best, true
}
