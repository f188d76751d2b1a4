// Package reservation implements the reservation lifecycle and its effect on waiter load.
package reservation

import (
	"fmt"
	"time"

	"tablemind/internal/load"
	"tablemind/internal/models"
)

// FSM holds the allowed status transitions.
type FSM struct {
	transitions map[models.ReservationStatus][]models.ReservationStatus
}

// NewFSM creates the reservation FSM. Departed and cancelled have no way out.
func NewFSM() *FSM {
	return &FSM{
		transitions: map[models.ReservationStatus][]models.ReservationStatus{
			models.StatusBooked:  {models.StatusArrived, models.StatusDeparted, models.StatusCancelled},
			models.StatusArrived: {models.StatusDeparted, models.StatusCancelled},
		},
	}
}

var fsm = NewFSM()

func (f *FSM) CanTransition(from, to models.ReservationStatus) bool {
	for _, s := range f.transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func checkTransition(r *models.Reservation, to models.ReservationStatus) error {
	if r.Archived {
		return models.TransitionError("archived", string(to))
	}
	if !fsm.CanTransition(r.Status, to) {
		return models.TransitionError(string(r.Status), string(to))
	}
	return nil
}

// release drops one unit of load from a waiter. A waiter removed from the roster is skipped.
func release(tr *load.Tracker, waiterID string) error {
	if waiterID == "" {
		return nil
	}
	if err := tr.Decrement(waiterID); err != nil && !models.IsNotFound(err) {
		return err
	}
	return nil
}

// Arrive moves a booked reservation to arrived. Repeating it is a no-op.
func Arrive(r *models.Reservation, now time.Time) (bool, error) {
	if r.Status == models.StatusArrived && !r.Archived {
		return false, nil
	}
	if err := checkTransition(r, models.StatusArrived); err != nil {
		return false, err
	}
	r.Status = models.StatusArrived
	r.ArrivedAt = &now
	r.UpdatedAt = now
	r.Version++
	return true, nil
}

// Depart closes the reservation, releases the waiter and books the bill into the waiter's month.
// Repeating it with the same bill is a no-op; a different bill is rejected.
func Depart(tr *load.Tracker, r *models.Reservation, bill float64, now time.Time) (bool, error) {
	if bill < 0 {
		return false, models.NewValidationError("billAmount", "must not be negative")
	}
	if r.Status == models.StatusDeparted {
		if r.BillAmount == bill {
			return false, nil
		}
		return false, &models.ConflictError{
			Reason:       fmt.Sprintf("already departed with bill %.2f", r.BillAmount),
			Reservations: []models.Reservation{*r},
			Err:          models.ErrInvalidTransition,
		}
	}
	if err := checkTransition(r, models.StatusDeparted); err != nil {
		return false, err
	}

	if r.AssignedWaiterID != "" {
		if err := release(tr, r.AssignedWaiterID); err != nil {
			return false, err
		}
		if err := tr.RecordCompletion(r.AssignedWaiterID, bill, now); err != nil && !models.IsNotFound(err) {
			return false, err
		}
	}
	r.Status = models.StatusDeparted
	r.DepartedAt = &now
	r.BillAmount = bill
	r.UpdatedAt = now
	r.Version++
	return true, nil
}

// Cancel ends a reservation before departure. Repeating it is a no-op.
func Cancel(tr *load.Tracker, r *models.Reservation, now time.Time) (bool, error) {
	if r.Status == models.StatusCancelled {
		return false, nil
	}
	if err := checkTransition(r, models.StatusCancelled); err != nil {
		return false, err
	}
	if err := release(tr, r.AssignedWaiterID); err != nil {
		return false, err
	}
	r.Status = models.StatusCancelled
	r.UpdatedAt = now
	r.Version++
	return true, nil
}

// Archive soft-deletes a reservation. An active reservation releases its waiter first;
// a departed or cancelled one only gets the marker.
func Archive(tr *load.Tracker, r *models.Reservation, now time.Time) (bool, error) {
	if r.Archived {
		return false, nil
	}
	if r.IsActive() {
		if err := release(tr, r.AssignedWaiterID); err != nil {
			return false, err
		}
	}
	r.Archived = true
	r.ArchivedAt = &now
	r.UpdatedAt = now
	r.Version++
	return true, nil
}

// Reassign moves an active reservation to another waiter, keeping both load counts in step.
func Reassign(tr *load.Tracker, r *models.Reservation, waiterID string, now time.Time) (bool, error) {
	if waiterID == "" {
		return false, models.NewValidationError("waiterId", "is required")
	}
	if r.IsTerminal() {
		return false, models.TransitionError(terminalLabel(r), "reassigned")
	}
	if r.AssignedWaiterID == waiterID {
		return false, nil
	}
	if err := tr.Increment(waiterID); err != nil {
		return false, err
	}
	if err := release(tr, r.AssignedWaiterID); err != nil {
		return false, err
	}
	r.AssignedWaiterID = waiterID
	r.UpdatedAt = now
	r.Version++
	return true, nil
}

func terminalLabel(r *models.Reservation) string {
	if r.Archived {
		return "archived"
	}
	return string(r.Status)
}
