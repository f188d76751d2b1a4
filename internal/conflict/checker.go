// Package conflict detects table double-booking and overlapping waiter shifts.
package conflict

import (
	"time"

	"tablemind/internal/models"
	"tablemind/internal/timewindow"
)

// Policy holds the windows used by table checks.
type Policy struct {
	Buffer          time.Duration
	DefaultDuration time.Duration
}

// DefaultPolicy keeps a one hour gap on each side of a one hour reservation.
func DefaultPolicy() Policy {
	return Policy{
		Buffer:          time.Hour,
		DefaultDuration: models.DefaultDurationMinutes * time.Minute,
	}
}

// Checker is a pure function over the reservations and schedules it is handed.
type Checker struct {
	policy Policy
}

func NewChecker(policy Policy) *Checker {
	if policy.Buffer < 0 {
		policy.Buffer = 0
	}
	if policy.DefaultDuration <= 0 {
		policy.DefaultDuration = DefaultPolicy().DefaultDuration
	}
	return &Checker{policy: policy}
}

func (c *Checker) Policy() Policy {
	return c.policy
}

func (c *Checker) duration(minutes int) time.Duration {
	if minutes <= 0 {
		return c.policy.DefaultDuration
	}
	return time.Duration(minutes) * time.Minute
}

// TableConflicts returns every active reservation on tableID whose own window overlaps the
// proposed window expanded by the buffer. An empty tableID never conflicts.
func (c *Checker) TableConflicts(existing []models.Reservation, tableID string, proposedStart time.Time, durationMinutes int, excludingID string) []models.Reservation {
	if tableID == "" {
		return nil
	}
	start, end := timewindow.Expand(proposedStart, proposedStart.Add(c.duration(durationMinutes)), c.policy.Buffer)

	var conflicts []models.Reservation
	for _, r := range existing {
		if r.TableID != tableID || r.IsTerminal() {
			continue
		}
		if excludingID != "" && r.ID == excludingID {
			continue
		}
		rEnd := r.Time.Add(c.duration(r.DurationMinutes))
		if timewindow.Overlaps(start, end, r.Time, rEnd) {
			conflicts = append(conflicts, r)
		}
	}
	return conflicts
}

// HasTableConflict is the boolean form of TableConflicts.
func (c *Checker) HasTableConflict(existing []models.Reservation, tableID string, proposedStart time.Time, durationMinutes int, excludingID string) bool {
	return len(c.TableConflicts(existing, tableID, proposedStart, durationMinutes, excludingID)) > 0
}

// ShiftConflicts returns the active schedules of waiterID overlapping [start, end).
// Starting during, ending during and containing an existing shift all satisfy the same predicate.
func (c *Checker) ShiftConflicts(existing []models.Schedule, waiterID string, start, end time.Time, excludingID string) []models.Schedule {
	var conflicts []models.Schedule
	for _, s := range existing {
		if s.WaiterID != waiterID || !s.IsActive || s.Status == models.ScheduleCancelled {
			continue
		}
		if excludingID != "" && s.ID == excludingID {
			continue
		}
		if timewindow.Overlaps(start, end, s.StartTime, s.EndTime) {
			conflicts = append(conflicts, s)
		}
	}
	return conflicts
}
