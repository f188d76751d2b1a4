package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/teambition/rrule-go"
)

// ShiftType classifies a schedule.
type ShiftType string

const (
	ShiftMorning   ShiftType = "morning"
	ShiftAfternoon ShiftType = "afternoon"
	ShiftEvening   ShiftType = "evening"
	ShiftNight     ShiftType = "night"
	ShiftFullDay   ShiftType = "full-day"
	ShiftSplit     ShiftType = "split"
)

// ScheduleStatus represents the state of a planned shift.
type ScheduleStatus string

const (
	ScheduleScheduled  ScheduleStatus = "scheduled"
	ScheduleInProgress ScheduleStatus = "in-progress"
	ScheduleCompleted  ScheduleStatus = "completed"
	ScheduleCancelled  ScheduleStatus = "cancelled"
	ScheduleNoShow     ScheduleStatus = "no-show"
)

// Recurrence describes a repeating shift. It is stored, never expanded.
type Recurrence struct {
	Frequency  string     `json:"frequency" bson:"frequency" validate:"oneof=daily weekly monthly"`
	DaysOfWeek []int      `json:"daysOfWeek,omitempty" bson:"daysOfWeek,omitempty" validate:"dive,min=0,max=6"`
	Until      *time.Time `json:"until,omitempty" bson:"until,omitempty"`
}

var recurrenceFrequencies = map[string]rrule.Frequency{
	"daily":   rrule.DAILY,
	"weekly":  rrule.WEEKLY,
	"monthly": rrule.MONTHLY,
}

// weekdays is indexed by time.Weekday (Sunday == 0).
var weekdays = []rrule.Weekday{rrule.SU, rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA}

// RRule renders the descriptor as an RFC 5545 rule anchored at start.
func (r *Recurrence) RRule(start time.Time) (string, error) {
	freq, ok := recurrenceFrequencies[strings.ToLower(r.Frequency)]
	if !ok {
		return "", fmt.Errorf("unknown frequency %q", r.Frequency)
	}
	opt := rrule.ROption{Freq: freq, Dtstart: start}
	for _, d := range r.DaysOfWeek {
		if d < 0 || d > 6 {
			return "", fmt.Errorf("weekday %d out of range", d)
		}
		opt.Byweekday = append(opt.Byweekday, weekdays[d])
	}
	if r.Until != nil {
		if !r.Until.After(start) {
			return "", fmt.Errorf("until must be after shift start")
		}
		opt.Until = *r.Until
	}
	rule, err := rrule.NewRRule(opt)
	if err != nil {
		return "", fmt.Errorf("build rrule: %w", err)
	}
	return rule.String(), nil
}

// Schedule is a planned shift for one waiter.
type Schedule struct {
	ID           string         `json:"id" bson:"_id"`
	RestaurantID string         `json:"restaurantId" bson:"restaurantId"`
	WaiterID     string         `json:"waiterId" bson:"waiterId"`
	WaiterName   string         `json:"waiterName" bson:"waiterName"`
	StartTime    time.Time      `json:"startTime" bson:"startTime"`
	EndTime      time.Time      `json:"endTime" bson:"endTime"`
	Type         ShiftType      `json:"type" bson:"type"`
	IsActive     bool           `json:"isActive" bson:"isActive"`
	Status       ScheduleStatus `json:"status" bson:"status"`
	ActualStart  *time.Time     `json:"actualStartTime,omitempty" bson:"actualStartTime,omitempty"`
	ActualEnd    *time.Time     `json:"actualEndTime,omitempty" bson:"actualEndTime,omitempty"`
	Recurrence   *Recurrence    `json:"recurrence,omitempty" bson:"recurrence,omitempty"`
	RRule        string         `json:"rrule,omitempty" bson:"rrule,omitempty"`
	Notes        string         `json:"notes,omitempty" bson:"notes,omitempty"`
	CreatedAt    time.Time      `json:"createdAt" bson:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt" bson:"updatedAt"`
}

// IsCurrentlyActive reports whether now falls inside an active, non-cancelled schedule.
func (s *Schedule) IsCurrentlyActive(now time.Time) bool {
	if !s.IsActive || s.Status == ScheduleCancelled {
		return false
	}
	return !now.Before(s.StartTime) && now.Before(s.EndTime)
}

// DurationHours is the planned length of the shift.
func (s *Schedule) DurationHours() float64 {
	return s.EndTime.Sub(s.StartTime).Hours()
}

// Start marks the shift as begun.
func (s *Schedule) Start(now time.Time) {
	s.Status = ScheduleInProgress
	s.ActualStart = &now
	s.UpdatedAt = now
}

// End marks the shift as completed.
func (s *Schedule) End(now time.Time) {
	s.Status = ScheduleCompleted
	s.ActualEnd = &now
	s.UpdatedAt = now
}

// Cancel deactivates the schedule so it no longer takes part in conflict checks.
func (s *Schedule) Cancel(now time.Time) {
	s.Status = ScheduleCancelled
	s.IsActive = false
	s.UpdatedAt = now
}

// ScheduleDraft is the input to schedule creation.
type ScheduleDraft struct {
	RestaurantID string      `json:"restaurantId" validate:"required"`
	WaiterID     string      `json:"waiterId" validate:"required"`
	StartTime    time.Time   `json:"startTime" validate:"required"`
	EndTime      time.Time   `json:"endTime" validate:"required"`
	Type         ShiftType   `json:"type" validate:"omitempty,oneof=morning afternoon evening night full-day split"`
	Recurrence   *Recurrence `json:"recurrence,omitempty"`
	Notes        string      `json:"notes,omitempty"`
}
