package models

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func datetime(year int, month time.Month, day, hour, min int) time.Time {
	return time.Date(year, month, day, hour, min, 0, 0, time.UTC)
}

func TestReservation_Helpers(t *testing.T) {
	r := Reservation{Time: datetime(2026, 3, 1, 19, 0), Status: StatusBooked, AssignedWaiterID: "w1"}

	t.Run("DefaultDuration", func(t *testing.T) {
		assert.Equal(t, time.Hour, r.Duration())
		assert.Equal(t, datetime(2026, 3, 1, 20, 0), r.End())
	})

	t.Run("ExplicitDuration", func(t *testing.T) {
		r2 := r
		r2.DurationMinutes = 90
		assert.Equal(t, datetime(2026, 3, 1, 20, 30), r2.End())
	})

	t.Run("Terminal", func(t *testing.T) {
		assert.False(t, r.IsTerminal())
		assert.True(t, r.CountsTowards("w1"))
		assert.False(t, r.CountsTowards("w2"))
		assert.False(t, r.CountsTowards(""))

		for _, s := range []ReservationStatus{StatusDeparted, StatusCancelled} {
			r2 := r
			r2.Status = s
			assert.True(t, r2.IsTerminal(), s)
			assert.False(t, r2.CountsTowards("w1"))
		}

		archived := r
		archived.Archived = true
		assert.True(t, archived.IsTerminal())
	})
}

func TestSchedule_Lifecycle(t *testing.T) {
	s := Schedule{
		StartTime: datetime(2026, 3, 1, 9, 0),
		EndTime:   datetime(2026, 3, 1, 17, 0),
		IsActive:  true,
		Status:    ScheduleScheduled,
	}

	assert.Equal(t, 8.0, s.DurationHours())
	assert.True(t, s.IsCurrentlyActive(datetime(2026, 3, 1, 9, 0)))
	assert.True(t, s.IsCurrentlyActive(datetime(2026, 3, 1, 16, 59)))
	assert.False(t, s.IsCurrentlyActive(datetime(2026, 3, 1, 17, 0)))

	started := datetime(2026, 3, 1, 9, 5)
	s.Start(started)
	assert.Equal(t, ScheduleInProgress, s.Status)
	require.NotNil(t, s.ActualStart)
	assert.Equal(t, started, *s.ActualStart)

	ended := datetime(2026, 3, 1, 17, 10)
	s.End(ended)
	assert.Equal(t, ScheduleCompleted, s.Status)
	require.NotNil(t, s.ActualEnd)

	c := Schedule{StartTime: s.StartTime, EndTime: s.EndTime, IsActive: true}
	c.Cancel(ended)
	assert.Equal(t, ScheduleCancelled, c.Status)
	assert.False(t, c.IsActive)
	assert.False(t, c.IsCurrentlyActive(datetime(2026, 3, 1, 10, 0)))
}

func TestRecurrence_RRule(t *testing.T) {
	start := datetime(2026, 3, 2, 9, 0)

	t.Run("Weekly", func(t *testing.T) {
		until := datetime(2026, 6, 1, 0, 0)
		r := Recurrence{Frequency: "weekly", DaysOfWeek: []int{1, 3}, Until: &until}
		rule, err := r.RRule(start)
		require.NoError(t, err)
		assert.Contains(t, rule, "FREQ=WEEKLY")
		assert.Contains(t, rule, "BYDAY=MO,WE")
		assert.Contains(t, rule, "UNTIL=")
	})

	t.Run("UnknownFrequency", func(t *testing.T) {
		r := Recurrence{Frequency: "hourly"}
		_, err := r.RRule(start)
		assert.Error(t, err)
	})

	t.Run("UntilBeforeStart", func(t *testing.T) {
		until := datetime(2026, 3, 1, 0, 0)
		r := Recurrence{Frequency: "daily", Until: &until}
		_, err := r.RRule(start)
		assert.Error(t, err)
	})
}

func TestRestaurant_Clone(t *testing.T) {
	r := &Restaurant{
		ID:      "r1",
		Waiters: []Waiter{{ID: "w1", Name: "Ana", Stats: map[string]MonthStats{"2026-03": {Reservations: 1}}}},
		Tables:  []Table{{ID: "T1", Seats: 4}},
	}
	c := r.Clone()
	c.Waiter("w1").ActiveCount = 5
	c.Waiters[0].Stats["2026-03"] = MonthStats{Reservations: 9}
	c.Table("T1").Seats = 2

	assert.Equal(t, 0, r.Waiters[0].ActiveCount)
	assert.Equal(t, 1, r.Waiters[0].Stats["2026-03"].Reservations)
	assert.Equal(t, 4, r.Tables[0].Seats)
	assert.NotNil(t, r.WaiterByName("ANA"))
	assert.Nil(t, r.Waiter("missing"))
}

func TestErrors(t *testing.T) {
	t.Run("Validation", func(t *testing.T) {
		err := fmt.Errorf("create: %w", NewValidationError("partySize", "must be at least 1"))
		assert.True(t, IsValidation(err))
		assert.False(t, IsConflict(err))
		assert.Contains(t, err.Error(), "partySize")
	})

	t.Run("Conflict", func(t *testing.T) {
		err := &ConflictError{Reason: "table busy", Reservations: []Reservation{{ID: "a"}}}
		assert.True(t, IsConflict(err))
		ce, ok := AsConflict(fmt.Errorf("wrap: %w", err))
		require.True(t, ok)
		assert.Len(t, ce.Reservations, 1)
		assert.Contains(t, err.Error(), "a")
	})

	t.Run("Transition", func(t *testing.T) {
		err := TransitionError("departed", "arrived")
		assert.True(t, IsConflict(err))
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})

	t.Run("NotFound", func(t *testing.T) {
		assert.True(t, IsNotFound(NewNotFound("waiter", "w9")))
		assert.False(t, IsNotFound(nil))
	})
}

func TestValidate(t *testing.T) {
	base := ReservationDraft{
		RestaurantID: "r1",
		CustomerName: "Mila",
		Phone:        "0601234567",
		PartySize:    2,
		Time:         datetime(2026, 3, 1, 19, 0),
	}
	assert.NoError(t, Validate(base))

	cases := []struct {
		name  string
		edit  func(d *ReservationDraft)
		field string
	}{
		{"MissingName", func(d *ReservationDraft) { d.CustomerName = "" }, "customerName"},
		{"MissingPhone", func(d *ReservationDraft) { d.Phone = "" }, "phone"},
		{"ZeroParty", func(d *ReservationDraft) { d.PartySize = 0 }, "partySize"},
		{"MissingTime", func(d *ReservationDraft) { d.Time = time.Time{} }, "time"},
		{"BadEmail", func(d *ReservationDraft) { d.Email = "nope" }, "email"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := base
			tc.edit(&d)
			err := Validate(d)
			require.Error(t, err)
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tc.field, ve.Field)
		})
	}
}
