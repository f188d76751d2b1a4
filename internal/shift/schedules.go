package shift

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"tablemind/internal/events"
	"tablemind/internal/metrics"
	"tablemind/internal/models"
	"tablemind/internal/store"
	"tablemind/internal/timewindow"
)

func (m *Manager) checkShift(ctx context.Context, restaurantID, waiterID string, start, end time.Time, excludingID string) error {
	existing, err := m.repo.ListSchedules(ctx, restaurantID, store.ScheduleFilter{
		WaiterID:   &waiterID,
		From:       &start,
		To:         &end,
		ActiveOnly: true,
	})
	if err != nil {
		return fmt.Errorf("list schedules: %w", err)
	}
	if blocking := m.checker.ShiftConflicts(existing, waiterID, start, end, excludingID); len(blocking) > 0 {
		metrics.IncConflict("shift")
		return &models.ConflictError{
			Reason:    fmt.Sprintf("waiter %s already has a shift in this window", waiterID),
			Schedules: blocking,
		}
	}
	return nil
}

func renderRecurrence(rec *models.Recurrence, start time.Time) (string, error) {
	if rec == nil {
		return "", nil
	}
	if err := models.Validate(rec); err != nil {
		return "", err
	}
	rule, err := rec.RRule(start)
	if err != nil {
		return "", models.NewValidationError("recurrence", err.Error())
	}
	return rule, nil
}

// CreateSchedule plans a shift. Overlapping active shifts of the same waiter are rejected
// and listed in the ConflictError.
func (m *Manager) CreateSchedule(ctx context.Context, draft models.ScheduleDraft) (*models.Schedule, error) {
	if err := models.Validate(draft); err != nil {
		return nil, err
	}
	if !draft.EndTime.After(draft.StartTime) {
		return nil, models.NewValidationError("endTime", "must be after startTime")
	}
	rule, err := renderRecurrence(draft.Recurrence, draft.StartTime)
	if err != nil {
		return nil, err
	}

	unlock := m.locks.Lock(draft.RestaurantID)
	defer unlock()

	r, err := m.loadRestaurant(ctx, draft.RestaurantID)
	if err != nil {
		return nil, err
	}
	w := r.Waiter(draft.WaiterID)
	if w == nil {
		return nil, models.NewNotFound("waiter", draft.WaiterID)
	}
	if err := m.checkShift(ctx, draft.RestaurantID, draft.WaiterID, draft.StartTime, draft.EndTime, ""); err != nil {
		return nil, err
	}

	now := m.now()
	s := &models.Schedule{
		ID:           uuid.NewString(),
		RestaurantID: draft.RestaurantID,
		WaiterID:     w.ID,
		WaiterName:   w.Name,
		StartTime:    draft.StartTime,
		EndTime:      draft.EndTime,
		Type:         draft.Type,
		IsActive:     true,
		Status:       models.ScheduleScheduled,
		Recurrence:   draft.Recurrence,
		RRule:        rule,
		Notes:        draft.Notes,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if s.Type == "" {
		s.Type = models.ShiftFullDay
	}
	if err := m.repo.CreateSchedule(ctx, s); err != nil {
		return nil, fmt.Errorf("create schedule: %w", err)
	}

	m.logger.Info().
		Str("restaurant_id", s.RestaurantID).
		Str("schedule_id", s.ID).
		Str("waiter_id", s.WaiterID).
		Time("start", s.StartTime).
		Time("end", s.EndTime).
		Msg("Schedule created")
	m.publish(events.ScheduleCreated, s)
	return s, nil
}

// ScheduleUpdate carries the fields an update may change. Nil fields stay as they are.
type ScheduleUpdate struct {
	StartTime  *time.Time
	EndTime    *time.Time
	Type       *models.ShiftType
	Notes      *string
	Recurrence *models.Recurrence
}

// UpdateSchedule edits a planned shift and re-runs the overlap check against the waiter's other shifts.
func (m *Manager) UpdateSchedule(ctx context.Context, restaurantID, id string, upd ScheduleUpdate) (*models.Schedule, error) {
	unlock := m.locks.Lock(restaurantID)
	defer unlock()

	s, err := m.repo.GetSchedule(ctx, restaurantID, id)
	if err != nil {
		return nil, fmt.Errorf("get schedule: %w", err)
	}
	if s.Status == models.ScheduleCompleted || s.Status == models.ScheduleCancelled || s.Status == models.ScheduleNoShow {
		return nil, models.TransitionError(string(s.Status), "updated")
	}

	next := *s
	if upd.StartTime != nil {
		next.StartTime = *upd.StartTime
	}
	if upd.EndTime != nil {
		next.EndTime = *upd.EndTime
	}
	if upd.Type != nil {
		next.Type = *upd.Type
		if err := models.Validate(models.ScheduleDraft{
			RestaurantID: next.RestaurantID,
			WaiterID:     next.WaiterID,
			StartTime:    next.StartTime,
			EndTime:      next.EndTime,
			Type:         next.Type,
		}); err != nil {
			return nil, err
		}
	}
	if upd.Notes != nil {
		next.Notes = *upd.Notes
	}
	if upd.Recurrence != nil {
		next.Recurrence = upd.Recurrence
	}
	if !next.EndTime.After(next.StartTime) {
		return nil, models.NewValidationError("endTime", "must be after startTime")
	}
	rule, err := renderRecurrence(next.Recurrence, next.StartTime)
	if err != nil {
		return nil, err
	}
	next.RRule = rule

	if !next.StartTime.Equal(s.StartTime) || !next.EndTime.Equal(s.EndTime) {
		if err := m.checkShift(ctx, restaurantID, next.WaiterID, next.StartTime, next.EndTime, next.ID); err != nil {
			return nil, err
		}
	}

	next.UpdatedAt = m.now()
	if err := m.repo.UpdateSchedule(ctx, &next); err != nil {
		return nil, fmt.Errorf("update schedule: %w", err)
	}
	m.publish(events.ScheduleUpdated, &next)
	return &next, nil
}

// StartSchedule begins a planned shift and puts the waiter on shift.
func (m *Manager) StartSchedule(ctx context.Context, restaurantID, id string) (*models.Schedule, error) {
	return m.transition(ctx, restaurantID, id, events.ScheduleStarted, func(s *models.Schedule, w *models.Waiter, now time.Time) (bool, error) {
		switch s.Status {
		case models.ScheduleInProgress:
			return false, nil
		case models.ScheduleScheduled:
		default:
			return false, models.TransitionError(string(s.Status), string(models.ScheduleInProgress))
		}
		s.Start(now)
		if w != nil {
			w.OnShift = true
			w.LastShiftStart = &now
		}
		return true, nil
	})
}

// EndSchedule completes a running shift and takes the waiter off shift.
func (m *Manager) EndSchedule(ctx context.Context, restaurantID, id string) (*models.Schedule, error) {
	return m.transition(ctx, restaurantID, id, events.ScheduleEnded, func(s *models.Schedule, w *models.Waiter, now time.Time) (bool, error) {
		switch s.Status {
		case models.ScheduleCompleted:
			return false, nil
		case models.ScheduleInProgress, models.ScheduleScheduled:
		default:
			return false, models.TransitionError(string(s.Status), string(models.ScheduleCompleted))
		}
		s.End(now)
		if w != nil {
			w.OnShift = false
		}
		return true, nil
	})
}

// CancelSchedule withdraws a shift so it no longer blocks other shifts.
func (m *Manager) CancelSchedule(ctx context.Context, restaurantID, id string) (*models.Schedule, error) {
	return m.transition(ctx, restaurantID, id, events.ScheduleCancelled, func(s *models.Schedule, w *models.Waiter, now time.Time) (bool, error) {
		switch s.Status {
		case models.ScheduleCancelled:
			return false, nil
		case models.ScheduleScheduled, models.ScheduleInProgress:
		default:
			return false, models.TransitionError(string(s.Status), string(models.ScheduleCancelled))
		}
		wasRunning := s.Status == models.ScheduleInProgress
		s.Cancel(now)
		if wasRunning && w != nil {
			w.OnShift = false
		}
		return true, nil
	})
}

// MarkNoShow records that the waiter never started a planned shift.
func (m *Manager) MarkNoShow(ctx context.Context, restaurantID, id string) (*models.Schedule, error) {
	return m.transition(ctx, restaurantID, id, events.ScheduleUpdated, func(s *models.Schedule, _ *models.Waiter, now time.Time) (bool, error) {
		switch s.Status {
		case models.ScheduleNoShow:
			return false, nil
		case models.ScheduleScheduled:
		default:
			return false, models.TransitionError(string(s.Status), string(models.ScheduleNoShow))
		}
		s.Status = models.ScheduleNoShow
		s.IsActive = false
		s.UpdatedAt = now
		return true, nil
	})
}

type scheduleStep func(s *models.Schedule, w *models.Waiter, now time.Time) (bool, error)

func (m *Manager) transition(ctx context.Context, restaurantID, id, eventType string, step scheduleStep) (*models.Schedule, error) {
	unlock := m.locks.Lock(restaurantID)
	defer unlock()

	s, err := m.repo.GetSchedule(ctx, restaurantID, id)
	if err != nil {
		return nil, fmt.Errorf("get schedule: %w", err)
	}
	r, err := m.loadRestaurant(ctx, restaurantID)
	if err != nil {
		return nil, err
	}
	// The waiter may have left the roster since the shift was planned.
	w := r.Waiter(s.WaiterID)

	changed, err := step(s, w, m.now())
	if err != nil {
		return nil, err
	}
	if !changed {
		return s, nil
	}
	if err := m.repo.UpdateSchedule(ctx, s); err != nil {
		return nil, fmt.Errorf("update schedule: %w", err)
	}
	if w != nil {
		if err := m.saveRestaurant(ctx, r); err != nil {
			return nil, err
		}
	}

	m.logger.Info().
		Str("restaurant_id", restaurantID).
		Str("schedule_id", id).
		Str("status", string(s.Status)).
		Msg("Schedule status changed")
	m.publish(eventType, s)
	return s, nil
}

// ActiveSchedules lists the active shifts touching the calendar day of date, earliest first.
func (m *Manager) ActiveSchedules(ctx context.Context, restaurantID string, date time.Time) ([]models.Schedule, error) {
	from, to := timewindow.DayBounds(date)
	end := to.Add(time.Millisecond)
	return m.repo.ListSchedules(ctx, restaurantID, store.ScheduleFilter{From: &from, To: &end, ActiveOnly: true})
}

// WaiterAvailability groups one waiter's shifts for a day.
type WaiterAvailability struct {
	WaiterID   string            `json:"waiterId"`
	WaiterName string            `json:"waiterName"`
	Schedules  []models.Schedule `json:"schedules"`
	TotalHours float64           `json:"totalHours"`
}

// Availability summarises the active shifts of date per waiter.
func (m *Manager) Availability(ctx context.Context, restaurantID string, date time.Time) (map[string]*WaiterAvailability, error) {
	schedules, err := m.ActiveSchedules(ctx, restaurantID, date)
	if err != nil {
		return nil, err
	}
	out := make(map[string]*WaiterAvailability)
	for _, s := range schedules {
		a, ok := out[s.WaiterID]
		if !ok {
			a = &WaiterAvailability{WaiterID: s.WaiterID, WaiterName: s.WaiterName}
			out[s.WaiterID] = a
		}
		a.Schedules = append(a.Schedules, s)
		a.TotalHours += s.DurationHours()
	}
	return out, nil
}

// WaiterSchedules lists every shift of a waiter starting in [from, to).
func (m *Manager) WaiterSchedules(ctx context.Context, restaurantID, waiterID string, from, to time.Time) ([]models.Schedule, error) {
	list, err := m.repo.ListSchedules(ctx, restaurantID, store.ScheduleFilter{WaiterID: &waiterID, To: &to})
	if err != nil {
		return nil, err
	}
	out := list[:0]
	for _, s := range list {
		if !s.StartTime.Before(from) {
			out = append(out, s)
		}
	}
	return out, nil
}
