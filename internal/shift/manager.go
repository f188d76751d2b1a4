// Package shift manages the waiter roster, planned schedules and shift handovers.
package shift

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"tablemind/internal/conflict"
	"tablemind/internal/events"
	"tablemind/internal/lock"
	"tablemind/internal/models"
	"tablemind/internal/store"
)

// Repository is the part of the store the manager needs.
type Repository interface {
	store.RestaurantStore
	store.ReservationStore
	store.ScheduleStore
}

// Publisher receives domain events after a change is persisted.
type Publisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// Manager applies roster and schedule changes under the same restaurant lock as reservations.
type Manager struct {
	repo    Repository
	checker *conflict.Checker
	locks   *lock.Keyed
	events  Publisher
	logger  zerolog.Logger
	now     func() time.Time
}

func NewManager(
	repo Repository,
	checker *conflict.Checker,
	locks *lock.Keyed,
	publisher Publisher,
	logger zerolog.Logger,
) *Manager {
	if checker == nil {
		checker = conflict.NewChecker(conflict.DefaultPolicy())
	}
	if locks == nil {
		locks = lock.NewKeyed()
	}
	return &Manager{
		repo:    repo,
		checker: checker,
		locks:   locks,
		events:  publisher,
		logger:  logger.With().Str("component", "shifts").Logger(),
		now:     time.Now,
	}
}

// Locks returns the restaurant lock set the manager serializes on.
func (m *Manager) Locks() *lock.Keyed {
	return m.locks
}

// SetClock replaces the time source.
func (m *Manager) SetClock(now func() time.Time) {
	m.now = now
}

func (m *Manager) publish(eventType string, payload interface{}) {
	if m.events == nil {
		return
	}
	if err := m.events.PublishJSON(eventType, payload); err != nil {
		m.logger.Warn().Err(err).Str("event", eventType).Msg("Failed to publish event")
	}
}

func (m *Manager) loadRestaurant(ctx context.Context, restaurantID string) (*models.Restaurant, error) {
	r, err := m.repo.GetRestaurant(ctx, restaurantID)
	if err != nil {
		return nil, fmt.Errorf("get restaurant: %w", err)
	}
	return r, nil
}

func (m *Manager) saveRestaurant(ctx context.Context, r *models.Restaurant) error {
	r.UpdatedAt = m.now()
	if err := m.repo.SaveRestaurant(ctx, r); err != nil {
		return fmt.Errorf("save restaurant: %w", err)
	}
	return nil
}

type shiftChange struct {
	RestaurantID string   `json:"restaurantId"`
	WaiterIDs    []string `json:"waiterIds"`
	OnShift      bool     `json:"onShift"`
}

// StartShifts puts every listed waiter on shift. Unknown ids reject the whole call.
func (m *Manager) StartShifts(ctx context.Context, restaurantID string, waiterIDs []string) (*models.Restaurant, error) {
	return m.setShift(ctx, restaurantID, waiterIDs, true)
}

// EndShifts takes every listed waiter off shift.
func (m *Manager) EndShifts(ctx context.Context, restaurantID string, waiterIDs []string) (*models.Restaurant, error) {
	return m.setShift(ctx, restaurantID, waiterIDs, false)
}

func (m *Manager) setShift(ctx context.Context, restaurantID string, waiterIDs []string, onShift bool) (*models.Restaurant, error) {
	unlock := m.locks.Lock(restaurantID)
	defer unlock()

	r, err := m.loadRestaurant(ctx, restaurantID)
	if err != nil {
		return nil, err
	}
	for _, id := range waiterIDs {
		if r.Waiter(id) == nil {
			return nil, models.NewNotFound("waiter", id)
		}
	}

	now := m.now()
	for _, id := range waiterIDs {
		w := r.Waiter(id)
		if onShift && !w.OnShift {
			w.LastShiftStart = &now
		}
		w.OnShift = onShift
	}
	if err := m.saveRestaurant(ctx, r); err != nil {
		return nil, err
	}

	m.logger.Info().
		Str("restaurant_id", restaurantID).
		Strs("waiter_ids", waiterIDs).
		Bool("on_shift", onShift).
		Msg("Shifts changed")
	m.publish(events.ShiftsChanged, shiftChange{RestaurantID: restaurantID, WaiterIDs: waiterIDs, OnShift: onShift})
	return r, nil
}

// ToggleShift flips one waiter's shift flag.
func (m *Manager) ToggleShift(ctx context.Context, restaurantID, waiterID string) (*models.Waiter, error) {
	unlock := m.locks.Lock(restaurantID)
	defer unlock()

	r, err := m.loadRestaurant(ctx, restaurantID)
	if err != nil {
		return nil, err
	}
	w := r.Waiter(waiterID)
	if w == nil {
		return nil, models.NewNotFound("waiter", waiterID)
	}
	w.OnShift = !w.OnShift
	if w.OnShift {
		now := m.now()
		w.LastShiftStart = &now
	}
	if err := m.saveRestaurant(ctx, r); err != nil {
		return nil, err
	}

	out := *w
	m.publish(events.ShiftsChanged, shiftChange{RestaurantID: restaurantID, WaiterIDs: []string{waiterID}, OnShift: out.OnShift})
	return &out, nil
}

// AddWaiter appends a waiter to the roster. Names are unique regardless of case.
func (m *Manager) AddWaiter(ctx context.Context, restaurantID, name string) (*models.Waiter, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, models.NewValidationError("name", "is required")
	}

	unlock := m.locks.Lock(restaurantID)
	defer unlock()

	r, err := m.loadRestaurant(ctx, restaurantID)
	if err != nil {
		return nil, err
	}
	if r.WaiterByName(name) != nil {
		return nil, &models.ConflictError{Reason: fmt.Sprintf("waiter %q already exists", name)}
	}

	w := models.Waiter{ID: uuid.NewString(), Name: name}
	r.Waiters = append(r.Waiters, w)
	if err := m.saveRestaurant(ctx, r); err != nil {
		return nil, err
	}
	m.logger.Info().Str("restaurant_id", restaurantID).Str("waiter_id", w.ID).Msg("Waiter added")
	return &w, nil
}
