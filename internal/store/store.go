// Package store defines the persistence collaborator used by the scheduling services.
package store

import (
	"context"
	"time"

	"tablemind/internal/models"
)

// ReservationFilter narrows ListReservations. Nil fields are ignored.
type ReservationFilter struct {
	TableID    *string
	WaiterID   *string
	Status     *models.ReservationStatus
	From       *time.Time // inclusive lower bound on reservation time
	To         *time.Time // exclusive upper bound on reservation time
	ActiveOnly bool
}

// Match applies the filter in memory. Stores that cannot express a clause natively use it.
func (f ReservationFilter) Match(r *models.Reservation) bool {
	if f.TableID != nil && r.TableID != *f.TableID {
		return false
	}
	if f.WaiterID != nil && r.AssignedWaiterID != *f.WaiterID {
		return false
	}
	if f.Status != nil && r.Status != *f.Status {
		return false
	}
	if f.From != nil && r.Time.Before(*f.From) {
		return false
	}
	if f.To != nil && !r.Time.Before(*f.To) {
		return false
	}
	if f.ActiveOnly && r.IsTerminal() {
		return false
	}
	return true
}

// ScheduleFilter narrows ListSchedules. Nil fields are ignored.
type ScheduleFilter struct {
	WaiterID   *string
	From       *time.Time // schedules ending after From
	To         *time.Time // schedules starting before To
	ActiveOnly bool
}

func (f ScheduleFilter) Match(s *models.Schedule) bool {
	if f.WaiterID != nil && s.WaiterID != *f.WaiterID {
		return false
	}
	if f.From != nil && !s.EndTime.After(*f.From) {
		return false
	}
	if f.To != nil && !s.StartTime.Before(*f.To) {
		return false
	}
	if f.ActiveOnly && (!s.IsActive || s.Status == models.ScheduleCancelled) {
		return false
	}
	return true
}

// RestaurantStore reads and writes the restaurant aggregate with its tables and waiters.
type RestaurantStore interface {
	GetRestaurant(ctx context.Context, id string) (*models.Restaurant, error)
	SaveRestaurant(ctx context.Context, r *models.Restaurant) error
	ListRestaurants(ctx context.Context) ([]models.Restaurant, error)
}

// ReservationStore persists reservations keyed by restaurant and reservation id.
type ReservationStore interface {
	CreateReservation(ctx context.Context, r *models.Reservation) error
	GetReservation(ctx context.Context, restaurantID, id string) (*models.Reservation, error)
	UpdateReservation(ctx context.Context, r *models.Reservation) error
	ListReservations(ctx context.Context, restaurantID string, filter ReservationFilter) ([]models.Reservation, error)
}

// ScheduleStore persists waiter shifts.
type ScheduleStore interface {
	CreateSchedule(ctx context.Context, s *models.Schedule) error
	GetSchedule(ctx context.Context, restaurantID, id string) (*models.Schedule, error)
	UpdateSchedule(ctx context.Context, s *models.Schedule) error
	ListSchedules(ctx context.Context, restaurantID string, filter ScheduleFilter) ([]models.Schedule, error)
}

// Store is the full collaborator.
type Store interface {
	RestaurantStore
	ReservationStore
	ScheduleStore
	Ping(ctx context.Context) error
	Close() error
}
