// Package memory is a map-backed store used by tests and single-process deployments.
package memory

import (
	"context"
	"sort"
	"sync"

	"tablemind/internal/models"
	"tablemind/internal/store"
)

type Store struct {
	mu           sync.RWMutex
	restaurants  map[string]*models.Restaurant
	reservations map[string]models.Reservation
	schedules    map[string]models.Schedule
}

func New() *Store {
	return &Store{
		restaurants:  make(map[string]*models.Restaurant),
		reservations: make(map[string]models.Reservation),
		schedules:    make(map[string]models.Schedule),
	}
}

var _ store.Store = (*Store)(nil)

func (s *Store) GetRestaurant(_ context.Context, id string) (*models.Restaurant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.restaurants[id]
	if !ok {
		return nil, models.NewNotFound("restaurant", id)
	}
	return r.Clone(), nil
}

func (s *Store) SaveRestaurant(_ context.Context, r *models.Restaurant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.restaurants[r.ID] = r.Clone()
	return nil
}

func (s *Store) ListRestaurants(_ context.Context) ([]models.Restaurant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Restaurant, 0, len(s.restaurants))
	for _, r := range s.restaurants {
		out = append(out, *r.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) CreateReservation(_ context.Context, r *models.Reservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reservations[r.ID] = *r
	return nil
}

func (s *Store) GetReservation(_ context.Context, restaurantID, id string) (*models.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reservations[id]
	if !ok || r.RestaurantID != restaurantID {
		return nil, models.NewNotFound("reservation", id)
	}
	return &r, nil
}

func (s *Store) UpdateReservation(_ context.Context, r *models.Reservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.reservations[r.ID]
	if !ok || existing.RestaurantID != r.RestaurantID {
		return models.NewNotFound("reservation", r.ID)
	}
	s.reservations[r.ID] = *r
	return nil
}

func (s *Store) ListReservations(_ context.Context, restaurantID string, filter store.ReservationFilter) ([]models.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Reservation
	for _, r := range s.reservations {
		r := r
		if r.RestaurantID == restaurantID && filter.Match(&r) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Time.Equal(out[j].Time) {
			return out[i].ID < out[j].ID
		}
		return out[i].Time.Before(out[j].Time)
	})
	return out, nil
}

func (s *Store) CreateSchedule(_ context.Context, sc *models.Schedule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.schedules[sc.ID] = *sc
	return nil
}

func (s *Store) GetSchedule(_ context.Context, restaurantID, id string) (*models.Schedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sc, ok := s.schedules[id]
	if !ok || sc.RestaurantID != restaurantID {
		return nil, models.NewNotFound("schedule", id)
	}
	return &sc, nil
}

func (s *Store) UpdateSchedule(_ context.Context, sc *models.Schedule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.schedules[sc.ID]
	if !ok || existing.RestaurantID != sc.RestaurantID {
		return models.NewNotFound("schedule", sc.ID)
	}
	s.schedules[sc.ID] = *sc
	return nil
}

func (s *Store) ListSchedules(_ context.Context, restaurantID string, filter store.ScheduleFilter) ([]models.Schedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Schedule
	for _, sc := range s.schedules {
		sc := sc
		if sc.RestaurantID == restaurantID && filter.Match(&sc) {
			out = append(out, sc)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartTime.Before(out[j].StartTime)
	})
	return out, nil
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }
