package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"tablemind/internal/models"
	"tablemind/internal/result"
)

const defaultRecheckInterval = time.Minute

// Failover sends every call to the primary store and falls back to the secondary when the
// primary fails. Writes are mirrored to the fallback while the primary is up and rejected
// while it is down. The primary is retried at most once per recheck interval.
type Failover struct {
	primary   Store
	fallback  Store
	logger    *zerolog.Logger
	isDown    atomic.Bool
	mu        sync.Mutex
	lastCheck time.Time
	recheck   time.Duration
}

var _ Store = (*Failover)(nil)

func NewFailover(primary, fallback Store, logger *zerolog.Logger) *Failover {
	return &Failover{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
		recheck:  defaultRecheckInterval,
	}
}

// SetRecheckInterval changes how often a down primary is retried.
func (f *Failover) SetRecheckInterval(d time.Duration) {
	f.mu.Lock()
	f.recheck = d
	f.mu.Unlock()
}

// Degraded reports whether calls are currently served by the fallback.
func (f *Failover) Degraded() bool {
	return f.isDown.Load()
}

func (f *Failover) usePrimary() bool {
	if !f.isDown.Load() {
		return true
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if time.Since(f.lastCheck) >= f.recheck {
		f.lastCheck = time.Now()
		return true
	}
	return false
}

func (f *Failover) markDown(op string, err error) {
	if !f.isDown.Swap(true) {
		f.logger.Warn().Err(err).Str("op", op).Msg("Primary store failed, switching to fallback")
	}
	f.mu.Lock()
	f.lastCheck = time.Now()
	f.mu.Unlock()
}

func (f *Failover) markUp() {
	if f.isDown.Swap(false) {
		f.logger.Info().Msg("Primary store recovered")
	}
}

// ErrReadOnly is returned for writes while the primary is down. The fallback serves reads only.
var ErrReadOnly = errors.New("store is read-only while the primary is unavailable")

// call runs fn against the primary and substitutes the fallback result on failure.
// Not-found answers are authoritative and never trigger a fallback.
func call[T any](f *Failover, op string, fn func(Store) (T, error)) (T, error) {
	if !f.usePrimary() {
		return fn(f.fallback)
	}
	v, err := fn(f.primary)
	res := result.From(v, err)
	if res.IsOk() {
		f.markUp()
		return res.Unwrap()
	}
	return res.OrElseFunc(func(err error) result.Result[T] {
		if models.IsNotFound(err) {
			f.markUp()
			return result.Err[T](err)
		}
		if errors.Is(err, context.Canceled) {
			return result.Err[T](err)
		}
		f.markDown(op, err)
		fv, ferr := fn(f.fallback)
		return result.From(fv, ferr)
	}).Unwrap()
}

// write applies fn to the primary and then mirrors it to the fallback. Mirror failures are
// logged only. While the primary is down writes fail with ErrReadOnly.
func (f *Failover) write(op string, fn, mirror func(Store) error) error {
	if !f.usePrimary() {
		return fmt.Errorf("%s: %w", op, ErrReadOnly)
	}
	err := fn(f.primary)
	switch {
	case err == nil:
		f.markUp()
	case models.IsNotFound(err), errors.Is(err, context.Canceled):
		return err
	default:
		f.markDown(op, err)
		return fmt.Errorf("%s: %w", op, errors.Join(ErrReadOnly, err))
	}
	if err := mirror(f.fallback); err != nil {
		f.logger.Warn().Err(err).Str("op", op).Msg("Failed to mirror write to fallback store")
	}
	return nil
}

func putReservation(ctx context.Context, s Store, r *models.Reservation) error {
	err := s.UpdateReservation(ctx, r)
	if models.IsNotFound(err) {
		return s.CreateReservation(ctx, r)
	}
	return err
}

func putSchedule(ctx context.Context, s Store, sc *models.Schedule) error {
	err := s.UpdateSchedule(ctx, sc)
	if models.IsNotFound(err) {
		return s.CreateSchedule(ctx, sc)
	}
	return err
}

// Sync copies every restaurant with its reservations and schedules from the primary into the
// fallback. Run it once after connecting so the fallback starts from the primary's state.
func (f *Failover) Sync(ctx context.Context) error {
	restaurants, err := f.primary.ListRestaurants(ctx)
	if err != nil {
		return fmt.Errorf("list restaurants: %w", err)
	}
	for i := range restaurants {
		r := &restaurants[i]
		if err := f.fallback.SaveRestaurant(ctx, r); err != nil {
			return fmt.Errorf("sync restaurant %s: %w", r.ID, err)
		}
		reservations, err := f.primary.ListReservations(ctx, r.ID, ReservationFilter{})
		if err != nil {
			return fmt.Errorf("list reservations of %s: %w", r.ID, err)
		}
		for j := range reservations {
			if err := putReservation(ctx, f.fallback, &reservations[j]); err != nil {
				return fmt.Errorf("sync reservation %s: %w", reservations[j].ID, err)
			}
		}
		schedules, err := f.primary.ListSchedules(ctx, r.ID, ScheduleFilter{})
		if err != nil {
			return fmt.Errorf("list schedules of %s: %w", r.ID, err)
		}
		for j := range schedules {
			if err := putSchedule(ctx, f.fallback, &schedules[j]); err != nil {
				return fmt.Errorf("sync schedule %s: %w", schedules[j].ID, err)
			}
		}
	}
	f.logger.Info().Int("restaurants", len(restaurants)).Msg("Fallback store synced from primary")
	return nil
}

func (f *Failover) GetRestaurant(ctx context.Context, id string) (*models.Restaurant, error) {
	return call(f, "get_restaurant", func(s Store) (*models.Restaurant, error) { return s.GetRestaurant(ctx, id) })
}

func (f *Failover) SaveRestaurant(ctx context.Context, r *models.Restaurant) error {
	save := func(s Store) error { return s.SaveRestaurant(ctx, r) }
	return f.write("save_restaurant", save, save)
}

func (f *Failover) ListRestaurants(ctx context.Context) ([]models.Restaurant, error) {
	return call(f, "list_restaurants", func(s Store) ([]models.Restaurant, error) { return s.ListRestaurants(ctx) })
}

func (f *Failover) CreateReservation(ctx context.Context, r *models.Reservation) error {
	return f.write("create_reservation",
		func(s Store) error { return s.CreateReservation(ctx, r) },
		func(s Store) error { return putReservation(ctx, s, r) })
}

func (f *Failover) GetReservation(ctx context.Context, restaurantID, id string) (*models.Reservation, error) {
	return call(f, "get_reservation", func(s Store) (*models.Reservation, error) { return s.GetReservation(ctx, restaurantID, id) })
}

func (f *Failover) UpdateReservation(ctx context.Context, r *models.Reservation) error {
	return f.write("update_reservation",
		func(s Store) error { return s.UpdateReservation(ctx, r) },
		func(s Store) error { return putReservation(ctx, s, r) })
}

func (f *Failover) ListReservations(ctx context.Context, restaurantID string, filter ReservationFilter) ([]models.Reservation, error) {
	return call(f, "list_reservations", func(s Store) ([]models.Reservation, error) {
		return s.ListReservations(ctx, restaurantID, filter)
	})
}

func (f *Failover) CreateSchedule(ctx context.Context, sc *models.Schedule) error {
	return f.write("create_schedule",
		func(s Store) error { return s.CreateSchedule(ctx, sc) },
		func(s Store) error { return putSchedule(ctx, s, sc) })
}

func (f *Failover) GetSchedule(ctx context.Context, restaurantID, id string) (*models.Schedule, error) {
	return call(f, "get_schedule", func(s Store) (*models.Schedule, error) { return s.GetSchedule(ctx, restaurantID, id) })
}

func (f *Failover) UpdateSchedule(ctx context.Context, sc *models.Schedule) error {
	return f.write("update_schedule",
		func(s Store) error { return s.UpdateSchedule(ctx, sc) },
		func(s Store) error { return putSchedule(ctx, s, sc) })
}

func (f *Failover) ListSchedules(ctx context.Context, restaurantID string, filter ScheduleFilter) ([]models.Schedule, error) {
	return call(f, "list_schedules", func(s Store) ([]models.Schedule, error) {
		return s.ListSchedules(ctx, restaurantID, filter)
	})
}

// Ping succeeds while either store answers.
func (f *Failover) Ping(ctx context.Context) error {
	if err := f.primary.Ping(ctx); err != nil {
		return f.fallback.Ping(ctx)
	}
	return nil
}

func (f *Failover) Close() error {
	return errors.Join(f.primary.Close(), f.fallback.Close())
}
