package reservation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"tablemind/internal/assign"
	"tablemind/internal/conflict"
	"tablemind/internal/events"
	"tablemind/internal/load"
	"tablemind/internal/lock"
	"tablemind/internal/metrics"
	"tablemind/internal/models"
	"tablemind/internal/store"
)

// Repository is the part of the store the lifecycle needs.
type Repository interface {
	store.RestaurantStore
	store.ReservationStore
}

// Publisher receives domain events after a change is persisted.
type Publisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// Config toggles service-wide behaviour.
type Config struct {
	// AutoAssign enables least-loaded assignment when the restaurant setting allows it too.
	AutoAssign bool
}

// Service applies reservation lifecycle changes. Every mutation runs under the restaurant lock.
type Service struct {
	repo    Repository
	checker *conflict.Checker
	locks   *lock.Keyed
	events  Publisher
	cfg     Config
	logger  zerolog.Logger
	now     func() time.Time
}

// NewService creates a new reservation service. events may be nil.
func NewService(
	repo Repository,
	checker *conflict.Checker,
	locks *lock.Keyed,
	publisher Publisher,
	cfg Config,
	logger zerolog.Logger,
) *Service {
	if checker == nil {
		checker = conflict.NewChecker(conflict.DefaultPolicy())
	}
	if locks == nil {
		locks = lock.NewKeyed()
	}
	return &Service{
		repo:    repo,
		checker: checker,
		locks:   locks,
		events:  publisher,
		cfg:     cfg,
		logger:  logger.With().Str("component", "reservations").Logger(),
		now:     time.Now,
	}
}

// SetClock replaces the time source.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Locks exposes the restaurant lock set so collaborators can share it.
func (s *Service) Locks() *lock.Keyed {
	return s.locks
}

// Checker returns the conflict checker in use.
func (s *Service) Checker() *conflict.Checker {
	return s.checker
}

func (s *Service) publish(eventType string, payload interface{}) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishJSON(eventType, payload); err != nil {
		s.logger.Warn().Err(err).Str("event", eventType).Msg("Failed to publish event")
	}
}

// Create validates the draft, rejects table conflicts and assigns a waiter.
func (s *Service) Create(ctx context.Context, draft models.ReservationDraft) (*models.Reservation, error) {
	if err := models.Validate(draft); err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(draft.RestaurantID)
	defer unlock()

	restaurant, err := s.repo.GetRestaurant(ctx, draft.RestaurantID)
	if err != nil {
		return nil, fmt.Errorf("get restaurant: %w", err)
	}
	if draft.TableID != "" && len(restaurant.Tables) > 0 && restaurant.Table(draft.TableID) == nil {
		return nil, models.NewNotFound("table", draft.TableID)
	}

	if draft.TableID != "" {
		if err := s.checkTable(ctx, draft.RestaurantID, draft.TableID, draft.Time, draft.DurationMinutes, ""); err != nil {
			return nil, err
		}
	}

	now := s.now()
	res := &models.Reservation{
		ID:              uuid.NewString(),
		RestaurantID:    draft.RestaurantID,
		CustomerName:    draft.CustomerName,
		Phone:           draft.Phone,
		Email:           draft.Email,
		PartySize:       draft.PartySize,
		Time:            draft.Time,
		DurationMinutes: draft.DurationMinutes,
		TableID:         draft.TableID,
		Status:          models.StatusBooked,
		SpecialRequests: draft.SpecialRequests,
		Source:          draft.Source,
		Version:         1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if res.Source == "" {
		res.Source = models.SourceManual
	}

	tracker := load.NewTracker(restaurant)
	origin := ""
	switch {
	case draft.AssignedWaiterID != "":
		if err := tracker.Increment(draft.AssignedWaiterID); err != nil {
			return nil, err
		}
		res.AssignedWaiterID = draft.AssignedWaiterID
		origin = "explicit"
	case s.cfg.AutoAssign && restaurant.Settings.AutoAssignWaiter:
		if w, ok := assign.SelectWaiter(restaurant.Waiters); ok {
			if err := tracker.Increment(w.ID); err != nil {
				return nil, err
			}
			res.AssignedWaiterID = w.ID
			origin = "auto"
		}
	}

	if err := s.repo.CreateReservation(ctx, res); err != nil {
		return nil, fmt.Errorf("create reservation: %w", err)
	}
	if res.AssignedWaiterID != "" {
		if err := s.saveRestaurant(ctx, restaurant); err != nil {
			return nil, err
		}
		metrics.IncAssignment(origin)
	}

	metrics.IncTransition(string(models.StatusBooked))
	s.logger.Info().
		Str("restaurant_id", res.RestaurantID).
		Str("reservation_id", res.ID).
		Str("table_id", res.TableID).
		Str("waiter_id", res.AssignedWaiterID).
		Msg("Reservation created")
	s.publish(events.ReservationCreated, res)
	return res, nil
}

func (s *Service) checkTable(ctx context.Context, restaurantID, tableID string, start time.Time, durationMinutes int, excludingID string) error {
	existing, err := s.repo.ListReservations(ctx, restaurantID, store.ReservationFilter{TableID: &tableID, ActiveOnly: true})
	if err != nil {
		return fmt.Errorf("list table reservations: %w", err)
	}
	if blocking := s.checker.TableConflicts(existing, tableID, start, durationMinutes, excludingID); len(blocking) > 0 {
		metrics.IncConflict("table")
		return &models.ConflictError{
			Reason:       fmt.Sprintf("table %s is booked around %s", tableID, start.Format("2006-01-02 15:04")),
			Reservations: blocking,
		}
	}
	return nil
}

func (s *Service) saveRestaurant(ctx context.Context, r *models.Restaurant) error {
	r.UpdatedAt = s.now()
	if err := s.repo.SaveRestaurant(ctx, r); err != nil {
		return fmt.Errorf("save restaurant: %w", err)
	}
	return nil
}

// mutation is one lifecycle step applied to a loaded reservation and restaurant.
type mutation func(tr *load.Tracker, r *models.Reservation, now time.Time) (bool, error)

// apply loads both aggregates under the lock, runs fn and persists what changed.
func (s *Service) apply(ctx context.Context, restaurantID, id, eventType string, fn mutation) (*models.Reservation, error) {
	unlock := s.locks.Lock(restaurantID)
	defer unlock()

	restaurant, err := s.repo.GetRestaurant(ctx, restaurantID)
	if err != nil {
		return nil, fmt.Errorf("get restaurant: %w", err)
	}
	res, err := s.repo.GetReservation(ctx, restaurantID, id)
	if err != nil {
		return nil, fmt.Errorf("get reservation: %w", err)
	}

	changed, err := fn(load.NewTracker(restaurant), res, s.now())
	if err != nil {
		return nil, err
	}
	if !changed {
		return res, nil
	}

	if err := s.repo.UpdateReservation(ctx, res); err != nil {
		return nil, fmt.Errorf("update reservation: %w", err)
	}
	if err := s.saveRestaurant(ctx, restaurant); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("restaurant_id", restaurantID).
		Str("reservation_id", id).
		Str("event", eventType).
		Msg("Reservation updated")
	s.publish(eventType, res)
	return res, nil
}

// MarkArrived records that the party is seated.
func (s *Service) MarkArrived(ctx context.Context, restaurantID, id string) (*models.Reservation, error) {
	return s.apply(ctx, restaurantID, id, events.ReservationArrived, func(_ *load.Tracker, r *models.Reservation, now time.Time) (bool, error) {
		changed, err := Arrive(r, now)
		if changed {
			metrics.IncTransition(string(models.StatusArrived))
		}
		return changed, err
	})
}

// MarkDeparted closes the reservation and credits the bill to the assigned waiter.
func (s *Service) MarkDeparted(ctx context.Context, restaurantID, id string, bill float64) (*models.Reservation, error) {
	return s.apply(ctx, restaurantID, id, events.ReservationDeparted, func(tr *load.Tracker, r *models.Reservation, now time.Time) (bool, error) {
		changed, err := Depart(tr, r, bill, now)
		if changed {
			metrics.IncTransition(string(models.StatusDeparted))
			metrics.AddRevenue(bill)
		}
		return changed, err
	})
}

// Cancel cancels a booked or arrived reservation.
func (s *Service) Cancel(ctx context.Context, restaurantID, id string) (*models.Reservation, error) {
	return s.apply(ctx, restaurantID, id, events.ReservationCancelled, func(tr *load.Tracker, r *models.Reservation, now time.Time) (bool, error) {
		changed, err := Cancel(tr, r, now)
		if changed {
			metrics.IncTransition(string(models.StatusCancelled))
		}
		return changed, err
	})
}

// Archive soft-deletes a reservation.
func (s *Service) Archive(ctx context.Context, restaurantID, id string) (*models.Reservation, error) {
	return s.apply(ctx, restaurantID, id, events.ReservationArchived, func(tr *load.Tracker, r *models.Reservation, now time.Time) (bool, error) {
		changed, err := Archive(tr, r, now)
		if changed {
			metrics.IncTransition("archived")
		}
		return changed, err
	})
}

// Reassign moves an active reservation to waiterID.
func (s *Service) Reassign(ctx context.Context, restaurantID, id, waiterID string) (*models.Reservation, error) {
	return s.apply(ctx, restaurantID, id, events.ReservationReassigned, func(tr *load.Tracker, r *models.Reservation, now time.Time) (bool, error) {
		changed, err := Reassign(tr, r, waiterID, now)
		if changed {
			metrics.IncAssignment("manual")
		}
		return changed, err
	})
}

// AutoAssign gives an unassigned active reservation to the least-loaded waiter.
// It returns the reservation unchanged when it already has a waiter or nobody can take it.
func (s *Service) AutoAssign(ctx context.Context, restaurantID, id string) (*models.Reservation, error) {
	return s.apply(ctx, restaurantID, id, events.ReservationReassigned, func(tr *load.Tracker, r *models.Reservation, now time.Time) (bool, error) {
		if r.IsTerminal() || r.AssignedWaiterID != "" {
			return false, nil
		}
		w, ok := assign.SelectWaiter(tr.Waiters())
		if !ok {
			return false, nil
		}
		changed, err := Reassign(tr, r, w.ID, now)
		if changed {
			metrics.IncAssignment("auto")
		}
		return changed, err
	})
}

// RescheduleRequest carries the fields a reschedule may change. Nil fields stay as they are.
type RescheduleRequest struct {
	Time            *time.Time
	TableID         *string
	DurationMinutes *int
	PartySize       *int
}

// Reschedule moves an active reservation in time or to another table, rechecking conflicts
// against everything except the reservation itself.
func (s *Service) Reschedule(ctx context.Context, restaurantID, id string, req RescheduleRequest) (*models.Reservation, error) {
	if req.DurationMinutes != nil && *req.DurationMinutes < 0 {
		return nil, models.NewValidationError("durationMinutes", "must not be negative")
	}
	if req.PartySize != nil && *req.PartySize < 1 {
		return nil, models.NewValidationError("partySize", "must be at least 1")
	}

	unlock := s.locks.Lock(restaurantID)
	defer unlock()

	restaurant, err := s.repo.GetRestaurant(ctx, restaurantID)
	if err != nil {
		return nil, fmt.Errorf("get restaurant: %w", err)
	}
	res, err := s.repo.GetReservation(ctx, restaurantID, id)
	if err != nil {
		return nil, fmt.Errorf("get reservation: %w", err)
	}
	if res.IsTerminal() {
		return nil, models.TransitionError(terminalLabel(res), "rescheduled")
	}

	next := *res
	if req.Time != nil {
		next.Time = *req.Time
	}
	if req.TableID != nil {
		next.TableID = *req.TableID
	}
	if req.DurationMinutes != nil {
		next.DurationMinutes = *req.DurationMinutes
	}
	if req.PartySize != nil {
		next.PartySize = *req.PartySize
	}

	if next.TableID != "" && len(restaurant.Tables) > 0 && restaurant.Table(next.TableID) == nil {
		return nil, models.NewNotFound("table", next.TableID)
	}
	if next.TableID != "" {
		if err := s.checkTable(ctx, restaurantID, next.TableID, next.Time, next.DurationMinutes, res.ID); err != nil {
			return nil, err
		}
	}

	next.UpdatedAt = s.now()
	next.Version++
	if err := s.repo.UpdateReservation(ctx, &next); err != nil {
		return nil, fmt.Errorf("update reservation: %w", err)
	}

	s.logger.Info().
		Str("restaurant_id", restaurantID).
		Str("reservation_id", id).
		Time("time", next.Time).
		Str("table_id", next.TableID).
		Msg("Reservation rescheduled")
	s.publish(events.ReservationRescheduled, &next)
	return &next, nil
}

// MarkTableClean records that tableID has been cleaned.
func (s *Service) MarkTableClean(ctx context.Context, restaurantID, tableID string) (*models.Table, error) {
	unlock := s.locks.Lock(restaurantID)
	defer unlock()

	restaurant, err := s.repo.GetRestaurant(ctx, restaurantID)
	if err != nil {
		return nil, fmt.Errorf("get restaurant: %w", err)
	}
	table := restaurant.Table(tableID)
	if table == nil {
		return nil, models.NewNotFound("table", tableID)
	}
	now := s.now()
	table.CleanedAt = &now
	if err := s.saveRestaurant(ctx, restaurant); err != nil {
		return nil, err
	}

	out := *table
	s.publish(events.TableCleaned, map[string]interface{}{
		"restaurantId": restaurantID,
		"tableId":      tableID,
		"cleanedAt":    now,
	})
	return &out, nil
}

// Get returns one reservation.
func (s *Service) Get(ctx context.Context, restaurantID, id string) (*models.Reservation, error) {
	return s.repo.GetReservation(ctx, restaurantID, id)
}

// List returns the reservations of a restaurant matching filter.
func (s *Service) List(ctx context.Context, restaurantID string, filter store.ReservationFilter) ([]models.Reservation, error) {
	return s.repo.ListReservations(ctx, restaurantID, filter)
}

// Reconcile recomputes every waiter's active count from the stored reservations
// and returns the per-waiter correction that was applied.
func (s *Service) Reconcile(ctx context.Context, restaurantID string) (map[string]int, error) {
	unlock := s.locks.Lock(restaurantID)
	defer unlock()

	restaurant, err := s.repo.GetRestaurant(ctx, restaurantID)
	if err != nil {
		return nil, fmt.Errorf("get restaurant: %w", err)
	}
	active, err := s.repo.ListReservations(ctx, restaurantID, store.ReservationFilter{ActiveOnly: true})
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}

	drift := load.NewTracker(restaurant).Reconcile(active)
	if len(drift) == 0 {
		return drift, nil
	}
	if err := s.saveRestaurant(ctx, restaurant); err != nil {
		return nil, err
	}
	s.logger.Warn().
		Str("restaurant_id", restaurantID).
		Interface("drift", drift).
		Msg("Waiter load counts corrected")
	return drift, nil
}
