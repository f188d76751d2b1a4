package shift

import (
	"context"
	"fmt"

	"tablemind/internal/events"
	"tablemind/internal/load"
	"tablemind/internal/metrics"
	"tablemind/internal/models"
	"tablemind/internal/reservation"
	"tablemind/internal/store"
)

// HandoverResult reports what a handover moved.
type HandoverResult struct {
	RestaurantID   string   `json:"restaurantId"`
	FromWaiterID   string   `json:"fromWaiterId"`
	ToWaiterID     string   `json:"toWaiterId"`
	Moved          int      `json:"moved"`
	ReservationIDs []string `json:"reservationIds,omitempty"`
}

// Handover moves every active reservation of fromID to toID and swaps their shift flags.
// A waiter with nothing assigned still hands over; Moved is zero then.
func (m *Manager) Handover(ctx context.Context, restaurantID, fromID, toID string) (*HandoverResult, error) {
	if fromID == "" {
		return nil, models.NewValidationError("fromWaiterId", "is required")
	}
	if toID == "" {
		return nil, models.NewValidationError("toWaiterId", "is required")
	}
	if fromID == toID {
		return nil, models.NewValidationError("toWaiterId", "must differ from fromWaiterId")
	}

	unlock := m.locks.Lock(restaurantID)
	defer unlock()

	r, err := m.loadRestaurant(ctx, restaurantID)
	if err != nil {
		return nil, err
	}
	from, to := r.Waiter(fromID), r.Waiter(toID)
	if from == nil {
		return nil, models.NewNotFound("waiter", fromID)
	}
	if to == nil {
		return nil, models.NewNotFound("waiter", toID)
	}

	assigned, err := m.repo.ListReservations(ctx, restaurantID, store.ReservationFilter{WaiterID: &fromID, ActiveOnly: true})
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}

	now := m.now()
	tracker := load.NewTracker(r)
	result := &HandoverResult{RestaurantID: restaurantID, FromWaiterID: fromID, ToWaiterID: toID}
	moved := make([]models.Reservation, 0, len(assigned))
	for i := range assigned {
		res := assigned[i]
		changed, err := reservation.Reassign(tracker, &res, toID, now)
		if err != nil {
			return nil, fmt.Errorf("reassign %s: %w", res.ID, err)
		}
		if changed {
			moved = append(moved, res)
		}
	}

	for i := range moved {
		if err := m.repo.UpdateReservation(ctx, &moved[i]); err != nil {
			err = fmt.Errorf("update reservation %s: %w", moved[i].ID, err)
			if i > 0 {
				m.restoreCounts(ctx, restaurantID)
			}
			return nil, err
		}
		result.ReservationIDs = append(result.ReservationIDs, moved[i].ID)
	}
	result.Moved = len(moved)

	from.OnShift = false
	if !to.OnShift {
		to.LastShiftStart = &now
	}
	to.OnShift = true
	if err := m.saveRestaurant(ctx, r); err != nil {
		if len(moved) > 0 {
			m.restoreCounts(ctx, restaurantID)
		}
		return nil, err
	}

	metrics.AddHandoverMoved(result.Moved)
	m.logger.Info().
		Str("restaurant_id", restaurantID).
		Str("from_waiter_id", fromID).
		Str("to_waiter_id", toID).
		Int("moved", result.Moved).
		Msg("Handover completed")
	m.publish(events.HandoverCompleted, result)
	return result, nil
}

// restoreCounts recomputes active counts from the stored reservations after a handover
// stopped part way. The caller holds the restaurant lock.
func (m *Manager) restoreCounts(ctx context.Context, restaurantID string) {
	log := m.logger.With().Str("restaurant_id", restaurantID).Logger()
	r, err := m.repo.GetRestaurant(ctx, restaurantID)
	if err != nil {
		log.Error().Err(err).Msg("Failed to reload restaurant after partial handover")
		return
	}
	active, err := m.repo.ListReservations(ctx, restaurantID, store.ReservationFilter{ActiveOnly: true})
	if err != nil {
		log.Error().Err(err).Msg("Failed to list reservations after partial handover")
		return
	}
	drift := load.NewTracker(r).Reconcile(active)
	if len(drift) == 0 {
		return
	}
	if err := m.saveRestaurant(ctx, r); err != nil {
		log.Error().Err(err).Msg("Failed to restore waiter counts after partial handover")
		return
	}
	log.Warn().Interface("drift", drift).Msg("Waiter counts restored after partial handover")
}
