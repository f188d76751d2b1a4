package monitor

import (
	"context"
	"fmt"
	"sort"
	"time"

	"tablemind/internal/models"
	"tablemind/internal/result"
	"tablemind/internal/store"
	"tablemind/internal/timewindow"
)

// Sweep names.
const (
	SweepUpcoming = "upcoming"
	SweepCleaning = "cleaning"
	SweepStaffing = "staffing"
)

// SweepOutcome is the number of alerts one sweep sent, or the reason it failed.
type SweepOutcome struct {
	RestaurantID string
	Sweep        string
	Alerts       result.Result[int]
}

func upcomingKey(reservationID string) string {
	return "upcoming:" + reservationID
}

func cleaningKey(restaurantID, tableID string) string {
	return "clean:" + restaurantID + ":" + tableID
}

func staffingKey(restaurantID string) string {
	return "lowstaff:" + restaurantID
}

// sweepRestaurant runs the three sweeps. A failing sweep never stops the others.
func (s *Service) sweepRestaurant(ctx context.Context, r *models.Restaurant) []SweepOutcome {
	now := s.now()

	upcoming := s.listUpcoming(ctx, r.ID, now)
	outcomes := []SweepOutcome{
		{RestaurantID: r.ID, Sweep: SweepUpcoming, Alerts: s.sweepUpcoming(ctx, r, upcoming, now)},
		{RestaurantID: r.ID, Sweep: SweepCleaning, Alerts: s.sweepCleaning(ctx, r, now)},
	}

	// The staffing sweep retries the read on its own when the upcoming sweep could not list.
	upcoming = upcoming.OrElseFunc(func(error) result.Result[[]models.Reservation] {
		return s.listUpcoming(ctx, r.ID, now)
	})
	outcomes = append(outcomes, SweepOutcome{RestaurantID: r.ID, Sweep: SweepStaffing, Alerts: s.sweepStaffing(ctx, r, upcoming, now)})

	for _, o := range outcomes {
		if err := o.Alerts.Err(); err != nil {
			s.metrics.incSweepError(o.Sweep)
			s.logger.Error().Err(err).Str("restaurant_id", r.ID).Str("sweep", o.Sweep).Msg("Sweep failed")
		}
	}
	return outcomes
}

// listUpcoming returns the active reservations starting in (now, now+lookahead].
func (s *Service) listUpcoming(ctx context.Context, restaurantID string, now time.Time) result.Result[[]models.Reservation] {
	to := now.Add(s.config.Lookahead).Add(time.Millisecond)
	list, err := s.store.ListReservations(ctx, restaurantID, store.ReservationFilter{From: &now, To: &to, ActiveOnly: true})
	if err != nil {
		return result.Err[[]models.Reservation](fmt.Errorf("list upcoming: %w", err))
	}
	out := list[:0]
	for _, res := range list {
		if timewindow.Within(res.Time, now, s.config.Lookahead) {
			out = append(out, res)
		}
	}
	return result.Ok(out)
}

func (s *Service) sweepUpcoming(ctx context.Context, r *models.Restaurant, upcoming result.Result[[]models.Reservation], now time.Time) result.Result[int] {
	list, err := upcoming.Unwrap()
	if err != nil {
		return result.Err[int](err)
	}

	autoAssign := s.config.AutoAssign && r.Settings.AutoAssignWaiter && s.assigner != nil
	sent := 0
	for i := range list {
		res := &list[i]
		if res.AssignedWaiterID == "" && autoAssign {
			assigned, err := s.assigner.AutoAssign(ctx, r.ID, res.ID)
			switch {
			case err != nil:
				s.logger.Warn().Err(err).Str("reservation_id", res.ID).Msg("Auto-assignment failed")
			case assigned.AssignedWaiterID != "":
				s.metrics.incAutoAssigned()
				res = assigned
			}
		}

		waiter := "unassigned"
		if w := r.Waiter(res.AssignedWaiterID); w != nil {
			waiter = w.Name
		}
		table := res.TableID
		if table == "" {
			table = "no table"
		}
		alert := models.Alert{
			Key:           upcomingKey(res.ID),
			Kind:          models.AlertUpcoming,
			Severity:      models.SeverityInfo,
			Text:          fmt.Sprintf("%s, party of %d at %s (%s, %s)", res.CustomerName, res.PartySize, res.Time.Format("15:04"), table, waiter),
			RestaurantID:  r.ID,
			ReservationID: res.ID,
			TableID:       res.TableID,
			WaiterID:      res.AssignedWaiterID,
			CreatedAt:     now,
		}
		if s.emit(ctx, alert, s.config.UpcomingCooldown) {
			sent++
		}
	}
	return result.Ok(sent)
}

// sweepCleaning flags every table whose latest departure is newer than its last cleaning.
func (s *Service) sweepCleaning(ctx context.Context, r *models.Restaurant, now time.Time) result.Result[int] {
	if !r.Settings.SmartCleaning {
		return result.Ok(0)
	}

	departed := models.StatusDeparted
	from := now.Add(-s.config.CleaningHorizon)
	to := now.Add(s.config.Lookahead)
	list, err := s.store.ListReservations(ctx, r.ID, store.ReservationFilter{Status: &departed, From: &from, To: &to})
	if err != nil {
		return result.Err[int](fmt.Errorf("list departed: %w", err))
	}

	latest := make(map[string]time.Time)
	for _, res := range list {
		if res.TableID == "" || res.DepartedAt == nil || res.Archived {
			continue
		}
		if t, ok := latest[res.TableID]; !ok || res.DepartedAt.After(t) {
			latest[res.TableID] = *res.DepartedAt
		}
	}

	tables := make([]string, 0, len(latest))
	for id := range latest {
		tables = append(tables, id)
	}
	sort.Strings(tables)

	sent := 0
	for _, tableID := range tables {
		if t := r.Table(tableID); t != nil && t.CleanedAt != nil && !latest[tableID].After(*t.CleanedAt) {
			continue
		}
		alert := models.Alert{
			Key:          cleaningKey(r.ID, tableID),
			Kind:         models.AlertCleaning,
			Severity:     models.SeverityWarning,
			Text:         fmt.Sprintf("Table %s needs cleaning (guests left at %s)", tableID, latest[tableID].Format("15:04")),
			RestaurantID: r.ID,
			TableID:      tableID,
			CreatedAt:    now,
		}
		if s.emit(ctx, alert, s.config.CleaningCooldown) {
			sent++
		}
	}
	return result.Ok(sent)
}

func (s *Service) sweepStaffing(ctx context.Context, r *models.Restaurant, upcoming result.Result[[]models.Reservation], now time.Time) result.Result[int] {
	list, err := upcoming.Unwrap()
	if err != nil {
		return result.Err[int](err)
	}
	onShift := r.OnShiftCount()
	if len(list) < s.config.StaffingMinUpcoming || onShift >= s.config.StaffingMinOnShift {
		return result.Ok(0)
	}

	alert := models.Alert{
		Key:          staffingKey(r.ID),
		Kind:         models.AlertStaffing,
		Severity:     models.SeverityWarning,
		Text:         fmt.Sprintf("%d reservations in the next %d minutes with %d waiter(s) on shift", len(list), int(s.config.Lookahead.Minutes()), onShift),
		RestaurantID: r.ID,
		CreatedAt:    now,
	}
	if s.emit(ctx, alert, s.config.StaffingCooldown) {
		return result.Ok(1)
	}
	return result.Ok(0)
}

// emit sends alert unless its key is cooling down. A cooldown store failure suppresses the alert.
func (s *Service) emit(ctx context.Context, alert models.Alert, cooldown time.Duration) bool {
	kind := string(alert.Kind)
	allowed, err := s.cooldowns.Allow(ctx, alert.Key, alert.CreatedAt, cooldown)
	if err != nil {
		s.logger.Warn().Err(err).Str("key", alert.Key).Msg("Cooldown check failed")
		s.metrics.incAlert(kind, "failed")
		return false
	}
	if !allowed {
		s.metrics.incAlert(kind, "suppressed")
		return false
	}
	if err := s.notifier.Notify(ctx, alert); err != nil {
		s.logger.Error().Err(err).Str("key", alert.Key).Msg("Failed to deliver alert")
		s.metrics.incAlert(kind, "failed")
		return false
	}
	s.metrics.incAlert(kind, "sent")
	s.logger.Debug().Str("key", alert.Key).Str("kind", kind).Msg("Alert sent")
	return true
}
