package reservation

import (
	"context"
	"fmt"
	"time"

	"tablemind/internal/models"
	"tablemind/internal/store"
	"tablemind/internal/timewindow"
)

// DailyStats summarises one day of a restaurant.
type DailyStats struct {
	Date          string  `json:"date"`
	Reservations  int     `json:"reservations"`
	Guests        int     `json:"guests"`
	Upcoming      int     `json:"upcoming"`
	Seated        int     `json:"seated"`
	Departed      int     `json:"departed"`
	Cancelled     int     `json:"cancelled"`
	Revenue       float64 `json:"revenue"`
	TablesInUse   int     `json:"tablesInUse"`
	Occupancy     float64 `json:"occupancy"`
	WaitersOnDuty int     `json:"waitersOnDuty"`
}

// DailyStats counts the non-archived reservations of the day containing day.
// Occupancy is the share of tables holding a seated party.
func (s *Service) DailyStats(ctx context.Context, restaurantID string, day time.Time) (*DailyStats, error) {
	restaurant, err := s.repo.GetRestaurant(ctx, restaurantID)
	if err != nil {
		return nil, fmt.Errorf("get restaurant: %w", err)
	}
	from, to := timewindow.DayBounds(day)
	end := to.Add(time.Millisecond)
	list, err := s.repo.ListReservations(ctx, restaurantID, store.ReservationFilter{From: &from, To: &end})
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}

	now := s.now()
	stats := &DailyStats{
		Date:          from.Format("2006-01-02"),
		WaitersOnDuty: restaurant.OnShiftCount(),
	}
	seatedTables := make(map[string]struct{})
	for _, r := range list {
		if r.Archived {
			continue
		}
		stats.Reservations++
		switch r.Status {
		case models.StatusBooked:
			stats.Guests += r.PartySize
			if r.Time.After(now) {
				stats.Upcoming++
			}
		case models.StatusArrived:
			stats.Guests += r.PartySize
			stats.Seated++
			if r.TableID != "" {
				seatedTables[r.TableID] = struct{}{}
			}
		case models.StatusDeparted:
			stats.Guests += r.PartySize
			stats.Departed++
			stats.Revenue += r.BillAmount
		case models.StatusCancelled:
			stats.Cancelled++
		}
	}
	stats.TablesInUse = len(seatedTables)
	if n := len(restaurant.Tables); n > 0 {
		stats.Occupancy = float64(stats.TablesInUse) / float64(n)
	}
	return stats, nil
}
