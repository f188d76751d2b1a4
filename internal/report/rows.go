// Package report exports monthly waiter statistics.
package report

import (
	"fmt"
	"math"
	"sort"
	"time"

	"tablemind/internal/models"
	"tablemind/internal/timewindow"
)

// Columns is the header row shared by every export target.
var Columns = []string{"Restaurant", "Waiter ID", "Waiter", "Reservations", "Revenue", "Average bill", "Active now", "On shift"}

// WaiterRow is one waiter's statistics for a month.
type WaiterRow struct {
	RestaurantID   string
	RestaurantName string
	WaiterID       string
	WaiterName     string
	Reservations   int
	Revenue        float64
	ActiveCount    int
	OnShift        bool
}

// AverageBill is revenue per completed reservation, rounded to cents.
func (r WaiterRow) AverageBill() float64 {
	if r.Reservations == 0 {
		return 0
	}
	return math.Round(r.Revenue/float64(r.Reservations)*100) / 100
}

// BuildRows flattens every waiter of every restaurant for month (YYYY-MM).
// Waiters without completions that month are still listed.
func BuildRows(restaurants []models.Restaurant, month string) []WaiterRow {
	var rows []WaiterRow
	for _, r := range restaurants {
		for _, w := range r.Waiters {
			st := w.Stats[month]
			rows = append(rows, WaiterRow{
				RestaurantID:   r.ID,
				RestaurantName: r.Name,
				WaiterID:       w.ID,
				WaiterName:     w.Name,
				Reservations:   st.Reservations,
				Revenue:        st.Revenue,
				ActiveCount:    w.ActiveCount,
				OnShift:        w.OnShift,
			})
		}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].RestaurantID != rows[j].RestaurantID {
			return rows[i].RestaurantID < rows[j].RestaurantID
		}
		return rows[i].Revenue > rows[j].Revenue
	})
	return rows
}

func rowValues(r WaiterRow) []interface{} {
	name := r.RestaurantName
	if name == "" {
		name = r.RestaurantID
	}
	onShift := "no"
	if r.OnShift {
		onShift = "yes"
	}
	return []interface{}{
		name,
		r.WaiterID,
		r.WaiterName,
		r.Reservations,
		r.Revenue,
		r.AverageBill(),
		r.ActiveCount,
		onShift,
	}
}

// ParseMonth checks a YYYY-MM key.
func ParseMonth(month string) (time.Time, error) {
	t, err := time.Parse(timewindow.MonthKeyLayout, month)
	if err != nil {
		return time.Time{}, models.NewValidationError("month", fmt.Sprintf("%q is not YYYY-MM", month))
	}
	return t, nil
}

// Filename creates a filename like "waiters_2026-03.xlsx".
func Filename(month string) string {
	return fmt.Sprintf("waiters_%s.xlsx", month)
}
