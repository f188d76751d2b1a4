package models

import (
	"strings"
	"time"
)

// Settings are the per-restaurant toggles that gate automation.
type Settings struct {
	AutoAssignWaiter     bool `json:"autoAssignWaiter" bson:"autoAssignWaiter"`
	SmartCleaning        bool `json:"smartCleaning" bson:"smartCleaning"`
	BackgroundMonitoring bool `json:"backgroundMonitoring" bson:"backgroundMonitoring"`
}

// DefaultSettings returns settings with every automation enabled.
func DefaultSettings() Settings {
	return Settings{
		AutoAssignWaiter:     true,
		SmartCleaning:        true,
		BackgroundMonitoring: true,
	}
}

// Table is a seating unit owned by a restaurant. Geometry is kept for the floor plan only.
type Table struct {
	ID        string     `json:"id" bson:"id"`
	Seats     int        `json:"seats" bson:"seats"`
	X         float64    `json:"x" bson:"x"`
	Y         float64    `json:"y" bson:"y"`
	Width     float64    `json:"width" bson:"width"`
	Height    float64    `json:"height" bson:"height"`
	Rotation  float64    `json:"rotation" bson:"rotation"`
	CleanedAt *time.Time `json:"cleanedAt,omitempty" bson:"cleanedAt,omitempty"`
}

// MonthStats aggregates completed reservations for one calendar month.
type MonthStats struct {
	Reservations int     `json:"reservations" bson:"reservations"`
	Revenue      float64 `json:"revenue" bson:"revenue"`
}

// Waiter is a staff member owned by a restaurant.
//
// ActiveCount and Stats are maintained by the load tracker only.
type Waiter struct {
	ID             string                `json:"id" bson:"id"`
	Name           string                `json:"name" bson:"name"`
	OnShift        bool                  `json:"onShift" bson:"onShift"`
	ActiveCount    int                   `json:"activeCount" bson:"activeCount"`
	Stats          map[string]MonthStats `json:"stats,omitempty" bson:"stats,omitempty"`
	LastShiftStart *time.Time            `json:"lastShiftStart,omitempty" bson:"lastShiftStart,omitempty"`
}

// Restaurant is the aggregate root owning tables and waiters.
type Restaurant struct {
	ID        string    `json:"id" bson:"_id"`
	Name      string    `json:"name" bson:"name"`
	Capacity  int       `json:"capacity" bson:"capacity"`
	Tables    []Table   `json:"tables" bson:"tables"`
	Waiters   []Waiter  `json:"waiters" bson:"waiters"`
	Settings  Settings  `json:"settings" bson:"settings"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt"`
}

// Waiter returns a pointer into the waiter slice so callers can mutate it in place.
func (r *Restaurant) Waiter(id string) *Waiter {
	for i := range r.Waiters {
		if r.Waiters[i].ID == id {
			return &r.Waiters[i]
		}
	}
	return nil
}

// WaiterByName matches case-insensitively.
func (r *Restaurant) WaiterByName(name string) *Waiter {
	for i := range r.Waiters {
		if strings.EqualFold(r.Waiters[i].Name, name) {
			return &r.Waiters[i]
		}
	}
	return nil
}

func (r *Restaurant) Table(id string) *Table {
	for i := range r.Tables {
		if r.Tables[i].ID == id {
			return &r.Tables[i]
		}
	}
	return nil
}

// OnShiftCount returns the number of waiters currently flagged as working.
func (r *Restaurant) OnShiftCount() int {
	n := 0
	for _, w := range r.Waiters {
		if w.OnShift {
			n++
		}
	}
	return n
}

// Clone returns a deep copy so stores never share slices or maps with callers.
func (r *Restaurant) Clone() *Restaurant {
	if r == nil {
		return nil
	}
	c := *r
	c.Tables = make([]Table, len(r.Tables))
	for i, t := range r.Tables {
		if t.CleanedAt != nil {
			ts := *t.CleanedAt
			t.CleanedAt = &ts
		}
		c.Tables[i] = t
	}
	c.Waiters = make([]Waiter, len(r.Waiters))
	for i, w := range r.Waiters {
		if w.Stats != nil {
			stats := make(map[string]MonthStats, len(w.Stats))
			for k, v := range w.Stats {
				stats[k] = v
			}
			w.Stats = stats
		}
		if w.LastShiftStart != nil {
			ts := *w.LastShiftStart
			w.LastShiftStart = &ts
		}
		c.Waiters[i] = w
	}
	return &c
}
