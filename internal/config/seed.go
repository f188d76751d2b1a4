package config

import (
	"fmt"
	"time"

	"tablemind/internal/models"
)

// RestaurantSeed describes a restaurant in the config file.
type RestaurantSeed struct {
	ID       string       `yaml:"id" validate:"required"`
	Name     string       `yaml:"name" validate:"required"`
	Capacity int          `yaml:"capacity" validate:"min=0"`
	Tables   []TableSeed  `yaml:"tables" validate:"dive"`
	Waiters  []string     `yaml:"waiters" validate:"dive,required"`
	Settings *SettingSeed `yaml:"settings"`
}

type TableSeed struct {
	ID    string `yaml:"id" validate:"required"`
	Seats int    `yaml:"seats" validate:"min=1"`
}

// SettingSeed leaves unset toggles at their default of true.
type SettingSeed struct {
	AutoAssignWaiter     *bool `yaml:"auto_assign_waiter"`
	SmartCleaning        *bool `yaml:"smart_cleaning"`
	BackgroundMonitoring *bool `yaml:"background_monitoring"`
}

// Restaurant builds the aggregate. Waiter ids are derived from their position.
func (s RestaurantSeed) Restaurant(now time.Time) *models.Restaurant {
	r := &models.Restaurant{
		ID:        s.ID,
		Name:      s.Name,
		Capacity:  s.Capacity,
		Settings:  models.DefaultSettings(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	for _, t := range s.Tables {
		r.Tables = append(r.Tables, models.Table{ID: t.ID, Seats: t.Seats})
	}
	for i, name := range s.Waiters {
		r.Waiters = append(r.Waiters, models.Waiter{ID: fmt.Sprintf("%s-w%d", s.ID, i+1), Name: name})
	}
	if s.Settings != nil {
		if s.Settings.AutoAssignWaiter != nil {
			r.Settings.AutoAssignWaiter = *s.Settings.AutoAssignWaiter
		}
		if s.Settings.SmartCleaning != nil {
			r.Settings.SmartCleaning = *s.Settings.SmartCleaning
		}
		if s.Settings.BackgroundMonitoring != nil {
			r.Settings.BackgroundMonitoring = *s.Settings.BackgroundMonitoring
		}
	}
	return r
}
