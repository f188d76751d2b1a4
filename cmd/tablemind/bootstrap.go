package main

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"tablemind/internal/config"
	"tablemind/internal/conflict"
	"tablemind/internal/events"
	"tablemind/internal/load"
	"tablemind/internal/lock"
	"tablemind/internal/models"
	"tablemind/internal/reservation"
	"tablemind/internal/shift"
	"tablemind/internal/store"
	"tablemind/internal/store/memory"
	"tablemind/internal/store/mongo"
	"tablemind/internal/store/sqlite"
)

// stores is the opened persistence layer. sqlite is set whenever a local file backs the store.
type stores struct {
	main   store.Store
	sqlite *sqlite.DB
}

func (s *stores) Close() error {
	return s.main.Close()
}

func openStores(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*stores, error) {
	switch cfg.Database.Driver {
	case "memory":
		return &stores{main: memory.New()}, nil

	case "mongo":
		m, err := mongo.Connect(ctx, cfg.Database.MongoURI, cfg.Database.MongoDatabase, *logger)
		if err != nil {
			return nil, err
		}
		return &stores{main: m}, nil

	case "failover":
		local, err := sqlite.NewDB(cfg.Database.Path, logger)
		if err != nil {
			return nil, err
		}
		m, err := mongo.Connect(ctx, cfg.Database.MongoURI, cfg.Database.MongoDatabase, *logger)
		if err != nil {
			_ = local.Close()
			return nil, fmt.Errorf("failover driver needs mongo at startup: %w", err)
		}
		failover := store.NewFailover(m, local, logger)
		if err := failover.Sync(ctx); err != nil {
			logger.Warn().Err(err).Msg("Failed to sync sqlite fallback from mongo")
		}
		return &stores{main: failover, sqlite: local}, nil

	default:
		db, err := sqlite.NewDB(cfg.Database.Path, logger)
		if err != nil {
			return nil, err
		}
		return &stores{main: db, sqlite: db}, nil
	}
}

// seedRestaurants creates configured restaurants that the store does not know yet.
// Existing restaurants are never overwritten.
func seedRestaurants(ctx context.Context, st store.RestaurantStore, seeds []config.RestaurantSeed, logger *zerolog.Logger) error {
	now := time.Now()
	for _, seed := range seeds {
		_, err := st.GetRestaurant(ctx, seed.ID)
		if err == nil {
			continue
		}
		if !models.IsNotFound(err) {
			return fmt.Errorf("get restaurant %s: %w", seed.ID, err)
		}
		if err := st.SaveRestaurant(ctx, seed.Restaurant(now)); err != nil {
			return fmt.Errorf("seed restaurant %s: %w", seed.ID, err)
		}
		logger.Info().Str("restaurant_id", seed.ID).Int("waiters", len(seed.Waiters)).Msg("Restaurant seeded")
	}
	return nil
}

// drift reports, per restaurant, the waiters whose stored active count disagrees with their
// active reservations. Nothing is written.
func drift(ctx context.Context, st store.Store) (map[string]map[string]int, error) {
	restaurants, err := st.ListRestaurants(ctx)
	if err != nil {
		return nil, fmt.Errorf("list restaurants: %w", err)
	}
	out := make(map[string]map[string]int)
	for i := range restaurants {
		r := &restaurants[i]
		active, err := st.ListReservations(ctx, r.ID, store.ReservationFilter{ActiveOnly: true})
		if err != nil {
			return nil, fmt.Errorf("list reservations of %s: %w", r.ID, err)
		}
		if d := load.NewTracker(r).Reconcile(active); len(d) > 0 {
			out[r.ID] = d
		}
	}
	return out, nil
}

// engine holds the services that mutate restaurant state. Both share one lock set.
type engine struct {
	reservations *reservation.Service
	shifts       *shift.Manager
}

func newEngine(cfg *config.Config, st store.Store, bus *events.EventBus, logger zerolog.Logger) *engine {
	checker := conflict.NewChecker(conflict.Policy{Buffer: cfg.TableBuffer(), DefaultDuration: cfg.DefaultDuration()})
	locks := lock.NewKeyed()
	var publisher reservation.Publisher
	if bus != nil {
		publisher = bus
	}
	reservations := reservation.NewService(st, checker, locks, publisher, reservation.Config{AutoAssign: cfg.AutoAssign()}, logger)
	var shiftPublisher shift.Publisher
	if bus != nil {
		shiftPublisher = bus
	}
	return &engine{
		reservations: reservations,
		shifts:       shift.NewManager(st, checker, reservations.Locks(), shiftPublisher, logger),
	}
}
