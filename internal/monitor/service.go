// Package monitor runs the periodic upcoming, cleaning and staffing sweeps.
package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"tablemind/internal/models"
	"tablemind/internal/store"
)

// Config holds configuration for the monitor.
type Config struct {
	// Interval between ticks. A tick is cancelled when it runs longer.
	// Default: 45 seconds.
	Interval time.Duration

	// Lookahead is how far ahead the upcoming sweep looks.
	// Default: 30 minutes.
	Lookahead time.Duration

	// Per-key cooldowns. Defaults: 20, 15 and 30 minutes.
	UpcomingCooldown time.Duration
	CleaningCooldown time.Duration
	StaffingCooldown time.Duration

	// A staffing alert fires when at least StaffingMinUpcoming reservations are upcoming
	// while fewer than StaffingMinOnShift waiters are on shift. Defaults: 3 and 2.
	StaffingMinUpcoming int
	StaffingMinOnShift  int

	// CleaningHorizon bounds how far back the cleaning sweep looks for departures.
	// Default: 24 hours.
	CleaningHorizon time.Duration

	// AutoAssign lets the upcoming sweep assign waiters when the restaurant allows it.
	AutoAssign bool
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Interval:            45 * time.Second,
		Lookahead:           30 * time.Minute,
		UpcomingCooldown:    20 * time.Minute,
		CleaningCooldown:    15 * time.Minute,
		StaffingCooldown:    30 * time.Minute,
		StaffingMinUpcoming: 3,
		StaffingMinOnShift:  2,
		CleaningHorizon:     24 * time.Hour,
		AutoAssign:          true,
	}
}

func (c *Config) applyDefaults() {
	def := DefaultConfig()
	if c.Interval <= 0 {
		c.Interval = def.Interval
	}
	if c.Lookahead <= 0 {
		c.Lookahead = def.Lookahead
	}
	if c.UpcomingCooldown <= 0 {
		c.UpcomingCooldown = def.UpcomingCooldown
	}
	if c.CleaningCooldown <= 0 {
		c.CleaningCooldown = def.CleaningCooldown
	}
	if c.StaffingCooldown <= 0 {
		c.StaffingCooldown = def.StaffingCooldown
	}
	if c.StaffingMinUpcoming <= 0 {
		c.StaffingMinUpcoming = def.StaffingMinUpcoming
	}
	if c.StaffingMinOnShift <= 0 {
		c.StaffingMinOnShift = def.StaffingMinOnShift
	}
	if c.CleaningHorizon <= 0 {
		c.CleaningHorizon = def.CleaningHorizon
	}
}

// Store is the read side the sweeps need.
type Store interface {
	ListRestaurants(ctx context.Context) ([]models.Restaurant, error)
	ListReservations(ctx context.Context, restaurantID string, filter store.ReservationFilter) ([]models.Reservation, error)
}

// Assigner gives an unassigned reservation to the least-loaded waiter.
type Assigner interface {
	AutoAssign(ctx context.Context, restaurantID, id string) (*models.Reservation, error)
}

// Notifier delivers alerts.
type Notifier interface {
	Notify(ctx context.Context, alert models.Alert) error
}

// Service owns the tick loop. The cooldown map lives as long as the service;
// ResetCooldowns clears it.
type Service struct {
	config    *Config
	store     Store
	assigner  Assigner
	notifier  Notifier
	cooldowns CooldownStore
	metrics   *Metrics
	logger    zerolog.Logger
	now       func() time.Time

	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
	tickMu  sync.Mutex
}

// NewService creates a monitor. assigner and metrics may be nil; cooldowns defaults to memory.
func NewService(
	config *Config,
	st Store,
	assigner Assigner,
	notifier Notifier,
	cooldowns CooldownStore,
	metrics *Metrics,
	logger zerolog.Logger,
) *Service {
	if config == nil {
		config = DefaultConfig()
	}
	config.applyDefaults()
	if cooldowns == nil {
		cooldowns = NewMemoryCooldowns()
	}
	return &Service{
		config:    config,
		store:     st,
		assigner:  assigner,
		notifier:  notifier,
		cooldowns: cooldowns,
		metrics:   metrics,
		logger:    logger.With().Str("component", "monitor").Logger(),
		now:       time.Now,
	}
}

// SetClock replaces the time source.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Start begins the tick loop. Calling it on a running monitor does nothing.
func (s *Service) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.mu.Unlock()

	s.wg.Add(1)
	go s.loop(s.stopCh)

	s.logger.Info().
		Dur("interval", s.config.Interval).
		Dur("lookahead", s.config.Lookahead).
		Msg("Monitor started")
}

// Stop ends the tick loop and waits for the current tick. It is idempotent.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info().Msg("Monitor stopped")
}

func (s *Service) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// ResetCooldowns forgets every alert key so the next tick may re-alert.
func (s *Service) ResetCooldowns(ctx context.Context) error {
	return s.cooldowns.Reset(ctx)
}

func (s *Service) loop(stopCh chan struct{}) {
	defer s.wg.Done()

	// Run immediately on start
	s.tick(stopCh)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			s.tick(stopCh)
		}
	}
}

func (s *Service) tick(stopCh chan struct{}) {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Interval)
	defer cancel()
	go func() {
		select {
		case <-stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()
	s.RunNow(ctx)
}

// RunNow performs one synchronous tick over every restaurant. When another tick is still
// running it returns nil without sweeping.
func (s *Service) RunNow(ctx context.Context) []SweepOutcome {
	if !s.tickMu.TryLock() {
		s.metrics.incTick("skipped")
		s.logger.Warn().Msg("Previous tick still running, skipping")
		return nil
	}
	defer s.tickMu.Unlock()

	started := time.Now()
	defer func() { s.metrics.observeTick(time.Since(started).Seconds()) }()

	restaurants, err := s.store.ListRestaurants(ctx)
	if err != nil {
		s.metrics.incSweepError("restaurants")
		s.logger.Error().Err(err).Msg("Failed to list restaurants")
		s.metrics.incTick("failed")
		return nil
	}

	var outcomes []SweepOutcome
	for i := range restaurants {
		r := &restaurants[i]
		if !r.Settings.BackgroundMonitoring {
			continue
		}
		if ctx.Err() != nil {
			s.logger.Warn().Err(ctx.Err()).Msg("Tick cut short")
			break
		}
		outcomes = append(outcomes, s.sweepRestaurant(ctx, r)...)
	}
	s.metrics.incTick("ok")
	return outcomes
}
