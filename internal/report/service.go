package report

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"tablemind/internal/models"
	"tablemind/internal/timewindow"
)

// Source lists the restaurants whose waiters are reported.
type Source interface {
	ListRestaurants(ctx context.Context) ([]models.Restaurant, error)
}

// Exporter writes a month of rows to one target.
type Exporter interface {
	Name() string
	Export(ctx context.Context, month string, rows []WaiterRow) error
}

// Config holds configuration for the report service.
type Config struct {
	// Interval between periodic exports of the current month.
	// Default: 24 hours.
	Interval time.Duration

	// ExportOnStart if true, runs an export immediately on service start.
	ExportOnStart bool
}

// Service handles periodic monthly exports.
type Service struct {
	config    Config
	source    Source
	exporters []Exporter
	logger    zerolog.Logger
	now       func() time.Time

	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// NewService creates a new report service.
func NewService(config Config, source Source, logger zerolog.Logger, exporters ...Exporter) *Service {
	if config.Interval <= 0 {
		config.Interval = 24 * time.Hour
	}
	return &Service{
		config:    config,
		source:    source,
		exporters: exporters,
		logger:    logger.With().Str("component", "report").Logger(),
		now:       time.Now,
	}
}

// SetClock replaces the time source.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Export writes month to every exporter. A failing exporter does not stop the others.
func (s *Service) Export(ctx context.Context, month string) error {
	if _, err := ParseMonth(month); err != nil {
		return err
	}
	restaurants, err := s.source.ListRestaurants(ctx)
	if err != nil {
		return fmt.Errorf("list restaurants: %w", err)
	}
	rows := BuildRows(restaurants, month)

	var errs []error
	for _, e := range s.exporters {
		if err := e.Export(ctx, month, rows); err != nil {
			s.logger.Error().Err(err).Str("exporter", e.Name()).Str("month", month).Msg("Export failed")
			errs = append(errs, fmt.Errorf("%s: %w", e.Name(), err))
			continue
		}
		s.logger.Info().Str("exporter", e.Name()).Str("month", month).Int("rows", len(rows)).Msg("Report exported")
	}
	return errors.Join(errs...)
}

// Start begins the export scheduler.
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

	s.logger.Info().Dur("interval", s.config.Interval).Msg("Report service started")
}

// Stop gracefully stops the report service.
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
	s.logger.Info().Msg("Report service stopped")
}

func (s *Service) loop(stopCh chan struct{}) {
	defer s.wg.Done()

	if s.config.ExportOnStart {
		s.runScheduled()
	}

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			s.runScheduled()
		}
	}
}

// runScheduled exports the current month, and on the first day of a month the previous one too.
func (s *Service) runScheduled() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	now := s.now()
	months := []string{timewindow.MonthKey(now)}
	if now.Day() == 1 {
		months = append(months, timewindow.MonthKey(now.AddDate(0, 0, -1)))
	}
	for _, m := range months {
		if err := s.Export(ctx, m); err != nil {
			s.logger.Error().Err(err).Str("month", m).Msg("Scheduled export failed")
		}
	}
}
