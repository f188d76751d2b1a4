// Package notify delivers monitor alerts to Telegram, the event bus and the log.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"tablemind/internal/models"
)

// Sink is one delivery channel.
type Sink interface {
	Name() string
	Send(ctx context.Context, alert models.Alert) error
}

// RetryConfig holds configuration for retry logic.
type RetryConfig struct {
	MaxRetries  int
	RetryDelays []time.Duration
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 3,
		RetryDelays: []time.Duration{
			1 * time.Second,
			5 * time.Second,
			30 * time.Second,
		},
	}
}

func (c RetryConfig) delay(attempt int) time.Duration {
	if len(c.RetryDelays) == 0 {
		return time.Second
	}
	if attempt >= len(c.RetryDelays) {
		return c.RetryDelays[len(c.RetryDelays)-1]
	}
	return c.RetryDelays[attempt]
}

// DeliveryError is a sink failure with a transport status code.
type DeliveryError struct {
	Code       int
	Message    string
	RetryAfter int // seconds to wait before retrying (for 429 errors)
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivery error %d: %s", e.Code, e.Message)
}

// Permanent reports whether retrying cannot help.
func (e *DeliveryError) Permanent() bool {
	return e.Code == 400 || e.Code == 403
}

// AsDeliveryError checks if the error is a DeliveryError.
func AsDeliveryError(err error) (*DeliveryError, bool) {
	var dErr *DeliveryError
	if errors.As(err, &dErr) {
		return dErr, true
	}
	return nil, false
}

// Config holds configuration for the dispatcher.
type Config struct {
	// Rate is the number of sends allowed per second across all sinks.
	Rate float64
	// Burst is the maximum number of sends allowed at once.
	Burst int
	Retry RetryConfig
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Rate:  1,
		Burst: 5,
		Retry: DefaultRetryConfig(),
	}
}

// Dispatcher fans an alert out to every sink, rate limited, with retries per sink.
type Dispatcher struct {
	sinks   []Sink
	limiter *rate.Limiter
	retry   RetryConfig
	logger  zerolog.Logger
}

// NewDispatcher creates a dispatcher over sinks.
func NewDispatcher(config Config, logger zerolog.Logger, sinks ...Sink) *Dispatcher {
	def := DefaultConfig()
	if config.Rate <= 0 {
		config.Rate = def.Rate
	}
	if config.Burst <= 0 {
		config.Burst = def.Burst
	}
	return &Dispatcher{
		sinks:   sinks,
		limiter: rate.NewLimiter(rate.Limit(config.Rate), config.Burst),
		retry:   config.Retry,
		logger:  logger.With().Str("component", "notify").Logger(),
	}
}

// Notify delivers alert to every sink. It fails only when no sink accepted the alert.
func (d *Dispatcher) Notify(ctx context.Context, alert models.Alert) error {
	if len(d.sinks) == 0 {
		return nil
	}
	var errs []error
	for _, sink := range d.sinks {
		if err := d.sendWithRetry(ctx, sink, alert); err != nil {
			d.logger.Error().Err(err).
				Str("sink", sink.Name()).
				Str("key", alert.Key).
				Msg("Alert delivery failed")
			errs = append(errs, fmt.Errorf("%s: %w", sink.Name(), err))
		}
	}
	if len(errs) == len(d.sinks) {
		return errors.Join(errs...)
	}
	return nil
}

func (d *Dispatcher) sendWithRetry(ctx context.Context, sink Sink, alert models.Alert) error {
	if err := d.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= d.retry.MaxRetries; attempt++ {
		err := sink.Send(ctx, alert)
		if err == nil {
			return nil
		}
		lastErr = err
		if attempt == d.retry.MaxRetries {
			break
		}

		wait := d.retry.delay(attempt)
		if dErr, ok := AsDeliveryError(err); ok {
			if dErr.Permanent() {
				return err
			}
			if dErr.Code == 429 && dErr.RetryAfter > 0 {
				wait = time.Duration(dErr.RetryAfter) * time.Second
			}
		}

		d.logger.Info().Err(err).
			Str("sink", sink.Name()).
			Int("attempt", attempt+1).
			Int("max_retries", d.retry.MaxRetries).
			Dur("delay", wait).
			Msg("Retrying alert delivery")

		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return fmt.Errorf("max retries exceeded: %w", lastErr)
}
