package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the background monitor.
type Metrics struct {
	// TicksTotal counts ticks by outcome (ok, skipped).
	TicksTotal *prometheus.CounterVec

	// TickDuration is the time spent in one tick across all restaurants.
	TickDuration prometheus.Histogram

	// AlertsTotal counts alerts by kind and status (sent, suppressed, failed).
	AlertsTotal *prometheus.CounterVec

	// SweepErrors counts failed sweeps.
	SweepErrors *prometheus.CounterVec

	// AutoAssigned counts reservations assigned by the upcoming sweep.
	AutoAssigned prometheus.Counter
}

// NewMetrics creates monitor metrics registered with reg.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		TicksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "monitor_ticks_total",
				Help:      "Total number of monitor ticks",
			},
			[]string{"outcome"},
		),

		TickDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "monitor_tick_duration_seconds",
				Help:      "Time spent in one monitor tick",
				Buckets:   []float64{.01, .05, .1, .5, 1, 5, 15, 45},
			},
		),

		AlertsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "monitor_alerts_total",
				Help:      "Total number of monitor alerts",
			},
			[]string{"kind", "status"},
		),

		SweepErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "monitor_sweep_errors_total",
				Help:      "Total number of failed sweeps",
			},
			[]string{"sweep"},
		),

		AutoAssigned: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "monitor_auto_assigned_total",
				Help:      "Total number of reservations assigned by the monitor",
			},
		),
	}
}

func (m *Metrics) incTick(outcome string) {
	if m != nil {
		m.TicksTotal.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) observeTick(seconds float64) {
	if m != nil {
		m.TickDuration.Observe(seconds)
	}
}

func (m *Metrics) incAlert(kind, status string) {
	if m != nil {
		m.AlertsTotal.WithLabelValues(kind, status).Inc()
	}
}

func (m *Metrics) incSweepError(sweep string) {
	if m != nil {
		m.SweepErrors.WithLabelValues(sweep).Inc()
	}
}

func (m *Metrics) incAutoAssigned() {
	if m != nil {
		m.AutoAssigned.Inc()
	}
}
