package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "tablemind"

var (
	once sync.Once

	reservationTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reservation_transitions_total",
			Help:      "Count of reservation lifecycle changes by resulting status.",
		},
		[]string{"status"},
	)

	conflictsRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conflicts_rejected_total",
			Help:      "Count of operations rejected by the conflict checker.",
		},
		[]string{"kind"},
	)

	waiterAssignments = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "waiter_assignments_total",
			Help:      "Count of waiter assignments by origin.",
		},
		[]string{"origin"},
	)

	handoverMoved = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handover_reservations_moved_total",
			Help:      "Count of reservations moved by shift handovers.",
		},
	)

	revenue = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "revenue_recorded_total",
			Help:      "Sum of bills recorded on departure.",
		},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(reservationTransitions, conflictsRejected, waiterAssignments, handoverMoved, revenue)
	})
}

func IncTransition(status string) {
	reservationTransitions.WithLabelValues(status).Inc()
}

func IncConflict(kind string) {
	conflictsRejected.WithLabelValues(kind).Inc()
}

func IncAssignment(origin string) {
	waiterAssignments.WithLabelValues(origin).Inc()
}

func AddHandoverMoved(n int) {
	handoverMoved.Add(float64(n))
}

func AddRevenue(amount float64) {
	if amount > 0 {
		revenue.Add(amount)
	}
}
