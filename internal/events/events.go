package events

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event types published by the scheduling services.
const (
	ReservationCreated     = "reservation.created"
	ReservationArrived     = "reservation.arrived"
	ReservationDeparted    = "reservation.departed"
	ReservationCancelled   = "reservation.cancelled"
	ReservationArchived    = "reservation.archived"
	ReservationReassigned  = "reservation.reassigned"
	ReservationRescheduled = "reservation.rescheduled"
	TableCleaned           = "table.cleaned"
	ScheduleCreated        = "schedule.created"
	ScheduleUpdated        = "schedule.updated"
	ScheduleStarted        = "schedule.started"
	ScheduleEnded          = "schedule.ended"
	ScheduleCancelled      = "schedule.cancelled"
	ShiftsChanged          = "shift.changed"
	HandoverCompleted      = "handover.completed"
	AlertRaised            = "alert.raised"
)

// Wildcard subscribers receive every event type.
const Wildcard = "*"

// Event represents a lightweight domain event.
type Event struct {
	ID        string
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// EventHandler reacts to an event.
type EventHandler func(event Event) error

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
}

// NewEventBus constructs an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler)}
}

// Subscribe registers a handler for a given event type, or Wildcard for all.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish notifies subscribers of the event type and returns the first handler error.
func (b *EventBus) Publish(event Event) error {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	handlers = append(handlers, b.subscribers[Wildcard]...)
	b.mu.RUnlock()

	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	var firstErr error
	for _, handler := range handlers {
		// Handlers run synchronously; caller decides concurrency model.
		if err := handler(event); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// PublishJSON marshals payload and publishes it under eventType.
func (b *EventBus) PublishJSON(eventType string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return b.Publish(Event{Type: eventType, Payload: data})
}
