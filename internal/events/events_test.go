package events

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventBus(t *testing.T) {
	bus := NewEventBus()

	var typed, all []Event
	bus.Subscribe(ReservationCreated, func(e Event) error {
		typed = append(typed, e)
		return nil
	})
	bus.Subscribe(Wildcard, func(e Event) error {
		all = append(all, e)
		return nil
	})

	require.NoError(t, bus.PublishJSON(ReservationCreated, map[string]string{"id": "r1"}))
	require.NoError(t, bus.Publish(Event{Type: ScheduleCreated}))

	require.Len(t, typed, 1)
	assert.Len(t, all, 2)
	assert.NotEmpty(t, typed[0].ID)
	assert.False(t, typed[0].CreatedAt.IsZero())

	var payload map[string]string
	require.NoError(t, json.Unmarshal(typed[0].Payload, &payload))
	assert.Equal(t, "r1", payload["id"])
}

func TestEventBus_HandlerError(t *testing.T) {
	bus := NewEventBus()
	calls := 0
	bus.Subscribe(AlertRaised, func(Event) error {
		calls++
		return errors.New("sink down")
	})
	bus.Subscribe(AlertRaised, func(Event) error {
		calls++
		return nil
	})

	err := bus.Publish(Event{Type: AlertRaised})
	assert.EqualError(t, err, "sink down")
	assert.Equal(t, 2, calls)
}

func TestEventBus_UnmarshalablePayload(t *testing.T) {
	bus := NewEventBus()
	err := bus.PublishJSON(AlertRaised, make(chan int))
	assert.Error(t, err)
}
