package events

import (
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// DefaultSubjectPrefix namespaces bridged events on the NATS server.
const DefaultSubjectPrefix = "tablemind"

// NATSBridge forwards every bus event to a NATS subject "<prefix>.<type>".
type NATSBridge struct {
	conn   *nats.Conn
	prefix string
	logger zerolog.Logger
}

func NewNATSBridge(url, prefix string, logger zerolog.Logger) (*NATSBridge, error) {
	conn, err := nats.Connect(url, nats.Name("tablemind"), nats.MaxReconnects(-1))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return &NATSBridge{
		conn:   conn,
		prefix: prefix,
		logger: logger.With().Str("component", "nats_bridge").Logger(),
	}, nil
}

// Subject returns the NATS subject for an event type.
func (n *NATSBridge) Subject(eventType string) string {
	return n.prefix + "." + eventType
}

// Attach subscribes the bridge to every event on bus.
func (n *NATSBridge) Attach(bus *EventBus) {
	bus.Subscribe(Wildcard, n.Forward)
}

// Forward publishes one event. Failures are logged and returned so the bus can report them.
func (n *NATSBridge) Forward(event Event) error {
	msg := nats.NewMsg(n.Subject(event.Type))
	msg.Data = event.Payload
	msg.Header.Set("Event-Id", event.ID)
	msg.Header.Set("Event-Type", event.Type)
	if err := n.conn.PublishMsg(msg); err != nil {
		n.logger.Error().Err(err).Str("type", event.Type).Msg("Failed to forward event")
		return fmt.Errorf("publish %s: %w", event.Type, err)
	}
	return nil
}

// Connected reports the connection state for readiness checks.
func (n *NATSBridge) Connected() bool {
	return n.conn.IsConnected()
}

func (n *NATSBridge) Close() error {
	if err := n.conn.Drain(); err != nil {
		n.conn.Close()
		return err
	}
	return nil
}
