package client

import (
	"context"
	"errors"

	"github.com/latticeiot/devicekit-go/pkg/wire"
)

// Client errors.
var (
	ErrAlreadyConnected = errors.New("client already connected")
	ErrNotConnected     = errors.New("client not connected")
	ErrClosed           = errors.New("client closed")
	ErrUnknownInterface = errors.New("interface not in capability model")
	ErrUnknownTelemetry = errors.New("telemetry name not in capability model")
	ErrUnknownProperty  = errors.New("property name not in capability model")
	ErrUnknownCommand   = errors.New("command name not in capability model")
)

// EventType classifies client lifecycle events.
type EventType int

const (
	// EventConnected signals an established hub connection.
	EventConnected EventType = iota

	// EventDisconnected signals a closed or lost connection.
	EventDisconnected

	// EventReconnecting signals automatic reconnection in progress.
	EventReconnecting
)

// String returns the event type name.
func (t EventType) String() string {
	switch t {
	case EventConnected:
		return "CONNECTED"
	case EventDisconnected:
		return "DISCONNECTED"
	case EventReconnecting:
		return "RECONNECTING"
	default:
		return "UNKNOWN"
	}
}

// Event is a client lifecycle notification.
type Event struct {
	// Type is the event classification.
	Type EventType

	// Err carries the cause of an unexpected disconnect, nil otherwise.
	Err error
}

// EventHandler receives client lifecycle events.
type EventHandler func(Event)

// CommandHandler answers an inbound command request. The returned payload
// and status form the command response.
type CommandHandler func(ctx context.Context, req *wire.CommandRequest) (any, wire.Status)

// DesiredHandler receives desired property changes pushed by the platform.
type DesiredHandler func(*wire.DesiredChange)
