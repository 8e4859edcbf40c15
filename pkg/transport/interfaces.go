package transport

import (
	"context"
	"errors"
	"time"

	"github.com/latticeiot/devicekit-go/pkg/auth"
	"github.com/latticeiot/devicekit-go/pkg/wire"
)

// Transport errors.
var (
	ErrNotConnected     = errors.New("transport not connected")
	ErrAlreadyConnected = errors.New("transport already connected")
	ErrNotSupported     = errors.New("operation not supported by transport")
)

// EventKind classifies a transport lifecycle event.
type EventKind int

const (
	// EventConnected signals an established connection.
	EventConnected EventKind = iota

	// EventDisconnected signals a lost or closed connection.
	EventDisconnected
)

// String returns the event kind name.
func (k EventKind) String() string {
	switch k {
	case EventConnected:
		return "CONNECTED"
	case EventDisconnected:
		return "DISCONNECTED"
	default:
		return "UNKNOWN"
	}
}

// Event is a transport lifecycle notification.
type Event struct {
	// Kind is the event classification.
	Kind EventKind

	// At is when the event occurred.
	At time.Time

	// Err carries the cause of an unexpected disconnect, nil otherwise.
	Err error
}

// CommandHandler receives inbound command requests.
type CommandHandler func(*wire.CommandRequest)

// DesiredHandler receives desired property changes.
type DesiredHandler func(*wire.DesiredChange)

// Transport carries device traffic to and from the hub.
// Implemented by MQTTTransport and HTTPTransport.
type Transport interface {
	// Connect establishes the connection using the given credentials.
	Connect(ctx context.Context, creds *auth.Credentials) error

	// Disconnect closes the connection. Idempotent.
	Disconnect() error

	// IsConnected reports whether the transport is connected.
	IsConnected() bool

	// PublishTelemetry sends a telemetry message.
	PublishTelemetry(ctx context.Context, msg *wire.TelemetryMessage) error

	// PublishReported sends a reported property update.
	PublishReported(ctx context.Context, update *wire.PropertyUpdate) error

	// SubscribeCommands registers the handler for inbound command
	// requests. The handler is invoked one request at a time.
	SubscribeCommands(ctx context.Context, handler CommandHandler) error

	// RespondCommand answers a previously received command request.
	RespondCommand(ctx context.Context, resp *wire.CommandResponse) error

	// SubscribeDesired registers the handler for desired property changes.
	SubscribeDesired(ctx context.Context, handler DesiredHandler) error

	// Events returns the lifecycle event channel. Events are dropped if
	// the channel is not drained.
	Events() <-chan Event
}

// Compile-time interface satisfaction checks.
var (
	_ Transport = (*MQTTTransport)(nil)
	_ Transport = (*HTTPTransport)(nil)
)
