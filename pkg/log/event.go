package log

import (
	"time"
)

// Event represents an SDK traffic event captured at any layer.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// ConnectionID uniquely identifies the transport connection.
	ConnectionID string `cbor:"2,keyasint"`

	// Direction indicates message flow.
	Direction Direction `cbor:"3,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"4,keyasint"`

	// Transport names the transport in use ("mqtt", "http").
	Transport string `cbor:"5,keyasint,omitempty"`

	// DeviceID is the device identifier.
	DeviceID string `cbor:"6,keyasint,omitempty"`

	// Interface is the capability interface involved, if any.
	Interface string `cbor:"7,keyasint,omitempty"`

	// Name is the telemetry/property/command name involved, if any.
	Name string `cbor:"8,keyasint,omitempty"`

	// CorrelationID is the message or request ID involved, if any.
	CorrelationID string `cbor:"9,keyasint,omitempty"`

	// Size is the encoded payload size in bytes, if applicable.
	Size int `cbor:"10,keyasint,omitempty"`

	// Detail carries a short human-readable annotation (state names,
	// endpoint addresses).
	Detail string `cbor:"11,keyasint,omitempty"`

	// Err carries the error message for CategoryError events.
	Err string `cbor:"12,keyasint,omitempty"`
}

// Direction indicates the direction of message flow.
type Direction uint8

const (
	// DirectionIn indicates an inbound message (platform to device).
	DirectionIn Direction = 0

	// DirectionOut indicates an outbound message (device to platform).
	DirectionOut Direction = 1

	// DirectionNone indicates a local event with no message flow.
	DirectionNone Direction = 2
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	case DirectionNone:
		return "NONE"
	default:
		return "UNKNOWN"
	}
}

// Category classifies traffic events.
type Category uint8

const (
	// CategoryConnect is a transport connection being established.
	CategoryConnect Category = iota

	// CategoryDisconnect is a transport connection closing.
	CategoryDisconnect

	// CategoryTelemetry is a telemetry or event publish.
	CategoryTelemetry

	// CategoryProperty is a reported-property publish or desired-property
	// change.
	CategoryProperty

	// CategoryCommand is a command request or response.
	CategoryCommand

	// CategoryProvision is a provisioning request or result.
	CategoryProvision

	// CategoryError is an error at any layer.
	CategoryError
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryConnect:
		return "CONNECT"
	case CategoryDisconnect:
		return "DISCONNECT"
	case CategoryTelemetry:
		return "TELEMETRY"
	case CategoryProperty:
		return "PROPERTY"
	case CategoryCommand:
		return "COMMAND"
	case CategoryProvision:
		return "PROVISION"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}
