package wire

import (
	"errors"
	"fmt"
	"time"
)

// Envelope validation errors.
var (
	ErrMissingMessageID  = errors.New("missing message ID")
	ErrMissingRequestID  = errors.New("missing request ID")
	ErrMissingInterface  = errors.New("missing interface name")
	ErrMissingCommand    = errors.New("missing command name")
	ErrEmptyPayload      = errors.New("empty payload")
	ErrNegativeVersion   = errors.New("negative property version")
	ErrInvalidStatusCode = errors.New("invalid status code")
)

// TelemetryMessage is a batch of telemetry values for one interface.
type TelemetryMessage struct {
	// MessageID uniquely identifies the message (UUID).
	MessageID string `json:"messageId" cbor:"1,keyasint"`

	// Interface is the capability interface the values belong to.
	Interface string `json:"interface" cbor:"2,keyasint"`

	// Values maps telemetry names to values.
	Values map[string]any `json:"values" cbor:"3,keyasint"`

	// CreationTime is when the message was produced on the device.
	CreationTime time.Time `json:"creationTime" cbor:"4,keyasint"`

	// Event marks the message as a one-shot event rather than a
	// periodic measurement.
	Event bool `json:"event,omitempty" cbor:"5,keyasint,omitempty"`

	// ContentType is the payload encoding ("application/json" or
	// "application/cbor"). Informational; the transport sets it from the
	// codec in use.
	ContentType string `json:"-" cbor:"-"`
}

// Validate checks the envelope before encoding.
func (m *TelemetryMessage) Validate() error {
	if m.MessageID == "" {
		return ErrMissingMessageID
	}
	if m.Interface == "" {
		return ErrMissingInterface
	}
	if len(m.Values) == 0 {
		return ErrEmptyPayload
	}
	return nil
}

// PropertyUpdate is a reported-property patch for one interface.
type PropertyUpdate struct {
	// Interface is the capability interface the patch belongs to.
	Interface string `json:"interface" cbor:"1,keyasint"`

	// Values maps property names to reported values.
	Values map[string]any `json:"values" cbor:"2,keyasint"`

	// Version is the reported-property version after the patch. Zero
	// means the platform assigns the version.
	Version int64 `json:"version,omitempty" cbor:"3,keyasint,omitempty"`
}

// Validate checks the envelope before encoding.
func (u *PropertyUpdate) Validate() error {
	if u.Interface == "" {
		return ErrMissingInterface
	}
	if len(u.Values) == 0 {
		return ErrEmptyPayload
	}
	if u.Version < 0 {
		return ErrNegativeVersion
	}
	return nil
}

// DesiredChange is a desired-property change pushed by the platform.
type DesiredChange struct {
	// Interface is the capability interface the change belongs to.
	// Empty when the platform sends a cross-interface patch.
	Interface string `json:"interface,omitempty" cbor:"1,keyasint,omitempty"`

	// Values maps property names to desired values.
	Values map[string]any `json:"values" cbor:"2,keyasint"`

	// Version is the desired-property version of the change.
	Version int64 `json:"version" cbor:"3,keyasint"`
}

// CommandRequest is a command invocation pushed by the platform.
type CommandRequest struct {
	// RequestID correlates the request with its response.
	RequestID string `json:"requestId" cbor:"1,keyasint"`

	// Interface is the capability interface that declares the command.
	Interface string `json:"interface" cbor:"2,keyasint"`

	// Name is the command name.
	Name string `json:"name" cbor:"3,keyasint"`

	// Payload is the decoded request payload, if any.
	Payload any `json:"payload,omitempty" cbor:"4,keyasint,omitempty"`
}

// Validate checks the envelope after decoding.
func (r *CommandRequest) Validate() error {
	if r.RequestID == "" {
		return ErrMissingRequestID
	}
	if r.Interface == "" {
		return ErrMissingInterface
	}
	if r.Name == "" {
		return ErrMissingCommand
	}
	return nil
}

// CommandResponse is the device's answer to a CommandRequest.
type CommandResponse struct {
	// RequestID echoes the request's correlation ID.
	RequestID string `json:"requestId" cbor:"1,keyasint"`

	// Status is the invocation result code.
	Status Status `json:"status" cbor:"2,keyasint"`

	// Payload is the response payload, if any.
	Payload any `json:"payload,omitempty" cbor:"3,keyasint,omitempty"`
}

// Validate checks the envelope before encoding.
func (r *CommandResponse) Validate() error {
	if r.RequestID == "" {
		return ErrMissingRequestID
	}
	if r.Status < 100 || r.Status > 599 {
		return fmt.Errorf("%w: %d", ErrInvalidStatusCode, r.Status)
	}
	return nil
}
