package wire

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	json "github.com/goccy/go-json"
)

// Content types for payload encodings.
const (
	ContentTypeJSON = "application/json"
	ContentTypeCBOR = "application/cbor"
)

// ErrUnknownContentType indicates no codec is registered for a content type.
var ErrUnknownContentType = errors.New("unknown content type")

// Codec encodes and decodes message envelopes.
type Codec interface {
	// ContentType returns the MIME content type the codec produces.
	ContentType() string

	// Marshal encodes a value.
	Marshal(v any) ([]byte, error)

	// Unmarshal decodes data into a value.
	Unmarshal(data []byte, v any) error
}

// encMode is the CBOR encoder mode for message envelopes.
// Configured for deterministic encoding with integer keys.
var encMode cbor.EncMode

// decMode is the CBOR decoder mode, lenient for forward compatibility.
var decMode cbor.DecMode

func init() {
	var err error

	encOpts := cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
		Time:          cbor.TimeUnix,
	}
	encMode, err = encOpts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create CBOR encoder mode: %v", err))
	}

	decOpts := cbor.DecOptions{
		DupMapKey:         cbor.DupMapKeyQuiet,
		IndefLength:       cbor.IndefLengthAllowed,
		ExtraReturnErrors: cbor.ExtraDecErrorNone,
	}
	decMode, err = decOpts.DecMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create CBOR decoder mode: %v", err))
	}
}

// JSONCodec encodes envelopes as JSON. The zero value is usable.
type JSONCodec struct{}

// ContentType returns "application/json".
func (JSONCodec) ContentType() string { return ContentTypeJSON }

// Marshal encodes a value as JSON.
func (JSONCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

// Unmarshal decodes JSON data into a value.
func (JSONCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

// CBORCodec encodes envelopes as canonical CBOR with integer keys.
// The zero value is usable.
type CBORCodec struct{}

// ContentType returns "application/cbor".
func (CBORCodec) ContentType() string { return ContentTypeCBOR }

// Marshal encodes a value as CBOR.
func (CBORCodec) Marshal(v any) ([]byte, error) { return encMode.Marshal(v) }

// Unmarshal decodes CBOR data into a value.
func (CBORCodec) Unmarshal(data []byte, v any) error { return decMode.Unmarshal(data, v) }

// CodecFor returns the codec for a content type. An empty content type
// selects JSON.
func CodecFor(contentType string) (Codec, error) {
	switch contentType {
	case "", ContentTypeJSON:
		return JSONCodec{}, nil
	case ContentTypeCBOR:
		return CBORCodec{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownContentType, contentType)
	}
}

// EncodeTelemetry validates and encodes a telemetry message.
func EncodeTelemetry(c Codec, m *TelemetryMessage) ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("invalid telemetry message: %w", err)
	}
	return c.Marshal(m)
}

// EncodePropertyUpdate validates and encodes a reported-property patch.
func EncodePropertyUpdate(c Codec, u *PropertyUpdate) ([]byte, error) {
	if err := u.Validate(); err != nil {
		return nil, fmt.Errorf("invalid property update: %w", err)
	}
	return c.Marshal(u)
}

// EncodeCommandResponse validates and encodes a command response.
func EncodeCommandResponse(c Codec, r *CommandResponse) ([]byte, error) {
	if err := r.Validate(); err != nil {
		return nil, fmt.Errorf("invalid command response: %w", err)
	}
	return c.Marshal(r)
}

// DecodeCommandRequest decodes and validates a command request.
func DecodeCommandRequest(c Codec, data []byte) (*CommandRequest, error) {
	var req CommandRequest
	if err := c.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("decode command request: %w", err)
	}
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("invalid command request: %w", err)
	}
	return &req, nil
}

// DecodeDesiredChange decodes a desired-property change.
func DecodeDesiredChange(c Codec, data []byte) (*DesiredChange, error) {
	var change DesiredChange
	if err := c.Unmarshal(data, &change); err != nil {
		return nil, fmt.Errorf("decode desired change: %w", err)
	}
	return &change, nil
}
