package wire

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodecFor(t *testing.T) {
	c, err := CodecFor("")
	require.NoError(t, err)
	assert.Equal(t, ContentTypeJSON, c.ContentType())

	c, err = CodecFor(ContentTypeCBOR)
	require.NoError(t, err)
	assert.Equal(t, ContentTypeCBOR, c.ContentType())

	_, err = CodecFor("application/xml")
	assert.ErrorIs(t, err, ErrUnknownContentType)
}

func TestEncodeTelemetry(t *testing.T) {
	msg := &TelemetryMessage{
		MessageID:    "6ba7b810-9dad-11d1-80b4-00c04fd430c8",
		Interface:    "climate",
		Values:       map[string]any{"temperature": 21.5},
		CreationTime: time.Unix(1700000000, 0).UTC(),
	}

	for _, codec := range []Codec{JSONCodec{}, CBORCodec{}} {
		t.Run(codec.ContentType(), func(t *testing.T) {
			data, err := EncodeTelemetry(codec, msg)
			require.NoError(t, err)
			require.NotEmpty(t, data)

			var decoded TelemetryMessage
			require.NoError(t, codec.Unmarshal(data, &decoded))
			assert.Equal(t, msg.MessageID, decoded.MessageID)
			assert.Equal(t, msg.Interface, decoded.Interface)
		})
	}
}

func TestEncodeTelemetryInvalid(t *testing.T) {
	tests := []struct {
		name string
		msg  *TelemetryMessage
		want error
	}{
		{"MissingID", &TelemetryMessage{Interface: "a", Values: map[string]any{"x": 1}}, ErrMissingMessageID},
		{"MissingInterface", &TelemetryMessage{MessageID: "id", Values: map[string]any{"x": 1}}, ErrMissingInterface},
		{"EmptyValues", &TelemetryMessage{MessageID: "id", Interface: "a"}, ErrEmptyPayload},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := EncodeTelemetry(JSONCodec{}, tc.msg)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestPropertyUpdateValidate(t *testing.T) {
	u := &PropertyUpdate{Interface: "climate", Values: map[string]any{"target": 20}}
	assert.NoError(t, u.Validate())

	u.Version = -1
	assert.ErrorIs(t, u.Validate(), ErrNegativeVersion)

	u = &PropertyUpdate{Interface: "climate"}
	assert.ErrorIs(t, u.Validate(), ErrEmptyPayload)
}

func TestCommandRoundTrip(t *testing.T) {
	codec := JSONCodec{}

	req := &CommandRequest{
		RequestID: "req-1",
		Interface: "climate",
		Name:      "reboot",
		Payload:   map[string]any{"delay": float64(5)},
	}
	data, err := codec.Marshal(req)
	require.NoError(t, err)

	decoded, err := DecodeCommandRequest(codec, data)
	require.NoError(t, err)
	assert.Equal(t, req.RequestID, decoded.RequestID)
	assert.Equal(t, req.Name, decoded.Name)

	resp := &CommandResponse{RequestID: "req-1", Status: StatusOK, Payload: true}
	out, err := EncodeCommandResponse(codec, resp)
	require.NoError(t, err)
	assert.NotEmpty(t, out)
}

func TestDecodeCommandRequestInvalid(t *testing.T) {
	codec := JSONCodec{}

	_, err := DecodeCommandRequest(codec, []byte(`not json`))
	assert.Error(t, err)

	// Valid JSON, missing request ID.
	_, err = DecodeCommandRequest(codec, []byte(`{"interface": "a", "name": "b"}`))
	assert.ErrorIs(t, err, ErrMissingRequestID)
}

func TestCommandResponseValidate(t *testing.T) {
	r := &CommandResponse{RequestID: "x", Status: 700}
	assert.ErrorIs(t, r.Validate(), ErrInvalidStatusCode)

	r = &CommandResponse{Status: StatusOK}
	assert.ErrorIs(t, r.Validate(), ErrMissingRequestID)
}

func TestStatus(t *testing.T) {
	assert.Equal(t, "OK", StatusOK.String())
	assert.Equal(t, "NOT_IMPLEMENTED", StatusNotImplemented.String())
	assert.Equal(t, "UNKNOWN", Status(299).String())
	assert.True(t, StatusOK.OK())
	assert.True(t, Status(204).OK())
	assert.False(t, StatusError.OK())
}
