// Package wire defines the message envelopes exchanged between a device
// and the platform (telemetry, property updates, command requests and
// responses) and the payload codecs used to encode them.
//
// Envelopes are transport-agnostic: the transport layer maps them onto
// topics or HTTP routes. Payloads are encoded as JSON by default; CBOR is
// available for constrained links.
package wire
