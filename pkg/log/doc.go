// Package log captures structured SDK traffic events.
//
// The client and transports emit an Event for every connection state
// change, outbound telemetry or property publish, inbound command, and
// provisioning attempt. Applications choose where events go: discard them
// (NoopLogger), mirror them into an slog.Logger (SlogAdapter), append them
// to a CBOR capture file (FileLogger), or fan out to several sinks
// (MultiLogger).
//
// This is traffic capture, not application logging; the SDK takes a
// separate *slog.Logger for debug output.
package log
