// Package client is the device-facing entry point of the SDK. A Client
// binds a capability model to a transport and exposes telemetry, property
// and command operations that are validated against the model before
// anything is put on the wire.
package client
