// Package transport moves wire messages between the device and the hub.
//
// Protocol handling lives in the underlying implementations (the paho MQTT
// client, net/http); this package maps device operations onto topics and
// request paths and surfaces connection lifecycle events.
package transport
