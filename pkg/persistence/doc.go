// Package persistence stores the device's provisioning result on disk so
// the SDK can reconnect to its assigned endpoint without re-registering on
// every start.
package persistence
