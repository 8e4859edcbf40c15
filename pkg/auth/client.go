package auth

import (
	"context"
	"crypto/tls"
	"errors"
	"time"
)

// Client errors.
var (
	ErrMissingDeviceID = errors.New("missing device ID")
	ErrMissingKey      = errors.New("missing symmetric key")
	ErrInvalidKey      = errors.New("invalid symmetric key")
	ErrNoIdentity      = errors.New("no identity certificate")
)

// Credentials is the snapshot a transport presents when connecting.
type Credentials struct {
	// Username is the transport username (empty for pure mutual TLS).
	Username string

	// Password is the shared-access token (empty for X.509 auth).
	Password string

	// Expiry is when the token expires. Zero for X.509 auth.
	Expiry time.Time

	// TLSConfig is the TLS configuration to dial with. For X.509 auth it
	// carries the identity certificate.
	TLSConfig *tls.Config
}

// Client is a security client that produces connection credentials for a
// resource (a hub endpoint or provisioning scope).
type Client interface {
	// DeviceID returns the device identity the credentials assert.
	DeviceID() string

	// TokenCredentials returns credentials scoped to the given resource.
	// Implementations may cache and renew internally; callers must not
	// hold a Credentials value past its Expiry.
	TokenCredentials(ctx context.Context, resource string) (*Credentials, error)
}
