package auth

import (
	"context"
	"crypto"
	"crypto/tls"
	"crypto/x509"
	"fmt"
)

// Identity is a device identity certificate with its private key.
type Identity struct {
	// Certificate is the leaf identity certificate.
	Certificate *x509.Certificate

	// PrivateKey is the certificate's private key.
	PrivateKey crypto.PrivateKey

	// Chain holds intermediate certificates, leaf first, if any.
	Chain []*x509.Certificate
}

// TLSCertificate converts the identity to a tls.Certificate.
func (id *Identity) TLSCertificate() tls.Certificate {
	chain := [][]byte{id.Certificate.Raw}
	for _, c := range id.Chain {
		chain = append(chain, c.Raw)
	}
	return tls.Certificate{
		Certificate: chain,
		PrivateKey:  id.PrivateKey,
		Leaf:        id.Certificate,
	}
}

// X509Client is a security client backed by an identity certificate.
// The device ID is taken from the certificate's CommonName unless
// overridden.
type X509Client struct {
	deviceID string
	store    Store
}

// NewX509Client creates an X.509 security client reading its identity
// from the given store.
func NewX509Client(store Store) (*X509Client, error) {
	id, err := store.Identity()
	if err != nil {
		return nil, err
	}
	if id == nil || id.Certificate == nil {
		return nil, ErrNoIdentity
	}
	return &X509Client{
		deviceID: id.Certificate.Subject.CommonName,
		store:    store,
	}, nil
}

// DeviceID returns the device identity (the certificate CommonName).
func (c *X509Client) DeviceID() string {
	return c.deviceID
}

// TokenCredentials returns mutual-TLS credentials. The resource is not
// embedded in X.509 credentials; the certificate asserts the identity.
func (c *X509Client) TokenCredentials(_ context.Context, resource string) (*Credentials, error) {
	id, err := c.store.Identity()
	if err != nil {
		return nil, fmt.Errorf("load identity: %w", err)
	}
	if id == nil || id.Certificate == nil {
		return nil, ErrNoIdentity
	}

	return &Credentials{
		Username: fmt.Sprintf("%s/%s", resource, c.deviceID),
		TLSConfig: &tls.Config{
			MinVersion:   tls.VersionTLS12,
			Certificates: []tls.Certificate{id.TLSCertificate()},
		},
	}, nil
}

// Compile-time interface satisfaction check.
var _ Client = (*X509Client)(nil)
