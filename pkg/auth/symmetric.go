package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"net/url"
	"sync"
	"time"
)

// DefaultTokenTTL is the default shared-access token lifetime.
const DefaultTokenTTL = time.Hour

// renewFraction is the remaining-lifetime fraction below which a cached
// token is renewed.
const renewFraction = 0.25

// SymmetricKeyClient signs shared-access tokens with an HMAC-SHA256 device
// key. It caches the token per resource and renews it when less than a
// quarter of its lifetime remains. Safe for concurrent use.
type SymmetricKeyClient struct {
	deviceID string
	key      []byte
	ttl      time.Duration

	// now is replaceable in tests.
	now func() time.Time

	mu     sync.Mutex
	cached map[string]*Credentials
}

// SymmetricKeyOption customizes a SymmetricKeyClient.
type SymmetricKeyOption func(*SymmetricKeyClient)

// WithTokenTTL sets the token lifetime.
func WithTokenTTL(ttl time.Duration) SymmetricKeyOption {
	return func(c *SymmetricKeyClient) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// NewSymmetricKeyClient creates a symmetric-key security client.
// The key is base64 encoded, as issued by the platform.
func NewSymmetricKeyClient(deviceID, base64Key string, opts ...SymmetricKeyOption) (*SymmetricKeyClient, error) {
	if deviceID == "" {
		return nil, ErrMissingDeviceID
	}
	if base64Key == "" {
		return nil, ErrMissingKey
	}
	key, err := base64.StdEncoding.DecodeString(base64Key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}

	c := &SymmetricKeyClient{
		deviceID: deviceID,
		key:      key,
		ttl:      DefaultTokenTTL,
		now:      time.Now,
		cached:   make(map[string]*Credentials),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// DeviceID returns the device identity.
func (c *SymmetricKeyClient) DeviceID() string {
	return c.deviceID
}

// TokenCredentials returns credentials for the resource, renewing the
// cached token if it is close to expiry.
func (c *SymmetricKeyClient) TokenCredentials(_ context.Context, resource string) (*Credentials, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if creds, ok := c.cached[resource]; ok {
		remaining := creds.Expiry.Sub(c.now())
		if remaining > time.Duration(float64(c.ttl)*renewFraction) {
			return creds, nil
		}
	}

	expiry := c.now().Add(c.ttl)
	token := c.signToken(resource, expiry)

	creds := &Credentials{
		Username:  fmt.Sprintf("%s/%s", resource, c.deviceID),
		Password:  token,
		Expiry:    expiry,
		TLSConfig: &tls.Config{MinVersion: tls.VersionTLS12},
	}
	c.cached[resource] = creds
	return creds, nil
}

// signToken builds a shared-access token:
// SharedAccessSignature sr=<resource>&sig=<signature>&se=<expiry>
func (c *SymmetricKeyClient) signToken(resource string, expiry time.Time) string {
	sr := url.QueryEscape(resource)
	se := expiry.Unix()

	mac := hmac.New(sha256.New, c.key)
	fmt.Fprintf(mac, "%s\n%d", sr, se)
	sig := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	return fmt.Sprintf("SharedAccessSignature sr=%s&sig=%s&se=%d",
		sr, url.QueryEscape(sig), se)
}

// DeriveDeviceKey derives a per-device key from a base64 group enrollment
// key by signing the device ID. This matches how platforms issue device
// keys for group enrollments.
func DeriveDeviceKey(base64GroupKey, deviceID string) (string, error) {
	if deviceID == "" {
		return "", ErrMissingDeviceID
	}
	key, err := base64.StdEncoding.DecodeString(base64GroupKey)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}

	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(deviceID))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil)), nil
}

// Compile-time interface satisfaction check.
var _ Client = (*SymmetricKeyClient)(nil)
