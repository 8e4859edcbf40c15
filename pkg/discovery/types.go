package discovery

import (
	"errors"
	"time"
)

// mDNS service parameters for gateway discovery.
const (
	// ServiceTypeGateway is the mDNS service type gateways advertise.
	ServiceTypeGateway = "_devicekit-gw._tcp"

	// Domain is the mDNS domain.
	Domain = "local"

	// BrowseTimeout is the default timeout for FindGateway.
	BrowseTimeout = 10 * time.Second
)

// TXT record keys for gateway advertisements.
const (
	TXTKeyGatewayID  = "id"
	TXTKeyAPIVersion = "api"
	TXTKeyEndpoint   = "ep"
)

// Discovery errors.
var (
	ErrMissingRequired = errors.New("missing required TXT field")
	ErrNoGatewayFound  = errors.New("no gateway found")
)

// Gateway is a discovered local gateway.
type Gateway struct {
	// InstanceName is the mDNS instance name.
	InstanceName string

	// Host is the advertised hostname.
	Host string

	// Port is the advertised service port.
	Port uint16

	// Addresses lists the resolved IP addresses.
	Addresses []string

	// GatewayID identifies the gateway.
	GatewayID string

	// APIVersion is the hub API version the gateway speaks.
	APIVersion string

	// Endpoint is the connection endpoint (host:port). Gateways may
	// override it via TXT; otherwise it is derived from Host and Port.
	Endpoint string
}
