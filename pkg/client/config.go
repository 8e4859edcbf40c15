package client

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/latticeiot/devicekit-go/pkg/auth"
	"github.com/latticeiot/devicekit-go/pkg/capability"
	"github.com/latticeiot/devicekit-go/pkg/connection"
	"github.com/latticeiot/devicekit-go/pkg/log"
	"github.com/latticeiot/devicekit-go/pkg/provisioning"
	"github.com/latticeiot/devicekit-go/pkg/transport"
	"github.com/latticeiot/devicekit-go/pkg/wire"
)

// Transport kinds the client can construct itself.
const (
	TransportMQTT = "mqtt"
	TransportHTTP = "http"
)

// Config configures a Client.
type Config struct {
	// DeviceID is the device identity. Defaults to the auth client's
	// device ID.
	DeviceID string

	// Model is the parsed capability model. Optional; a model-less client
	// skips name validation.
	Model *capability.Model

	// ModelPath loads the capability model from a JSON or YAML file.
	// Mutually exclusive with Model.
	ModelPath string

	// Transport injects a pre-built transport. When nil the client
	// constructs one from TransportKind and the resolved endpoint.
	Transport transport.Transport

	// TransportKind selects the transport to construct: TransportMQTT
	// (default) or TransportHTTP.
	TransportKind string

	// Endpoint is the hub endpoint to connect to. Mutually exclusive with
	// Provisioner.
	Endpoint string

	// Provisioner resolves the assigned hub endpoint at connect time.
	// Mutually exclusive with Endpoint.
	Provisioner provisioning.Provisioner

	// Auth produces connection credentials. Required.
	Auth auth.Client

	// ContentType selects the payload encoding. Defaults to
	// wire.ContentTypeJSON.
	ContentType string

	// Reconnect configures connect retries and automatic reconnection.
	Reconnect connection.ManagerConfig

	// PreferLocalGateway makes Connect browse mDNS for a local gateway
	// and use its endpoint when one answers within DiscoveryTimeout.
	PreferLocalGateway bool

	// DiscoveryTimeout bounds the local gateway browse. Default 5s.
	DiscoveryTimeout time.Duration

	// Logger receives debug output. Nil disables logging.
	Logger *slog.Logger

	// TrafficLogger captures wire traffic events. Nil disables capture.
	TrafficLogger log.Logger
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Auth == nil {
		return errors.New("missing auth client")
	}
	if c.DeviceID == "" && c.Auth.DeviceID() == "" {
		return errors.New("missing device ID")
	}
	if c.Model != nil && c.ModelPath != "" {
		return errors.New("Model and ModelPath are mutually exclusive")
	}

	if c.Transport != nil {
		if c.Endpoint != "" || c.Provisioner != nil {
			return errors.New("injected transport excludes Endpoint and Provisioner")
		}
		return nil
	}

	if (c.Endpoint == "") == (c.Provisioner == nil) {
		return errors.New("exactly one of Endpoint or Provisioner is required")
	}
	switch c.TransportKind {
	case "", TransportMQTT, TransportHTTP:
	default:
		return fmt.Errorf("unknown transport kind %q", c.TransportKind)
	}
	if c.ContentType != "" {
		if _, err := wire.CodecFor(c.ContentType); err != nil {
			return err
		}
	}
	return nil
}
