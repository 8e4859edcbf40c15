package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/latticeiot/devicekit-go/pkg/auth"
	"github.com/latticeiot/devicekit-go/pkg/log"
	"github.com/latticeiot/devicekit-go/pkg/version"
	"github.com/latticeiot/devicekit-go/pkg/wire"
)

// HTTPConfig configures an HTTPTransport.
type HTTPConfig struct {
	// Endpoint is the hub base URL, e.g. "https://hub.example.com".
	Endpoint string

	// DeviceID is the device identity used in request paths.
	DeviceID string

	// ContentType selects the payload codec. Defaults to
	// wire.ContentTypeJSON.
	ContentType string

	// HTTPClient overrides the HTTP client. Nil uses a client with a
	// 30 second timeout.
	HTTPClient *http.Client

	// Logger receives debug output. Nil disables logging.
	Logger *slog.Logger

	// TrafficLogger captures wire traffic events. Nil disables capture.
	TrafficLogger log.Logger
}

// Validate checks the configuration.
func (c *HTTPConfig) Validate() error {
	if c.Endpoint == "" {
		return errors.New("missing endpoint")
	}
	if !strings.HasPrefix(c.Endpoint, "https://") && !strings.HasPrefix(c.Endpoint, "http://") {
		return fmt.Errorf("endpoint %q must be an http(s) URL", c.Endpoint)
	}
	if c.DeviceID == "" {
		return errors.New("missing device ID")
	}
	if c.ContentType != "" {
		if _, err := wire.CodecFor(c.ContentType); err != nil {
			return err
		}
	}
	return nil
}

// HTTPTransport publishes telemetry and property updates over plain HTTP
// requests. It has no inbound channel: SubscribeCommands, RespondCommand
// and SubscribeDesired return ErrNotSupported.
type HTTPTransport struct {
	cfg    HTTPConfig
	codec  wire.Codec
	client *http.Client

	mu           sync.RWMutex
	creds        *auth.Credentials
	connected    bool
	connectionID string

	events chan Event
}

// NewHTTPTransport creates an HTTP transport.
func NewHTTPTransport(cfg HTTPConfig) (*HTTPTransport, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.ContentType == "" {
		cfg.ContentType = wire.ContentTypeJSON
	}

	codec, err := wire.CodecFor(cfg.ContentType)
	if err != nil {
		return nil, err
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	return &HTTPTransport{
		cfg:    cfg,
		codec:  codec,
		client: client,
		events: make(chan Event, defaultEventBuffer),
	}, nil
}

// Connect stores the credentials for subsequent requests. No connection is
// held open.
func (t *HTTPTransport) Connect(ctx context.Context, creds *auth.Credentials) error {
	t.mu.Lock()
	if t.connected {
		t.mu.Unlock()
		return ErrAlreadyConnected
	}
	t.creds = creds
	t.connected = true
	t.connectionID = uuid.NewString()
	t.mu.Unlock()

	t.logTraffic(log.Event{
		Direction: log.DirectionNone,
		Category:  log.CategoryConnect,
		Detail:    t.cfg.Endpoint,
	})
	t.emitEvent(Event{Kind: EventConnected, At: time.Now()})
	return nil
}

// Disconnect drops the stored credentials. Idempotent.
func (t *HTTPTransport) Disconnect() error {
	t.mu.Lock()
	wasConnected := t.connected
	t.creds = nil
	t.connected = false
	t.mu.Unlock()

	if !wasConnected {
		return nil
	}

	t.logTraffic(log.Event{
		Direction: log.DirectionNone,
		Category:  log.CategoryDisconnect,
	})
	t.emitEvent(Event{Kind: EventDisconnected, At: time.Now()})
	return nil
}

// IsConnected reports whether credentials are held.
func (t *HTTPTransport) IsConnected() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.connected
}

// PublishTelemetry posts a telemetry message.
func (t *HTTPTransport) PublishTelemetry(ctx context.Context, msg *wire.TelemetryMessage) error {
	msg.ContentType = t.cfg.ContentType
	data, err := wire.EncodeTelemetry(t.codec, msg)
	if err != nil {
		return err
	}

	path := fmt.Sprintf("/devices/%s/telemetry", t.cfg.DeviceID)
	if err := t.post(ctx, path, data); err != nil {
		return err
	}

	t.logTraffic(log.Event{
		Direction:     log.DirectionOut,
		Category:      log.CategoryTelemetry,
		Interface:     msg.Interface,
		CorrelationID: msg.MessageID,
		Size:          len(data),
	})
	return nil
}

// PublishReported posts a reported property update.
func (t *HTTPTransport) PublishReported(ctx context.Context, update *wire.PropertyUpdate) error {
	data, err := wire.EncodePropertyUpdate(t.codec, update)
	if err != nil {
		return err
	}

	path := fmt.Sprintf("/devices/%s/properties/reported", t.cfg.DeviceID)
	if err := t.post(ctx, path, data); err != nil {
		return err
	}

	t.logTraffic(log.Event{
		Direction: log.DirectionOut,
		Category:  log.CategoryProperty,
		Interface: update.Interface,
		Size:      len(data),
	})
	return nil
}

// SubscribeCommands is not available over HTTP.
func (t *HTTPTransport) SubscribeCommands(ctx context.Context, handler CommandHandler) error {
	return ErrNotSupported
}

// RespondCommand is not available over HTTP.
func (t *HTTPTransport) RespondCommand(ctx context.Context, resp *wire.CommandResponse) error {
	return ErrNotSupported
}

// SubscribeDesired is not available over HTTP.
func (t *HTTPTransport) SubscribeDesired(ctx context.Context, handler DesiredHandler) error {
	return ErrNotSupported
}

// Events returns the lifecycle event channel.
func (t *HTTPTransport) Events() <-chan Event {
	return t.events
}

// post sends a payload to the hub and checks for a 2xx response.
func (t *HTTPTransport) post(ctx context.Context, path string, data []byte) error {
	t.mu.RLock()
	creds := t.creds
	connected := t.connected
	t.mu.RUnlock()

	if !connected || creds == nil {
		return ErrNotConnected
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		t.cfg.Endpoint+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", t.cfg.ContentType)
	req.Header.Set("User-Agent", version.UserAgent())
	if creds.Password != "" {
		req.Header.Set("Authorization", creds.Password)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("hub returned %d for %s: %s",
			resp.StatusCode, path, bytes.TrimSpace(body))
	}
	return nil
}

// emitEvent delivers a lifecycle event without blocking.
func (t *HTTPTransport) emitEvent(event Event) {
	select {
	case t.events <- event:
	default:
		t.debugLog("dropping lifecycle event", "kind", event.Kind)
	}
}

// logTraffic records a traffic event if capture is enabled.
func (t *HTTPTransport) logTraffic(event log.Event) {
	if t.cfg.TrafficLogger == nil {
		return
	}
	event.Timestamp = time.Now()
	event.Transport = "http"
	event.DeviceID = t.cfg.DeviceID
	t.mu.RLock()
	event.ConnectionID = t.connectionID
	t.mu.RUnlock()
	t.cfg.TrafficLogger.Log(event)
}

// debugLog logs a debug message if logging is enabled.
func (t *HTTPTransport) debugLog(msg string, args ...any) {
	if t.cfg.Logger != nil {
		t.cfg.Logger.Debug(msg, args...)
	}
}
