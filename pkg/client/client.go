package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/latticeiot/devicekit-go/pkg/capability"
	"github.com/latticeiot/devicekit-go/pkg/connection"
	"github.com/latticeiot/devicekit-go/pkg/discovery"
	"github.com/latticeiot/devicekit-go/pkg/log"
	"github.com/latticeiot/devicekit-go/pkg/provisioning"
	"github.com/latticeiot/devicekit-go/pkg/transport"
	"github.com/latticeiot/devicekit-go/pkg/wire"
)

// DefaultDiscoveryTimeout bounds the local gateway browse during Connect.
const DefaultDiscoveryTimeout = 5 * time.Second

// respondTimeout bounds publishing a command response.
const respondTimeout = 30 * time.Second

// Client connects a device to its hub and validates traffic against the
// capability model.
type Client struct {
	cfg      Config
	model    *capability.Model
	deviceID string
	logger   *slog.Logger

	manager *connection.Manager

	// newTransport builds a transport for an endpoint. Defaults to
	// buildTransport; replaced in tests.
	newTransport func(endpoint string) (transport.Transport, error)

	mu            sync.RWMutex
	transport     transport.Transport
	endpoint      string
	closed        bool
	reprovisioned bool
	pumped        transport.Transport
	pumpCancel    context.CancelFunc

	commandHandlers map[string]CommandHandler
	desiredHandlers []DesiredHandler
	eventHandlers   []EventHandler

	propertyVersion atomic.Int64

	wg sync.WaitGroup
}

// New creates a client. The capability model is loaded from ModelPath when
// one is configured.
func New(cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	model := cfg.Model
	if cfg.ModelPath != "" {
		var err error
		model, err = capability.NewParser().ParseFile(cfg.ModelPath)
		if err != nil {
			return nil, fmt.Errorf("load capability model: %w", err)
		}
	}

	deviceID := cfg.DeviceID
	if deviceID == "" {
		deviceID = cfg.Auth.DeviceID()
	}

	c := &Client{
		cfg:             cfg,
		model:           model,
		deviceID:        deviceID,
		logger:          cfg.Logger,
		transport:       cfg.Transport,
		endpoint:        cfg.Endpoint,
		commandHandlers: make(map[string]CommandHandler),
	}
	c.newTransport = c.buildTransport

	c.manager = connection.NewManager(c.establish, cfg.Reconnect)
	c.manager.OnStateChange(c.onManagerStateChange)

	return c, nil
}

// DeviceID returns the device identity the client asserts.
func (c *Client) DeviceID() string {
	return c.deviceID
}

// Model returns the capability model, nil for a model-less client.
func (c *Client) Model() *capability.Model {
	return c.model
}

// State returns the connection state.
func (c *Client) State() connection.State {
	return c.manager.State()
}

// Connect provisions (when a provisioner is configured), resolves the
// endpoint and establishes the transport connection. A second Connect on a
// connected client returns ErrAlreadyConnected.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.RLock()
	closed := c.closed
	c.mu.RUnlock()
	if closed {
		return ErrClosed
	}

	if err := c.manager.Connect(ctx); err != nil {
		if errors.Is(err, connection.ErrAlreadyConnected) {
			return ErrAlreadyConnected
		}
		return err
	}
	return nil
}

// alreadyReprovisioned marks and reports the one-shot re-provision.
func (c *Client) alreadyReprovisioned() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.reprovisioned {
		return true
	}
	c.reprovisioned = true
	return false
}

// establish is the connection.Manager connect function. It resolves the
// endpoint, builds the transport if needed, connects and subscribes.
func (c *Client) establish(ctx context.Context) error {
	endpoint, err := c.resolveEndpoint(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	t := c.transport
	c.mu.Unlock()

	if t == nil {
		t, err = c.newTransport(endpoint)
		if err != nil {
			return err
		}
		c.mu.Lock()
		c.transport = t
		c.mu.Unlock()
	}

	creds, err := c.cfg.Auth.TokenCredentials(ctx, endpoint)
	if err != nil {
		return fmt.Errorf("connection credentials: %w", err)
	}

	if err := t.Connect(ctx, creds); err != nil {
		// A cached registration can point at an endpoint that no longer
		// accepts the device. Force one re-provision; the retry loop then
		// connects to the fresh assignment.
		c.maybeReprovision(ctx, err)
		return err
	}

	// Subscriptions do not survive a transport reconnect, so they are
	// re-registered on every establish.
	if err := t.SubscribeCommands(ctx, c.handleCommand); err != nil && !errors.Is(err, transport.ErrNotSupported) {
		_ = t.Disconnect()
		return err
	}
	if err := t.SubscribeDesired(ctx, c.handleDesired); err != nil && !errors.Is(err, transport.ErrNotSupported) {
		_ = t.Disconnect()
		return err
	}

	c.startEventPump()

	c.debugLog("connected", "endpoint", endpoint, "device_id", c.deviceID)
	return nil
}

// maybeReprovision discards a rejected cached registration, at most once
// per client, so the next establish resolves a fresh endpoint.
func (c *Client) maybeReprovision(ctx context.Context, cause error) {
	if ctx.Err() != nil {
		return
	}
	cached, ok := c.cfg.Provisioner.(*provisioning.CachedProvisioner)
	if !ok || c.alreadyReprovisioned() {
		return
	}

	c.debugLog("connect rejected, forcing re-provision", "error", cause)
	reg, err := cached.ForceRefresh(ctx)
	if err != nil {
		c.debugLog("forced re-provision failed", "error", err)
		return
	}

	c.mu.Lock()
	c.endpoint = reg.AssignedEndpoint
	c.transport = nil
	c.mu.Unlock()
}

// resolveEndpoint picks the endpoint: a local gateway when preferred and
// present, else the provisioned or configured hub endpoint.
func (c *Client) resolveEndpoint(ctx context.Context) (string, error) {
	if c.cfg.PreferLocalGateway {
		timeout := c.cfg.DiscoveryTimeout
		if timeout <= 0 {
			timeout = DefaultDiscoveryTimeout
		}
		browser := discovery.NewBrowser(discovery.BrowserConfig{BrowseTimeout: timeout})
		if gw, err := browser.FindGateway(ctx); err == nil {
			c.debugLog("using local gateway", "gateway_id", gw.GatewayID, "endpoint", gw.Endpoint)
			return gw.Endpoint, nil
		}
		c.debugLog("no local gateway found")
	}

	c.mu.RLock()
	endpoint := c.endpoint
	c.mu.RUnlock()
	if endpoint != "" || c.cfg.Provisioner == nil {
		return endpoint, nil
	}

	reg, err := c.cfg.Provisioner.Register(ctx)
	if err != nil {
		c.logTraffic(log.Event{
			Direction: log.DirectionNone,
			Category:  log.CategoryError,
			Err:       err.Error(),
		})
		return "", fmt.Errorf("provisioning: %w", err)
	}

	c.logTraffic(log.Event{
		Direction: log.DirectionNone,
		Category:  log.CategoryProvision,
		Detail:    reg.AssignedEndpoint,
	})

	c.mu.Lock()
	c.endpoint = reg.AssignedEndpoint
	c.mu.Unlock()
	return reg.AssignedEndpoint, nil
}

// buildTransport constructs the configured transport kind.
func (c *Client) buildTransport(endpoint string) (transport.Transport, error) {
	kind := c.cfg.TransportKind
	if kind == "" {
		kind = TransportMQTT
	}

	switch kind {
	case TransportMQTT:
		return transport.NewMQTTTransport(transport.MQTTConfig{
			Endpoint:      endpoint,
			DeviceID:      c.deviceID,
			ContentType:   c.cfg.ContentType,
			Logger:        c.logger,
			TrafficLogger: c.cfg.TrafficLogger,
		})
	case TransportHTTP:
		if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
			endpoint = "https://" + endpoint
		}
		return transport.NewHTTPTransport(transport.HTTPConfig{
			Endpoint:      endpoint,
			DeviceID:      c.deviceID,
			ContentType:   c.cfg.ContentType,
			Logger:        c.logger,
			TrafficLogger: c.cfg.TrafficLogger,
		})
	default:
		return nil, fmt.Errorf("unknown transport kind %q", kind)
	}
}

// startEventPump forwards transport lifecycle events to the connection
// manager. Started once per transport; a transport swapped in by a forced
// re-provision replaces the previous pump.
func (c *Client) startEventPump() {
	c.mu.Lock()
	t := c.transport
	if t == nil || t == c.pumped {
		c.mu.Unlock()
		return
	}
	if c.pumpCancel != nil {
		c.pumpCancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.pumpCancel = cancel
	c.pumped = t
	c.mu.Unlock()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		events := t.Events()
		for {
			select {
			case e, ok := <-events:
				if !ok {
					return
				}
				if e.Kind == transport.EventDisconnected && e.Err != nil {
					c.manager.HandleConnectionLost(e.Err)
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

// onManagerStateChange maps connection manager transitions to client events.
func (c *Client) onManagerStateChange(oldState, newState connection.State) {
	switch newState {
	case connection.StateConnected:
		c.emitEvent(Event{Type: EventConnected})
	case connection.StateReconnecting:
		c.emitEvent(Event{Type: EventReconnecting})
	case connection.StateDisconnected:
		if oldState == connection.StateConnected || oldState == connection.StateReconnecting {
			c.emitEvent(Event{Type: EventDisconnected})
		}
	}
}

// Disconnect gracefully closes the connection. Idempotent.
func (c *Client) Disconnect() error {
	err := c.manager.Disconnect()
	if err != nil && !errors.Is(err, connection.ErrNotConnected) {
		return err
	}

	c.mu.RLock()
	t := c.transport
	c.mu.RUnlock()
	if t != nil {
		return t.Disconnect()
	}
	return nil
}

// Close disconnects and releases the client. A closed client cannot be
// reused. Idempotent.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	cancel := c.pumpCancel
	t := c.transport
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	_ = c.manager.Close()
	if t != nil {
		_ = t.Disconnect()
	}
	c.wg.Wait()
	return nil
}

// TelemetryOption customizes an outgoing telemetry message.
type TelemetryOption func(*wire.TelemetryMessage)

// WithMessageID overrides the generated message ID.
func WithMessageID(id string) TelemetryOption {
	return func(m *wire.TelemetryMessage) { m.MessageID = id }
}

// WithCreationTime overrides the message creation time.
func WithCreationTime(t time.Time) TelemetryOption {
	return func(m *wire.TelemetryMessage) { m.CreationTime = t }
}

// SendTelemetry publishes telemetry values for an interface. With a model
// configured, every value name must be declared by the interface.
func (c *Client) SendTelemetry(ctx context.Context, iface string, values map[string]any, opts ...TelemetryOption) error {
	if c.model != nil {
		in, err := c.model.Interface(iface)
		if err != nil {
			return fmt.Errorf("%w: %s", ErrUnknownInterface, iface)
		}
		for name := range values {
			if !in.HasTelemetry(name) {
				return fmt.Errorf("%w: %s.%s", ErrUnknownTelemetry, iface, name)
			}
		}
	}

	msg := &wire.TelemetryMessage{
		MessageID:    uuid.NewString(),
		Interface:    iface,
		Values:       values,
		CreationTime: time.Now(),
	}
	for _, opt := range opts {
		opt(msg)
	}

	t, err := c.connectedTransport()
	if err != nil {
		return err
	}
	return c.mapTransportErr(t.PublishTelemetry(ctx, msg))
}

// SendEvent publishes a single named telemetry value with event semantics.
func (c *Client) SendEvent(ctx context.Context, iface, name string, value any) error {
	if c.model != nil {
		in, err := c.model.Interface(iface)
		if err != nil {
			return fmt.Errorf("%w: %s", ErrUnknownInterface, iface)
		}
		if !in.HasTelemetry(name) {
			return fmt.Errorf("%w: %s.%s", ErrUnknownTelemetry, iface, name)
		}
	}

	msg := &wire.TelemetryMessage{
		MessageID:    uuid.NewString(),
		Interface:    iface,
		Values:       map[string]any{name: value},
		CreationTime: time.Now(),
		Event:        true,
	}

	t, err := c.connectedTransport()
	if err != nil {
		return err
	}
	return c.mapTransportErr(t.PublishTelemetry(ctx, msg))
}

// UpdateReportedProperties publishes a reported-property patch and returns
// the new reported version. With a model configured, every patched name
// must be a declared property of the interface.
func (c *Client) UpdateReportedProperties(ctx context.Context, iface string, patch map[string]any) (int64, error) {
	if c.model != nil {
		in, err := c.model.Interface(iface)
		if err != nil {
			return 0, fmt.Errorf("%w: %s", ErrUnknownInterface, iface)
		}
		for name := range patch {
			if !in.HasProperty(name) {
				return 0, fmt.Errorf("%w: %s.%s", ErrUnknownProperty, iface, name)
			}
		}
	}

	t, err := c.connectedTransport()
	if err != nil {
		return 0, err
	}

	version := c.propertyVersion.Add(1)
	update := &wire.PropertyUpdate{
		Interface: iface,
		Values:    patch,
		Version:   version,
	}
	if err := c.mapTransportErr(t.PublishReported(ctx, update)); err != nil {
		return 0, err
	}
	return version, nil
}

// OnCommand registers a handler for a command. With a model configured,
// the interface and command must be declared.
func (c *Client) OnCommand(iface, name string, handler CommandHandler) error {
	if c.model != nil {
		in, err := c.model.Interface(iface)
		if err != nil {
			return fmt.Errorf("%w: %s", ErrUnknownInterface, iface)
		}
		if !in.HasCommand(name) {
			return fmt.Errorf("%w: %s.%s", ErrUnknownCommand, iface, name)
		}
	}

	c.mu.Lock()
	c.commandHandlers[commandKey(iface, name)] = handler
	c.mu.Unlock()
	return nil
}

// OnDesiredProperties registers a handler for desired property changes.
func (c *Client) OnDesiredProperties(handler DesiredHandler) {
	c.mu.Lock()
	c.desiredHandlers = append(c.desiredHandlers, handler)
	c.mu.Unlock()
}

// OnEvent registers a lifecycle event handler.
func (c *Client) OnEvent(handler EventHandler) {
	c.mu.Lock()
	c.eventHandlers = append(c.eventHandlers, handler)
	c.mu.Unlock()
}

// emitEvent sends an event to all registered handlers.
func (c *Client) emitEvent(event Event) {
	c.mu.RLock()
	handlers := make([]EventHandler, len(c.eventHandlers))
	copy(handlers, c.eventHandlers)
	c.mu.RUnlock()

	for _, handler := range handlers {
		go handler(event)
	}
}

// handleCommand answers an inbound command request. Unhandled commands get
// StatusNotImplemented; panicking handlers are recovered and answered
// StatusError.
func (c *Client) handleCommand(req *wire.CommandRequest) {
	c.mu.RLock()
	handler := c.commandHandlers[commandKey(req.Interface, req.Name)]
	t := c.transport
	c.mu.RUnlock()

	resp := &wire.CommandResponse{RequestID: req.RequestID}
	if handler == nil {
		c.debugLog("no handler for command", "interface", req.Interface, "name", req.Name)
		resp.Status = wire.StatusNotImplemented
	} else {
		resp.Payload, resp.Status = c.invokeCommandHandler(handler, req)
	}

	if t == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), respondTimeout)
	defer cancel()
	if err := t.RespondCommand(ctx, resp); err != nil {
		c.debugLog("command response failed", "request_id", req.RequestID, "error", err)
	}
}

// invokeCommandHandler runs the handler with panic recovery.
func (c *Client) invokeCommandHandler(handler CommandHandler, req *wire.CommandRequest) (payload any, status wire.Status) {
	defer func() {
		if r := recover(); r != nil {
			c.debugLog("command handler panicked",
				"interface", req.Interface, "name", req.Name, "panic", r)
			payload = nil
			status = wire.StatusError
		}
	}()
	return handler(context.Background(), req)
}

// handleDesired fans a desired property change out to registered handlers.
func (c *Client) handleDesired(change *wire.DesiredChange) {
	c.mu.RLock()
	handlers := make([]DesiredHandler, len(c.desiredHandlers))
	copy(handlers, c.desiredHandlers)
	c.mu.RUnlock()

	for _, handler := range handlers {
		handler(change)
	}
}

// connectedTransport returns the transport if the client is connected.
func (c *Client) connectedTransport() (transport.Transport, error) {
	c.mu.RLock()
	t := c.transport
	c.mu.RUnlock()
	if t == nil || !t.IsConnected() {
		return nil, ErrNotConnected
	}
	return t, nil
}

// mapTransportErr translates transport sentinels into client sentinels.
func (c *Client) mapTransportErr(err error) error {
	if errors.Is(err, transport.ErrNotConnected) {
		return ErrNotConnected
	}
	return err
}

func commandKey(iface, name string) string {
	return iface + "/" + name
}

// logTraffic records a traffic event if capture is enabled.
func (c *Client) logTraffic(event log.Event) {
	if c.cfg.TrafficLogger == nil {
		return
	}
	event.Timestamp = time.Now()
	event.DeviceID = c.deviceID
	c.cfg.TrafficLogger.Log(event)
}

// debugLog logs a debug message if logging is enabled.
func (c *Client) debugLog(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Debug(msg, args...)
	}
}
