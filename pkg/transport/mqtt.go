package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/latticeiot/devicekit-go/pkg/auth"
	"github.com/latticeiot/devicekit-go/pkg/log"
	"github.com/latticeiot/devicekit-go/pkg/wire"
)

// MQTT transport defaults.
const (
	DefaultMQTTPort       = 8883
	DefaultKeepAlive      = 30 * time.Second
	DefaultConnectTimeout = 30 * time.Second
	defaultEventBuffer    = 16
	mqttQoS               = 1
)

// MQTTConfig configures an MQTTTransport.
type MQTTConfig struct {
	// Endpoint is the hub hostname. A port may be appended; otherwise
	// DefaultMQTTPort is used.
	Endpoint string

	// DeviceID is the device identity, used as the MQTT client ID and in
	// the topic scheme.
	DeviceID string

	// ContentType selects the payload codec. Defaults to
	// wire.ContentTypeJSON.
	ContentType string

	// KeepAlive is the MQTT keep-alive interval.
	KeepAlive time.Duration

	// ConnectTimeout bounds the initial connect handshake.
	ConnectTimeout time.Duration

	// Logger receives debug output. Nil disables logging.
	Logger *slog.Logger

	// TrafficLogger captures wire traffic events. Nil disables capture.
	TrafficLogger log.Logger
}

// Validate checks the configuration.
func (c *MQTTConfig) Validate() error {
	if c.Endpoint == "" {
		return errors.New("missing endpoint")
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

// MQTTTransport carries device traffic over MQTT with QoS 1 and a
// persistent (non-clean) session.
type MQTTTransport struct {
	cfg   MQTTConfig
	codec wire.Codec

	mu        sync.RWMutex
	client    mqtt.Client
	connected bool

	// handlerMu serializes inbound handler invocations.
	handlerMu      sync.Mutex
	commandHandler CommandHandler
	desiredHandler DesiredHandler

	connectionID string
	events       chan Event
}

// NewMQTTTransport creates an MQTT transport.
func NewMQTTTransport(cfg MQTTConfig) (*MQTTTransport, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.ContentType == "" {
		cfg.ContentType = wire.ContentTypeJSON
	}
	if cfg.KeepAlive <= 0 {
		cfg.KeepAlive = DefaultKeepAlive
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}

	codec, err := wire.CodecFor(cfg.ContentType)
	if err != nil {
		return nil, err
	}

	return &MQTTTransport{
		cfg:    cfg,
		codec:  codec,
		events: make(chan Event, defaultEventBuffer),
	}, nil
}

// brokerURL builds the broker URL from the endpoint.
func (t *MQTTTransport) brokerURL() string {
	endpoint := t.cfg.Endpoint
	if _, _, err := net.SplitHostPort(endpoint); err == nil {
		return "ssl://" + endpoint
	}
	return fmt.Sprintf("ssl://%s:%d", endpoint, DefaultMQTTPort)
}

// Connect establishes the MQTT connection.
func (t *MQTTTransport) Connect(ctx context.Context, creds *auth.Credentials) error {
	t.mu.Lock()
	if t.connected {
		t.mu.Unlock()
		return ErrAlreadyConnected
	}

	tlsConfig := creds.TLSConfig
	if tlsConfig == nil {
		tlsConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	opts := mqtt.NewClientOptions().
		AddBroker(t.brokerURL()).
		SetClientID(t.cfg.DeviceID).
		SetUsername(creds.Username).
		SetPassword(creds.Password).
		SetTLSConfig(tlsConfig).
		SetCleanSession(false).
		SetKeepAlive(t.cfg.KeepAlive).
		SetConnectTimeout(t.cfg.ConnectTimeout).
		SetAutoReconnect(false).
		SetConnectionLostHandler(t.onConnectionLost)

	client := mqtt.NewClient(opts)
	t.mu.Unlock()

	token := client.Connect()
	select {
	case <-token.Done():
	case <-ctx.Done():
		client.Disconnect(0)
		return ctx.Err()
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}

	t.mu.Lock()
	t.client = client
	t.connected = true
	t.connectionID = uuid.NewString()
	connectionID := t.connectionID
	t.mu.Unlock()

	t.debugLog("connected", "broker", t.brokerURL(), "connection_id", connectionID)
	t.logTraffic(log.Event{
		Direction: log.DirectionNone,
		Category:  log.CategoryConnect,
		Detail:    t.cfg.Endpoint,
	})
	t.emitEvent(Event{Kind: EventConnected, At: time.Now()})
	return nil
}

// onConnectionLost is invoked by paho when the broker connection drops.
func (t *MQTTTransport) onConnectionLost(_ mqtt.Client, err error) {
	t.mu.Lock()
	t.connected = false
	t.mu.Unlock()

	t.debugLog("connection lost", "error", err)
	event := log.Event{
		Direction: log.DirectionNone,
		Category:  log.CategoryDisconnect,
	}
	if err != nil {
		event.Err = err.Error()
	}
	t.logTraffic(event)
	t.emitEvent(Event{Kind: EventDisconnected, At: time.Now(), Err: err})
}

// Disconnect closes the connection. Idempotent.
func (t *MQTTTransport) Disconnect() error {
	t.mu.Lock()
	client := t.client
	wasConnected := t.connected
	t.client = nil
	t.connected = false
	t.mu.Unlock()

	if client == nil || !wasConnected {
		return nil
	}

	client.Disconnect(250)
	t.logTraffic(log.Event{
		Direction: log.DirectionNone,
		Category:  log.CategoryDisconnect,
	})
	t.emitEvent(Event{Kind: EventDisconnected, At: time.Now()})
	return nil
}

// IsConnected reports whether the transport is connected.
func (t *MQTTTransport) IsConnected() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.connected
}

// PublishTelemetry sends a telemetry message.
func (t *MQTTTransport) PublishTelemetry(ctx context.Context, msg *wire.TelemetryMessage) error {
	msg.ContentType = t.cfg.ContentType
	data, err := wire.EncodeTelemetry(t.codec, msg)
	if err != nil {
		return err
	}

	if err := t.publish(ctx, telemetryTopic(t.cfg.DeviceID), data); err != nil {
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

// PublishReported sends a reported property update.
func (t *MQTTTransport) PublishReported(ctx context.Context, update *wire.PropertyUpdate) error {
	data, err := wire.EncodePropertyUpdate(t.codec, update)
	if err != nil {
		return err
	}

	if err := t.publish(ctx, reportedTopic(t.cfg.DeviceID), data); err != nil {
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

// SubscribeCommands registers the handler for inbound command requests.
func (t *MQTTTransport) SubscribeCommands(ctx context.Context, handler CommandHandler) error {
	t.mu.Lock()
	t.commandHandler = handler
	client := t.client
	connected := t.connected
	t.mu.Unlock()

	if !connected {
		return ErrNotConnected
	}

	return t.subscribe(ctx, client, commandRequestFilter(t.cfg.DeviceID), t.onCommandMessage)
}

// onCommandMessage decodes and dispatches an inbound command request.
// The request ID may live only in the topic, so the payload is decoded
// before envelope validation.
func (t *MQTTTransport) onCommandMessage(_ mqtt.Client, m mqtt.Message) {
	var req wire.CommandRequest
	err := t.codec.Unmarshal(m.Payload(), &req)
	if err == nil {
		if req.RequestID == "" {
			req.RequestID, _ = requestIDFromTopic(m.Topic())
		}
		err = req.Validate()
	}
	if err != nil {
		t.debugLog("dropping undecodable command request", "topic", m.Topic(), "error", err)
		t.logTraffic(log.Event{
			Direction: log.DirectionIn,
			Category:  log.CategoryError,
			Err:       err.Error(),
		})
		return
	}

	t.logTraffic(log.Event{
		Direction:     log.DirectionIn,
		Category:      log.CategoryCommand,
		Interface:     req.Interface,
		Name:          req.Name,
		CorrelationID: req.RequestID,
		Size:          len(m.Payload()),
	})

	t.mu.RLock()
	handler := t.commandHandler
	t.mu.RUnlock()
	if handler != nil {
		t.handlerMu.Lock()
		handler(&req)
		t.handlerMu.Unlock()
	}
}

// RespondCommand answers a previously received command request.
func (t *MQTTTransport) RespondCommand(ctx context.Context, resp *wire.CommandResponse) error {
	data, err := wire.EncodeCommandResponse(t.codec, resp)
	if err != nil {
		return err
	}

	topic := commandResponseTopic(t.cfg.DeviceID, resp.RequestID)
	if err := t.publish(ctx, topic, data); err != nil {
		return err
	}

	t.logTraffic(log.Event{
		Direction:     log.DirectionOut,
		Category:      log.CategoryCommand,
		CorrelationID: resp.RequestID,
		Detail:        resp.Status.String(),
		Size:          len(data),
	})
	return nil
}

// SubscribeDesired registers the handler for desired property changes.
func (t *MQTTTransport) SubscribeDesired(ctx context.Context, handler DesiredHandler) error {
	t.mu.Lock()
	t.desiredHandler = handler
	client := t.client
	connected := t.connected
	t.mu.Unlock()

	if !connected {
		return ErrNotConnected
	}

	return t.subscribe(ctx, client, desiredTopic(t.cfg.DeviceID), t.onDesiredMessage)
}

// onDesiredMessage decodes and dispatches a desired property change.
func (t *MQTTTransport) onDesiredMessage(_ mqtt.Client, m mqtt.Message) {
	change, err := wire.DecodeDesiredChange(t.codec, m.Payload())
	if err != nil {
		t.debugLog("dropping undecodable desired change", "topic", m.Topic(), "error", err)
		return
	}

	t.logTraffic(log.Event{
		Direction: log.DirectionIn,
		Category:  log.CategoryProperty,
		Interface: change.Interface,
		Size:      len(m.Payload()),
	})

	t.mu.RLock()
	handler := t.desiredHandler
	t.mu.RUnlock()
	if handler != nil {
		t.handlerMu.Lock()
		handler(change)
		t.handlerMu.Unlock()
	}
}

// Events returns the lifecycle event channel.
func (t *MQTTTransport) Events() <-chan Event {
	return t.events
}

// publish sends a payload with QoS 1 and waits for the broker ack.
func (t *MQTTTransport) publish(ctx context.Context, topic string, data []byte) error {
	t.mu.RLock()
	client := t.client
	connected := t.connected
	t.mu.RUnlock()

	if !connected || client == nil {
		return ErrNotConnected
	}

	token := client.Publish(topic, mqttQoS, false, data)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt publish %s: %w", topic, err)
	}
	return nil
}

// subscribe registers a topic subscription with QoS 1.
func (t *MQTTTransport) subscribe(ctx context.Context, client mqtt.Client, filter string, handler mqtt.MessageHandler) error {
	token := client.Subscribe(filter, mqttQoS, handler)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt subscribe %s: %w", filter, err)
	}
	return nil
}

// emitEvent delivers a lifecycle event without blocking.
func (t *MQTTTransport) emitEvent(event Event) {
	select {
	case t.events <- event:
	default:
		t.debugLog("dropping lifecycle event", "kind", event.Kind)
	}
}

// logTraffic records a traffic event if capture is enabled.
func (t *MQTTTransport) logTraffic(event log.Event) {
	if t.cfg.TrafficLogger == nil {
		return
	}
	event.Timestamp = time.Now()
	event.Transport = "mqtt"
	event.DeviceID = t.cfg.DeviceID
	t.mu.RLock()
	event.ConnectionID = t.connectionID
	t.mu.RUnlock()
	t.cfg.TrafficLogger.Log(event)
}

// debugLog logs a debug message if logging is enabled.
func (t *MQTTTransport) debugLog(msg string, args ...any) {
	if t.cfg.Logger != nil {
		t.cfg.Logger.Debug(msg, args...)
	}
}
