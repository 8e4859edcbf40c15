package devicekit_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/latticeiot/devicekit-go/pkg/auth"
	"github.com/latticeiot/devicekit-go/pkg/capability"
	"github.com/latticeiot/devicekit-go/pkg/client"
	"github.com/latticeiot/devicekit-go/pkg/connection"
	"github.com/latticeiot/devicekit-go/pkg/persistence"
	"github.com/latticeiot/devicekit-go/pkg/provisioning"
	"github.com/latticeiot/devicekit-go/pkg/transport"
	"github.com/latticeiot/devicekit-go/pkg/wire"
)

const e2eModel = `{
	"name": "envSensor",
	"version": 1,
	"interfaces": [
		{
			"name": "environment",
			"properties": [
				{"name": "reportInterval", "schema": "integer", "writable": true}
			],
			"commands": [
				{"name": "recalibrate"}
			],
			"telemetry": [
				{"name": "temperature", "schema": "double"}
			]
		}
	]
}`

var e2eKey = base64.StdEncoding.EncodeToString([]byte("integration-secret"))

// hubRecorder counts device-to-cloud requests by path.
type hubRecorder struct {
	mu       sync.Mutex
	requests map[string]int
	lastAuth string
}

func (h *hubRecorder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	h.requests[r.URL.Path]++
	h.lastAuth = r.Header.Get("Authorization")
	h.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (h *hubRecorder) count(path string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.requests[path]
}

// TestE2E_ProvisionConnectAndSend provisions a device against a fake
// provisioning service, connects over HTTP to the assigned hub, sends
// telemetry and a reported property, and checks the registration is cached
// for the next start.
func TestE2E_ProvisionConnectAndSend(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	hub := &hubRecorder{requests: make(map[string]int)}
	hubSrv := httptest.NewServer(hub)
	defer hubSrv.Close()

	var registerCalls int
	var mu sync.Mutex
	provSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		switch r.Method {
		case http.MethodPut:
			registerCalls++
			w.Header().Set("Retry-After", "0")
			_ = json.NewEncoder(w).Encode(map[string]any{
				"operationId": "op-e2e",
				"status":      "assigning",
			})
		case http.MethodGet:
			_ = json.NewEncoder(w).Encode(map[string]any{
				"operationId":      "op-e2e",
				"status":           "assigned",
				"deviceId":         "e2e-device",
				"assignedEndpoint": hubSrv.URL,
			})
		}
	}))
	defer provSrv.Close()

	authClient, err := auth.NewSymmetricKeyClient("e2e-device", e2eKey)
	if err != nil {
		t.Fatalf("auth client: %v", err)
	}

	model, err := capability.NewParser().ParseBytes([]byte(e2eModel))
	if err != nil {
		t.Fatalf("parse model: %v", err)
	}

	statePath := filepath.Join(t.TempDir(), "registration.json")
	store := persistence.NewRegistrationStore(statePath)

	newClient := func() *client.Client {
		rest, err := provisioning.NewRESTProvisioner(provisioning.RESTConfig{
			Endpoint: provSrv.URL,
			IDScope:  "scope-e2e",
			Auth:     authClient,
			PollBackoff: connection.BackoffConfig{
				InitialDelay: time.Millisecond,
				MaxDelay:     5 * time.Millisecond,
				Multiplier:   2,
			},
		})
		if err != nil {
			t.Fatalf("provisioner: %v", err)
		}

		c, err := client.New(client.Config{
			Model:         model,
			Auth:          authClient,
			Provisioner:   provisioning.NewCachedProvisioner(rest, store, nil),
			TransportKind: client.TransportHTTP,
			Reconnect:     connection.ManagerConfig{MaxAttempts: 1},
		})
		if err != nil {
			t.Fatalf("client: %v", err)
		}
		return c
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	c := newClient()
	if err := c.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if got := c.State(); got != connection.StateConnected {
		t.Fatalf("state after connect = %s, want CONNECTED", got)
	}

	if err := c.SendTelemetry(ctx, "environment", map[string]any{"temperature": 21.5}); err != nil {
		t.Fatalf("send telemetry: %v", err)
	}
	if _, err := c.UpdateReportedProperties(ctx, "environment", map[string]any{"reportInterval": 60}); err != nil {
		t.Fatalf("update reported: %v", err)
	}

	if got := hub.count("/devices/e2e-device/telemetry"); got != 1 {
		t.Errorf("hub telemetry requests = %d, want 1", got)
	}
	if got := hub.count("/devices/e2e-device/properties/reported"); got != 1 {
		t.Errorf("hub reported requests = %d, want 1", got)
	}
	if hub.lastAuth == "" {
		t.Error("hub requests missing Authorization header")
	}

	if err := c.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	// Registration must be cached so the next start skips the service.
	state, err := store.Load()
	if err != nil || state == nil {
		t.Fatalf("registration cache: state=%v err=%v", state, err)
	}

	c2 := newClient()
	if err := c2.Connect(ctx); err != nil {
		t.Fatalf("second connect: %v", err)
	}
	defer c2.Close()

	mu.Lock()
	calls := registerCalls
	mu.Unlock()
	if calls != 1 {
		t.Errorf("register calls = %d, want 1 (cache should be reused)", calls)
	}
}

// loopbackTransport is an in-process transport that reflects command
// responses back to the test.
type loopbackTransport struct {
	mu        sync.Mutex
	connected bool
	handler   transport.CommandHandler
	responses chan *wire.CommandResponse
	events    chan transport.Event
}

func newLoopbackTransport() *loopbackTransport {
	return &loopbackTransport{
		responses: make(chan *wire.CommandResponse, 4),
		events:    make(chan transport.Event, 4),
	}
}

func (l *loopbackTransport) Connect(ctx context.Context, creds *auth.Credentials) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.connected = true
	return nil
}

func (l *loopbackTransport) Disconnect() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.connected = false
	return nil
}

func (l *loopbackTransport) IsConnected() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.connected
}

func (l *loopbackTransport) PublishTelemetry(ctx context.Context, msg *wire.TelemetryMessage) error {
	return nil
}

func (l *loopbackTransport) PublishReported(ctx context.Context, update *wire.PropertyUpdate) error {
	return nil
}

func (l *loopbackTransport) SubscribeCommands(ctx context.Context, handler transport.CommandHandler) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.handler = handler
	return nil
}

func (l *loopbackTransport) RespondCommand(ctx context.Context, resp *wire.CommandResponse) error {
	l.responses <- resp
	return nil
}

func (l *loopbackTransport) SubscribeDesired(ctx context.Context, handler transport.DesiredHandler) error {
	return nil
}

func (l *loopbackTransport) Events() <-chan transport.Event {
	return l.events
}

func (l *loopbackTransport) deliver(req *wire.CommandRequest) {
	l.mu.Lock()
	handler := l.handler
	l.mu.Unlock()
	handler(req)
}

var _ transport.Transport = (*loopbackTransport)(nil)

// TestE2E_CommandRoundTrip drives an inbound command through the client and
// checks the handler's answer makes it back out as a response.
func TestE2E_CommandRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	authClient, err := auth.NewSymmetricKeyClient("e2e-device", e2eKey)
	if err != nil {
		t.Fatalf("auth client: %v", err)
	}

	model, err := capability.NewParser().ParseBytes([]byte(e2eModel))
	if err != nil {
		t.Fatalf("parse model: %v", err)
	}

	lt := newLoopbackTransport()
	c, err := client.New(client.Config{
		Model:     model,
		Auth:      authClient,
		Transport: lt,
		Reconnect: connection.ManagerConfig{MaxAttempts: 1},
	})
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	defer c.Close()

	err = c.OnCommand("environment", "recalibrate", func(ctx context.Context, req *wire.CommandRequest) (any, wire.Status) {
		return map[string]any{"ok": true}, wire.StatusOK
	})
	if err != nil {
		t.Fatalf("register handler: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}

	lt.deliver(&wire.CommandRequest{
		RequestID: "req-1",
		Interface: "environment",
		Name:      "recalibrate",
	})

	select {
	case resp := <-lt.responses:
		if resp.RequestID != "req-1" {
			t.Errorf("response request ID = %q, want req-1", resp.RequestID)
		}
		if resp.Status != wire.StatusOK {
			t.Errorf("response status = %d, want %d", resp.Status, wire.StatusOK)
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for command response")
	}

	// A command nobody registered is answered NOT IMPLEMENTED.
	lt.deliver(&wire.CommandRequest{
		RequestID: "req-2",
		Interface: "environment",
		Name:      "selfDestruct",
	})

	select {
	case resp := <-lt.responses:
		if resp.Status != wire.StatusNotImplemented {
			t.Errorf("response status = %d, want %d", resp.Status, wire.StatusNotImplemented)
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for unhandled-command response")
	}
}
