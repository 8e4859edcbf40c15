package provisioning

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/latticeiot/devicekit-go/pkg/auth"
	"github.com/latticeiot/devicekit-go/pkg/connection"
	"github.com/latticeiot/devicekit-go/pkg/persistence"
)

const testDeviceKey = "dGVzdC1kZXZpY2Uta2V5LWZvci1wcm92aXNpb25pbmc="

func newTestAuth(t *testing.T) auth.Client {
	t.Helper()
	c, err := auth.NewSymmetricKeyClient("device-1", testDeviceKey)
	require.NoError(t, err)
	return c
}

// fastPoll keeps the assigning loop quick in tests.
var fastPoll = connection.BackoffConfig{
	InitialDelay: time.Millisecond,
	MaxDelay:     5 * time.Millisecond,
	Multiplier:   2,
	Jitter:       0,
}

func TestRESTProvisionerAssigned(t *testing.T) {
	var polls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPut:
			assert.Equal(t, "/scopes/scope-1/registrations/device-1/register", r.URL.Path)
			assert.NotEmpty(t, r.Header.Get("Authorization"))
			w.WriteHeader(http.StatusAccepted)
			json.NewEncoder(w).Encode(map[string]string{
				"operationId": "op-1",
				"status":      StatusAssigning,
			})
		case r.Method == http.MethodGet:
			assert.Equal(t, "/scopes/scope-1/registrations/device-1/operations/op-1", r.URL.Path)
			resp := map[string]string{"operationId": "op-1", "status": StatusAssigning}
			if polls.Add(1) >= 2 {
				resp = map[string]string{
					"operationId":      "op-1",
					"status":           StatusAssigned,
					"deviceId":         "device-1",
					"assignedEndpoint": "hub-west.example.com",
				}
			}
			json.NewEncoder(w).Encode(resp)
		default:
			t.Errorf("unexpected method %s", r.Method)
		}
	}))
	defer srv.Close()

	p, err := NewRESTProvisioner(RESTConfig{
		Endpoint:    srv.URL,
		IDScope:     "scope-1",
		Auth:        newTestAuth(t),
		PollBackoff: fastPoll,
	})
	require.NoError(t, err)

	reg, err := p.Register(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "device-1", reg.DeviceID)
	assert.Equal(t, "hub-west.example.com", reg.AssignedEndpoint)
	assert.Equal(t, "scope-1", reg.IDScope)
	assert.Equal(t, StatusAssigned, reg.Status)
	assert.False(t, reg.AssignedAt.IsZero())
	assert.GreaterOrEqual(t, polls.Load(), int32(2))
}

func TestRESTProvisionerImmediateAssignment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method)
		json.NewEncoder(w).Encode(map[string]string{
			"operationId":      "op-1",
			"status":           StatusAssigned,
			"deviceId":         "device-1",
			"assignedEndpoint": "hub.example.com",
		})
	}))
	defer srv.Close()

	p, err := NewRESTProvisioner(RESTConfig{
		Endpoint: srv.URL, IDScope: "scope-1", Auth: newTestAuth(t),
	})
	require.NoError(t, err)

	reg, err := p.Register(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "hub.example.com", reg.AssignedEndpoint)
}

func TestRESTProvisionerHonorsRetryAfter(t *testing.T) {
	var firstPollAt, registeredAt time.Time

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut {
			registeredAt = time.Now()
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusAccepted)
			json.NewEncoder(w).Encode(map[string]string{
				"operationId": "op-1", "status": StatusAssigning,
			})
			return
		}
		firstPollAt = time.Now()
		json.NewEncoder(w).Encode(map[string]string{
			"operationId": "op-1", "status": StatusAssigned,
			"deviceId": "device-1", "assignedEndpoint": "hub.example.com",
		})
	}))
	defer srv.Close()

	p, err := NewRESTProvisioner(RESTConfig{
		Endpoint: srv.URL, IDScope: "scope-1", Auth: newTestAuth(t),
		PollBackoff: fastPoll,
	})
	require.NoError(t, err)

	_, err = p.Register(context.Background())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, firstPollAt.Sub(registeredAt), time.Second)
}

func TestRESTProvisionerTerminalFailures(t *testing.T) {
	tests := []struct {
		status  string
		wantErr error
	}{
		{StatusFailed, ErrRegistrationFailed},
		{StatusDisabled, ErrRegistrationDisabled},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(map[string]string{
					"operationId":  "op-1",
					"status":       tt.status,
					"errorMessage": "device quota exceeded",
				})
			}))
			defer srv.Close()

			p, err := NewRESTProvisioner(RESTConfig{
				Endpoint: srv.URL, IDScope: "scope-1", Auth: newTestAuth(t),
			})
			require.NoError(t, err)

			_, err = p.Register(context.Background())
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestRESTProvisionerHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer srv.Close()

	p, err := NewRESTProvisioner(RESTConfig{
		Endpoint: srv.URL, IDScope: "scope-1", Auth: newTestAuth(t),
	})
	require.NoError(t, err)

	_, err = p.Register(context.Background())
	require.ErrorIs(t, err, ErrRegistrationFailed)
	assert.Contains(t, err.Error(), "401")
}

func TestRESTProvisionerContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(map[string]string{
			"operationId": "op-1", "status": StatusAssigning,
		})
	}))
	defer srv.Close()

	p, err := NewRESTProvisioner(RESTConfig{
		Endpoint: srv.URL, IDScope: "scope-1", Auth: newTestAuth(t),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = p.Register(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRESTConfigValidate(t *testing.T) {
	tests := []struct {
		name string
		cfg  RESTConfig
	}{
		{"missing endpoint", RESTConfig{IDScope: "s", Auth: &stubProvisionerAuth{}}},
		{"missing scope", RESTConfig{Endpoint: "https://p", Auth: &stubProvisionerAuth{}}},
		{"missing auth", RESTConfig{Endpoint: "https://p", IDScope: "s"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRESTProvisioner(tt.cfg)
			require.Error(t, err)
		})
	}
}

// stubProvisionerAuth satisfies auth.Client for validation tests.
type stubProvisionerAuth struct{}

func (s *stubProvisionerAuth) DeviceID() string { return "stub" }
func (s *stubProvisionerAuth) TokenCredentials(ctx context.Context, resource string) (*auth.Credentials, error) {
	return &auth.Credentials{}, nil
}

// countingProvisioner records Register calls for cache tests.
type countingProvisioner struct {
	calls int
	reg   *Registration
	err   error
}

func (c *countingProvisioner) Register(ctx context.Context) (*Registration, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return c.reg, nil
}

func TestCachedProvisionerPersistsAndReuses(t *testing.T) {
	store := persistence.NewRegistrationStore(filepath.Join(t.TempDir(), "reg.json"))
	inner := &countingProvisioner{reg: &Registration{
		DeviceID:         "device-1",
		AssignedEndpoint: "hub.example.com",
		IDScope:          "scope-1",
		OperationID:      "op-1",
		Status:           StatusAssigned,
		AssignedAt:       time.Now(),
	}}

	p := NewCachedProvisioner(inner, store, nil)

	reg, err := p.Register(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, inner.calls)
	assert.Equal(t, "hub.example.com", reg.AssignedEndpoint)

	// Second registration is served from the cache.
	reg, err = p.Register(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, inner.calls)
	assert.Equal(t, "hub.example.com", reg.AssignedEndpoint)
	assert.Equal(t, StatusAssigned, reg.Status)
}

func TestCachedProvisionerForceRefresh(t *testing.T) {
	store := persistence.NewRegistrationStore(filepath.Join(t.TempDir(), "reg.json"))
	inner := &countingProvisioner{reg: &Registration{
		DeviceID:         "device-1",
		AssignedEndpoint: "hub-a.example.com",
		Status:           StatusAssigned,
	}}

	p := NewCachedProvisioner(inner, store, nil)

	_, err := p.Register(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, inner.calls)

	inner.reg = &Registration{
		DeviceID:         "device-1",
		AssignedEndpoint: "hub-b.example.com",
		Status:           StatusAssigned,
	}

	reg, err := p.ForceRefresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls)
	assert.Equal(t, "hub-b.example.com", reg.AssignedEndpoint)

	// The refreshed assignment replaces the cached one.
	reg, err = p.Register(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls)
	assert.Equal(t, "hub-b.example.com", reg.AssignedEndpoint)
}

func TestCachedProvisionerPropagatesError(t *testing.T) {
	store := persistence.NewRegistrationStore(filepath.Join(t.TempDir(), "reg.json"))
	wantErr := fmt.Errorf("%w: quota", ErrRegistrationFailed)
	inner := &countingProvisioner{err: wantErr}

	p := NewCachedProvisioner(inner, store, nil)

	_, err := p.Register(context.Background())
	require.ErrorIs(t, err, ErrRegistrationFailed)
	assert.True(t, errors.Is(err, wantErr))

	state, loadErr := store.Load()
	require.NoError(t, loadErr)
	assert.Nil(t, state)
}
