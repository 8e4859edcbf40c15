package provisioning

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	json "github.com/goccy/go-json"

	"github.com/latticeiot/devicekit-go/pkg/auth"
	"github.com/latticeiot/devicekit-go/pkg/connection"
	"github.com/latticeiot/devicekit-go/pkg/version"
)

// RESTConfig configures a RESTProvisioner.
type RESTConfig struct {
	// Endpoint is the provisioning service base URL, e.g.
	// "https://provision.example.com".
	Endpoint string

	// IDScope is the provisioning scope issued for the device fleet.
	IDScope string

	// Auth produces the credentials presented with the registration.
	Auth auth.Client

	// HTTPClient overrides the HTTP client. Nil uses a client with a
	// 30 second timeout.
	HTTPClient *http.Client

	// PollBackoff customizes the status polling delays used when the
	// service sends no Retry-After header.
	PollBackoff connection.BackoffConfig

	// Logger receives debug output. Nil disables logging.
	Logger *slog.Logger
}

// Validate checks the configuration.
func (c *RESTConfig) Validate() error {
	if c.Endpoint == "" {
		return errors.New("missing provisioning endpoint")
	}
	if c.IDScope == "" {
		return errors.New("missing ID scope")
	}
	if c.Auth == nil {
		return errors.New("missing auth client")
	}
	return nil
}

// RESTProvisioner registers a device over the provisioning service's REST
// API and polls the registration operation until it is assigned.
type RESTProvisioner struct {
	cfg    RESTConfig
	client *http.Client
}

// NewRESTProvisioner creates a REST provisioning client.
func NewRESTProvisioner(cfg RESTConfig) (*RESTProvisioner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &RESTProvisioner{cfg: cfg, client: client}, nil
}

// registerRequest is the registration request body.
type registerRequest struct {
	RegistrationID string `json:"registrationId"`
}

// operationResponse is the service's registration/operation response body.
type operationResponse struct {
	OperationID      string `json:"operationId"`
	Status           string `json:"status"`
	DeviceID         string `json:"deviceId,omitempty"`
	AssignedEndpoint string `json:"assignedEndpoint,omitempty"`
	ErrorMessage     string `json:"errorMessage,omitempty"`
}

// Register registers the device and blocks until the registration reaches
// a terminal state or the context is cancelled.
func (p *RESTProvisioner) Register(ctx context.Context) (*Registration, error) {
	deviceID := p.cfg.Auth.DeviceID()

	op, retryAfter, err := p.submitRegistration(ctx, deviceID)
	if err != nil {
		return nil, err
	}

	backoff := connection.NewBackoffWithConfig(p.cfg.PollBackoff)

	for {
		switch op.Status {
		case StatusAssigned:
			return &Registration{
				DeviceID:         op.DeviceID,
				AssignedEndpoint: op.AssignedEndpoint,
				IDScope:          p.cfg.IDScope,
				OperationID:      op.OperationID,
				Status:           op.Status,
				AssignedAt:       time.Now(),
			}, nil
		case StatusFailed:
			return nil, fmt.Errorf("%w: %s", ErrRegistrationFailed, op.ErrorMessage)
		case StatusDisabled:
			return nil, ErrRegistrationDisabled
		}

		// Still assigning: wait for the service-suggested delay, falling
		// back to backoff.
		delay := retryAfter
		if delay <= 0 {
			delay = backoff.Next()
		}
		p.debugLog("registration pending", "operation_id", op.OperationID, "delay", delay)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}

		op, retryAfter, err = p.pollOperation(ctx, deviceID, op.OperationID)
		if err != nil {
			return nil, err
		}
	}
}

// submitRegistration sends the initial registration request.
func (p *RESTProvisioner) submitRegistration(ctx context.Context, deviceID string) (*operationResponse, time.Duration, error) {
	body, err := json.Marshal(registerRequest{RegistrationID: deviceID})
	if err != nil {
		return nil, 0, err
	}

	url := fmt.Sprintf("%s/scopes/%s/registrations/%s/register",
		p.cfg.Endpoint, p.cfg.IDScope, deviceID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if err := p.authorize(ctx, req); err != nil {
		return nil, 0, err
	}

	return p.do(req)
}

// pollOperation fetches the state of a pending registration operation.
func (p *RESTProvisioner) pollOperation(ctx context.Context, deviceID, operationID string) (*operationResponse, time.Duration, error) {
	url := fmt.Sprintf("%s/scopes/%s/registrations/%s/operations/%s",
		p.cfg.Endpoint, p.cfg.IDScope, deviceID, operationID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, err
	}
	if err := p.authorize(ctx, req); err != nil {
		return nil, 0, err
	}

	return p.do(req)
}

// authorize attaches credentials from the auth client.
func (p *RESTProvisioner) authorize(ctx context.Context, req *http.Request) error {
	creds, err := p.cfg.Auth.TokenCredentials(ctx, p.cfg.IDScope)
	if err != nil {
		return fmt.Errorf("provisioning credentials: %w", err)
	}
	if creds.Password != "" {
		req.Header.Set("Authorization", creds.Password)
	}
	req.Header.Set("User-Agent", version.UserAgent())
	return nil
}

// do executes the request and decodes the operation response.
func (p *RESTProvisioner) do(req *http.Request) (*operationResponse, time.Duration, error) {
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, 0, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, 0, fmt.Errorf("%w: provisioning service returned %d: %s",
			ErrRegistrationFailed, resp.StatusCode, bytes.TrimSpace(data))
	}

	var op operationResponse
	if err := json.Unmarshal(data, &op); err != nil {
		return nil, 0, fmt.Errorf("decode provisioning response: %w", err)
	}

	var retryAfter time.Duration
	if ra := resp.Header.Get("Retry-After"); ra != "" {
		if secs, err := strconv.Atoi(ra); err == nil && secs > 0 {
			retryAfter = time.Duration(secs) * time.Second
		}
	}

	return &op, retryAfter, nil
}

// debugLog logs a debug message if logging is enabled.
func (p *RESTProvisioner) debugLog(msg string, args ...any) {
	if p.cfg.Logger != nil {
		p.cfg.Logger.Debug(msg, args...)
	}
}

// Compile-time interface satisfaction check.
var _ Provisioner = (*RESTProvisioner)(nil)
