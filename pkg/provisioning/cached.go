package provisioning

import (
	"context"
	"log/slog"

	"github.com/latticeiot/devicekit-go/pkg/persistence"
)

// CachedProvisioner wraps a Provisioner with a persisted registration so a
// device does not re-register on every start.
type CachedProvisioner struct {
	inner  Provisioner
	store  *persistence.RegistrationStore
	logger *slog.Logger
}

// NewCachedProvisioner creates a provisioner that consults store before
// delegating to inner.
func NewCachedProvisioner(inner Provisioner, store *persistence.RegistrationStore, logger *slog.Logger) *CachedProvisioner {
	return &CachedProvisioner{inner: inner, store: store, logger: logger}
}

// Register returns the cached registration when one exists, otherwise
// registers through the wrapped provisioner and persists the result.
func (p *CachedProvisioner) Register(ctx context.Context) (*Registration, error) {
	if state, err := p.store.Load(); err != nil {
		p.debugLog("reading cached registration failed", "error", err)
	} else if state != nil && state.AssignedEndpoint != "" {
		p.debugLog("using cached registration",
			"device_id", state.DeviceID, "endpoint", state.AssignedEndpoint)
		return &Registration{
			DeviceID:         state.DeviceID,
			AssignedEndpoint: state.AssignedEndpoint,
			IDScope:          state.IDScope,
			OperationID:      state.OperationID,
			Status:           StatusAssigned,
			AssignedAt:       state.AssignedAt,
		}, nil
	}

	return p.register(ctx)
}

// ForceRefresh discards any cached registration and registers again. Used
// when the hub rejects the cached assignment.
func (p *CachedProvisioner) ForceRefresh(ctx context.Context) (*Registration, error) {
	if err := p.store.Clear(); err != nil {
		p.debugLog("clearing cached registration failed", "error", err)
	}
	return p.register(ctx)
}

func (p *CachedProvisioner) register(ctx context.Context) (*Registration, error) {
	reg, err := p.inner.Register(ctx)
	if err != nil {
		return nil, err
	}

	state := &persistence.RegistrationState{
		DeviceID:         reg.DeviceID,
		AssignedEndpoint: reg.AssignedEndpoint,
		IDScope:          reg.IDScope,
		OperationID:      reg.OperationID,
		AssignedAt:       reg.AssignedAt,
	}
	if err := p.store.Save(state); err != nil {
		// The registration itself succeeded, only the cache write failed.
		p.debugLog("persisting registration failed", "error", err)
	}

	return reg, nil
}

func (p *CachedProvisioner) debugLog(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Debug(msg, args...)
	}
}

var _ Provisioner = (*CachedProvisioner)(nil)
