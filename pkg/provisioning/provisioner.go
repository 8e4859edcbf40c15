package provisioning

import (
	"context"
	"errors"
	"time"
)

// Registration statuses reported by the provisioning service.
const (
	StatusAssigning = "assigning"
	StatusAssigned  = "assigned"
	StatusFailed    = "failed"
	StatusDisabled  = "disabled"
)

// Provisioning errors.
var (
	ErrRegistrationFailed   = errors.New("registration failed")
	ErrRegistrationDisabled = errors.New("registration disabled")
	ErrNotAssigned          = errors.New("registration not assigned")
)

// Registration is the result of a successful device registration.
type Registration struct {
	// DeviceID is the registered device identity.
	DeviceID string

	// AssignedEndpoint is the hub endpoint the device must connect to.
	AssignedEndpoint string

	// IDScope is the provisioning scope the registration belongs to.
	IDScope string

	// OperationID identifies the registration operation.
	OperationID string

	// Status is the terminal registration status (StatusAssigned).
	Status string

	// AssignedAt is when the assignment was issued.
	AssignedAt time.Time
}

// Provisioner resolves the device's assigned hub endpoint.
type Provisioner interface {
	// Register registers the device and blocks until the registration
	// reaches a terminal state or the context is cancelled.
	Register(ctx context.Context) (*Registration, error)
}
