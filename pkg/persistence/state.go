package persistence

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// StateVersion is the current version of the state file format.
const StateVersion = 1

// RegistrationState is the persisted provisioning result.
type RegistrationState struct {
	// Version is the state file format version.
	Version int `json:"version"`

	// SavedAt is when the state was last saved.
	SavedAt time.Time `json:"saved_at"`

	// DeviceID is the registered device identity.
	DeviceID string `json:"device_id"`

	// AssignedEndpoint is the hub endpoint the device was assigned to.
	AssignedEndpoint string `json:"assigned_endpoint"`

	// IDScope is the provisioning scope the registration belongs to.
	IDScope string `json:"id_scope,omitempty"`

	// OperationID is the provisioning operation that produced the
	// assignment.
	OperationID string `json:"operation_id,omitempty"`

	// AssignedAt is when the assignment was issued.
	AssignedAt time.Time `json:"assigned_at,omitempty"`
}

// RegistrationStore manages persistence of the registration state to a
// JSON file.
type RegistrationStore struct {
	mu   sync.Mutex
	path string
}

// NewRegistrationStore creates a registration store backed by path.
func NewRegistrationStore(path string) *RegistrationStore {
	return &RegistrationStore{path: path}
}

// Save persists the registration state to disk.
func (s *RegistrationStore) Save(state *RegistrationState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Ensure parent directory exists
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	state.Version = StateVersion
	if state.SavedAt.IsZero() {
		state.SavedAt = time.Now()
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(s.path, data, 0644)
}

// Load reads the registration state from disk.
// Returns nil, nil if the file doesn't exist (no cached registration).
func (s *RegistrationStore) Load() (*RegistrationState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var state RegistrationState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

// Clear removes the persisted state. Clearing a store that was never
// saved is not an error.
func (s *RegistrationStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
