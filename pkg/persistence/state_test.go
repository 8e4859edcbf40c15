package persistence

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistrationStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "registration.json")
	s := NewRegistrationStore(path)

	// Missing file yields empty state, not an error.
	state, err := s.Load()
	require.NoError(t, err)
	assert.Nil(t, state)

	saved := &RegistrationState{
		DeviceID:         "device-1",
		AssignedEndpoint: "hub-west.example.com",
		IDScope:          "0ne000ABC",
		OperationID:      "op-123",
		AssignedAt:       time.Unix(1700000000, 0).UTC(),
	}
	require.NoError(t, s.Save(saved))

	loaded, err := s.Load()
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, StateVersion, loaded.Version)
	assert.Equal(t, "device-1", loaded.DeviceID)
	assert.Equal(t, "hub-west.example.com", loaded.AssignedEndpoint)
	assert.Equal(t, "0ne000ABC", loaded.IDScope)
	assert.False(t, loaded.SavedAt.IsZero())
}

func TestRegistrationStoreClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registration.json")
	s := NewRegistrationStore(path)

	// Clearing a never-saved store is not an error.
	require.NoError(t, s.Clear())

	require.NoError(t, s.Save(&RegistrationState{DeviceID: "d", AssignedEndpoint: "e"}))
	require.NoError(t, s.Clear())

	state, err := s.Load()
	require.NoError(t, err)
	assert.Nil(t, state)
}
