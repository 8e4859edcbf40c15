package auth

import (
	"errors"
	"sync"
)

// ErrIdentityNotFound indicates the store holds no identity.
var ErrIdentityNotFound = errors.New("identity not found")

// Store defines the interface for identity certificate storage.
// Implementations must be safe for concurrent access.
type Store interface {
	// Identity returns the stored identity.
	// Returns ErrIdentityNotFound if no identity is stored.
	Identity() (*Identity, error)

	// SetIdentity stores the identity.
	SetIdentity(id *Identity) error

	// Save persists the store to its backing storage.
	// For in-memory stores, this is a no-op.
	Save() error

	// Load reads the store from its backing storage.
	// For in-memory stores, this is a no-op.
	Load() error
}

// MemoryStore is an in-memory identity store, primarily for tests and
// short-lived processes.
type MemoryStore struct {
	mu sync.RWMutex
	id *Identity
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Identity returns the stored identity.
func (s *MemoryStore) Identity() (*Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.id == nil {
		return nil, ErrIdentityNotFound
	}
	return s.id, nil
}

// SetIdentity stores the identity.
func (s *MemoryStore) SetIdentity(id *Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.id = id
	return nil
}

// Save is a no-op for the in-memory store.
func (s *MemoryStore) Save() error { return nil }

// Load is a no-op for the in-memory store.
func (s *MemoryStore) Load() error { return nil }

// Compile-time interface satisfaction check.
var _ Store = (*MemoryStore)(nil)
