package auth

import (
	"crypto/x509"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// File names inside a FileStore directory.
const (
	certFileName  = "identity.crt"
	keyFileName   = "identity.key"
	chainFileName = "chain.crt"
)

// FileStore persists the device identity as PEM files in a directory.
// The private key file is written with 0600 permissions.
type FileStore struct {
	mu  sync.RWMutex
	dir string
	id  *Identity
}

// NewFileStore creates a file-backed identity store rooted at dir and
// loads any existing identity.
func NewFileStore(dir string) (*FileStore, error) {
	s := &FileStore{dir: dir}
	if err := s.Load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Identity returns the stored identity.
func (s *FileStore) Identity() (*Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.id == nil {
		return nil, ErrIdentityNotFound
	}
	return s.id, nil
}

// SetIdentity stores the identity in memory. Call Save to persist it.
func (s *FileStore) SetIdentity(id *Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.id = id
	return nil
}

// Save writes the identity PEM files to the store directory.
func (s *FileStore) Save() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.id == nil {
		return ErrIdentityNotFound
	}

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return err
	}

	certPEM := EncodeCertificatePEM(s.id.Certificate)
	if err := os.WriteFile(filepath.Join(s.dir, certFileName), certPEM, 0644); err != nil {
		return fmt.Errorf("write certificate: %w", err)
	}

	keyPEM, err := EncodePrivateKeyPEM(s.id.PrivateKey)
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(s.dir, keyFileName), keyPEM, 0600); err != nil {
		return fmt.Errorf("write private key: %w", err)
	}

	if len(s.id.Chain) > 0 {
		var chainPEM []byte
		for _, c := range s.id.Chain {
			chainPEM = append(chainPEM, EncodeCertificatePEM(c)...)
		}
		if err := os.WriteFile(filepath.Join(s.dir, chainFileName), chainPEM, 0644); err != nil {
			return fmt.Errorf("write chain: %w", err)
		}
	}

	return nil
}

// Load reads the identity PEM files from the store directory.
// A missing directory or certificate file leaves the store empty.
func (s *FileStore) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	certData, err := os.ReadFile(filepath.Join(s.dir, certFileName))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read certificate: %w", err)
	}

	certs, err := ParseCertificatesPEM(certData)
	if err != nil {
		return err
	}

	keyData, err := os.ReadFile(filepath.Join(s.dir, keyFileName))
	if err != nil {
		return fmt.Errorf("read private key: %w", err)
	}
	key, err := ParsePrivateKeyPEM(keyData)
	if err != nil {
		return err
	}

	id := &Identity{Certificate: certs[0], PrivateKey: key}

	var chain []*x509.Certificate
	chainData, err := os.ReadFile(filepath.Join(s.dir, chainFileName))
	if err == nil {
		chain, err = ParseCertificatesPEM(chainData)
		if err != nil {
			return err
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("read chain: %w", err)
	}
	id.Chain = chain

	s.id = id
	return nil
}

// Compile-time interface satisfaction check.
var _ Store = (*FileStore)(nil)
