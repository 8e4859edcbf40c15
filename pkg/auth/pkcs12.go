package auth

import (
	"fmt"
	"os"

	"golang.org/x/crypto/pkcs12"
)

// LoadPKCS12 loads a device identity from a PKCS#12 (.pfx/.p12) bundle,
// the container format most certificate authorities issue device
// certificates in.
func LoadPKCS12(path, password string) (*Identity, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read PKCS#12 bundle: %w", err)
	}
	return ParsePKCS12(data, password)
}

// ParsePKCS12 parses a PKCS#12 bundle into an Identity.
func ParsePKCS12(data []byte, password string) (*Identity, error) {
	key, cert, err := pkcs12.Decode(data, password)
	if err != nil {
		return nil, fmt.Errorf("decode PKCS#12 bundle: %w", err)
	}
	return &Identity{
		Certificate: cert,
		PrivateKey:  key,
	}, nil
}
