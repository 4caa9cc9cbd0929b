package fs

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/peertube-pod/internal/logging"
)

const pemType = "PRIVATE KEY"

// KeyStore keeps the pod signing key as a PKCS#8 PEM file under basePath.
type KeyStore struct {
	basePath string
}

func NewKeyStore(basePath string) *KeyStore {
	return &KeyStore{basePath: basePath}
}

// LoadOrCreate returns the key stored under name, generating and persisting a new one
// the first time.
func (s *KeyStore) LoadOrCreate(ctx context.Context, name string) (ed25519.PrivateKey, error) {
	key, err := s.Load(ctx, name)
	if err == nil {
		return key, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	_, key, err = ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generating key: %w", err)
	}
	if err := s.Store(ctx, name, key); err != nil {
		return nil, err
	}

	logging.Info().Str("path", filepath.Join(s.basePath, name)).Msg("generated pod signing key")
	return key, nil
}

func (s *KeyStore) Store(ctx context.Context, name string, key ed25519.PrivateKey) error {
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return fmt.Errorf("marshaling key: %w", err)
	}

	path := filepath.Join(s.basePath, name)
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating key directory: %w", err)
	}
	if err := os.WriteFile(path, pem.EncodeToMemory(&pem.Block{Type: pemType, Bytes: der}), 0600); err != nil {
		return fmt.Errorf("writing key file: %w", err)
	}
	return nil
}

func (s *KeyStore) Load(ctx context.Context, name string) (ed25519.PrivateKey, error) {
	path := filepath.Join(s.basePath, name)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading key file: %w", err)
	}

	block, _ := pem.Decode(data)
	if block == nil || block.Type != pemType {
		return nil, fmt.Errorf("key file %s is not a PEM private key", path)
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parsing key file: %w", err)
	}
	key, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("key file %s does not hold an ed25519 key", path)
	}
	return key, nil
}
