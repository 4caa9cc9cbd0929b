package federation

import (
	"crypto/ed25519"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
)

var ErrInvalidPublicKey = errors.New("invalid public key")

type PublicKey struct {
	ID           string `json:"id"`
	Owner        string `json:"owner"`
	PublicKeyPem string `json:"publicKeyPem"`
}

// Actor is the document served for the pod itself at /actor.
type Actor struct {
	Context           string    `json:"@context,omitempty"`
	ID                string    `json:"id"`
	Type              string    `json:"type"`
	PreferredUsername string    `json:"preferredUsername"`
	Inbox             string    `json:"inbox"`
	PublicKey         PublicKey `json:"publicKey"`
}

func NewPodActor(urls URLs, pub ed25519.PublicKey) (*Actor, error) {
	pemKey, err := EncodePublicKey(pub)
	if err != nil {
		return nil, err
	}
	return &Actor{
		Context:           ActivityContext,
		ID:                urls.Actor(),
		Type:              "Application",
		PreferredUsername: "peertube",
		Inbox:             urls.Inbox(),
		PublicKey: PublicKey{
			ID:           urls.KeyID(),
			Owner:        urls.Actor(),
			PublicKeyPem: pemKey,
		},
	}, nil
}

func EncodePublicKey(pub ed25519.PublicKey) (string, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return "", fmt.Errorf("marshaling public key: %w", err)
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})), nil
}

func DecodePublicKey(pemKey string) (ed25519.PublicKey, error) {
	block, _ := pem.Decode([]byte(pemKey))
	if block == nil {
		return nil, ErrInvalidPublicKey
	}
	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}
	pub, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, ErrInvalidPublicKey
	}
	return pub, nil
}
