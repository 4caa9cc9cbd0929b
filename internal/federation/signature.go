package federation

import (
	"context"
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	// MaxClockSkew bounds how far the Date header of a signed request may drift.
	MaxClockSkew = time.Hour

	signatureAlgorithm = "ed25519"
	signedHeaders      = "(request-target) host date digest"
)

var (
	ErrMissingSignature = errors.New("missing signature")
	ErrInvalidSignature = errors.New("invalid signature")
	ErrDigestMismatch   = errors.New("digest mismatch")
	ErrDateSkew         = errors.New("date outside of accepted window")
)

// KeyResolver returns the public key referenced by a signature keyId.
type KeyResolver func(ctx context.Context, keyID string) (ed25519.PublicKey, error)

type Signer struct {
	keyID string
	key   ed25519.PrivateKey
}

func NewSigner(keyID string, key ed25519.PrivateKey) *Signer {
	return &Signer{keyID: keyID, key: key}
}

func (s *Signer) KeyID() string {
	return s.keyID
}

func (s *Signer) PublicKey() ed25519.PublicKey {
	return s.key.Public().(ed25519.PublicKey)
}

// Sign sets the Date, Digest and Signature headers of an outgoing inbox delivery.
func (s *Signer) Sign(req *http.Request, body []byte, now time.Time) {
	date := now.UTC().Format(http.TimeFormat)
	digest := Digest(body)
	req.Header.Set("Date", date)
	req.Header.Set("Digest", digest)

	host := req.Host
	if host == "" {
		host = req.URL.Host
	}

	payload := signingString(req.Method, req.URL.RequestURI(), host, date, digest)
	sig := ed25519.Sign(s.key, []byte(payload))

	req.Header.Set("Signature", fmt.Sprintf(`keyId="%s",algorithm="%s",headers="%s",signature="%s"`,
		s.keyID, signatureAlgorithm, signedHeaders, base64.StdEncoding.EncodeToString(sig)))
}

// Verify checks an inbound signed request and returns the keyId that signed it.
func Verify(ctx context.Context, r *http.Request, body []byte, now time.Time, resolve KeyResolver) (string, error) {
	header := r.Header.Get("Signature")
	if header == "" {
		return "", ErrMissingSignature
	}

	params, err := ParseSignatureHeader(header)
	if err != nil {
		return "", err
	}
	keyID := params["keyId"]
	if keyID == "" || params["signature"] == "" {
		return "", ErrInvalidSignature
	}
	if alg := params["algorithm"]; alg != "" && alg != signatureAlgorithm {
		return "", fmt.Errorf("%w: unsupported algorithm %q", ErrInvalidSignature, alg)
	}
	if params["headers"] != signedHeaders {
		return "", fmt.Errorf("%w: unexpected signed headers %q", ErrInvalidSignature, params["headers"])
	}

	digest := r.Header.Get("Digest")
	if digest != Digest(body) {
		return "", ErrDigestMismatch
	}

	date := r.Header.Get("Date")
	sent, err := http.ParseTime(date)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if skew := now.Sub(sent); skew > MaxClockSkew || skew < -MaxClockSkew {
		return "", ErrDateSkew
	}

	sig, err := base64.StdEncoding.DecodeString(params["signature"])
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	pub, err := resolve(ctx, keyID)
	if err != nil {
		return "", fmt.Errorf("resolving key %s: %w", keyID, err)
	}

	payload := signingString(r.Method, r.URL.RequestURI(), r.Host, date, digest)
	if !ed25519.Verify(pub, []byte(payload), sig) {
		return "", ErrInvalidSignature
	}
	return keyID, nil
}

func Digest(body []byte) string {
	sum := sha256.Sum256(body)
	return "SHA-256=" + base64.StdEncoding.EncodeToString(sum[:])
}

func signingString(method, requestURI, host, date, digest string) string {
	return strings.Join([]string{
		"(request-target): " + strings.ToLower(method) + " " + requestURI,
		"host: " + host,
		"date: " + date,
		"digest: " + digest,
	}, "\n")
}

// ParseSignatureHeader splits a Signature header into its key="value" parameters.
func ParseSignatureHeader(header string) (map[string]string, error) {
	params := make(map[string]string)
	rest := strings.TrimSpace(header)

	for rest != "" {
		eq := strings.IndexByte(rest, '=')
		if eq <= 0 {
			return nil, fmt.Errorf("%w: malformed parameter list", ErrInvalidSignature)
		}
		key := strings.TrimSpace(rest[:eq])
		rest = rest[eq+1:]

		if !strings.HasPrefix(rest, `"`) {
			return nil, fmt.Errorf("%w: unquoted value for %s", ErrInvalidSignature, key)
		}
		end := strings.IndexByte(rest[1:], '"')
		if end < 0 {
			return nil, fmt.Errorf("%w: unterminated value for %s", ErrInvalidSignature, key)
		}
		params[key] = rest[1 : end+1]
		rest = strings.TrimSpace(rest[end+2:])
		rest = strings.TrimPrefix(rest, ",")
		rest = strings.TrimSpace(rest)
	}

	return params, nil
}
