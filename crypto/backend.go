package crypto

import (
	"crypto/rand"
	"fmt"
	"io"

	"github.com/flynn/noise"
)

// Supported AEAD cipher names for NewBackend.
const (
	CipherAESGCM     = "AESGCM"
	CipherChaChaPoly = "ChaChaPoly"
)

// Backend supplies randomness and the Noise primitives used by the handshake.
type Backend interface {
	// RandomBytes fills buf with cryptographically secure random bytes.
	RandomBytes(buf []byte) error
	// CipherSuite returns the DH, AEAD and hash functions for the handshake.
	CipherSuite() noise.CipherSuite
}

// StandardBackend draws randomness from crypto/rand and uses Curve25519 with
// SHA-256 and the configured AEAD.
type StandardBackend struct {
	suite noise.CipherSuite
}

// NewBackend creates a StandardBackend for the named cipher.
func NewBackend(cipher string) (*StandardBackend, error) {
	logger := NewLogger("NewBackend").WithField("cipher", cipher)

	var cf noise.CipherFunc
	switch cipher {
	case CipherAESGCM, "":
		cf = noise.CipherAESGCM
	case CipherChaChaPoly:
		cf = noise.CipherChaChaPoly
	default:
		err := fmt.Errorf("unsupported cipher %q", cipher)
		logger.WithError(err, "select cipher").Error("Unsupported cipher")
		return nil, err
	}

	logger.Debug("Backend created")
	return &StandardBackend{
		suite: noise.NewCipherSuite(noise.DH25519, cf, noise.HashSHA256),
	}, nil
}

// DefaultBackend returns the AES-GCM backend.
func DefaultBackend() *StandardBackend {
	return &StandardBackend{
		suite: noise.NewCipherSuite(noise.DH25519, noise.CipherAESGCM, noise.HashSHA256),
	}
}

// RandomBytes implements Backend.
func (b *StandardBackend) RandomBytes(buf []byte) error {
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return fmt.Errorf("failed to read random bytes: %w", err)
	}
	return nil
}

// CipherSuite implements Backend.
func (b *StandardBackend) CipherSuite() noise.CipherSuite {
	return b.suite
}

// Reader adapts a Backend's random source to an io.Reader.
func Reader(b Backend) io.Reader {
	return backendReader{b: b}
}

type backendReader struct {
	b Backend
}

func (r backendReader) Read(p []byte) (int, error) {
	if err := r.b.RandomBytes(p); err != nil {
		return 0, err
	}
	return len(p), nil
}
