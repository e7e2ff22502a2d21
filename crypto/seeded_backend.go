package crypto

import (
	"encoding/binary"
	"math/rand/v2"

	"github.com/flynn/noise"
)

// SeededBackend is a deterministic Backend for tests and simulations.
// It must never be used to protect real traffic.
type SeededBackend struct {
	rng   *rand.ChaCha8
	suite noise.CipherSuite
}

// NewSeededBackend creates a deterministic AES-GCM backend from seed.
func NewSeededBackend(seed [32]byte) *SeededBackend {
	NewLogger("NewSeededBackend").Warn("DETERMINISTIC BACKEND - NOT FOR PRODUCTION USE")
	return &SeededBackend{
		rng:   rand.NewChaCha8(seed),
		suite: noise.NewCipherSuite(noise.DH25519, noise.CipherAESGCM, noise.HashSHA256),
	}
}

// RandomBytes implements Backend.
func (b *SeededBackend) RandomBytes(buf []byte) error {
	var word [8]byte
	for i := 0; i < len(buf); i += len(word) {
		binary.LittleEndian.PutUint64(word[:], b.rng.Uint64())
		copy(buf[i:], word[:])
	}
	return nil
}

// CipherSuite implements Backend.
func (b *SeededBackend) CipherSuite() noise.CipherSuite {
	return b.suite
}
