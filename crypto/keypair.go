package crypto

import (
	"errors"
	"fmt"

	"github.com/flynn/noise"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/nacl/box"
)

// KeyPair is a Curve25519 static key pair.
type KeyPair struct {
	Public  [32]byte
	Private [32]byte
}

// GenerateKeyPair creates a new random key pair from the backend's random source.
func GenerateKeyPair(b Backend) (*KeyPair, error) {
	publicKey, privateKey, err := box.GenerateKey(Reader(b))
	if err != nil {
		NewLogger("GenerateKeyPair").WithError(err, "box.GenerateKey").Error("Key generation failed")
		return nil, fmt.Errorf("failed to generate key pair: %w", err)
	}

	kp := &KeyPair{
		Public:  *publicKey,
		Private: *privateKey,
	}
	ZeroBytes(privateKey[:])

	NewLogger("GenerateKeyPair").WithFields(SecureFieldHash(kp.Public[:], "public_key")).Debug("Key pair generated")
	return kp, nil
}

// FromSecretKey derives a key pair from an existing private key.
func FromSecretKey(secretKey [32]byte) (*KeyPair, error) {
	if isZeroKey(secretKey) {
		return nil, errors.New("invalid secret key: all zeros")
	}

	public, err := curve25519.X25519(secretKey[:], curve25519.Basepoint)
	if err != nil {
		NewLogger("FromSecretKey").WithError(err, "curve25519.X25519").Error("Public key derivation failed")
		return nil, fmt.Errorf("failed to derive public key: %w", err)
	}

	kp := &KeyPair{Private: secretKey}
	copy(kp.Public[:], public)
	return kp, nil
}

// DHKey returns a flynn/noise copy of the key pair. The caller owns the copy
// and should wipe it with WipeDHKey when done.
func (kp *KeyPair) DHKey() noise.DHKey {
	key := noise.DHKey{
		Private: make([]byte, 32),
		Public:  make([]byte, 32),
	}
	copy(key.Private, kp.Private[:])
	copy(key.Public, kp.Public[:])
	return key
}

// isZeroKey checks if a key consists of all zeros.
func isZeroKey(key [32]byte) bool {
	var acc byte
	for _, b := range key {
		acc |= b
	}
	return acc == 0
}
