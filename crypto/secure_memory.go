package crypto

import (
	"crypto/subtle"
	"errors"
	"runtime"

	"github.com/flynn/noise"
)

// SecureWipe overwrites a byte slice holding sensitive data with zeros.
// It returns an error if the slice is nil.
func SecureWipe(data []byte) error {
	if data == nil {
		return errors.New("cannot wipe nil data")
	}

	// x XOR x through subtle keeps the store from being elided.
	subtle.XORBytes(data, data, data)

	runtime.KeepAlive(data)
	return nil
}

// ZeroBytes erases a byte slice, ignoring nil.
func ZeroBytes(data []byte) {
	_ = SecureWipe(data)
}

// WipeKeyPair securely erases the private key in a KeyPair.
func WipeKeyPair(kp *KeyPair) error {
	if kp == nil {
		return errors.New("cannot wipe nil KeyPair")
	}
	return SecureWipe(kp.Private[:])
}

// WipeDHKey erases the private half of a flynn/noise key.
func WipeDHKey(key *noise.DHKey) {
	if key == nil {
		return
	}
	ZeroBytes(key.Private)
}
