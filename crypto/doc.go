// Package crypto supplies the cryptographic capabilities consumed by the THP
// protocol core.
//
// # Backend
//
// The protocol state machines never call a primitive directly. They are
// parametric over a [Backend], which provides random bytes and the Noise
// cipher suite (Diffie-Hellman, AEAD cipher and hash):
//
//	backend, err := crypto.NewBackend(crypto.CipherAESGCM)
//	if err != nil {
//	    return err
//	}
//	keys, err := crypto.GenerateKeyPair(backend)
//
// Tests substitute a deterministic backend so handshakes are reproducible.
//
// # Secure Memory Handling
//
// Scratch buffers that transiently hold key material or credentials must be
// overwritten, not truncated:
//
//	defer crypto.ZeroBytes(scratch[:])
//	defer crypto.WipeKeyPair(keyPair)
//
// # Logging
//
// [LoggerHelper] wraps logrus with the standard "function" and "package"
// fields. Secret material is never logged; [SecureFieldHash] produces a short
// preview suitable for public keys.
package crypto
