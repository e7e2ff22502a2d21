package credential

import (
	"crypto/subtle"
	"fmt"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/blake2s"

	"github.com/opd-ai/thp/crypto"
	"github.com/opd-ai/thp/limits"
)

const (
	flagAutoconnect = 0x01

	// CredentialLen is the length of an issued credential: flags and MAC.
	CredentialLen = 1 + blake2s.Size
)

var macDomain = []byte("THP credential v1")

// Issuer issues and verifies credentials as keyed BLAKE2s MACs over the
// host static key. The key never leaves the device.
type Issuer struct {
	key [32]byte
}

// NewIssuer creates an issuer with the given MAC key.
func NewIssuer(key [32]byte) *Issuer {
	return &Issuer{key: key}
}

// NewRandomIssuer creates an issuer with a key drawn from backend.
func NewRandomIssuer(backend crypto.Backend) (*Issuer, error) {
	var key [32]byte
	if err := backend.RandomBytes(key[:]); err != nil {
		return nil, fmt.Errorf("credential: generate issuer key: %w", err)
	}
	return &Issuer{key: key}, nil
}

func (i *Issuer) mac(flags byte, hostStatic []byte, out []byte) ([]byte, error) {
	h, err := blake2s.New256(i.key[:])
	if err != nil {
		return nil, err
	}
	h.Write(macDomain)
	h.Write([]byte{flags})
	h.Write(hostStatic)
	return h.Sum(out), nil
}

// Issue returns a credential for hostStatic.
func (i *Issuer) Issue(hostStatic []byte, autoconnect bool) ([]byte, error) {
	if len(hostStatic) != limits.PublicKeyLen {
		return nil, fmt.Errorf("credential: host key of %d bytes", len(hostStatic))
	}
	var flags byte
	if autoconnect {
		flags |= flagAutoconnect
	}
	cred := make([]byte, 1, CredentialLen)
	cred[0] = flags
	return i.mac(flags, hostStatic, cred)
}

// Verify implements Verifier. An empty credential yields Unpaired.
func (i *Issuer) Verify(hostStatic, credential []byte) (PairingState, error) {
	if len(credential) == 0 {
		return Unpaired, nil
	}
	if len(credential) != CredentialLen || credential[0]&^flagAutoconnect != 0 {
		return Unpaired, fmt.Errorf("%w: %d bytes", ErrInvalidCredential, len(credential))
	}

	var buf [blake2s.Size]byte
	want, err := i.mac(credential[0], hostStatic, buf[:0])
	if err != nil {
		return Unpaired, err
	}
	if subtle.ConstantTimeCompare(want, credential[1:]) != 1 {
		logrus.WithFields(logrus.Fields{
			"function": "Verify",
		}).WithFields(crypto.SecureFieldHash(hostStatic, "host_static")).Warn("Credential MAC mismatch")
		return Unpaired, ErrInvalidCredential
	}

	if credential[0]&flagAutoconnect != 0 {
		return PairedAutoconnect, nil
	}
	return Paired, nil
}
