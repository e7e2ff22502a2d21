package credential

import (
	"fmt"

	"github.com/opd-ai/thp/transport"
)

// PairingState is the authenticated pairing result of a handshake.
type PairingState uint8

const (
	Unpaired PairingState = iota
	Paired
	PairedAutoconnect
)

func (s PairingState) String() string {
	switch s {
	case Unpaired:
		return "Unpaired"
	case Paired:
		return "Paired"
	case PairedAutoconnect:
		return "PairedAutoconnect"
	default:
		return fmt.Sprintf("PairingState(%d)", uint8(s))
	}
}

// Valid reports whether s is a known pairing state.
func (s PairingState) Valid() bool {
	return s <= PairedAutoconnect
}

// ErrInvalidCredential indicates a credential that fails verification.
var ErrInvalidCredential = fmt.Errorf("credential: invalid credential: %w", transport.ErrMalformedData)

// Verifier decides the pairing state of a host presenting credential. An
// empty credential means the host has no stored pairing. Returning an error
// rejects the host.
type Verifier interface {
	Verify(hostStatic, credential []byte) (PairingState, error)
}

// Store selects the credential a host presents to a device. A nil
// credential means none is stored.
type Store interface {
	Credential(deviceStatic []byte) ([]byte, error)
}

// VerifierFunc adapts a function to the Verifier interface.
type VerifierFunc func(hostStatic, credential []byte) (PairingState, error)

// Verify calls f.
func (f VerifierFunc) Verify(hostStatic, credential []byte) (PairingState, error) {
	return f(hostStatic, credential)
}
