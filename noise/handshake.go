package noise

import (
	"errors"
	"fmt"

	"github.com/flynn/noise"
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/thp/crypto"
	"github.com/opd-ai/thp/limits"
	"github.com/opd-ai/thp/transport"
)

var (
	// ErrOutOfOrder indicates a handshake step called in the wrong phase
	ErrOutOfOrder = fmt.Errorf("noise: handshake step out of order: %w", transport.ErrUnexpectedInput)
	// ErrInvalidMessage indicates a handshake message that failed to parse or authenticate
	ErrInvalidMessage = fmt.Errorf("noise: invalid handshake message: %w", transport.ErrMalformedData)
	// ErrHandshakeNotComplete indicates Split was called before the last step
	ErrHandshakeNotComplete = fmt.Errorf("noise: handshake not complete: %w", transport.ErrUnexpectedInput)
	// ErrDestroyed indicates use of a handshake after Destroy or Split
	ErrDestroyed = fmt.Errorf("noise: handshake destroyed: %w", transport.ErrUnexpectedInput)
)

// HandshakeRole defines whether we're initiating or responding to handshake
type HandshakeRole uint8

const (
	// Initiator is the host side
	Initiator HandshakeRole = iota
	// Responder is the device side
	Responder
)

func (r HandshakeRole) String() string {
	if r == Initiator {
		return "initiator"
	}
	return "responder"
}

// Handshake phases, counted in messages processed.
const (
	phaseInitiation = iota
	phaseInitiationResponse
	phaseCompletion
	phaseCompletionResponse
	phaseDone
)

const (
	// InitiationRequestLen is the ephemeral key plus the try_to_unlock byte.
	InitiationRequestLen = limits.PublicKeyLen + 1
	// InitiationResponseLen is the ephemeral key, the encrypted static key and an empty payload tag.
	InitiationResponseLen = limits.PublicKeyLen + limits.PublicKeyLen + limits.TagLen + limits.TagLen
	// CompletionResponseLen is the encrypted pairing state byte.
	CompletionResponseLen = 1 + limits.TagLen

	completionOverhead = limits.PublicKeyLen + limits.TagLen + limits.TagLen
)

// CompletionRequestLen returns the length of a completion request carrying a
// credential of n bytes.
func CompletionRequestLen(n int) int {
	return completionOverhead + n
}

// Handshake is one side of a THP Noise handshake.
type Handshake struct {
	role    HandshakeRole
	state   *noise.HandshakeState
	static  noise.DHKey
	phase   int
	send    *noise.CipherState
	recv    *noise.CipherState
	remote  [limits.PublicKeyLen]byte
	scratch [limits.TagLen]byte
}

// NewHandshake creates a handshake for role using the backend's cipher suite
// and randomness. The static key pair is copied.
func NewHandshake(backend crypto.Backend, static *crypto.KeyPair, role HandshakeRole, prologue []byte) (*Handshake, error) {
	if backend == nil {
		return nil, errors.New("noise: nil backend")
	}
	if static == nil {
		return nil, errors.New("noise: nil static key pair")
	}

	h := &Handshake{role: role, static: static.DHKey()}
	config := noise.Config{
		CipherSuite:   backend.CipherSuite(),
		Random:        crypto.Reader(backend),
		Pattern:       noise.HandshakeXX,
		Initiator:     role == Initiator,
		Prologue:      prologue,
		StaticKeypair: h.static,
	}

	var err error
	h.state, err = noise.NewHandshakeState(config)
	if err != nil {
		crypto.WipeDHKey(&h.static)
		return nil, fmt.Errorf("failed to create handshake state: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"function":     "NewHandshake",
		"role":         role.String(),
		"prologue_len": len(prologue),
	}).Debug("Handshake created")
	return h, nil
}

// Role returns the handshake role.
func (h *Handshake) Role() HandshakeRole { return h.role }

// RemoteStatic returns the peer's static public key, or nil before it is known.
func (h *Handshake) RemoteStatic() []byte {
	if h.role == Initiator && h.phase < phaseCompletion {
		return nil
	}
	if h.role == Responder && h.phase < phaseCompletionResponse {
		return nil
	}
	return h.remote[:]
}

// Done reports whether every handshake message was processed.
func (h *Handshake) Done() bool { return h.phase == phaseDone }

func (h *Handshake) expect(role HandshakeRole, phase int) error {
	if h.state == nil {
		return ErrDestroyed
	}
	if h.role != role || h.phase != phase {
		return fmt.Errorf("%w: %s at phase %d", ErrOutOfOrder, h.role, h.phase)
	}
	return nil
}

func checkCapacity(out []byte, need int) error {
	if cap(out) < need {
		return fmt.Errorf("%w: handshake message needs %d bytes, buffer has %d",
			transport.ErrInsufficientBuffer, need, cap(out))
	}
	return nil
}

// WriteInitiationRequest appends the initiation request to out[:0].
func (h *Handshake) WriteInitiationRequest(out []byte, tryToUnlock bool) ([]byte, error) {
	if err := h.expect(Initiator, phaseInitiation); err != nil {
		return nil, err
	}
	if err := checkCapacity(out, InitiationRequestLen); err != nil {
		return nil, err
	}

	h.scratch[0] = 0
	if tryToUnlock {
		h.scratch[0] = 1
	}
	msg, _, _, err := h.state.WriteMessage(out[:0], h.scratch[:1])
	if err != nil {
		return nil, fmt.Errorf("write initiation request: %w", err)
	}
	h.phase = phaseInitiationResponse
	return msg, nil
}

// ReadInitiationRequest consumes the host's initiation request and returns
// its try_to_unlock flag.
func (h *Handshake) ReadInitiationRequest(msg []byte) (bool, error) {
	if err := h.expect(Responder, phaseInitiation); err != nil {
		return false, err
	}
	if len(msg) != InitiationRequestLen {
		return false, fmt.Errorf("%w: initiation request of %d bytes", ErrInvalidMessage, len(msg))
	}

	payload, _, _, err := h.state.ReadMessage(h.scratch[:0], msg)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	h.phase = phaseInitiationResponse
	return payload[0]&0x01 != 0, nil
}

// WriteInitiationResponse appends the device's initiation response to out[:0].
func (h *Handshake) WriteInitiationResponse(out []byte) ([]byte, error) {
	if err := h.expect(Responder, phaseInitiationResponse); err != nil {
		return nil, err
	}
	if err := checkCapacity(out, InitiationResponseLen); err != nil {
		return nil, err
	}

	msg, _, _, err := h.state.WriteMessage(out[:0], nil)
	if err != nil {
		return nil, fmt.Errorf("write initiation response: %w", err)
	}
	h.phase = phaseCompletion
	return msg, nil
}

// ReadInitiationResponse consumes the device's initiation response. The
// device static key is available from RemoteStatic afterwards.
func (h *Handshake) ReadInitiationResponse(msg []byte) error {
	if err := h.expect(Initiator, phaseInitiationResponse); err != nil {
		return err
	}
	if len(msg) != InitiationResponseLen {
		return fmt.Errorf("%w: initiation response of %d bytes", ErrInvalidMessage, len(msg))
	}

	payload, _, _, err := h.state.ReadMessage(h.scratch[:0], msg)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	if len(payload) != 0 {
		return fmt.Errorf("%w: initiation response carries a payload", ErrInvalidMessage)
	}
	copy(h.remote[:], h.state.PeerStatic())
	h.phase = phaseCompletion
	return nil
}

// WriteCompletionRequest appends the completion request carrying credential
// to out[:0] and derives the transport keys.
func (h *Handshake) WriteCompletionRequest(out, credential []byte) ([]byte, error) {
	if err := h.expect(Initiator, phaseCompletion); err != nil {
		return nil, err
	}
	if err := limits.ValidateCredential(credential); err != nil {
		return nil, fmt.Errorf("%w: %w", transport.ErrInsufficientBuffer, err)
	}
	if err := checkCapacity(out, CompletionRequestLen(len(credential))); err != nil {
		return nil, err
	}

	msg, cs1, cs2, err := h.state.WriteMessage(out[:0], credential)
	if err != nil {
		return nil, fmt.Errorf("write completion request: %w", err)
	}
	if cs1 == nil || cs2 == nil {
		return nil, fmt.Errorf("write completion request: %w", ErrHandshakeNotComplete)
	}
	h.send, h.recv = cs1, cs2
	h.phase = phaseCompletionResponse
	return msg, nil
}

// ReadCompletionRequest consumes the host's completion request, decrypting
// the credential into credBuf[:0], and derives the transport keys. The host
// static key is available from RemoteStatic afterwards.
func (h *Handshake) ReadCompletionRequest(msg, credBuf []byte) ([]byte, error) {
	if err := h.expect(Responder, phaseCompletion); err != nil {
		return nil, err
	}
	if len(msg) < completionOverhead {
		return nil, fmt.Errorf("%w: completion request of %d bytes", ErrInvalidMessage, len(msg))
	}
	if err := checkCapacity(credBuf, len(msg)-completionOverhead); err != nil {
		return nil, err
	}

	credential, cs1, cs2, err := h.state.ReadMessage(credBuf[:0], msg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	if cs1 == nil || cs2 == nil {
		return nil, fmt.Errorf("read completion request: %w", ErrHandshakeNotComplete)
	}
	copy(h.remote[:], h.state.PeerStatic())
	h.send, h.recv = cs2, cs1
	h.phase = phaseCompletionResponse
	return credential, nil
}

// WriteCompletionResponse appends the encrypted pairing state to out[:0].
func (h *Handshake) WriteCompletionResponse(out []byte, pairingState byte) ([]byte, error) {
	if err := h.expect(Responder, phaseCompletionResponse); err != nil {
		return nil, err
	}
	if err := checkCapacity(out, CompletionResponseLen); err != nil {
		return nil, err
	}

	h.scratch[0] = pairingState
	msg, err := h.send.Encrypt(out[:0], nil, h.scratch[:1])
	h.scratch[0] = 0
	if err != nil {
		return nil, fmt.Errorf("write completion response: %w", err)
	}
	h.phase = phaseDone
	return msg, nil
}

// ReadCompletionResponse decrypts the device's pairing state.
func (h *Handshake) ReadCompletionResponse(msg []byte) (byte, error) {
	if err := h.expect(Initiator, phaseCompletionResponse); err != nil {
		return 0, err
	}
	if len(msg) != CompletionResponseLen {
		return 0, fmt.Errorf("%w: completion response of %d bytes", ErrInvalidMessage, len(msg))
	}

	state, err := h.recv.Decrypt(h.scratch[:0], nil, msg)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	h.phase = phaseDone
	v := state[0]
	h.scratch[0] = 0
	return v, nil
}

// Split hands over the transport cipher states and destroys the handshake.
func (h *Handshake) Split() (send, recv *noise.CipherState, err error) {
	if h.state == nil {
		return nil, nil, ErrDestroyed
	}
	if h.phase != phaseDone {
		return nil, nil, ErrHandshakeNotComplete
	}
	send, recv = h.send, h.recv
	h.Destroy()
	return send, recv, nil
}

// Destroy wipes the ephemeral and static key copies and drops the transcript.
// It is safe to call more than once.
func (h *Handshake) Destroy() {
	if h.state != nil {
		e := h.state.LocalEphemeral()
		crypto.ZeroBytes(e.Private)
		h.state = nil
	}
	crypto.WipeDHKey(&h.static)
	crypto.ZeroBytes(h.scratch[:])
	h.send, h.recv = nil, nil
}
