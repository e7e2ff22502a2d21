package noise

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/thp/crypto"
	"github.com/opd-ai/thp/limits"
	"github.com/opd-ai/thp/transport"
)

var testProperties = []byte("model=T3W1;protocol=2.0")

func newPair(t *testing.T, hostPrologue, devicePrologue []byte) (*Handshake, *Handshake, *crypto.KeyPair, *crypto.KeyPair) {
	t.Helper()
	backend := crypto.DefaultBackend()
	hostKP, err := crypto.GenerateKeyPair(backend)
	require.NoError(t, err)
	deviceKP, err := crypto.GenerateKeyPair(backend)
	require.NoError(t, err)

	host, err := NewHandshake(backend, hostKP, Initiator, hostPrologue)
	require.NoError(t, err)
	device, err := NewHandshake(backend, deviceKP, Responder, devicePrologue)
	require.NoError(t, err)
	return host, device, hostKP, deviceKP
}

func buf() []byte { return make([]byte, limits.HandshakeBufferLen) }

// runInitiation exchanges the first two messages.
func runInitiation(t *testing.T, host, device *Handshake) {
	t.Helper()
	m1, err := host.WriteInitiationRequest(buf(), false)
	require.NoError(t, err)
	_, err = device.ReadInitiationRequest(m1)
	require.NoError(t, err)
	m2, err := device.WriteInitiationResponse(buf())
	require.NoError(t, err)
	require.NoError(t, host.ReadInitiationResponse(m2))
}

func TestHandshakeComplete(t *testing.T) {
	host, device, hostKP, deviceKP := newPair(t, testProperties, testProperties)
	credential := []byte("stored-credential")

	m1, err := host.WriteInitiationRequest(buf(), true)
	require.NoError(t, err)
	assert.Len(t, m1, InitiationRequestLen)

	unlock, err := device.ReadInitiationRequest(m1)
	require.NoError(t, err)
	assert.True(t, unlock)
	assert.Nil(t, device.RemoteStatic())

	m2, err := device.WriteInitiationResponse(buf())
	require.NoError(t, err)
	assert.Len(t, m2, InitiationResponseLen)

	assert.Nil(t, host.RemoteStatic())
	require.NoError(t, host.ReadInitiationResponse(m2))
	assert.Equal(t, deviceKP.Public[:], host.RemoteStatic())

	m3, err := host.WriteCompletionRequest(buf(), credential)
	require.NoError(t, err)
	assert.Len(t, m3, CompletionRequestLen(len(credential)))

	got, err := device.ReadCompletionRequest(m3, make([]byte, limits.MaxCredentialLen))
	require.NoError(t, err)
	assert.Equal(t, credential, got)
	assert.Equal(t, hostKP.Public[:], device.RemoteStatic())

	m4, err := device.WriteCompletionResponse(buf(), 2)
	require.NoError(t, err)
	assert.Len(t, m4, CompletionResponseLen)

	state, err := host.ReadCompletionResponse(m4)
	require.NoError(t, err)
	assert.Equal(t, byte(2), state)
	assert.True(t, host.Done())
	assert.True(t, device.Done())

	hostSend, hostRecv, err := host.Split()
	require.NoError(t, err)
	deviceSend, deviceRecv, err := device.Split()
	require.NoError(t, err)

	ct, err := hostSend.Encrypt(nil, nil, []byte("to device"))
	require.NoError(t, err)
	pt, err := deviceRecv.Decrypt(nil, nil, ct)
	require.NoError(t, err)
	assert.Equal(t, []byte("to device"), pt)

	ct, err = deviceSend.Encrypt(nil, nil, []byte("to host"))
	require.NoError(t, err)
	pt, err = hostRecv.Decrypt(nil, nil, ct)
	require.NoError(t, err)
	assert.Equal(t, []byte("to host"), pt)
}

func TestHandshakeEmptyCredential(t *testing.T) {
	host, device, _, _ := newPair(t, nil, nil)
	runInitiation(t, host, device)

	m3, err := host.WriteCompletionRequest(buf(), nil)
	require.NoError(t, err)
	got, err := device.ReadCompletionRequest(m3, make([]byte, limits.MaxCredentialLen))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestHandshakePrologueMismatch(t *testing.T) {
	host, device, _, _ := newPair(t, testProperties, []byte("other device"))

	m1, err := host.WriteInitiationRequest(buf(), false)
	require.NoError(t, err)
	_, err = device.ReadInitiationRequest(m1)
	require.NoError(t, err)
	m2, err := device.WriteInitiationResponse(buf())
	require.NoError(t, err)

	err = host.ReadInitiationResponse(m2)
	assert.ErrorIs(t, err, ErrInvalidMessage)
	assert.ErrorIs(t, err, transport.ErrMalformedData)
}

func TestHandshakeOutOfOrder(t *testing.T) {
	host, device, _, _ := newPair(t, nil, nil)

	_, err := device.WriteInitiationResponse(buf())
	assert.ErrorIs(t, err, ErrOutOfOrder)
	assert.ErrorIs(t, err, transport.ErrUnexpectedInput)

	_, err = device.ReadCompletionRequest(make([]byte, 80), make([]byte, 64))
	assert.ErrorIs(t, err, ErrOutOfOrder)

	_, err = host.ReadCompletionResponse(make([]byte, CompletionResponseLen))
	assert.ErrorIs(t, err, ErrOutOfOrder)

	_, err = host.WriteInitiationResponse(buf())
	assert.ErrorIs(t, err, ErrOutOfOrder)

	_, err = host.ReadInitiationRequest(make([]byte, InitiationRequestLen))
	assert.ErrorIs(t, err, ErrOutOfOrder)
}

func TestHandshakeTamperedMessages(t *testing.T) {
	t.Run("completion request", func(t *testing.T) {
		host, device, _, _ := newPair(t, nil, nil)
		runInitiation(t, host, device)

		m3, err := host.WriteCompletionRequest(buf(), []byte("cred"))
		require.NoError(t, err)
		m3[len(m3)-1] ^= 0x01

		_, err = device.ReadCompletionRequest(m3, make([]byte, limits.MaxCredentialLen))
		assert.ErrorIs(t, err, ErrInvalidMessage)
	})

	t.Run("completion response", func(t *testing.T) {
		host, device, _, _ := newPair(t, nil, nil)
		runInitiation(t, host, device)

		m3, err := host.WriteCompletionRequest(buf(), nil)
		require.NoError(t, err)
		_, err = device.ReadCompletionRequest(m3, make([]byte, limits.MaxCredentialLen))
		require.NoError(t, err)
		m4, err := device.WriteCompletionResponse(buf(), 1)
		require.NoError(t, err)
		m4[0] ^= 0x80

		_, err = host.ReadCompletionResponse(m4)
		assert.ErrorIs(t, err, ErrInvalidMessage)
		assert.False(t, host.Done())
	})

	t.Run("wrong lengths", func(t *testing.T) {
		host, device, _, _ := newPair(t, nil, nil)
		_, err := device.ReadInitiationRequest(make([]byte, InitiationRequestLen+1))
		assert.ErrorIs(t, err, ErrInvalidMessage)

		_, err = host.WriteInitiationRequest(buf(), false)
		require.NoError(t, err)
		err = host.ReadInitiationResponse(make([]byte, 10))
		assert.ErrorIs(t, err, ErrInvalidMessage)
	})
}

func TestHandshakeBufferLimits(t *testing.T) {
	host, device, _, _ := newPair(t, nil, nil)

	_, err := host.WriteInitiationRequest(make([]byte, 10), false)
	assert.ErrorIs(t, err, transport.ErrInsufficientBuffer)

	runInitiation(t, host, device)

	_, err = host.WriteCompletionRequest(buf(), make([]byte, limits.MaxCredentialLen+1))
	assert.ErrorIs(t, err, transport.ErrInsufficientBuffer)

	m3, err := host.WriteCompletionRequest(buf(), make([]byte, limits.MaxCredentialLen))
	require.NoError(t, err)
	assert.Len(t, m3, limits.MaxHandshakePayload)

	_, err = device.ReadCompletionRequest(m3, make([]byte, 8))
	assert.ErrorIs(t, err, transport.ErrInsufficientBuffer)
}

func TestHandshakeSplitAndDestroy(t *testing.T) {
	host, _, _, _ := newPair(t, nil, nil)

	_, _, err := host.Split()
	assert.ErrorIs(t, err, ErrHandshakeNotComplete)

	_, err = host.WriteInitiationRequest(buf(), false)
	require.NoError(t, err)
	host.Destroy()
	host.Destroy()

	assert.True(t, bytes.Equal(make([]byte, 32), host.static.Private))
	_, _, err = host.Split()
	assert.ErrorIs(t, err, ErrDestroyed)
	_, err = host.WriteCompletionRequest(buf(), nil)
	assert.ErrorIs(t, err, ErrDestroyed)
}

func TestHandshakeDeterministicWithSeededBackend(t *testing.T) {
	var seed [32]byte
	seed[0] = 42
	kp, err := crypto.FromSecretKey([32]byte{7})
	require.NoError(t, err)

	first, err := NewHandshake(crypto.NewSeededBackend(seed), kp, Initiator, testProperties)
	require.NoError(t, err)
	second, err := NewHandshake(crypto.NewSeededBackend(seed), kp, Initiator, testProperties)
	require.NoError(t, err)

	m1, err := first.WriteInitiationRequest(buf(), false)
	require.NoError(t, err)
	m2, err := second.WriteInitiationRequest(buf(), false)
	require.NoError(t, err)
	assert.Equal(t, m1, m2)
}

func TestNewHandshakeRejectsNil(t *testing.T) {
	kp, err := crypto.GenerateKeyPair(crypto.DefaultBackend())
	require.NoError(t, err)

	_, err = NewHandshake(nil, kp, Initiator, nil)
	assert.Error(t, err)
	_, err = NewHandshake(crypto.DefaultBackend(), nil, Responder, nil)
	assert.Error(t, err)
}

func TestHandshakeRoleString(t *testing.T) {
	assert.Equal(t, "initiator", Initiator.String())
	assert.Equal(t, "responder", Responder.String())
}
