package channel

import (
	"testing"

	"github.com/flynn/noise"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/thp/crypto"
	"github.com/opd-ai/thp/transport"
)

func TestMessageRoundTrip(t *testing.T) {
	a, b := newPair(t, 0x0101)
	secure(t, a, b)
	send := make([]byte, 256)
	recv := make([]byte, 256)

	require.NoError(t, a.MessageIn(send, Message{SessionID: 2, Type: 1009, Payload: []byte("ping")}))
	res := pump(t, a, b, recv)
	require.True(t, res.MessageReady)
	assert.Equal(t, transport.KindEncrypted, res.Header.Kind)
	assert.Len(t, res.Payload, 3+4+16)

	m, err := b.MessageOut(recv)
	require.NoError(t, err)
	assert.Equal(t, uint8(2), m.SessionID)
	assert.Equal(t, uint16(1009), m.Type)
	assert.Equal(t, []byte("ping"), m.Payload)

	_, err = b.MessageOut(recv)
	assert.ErrorIs(t, err, transport.ErrUnexpectedInput)

	res = pump(t, b, a, recv)
	assert.True(t, res.AckReceived)

	require.NoError(t, b.MessageIn(send, Message{SessionID: 2, Type: 7, Payload: []byte("pong")}))
	pump(t, b, a, recv)
	m, err = a.MessageOut(recv)
	require.NoError(t, err)
	assert.Equal(t, []byte("pong"), m.Payload)
}

func TestMessageInPayloadAliasesBuffer(t *testing.T) {
	a, b := newPair(t, 4)
	secure(t, a, b)
	send := make([]byte, 64)
	copy(send[3:], "aliased")
	recv := make([]byte, 64)

	require.NoError(t, a.MessageIn(send, Message{Type: 1, Payload: send[3:10]}))
	pump(t, a, b, recv)
	m, err := b.MessageOut(recv)
	require.NoError(t, err)
	assert.Equal(t, []byte("aliased"), m.Payload)
}

func TestMessageRequiresCipher(t *testing.T) {
	a, b := newPair(t, 4)
	send := make([]byte, 64)
	assert.ErrorIs(t, a.MessageIn(send, Message{Type: 1}), transport.ErrUnexpectedInput)

	require.NoError(t, a.Send(transport.KindEncrypted, []byte("plain")))
	recv := make([]byte, 64)
	pump(t, a, b, recv)
	_, err := b.MessageOut(recv)
	assert.ErrorIs(t, err, transport.ErrUnexpectedInput)
}

func TestMessageInInsufficientBuffer(t *testing.T) {
	a, b := newPair(t, 4)
	secure(t, a, b)
	err := a.MessageIn(make([]byte, 20), Message{Type: 1, Payload: []byte("too long")})
	assert.ErrorIs(t, err, transport.ErrInsufficientBuffer)
}

func TestMessageInOutstanding(t *testing.T) {
	a, b := newPair(t, 4)
	secure(t, a, b)
	send := make([]byte, 64)
	require.NoError(t, a.MessageIn(send, Message{Type: 1}))
	assert.ErrorIs(t, a.MessageIn(make([]byte, 64), Message{Type: 2}), transport.ErrUnexpectedInput)
}

func TestMessageOutWrongKey(t *testing.T) {
	a, b := newPair(t, 4)
	suite := crypto.DefaultBackend().CipherSuite()
	require.NoError(t, a.InstallCipher(noise.UnsafeNewCipherState(suite, [32]byte{1}, 0), noise.UnsafeNewCipherState(suite, [32]byte{2}, 0)))
	require.NoError(t, b.InstallCipher(noise.UnsafeNewCipherState(suite, [32]byte{2}, 0), noise.UnsafeNewCipherState(suite, [32]byte{3}, 0)))

	send := make([]byte, 64)
	recv := make([]byte, 64)
	require.NoError(t, a.MessageIn(send, Message{Type: 1, Payload: []byte("secret")}))
	pump(t, a, b, recv)

	_, err := b.MessageOut(recv)
	assert.ErrorIs(t, err, transport.ErrMalformedData)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "Idle", Idle.String())
	assert.Equal(t, "AwaitingAck", AwaitingAck.String())
	assert.Equal(t, "Retransmitting", Retransmitting.String())
	assert.Equal(t, "State(9)", State(9).String())
}
