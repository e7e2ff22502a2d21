package channel

import (
	"bytes"
	"testing"

	"github.com/flynn/noise"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/thp/crypto"
	"github.com/opd-ai/thp/limits"
	"github.com/opd-ai/thp/transport"
)

const testPacketLen = 64

func newPair(t *testing.T, id uint16) (*Channel, *Channel) {
	t.Helper()
	a, err := New(id, testPacketLen)
	require.NoError(t, err)
	b, err := New(id, testPacketLen)
	require.NoError(t, err)
	return a, b
}

// pump moves every due packet from one channel to the other and returns the
// last non-empty result.
func pump(t *testing.T, from, to *Channel, recv []byte) PacketResult {
	t.Helper()
	var last PacketResult
	packet := make([]byte, testPacketLen)
	for {
		n, err := from.PacketOut(packet)
		require.NoError(t, err)
		if n == 0 {
			return last
		}
		res, err := to.PacketIn(packet[:n], recv)
		require.NoError(t, err)
		if res.AckReceived || res.MessageReady {
			last = res
		}
	}
}

func next(t *testing.T, c *Channel) []byte {
	t.Helper()
	packet := make([]byte, testPacketLen)
	n, err := c.PacketOut(packet)
	require.NoError(t, err)
	require.Equal(t, testPacketLen, n)
	return packet
}

func secure(t *testing.T, a, b *Channel) {
	t.Helper()
	suite := crypto.DefaultBackend().CipherSuite()
	var k1, k2 [32]byte
	k1[0], k2[0] = 1, 2
	require.NoError(t, a.InstallCipher(noise.UnsafeNewCipherState(suite, k1, 0), noise.UnsafeNewCipherState(suite, k2, 0)))
	require.NoError(t, b.InstallCipher(noise.UnsafeNewCipherState(suite, k2, 0), noise.UnsafeNewCipherState(suite, k1, 0)))
}

func TestNewRejectsPacketLen(t *testing.T) {
	_, err := New(1, 8)
	assert.ErrorIs(t, err, limits.ErrPacketLen)
	_, err = New(1, 1024)
	assert.ErrorIs(t, err, limits.ErrPacketLen)
}

func TestSendAndAcknowledge(t *testing.T) {
	a, b := newPair(t, 5)
	recv := make([]byte, 256)

	require.NoError(t, a.Send(transport.KindInitiationRequest, []byte{1}))
	assert.True(t, a.HasPending())

	res, err := b.PacketIn(next(t, a), recv)
	require.NoError(t, err)
	assert.Equal(t, AwaitingAck, a.State())
	assert.True(t, res.MessageReady)
	assert.False(t, res.AckReceived)
	assert.Equal(t, transport.KindInitiationRequest, res.Header.Kind)
	assert.Equal(t, []byte{1}, res.Payload)
	assert.True(t, b.HasPending())

	res, err = a.PacketIn(next(t, b), recv)
	require.NoError(t, err)
	assert.True(t, res.AckReceived)
	assert.Equal(t, Idle, a.State())
	assert.False(t, a.HasPending())
	assert.False(t, b.HasPending())
}

func TestSendWhileAwaitingAck(t *testing.T) {
	a, _ := newPair(t, 5)
	require.NoError(t, a.Send(transport.KindEncrypted, []byte("one")))
	assert.ErrorIs(t, a.Send(transport.KindEncrypted, []byte("two")), transport.ErrUnexpectedInput)

	next(t, a)
	assert.ErrorIs(t, a.Send(transport.KindEncrypted, []byte("two")), transport.ErrUnexpectedInput)
}

func TestRetransmitDuplicateIsAcknowledgedNotDelivered(t *testing.T) {
	a, b := newPair(t, 5)
	recv := make([]byte, 256)

	assert.False(t, a.Retransmit())
	require.NoError(t, a.Send(transport.KindCompletionRequest, []byte("credential")))
	first := next(t, a)

	res, err := b.PacketIn(first, recv)
	require.NoError(t, err)
	require.True(t, res.MessageReady)
	next(t, b) // ack lost

	require.True(t, a.Retransmit())
	assert.Equal(t, Retransmitting, a.State())
	again := next(t, a)
	assert.Equal(t, first, again)
	assert.Equal(t, AwaitingAck, a.State())

	res, err = b.PacketIn(again, recv)
	require.NoError(t, err)
	assert.False(t, res.MessageReady)
	require.True(t, b.HasPending())

	ack := next(t, b)
	res, err = a.PacketIn(ack, recv)
	require.NoError(t, err)
	assert.True(t, res.AckReceived)
	assert.Equal(t, Idle, a.State())

	res, err = a.PacketIn(ack, recv)
	require.NoError(t, err)
	assert.False(t, res.AckReceived)
}

func TestHandshakeResponseImpliesAck(t *testing.T) {
	a, b := newPair(t, 7)
	recv := make([]byte, 256)

	require.NoError(t, a.Send(transport.KindInitiationRequest, []byte{0}))
	_, err := b.PacketIn(next(t, a), recv)
	require.NoError(t, err)

	require.NoError(t, b.Send(transport.KindInitiationResponse, bytes.Repeat([]byte{9}, 40)))
	next(t, b) // ack lost
	res, err := a.PacketIn(next(t, b), recv)
	require.NoError(t, err)
	assert.True(t, res.AckReceived)
	assert.True(t, res.MessageReady)
	assert.Equal(t, transport.KindInitiationResponse, res.Header.Kind)
	assert.Equal(t, Idle, a.State())
}

func TestFragmentedMessage(t *testing.T) {
	a, b := newPair(t, 9)
	recv := make([]byte, 256)
	payload := bytes.Repeat([]byte{0x3C}, 150)

	require.NoError(t, a.Send(transport.KindEncrypted, payload))
	packet := make([]byte, testPacketLen)
	var packets int
	for {
		n, err := a.PacketOut(packet)
		require.NoError(t, err)
		if n == 0 {
			break
		}
		packets++
		res, err := b.PacketIn(packet, recv)
		require.NoError(t, err)
		if a.State() == AwaitingAck {
			assert.True(t, res.MessageReady)
			assert.Equal(t, payload, res.Payload)
		} else {
			assert.False(t, res.MessageReady)
		}
	}
	assert.Equal(t, 3, packets)
}

func TestPacketInCrossTalk(t *testing.T) {
	a, _ := newPair(t, 5)
	other, err := New(6, testPacketLen)
	require.NoError(t, err)

	require.NoError(t, a.Send(transport.KindEncrypted, []byte("x")))
	_, err = other.PacketIn(next(t, a), make([]byte, 64))
	assert.ErrorIs(t, err, transport.ErrMalformedData)
}

func TestPacketOutShortBuffer(t *testing.T) {
	a, _ := newPair(t, 5)
	_, err := a.PacketOut(make([]byte, 10))
	assert.ErrorIs(t, err, transport.ErrInsufficientBuffer)

	n, err := a.PacketOut(make([]byte, testPacketLen))
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestBroadcastChannel(t *testing.T) {
	c, err := New(transport.BroadcastChannelID, testPacketLen)
	require.NoError(t, err)
	assert.True(t, c.IsBroadcast())

	assert.ErrorIs(t, c.Bind(transport.BroadcastChannelID), transport.ErrMalformedData)

	require.NoError(t, c.Send(transport.KindChannelRequest, make([]byte, 32)))
	next(t, c)
	assert.Equal(t, Idle, c.State())
	assert.False(t, c.HasPending())
	assert.False(t, c.Retransmit())

	require.NoError(t, c.Bind(0x1234))
	assert.Equal(t, uint16(0x1234), c.ID())
	assert.ErrorIs(t, c.Bind(0x4321), transport.ErrUnexpectedInput)
}

func TestBindDiscardsQueuedBroadcast(t *testing.T) {
	c, err := New(transport.BroadcastChannelID, testPacketLen)
	require.NoError(t, err)

	require.NoError(t, c.Send(transport.KindChannelRequest, make([]byte, 32)))
	require.True(t, c.HasPending())

	require.NoError(t, c.Bind(0x1234))
	assert.False(t, c.HasPending())
	n, err := c.PacketOut(make([]byte, testPacketLen))
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestDuplicateKeepsUnreadMessage(t *testing.T) {
	a, b := newPair(t, 5)
	secure(t, a, b)
	recv := make([]byte, 256)

	require.NoError(t, a.MessageIn(make([]byte, 64), Message{Type: 3, Payload: []byte("hello")}))
	first := next(t, a)
	res, err := b.PacketIn(first, recv)
	require.NoError(t, err)
	require.True(t, res.MessageReady)
	next(t, b) // ack lost

	require.True(t, a.Retransmit())
	res, err = b.PacketIn(next(t, a), recv)
	require.NoError(t, err)
	assert.False(t, res.MessageReady)

	m, err := b.MessageOut(recv)
	require.NoError(t, err)
	assert.Equal(t, uint16(3), m.Type)
	assert.Equal(t, []byte("hello"), m.Payload)

	res, err = a.PacketIn(next(t, b), recv)
	require.NoError(t, err)
	assert.True(t, res.AckReceived)
}

func TestInstallCipher(t *testing.T) {
	suite := crypto.DefaultBackend().CipherSuite()
	cs := noise.UnsafeNewCipherState(suite, [32]byte{}, 0)

	broadcast, err := New(transport.BroadcastChannelID, testPacketLen)
	require.NoError(t, err)
	assert.ErrorIs(t, broadcast.InstallCipher(cs, cs), transport.ErrUnexpectedInput)

	c, err := New(3, testPacketLen)
	require.NoError(t, err)
	assert.ErrorIs(t, c.InstallCipher(nil, cs), transport.ErrUnexpectedInput)
	require.NoError(t, c.InstallCipher(cs, cs))
	assert.True(t, c.Secured())
	assert.ErrorIs(t, c.InstallCipher(cs, cs), transport.ErrUnexpectedInput)
}
