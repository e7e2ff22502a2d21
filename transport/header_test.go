package transport

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeaderControl(t *testing.T) {
	tests := []struct {
		header Header
		want   byte
	}{
		{Header{Kind: KindInitiationRequest}, 0x00},
		{Header{Kind: KindInitiationRequest, Bit: 1}, 0x10},
		{Header{Kind: KindInitiationResponse, Bit: 1}, 0x11},
		{Header{Kind: KindCompletionRequest}, 0x02},
		{Header{Kind: KindCompletionResponse, Bit: 1}, 0x13},
		{Header{Kind: KindEncrypted, Bit: 1}, 0x14},
		{Header{Kind: KindAck}, 0x20},
		{Header{Kind: KindAck, Bit: 1}, 0x28},
		{Header{Kind: KindChannelRequest}, 0x40},
		{Header{Kind: KindChannelResponse}, 0x41},
		{Header{Kind: KindError}, 0x42},
		{Header{Kind: KindContinuation}, 0x80},
	}
	for _, tt := range tests {
		t.Run(tt.header.Kind.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.header.Control())
		})
	}
}

func TestEncodeParseRoundTrip(t *testing.T) {
	nonce := bytes.Repeat([]byte{0xA5}, 32)
	tests := []struct {
		name    string
		header  Header
		payload []byte
	}{
		{"initiation request", Header{Kind: KindInitiationRequest, ChannelID: 0x1234}, []byte{1}},
		{"initiation response", Header{Kind: KindInitiationResponse, ChannelID: 0x1234, Bit: 1}, bytes.Repeat([]byte{7}, 48)},
		{"completion request", Header{Kind: KindCompletionRequest, ChannelID: 2}, []byte{9, 9}},
		{"completion response", Header{Kind: KindCompletionResponse, ChannelID: 2, Bit: 1}, []byte{3}},
		{"encrypted", Header{Kind: KindEncrypted, ChannelID: 0xFFFF, Bit: 1}, []byte("hello")},
		{"ack", Header{Kind: KindAck, ChannelID: 5, Bit: 1}, nil},
		{"channel request", Header{Kind: KindChannelRequest}, nonce},
		{"channel response", Header{Kind: KindChannelResponse}, append(append([]byte{}, nonce...), 0x12, 0x34)},
		{"error", Header{Kind: KindError, ChannelID: 9}, []byte{byte(ErrorDeviceLocked)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			packet := make([]byte, 64)
			n, err := Encode(packet, tt.header, tt.payload)
			require.NoError(t, err)
			assert.Equal(t, 5+len(tt.payload)+4, n)

			h, payload, err := Single(packet)
			require.NoError(t, err)
			assert.Equal(t, tt.header.Kind, h.Kind)
			assert.Equal(t, tt.header.ChannelID, h.ChannelID)
			assert.Equal(t, tt.header.Bit, h.Bit)
			assert.Equal(t, len(tt.payload), h.PayloadLen())
			assert.Equal(t, len(tt.payload), len(payload))
			if len(tt.payload) > 0 {
				assert.Equal(t, tt.payload, payload)
			}
		})
	}
}

func TestParseHeaderMalformed(t *testing.T) {
	tests := []struct {
		name   string
		packet []byte
	}{
		{"empty", nil},
		{"two bytes", []byte{0x80, 0x00}},
		{"short init header", []byte{0x40, 0x00, 0x00}},
		{"unknown control 0x05", []byte{0x05, 0x00, 0x01, 0x00, 0x08}},
		{"unknown control 0x30", []byte{0x30, 0x00, 0x01, 0x00, 0x04}},
		{"unknown control 0xff", []byte{0xFF, 0x00, 0x01, 0x00, 0x04}},
		{"length below checksum", []byte{0x04, 0x00, 0x01, 0x00, 0x03}},
		{"length above maximum", []byte{0x04, 0x00, 0x01, 0xEA, 0x61}},
		{"channel request off broadcast", []byte{0x40, 0x00, 0x01, 0x00, 0x24}},
		{"channel response off broadcast", []byte{0x41, 0x12, 0x34, 0x00, 0x24}},
		{"encrypted on broadcast", []byte{0x04, 0x00, 0x00, 0x00, 0x0A}},
		{"handshake on broadcast", []byte{0x00, 0x00, 0x00, 0x00, 0x05}},
		{"ack on broadcast", []byte{0x20, 0x00, 0x00, 0x00, 0x04}},
		{"ack with payload", []byte{0x28, 0x00, 0x01, 0x00, 0x08}},
		{"error without code", []byte{0x42, 0x00, 0x01, 0x00, 0x04}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseHeader(tt.packet)
			assert.ErrorIs(t, err, ErrMalformedData)
		})
	}
}

func TestParseHeaderContinuation(t *testing.T) {
	h, err := ParseHeader([]byte{0x80, 0x12, 0x34, 0xAA})
	require.NoError(t, err)
	assert.Equal(t, KindContinuation, h.Kind)
	assert.Equal(t, uint16(0x1234), h.ChannelID)
	assert.Equal(t, 3, h.Size())
}

func TestKindPredicates(t *testing.T) {
	assert.True(t, KindInitiationRequest.IsHandshake())
	assert.True(t, KindCompletionResponse.IsHandshake())
	assert.False(t, KindEncrypted.IsHandshake())
	assert.True(t, KindEncrypted.Sequenced())
	assert.False(t, KindAck.Sequenced())
	assert.False(t, KindChannelRequest.Sequenced())
	assert.Equal(t, "Kind(42)", Kind(42).String())
}
