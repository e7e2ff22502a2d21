package transport

import (
	"fmt"

	"github.com/opd-ai/thp/limits"
)

// Encode writes a self-contained message as a single init packet into dst.
// The Length field of h is computed from payload. Bytes of dst after the
// message are zeroed. It returns the number of meaningful bytes written.
func Encode(dst []byte, h Header, payload []byte) (int, error) {
	if h.Kind == KindContinuation {
		return 0, fmt.Errorf("%w: cannot encode a continuation as a message", ErrUnexpectedInput)
	}
	need := limits.InitHeaderLen + len(payload) + limits.ChecksumLen
	if len(dst) < need {
		return 0, fmt.Errorf("%w: message needs %d bytes, packet has %d", ErrInsufficientBuffer, need, len(dst))
	}
	h.Length = uint16(len(payload) + limits.ChecksumLen)
	if err := h.validate(); err != nil {
		return 0, err
	}

	n, err := h.Put(dst)
	if err != nil {
		return 0, err
	}
	n += copy(dst[n:], payload)
	putChecksum(dst[n:], checksum(dst[:n]))
	n += limits.ChecksumLen
	clear(dst[n:])
	return n, nil
}

// Single parses a self-contained packet and verifies its checksum. The
// returned payload is a view into packet.
func Single(packet []byte) (Header, []byte, error) {
	h, err := ParseHeader(packet)
	if err != nil {
		return h, nil, err
	}
	if h.Kind == KindContinuation {
		return h, nil, fmt.Errorf("%w: continuation without init packet", ErrMalformedData)
	}
	end := limits.InitHeaderLen + int(h.Length)
	if end > len(packet) {
		return h, nil, fmt.Errorf("%w: declared length %d exceeds packet of %d bytes", ErrMalformedData, h.Length, len(packet))
	}
	crcAt := end - limits.ChecksumLen
	if checksum(packet[:crcAt]) != readChecksum(packet[crcAt:end]) {
		return h, nil, fmt.Errorf("%w: checksum mismatch on channel %d", ErrMalformedData, h.ChannelID)
	}
	return h, packet[limits.InitHeaderLen:crcAt], nil
}

// EncodeAck writes an acknowledgement for the given sequence bit.
func EncodeAck(dst []byte, channelID uint16, bit uint8) (int, error) {
	return Encode(dst, Header{Kind: KindAck, ChannelID: channelID, Bit: bit}, nil)
}

// EncodeError writes a transport error packet.
func EncodeError(dst []byte, channelID uint16, code ErrorCode) (int, error) {
	return Encode(dst, Header{Kind: KindError, ChannelID: channelID}, []byte{byte(code)})
}

// ParseError decodes the payload of an error packet.
func ParseError(h Header, payload []byte) (*TransportError, error) {
	if h.Kind != KindError || len(payload) != 1 {
		return nil, fmt.Errorf("%w: not a transport error packet", ErrMalformedData)
	}
	return &TransportError{Code: ErrorCode(payload[0]), ChannelID: h.ChannelID}, nil
}
