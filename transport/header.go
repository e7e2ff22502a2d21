package transport

import (
	"encoding/binary"
	"fmt"

	"github.com/opd-ai/thp/limits"
)

// BroadcastChannelID is reserved for channel allocation traffic.
const BroadcastChannelID uint16 = 0

const (
	seqBit = 0x10
	ackBit = 0x08

	ctrlHandshakeBase   = 0x00
	ctrlAck             = 0x20
	ctrlChannelRequest  = 0x40
	ctrlChannelResponse = 0x41
	ctrlError           = 0x42
	ctrlContinuation    = 0x80
)

// Kind is the logical packet category encoded in the control byte.
type Kind uint8

const (
	KindInitiationRequest Kind = iota
	KindInitiationResponse
	KindCompletionRequest
	KindCompletionResponse
	KindEncrypted
	KindAck
	KindChannelRequest
	KindChannelResponse
	KindError
	KindContinuation
)

var kindNames = [...]string{
	KindInitiationRequest:  "InitiationRequest",
	KindInitiationResponse: "InitiationResponse",
	KindCompletionRequest:  "CompletionRequest",
	KindCompletionResponse: "CompletionResponse",
	KindEncrypted:          "Encrypted",
	KindAck:                "Ack",
	KindChannelRequest:     "ChannelAllocationRequest",
	KindChannelResponse:    "ChannelAllocationResponse",
	KindError:              "TransportError",
	KindContinuation:       "Continuation",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// IsHandshake reports whether k is one of the four handshake phases.
func (k Kind) IsHandshake() bool {
	return k <= KindCompletionResponse
}

// Sequenced reports whether messages of kind k carry a sequence bit and
// must be acknowledged.
func (k Kind) Sequenced() bool {
	return k <= KindEncrypted
}

// Header is a parsed packet header.
type Header struct {
	Kind      Kind
	ChannelID uint16
	// Bit is the sequence bit of a sequenced message or the ack bit of an Ack.
	Bit uint8
	// Length counts payload and CRC. Zero for continuation packets.
	Length uint16
}

// Control returns the control byte for h.
func (h Header) Control() byte {
	switch {
	case h.Kind.Sequenced():
		c := byte(ctrlHandshakeBase + h.Kind)
		if h.Bit != 0 {
			c |= seqBit
		}
		return c
	case h.Kind == KindAck:
		if h.Bit != 0 {
			return ctrlAck | ackBit
		}
		return ctrlAck
	case h.Kind == KindChannelRequest:
		return ctrlChannelRequest
	case h.Kind == KindChannelResponse:
		return ctrlChannelResponse
	case h.Kind == KindError:
		return ctrlError
	default:
		return ctrlContinuation
	}
}

// Size returns the encoded header length.
func (h Header) Size() int {
	if h.Kind == KindContinuation {
		return limits.ContinuationHeaderLen
	}
	return limits.InitHeaderLen
}

// PayloadLen returns the payload length declared by an init header.
func (h Header) PayloadLen() int {
	return int(h.Length) - limits.ChecksumLen
}

// Put writes the header into dst and returns the number of bytes written.
func (h Header) Put(dst []byte) (int, error) {
	n := h.Size()
	if len(dst) < n {
		return 0, fmt.Errorf("%w: header needs %d bytes, have %d", ErrInsufficientBuffer, n, len(dst))
	}
	dst[0] = h.Control()
	binary.BigEndian.PutUint16(dst[1:3], h.ChannelID)
	if n == limits.InitHeaderLen {
		binary.BigEndian.PutUint16(dst[3:5], h.Length)
	}
	return n, nil
}

// ParseHeader decodes and validates the header at the start of packet.
func ParseHeader(packet []byte) (Header, error) {
	var h Header
	if len(packet) < limits.ContinuationHeaderLen {
		return h, fmt.Errorf("%w: packet of %d bytes is shorter than a header", ErrMalformedData, len(packet))
	}

	ctrl := packet[0]
	h.ChannelID = binary.BigEndian.Uint16(packet[1:3])

	switch {
	case ctrl == ctrlContinuation:
		h.Kind = KindContinuation
		return h, nil
	case ctrl == ctrlChannelRequest:
		h.Kind = KindChannelRequest
	case ctrl == ctrlChannelResponse:
		h.Kind = KindChannelResponse
	case ctrl == ctrlError:
		h.Kind = KindError
	case ctrl&^ackBit == ctrlAck:
		h.Kind = KindAck
		h.Bit = (ctrl & ackBit) >> 3
	case ctrl&^seqBit <= byte(KindEncrypted):
		h.Kind = Kind(ctrl &^ seqBit)
		h.Bit = (ctrl & seqBit) >> 4
	default:
		return h, fmt.Errorf("%w: unknown control byte 0x%02x", ErrMalformedData, ctrl)
	}

	if len(packet) < limits.InitHeaderLen {
		return h, fmt.Errorf("%w: init packet of %d bytes is shorter than its header", ErrMalformedData, len(packet))
	}
	h.Length = binary.BigEndian.Uint16(packet[3:5])

	if err := h.validate(); err != nil {
		return h, err
	}
	return h, nil
}

func (h Header) validate() error {
	if h.Length < limits.ChecksumLen || int(h.Length) > limits.MaxMessageLen {
		return fmt.Errorf("%w: declared length %d out of range", ErrMalformedData, h.Length)
	}

	broadcast := h.ChannelID == BroadcastChannelID
	switch h.Kind {
	case KindChannelRequest, KindChannelResponse:
		if !broadcast {
			return fmt.Errorf("%w: %s on channel %d", ErrMalformedData, h.Kind, h.ChannelID)
		}
	case KindAck:
		if broadcast {
			return fmt.Errorf("%w: ack on broadcast channel", ErrMalformedData)
		}
		if h.Length != limits.ChecksumLen {
			return fmt.Errorf("%w: ack with payload", ErrMalformedData)
		}
	case KindError:
		if h.Length != 1+limits.ChecksumLen {
			return fmt.Errorf("%w: error packet length %d", ErrMalformedData, h.Length)
		}
	default:
		if broadcast {
			return fmt.Errorf("%w: %s on broadcast channel", ErrMalformedData, h.Kind)
		}
	}
	return nil
}
