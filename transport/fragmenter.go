package transport

import (
	"fmt"

	"github.com/opd-ai/thp/limits"
)

// Fragmenter splits one queued message into fixed-length packets. The
// payload is borrowed from the caller and must stay unchanged until the
// message is acknowledged, since Rewind replays it from the start.
type Fragmenter struct {
	header  Header
	payload []byte
	crc     [limits.ChecksumLen]byte
	offset  int
	loaded  bool
}

// Load queues a message. The CRC is computed once here.
func (f *Fragmenter) Load(h Header, payload []byte) error {
	if h.Kind == KindContinuation {
		return fmt.Errorf("%w: cannot queue a continuation", ErrUnexpectedInput)
	}
	if len(payload)+limits.ChecksumLen > limits.MaxMessageLen {
		return fmt.Errorf("%w: payload of %d bytes", limits.ErrMessageTooLarge, len(payload))
	}
	h.Length = uint16(len(payload) + limits.ChecksumLen)
	if err := h.validate(); err != nil {
		return err
	}

	var raw [limits.InitHeaderLen]byte
	if _, err := h.Put(raw[:]); err != nil {
		return err
	}
	f.header = h
	f.payload = payload
	putChecksum(f.crc[:], checksum(raw[:], payload))
	f.offset = 0
	f.loaded = true
	return nil
}

// Next writes the next packet into dst, zero padded to len(dst), and
// returns len(dst). It returns 0 when every packet has been emitted.
func (f *Fragmenter) Next(dst []byte) (int, error) {
	if !f.loaded || f.Done() {
		return 0, nil
	}

	h := f.header
	if f.offset > 0 {
		h = Header{Kind: KindContinuation, ChannelID: f.header.ChannelID}
	}
	if len(dst) <= h.Size() {
		return 0, fmt.Errorf("%w: packet of %d bytes cannot carry data", ErrInsufficientBuffer, len(dst))
	}

	n, err := h.Put(dst)
	if err != nil {
		return 0, err
	}
	for n < len(dst) && !f.Done() {
		var c int
		if f.offset < len(f.payload) {
			c = copy(dst[n:], f.payload[f.offset:])
		} else {
			c = copy(dst[n:], f.crc[f.offset-len(f.payload):])
		}
		n += c
		f.offset += c
	}
	clear(dst[n:])
	return len(dst), nil
}

// Header returns the header of the queued message.
func (f *Fragmenter) Header() Header {
	return f.header
}

// Loaded reports whether a message is queued.
func (f *Fragmenter) Loaded() bool {
	return f.loaded
}

// Started reports whether at least one packet of the queued message was emitted.
func (f *Fragmenter) Started() bool {
	return f.loaded && f.offset > 0
}

// Done reports whether every packet of the queued message was emitted.
func (f *Fragmenter) Done() bool {
	return f.loaded && f.offset >= len(f.payload)+limits.ChecksumLen
}

// Rewind restarts emission from the first packet.
func (f *Fragmenter) Rewind() {
	f.offset = 0
}

// Clear forgets the queued message.
func (f *Fragmenter) Clear() {
	*f = Fragmenter{}
}
