package transport

import (
	"fmt"

	"github.com/opd-ai/thp/limits"
)

// Reassembler copies the fragments of one message, in order, into a
// caller-supplied buffer. Out-of-order fragments are not tolerated.
type Reassembler struct {
	header    Header
	headerRaw [limits.InitHeaderLen]byte
	dst       []byte
	total     int
	filled    int
	active    bool
	done      bool
}

// Start begins a new message from its init packet, discarding any message in
// progress. It reports whether the message is already complete.
func (r *Reassembler) Start(packet, dst []byte) (bool, error) {
	r.Reset()

	h, err := ParseHeader(packet)
	if err != nil {
		return false, err
	}
	if h.Kind == KindContinuation {
		return false, fmt.Errorf("%w: continuation on channel %d without a started message", ErrMalformedData, h.ChannelID)
	}
	if int(h.Length) > len(dst) {
		return false, fmt.Errorf("%w: message of %d bytes, buffer holds %d", ErrInsufficientBuffer, h.Length, len(dst))
	}

	r.header = h
	copy(r.headerRaw[:], packet[:limits.InitHeaderLen])
	r.dst = dst
	r.total = int(h.Length)
	r.active = true
	return r.append(packet[limits.InitHeaderLen:])
}

// Feed appends a continuation packet to the message in progress.
func (r *Reassembler) Feed(packet []byte) (bool, error) {
	h, err := ParseHeader(packet)
	if err != nil {
		return false, err
	}
	if h.Kind != KindContinuation {
		return false, fmt.Errorf("%w: expected continuation, got %s", ErrMalformedData, h.Kind)
	}
	if !r.active {
		return false, fmt.Errorf("%w: continuation on channel %d without a started message", ErrMalformedData, h.ChannelID)
	}
	if h.ChannelID != r.header.ChannelID {
		return false, fmt.Errorf("%w: continuation for channel %d while assembling channel %d",
			ErrMalformedData, h.ChannelID, r.header.ChannelID)
	}
	return r.append(packet[limits.ContinuationHeaderLen:])
}

func (r *Reassembler) append(data []byte) (bool, error) {
	r.filled += copy(r.dst[r.filled:r.total], data)
	if r.filled < r.total {
		return false, nil
	}

	crcAt := r.total - limits.ChecksumLen
	if checksum(r.headerRaw[:], r.dst[:crcAt]) != readChecksum(r.dst[crcAt:r.total]) {
		id := r.header.ChannelID
		r.Reset()
		return false, fmt.Errorf("%w: checksum mismatch on channel %d", ErrMalformedData, id)
	}
	r.active = false
	r.done = true
	return true, nil
}

// Active reports whether a message is partially assembled.
func (r *Reassembler) Active() bool {
	return r.active
}

// Header returns the init header of the current or last message.
func (r *Reassembler) Header() Header {
	return r.header
}

// Payload returns the assembled payload, or nil if no message is complete.
// The slice aliases the buffer passed to Start.
func (r *Reassembler) Payload() []byte {
	if !r.done {
		return nil
	}
	return r.dst[:r.total-limits.ChecksumLen]
}

// Reset drops any message in progress. The caller's buffer is not touched.
func (r *Reassembler) Reset() {
	*r = Reassembler{}
}
