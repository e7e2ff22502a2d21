package thp

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/thp/channel"
	"github.com/opd-ai/thp/credential"
	"github.com/opd-ai/thp/crypto"
	"github.com/opd-ai/thp/limits"
	"github.com/opd-ai/thp/noise"
	"github.com/opd-ai/thp/transport"
)

// ChannelOpen drives one channel through allocation and the Noise handshake.
// It is created by NewHostChannelOpen or NewDeviceChannelOpen.
type ChannelOpen struct {
	role      role
	table     map[transition]step
	opts      *Options
	channel   *channel.Channel
	handshake *noise.Handshake
	state     OpenState
	pairing   credential.PairingState
	completed bool

	sendBuf [limits.HandshakeBufferLen]byte
	recvBuf [limits.HandshakeBufferLen]byte
	credBuf [limits.MaxCredentialLen]byte
	errBuf  [1]byte
}

func newChannelOpen(r role, opts *Options, state OpenState) (*ChannelOpen, error) {
	if opts == nil {
		opts = NewOptions()
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}
	ch, err := channel.New(transport.BroadcastChannelID, opts.PacketLen)
	if err != nil {
		return nil, err
	}
	return &ChannelOpen{
		role:    r,
		table:   r.transitions(),
		opts:    opts,
		channel: ch,
		state:   state,
	}, nil
}

// State returns the current state.
func (o *ChannelOpen) State() OpenState { return o.state }

// Failed reports whether the handshake failed.
func (o *ChannelOpen) Failed() bool { return o.state == StateFailed }

// ChannelID returns the allocated channel id, or 0 before allocation.
func (o *ChannelOpen) ChannelID() uint16 {
	if o.channel == nil {
		return 0
	}
	return o.channel.ID()
}

// PairingState returns the pairing state agreed in the handshake. It is
// meaningful once HandshakeDone reports true.
func (o *ChannelOpen) PairingState() credential.PairingState { return o.pairing }

// HandshakeDone reports whether the handshake finished and every packet,
// acknowledgements included, was exchanged.
func (o *ChannelOpen) HandshakeDone() bool {
	return !o.completed && o.state == o.role.finalState() && !o.channel.HasPending()
}

// PacketIn consumes one inbound packet. Corrupt packets are rejected with
// ErrMalformedData and leave the state unchanged; protocol violations move
// the ChannelOpen to StateFailed.
func (o *ChannelOpen) PacketIn(packet []byte) error {
	if o.completed {
		return fmt.Errorf("%w: channel open already completed", ErrUnexpectedInput)
	}
	if o.state == StateFailed {
		return fmt.Errorf("%w: channel open failed", ErrUnexpectedInput)
	}

	h, err := transport.ParseHeader(packet)
	if err != nil {
		return o.reject(err)
	}
	switch {
	case h.Kind == transport.KindChannelRequest:
		return o.reject(fmt.Errorf("%w: allocation request is for the allocator", ErrUnexpectedInput))
	case h.Kind == transport.KindChannelResponse && !o.channel.IsBroadcast():
		if _, _, err := transport.Single(packet); err != nil {
			return o.reject(err)
		}
		return o.fail(fmt.Errorf("%w: allocation response after channel %d was allocated",
			ErrUnexpectedInput, o.channel.ID()))
	case h.Kind == transport.KindEncrypted && o.state == o.role.finalState():
		return o.reject(fmt.Errorf("%w: encrypted message before Complete", ErrUnexpectedInput))
	}

	res, err := o.channel.PacketIn(packet, o.recvBuf[:])
	if err != nil {
		return o.reject(err)
	}
	if res.AckReceived {
		crypto.ZeroBytes(o.sendBuf[:])
	}
	if !res.MessageReady {
		return nil
	}
	defer crypto.ZeroBytes(o.recvBuf[:])

	if res.Header.Kind == transport.KindError {
		te, err := transport.ParseError(res.Header, res.Payload)
		if err != nil {
			return o.fail(err)
		}
		logrus.WithFields(logrus.Fields{
			"function":   "PacketIn",
			"role":       o.role.handshakeRole().String(),
			"channel_id": te.ChannelID,
			"code":       te.Code.String(),
		}).Warn("Peer reported transport error")
		return o.fail(te)
	}

	next, ok := o.table[transition{o.state, res.Header.Kind}]
	if !ok {
		return o.fail(fmt.Errorf("%w: %s in state %s", ErrUnexpectedInput, res.Header.Kind, o.state))
	}
	state, err := next(o, res.Payload)
	if err != nil {
		return o.fail(err)
	}

	logrus.WithFields(logrus.Fields{
		"function":   "PacketIn",
		"role":       o.role.handshakeRole().String(),
		"channel_id": o.channel.ID(),
		"from":       o.state.String(),
		"to":         state.String(),
	}).Info("Channel open state transition")
	o.state = state
	return nil
}

// PacketOut writes the next due packet and returns its length, or 0 when
// nothing is due. It still works after failure so that a queued error
// packet can be flushed.
func (o *ChannelOpen) PacketOut(packet []byte) (int, error) {
	if o.completed {
		return 0, fmt.Errorf("%w: channel open already completed", ErrUnexpectedInput)
	}
	wasBroadcast := o.channel.IsBroadcast()
	n, err := o.channel.PacketOut(packet)
	if err != nil || n == 0 {
		return n, err
	}
	if wasBroadcast && !o.channel.HasPending() {
		crypto.ZeroBytes(o.sendBuf[:])
		if o.state != StateFailed {
			if err := o.role.afterBroadcast(o); err != nil {
				return n, o.fail(err)
			}
		}
	}
	return n, nil
}

// Retransmit restarts the unacknowledged message. It reports whether
// anything was queued for sending.
func (o *ChannelOpen) Retransmit() bool {
	if o.completed || o.state == StateFailed {
		return false
	}
	if o.role.retransmitAllocation(o) {
		return true
	}
	return o.channel.Retransmit()
}

// HasPending reports whether packets remain to be sent or acknowledged.
func (o *ChannelOpen) HasPending() bool {
	return !o.completed && o.channel.HasPending()
}

// Complete converts a finished ChannelOpen into a ChannelPairing. The
// ChannelOpen is unusable afterwards.
func (o *ChannelOpen) Complete() (*ChannelPairing, error) {
	if !o.HandshakeDone() {
		return nil, fmt.Errorf("%w: handshake not done in state %s", ErrUnexpectedInput, o.state)
	}
	if !o.channel.Secured() {
		return nil, fmt.Errorf("%w: no cipher installed", ErrUnexpectedInput)
	}

	p := &ChannelPairing{
		role:    o.role.handshakeRole(),
		channel: o.channel,
		pairing: o.pairing,
	}
	o.channel = nil
	o.completed = true
	o.wipe()
	return p, nil
}

// queue places msg, which must live in sendBuf, on the channel.
func (o *ChannelOpen) queue(kind transport.Kind, msg []byte) error {
	return o.channel.Send(kind, msg)
}

// reject logs a packet-level error that leaves the state unchanged.
func (o *ChannelOpen) reject(err error) error {
	logrus.WithFields(logrus.Fields{
		"function": "PacketIn",
		"role":     o.role.handshakeRole().String(),
		"state":    o.state.String(),
		"error":    err.Error(),
	}).Debug("Packet rejected")
	return err
}

// fail moves to StateFailed and wipes all transient secrets.
func (o *ChannelOpen) fail(err error) error {
	logrus.WithFields(logrus.Fields{
		"function":   "fail",
		"role":       o.role.handshakeRole().String(),
		"channel_id": o.channel.ID(),
		"state":      o.state.String(),
		"error":      err.Error(),
	}).Warn("Channel open failed")

	o.state = StateFailed
	o.wipe()
	return err
}

func (o *ChannelOpen) wipe() {
	if o.handshake != nil {
		o.handshake.Destroy()
		o.handshake = nil
	}
	crypto.ZeroBytes(o.sendBuf[:])
	crypto.ZeroBytes(o.recvBuf[:])
	crypto.ZeroBytes(o.credBuf[:])
}
