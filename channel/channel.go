package channel

import (
	"fmt"

	"github.com/flynn/noise"
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/thp/limits"
	"github.com/opd-ai/thp/transport"
)

// PacketResult reports what a single inbound packet completed.
type PacketResult struct {
	// AckReceived is set when the outstanding message was acknowledged,
	// explicitly or implicitly by a handshake response.
	AckReceived bool
	// MessageReady is set when a whole new message was assembled.
	MessageReady bool
	// Header is the init header of the assembled message.
	Header transport.Header
	// Payload is a view into the receive buffer passed to PacketIn.
	Payload []byte
}

// Channel is one logical THP connection.
type Channel struct {
	id        uint16
	packetLen int
	state     State

	sendBit    uint8
	recvBit    uint8
	ackPending bool
	ackBit     uint8

	out transport.Fragmenter
	in  transport.Reassembler

	last    transport.Header
	lastLen int
	ready   bool

	send *noise.CipherState
	recv *noise.CipherState
}

// New creates a channel with the given id and packet length.
func New(id uint16, packetLen int) (*Channel, error) {
	if err := limits.ValidatePacketLen(packetLen); err != nil {
		return nil, err
	}
	return &Channel{id: id, packetLen: packetLen}, nil
}

// ID returns the channel id.
func (c *Channel) ID() uint16 { return c.id }

// PacketLen returns the fixed packet length of the channel.
func (c *Channel) PacketLen() int { return c.packetLen }

// IsBroadcast reports whether the channel still uses the broadcast id.
func (c *Channel) IsBroadcast() bool { return c.id == transport.BroadcastChannelID }

// State returns the acknowledgement state.
func (c *Channel) State() State { return c.state }

// Secured reports whether cipher states are installed.
func (c *Channel) Secured() bool { return c.send != nil }

// Bind moves a broadcast channel to its allocated id. Sequence bits restart.
// An unsequenced broadcast message that is still queued is discarded.
func (c *Channel) Bind(id uint16) error {
	if !c.IsBroadcast() {
		return fmt.Errorf("%w: channel already bound to %d", transport.ErrUnexpectedInput, c.id)
	}
	if id == transport.BroadcastChannelID {
		return fmt.Errorf("%w: cannot bind to the broadcast id", transport.ErrMalformedData)
	}
	if c.out.Loaded() && !c.out.Header().Kind.Sequenced() && c.state == Idle {
		c.out.Clear()
	}
	if c.HasPending() {
		return fmt.Errorf("%w: broadcast output still pending", transport.ErrUnexpectedInput)
	}

	logrus.WithFields(logrus.Fields{
		"function":   "Bind",
		"channel_id": id,
	}).Debug("Channel bound")

	c.id = id
	c.sendBit, c.recvBit = 0, 0
	c.in.Reset()
	c.ready = false
	return nil
}

// InstallCipher hands the directional cipher states to the channel. It may
// be called once, on a bound channel.
func (c *Channel) InstallCipher(send, recv *noise.CipherState) error {
	if send == nil || recv == nil {
		return fmt.Errorf("%w: nil cipher state", transport.ErrUnexpectedInput)
	}
	if c.IsBroadcast() {
		return fmt.Errorf("%w: cannot secure the broadcast channel", transport.ErrUnexpectedInput)
	}
	if c.Secured() {
		return fmt.Errorf("%w: cipher already installed on channel %d", transport.ErrUnexpectedInput, c.id)
	}
	c.send, c.recv = send, recv
	return nil
}

// Send queues a raw message. The payload is borrowed until the message is
// acknowledged, or until its last packet is emitted for unsequenced kinds.
func (c *Channel) Send(kind transport.Kind, payload []byte) error {
	if c.state != Idle || c.out.Loaded() {
		return fmt.Errorf("%w: channel %d is %s with a message outstanding",
			transport.ErrUnexpectedInput, c.id, c.state)
	}

	h := transport.Header{Kind: kind, ChannelID: c.id}
	if kind.Sequenced() {
		h.Bit = c.sendBit
	}
	if err := c.out.Load(h, payload); err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{
		"function":   "Send",
		"channel_id": c.id,
		"kind":       kind.String(),
		"length":     len(payload),
	}).Debug("Message queued")
	return nil
}

// Retransmit restarts emission of the unacknowledged message. It reports
// false when nothing is waiting for an acknowledgement.
func (c *Channel) Retransmit() bool {
	if c.state == Idle || !c.out.Done() {
		return false
	}
	c.out.Rewind()
	c.state = Retransmitting

	logrus.WithFields(logrus.Fields{
		"function":   "Retransmit",
		"channel_id": c.id,
		"kind":       c.out.Header().Kind.String(),
	}).Debug("Retransmitting message")
	return true
}

// HasPending reports whether an ack must be sent, fragments remain unsent or
// the last message is unacknowledged.
func (c *Channel) HasPending() bool {
	return c.ackPending || (c.out.Loaded() && !c.out.Done()) || c.state != Idle
}

// PacketOut writes the next due packet into packet and returns its length,
// or 0 when nothing is due. A pending ack goes before message fragments.
func (c *Channel) PacketOut(packet []byte) (int, error) {
	if len(packet) < c.packetLen {
		return 0, fmt.Errorf("%w: packet buffer of %d bytes, need %d",
			transport.ErrInsufficientBuffer, len(packet), c.packetLen)
	}
	packet = packet[:c.packetLen]

	if c.ackPending {
		if _, err := transport.EncodeAck(packet, c.id, c.ackBit); err != nil {
			return 0, err
		}
		c.ackPending = false
		return c.packetLen, nil
	}

	if !c.out.Loaded() || c.out.Done() {
		return 0, nil
	}
	n, err := c.out.Next(packet)
	if err != nil {
		return 0, err
	}
	if c.out.Done() {
		if c.out.Header().Kind.Sequenced() {
			c.state = AwaitingAck
		} else {
			c.out.Clear()
			c.state = Idle
		}
	}
	return n, nil
}

// PacketIn consumes one inbound packet, assembling it into recv. Duplicate
// sequenced messages are acknowledged again but not delivered.
func (c *Channel) PacketIn(packet, recv []byte) (PacketResult, error) {
	var res PacketResult

	h, err := transport.ParseHeader(packet)
	if err != nil {
		return res, err
	}
	if h.ChannelID != c.id {
		return res, fmt.Errorf("%w: packet for channel %d on channel %d",
			transport.ErrMalformedData, h.ChannelID, c.id)
	}

	if h.Kind == transport.KindAck {
		if _, _, err := transport.Single(packet); err != nil {
			return res, err
		}
		if c.awaiting() && h.Bit == c.sendBit {
			c.acknowledged()
			res.AckReceived = true
		}
		return res, nil
	}

	var done bool
	if h.Kind == transport.KindContinuation {
		done, err = c.in.Feed(packet)
	} else {
		if !h.Kind.Sequenced() || h.Bit == c.recvBit {
			c.ready = false
		}
		done, err = c.in.Start(packet, recv)
	}
	if err != nil || !done {
		return res, err
	}

	h = c.in.Header()
	payload := c.in.Payload()
	if h.Kind.Sequenced() {
		c.ackPending = true
		c.ackBit = h.Bit
		if h.Bit != c.recvBit {
			logrus.WithFields(logrus.Fields{
				"function":   "PacketIn",
				"channel_id": c.id,
				"kind":       h.Kind.String(),
			}).Debug("Duplicate message acknowledged again")
			return res, nil
		}
		c.recvBit ^= 1

		if h.Kind.IsHandshake() && c.awaiting() {
			c.acknowledged()
			res.AckReceived = true
		}
	}

	c.last = h
	c.lastLen = len(payload)
	c.ready = true
	res.MessageReady = true
	res.Header = h
	res.Payload = payload
	return res, nil
}

func (c *Channel) awaiting() bool {
	return c.state == AwaitingAck || c.state == Retransmitting
}

func (c *Channel) acknowledged() {
	c.out.Clear()
	c.state = Idle
	c.sendBit ^= 1
}
