package thp

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/thp/channel"
	"github.com/opd-ai/thp/credential"
	"github.com/opd-ai/thp/noise"
	"github.com/opd-ai/thp/transport"
)

// ChannelPairing carries the encrypted pairing dialogue that follows the
// handshake. The application runs the dialogue; ChannelPairing only watches
// for the end-of-pairing response.
type ChannelPairing struct {
	role      noise.HandshakeRole
	channel   *channel.Channel
	pairing   credential.PairingState
	finished  bool
	completed bool
	err       error
}

func (p *ChannelPairing) check() error {
	if p.completed {
		return fmt.Errorf("%w: channel pairing already completed", ErrUnexpectedInput)
	}
	if p.err != nil {
		return fmt.Errorf("%w: channel pairing failed: %v", ErrUnexpectedInput, p.err)
	}
	return nil
}

// Failed reports whether a message failed to decrypt. A failed pairing
// rejects every later call.
func (p *ChannelPairing) Failed() bool { return p.err != nil }

func (p *ChannelPairing) fail(err error) {
	p.err = err
	logrus.WithFields(logrus.Fields{
		"function":   "ChannelPairing",
		"role":       p.role.String(),
		"channel_id": p.channel.ID(),
		"error":      err.Error(),
	}).Warn("Pairing failed")
}

// ChannelID returns the channel id, or 0 after Complete.
func (p *ChannelPairing) ChannelID() uint16 {
	if p.channel == nil {
		return 0
	}
	return p.channel.ID()
}

// PairingState returns the pairing state agreed in the handshake.
func (p *ChannelPairing) PairingState() credential.PairingState { return p.pairing }

// PacketIn consumes one inbound packet, assembling it into recv.
func (p *ChannelPairing) PacketIn(packet, recv []byte) (channel.PacketResult, error) {
	if err := p.check(); err != nil {
		return channel.PacketResult{}, err
	}
	res, err := p.channel.PacketIn(packet, recv)
	if err != nil {
		return res, err
	}
	if res.MessageReady && res.Header.Kind != transport.KindEncrypted {
		return channel.PacketResult{}, fmt.Errorf("%w: %s after the handshake", ErrUnexpectedInput, res.Header.Kind)
	}
	return res, nil
}

// PacketOut writes the next due packet and returns its length.
func (p *ChannelPairing) PacketOut(packet []byte) (int, error) {
	if err := p.check(); err != nil {
		return 0, err
	}
	return p.channel.PacketOut(packet)
}

// Retransmit restarts the unacknowledged message.
func (p *ChannelPairing) Retransmit() bool {
	return !p.completed && p.err == nil && p.channel.Retransmit()
}

// HasPending reports whether packets remain to be sent or acknowledged.
func (p *ChannelPairing) HasPending() bool {
	return !p.completed && p.err == nil && p.channel.HasPending()
}

// MessageIn encrypts m into send and queues it. A device finishes pairing by
// sending MessageTypeEndResponse.
func (p *ChannelPairing) MessageIn(send []byte, m channel.Message) error {
	if err := p.check(); err != nil {
		return err
	}
	if err := p.channel.MessageIn(send, m); err != nil {
		return err
	}
	if p.role == noise.Responder && m.Type == MessageTypeEndResponse {
		p.finish()
	}
	return nil
}

// MessageOut decrypts the last assembled message. A host finishes pairing on
// receiving MessageTypeEndResponse.
func (p *ChannelPairing) MessageOut(recv []byte) (channel.Message, error) {
	if err := p.check(); err != nil {
		return channel.Message{}, err
	}
	m, err := p.channel.MessageOut(recv)
	if err != nil {
		if errors.Is(err, ErrMalformedData) {
			p.fail(err)
		}
		return m, err
	}
	if p.role == noise.Initiator && m.Type == MessageTypeEndResponse {
		p.finish()
	}
	return m, nil
}

func (p *ChannelPairing) finish() {
	p.finished = true
	logrus.WithFields(logrus.Fields{
		"function":      "ChannelPairing",
		"role":          p.role.String(),
		"channel_id":    p.channel.ID(),
		"pairing_state": p.pairing.String(),
	}).Info("Pairing finished")
}

// PairingDone reports whether the end-of-pairing response was exchanged and
// nothing is left to send or acknowledge.
func (p *ChannelPairing) PairingDone() bool {
	return !p.completed && p.err == nil && p.finished && !p.channel.HasPending()
}

// Complete hands over the secured channel. The ChannelPairing is unusable
// afterwards.
func (p *ChannelPairing) Complete() (*channel.Channel, error) {
	if !p.PairingDone() {
		return nil, fmt.Errorf("%w: pairing not done", ErrUnexpectedInput)
	}
	ch := p.channel
	p.channel = nil
	p.completed = true
	return ch, nil
}
