package linksim

import (
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/thp"
	"github.com/opd-ai/thp/channel"
	"github.com/opd-ai/thp/credential"
	"github.com/opd-ai/thp/limits"
)

// pairingSide is the part of a session shared by host and device once the
// handshake completed.
type pairingSide struct {
	open    *thp.ChannelOpen
	pairing *thp.ChannelPairing
	secured *channel.Channel
	side    string
	paired  credential.PairingState
	send    []byte
	recv    []byte
	err     error
}

func newPairingSide() pairingSide {
	return pairingSide{
		send: make([]byte, limits.EncryptedLen(0)),
		recv: make([]byte, limits.MaxMessageLen),
	}
}

func (s *pairingSide) Retransmit() bool {
	switch {
	case s.open != nil:
		return s.open.Retransmit()
	case s.pairing != nil:
		return s.pairing.Retransmit()
	case s.secured != nil:
		return s.secured.Retransmit()
	}
	return false
}

func (s *pairingSide) Failed() bool {
	return s.err != nil || (s.open != nil && s.open.Failed()) || (s.pairing != nil && s.pairing.Failed())
}

// Done reports whether pairing finished and the secured channel was handed
// over.
func (s *pairingSide) Done() bool { return s.secured != nil }

// Channel returns the secured channel once Done reports true.
func (s *pairingSide) Channel() *channel.Channel { return s.secured }

// PairingState returns the pairing state agreed in the handshake.
func (s *pairingSide) PairingState() credential.PairingState { return s.paired }

// Err returns the terminal error of the session, if any.
func (s *pairingSide) Err() error { return s.err }

// Open returns the ChannelOpen while the handshake is running.
func (s *pairingSide) Open() *thp.ChannelOpen { return s.open }

func (s *pairingSide) packetOut(packet []byte) (int, error) {
	switch {
	case s.open != nil:
		return s.open.PacketOut(packet)
	case s.pairing != nil:
		return s.pairing.PacketOut(packet)
	case s.secured != nil:
		return s.secured.PacketOut(packet)
	}
	return 0, nil
}

// pairingIn feeds a packet to the pairing and returns a decrypted message,
// if one completed.
func (s *pairingSide) pairingIn(packet []byte) (channel.Message, bool, error) {
	res, err := s.pairing.PacketIn(packet, s.recv)
	if err != nil || !res.MessageReady {
		return channel.Message{}, false, err
	}
	m, err := s.pairing.MessageOut(s.recv)
	if err != nil {
		s.err = err
		return m, false, err
	}
	return m, true, nil
}

// securedIn keeps acknowledging traffic after the hand over so the peer can
// finish. Application messages are left on the channel for the caller.
func (s *pairingSide) securedIn(packet []byte) error {
	_, err := s.secured.PacketIn(packet, s.recv)
	return err
}

// advance converts the handshake into a pairing and the pairing into a
// secured channel as soon as each completes. It reports whether the
// handshake was converted.
func (s *pairingSide) advance() (bool, error) {
	converted := false
	if s.open != nil && s.open.HandshakeDone() {
		p, err := s.open.Complete()
		if err != nil {
			s.err = err
			return false, err
		}
		s.open, s.pairing = nil, p
		s.paired = p.PairingState()
		converted = true
	}
	if s.pairing != nil && s.pairing.PairingDone() {
		ch, err := s.pairing.Complete()
		if err != nil {
			s.err = err
			return converted, err
		}
		logrus.WithFields(logrus.Fields{
			"function":      "advance",
			"side":          s.side,
			"channel_id":    ch.ID(),
			"pairing_state": s.pairing.PairingState().String(),
		}).Debug("Secured channel handed over")
		s.pairing, s.secured = nil, ch
	}
	return converted, nil
}

// HostSession is an Endpoint running the host side of a full session: the
// handshake followed by the EndRequest/EndResponse pairing dialogue.
type HostSession struct {
	pairingSide
}

// NewHostSession starts a host session.
func NewHostSession(config thp.HostConfig, opts *thp.Options) (*HostSession, error) {
	open, err := thp.NewHostChannelOpen(config, opts)
	if err != nil {
		return nil, err
	}
	s := &HostSession{pairingSide: newPairingSide()}
	s.open = open
	s.side = "host"
	return s, nil
}

// PacketIn implements Endpoint.
func (s *HostSession) PacketIn(packet []byte) error {
	if s.open != nil {
		if err := s.open.PacketIn(packet); err != nil {
			return err
		}
		return s.step()
	}
	if s.pairing == nil {
		return s.securedIn(packet)
	}
	if _, _, err := s.pairingIn(packet); err != nil {
		return err
	}
	return s.step()
}

// PacketOut implements Endpoint.
func (s *HostSession) PacketOut(packet []byte) (int, error) {
	n, err := s.packetOut(packet)
	if err != nil {
		return n, err
	}
	return n, s.step()
}

func (s *HostSession) step() error {
	converted, err := s.advance()
	if err != nil || !converted {
		return err
	}
	err = s.pairing.MessageIn(s.send, channel.Message{Type: thp.MessageTypeEndRequest})
	if err != nil {
		s.err = err
	}
	return err
}

// DeviceSession is an Endpoint running the device side of a full session.
// It waits for the allocation request and answers EndRequest with
// EndResponse.
type DeviceSession struct {
	pairingSide
	cid     uint16
	config  thp.DeviceConfig
	options *thp.Options
}

// NewDeviceSession creates a device session that allocates cid to the
// first valid allocation request.
func NewDeviceSession(cid uint16, config thp.DeviceConfig, opts *thp.Options) *DeviceSession {
	s := &DeviceSession{pairingSide: newPairingSide(), cid: cid, config: config, options: opts}
	s.side = "device"
	return s
}

// PacketIn implements Endpoint.
func (s *DeviceSession) PacketIn(packet []byte) error {
	switch {
	case s.open == nil && s.pairing == nil && s.secured == nil:
		open, err := thp.NewDeviceChannelOpen(packet, s.cid, s.config, s.options)
		if err != nil {
			return err
		}
		s.open = open
		return nil
	case s.open != nil:
		if err := s.open.PacketIn(packet); err != nil {
			return err
		}
		_, err := s.advance()
		return err
	case s.pairing != nil:
		m, ok, err := s.pairingIn(packet)
		if err != nil {
			return err
		}
		if ok && m.Type == thp.MessageTypeEndRequest {
			if err := s.pairing.MessageIn(s.send, channel.Message{Type: thp.MessageTypeEndResponse}); err != nil {
				s.err = err
				return err
			}
		}
		_, err = s.advance()
		return err
	}
	return s.securedIn(packet)
}

// PacketOut implements Endpoint.
func (s *DeviceSession) PacketOut(packet []byte) (int, error) {
	n, err := s.packetOut(packet)
	if err != nil {
		return n, err
	}
	_, err = s.advance()
	return n, err
}
