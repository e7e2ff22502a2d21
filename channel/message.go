package channel

import (
	"encoding/binary"
	"fmt"

	"github.com/opd-ai/thp/limits"
	"github.com/opd-ai/thp/transport"
)

// Message is an application message carried inside an encrypted THP message.
type Message struct {
	SessionID uint8
	Type      uint16
	Payload   []byte
}

// MessageIn encrypts m into send and queues it. send must hold the header,
// the payload and the AEAD tag. m.Payload may alias send[3:].
func (c *Channel) MessageIn(send []byte, m Message) error {
	if !c.Secured() {
		return fmt.Errorf("%w: channel %d is not secured", transport.ErrUnexpectedInput, c.id)
	}
	if c.state != Idle || c.out.Loaded() {
		return fmt.Errorf("%w: channel %d has a message outstanding", transport.ErrUnexpectedInput, c.id)
	}
	size := limits.EncryptedLen(len(m.Payload))
	if size > len(send) {
		return fmt.Errorf("%w: message needs %d bytes, buffer has %d",
			transport.ErrInsufficientBuffer, size, len(send))
	}

	plainLen := limits.MessageHeaderLen + len(m.Payload)
	copy(send[limits.MessageHeaderLen:], m.Payload)
	send[0] = m.SessionID
	binary.BigEndian.PutUint16(send[1:3], m.Type)

	ct, err := c.send.Encrypt(send[:0], nil, send[:plainLen])
	if err != nil {
		return fmt.Errorf("encrypt message on channel %d: %w", c.id, err)
	}
	return c.Send(transport.KindEncrypted, ct)
}

// MessageOut decrypts the last assembled message in place and returns a view
// into recv. It must be called with the buffer the message was assembled in.
func (c *Channel) MessageOut(recv []byte) (Message, error) {
	var m Message
	if !c.Secured() {
		return m, fmt.Errorf("%w: channel %d is not secured", transport.ErrUnexpectedInput, c.id)
	}
	if !c.ready || c.last.Kind != transport.KindEncrypted {
		return m, fmt.Errorf("%w: no encrypted message ready on channel %d", transport.ErrUnexpectedInput, c.id)
	}
	if c.lastLen > len(recv) {
		return m, fmt.Errorf("%w: receive buffer shorter than message", transport.ErrInsufficientBuffer)
	}
	c.ready = false

	pt, err := c.recv.Decrypt(recv[:0], nil, recv[:c.lastLen])
	if err != nil {
		return m, fmt.Errorf("%w: decrypt message on channel %d: %v", transport.ErrMalformedData, c.id, err)
	}
	if len(pt) < limits.MessageHeaderLen {
		return m, fmt.Errorf("%w: message of %d bytes has no header", transport.ErrMalformedData, len(pt))
	}

	m.SessionID = pt[0]
	m.Type = binary.BigEndian.Uint16(pt[1:3])
	m.Payload = pt[limits.MessageHeaderLen:]
	return m, nil
}
