package limits

import (
	"errors"
	"fmt"
)

const (
	// InitHeaderLen is control byte + channel id + length.
	InitHeaderLen = 5

	// ContinuationHeaderLen is control byte + channel id.
	ContinuationHeaderLen = 3

	// ChecksumLen is the trailing CRC-32 of every message.
	ChecksumLen = 4

	// TagLen is the AEAD authentication tag appended by every encryption.
	TagLen = 16

	// PublicKeyLen is the Curve25519 public key length.
	PublicKeyLen = 32

	// NonceLen is the length of the host's channel allocation nonce.
	NonceLen = 32

	// MinPacketLen is the smallest packet length that still carries an init
	// header with payload.
	MinPacketLen = 16

	// DefaultPacketLen is the USB HID report size.
	DefaultPacketLen = 64

	// MaxPacketLen is the largest supported packet length.
	MaxPacketLen = 244

	// MaxHandshakePayload is the largest handshake message payload: a public key
	// plus a credential plus two tags on the completion request.
	MaxHandshakePayload = 192

	// HandshakeBufferLen is the capacity of each channel-open scratch buffer.
	HandshakeBufferLen = MaxHandshakePayload + ChecksumLen

	// MaxCredentialLen is the largest credential that fits a completion request.
	MaxCredentialLen = MaxHandshakePayload - (PublicKeyLen + TagLen) - TagLen

	// MaxDevicePropertiesLen is what remains of an allocation response after
	// the nonce and the channel id.
	MaxDevicePropertiesLen = MaxHandshakePayload - NonceLen - 2

	// MessageHeaderLen is session id + message type inside an encrypted message.
	MessageHeaderLen = 3

	// MaxMessageLen is the largest message length an init header may declare.
	MaxMessageLen = 60000
)

var (
	// ErrMessageEmpty indicates an empty message was provided
	ErrMessageEmpty = errors.New("empty message")

	// ErrMessageTooLarge indicates message exceeds maximum size
	ErrMessageTooLarge = errors.New("message too large")

	// ErrPacketLen indicates a packet length outside [MinPacketLen, MaxPacketLen]
	ErrPacketLen = errors.New("invalid packet length")
)

// ValidateMessageSize validates a message against the specified maximum size.
// Returns an error with context including the actual and maximum sizes.
func ValidateMessageSize(message []byte, maxSize int) error {
	if len(message) == 0 {
		return ErrMessageEmpty
	}
	if len(message) > maxSize {
		return fmt.Errorf("%w: size %d exceeds limit %d", ErrMessageTooLarge, len(message), maxSize)
	}
	return nil
}

// ValidatePacketLen checks a configured packet length.
func ValidatePacketLen(n int) error {
	if n < MinPacketLen || n > MaxPacketLen {
		return fmt.Errorf("%w: %d not in [%d, %d]", ErrPacketLen, n, MinPacketLen, MaxPacketLen)
	}
	return nil
}

// ValidateCredential checks that a credential fits a completion request.
// An empty credential is valid and means "no stored pairing".
func ValidateCredential(credential []byte) error {
	if len(credential) > MaxCredentialLen {
		return fmt.Errorf("%w: credential size %d exceeds limit %d", ErrMessageTooLarge, len(credential), MaxCredentialLen)
	}
	return nil
}

// ValidateDeviceProperties checks that device properties fit an allocation response.
func ValidateDeviceProperties(properties []byte) error {
	if len(properties) > MaxDevicePropertiesLen {
		return fmt.Errorf("%w: properties size %d exceeds limit %d", ErrMessageTooLarge, len(properties), MaxDevicePropertiesLen)
	}
	return nil
}

// EncryptedLen returns the on-wire length of an application message payload
// of n bytes, CRC excluded.
func EncryptedLen(n int) int {
	return MessageHeaderLen + n + TagLen
}
