package transport

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedData covers header, length, nonce and checksum mismatches
	// as well as decryption and credential verification failures.
	ErrMalformedData = errors.New("thp: malformed data")
	// ErrUnexpectedInput indicates a message that the current state does not expect.
	ErrUnexpectedInput = errors.New("thp: unexpected input")
	// ErrInsufficientBuffer indicates a fixed-capacity buffer too small for the data.
	ErrInsufficientBuffer = errors.New("thp: insufficient buffer")
)

// ErrorCode is the one-byte code carried in a transport error packet.
type ErrorCode byte

const (
	ErrorTransportBusy      ErrorCode = 1
	ErrorUnallocatedChannel ErrorCode = 2
	ErrorDecryptionFailed   ErrorCode = 3
	ErrorInvalidData        ErrorCode = 4
	ErrorDeviceLocked       ErrorCode = 5
)

// ErrorCodeNames maps error codes to identifiers for logging.
var ErrorCodeNames = map[ErrorCode]string{
	ErrorTransportBusy:      "TRANSPORT_BUSY",
	ErrorUnallocatedChannel: "UNALLOCATED_CHANNEL",
	ErrorDecryptionFailed:   "DECRYPTION_FAILED",
	ErrorInvalidData:        "INVALID_DATA",
	ErrorDeviceLocked:       "DEVICE_LOCKED",
}

// String returns the code's name, or its numeric value when unknown.
func (c ErrorCode) String() string {
	if name, ok := ErrorCodeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN(%d)", byte(c))
}

// TransportError is an error reported by the peer in an error packet.
// It is decoded and forwarded, never acted on by the protocol core.
type TransportError struct {
	Code      ErrorCode
	ChannelID uint16
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("thp: peer reported %s on channel %d", e.Code, e.ChannelID)
}
