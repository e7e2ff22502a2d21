package thp

import "github.com/opd-ai/thp/transport"

// Error classes shared by every THP package.
var (
	ErrMalformedData      = transport.ErrMalformedData
	ErrUnexpectedInput    = transport.ErrUnexpectedInput
	ErrInsufficientBuffer = transport.ErrInsufficientBuffer
)

// TransportError is an error code reported by the peer.
type TransportError = transport.TransportError
