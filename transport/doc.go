// Package transport implements the THP wire format: packet headers,
// single-packet encoding, fragmentation and in-order reassembly.
//
// # Packet Layout
//
// Every packet has the same fixed length (64 bytes on USB HID links) and is
// zero padded. A message starts with an init packet and continues with as
// many continuation packets as needed:
//
//	init:          [ctrl(1)][channel id(2, BE)][length(2, BE)][data...]
//	continuation:  [0x80   ][channel id(2, BE)][data...]
//
// The message data is the payload followed by a CRC-32 (IEEE, big endian)
// computed over the init header and the payload. The length field counts the
// payload and the CRC.
//
// # Control Byte
//
//	0x00|seq  InitiationRequest        0x20|ack  Ack
//	0x01|seq  InitiationResponse       0x40      ChannelAllocationRequest
//	0x02|seq  CompletionRequest        0x41      ChannelAllocationResponse
//	0x03|seq  CompletionResponse       0x42      TransportError
//	0x04|seq  Encrypted message        0x80      Continuation
//
// seq is bit 4 (0x10) and ack is bit 3 (0x08). Channel id 0 is the broadcast
// channel and only carries channel allocation traffic and errors.
//
// # Errors
//
// Parsing never panics on attacker input. Failures are classified with the
// sentinels [ErrMalformedData], [ErrUnexpectedInput] and
// [ErrInsufficientBuffer]; peer-reported errors decode into [*TransportError].
//
// Example:
//
//	header, payload, err := transport.Single(packet)
//	if errors.Is(err, transport.ErrMalformedData) {
//	    // drop the packet
//	}
package transport
