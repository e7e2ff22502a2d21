// Package noise implements the THP key agreement on top of the Noise
// Protocol Framework.
//
// The handshake uses the XX pattern. The device properties advertised in the
// channel allocation response are mixed in as the prologue, binding the
// allocation to the transcript. Four messages are exchanged:
//
//	InitiationRequest   host -> device   -> e                [try_to_unlock]
//	InitiationResponse  device -> host   <- e, ee, s, es
//	CompletionRequest   host -> device   -> s, se            [credential]
//	CompletionResponse  device -> host   AEAD(pairing state)
//
// After the CompletionRequest both sides split the transcript into send and
// receive cipher states. The device encrypts its pairing state with its send
// state, so the first application message in each direction uses nonce 1 on
// the device side and nonce 0 on the host side.
//
// A Handshake must be driven strictly in order. Calling a step out of order
// returns ErrOutOfOrder; a message that fails to authenticate returns
// ErrInvalidMessage. Both are terminal: the Handshake must be destroyed.
package noise
