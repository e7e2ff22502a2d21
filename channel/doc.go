// Package channel implements the per-channel packet state machine of THP.
//
// A Channel owns one logical connection: its id, the alternating-bit
// acknowledgement state, the outbound fragmenter and inbound reassembler, and
// once the handshake completes the pair of Noise cipher states. It performs no
// I/O, owns no timers and holds no locks; callers push inbound packets with
// PacketIn, poll outbound packets with PacketOut and decide themselves when to
// call Retransmit.
//
// At most one sequenced message is unacknowledged at any time. Buffers passed
// to Send and MessageIn are borrowed until the message is acknowledged, so a
// retransmission replays exactly the same bytes.
package channel
