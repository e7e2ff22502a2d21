package channel

import "fmt"

// State is the acknowledgement state of a channel's outbound direction.
type State uint8

const (
	// Idle means no unacknowledged message exists.
	Idle State = iota
	// AwaitingAck means a message was sent completely and waits for its ack.
	AwaitingAck
	// Retransmitting means the last message is being resent from the start.
	Retransmitting
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case AwaitingAck:
		return "AwaitingAck"
	case Retransmitting:
		return "Retransmitting"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}
