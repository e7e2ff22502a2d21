package thp

import (
	"github.com/opd-ai/thp/noise"
	"github.com/opd-ai/thp/transport"
)

// transition keys the role transition tables.
type transition struct {
	state OpenState
	kind  transport.Kind
}

// step handles a complete inbound message and returns the next state.
type step func(o *ChannelOpen, payload []byte) (OpenState, error)

// role supplies the asymmetric obligations of host and device to the shared
// ChannelOpen machinery.
type role interface {
	handshakeRole() noise.HandshakeRole
	transitions() map[transition]step
	// finalState is the state in which the handshake is complete.
	finalState() OpenState
	// retransmitAllocation re-queues allocation traffic the channel cannot
	// retransmit itself. It reports whether anything was queued.
	retransmitAllocation(o *ChannelOpen) bool
	// afterBroadcast runs once the broadcast output has drained.
	afterBroadcast(o *ChannelOpen) error
}
