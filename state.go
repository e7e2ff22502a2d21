package thp

import "fmt"

// OpenState is the state of a ChannelOpen. Hosts and devices use disjoint
// subsets; StateFailed is shared and terminal.
type OpenState uint8

const (
	StateSentChannelRequest OpenState = iota
	StateSentChannelResponse
	StateSentInitiationRequest
	StateSentInitiationResponse
	StateSentCompletionRequest
	StateSentCompletionResponse
	StateFinished
	StateFailed
)

var stateNames = [...]string{
	StateSentChannelRequest:     "SentChannelRequest",
	StateSentChannelResponse:    "SentChannelResponse",
	StateSentInitiationRequest:  "SentInitiationRequest",
	StateSentInitiationResponse: "SentInitiationResponse",
	StateSentCompletionRequest:  "SentCompletionRequest",
	StateSentCompletionResponse: "SentCompletionResponse",
	StateFinished:               "Finished",
	StateFailed:                 "Failed",
}

func (s OpenState) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("OpenState(%d)", uint8(s))
}
