package thp

// Message types with meaning to the protocol core. All other types belong to
// the application.
const (
	MessageTypeEndRequest  uint16 = 1008
	MessageTypeEndResponse uint16 = 1009
)
