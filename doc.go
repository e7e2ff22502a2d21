// Package thp implements channel establishment for THP, the host-to-device
// secure transport protocol.
//
// THP runs over an unreliable, message-oriented link such as USB HID or BLE.
// A host allocates a channel on the broadcast channel, runs a Noise XX
// handshake in which it presents a pairing credential, and receives the
// device's authenticated pairing state. The established channel then carries
// AEAD-protected application messages.
//
// # Getting Started
//
// Each side is a caller-driven state machine. The host starts with a
// ChannelOpen that already holds the allocation request:
//
//	host, err := thp.NewHostChannelOpen(thp.HostConfig{
//	    StaticKey: hostKeys,
//	    Store:     store,
//	}, thp.NewOptions())
//
//	packet := make([]byte, 64)
//	n, _ := host.PacketOut(packet) // send packet[:n] on the link
//
// The device creates its ChannelOpen from the allocation request and the
// channel id it picked:
//
//	device, err := thp.NewDeviceChannelOpen(request, cid, thp.DeviceConfig{
//	    StaticKey:  deviceKeys,
//	    Verifier:   issuer,
//	    Properties: properties,
//	}, thp.NewOptions())
//
// Both sides then feed inbound packets to PacketIn and poll PacketOut until
// HandshakeDone reports true. Complete converts the ChannelOpen into a
// ChannelPairing, which carries the pairing phase until a message of type
// MessageTypeEndResponse passes; its Complete yields the established
// channel.Channel.
//
// # Retransmission
//
// The core owns no timers. When a caller's timer fires without an
// acknowledgement it calls Retransmit, and the last message is sent again.
//
// # Errors
//
// Errors are classified with ErrMalformedData, ErrUnexpectedInput and
// ErrInsufficientBuffer, and peer reports decode into *TransportError. A
// packet that is merely corrupt is rejected without changing state.
// Handshake, ordering, nonce and credential failures move the ChannelOpen
// to StateFailed. A failed ChannelOpen only flushes what it already queued,
// such as a DEVICE_LOCKED error packet, and should then be discarded.
//
// # Concurrency
//
// ChannelOpen, ChannelPairing and channel.Channel are not safe for
// concurrent use. They hold no goroutines, so discarding one at any point is
// always safe.
package thp
