// Package linksim provides an in-memory, deliberately unreliable packet link
// for exercising THP endpoints without a physical transport.
//
// # Overview
//
// A Link carries fixed-length packets in two directions. Each packet handed
// to Send may be dropped, duplicated or corrupted according to the link
// Config, using a seeded generator so runs are reproducible. Every packet
// leaves a DeliveryRecord in the delivery log.
//
// # Driving Endpoints
//
// Run drives two Endpoints (normally a host and a device session) in
// rounds. A round drains each side's outbound packets onto the link and then
// delivers everything queued. When a round moves no packets both sides are
// asked to retransmit, which stands in for the caller-owned retransmission
// timer of a real link.
//
//	link := linksim.New(linksim.Config{DropRate: 0.2, Seed: 1})
//	err := link.Run(host, device, linksim.RunOptions{
//	    PacketLen: 64,
//	    Done:      func() bool { return host.Done() && device.Done() },
//	})
//
// HostSession and DeviceSession are ready-made Endpoints that run a whole
// session: allocation, the handshake and the EndRequest/EndResponse pairing
// dialogue, ending with a secured channel on each side.
//
// # Delivery Logs
//
// Each DeliveryRecord contains:
//
//   - Direction: HostToDevice or DeviceToHost
//   - PacketSize: size of the packet handed to Send
//   - Dropped, Duplicated, Corrupted: which impairments were applied
//
// Use GetDeliveryLog to retrieve the log and ClearDeliveryLog to reset it.
//
// # Thread Safety
//
// All methods on Link are safe for concurrent use. Run itself is synchronous.
package linksim
