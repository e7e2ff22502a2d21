// Package limits provides centralized size constants and validation functions
// for the THP transport. Every buffer in the protocol core is sized from these
// constants so that an oversized message is a reportable error and never an
// allocation.
//
// # Size Hierarchy
//
//   - MaxPacketLen (244 bytes): the largest fixed packet length a link may use
//     (BLE characteristic size). USB HID links use DefaultPacketLen (64 bytes).
//
//   - HandshakeBufferLen (196 bytes): capacity of the scratch buffers owned by a
//     channel-open state machine. Fits the largest handshake payload
//     (MaxHandshakePayload) plus the trailing CRC.
//
//   - MaxMessageLen (60000 bytes): the largest message length an init header may
//     declare, CRC included.
//
// # Validation Functions
//
//	if err := limits.ValidatePacketLen(n); err != nil {
//	    // ErrPacketLen
//	}
//
//	if err := limits.ValidateCredential(cred); err != nil {
//	    // ErrMessageTooLarge
//	}
package limits
