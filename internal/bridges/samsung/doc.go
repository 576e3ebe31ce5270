// Package samsung implements the legacy Samsung TV remote-control protocol.
//
// Pre-2014 Samsung TVs accept remote key presses on TCP port 55000. Each key
// press opens a fresh connection, announces the controller (authentication
// frame), waits for the TV to grant access, sends one key frame and waits for
// the TV to acknowledge it. The TV keeps no session between key presses.
//
// # Frame Format
//
// Every frame, in both directions, is:
//
//	Byte 0:      0x00
//	Byte 1-2:    application string length (little-endian)
//	Byte 3..n:   application string
//	Byte n+1-2:  payload length (little-endian)
//	Byte n+3..:  payload
//
// Strings inside payloads are base64 encoded and carry their own
// little-endian length prefix.
//
// # Liveness
//
// The TV only listens on the remote port while it is switched on, so a
// successful TCP connect is used as the power-state signal.
//
// # Thread Safety
//
// Client is safe for concurrent use; every call uses its own connection.
package samsung
