// Package cast implements the sender side of the Cast v2 protocol used by
// Chromecast and other streaming receivers.
//
// A session is one TLS connection to port 8009. Messages are protobuf
// CastMessage records, each preceded by a 4-byte big-endian length. Payloads
// are JSON documents addressed to a namespace:
//
//   - urn:x-cast:com.google.cast.tp.connection: virtual connection open/close
//   - urn:x-cast:com.google.cast.tp.heartbeat: PING/PONG keepalive
//   - urn:x-cast:com.google.cast.receiver: status, volume and app launch
//
// Receiver requests carry a requestId; the receiver echoes it in its reply,
// which is how Client correlates concurrent requests.
//
// The package also resolves receivers by friendly name over mDNS
// (service _googlecast._tcp).
//
// # Thread Safety
//
// Client is safe for concurrent use. The error callback runs on its own
// goroutine, so it may call Close.
package cast
