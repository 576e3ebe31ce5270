// Package api implements the local HTTP API and WebSocket state stream.
//
// This package provides:
//   - REST endpoints for the accessory snapshot, characteristic descriptors,
//     commands and the command audit trail
//   - WebSocket hub broadcasting every reconciled state
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//
// # Architecture
//
// The API is a second host surface next to the MQTT host bus. Commands use
// the same document and dispatch as the bus (hostbus.ParseCommand and
// hostbus.Execute) but run synchronously: the response is the final ack.
// State flows from the accessory's reconciler observers to WebSocket clients
// subscribed to the "accessory.state" channel.
//
// # Security
//
// There is no authentication. The API binds to loopback by default; expose
// it only on a trusted network.
package api
