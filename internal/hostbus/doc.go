// Package hostbus exposes an accessory to a home-automation host over MQTT.
//
// The host publishes CommandMessage documents to castbridge/command/{name}.
// Every command is answered on castbridge/ack/{name}: first "accepted", then
// "completed" or "failed" with an error code. Commands run on their own
// goroutine so a long key sequence never blocks the MQTT dispatcher; a second
// sequence sent meanwhile is rejected by the accessory with BUSY.
//
// Accessory state is published retained on castbridge/state/{name} whenever
// the reconciled snapshot changes and after every successful command. A
// HealthReporter publishes castbridge/health/{name} every 30 seconds.
//
// Reads never touch the devices: the "read" command answers from the cached
// snapshot.
package hostbus
