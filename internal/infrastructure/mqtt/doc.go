// Package mqtt is the castbridge host bus transport, a thin layer over
// paho.mqtt.golang.
//
// A home-automation host drives each accessory through three topics:
//
//	castbridge/command/{accessory}   host -> bridge
//	castbridge/ack/{accessory}       bridge -> host
//	castbridge/state/{accessory}     bridge -> host, retained
//
// plus castbridge/health/{accessory} and the per-process status topic
// castbridge/status/{client_id}, which also carries the Last Will.
//
// The client keeps its own route table. The broker session is clean, so
// every reconnect replays the routes before the online status is published.
//
// Enable broker.tls when the broker is not local, and prefer
// CASTBRIDGE_MQTT_PASSWORD to a password in the config file.
package mqtt
