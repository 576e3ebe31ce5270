package mqtt

import "fmt"

// TopicPrefix is the root of every castbridge topic.
//
// Accessory topics use the flat scheme castbridge/{category}/{accessory}.
const TopicPrefix = "castbridge"

// Topics provides builders for castbridge MQTT topics.
// Using these helpers keeps topic naming consistent between the host bus,
// the health reporter and the CLI.
//
//	topics := mqtt.Topics{}
//	stateTopic := topics.State("living-room-tv")
//	// Returns: "castbridge/state/living-room-tv"
type Topics struct{}

// Command returns the topic a host publishes accessory commands to.
//
// Example: castbridge/command/living-room-tv
func (Topics) Command(accessory string) string {
	return fmt.Sprintf("%s/command/%s", TopicPrefix, accessory)
}

// Ack returns the topic for command acknowledgements.
//
// Example: castbridge/ack/living-room-tv
func (Topics) Ack(accessory string) string {
	return fmt.Sprintf("%s/ack/%s", TopicPrefix, accessory)
}

// State returns the retained accessory state topic.
//
// Example: castbridge/state/living-room-tv
func (Topics) State(accessory string) string {
	return fmt.Sprintf("%s/state/%s", TopicPrefix, accessory)
}

// Health returns the retained accessory health topic.
//
// Example: castbridge/health/living-room-tv
func (Topics) Health(accessory string) string {
	return fmt.Sprintf("%s/health/%s", TopicPrefix, accessory)
}

// Status returns the retained online/offline topic of a bridge process.
// It also carries the Last Will.
//
// Example: castbridge/status/castbridge-01
func (Topics) Status(clientID string) string {
	return fmt.Sprintf("%s/status/%s", TopicPrefix, clientID)
}

// AllCommands returns a pattern matching commands for every accessory.
//
// Pattern: castbridge/command/+
func (Topics) AllCommands() string {
	return fmt.Sprintf("%s/command/+", TopicPrefix)
}

// AllStates returns a pattern matching every accessory state.
//
// Pattern: castbridge/state/+
func (Topics) AllStates() string {
	return fmt.Sprintf("%s/state/+", TopicPrefix)
}

// AllAcks returns a pattern matching every acknowledgement.
//
// Pattern: castbridge/ack/+
func (Topics) AllAcks() string {
	return fmt.Sprintf("%s/ack/+", TopicPrefix)
}

// AllTopics returns a pattern matching all castbridge topics.
//
// Pattern: castbridge/#
func (Topics) AllTopics() string {
	return TopicPrefix + "/#"
}
