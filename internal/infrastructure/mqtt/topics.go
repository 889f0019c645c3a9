package mqtt

import "fmt"

// Topic prefixes for the lumen MQTT surface.
//
// The hierarchy is flat: lumen/{category}/{kind}/{id}. Commands flow in,
// state and events flow out, system topics carry liveness.
const (
	// TopicPrefix is the base for all lumen topics.
	TopicPrefix = "lumen"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "lumen/system"
)

// Topics provides builders for lumen MQTT topics. Using these helpers
// keeps topic naming consistent across the codebase.
//
//	topics := mqtt.Topics{}
//	stateTopic := topics.DeviceState("spot-kitchen-1")
//	// Returns: "lumen/state/device/spot-kitchen-1"
type Topics struct{}

// DeviceCommand returns the topic commands for one fixture arrive on.
//
// Example: lumen/command/device/spot-kitchen-1
func (Topics) DeviceCommand(device string) string {
	return fmt.Sprintf("%s/command/device/%s", TopicPrefix, device)
}

// DeviceState returns the topic a fixture's settled state is published
// on. Retained, so late subscribers see the current look.
//
// Example: lumen/state/device/spot-kitchen-1
func (Topics) DeviceState(device string) string {
	return fmt.Sprintf("%s/state/device/%s", TopicPrefix, device)
}

// DeviceInput returns the topic live input levels decoded from inbound
// DMX are published on. Not retained; this stream follows the wire.
//
// Example: lumen/input/device/spot-kitchen-1
func (Topics) DeviceInput(device string) string {
	return fmt.Sprintf("%s/input/device/%s", TopicPrefix, device)
}

// UniverseState returns the topic for universe-level summaries.
//
// Example: lumen/state/universe/1
func (Topics) UniverseState(universe uint16) string {
	return fmt.Sprintf("%s/state/universe/%d", TopicPrefix, universe)
}

// TriggerEvent returns the topic inbound ArtTrigger events are
// republished on.
//
// Example: lumen/event/trigger
func (Topics) TriggerEvent() string {
	return fmt.Sprintf("%s/event/trigger", TopicPrefix)
}

// NodeEvent returns the topic for node discovery and eviction events.
//
// Example: lumen/event/node
func (Topics) NodeEvent() string {
	return fmt.Sprintf("%s/event/node", TopicPrefix)
}

// SourceEvent returns the topic for sACN source arbitration events:
// takeovers, terminations, and liveness evictions.
//
// Example: lumen/event/source
func (Topics) SourceEvent() string {
	return fmt.Sprintf("%s/event/source", TopicPrefix)
}

// SystemStatus returns the controller liveness topic, also used for the
// last-will message.
//
// Example: lumen/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// AllDeviceCommands returns a pattern matching every fixture command.
//
// Pattern: lumen/command/device/+
func (Topics) AllDeviceCommands() string {
	return fmt.Sprintf("%s/command/device/+", TopicPrefix)
}

// AllDeviceStates returns a pattern matching every fixture state topic.
//
// Pattern: lumen/state/device/+
func (Topics) AllDeviceStates() string {
	return fmt.Sprintf("%s/state/device/+", TopicPrefix)
}

// AllDeviceInputs returns a pattern matching every live input topic.
//
// Pattern: lumen/input/device/+
func (Topics) AllDeviceInputs() string {
	return fmt.Sprintf("%s/input/device/+", TopicPrefix)
}

// AllEvents returns a pattern matching every event topic.
//
// Pattern: lumen/event/+
func (Topics) AllEvents() string {
	return fmt.Sprintf("%s/event/+", TopicPrefix)
}

// AllTopics returns a pattern matching all lumen topics. Use with
// caution, this receives every message on the surface.
//
// Pattern: lumen/#
func (Topics) AllTopics() string {
	return "lumen/#"
}

// DeviceFromCommandTopic extracts the device name from a command topic,
// returning false for topics outside the command hierarchy.
func DeviceFromCommandTopic(topic string) (string, bool) {
	prefix := TopicPrefix + "/command/device/"
	if len(topic) <= len(prefix) || topic[:len(prefix)] != prefix {
		return "", false
	}
	device := topic[len(prefix):]
	for i := 0; i < len(device); i++ {
		if device[i] == '/' {
			return "", false
		}
	}
	return device, true
}
