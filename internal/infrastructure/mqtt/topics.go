package mqtt

import "fmt"

// Topic prefixes for the Shelly service.
//
// Shelly topics use the scheme: graylogic/shelly/{category}/{...}
const (
	// TopicPrefixShelly is the base for all Shelly service topics.
	TopicPrefixShelly = "graylogic/shelly"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "graylogic/system"
)

// Topics provides builders for Gray Logic Shelly MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	presence := topics.ShellyDevice("SHSW-1", "A4CF12F45A1B")
//	// Returns: "graylogic/shelly/device/SHSW-1/A4CF12F45A1B"
type Topics struct{}

// =============================================================================
// Shelly Topics
// =============================================================================

// ShellyEvent returns the topic for a registry lifecycle event.
//
// Example: graylogic/shelly/event/discover
func (Topics) ShellyEvent(kind string) string {
	return fmt.Sprintf("%s/event/%s", TopicPrefixShelly, kind)
}

// ShellyDevice returns the retained presence topic for one device.
//
// Example: graylogic/shelly/device/SHSW-1/A4CF12F45A1B
func (Topics) ShellyDevice(deviceType, deviceID string) string {
	return fmt.Sprintf("%s/device/%s/%s", TopicPrefixShelly, deviceType, deviceID)
}

// ShellyStatus returns the retained listener status topic.
//
// Example: graylogic/shelly/status
func (Topics) ShellyStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixShelly)
}

// ShellyCommand returns the topic for a control command sent to the service.
//
// Example: graylogic/shelly/command/stale_time
func (Topics) ShellyCommand(name string) string {
	return fmt.Sprintf("%s/command/%s", TopicPrefixShelly, name)
}

// =============================================================================
// System Topics
// =============================================================================

// SystemStatus returns the system status topic used for online/offline and LWT.
//
// Example: graylogic/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// =============================================================================
// Wildcard Patterns for Subscriptions
// =============================================================================

// AllShellyEvents returns a pattern matching every lifecycle event.
//
// Pattern: graylogic/shelly/event/+
func (Topics) AllShellyEvents() string {
	return fmt.Sprintf("%s/event/+", TopicPrefixShelly)
}

// AllShellyCommands returns a pattern matching every control command.
//
// Pattern: graylogic/shelly/command/+
func (Topics) AllShellyCommands() string {
	return fmt.Sprintf("%s/command/+", TopicPrefixShelly)
}
