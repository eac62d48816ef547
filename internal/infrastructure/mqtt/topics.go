package mqtt

import "fmt"

// DefaultTopicPrefix is used when mqtt.topic_prefix is empty.
const DefaultTopicPrefix = "birdhouse"

// Topics provides builders for birdhouse MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{Prefix: "birdhouse"}
//	topics.OutletState(17)
//	// Returns: "birdhouse/outlet/17/state"
type Topics struct {
	Prefix string
}

func (t Topics) prefix() string {
	if t.Prefix == "" {
		return DefaultTopicPrefix
	}
	return t.Prefix
}

// =============================================================================
// Inbound Topics
// =============================================================================

// Motion returns the topic the motion detector publishes on.
//
// Example: birdhouse/motion
func (t Topics) Motion() string {
	return fmt.Sprintf("%s/motion", t.prefix())
}

// SensorDHT22 returns the topic the DHT22 driver publishes readings on.
//
// Example: birdhouse/sensor/dht22
func (t Topics) SensorDHT22() string {
	return fmt.Sprintf("%s/sensor/dht22", t.prefix())
}

// SensorWater returns the topic the DS18B20 driver publishes water
// temperatures on.
//
// Example: birdhouse/sensor/water
func (t Topics) SensorWater() string {
	return fmt.Sprintf("%s/sensor/water", t.prefix())
}

// =============================================================================
// Outbound Topics
// =============================================================================

// OutletState returns the retained state topic for one outlet.
//
// Example: birdhouse/outlet/17/state
func (t Topics) OutletState(id int) string {
	return fmt.Sprintf("%s/outlet/%d/state", t.prefix(), id)
}

// Weather returns the topic stored weather samples are announced on.
//
// Example: birdhouse/weather
func (t Topics) Weather() string {
	return fmt.Sprintf("%s/weather", t.prefix())
}

// WaterTemp returns the topic stored water temperature samples are announced on.
//
// Example: birdhouse/water_temp
func (t Topics) WaterTemp() string {
	return fmt.Sprintf("%s/water_temp", t.prefix())
}

// SystemStatus returns the daemon status topic (also the LWT topic).
//
// Example: birdhouse/system/status
func (t Topics) SystemStatus() string {
	return fmt.Sprintf("%s/system/status", t.prefix())
}

// =============================================================================
// Wildcard Patterns for Subscriptions
// =============================================================================

// AllOutletStates returns a pattern matching every outlet state topic.
//
// Pattern: birdhouse/outlet/+/state
func (t Topics) AllOutletStates() string {
	return fmt.Sprintf("%s/outlet/+/state", t.prefix())
}

// AllTopics returns a pattern matching all birdhouse topics.
//
// Pattern: birdhouse/#
func (t Topics) AllTopics() string {
	return fmt.Sprintf("%s/#", t.prefix())
}
