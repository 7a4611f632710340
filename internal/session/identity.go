package session

import (
	"strings"
	"unicode/utf8"
)

// Identity limits and defaults.
const (
	// MaxIdentityLength is the largest stored identity field in bytes.
	// Fields are held in 32-byte slots that keep one byte for a terminator.
	MaxIdentityLength = 31

	// DefaultDeviceName is used when no usable name is configured.
	DefaultDeviceName = "No name"

	// DefaultSensorType is announced when none is configured.
	DefaultSensorType = "uart"

	// lastUpdatedLayout matches the compiler date stamp (e.g. "Oct 17 2026").
	lastUpdatedLayout = "Jan _2 2006"
)

// Identity is what the node announces on the device_info topic.
type Identity struct {
	DeviceName  string `json:"device_name"`
	DeviceModel string `json:"device_model"`
	LastUpdated string `json:"last_updated"`
	SensorType  string `json:"sensor_type"`
}

// identityKeys are the device_info member names, in publish order.
var identityKeys = []string{"device_name", "device_model", "last_updated", "sensor_type"}

func (id Identity) values() []string {
	return []string{id.DeviceName, id.DeviceModel, id.LastUpdated, id.SensorType}
}

// nameReplacer maps characters that would change the control topic's
// structure to underscores.
var nameReplacer = strings.NewReplacer(
	"/", "_",
	"+", "_",
	"#", "_",
	"\x00", "_",
)

// NormalizeDeviceName makes a configured name safe to use as a topic level.
//
// Surrounding whitespace is trimmed, topic separators and wildcards are
// replaced with '_' and the result is truncated to MaxIdentityLength bytes.
// An empty result yields DefaultDeviceName.
func NormalizeDeviceName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return DefaultDeviceName
	}
	name = truncate(nameReplacer.Replace(name))
	if strings.TrimSpace(name) == "" {
		return DefaultDeviceName
	}
	return name
}

// truncate shortens s to at most MaxIdentityLength bytes without splitting
// a UTF-8 sequence.
func truncate(s string) string {
	if len(s) <= MaxIdentityLength {
		return s
	}
	cut := MaxIdentityLength
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// truncateKey shortens a topic to the dispatch key bound. Keys are compared
// bytewise, so no UTF-8 boundary is respected.
func truncateKey(topic string) string {
	if len(topic) > MaxIdentityLength {
		return topic[:MaxIdentityLength]
	}
	return topic
}
