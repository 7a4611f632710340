package session

import (
	"runtime"
	"time"

	"github.com/nerrad567/gray-logic-node/internal/arena"
	"github.com/nerrad567/gray-logic-node/internal/dispatch"
	"github.com/nerrad567/gray-logic-node/internal/gpio"
	"github.com/nerrad567/gray-logic-node/internal/ota"
)

// Buffer minimums. Smaller requests are raised silently.
const (
	MinInboundBufferSize  = 1024
	MinOutboundBufferSize = 512
)

// Publisher buffer sizes, including the terminator slot.
const (
	singleBufferSize   = 128
	multipleBufferSize = 256
)

// Topic defaults.
const (
	DefaultControlPrefix = "control"
	DefaultStatusPrefix  = "status/"
	DeviceInfoTopic      = "device_info"

	// DefaultStopTimeout bounds transport teardown in Stop.
	DefaultStopTimeout = 5 * time.Second
)

// Delivery settings.
const (
	controlQoS byte = 0
	publishQoS byte = 1
)

// Config holds the per-start session settings.
type Config struct {
	// DeviceName names the node; it forms the control and status topics.
	DeviceName string

	// DeviceModel is announced in device_info. Defaults to runtime.GOARCH.
	DeviceModel string

	// LastUpdated is the firmware stamp announced in device_info.
	// Defaults to the process start date.
	LastUpdated string

	// SensorType is announced in device_info. Defaults to "uart".
	SensorType string

	// ControlPrefix is joined to the device name with '/' to form the
	// control topic.
	ControlPrefix string

	// StatusPrefix is concatenated with the device name to form the
	// status topic.
	StatusPrefix string

	// InboundBufferSize is the largest accepted payload in bytes.
	InboundBufferSize int

	// OutboundBufferSize is the transport's outbound buffer in bytes.
	OutboundBufferSize int

	// TableCapacity is the dispatch table size, a power of two.
	TableCapacity int

	// ArenaSize is the parse arena size. It is raised to fit the inbound
	// buffer and the largest publisher buffer.
	ArenaSize int
}

// BufferSizes are the effective transport buffer sizes.
type BufferSizes struct {
	Inbound  int `json:"inbound"`
	Outbound int `json:"outbound"`
}

// withDefaults fills unset fields and applies the minimums.
func (c Config) withDefaults(now time.Time) Config {
	if c.DeviceModel == "" {
		c.DeviceModel = runtime.GOARCH
	}
	if c.LastUpdated == "" {
		c.LastUpdated = now.Format(lastUpdatedLayout)
	}
	if c.SensorType == "" {
		c.SensorType = DefaultSensorType
	}
	if c.ControlPrefix == "" {
		c.ControlPrefix = DefaultControlPrefix
	}
	if c.StatusPrefix == "" {
		c.StatusPrefix = DefaultStatusPrefix
	}
	c.InboundBufferSize = max(c.InboundBufferSize, MinInboundBufferSize)
	c.OutboundBufferSize = max(c.OutboundBufferSize, MinOutboundBufferSize)
	if c.TableCapacity == 0 {
		c.TableCapacity = dispatch.DefaultCapacity
	}
	c.ArenaSize = max(c.ArenaSize, arena.DefaultSize, c.InboundBufferSize, multipleBufferSize)
	return c
}

// Options are the collaborators a Session uses. All fields are optional.
type Options struct {
	// Logger receives session logs. Defaults to a no-op logger.
	Logger Logger

	// GPIO receives pin requests from the control topic.
	GPIO gpio.Driver

	// OTA receives firmware update requests from the control topic.
	OTA ota.Trigger

	// Recorder receives one record per data event.
	Recorder Recorder

	// StopTimeout bounds transport teardown in Stop.
	StopTimeout time.Duration
}
