package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/gray-logic-node/internal/session"
)

// Measurement names.
const (
	measurementDispatch = "dispatch"
	measurementSession  = "session_stats"
)

// RecordDispatch writes one data event. It implements session.Recorder and
// never blocks: points are queued on the batching write API.
//
// Tags are device, topic and outcome; fields are payload bytes and
// dispatch duration in microseconds.
func (c *Client) RecordDispatch(rec session.Record) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		measurementDispatch,
		map[string]string{
			"device":  rec.Device,
			"topic":   rec.Topic,
			"outcome": string(rec.Outcome),
		},
		map[string]interface{}{
			"bytes":       rec.Bytes,
			"duration_us": rec.Duration.Microseconds(),
		},
		time.Now(),
	)
	c.writer.WritePoint(point)
}

// WriteStats writes a snapshot of session counters.
//
// Parameters:
//   - device: Device name used as the point tag
//   - stats: Snapshot from Session.Stats
//   - at: Snapshot time
func (c *Client) WriteStats(device string, stats session.Stats, at time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		measurementSession,
		map[string]string{
			"device": device,
			"state":  stats.State,
		},
		map[string]interface{}{
			"dispatched":       stats.Dispatched,
			"handler_errors":   stats.HandlerErrors,
			"unmatched":        stats.Unmatched,
			"malformed":        stats.Malformed,
			"oversize":         stats.Oversize,
			"dropped":          stats.Dropped,
			"published":        stats.Published,
			"publish_errors":   stats.PublishErrors,
			"reconnects":       stats.Reconnects,
			"subscriptions":    stats.Subscriptions,
			"collisions":       stats.Collisions,
			"arena_high_water": stats.ArenaHighWater,
		},
		at,
	)
	c.writer.WritePoint(point)
}
