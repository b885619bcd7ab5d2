package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names written by the fan bridge.
const (
	MeasurementFanState      = "fan_state"
	MeasurementFanConnection = "fan_connection"
)

// WriteFanState writes one polled snapshot of a fan.
//
// The write is non-blocking; data is batched and sent asynchronously.
//
// Parameters:
//   - fanID: Bridge identifier of the fan (tag)
//   - model: Model string, e.g. "zhimi.fan.za5" (tag)
//   - fields: Numeric and boolean values to record
//   - at: Time of the poll
func (c *Client) WriteFanState(fanID, model string, fields map[string]any, at time.Time) {
	if len(fields) == 0 {
		return
	}
	c.writePoint(MeasurementFanState,
		map[string]string{"fan_id": fanID, "model": model},
		fields, at)
}

// WriteConnectionEvent records a connect or disconnect of a fan.
func (c *Client) WriteConnectionEvent(fanID string, connected bool, at time.Time) {
	c.writePoint(MeasurementFanConnection,
		map[string]string{"fan_id": fanID},
		map[string]any{"connected": connected},
		at)
}

// writePoint queues one point unless the client is closed.
func (c *Client) writePoint(measurement string, tags map[string]string, fields map[string]any, at time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, at))
}
