// Package influxdb provides InfluxDB connectivity for the fan bridge.
//
// It wraps the official influxdb-client-go v2 library. Every successful poll
// becomes a fan_state point (numeric and boolean properties as fields, fan id
// and model as tags); connects and disconnects become fan_connection points.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // telemetry off
//	}
//	defer client.Close()
//
//	client.WriteFanState("fan-bedroom", "zhimi.fan.za5",
//	    map[string]any{"fan_level": 2, "temperature": 24.5}, time.Now())
//
// # Thread Safety
//
// All methods are safe for concurrent use. Writes are non-blocking and
// batched according to batch_size and flush_interval; async write errors
// are delivered to the SetOnError callback.
package influxdb
