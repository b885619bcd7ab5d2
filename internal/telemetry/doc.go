// Package telemetry exports fan state and controller counters.
//
// Two controller listeners live here:
//
//   - InfluxWriter writes every polled status and each connection change to
//     InfluxDB through the influxdb package.
//   - Metrics keeps Prometheus gauges for the latest status and exposes the
//     controller counters at scrape time, on its own registry.
//
// Both read the device's Status rather than the raw snapshot, so values are
// normalised across models (a Smartmi "on" string and a Dmaker true both
// become power=true).
package telemetry
