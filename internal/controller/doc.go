// Package controller keeps one fan connected.
//
// A Controller dials the fan, creates the fan.Device for the reported model
// (or up front from a cached model), polls it on a fixed interval and
// reconnects after a failed poll. Consumers register a Listener to receive
// DeviceReady, Connected, Disconnected and PropertiesUpdated events.
//
// Failed connection attempts are retried every six polling intervals, forever.
package controller
