// Package fan models Xiaomi-ecosystem smart fans.
//
// A Device combines a per-model Profile, a Capabilities set and one protocol
// adapter: DirectMethodAdapter for miIO models that expose named getter and
// setter methods, GenericPropertyAdapter for MIoT models addressed by
// service and property ids.
//
// Writes are optimistic. The written value is cached as Predicted and the
// update handler is notified before the RPC is sent; the next successful
// read replaces it with a Confirmed value.
//
// Devices are built with NewDevice and bound to a live miio.Transport with
// Attach. Status accessors never perform I/O.
package fan
