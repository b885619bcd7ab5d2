package controller

import "github.com/nerrad567/gray-logic-fan/internal/fan"

// Listener receives controller events. Methods are called from the
// controller loop goroutine, or from a command caller's goroutine for
// PropertiesUpdated after a local write; implementations must not block.
type Listener interface {
	// DeviceReady is emitted once per Device, when it is first created.
	DeviceReady(d *fan.Device)

	// Connected is emitted each time a transport is attached.
	Connected(d *fan.Device)

	// Disconnected is emitted once per lost connection.
	Disconnected()

	// PropertiesUpdated is emitted after every successful poll and every
	// local write.
	PropertiesUpdated(snap fan.Snapshot)
}

// ListenerFuncs adapts optional functions to a Listener. Nil fields are
// skipped.
type ListenerFuncs struct {
	OnDeviceReady       func(d *fan.Device)
	OnConnected         func(d *fan.Device)
	OnDisconnected      func()
	OnPropertiesUpdated func(snap fan.Snapshot)
}

func (l ListenerFuncs) DeviceReady(d *fan.Device) {
	if l.OnDeviceReady != nil {
		l.OnDeviceReady(d)
	}
}

func (l ListenerFuncs) Connected(d *fan.Device) {
	if l.OnConnected != nil {
		l.OnConnected(d)
	}
}

func (l ListenerFuncs) Disconnected() {
	if l.OnDisconnected != nil {
		l.OnDisconnected()
	}
}

func (l ListenerFuncs) PropertiesUpdated(snap fan.Snapshot) {
	if l.OnPropertiesUpdated != nil {
		l.OnPropertiesUpdated(snap)
	}
}
