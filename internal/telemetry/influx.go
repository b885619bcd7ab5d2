package telemetry

import (
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-fan/internal/fan"
)

// StateWriter is the subset of the InfluxDB client used here.
// Satisfied by *influxdb.Client.
type StateWriter interface {
	WriteFanState(fanID, model string, fields map[string]any, at time.Time)
	WriteConnectionEvent(fanID string, connected bool, at time.Time)
}

// InfluxWriter is a controller listener that records fan status points and
// connection events. Writes are non-blocking; the client batches them.
//
// Thread Safety: All methods are safe for concurrent use.
type InfluxWriter struct {
	fanID string
	w     StateWriter

	mu     sync.RWMutex
	device *fan.Device

	// now is replaced in tests.
	now func() time.Time
}

// NewInfluxWriter creates a writer tagging points with fanID.
func NewInfluxWriter(fanID string, w StateWriter) *InfluxWriter {
	return &InfluxWriter{fanID: fanID, w: w, now: time.Now}
}

// DeviceReady remembers the device whose status will be written.
func (iw *InfluxWriter) DeviceReady(d *fan.Device) {
	iw.setDevice(d)
}

// Connected records a connection event.
func (iw *InfluxWriter) Connected(d *fan.Device) {
	iw.setDevice(d)
	iw.w.WriteConnectionEvent(iw.fanID, true, iw.now())
}

// Disconnected records a disconnection event.
func (iw *InfluxWriter) Disconnected() {
	iw.w.WriteConnectionEvent(iw.fanID, false, iw.now())
}

// PropertiesUpdated writes the supported status fields as one point.
func (iw *InfluxWriter) PropertiesUpdated(fan.Snapshot) {
	iw.mu.RLock()
	d := iw.device
	iw.mu.RUnlock()
	if d == nil {
		return
	}
	iw.w.WriteFanState(iw.fanID, d.Model(), statusFields(d.Status()), iw.now())
}

func (iw *InfluxWriter) setDevice(d *fan.Device) {
	iw.mu.Lock()
	iw.device = d
	iw.mu.Unlock()
}
